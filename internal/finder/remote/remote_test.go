package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/steveyegge/kernelfinder/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const specsJSON = `{
  "default": "python3",
  "kernelspecs": {
    "python3": {"name": "python3", "spec": {"display_name": "Python 3", "language": "python", "argv": ["python"], "metadata": {"debugger": true}}},
    "ir": {"name": "ir", "spec": {"display_name": "R", "language": "R", "argv": ["R"]}}
  }
}`

// fakeServer serves a mutable kernels list behind token auth.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	specs    string
	kernels  string
	failWith int
	hits     atomic.Int32
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	s := &fakeServer{specs: specsJSON, kernels: `[]`}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.Header.Get("Authorization") != "token secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failWith != 0 {
			w.WriteHeader(s.failWith)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case kernelSpecsPath:
			fmt.Fprint(w, s.specs)
		case kernelsPath:
			fmt.Fprint(w, s.kernels)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) setKernels(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kernels = body
}

func (s *fakeServer) setFailure(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

func newTestFinder(t *testing.T, config Config) *Finder {
	t.Helper()
	if config.Token == "" {
		config.Token = "secret"
	}
	if config.RateLimit == 0 {
		config.RateLimit = rate.Inf
	}
	config.Logger = zaptest.NewLogger(t)
	f, err := New(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func waitReady(t *testing.T, f *Finder) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.WaitReady(ctx)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://host"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://host", PollInterval: -time.Second})
	assert.Error(t, err)

	f, err := New(Config{BaseURL: "http://host:8888/"})
	require.NoError(t, err)
	assert.Equal(t, "remote:http://host:8888", f.ID())
}

func TestFinderListsSpecsAndLiveKernels(t *testing.T) {
	srv := newFakeServer(t)
	srv.setKernels(`[{"id": "k-2", "name": "python3", "execution_state": "idle"}, {"id": "k-1", "name": "unknown"}]`)

	f := newTestFinder(t, Config{BaseURL: srv.URL})
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, waitReady(t, f))

	kernels := f.ListContributedKernels("file:///nb.ipynb")
	assert.Equal(t, []string{
		"remoteKernelSpec:" + srv.URL + "#ir",
		"remoteKernelSpec:" + srv.URL + "#python3",
		"liveRemoteKernel:k-1",
		"liveRemoteKernel:k-2",
	}, types.IDs(kernels))

	for _, k := range kernels {
		require.NoError(t, k.Validate())
		assert.Equal(t, srv.URL, k.BaseURL)
	}
	assert.Equal(t, "unknown", kernels[2].DisplayName)
	assert.Equal(t, "Python 3", kernels[3].DisplayName)
	assert.True(t, kernels[3].DebuggerSupported)
}

func TestFinderReadinessRejectsOnFirstFetchFailure(t *testing.T) {
	srv := newFakeServer(t)

	f := newTestFinder(t, Config{BaseURL: srv.URL, Token: "wrong"})
	require.NoError(t, f.Start(context.Background()))

	err := waitReady(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Empty(t, f.ListContributedKernels(""))
}

func TestRefreshFiresOnDifferenceOnly(t *testing.T) {
	srv := newFakeServer(t)
	f := newTestFinder(t, Config{BaseURL: srv.URL})
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, waitReady(t, f))

	var fired atomic.Int32
	f.OnDidChangeKernels(func() { fired.Add(1) })

	require.NoError(t, f.Refresh(context.Background()))
	assert.Equal(t, int32(0), fired.Load())

	srv.setKernels(`[{"id": "k-9", "name": "ir"}]`)
	require.NoError(t, f.Refresh(context.Background()))
	assert.Equal(t, int32(1), fired.Load())
	assert.Len(t, f.ListContributedKernels(""), 3)
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	srv := newFakeServer(t)
	f := newTestFinder(t, Config{BaseURL: srv.URL})
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, waitReady(t, f))

	srv.setFailure(http.StatusInternalServerError)
	err := f.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, f.ListContributedKernels(""), 2)
}

func TestPollingPicksUpChanges(t *testing.T) {
	srv := newFakeServer(t)
	f := newTestFinder(t, Config{BaseURL: srv.URL, PollInterval: 10 * time.Millisecond})

	changed := make(chan struct{}, 1)
	f.OnDidChangeKernels(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, waitReady(t, f))
	<-changed // initial snapshot

	srv.setKernels(`[{"id": "k-1", "name": "python3"}]`)
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not pick up the new kernel")
	}
	assert.Len(t, f.ListContributedKernels(""), 3)
}

func TestRefreshHonorsRateLimit(t *testing.T) {
	srv := newFakeServer(t)
	f := newTestFinder(t, Config{BaseURL: srv.URL, RateLimit: rate.Every(time.Hour), Burst: 1})

	require.NoError(t, f.Refresh(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.Refresh(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(2), srv.hits.Load(), "second refresh must not reach the server")
}

func TestCloseRejectsPendingReadinessAndIsIdempotent(t *testing.T) {
	f := newTestFinder(t, Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	assert.Error(t, f.WaitReady(context.Background()))
	assert.Error(t, f.Start(context.Background()))
}

func TestParseKernelSpecsRejectsGarbage(t *testing.T) {
	_, err := ParseKernelSpecs("http://h", []byte(`nope`))
	assert.Error(t, err)

	_, err = ParseKernelSpecs("http://h", []byte(`{"default": "x"}`))
	assert.Error(t, err)

	_, err = ParseLiveKernels("http://h", []byte(`{}`), nil)
	assert.Error(t, err)
}
