// Package remote lists kernelspecs and running kernels from a Jupyter server
// over its REST API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/types"
)

const (
	kernelSpecsPath = "/api/kernelspecs"
	kernelsPath     = "/api/kernels"

	maxResponseBytes = 4 << 20
)

var errClosed = errors.New("finder is closed")

// Config configures a remote finder.
type Config struct {
	// BaseURL of the Jupyter server, e.g. http://localhost:8888.
	BaseURL string

	// Token is sent as "Authorization: token <Token>" when non-empty.
	Token string

	// PollInterval between background refreshes. Zero disables polling;
	// Refresh can still be called manually.
	PollInterval time.Duration

	// RateLimit caps refreshes per second, manual and polled combined.
	// Default 1 with a burst of 2.
	RateLimit rate.Limit
	Burst     int

	// RequestTimeout bounds a single refresh. Default 10s.
	RequestTimeout time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Finder polls one Jupyter server.
type Finder struct {
	*finder.Base

	config  Config
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	cancel context.CancelFunc
	doneCh chan struct{}

	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
}

// New creates a remote finder. Call Start to perform the first fetch.
func New(config Config) (*Finder, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remote finder requires a base URL")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("remote finder base URL must be http(s): %q", config.BaseURL)
	}
	if config.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be non-negative (got %v)", config.PollInterval)
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 1
	}
	if config.Burst <= 0 {
		config.Burst = 2
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Finder{
		Base:    finder.NewBase("remote:"+baseURL, "Jupyter server "+baseURL, finder.KindRemote),
		config:  config,
		baseURL: baseURL,
		client:  client,
		limiter: rate.NewLimiter(config.RateLimit, config.Burst),
		logger:  logger.Named("remote_finder").With(zap.String("server", baseURL)),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start performs the first fetch in the background and then polls. Readiness
// resolves after the first successful fetch and rejects if it fails.
func (f *Finder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	if f.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.started = true

	go f.run(runCtx)
	return nil
}

func (f *Finder) run(ctx context.Context) {
	defer close(f.doneCh)

	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn("Initial Jupyter server fetch failed", zap.Error(err))
		f.Readiness().Reject(err)
	} else {
		f.Readiness().Resolve()
	}

	if f.config.PollInterval == 0 {
		return
	}

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil && ctx.Err() == nil {
				f.logger.Warn("Jupyter server refresh failed; keeping last snapshot", zap.Error(err))
			}
		}
	}
}

// Refresh fetches kernelspecs and live kernels now, subject to the rate
// limiter, and fires a change event if the result differs. On error the
// previous snapshot is kept.
func (f *Finder) Refresh(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for refresh slot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.RequestTimeout)
	defer cancel()

	specBody, err := f.get(ctx, kernelSpecsPath)
	if err != nil {
		return err
	}
	liveBody, err := f.get(ctx, kernelsPath)
	if err != nil {
		return err
	}

	specs, err := ParseKernelSpecs(f.baseURL, specBody)
	if err != nil {
		return err
	}
	live, err := ParseLiveKernels(f.baseURL, liveBody, specs)
	if err != nil {
		return err
	}

	if f.SetKernels(append(specs, live...)) {
		f.logger.Debug("Jupyter server kernels changed",
			zap.Int("specs", len(specs)),
			zap.Int("live", len(live)))
	}
	return nil
}

func (f *Finder) get(ctx context.Context, path string) ([]byte, error) {
	url := f.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.config.Token != "" {
		req.Header.Set("Authorization", "token "+f.config.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return body, nil
}

// ParseKernelSpecs converts a /api/kernelspecs response into metadata, sorted
// by kernelspec name so repeated fetches compare equal.
func ParseKernelSpecs(baseURL string, body []byte) ([]types.KernelConnectionMetadata, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed kernelspecs response")
	}
	specs := gjson.GetBytes(body, "kernelspecs")
	if !specs.IsObject() {
		return nil, fmt.Errorf("kernelspecs response has no kernelspecs object")
	}

	kernels := []types.KernelConnectionMetadata{}
	specs.ForEach(func(key, value gjson.Result) bool {
		name := value.Get("name").String()
		if name == "" {
			name = key.String()
		}
		spec := value.Get("spec")
		kernel := types.KernelConnectionMetadata{
			ID:                "remoteKernelSpec:" + baseURL + "#" + name,
			Kind:              types.KindRemoteKernelSpec,
			DisplayName:       spec.Get("display_name").String(),
			Language:          spec.Get("language").String(),
			BaseURL:           baseURL,
			DebuggerSupported: spec.Get("metadata.debugger").Bool(),
		}
		if kernel.DisplayName == "" {
			kernel.DisplayName = name
		}
		kernels = append(kernels, kernel)
		return true
	})

	slices.SortFunc(kernels, func(a, b types.KernelConnectionMetadata) int {
		return strings.Compare(a.ID, b.ID)
	})
	return kernels, nil
}

// ParseLiveKernels converts a /api/kernels response into metadata. Display
// name and language are borrowed from the matching kernelspec when known.
func ParseLiveKernels(baseURL string, body []byte, specs []types.KernelConnectionMetadata) ([]types.KernelConnectionMetadata, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed kernels response")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, fmt.Errorf("kernels response is not an array")
	}

	byName := make(map[string]types.KernelConnectionMetadata, len(specs))
	prefix := "remoteKernelSpec:" + baseURL + "#"
	for _, s := range specs {
		byName[strings.TrimPrefix(s.ID, prefix)] = s
	}

	kernels := []types.KernelConnectionMetadata{}
	for _, k := range doc.Array() {
		id := k.Get("id").String()
		if id == "" {
			continue
		}
		name := k.Get("name").String()
		kernel := types.KernelConnectionMetadata{
			ID:          "liveRemoteKernel:" + id,
			Kind:        types.KindLiveRemoteKernel,
			DisplayName: name,
			BaseURL:     baseURL,
		}
		if spec, ok := byName[name]; ok {
			kernel.DisplayName = spec.DisplayName
			kernel.Language = spec.Language
			kernel.DebuggerSupported = spec.DebuggerSupported
		}
		kernels = append(kernels, kernel)
	}

	slices.SortFunc(kernels, func(a, b types.KernelConnectionMetadata) int {
		return strings.Compare(a.ID, b.ID)
	})
	return kernels, nil
}

// Close stops polling, cancels any in-flight request and rejects readiness if
// the first fetch never completed. It is safe to call more than once.
func (f *Finder) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		started := f.started
		cancel := f.cancel
		f.mu.Unlock()

		if started {
			cancel()
			<-f.doneCh
		}
		f.CloseBase()
	})
	return nil
}
