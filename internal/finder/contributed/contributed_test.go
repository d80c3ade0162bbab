package contributed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/types"
)

const kernelsYAML = `kernels:
  - id: ext:sql
    kind: startUsingLocalKernelSpec
    display_name: SQL
    language: sql
  - id: ext:remote
    kind: startUsingRemoteKernelSpec
    display_name: Gateway Python
    base_url: http://gateway:8888
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestFinder(t *testing.T, path string) *Finder {
	t.Helper()
	f := New(Config{Path: path, Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestLoadFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		kernels, err := LoadFile(writeFile(t, kernelsYAML))
		require.NoError(t, err)
		require.Len(t, kernels, 2)
		assert.Equal(t, "ext:sql", kernels[0].ID)
		assert.Equal(t, types.KindRemoteKernelSpec, kernels[1].Kind)
		assert.Equal(t, "http://gateway:8888", kernels[1].BaseURL)
	})

	t.Run("missing file is empty", func(t *testing.T) {
		kernels, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, kernels)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "kernels: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("invalid kernel", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "kernels:\n  - id: x\n    kind: bogus\n"))
		assert.ErrorIs(t, err, types.ErrInvalidMetadata)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		body := "kernels:\n  - id: x\n    kind: startUsingLocalKernelSpec\n  - id: x\n    kind: startUsingLocalKernelSpec\n"
		_, err := LoadFile(writeFile(t, body))
		assert.ErrorContains(t, err, "duplicate")
	})
}

func TestStartResolvesReadiness(t *testing.T) {
	f := newTestFinder(t, writeFile(t, kernelsYAML))
	assert.False(t, f.Readiness().Settled())

	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, f.WaitReady(context.Background()))
	assert.Equal(t, []string{"ext:sql", "ext:remote"}, types.IDs(f.ListContributedKernels("")))
	assert.Equal(t, finder.KindContributed, f.Kind())
}

func TestStartRejectsReadinessOnBadFile(t *testing.T) {
	f := newTestFinder(t, writeFile(t, "kernels: {"))
	require.Error(t, f.Start(context.Background()))
	assert.Error(t, f.WaitReady(context.Background()))
}

func TestReloadFiresOnDifferenceOnly(t *testing.T) {
	path := writeFile(t, kernelsYAML)
	f := newTestFinder(t, path)
	require.NoError(t, f.Start(context.Background()))

	fired := 0
	f.OnDidChangeKernels(func() { fired++ })

	require.NoError(t, f.Reload())
	assert.Equal(t, 0, fired)

	require.NoError(t, os.WriteFile(path, []byte("kernels:\n  - id: ext:only\n    kind: startUsingLocalKernelSpec\n"), 0o644))
	require.NoError(t, f.Reload())
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"ext:only"}, types.IDs(f.ListContributedKernels("")))

	// a broken edit keeps the last good contents
	require.NoError(t, os.WriteFile(path, []byte("kernels: ["), 0o644))
	require.Error(t, f.Reload())
	assert.Equal(t, []string{"ext:only"}, types.IDs(f.ListContributedKernels("")))
}

func TestAddAndRemove(t *testing.T) {
	f := newTestFinder(t, writeFile(t, kernelsYAML))
	require.NoError(t, f.Start(context.Background()))

	fired := 0
	f.OnDidChangeKernels(func() { fired++ })

	require.NoError(t, f.Add(types.KernelConnectionMetadata{ID: "prog:1", Kind: types.KindLocalKernelSpec}))
	assert.Equal(t, []string{"ext:sql", "ext:remote", "prog:1"}, types.IDs(f.ListContributedKernels("")))
	assert.Equal(t, 1, fired)

	// replacing with an identical entry is not a change
	require.NoError(t, f.Add(types.KernelConnectionMetadata{ID: "prog:1", Kind: types.KindLocalKernelSpec}))
	assert.Equal(t, 1, fired)

	require.NoError(t, f.Add(types.KernelConnectionMetadata{ID: "prog:1", Kind: types.KindLocalKernelSpec, DisplayName: "renamed"}))
	assert.Equal(t, 2, fired)
	assert.Len(t, f.ListContributedKernels(""), 3)

	assert.Error(t, f.Add(types.KernelConnectionMetadata{Kind: types.KindLocalKernelSpec}))

	assert.True(t, f.Remove("prog:1"))
	assert.False(t, f.Remove("prog:1"))
	assert.Equal(t, 3, fired)
	assert.Len(t, f.ListContributedKernels(""), 2)
}

func TestProgrammaticOnly(t *testing.T) {
	f := newTestFinder(t, "")
	require.NoError(t, f.Start(context.Background()))
	assert.Empty(t, f.ListContributedKernels(""))

	require.NoError(t, f.Add(types.KernelConnectionMetadata{ID: "p", Kind: types.KindPythonInterpreter}))
	assert.Len(t, f.ListContributedKernels(""), 1)
}
