// Package local finds kernels from Jupyter kernelspec directories on disk.
//
// Each configured directory is expected to contain one sub-directory per
// kernel with a kernel.json inside (the layout `jupyter kernelspec list`
// uses). When the same kernel name appears in more than one directory the
// earlier directory wins, matching Jupyter's own search order.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/types"
)

const kernelSpecFile = "kernel.json"

var errClosed = errors.New("finder is closed")

// Config configures a local kernelspec finder.
type Config struct {
	// Dirs are kernelspec roots in priority order, e.g.
	// ~/.local/share/jupyter/kernels, /usr/share/jupyter/kernels.
	Dirs []string

	// Watch enables fsnotify-driven rescans.
	Watch bool

	// Debounce coalesces bursts of file events into one rescan. Default 250ms.
	Debounce time.Duration

	Logger *zap.Logger
}

// Finder scans kernelspec directories.
type Finder struct {
	*finder.Base

	config Config
	logger *zap.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
}

// New creates a local finder. Call Start to begin the initial scan.
func New(config Config) *Finder {
	if config.Debounce <= 0 {
		config.Debounce = 250 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := "local:" + strings.Join(config.Dirs, string(os.PathListSeparator))
	return &Finder{
		Base:   finder.NewBase(id, "Local kernelspecs", finder.KindLocal),
		config: config,
		logger: logger.Named("local_finder"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the initial scan in the background and, if enabled, watches the
// directories. Readiness resolves after the initial scan. It fails only if the
// finder was already closed.
func (f *Finder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	if f.started {
		return nil
	}

	if f.config.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			f.logger.Warn("Cannot watch kernelspec directories; changes need a manual rescan", zap.Error(err))
		} else {
			f.watcher = watcher
		}
	}
	f.started = true

	go f.run(ctx)
	return nil
}

func (f *Finder) run(ctx context.Context) {
	defer close(f.doneCh)

	f.Rescan()
	f.Readiness().Resolve()

	if f.watcher == nil {
		return
	}
	f.watchDirs()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					f.addWatch(event.Name)
				}
			}
			if debounce == nil {
				debounce = time.NewTimer(f.config.Debounce)
			} else {
				debounce.Reset(f.config.Debounce)
			}
			fire = debounce.C
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("Kernelspec watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			f.Rescan()
		}
	}
}

// watchDirs adds every root and each kernel sub-directory to the watcher.
// fsnotify is not recursive, so kernel.json edits need the sub-directory.
func (f *Finder) watchDirs() {
	for _, dir := range f.config.Dirs {
		if !f.addWatch(dir) {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				f.addWatch(filepath.Join(dir, entry.Name()))
			}
		}
	}
}

func (f *Finder) addWatch(path string) bool {
	if err := f.watcher.Add(path); err != nil {
		if !os.IsNotExist(err) {
			f.logger.Debug("Cannot watch kernelspec path", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return true
}

// Rescan reads all directories now and updates the snapshot. It reports
// whether the listed kernels changed.
func (f *Finder) Rescan() bool {
	kernels := f.scan()
	changed := f.SetKernels(kernels)
	if changed {
		f.logger.Debug("Local kernelspecs changed", zap.Int("count", len(kernels)))
	}
	return changed
}

func (f *Finder) scan() []types.KernelConnectionMetadata {
	seen := make(map[string]bool)
	kernels := []types.KernelConnectionMetadata{}

	for _, dir := range f.config.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				f.logger.Warn("Cannot read kernelspec directory", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() || seen[entry.Name()] {
				continue
			}
			specPath := filepath.Join(dir, entry.Name(), kernelSpecFile)
			data, err := os.ReadFile(specPath)
			if err != nil {
				continue // not a kernelspec directory
			}

			kernel, err := ParseKernelSpec(entry.Name(), specPath, data)
			if err != nil {
				f.logger.Warn("Skipping invalid kernelspec", zap.String("path", specPath), zap.Error(err))
				continue
			}
			seen[entry.Name()] = true
			kernels = append(kernels, kernel)
		}
	}
	return kernels
}

// ParseKernelSpec converts a kernel.json document into connection metadata.
// A spec carrying metadata.interpreter.path is reported as a Python
// interpreter kernel; anything else is a plain kernelspec.
func ParseKernelSpec(name, specPath string, data []byte) (types.KernelConnectionMetadata, error) {
	if !gjson.ValidBytes(data) {
		return types.KernelConnectionMetadata{}, fmt.Errorf("malformed %s", kernelSpecFile)
	}
	doc := gjson.ParseBytes(data)

	argv := doc.Get("argv")
	if !argv.IsArray() || len(argv.Array()) == 0 {
		return types.KernelConnectionMetadata{}, fmt.Errorf("%s has no argv", kernelSpecFile)
	}

	kernel := types.KernelConnectionMetadata{
		ID:                "localKernelSpec:" + name,
		Kind:              types.KindLocalKernelSpec,
		DisplayName:       doc.Get("display_name").String(),
		Language:          doc.Get("language").String(),
		KernelSpecPath:    specPath,
		DebuggerSupported: doc.Get("metadata.debugger").Bool(),
	}
	if kernel.DisplayName == "" {
		kernel.DisplayName = name
	}

	if interp := doc.Get("metadata.interpreter"); interp.Exists() && interp.Get("path").String() != "" {
		kernel.ID = "pythonInterpreter:" + name
		kernel.Kind = types.KindPythonInterpreter
		kernel.Interpreter = &types.InterpreterInfo{
			URI:         interp.Get("path").String(),
			DisplayName: interp.Get("display_name").String(),
			Version:     interp.Get("version").String(),
		}
	} else if strings.EqualFold(kernel.Language, "python") {
		if exe := argv.Array()[0].String(); filepath.IsAbs(exe) {
			kernel.Interpreter = &types.InterpreterInfo{URI: exe}
		}
	}

	return kernel, kernel.Validate()
}

// Close stops watching and rejects readiness if the initial scan never ran.
// It is safe to call more than once.
func (f *Finder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		started := f.started
		f.mu.Unlock()

		close(f.stopCh)
		if f.watcher != nil {
			err = f.watcher.Close()
		}
		if started {
			<-f.doneCh
		}
		f.CloseBase()
	})
	return err
}
