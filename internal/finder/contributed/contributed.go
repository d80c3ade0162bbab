// Package contributed serves kernels declared by extensions, either in a YAML
// file or added programmatically.
package contributed

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/types"
)

// File is the on-disk format of a contributed kernels file.
//
//	kernels:
//	  - id: my-ext:sql
//	    kind: startUsingLocalKernelSpec
//	    display_name: SQL
//	    language: sql
type File struct {
	Kernels []types.KernelConnectionMetadata `yaml:"kernels"`
}

// LoadFile reads and validates a contributed kernels file. A missing file
// yields an empty list.
func LoadFile(path string) ([]types.KernelConnectionMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read contributed kernels file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse contributed kernels file: %w", err)
	}

	seen := make(map[string]bool, len(file.Kernels))
	for i, k := range file.Kernels {
		if err := k.Validate(); err != nil {
			return nil, fmt.Errorf("kernel %d in %s: %w", i, path, err)
		}
		if seen[k.ID] {
			return nil, fmt.Errorf("duplicate kernel id %q in %s", k.ID, path)
		}
		seen[k.ID] = true
	}
	return file.Kernels, nil
}

// Config configures a contributed finder.
type Config struct {
	// ID distinguishes several contributed finders. Default "contributed".
	ID string

	// Path of the YAML file. Empty means programmatic contributions only.
	Path string

	Logger *zap.Logger
}

// Finder lists file-declared kernels followed by programmatic ones.
type Finder struct {
	*finder.Base

	config Config
	logger *zap.Logger

	mu       sync.Mutex
	fromFile []types.KernelConnectionMetadata
	added    []types.KernelConnectionMetadata
}

// New creates a contributed finder. Call Start to load the file.
func New(config Config) *Finder {
	if config.ID == "" {
		config.ID = "contributed"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		Base:   finder.NewBase(config.ID, "Contributed kernels", finder.KindContributed),
		config: config,
		logger: logger.Named("contributed_finder"),
	}
}

// Start loads the file and settles readiness: resolved on success, rejected
// with the load error otherwise.
func (f *Finder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.Reload(); err != nil {
		f.Readiness().Reject(err)
		return err
	}
	f.Readiness().Resolve()
	return nil
}

// Reload re-reads the file. On error the previous file contents are kept.
func (f *Finder) Reload() error {
	if f.config.Path == "" {
		f.publish()
		return nil
	}
	kernels, err := LoadFile(f.config.Path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.fromFile = kernels
	f.mu.Unlock()

	f.logger.Debug("Loaded contributed kernels",
		zap.String("path", f.config.Path),
		zap.Int("count", len(kernels)))
	f.publish()
	return nil
}

// Add contributes a kernel, replacing an earlier programmatic contribution
// with the same id.
func (f *Finder) Add(kernel types.KernelConnectionMetadata) error {
	if err := kernel.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	replaced := false
	for i := range f.added {
		if f.added[i].ID == kernel.ID {
			f.added[i] = kernel
			replaced = true
			break
		}
	}
	if !replaced {
		f.added = append(f.added, kernel)
	}
	f.mu.Unlock()

	f.publish()
	return nil
}

// Remove withdraws a programmatic contribution. It reports whether one was
// found.
func (f *Finder) Remove(id string) bool {
	f.mu.Lock()
	found := false
	for i := range f.added {
		if f.added[i].ID == id {
			f.added = append(f.added[:i:i], f.added[i+1:]...)
			found = true
			break
		}
	}
	f.mu.Unlock()

	if found {
		f.publish()
	}
	return found
}

func (f *Finder) publish() {
	f.mu.Lock()
	all := make([]types.KernelConnectionMetadata, 0, len(f.fromFile)+len(f.added))
	all = append(all, f.fromFile...)
	all = append(all, f.added...)
	f.mu.Unlock()

	f.SetKernels(all)
}

// Close rejects readiness if Start never ran. It is safe to call more than
// once.
func (f *Finder) Close() error {
	f.CloseBase()
	return nil
}
