package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steveyegge/kernelfinder/internal/config"
	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/finder/contributed"
	"github.com/steveyegge/kernelfinder/internal/finder/local"
	"github.com/steveyegge/kernelfinder/internal/finder/remote"
	"github.com/steveyegge/kernelfinder/internal/storage"
	"github.com/steveyegge/kernelfinder/internal/types"
)

const recordTimeout = 5 * time.Second

// ManagedFinder is a finder whose background work the session starts and stops.
type ManagedFinder interface {
	finder.Finder
	Start(ctx context.Context) error
	Close() error
}

// Options configures a Session.
type Options struct {
	// ProjectRoot anchors relative paths in the finders file.
	ProjectRoot string

	// ConfigPath overrides <ProjectRoot>/.kf/finders.yaml.
	ConfigPath string

	// Finders is used as-is when set; otherwise the finders file is loaded.
	Finders *config.FindersConfig

	Registry config.RegistryConfig

	// Store receives registry events. When nil and history is enabled, the
	// session opens (and later closes) the database named by the finders file.
	Store storage.EventStore

	Logger *zap.Logger
}

// Session owns a registry, the finders registered with it and the optional
// event history. It is the only component that creates finders.
type Session struct {
	id       string
	logger   *zap.Logger
	registry *finder.Registry

	store     storage.EventStore
	ownsStore bool

	mu       sync.Mutex
	managed  []ManagedFinder
	changeSb events.Subscription

	closeOnce sync.Once
}

// NewSession builds the registry, starts the configured finders and registers
// them in file order: local, then remotes, then contributed files.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Registry == (config.RegistryConfig{}) {
		opts.Registry = config.DefaultRegistryConfig()
	}
	if err := opts.Registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}

	findersCfg := opts.Finders
	if findersCfg == nil {
		var err error
		findersCfg, err = config.LoadFindersFile(opts.ProjectRoot, opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		id:     uuid.New().String(),
		logger: logger.Named("session"),
		store:  opts.Store,
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))

	if s.store == nil && opts.Registry.HistoryEnabled && findersCfg.HistoryDB != "" {
		store, err := storage.NewEventStore(ctx, &storage.Config{Path: findersCfg.HistoryDB})
		if err != nil {
			return nil, fmt.Errorf("failed to open event history: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}
	if s.store != nil && !opts.Registry.HistoryEnabled {
		s.store = nil
	}
	if s.store != nil {
		s.pruneHistory(ctx, opts.Registry.HistoryRetention())
	}

	registry, err := finder.NewRegistry(opts.Registry.FinderConfig(logger, s))
	if err != nil {
		s.closeStore()
		return nil, err
	}
	s.registry = registry
	s.changeSb = registry.OnDidChangeKernels(s.kernelsChanged)

	managed, err := buildFinders(findersCfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.addAll(ctx, managed); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.logger.Info("Kernel discovery session started",
		zap.Int("finders", len(managed)),
		zap.String("registry", opts.Registry.String()))
	return s, nil
}

func buildFinders(cfg *config.FindersConfig, logger *zap.Logger) ([]ManagedFinder, error) {
	var managed []ManagedFinder

	if cfg.LocalEnabled && len(cfg.LocalDirs) > 0 {
		managed = append(managed, local.New(local.Config{
			Dirs:     cfg.LocalDirs,
			Watch:    cfg.LocalWatch,
			Debounce: cfg.LocalDebounce,
			Logger:   logger,
		}))
	}

	for _, server := range cfg.Remotes {
		f, err := remote.New(remote.Config{
			BaseURL:      server.BaseURL,
			Token:        server.Token,
			PollInterval: server.PollInterval,
			RateLimit:    rate.Limit(server.RateLimit),
			Burst:        server.Burst,
			Logger:       logger,
		})
		if err != nil {
			closeAll(managed)
			return nil, fmt.Errorf("remote finder %s: %w", server.BaseURL, err)
		}
		managed = append(managed, f)
	}

	for _, c := range cfg.Contributed {
		managed = append(managed, contributed.New(contributed.Config{
			ID:     c.ID,
			Path:   c.Path,
			Logger: logger,
		}))
	}

	return managed, nil
}

// addAll adds finders in order. On failure the failing finder and every one
// after it are closed, since the session never took ownership of them.
func (s *Session) addAll(ctx context.Context, managed []ManagedFinder) error {
	for i, f := range managed {
		if err := s.Add(ctx, f); err != nil {
			closeAll(managed[i:])
			return err
		}
	}
	return nil
}

func closeAll(managed []ManagedFinder) {
	for _, f := range managed {
		_ = f.Close()
	}
}

// Add starts f and registers it. The session closes f on Close. A start
// failure is logged, not returned: the finder's rejected readiness is left to
// the registry's failure policy.
func (s *Session) Add(ctx context.Context, f ManagedFinder) error {
	if err := f.Start(ctx); err != nil {
		s.logger.Warn("Kernel finder failed to start",
			zap.String("finder", f.ID()),
			zap.Error(err))
	}
	if _, err := s.registry.Register(f); err != nil {
		return fmt.Errorf("registering %s: %w", f.ID(), err)
	}

	s.mu.Lock()
	s.managed = append(s.managed, f)
	s.mu.Unlock()
	return nil
}

// ID returns the session's unique id, stamped on every recorded event.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the session's registry.
func (s *Session) Registry() *finder.Registry {
	return s.registry
}

// Store returns the event history, or nil when history is disabled.
func (s *Session) Store() storage.EventStore {
	return s.store
}

// ListKernels lists kernels through the registry.
func (s *Session) ListKernels(ctx context.Context, resource string) ([]types.KernelConnectionMetadata, error) {
	return s.registry.ListKernels(ctx, resource)
}

// FindKernel lists kernels and returns the one with id together with the
// finder that produced it. A missing id yields a *types.KernelError with
// category notfound. A cancelled ctx yields ctx.Err().
func (s *Session) FindKernel(ctx context.Context, resource, id string) (types.KernelConnectionMetadata, finder.Info, error) {
	kernels, err := s.registry.ListKernels(ctx, resource)
	if err != nil {
		return types.KernelConnectionMetadata{}, nil, err
	}
	if kernels == nil && ctx.Err() != nil {
		return types.KernelConnectionMetadata{}, nil, ctx.Err()
	}

	for _, k := range kernels {
		if k.ID != id {
			continue
		}
		info, ok := s.registry.GetFinderForConnection(k)
		if !ok {
			return k, nil, fmt.Errorf("kernel %s has no finder in the current index", id)
		}
		return k, info, nil
	}

	return types.KernelConnectionMetadata{}, nil, &types.KernelError{
		Category: types.CategoryNotFound,
		Message:  "no registered finder lists this kernel",
		Kernel:   types.KernelConnectionMetadata{ID: id},
	}
}

// ListDebuggable lists kernels and splits them into those with debugger
// support and errors describing the rest.
func (s *Session) ListDebuggable(ctx context.Context, resource string) ([]types.KernelConnectionMetadata, []error, error) {
	kernels, err := s.registry.ListKernels(ctx, resource)
	if err != nil {
		return nil, nil, err
	}

	var ok []types.KernelConnectionMetadata
	var missing []error
	for _, k := range kernels {
		if err := types.RequireDebugger(k); err != nil {
			missing = append(missing, err)
			continue
		}
		ok = append(ok, k)
	}
	return ok, missing, nil
}

// Close disposes every registration, stops all finders and closes the
// history it opened. Safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.registry != nil {
			s.registry.Close()
		}
		if s.changeSb != nil {
			s.changeSb.Dispose()
		}

		s.mu.Lock()
		managed := s.managed
		s.managed = nil
		s.mu.Unlock()

		for _, f := range managed {
			if err := f.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", f.ID(), err))
			}
		}
		if err := s.closeStore(); err != nil {
			errs = append(errs, err)
		}
		s.logger.Debug("Kernel discovery session closed")
	})
	return errors.Join(errs...)
}

func (s *Session) closeStore() error {
	if !s.ownsStore || s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing event history: %w", err)
	}
	return nil
}

func (s *Session) pruneHistory(ctx context.Context, retention time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ctx, retention)
	if err != nil {
		s.logger.Warn("Failed to prune event history", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Debug("Pruned event history", zap.Int("deleted", deleted))
	}
}
