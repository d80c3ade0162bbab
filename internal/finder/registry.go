package finder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/types"
)

// Registry aggregates kernels from every registered finder, keeps a reverse
// index from kernel id to the finder that produced it in the last listing,
// and re-broadcasts a single merged change event.
//
// Registration order is preserved and is the outer order of ListKernels.
type Registry struct {
	config Config
	logger *zap.Logger

	mu       sync.RWMutex
	entries  []*Registration
	index    map[string]Info
	indexGen uint64 // start generation of the call that installed index
	closed   bool

	// listing diagnostics
	firstListAt time.Time
	lastCount   int
	listCalls   atomic.Int64
	startGen    atomic.Uint64

	listSem     *semaphore.Weighted
	onDidChange *events.Emitter
}

// NewRegistry creates a registry. The config is validated.
func NewRegistry(config Config) (*Registry, error) {
	if config.FailurePolicy == "" {
		config.FailurePolicy = FailFast
	}
	if config.ListPolicy == "" {
		config.ListPolicy = Serialize
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		config:      config,
		logger:      logger.Named("kernel_finder"),
		index:       make(map[string]Info),
		listSem:     semaphore.NewWeighted(1),
		onDidChange: events.NewEmitter(),
	}, nil
}

// Registration is the handle returned by Register. Disposing it removes that
// exact registration from the registry.
type Registration struct {
	registry *Registry
	finder   Finder
	forward  events.Subscription
	once     sync.Once
}

// Finder returns the registered finder.
func (reg *Registration) Finder() Finder {
	return reg.finder
}

// Dispose removes the registration, stops forwarding the finder's change
// events and fires one merged change event. Removal and listener release
// happen on the first call only; every call, including repeats and calls for
// an entry the registry already dropped, fires the change event exactly once.
func (reg *Registration) Dispose() {
	r := reg.registry
	reg.once.Do(func() {
		r.mu.Lock()
		removed := r.removeLocked(reg)
		r.mu.Unlock()

		reg.forward.Dispose()

		r.logger.Debug("Kernel finder deregistered",
			zap.String("finder", reg.finder.ID()),
			zap.Bool("was_registered", removed))
		if r.config.Observer != nil {
			r.config.Observer.FinderDeregistered(reg.finder)
		}
	})
	r.onDidChange.Fire()
}

// removeLocked deletes reg by identity. Caller holds r.mu.
func (r *Registry) removeLocked(reg *Registration) bool {
	for i, e := range r.entries {
		if e == reg {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Register appends finder, forwards its change events as the registry's own,
// and fires one change event before returning. Registering the same finder
// twice yields two independent registrations.
func (r *Registry) Register(finder Finder) (*Registration, error) {
	if finder == nil {
		return nil, fmt.Errorf("finder cannot be nil")
	}

	forward := finder.OnDidChangeKernels(r.onDidChange.Fire)
	reg := &Registration{registry: r, finder: finder, forward: forward}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		forward.Dispose()
		return nil, ErrRegistryClosed
	}
	r.entries = append(r.entries, reg)
	count := len(r.entries)
	r.mu.Unlock()

	r.logger.Debug("Kernel finder registered",
		zap.String("finder", finder.ID()),
		zap.String("kind", string(finder.Kind())),
		zap.Int("registered", count))
	if r.config.Observer != nil {
		r.config.Observer.FinderRegistered(finder)
	}

	r.onDidChange.Fire()
	return reg, nil
}

// OnDidChangeKernels subscribes to the merged change event. It fires when a
// finder registers or deregisters and whenever a registered finder reports a
// change. It never fires because of ListKernels.
func (r *Registry) OnDidChangeKernels(listener events.Listener) events.Subscription {
	return r.onDidChange.Subscribe(listener)
}

// Registered returns the live membership in registration order.
func (r *Registry) Registered() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, len(r.entries))
	for i, e := range r.entries {
		infos[i] = e.finder
	}
	return infos
}

// Finders returns the registered finders in registration order, for callers
// that need readiness or listings of individual finders.
func (r *Registry) Finders() []Finder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	finders := make([]Finder, len(r.entries))
	for i, e := range r.entries {
		finders[i] = e.finder
	}
	return finders
}

// GetFinderForConnection returns the finder that produced kernel in the most
// recent completed listing.
func (r *Registry) GetFinderForConnection(kernel types.KernelConnectionMetadata) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.index[kernel.ID]
	return info, ok
}

// ListKernels waits for every registered finder to become ready, then returns
// the concatenation of their kernels in registration order, each finder's own
// order preserved, without deduplication. The reverse index is rebuilt from
// scratch.
//
// Cancellation is checked once, after the readiness wait: a cancelled ctx
// yields (nil, nil), no finder is queried and the index is left untouched.
// Past that point the call runs to completion.
func (r *Registry) ListKernels(ctx context.Context, resource string) ([]types.KernelConnectionMetadata, error) {
	started := time.Now()
	gen := r.startGen.Add(1)
	r.listCalls.Add(1)

	r.mu.Lock()
	if r.firstListAt.IsZero() {
		r.firstListAt = started
	}
	r.mu.Unlock()

	if r.config.ListPolicy == Serialize {
		if err := r.listSem.Acquire(ctx, 1); err != nil {
			r.observeListed(ListSummary{Resource: resource, Cancelled: true, Duration: time.Since(started)})
			return nil, nil
		}
		defer r.listSem.Release(1)
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	finders := make([]Finder, len(r.entries))
	for i, e := range r.entries {
		finders[i] = e.finder
	}
	r.mu.RUnlock()

	readyErrs, err := r.waitReady(ctx, finders)
	if ctx.Err() != nil {
		r.observeListed(ListSummary{Resource: resource, FinderCount: len(finders), Cancelled: true, Duration: time.Since(started)})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	kernels := []types.KernelConnectionMetadata{}
	index := make(map[string]Info)
	failed := 0

	for i, f := range finders {
		if readyErrs != nil && readyErrs[i] != nil {
			failed++
			r.finderFailed(f, readyErrs[i])
			continue
		}

		contributed, err := r.listFinder(f, resource)
		if err != nil {
			failed++
			r.finderFailed(f, err)
			continue
		}

		for _, k := range contributed {
			index[k.ID] = f
		}
		kernels = append(kernels, contributed...)
	}

	r.mu.Lock()
	// Serialize installs unconditionally: calls finish in the order they
	// acquired the semaphore. Concurrent keeps the most recently started call.
	if r.config.ListPolicy == Serialize || gen > r.indexGen {
		r.index = index
		r.indexGen = gen
	}
	r.lastCount = len(kernels)
	r.mu.Unlock()

	if ce := r.logger.Check(zap.DebugLevel, "Listed kernel specs"); ce != nil {
		lines := make([]string, len(kernels))
		for i, k := range kernels {
			lines[i] = k.String()
		}
		ce.Write(
			zap.Int("count", len(kernels)),
			zap.String("resource", resource),
			zap.Strings("kernels", lines))
	}

	r.observeListed(ListSummary{
		Resource:    resource,
		KernelCount: len(kernels),
		FinderCount: len(finders),
		Failed:      failed,
		Duration:    time.Since(started),
	})
	return kernels, nil
}

// waitReady waits for all finders concurrently. Under FailFast the first
// failure is returned as err. Under Isolate per-finder errors are returned
// positionally and err is always nil.
func (r *Registry) waitReady(ctx context.Context, finders []Finder) ([]error, error) {
	if len(finders) == 0 {
		return nil, nil
	}

	waitCtx := ctx
	if r.config.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.config.ReadyTimeout)
		defer cancel()
	}

	if r.config.FailurePolicy == FailFast {
		g, gctx := errgroup.WithContext(waitCtx)
		for _, f := range finders {
			g.Go(func() error {
				if err := f.WaitReady(gctx); err != nil {
					return &FinderError{FinderID: f.ID(), Op: "ready", Err: err}
				}
				return nil
			})
		}
		return nil, g.Wait()
	}

	errs := make([]error, len(finders))
	var g errgroup.Group
	for i, f := range finders {
		g.Go(func() error {
			if err := f.WaitReady(waitCtx); err != nil {
				errs[i] = &FinderError{FinderID: f.ID(), Op: "ready", Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs, nil
}

// listFinder queries one finder. Under Isolate a panic is converted into an
// error so one broken finder cannot take down the listing.
func (r *Registry) listFinder(f Finder, resource string) (kernels []types.KernelConnectionMetadata, err error) {
	if r.config.FailurePolicy == Isolate {
		defer func() {
			if p := recover(); p != nil {
				kernels = nil
				err = &FinderError{FinderID: f.ID(), Op: "list", Err: fmt.Errorf("panic: %v", p)}
			}
		}()
	}
	return f.ListContributedKernels(resource), nil
}

func (r *Registry) finderFailed(f Finder, err error) {
	r.logger.Warn("Kernel finder failed; treating as empty",
		zap.String("finder", f.ID()),
		zap.Error(err))
	if r.config.Observer != nil {
		r.config.Observer.FinderFailed(f, err)
	}
}

func (r *Registry) observeListed(summary ListSummary) {
	if r.config.Observer != nil {
		r.config.Observer.KernelsListed(summary)
	}
}

// Stats is a diagnostic snapshot of the registry.
type Stats struct {
	Finders         int
	IndexSize       int
	LastKernelCount int
	ListCalls       int64

	// SinceFirstList is the time elapsed since the first ListKernels call,
	// zero if it was never called.
	SinceFirstList time.Duration
}

// Stats returns diagnostic counters. They play no part in correctness.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Finders:         len(r.entries),
		IndexSize:       len(r.index),
		LastKernelCount: r.lastCount,
		ListCalls:       r.listCalls.Load(),
	}
	if !r.firstListAt.IsZero() {
		s.SinceFirstList = time.Since(r.firstListAt)
	}
	return s
}

// Close disposes every live registration (one change event each) and then
// shuts the merged event down. Register and ListKernels fail afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	live := make([]*Registration, len(r.entries))
	copy(live, r.entries)
	r.mu.Unlock()

	for _, reg := range live {
		reg.Dispose()
	}
	r.onDidChange.Close()
}
