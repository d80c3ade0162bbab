package finder

import (
	"context"
	"sync"

	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/types"
)

// Base carries the bookkeeping every concrete finder needs: identity, the
// readiness future, the change emitter and the current kernel snapshot.
// Concrete finders embed *Base and call SetKernels after each scan.
type Base struct {
	id          string
	displayName string
	kind        Kind

	ready   *Readiness
	changed *events.Emitter

	mu      sync.RWMutex
	kernels []types.KernelConnectionMetadata
}

// NewBase creates the shared finder state.
func NewBase(id, displayName string, kind Kind) *Base {
	return &Base{
		id:          id,
		displayName: displayName,
		kind:        kind,
		ready:       NewReadiness(),
		changed:     events.NewEmitter(),
	}
}

// ID implements Info.
func (b *Base) ID() string { return b.id }

// DisplayName implements Info.
func (b *Base) DisplayName() string { return b.displayName }

// Kind implements Info.
func (b *Base) Kind() Kind { return b.kind }

// Readiness exposes the future so the owner can resolve or reject it.
func (b *Base) Readiness() *Readiness {
	return b.ready
}

// WaitReady implements Finder.
func (b *Base) WaitReady(ctx context.Context) error {
	return b.ready.Wait(ctx)
}

// ListContributedKernels implements Finder. The resource is ignored; the
// whole snapshot is returned as a copy.
func (b *Base) ListContributedKernels(resource string) []types.KernelConnectionMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.KernelConnectionMetadata, len(b.kernels))
	copy(out, b.kernels)
	return out
}

// OnDidChangeKernels implements Finder.
func (b *Base) OnDidChangeKernels(listener events.Listener) events.Subscription {
	return b.changed.Subscribe(listener)
}

// SetKernels replaces the snapshot and fires the change event if the ordered
// list differs from the previous one. Reports whether it changed.
func (b *Base) SetKernels(kernels []types.KernelConnectionMetadata) bool {
	next := make([]types.KernelConnectionMetadata, len(kernels))
	copy(next, kernels)

	b.mu.Lock()
	if types.EqualLists(b.kernels, next) {
		b.mu.Unlock()
		return false
	}
	b.kernels = next
	b.mu.Unlock()

	b.changed.Fire()
	return true
}

// CloseBase rejects a still-pending readiness and drops all listeners.
func (b *Base) CloseBase() {
	b.ready.Reject(ErrNotReady)
	b.changed.Close()
}
