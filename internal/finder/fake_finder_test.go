package finder

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/steveyegge/kernelfinder/internal/types"
)

// fakeFinder is a controllable Finder for registry tests.
type fakeFinder struct {
	*Base

	// waitFn overrides WaitReady when set.
	waitFn func(ctx context.Context, call int64) error
	// listFn overrides ListContributedKernels when set.
	listFn func(resource string, call int64) []types.KernelConnectionMetadata

	waitCalls atomic.Int64
	listCalls atomic.Int64

	mu            sync.Mutex
	seenResources []string
}

func newFakeFinder(id string, ids ...string) *fakeFinder {
	f := &fakeFinder{Base: NewBase(id, "Fake "+id, KindLocal)}
	f.SetKernels(kernelsWithIDs(ids...))
	f.Readiness().Resolve()
	return f
}

// newPendingFinder returns a finder whose readiness is not yet settled.
func newPendingFinder(id string, ids ...string) *fakeFinder {
	f := &fakeFinder{Base: NewBase(id, "Fake "+id, KindRemote)}
	f.SetKernels(kernelsWithIDs(ids...))
	return f
}

func (f *fakeFinder) WaitReady(ctx context.Context) error {
	call := f.waitCalls.Add(1)
	if f.waitFn != nil {
		return f.waitFn(ctx, call)
	}
	return f.Base.WaitReady(ctx)
}

func (f *fakeFinder) ListContributedKernels(resource string) []types.KernelConnectionMetadata {
	call := f.listCalls.Add(1)
	f.mu.Lock()
	f.seenResources = append(f.seenResources, resource)
	f.mu.Unlock()
	if f.listFn != nil {
		return f.listFn(resource, call)
	}
	return f.Base.ListContributedKernels(resource)
}

func (f *fakeFinder) resources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seenResources...)
}

func kernelsWithIDs(ids ...string) []types.KernelConnectionMetadata {
	out := make([]types.KernelConnectionMetadata, len(ids))
	for i, id := range ids {
		out[i] = types.KernelConnectionMetadata{ID: id, Kind: types.KindLocalKernelSpec}
	}
	return out
}

// recordingObserver captures Observer callbacks.
type recordingObserver struct {
	mu           sync.Mutex
	registered   []string
	deregistered []string
	failed       []string
	listed       []ListSummary
}

func (o *recordingObserver) FinderRegistered(info Info) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registered = append(o.registered, info.ID())
}

func (o *recordingObserver) FinderDeregistered(info Info) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deregistered = append(o.deregistered, info.ID())
}

func (o *recordingObserver) FinderFailed(info Info, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, info.ID())
}

func (o *recordingObserver) KernelsListed(summary ListSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listed = append(o.listed, summary)
}
