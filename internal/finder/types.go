package finder

import (
	"context"
	"time"

	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/types"
)

// Info identifies a finder for diagnostics and reverse lookups.
type Info interface {
	// ID returns a stable identifier, e.g. "local:/usr/share/jupyter/kernels".
	ID() string

	// DisplayName returns a human-readable label for UI enumeration.
	DisplayName() string

	// Kind reports which family of sources the finder belongs to.
	Kind() Kind
}

// Finder is the capability contract every kernel source implements.
// The registry treats all finders uniformly and never inspects the concrete type.
type Finder interface {
	Info

	// WaitReady blocks until the finder's initial scan has completed (nil) or
	// failed (non-nil), or ctx is done. It settles once; later calls return the
	// same outcome immediately.
	WaitReady(ctx context.Context) error

	// ListContributedKernels returns the finder's current kernels for resource,
	// in the finder's own order. It must not block on first-time initialization
	// and must be safe to call repeatedly. resource is opaque ("" means none).
	ListContributedKernels(resource string) []types.KernelConnectionMetadata

	// OnDidChangeKernels subscribes to the finder's "re-list me" signal.
	OnDidChangeKernels(listener events.Listener) events.Subscription
}

// Kind groups finders by where their kernels come from.
type Kind string

const (
	KindLocal       Kind = "local"
	KindRemote      Kind = "remote"
	KindContributed Kind = "contributed"
)

// IsValid checks if the kind value is valid
func (k Kind) IsValid() bool {
	switch k {
	case KindLocal, KindRemote, KindContributed:
		return true
	}
	return false
}

// Observer receives registry lifecycle notifications. All methods are called
// synchronously and must not block.
type Observer interface {
	FinderRegistered(info Info)
	FinderDeregistered(info Info)
	FinderFailed(info Info, err error)
	KernelsListed(summary ListSummary)
}

// ListSummary describes one completed (or cancelled) ListKernels call.
type ListSummary struct {
	Resource    string
	KernelCount int
	FinderCount int
	Failed      int
	Cancelled   bool
	Duration    time.Duration
}
