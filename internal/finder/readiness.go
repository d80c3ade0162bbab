package finder

import (
	"context"
	"errors"
	"sync"
)

// Readiness is a one-shot future for a finder's initial scan.
// The first Resolve or Reject wins; later calls are ignored.
type Readiness struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewReadiness creates an unsettled readiness future.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Resolve marks the finder ready. Reports whether this call settled the future.
func (r *Readiness) Resolve() bool {
	return r.settle(nil)
}

// Reject marks the initial scan failed. Reports whether this call settled the future.
func (r *Readiness) Reject(err error) bool {
	if err == nil {
		err = errors.New("readiness rejected")
	}
	return r.settle(err)
}

func (r *Readiness) settle(err error) bool {
	settled := false
	r.once.Do(func() {
		r.err = err
		close(r.done)
		settled = true
	})
	return settled
}

// Done is closed once the future settles.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// Settled reports whether Resolve or Reject has been called.
func (r *Readiness) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done.
// A settled future wins over a simultaneously cancelled ctx.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	default:
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
