package finder

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FailurePolicy decides what a failing finder does to a listing call.
type FailurePolicy string

const (
	// FailFast propagates the first readiness failure and aborts the listing,
	// even if other finders are healthy.
	FailFast FailurePolicy = "fail_fast"

	// Isolate logs the failure and treats the finder as empty for that call.
	Isolate FailurePolicy = "isolate"
)

// IsValid checks if the policy value is valid
func (p FailurePolicy) IsValid() bool {
	return p == FailFast || p == Isolate
}

// ListPolicy decides how overlapping ListKernels calls share the reverse index.
type ListPolicy string

const (
	// Serialize runs listing calls one at a time; the index reflects the last
	// call to finish.
	Serialize ListPolicy = "serialize"

	// Concurrent lets calls overlap; each builds a private index and installs
	// it only if no later-started call has installed one already.
	Concurrent ListPolicy = "concurrent"
)

// IsValid checks if the policy value is valid
func (p ListPolicy) IsValid() bool {
	return p == Serialize || p == Concurrent
}

// Config controls registry behavior.
type Config struct {
	FailurePolicy FailurePolicy
	ListPolicy    ListPolicy

	// ReadyTimeout bounds the readiness wait of one listing call. Zero waits
	// for as long as the caller's context allows.
	ReadyTimeout time.Duration

	// Logger receives diagnostic output. Nil means zap.NewNop().
	Logger *zap.Logger

	// Observer is notified of lifecycle events. Optional.
	Observer Observer
}

// DefaultConfig returns the default registry configuration
func DefaultConfig() Config {
	return Config{
		FailurePolicy: FailFast,
		ListPolicy:    Serialize,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if !c.FailurePolicy.IsValid() {
		return fmt.Errorf("failure policy must be %q or %q (got %q)", FailFast, Isolate, c.FailurePolicy)
	}
	if !c.ListPolicy.IsValid() {
		return fmt.Errorf("list policy must be %q or %q (got %q)", Serialize, Concurrent, c.ListPolicy)
	}
	if c.ReadyTimeout < 0 {
		return fmt.Errorf("ready timeout cannot be negative (got %v)", c.ReadyTimeout)
	}
	return nil
}
