package finder

import (
	"errors"
	"fmt"
)

// ErrRegistryClosed is returned by Register and ListKernels after Close.
var ErrRegistryClosed = errors.New("kernel finder registry is closed")

// ErrNotReady is used by finders that were closed before their initial scan
// finished.
var ErrNotReady = errors.New("kernel finder closed before becoming ready")

// FinderError attributes a failure to a specific finder.
type FinderError struct {
	FinderID string
	Op       string // "ready" or "list"
	Err      error
}

func (e *FinderError) Error() string {
	return fmt.Sprintf("kernel finder %s: %s: %v", e.FinderID, e.Op, e.Err)
}

func (e *FinderError) Unwrap() error {
	return e.Err
}
