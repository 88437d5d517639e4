package dupes

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a search is started while another is running.
	ErrBusy = errors.New("a duplicate search is already running")

	// ErrCancelled marks a run ended by the user. It is a terminal state,
	// not a failure; callers must not surface it as an error message.
	ErrCancelled = errors.New("search cancelled")

	// ErrNoRoots is returned for a request with an empty root set.
	ErrNoRoots = errors.New("no search roots supplied")

	// ErrNoCriteria is returned when every grouping criterion is disabled.
	ErrNoCriteria = errors.New("at least one grouping criterion must be enabled")
)

// InvalidRootError reports a root path that does not exist or cannot be
// read. A single bad root is skipped; Find fails with a joined
// InvalidRootError only when every root is bad.
type InvalidRootError struct {
	Root string
	Err  error
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("invalid root %q: %v", e.Root, e.Err)
}

func (e *InvalidRootError) Unwrap() error { return e.Err }
