package scan

import (
	"errors"
	"fmt"
)

var (
	// ErrNotArmed is returned by Submit when the session is not accepting reads.
	ErrNotArmed = errors.New("scan session not armed")
	// ErrBusy is returned by Submit while a lookup is outstanding.
	ErrBusy = errors.New("scan session busy")
	// ErrSuppressed is returned when a read repeats the last accepted
	// identifier inside the dedup window.
	ErrSuppressed = errors.New("duplicate scan suppressed")

	// ErrReaderUnavailable means the reader hardware or stream could not be opened.
	ErrReaderUnavailable = errors.New("reader unavailable")
	// ErrPermissionDenied means the user or platform refused reader access.
	ErrPermissionDenied = errors.New("reader permission denied")
)

// ResourceError reports a failure acquiring or operating the reader.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("scan reader %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// asResourceError classifies an Open failure. Unclassified causes are
// reported as ErrReaderUnavailable.
func asResourceError(op string, err error) *ResourceError {
	var re *ResourceError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrReaderUnavailable) {
		return &ResourceError{Op: op, Err: err}
	}
	return &ResourceError{Op: op, Err: fmt.Errorf("%w: %w", ErrReaderUnavailable, err)}
}
