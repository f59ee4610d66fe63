package occupancy

import (
	"errors"
	"fmt"
)

// ErrUnknownCause stands in for a QueryError built without an underlying error.
var ErrUnknownCause = errors.New("occupancy: unknown cause")

// QueryError reports a failed fetch for a window.
//
// It is recoverable: the cache keeps the last good samples and retries on the
// next poll or manual refetch.
type QueryError struct {
	Hours int
	Err   error
}

// Error implements error.
func (e *QueryError) Error() string {
	return fmt.Sprintf("occupancy: query for last %dh failed: %v", e.Hours, e.cause())
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.cause()
}

func (e *QueryError) cause() error {
	if e.Err == nil {
		return ErrUnknownCause
	}
	return e.Err
}

// NewQueryError wraps err for the given window. A nil err yields nil.
// An err that already is a *QueryError is returned unchanged.
func NewQueryError(r TimeRange, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Hours: r.Hours, Err: err}
}

// RangeError rejects a window that is not between 1 and MaxHours hours.
type RangeError struct {
	Hours int
}

// Error implements error.
func (e *RangeError) Error() string {
	return fmt.Sprintf("occupancy: range must be between 1 and %d hours, got %d", MaxHours, e.Hours)
}
