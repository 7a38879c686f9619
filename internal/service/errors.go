package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// ValidationError reports missing or malformed input. It is always turned
// into a 400 response and never propagated further.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Conflict outcomes. ErrAlreadyReserved surfaces from settlement as 409,
// ErrNotOwner from cancellation (and subject checks) as 403.
var (
	ErrAlreadyReserved = repository.ErrConflict
	ErrNotOwner        = repository.ErrForbidden
)

// DependencyError wraps a failure of the queue, store or notification
// channel. Op names the call that failed.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *DependencyError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// detail is the error text exposed in 500 bodies: the dependency's own
// message without the operation prefix.
func detail(err error) string {
	var de *DependencyError
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return err.Error()
}
