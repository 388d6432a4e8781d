// Package apperror defines the error kinds the linking service can report.
//
// Every failure a caller can observe falls into exactly one of these kinds.
// Handlers map them to HTTP status codes with errors.Is, so the kinds must
// never be folded into one another on the way up.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("upstream unavailable")
	ErrStorage     = errors.New("storage error")
)

type AppError struct {
	Err     error  // sentinel kind, one of the Err* values above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel so errors.Is(err, ErrStorage) and friends work.
// Cause is not part of the chain: a storage error caused by a cancelled
// context is still a storage error, not context.Canceled.
func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unavailable reports a transient failure talking to an upstream service.
// Callers should retry later; nothing was changed locally.
func Unavailable(service string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s is unavailable", service),
		Cause:   cause,
	}
}

// Storage reports that the durable store failed while performing op.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: fmt.Sprintf("storage failure while %s", op),
		Cause:   cause,
	}
}

// CauseOf returns the underlying cause recorded on an AppError in err's chain,
// or err itself when there is none.
func CauseOf(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause
	}
	return err
}
