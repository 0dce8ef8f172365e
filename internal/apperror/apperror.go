// Package apperror defines the error kinds shared by every layer.
//
// Services and repositories return *AppError values; handlers translate the
// kind (found with errors.Is) into an HTTP status. A plain error that is not
// an *AppError is treated as an internal failure and never shown to a client.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

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

// Conflict reports a uniqueness violation on one field of a resource,
// e.g. Conflict("user", "username").
func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with this %s already exists", resource, field),
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned for bad credentials or a missing session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Persistence wraps a store failure. Both ErrPersistence and the original
// cause stay reachable through errors.Is, but the message shown to users is
// fixed: store errors can carry SQL or file paths.
//
// op names what was being attempted ("loading cycle", "saving entry") and
// ends up in the message so the user knows what to retry.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %w", ErrPersistence, op, cause),
		Message: fmt.Sprintf("%s failed, please try again", op),
	}
}

// IsKind reports whether err is an *AppError anywhere in its chain.
// Used to avoid double-wrapping: a NotFound from a repository should reach the
// handler as NotFound, not as a Persistence failure.
func IsKind(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}
