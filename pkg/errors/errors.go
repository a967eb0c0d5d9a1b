// Package errors defines the service error taxonomy: sentinel errors for
// the recoverable/not-recoverable classes, an AppError wrapper carrying an
// HTTP status, and helpers to map any error to a response code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound reports that a referenced entity (concept, description,
	// reference set) does not exist in the loaded release.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConstraint reports that the caller-supplied constraint
	// expression could not be converted. User error, never internal.
	ErrInvalidConstraint = errors.New("invalid constraint expression")
	// ErrInternalQuery reports that a machine-generated query failed to
	// resolve, parse, or execute. Always an internal bug, never user input.
	ErrInternalQuery = errors.New("internal query error")
	// ErrStoreUnavailable reports that the release snapshot is not loaded.
	ErrStoreUnavailable = errors.New("release store unavailable")
	// ErrInvalidInput reports malformed request parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// ConceptNotFoundError is the not-found specialisation for direct
// single-concept lookups, keyed by the concept id that was requested.
type ConceptNotFoundError struct {
	ConceptID string
}

func (e *ConceptNotFoundError) Error() string {
	return fmt.Sprintf("concept not found: %s", e.ConceptID)
}

func (e *ConceptNotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConceptNotFound creates a ConceptNotFoundError for the given id.
func ConceptNotFound(conceptID string) error {
	return &ConceptNotFoundError{ConceptID: conceptID}
}

// InvalidConstraintError carries the original constraint text so callers can
// echo the offending expression back to the user.
type InvalidConstraintError struct {
	Expression string
	Cause      error
}

func (e *InvalidConstraintError) Error() string {
	return fmt.Sprintf("invalid constraint expression %q: %v", e.Expression, e.Cause)
}

func (e *InvalidConstraintError) Unwrap() error {
	return ErrInvalidConstraint
}

// AppError wraps a sentinel with a message and an HTTP status code.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError from a sentinel, status code, and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf creates an AppError with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// HTTPStatusCode maps an error to the HTTP status the API layer should
// return. Internal query failures deliberately surface as 500: they are
// bugs in the compilation pipeline, not bad requests.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidConstraint), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
