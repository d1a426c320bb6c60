package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrSourceUnavailable means the upstream fetch failed (network, auth, rate limit).
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrPersistence means a store operation failed. It is fatal for a run.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidParam means a caller-supplied parameter is out of bounds.
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrMalformedDocument means a stored document is missing required fields.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrRunInProgress is returned when a caller refuses to wait for the active run.
	ErrRunInProgress = errors.New("run already in progress")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// SourceError marks err as an upstream failure while keeping it inspectable.
func SourceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, op, err)
}

// PersistenceError marks err as a store failure while keeping it inspectable.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
