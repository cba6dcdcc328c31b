// Package domain contains the quoting model: meshes, line items, quotes and
// the pricing rules that connect them.
//
// Errors here describe business failures only. Adapters decide how each
// one is presented, e.g. the HTTP layer maps ErrGone to 410.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested quote or line item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a concurrent modification (version mismatch).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates caller input or derived geometry broke a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrProcessing indicates the mesh data itself could not be read.
	ErrProcessing = errors.New("processing failed")

	// ErrGone indicates the entity exists but has expired.
	ErrGone = errors.New("gone")

	// ErrUnavailable indicates a required dependency is unavailable.
	ErrUnavailable = errors.New("unavailable")
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError provides context for conflict errors.
type ConflictError struct {
	Entity  string
	Reason  string
	Details string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s conflict: %s (%s)", e.Entity, e.Reason, e.Details)
	}

	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a conflict error with context.
func NewConflictError(entity, reason string) error {
	return &ConflictError{Entity: entity, Reason: reason}
}

// NewVersionConflictError reports an optimistic concurrency failure.
func NewVersionConflictError(entity string, expected, actual int64) error {
	return &ConflictError{
		Entity:  entity,
		Reason:  "modified concurrently",
		Details: fmt.Sprintf("expected version %d, found %d", expected, actual),
	}
}

// ValidationError is a caller-correctable business rule violation.
// It is never retried automatically.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// ProcessingError reports unreadable or corrupt mesh data.
// The remedy is fixing the file, not the request parameters.
type ProcessingError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns both the sentinel and the cause so errors.Is and errors.As
// see through to either.
func (e *ProcessingError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrProcessing}
	}

	return []error{ErrProcessing, e.Cause}
}

// NewProcessingError creates a processing error wrapping the parser failure.
func NewProcessingError(message string, cause error) error {
	return &ProcessingError{Message: message, Cause: cause}
}

// GoneError reports an entity that still exists but may no longer be used.
type GoneError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *GoneError) Error() string {
	return fmt.Sprintf("%s with id %q has expired", e.Entity, e.ID)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *GoneError) Unwrap() error {
	return ErrGone
}

// NewGoneError creates a gone error with context.
func NewGoneError(entity, id string) error {
	return &GoneError{Entity: entity, ID: id}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsProcessing checks if an error is a mesh processing error.
func IsProcessing(err error) bool {
	return errors.Is(err, ErrProcessing)
}

// IsGone checks if an error reports an expired entity.
func IsGone(err error) bool {
	return errors.Is(err, ErrGone)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
