/*
errors.go - Centralized error types for the payout engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them) so callers can branch with
  errors.Is / errors.As without knowing which component failed.

ERROR CATEGORIES:
  1. Validation errors - Missing or invalid plan terms, fail fast, no writes
  2. Not-found errors  - Referenced plan/agent/subscription/investment absent
  3. Persistence errors - Bulk write failures, surfaced to the caller
  4. Lifecycle errors   - Approval/settlement transitions that are not allowed

RETRIES:
  The engine never retries. IsRetryable only tells the caller that a
  persistence failure happened before anything became visible, so the whole
  generation may be attempted again.

SEE ALSO:
  - validate.go: Converts validator/v10 failures into ValidationError
  - audit.go: Audit failures are logged here, never returned
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when inputs or plan terms are invalid.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned when a write to the store fails.
	ErrPersistence = errors.New("persistence failed")

	// ErrInvalidTransition is returned when an approval lifecycle change is
	// not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadySettled is returned when settling a settled subscription.
	ErrAlreadySettled = errors.New("already settled")

	// ErrAlreadyPaid is returned when marking a paid payout event as paid.
	ErrAlreadyPaid = errors.New("already paid")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a field-level ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // e.g., "plan", "agent", "subscription"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PersistenceError wraps a store failure with the operation that failed.
// It matches both ErrPersistence and the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persist wraps err as a PersistenceError, passing nil and already
// classified errors through.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// TransitionError describes a refused lifecycle change.
type TransitionError struct {
	Kind string
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Kind, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrAlreadyPaid)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for lifecycle errors that reflect current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrAlreadyPaid)
}
