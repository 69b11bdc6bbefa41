/*
errors.go - Error kinds returned by the vacation engine

PURPOSE:
  Callers need to tell a broken rule from a broken database. Every error
  returned by this package matches exactly one sentinel with errors.Is, and the
  structured types carry the values needed to show a specific message.

ERROR KINDS:
  ErrValidation         Missing or malformed input field
  ErrInvalidDateRange   End before start, or no days in range
  ErrInsufficientBalance Days exceed what is available
  ErrNotFound           Unknown request or employee
  ErrInvalidTransition  Operation not allowed in the request's status
  ErrStorageFailure     Datastore I/O error (never retried here)

USAGE:
  _, err := manager.Approve(ctx, id)
  var short *vacation.InsufficientBalanceError
  if errors.As(err, &short) {
      fmt.Println(short.Available)
  }

SEE ALSO:
  - api/handlers.go: maps kinds to HTTP status codes
*/
package vacation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrStorageFailure      = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DateRangeError describes a range that yields no vacation days.
type DateRangeError struct {
	Start string
	End   string
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("end date %s is before start date %s", e.End, e.Start)
}

func (e *DateRangeError) Unwrap() error { return ErrInvalidDateRange }

// InsufficientBalanceError reports a request that does not fit in a balance.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Year       int
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("exceeds available days: requested %s, available %s",
		e.Requested.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "request", "employee"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError is returned when a request is not in a status that
// allows the action.
type InvalidTransitionError struct {
	RequestID RequestID
	From      Status
	Action    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s: status is %s", e.Action, e.RequestID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// StorageError wraps a datastore failure. It matches both ErrStorageFailure
// and the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageFailure, e.Err} }

// storageErr wraps err unless it already carries a domain kind.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrStorageFailure)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by the caller's input or
// the current state of the request, not by the datastore.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
