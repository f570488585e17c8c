package application

import (
	"errors"
	"fmt"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the caller failed shared-secret authentication.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// OwnershipError reports a referenced entity that does not belong to the
// requesting studio. It is raised before any write.
type OwnershipError struct {
	Field string
	ID    string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("application: %s %q does not belong to this studio", e.Field, e.ID)
}

// ConflictError rejects a write that would double-book a teacher or location
// or collide with a blocked time.
type ConflictError struct {
	Conflicts []scheduler.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("application: %d scheduling conflict(s)", len(e.Conflicts))
}

// RecurringConflictError is returned when no occurrence of a recurring series
// could be created. Skipped lists every occurrence with its reason.
type RecurringConflictError struct {
	Skipped []SkippedOccurrence
}

func (e *RecurringConflictError) Error() string {
	return fmt.Sprintf("application: all %d occurrence(s) conflict", len(e.Skipped))
}

// BookingSafetyError refuses a bulk delete whose target set holds sessions
// with active bookings. Nothing is mutated.
type BookingSafetyError struct {
	SessionCount int
}

func (e *BookingSafetyError) Error() string {
	return fmt.Sprintf("application: %d session(s) have active bookings", e.SessionCount)
}
