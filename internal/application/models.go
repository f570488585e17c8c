package application

import (
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/scheduler"
)

// SessionInput captures caller provided class session fields.
type SessionInput struct {
	ClassTypeID string
	TeacherID   string
	LocationID  string
	Start       time.Time
	End         time.Time
	// Capacity defaults to the class type capacity when nil.
	Capacity *int
}

// RecurringInput describes a weekly series. Days holds weekday numbers
// (0 = Sunday) and Duration is in minutes.
type RecurringInput struct {
	Days      []int
	EndDate   time.Time
	Time      string
	Duration  int
	SkipFirst bool
}

// SkipReason explains why a recurring occurrence was not created.
type SkipReason string

const (
	SkipReasonBlockedTime SkipReason = "blocked_time"
	SkipReasonConflict    SkipReason = "conflict"
)

// SkippedOccurrence reports one occurrence left out of a recurring series.
type SkippedOccurrence struct {
	Date      string
	Start     time.Time
	End       time.Time
	Reason    SkipReason
	Conflicts []scheduler.Conflict
}

// RecurringResult summarises a recurring create.
type RecurringResult struct {
	RecurringGroupID string
	Created          []Session
	SkippedBlocked   int
	SkippedConflict  int
	Skipped          []SkippedOccurrence
}

// Session is a scheduled class session as returned to callers.
type Session struct {
	ID               string
	StudioID         string
	ClassTypeID      string
	TeacherID        string
	LocationID       string
	Start            time.Time
	End              time.Time
	Capacity         int
	RecurringGroupID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionListing is a session decorated for calendar views.
type SessionListing struct {
	Session
	ClassTypeName  string
	TeacherName    string
	LocationName   string
	ActiveBookings int
}

// SessionTarget selects the sessions a bulk operation applies to. Exactly
// one of IDs or RecurringGroupID must be set.
type SessionTarget struct {
	IDs              []string
	RecurringGroupID string
	// FutureOnly restricts the target to sessions that have not started.
	FutureOnly bool
}

// BulkDeleteResult reports the outcome of a bulk delete.
type BulkDeleteResult struct {
	Deleted int
}

// ReassignInput names the new teacher and/or location for a bulk reassign.
type ReassignInput struct {
	Target     SessionTarget
	TeacherID  *string
	LocationID *string
}

// BulkReassignResult reports the outcome of a bulk reassign.
// SessionsWithBookings counts updated sessions that carry active bookings,
// which callers surface as a warning.
type BulkReassignResult struct {
	Updated              int
	SessionsWithBookings int
}

// ConflictQuery is a dry-run conflict check request.
type ConflictQuery struct {
	TeacherID  string
	LocationID string
	Start      time.Time
	End        time.Time
	// ExcludeSessionID ignores one session, for checking a move of an existing session.
	ExcludeSessionID string
}

// ConflictReport is the result of a dry-run conflict check.
type ConflictReport struct {
	Conflicts []scheduler.Conflict
}
