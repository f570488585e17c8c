package persistence

import (
	"context"
	"time"
)

// SessionSelector identifies the target set of a bulk schedule operation.
// Exactly one of IDs or RecurringGroupID is expected to be set.
type SessionSelector struct {
	IDs              []string
	RecurringGroupID string
	// FutureOnly restricts the selection to sessions starting after Now.
	FutureOnly bool
	Now        time.Time
}

// CatalogRepository resolves tenant-owned reference entities. Lookups of an
// entity that exists under another studio return ErrNotFound.
type CatalogRepository interface {
	GetStudio(ctx context.Context, id string) (Studio, error)
	GetTeacher(ctx context.Context, studioID, id string) (Teacher, error)
	GetLocation(ctx context.Context, studioID, id string) (Location, error)
	GetClassType(ctx context.Context, studioID, id string) (ClassType, error)
}

// ScheduleReader exposes the range queries conflict detection depends on.
// Both queries return rows whose interval intersects [from, to).
type ScheduleReader interface {
	ListSessionsOverlapping(ctx context.Context, studioID string, teacherIDs, locationIDs []string, from, to time.Time) ([]ClassSession, error)
	ListBlockedTimes(ctx context.Context, studioID string, teacherIDs []string, from, to time.Time) ([]BlockedTime, error)
}

// ScheduleTx is the unit of work used by schedule write paths. Reads observe
// the transaction snapshot so a check followed by a write is atomic.
type ScheduleTx interface {
	CatalogRepository
	ScheduleReader
	InsertSessions(ctx context.Context, sessions []ClassSession) error
	SelectSessions(ctx context.Context, studioID string, selector SessionSelector) ([]ClassSession, error)
	CountSessionsWithActiveBookings(ctx context.Context, studioID string, ids []string) (int, error)
	DeleteSessions(ctx context.Context, studioID string, ids []string) (int, error)
	ReassignSessions(ctx context.Context, studioID string, ids []string, teacherID, locationID *string, updatedAt time.Time) (int, error)
}

// ScheduleRepository stores class sessions for a studio.
type ScheduleRepository interface {
	CatalogRepository
	ScheduleReader
	ListSessions(ctx context.Context, studioID string, from, to time.Time) ([]SessionListing, error)
	WithinTx(ctx context.Context, fn func(tx ScheduleTx) error) error
}

// BookingQuery filters bookings for automation candidate selection. Nil
// bounds are ignored; ranges are half-open [from, to).
type BookingQuery struct {
	StudioID         string
	Statuses         []BookingStatus
	LocationID       *string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	CancelledFrom    *time.Time
	CancelledTo      *time.Time
	SessionStartFrom *time.Time
	SessionStartTo   *time.Time
	SessionEndFrom   *time.Time
	SessionEndTo     *time.Time
}

// AutomationRepository exposes automation rules and their counters.
type AutomationRepository interface {
	ListActiveAutomations(ctx context.Context) ([]AutomationTarget, error)
	// IncrementCounters atomically bumps total_sent and total_delivered.
	IncrementCounters(ctx context.Context, studioID, automationID string) error
}

// MessageRepository is the automation outbox.
type MessageRepository interface {
	FindMessage(ctx context.Context, studioID, automationID, threadID string) (Message, error)
	// ClaimMessage inserts a QUEUED row. It returns ErrDuplicate when a row
	// with the same (studio, automation, thread) already exists.
	ClaimMessage(ctx context.Context, message Message) error
	// ReclaimFailedMessage flips an existing FAILED row back to QUEUED and
	// returns it. It returns ErrNotFound when no FAILED row matches.
	ReclaimFailedMessage(ctx context.Context, message Message) (Message, error)
	CompleteMessage(ctx context.Context, message Message) error
}
