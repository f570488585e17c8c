package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

var (
	sessionCounter    uint64
	bookingCounter    uint64
	automationCounter uint64
)

// referenceTime is a Monday at noon UTC.
var referenceTime = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Studio fixtures -----------------------------

// StudioFixture is a tenant with two teachers, two locations, one class type
// and one client. Identifiers are derived from the studio ID so fixtures of
// different studios never collide.
type StudioFixture struct {
	Studio    persistence.Studio
	Teachers  []persistence.Teacher
	Locations []persistence.Location
	ClassType persistence.ClassType
	Client    persistence.Client
}

// NewStudioFixture returns a deterministic studio fixture.
func NewStudioFixture(studioID string) StudioFixture {
	f := StudioFixture{
		Studio: persistence.Studio{ID: studioID, Name: "Studio " + studioID, Timezone: "UTC", CreatedAt: referenceTime},
		ClassType: persistence.ClassType{
			ID: studioID + "-reformer", StudioID: studioID, Name: "Reformer",
			DurationMinutes: 50, Capacity: 8, CreatedAt: referenceTime,
		},
		Client: persistence.Client{
			ID: studioID + "-client-1", StudioID: studioID, FirstName: "Ana", LastName: "Lopez",
			Email: "ana@example.com", Phone: "+15550100", CreatedAt: referenceTime,
		},
	}
	for i := 1; i <= 2; i++ {
		f.Teachers = append(f.Teachers, persistence.Teacher{
			ID: fmt.Sprintf("%s-teacher-%d", studioID, i), StudioID: studioID,
			FirstName: "Teacher", LastName: fmt.Sprint(i), CreatedAt: referenceTime,
		})
		f.Locations = append(f.Locations, persistence.Location{
			ID: fmt.Sprintf("%s-room-%d", studioID, i), StudioID: studioID,
			Name: fmt.Sprintf("Room %d", i), CreatedAt: referenceTime,
		})
	}
	return f
}

// Teacher returns the n-th teacher ID (1-based).
func (f StudioFixture) Teacher(n int) string { return f.Teachers[n-1].ID }

// Location returns the n-th location ID (1-based).
func (f StudioFixture) Location(n int) string { return f.Locations[n-1].ID }

// SessionInput builds a create request for the fixture's class type.
func (f StudioFixture) SessionInput(teacher, location int, start time.Time, d time.Duration) application.SessionInput {
	return application.SessionInput{
		ClassTypeID: f.ClassType.ID,
		TeacherID:   f.Teacher(teacher),
		LocationID:  f.Location(location),
		Start:       start,
		End:         start.Add(d),
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionOption configures the generated session fixture.
type SessionOption func(*persistence.ClassSession)

// NewSessionFixture returns a 60 minute session for studio starting at
// ReferenceTime, taught by the first teacher in the first location.
func NewSessionFixture(studio StudioFixture, opts ...SessionOption) persistence.ClassSession {
	idx := atomic.AddUint64(&sessionCounter, 1)
	session := persistence.ClassSession{
		ID:          fmt.Sprintf("session-%03d", idx),
		StudioID:    studio.Studio.ID,
		ClassTypeID: studio.ClassType.ID,
		TeacherID:   studio.Teacher(1),
		LocationID:  studio.Location(1),
		Start:       referenceTime,
		End:         referenceTime.Add(time.Hour),
		Capacity:    studio.ClassType.Capacity,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *persistence.ClassSession) {
		s.ID = id
	}
}

// WithSessionWindow sets the session interval.
func WithSessionWindow(start time.Time, d time.Duration) SessionOption {
	return func(s *persistence.ClassSession) {
		s.Start = start
		s.End = start.Add(d)
	}
}

// WithSessionTeacher overrides the teacher.
func WithSessionTeacher(id string) SessionOption {
	return func(s *persistence.ClassSession) {
		s.TeacherID = id
	}
}

// WithSessionLocation overrides the location.
func WithSessionLocation(id string) SessionOption {
	return func(s *persistence.ClassSession) {
		s.LocationID = id
	}
}

// WithSessionGroup places the session in a recurring group.
func WithSessionGroup(groupID string) SessionOption {
	return func(s *persistence.ClassSession) {
		s.RecurringGroupID = &groupID
	}
}

// ----------------------------- Booking fixtures -----------------------------

// NewBookingFixture returns a booking of the studio client onto session.
func NewBookingFixture(studio StudioFixture, sessionID string, status persistence.BookingStatus, createdAt time.Time) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	booking := persistence.Booking{
		ID:        fmt.Sprintf("booking-%03d", idx),
		StudioID:  studio.Studio.ID,
		ClientID:  studio.Client.ID,
		SessionID: sessionID,
		Status:    status,
		CreatedAt: createdAt,
	}
	if status == persistence.BookingCancelled {
		cancelled := createdAt
		booking.CancelledAt = &cancelled
	}
	return booking
}

// --------------------------- Automation fixtures ---------------------------

// AutomationOption configures the generated automation fixture.
type AutomationOption func(*persistence.Automation)

// NewAutomationFixture returns an ACTIVE email automation for trigger.
func NewAutomationFixture(studio StudioFixture, trigger string, opts ...AutomationOption) persistence.Automation {
	idx := atomic.AddUint64(&automationCounter, 1)
	automation := persistence.Automation{
		ID:        fmt.Sprintf("automation-%03d", idx),
		StudioID:  studio.Studio.ID,
		Name:      fmt.Sprintf("%s automation", trigger),
		Trigger:   trigger,
		Channel:   persistence.ChannelEmail,
		Status:    persistence.AutomationActive,
		Subject:   "Hello {{firstName}}",
		Body:      "Hi {{firstName}}, welcome to {{studioName}}",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&automation)
	}
	return automation
}

// WithAutomationChannel overrides the delivery channel.
func WithAutomationChannel(channel persistence.Channel) AutomationOption {
	return func(a *persistence.Automation) {
		a.Channel = channel
	}
}

// WithAutomationBody overrides the body template.
func WithAutomationBody(body string) AutomationOption {
	return func(a *persistence.Automation) {
		a.Body = body
	}
}

// WithReminderHours sets the CLASS_REMINDER offset.
func WithReminderHours(hours int) AutomationOption {
	return func(a *persistence.Automation) {
		a.ReminderHours = &hours
	}
}

// WithAutomationStatus overrides the status.
func WithAutomationStatus(status persistence.AutomationStatus) AutomationOption {
	return func(a *persistence.Automation) {
		a.Status = status
	}
}
