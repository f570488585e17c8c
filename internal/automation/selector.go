package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// ErrUnknownTrigger is returned for automations whose trigger has no selector.
var ErrUnknownTrigger = errors.New("automation: unknown trigger")

// Source is the read model candidate selection runs against.
type Source interface {
	ListClientsCreatedBetween(ctx context.Context, studioID string, from, to time.Time) ([]persistence.Client, error)
	ListBookings(ctx context.Context, query persistence.BookingQuery) ([]persistence.BookingDetail, error)
	// ListClientsWithoutBookingsSince returns clients with no booking created at or after since.
	ListClientsWithoutBookingsSince(ctx context.Context, studioID string, since time.Time) ([]persistence.Client, error)
	// ListClientsByBirthday matches clients whose date of birth has one of the given "MM-DD" values.
	ListClientsByBirthday(ctx context.Context, studioID string, monthDays []string) ([]persistence.Client, error)
	ListSubscriptionsEndingBetween(ctx context.Context, studioID string, statuses []persistence.SubscriptionStatus, from, to time.Time) ([]persistence.SubscriptionDetail, error)
}

// Evaluation is the context a selector evaluates one automation in.
type Evaluation struct {
	Automation persistence.Automation
	Studio     persistence.Studio
	// Location is the studio's zone; calendar-based triggers use it.
	Location *time.Location
	Now      time.Time
}

func (e Evaluation) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// Candidate is one potential notification.
type Candidate struct {
	Client persistence.Client
	Vars   map[string]string
	// Key is the trigger-local idempotency key, before namespacing.
	Key string
}

// Selector computes the candidate set for one automation.
type Selector func(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error)

// Registry dispatches automations to their trigger's selector.
type Registry struct {
	selectors map[Trigger]Selector
}

// NewRegistry returns a registry with a selector for every built-in trigger.
func NewRegistry() *Registry {
	r := &Registry{selectors: make(map[Trigger]Selector, len(Triggers))}
	r.Register(TriggerWelcome, selectWelcome)
	r.Register(TriggerBookingConfirmed, selectBookingConfirmed)
	r.Register(TriggerBookingCancelled, selectBookingCancelled)
	r.Register(TriggerClassReminder, selectClassReminder)
	r.Register(TriggerClassFollowup, selectClassFollowup)
	r.Register(TriggerClientInactive, selectClientInactive)
	r.Register(TriggerBirthday, selectBirthday)
	r.Register(TriggerMembershipExpiring, selectMembershipExpiring)
	return r
}

// Register installs or replaces the selector for trigger.
func (r *Registry) Register(trigger Trigger, selector Selector) {
	if r.selectors == nil {
		r.selectors = make(map[Trigger]Selector)
	}
	r.selectors[trigger] = selector
}

// Select evaluates the automation in ev and returns its candidates.
func (r *Registry) Select(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	trigger, err := ParseTrigger(ev.Automation.Trigger)
	if err != nil {
		return nil, err
	}
	selector, ok := r.selectors[trigger]
	if !ok || selector == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, trigger)
	}
	return selector(ctx, src, ev)
}

func selectWelcome(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	clients, err := src.ListClientsCreatedBetween(ctx, ev.Studio.ID, ev.Now.Add(-RecentWindow), ev.Now)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(clients))
	for _, client := range clients {
		candidates = append(candidates, Candidate{
			Client: client,
			Vars:   clientVars(ev, client),
			Key:    welcomeKey(client.ID),
		})
	}
	return candidates, nil
}

func selectBookingConfirmed(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	from := ev.Now.Add(-RecentWindow)
	bookings, err := src.ListBookings(ctx, persistence.BookingQuery{
		StudioID:    ev.Studio.ID,
		Statuses:    []persistence.BookingStatus{persistence.BookingConfirmed},
		LocationID:  ev.Automation.LocationID,
		CreatedFrom: &from,
		CreatedTo:   &ev.Now,
	})
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(bookings))
	for _, detail := range bookings {
		candidates = append(candidates, Candidate{
			Client: detail.Client,
			Vars:   bookingVars(ev, detail),
			Key:    bookingConfirmedKey(detail.Booking.ID),
		})
	}
	return candidates, nil
}

func selectBookingCancelled(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	from := ev.Now.Add(-RecentWindow)
	bookings, err := src.ListBookings(ctx, persistence.BookingQuery{
		StudioID:      ev.Studio.ID,
		Statuses:      []persistence.BookingStatus{persistence.BookingCancelled},
		LocationID:    ev.Automation.LocationID,
		CancelledFrom: &from,
		CancelledTo:   &ev.Now,
	})
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(bookings))
	for _, detail := range bookings {
		candidates = append(candidates, Candidate{
			Client: detail.Client,
			Vars:   bookingVars(ev, detail),
			Key:    bookingCancelledKey(detail.Booking.ID),
		})
	}
	return candidates, nil
}

func selectClassReminder(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	hours := intOrDefault(ev.Automation.ReminderHours, DefaultReminderHours)
	offset := time.Duration(hours) * time.Hour

	to := ev.Now.Add(ReminderHorizon)
	bookings, err := src.ListBookings(ctx, persistence.BookingQuery{
		StudioID:         ev.Studio.ID,
		Statuses:         []persistence.BookingStatus{persistence.BookingConfirmed},
		LocationID:       ev.Automation.LocationID,
		SessionStartFrom: &ev.Now,
		SessionStartTo:   &to,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0)
	for _, detail := range bookings {
		if !inLookback(detail.Session.Start.Add(-offset), ev.Now) {
			continue
		}
		vars := bookingVars(ev, detail)
		vars["reminderHours"] = fmt.Sprintf("%d", hours)
		candidates = append(candidates, Candidate{
			Client: detail.Client,
			Vars:   vars,
			Key:    classReminderKey(detail.Booking.ID, hours),
		})
	}
	return candidates, nil
}

func selectClassFollowup(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	delay := intOrDefault(ev.Automation.TriggerDelay, DefaultFollowupDelay)
	offset := time.Duration(delay) * time.Minute

	from := ev.Now.Add(-offset - LookbackWindow)
	bookings, err := src.ListBookings(ctx, persistence.BookingQuery{
		StudioID:       ev.Studio.ID,
		Statuses:       []persistence.BookingStatus{persistence.BookingConfirmed, persistence.BookingCompleted},
		LocationID:     ev.Automation.LocationID,
		SessionEndFrom: &from,
		SessionEndTo:   &ev.Now,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0)
	for _, detail := range bookings {
		if !inLookback(detail.Session.End.Add(offset), ev.Now) {
			continue
		}
		candidates = append(candidates, Candidate{
			Client: detail.Client,
			Vars:   bookingVars(ev, detail),
			Key:    classFollowupKey(detail.Booking.ID, delay),
		})
	}
	return candidates, nil
}

func selectClientInactive(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	days := intOrDefault(ev.Automation.TriggerDays, DefaultInactiveDays)
	cutoff := ev.Now.AddDate(0, 0, -days)

	clients, err := src.ListClientsWithoutBookingsSince(ctx, ev.Studio.ID, cutoff)
	if err != nil {
		return nil, err
	}
	bucket := cutoff.In(ev.location())
	candidates := make([]Candidate, 0, len(clients))
	for _, client := range clients {
		vars := clientVars(ev, client)
		vars["inactiveDays"] = fmt.Sprintf("%d", days)
		candidates = append(candidates, Candidate{
			Client: client,
			Vars:   vars,
			Key:    clientInactiveKey(client.ID, bucket),
		})
	}
	return candidates, nil
}

func selectBirthday(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	today := ev.Now.In(ev.location())
	clients, err := src.ListClientsByBirthday(ctx, ev.Studio.ID, birthdayMonthDays(today))
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(clients))
	for _, client := range clients {
		candidates = append(candidates, Candidate{
			Client: client,
			Vars:   clientVars(ev, client),
			Key:    birthdayKey(client.ID, today.Year()),
		})
	}
	return candidates, nil
}

func selectMembershipExpiring(ctx context.Context, src Source, ev Evaluation) ([]Candidate, error) {
	days := intOrDefault(ev.Automation.TriggerDays, DefaultExpiringDays)
	to := ev.Now.AddDate(0, 0, days)

	subscriptions, err := src.ListSubscriptionsEndingBetween(ctx, ev.Studio.ID,
		[]persistence.SubscriptionStatus{persistence.SubscriptionActive, persistence.SubscriptionCancelled},
		ev.Now, to)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(subscriptions))
	for _, detail := range subscriptions {
		periodEnd := detail.Subscription.CurrentPeriodEnd.In(ev.location())
		vars := clientVars(ev, detail.Client)
		vars["planName"] = detail.Subscription.PlanName
		vars["expiryDate"] = periodEnd.Format(dateLayout)
		vars["daysRemaining"] = fmt.Sprintf("%d", int(detail.Subscription.CurrentPeriodEnd.Sub(ev.Now).Hours()/24))
		candidates = append(candidates, Candidate{
			Client: detail.Client,
			Vars:   vars,
			Key:    membershipExpiringKey(detail.Subscription.ID, periodEnd),
		})
	}
	return candidates, nil
}

// inLookback reports whether instant falls in (now-LookbackWindow, now].
func inLookback(instant, now time.Time) bool {
	return instant.After(now.Add(-LookbackWindow)) && !instant.After(now)
}

// birthdayMonthDays returns the MM-DD values celebrated on today. Leap-day
// birthdays are celebrated on 28 February in common years.
func birthdayMonthDays(today time.Time) []string {
	days := []string{today.Format("01-02")}
	if today.Month() == time.February && today.Day() == 28 && !isLeapYear(today.Year()) {
		days = append(days, "02-29")
	}
	return days
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func intOrDefault(value *int, fallback int) int {
	if value == nil || *value <= 0 {
		return fallback
	}
	return *value
}
