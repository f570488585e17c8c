// Package automation evaluates messaging automation rules: it maps each
// trigger to a candidate selector, derives idempotency keys, and renders
// message templates. It performs no writes.
package automation

import (
	"fmt"
	"strings"
	"time"
)

// Trigger identifies the event family an automation reacts to.
type Trigger string

const (
	TriggerWelcome            Trigger = "WELCOME"
	TriggerBookingConfirmed   Trigger = "BOOKING_CONFIRMED"
	TriggerBookingCancelled   Trigger = "BOOKING_CANCELLED"
	TriggerClassReminder      Trigger = "CLASS_REMINDER"
	TriggerClassFollowup      Trigger = "CLASS_FOLLOWUP"
	TriggerClientInactive     Trigger = "CLIENT_INACTIVE"
	TriggerBirthday           Trigger = "BIRTHDAY"
	TriggerMembershipExpiring Trigger = "MEMBERSHIP_EXPIRING"
)

// Triggers lists every supported trigger in evaluation order.
var Triggers = []Trigger{
	TriggerWelcome,
	TriggerBookingConfirmed,
	TriggerBookingCancelled,
	TriggerClassReminder,
	TriggerClassFollowup,
	TriggerClientInactive,
	TriggerBirthday,
	TriggerMembershipExpiring,
}

// ParseTrigger normalises a stored trigger name.
func ParseTrigger(value string) (Trigger, error) {
	candidate := Trigger(strings.ToUpper(strings.TrimSpace(value)))
	for _, trigger := range Triggers {
		if trigger == candidate {
			return trigger, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTrigger, value)
}

const (
	// RecentWindow bounds the event-style triggers (welcome, booking confirmed/cancelled).
	RecentWindow = 30 * 24 * time.Hour
	// LookbackWindow is the evaluation slack for offset triggers. A candidate
	// qualifies when its computed send instant falls in (now-LookbackWindow, now].
	LookbackWindow = 30 * time.Minute
	// ReminderHorizon bounds how far ahead reminder candidates are loaded.
	ReminderHorizon = 72 * time.Hour

	DefaultReminderHours = 24
	DefaultFollowupDelay = 60
	DefaultInactiveDays  = 30
	DefaultExpiringDays  = 7
)
