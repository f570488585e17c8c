package automation

import (
	"fmt"
	"time"
)

// IdempotencyKey namespaces an inner candidate key by automation and trigger
// so one entity satisfying several rules yields distinct keys.
func IdempotencyKey(automationID string, trigger Trigger, innerKey string) string {
	return fmt.Sprintf("automation:%s:%s:%s", automationID, trigger, innerKey)
}

func welcomeKey(clientID string) string {
	return "welcome:" + clientID
}

func bookingConfirmedKey(bookingID string) string {
	return "booking_confirmed:" + bookingID
}

func bookingCancelledKey(bookingID string) string {
	return "booking_cancelled:" + bookingID
}

func classReminderKey(bookingID string, reminderHours int) string {
	return fmt.Sprintf("class_reminder:%s:%d", bookingID, reminderHours)
}

func classFollowupKey(bookingID string, delayMinutes int) string {
	return fmt.Sprintf("class_followup:%s:%d", bookingID, delayMinutes)
}

func clientInactiveKey(clientID string, cutoff time.Time) string {
	return fmt.Sprintf("client_inactive:%s:%s", clientID, cutoff.Format(time.DateOnly))
}

func birthdayKey(clientID string, year int) string {
	return fmt.Sprintf("birthday:%s:%d", clientID, year)
}

func membershipExpiringKey(subscriptionID string, periodEnd time.Time) string {
	return fmt.Sprintf("membership_expiring:%s:%s", subscriptionID, periodEnd.Format(time.DateOnly))
}
