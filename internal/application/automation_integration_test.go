package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/notify"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/testfixtures"
)

type automationHarness struct {
	*testfixtures.SQLiteHarness
	clock  *testfixtures.Clock
	sender *testfixtures.RecordingSender
	svc    *application.AutomationService
}

func newAutomationHarness(t *testing.T, policy application.DedupePolicy, studios ...testfixtures.StudioFixture) automationHarness {
	t.Helper()
	h := automationHarness{
		SQLiteHarness: testfixtures.NewSQLiteHarness(t),
		clock:         testfixtures.NewClock(testfixtures.ReferenceTime()),
		sender:        &testfixtures.RecordingSender{},
	}
	for _, studio := range studios {
		h.SeedStudio(t, studio)
	}
	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(h.clock))
	h.svc = factory.NewAutomationService(h.SQLiteHarness, h.sender, policy, nil)
	return h
}

func (h automationHarness) run(t *testing.T) application.RunSummary {
	t.Helper()
	summary, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return summary
}

func (h automationHarness) messages(t *testing.T, studioID, automationID string) []persistence.Message {
	t.Helper()
	messages, err := h.Messages.ListMessages(context.Background(), studioID, automationID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	return messages
}

func TestWelcomeAutomationWindowAndIdempotency(t *testing.T) {
	studio := testfixtures.NewStudioFixture("welcome")
	h := newAutomationHarness(t, application.DedupeAny, studio)
	now := h.clock.Current()

	h.AddClient(t, persistence.Client{ID: "welcome-bea", StudioID: studio.Studio.ID, FirstName: "Bea", Email: "bea@example.com", CreatedAt: now.Add(-29 * 24 * time.Hour)})
	h.AddClient(t, persistence.Client{ID: "welcome-carl", StudioID: studio.Studio.ID, FirstName: "Carl", Email: "carl@example.com", CreatedAt: now.Add(-31 * 24 * time.Hour)})
	rule := testfixtures.NewAutomationFixture(studio, "WELCOME")
	h.AddAutomation(t, rule)

	first := h.run(t)
	if first.TotalCandidates != 2 || first.TotalSent != 2 {
		t.Fatalf("expected Ana and Bea to be welcomed, got %+v", first)
	}
	for _, message := range h.sender.Messages() {
		if message.To == "carl@example.com" {
			t.Fatalf("client created 31 days ago must not be welcomed")
		}
	}

	second := h.run(t)
	if second.TotalSent != 0 || second.TotalDuplicates != 2 {
		t.Fatalf("expected the second run to send nothing, got %+v", second)
	}
	if got := len(h.sender.Messages()); got != 2 {
		t.Fatalf("expected exactly two provider calls, got %d", got)
	}

	stored := h.messages(t, studio.Studio.ID, rule.ID)
	if len(stored) != 2 {
		t.Fatalf("expected two outbox rows, got %d", len(stored))
	}
	for _, message := range stored {
		if message.Status != persistence.MessageSent || message.SentAt == nil {
			t.Fatalf("expected SENT row, got %+v", message)
		}
		if message.ProviderMessageID != "provider-"+message.ThreadID {
			t.Fatalf("expected provider id to be recorded, got %q", message.ProviderMessageID)
		}
	}

	saved, err := h.Automations.GetAutomation(context.Background(), studio.Studio.ID, rule.ID)
	if err != nil {
		t.Fatalf("GetAutomation failed: %v", err)
	}
	if saved.TotalSent != 2 || saved.TotalDelivered != 2 {
		t.Fatalf("expected counters of 2, got sent=%d delivered=%d", saved.TotalSent, saved.TotalDelivered)
	}
}

func TestClassReminderFiresOnceAtOffset(t *testing.T) {
	studio := testfixtures.NewStudioFixture("remind")
	h := newAutomationHarness(t, application.DedupeAny, studio)
	now := h.clock.Current()

	var bookings []string
	for _, hours := range []int{23, 24, 25} {
		session := testfixtures.NewSessionFixture(studio,
			testfixtures.WithSessionWindow(now.Add(time.Duration(hours)*time.Hour), time.Hour))
		h.AddSessions(t, session)
		booking := testfixtures.NewBookingFixture(studio, session.ID, persistence.BookingConfirmed, now.Add(-24*time.Hour))
		h.AddBooking(t, booking)
		bookings = append(bookings, booking.ID)
	}
	rule := testfixtures.NewAutomationFixture(studio, "CLASS_REMINDER",
		testfixtures.WithReminderHours(24),
		testfixtures.WithAutomationBody("{{className}} with {{teacherName}} on {{classDate}} at {{classTime}}"))
	h.AddAutomation(t, rule)

	first := h.run(t)
	if first.TotalSent != 1 {
		t.Fatalf("expected only the session 24h out to be reminded, got %+v", first)
	}
	sent := h.sender.Messages()[0]
	if want := "Reformer with Teacher 1 on Tuesday, March 5 at 12:00 PM"; sent.Text != want {
		t.Fatalf("unexpected reminder text %q, want %q", sent.Text, want)
	}
	if want := "automation:" + rule.ID + ":CLASS_REMINDER:class_reminder:" + bookings[1] + ":24"; sent.ThreadID != want {
		t.Fatalf("unexpected thread id %q, want %q", sent.ThreadID, want)
	}

	h.clock.Advance(10 * time.Minute)
	again := h.run(t)
	if again.TotalSent != 0 || again.TotalDuplicates != 1 {
		t.Fatalf("expected the overlapping lookback to dedupe, got %+v", again)
	}

	h.clock.Set(now.Add(time.Hour))
	later := h.run(t)
	if later.TotalSent != 1 || len(h.sender.Messages()) != 2 {
		t.Fatalf("expected the 25h session to be reminded an hour later, got %+v", later)
	}
}

func TestSentOnlyPolicyRetriesFailedDelivery(t *testing.T) {
	studio := testfixtures.NewStudioFixture("retry")
	h := newAutomationHarness(t, application.DedupeSentOnly, studio)
	rule := testfixtures.NewAutomationFixture(studio, "WELCOME")
	h.AddAutomation(t, rule)

	h.sender.SetReject(true)
	first := h.run(t)
	if first.TotalFailed != 1 || first.TotalSkipped != 1 || first.TotalSent != 0 {
		t.Fatalf("expected one failed delivery, got %+v", first)
	}
	stored := h.messages(t, studio.Studio.ID, rule.ID)
	if len(stored) != 1 || stored[0].Status != persistence.MessageFailed || stored[0].FailureReason != "provider rejected" {
		t.Fatalf("expected FAILED outbox row, got %+v", stored)
	}

	h.sender.SetReject(false)
	h.clock.Advance(time.Minute)
	second := h.run(t)
	if second.TotalSent != 1 {
		t.Fatalf("expected retry to succeed, got %+v", second)
	}
	stored = h.messages(t, studio.Studio.ID, rule.ID)
	if len(stored) != 1 || stored[0].Status != persistence.MessageSent || stored[0].FailureReason != "" {
		t.Fatalf("expected the same row to be marked SENT, got %+v", stored)
	}

	third := h.run(t)
	if third.TotalDuplicates != 1 || len(h.sender.Messages()) != 2 {
		t.Fatalf("expected no further sends, got %+v", third)
	}
	saved, err := h.Automations.GetAutomation(context.Background(), studio.Studio.ID, rule.ID)
	if err != nil || saved.TotalSent != 1 {
		t.Fatalf("expected one counted send, got %+v, %v", saved, err)
	}
}

func TestCancelledRunLeavesRetryableOutbox(t *testing.T) {
	studio := testfixtures.NewStudioFixture("cancel")
	h := newAutomationHarness(t, application.DedupeSentOnly, studio)
	now := h.clock.Current()
	h.AddClient(t, persistence.Client{ID: "cancel-bea", StudioID: studio.Studio.ID, FirstName: "Bea", Email: "bea@example.com", CreatedAt: now.Add(-time.Hour)})
	rule := testfixtures.NewAutomationFixture(studio, "WELCOME")
	h.AddAutomation(t, rule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sender.SetOnSend(func(ctx context.Context, _ notify.Message) error {
		cancel()
		return ctx.Err()
	})
	first, err := h.svc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if first.TotalCandidates != 2 || first.TotalFailed != 1 || first.Results[0].Error != "interrupted" {
		t.Fatalf("expected one failed send in an interrupted pass, got %+v", first)
	}
	stored := h.messages(t, studio.Studio.ID, rule.ID)
	if len(stored) != 1 || stored[0].Status != persistence.MessageFailed || stored[0].FailureReason != context.Canceled.Error() {
		t.Fatalf("expected a single FAILED row, got %+v", stored)
	}

	h.sender.SetOnSend(nil)
	h.clock.Advance(time.Minute)
	second := h.run(t)
	if second.TotalSent != 2 || second.TotalDuplicates != 0 {
		t.Fatalf("expected both clients to be delivered on the next run, got %+v", second)
	}
	stored = h.messages(t, studio.Studio.ID, rule.ID)
	if len(stored) != 2 || stored[0].Status != persistence.MessageSent || stored[1].Status != persistence.MessageSent {
		t.Fatalf("expected two SENT rows, got %+v", stored)
	}
}

func TestSMSAutomationSkipsClientsWithoutPhone(t *testing.T) {
	studio := testfixtures.NewStudioFixture("sms")
	h := newAutomationHarness(t, application.DedupeAny, studio)
	h.AddClient(t, persistence.Client{ID: "sms-dan", StudioID: studio.Studio.ID, FirstName: "Dan", Email: "dan@example.com", CreatedAt: h.clock.Current().Add(-time.Hour)})
	rule := testfixtures.NewAutomationFixture(studio, "WELCOME", testfixtures.WithAutomationChannel(persistence.ChannelSMS))
	h.AddAutomation(t, rule)

	summary := h.run(t)
	if summary.TotalSent != 1 || summary.TotalSkipped != 1 || summary.TotalFailed != 0 {
		t.Fatalf("expected one SMS and one skip, got %+v", summary)
	}
	if got := h.sender.Messages()[0]; got.To != studio.Client.Phone || got.Channel != persistence.ChannelSMS {
		t.Fatalf("unexpected SMS: %+v", got)
	}
	if got := len(h.messages(t, studio.Studio.ID, rule.ID)); got != 1 {
		t.Fatalf("skipped clients must not leave outbox rows, got %d", got)
	}
}

func TestAutomationRunCoversEveryStudioAndIgnoresPaused(t *testing.T) {
	north := testfixtures.NewStudioFixture("north")
	south := testfixtures.NewStudioFixture("south")
	h := newAutomationHarness(t, application.DedupeAny, north, south)

	h.AddAutomation(t, testfixtures.NewAutomationFixture(north, "WELCOME"))
	h.AddAutomation(t, testfixtures.NewAutomationFixture(south, "WELCOME"))
	h.AddAutomation(t, testfixtures.NewAutomationFixture(south, "BIRTHDAY", testfixtures.WithAutomationStatus(persistence.AutomationPaused)))

	summary := h.run(t)
	if summary.Automations != 2 || summary.TotalSent != 2 {
		t.Fatalf("expected one welcome per studio, got %+v", summary)
	}
	seen := map[string]bool{}
	for _, result := range summary.Results {
		seen[result.StudioID] = true
		if result.Error != "" {
			t.Fatalf("unexpected automation error: %+v", result)
		}
	}
	if !seen["north"] || !seen["south"] {
		t.Fatalf("expected both studios processed, got %v", seen)
	}
	for _, message := range h.sender.Messages() {
		if message.Text != "Hi Ana, welcome to Studio north" && message.Text != "Hi Ana, welcome to Studio south" {
			t.Fatalf("unexpected rendered text %q", message.Text)
		}
	}
}
