package application_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/scheduler"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/testfixtures"
)

type scheduleEnv struct {
	harness *testfixtures.SQLiteHarness
	studio  testfixtures.StudioFixture
	svc     *application.ScheduleService
}

func newScheduleEnv(t *testing.T) scheduleEnv {
	t.Helper()
	harness := testfixtures.NewSQLiteHarness(t)
	studio := testfixtures.NewStudioFixture("studio-a")
	harness.SeedStudio(t, studio)
	svc := testfixtures.NewServiceFactory().NewScheduleService(harness.Schedules, nil)
	return scheduleEnv{harness: harness, studio: studio, svc: svc}
}

func (e scheduleEnv) listAll(t *testing.T) []application.SessionListing {
	t.Helper()
	from := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	listings, err := e.svc.ListSessions(context.Background(), e.studio.Studio.ID, from, from.AddDate(0, 6, 0))
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	return listings
}

// assertNoDoubleBooking checks that no two sessions sharing a teacher or a
// location overlap.
func assertNoDoubleBooking(t *testing.T, listings []application.SessionListing) {
	t.Helper()
	for i := range listings {
		for j := i + 1; j < len(listings); j++ {
			a, b := listings[i].Session, listings[j].Session
			shared := a.TeacherID == b.TeacherID || a.LocationID == b.LocationID
			if shared && scheduler.Overlaps(a.Start, a.End, b.Start, b.End) {
				t.Fatalf("sessions %s and %s double book", a.ID, b.ID)
			}
		}
	}
}

func conflictTypes(err error) []scheduler.ConflictType {
	var cErr *application.ConflictError
	if !errors.As(err, &cErr) {
		return nil
	}
	var types []scheduler.ConflictType
	for _, c := range cErr.Conflicts {
		types = append(types, c.Type)
	}
	return types
}

var (
	monday    = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	mondayAt9 = monday.Add(9 * time.Hour)
)

func TestCreateSessionConflicts(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()
	studioID := env.studio.Studio.ID

	first, err := env.svc.CreateSession(ctx, studioID, env.studio.SessionInput(1, 1, mondayAt9, time.Hour))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if first.Capacity != env.studio.ClassType.Capacity {
		t.Fatalf("expected class type capacity default, got %d", first.Capacity)
	}

	env.harness.AddBlockedTime(t, persistence.BlockedTime{
		ID: "block-1", StudioID: studioID, TeacherID: env.studio.Teacher(2),
		Start: mondayAt9.Add(3 * time.Hour), End: mondayAt9.Add(5 * time.Hour), Reason: "physio",
	})

	tests := []struct {
		name  string
		input application.SessionInput
		want  []scheduler.ConflictType
	}{
		{"same teacher overlapping", env.studio.SessionInput(1, 2, mondayAt9.Add(30*time.Minute), time.Hour), []scheduler.ConflictType{scheduler.ConflictTypeTeacher}},
		{"same location overlapping", env.studio.SessionInput(2, 1, mondayAt9.Add(30*time.Minute), time.Hour), []scheduler.ConflictType{scheduler.ConflictTypeLocation}},
		{"blocked time", env.studio.SessionInput(2, 2, mondayAt9.Add(4*time.Hour), time.Hour), []scheduler.ConflictType{scheduler.ConflictTypeBlockedTime}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateSession(ctx, studioID, tc.input)
			if got := conflictTypes(err); !slices.Equal(got, tc.want) {
				t.Fatalf("conflict types = %v, want %v (err %v)", got, tc.want, err)
			}
		})
	}

	// Back-to-back sessions share an instant but do not overlap.
	if _, err := env.svc.CreateSession(ctx, studioID, env.studio.SessionInput(1, 1, mondayAt9.Add(time.Hour), time.Hour)); err != nil {
		t.Fatalf("adjacent session should be accepted: %v", err)
	}
	// A session ending exactly when the block starts is allowed.
	if _, err := env.svc.CreateSession(ctx, studioID, env.studio.SessionInput(2, 2, mondayAt9.Add(2*time.Hour), time.Hour)); err != nil {
		t.Fatalf("session before block should be accepted: %v", err)
	}

	listings := env.listAll(t)
	if len(listings) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(listings))
	}
	assertNoDoubleBooking(t, listings)
}

func TestCreateSessionRejectsForeignReferences(t *testing.T) {
	env := newScheduleEnv(t)
	other := testfixtures.NewStudioFixture("studio-b")
	env.harness.SeedStudio(t, other)
	ctx := context.Background()

	input := env.studio.SessionInput(1, 1, mondayAt9, time.Hour)
	input.TeacherID = other.Teacher(1)

	_, err := env.svc.CreateSession(ctx, env.studio.Studio.ID, input)
	var oErr *application.OwnershipError
	if !errors.As(err, &oErr) || oErr.Field != "teacherId" {
		t.Fatalf("expected teacher ownership error, got %v", err)
	}

	_, err = env.svc.CreateRecurringSeries(ctx, env.studio.Studio.ID, input, application.RecurringInput{
		Days: []int{1}, EndDate: monday.AddDate(0, 0, 14), Time: "09:00", Duration: 60,
	})
	if !errors.As(err, &oErr) {
		t.Fatalf("expected ownership error for recurring create, got %v", err)
	}
	if n := len(env.listAll(t)); n != 0 {
		t.Fatalf("expected no sessions, got %d", n)
	}
}

func TestCreateRecurringSeriesExpandsMondaysAndWednesdays(t *testing.T) {
	env := newScheduleEnv(t)

	result, err := env.svc.CreateRecurringSeries(context.Background(), env.studio.Studio.ID,
		env.studio.SessionInput(1, 1, monday, 0),
		application.RecurringInput{
			Days:     []int{1, 3},
			EndDate:  time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
			Time:     "09:00",
			Duration: 60,
		})
	if err != nil {
		t.Fatalf("CreateRecurringSeries failed: %v", err)
	}

	var dates []string
	for _, session := range result.Created {
		dates = append(dates, session.Start.Format("2006-01-02 15:04"))
		if session.RecurringGroupID == nil || *session.RecurringGroupID != result.RecurringGroupID {
			t.Fatalf("session %s is not in group %s", session.ID, result.RecurringGroupID)
		}
		if session.End.Sub(session.Start) != time.Hour {
			t.Fatalf("unexpected duration %v", session.End.Sub(session.Start))
		}
	}
	want := []string{"2024-01-01 09:00", "2024-01-03 09:00", "2024-01-08 09:00", "2024-01-10 09:00"}
	if !slices.Equal(dates, want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("expected nothing skipped, got %+v", result.Skipped)
	}
}

func TestCreateRecurringSeriesSkipsConflicts(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()
	studioID := env.studio.Studio.ID

	env.harness.AddBlockedTime(t, persistence.BlockedTime{
		ID: "block-1", StudioID: studioID, TeacherID: env.studio.Teacher(1),
		Start: mondayAt9.AddDate(0, 0, 2), End: mondayAt9.AddDate(0, 0, 2).Add(time.Hour),
	})
	env.harness.AddSessions(t, testfixtures.NewSessionFixture(env.studio,
		testfixtures.WithSessionTeacher(env.studio.Teacher(2)),
		testfixtures.WithSessionWindow(mondayAt9.AddDate(0, 0, 7).Add(30*time.Minute), time.Hour),
	))

	pattern := application.RecurringInput{
		Days: []int{1, 3}, EndDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), Time: "09:00", Duration: 60,
	}
	result, err := env.svc.CreateRecurringSeries(ctx, studioID, env.studio.SessionInput(1, 1, monday, 0), pattern)
	if err != nil {
		t.Fatalf("CreateRecurringSeries failed: %v", err)
	}
	if len(result.Created) != 2 || result.SkippedBlocked != 1 || result.SkippedConflict != 1 {
		t.Fatalf("unexpected result: created=%d blocked=%d conflict=%d", len(result.Created), result.SkippedBlocked, result.SkippedConflict)
	}
	if result.Skipped[0].Date != "2024-01-03" || result.Skipped[0].Reason != application.SkipReasonBlockedTime {
		t.Fatalf("unexpected first skip: %+v", result.Skipped[0])
	}
	if result.Skipped[1].Date != "2024-01-08" || result.Skipped[1].Reason != application.SkipReasonConflict {
		t.Fatalf("unexpected second skip: %+v", result.Skipped[1])
	}

	// Repeating the request now conflicts on every occurrence.
	_, err = env.svc.CreateRecurringSeries(ctx, studioID, env.studio.SessionInput(1, 1, monday, 0), pattern)
	var rcErr *application.RecurringConflictError
	if !errors.As(err, &rcErr) || len(rcErr.Skipped) != 4 {
		t.Fatalf("expected RecurringConflictError with 4 skips, got %v", err)
	}
	assertNoDoubleBooking(t, env.listAll(t))
}

func TestCreateRecurringSeriesRejectsSelfOverlap(t *testing.T) {
	env := newScheduleEnv(t)

	_, err := env.svc.CreateRecurringSeries(context.Background(), env.studio.Studio.ID,
		env.studio.SessionInput(1, 1, monday, 0),
		application.RecurringInput{Days: []int{1}, EndDate: monday.AddDate(0, 0, 14), Time: "09:00", Duration: 8 * 24 * 60})

	var vErr *application.ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["recurring.duration"] == "" {
		t.Fatalf("expected recurring.duration validation error, got %v", err)
	}
}

func createSeries(t *testing.T, env scheduleEnv, start time.Time, end time.Time) application.RecurringResult {
	t.Helper()
	result, err := env.svc.CreateRecurringSeries(context.Background(), env.studio.Studio.ID,
		env.studio.SessionInput(1, 1, start, 0),
		application.RecurringInput{Days: []int{1, 3}, EndDate: end, Time: "09:00", Duration: 60})
	if err != nil {
		t.Fatalf("CreateRecurringSeries failed: %v", err)
	}
	return result
}

func TestBulkDeleteRefusesGroupWithActiveBooking(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()
	series := createSeries(t, env, monday, monday.AddDate(0, 0, 9))

	env.harness.AddBooking(t, testfixtures.NewBookingFixture(env.studio, series.Created[2].ID, persistence.BookingConfirmed, testfixtures.ReferenceTime()))

	_, err := env.svc.BulkDelete(ctx, env.studio.Studio.ID, application.SessionTarget{RecurringGroupID: series.RecurringGroupID})
	var bErr *application.BookingSafetyError
	if !errors.As(err, &bErr) || bErr.SessionCount != 1 {
		t.Fatalf("expected BookingSafetyError for 1 session, got %v", err)
	}
	if n := len(env.listAll(t)); n != 4 {
		t.Fatalf("expected all 4 sessions to survive, got %d", n)
	}

	// Cancelled bookings do not block deletion.
	if err := env.harness.Bookings.CancelBooking(ctx, env.studio.Studio.ID, bookingIDFor(t, env, series.Created[2].ID), testfixtures.ReferenceTime()); err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}
	result, err := env.svc.BulkDelete(ctx, env.studio.Studio.ID, application.SessionTarget{RecurringGroupID: series.RecurringGroupID})
	if err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if result.Deleted != 4 || len(env.listAll(t)) != 0 {
		t.Fatalf("expected 4 deletions, got %d", result.Deleted)
	}
}

func bookingIDFor(t *testing.T, env scheduleEnv, sessionID string) string {
	t.Helper()
	bookings, err := env.harness.Bookings.ListBookings(context.Background(), persistence.BookingQuery{StudioID: env.studio.Studio.ID})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	for _, b := range bookings {
		if b.Session.ID == sessionID {
			return b.Booking.ID
		}
	}
	t.Fatalf("no booking for session %s", sessionID)
	return ""
}

func TestBulkDeleteFutureOnlyAndIDs(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()
	// ReferenceTime is Monday 2024-03-04 12:00, after that day's 09:00 class.
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	series := createSeries(t, env, start, start.AddDate(0, 0, 9))

	result, err := env.svc.BulkDelete(ctx, env.studio.Studio.ID, application.SessionTarget{RecurringGroupID: series.RecurringGroupID, FutureOnly: true})
	if err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if result.Deleted != 3 {
		t.Fatalf("expected 3 future sessions deleted, got %d", result.Deleted)
	}
	remaining := env.listAll(t)
	if len(remaining) != 1 || remaining[0].Session.ID != series.Created[0].ID {
		t.Fatalf("expected only the past session to remain, got %+v", remaining)
	}

	result, err = env.svc.BulkDelete(ctx, env.studio.Studio.ID, application.SessionTarget{IDs: []string{series.Created[0].ID, "missing"}})
	if err != nil || result.Deleted != 1 {
		t.Fatalf("expected id delete of 1 session, got %d, %v", result.Deleted, err)
	}
}

func TestBulkReassignRevalidatesConflicts(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()
	studioID := env.studio.Studio.ID
	series := createSeries(t, env, monday, monday.AddDate(0, 0, 9))

	// Teacher 2 already teaches in room 2 on Wednesday 01-03 at 09:30.
	env.harness.AddSessions(t, testfixtures.NewSessionFixture(env.studio,
		testfixtures.WithSessionTeacher(env.studio.Teacher(2)),
		testfixtures.WithSessionLocation(env.studio.Location(2)),
		testfixtures.WithSessionWindow(mondayAt9.AddDate(0, 0, 2).Add(30*time.Minute), time.Hour),
	))

	teacher2 := env.studio.Teacher(2)
	_, err := env.svc.BulkReassign(ctx, studioID, application.ReassignInput{
		Target:    application.SessionTarget{RecurringGroupID: series.RecurringGroupID},
		TeacherID: &teacher2,
	})
	if got := conflictTypes(err); !slices.Contains(got, scheduler.ConflictTypeTeacher) {
		t.Fatalf("expected teacher conflict, got %v (%v)", got, err)
	}

	// Reassign only the Monday sessions; teacher 2 is blocked on 01-08.
	env.harness.AddBlockedTime(t, persistence.BlockedTime{
		ID: "block-1", StudioID: studioID, TeacherID: teacher2,
		Start: mondayAt9.AddDate(0, 0, 7), End: mondayAt9.AddDate(0, 0, 7).Add(2 * time.Hour),
	})
	mondays := application.SessionTarget{IDs: []string{series.Created[0].ID, series.Created[2].ID}}
	_, err = env.svc.BulkReassign(ctx, studioID, application.ReassignInput{Target: mondays, TeacherID: &teacher2})
	if got := conflictTypes(err); !slices.Equal(got, []scheduler.ConflictType{scheduler.ConflictTypeBlockedTime}) {
		t.Fatalf("expected blocked time conflict, got %v (%v)", got, err)
	}

	for _, listing := range env.listAll(t) {
		if listing.Session.RecurringGroupID != nil && listing.Session.TeacherID != env.studio.Teacher(1) {
			t.Fatalf("rejected reassign mutated session %s", listing.Session.ID)
		}
	}

	// Moving the whole series to room 2 collides on Wednesday too.
	room2 := env.studio.Location(2)
	_, err = env.svc.BulkReassign(ctx, studioID, application.ReassignInput{
		Target:     application.SessionTarget{RecurringGroupID: series.RecurringGroupID},
		LocationID: &room2,
	})
	if got := conflictTypes(err); !slices.Equal(got, []scheduler.ConflictType{scheduler.ConflictTypeLocation}) {
		t.Fatalf("expected location conflict, got %v (%v)", got, err)
	}

	// The Monday sessions can move to room 2; one carries a booking.
	env.harness.AddBooking(t, testfixtures.NewBookingFixture(env.studio, series.Created[0].ID, persistence.BookingConfirmed, testfixtures.ReferenceTime()))
	result, err := env.svc.BulkReassign(ctx, studioID, application.ReassignInput{Target: mondays, LocationID: &room2})
	if err != nil {
		t.Fatalf("BulkReassign failed: %v", err)
	}
	if result.Updated != 2 || result.SessionsWithBookings != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	assertNoDoubleBooking(t, env.listAll(t))
}

func TestBulkReassignDetectsOverlapInsideTarget(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()

	a := testfixtures.NewSessionFixture(env.studio, testfixtures.WithSessionWindow(mondayAt9, time.Hour))
	b := testfixtures.NewSessionFixture(env.studio,
		testfixtures.WithSessionTeacher(env.studio.Teacher(2)),
		testfixtures.WithSessionLocation(env.studio.Location(2)),
		testfixtures.WithSessionWindow(mondayAt9, time.Hour),
	)
	env.harness.AddSessions(t, a, b)

	teacher1 := env.studio.Teacher(1)
	_, err := env.svc.BulkReassign(ctx, env.studio.Studio.ID, application.ReassignInput{
		Target:    application.SessionTarget{IDs: []string{a.ID, b.ID}},
		TeacherID: &teacher1,
	})
	if got := conflictTypes(err); !slices.Contains(got, scheduler.ConflictTypeTeacher) {
		t.Fatalf("expected teacher conflict within the target set, got %v (%v)", got, err)
	}
	assertNoDoubleBooking(t, env.listAll(t))
}

func TestCheckConflictsIsReadOnly(t *testing.T) {
	env := newScheduleEnv(t)
	ctx := context.Background()
	existing := testfixtures.NewSessionFixture(env.studio, testfixtures.WithSessionWindow(mondayAt9, time.Hour))
	env.harness.AddSessions(t, existing)

	report, err := env.svc.CheckConflicts(ctx, env.studio.Studio.ID, application.ConflictQuery{
		TeacherID: env.studio.Teacher(1),
		Start:     mondayAt9.Add(15 * time.Minute),
		End:       mondayAt9.Add(45 * time.Minute),
	})
	if err != nil {
		t.Fatalf("CheckConflicts failed: %v", err)
	}
	if len(report.Conflicts) != 1 || report.Conflicts[0].WithSessionID != existing.ID {
		t.Fatalf("unexpected report: %+v", report)
	}

	report, err = env.svc.CheckConflicts(ctx, env.studio.Studio.ID, application.ConflictQuery{
		TeacherID:        env.studio.Teacher(1),
		Start:            mondayAt9,
		End:              mondayAt9.Add(time.Hour),
		ExcludeSessionID: existing.ID,
	})
	if err != nil || len(report.Conflicts) != 0 {
		t.Fatalf("expected excluded session to be ignored, got %+v, %v", report, err)
	}
	if n := len(env.listAll(t)); n != 1 {
		t.Fatalf("dry run must not write, found %d sessions", n)
	}
}

func TestListSessionsIncludesNamesAndBookingCounts(t *testing.T) {
	env := newScheduleEnv(t)
	session := testfixtures.NewSessionFixture(env.studio, testfixtures.WithSessionWindow(mondayAt9, time.Hour))
	env.harness.AddSessions(t, session)
	env.harness.AddBooking(t, testfixtures.NewBookingFixture(env.studio, session.ID, persistence.BookingConfirmed, testfixtures.ReferenceTime()))
	env.harness.AddBooking(t, testfixtures.NewBookingFixture(env.studio, session.ID, persistence.BookingCancelled, testfixtures.ReferenceTime()))

	listings := env.listAll(t)
	if len(listings) != 1 {
		t.Fatalf("expected one listing, got %d", len(listings))
	}
	got := listings[0]
	if got.ActiveBookings != 1 || got.ClassTypeName != "Reformer" || got.TeacherName != "Teacher 1" || got.LocationName != "Room 1" {
		t.Fatalf("unexpected listing: %+v", got)
	}
}
