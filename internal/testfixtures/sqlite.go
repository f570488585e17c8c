package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style tests.
type SQLiteHarness struct {
	Storage     *sqlite.Storage
	Catalog     *sqlite.CatalogRepository
	Schedules   *sqlite.ScheduleRepository
	Bookings    *sqlite.BookingRepository
	Automations *sqlite.AutomationRepository
	Messages    *sqlite.MessageRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "studio.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

	storage, err := sqlite.Open(context.Background(), sqlite.Config{DSN: dsn}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:     storage,
		Catalog:     storage.Catalog,
		Schedules:   storage.Schedules,
		Bookings:    storage.Bookings,
		Automations: storage.Automations,
		Messages:    storage.Messages,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedStudio persists every entity of the fixture.
func (h *SQLiteHarness) SeedStudio(tb testing.TB, f StudioFixture) {
	tb.Helper()
	ctx := context.Background()

	check := func(what string, err error) {
		tb.Helper()
		if err != nil {
			tb.Fatalf("seed %s for %s: %v", what, f.Studio.ID, err)
		}
	}
	check("studio", h.Catalog.CreateStudio(ctx, f.Studio))
	for _, teacher := range f.Teachers {
		check("teacher", h.Catalog.CreateTeacher(ctx, teacher))
	}
	for _, location := range f.Locations {
		check("location", h.Catalog.CreateLocation(ctx, location))
	}
	check("class type", h.Catalog.CreateClassType(ctx, f.ClassType))
	check("client", h.Catalog.CreateClient(ctx, f.Client))
}

// AddSessions inserts sessions in one transaction.
func (h *SQLiteHarness) AddSessions(tb testing.TB, sessions ...persistence.ClassSession) {
	tb.Helper()
	err := h.Schedules.WithinTx(context.Background(), func(tx persistence.ScheduleTx) error {
		return tx.InsertSessions(context.Background(), sessions)
	})
	if err != nil {
		tb.Fatalf("failed to insert sessions: %v", err)
	}
}

// AddBlockedTime inserts a teacher unavailability window.
func (h *SQLiteHarness) AddBlockedTime(tb testing.TB, block persistence.BlockedTime) {
	tb.Helper()
	if err := h.Schedules.CreateBlockedTime(context.Background(), block); err != nil {
		tb.Fatalf("failed to insert blocked time: %v", err)
	}
}

// AddClient inserts a client.
func (h *SQLiteHarness) AddClient(tb testing.TB, client persistence.Client) {
	tb.Helper()
	if err := h.Catalog.CreateClient(context.Background(), client); err != nil {
		tb.Fatalf("failed to insert client: %v", err)
	}
}

// AddBooking inserts a booking.
func (h *SQLiteHarness) AddBooking(tb testing.TB, booking persistence.Booking) {
	tb.Helper()
	if err := h.Bookings.CreateBooking(context.Background(), booking); err != nil {
		tb.Fatalf("failed to insert booking: %v", err)
	}
}

// AddAutomation inserts an automation rule.
func (h *SQLiteHarness) AddAutomation(tb testing.TB, automation persistence.Automation) {
	tb.Helper()
	if err := h.Automations.CreateAutomation(context.Background(), automation); err != nil {
		tb.Fatalf("failed to insert automation: %v", err)
	}
}
