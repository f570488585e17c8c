package sqlite

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	Pool        *ConnectionPool
	Catalog     *CatalogRepository
	Schedules   *ScheduleRepository
	Bookings    *BookingRepository
	Automations *AutomationRepository
	Messages    *MessageRepository

	logger *slog.Logger
}

// Open connects to the database described by config. Call Migrate before
// using the repositories against a fresh database.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Pool:        pool,
		Catalog:     NewCatalogRepository(pool),
		Schedules:   NewScheduleRepository(pool),
		Bookings:    NewBookingRepository(pool),
		Automations: NewAutomationRepository(pool),
		Messages:    NewMessageRepository(pool),
		logger:      logger,
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	return s.Pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return errors.New("sqlite: storage is not open")
	}
	return migration.NewManager(s.Pool.DB(), migrationFiles, migrationDir, s.logger).Run(ctx)
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return migration.NewManager(s.Pool.DB(), migrationFiles, migrationDir, s.logger).Status(ctx)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}
