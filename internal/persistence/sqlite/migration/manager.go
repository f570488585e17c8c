package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager orchestrates scanning, checksum verification and execution of migrations.
type Manager struct {
	executor *Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager creates a manager that reads migration files from dir in fsys.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executor: NewExecutor(db),
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order. It stops at the
// first failure; previously applied migrations stay committed.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.Info("schema version", "current_version", status.CurrentVersion, "pending", len(status.Pending))
	if len(status.Pending) == 0 {
		return nil
	}

	for i, migration := range status.Pending {
		elapsed, err := m.executor.Apply(ctx, migration)
		if err != nil {
			m.logger.Error("migration failed",
				"version", migration.Version,
				"file", migration.FileName,
				"error", err,
			)
			return NewMigrationError(migration.Version, migration.FileName, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.Info("migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"step", fmt.Sprintf("%d/%d", i+1, len(status.Pending)),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	m.logger.Info("migrations complete", "applied", len(status.Pending), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

// Status compares the files on disk with schema_migrations. An applied
// migration whose file content changed is reported as ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	migrations, err := Scan(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[int]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, record := range applied {
		byVersion[record.Version] = record
		if record.Version > status.CurrentVersion {
			status.CurrentVersion = record.Version
		}
	}

	for _, migration := range migrations {
		record, ok := byVersion[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if record.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FileName, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
