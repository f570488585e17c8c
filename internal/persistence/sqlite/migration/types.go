package migration

import "time"

// Migration represents a versioned schema change read from a migration file.
type Migration struct {
	Version     int    // Numeric version parsed from the file name
	Description string // Human-readable description of the migration
	SQL         string // SQL statements to execute
	FileName    string // Name of the migration file
	Checksum    string // SHA-256 of the SQL content
}

// AppliedMigration represents a migration recorded in schema_migrations.
type AppliedMigration struct {
	Version       int
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion int
	Applied        []AppliedMigration
	Pending        []Migration
}
