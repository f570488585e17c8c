package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Executor applies migrations and maintains the schema_migrations table.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor creates a migration executor for db.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`

	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewDatabaseError(0, createTableSQL, "create schema_migrations table", err)
	}
	return nil
}

// Applied returns all recorded migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY version ASC`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewDatabaseError(0, query, "list applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &elapsedMs, &record.Checksum); err != nil {
			return nil, NewDatabaseError(0, query, "scan applied migration", err)
		}
		record.AppliedAt, err = time.Parse(time.RFC3339, appliedAt)
		if err != nil {
			return nil, NewDatabaseError(record.Version, query, "parse applied_at", err)
		}
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError(0, query, "iterate applied migrations", err)
	}
	return applied, nil
}

// Apply runs the statements of m and records it, all in one transaction.
func (e *Executor) Apply(ctx context.Context, m Migration) (time.Duration, error) {
	statements := SplitStatements(m.SQL)
	if len(statements) == 0 {
		return 0, NewMigrationError(m.Version, m.FileName, "parse SQL",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewDatabaseError(m.Version, "", "begin transaction", err)
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, errors.Join(
				NewDatabaseError(m.Version, stmt, fmt.Sprintf("execute statement %d", i+1), err),
				tx.Rollback(),
			)
		}
	}

	elapsed := e.now().Sub(started)
	const record = `
		INSERT INTO schema_migrations (version, description, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, record, m.Version, m.Description, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds()); err != nil {
		return 0, errors.Join(NewDatabaseError(m.Version, record, "record migration", err), tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return 0, NewDatabaseError(m.Version, "", "commit transaction", err)
	}
	return elapsed, nil
}

var (
	createTriggerPattern = regexp.MustCompile(`(?i)^\s*CREATE\s+(TEMP\s+|TEMPORARY\s+)?TRIGGER\b`)
	beginPattern         = regexp.MustCompile(`(?i)\bBEGIN\b`)
	endPattern           = regexp.MustCompile(`(?i)\bEND\b`)
)

// SplitStatements splits a migration script into statements. Full-line "--"
// comments are dropped, and the semicolons inside a CREATE TRIGGER body
// stay with their trigger until the closing END. Trigger bodies must not
// contain CASE expressions.
func SplitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		lines = append(lines, line)
	}

	var (
		statements []string
		current    strings.Builder
	)
	for _, piece := range strings.SplitAfter(strings.Join(lines, "\n"), ";") {
		current.WriteString(piece)
		stmt := current.String()
		if createTriggerPattern.MatchString(stmt) &&
			len(beginPattern.FindAllString(stmt, -1)) > len(endPattern.FindAllString(stmt, -1)) {
			continue
		}
		if trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";")); trimmed != "" {
			statements = append(statements, trimmed)
		}
		current.Reset()
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
