// Package migration provides a versioned migration system for SQLite databases.
//
// Migrations are read from an fs.FS (normally an embed.FS compiled into the
// binary) and follow the naming convention {version}_{description}.sql, for
// example "001_initial_schema.sql". Each migration runs in its own
// transaction together with its schema_migrations record, and the SHA-256 of
// every applied file is verified on later runs.
//
// Example usage:
//
//	manager := migration.NewManager(db, migrationsFS, "migrations", logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
