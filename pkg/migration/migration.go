// Package migration applies the back office schema to PostgreSQL.
// Migrations ship embedded in the binary and are tracked in the
// schema_migrations table under an advisory lock.
package migration

import (
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version string // Version/timestamp (e.g., "20240101120000")
	Name    string // Migration name (e.g., "create_catalog")
	UpSQL   string
	DownSQL string
}

// MigrationStatus represents the status of a migration.
type MigrationStatus string

const (
	// StatusPending means the migration has not been applied.
	StatusPending MigrationStatus = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied MigrationStatus = "applied"
	// StatusFailed means the migration failed to apply.
	StatusFailed MigrationStatus = "failed"
)

// MigrationRecord represents a migration in the tracking table.
type MigrationRecord struct {
	Version   string
	Name      string
	Status    MigrationStatus
	AppliedAt *time.Time // nil if not applied
	Error     *string
}

// FileName returns the file name of a migration direction.
// Format: {version}_{name}.{up|down}.sql
func FileName(version, name, direction string) string {
	return version + "_" + name + "." + direction + ".sql"
}
