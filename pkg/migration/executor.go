package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultLockID keys the advisory lock that serializes migration runs.
const defaultLockID int64 = 7310420501

// ErrNothingToRollback is returned by Down when no migration is applied.
var ErrNothingToRollback = errors.New("no applied migrations to roll back")

// Executor executes and tracks database migrations.
type Executor struct {
	pool   *pgxpool.Pool
	lockID int64
}

// NewExecutor creates a new migration executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{
		pool:   pool,
		lockID: defaultLockID,
	}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMP,
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_schema_migrations_status
		ON schema_migrations(status);
	`

	if _, err := e.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// Up initializes tracking and applies every pending migration under the
// advisory lock. It returns the versions it applied.
func (e *Executor) Up(ctx context.Context, migrations []Migration) ([]string, error) {
	var applied []string
	err := e.locked(ctx, func(conn *pgxpool.Conn) error {
		done, err := e.appliedSet(ctx)
		if err != nil {
			return err
		}

		for _, m := range migrations {
			if done[m.Version] {
				continue
			}
			if err := e.apply(ctx, conn, m); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
			applied = append(applied, m.Version)
		}
		return nil
	})
	return applied, err
}

// Down rolls back the last steps applied migrations, newest first.
// It returns the versions it rolled back.
func (e *Executor) Down(ctx context.Context, migrations []Migration, steps int) ([]string, error) {
	if steps <= 0 {
		steps = 1
	}

	byVersion := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	var rolledBack []string
	err := e.locked(ctx, func(conn *pgxpool.Conn) error {
		records, err := e.AppliedMigrations(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return ErrNothingToRollback
		}

		for i := len(records) - 1; i >= 0 && len(rolledBack) < steps; i-- {
			m, ok := byVersion[records[i].Version]
			if !ok {
				return fmt.Errorf("migration file not found for version %s", records[i].Version)
			}
			if err := e.rollback(ctx, conn, m); err != nil {
				return fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
			}
			rolledBack = append(rolledBack, m.Version)
		}
		return nil
	})
	return rolledBack, err
}

// locked runs fn on a single pooled connection holding the advisory lock,
// since session-level advisory locks belong to the connection that took them.
func (e *Executor) locked(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	if err := e.Initialize(ctx); err != nil {
		return err
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", e.lockID)
	}()

	return fn(conn)
}

// AppliedMigrations returns all migrations that have been applied.
func (e *Executor) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.records(ctx, `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		WHERE status = 'applied'
		ORDER BY version ASC
	`)
}

// AllMigrations returns all migration records.
func (e *Executor) AllMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.records(ctx, `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		ORDER BY version ASC
	`)
}

func (e *Executor) records(ctx context.Context, query string) ([]MigrationRecord, error) {
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MigrationRecord, error) {
		var record MigrationRecord
		err := row.Scan(&record.Version, &record.Name, &record.Status, &record.AppliedAt, &record.Error)
		return record, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration record: %w", err)
	}

	return records, nil
}

func (e *Executor) appliedSet(ctx context.Context) (map[string]bool, error) {
	applied, err := e.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(applied))
	for _, m := range applied {
		set[m.Version] = true
	}
	return set, nil
}

// apply executes a migration's up SQL in one transaction. A failing
// statement rolls the schema change back and records the failure.
func (e *Executor) apply(ctx context.Context, conn *pgxpool.Conn, migration Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name, status) VALUES ($1, $2, 'pending') ON CONFLICT (version) DO UPDATE SET status = 'pending', error = NULL",
		migration.Version, migration.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	for i, stmt := range splitSQL(migration.UpSQL) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			e.recordFailure(ctx, conn, migration, fmt.Sprintf("Statement %d failed: %v", i+1, err))
			return fmt.Errorf("migration failed at statement %d: %w", i+1, err)
		}
	}

	_, err = tx.Exec(ctx,
		"UPDATE schema_migrations SET status = 'applied', applied_at = $1, error = NULL WHERE version = $2",
		time.Now(), migration.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

func (e *Executor) recordFailure(ctx context.Context, conn *pgxpool.Conn, migration Migration, msg string) {
	_, _ = conn.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, status, error, applied_at)
		VALUES ($1, $2, 'failed', $3, $4)
		ON CONFLICT (version) DO UPDATE SET status = 'failed', error = EXCLUDED.error, applied_at = EXCLUDED.applied_at
	`, migration.Version, migration.Name, msg, time.Now())
}

// rollback executes a migration's down SQL and removes its record.
func (e *Executor) rollback(ctx context.Context, conn *pgxpool.Conn, migration Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range splitSQL(migration.DownSQL) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("rollback failed at statement %d: %w", i+1, err)
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", migration.Version); err != nil {
		return fmt.Errorf("failed to delete migration record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	return nil
}

// Status returns the status of all known migrations, pending ones included.
func (e *Executor) Status(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	known, err := e.AllMigrations(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(known))
	for _, m := range known {
		byVersion[m.Version] = m
	}

	records := make([]MigrationRecord, 0, len(migrations))
	for _, migration := range migrations {
		if record, exists := byVersion[migration.Version]; exists {
			records = append(records, record)
			continue
		}
		records = append(records, MigrationRecord{
			Version: migration.Version,
			Name:    migration.Name,
			Status:  StatusPending,
		})
	}

	return records, nil
}

// Validate checks that all migrations in the database have corresponding files.
func (e *Executor) Validate(ctx context.Context, migrations []Migration) error {
	dbMigrations, err := e.AllMigrations(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		known[m.Version] = true
	}

	var missing []string
	for _, record := range dbMigrations {
		if !known[record.Version] {
			missing = append(missing, record.Version)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing migration files: %v", missing)
	}

	return nil
}

// splitSQL splits a SQL script into statements on semicolons, dropping
// comment lines and blanks. Statements must not contain literal semicolons.
func splitSQL(sql string) []string {
	var cleaned []string
	for line := range strings.SplitSeq(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	var result []string
	for stmt := range strings.SplitSeq(strings.Join(cleaned, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			result = append(result, stmt)
		}
	}

	return result
}
