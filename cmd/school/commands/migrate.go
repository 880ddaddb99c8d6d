package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/langschool/backoffice/cmd/school/output"
	"github.com/langschool/backoffice/cmd/school/tui"
	"github.com/langschool/backoffice/pkg/migration"
)

var (
	// Migrate flags
	dryRun      bool
	steps       int
	interactive bool
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run the schema migrations embedded in the binary.

Subcommands:
  up      - Apply pending migrations
  down    - Rollback migrations
  status  - Show migration status`,
}

// migrateUpCmd applies pending migrations
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply every pending migration under the migration lock.

Examples:
  school migrate up                  # Apply all pending migrations
  school migrate up --dry-run        # Preview migrations without applying
  school migrate up -i               # Pick from the interactive list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp(cmd.Context())
	},
}

// migrateDownCmd rolls back migrations
var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback migrations",
	Long: `Rollback applied migrations, newest first.

Examples:
  school migrate down                # Rollback last migration
  school migrate down --steps 2      # Rollback the last two
  school migrate down --dry-run      # Preview rollback without executing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown(cmd.Context())
	},
}

// migrateStatusCmd shows migration status
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show the status of all migrations (pending, applied, failed).

Examples:
  school migrate status              # Show migration status
  school migrate status --json       # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateUpCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview migrations without applying")

	migrateDownCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateDownCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview rollback without executing")
	migrateDownCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to rollback")
}

// migrationSetup connects and loads the embedded migrations.
func migrationSetup(ctx context.Context) (*migration.Executor, []migration.Migration, func(), error) {
	_, db, err := connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	migrations, err := migration.Embedded()
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return migration.NewExecutor(db.Pool()), migrations, db.Close, nil
}

func pending(records []migration.MigrationRecord) []migration.MigrationRecord {
	var out []migration.MigrationRecord
	for _, r := range records {
		if r.Status != migration.StatusApplied {
			out = append(out, r)
		}
	}
	return out
}

func runMigrateUp(ctx context.Context) error {
	executor, migrations, closeDB, err := migrationSetup(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if interactive {
		return tui.RunMigrateUI(tui.ActionUp, executor, migrations)
	}

	status, err := executor.Status(ctx, migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	todo := pending(status)
	if len(todo) == 0 {
		output.Info("No pending migrations")
		return nil
	}

	if dryRun {
		output.Section("DRY RUN - Preview")
		output.Info("The following migrations would be applied:")
		for _, r := range todo {
			fmt.Printf("  %s %s - %s\n", output.StatusIcon("pending"), r.Version, r.Name)
		}
		return nil
	}

	output.Section("Applying Migrations")
	applied, err := executor.Up(ctx, migrations)
	for _, version := range applied {
		output.Success("Applied %s", version)
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	output.Success("Applied %d migration(s)", len(applied))
	return nil
}

func runMigrateDown(ctx context.Context) error {
	executor, migrations, closeDB, err := migrationSetup(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if interactive {
		return tui.RunMigrateUI(tui.ActionDown, executor, migrations)
	}

	if dryRun {
		applied, err := executor.AppliedMigrations(ctx)
		if err != nil {
			return fmt.Errorf("failed to get applied migrations: %w", err)
		}
		if len(applied) == 0 {
			output.Info("No migrations to rollback")
			return nil
		}
		output.Section("DRY RUN - Preview")
		output.Info("The following migrations would be rolled back:")
		for i := len(applied) - 1; i >= 0 && len(applied)-i <= steps; i-- {
			fmt.Printf("  %s %s - %s\n", output.StatusIcon("applied"), applied[i].Version, applied[i].Name)
		}
		return nil
	}

	output.Section("Rolling Back Migrations")
	rolledBack, err := executor.Down(ctx, migrations, steps)
	for _, version := range rolledBack {
		output.Success("Rolled back %s", version)
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	output.Success("Rolled back %d migration(s)", len(rolledBack))
	return nil
}

type statusRow struct {
	Version   string `json:"version"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	AppliedAt string `json:"applied_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runMigrateStatus(ctx context.Context) error {
	executor, migrations, closeDB, err := migrationSetup(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	status, err := executor.Status(ctx, migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	rows := make([]statusRow, 0, len(status))
	for _, r := range status {
		row := statusRow{Version: r.Version, Name: r.Name, Status: string(r.Status)}
		if r.AppliedAt != nil {
			row.AppliedAt = r.AppliedAt.Format("2006-01-02 15:04:05")
		}
		if r.Error != nil {
			row.Error = *r.Error
		}
		rows = append(rows, row)
	}

	if jsonOutput {
		return printJSON(rows)
	}

	output.Section("Migration Status")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  \tVERSION\tNAME\tAPPLIED AT")
	for _, row := range rows {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", output.StatusIcon(row.Status), row.Version, row.Name, row.AppliedAt)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed := countStatus(rows, string(migration.StatusFailed)); failed > 0 {
		output.Warning("%d migration(s) failed", failed)
	}
	return nil
}

func countStatus(rows []statusRow, status string) int {
	n := 0
	for _, r := range rows {
		if r.Status == status {
			n++
		}
	}
	return n
}
