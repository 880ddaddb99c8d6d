package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/langschool/backoffice/pkg/api"
	"github.com/langschool/backoffice/pkg/catalog"
	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/guard"
	"github.com/langschool/backoffice/pkg/migration"
	"github.com/langschool/backoffice/pkg/stats"
)

var (
	serveAddr    string
	serveMigrate bool
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the back office JSON API.

Examples:
  school serve                      # Listen on $PORT (5000)
  school serve --addr :8080         # Listen on another address
  school serve --migrate            # Apply pending migrations first`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :$PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving")
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := newLogger(cfg.LogLevel)

	if serveMigrate {
		migrations, err := migration.Embedded()
		if err != nil {
			return err
		}
		applied, err := migration.NewExecutor(db.Pool()).Up(ctx, migrations)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "count", len(applied), "versions", applied)
	}

	e := api.New(api.Services{
		Enrollments: enrollment.NewService(db).WithLogger(logger),
		Guard:       guard.New(db),
		Stats:       stats.NewReader(db),
		Catalog:     catalog.New(db),
		Health:      db,
	}, api.Options{Admin: cfg.Admin, Logger: logger})

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "auth", cfg.Admin.Enabled())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
