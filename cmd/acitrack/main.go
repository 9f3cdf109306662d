// Command acitrack serves the publication tracker API and runs its
// maintenance jobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lueurxax/acitrack/internal/app"
	"github.com/lueurxax/acitrack/internal/platform/config"
	db "github.com/lueurxax/acitrack/internal/storage"
)

var (
	logLevel string
	cfg      *config.Config
	logger   zerolog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

var rootCmd = &cobra.Command{
	Use:           "acitrack",
	Short:         "Publication tracker API and maintenance jobs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger = newLogger("local")

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		cfg = loaded
		logger = newLogger(cfg.AppEnv)

		if logLevel == "" {
			logLevel = cfg.LogLevel
		}

		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		logger = logger.Level(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error); defaults to LOG_LEVEL")
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// withApp connects to the database, runs migrations when asked, and hands a
// fully wired App to fn.
func withApp(ctx context.Context, migrate bool, fn func(ctx context.Context, a *app.App, database *db.DB) error) error {
	poolOpts := db.PoolOptions{
		MaxConns:          cfg.Database.MaxConnections,
		MinConns:          cfg.Database.MinConnections,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.Database.URL, poolOpts, &logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if migrate {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	application := app.New(cfg, database, &logger)
	defer application.Close()

	return fn(ctx, application, database)
}

// withLock wraps fn in the job's advisory lock and turns a held lock into a
// readable error.
func withLock(ctx context.Context, database *db.DB, lockID int64, name string, fn func(ctx context.Context) error) error {
	err := database.WithAdvisoryLock(ctx, lockID, fn)
	if errors.Is(err, db.ErrLockHeld) {
		return fmt.Errorf("%s is already running: %w", name, err)
	}

	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}
