package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lueurxax/acitrack/internal/app"
	db "github.com/lueurxax/acitrack/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, the health/metrics port and the scheduled jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App, _ *db.DB) error {
			return a.RunServer(ctx)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), true, func(context.Context, *app.App, *db.DB) error {
			logger.Info().Msg("migrations applied")

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
