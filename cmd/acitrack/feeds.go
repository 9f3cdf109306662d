package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lueurxax/acitrack/internal/abstracts"
	"github.com/lueurxax/acitrack/internal/app"
	db "github.com/lueurxax/acitrack/internal/storage"
)

var ingestFeed struct {
	url    string
	source string
	dryRun bool
}

var ingestFeedCmd = &cobra.Command{
	Use:   "ingest-feed",
	Short: "Pull an RSS/Atom feed into the publications table as unscored rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App, _ *db.DB) error {
			res, err := a.Feeds().Ingest(ctx, ingestFeed.url, ingestFeed.source, ingestFeed.dryRun)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var enrichLimit int

var enrichAbstractsCmd = &cobra.Command{
	Use:   "enrich-abstracts",
	Short: "Fetch landing pages and fill missing calibration abstracts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App, database *db.DB) error {
			return withLock(ctx, database, db.LockEnrichAbstracts, "abstract enrichment", func(ctx context.Context) error {
				res, err := a.Abstracts().Enrich(ctx, enrichLimit)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), res)
			})
		})
	},
}

func init() {
	f := ingestFeedCmd.Flags()
	f.StringVar(&ingestFeed.url, "url", "", "feed URL")
	f.StringVar(&ingestFeed.source, "source", "", "source label for the rows (defaults to the feed title)")
	f.BoolVar(&ingestFeed.dryRun, "dry-run", false, "parse and log entries without writing")
	_ = ingestFeedCmd.MarkFlagRequired("url")

	enrichAbstractsCmd.Flags().IntVar(&enrichLimit, "limit", abstracts.DefaultLimit, "maximum items to visit")

	rootCmd.AddCommand(ingestFeedCmd, enrichAbstractsCmd)
}
