package main

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lueurxax/acitrack/internal/app"
	"github.com/lueurxax/acitrack/internal/ingest"
	"github.com/lueurxax/acitrack/internal/jobs"
	db "github.com/lueurxax/acitrack/internal/storage"
)

var embeddingBackfill struct {
	limit     int
	sinceDate string
	batchSize int
	dryRun    bool
	verbose   bool
}

var backfillEmbeddingsCmd = &cobra.Command{
	Use:   "backfill-embeddings",
	Short: "Embed publications seen in tri-model events that have no vector yet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := jobs.EmbeddingBackfillOptions{
			Limit:     embeddingBackfill.limit,
			BatchSize: embeddingBackfill.batchSize,
			DryRun:    embeddingBackfill.dryRun,
		}

		if embeddingBackfill.sinceDate != "" {
			since, err := dateparse.ParseStrict(embeddingBackfill.sinceDate)
			if err != nil {
				return fmt.Errorf("invalid --since-date %q: %w", embeddingBackfill.sinceDate, err)
			}

			since = since.UTC().Truncate(24 * time.Hour)
			opts.Since = &since
		}

		if embeddingBackfill.verbose {
			logger = logger.Level(zerolog.DebugLevel)
		}

		return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App, database *db.DB) error {
			return withLock(ctx, database, db.LockBackfillEmbeddings, "embedding backfill", func(ctx context.Context) error {
				res, err := a.Backfiller().BackfillEmbeddings(ctx, opts)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), res)
			})
		})
	},
}

var publicationBackfill struct {
	limit  int
	dryRun bool
}

var backfillPublicationsCmd = &cobra.Command{
	Use:   "backfill-publications",
	Short: "Create publication rows for ids known only from embeddings or events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App, database *db.DB) error {
			return withLock(ctx, database, db.LockBackfillPublications, "publication backfill", func(ctx context.Context) error {
				res, err := a.Backfiller().BackfillPublications(ctx, publicationBackfill.limit, publicationBackfill.dryRun)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), res)
			})
		})
	},
}

func init() {
	f := backfillEmbeddingsCmd.Flags()
	f.IntVar(&embeddingBackfill.limit, "limit", 0, "maximum publications to process (0 = all)")
	f.StringVar(&embeddingBackfill.sinceDate, "since-date", "", "only events created on or after this date (YYYY-MM-DD)")
	f.IntVar(&embeddingBackfill.batchSize, "batch-size", ingest.DefaultEmbedBatchSize, "texts per provider call")
	f.BoolVar(&embeddingBackfill.dryRun, "dry-run", false, "show what would be embedded without calling the provider")
	f.BoolVar(&embeddingBackfill.verbose, "verbose", false, "log every batch")

	pf := backfillPublicationsCmd.Flags()
	pf.IntVar(&publicationBackfill.limit, "limit", 0, "maximum publications to create (0 = all)")
	pf.BoolVar(&publicationBackfill.dryRun, "dry-run", false, "list missing publications without writing")

	rootCmd.AddCommand(backfillEmbeddingsCmd, backfillPublicationsCmd)
}
