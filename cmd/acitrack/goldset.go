package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lueurxax/acitrack/internal/app"
	db "github.com/lueurxax/acitrack/internal/storage"
)

var goldSet struct {
	insert    bool
	name      string
	seed      int64
	perBucket int
}

var goldSetCmd = &cobra.Command{
	Use:   "gold-set",
	Short: "Pick a score-stratified gold set and optionally queue it for calibration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App, database *db.DB) error {
			opts := a.GoldSetOptions()
			opts.Insert = goldSet.insert

			if cmd.Flags().Changed("name") {
				opts.Name = goldSet.name
			}

			if cmd.Flags().Changed("seed") {
				opts.Seed = goldSet.seed
			}

			if cmd.Flags().Changed("per-bucket") {
				opts.PerBucket = goldSet.perBucket
			}

			return withLock(ctx, database, db.LockGoldSet, "gold-set builder", func(ctx context.Context) error {
				res, err := a.BuildGoldSet(ctx, opts)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				ids := make([]string, len(res.Picks))

				fmt.Fprintf(out, "=== GOLD SET PICKS (%d papers) ===\n\n", len(res.Picks))

				for i, p := range res.Picks {
					ids[i] = p.PublicationID

					fmt.Fprintf(out, "%02d. [%s] score=%.1f  id=%s\n    %s\n", i+1, p.Bucket, p.Score, p.PublicationID, p.Title)

					if p.Source != "" {
						fmt.Fprintf(out, "    source: %s\n", p.Source)
					}
				}

				if opts.Insert {
					fmt.Fprintf(out, "\nInserted %d, merged %d calibration items tagged gold_set=%q.\n", res.Inserted, res.Merged, opts.Name)
				} else {
					fmt.Fprintln(out, "\nDry run only. Pass --insert to store the picks.")
				}

				fmt.Fprintf(out, "\nPublication IDs: %s\n", strings.Join(ids, ","))

				return nil
			})
		})
	},
}

func init() {
	f := goldSetCmd.Flags()
	f.BoolVar(&goldSet.insert, "insert", false, "insert the picks as gold calibration items")
	f.StringVar(&goldSet.name, "name", "", "gold set name (defaults to GOLD_SET_NAME)")
	f.Int64Var(&goldSet.seed, "seed", 0, "random seed (defaults to GOLD_RANDOM_SEED)")
	f.IntVar(&goldSet.perBucket, "per-bucket", 0, "picks per score bucket (defaults to GOLD_PER_BUCKET)")

	rootCmd.AddCommand(goldSetCmd)
}
