package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/calibration"
	"github.com/lueurxax/acitrack/internal/core/domain"
)

// GoldStore lists gold candidates and stores the picks.
type GoldStore interface {
	ListGoldCandidates(ctx context.Context) ([]domain.GoldCandidate, error)
	InsertCalibrationItem(ctx context.Context, item *domain.CalibrationItem) (bool, error)
}

// GoldSetOptions configures one gold-set build.
type GoldSetOptions struct {
	Name      string
	Mode      string
	Seed      int64
	PerBucket int
	// Insert writes the picks as calibration items; otherwise they are only returned.
	Insert bool
}

// GoldSetResult lists the picks and how many rows were created.
type GoldSetResult struct {
	Picks    []calibration.GoldPick `json:"picks"`
	Inserted int                    `json:"inserted"`
	Merged   int                    `json:"merged"`
}

// BuildGoldSet picks a reproducible, score-stratified set of publications
// and optionally queues them for calibration tagged as gold.
func BuildGoldSet(ctx context.Context, store GoldStore, opts GoldSetOptions, logger *zerolog.Logger) (GoldSetResult, error) {
	if opts.Name == "" {
		opts.Name = calibration.DefaultGoldSetName
	}

	if opts.PerBucket <= 0 {
		opts.PerBucket = calibration.DefaultGoldPerBucket
	}

	candidates, err := store.ListGoldCandidates(ctx)
	if err != nil {
		return GoldSetResult{}, fmt.Errorf("list gold candidates: %w", err)
	}

	res := GoldSetResult{Picks: calibration.PickGoldSet(candidates, opts.PerBucket, opts.Seed)}

	logger.Info().
		Int("candidates", len(candidates)).
		Int("picks", len(res.Picks)).
		Str("gold_set", opts.Name).
		Msg("gold set picked")

	if !opts.Insert {
		return res, nil
	}

	for _, pick := range res.Picks {
		created, err := store.InsertCalibrationItem(ctx, goldItem(pick, opts))
		if err != nil {
			return res, fmt.Errorf("insert gold item %s: %w", pick.PublicationID, err)
		}

		if created {
			res.Inserted++
		} else {
			res.Merged++
		}
	}

	logger.Info().Int("inserted", res.Inserted).Int("merged", res.Merged).Str("gold_set", opts.Name).Msg("gold set stored")

	return res, nil
}

func goldItem(pick calibration.GoldPick, opts GoldSetOptions) *domain.CalibrationItem {
	mode := opts.Mode
	if mode == "" {
		mode = pick.Mode
	}

	score := pick.Score

	return &domain.CalibrationItem{
		PublicationID:       pick.PublicationID,
		Mode:                mode,
		RunID:               pick.RunID,
		Source:              pick.Source,
		PublishedDate:       pick.PublishedDate,
		Title:               pick.Title,
		FinalRelevancyScore: &score,
		FinalSummary:        pick.FinalSummary,
		Tags: domain.Tags{
			domain.TagGold:    true,
			domain.TagGoldSet: opts.Name,
			domain.TagBucket:  pick.Bucket,
		},
	}
}
