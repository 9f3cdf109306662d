// Package jobs holds the maintenance jobs run from the command line and the
// serve loop: embedding and publication backfills, the gold-set builder, and
// the scheduled feed and abstract tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/ingest"
	db "github.com/lueurxax/acitrack/internal/storage"
)

// BackfillStore reads the rows the backfills fill in and writes publications.
type BackfillStore interface {
	ListEmbeddingCandidates(ctx context.Context, since *time.Time, limit int) ([]db.EmbeddingCandidate, error)
	ListPublicationBackfill(ctx context.Context, limit int) ([]domain.Publication, error)
	PublicationCoverage(ctx context.Context) (*db.Coverage, error)
	UpsertPublication(ctx context.Context, p *domain.Publication) (bool, error)
}

// JobEmbedder embeds prepared jobs.
type JobEmbedder interface {
	EmbedJobs(ctx context.Context, jobs []ingest.EmbeddingJob, opts ingest.EmbedOptions) (ingest.Result, error)
}

// Backfiller fills gaps left by older pipeline runs.
type Backfiller struct {
	store    BackfillStore
	embedder JobEmbedder
	logger   *zerolog.Logger
}

func NewBackfiller(store BackfillStore, embedder JobEmbedder, logger *zerolog.Logger) *Backfiller {
	return &Backfiller{store: store, embedder: embedder, logger: logger}
}

// EmbeddingBackfillOptions selects which candidates get embedded.
type EmbeddingBackfillOptions struct {
	Since     *time.Time
	Limit     int
	BatchSize int
	DryRun    bool
}

// EmbeddingBackfillResult is the embedding result plus how many candidates were found.
type EmbeddingBackfillResult struct {
	Candidates int `json:"candidates"`
	ingest.Result
}

// BackfillEmbeddings embeds publications that appear in tri-model events but
// have no stored vector.
func (b *Backfiller) BackfillEmbeddings(ctx context.Context, opts EmbeddingBackfillOptions) (EmbeddingBackfillResult, error) {
	candidates, err := b.store.ListEmbeddingCandidates(ctx, opts.Since, opts.Limit)
	if err != nil {
		return EmbeddingBackfillResult{}, fmt.Errorf("list embedding candidates: %w", err)
	}

	res := EmbeddingBackfillResult{Candidates: len(candidates)}
	if len(candidates) == 0 {
		b.logger.Info().Msg("no publications need embeddings")

		return res, nil
	}

	jobs := make([]ingest.EmbeddingJob, len(candidates))
	for i := range candidates {
		jobs[i] = JobFromCandidate(&candidates[i])
	}

	b.logger.Info().Int("candidates", len(jobs)).Bool("dry_run", opts.DryRun).Msg("embedding backfill started")

	res.Result, err = b.embedder.EmbedJobs(ctx, jobs, ingest.EmbedOptions{BatchSize: opts.BatchSize, DryRun: opts.DryRun})
	if err != nil {
		return res, fmt.Errorf("embed candidates: %w", err)
	}

	b.logger.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("errors", res.Errors).
		Msg("embedding backfill finished")

	return res, nil
}

// JobFromCandidate converts an event-derived candidate. Event scores are
// fractional and get rounded onto the integer scale vectors are stored with.
func JobFromCandidate(c *db.EmbeddingCandidate) ingest.EmbeddingJob {
	job := ingest.EmbeddingJob{
		PublicationID:    c.PublicationID,
		Title:            c.Title,
		Summary:          c.FinalSummary,
		Rationale:        c.EvaluatorRationale,
		Source:           c.Source,
		LatestRunID:      c.RunID,
		CredibilityScore: c.CredibilityScore,
	}

	if c.FinalRelevancyScore != nil {
		job.FinalRelevancyScore = domain.IntPtr(domain.ClampScore(int(*c.FinalRelevancyScore + 0.5)))
	}

	return job
}

// PublicationBackfillResult reports a publications backfill.
type PublicationBackfillResult struct {
	Candidates int          `json:"candidates"`
	Inserted   int          `json:"inserted"`
	Updated    int          `json:"updated"`
	Errors     int          `json:"errors"`
	Coverage   *db.Coverage `json:"coverage,omitempty"`
}

// BackfillPublications creates publication rows for ids only known from
// embeddings or events, then reports metadata coverage.
func (b *Backfiller) BackfillPublications(ctx context.Context, limit int, dryRun bool) (PublicationBackfillResult, error) {
	pubs, err := b.store.ListPublicationBackfill(ctx, limit)
	if err != nil {
		return PublicationBackfillResult{}, fmt.Errorf("list publication backfill: %w", err)
	}

	res := PublicationBackfillResult{Candidates: len(pubs)}

	for i := range pubs {
		p := &pubs[i]

		if dryRun {
			b.logger.Info().Str("publication_id", p.PublicationID).Str("title", p.Title).Msg("dry run: would create publication")

			continue
		}

		inserted, err := b.store.UpsertPublication(ctx, p)
		if err != nil {
			res.Errors++
			b.logger.Warn().Err(err).Str("publication_id", p.PublicationID).Msg("publication backfill failed")

			continue
		}

		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	res.Coverage, err = b.store.PublicationCoverage(ctx)
	if err != nil {
		return res, fmt.Errorf("publication coverage: %w", err)
	}

	b.logger.Info().
		Int("candidates", res.Candidates).
		Int("inserted", res.Inserted).
		Int("errors", res.Errors).
		Int("total", res.Coverage.Total).
		Int("with_source", res.Coverage.WithSource).
		Int("with_date", res.Coverage.WithDate).
		Int("with_url", res.Coverage.WithURL).
		Int("with_run_id", res.Coverage.WithRunID).
		Msg("publication backfill finished")

	return res, nil
}
