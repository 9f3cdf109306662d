package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/core/embeddings"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// DefaultEmbedBatchSize is how many texts go into one provider call during backfills.
const DefaultEmbedBatchSize = 50

// ErrNoEmbedder is returned when embedding is requested without a configured provider.
var ErrNoEmbedder = fmt.Errorf("embedding provider not configured: %w", apperrors.ErrUnavailable)

// Embedder turns texts into vectors, preserving order.
type Embedder interface {
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Configured() bool
	Model() string
}

// EmbeddingJob is one publication to embed, with the fields stored alongside the vector.
type EmbeddingJob struct {
	PublicationID       string
	Title               string
	Summary             string
	Rationale           string
	Source              string
	PublishedDate       *time.Time
	LatestRunID         string
	FinalRelevancyScore *int
	CredibilityScore    *int
}

// JobFromPublication builds a job from a stored publication.
func JobFromPublication(p *domain.Publication) EmbeddingJob {
	job := EmbeddingJob{
		PublicationID:       p.PublicationID,
		Title:               p.Title,
		Summary:             firstNonEmpty(p.FinalSummary, p.Summary),
		Rationale:           p.EvaluatorRationale,
		Source:              p.Source,
		LatestRunID:         firstNonEmpty(p.ScoringRunID, p.LatestRunID),
		FinalRelevancyScore: p.FinalRelevancyScore,
		CredibilityScore:    p.CredibilityScore,
	}

	if p.PublishedDate != "" {
		if t, err := dateparse.ParseAny(p.PublishedDate); err == nil {
			job.PublishedDate = &t
		}
	}

	return job
}

// EmbedOptions tunes an embedding batch.
type EmbedOptions struct {
	BatchSize int
	// DryRun builds texts but neither calls the provider nor writes.
	DryRun bool
}

// EmbedJobs embeds jobs in batches and upserts the vectors. Jobs without a
// title, and every job of a batch the provider rejects, are reported as errors.
func (s *Service) EmbedJobs(ctx context.Context, jobs []EmbeddingJob, opts EmbedOptions) (Result, error) {
	var res Result

	if !opts.DryRun && (s.embedder == nil || !s.embedder.Configured()) {
		return res, ErrNoEmbedder
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultEmbedBatchSize
	}

	type prepared struct {
		job  EmbeddingJob
		text string
	}

	ready := make([]prepared, 0, len(jobs))

	for _, job := range jobs {
		text, err := embeddings.BuildText(embeddings.TextInput{
			Title:     job.Title,
			Summary:   job.Summary,
			Rationale: job.Rationale,
			Source:    job.Source,
		})
		if err != nil {
			observe(kindEmbedding, false, err)
			res.fail(job.PublicationID, err)

			continue
		}

		ready = append(ready, prepared{job: job, text: text})
	}

	if opts.DryRun {
		s.logger.Info().Int("would_embed", len(ready)).Int("skipped", res.Errors).Msg("embedding dry run")
		return res, nil
	}

	for i, batch := range embeddings.Chunk(ready, opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.text
		}

		vectors, err := s.embedder.GetEmbeddings(ctx, texts)
		if err != nil {
			s.logger.Error().Err(err).Int("batch", i+1).Int("size", len(batch)).Msg("embedding batch failed")

			for _, p := range batch {
				observe(kindEmbedding, false, err)
				res.fail(p.job.PublicationID, err)
			}

			continue
		}

		for j, p := range batch {
			inserted, err := s.store.UpsertEmbedding(ctx, &domain.PublicationEmbedding{
				PublicationID:       p.job.PublicationID,
				Title:               p.job.Title,
				Source:              p.job.Source,
				PublishedDate:       p.job.PublishedDate,
				EmbeddedText:        p.text,
				Embedding:           vectors[j],
				EmbeddingModel:      s.embedder.Model(),
				LatestRunID:         p.job.LatestRunID,
				FinalRelevancyScore: p.job.FinalRelevancyScore,
				CredibilityScore:    p.job.CredibilityScore,
				FinalSummary:        p.job.Summary,
			})
			observe(kindEmbedding, inserted, err)

			if err != nil {
				res.fail(p.job.PublicationID, err)
				continue
			}

			res.record(inserted)
		}

		s.logger.Debug().Int("batch", i+1).Int("size", len(batch)).Msg("embedding batch stored")
	}

	return res, nil
}

// EmbedPublications embeds stored publications by id. Unknown ids are
// reported as errors.
func (s *Service) EmbedPublications(ctx context.Context, ids []string) (Result, error) {
	if len(ids) == 0 {
		return Result{}, fmt.Errorf("publication_ids must contain at least one id: %w", apperrors.ErrValidation)
	}

	if s.embedder == nil || !s.embedder.Configured() {
		return Result{}, ErrNoEmbedder
	}

	var (
		missing Result
		jobs    = make([]EmbeddingJob, 0, len(ids))
	)

	for _, id := range ids {
		id = strings.TrimSpace(id)

		pub, err := s.store.GetPublication(ctx, id)
		if err != nil {
			return Result{}, fmt.Errorf("load publication %s: %w", id, err)
		}

		if pub == nil {
			missing.fail(id, apperrors.ErrNotFound)
			continue
		}

		jobs = append(jobs, JobFromPublication(pub))
	}

	res, err := s.EmbedJobs(ctx, jobs, EmbedOptions{})
	res.Errors += missing.Errors
	res.Failures = append(missing.Failures, res.Failures...)

	return res, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
