package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/ports"
	"github.com/lueurxax/acitrack/internal/platform/observability"
)

// Record kinds, used as metric labels.
const (
	kindRun         = "run"
	kindPublication = "publication"
	kindEmbedding   = "embedding"

	outcomeInserted = "inserted"
	outcomeUpdated  = "updated"
	outcomeError    = "error"
)

// Store is what ingestion writes to.
type Store interface {
	ports.RunStore
	ports.EventStore
	ports.PublicationStore
	ports.VectorStore
}

// Service ingests pipeline output.
type Service struct {
	store    Store
	embedder Embedder
	logger   *zerolog.Logger
}

// NewService creates an ingest service. embedder may be nil when no provider
// is configured; embedding requests then fail as unavailable.
func NewService(store Store, embedder Embedder, logger *zerolog.Logger) *Service {
	return &Service{store: store, embedder: embedder, logger: logger}
}

func observe(kind string, inserted bool, err error) {
	outcome := outcomeUpdated

	switch {
	case err != nil:
		outcome = outcomeError
	case inserted:
		outcome = outcomeInserted
	}

	observability.IngestItems.WithLabelValues(kind, outcome).Inc()
}

// IngestRuns upserts runs together with their must-reads and tri-model events.
// A run counts as failed when the run row or any of its children fails.
func (s *Service) IngestRuns(ctx context.Context, runs []RunPayload) Result {
	var res Result

	for _, p := range runs {
		inserted, err := s.ingestRun(ctx, p)
		observe(kindRun, inserted, err)

		if err != nil {
			s.logger.Warn().Err(err).Str("run_id", p.RunID).Msg("run ingest failed")
			res.fail(p.RunID, err)

			continue
		}

		res.record(inserted)
	}

	s.logger.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("errors", res.Errors).
		Msg("runs ingested")

	return res
}

func (s *Service) ingestRun(ctx context.Context, p RunPayload) (bool, error) {
	run, err := p.ToDomain()
	if err != nil {
		return false, err
	}

	inserted, err := s.store.UpsertRun(ctx, run)
	if err != nil {
		return false, fmt.Errorf("upsert run: %w", err)
	}

	if len(p.MustReads) > 0 && string(p.MustReads) != "null" {
		if err := s.store.SaveMustReads(ctx, run.RunID, run.Mode, p.MustReads); err != nil {
			return inserted, fmt.Errorf("save must-reads: %w", err)
		}
	}

	for _, ep := range p.Events {
		event, err := ep.ToDomain(run.RunID, run.Mode)
		if err != nil {
			return inserted, err
		}

		if _, err := s.store.UpsertTriModelEvent(ctx, event); err != nil {
			return inserted, fmt.Errorf("upsert event %s: %w", ep.PublicationID, err)
		}
	}

	return inserted, nil
}

// IngestPublications upserts canonical publication rows.
func (s *Service) IngestPublications(ctx context.Context, pubs []PublicationPayload) Result {
	var res Result

	for _, p := range pubs {
		pub, err := p.ToDomain()
		if err == nil {
			var inserted bool

			inserted, err = s.store.UpsertPublication(ctx, pub)
			if err == nil {
				observe(kindPublication, inserted, nil)
				res.record(inserted)

				continue
			}
		}

		observe(kindPublication, false, err)
		s.logger.Warn().Err(err).Str("publication_id", p.PublicationID).Msg("publication ingest failed")
		res.fail(p.PublicationID, err)
	}

	s.logger.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("errors", res.Errors).
		Msg("publications ingested")

	return res
}
