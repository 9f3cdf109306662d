package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

const runColumns = `run_id, mode, started_at, window_start, window_end, counts, config, artifacts, created_at, updated_at`

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		r                                 domain.Run
		startedAt, windowStart, windowEnd pgtype.Timestamptz
		counts, config, artifacts         []byte
	)

	if err := row.Scan(&r.RunID, &r.Mode, &startedAt, &windowStart, &windowEnd, &counts, &config, &artifacts, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	r.StartedAt = fromTimestamptzPtr(startedAt)
	r.WindowStart = fromTimestamptzPtr(windowStart)
	r.WindowEnd = fromTimestamptzPtr(windowEnd)
	r.Config = config
	r.Artifacts = artifacts

	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &r.Counts); err != nil {
			return nil, fmt.Errorf("decode run counts: %w", err)
		}
	}

	return &r, nil
}

// LatestRun returns the run with the greatest started_at for mode.
func (db *DB) LatestRun(ctx context.Context, mode string) (*domain.Run, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE mode = $1
		ORDER BY started_at DESC NULLS LAST, created_at DESC
		LIMIT 1
	`, mode)

	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil run means no run for mode
	}

	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", err)
	}

	return r, nil
}

func (db *DB) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID)

	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil run means not found
	}

	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	return r, nil
}

// UpsertRun inserts or replaces a run and reports whether it was new.
func (db *DB) UpsertRun(ctx context.Context, run *domain.Run) (bool, error) {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return false, fmt.Errorf("encode run counts: %w", err)
	}

	var inserted bool

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO runs (run_id, mode, started_at, window_start, window_end, counts, config, artifacts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			started_at = EXCLUDED.started_at,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			counts = EXCLUDED.counts,
			config = EXCLUDED.config,
			artifacts = EXCLUDED.artifacts,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`, run.RunID, run.Mode, toTimestamptzPtr(run.StartedAt), toTimestamptzPtr(run.WindowStart),
		toTimestamptzPtr(run.WindowEnd), counts, toJSONB(run.Config), toJSONB(run.Artifacts)).Scan(&inserted)
	if err != nil {
		return false, mapPgError(err, "upsert run")
	}

	return inserted, nil
}

func (db *DB) GetMustReads(ctx context.Context, runID string) (*domain.MustReadSet, error) {
	var m domain.MustReadSet

	err := db.Pool.QueryRow(ctx, `
		SELECT run_id, mode, document, updated_at
		FROM must_reads
		WHERE run_id = $1
	`, runID).Scan(&m.RunID, &m.Mode, &m.Document, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil set means the run has no must-reads
	}

	if err != nil {
		return nil, fmt.Errorf("get must-reads: %w", err)
	}

	return &m, nil
}

// SaveMustReads replaces the must-reads document for a run.
func (db *DB) SaveMustReads(ctx context.Context, runID, mode string, document json.RawMessage) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO must_reads (run_id, mode, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			document = EXCLUDED.document,
			updated_at = NOW()
	`, runID, mode, []byte(document))
	if err != nil {
		return mapPgError(err, "save must-reads")
	}

	return nil
}

// UpsertTriModelEvent stores an event keyed by (run, publication).
func (db *DB) UpsertTriModelEvent(ctx context.Context, e *domain.TriModelEvent) (bool, error) {
	var inserted bool

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO tri_model_events (
			run_id, mode, publication_id, title, agreement_level, disagreements,
			evaluator_rationale, claude_review, gemini_review, gpt_eval, final_relevancy_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, publication_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			title = EXCLUDED.title,
			agreement_level = EXCLUDED.agreement_level,
			disagreements = EXCLUDED.disagreements,
			evaluator_rationale = EXCLUDED.evaluator_rationale,
			claude_review = EXCLUDED.claude_review,
			gemini_review = EXCLUDED.gemini_review,
			gpt_eval = EXCLUDED.gpt_eval,
			final_relevancy_score = EXCLUDED.final_relevancy_score
		RETURNING id, created_at, (xmax = 0)
	`, e.RunID, e.Mode, e.PublicationID, toText(e.Title), toText(e.AgreementLevel), toText(e.Disagreements),
		toText(e.EvaluatorRationale), toJSONB(e.ClaudeReview), toJSONB(e.GeminiReview), toJSONB(e.GPTEval),
		toFloat8Ptr(e.FinalRelevancyScore)).Scan(&e.ID, &e.CreatedAt, &inserted)
	if err != nil {
		return false, mapPgError(err, "upsert tri-model event")
	}

	return inserted, nil
}
