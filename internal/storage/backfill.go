package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// EmbeddingCandidate is a publication seen in tri-model events that has no
// stored vector yet.
type EmbeddingCandidate struct {
	PublicationID       string
	Title               string
	RunID               string
	EvaluatorRationale  string
	FinalRelevancyScore *float64
	CreatedAt           time.Time
	Source              string
	FinalSummary        string
	CredibilityScore    *int
}

// reviewFields are the keys read from per-model review documents.
type reviewFields struct {
	Source           string   `json:"source"`
	Summary          string   `json:"summary"`
	CredibilityScore *float64 `json:"credibility_score"`
}

// ListEmbeddingCandidates returns the newest event per publication lacking an
// embedding, newest first.
func (db *DB) ListEmbeddingCandidates(ctx context.Context, since *time.Time, limit int) ([]EmbeddingCandidate, error) {
	q := psql.Select(
		"le.publication_id", "le.title", "le.run_id", "le.evaluator_rationale", "le.final_relevancy_score",
		"le.created_at", "le.claude_review", "le.gemini_review", "le.gpt_eval",
	).
		Prefix(`WITH latest_events AS (
			SELECT DISTINCT ON (publication_id)
				publication_id, title, run_id, evaluator_rationale, final_relevancy_score,
				created_at, claude_review, gemini_review, gpt_eval
			FROM tri_model_events
			WHERE title IS NOT NULL AND title != ''
			ORDER BY publication_id, created_at DESC
		)`).
		From("latest_events le").
		LeftJoin("publication_embeddings pe ON le.publication_id = pe.publication_id").
		Where("pe.publication_id IS NULL").
		OrderBy("le.created_at DESC")

	if since != nil {
		q = q.Where("le.created_at >= ?", *since)
	}

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build embedding candidates query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list embedding candidates: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingCandidate

	for rows.Next() {
		var (
			c                   EmbeddingCandidate
			rationale           pgtype.Text
			score               pgtype.Float8
			claude, gemini, gpt []byte
		)

		if err := rows.Scan(&c.PublicationID, &c.Title, &c.RunID, &rationale, &score, &c.CreatedAt,
			&claude, &gemini, &gpt); err != nil {
			return nil, fmt.Errorf("scan embedding candidate: %w", err)
		}

		c.EvaluatorRationale = fromText(rationale)
		c.FinalRelevancyScore = fromFloat8Ptr(score)
		fillFromReviews(&c, claude, gemini, gpt)
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding candidates: %w", err)
	}

	return out, nil
}

// fillFromReviews takes the first non-empty source, summary and credibility
// score found across the review documents. Unreadable documents are skipped.
func fillFromReviews(c *EmbeddingCandidate, docs ...[]byte) {
	for _, doc := range docs {
		if len(doc) == 0 {
			continue
		}

		var r reviewFields
		if err := json.Unmarshal(doc, &r); err != nil {
			continue
		}

		if c.Source == "" {
			c.Source = r.Source
		}

		if c.FinalSummary == "" {
			c.FinalSummary = r.Summary
		}

		if c.CredibilityScore == nil && r.CredibilityScore != nil && *r.CredibilityScore != 0 {
			c.CredibilityScore = domain.IntPtr(domain.ClampScore(int(*r.CredibilityScore)))
		}
	}
}

// ListPublicationBackfill returns publications known from embeddings or
// tri-model events that are missing from the publications table.
func (db *DB) ListPublicationBackfill(ctx context.Context, limit int) ([]domain.Publication, error) {
	q := psql.Select(
		"COALESCE(pe.publication_id, le.publication_id)",
		"COALESCE(pe.title, le.title)",
		"pe.source",
		"pe.published_date",
		"COALESCE(pe.latest_run_id, le.run_id)",
		"COALESCE(pe.final_relevancy_score, ROUND(le.final_relevancy_score)::int)",
		"pe.credibility_score",
	).
		Prefix(`WITH latest_events AS (
			SELECT DISTINCT ON (publication_id)
				publication_id, title, run_id, final_relevancy_score, created_at
			FROM tri_model_events
			ORDER BY publication_id, created_at DESC
		)`).
		From("latest_events le").
		JoinClause("FULL OUTER JOIN publication_embeddings pe ON pe.publication_id = le.publication_id").
		LeftJoin("publications p ON p.publication_id = COALESCE(pe.publication_id, le.publication_id)").
		Where("p.publication_id IS NULL").
		Where("COALESCE(pe.title, le.title, '') != ''").
		OrderBy("le.created_at DESC NULLS LAST")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publication backfill query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list publication backfill: %w", err)
	}
	defer rows.Close()

	var out []domain.Publication

	for rows.Next() {
		var (
			p                  domain.Publication
			source, runID      pgtype.Text
			published          pgtype.Timestamptz
			score, credibility pgtype.Int4
		)

		if err := rows.Scan(&p.PublicationID, &p.Title, &source, &published, &runID, &score, &credibility); err != nil {
			return nil, fmt.Errorf("scan publication backfill: %w", err)
		}

		p.Source = fromText(source)
		p.LatestRunID = fromText(runID)
		p.FinalRelevancyScore = fromInt4Ptr(score)
		p.CredibilityScore = fromInt4Ptr(credibility)

		if published.Valid {
			p.PublishedDate = published.Time.UTC().Format(time.DateOnly)
		}

		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publication backfill: %w", err)
	}

	return out, nil
}

// ListGoldCandidates returns scored publications not yet queued for calibration.
func (db *DB) ListGoldCandidates(ctx context.Context) ([]domain.GoldCandidate, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT p.publication_id, p.title, p.source, p.published_date, p.latest_run_id,
		       p.final_relevancy_score, p.final_summary
		FROM publications p
		LEFT JOIN calibration_items ci ON ci.publication_id = p.publication_id
		WHERE p.final_relevancy_score IS NOT NULL
		  AND p.title IS NOT NULL
		  AND ci.id IS NULL
		ORDER BY p.publication_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list gold candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.GoldCandidate

	for rows.Next() {
		var (
			c                            domain.GoldCandidate
			source, date, runID, summary pgtype.Text
			score                        int
		)

		if err := rows.Scan(&c.PublicationID, &c.Title, &source, &date, &runID, &score, &summary); err != nil {
			return nil, fmt.Errorf("scan gold candidate: %w", err)
		}

		c.Source = fromText(source)
		c.RunID = fromText(runID)
		c.FinalSummary = fromText(summary)
		c.Score = float64(score)

		if t, err := dateparse.ParseAny(fromText(date)); err == nil {
			c.PublishedDate = &t
		}

		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gold candidates: %w", err)
	}

	return out, nil
}

// ListItemsMissingAbstract returns calibration items with a URL but no abstract.
func (db *DB) ListItemsMissingAbstract(ctx context.Context, limit int) ([]domain.CalibrationItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+calibrationItemColumns+`
		FROM calibration_items ci
		WHERE ci.url IS NOT NULL AND ci.url != ''
		  AND (ci.abstract IS NULL OR ci.abstract = '')
		ORDER BY ci.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list items missing abstract: %w", err)
	}
	defer rows.Close()

	var out []domain.CalibrationItem

	for rows.Next() {
		it, err := scanCalibrationItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calibration item: %w", err)
		}

		out = append(out, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibration items: %w", err)
	}

	return out, nil
}

// SetCalibrationAbstract stores an extracted abstract for an item.
func (db *DB) SetCalibrationAbstract(ctx context.Context, itemID, abstract string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE calibration_items SET abstract = $2, updated_at = NOW() WHERE id = $1
	`, toUUID(itemID), SanitizeUTF8(abstract))
	if err != nil {
		return fmt.Errorf("set calibration abstract: %w", err)
	}

	return nil
}
