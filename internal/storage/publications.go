package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

const publicationColumns = `publication_id, title, authors, source, venue, published_date, url, canonical_url,
	doi, pmid, source_type, raw_text, summary,
	final_relevancy_score, final_relevancy_reason, final_summary, claude_score, gemini_score,
	agreement_level, confidence, evaluator_rationale, disagreements, final_signals,
	credibility_score, credibility_reason, credibility_confidence, credibility_signals,
	scoring_run_id, scoring_updated_at, latest_run_id, created_at, updated_at`

func scanPublication(row pgx.Row) (*domain.Publication, error) {
	var (
		p domain.Publication

		authors, source, venue, publishedDate, url, canonicalURL pgtype.Text
		doi, pmid, sourceType, rawText, summary                  pgtype.Text
		relReason, finalSummary, agreement, confidence           pgtype.Text
		rationale, disagreements                                 pgtype.Text
		credReason, credConfidence                               pgtype.Text
		scoringRunID, latestRunID                                pgtype.Text
		relScore, claudeScore, geminiScore, credScore            pgtype.Int4
		scoringUpdatedAt                                         pgtype.Timestamptz
	)

	err := row.Scan(
		&p.PublicationID, &p.Title, &authors, &source, &venue, &publishedDate, &url, &canonicalURL,
		&doi, &pmid, &sourceType, &rawText, &summary,
		&relScore, &relReason, &finalSummary, &claudeScore, &geminiScore,
		&agreement, &confidence, &rationale, &disagreements, &p.FinalSignals,
		&credScore, &credReason, &credConfidence, &p.CredibilitySignals,
		&scoringRunID, &scoringUpdatedAt, &latestRunID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Authors = fromText(authors)
	p.Source = fromText(source)
	p.Venue = fromText(venue)
	p.PublishedDate = fromText(publishedDate)
	p.URL = fromText(url)
	p.CanonicalURL = fromText(canonicalURL)
	p.DOI = fromText(doi)
	p.PMID = fromText(pmid)
	p.SourceType = fromText(sourceType)
	p.RawText = fromText(rawText)
	p.Summary = fromText(summary)
	p.FinalRelevancyScore = fromInt4Ptr(relScore)
	p.FinalRelevancyReason = fromText(relReason)
	p.FinalSummary = fromText(finalSummary)
	p.ClaudeScore = fromInt4Ptr(claudeScore)
	p.GeminiScore = fromInt4Ptr(geminiScore)
	p.AgreementLevel = fromText(agreement)
	p.Confidence = fromText(confidence)
	p.EvaluatorRationale = fromText(rationale)
	p.Disagreements = fromText(disagreements)
	p.CredibilityScore = fromInt4Ptr(credScore)
	p.CredibilityReason = fromText(credReason)
	p.CredibilityConfidence = fromText(credConfidence)
	p.ScoringRunID = fromText(scoringRunID)
	p.ScoringUpdatedAt = fromTimestamptzPtr(scoringUpdatedAt)
	p.LatestRunID = fromText(latestRunID)

	return &p, nil
}

func collectPublications(rows pgx.Rows) ([]domain.Publication, error) {
	defer rows.Close()

	var out []domain.Publication

	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}

		out = append(out, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publications: %w", err)
	}

	return out, nil
}

// UpsertPublication writes a publication. Scoring columns are only
// overwritten when the incoming row carries a relevancy score, so metadata-only
// ingests (feeds, backfills) never erase scores.
func (db *DB) UpsertPublication(ctx context.Context, p *domain.Publication) (bool, error) {
	var inserted bool

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO publications (
			publication_id, title, authors, source, venue, published_date, url, canonical_url,
			doi, pmid, source_type, raw_text, summary,
			final_relevancy_score, final_relevancy_reason, final_summary, claude_score, gemini_score,
			agreement_level, confidence, evaluator_rationale, disagreements, final_signals,
			credibility_score, credibility_reason, credibility_confidence, credibility_signals,
			scoring_run_id, scoring_updated_at, latest_run_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
		ON CONFLICT (publication_id) DO UPDATE SET
			title = EXCLUDED.title,
			authors = COALESCE(EXCLUDED.authors, publications.authors),
			source = COALESCE(EXCLUDED.source, publications.source),
			venue = COALESCE(EXCLUDED.venue, publications.venue),
			published_date = COALESCE(EXCLUDED.published_date, publications.published_date),
			url = COALESCE(EXCLUDED.url, publications.url),
			canonical_url = COALESCE(EXCLUDED.canonical_url, publications.canonical_url),
			doi = COALESCE(EXCLUDED.doi, publications.doi),
			pmid = COALESCE(EXCLUDED.pmid, publications.pmid),
			source_type = COALESCE(EXCLUDED.source_type, publications.source_type),
			raw_text = COALESCE(EXCLUDED.raw_text, publications.raw_text),
			summary = COALESCE(EXCLUDED.summary, publications.summary),
			final_relevancy_score = CASE WHEN EXCLUDED.final_relevancy_score IS NULL
				THEN publications.final_relevancy_score ELSE EXCLUDED.final_relevancy_score END,
			final_relevancy_reason = CASE WHEN EXCLUDED.final_relevancy_score IS NULL
				THEN publications.final_relevancy_reason ELSE EXCLUDED.final_relevancy_reason END,
			final_summary = COALESCE(EXCLUDED.final_summary, publications.final_summary),
			claude_score = COALESCE(EXCLUDED.claude_score, publications.claude_score),
			gemini_score = COALESCE(EXCLUDED.gemini_score, publications.gemini_score),
			agreement_level = COALESCE(EXCLUDED.agreement_level, publications.agreement_level),
			confidence = COALESCE(EXCLUDED.confidence, publications.confidence),
			evaluator_rationale = COALESCE(EXCLUDED.evaluator_rationale, publications.evaluator_rationale),
			disagreements = COALESCE(EXCLUDED.disagreements, publications.disagreements),
			final_signals = COALESCE(EXCLUDED.final_signals, publications.final_signals),
			credibility_score = COALESCE(EXCLUDED.credibility_score, publications.credibility_score),
			credibility_reason = COALESCE(EXCLUDED.credibility_reason, publications.credibility_reason),
			credibility_confidence = COALESCE(EXCLUDED.credibility_confidence, publications.credibility_confidence),
			credibility_signals = COALESCE(EXCLUDED.credibility_signals, publications.credibility_signals),
			scoring_run_id = COALESCE(EXCLUDED.scoring_run_id, publications.scoring_run_id),
			scoring_updated_at = COALESCE(EXCLUDED.scoring_updated_at, publications.scoring_updated_at),
			latest_run_id = COALESCE(EXCLUDED.latest_run_id, publications.latest_run_id),
			updated_at = NOW()
		RETURNING (xmax = 0), created_at, updated_at
	`,
		p.PublicationID, SanitizeUTF8(p.Title), toText(p.Authors), toText(p.Source), toText(p.Venue),
		toText(p.PublishedDate), toText(p.URL), toText(p.CanonicalURL),
		toText(p.DOI), toText(p.PMID), toText(p.SourceType), toText(p.RawText), toText(p.Summary),
		toInt4Ptr(p.FinalRelevancyScore), toText(p.FinalRelevancyReason), toText(p.FinalSummary),
		toInt4Ptr(p.ClaudeScore), toInt4Ptr(p.GeminiScore),
		toText(p.AgreementLevel), toText(p.Confidence), toText(p.EvaluatorRationale), toText(p.Disagreements),
		toJSONB(p.FinalSignals),
		toInt4Ptr(p.CredibilityScore), toText(p.CredibilityReason), toText(p.CredibilityConfidence),
		toJSONB(p.CredibilitySignals),
		toText(p.ScoringRunID), toTimestamptzPtr(p.ScoringUpdatedAt), toText(p.LatestRunID),
	).Scan(&inserted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return false, mapPgError(err, "upsert publication")
	}

	return inserted, nil
}

func (db *DB) GetPublication(ctx context.Context, publicationID string) (*domain.Publication, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+publicationColumns+` FROM publications WHERE publication_id = $1`, publicationID)

	p, err := scanPublication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil publication means not found
	}

	if err != nil {
		return nil, fmt.Errorf("get publication: %w", err)
	}

	return p, nil
}

// ListPublicationsByScoringRun returns publications scored by runID, best first.
func (db *DB) ListPublicationsByScoringRun(ctx context.Context, runID string) ([]domain.Publication, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+publicationColumns+`
		FROM publications
		WHERE scoring_run_id = $1
		ORDER BY final_relevancy_score DESC NULLS LAST, publication_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list publications by run: %w", err)
	}

	return collectPublications(rows)
}

// ListTopPublicationsSince returns scored publications updated since the cutoff, best first.
func (db *DB) ListTopPublicationsSince(ctx context.Context, since time.Time, limit int) ([]domain.Publication, error) {
	q := psql.Select(publicationColumns).
		From("publications").
		Where("final_relevancy_score IS NOT NULL").
		Where("COALESCE(scoring_updated_at, updated_at) >= ?", since).
		OrderBy("final_relevancy_score DESC", "publication_id")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top publications query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list top publications: %w", err)
	}

	return collectPublications(rows)
}

// CountScoredPublicationsSince counts scored publications updated since the cutoff.
func (db *DB) CountScoredPublicationsSince(ctx context.Context, since time.Time) (int, error) {
	var n int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM publications
		WHERE final_relevancy_score IS NOT NULL
		  AND COALESCE(scoring_updated_at, updated_at) >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scored publications: %w", err)
	}

	return n, nil
}

// SetPublicationRawText fills raw_text when it is still empty.
func (db *DB) SetPublicationRawText(ctx context.Context, publicationID, text string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE publications
		SET raw_text = $2, updated_at = NOW()
		WHERE publication_id = $1 AND (raw_text IS NULL OR raw_text = '')
	`, publicationID, SanitizeUTF8(text))
	if err != nil {
		return fmt.Errorf("set publication raw text: %w", err)
	}

	return nil
}
