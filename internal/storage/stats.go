package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// PublicationStats aggregates the publications table.
func (db *DB) PublicationStats(ctx context.Context) (*domain.PublicationStats, error) {
	var (
		st                        domain.PublicationStats
		avgRelevancy, avgCredible pgtype.Float8
		latest                    pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(final_relevancy_score),
		       COUNT(credibility_score),
		       AVG(final_relevancy_score)::float8,
		       AVG(credibility_score)::float8,
		       COUNT(*) FILTER (WHERE agreement_level = 'high'),
		       COUNT(*) FILTER (WHERE agreement_level = 'moderate'),
		       COUNT(*) FILTER (WHERE agreement_level = 'low'),
		       MAX(scoring_updated_at)
		FROM publications
	`).Scan(&st.Total, &st.Scored, &st.WithCredibility, &avgRelevancy, &avgCredible,
		&st.HighAgreement, &st.ModerateAgreement, &st.LowAgreement, &latest)
	if err != nil {
		return nil, fmt.Errorf("publication stats: %w", err)
	}

	st.AvgRelevancy = fromFloat8Ptr(avgRelevancy)
	st.AvgCredibility = fromFloat8Ptr(avgCredible)
	st.LatestScoredAt = fromTimestamptzPtr(latest)

	return &st, nil
}

// EmbeddingStats aggregates stored vectors.
func (db *DB) EmbeddingStats(ctx context.Context) (*domain.EmbeddingStats, error) {
	var (
		st     domain.EmbeddingStats
		latest pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(ARRAY_AGG(DISTINCT embedding_model ORDER BY embedding_model)
		                FILTER (WHERE embedding_model IS NOT NULL), '{}'),
		       MAX(embedded_at)
		FROM publication_embeddings
	`).Scan(&st.Total, &st.Models, &latest)
	if err != nil {
		return nil, fmt.Errorf("embedding stats: %w", err)
	}

	st.LatestEmbedded = fromTimestamptzPtr(latest)

	return &st, nil
}

// Coverage counts how much metadata the publications table carries.
type Coverage struct {
	Total      int
	WithSource int
	WithDate   int
	WithURL    int
	WithRunID  int
}

// PublicationCoverage reports metadata coverage for the backfill summary.
func (db *DB) PublicationCoverage(ctx context.Context) (*Coverage, error) {
	var c Coverage

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(source), COUNT(published_date), COUNT(url), COUNT(latest_run_id)
		FROM publications
	`).Scan(&c.Total, &c.WithSource, &c.WithDate, &c.WithURL, &c.WithRunID)
	if err != nil {
		return nil, fmt.Errorf("publication coverage: %w", err)
	}

	return &c, nil
}
