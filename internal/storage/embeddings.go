package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

// VectorExtensionAvailable reports whether pgvector is installed.
func (db *DB) VectorExtensionAvailable(ctx context.Context) (bool, error) {
	var installed bool

	err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = $1)`, vectorExtension).Scan(&installed)
	if err != nil {
		return false, fmt.Errorf("check vector extension: %w", err)
	}

	return installed, nil
}

func (db *DB) CountEmbeddings(ctx context.Context) (int, error) {
	var n int

	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM publication_embeddings WHERE embedding IS NOT NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}

	return n, nil
}

// UpsertEmbedding stores one vector per publication and reports whether it was new.
func (db *DB) UpsertEmbedding(ctx context.Context, e *domain.PublicationEmbedding) (bool, error) {
	embeddedAt := e.EmbeddedAt
	if embeddedAt.IsZero() {
		embeddedAt = time.Now().UTC()
	}

	var inserted bool

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO publication_embeddings (
			publication_id, title, source, published_date, embedded_text, embedding,
			embedding_model, embedded_at, latest_run_id, final_relevancy_score, credibility_score, final_summary
		)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (publication_id) DO UPDATE SET
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			published_date = COALESCE(EXCLUDED.published_date, publication_embeddings.published_date),
			embedded_text = EXCLUDED.embedded_text,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model,
			embedded_at = EXCLUDED.embedded_at,
			latest_run_id = EXCLUDED.latest_run_id,
			final_relevancy_score = EXCLUDED.final_relevancy_score,
			credibility_score = EXCLUDED.credibility_score,
			final_summary = EXCLUDED.final_summary,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`,
		e.PublicationID, toText(e.Title), toText(e.Source), toTimestamptzPtr(e.PublishedDate),
		toText(e.EmbeddedText), pgvector.NewVector(e.Embedding), toText(e.EmbeddingModel),
		toTimestamptz(embeddedAt), toText(e.LatestRunID), toInt4Ptr(e.FinalRelevancyScore),
		toInt4Ptr(e.CredibilityScore), toText(e.FinalSummary),
	).Scan(&inserted)
	if err != nil {
		return false, mapPgError(err, "upsert embedding")
	}

	return inserted, nil
}

// GetEmbeddingVector returns the stored vector for a publication, or nil.
func (db *DB) GetEmbeddingVector(ctx context.Context, publicationID string) ([]float32, error) {
	var v pgvector.Vector

	err := db.Pool.QueryRow(ctx, `
		SELECT embedding
		FROM publication_embeddings
		WHERE publication_id = $1 AND embedding IS NOT NULL
	`, publicationID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}

	return v.Slice(), nil
}

// SearchByVector ranks stored vectors by L2 distance after applying the filter.
func (db *DB) SearchByVector(ctx context.Context, vector []float32, filter ports.VectorFilter, limit int) ([]domain.VectorMatch, error) {
	vec := pgvector.NewVector(vector)

	q := psql.Select(
		"publication_id", "title", "source", "published_date",
		"final_relevancy_score", "credibility_score", "final_summary",
	).
		Column(sq.Expr("embedding <-> ?::vector AS distance", vec)).
		From("publication_embeddings").
		Where("embedding IS NOT NULL")

	q = applyVectorFilter(q, filter)
	q = q.OrderByClause("embedding <-> ?::vector", vec).OrderBy("publication_id")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build vector search query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []domain.VectorMatch

	for rows.Next() {
		var (
			m                      domain.VectorMatch
			title, source, sum     pgtype.Text
			published              pgtype.Timestamptz
			relevancy, credibility pgtype.Int4
		)

		if err := rows.Scan(&m.PublicationID, &title, &source, &published, &relevancy, &credibility, &sum, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}

		m.Title = fromText(title)
		m.Source = fromText(source)
		m.PublishedDate = fromTimestamptzPtr(published)
		m.FinalRelevancyScore = fromInt4Ptr(relevancy)
		m.CredibilityScore = fromInt4Ptr(credibility)
		m.FinalSummary = fromText(sum)
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector matches: %w", err)
	}

	return out, nil
}

func applyVectorFilter(q sq.SelectBuilder, f ports.VectorFilter) sq.SelectBuilder {
	if f.ExcludeID != "" {
		q = q.Where(sq.NotEq{"publication_id": f.ExcludeID})
	}

	if f.MinRelevancy != nil {
		q = q.Where(sq.GtOrEq{"final_relevancy_score": *f.MinRelevancy})
	}

	if f.MinCredibility != nil {
		q = q.Where(sq.GtOrEq{"credibility_score": *f.MinCredibility})
	}

	if f.DateFrom != nil {
		q = q.Where(sq.GtOrEq{"published_date": *f.DateFrom})
	}

	if f.DateBefore != nil {
		q = q.Where(sq.Lt{"published_date": *f.DateBefore})
	}

	return q
}
