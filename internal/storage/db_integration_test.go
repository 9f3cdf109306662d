//go:build integration

package db

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

const pgvectorImage = "pgvector/pgvector:pg16"

func newTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, pgvectorImage,
		postgres.WithDatabase("acitrack"),
		postgres.WithUsername("acitrack"),
		postgres.WithPassword("acitrack"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := zerolog.Nop()

	db, err := New(ctx, dsn, &logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))

	return db
}

func TestIntegration_Store(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("latest run by started_at", func(t *testing.T) {
		older := time.Date(2026, 2, 9, 6, 0, 0, 0, time.UTC)
		newer := older.Add(24 * time.Hour)

		created, err := db.UpsertRun(ctx, &domain.Run{RunID: "r1", Mode: domain.ModeDaily, StartedAt: &newer, Counts: domain.RunCounts{Scored: 3}})
		require.NoError(t, err)
		assert.True(t, created)

		_, err = db.UpsertRun(ctx, &domain.Run{RunID: "r0", Mode: domain.ModeDaily, StartedAt: &older})
		require.NoError(t, err)

		created, err = db.UpsertRun(ctx, &domain.Run{RunID: "r1", Mode: domain.ModeDaily, StartedAt: &newer, Counts: domain.RunCounts{Scored: 4}})
		require.NoError(t, err)
		assert.False(t, created)

		run, err := db.LatestRun(ctx, domain.ModeDaily)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, "r1", run.RunID)
		assert.Equal(t, 4, run.Counts.Scored)

		missing, err := db.LatestRun(ctx, domain.ModeWeekly)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("must reads round trip", func(t *testing.T) {
		require.NoError(t, db.SaveMustReads(ctx, "r1", domain.ModeDaily, json.RawMessage(`{"must_reads":[{"publication_id":"p1"}]}`)))

		set, err := db.GetMustReads(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, set)
		assert.JSONEq(t, `{"must_reads":[{"publication_id":"p1"}]}`, string(set.Document))
	})

	t.Run("publication upsert keeps scores on metadata ingest", func(t *testing.T) {
		_, err := db.UpsertPublication(ctx, &domain.Publication{PublicationID: "p1", Title: "Scored", FinalRelevancyScore: domain.IntPtr(80), ScoringRunID: "r1"})
		require.NoError(t, err)

		_, err = db.UpsertPublication(ctx, &domain.Publication{PublicationID: "p1", Title: "Scored", URL: "https://example.org/p1"})
		require.NoError(t, err)

		p, err := db.GetPublication(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, p)
		require.NotNil(t, p.FinalRelevancyScore)
		assert.Equal(t, 80, *p.FinalRelevancyScore)
		assert.Equal(t, "https://example.org/p1", p.URL)

		pubs, err := db.ListPublicationsByScoringRun(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, pubs, 1)
	})

	t.Run("vector search", func(t *testing.T) {
		ok, err := db.VectorExtensionAvailable(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		near := make([]float32, 1536)
		near[0] = 1
		far := make([]float32, 1536)
		far[1] = 1

		for id, v := range map[string][]float32{"near": near, "far": far} {
			_, err := db.UpsertEmbedding(ctx, &domain.PublicationEmbedding{PublicationID: id, Title: id, Embedding: v, FinalRelevancyScore: domain.IntPtr(50)})
			require.NoError(t, err)
		}

		matches, err := db.SearchByVector(ctx, near, ports.VectorFilter{}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "near", matches[0].PublicationID)
		assert.InDelta(t, 0, matches[0].Distance, 1e-6)

		matches, err = db.SearchByVector(ctx, near, ports.VectorFilter{ExcludeID: "near", MinRelevancy: domain.IntPtr(40)}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "far", matches[0].PublicationID)

		published := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
		_, err = db.UpsertEmbedding(ctx, &domain.PublicationEmbedding{PublicationID: "dated", Title: "dated", Embedding: near, PublishedDate: &published})
		require.NoError(t, err)

		dayStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.AddDate(0, 0, 1)

		matches, err = db.SearchByVector(ctx, near, ports.VectorFilter{DateFrom: &dayStart, DateBefore: &dayEnd}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "dated", matches[0].PublicationID)

		matches, err = db.SearchByVector(ctx, near, ports.VectorFilter{DateBefore: &dayStart}, 10)
		require.NoError(t, err)
		assert.Empty(t, matches)

		stored, err := db.GetEmbeddingVector(ctx, "far")
		require.NoError(t, err)
		assert.Equal(t, far, stored)
	})

	t.Run("calibration uniqueness", func(t *testing.T) {
		item := &domain.CalibrationItem{PublicationID: "cal-1", Tags: domain.Tags{"topic": "breast"}}
		created, err := db.InsertCalibrationItem(ctx, item)
		require.NoError(t, err)
		assert.True(t, created)

		again := &domain.CalibrationItem{PublicationID: "cal-1", Tags: domain.Tags{domain.TagGold: true}}
		created, err = db.InsertCalibrationItem(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, item.ID, again.ID)
		assert.True(t, again.Tags.IsGold())
		assert.Equal(t, "breast", again.Tags["topic"])

		const workers = 6

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			conflicts int
		)

		for i := 0; i < workers; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				err := db.InsertEvaluation(ctx, &domain.HumanEvaluation{CalibrationItemID: item.ID, Evaluator: "alice", HumanScore: 50, Reasoning: "ok"})
				if errors.Is(err, apperrors.ErrConflict) {
					mu.Lock()
					conflicts++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, workers-1, conflicts)

		next, err := db.RandomUnratedItem(ctx, ports.SampleFilter{Evaluator: "alice"})
		require.NoError(t, err)
		assert.Nil(t, next)

		next, err = db.RandomUnratedItem(ctx, ports.SampleFilter{Evaluator: "bob", GoldOnly: true})
		require.NoError(t, err)
		require.NotNil(t, next)

		err = db.InsertEvaluation(ctx, &domain.HumanEvaluation{CalibrationItemID: "00000000-0000-0000-0000-000000000000", Evaluator: "alice", HumanScore: 1, Reasoning: "x"})
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))

		counts, err := db.CalibrationCounts(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 1, counts.TotalRated)
		assert.Equal(t, 1, counts.GoldRated)
	})

	t.Run("abstract enrichment", func(t *testing.T) {
		_, err := db.UpsertPublication(ctx, &domain.Publication{PublicationID: "abs-1", Title: "Needs abstract"})
		require.NoError(t, err)

		item := &domain.CalibrationItem{PublicationID: "abs-1", URL: "https://example.org/abs-1"}
		_, err = db.InsertCalibrationItem(ctx, item)
		require.NoError(t, err)

		pending, err := db.ListItemsMissingAbstract(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, item.ID, pending[0].ID)

		require.NoError(t, db.SetCalibrationAbstract(ctx, item.ID, "An abstract."))
		require.NoError(t, db.SetPublicationRawText(ctx, "abs-1", "first"))
		require.NoError(t, db.SetPublicationRawText(ctx, "abs-1", "second"))

		pending, err = db.ListItemsMissingAbstract(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		p, err := db.GetPublication(ctx, "abs-1")
		require.NoError(t, err)
		assert.Equal(t, "first", p.RawText)
	})

	t.Run("advisory lock", func(t *testing.T) {
		err := db.WithAdvisoryLock(ctx, LockGoldSet, func(ctx context.Context) error {
			inner := db.WithAdvisoryLock(ctx, LockGoldSet, func(context.Context) error { return nil })
			assert.ErrorIs(t, inner, ErrLockHeld)

			return nil
		})
		require.NoError(t, err)

		ran := false
		require.NoError(t, db.WithAdvisoryLock(ctx, LockGoldSet, func(context.Context) error {
			ran = true

			return nil
		}))
		assert.True(t, ran)
	})
}
