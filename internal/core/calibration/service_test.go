package calibration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports/mocks"
)

const testReasoning = "Directly about acoustic cardiac imaging."

func newTestService(store *mocks.Store) *Service {
	logger := zerolog.Nop()

	return NewService(store, &logger)
}

func intp(v int) *int {
	return &v
}

func strp(v string) *string {
	return &v
}

func TestSeed_IdempotentWithTagMerge(t *testing.T) {
	store := mocks.NewStore()
	store.SetCalibrationSource("p1", domain.CalibrationSource{Title: "Paper one", Source: "PubMed", FinalRelevancyScore: scorep(72)})
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Seed(ctx, SeedRequest{PublicationIDs: []string{"p1", "p2"}, Tags: domain.Tags{"topic": "breast"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Seeded)
	assert.Equal(t, 0, res.SkippedExisting)

	item, err := store.GetCalibrationItemByPublication(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Paper one", item.Title)
	assert.Equal(t, DefaultSeedMode, item.Mode)
	require.NotNil(t, item.FinalRelevancyScore)
	assert.InDelta(t, 72, *item.FinalRelevancyScore, 0.001)

	res, err = svc.Seed(ctx, SeedRequest{PublicationIDs: []string{"p1"}, Tags: domain.Tags{domain.TagGold: true}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Seeded)
	assert.Equal(t, 1, res.SkippedExisting)

	item, err = store.GetCalibrationItemByPublication(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "breast", item.Tags["topic"])
	assert.True(t, item.Tags.IsGold())
}

func TestSeed_Validation(t *testing.T) {
	svc := newTestService(mocks.NewStore())

	_, err := svc.Seed(context.Background(), SeedRequest{})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSeedFromMustReads(t *testing.T) {
	store := mocks.NewStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.SeedFromMustReads(ctx, SeedMustReadsRequest{})
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	started := time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)
	_, err = store.UpsertRun(ctx, &domain.Run{RunID: "run-1", Mode: DefaultSeedMode, StartedAt: &started})
	require.NoError(t, err)

	_, err = svc.SeedFromMustReads(ctx, SeedMustReadsRequest{})
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, store.SaveMustReads(ctx, "run-1", DefaultSeedMode, json.RawMessage(`[{"publication_id":"p1"},"p2",{"title":"x"}]`)))

	res, err := svc.SeedFromMustReads(ctx, SeedMustReadsRequest{Tags: domain.Tags{"batch": "a"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Seeded)

	item, err := store.GetCalibrationItemByPublication(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "mustreads", item.Tags[domain.TagSource])
	assert.Equal(t, "run-1", item.Tags[domain.TagRunID])
	assert.Equal(t, "a", item.Tags["batch"])
	assert.Equal(t, "run-1", item.RunID)
}

func TestSeedFromMustReads_NoIDs(t *testing.T) {
	store := mocks.NewStore()
	require.NoError(t, store.SaveMustReads(context.Background(), "run-9", DefaultSeedMode, json.RawMessage(`{"must_reads":[]}`)))

	res, err := newTestService(store).SeedFromMustReads(context.Background(), SeedMustReadsRequest{RunID: "run-9"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Seeded)
	assert.Equal(t, noIDsMessage, res.Message)
}

func TestSubmit_Errors(t *testing.T) {
	store := mocks.NewStore()
	itemID := store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "p1", FinalRelevancyScore: scorep(81)})
	svc := newTestService(store)
	ctx := context.Background()

	valid := SubmitRequest{CalibrationItemID: itemID, Evaluator: evalAlice, HumanScore: intp(70), Reasoning: testReasoning, Confidence: strp("high")}

	tests := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{name: "empty reasoning", req: withReasoning(valid, "  "), want: apperrors.ErrValidation},
		{name: "score too high", req: withScore(valid, 101), want: apperrors.ErrValidation},
		{name: "score negative", req: withScore(valid, -1), want: apperrors.ErrValidation},
		{name: "bad confidence", req: withConfidence(valid, "certain"), want: apperrors.ErrValidation},
		{name: "malformed id", req: withItem(valid, "not-a-uuid"), want: apperrors.ErrInvalidID},
		{name: "unknown item", req: withItem(valid, uuid.NewString()), want: apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	res, err := svc.Submit(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	require.NotNil(t, res.LLMScore)
	assert.InDelta(t, 81, *res.LLMScore, 0.001)

	_, err = svc.Submit(ctx, valid)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Len(t, store.Evaluations(), 1)
}

func TestSubmit_ConcurrentSameEvaluator(t *testing.T) {
	store := mocks.NewStore()
	itemID := store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "p1"})
	svc := newTestService(store)

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.Submit(context.Background(), SubmitRequest{
				CalibrationItemID: itemID, Evaluator: evalAlice, HumanScore: intp(40), Reasoning: testReasoning,
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperrors.ErrConflict):
				conflicts++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
	assert.Len(t, store.Evaluations(), 1)
}

func TestStats(t *testing.T) {
	store := mocks.NewStore()
	ids := seedItems(store,
		domain.CalibrationItem{PublicationID: "p1", Tags: domain.Tags{domain.TagGold: true}},
		domain.CalibrationItem{PublicationID: "p2"},
		domain.CalibrationItem{PublicationID: "p3"},
	)
	svc := newTestService(store)
	ctx := context.Background()

	for _, r := range []struct {
		item, who string
		score     int
	}{{ids[0], evalAlice, 10}, {ids[1], evalAlice, 95}, {ids[0], evalBob, 45}} {
		_, err := svc.Submit(ctx, SubmitRequest{CalibrationItemID: r.item, Evaluator: r.who, HumanScore: intp(r.score), Reasoning: testReasoning})
		require.NoError(t, err)
	}

	st, err := svc.Stats(ctx, evalAlice)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalItems)
	assert.Equal(t, 2, st.TotalRated)
	assert.Equal(t, 1, st.Remaining)
	assert.Equal(t, 1, st.GoldTotal)
	assert.Equal(t, 1, st.GoldRated)
	require.NotNil(t, st.AvgScore)
	assert.InDelta(t, 52.5, *st.AvgScore, 0.001)
	assert.Equal(t, 1, st.Distribution["0-20"])
	assert.Equal(t, 1, st.Distribution["80-100"])
	require.NotNil(t, st.Evaluator)

	all, err := svc.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalRated)
	assert.Equal(t, 1, all.Remaining)
	assert.Equal(t, 2, all.GoldRated)
	assert.Nil(t, all.Evaluator)
	assert.Equal(t, 1, all.Distribution["40-60"])
}

func TestStats_NoRatings(t *testing.T) {
	st := BuildStats(&domain.CalibrationCounts{TotalItems: 4}, "")

	assert.Nil(t, st.AvgScore)
	assert.Equal(t, 4, st.Remaining)
	assert.Len(t, st.Distribution, 5)
}

func TestListItems_Bounds(t *testing.T) {
	svc := newTestService(mocks.NewStore())

	_, _, err := svc.ListItems(context.Background(), 0, 0, false)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, _, err = svc.ListItems(context.Background(), 10, -1, false)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func withReasoning(r SubmitRequest, v string) SubmitRequest {
	r.Reasoning = v

	return r
}

func withScore(r SubmitRequest, v int) SubmitRequest {
	r.HumanScore = intp(v)

	return r
}

func withConfidence(r SubmitRequest, v string) SubmitRequest {
	r.Confidence = strp(v)

	return r
}

func withItem(r SubmitRequest, id string) SubmitRequest {
	r.CalibrationItemID = id

	return r
}
