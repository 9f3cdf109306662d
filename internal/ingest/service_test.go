package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports/mocks"
)

var errProvider = errors.New("provider down")

type fakeEmbedder struct {
	dims    int
	failOn  int
	calls   int
	batches []int
}

func (f *fakeEmbedder) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batches = append(f.batches, len(texts))

	if f.failOn == f.calls {
		return nil, errProvider
	}

	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dims)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}

	return out, nil
}

func (f *fakeEmbedder) Configured() bool { return true }

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func newService(store *mocks.Store, emb Embedder) *Service {
	logger := zerolog.Nop()

	return NewService(store, emb, &logger)
}

func floatp(v float64) *float64 {
	return &v
}

func TestIngestRuns_CountsPerItem(t *testing.T) {
	store := mocks.NewStore()
	svc := newService(store, nil)
	ctx := context.Background()

	runs := []RunPayload{
		{
			RunID:     "run-1",
			Mode:      domain.ModeTriModelDaily,
			StartedAt: "2026-02-01T06:00:00Z",
			Counts:    domain.RunCounts{Scored: 3},
			MustReads: json.RawMessage(`{"must_reads":[{"publication_id":"p1"}]}`),
			Events:    []EventPayload{{PublicationID: "p1", Title: "One", FinalRelevancyScore: floatp(71)}},
		},
		{RunID: "", Mode: domain.ModeDaily},
		{RunID: "run-2", Mode: domain.ModeDaily, StartedAt: "not a date"},
	}

	res := svc.IngestRuns(ctx, runs)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Errors)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "run-2", res.Failures[1].ID)

	set, err := store.GetMustReads(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, set)

	res = svc.IngestRuns(ctx, runs[:1])
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Updated)

	run, err := store.LatestRun(ctx, domain.ModeTriModelDaily)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 3, run.Counts.Scored)
}

func TestIngestPublications_ClampsAndValidates(t *testing.T) {
	store := mocks.NewStore()
	svc := newService(store, nil)
	ctx := context.Background()

	res := svc.IngestPublications(ctx, []PublicationPayload{
		{PublicationID: "p1", Title: "Acoustic imaging", FinalRelevancyScore: floatp(140), CredibilityScore: floatp(54.6)},
		{PublicationID: "p2"},
	})

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Errors)
	assert.Contains(t, res.Failures[0].Error, "title is required")

	pub, err := store.GetPublication(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, 100, *pub.FinalRelevancyScore)
	assert.Equal(t, 55, *pub.CredibilityScore)
}

func TestEmbedJobs_BatchesAndReportsFailures(t *testing.T) {
	store := mocks.NewStore()
	emb := &fakeEmbedder{dims: 4, failOn: 2}
	svc := newService(store, emb)

	jobs := []EmbeddingJob{
		{PublicationID: "a", Title: "A", Summary: "first"},
		{PublicationID: "b", Title: "B"},
		{PublicationID: "no-title"},
		{PublicationID: "c", Title: "C", Source: "bioRxiv"},
	}

	res, err := svc.EmbedJobs(context.Background(), jobs, EmbedOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1}, emb.batches)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Errors)

	n, err := store.CountEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmbedJobs_DryRun(t *testing.T) {
	emb := &fakeEmbedder{dims: 4}
	svc := newService(mocks.NewStore(), emb)

	res, err := svc.EmbedJobs(context.Background(), []EmbeddingJob{{PublicationID: "a", Title: "A"}}, EmbedOptions{DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, emb.calls)
	assert.Zero(t, res.Inserted)
}

func TestEmbedPublications(t *testing.T) {
	store := mocks.NewStore()
	ctx := context.Background()

	_, err := store.UpsertPublication(ctx, &domain.Publication{PublicationID: "p1", Title: "Known", FinalSummary: "summary"})
	require.NoError(t, err)

	_, err = newService(store, nil).EmbedPublications(ctx, []string{"p1"})
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))

	svc := newService(store, &fakeEmbedder{dims: 4})

	_, err = svc.EmbedPublications(ctx, nil)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	res, err := svc.EmbedPublications(ctx, []string{"p1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, "missing", res.Failures[0].ID)

	vec, err := store.GetEmbeddingVector(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}
