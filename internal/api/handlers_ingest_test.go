package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/search"
	"github.com/lueurxax/acitrack/internal/ingest"
)

func TestIngestRuns(t *testing.T) {
	env := newTestEnv(t)

	body := `{"runs": [
		{"run_id": "r1", "mode": "tri-model-daily", "started_at": "2026-02-10T06:00:00Z",
		 "must_reads": {"must_reads": [{"publication_id": "p1"}]},
		 "tri_model_events": [{"publication_id": "p1", "title": "T", "final_relevancy_score": 80}]},
		{"run_id": "", "mode": "daily"}
	]}`

	rec := env.do(t, http.MethodPost, "/ingest/runs", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[ingest.Result](t, rec)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Errors)

	set, err := env.store.GetMustReads(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, set)
}

func TestIngestPublications_BareArray(t *testing.T) {
	env := newTestEnv(t)

	body := `[
		{"publication_id": "p1", "title": "First", "final_relevancy_score": 140},
		{"publication_id": "p2", "title": "Second"}
	]`

	rec := env.do(t, http.MethodPost, "/ingest/publications", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decodeBody[ingest.Result](t, rec).Inserted)

	pub, err := env.store.GetPublication(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, 100, *pub.FinalRelevancyScore)
}

func TestIngest_BadBodies(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "empty list", path: "/ingest/runs", body: `{"runs": []}`},
		{name: "wrong key", path: "/ingest/runs", body: `{"publications": [{}]}`},
		{name: "not json", path: "/ingest/publications", body: `nope`},
		{name: "too many", path: "/ingest/publications", body: "[" + strings.Repeat(`{},`, maxIngestBatch) + "{}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}
}

func TestIngestEmbeddings_ThenSearch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/ingest/publications", `{"publications": [
		{"publication_id": "p1", "title": "Breath biomarkers for early lung cancer", "final_relevancy_score": 90},
		{"publication_id": "p2", "title": "Urine VOC profiling", "final_relevancy_score": 40}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/search/publications?q=breath", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no embeddings indexed yet")

	rec = env.do(t, http.MethodPost, "/ingest/embeddings", map[string]any{"publication_ids": []string{"p1", "p2", "missing"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[ingest.Result](t, rec)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Errors)

	rec = env.do(t, http.MethodGet, "/search/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[search.Status](t, rec).SearchAvailable)

	rec = env.do(t, http.MethodGet, "/search/publications?q=breath&min_relevancy=50", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[search.Response](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "p1", resp.Results[0].PublicationID)

	rec = env.do(t, http.MethodGet, "/search/similar/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	similar := decodeBody[search.Response](t, rec)
	require.Equal(t, 1, similar.Count)
	assert.Equal(t, "p2", similar.Results[0].PublicationID)

	rec = env.do(t, http.MethodGet, "/search/similar/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch_Validation(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"", "q=x&limit=101", "q=x&min_relevancy=abc", "q=x&date_from=10-02-2026"} {
		rec := env.do(t, http.MethodGet, "/search/publications?"+q, nil)
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusUnprocessableEntity}, rec.Code, q)
	}
}

func TestSearch_VectorExtensionMissing(t *testing.T) {
	env := newTestEnv(t)
	env.store.VectorExtension = false

	rec := env.do(t, http.MethodGet, "/search/publications?q=breath", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
