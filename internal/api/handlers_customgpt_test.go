package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

const testRunID = "run-2026-02-10"

func seedScoredRun(t *testing.T, env *testEnv, pubs ...domain.Publication) {
	t.Helper()

	ctx := context.Background()
	started := time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)

	_, err := env.store.UpsertRun(ctx, &domain.Run{
		RunID:     testRunID,
		Mode:      domain.ModeTriModelDaily,
		StartedAt: &started,
		Counts:    domain.RunCounts{TotalFound: 52, Scored: 45, MustReads: 8},
	})
	require.NoError(t, err)

	for i := range pubs {
		pubs[i].ScoringRunID = testRunID

		_, err := env.store.UpsertPublication(ctx, &pubs[i])
		require.NoError(t, err)
	}
}

func scoredPub(id string, score, claude, gemini int, agreement string) domain.Publication {
	return domain.Publication{
		PublicationID:       id,
		Title:               "Paper " + id,
		Source:              "Nature Medicine",
		URL:                 "https://pubmed.ncbi.nlm.nih.gov/" + id + "/",
		FinalRelevancyScore: domain.IntPtr(score),
		ClaudeScore:         domain.IntPtr(claude),
		GeminiScore:         domain.IntPtr(gemini),
		AgreementLevel:      agreement,
		CredibilityScore:    domain.IntPtr(75),
		CredibilityReason:   "Peer-reviewed journal article with strong methodology.",
	}
}

func TestDailyMustReads(t *testing.T) {
	env := newTestEnv(t)
	seedScoredRun(t, env,
		scoredPub("pub-001", 85, 88, 82, domain.AgreementHigh),
		scoredPub("pub-002", 40, 45, 35, domain.AgreementModerate),
	)

	rec := env.do(t, http.MethodGet, "/daily-must-reads?threshold=60", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[dailyMustReadsResponse](t, rec)
	assert.Equal(t, testRunID, resp.RunID)
	assert.Equal(t, 1, resp.AboveThreshold)
	assert.Equal(t, 1, resp.BelowThresholdCount)
	require.Len(t, resp.Papers, 1)

	paper := resp.Papers[0]
	assert.Equal(t, "pub-001", paper.PublicationID)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/pub-001/", paper.URL)
	assert.Equal(t, 88, *paper.Subscores.ClaudeScore)
	assert.Equal(t, 75, *paper.CredibilityScore)
	assert.Equal(t, "Peer-reviewed journal article with strong methodology.", paper.CredibilityReason)

	require.NotNil(t, resp.Note)
	assert.Contains(t, *resp.Note, "fewer than 5")
}

func TestDailyMustReads_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/daily-must-reads", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/daily-must-reads?threshold=101", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWeeklyMustReads(t *testing.T) {
	env := newTestEnv(t)
	seedScoredRun(t, env,
		scoredPub("pub-001", 95, 90, 96, domain.AgreementHigh),
		scoredPub("pub-002", 88, 85, 90, domain.AgreementHigh),
		scoredPub("pub-003", 20, 25, 15, domain.AgreementHigh),
	)

	rec := env.do(t, http.MethodGet, "/weekly-must-reads?top_n=2&days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[weeklyMustReadsResponse](t, rec)
	assert.Equal(t, 7, resp.Period.Days)
	assert.Equal(t, 3, resp.TotalScoredThisPeriod)
	require.Len(t, resp.Papers, 2)
	assert.Equal(t, "pub-001", resp.Papers[0].PublicationID)
	assert.Equal(t, 75, *resp.Papers[0].CredibilityScore)
}

func TestWeeklyMustReads_EmptyPeriod(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/weekly-must-reads", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, []any{}, body["papers"])
	assert.EqualValues(t, 0, body["total_scored_this_period"])
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	seedScoredRun(t, env, scoredPub("pub-001", 85, 88, 82, domain.AgreementHigh))

	rec := env.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody[map[string]any](t, rec)
	for _, key := range []string{"publications", "latest_daily_run", "embeddings", "scoring", "system", "generated_at"} {
		assert.Contains(t, body, key)
	}

	run := body["latest_daily_run"].(map[string]any)
	assert.Equal(t, testRunID, run["run_id"])
}

func TestWhatsNew(t *testing.T) {
	env := newTestEnv(t)
	seedScoredRun(t, env,
		scoredPub("pub-001", 95, 94, 96, domain.AgreementHigh),
		scoredPub("pub-002", 80, 82, 78, domain.AgreementHigh),
		scoredPub("pub-003", 45, 70, 30, domain.AgreementLow),
		scoredPub("pub-004", 30, 35, 25, domain.AgreementModerate),
	)

	rec := env.do(t, http.MethodGet, "/whats-new", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[whatsNewResponse](t, rec)
	assert.Equal(t, testRunID, resp.RunID)
	assert.Equal(t, 4, resp.Summary.TotalPapersScored)
	assert.Equal(t, 2, resp.Summary.PapersAbove60)
	assert.Equal(t, 2, resp.Summary.HighAgreementCount)
	assert.Equal(t, 1, resp.Summary.LowAgreementCount)

	require.NotEmpty(t, resp.TopPapers)
	assert.LessOrEqual(t, len(resp.TopPapers), 5)
	assert.Equal(t, 95, *resp.TopPapers[0].FinalRelevancyScore)
	assert.LessOrEqual(t, len(resp.HighAgreementHighlights), 3)

	require.Len(t, resp.NotableDisagreements, 1)
	require.NotNil(t, resp.NotableDisagreements[0].MaxScoreDelta)
	assert.Equal(t, 40, *resp.NotableDisagreements[0].MaxScoreDelta)
}

func TestWhatsNew_NoRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/whats-new", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
