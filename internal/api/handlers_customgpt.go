package api

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Defaults for the CustomGPT actions.
const (
	defaultThreshold   = 60
	defaultTopN        = 5
	maxTopN            = 50
	defaultPeriodDays  = 7
	maxPeriodDays      = 90
	minPapersForNote   = 5
	whatsNewTopPapers  = 5
	whatsNewHighlights = 3
	highScoreCutoff    = 60

	dateLayout = "2006-01-02"
)

type subscores struct {
	ClaudeScore *int `json:"claude_score"`
	GeminiScore *int `json:"gemini_score"`
}

// paperEntry is the publication shape returned to the assistant.
type paperEntry struct {
	PublicationID         string    `json:"publication_id"`
	Title                 string    `json:"title"`
	Authors               string    `json:"authors,omitempty"`
	Source                string    `json:"source"`
	PublishedDate         string    `json:"published_date,omitempty"`
	URL                   string    `json:"url"`
	FinalRelevancyScore   *int      `json:"final_relevancy_score"`
	FinalRelevancyReason  string    `json:"final_relevancy_reason,omitempty"`
	FinalSummary          string    `json:"final_summary,omitempty"`
	AgreementLevel        string    `json:"agreement_level,omitempty"`
	Confidence            string    `json:"confidence,omitempty"`
	Subscores             subscores `json:"subscores"`
	CredibilityScore      *int      `json:"credibility_score"`
	CredibilityReason     string    `json:"credibility_reason,omitempty"`
	CredibilityConfidence string    `json:"credibility_confidence,omitempty"`
}

type disagreementEntry struct {
	paperEntry
	MaxScoreDelta *int `json:"max_score_delta"`
}

func newPaperEntry(p *domain.Publication) paperEntry {
	return paperEntry{
		PublicationID:         p.PublicationID,
		Title:                 p.Title,
		Authors:               p.Authors,
		Source:                firstNonEmpty(p.Venue, p.Source),
		PublishedDate:         p.PublishedDate,
		URL:                   p.BestURL(),
		FinalRelevancyScore:   p.FinalRelevancyScore,
		FinalRelevancyReason:  p.FinalRelevancyReason,
		FinalSummary:          firstNonEmpty(p.FinalSummary, p.Summary),
		AgreementLevel:        p.AgreementLevel,
		Confidence:            p.Confidence,
		Subscores:             subscores{ClaudeScore: p.ClaudeScore, GeminiScore: p.GeminiScore},
		CredibilityScore:      p.CredibilityScore,
		CredibilityReason:     p.CredibilityReason,
		CredibilityConfidence: p.CredibilityConfidence,
	}
}

func paperEntries(pubs []domain.Publication) []paperEntry {
	out := make([]paperEntry, 0, len(pubs))
	for i := range pubs {
		out = append(out, newPaperEntry(&pubs[i]))
	}

	return out
}

func score(p *domain.Publication) int {
	if p.FinalRelevancyScore == nil {
		return -1
	}

	return *p.FinalRelevancyScore
}

// byScoreDesc orders publications best first, then by id for stable output.
func byScoreDesc(a, b domain.Publication) int {
	if c := cmp.Compare(score(&b), score(&a)); c != 0 {
		return c
	}

	return cmp.Compare(a.PublicationID, b.PublicationID)
}

func formatRunDate(run *domain.Run) *string {
	if run.StartedAt == nil {
		return nil
	}

	d := run.StartedAt.Format(dateLayout)

	return &d
}

// latestRunPublications loads the newest run for mode and the publications it scored.
func (s *Server) latestRunPublications(ctx context.Context, mode string) (*domain.Run, []domain.Publication, error) {
	run, err := s.store.LatestRun(ctx, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("load latest run: %w", err)
	}

	if run == nil {
		return nil, nil, fmt.Errorf("no runs found for mode=%s: %w", mode, apperrors.ErrNotFound)
	}

	pubs, err := s.store.ListPublicationsByScoringRun(ctx, run.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("list publications for run %s: %w", run.RunID, err)
	}

	slices.SortStableFunc(pubs, byScoreDesc)

	return run, pubs, nil
}

type dailyMustReadsResponse struct {
	RunID               string       `json:"run_id"`
	Mode                string       `json:"mode"`
	RunDate             *string      `json:"run_date"`
	Threshold           int          `json:"threshold"`
	TotalScored         int          `json:"total_scored"`
	AboveThreshold      int          `json:"above_threshold"`
	BelowThresholdCount int          `json:"below_threshold_count"`
	Papers              []paperEntry `json:"papers"`
	Note                *string      `json:"note"`
}

// handleDailyMustReads lists the latest run's publications at or above threshold.
func (s *Server) handleDailyMustReads(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", defaultThreshold)
	if err == nil {
		err = checkRange("threshold", threshold, 0, 100)
	}

	if err != nil {
		s.fail(w, r, err)
		return
	}

	mode := queryString(r, "mode", domain.ModeTriModelDaily)

	run, pubs, err := s.latestRunPublications(r.Context(), mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var above []domain.Publication

	scored := 0

	for i := range pubs {
		if pubs[i].FinalRelevancyScore == nil {
			continue
		}

		scored++

		if *pubs[i].FinalRelevancyScore >= threshold {
			above = append(above, pubs[i])
		}
	}

	resp := dailyMustReadsResponse{
		RunID:               run.RunID,
		Mode:                run.Mode,
		RunDate:             formatRunDate(run),
		Threshold:           threshold,
		TotalScored:         scored,
		AboveThreshold:      len(above),
		BelowThresholdCount: scored - len(above),
		Papers:              paperEntries(above),
	}

	if len(above) < minPapersForNote {
		note := fmt.Sprintf("Only %d papers scored at or above %d in this run (fewer than %d).",
			len(above), threshold, minPapersForNote)
		resp.Note = &note
	}

	observeResultSize(r, len(resp.Papers))
	writeJSON(w, http.StatusOK, resp)
}

type period struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

type weeklyMustReadsResponse struct {
	Period                period       `json:"period"`
	TopN                  int          `json:"top_n"`
	TotalScoredThisPeriod int          `json:"total_scored_this_period"`
	Papers                []paperEntry `json:"papers"`
}

// handleWeeklyMustReads ranks everything scored in the last N days.
func (s *Server) handleWeeklyMustReads(w http.ResponseWriter, r *http.Request) {
	topN, err := queryInt(r, "top_n", defaultTopN)
	if err == nil {
		err = checkRange("top_n", topN, 1, maxTopN)
	}

	if err != nil {
		s.fail(w, r, err)
		return
	}

	days, err := queryInt(r, "days", defaultPeriodDays)
	if err == nil {
		err = checkRange("days", days, 1, maxPeriodDays)
	}

	if err != nil {
		s.fail(w, r, err)
		return
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	pubs, err := s.store.ListTopPublicationsSince(r.Context(), start, topN)
	if err != nil {
		s.fail(w, r, fmt.Errorf("list top publications: %w", err))
		return
	}

	total, err := s.store.CountScoredPublicationsSince(r.Context(), start)
	if err != nil {
		s.fail(w, r, fmt.Errorf("count scored publications: %w", err))
		return
	}

	slices.SortStableFunc(pubs, byScoreDesc)

	resp := weeklyMustReadsResponse{
		Period:                period{Start: start.Format(dateLayout), End: end.Format(dateLayout), Days: days},
		TopN:                  topN,
		TotalScoredThisPeriod: total,
		Papers:                paperEntries(pubs),
	}

	observeResultSize(r, len(resp.Papers))
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Publications   map[string]any `json:"publications"`
	LatestDailyRun map[string]any `json:"latest_daily_run"`
	Embeddings     map[string]any `json:"embeddings"`
	Scoring        map[string]any `json:"scoring"`
	System         map[string]any `json:"system"`
	GeneratedAt    string         `json:"generated_at"`
}

// handleStats summarises the database for the assistant.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ps, err := s.store.PublicationStats(ctx)
	if err != nil {
		s.fail(w, r, fmt.Errorf("publication stats: %w", err))
		return
	}

	es, err := s.store.EmbeddingStats(ctx)
	if err != nil {
		s.fail(w, r, fmt.Errorf("embedding stats: %w", err))
		return
	}

	run, err := s.store.LatestRun(ctx, domain.ModeTriModelDaily)
	if err != nil {
		s.fail(w, r, fmt.Errorf("load latest run: %w", err))
		return
	}

	resp := statsResponse{
		Publications: map[string]any{
			"total":                 ps.Total,
			"scored":                ps.Scored,
			"with_credibility":      ps.WithCredibility,
			"avg_relevancy_score":   ps.AvgRelevancy,
			"avg_credibility_score": ps.AvgCredibility,
		},
		Embeddings: map[string]any{
			"total":              es.Total,
			"models":             nonNilStrings(es.Models),
			"latest_embedded_at": formatTimePtr(es.LatestEmbedded),
		},
		Scoring: map[string]any{
			"agreement": map[string]int{
				domain.AgreementHigh:     ps.HighAgreement,
				domain.AgreementModerate: ps.ModerateAgreement,
				domain.AgreementLow:      ps.LowAgreement,
			},
			"latest_scored_at": formatTimePtr(ps.LatestScoredAt),
		},
		System: map[string]any{
			"version":            Version,
			"search_available":   s.searchAvailable(ctx),
			"artifacts_backend":  s.cfg.Artifacts.Backend,
			"feedback_available": s.feedback != nil,
		},
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}

	if run != nil {
		resp.LatestDailyRun = map[string]any{
			"run_id":     run.RunID,
			"mode":       run.Mode,
			"started_at": formatTimePtr(run.StartedAt),
			"counts":     run.Counts,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchAvailable(ctx context.Context) bool {
	if s.search == nil {
		return false
	}

	st, err := s.search.Status(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("search status check failed")
		return false
	}

	return st.SearchAvailable
}

type whatsNewSummary struct {
	RunID              string `json:"run_id"`
	TotalPapersScored  int    `json:"total_papers_scored"`
	PapersAbove60      int    `json:"papers_above_60"`
	HighAgreementCount int    `json:"high_agreement_count"`
	LowAgreementCount  int    `json:"low_agreement_count"`
}

type whatsNewResponse struct {
	RunID                   string              `json:"run_id"`
	RunDate                 *string             `json:"run_date"`
	Summary                 whatsNewSummary     `json:"summary"`
	TopPapers               []paperEntry        `json:"top_papers"`
	HighAgreementHighlights []paperEntry        `json:"high_agreement_highlights"`
	NotableDisagreements    []disagreementEntry `json:"notable_disagreements"`
}

// handleWhatsNew digests the latest tri-model daily run.
func (s *Server) handleWhatsNew(w http.ResponseWriter, r *http.Request) {
	run, pubs, err := s.latestRunPublications(r.Context(), queryString(r, "mode", domain.ModeTriModelDaily))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := whatsNewResponse{
		RunID:                   run.RunID,
		RunDate:                 formatRunDate(run),
		Summary:                 whatsNewSummary{RunID: run.RunID},
		TopPapers:               []paperEntry{},
		HighAgreementHighlights: []paperEntry{},
		NotableDisagreements:    []disagreementEntry{},
	}

	var disagreements []domain.Publication

	for i := range pubs {
		p := &pubs[i]
		if p.FinalRelevancyScore == nil {
			continue
		}

		resp.Summary.TotalPapersScored++

		if *p.FinalRelevancyScore >= highScoreCutoff {
			resp.Summary.PapersAbove60++
		}

		if len(resp.TopPapers) < whatsNewTopPapers {
			resp.TopPapers = append(resp.TopPapers, newPaperEntry(p))
		}

		switch p.AgreementLevel {
		case domain.AgreementHigh:
			resp.Summary.HighAgreementCount++

			if len(resp.HighAgreementHighlights) < whatsNewHighlights {
				resp.HighAgreementHighlights = append(resp.HighAgreementHighlights, newPaperEntry(p))
			}
		case domain.AgreementLow:
			resp.Summary.LowAgreementCount++
			disagreements = append(disagreements, *p)
		}
	}

	// Largest model disagreement first; unknown deltas last.
	slices.SortStableFunc(disagreements, func(a, b domain.Publication) int {
		return cmp.Compare(deltaOrMinus(&b), deltaOrMinus(&a))
	})

	for i := range disagreements {
		if i == whatsNewHighlights {
			break
		}

		p := &disagreements[i]
		resp.NotableDisagreements = append(resp.NotableDisagreements, disagreementEntry{
			paperEntry:    newPaperEntry(p),
			MaxScoreDelta: p.ScoreDelta(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func deltaOrMinus(p *domain.Publication) int {
	if d := p.ScoreDelta(); d != nil {
		return *d
	}

	return -1
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}

	v := t.UTC().Format(time.RFC3339)

	return &v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}

	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
