// Package ingest writes pipeline output (runs, scored publications, vectors)
// into the store. Batches are processed item by item: one bad record is
// counted and reported, the rest of the batch still lands.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Result counts the outcome of a batch.
type Result struct {
	Inserted int       `json:"inserted"`
	Updated  int       `json:"updated"`
	Errors   int       `json:"errors"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure names a record that could not be stored.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (r *Result) record(inserted bool) {
	if inserted {
		r.Inserted++
	} else {
		r.Updated++
	}
}

func (r *Result) fail(id string, err error) {
	r.Errors++
	r.Failures = append(r.Failures, Failure{ID: id, Error: err.Error()})
}

// EventPayload is one tri-model evaluation inside a run.
type EventPayload struct {
	PublicationID       string          `json:"publication_id"`
	Title               string          `json:"title"`
	AgreementLevel      string          `json:"agreement_level"`
	Disagreements       string          `json:"disagreements"`
	EvaluatorRationale  string          `json:"evaluator_rationale"`
	ClaudeReview        json.RawMessage `json:"claude_review"`
	GeminiReview        json.RawMessage `json:"gemini_review"`
	GPTEval             json.RawMessage `json:"gpt_eval"`
	FinalRelevancyScore *float64        `json:"final_relevancy_score"`
}

// RunPayload is a pipeline run as posted by the scoring pipeline.
type RunPayload struct {
	RunID       string           `json:"run_id"`
	Mode        string           `json:"mode"`
	StartedAt   string           `json:"started_at"`
	WindowStart string           `json:"window_start"`
	WindowEnd   string           `json:"window_end"`
	Counts      domain.RunCounts `json:"counts"`
	Config      json.RawMessage  `json:"config"`
	Artifacts   json.RawMessage  `json:"artifacts"`
	// MustReads is stored verbatim when present.
	MustReads json.RawMessage `json:"must_reads"`
	Events    []EventPayload  `json:"tri_model_events"`
}

// ToDomain validates the payload and converts it.
func (p RunPayload) ToDomain() (*domain.Run, error) {
	if strings.TrimSpace(p.RunID) == "" {
		return nil, fmt.Errorf("run_id is required: %w", apperrors.ErrValidation)
	}

	if strings.TrimSpace(p.Mode) == "" {
		return nil, fmt.Errorf("mode is required: %w", apperrors.ErrValidation)
	}

	run := &domain.Run{
		RunID:     p.RunID,
		Mode:      p.Mode,
		Counts:    p.Counts,
		Config:    p.Config,
		Artifacts: p.Artifacts,
	}

	var err error

	if run.StartedAt, err = parseTime("started_at", p.StartedAt); err != nil {
		return nil, err
	}

	if run.WindowStart, err = parseTime("window_start", p.WindowStart); err != nil {
		return nil, err
	}

	if run.WindowEnd, err = parseTime("window_end", p.WindowEnd); err != nil {
		return nil, err
	}

	return run, nil
}

// ToDomain converts an event for the given run.
func (e EventPayload) ToDomain(runID, mode string) (*domain.TriModelEvent, error) {
	if strings.TrimSpace(e.PublicationID) == "" {
		return nil, fmt.Errorf("tri_model_events[].publication_id is required: %w", apperrors.ErrValidation)
	}

	return &domain.TriModelEvent{
		RunID:               runID,
		Mode:                mode,
		PublicationID:       e.PublicationID,
		Title:               e.Title,
		AgreementLevel:      e.AgreementLevel,
		Disagreements:       e.Disagreements,
		EvaluatorRationale:  e.EvaluatorRationale,
		ClaudeReview:        e.ClaudeReview,
		GeminiReview:        e.GeminiReview,
		GPTEval:             e.GPTEval,
		FinalRelevancyScore: e.FinalRelevancyScore,
	}, nil
}

// PublicationPayload is a canonical publication row.
type PublicationPayload struct {
	PublicationID string `json:"publication_id"`
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	Source        string `json:"source"`
	Venue         string `json:"venue"`
	PublishedDate string `json:"published_date"`
	URL           string `json:"url"`
	CanonicalURL  string `json:"canonical_url"`
	DOI           string `json:"doi"`
	PMID          string `json:"pmid"`
	SourceType    string `json:"source_type"`
	RawText       string `json:"raw_text"`
	Summary       string `json:"summary"`

	FinalRelevancyScore  *float64        `json:"final_relevancy_score"`
	FinalRelevancyReason string          `json:"final_relevancy_reason"`
	FinalSummary         string          `json:"final_summary"`
	ClaudeScore          *float64        `json:"claude_score"`
	GeminiScore          *float64        `json:"gemini_score"`
	AgreementLevel       string          `json:"agreement_level"`
	Confidence           string          `json:"confidence"`
	EvaluatorRationale   string          `json:"evaluator_rationale"`
	Disagreements        string          `json:"disagreements"`
	FinalSignals         json.RawMessage `json:"final_signals"`

	CredibilityScore      *float64        `json:"credibility_score"`
	CredibilityReason     string          `json:"credibility_reason"`
	CredibilityConfidence string          `json:"credibility_confidence"`
	CredibilitySignals    json.RawMessage `json:"credibility_signals"`

	ScoringRunID     string `json:"scoring_run_id"`
	ScoringUpdatedAt string `json:"scoring_updated_at"`
	LatestRunID      string `json:"latest_run_id"`
}

// ToDomain validates the payload and converts it. Scores are rounded and
// clamped into [0,100].
func (p PublicationPayload) ToDomain() (*domain.Publication, error) {
	if strings.TrimSpace(p.PublicationID) == "" {
		return nil, fmt.Errorf("publication_id is required: %w", apperrors.ErrValidation)
	}

	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", apperrors.ErrValidation)
	}

	scoredAt, err := parseTime("scoring_updated_at", p.ScoringUpdatedAt)
	if err != nil {
		return nil, err
	}

	return &domain.Publication{
		PublicationID:         p.PublicationID,
		Title:                 p.Title,
		Authors:               p.Authors,
		Source:                p.Source,
		Venue:                 p.Venue,
		PublishedDate:         p.PublishedDate,
		URL:                   p.URL,
		CanonicalURL:          p.CanonicalURL,
		DOI:                   p.DOI,
		PMID:                  p.PMID,
		SourceType:            p.SourceType,
		RawText:               p.RawText,
		Summary:               p.Summary,
		FinalRelevancyScore:   clampScore(p.FinalRelevancyScore),
		FinalRelevancyReason:  p.FinalRelevancyReason,
		FinalSummary:          p.FinalSummary,
		ClaudeScore:           clampScore(p.ClaudeScore),
		GeminiScore:           clampScore(p.GeminiScore),
		AgreementLevel:        p.AgreementLevel,
		Confidence:            p.Confidence,
		EvaluatorRationale:    p.EvaluatorRationale,
		Disagreements:         p.Disagreements,
		FinalSignals:          p.FinalSignals,
		CredibilityScore:      clampScore(p.CredibilityScore),
		CredibilityReason:     p.CredibilityReason,
		CredibilityConfidence: p.CredibilityConfidence,
		CredibilitySignals:    p.CredibilitySignals,
		ScoringRunID:          p.ScoringRunID,
		ScoringUpdatedAt:      scoredAt,
		LatestRunID:           p.LatestRunID,
	}, nil
}

func clampScore(v *float64) *int {
	if v == nil {
		return nil
	}

	n := domain.ClampScore(int(math.Round(*v)))

	return &n
}

func parseTime(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil //nolint:nilnil
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, apperrors.ErrInvalidDate)
	}

	return &t, nil
}
