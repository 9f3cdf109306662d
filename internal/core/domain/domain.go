// Package domain holds the entities shared across the storage, core and HTTP layers.
package domain

import (
	"encoding/json"
	"time"
)

// Run modes produced by the scoring pipeline.
const (
	ModeDaily         = "daily"
	ModeWeekly        = "weekly"
	ModeTriModelDaily = "tri-model-daily"
)

// Agreement levels between the scoring models.
const (
	AgreementHigh     = "high"
	AgreementModerate = "moderate"
	AgreementLow      = "low"
)

// Score bounds for relevancy, credibility and human ratings.
const (
	MinScore = 0
	MaxScore = 100
)

// Run is one execution of the external scoring pipeline.
type Run struct {
	RunID       string
	Mode        string
	StartedAt   *time.Time
	WindowStart *time.Time
	WindowEnd   *time.Time
	Counts      RunCounts
	// Config and Artifacts are pipeline-defined and kept opaque.
	Config    json.RawMessage
	Artifacts json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunCounts is the per-run counter block reported by the pipeline.
type RunCounts struct {
	TotalFound   int `json:"total_found,omitempty"`
	Deduplicated int `json:"deduplicated,omitempty"`
	New          int `json:"new,omitempty"`
	Unchanged    int `json:"unchanged,omitempty"`
	Scored       int `json:"scored,omitempty"`
	MustReads    int `json:"must_reads,omitempty"`
}

// MustReadSet is the raw must-reads document stored for one run.
type MustReadSet struct {
	RunID     string
	Mode      string
	Document  json.RawMessage
	UpdatedAt time.Time
}

// TriModelEvent is a single publication evaluation inside a run.
type TriModelEvent struct {
	ID                  int64
	RunID               string
	Mode                string
	PublicationID       string
	Title               string
	AgreementLevel      string
	Disagreements       string
	EvaluatorRationale  string
	ClaudeReview        json.RawMessage
	GeminiReview        json.RawMessage
	GPTEval             json.RawMessage
	FinalRelevancyScore *float64
	CreatedAt           time.Time
}

// Feedback is a thumbs up/down vote from a weekly digest email.
type Feedback struct {
	ID            int64
	WeekStart     time.Time
	WeekEnd       time.Time
	PublicationID string
	Vote          string
	SourceIP      string
	UserAgent     string
	Context       json.RawMessage
	CreatedAt     time.Time
}

// ClampScore bounds a score into [MinScore, MaxScore].
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}

	if v > MaxScore {
		return MaxScore
	}

	return v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
