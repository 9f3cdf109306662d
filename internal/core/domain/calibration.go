package domain

import (
	"time"
)

// Confidence levels accepted on a human evaluation.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Tag keys with a fixed meaning.
const (
	TagGold    = "gold"
	TagGoldSet = "gold_set"
	TagBucket  = "bucket"
	TagSource  = "source"
	TagRunID   = "run_id"
)

// Tags is the free-form tag map attached to a calibration item.
type Tags map[string]any

// IsGold reports whether the gold flag is true. A "true" string counts too,
// matching the tags->>'gold' = 'true' comparison used in SQL.
func (t Tags) IsGold() bool {
	switch v := t[TagGold].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// Merge returns a copy of t overlaid with other.
func (t Tags) Merge(other Tags) Tags {
	out := make(Tags, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}

	for k, v := range other {
		out[k] = v
	}

	return out
}

// CalibrationItem is one publication queued for human rating.
type CalibrationItem struct {
	ID                  string
	PublicationID       string
	Mode                string
	RunID               string
	Source              string
	PublishedDate       *time.Time
	Title               string
	Abstract            string
	URL                 string
	FinalRelevancyScore *float64
	FinalSummary        string
	Tags                Tags
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CalibrationSource is what the store knows about a publication when an item is seeded.
type CalibrationSource struct {
	Title               string
	Source              string
	PublishedDate       *time.Time
	URL                 string
	FinalRelevancyScore *float64
	FinalSummary        string
	RunID               string
	Mode                string
}

// HumanEvaluation is one evaluator's rating of one calibration item.
type HumanEvaluation struct {
	ID                string
	CalibrationItemID string
	Evaluator         string
	HumanScore        int
	Reasoning         string
	Confidence        string
	CreatedAt         time.Time
}

// EvaluationExportRow joins an evaluation with its item for export.
type EvaluationExportRow struct {
	PublicationID       string
	Title               string
	Source              string
	FinalRelevancyScore *float64
	HumanScore          int
	Reasoning           string
	Evaluator           string
	Confidence          string
	CreatedAt           time.Time
	Tags                Tags
}

// CalibrationCounts are the raw counters behind calibration stats.
type CalibrationCounts struct {
	TotalItems    int
	GoldTotal     int
	TotalRated    int
	GoldRated     int
	DistinctRated int
	HumanScores   []int
}

// GoldCandidate is a scored publication considered for the gold set.
type GoldCandidate struct {
	PublicationID string
	Title         string
	Source        string
	PublishedDate *time.Time
	RunID         string
	Mode          string
	Score         float64
	FinalSummary  string
}
