// Package mustreads turns must-read records written by different pipeline
// versions into one canonical shape and ranks them for display.
package mustreads

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Canonical field names.
const (
	FieldRelevancyScore        = "relevancy_score"
	FieldRelevancyReason       = "relevancy_reason"
	FieldSignals               = "signals"
	FieldCredibilityScore      = "credibility_score"
	FieldCredibilityReason     = "credibility_reason"
	FieldCredibilityConfidence = "credibility_confidence"
	FieldCredibilitySignals    = "credibility_signals"
	FieldScoredAt              = "scored_at"
	FieldScoringVersion        = "scoring_version"
	FieldScoringModel          = "scoring_model"

	FieldPublicationID = "publication_id"
	FieldTitle         = "title"
	FieldPublishedDate = "published_date"
)

// DefaultScoringVersion is assigned to records that predate versioned scoring.
const DefaultScoringVersion = "poc_v1"

var canonicalFields = map[string]struct{}{
	FieldRelevancyScore:        {},
	FieldRelevancyReason:       {},
	FieldSignals:               {},
	FieldCredibilityScore:      {},
	FieldCredibilityReason:     {},
	FieldCredibilityConfidence: {},
	FieldCredibilitySignals:    {},
	FieldScoredAt:              {},
	FieldScoringVersion:        {},
	FieldScoringModel:          {},
}

// Record is a normalized must-read. Scoring fields are typed; every other
// key from the source record is carried through unchanged in Fields.
type Record struct {
	RelevancyScore        *int
	RelevancyReason       string
	Signals               map[string]any
	CredibilityScore      *int
	CredibilityReason     string
	CredibilityConfidence *string
	CredibilitySignals    map[string]any
	ScoredAt              *string
	ScoringVersion        *string
	ScoringModel          *string

	Fields map[string]any
}

// PublicationID returns the publication_id pass-through field, if it is a string.
func (r Record) PublicationID() string {
	return r.stringField(FieldPublicationID)
}

// Title returns the title pass-through field, if it is a string.
func (r Record) Title() string {
	return r.stringField(FieldTitle)
}

// PublishedAt parses published_date. Missing or unparsable dates yield the zero time.
func (r Record) PublishedAt() time.Time {
	raw := r.stringField(FieldPublishedDate)
	if raw == "" {
		return time.Time{}
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}
	}

	return t
}

func (r Record) stringField(key string) string {
	s, _ := r.Fields[key].(string)

	return s
}

// Map flattens the record back into a single JSON-ready object.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Fields)+len(canonicalFields))
	for k, v := range r.Fields {
		out[k] = v
	}

	out[FieldRelevancyScore] = intOrNil(r.RelevancyScore)
	out[FieldRelevancyReason] = r.RelevancyReason
	out[FieldSignals] = mapOrEmpty(r.Signals)
	out[FieldCredibilityScore] = intOrNil(r.CredibilityScore)
	out[FieldCredibilityReason] = r.CredibilityReason
	out[FieldCredibilityConfidence] = stringOrNil(r.CredibilityConfidence)
	out[FieldCredibilitySignals] = mapOrEmpty(r.CredibilitySignals)
	out[FieldScoredAt] = stringOrNil(r.ScoredAt)
	out[FieldScoringVersion] = stringOrNil(r.ScoringVersion)
	out[FieldScoringModel] = stringOrNil(r.ScoringModel)

	return out
}

// MarshalJSON encodes the record as one flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(r.Map())
	if err != nil {
		return nil, fmt.Errorf("marshal must-read: %w", err)
	}

	return b, nil
}

// UnmarshalJSON decodes a flat object and normalizes it.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal must-read: %w", err)
	}

	*r = Normalize(raw)

	return nil
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}

	return *v
}

func stringOrNil(v *string) any {
	if v == nil {
		return nil
	}

	return *v
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
