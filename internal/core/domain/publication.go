package domain

import (
	"encoding/json"
	"time"
)

// Publication is the canonical record for one scored (or not yet scored) publication.
type Publication struct {
	PublicationID string
	Title         string
	Authors       string
	Source        string
	Venue         string
	PublishedDate string
	URL           string
	CanonicalURL  string
	DOI           string
	PMID          string
	SourceType    string
	RawText       string
	Summary       string

	FinalRelevancyScore  *int
	FinalRelevancyReason string
	FinalSummary         string
	ClaudeScore          *int
	GeminiScore          *int
	AgreementLevel       string
	Confidence           string
	EvaluatorRationale   string
	Disagreements        string
	FinalSignals         json.RawMessage

	CredibilityScore      *int
	CredibilityReason     string
	CredibilityConfidence string
	CredibilitySignals    json.RawMessage

	ScoringRunID     string
	ScoringUpdatedAt *time.Time
	LatestRunID      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BestURL returns the canonical URL when known, otherwise the original one.
func (p *Publication) BestURL() string {
	if p.CanonicalURL != "" {
		return p.CanonicalURL
	}

	return p.URL
}

// ScoreDelta returns the absolute difference between the two model sub-scores,
// or nil when either is missing.
func (p *Publication) ScoreDelta() *int {
	if p.ClaudeScore == nil || p.GeminiScore == nil {
		return nil
	}

	d := *p.ClaudeScore - *p.GeminiScore
	if d < 0 {
		d = -d
	}

	return &d
}

// PublicationEmbedding is one stored vector plus the denormalized fields used for filtering.
type PublicationEmbedding struct {
	PublicationID       string
	Title               string
	Source              string
	PublishedDate       *time.Time
	EmbeddedText        string
	Embedding           []float32
	EmbeddingModel      string
	EmbeddedAt          time.Time
	LatestRunID         string
	FinalRelevancyScore *int
	CredibilityScore    *int
	FinalSummary        string
}

// VectorMatch is a single nearest-neighbour result.
type VectorMatch struct {
	PublicationID       string
	Title               string
	Source              string
	PublishedDate       *time.Time
	FinalRelevancyScore *int
	CredibilityScore    *int
	FinalSummary        string
	Distance            float64
}

// PublicationStats summarises the publications table.
type PublicationStats struct {
	Total             int
	Scored            int
	WithCredibility   int
	AvgRelevancy      *float64
	AvgCredibility    *float64
	HighAgreement     int
	ModerateAgreement int
	LowAgreement      int
	LatestScoredAt    *time.Time
}

// EmbeddingStats summarises the publication_embeddings table.
type EmbeddingStats struct {
	Total          int
	Models         []string
	LatestEmbedded *time.Time
}
