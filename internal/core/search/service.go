// Package search answers free-text queries with the publications whose
// stored embeddings lie closest to the embedded query.
package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

// ErrSearchUnavailable is returned when a search precondition is unmet.
var ErrSearchUnavailable = fmt.Errorf("search unavailable: %w", apperrors.ErrUnavailable)

// Unavailability reasons, reported in the order they are checked.
const (
	ReasonNoProvider   = "OpenAI API key not configured"
	ReasonNoExtension  = "pgvector extension not available"
	ReasonNoEmbeddings = "no embeddings indexed yet"
)

// Embedder is the slice of the embedding service search needs.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	Configured() bool
	Model() string
}

// Status describes whether search can run.
type Status struct {
	PgvectorAvailable bool   `json:"pgvector_available"`
	OpenAIConfigured  bool   `json:"openai_configured"`
	EmbeddingsCount   int    `json:"embeddings_count"`
	SearchAvailable   bool   `json:"search_available"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
}

// Result is one ranked publication.
type Result struct {
	PublicationID       string  `json:"publication_id"`
	Title               string  `json:"title"`
	Source              string  `json:"source"`
	PublishedDate       *string `json:"published_date"`
	FinalRelevancyScore *int    `json:"final_relevancy_score"`
	CredibilityScore    *int    `json:"credibility_score"`
	FinalSummary        string  `json:"final_summary"`
	Similarity          float64 `json:"similarity"`
	Distance            float64 `json:"distance"`
}

// Response is the body returned for a search or similarity query.
type Response struct {
	Query   string   `json:"query,omitempty"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// Service runs semantic search.
type Service struct {
	store    ports.VectorStore
	embedder Embedder
	logger   *zerolog.Logger
}

// NewService creates a search service.
func NewService(store ports.VectorStore, embedder Embedder, logger *zerolog.Logger) *Service {
	return &Service{store: store, embedder: embedder, logger: logger}
}

// Status reports each precondition independently.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{
		OpenAIConfigured: s.embedder.Configured(),
		EmbeddingModel:   s.embedder.Model(),
	}

	available, err := s.store.VectorExtensionAvailable(ctx)
	if err != nil {
		return st, fmt.Errorf("check vector extension: %w", err)
	}

	st.PgvectorAvailable = available

	if available {
		if st.EmbeddingsCount, err = s.store.CountEmbeddings(ctx); err != nil {
			return st, fmt.Errorf("count embeddings: %w", err)
		}
	}

	st.SearchAvailable = st.OpenAIConfigured && st.PgvectorAvailable && st.EmbeddingsCount > 0

	return st, nil
}

// Search embeds the query and returns the nearest publications that pass
// the filters, closest first.
func (s *Service) Search(ctx context.Context, p Params) (*Response, error) {
	v, err := p.validate()
	if err != nil {
		return nil, err
	}

	if !s.embedder.Configured() {
		return nil, fmt.Errorf("%s: %w", ReasonNoProvider, ErrSearchUnavailable)
	}

	if err := s.checkIndex(ctx); err != nil {
		return nil, err
	}

	vec, err := s.embedder.GetEmbedding(ctx, v.query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.SearchByVector(ctx, vec, ports.VectorFilter{
		MinRelevancy:   v.minRelevancy,
		MinCredibility: v.minCredibility,
		DateFrom:       v.dateFrom,
		DateBefore:     v.dateBefore,
	}, v.limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	s.logger.Debug().Str("query", v.query).Int("results", len(matches)).Msg("semantic search")

	return buildResponse(v.query, matches), nil
}

// Similar returns the publications nearest to a stored publication's vector,
// excluding the publication itself.
func (s *Service) Similar(ctx context.Context, publicationID string, limit int) (*Response, error) {
	if publicationID == "" {
		return nil, fmt.Errorf("publication_id is required: %w", apperrors.ErrValidation)
	}

	if limit == 0 {
		limit = DefaultLimit
	}

	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d: %w", MaxLimit, apperrors.ErrValidation)
	}

	if err := s.checkIndex(ctx); err != nil {
		return nil, err
	}

	vec, err := s.store.GetEmbeddingVector(ctx, publicationID)
	if err != nil {
		return nil, fmt.Errorf("load embedding: %w", err)
	}

	if vec == nil {
		return nil, fmt.Errorf("no embedding for publication %s: %w", publicationID, apperrors.ErrNotFound)
	}

	matches, err := s.store.SearchByVector(ctx, vec, ports.VectorFilter{ExcludeID: publicationID}, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return buildResponse("", matches), nil
}

func (s *Service) checkIndex(ctx context.Context) error {
	available, err := s.store.VectorExtensionAvailable(ctx)
	if err != nil {
		return fmt.Errorf("check vector extension: %w", err)
	}

	if !available {
		return fmt.Errorf("%s: %w", ReasonNoExtension, ErrSearchUnavailable)
	}

	count, err := s.store.CountEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("count embeddings: %w", err)
	}

	if count == 0 {
		return fmt.Errorf("%s: %w", ReasonNoEmbeddings, ErrSearchUnavailable)
	}

	return nil
}

// Similarity maps an L2 distance into (0, 1]. Display only: ordering always
// follows distance.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

func buildResponse(query string, matches []domain.VectorMatch) *Response {
	results := make([]Result, 0, len(matches))

	for _, m := range matches {
		r := Result{
			PublicationID:       m.PublicationID,
			Title:               m.Title,
			Source:              m.Source,
			FinalRelevancyScore: m.FinalRelevancyScore,
			CredibilityScore:    m.CredibilityScore,
			FinalSummary:        m.FinalSummary,
			Similarity:          roundTo(Similarity(m.Distance), 4),
			Distance:            m.Distance,
		}

		if m.PublishedDate != nil {
			d := m.PublishedDate.UTC().Format(time.RFC3339)
			r.PublishedDate = &d
		}

		results = append(results, r)
	}

	return &Response{Query: query, Count: len(results), Results: results}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))

	return math.Round(v*p) / p
}
