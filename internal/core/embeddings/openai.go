package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAI model constants.
const (
	ModelTextEmbedding3Large = "text-embedding-3-large"
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// Default rate limiter burst.
	openaiRateLimiterBurst = 5

	// Maximum dimensions for text-embedding-3-large.
	maxLargeDimensions = 3072
)

// OpenAI errors.
var (
	ErrOpenAIEmptyResponse = errors.New("empty embedding response from OpenAI")
	ErrOpenAIShortResponse = errors.New("embedding response does not cover every input")
)

// ErrPermanent marks provider errors that retrying cannot fix.
var ErrPermanent = errors.New("permanent embedding error")

// OpenAIProvider implements the embedding Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dimensions  int
	rateLimiter *rate.Limiter
	available   bool
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty uses the public API
	Model      string // "text-embedding-3-small" or "text-embedding-3-large"
	Dimensions int    // Output dimensions (3072 max for large, 1536 for small)
	RateLimit  int    // Requests per second
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelTextEmbedding3Small
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), openaiRateLimiterBurst),
		available:   cfg.APIKey != "" && cfg.APIKey != mockAPIKey,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

// Model returns the embedding model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Dimensions returns the configured output dimensions.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable returns true if the provider has an API key.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.available
}

// GetEmbeddings embeds texts in one API call. The response is re-ordered by
// the index OpenAI reports, so result i always belongs to texts[i].
func (p *OpenAIProvider) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf(errRateLimiterFmt, err)
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}

	// text-embedding-3-large supports dimension reduction via API parameter
	if p.model == ModelTextEmbedding3Large && p.dimensions > 0 && p.dimensions < maxLargeDimensions {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrOpenAIEmptyResponse
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d inputs", ErrOpenAIShortResponse, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}

	return out, nil
}

// classifyOpenAIError marks client errors other than timeouts and rate limits
// as permanent.
func classifyOpenAIError(err error) error {
	status := 0

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}

	if isPermanentStatus(status) {
		return fmt.Errorf("openai embeddings: %w: %w", ErrPermanent, err)
	}

	return fmt.Errorf("openai embeddings: %w", err)
}

func isPermanentStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}

	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}
