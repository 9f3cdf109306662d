// Package embeddings turns publication text into vectors for semantic search.
//
// A Service wraps one Provider (OpenAI in production, a deterministic mock
// in development) and adds batching, retries with exponential backoff, a
// circuit breaker, padding to the column width and Prometheus metrics.
// Only one provider is ever active: vectors from different models do not
// share a space, so there is no cross-provider fallback.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Service errors.
var (
	ErrNotConfigured        = fmt.Errorf("embedding provider not configured: %w", apperrors.ErrUnavailable)
	ErrEmbeddingUnavailable = fmt.Errorf("embedding service unavailable: %w", apperrors.ErrUnavailable)
)

// Client is the embedding surface the rest of the codebase depends on.
type Client interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Configured() bool
	Model() string
}

var _ Client = (*Service)(nil)

// Config holds configuration for creating an embedding service.
type Config struct {
	// Provider selects "openai" or "mock". Empty means openai when a key is set.
	Provider string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIDimensions int
	OpenAIRateLimit  int

	BatchSize            int
	TargetDimensions     int
	Retry                RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
}

// Service embeds texts through a single provider.
type Service struct {
	provider  Provider
	gate      *batchGate
	retry     RetryConfig
	batchSize int
	target    int
	logger    *zerolog.Logger
}

// NewClient builds a Service from configuration. Without an API key and
// without an explicit mock provider the service reports itself unconfigured.
func NewClient(cfg Config, logger *zerolog.Logger) *Service {
	var provider Provider

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case string(ProviderMock):
		provider = NewMockProviderWithDimensions(targetOrDefault(cfg.TargetDimensions))
	case "", string(ProviderOpenAI):
		p := NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Dimensions: cfg.OpenAIDimensions,
			RateLimit:  cfg.OpenAIRateLimit,
		})
		if p.IsAvailable() {
			provider = p
		}
	default:
		logger.Warn().Str("provider", cfg.Provider).Msg("unknown embedding provider, embeddings disabled")
	}

	return NewService(provider, cfg, logger)
}

// NewService wraps an already constructed provider. A nil provider yields an
// unconfigured service.
func NewService(provider Provider, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	if cfg.CircuitBreakerConfig.Threshold <= 0 {
		cfg.CircuitBreakerConfig = DefaultCircuitBreakerConfig()
	}

	s := &Service{
		provider:  provider,
		gate:      newBatchGate(cfg.CircuitBreakerConfig, logger),
		retry:     cfg.Retry,
		batchSize: cfg.BatchSize,
		target:    targetOrDefault(cfg.TargetDimensions),
		logger:    logger,
	}

	if provider != nil {
		setProviderAvailable(string(provider.Name()), provider.IsAvailable())
		logger.Info().
			Str("provider", string(provider.Name())).
			Str("model", provider.Model()).
			Int("dimensions", s.target).
			Msg("embedding provider configured")
	}

	return s
}

func targetOrDefault(n int) int {
	if n <= 0 {
		return DefaultDimensions
	}

	return n
}

// Configured reports whether a provider is available.
func (s *Service) Configured() bool {
	return s.provider != nil && s.provider.IsAvailable()
}

// Model returns the provider's model name, or empty when unconfigured.
func (s *Service) Model() string {
	if s.provider == nil {
		return ""
	}

	return s.provider.Model()
}

// Dimensions returns the width every returned vector has.
func (s *Service) Dimensions() int {
	return s.target
}

// GetEmbedding embeds a single text.
func (s *Service) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.GetEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

// GetEmbeddings embeds texts in provider-sized batches. The result has the
// same length and order as texts.
func (s *Service) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	out := make([][]float32, 0, len(texts))

	for _, batch := range Chunk(texts, s.batchSize) {
		vecs, err := s.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		out = append(out, vecs...)
	}

	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	name := string(s.provider.Name())
	model := s.provider.Model()

	if err := s.gate.admit(); err != nil {
		setProviderAvailable(name, false)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	var vecs [][]float32

	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		res, err := s.provider.GetEmbeddings(ctx, batch)
		recordLatency(name, model, time.Since(start))

		if err != nil {
			recordRequest(name, model, false)
			s.logger.Warn().Err(err).Str("provider", name).Int("attempt", attempt).Int("batch", len(batch)).
				Msg("embedding batch failed")

			if errors.Is(err, ErrPermanent) {
				return backoff.Permanent(err)
			}

			return err
		}

		if len(res) != len(batch) {
			recordRequest(name, model, false)
			return backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d texts", len(res), len(batch)))
		}

		vecs = res

		return nil
	}

	if err := backoff.Retry(op, s.newBackOff(ctx)); err != nil {
		s.gate.failed(s.provider.Name())
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	s.gate.succeeded()
	recordRequest(name, model, true)
	setProviderAvailable(name, true)

	tokens := 0
	for i, text := range batch {
		tokens += EstimateTokens(text)
		vecs[i] = PadToTargetDimensions(vecs[i], s.target)
	}

	recordTokens(name, model, tokens)

	return vecs, nil
}

func (s *Service) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialBackoff
	exp.MaxInterval = s.retry.MaxBackoff
	exp.MaxElapsedTime = 0

	//nolint:gosec // MaxAttempts is validated positive
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.retry.MaxAttempts-1)), ctx)
}
