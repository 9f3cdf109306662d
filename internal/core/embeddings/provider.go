package embeddings

import (
	"context"
	"time"
)

// ProviderName identifies an embedding provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderMock   ProviderName = "mock"
)

// Default dimensions for embeddings (matches the publication_embeddings column).
const DefaultDimensions = 1536

// Batch and retry defaults.
const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 3

	defaultInitialBackoff   = time.Second
	defaultMaxBackoff       = 10 * time.Second
	defaultCircuitThreshold = 5
)

// Shared error format strings.
const errRateLimiterFmt = "rate limiter: %w"

// API key constants.
const mockAPIKey = "mock"

// Provider defines the interface for embedding providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// Model returns the model the provider embeds with.
	Model() string

	// GetEmbeddings embeds a batch of texts. Result i belongs to texts[i].
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// IsAvailable returns true if the provider is configured.
	IsAvailable() bool

	// Dimensions returns the native output dimensions of this provider.
	Dimensions() int
}

// CircuitBreakerConfig defines circuit breaker settings.
type CircuitBreakerConfig struct {
	Threshold  int           // Number of failures before opening circuit
	ResetAfter time.Duration // Time before attempting recovery
}

// DefaultCircuitBreakerConfig returns sensible defaults for circuit breaker.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  defaultCircuitThreshold,
		ResetAfter: time.Minute,
	}
}

// RetryConfig bounds the retry loop around a single batch.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns three attempts with 1s..10s exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}
