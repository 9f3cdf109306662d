package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Mock provider constants.
const (
	// LCG (Linear Congruential Generator) constants for deterministic pseudo-random generation.
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407

	// Constants for float conversion.
	seedShift  = 33
	floatScale = 0x40000000
)

// MockProvider implements the embedding Provider interface for tests and
// local development. Vectors are derived from the text hash, so equal texts
// always embed identically.
type MockProvider struct {
	dimensions int

	mu       sync.Mutex
	failErr  error
	failLeft int
	calls    int
}

// NewMockProvider creates a new mock embedding provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{dimensions: DefaultDimensions}
}

// NewMockProviderWithDimensions creates a mock provider with custom dimensions.
func NewMockProviderWithDimensions(dims int) *MockProvider {
	return &MockProvider{dimensions: dims}
}

// FailNext makes the next n calls return err.
func (p *MockProvider) FailNext(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failLeft = n
	p.failErr = err
}

// Calls returns how many times GetEmbeddings ran.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

// Name returns the provider identifier.
func (p *MockProvider) Name() ProviderName {
	return ProviderMock
}

// Model returns the mock model name.
func (p *MockProvider) Model() string {
	return string(ProviderMock)
}

// Dimensions returns the output dimensions.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable returns true (mock is always available).
func (p *MockProvider) IsAvailable() bool {
	return true
}

// GetEmbeddings returns one deterministic vector per text.
func (p *MockProvider) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++

	if p.failLeft > 0 {
		p.failLeft--
		err := p.failErr
		p.mu.Unlock()

		return nil, err
	}

	p.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vector(text)
	}

	return out, nil
}

func (p *MockProvider) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text)) // fnv.Write never returns an error
	seed := h.Sum64()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		seed = seed*lcgMultiplier + lcgIncrement
		//nolint:gosec // intentional uint64->int64 conversion for pseudo-random generation
		vec[i] = float32(int64(seed>>seedShift)-floatScale) / float32(floatScale)
	}

	return normalizeVector(vec)
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}

	return vec
}
