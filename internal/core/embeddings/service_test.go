package embeddings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

const testDims = 8

var errTransient = errors.New("connection reset")

func fastConfig() Config {
	return Config{
		BatchSize:        3,
		TargetDimensions: testDims,
		Retry:            RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		CircuitBreakerConfig: CircuitBreakerConfig{
			Threshold:  2,
			ResetAfter: time.Minute,
		},
	}
}

func newMockService(t *testing.T) (*Service, *MockProvider) {
	t.Helper()

	logger := zerolog.Nop()
	mock := NewMockProviderWithDimensions(testDims)

	return NewService(mock, fastConfig(), &logger), mock
}

func TestService_PreservesOrderAcrossBatches(t *testing.T) {
	svc, mock := newMockService(t)

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vecs, err := svc.GetEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, 3, mock.Calls())

	for i, text := range texts {
		single, err := svc.GetEmbedding(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i], "vector %d out of order", i)
	}
}

func TestService_RetriesTransientErrors(t *testing.T) {
	svc, mock := newMockService(t)
	mock.FailNext(2, errTransient)

	vec, err := svc.GetEmbedding(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Len(t, vec, testDims)
	assert.Equal(t, 3, mock.Calls())
}

func TestService_ExhaustedRetries(t *testing.T) {
	svc, mock := newMockService(t)
	mock.FailNext(10, errTransient)

	_, err := svc.GetEmbedding(context.Background(), "never")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingUnavailable))
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
	assert.Equal(t, 3, mock.Calls())
}

func TestService_PermanentErrorNotRetried(t *testing.T) {
	svc, mock := newMockService(t)
	mock.FailNext(1, fmt.Errorf("bad request: %w", ErrPermanent))

	_, err := svc.GetEmbedding(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingUnavailable))
	assert.Equal(t, 1, mock.Calls())
}

func TestService_CircuitOpensAfterThreshold(t *testing.T) {
	svc, mock := newMockService(t)
	mock.FailNext(6, errTransient)

	for i := 0; i < 2; i++ {
		_, err := svc.GetEmbedding(context.Background(), "x")
		require.Error(t, err)
	}

	calls := mock.Calls()

	_, err := svc.GetEmbedding(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCircuitBreakerOpen))
	assert.Equal(t, calls, mock.Calls())
}

func TestService_NotConfigured(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewClient(Config{}, &logger)

	assert.False(t, svc.Configured())
	assert.Empty(t, svc.Model())

	_, err := svc.GetEmbedding(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestNewClient_MockProvider(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewClient(Config{Provider: "mock", TargetDimensions: testDims}, &logger)

	require.True(t, svc.Configured())

	a, err := svc.GetEmbedding(context.Background(), "same")
	require.NoError(t, err)
	b, err := svc.GetEmbedding(context.Background(), "same")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, testDims)
	assert.False(t, IsZeroVector(a))
}

func TestPadToTargetDimensions(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 0, 0}, PadToTargetDimensions([]float32{1, 2}, 4))
	assert.Equal(t, []float32{1, 2}, PadToTargetDimensions([]float32{1, 2, 3}, 2))
}
