package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequestBody struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func TestOpenAIProvider_SortsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body embeddingRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, ModelTextEmbedding3Small, body.Model)

		// Answer in reverse order: index n-1 first.
		data := make([]map[string]any, 0, len(body.Input))
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 0.5},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": body.Model})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, RateLimit: 100})

	vecs, err := p.GetEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for i, v := range vecs {
		assert.InDelta(t, float32(i), v[0], 0.0001)
	}
}

func TestOpenAIProvider_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, RateLimit: 100})

	_, err := p.GetEmbeddings(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
}

func TestIsPermanentStatus(t *testing.T) {
	assert.True(t, isPermanentStatus(http.StatusUnauthorized))
	assert.False(t, isPermanentStatus(http.StatusTooManyRequests))
	assert.False(t, isPermanentStatus(http.StatusRequestTimeout))
	assert.False(t, isPermanentStatus(http.StatusBadGateway))
	assert.False(t, isPermanentStatus(0))
}

func TestOpenAIProvider_Availability(t *testing.T) {
	assert.False(t, NewOpenAIProvider(OpenAIConfig{}).IsAvailable())
	assert.False(t, NewOpenAIProvider(OpenAIConfig{APIKey: mockAPIKey}).IsAvailable())
	assert.True(t, NewOpenAIProvider(OpenAIConfig{APIKey: "sk-x"}).IsAvailable())
}
