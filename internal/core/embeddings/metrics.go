package embeddings

import (
	"time"

	"github.com/lueurxax/acitrack/internal/platform/observability"
)

// Metric status constants.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Cost per 1M tokens (in USD), approximate.
	costOpenAILargePer1M = 0.13
	costOpenAISmallPer1M = 0.02

	usdToMillicents  = 100000.0
	tokensPerMillion = 1000000.0
)

func recordRequest(provider, model string, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
	}

	observability.EmbeddingRequests.WithLabelValues(provider, model, status).Inc()
}

func recordTokens(provider, model string, tokens int) {
	if tokens <= 0 {
		return
	}

	observability.EmbeddingTokens.WithLabelValues(provider, model).Add(float64(tokens))

	if cost := estimateCost(provider, model, tokens); cost > 0 {
		observability.EmbeddingEstimatedCost.WithLabelValues(provider, model).Add(cost * usdToMillicents)
	}
}

func recordLatency(provider, model string, d time.Duration) {
	observability.EmbeddingLatency.WithLabelValues(provider, model).Observe(d.Seconds())
}

func setProviderAvailable(provider string, available bool) {
	value := 0.0
	if available {
		value = 1.0
	}

	observability.EmbeddingProviderAvailable.WithLabelValues(provider).Set(value)
}

func estimateCost(provider, model string, tokens int) float64 {
	if provider != string(ProviderOpenAI) {
		return 0
	}

	costPer1M := costOpenAISmallPer1M
	if model == ModelTextEmbedding3Large {
		costPer1M = costOpenAILargePer1M
	}

	return (float64(tokens) / tokensPerMillion) * costPer1M
}
