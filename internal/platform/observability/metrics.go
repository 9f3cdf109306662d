package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP API metrics
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_http_requests_total",
		Help: "Total number of API requests by route and status",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acitrack_http_request_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ResultSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "acitrack_result_size",
		Help: "Number of items returned by the last list response per route",
	}, []string{"route"})

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_embedding_requests_total",
		Help: "Total number of embedding batch requests",
	}, []string{"provider", "model", "status"})

	EmbeddingTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_embedding_tokens_total",
		Help: "Estimated number of tokens sent for embedding",
	}, []string{"provider", "model"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acitrack_embedding_latency_seconds",
		Help:    "Latency of embedding requests by provider",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"provider", "model"})

	EmbeddingEstimatedCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_embedding_estimated_cost_millicents_total",
		Help: "Estimated embedding cost in millicents (0.001 cents)",
	}, []string{"provider", "model"})

	EmbeddingProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "acitrack_embedding_provider_available",
		Help: "Whether embedding provider is currently available (0=no, 1=yes)",
	}, []string{"provider"})

	// Artifact metrics
	ArtifactCacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_artifact_cache_events_total",
		Help: "Artifact cache lookups by outcome (hit, miss, stale)",
	}, []string{"result"})

	// Calibration and feedback metrics
	CalibrationSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_calibration_submissions_total",
		Help: "Human calibration submissions by outcome",
	}, []string{"status"})

	FeedbackVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_feedback_votes_total",
		Help: "Digest feedback clicks by vote",
	}, []string{"vote"})

	// Ingestion metrics
	IngestItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_ingest_items_total",
		Help: "Items processed by ingest endpoints and backfills",
	}, []string{"kind", "outcome"})

	FeedItemsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_feed_items_parsed_total",
		Help: "Entries parsed from publication feeds",
	}, []string{"feed"})

	WebFetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acitrack_web_fetch_requests_total",
		Help: "Abstract page fetches by outcome",
	}, []string{"status"})
)
