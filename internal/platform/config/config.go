package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Artifact backends.
const (
	ArtifactBackendNone  = "none"
	ArtifactBackendLocal = "local"
	ArtifactBackendS3    = "s3"
)

// Configuration errors.
var (
	ErrUnknownArtifactBackend = errors.New("ARTIFACT_BACKEND must be none, local or s3")
	ErrMissingArtifactRoot    = errors.New("ARTIFACT_LOCAL_ROOT is required for the local artifact backend")
	ErrMissingArtifactBucket  = errors.New("ARTIFACT_S3_BUCKET is required for the s3 artifact backend")
	ErrUnknownEmbedding       = errors.New("EMBEDDING_PROVIDER must be openai or mock")
)

type Config struct {
	AppEnv             string   `env:"APP_ENV" envDefault:"local"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	Port               int      `env:"PORT" envDefault:"8000"`
	HealthPort         int      `env:"HEALTH_PORT" envDefault:"8080"`
	APIKey             string   `env:"ACITRACK_API_KEY"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://chat.openai.com,https://chatgpt.com"`

	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Artifacts ArtifactConfig
	Feedback  FeedbackConfig
	WebFetch  WebFetchConfig
	Gold      GoldConfig
	Jobs      JobsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL               string        `env:"DATABASE_URL,required"`
	MaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	MinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider     string        `env:"EMBEDDING_PROVIDER" envDefault:"openai"`
	LLMAPIKey    string        `env:"SPOTITEARLY_LLM_API_KEY"`
	OpenAIAPIKey string        `env:"OPENAI_API_KEY"`
	BaseURL      string        `env:"EMBEDDING_BASE_URL"`
	Model        string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	Dimensions   int           `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	BatchSize    int           `env:"EMBEDDING_BATCH_SIZE" envDefault:"100"`
	RateLimit    int           `env:"EMBEDDING_RATE_LIMIT" envDefault:"3"`
	MaxAttempts  int           `env:"EMBEDDING_MAX_ATTEMPTS" envDefault:"3"`
	RetryMinWait time.Duration `env:"EMBEDDING_RETRY_MIN_WAIT" envDefault:"1s"`
	RetryMaxWait time.Duration `env:"EMBEDDING_RETRY_MAX_WAIT" envDefault:"10s"`
}

// APIKey prefers the project key over the generic OpenAI variable.
func (c EmbeddingConfig) APIKey() string {
	if c.LLMAPIKey != "" {
		return c.LLMAPIKey
	}

	return c.OpenAIAPIKey
}

// ArtifactConfig selects where run artifacts are read from.
type ArtifactConfig struct {
	Backend           string `env:"ARTIFACT_BACKEND" envDefault:"none"`
	LocalRoot         string `env:"ARTIFACT_LOCAL_ROOT"`
	S3Bucket          string `env:"ARTIFACT_S3_BUCKET"`
	S3Prefix          string `env:"ARTIFACT_S3_PREFIX"`
	S3Region          string `env:"ARTIFACT_S3_REGION"`
	S3Endpoint        string `env:"ARTIFACT_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"ARTIFACT_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"ARTIFACT_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"ARTIFACT_S3_FORCE_PATH_STYLE" envDefault:"false"`
	CacheTTLMinutes   int    `env:"ACITRACK_CACHE_TTL_MINUTES" envDefault:"10"`
	RedisURL          string `env:"REDIS_URL"`
}

// CacheTTL returns the artifact cache freshness window.
func (c ArtifactConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// FeedbackConfig holds digest feedback link settings.
type FeedbackConfig struct {
	Secret        string `env:"DIGEST_FEEDBACK_SECRET"`
	MaxAgeSeconds int    `env:"FEEDBACK_MAX_AGE_SECONDS" envDefault:"2592000"`
	BaseURL       string `env:"FEEDBACK_BASE_URL" envDefault:"http://localhost:8000/feedback"`
}

// MaxAge returns how long a signed link stays valid.
func (c FeedbackConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// WebFetchConfig holds settings for fetching publication pages.
type WebFetchConfig struct {
	RPS       float64       `env:"WEB_FETCH_RPS" envDefault:"2"`
	Timeout   time.Duration `env:"WEB_FETCH_TIMEOUT" envDefault:"30s"`
	UserAgent string        `env:"WEB_FETCH_USER_AGENT" envDefault:"acitrack/1.0 (+https://github.com/lueurxax/acitrack)"`
}

// GoldConfig holds gold-set builder defaults.
type GoldConfig struct {
	SetName   string `env:"GOLD_SET_NAME" envDefault:"v1"`
	Mode      string `env:"GOLD_MODE" envDefault:"tri-model-daily"`
	Seed      int64  `env:"GOLD_RANDOM_SEED" envDefault:"42"`
	PerBucket int    `env:"GOLD_PER_BUCKET" envDefault:"2"`
}

// JobsConfig schedules the background tasks run by the serve command.
// A zero interval disables the task.
type JobsConfig struct {
	FeedURLs         []string      `env:"FEED_URLS" envSeparator:","`
	FeedPollInterval time.Duration `env:"FEED_POLL_INTERVAL" envDefault:"6h"`
	EnrichInterval   time.Duration `env:"ABSTRACT_ENRICH_INTERVAL" envDefault:"0"`
	EnrichBatch      int           `env:"ABSTRACT_ENRICH_BATCH" envDefault:"50"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Database.URL = NormalizeDatabaseURL(cfg.Database.URL)

	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.Artifacts.Backend {
	case ArtifactBackendNone:
	case ArtifactBackendLocal:
		if c.Artifacts.LocalRoot == "" {
			return ErrMissingArtifactRoot
		}
	case ArtifactBackendS3:
		if c.Artifacts.S3Bucket == "" {
			return ErrMissingArtifactBucket
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownArtifactBackend, c.Artifacts.Backend)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "openai", "mock":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEmbedding, c.Embedding.Provider)
	}

	return nil
}

// NormalizeDatabaseURL accepts the postgres:// scheme alias and requires TLS
// for non-local hosts that do not choose an sslmode themselves.
func NormalizeDatabaseURL(raw string) string {
	if strings.HasPrefix(raw, "postgres://") {
		raw = "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	if q.Get("sslmode") != "" || isLocalHost(u.Hostname()) {
		return raw
	}

	q.Set("sslmode", "require")
	u.RawQuery = q.Encode()

	return u.String()
}

func isLocalHost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1", "postgres", "db":
		return true
	}

	return false
}
