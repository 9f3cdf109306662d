// Package app wires configuration, storage and services together.
//
// The App type builds every collaborator once and exposes:
//
//   - RunServer: the public API, the health/metrics port and the scheduled jobs
//   - Backfiller, GoldSet, Feeds, Abstracts: the maintenance jobs run by the CLI
//
// Optional pieces (embedding provider, artifact backend, Redis cache) degrade
// to unavailable features instead of failing startup.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/acitrack/internal/abstracts"
	"github.com/lueurxax/acitrack/internal/api"
	"github.com/lueurxax/acitrack/internal/artifacts"
	"github.com/lueurxax/acitrack/internal/core/calibration"
	"github.com/lueurxax/acitrack/internal/core/embeddings"
	"github.com/lueurxax/acitrack/internal/core/feedback"
	"github.com/lueurxax/acitrack/internal/core/search"
	"github.com/lueurxax/acitrack/internal/feeds"
	"github.com/lueurxax/acitrack/internal/ingest"
	"github.com/lueurxax/acitrack/internal/jobs"
	"github.com/lueurxax/acitrack/internal/platform/config"
	"github.com/lueurxax/acitrack/internal/platform/observability"
	db "github.com/lueurxax/acitrack/internal/storage"
	"github.com/lueurxax/acitrack/internal/webfetch"
)

const logFieldComponent = "component"

// App holds the application dependencies.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger

	embedder *embeddings.Service
	ingest   *ingest.Service
	fetcher  *webfetch.Fetcher

	// closers run in reverse order on Close.
	closers []func() error
}

// New creates an App. Nothing here touches the network; clients connect lazily.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	a := &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}

	a.embedder = a.newEmbeddingClient()
	a.ingest = ingest.NewService(database, a.embedder, logger)
	a.fetcher = webfetch.New(webfetch.Options{
		RPS:       cfg.WebFetch.RPS,
		Timeout:   cfg.WebFetch.Timeout,
		UserAgent: cfg.WebFetch.UserAgent,
	})

	return a
}

// Close releases clients opened by the App. The database is owned by the caller.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}

	a.closers = nil
}

// RunServer serves the API and the health port and runs the scheduled jobs
// until ctx is canceled or one of them fails.
func (a *App) RunServer(ctx context.Context) error {
	handler, err := a.newAPIHandler()
	if err != nil {
		return err
	}

	scheduler := jobs.NewScheduler(a.cfg.Jobs, a.Feeds(), a.Abstracts(), a.database, a.componentLogger("jobs"))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return observability.Serve(gCtx, fmt.Sprintf(":%d", a.cfg.Port), handler.Handler(), "api", a.logger)
	})

	g.Go(func() error {
		return observability.NewHealthServer(a.database, a.cfg.HealthPort, a.logger).Start(gCtx)
	})

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	return nil
}

func (a *App) newAPIHandler() (*api.Server, error) {
	resolver, fetcher, err := a.newArtifacts()
	if err != nil {
		return nil, err
	}

	srv, err := api.NewServer(api.Deps{
		Config:      a.cfg,
		Store:       a.database,
		Calibration: calibration.NewService(a.database, a.componentLogger("calibration")),
		Search:      search.NewService(a.database, a.embedder, a.componentLogger("search")),
		Feedback:    feedback.NewService(a.Signer(), a.database, a.componentLogger("feedback")),
		Ingest:      a.ingest,
		Resolver:    resolver,
		Fetcher:     fetcher,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init api: %w", err)
	}

	return srv, nil
}

// Signer builds the feedback link signer from configuration.
func (a *App) Signer() *feedback.Signer {
	return feedback.NewSigner(a.cfg.Feedback.Secret, a.cfg.Feedback.MaxAge())
}

// Backfiller returns the embedding and publication backfill jobs.
func (a *App) Backfiller() *jobs.Backfiller {
	return jobs.NewBackfiller(a.database, a.ingest, a.componentLogger("backfill"))
}

// Feeds returns the feed ingester.
func (a *App) Feeds() *feeds.Ingester {
	return feeds.NewIngester(a.fetcher, a.database, a.componentLogger("feeds"))
}

// Abstracts returns the abstract enrichment service.
func (a *App) Abstracts() *abstracts.Service {
	return abstracts.NewService(a.database, a.fetcher, a.componentLogger("abstracts"))
}

// GoldSetOptions returns the configured gold-set defaults.
func (a *App) GoldSetOptions() jobs.GoldSetOptions {
	return jobs.GoldSetOptions{
		Name:      a.cfg.Gold.SetName,
		Mode:      a.cfg.Gold.Mode,
		Seed:      a.cfg.Gold.Seed,
		PerBucket: a.cfg.Gold.PerBucket,
	}
}

// BuildGoldSet picks, and with opts.Insert stores, the gold set.
func (a *App) BuildGoldSet(ctx context.Context, opts jobs.GoldSetOptions) (jobs.GoldSetResult, error) {
	return jobs.BuildGoldSet(ctx, a.database, opts, a.componentLogger("gold-set"))
}

// newEmbeddingClient creates the embedding client. It reports itself
// unconfigured when no API key is set.
func (a *App) newEmbeddingClient() *embeddings.Service {
	logger := a.componentLogger("embeddings")
	c := a.cfg.Embedding

	svc := embeddings.NewClient(embeddings.Config{
		Provider:         strings.ToLower(c.Provider),
		OpenAIAPIKey:     c.APIKey(),
		OpenAIBaseURL:    c.BaseURL,
		OpenAIModel:      c.Model,
		OpenAIDimensions: c.Dimensions,
		OpenAIRateLimit:  c.RateLimit,
		BatchSize:        c.BatchSize,
		TargetDimensions: c.Dimensions,
		Retry: embeddings.RetryConfig{
			MaxAttempts:    c.MaxAttempts,
			InitialBackoff: c.RetryMinWait,
			MaxBackoff:     c.RetryMaxWait,
		},
		CircuitBreakerConfig: embeddings.DefaultCircuitBreakerConfig(),
	}, logger)

	if !svc.Configured() {
		logger.Warn().Msg("embedding provider not configured, search and embedding ingest disabled")
	}

	return svc
}

// newArtifacts builds the artifact store and its cache. Both are nil for the
// "none" backend.
func (a *App) newArtifacts() (*artifacts.Resolver, *artifacts.CachedFetcher, error) {
	c := a.cfg.Artifacts
	logger := a.componentLogger("artifacts")

	var store artifacts.Store

	switch c.Backend {
	case config.ArtifactBackendLocal:
		store = artifacts.NewLocalStore(c.LocalRoot)
	case config.ArtifactBackendS3:
		store = artifacts.NewS3Store(artifacts.S3Config{
			Bucket:          c.S3Bucket,
			Prefix:          c.S3Prefix,
			Region:          c.S3Region,
			EndpointURL:     c.S3Endpoint,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			ForcePathStyle:  c.S3ForcePathStyle,
		}, logger)
	default:
		logger.Info().Msg("artifact backend disabled")

		return nil, nil, nil
	}

	var cache artifacts.Cache = artifacts.NewMemoryCache()

	if c.RedisURL != "" {
		redisCache, err := artifacts.NewRedisCacheFromURL(c.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis cache: %w", err)
		}

		a.closers = append(a.closers, redisCache.Close)
		cache = redisCache
	}

	logger.Info().Str("backend", store.Backend()).Dur("ttl", c.CacheTTL()).Msg("artifact backend enabled")

	return artifacts.NewResolver(store, logger), artifacts.NewCachedFetcher(store, cache, c.CacheTTL(), logger), nil
}

func (a *App) componentLogger(name string) *zerolog.Logger {
	logger := a.logger.With().Str(logFieldComponent, name).Logger()

	return &logger
}
