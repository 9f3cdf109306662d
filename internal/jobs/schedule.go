package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/abstracts"
	"github.com/lueurxax/acitrack/internal/feeds"
	"github.com/lueurxax/acitrack/internal/platform/config"
	"github.com/lueurxax/acitrack/internal/platform/worker"
	db "github.com/lueurxax/acitrack/internal/storage"
)

const (
	taskFeeds     = "feed-poll"
	taskAbstracts = "abstract-enrich"

	// feedTimeout bounds one pass over all configured feeds.
	feedTimeout     = 10 * time.Minute
	abstractTimeout = 15 * time.Minute
)

// FeedIngester pulls one feed.
type FeedIngester interface {
	Ingest(ctx context.Context, feedURL, source string, dryRun bool) (feeds.Result, error)
}

// AbstractEnricher fills missing abstracts.
type AbstractEnricher interface {
	Enrich(ctx context.Context, limit int) (abstracts.Result, error)
}

// Locker runs fn under a cluster-wide job lock.
type Locker interface {
	WithAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) error
}

// Scheduler builds the periodic tasks run next to the API server.
type Scheduler struct {
	cfg      config.JobsConfig
	feeds    FeedIngester
	enricher AbstractEnricher
	locker   Locker
	logger   *zerolog.Logger
}

// NewScheduler wires the periodic tasks. locker may be nil when a single
// replica runs.
func NewScheduler(cfg config.JobsConfig, ing FeedIngester, enricher AbstractEnricher, locker Locker, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, feeds: ing, enricher: enricher, locker: locker, logger: logger}
}

// Tasks returns the enabled tasks. A task with no work configured, or a zero
// interval, is left out.
func (s *Scheduler) Tasks() []worker.Task {
	var tasks []worker.Task

	if len(s.cfg.FeedURLs) > 0 && s.cfg.FeedPollInterval > 0 && s.feeds != nil {
		tasks = append(tasks, worker.Task{
			Name:     taskFeeds,
			Interval: s.cfg.FeedPollInterval,
			Timeout:  feedTimeout,
			Run:      s.PollFeeds,
		})
	}

	if s.cfg.EnrichInterval > 0 && s.enricher != nil {
		tasks = append(tasks, worker.Task{
			Name:     taskAbstracts,
			Interval: s.cfg.EnrichInterval,
			Timeout:  abstractTimeout,
			Run:      s.EnrichAbstracts,
		})
	}

	return tasks
}

// Run blocks running the enabled tasks until ctx is canceled. With nothing
// enabled it simply waits for cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	tasks := s.Tasks()
	if len(tasks) == 0 {
		s.logger.Info().Msg("no background jobs enabled")
		<-ctx.Done()

		return nil
	}

	err := worker.TickerLoop(ctx, worker.Config{
		Name:       "jobs",
		Tasks:      tasks,
		RunOnStart: true,
		Logger:     s.logger,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// PollFeeds ingests every configured feed. One failing feed does not stop
// the others; the joined errors are returned.
func (s *Scheduler) PollFeeds(ctx context.Context) error {
	var errs []error

	for _, url := range s.cfg.FeedURLs {
		if _, err := s.feeds.Ingest(ctx, url, "", false); err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", url, err))
		}
	}

	return errors.Join(errs...)
}

// EnrichAbstracts runs one enrichment batch, skipping it when another
// replica holds the job lock.
func (s *Scheduler) EnrichAbstracts(ctx context.Context) error {
	run := func(ctx context.Context) error {
		_, err := s.enricher.Enrich(ctx, s.cfg.EnrichBatch)
		return err
	}

	if s.locker == nil {
		return run(ctx)
	}

	err := s.locker.WithAdvisoryLock(ctx, db.LockEnrichAbstracts, run)
	if errors.Is(err, db.ErrLockHeld) {
		s.logger.Debug().Msg("abstract enrichment already running elsewhere")

		return nil
	}

	return err
}
