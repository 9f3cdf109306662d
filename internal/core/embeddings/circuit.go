package embeddings

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// batchGate refuses embedding batches for a cooldown once too many batches in
// a row exhausted their retries. The first batch after the cooldown is a
// trial: one more failure closes the gate again immediately.
type batchGate struct {
	mu sync.Mutex

	maxFailedBatches int
	cooldown         time.Duration
	failedBatches    int
	closedUntil      time.Time
	trial            bool

	now    func() time.Time
	logger *zerolog.Logger
}

func newBatchGate(cfg CircuitBreakerConfig, logger *zerolog.Logger) *batchGate {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultCircuitThreshold
	}

	return &batchGate{
		maxFailedBatches: cfg.Threshold,
		cooldown:         cfg.ResetAfter,
		now:              time.Now,
		logger:           logger,
	}
}

// admit reports whether the next batch may reach the provider.
func (g *batchGate) admit() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closedUntil.IsZero() {
		return nil
	}

	if g.now().Before(g.closedUntil) {
		return fmt.Errorf("%w: embedding provider paused until %s",
			apperrors.ErrCircuitBreakerOpen, g.closedUntil.UTC().Format(time.RFC3339))
	}

	g.closedUntil = time.Time{}
	g.trial = true

	return nil
}

// succeeded clears the failure streak.
func (g *batchGate) succeeded() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failedBatches = 0
	g.trial = false
}

// failed counts a batch whose retries ran out.
func (g *batchGate) failed(provider ProviderName) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failedBatches++

	if !g.trial && g.failedBatches < g.maxFailedBatches {
		return
	}

	g.trial = false
	g.closedUntil = g.now().Add(g.cooldown)

	if g.logger != nil {
		g.logger.Warn().
			Str("provider", string(provider)).
			Int("failed_batches", g.failedBatches).
			Time("paused_until", g.closedUntil).
			Msg("pausing embedding calls, search and backfill will report embeddings unavailable")
	}
}
