// Package worker runs the background tasks of the serve command: each task
// fires on its own ticker until the context is canceled. A failing or
// panicking task is logged and retried on its next tick.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// pollInterval is the sleep between ticker checks.
	pollInterval   = 100 * time.Millisecond
	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// Task is a job triggered by a ticker.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run; zero means no bound beyond the loop context.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Config configures a ticker loop.
type Config struct {
	// Name identifies the loop in logs.
	Name  string
	Tasks []Task
	// RunOnStart runs every task once before the first tick.
	RunOnStart bool
	Logger     *zerolog.Logger
}

// TickerLoop runs each task with a positive interval on its own ticker.
// It blocks until ctx is canceled and returns the wrapped context error.
func TickerLoop(ctx context.Context, cfg Config) error {
	logger := getLogger(cfg.Logger)
	logger.Info().Str(logFieldWorker, cfg.Name).Int("tasks", len(cfg.Tasks)).Msg("starting ticker loop")

	defer func() {
		logger.Info().Str(logFieldWorker, cfg.Name).Msg("ticker loop stopped")
	}()

	tickers := createTickers(cfg.Tasks)
	defer stopTickers(tickers)

	if cfg.RunOnStart {
		for i, task := range cfg.Tasks {
			if tickers[i] != nil {
				runTask(ctx, task, logger)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
		default:
		}

		checkAndRunTasks(ctx, cfg.Tasks, tickers, logger)

		if err := Wait(ctx, pollInterval); err != nil {
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, err)
		}
	}
}

func createTickers(tasks []Task) []*time.Ticker {
	tickers := make([]*time.Ticker, len(tasks))

	for i, task := range tasks {
		if task.Interval > 0 && task.Run != nil {
			tickers[i] = time.NewTicker(task.Interval)
		}
	}

	return tickers
}

func stopTickers(tickers []*time.Ticker) {
	for _, t := range tickers {
		if t != nil {
			t.Stop()
		}
	}
}

// checkAndRunTasks runs every task whose ticker has fired, without blocking.
func checkAndRunTasks(ctx context.Context, tasks []Task, tickers []*time.Ticker, logger *zerolog.Logger) {
	for i, task := range tasks {
		if tickers[i] == nil {
			continue
		}

		select {
		case <-tickers[i].C:
			runTask(ctx, task, logger)
		default:
		}
	}
}

func runTask(ctx context.Context, task Task, logger *zerolog.Logger) {
	defer RecoverPanic(logger, task.Name)

	start := time.Now()

	err := RunWithTimeout(ctx, task.Timeout, task.Run)
	if err != nil {
		logger.Error().Err(err).Str(logFieldTask, task.Name).Msg("task failed")

		return
	}

	logger.Debug().Str(logFieldTask, task.Name).Dur("took", time.Since(start)).Msg("task finished")
}

// Wait blocks until d elapses or ctx is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RunWithTimeout runs fn with a context that expires after timeout.
// A non-positive timeout runs fn with ctx unchanged.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}

func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
