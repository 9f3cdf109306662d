package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerLoop_RunsTasksUntilCanceled(t *testing.T) {
	var (
		fast     atomic.Int32
		failing  atomic.Int32
		panicker atomic.Int32
		disabled atomic.Int32
	)

	ctx, cancel := context.WithTimeout(context.Background(), 450*time.Millisecond)
	defer cancel()

	err := TickerLoop(ctx, Config{
		Name:       "test",
		RunOnStart: true,
		Tasks: []Task{
			{Name: "fast", Interval: 100 * time.Millisecond, Run: func(context.Context) error {
				fast.Add(1)
				return nil
			}},
			{Name: "failing", Interval: 100 * time.Millisecond, Run: func(context.Context) error {
				failing.Add(1)
				return errors.New("boom")
			}},
			{Name: "panicking", Interval: 100 * time.Millisecond, Run: func(context.Context) error {
				panicker.Add(1)
				panic("oops")
			}},
			{Name: "disabled", Interval: 0, Run: func(context.Context) error {
				disabled.Add(1)
				return nil
			}},
		},
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, fast.Load(), int32(2))
	assert.GreaterOrEqual(t, failing.Load(), int32(2), "errors do not stop the task")
	assert.GreaterOrEqual(t, panicker.Load(), int32(2), "panics do not stop the loop")
	assert.Zero(t, disabled.Load())
}

func TestTickerLoop_NoTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := TickerLoop(ctx, Config{Name: "empty"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}

func TestRunWithTimeout(t *testing.T) {
	err := RunWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = RunWithTimeout(context.Background(), 0, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok)

		return nil
	})
	require.NoError(t, err)
}
