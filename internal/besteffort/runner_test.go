package besteffort

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRunner(cfg Config) *Runner {
	return NewRunner(Params{Log: zap.NewNop(), Config: cfg})
}

func TestRunnerRunsTasksAndCountsFailures(t *testing.T) {
	runner := newTestRunner(Config{QueueSize: 8, Workers: 2, TaskTimeout: time.Second})
	runner.Start()
	defer runner.Stop(context.Background())

	var ran atomic.Int32
	require.True(t, runner.Submit("ok", func(context.Context) error {
		ran.Add(1)
		return nil
	}))
	require.True(t, runner.Submit("boom", func(context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	}))
	require.True(t, runner.Submit("panic", func(context.Context) error {
		ran.Add(1)
		panic("unexpected")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Drain(ctx))

	assert.Equal(t, int32(3), ran.Load())
	assert.Equal(t, int64(2), runner.Failures())
}

func TestRunnerNeverBlocksWhenFull(t *testing.T) {
	runner := newTestRunner(Config{QueueSize: 1, Workers: 1, TaskTimeout: time.Second})

	// Not started: the single slot fills and the next submit is dropped.
	assert.True(t, runner.Submit("first", func(context.Context) error { return nil }))
	assert.False(t, runner.Submit("second", func(context.Context) error { return nil }))
	assert.Equal(t, int64(1), runner.Failures())

	runner.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(ctx))

	assert.False(t, runner.Submit("late", func(context.Context) error { return nil }))
	assert.Equal(t, int64(2), runner.Failures())
}

func TestRunnerAppliesTaskTimeout(t *testing.T) {
	runner := newTestRunner(Config{QueueSize: 1, Workers: 1, TaskTimeout: 20 * time.Millisecond})
	runner.Start()
	defer runner.Stop(context.Background())

	runner.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Drain(ctx))
	assert.Equal(t, int64(1), runner.Failures())
}
