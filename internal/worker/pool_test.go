package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPoolExecutesTasks(t *testing.T) {
	pool := NewPool(2, 8, zerolog.Nop())
	pool.Start()
	defer pool.Shutdown(context.Background())

	var done atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(context.Context) {
			done.Add(1)
		}))
	}

	require.Eventually(t, func() bool {
		return done.Load() == 5
	}, time.Second, 10*time.Millisecond)
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	// No workers started, so submissions accumulate in the queue.
	pool := NewPool(1, 2, zerolog.Nop())

	require.NoError(t, pool.Submit(func(context.Context) {}))
	require.NoError(t, pool.Submit(func(context.Context) {}))
	require.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrQueueFull)
	require.Equal(t, 2, pool.Depth())
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewPool(1, 2, zerolog.Nop())
	pool.Start()
	require.NoError(t, pool.Shutdown(context.Background()))

	require.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrPoolClosed)
}

func TestPoolRecoversFromPanics(t *testing.T) {
	pool := NewPool(1, 2, zerolog.Nop())
	pool.Start()
	defer pool.Shutdown(context.Background())

	var done atomic.Bool
	require.NoError(t, pool.Submit(func(context.Context) {
		panic("boom")
	}))
	require.NoError(t, pool.Submit(func(context.Context) {
		done.Store(true)
	}))

	require.Eventually(t, done.Load, time.Second, 10*time.Millisecond, "the worker must survive a panicking task")
}
