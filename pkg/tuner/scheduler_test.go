package tuner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

func TestNewSchedulerInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		_, err := NewScheduler(d, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
}

func TestSchedulerTicks(t *testing.T) {
	busy := semaphore.NewWeighted(1)
	s, err := NewScheduler(5*time.Millisecond, busy, nil)
	require.NoError(t, err)

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.Run(ctx, func(context.Context) { ticks.Add(1) })
	}()

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
	require.NoError(t, busy.Acquire(context.Background(), 1))

	stopped := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load(), "no ticks after cancellation")
}

func TestSchedulerDropsOverlappingTicks(t *testing.T) {
	s, err := NewScheduler(2*time.Millisecond, nil, nil)
	require.NoError(t, err)

	var inFlight, maxInFlight atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, func(context.Context) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
	})

	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.Ticks >= 3 && st.Dropped >= 3
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSchedulersShareBusy(t *testing.T) {
	busy := semaphore.NewWeighted(1)
	require.True(t, busy.TryAcquire(1))

	s, err := NewScheduler(time.Millisecond, busy, nil)
	require.NoError(t, err)

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, func(context.Context) { ticks.Add(1) })

	require.Eventually(t, func() bool { return s.Stats().Dropped >= 3 }, time.Second, time.Millisecond)
	assert.Zero(t, ticks.Load())

	busy.Release(1)
	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)
}
