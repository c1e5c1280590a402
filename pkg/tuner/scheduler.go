package tuner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrInvalidInterval = errors.New("update interval must be positive")

/*
 * Stats counts scheduler and gate outcomes over the lifetime of an engine.
 */
type Stats struct {
	Ticks      uint64 // Ticks that ran the estimator.
	Dropped    uint64 // Ticks skipped because the previous one was still running.
	Suppressed uint64 // Ticks at or below the clarity threshold.
	Emitted    uint64 // Notes delivered to the subscriber.
	Failed     uint64 // Ticks that ended in an estimator or mapping error.
	Discarded  uint64 // Results thrown away because the session had stopped.
}

type counters struct {
	ticks      atomic.Uint64
	dropped    atomic.Uint64
	suppressed atomic.Uint64
	emitted    atomic.Uint64
	failed     atomic.Uint64
	discarded  atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Ticks:      c.ticks.Load(),
		Dropped:    c.dropped.Load(),
		Suppressed: c.suppressed.Load(),
		Emitted:    c.emitted.Load(),
		Failed:     c.failed.Load(),
		Discarded:  c.discarded.Load(),
	}
}

/*
 * Scheduler runs a detection tick on a fixed wall-clock interval, independent
 * of the audio callback.
 *
 * At most one tick holding busy runs at any time. A tick that comes due while
 * the previous one is still running is dropped, not queued.
 */
type Scheduler struct {
	interval time.Duration
	busy     *semaphore.Weighted
	log      *zap.Logger
	counters *counters
}

/*
 * NewScheduler creates a scheduler. Schedulers sharing busy never run ticks
 * concurrently with each other. A nil busy gets a private semaphore.
 */
func NewScheduler(interval time.Duration, busy *semaphore.Weighted, log *zap.Logger) (*Scheduler, error) {
	return newScheduler(interval, busy, log, &counters{})
}

func newScheduler(interval time.Duration, busy *semaphore.Weighted, log *zap.Logger, c *counters) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%s: %w", interval, ErrInvalidInterval)
	}

	if busy == nil {
		busy = semaphore.NewWeighted(1)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Scheduler{
		interval: interval,
		busy:     busy,
		log:      log,
		counters: c,
	}, nil
}

/*
 * Stats returns the scheduler counters. Only Ticks and Dropped are maintained
 * by the scheduler itself.
 */
func (s *Scheduler) Stats() Stats {
	return s.counters.snapshot()
}

/*
 * Run fires tick every interval until ctx is done. Each tick runs on its own
 * goroutine and receives ctx so it can discard its result once the run is
 * cancelled. Run returns as soon as ctx is done without waiting for a tick in
 * flight.
 */
func (s *Scheduler) Run(ctx context.Context, tick func(ctx context.Context)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ctx.Err() != nil {
			return
		}

		if !s.busy.TryAcquire(1) {
			s.counters.dropped.Add(1)
			s.log.Debug("dropping tick, detection still running")
			continue
		}

		s.counters.ticks.Add(1)

		go func() {
			defer s.busy.Release(1)
			tick(ctx)
		}()
	}
}
