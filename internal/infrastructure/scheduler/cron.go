package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"IncidentRadar/internal/ports"
)

// IntervalScheduler fires on wall-clock boundaries of a fixed interval.
// A tick that lands while the previous job is still running is skipped.
type IntervalScheduler struct {
	interval  time.Duration
	immediate bool
	logger    *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    sync.WaitGroup
	running atomic.Bool
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; immediate runs the job once at start.
func NewIntervalScheduler(interval time.Duration, immediate bool, logger *slog.Logger) *IntervalScheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IntervalScheduler{interval: interval, immediate: immediate, logger: logger}
}

func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	stop := make(chan struct{})
	s.stop = stop

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		if s.immediate {
			s.fire(job, time.Now())
		}

		timer := time.NewTimer(untilNextBoundary(time.Now(), s.interval))
		defer timer.Stop()
		for {
			select {
			case t := <-timer.C:
				s.fire(job, t)
				timer.Reset(untilNextBoundary(time.Now(), s.interval))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the timer goroutine and waits for an in-flight job.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.stop)
	s.stop = nil
	s.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		s.done.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *IntervalScheduler) fire(job func(time.Time), t time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still active, tick skipped", "tick", t)
		return
	}
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		defer s.running.Store(false)
		job(t)
	}()
}

func untilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now)
}
