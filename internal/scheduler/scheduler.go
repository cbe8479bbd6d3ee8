// Package scheduler drives the asynchronous half of the pipeline: on a fixed
// cadence it finds submissions whose poll time has elapsed and fans their
// polls out to the orchestrator with bounded concurrency.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"refiler/internal/platform/redis"
	"refiler/internal/submission"
)

// Poller is the slice of the orchestrator the scheduler needs.
type Poller interface {
	DuePolls(ctx context.Context, now time.Time, limit int) ([]*submission.FilingSubmission, error)
	Poll(ctx context.Context, sub *submission.FilingSubmission) error
}

// Scheduler ticks at a fixed interval and polls due submissions. When a redis
// lock is configured, only one replica runs each sweep.
type Scheduler struct {
	poller      Poller
	logger      *slog.Logger
	lock        *redis.Lock
	interval    time.Duration
	concurrency int
	batchSize   int
	pollTimeout time.Duration
	clock       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLock makes sweeps mutually exclusive across replicas.
func WithLock(lock *redis.Lock) Option {
	return func(s *Scheduler) { s.lock = lock }
}

// WithClock injects a clock for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBatchSize caps how many submissions one sweep picks up.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithPollTimeout bounds each poll's wall-clock time. A stalled gateway
// connection otherwise holds one of the sweep's concurrency slots forever;
// the deadline is carried on the poll's context and tears the transport down.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// New builds a scheduler. Concurrency bounds how many submissions are polled
// in parallel within one sweep.
func New(poller Poller, logger *slog.Logger, interval time.Duration, concurrency int, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	s := &Scheduler{
		poller:      poller,
		logger:      logger,
		interval:    interval,
		concurrency: concurrency,
		batchSize:   100,
		pollTimeout: 2 * time.Minute,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps until ctx is cancelled. It always returns ctx.Err(); individual
// poll failures are logged and recorded on the submission, never fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one scheduling pass: acquire the lock if configured, collect due
// submissions, poll them with bounded concurrency.
func (s *Scheduler) Sweep(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "poll lock unavailable", "error", err)
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.logger.WarnContext(ctx, "poll lock release failed", "error", err)
			}
		}()
	}

	due, err := s.poller.DuePolls(ctx, s.clock(), s.batchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "listing due polls failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.InfoContext(ctx, "polling due submissions", "count", len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sub := range due {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, s.pollTimeout)
			defer cancel()
			if err := s.poller.Poll(pctx, sub); err != nil {
				s.logger.WarnContext(pctx, "poll failed",
					"submission_id", sub.ID, "report_id", sub.ReportID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
