// Package worker drains the durable retry queue: claimed jobs run through a
// per-type handler, failures back off, and exhausted jobs go dead for manual
// remediation.
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain/job"
	"github.com/venuelane/service-reservation/internal/platform/metrics"
)

// Handler executes one claimed job. A returned error records a failed attempt.
type Handler func(ctx context.Context, j *job.RetryJob) error

// Options shape the polling loop.
type Options struct {
	// Interval is the pause between polls when the last poll found work.
	Interval time.Duration
	// Burst is the maximum number of jobs claimed per poll.
	Burst int
	// IdleDelay is the pause after a poll that found nothing due.
	IdleDelay time.Duration
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	if o.IdleDelay <= 0 {
		o.IdleDelay = 30 * time.Second
	}
}

// Worker polls the retry queue and dispatches claimed jobs to handlers.
type Worker struct {
	jobs     job.Repository
	handlers map[string]Handler
	clock    *clock.Clock
	backoff  job.BackoffConfig
	rng      *rand.Rand
	opts     Options
	logger   *zap.Logger
}

// New creates a Worker with the given handler registry.
func New(jobs job.Repository, handlers map[string]Handler, c *clock.Clock, opts Options, logger *zap.Logger) *Worker {
	opts.applyDefaults()
	return &Worker{
		jobs:     jobs,
		handlers: handlers,
		clock:    c,
		backoff:  job.DefaultBackoff(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		opts:     opts,
		logger:   logger,
	}
}

// Run blocks, polling for due jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("retry worker started",
		zap.Duration("interval", w.opts.Interval),
		zap.Int("burst", w.opts.Burst))

	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("retry poll failed", zap.Error(err))
		}

		delay := w.opts.Interval
		if processed == 0 {
			delay = w.opts.IdleDelay
		}
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker stopping")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunOnce claims and processes one burst of due jobs, returning how many were
// claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	claimed, err := w.jobs.ClaimDue(ctx, w.opts.Burst)
	if err != nil {
		return 0, err
	}
	for _, j := range claimed {
		w.process(ctx, j)
	}
	return len(claimed), nil
}

func (w *Worker) process(ctx context.Context, j *job.RetryJob) {
	handler, ok := w.handlers[j.Type]
	if !ok {
		w.fail(ctx, j, fmt.Sprintf("no handler registered for job type %q", j.Type))
		return
	}

	if err := handler(ctx, j); err != nil {
		w.fail(ctx, j, err.Error())
		return
	}

	j.Succeed(w.clock.Now())
	if err := w.jobs.Update(ctx, j); err != nil {
		w.logger.Error("failed to mark job succeeded",
			zap.String("job_id", j.ID.String()),
			zap.Error(err))
		return
	}
	w.logger.Info("retry job succeeded",
		zap.String("job_id", j.ID.String()),
		zap.String("type", j.Type),
		zap.Int("attempts", j.Attempts))
}

func (w *Worker) fail(ctx context.Context, j *job.RetryJob, reason string) {
	j.Fail(reason, w.backoff, w.clock.Now(), w.rng)

	if j.Status == job.StatusDead {
		metrics.RetryJobsDeadTotal.Inc()
		w.logger.Error("retry job exhausted its attempts",
			zap.String("job_id", j.ID.String()),
			zap.String("type", j.Type),
			zap.Int("attempts", j.Attempts),
			zap.String("last_error", reason))
	} else {
		w.logger.Warn("retry job attempt failed",
			zap.String("job_id", j.ID.String()),
			zap.String("type", j.Type),
			zap.Int("attempts", j.Attempts),
			zap.Time("next_run_at", j.NextRunAt),
			zap.String("error", reason))
	}

	if err := w.jobs.Update(ctx, j); err != nil {
		w.logger.Error("failed to record job attempt",
			zap.String("job_id", j.ID.String()),
			zap.Error(err))
	}
}
