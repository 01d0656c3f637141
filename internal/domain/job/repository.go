package job

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists retry jobs. Workers and producers agree on the
// persisted shape; jobs are delivered at least once.
type Repository interface {
	// Save persists a new job.
	Save(ctx context.Context, j *RetryJob) error

	// ClaimDue atomically claims up to limit due pending jobs, ordered by
	// priority (lower first) then earliest NextRunAt. Claimed jobs are pushed
	// past the horizon so concurrent workers do not pick them up twice.
	ClaimDue(ctx context.Context, limit int) ([]*RetryJob, error)

	// Update persists the outcome of an attempt.
	Update(ctx context.Context, j *RetryJob) error

	// ListDead returns dead jobs for manual remediation, newest first.
	ListDead(ctx context.Context, page, limit int) ([]*RetryJob, int64, error)

	// Requeue resets a dead job to pending with a fresh attempt budget.
	Requeue(ctx context.Context, id uuid.UUID) (*RetryJob, error)
}
