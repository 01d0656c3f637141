// Package job models the durable retry queue: best-effort side-effect work
// (deleting an orphaned evidence file, re-sending a notification) that must
// never abort the booking transition that produced it.
package job

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the terminal-state marker of a retry job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusSucceeded JobStatus = "succeeded"
	// StatusDead marks a job that exhausted its attempts. Dead jobs are never
	// retried automatically and stay visible for manual remediation.
	StatusDead JobStatus = "dead"
)

// Job types known to the worker.
const (
	TypeDeleteOrphanedBlob = "delete-orphaned-blob"
	TypeResendNotification = "resend-notification"
)

// DefaultMaxAttempts bounds retries for cleanup work.
const DefaultMaxAttempts = 5

// BackoffConfig shapes the retry delay between attempts.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultBackoff returns the standard backoff shape.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		BaseDelay: 30 * time.Second,
		MaxDelay:  30 * time.Minute,
	}
}

// RetryJob is one durable unit of deferred work. Lower priority runs first.
type RetryJob struct {
	ID          uuid.UUID
	Type        string
	Payload     json.RawMessage
	Priority    int
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	Status      JobStatus
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a pending retry job eligible to run immediately.
func New(jobType string, payload json.RawMessage, priority, maxAttempts int, now time.Time) *RetryJob {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RetryJob{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payload,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		NextRunAt:   now,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Succeed marks the job done.
func (j *RetryJob) Succeed(now time.Time) {
	j.Status = StatusSucceeded
	j.UpdatedAt = now
}

// Fail records a failed attempt. While attempts remain the job stays pending
// with a backoff-computed NextRunAt; once MaxAttempts is reached it goes dead.
func (j *RetryJob) Fail(reason string, cfg BackoffConfig, now time.Time, rng *rand.Rand) {
	j.Attempts++
	j.LastError = reason
	j.UpdatedAt = now
	if j.Attempts >= j.MaxAttempts {
		j.Status = StatusDead
		return
	}
	j.NextRunAt = NextRetryAt(now, j.Attempts, cfg, rng)
}

// NextRetryAt computes the next eligible run using exponential backoff with
// equal jitter. attempt is 1-based (1 => up to BaseDelay).
func NextRetryAt(now time.Time, attempt int, cfg BackoffConfig, rng *rand.Rand) time.Time {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Minute
	}

	delay := cfg.BaseDelay << (attempt - 1)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}

	// equal jitter: delay/2 guaranteed plus random in [0, delay/2], so the
	// floor still doubles with each attempt
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	half := delay / 2
	jitter := half + time.Duration(rng.Int63n(int64(half)+1))

	return now.Add(jitter).UTC()
}
