package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/job"
)

// claimLease is how far a claimed job's next_run_at is pushed so a crashed
// worker's claim expires and the job becomes due again.
const claimLease = 2 * time.Minute

// RetryJobModel is the GORM model for the retry_jobs table. The persisted
// shape is the contract between producers and workers.
type RetryJobModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Type        string          `gorm:"not null;size:100;index"`
	Payload     json.RawMessage `gorm:"type:jsonb;not null"`
	Priority    int             `gorm:"not null;default:0;index"`
	Attempts    int             `gorm:"not null;default:0"`
	MaxAttempts int             `gorm:"not null"`
	NextRunAt   time.Time       `gorm:"not null;index"`
	Status      string          `gorm:"not null;size:20;index"`
	LastError   string          `gorm:"size:1000"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RetryJobModel) TableName() string {
	return "retry_jobs"
}

// GormRetryJobRepository is the GORM-based implementation of job.Repository.
type GormRetryJobRepository struct {
	db *gorm.DB
}

// NewGormRetryJobRepository creates a new GormRetryJobRepository.
func NewGormRetryJobRepository(db *gorm.DB) *GormRetryJobRepository {
	return &GormRetryJobRepository{db: db}
}

// Save persists a new job.
func (r *GormRetryJobRepository) Save(ctx context.Context, j *job.RetryJob) error {
	model := toJobModel(j)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save retry job: %w", err)
	}
	return nil
}

// ClaimDue claims up to limit due pending jobs inside one transaction,
// ordered by priority then earliest next_run_at. SKIP LOCKED keeps
// concurrent workers from claiming the same rows; the lease push keeps a
// claim from being re-delivered while the worker holds it.
func (r *GormRetryJobRepository) ClaimDue(ctx context.Context, limit int) ([]*job.RetryJob, error) {
	var claimed []*job.RetryJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var models []RetryJobModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_run_at <= ?", string(job.StatusPending), now).
			Order("priority ASC, next_run_at ASC").
			Limit(limit).
			Find(&models).Error; err != nil {
			return fmt.Errorf("failed to select due jobs: %w", err)
		}
		if len(models) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(models))
		for i, m := range models {
			ids[i] = m.ID
		}
		if err := tx.Model(&RetryJobModel{}).
			Where("id IN ?", ids).
			Update("next_run_at", now.Add(claimLease)).Error; err != nil {
			return fmt.Errorf("failed to lease claimed jobs: %w", err)
		}

		claimed = make([]*job.RetryJob, len(models))
		for i, m := range models {
			claimed[i] = toDomainJob(&m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update persists the outcome of an attempt.
func (r *GormRetryJobRepository) Update(ctx context.Context, j *job.RetryJob) error {
	model := toJobModel(j)
	result := r.db.WithContext(ctx).
		Model(&RetryJobModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"attempts":    model.Attempts,
			"next_run_at": model.NextRunAt,
			"status":      model.Status,
			"last_error":  model.LastError,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update retry job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("retry job", j.ID.String())
	}
	return nil
}

// ListDead returns dead jobs for manual remediation, newest first.
func (r *GormRetryJobRepository) ListDead(ctx context.Context, page, limit int) ([]*job.RetryJob, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RetryJobModel{}).
		Where("status = ?", string(job.StatusDead)).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count dead jobs: %w", err)
	}

	var models []RetryJobModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(job.StatusDead)).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list dead jobs: %w", err)
	}

	jobs := make([]*job.RetryJob, len(models))
	for i, m := range models {
		jobs[i] = toDomainJob(&m)
	}
	return jobs, total, nil
}

// Requeue resets a dead job to pending with a fresh attempt budget.
func (r *GormRetryJobRepository) Requeue(ctx context.Context, id uuid.UUID) (*job.RetryJob, error) {
	var model RetryJobModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("retry job", id.String())
			}
			return fmt.Errorf("failed to load retry job: %w", err)
		}
		if model.Status != string(job.StatusDead) {
			return domain.NewValidationError(fmt.Sprintf("only dead jobs can be requeued, job is %s", model.Status))
		}

		now := time.Now().UTC()
		model.Status = string(job.StatusPending)
		model.Attempts = 0
		model.NextRunAt = now
		model.LastError = ""
		model.UpdatedAt = now
		return tx.Save(&model).Error
	})
	if err != nil {
		return nil, err
	}
	return toDomainJob(&model), nil
}

// --- Conversion Helpers ---

func toJobModel(j *job.RetryJob) *RetryJobModel {
	return &RetryJobModel{
		ID:          j.ID,
		Type:        j.Type,
		Payload:     j.Payload,
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		NextRunAt:   j.NextRunAt,
		Status:      string(j.Status),
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func toDomainJob(m *RetryJobModel) *job.RetryJob {
	return &job.RetryJob{
		ID:          m.ID,
		Type:        m.Type,
		Payload:     m.Payload,
		Priority:    m.Priority,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		NextRunAt:   m.NextRunAt,
		Status:      job.JobStatus(m.Status),
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
