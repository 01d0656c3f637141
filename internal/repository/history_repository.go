package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venuelane/service-reservation/internal/domain/reservation"
)

// StatusHistoryModel is the GORM model for the append-only status audit
// trail. Rows are never updated or deleted; they cascade only when the parent
// booking is administratively purged.
type StatusHistoryModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID      uuid.UUID `gorm:"type:uuid;index;not null"`
	PreviousStatus string    `gorm:"not null;size:30"`
	NewStatus      string    `gorm:"not null;size:30"`
	Actor          *string   `gorm:"size:200"`
	Reason         *string   `gorm:"size:1000"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (StatusHistoryModel) TableName() string {
	return "booking_status_history"
}

// GormHistoryRepository is the GORM-based implementation of HistoryRepository.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Append stores one history entry.
func (r *GormHistoryRepository) Append(ctx context.Context, entry reservation.StatusHistoryEntry) error {
	model := StatusHistoryModel{
		ID:             entry.ID,
		BookingID:      entry.BookingID,
		PreviousStatus: string(entry.PreviousStatus),
		NewStatus:      string(entry.NewStatus),
		Actor:          entry.Actor,
		Reason:         entry.Reason,
		CreatedAt:      entry.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// FindByBookingID returns a booking's history, oldest first.
func (r *GormHistoryRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]reservation.StatusHistoryEntry, error) {
	var models []StatusHistoryModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}

	entries := make([]reservation.StatusHistoryEntry, len(models))
	for i, m := range models {
		entries[i] = reservation.StatusHistoryEntry{
			ID:             m.ID,
			BookingID:      m.BookingID,
			PreviousStatus: reservation.Status(m.PreviousStatus),
			NewStatus:      reservation.Status(m.NewStatus),
			Actor:          m.Actor,
			Reason:         m.Reason,
			CreatedAt:      m.CreatedAt,
		}
	}
	return entries, nil
}
