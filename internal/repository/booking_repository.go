package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
)

// BookingModel is the GORM model for the bookings table. StartAt/EndAt are
// the derived absolute instants of the civil schedule, persisted so the
// overlap query runs in instant space; UpdatedAt is the optimistic-lock
// version column.
type BookingModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Reference     string    `gorm:"uniqueIndex;not null;size:20"`
	CustomerName  string    `gorm:"not null;size:200"`
	CustomerEmail string    `gorm:"not null;size:200;index"`
	Status        string    `gorm:"not null;size:30;index"`

	StartDate string  `gorm:"not null;size:10"`
	EndDate   *string `gorm:"size:10"`
	StartTime *string `gorm:"size:5"`
	EndTime   *string `gorm:"size:5"`

	StartAt time.Time `gorm:"not null;index"`
	EndAt   time.Time `gorm:"not null;index"`

	ProposedSchedule json.RawMessage `gorm:"type:jsonb"`

	ResponseToken  *string    `gorm:"size:64"`
	TokenExpiresAt *time.Time `gorm:""`

	DepositEvidenceRef       *string    `gorm:"size:500"`
	DepositVerifiedAt        *time.Time `gorm:""`
	DepositVerifiedBy        *string    `gorm:"size:200"`
	DepositVerifiedElsewhere bool       `gorm:"not null;default:false"`

	AdminNotes   string `gorm:"size:2000"`
	LastResponse string `gorm:"size:2000"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db    *gorm.DB
	clock *clock.Clock
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB, c *clock.Clock) *GormBookingRepository {
	return &GormBookingRepository{db: db, clock: c}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByReference retrieves a booking by its human-readable reference.
func (r *GormBookingRepository) FindByReference(ctx context.Context, reference string) (*reservation.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", reference)
		}
		return nil, fmt.Errorf("failed to find booking by reference: %w", err)
	}
	return toDomainBooking(&model)
}

// FindOverlapping returns bookings in the given statuses whose half-open
// [start_at, end_at) range intersects the candidate range. Touching
// endpoints do not overlap.
func (r *GormBookingRepository) FindOverlapping(ctx context.Context, excludeID uuid.UUID, start, end time.Time, statuses []reservation.Status) ([]*reservation.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("status IN ?", statusStrings).
		Where("start_at < ? AND end_at > ?", end, start).
		Order("start_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}

	bookings := make([]*reservation.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

// ListAll retrieves bookings with pagination, optionally filtered by status.
func (r *GormBookingRepository) ListAll(ctx context.Context, status *reservation.Status, page, limit int) ([]*reservation.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query.
		Order("start_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*reservation.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status.
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *reservation.Booking) error {
	model, err := r.toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// UpdateIfUnmodified persists changes with a compare-and-swap on updated_at.
// Zero matched rows means another writer committed first and surfaces as a
// typed conflict, never a silent overwrite.
func (r *GormBookingRepository) UpdateIfUnmodified(ctx context.Context, bk *reservation.Booking, expectedVersion time.Time) error {
	model, err := r.toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND updated_at = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                     model.Status,
			"start_date":                 model.StartDate,
			"end_date":                   model.EndDate,
			"start_time":                 model.StartTime,
			"end_time":                   model.EndTime,
			"start_at":                   model.StartAt,
			"end_at":                     model.EndAt,
			"proposed_schedule":          model.ProposedSchedule,
			"response_token":             model.ResponseToken,
			"token_expires_at":           model.TokenExpiresAt,
			"deposit_evidence_ref":       model.DepositEvidenceRef,
			"deposit_verified_at":        model.DepositVerifiedAt,
			"deposit_verified_by":        model.DepositVerifiedBy,
			"deposit_verified_elsewhere": model.DepositVerifiedElsewhere,
			"admin_notes":                model.AdminNotes,
			"last_response":              model.LastResponse,
			"updated_at":                 model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another request; refetch and retry")
	}
	return nil
}

// --- Conversion Helpers ---

func (r *GormBookingRepository) toBookingModel(bk *reservation.Booking) (*BookingModel, error) {
	sched := bk.Schedule()
	startAt, endAt, err := sched.Interval(r.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to derive booking interval: %w", err)
	}

	var proposedJSON json.RawMessage
	if bk.ProposedSchedule() != nil {
		data, err := json.Marshal(bk.ProposedSchedule())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal proposed schedule: %w", err)
		}
		proposedJSON = data
	}

	return &BookingModel{
		ID:                       bk.ID(),
		Reference:                bk.Reference(),
		CustomerName:             bk.CustomerName(),
		CustomerEmail:            bk.CustomerEmail(),
		Status:                   string(bk.Status()),
		StartDate:                sched.StartDate,
		EndDate:                  optional(sched.EndDate),
		StartTime:                optional(sched.StartTime),
		EndTime:                  optional(sched.EndTime),
		StartAt:                  startAt,
		EndAt:                    endAt,
		ProposedSchedule:         proposedJSON,
		ResponseToken:            bk.ResponseToken(),
		TokenExpiresAt:           bk.TokenExpiresAt(),
		DepositEvidenceRef:       bk.DepositEvidenceRef(),
		DepositVerifiedAt:        bk.DepositVerifiedAt(),
		DepositVerifiedBy:        bk.DepositVerifiedBy(),
		DepositVerifiedElsewhere: bk.DepositVerifiedElsewhere(),
		AdminNotes:               bk.AdminNotes(),
		LastResponse:             bk.LastResponse(),
		CreatedAt:                bk.CreatedAt(),
		UpdatedAt:                bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*reservation.Booking, error) {
	status, err := reservation.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}

	sched := reservation.Schedule{
		StartDate: m.StartDate,
		EndDate:   deref(m.EndDate),
		StartTime: deref(m.StartTime),
		EndTime:   deref(m.EndTime),
	}

	var proposed *reservation.Schedule
	if len(m.ProposedSchedule) > 0 {
		var p reservation.Schedule
		if err := json.Unmarshal(m.ProposedSchedule, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposed schedule: %w", err)
		}
		proposed = &p
	}

	return reservation.Reconstruct(
		m.ID,
		m.Reference,
		m.CustomerName,
		m.CustomerEmail,
		status,
		sched,
		proposed,
		m.ResponseToken,
		m.TokenExpiresAt,
		m.DepositEvidenceRef,
		m.DepositVerifiedAt,
		m.DepositVerifiedBy,
		m.DepositVerifiedElsewhere,
		m.AdminNotes,
		m.LastResponse,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
