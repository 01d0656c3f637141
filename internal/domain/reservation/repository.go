package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByReference retrieves a booking by its human-readable reference.
	FindByReference(ctx context.Context, reference string) (*Booking, error)

	// FindOverlapping returns bookings in one of the blocking statuses whose
	// half-open [start, end) instant range intersects the candidate range.
	// excludeID keeps a booking from overlapping with itself while it is
	// being re-scheduled.
	FindOverlapping(ctx context.Context, excludeID uuid.UUID, start, end time.Time, statuses []Status) ([]*Booking, error)

	// ListAll retrieves bookings with pagination, optionally filtered by status.
	ListAll(ctx context.Context, status *Status, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// UpdateIfUnmodified persists changes with a compare-and-swap predicate:
	// the write only applies if the stored updated_at still equals
	// expectedVersion. Zero matched rows surface as a ConflictError.
	UpdateIfUnmodified(ctx context.Context, booking *Booking, expectedVersion time.Time) error
}

// HistoryRepository persists the append-only status audit trail.
type HistoryRepository interface {
	// Append stores one history entry.
	Append(ctx context.Context, entry StatusHistoryEntry) error

	// FindByBookingID returns a booking's history, oldest first.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]StatusHistoryEntry, error)
}
