package reservation

import (
	"time"

	"github.com/google/uuid"
)

// StatusHistoryEntry is an append-only audit record written exactly once per
// successful transition. Actor is nil for system-initiated transitions.
type StatusHistoryEntry struct {
	ID             uuid.UUID `json:"id"`
	BookingID      uuid.UUID `json:"booking_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Actor          *string   `json:"actor,omitempty"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewHistoryEntry creates a history record for one transition. Empty actor
// and reason strings become nulls.
func NewHistoryEntry(bookingID uuid.UUID, previous, next Status, actor, reason string, at time.Time) StatusHistoryEntry {
	entry := StatusHistoryEntry{
		ID:             uuid.New(),
		BookingID:      bookingID,
		PreviousStatus: previous,
		NewStatus:      next,
		CreatedAt:      at,
	}
	if actor != "" {
		entry.Actor = &actor
	}
	if reason != "" {
		entry.Reason = &reason
	}
	return entry
}
