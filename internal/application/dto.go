package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/venuelane/service-reservation/internal/domain/job"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
)

// BookingDTO is the API representation of a booking. The response token
// secret is never exposed here.
type BookingDTO struct {
	ID                       uuid.UUID             `json:"id"`
	Reference                string                `json:"reference"`
	CustomerName             string                `json:"customer_name"`
	CustomerEmail            string                `json:"customer_email"`
	Status                   string                `json:"status"`
	Schedule                 reservation.Schedule  `json:"schedule"`
	ProposedSchedule         *reservation.Schedule `json:"proposed_schedule,omitempty"`
	TokenExpiresAt           *time.Time            `json:"token_expires_at,omitempty"`
	HasDepositEvidence       bool                  `json:"has_deposit_evidence"`
	DepositVerifiedAt        *time.Time            `json:"deposit_verified_at,omitempty"`
	DepositVerifiedBy        *string               `json:"deposit_verified_by,omitempty"`
	DepositVerifiedElsewhere bool                  `json:"deposit_verified_elsewhere"`
	AdminNotes               string                `json:"admin_notes,omitempty"`
	LastResponse             string                `json:"last_response,omitempty"`
	CreatedAt                time.Time             `json:"created_at"`
	UpdatedAt                time.Time             `json:"updated_at"`
}

// HistoryEntryDTO is the API representation of one audit record.
type HistoryEntryDTO struct {
	ID             uuid.UUID `json:"id"`
	BookingID      uuid.UUID `json:"booking_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Actor          *string   `json:"actor,omitempty"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransitionRequest carries one transition attempt against a booking.
type TransitionRequest struct {
	RequestedStatus string `json:"requested_status" binding:"required"`
	Actor           string `json:"actor"`
	Reason          string `json:"reason"`
	AdminNotes      string `json:"admin_notes"`

	// VerifiedElsewhere marks a deposit confirmed through another channel
	// with no evidence file on record.
	VerifiedElsewhere bool `json:"verified_elsewhere"`

	// ConfirmWarnings acknowledges non-blocking warnings from a previous
	// attempt. Without it, a transition that raised warnings is not
	// committed.
	ConfirmWarnings bool `json:"confirm_warnings"`
}

// AmendDatesRequest carries an in-place schedule amendment for a confirmed
// booking.
type AmendDatesRequest struct {
	Schedule        reservation.Schedule `json:"schedule" binding:"required"`
	Actor           string               `json:"actor"`
	Reason          string               `json:"reason"`
	ConfirmWarnings bool                 `json:"confirm_warnings"`
}

// RespondRequest is the customer's token-gated response: deposit evidence
// and/or a renegotiation proposal.
type RespondRequest struct {
	Token            string                `json:"token" binding:"required"`
	EvidenceRef      string                `json:"evidence_ref"`
	Message          string                `json:"message"`
	ProposedSchedule *reservation.Schedule `json:"proposed_schedule"`
}

// TransitionResult is the outcome of a transition attempt. When warnings are
// present and unconfirmed, Committed is false and nothing was written.
type TransitionResult struct {
	Committed bool             `json:"committed"`
	Warnings  []string         `json:"warnings,omitempty"`
	Booking   *BookingDTO      `json:"booking,omitempty"`
	History   *HistoryEntryDTO `json:"history,omitempty"`
}

// RetryJobDTO is the admin representation of a retry job.
type RetryJobDTO struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Priority    int       `json:"priority"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	NextRunAt   time.Time `json:"next_run_at"`
	Status      string    `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatsDTO holds booking statistics for the admin dashboard.
type StatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

func toBookingDTO(bk *reservation.Booking) BookingDTO {
	return BookingDTO{
		ID:                       bk.ID(),
		Reference:                bk.Reference(),
		CustomerName:             bk.CustomerName(),
		CustomerEmail:            bk.CustomerEmail(),
		Status:                   string(bk.Status()),
		Schedule:                 bk.Schedule(),
		ProposedSchedule:         bk.ProposedSchedule(),
		TokenExpiresAt:           bk.TokenExpiresAt(),
		HasDepositEvidence:       bk.HasDepositEvidence(),
		DepositVerifiedAt:        bk.DepositVerifiedAt(),
		DepositVerifiedBy:        bk.DepositVerifiedBy(),
		DepositVerifiedElsewhere: bk.DepositVerifiedElsewhere(),
		AdminNotes:               bk.AdminNotes(),
		LastResponse:             bk.LastResponse(),
		CreatedAt:                bk.CreatedAt(),
		UpdatedAt:                bk.UpdatedAt(),
	}
}

func toHistoryDTO(e reservation.StatusHistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		ID:             e.ID,
		BookingID:      e.BookingID,
		PreviousStatus: string(e.PreviousStatus),
		NewStatus:      string(e.NewStatus),
		Actor:          e.Actor,
		Reason:         e.Reason,
		CreatedAt:      e.CreatedAt,
	}
}

func toRetryJobDTO(j *job.RetryJob) RetryJobDTO {
	return RetryJobDTO{
		ID:          j.ID,
		Type:        j.Type,
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
