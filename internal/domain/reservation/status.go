package reservation

import (
	"fmt"

	"github.com/venuelane/service-reservation/internal/domain"
)

// Status represents the current state of a booking in its lifecycle.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingDeposit Status = "pending_deposit"
	StatusPaidDeposit    Status = "paid_deposit"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusFinished       Status = "finished"
)

// validTransitions is the authoritative state machine for booking status
// transitions. Requesting the same status as the current one is only legal
// for pending_deposit (explicit reject-and-re-request semantics); every other
// no-op request is illegal. paid_deposit exists only so legacy rows still
// parse; it has no outbound transitions.
var validTransitions = map[Status][]Status{
	StatusPending:        {StatusPendingDeposit, StatusCancelled},
	StatusPendingDeposit: {StatusPendingDeposit, StatusConfirmed, StatusCancelled},
	StatusPaidDeposit:    {},
	StatusConfirmed:      {StatusCancelled, StatusFinished},
	StatusCancelled:      {},
	StatusFinished:       {},
}

// IsValid returns true if the status is a recognized booking status.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target
// is allowed by the transition table.
func (s Status) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// LegalTargets returns the statuses reachable from this status, in table order.
func (s Status) LegalTargets() []Status {
	allowed := validTransitions[s]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal returns true if no further transitions are possible from this
// status. A finished booking can never be reopened.
func (s Status) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// IsBlocking returns true if bookings in this status participate in overlap
// checks against new or re-scheduled bookings. Cancelled and finished
// bookings never block.
func (s Status) IsBlocking() bool {
	return s == StatusConfirmed
}

// BlockingStatuses is the default set of statuses considered by the overlap
// detector.
func BlockingStatuses() []Status {
	return []Status{StatusConfirmed}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning a validation error if
// invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid booking status: %s", s))
	}
	return status, nil
}
