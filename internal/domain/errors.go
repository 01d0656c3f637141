package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError indicates malformed or inconsistent input: bad date
// ordering, an end time not after the start time on a single-day range, or a
// missing required field for the chosen action.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NotFoundError indicates that a booking or token does not resolve to any
// record. It is deliberately distinct from TokenExpiredError: the remediation
// for a missing link is different from an expired one.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given resource and identifier.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IllegalTransitionError indicates that the requested status is not reachable
// from the current status. It carries the list of actually-legal targets so
// the caller can re-present valid choices.
type IllegalTransitionError struct {
	From         string
	To           string
	LegalTargets []string
}

func (e *IllegalTransitionError) Error() string {
	if len(e.LegalTargets) == 0 {
		return fmt.Sprintf("illegal transition from %s to %s: no transitions are legal from %s", e.From, e.To, e.From)
	}
	return fmt.Sprintf("illegal transition from %s to %s: legal targets are %s", e.From, e.To, strings.Join(e.LegalTargets, ", "))
}

// NewIllegalTransitionError creates an IllegalTransitionError.
func NewIllegalTransitionError(from, to string, legalTargets []string) *IllegalTransitionError {
	return &IllegalTransitionError{From: from, To: to, LegalTargets: legalTargets}
}

// OverlapConflict identifies one existing booking that blocks a candidate
// date range.
type OverlapConflict struct {
	BookingID string `json:"booking_id"`
	Reference string `json:"reference"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

// OverlapError indicates that the candidate range intersects one or more
// bookings in a blocking status.
type OverlapError struct {
	Conflicts []OverlapConflict
}

func (e *OverlapError) Error() string {
	refs := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		refs[i] = c.Reference
	}
	return fmt.Sprintf("requested dates overlap existing bookings: %s", strings.Join(refs, ", "))
}

// NewOverlapError creates an OverlapError for the given conflicting bookings.
func NewOverlapError(conflicts []OverlapConflict) *OverlapError {
	return &OverlapError{Conflicts: conflicts}
}

// TokenExpiredError indicates a response token past its expiry plus the grace
// window. The token existed; the caller should request a new link.
type TokenExpiredError struct {
	BookingID string
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("response token for booking %s has expired", e.BookingID)
}

// NewTokenExpiredError creates a TokenExpiredError.
func NewTokenExpiredError(bookingID string) *TokenExpiredError {
	return &TokenExpiredError{BookingID: bookingID}
}

// ConflictError indicates an optimistic-lock conflict: the compare-and-swap
// predicate matched zero rows because another writer committed first. Callers
// must refetch and re-present, not blindly retry.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a ConflictError with the given message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// ForbiddenError indicates the caller is not allowed to act on the resource.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NewForbiddenError creates a ForbiddenError with the given message.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is an optimistic-lock ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
