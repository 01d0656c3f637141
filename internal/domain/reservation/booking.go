package reservation

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain"
)

const referenceChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for a venue reservation. It is created by the
// external intake flow in pending and mutated only through the transition
// orchestrator; updatedAt doubles as the optimistic-lock version and is
// bumped monotonically on every write.
type Booking struct {
	id        uuid.UUID
	reference string

	customerName  string
	customerEmail string

	status   Status
	schedule Schedule
	proposed *Schedule

	responseToken  *string
	tokenExpiresAt *time.Time

	depositEvidenceRef       *string
	depositVerifiedAt        *time.Time
	depositVerifiedBy        *string
	depositVerifiedElsewhere bool

	adminNotes   string
	lastResponse string

	createdAt time.Time
	updatedAt time.Time
}

// generateReference creates a booking reference in the format "RV-XXXXXX".
func generateReference() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking reference: %w", err)
		}
		result[i] = referenceChars[n.Int64()]
	}
	return "RV-" + string(result), nil
}

// NewBooking creates a new Booking aggregate in pending for the given
// customer and schedule.
func NewBooking(c *clock.Clock, customerName, customerEmail string, sched Schedule, notes string) (*Booking, error) {
	if customerName == "" {
		return nil, domain.NewValidationError("customer name is required")
	}
	if customerEmail == "" {
		return nil, domain.NewValidationError("customer email is required")
	}
	if err := sched.Validate(c); err != nil {
		return nil, err
	}

	reference, err := generateReference()
	if err != nil {
		return nil, err
	}

	now := c.Now()
	return &Booking{
		id:            uuid.New(),
		reference:     reference,
		customerName:  customerName,
		customerEmail: customerEmail,
		status:        StatusPending,
		schedule:      sched,
		adminNotes:    notes,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	reference string,
	customerName string,
	customerEmail string,
	status Status,
	sched Schedule,
	proposed *Schedule,
	responseToken *string,
	tokenExpiresAt *time.Time,
	depositEvidenceRef *string,
	depositVerifiedAt *time.Time,
	depositVerifiedBy *string,
	depositVerifiedElsewhere bool,
	adminNotes string,
	lastResponse string,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                       id,
		reference:                reference,
		customerName:             customerName,
		customerEmail:            customerEmail,
		status:                   status,
		schedule:                 sched,
		proposed:                 proposed,
		responseToken:            responseToken,
		tokenExpiresAt:           tokenExpiresAt,
		depositEvidenceRef:       depositEvidenceRef,
		depositVerifiedAt:        depositVerifiedAt,
		depositVerifiedBy:        depositVerifiedBy,
		depositVerifiedElsewhere: depositVerifiedElsewhere,
		adminNotes:               adminNotes,
		lastResponse:             lastResponse,
		createdAt:                createdAt,
		updatedAt:                updatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                  { return b.id }
func (b *Booking) Reference() string              { return b.reference }
func (b *Booking) CustomerName() string           { return b.customerName }
func (b *Booking) CustomerEmail() string          { return b.customerEmail }
func (b *Booking) Status() Status                 { return b.status }
func (b *Booking) Schedule() Schedule             { return b.schedule }
func (b *Booking) ProposedSchedule() *Schedule    { return b.proposed }
func (b *Booking) ResponseToken() *string         { return b.responseToken }
func (b *Booking) TokenExpiresAt() *time.Time     { return b.tokenExpiresAt }
func (b *Booking) DepositEvidenceRef() *string    { return b.depositEvidenceRef }
func (b *Booking) DepositVerifiedAt() *time.Time  { return b.depositVerifiedAt }
func (b *Booking) DepositVerifiedBy() *string     { return b.depositVerifiedBy }
func (b *Booking) DepositVerifiedElsewhere() bool { return b.depositVerifiedElsewhere }
func (b *Booking) AdminNotes() string             { return b.adminNotes }
func (b *Booking) LastResponse() string           { return b.lastResponse }
func (b *Booking) CreatedAt() time.Time           { return b.createdAt }

// UpdatedAt returns the last-updated instant. It is the optimistic-lock
// version: every mutating write is predicated on the value read.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// HasDepositEvidence reports whether a deposit evidence file is currently
// attached.
func (b *Booking) HasDepositEvidence() bool { return b.depositEvidenceRef != nil }

// StartsAt returns the absolute instant the reservation begins.
func (b *Booking) StartsAt(c *clock.Clock) (time.Time, error) {
	start, _, err := b.schedule.Interval(c)
	return start, err
}

// IsPast reports whether the reservation's end has already passed.
func (b *Booking) IsPast(c *clock.Clock) bool {
	_, end, err := b.schedule.Interval(c)
	if err != nil {
		return false
	}
	return c.IsPast(end)
}

// --- Behavior ---

// Accept transitions the booking from pending to pending_deposit and arms the
// response token the customer will use to submit deposit evidence.
func (b *Booking) Accept(token string, expiresAt, now time.Time) error {
	if b.status != StatusPending || !b.status.CanTransitionTo(StatusPendingDeposit) {
		return b.illegal(StatusPendingDeposit)
	}
	b.status = StatusPendingDeposit
	b.setToken(token, expiresAt)
	b.touch(now)
	return nil
}

// AttachDepositEvidence records the customer's uploaded evidence reference
// and free-text response. Only legal while a deposit is awaited.
func (b *Booking) AttachDepositEvidence(ref, response string, now time.Time) error {
	if b.status != StatusPendingDeposit {
		return domain.NewValidationError(fmt.Sprintf("cannot attach deposit evidence in status %s", b.status))
	}
	if ref == "" {
		return domain.NewValidationError("evidence reference is required")
	}
	b.depositEvidenceRef = &ref
	b.lastResponse = response
	b.touch(now)
	return nil
}

// ProposeSchedule records a renegotiation proposal from the customer without
// touching the committed schedule.
func (b *Booking) ProposeSchedule(c *clock.Clock, sched Schedule, now time.Time) error {
	if b.status.IsTerminal() {
		return domain.NewValidationError(fmt.Sprintf("cannot propose new dates in status %s", b.status))
	}
	if err := sched.Validate(c); err != nil {
		return err
	}
	b.proposed = &sched
	b.touch(now)
	return nil
}

// RejectDeposit keeps the booking in pending_deposit, detaches the uploaded
// evidence, and arms a fresh response token so the customer can submit again.
// The detached reference is returned for cleanup.
func (b *Booking) RejectDeposit(token string, expiresAt, now time.Time) (orphanedRef string, err error) {
	if b.status != StatusPendingDeposit {
		return "", b.illegal(StatusPendingDeposit)
	}
	if b.depositEvidenceRef == nil {
		return "", domain.NewValidationError("no deposit evidence to reject")
	}
	orphanedRef = *b.depositEvidenceRef
	b.depositEvidenceRef = nil
	b.setToken(token, expiresAt)
	b.touch(now)
	return orphanedRef, nil
}

// VerifyDeposit transitions the booking from pending_deposit to confirmed and
// consumes the response token. verifiedElsewhere marks deposits confirmed via
// another channel with no evidence file on record.
func (b *Booking) VerifyDeposit(verifiedBy string, verifiedElsewhere bool, now time.Time) error {
	if b.status != StatusPendingDeposit || !b.status.CanTransitionTo(StatusConfirmed) {
		return b.illegal(StatusConfirmed)
	}
	if !verifiedElsewhere && b.depositEvidenceRef == nil {
		return domain.NewValidationError("cannot verify a deposit without evidence unless verified via another channel")
	}
	at := now
	b.status = StatusConfirmed
	b.depositVerifiedAt = &at
	if verifiedBy != "" {
		b.depositVerifiedBy = &verifiedBy
	}
	b.depositVerifiedElsewhere = verifiedElsewhere
	b.clearToken()
	b.touch(now)
	return nil
}

// Cancel transitions the booking to cancelled, detaching any deposit
// evidence for cleanup and consuming the response token.
func (b *Booking) Cancel(now time.Time) (orphanedRef string, err error) {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return "", b.illegal(StatusCancelled)
	}
	if b.depositEvidenceRef != nil {
		orphanedRef = *b.depositEvidenceRef
		b.depositEvidenceRef = nil
	}
	b.status = StatusCancelled
	b.clearToken()
	b.touch(now)
	return orphanedRef, nil
}

// Finish transitions a confirmed booking whose date has passed to finished.
func (b *Booking) Finish(now time.Time) error {
	if b.status != StatusConfirmed || !b.status.CanTransitionTo(StatusFinished) {
		return b.illegal(StatusFinished)
	}
	b.status = StatusFinished
	b.clearToken()
	b.touch(now)
	return nil
}

// AmendSchedule replaces the committed schedule in place without a status
// change. Only confirmed bookings can be amended; the caller is responsible
// for the same overlap re-check a transition gets.
func (b *Booking) AmendSchedule(c *clock.Clock, sched Schedule, now time.Time) error {
	if b.status != StatusConfirmed {
		return domain.NewValidationError(fmt.Sprintf("cannot amend dates in status %s", b.status))
	}
	if err := sched.Validate(c); err != nil {
		return err
	}
	b.schedule = sched
	b.proposed = nil
	b.touch(now)
	return nil
}

// SetAdminNotes replaces the internal notes.
func (b *Booking) SetAdminNotes(notes string, now time.Time) {
	b.adminNotes = notes
	b.touch(now)
}

func (b *Booking) illegal(target Status) error {
	legal := b.status.LegalTargets()
	targets := make([]string, len(legal))
	for i, t := range legal {
		targets[i] = string(t)
	}
	return domain.NewIllegalTransitionError(string(b.status), string(target), targets)
}

// setToken arms the response token. Token and expiry are set together so a
// non-nil token always has a non-nil expiry.
func (b *Booking) setToken(token string, expiresAt time.Time) {
	b.responseToken = &token
	at := expiresAt
	b.tokenExpiresAt = &at
}

func (b *Booking) clearToken() {
	b.responseToken = nil
	b.tokenExpiresAt = nil
}

// touch bumps updatedAt monotonically. Two writes inside the same clock tick
// must still produce distinct versions for the compare-and-swap predicate.
func (b *Booking) touch(now time.Time) {
	if !now.After(b.updatedAt) {
		now = b.updatedAt.Add(time.Microsecond)
	}
	b.updatedAt = now
}
