// Package application hosts the transition orchestrator: the single write
// path for booking state. Every status change funnels through
// RequestTransition so legality, overlap, token, and concurrency checks can
// never be bypassed by a handler.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/job"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
	"github.com/venuelane/service-reservation/internal/platform/metrics"
	"github.com/venuelane/service-reservation/internal/storage"
)

// Notifier dispatches lifecycle events to interested parties. Implementations
// must treat delivery as best effort; the orchestrator never fails a committed
// transition over a notification error.
type Notifier interface {
	Notify(ctx context.Context, eventType string, bk *reservation.Booking) error
}

// Event types dispatched by the orchestrator.
const (
	EventBookingRequested   = "reservation.booking.requested"
	EventBookingAccepted    = "reservation.booking.accepted"
	EventDepositSubmitted   = "reservation.deposit.submitted"
	EventDepositRejected    = "reservation.deposit.rejected"
	EventBookingConfirmed   = "reservation.booking.confirmed"
	EventBookingCancelled   = "reservation.booking.cancelled"
	EventBookingFinished    = "reservation.booking.finished"
	EventBookingRescheduled = "reservation.booking.rescheduled"
)

// deleteBlobPayload is the payload for delete-orphaned-blob retry jobs.
type deleteBlobPayload struct {
	BookingID   uuid.UUID `json:"booking_id"`
	EvidenceRef string    `json:"evidence_ref"`
}

// resendNotificationPayload is the payload for resend-notification retry jobs.
type resendNotificationPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	EventType string    `json:"event_type"`
}

// Retry-job priorities. Lower runs first; blob cleanup frees storage and is
// ordered ahead of notification redelivery.
const (
	priorityCleanup      = 1
	priorityNotification = 5
)

// ReservationService orchestrates booking transitions against the repositories
// and collaborators.
type ReservationService struct {
	bookings   reservation.BookingRepository
	history    reservation.HistoryRepository
	jobs       job.Repository
	blobs      storage.BlobStore
	notifier   Notifier
	clock      *clock.Clock
	tokenGrace time.Duration
	backoff    job.BackoffConfig
	rng        *rand.Rand
	logger     *zap.Logger
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	bookings reservation.BookingRepository,
	history reservation.HistoryRepository,
	jobs job.Repository,
	blobs storage.BlobStore,
	notifier Notifier,
	c *clock.Clock,
	tokenGrace time.Duration,
	logger *zap.Logger,
) *ReservationService {
	if tokenGrace <= 0 {
		tokenGrace = reservation.DefaultTokenGrace
	}
	return &ReservationService{
		bookings:   bookings,
		history:    history,
		jobs:       jobs,
		blobs:      blobs,
		notifier:   notifier,
		clock:      c,
		tokenGrace: tokenGrace,
		backoff:    job.DefaultBackoff(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
}

// CreateBooking creates a new pending booking. Used by the intake consumer
// and the intake endpoint.
func (s *ReservationService) CreateBooking(ctx context.Context, customerName, customerEmail string, sched reservation.Schedule, notes string) (*BookingDTO, error) {
	bk, err := reservation.NewBooking(s.clock, customerName, customerEmail, sched, notes)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.Save(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("reference", bk.Reference()))
	s.notify(ctx, EventBookingRequested, bk)

	dto := toBookingDTO(bk)
	return &dto, nil
}

// GetBooking returns one booking by ID.
func (s *ReservationService) GetBooking(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toBookingDTO(bk)
	return &dto, nil
}

// GetBookingByReference returns one booking by its human-readable reference.
func (s *ReservationService) GetBookingByReference(ctx context.Context, reference string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	dto := toBookingDTO(bk)
	return &dto, nil
}

// ListBookings returns bookings with pagination, optionally filtered by
// status.
func (s *ReservationService) ListBookings(ctx context.Context, statusFilter string, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var status *reservation.Status
	if statusFilter != "" {
		parsed, err := reservation.ParseStatus(statusFilter)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}

	bookings, total, err := s.bookings.ListAll(ctx, status, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetStats returns booking counts for the admin dashboard.
func (s *ReservationService) GetStats(ctx context.Context) (*StatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &StatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// GetHistory returns a booking's status audit trail, oldest first.
func (s *ReservationService) GetHistory(ctx context.Context, bookingID uuid.UUID) ([]HistoryEntryDTO, error) {
	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return nil, err
	}
	entries, err := s.history.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toHistoryDTO(e)
	}
	return dtos, nil
}

// GetAvailableActions returns the actions legal for the booking right now.
// A booking in a terminal or legacy status gets an empty list, never an error.
func (s *ReservationService) GetAvailableActions(ctx context.Context, bookingID uuid.UUID) ([]reservation.ActionDefinition, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	actions := reservation.AvailableActions(bk.Status(), bk.HasDepositEvidence(), bk.IsPast(s.clock))
	if actions == nil {
		actions = []reservation.ActionDefinition{}
	}
	return actions, nil
}

// RequestTransition attempts to move a booking to the requested status.
//
// The pipeline is: resolve the action from the live state machine, run the
// validators (overlap, past-date warnings), re-run them immediately before
// commit, apply the aggregate mutation, commit with a compare-and-swap on the
// version read at load, then append history and fire the side effects. On a
// version conflict the whole request fails; the caller refetches and retries.
func (s *ReservationService) RequestTransition(ctx context.Context, bookingID uuid.UUID, req TransitionRequest) (*TransitionResult, error) {
	timer := time.Now()
	defer func() {
		metrics.TransitionDuration.Observe(time.Since(timer).Seconds())
	}()

	target, err := reservation.ParseStatus(req.RequestedStatus)
	if err != nil {
		return nil, err
	}

	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	expectedVersion := bk.UpdatedAt()
	previousStatus := bk.Status()

	action, ok := reservation.ActionForTarget(bk.Status(), bk.HasDepositEvidence(), bk.IsPast(s.clock), target)
	if !ok {
		metrics.IllegalTransitionsTotal.Inc()
		return nil, s.illegalTransition(bk, target)
	}

	warnings, err := s.checkConstraints(ctx, bk, action, bk.Schedule())
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 && !req.ConfirmWarnings {
		return &TransitionResult{Committed: false, Warnings: warnings}, nil
	}

	// Second pass right before commit. The window between load and commit is
	// long enough for another booking to be confirmed into the same slot.
	if _, err := s.checkConstraints(ctx, bk, action, bk.Schedule()); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	orphanedRef, err := s.applyAction(bk, action, req, now)
	if err != nil {
		return nil, err
	}
	if req.AdminNotes != "" {
		bk.SetAdminNotes(req.AdminNotes, now)
	}

	if err := s.bookings.UpdateIfUnmodified(ctx, bk, expectedVersion); err != nil {
		if domain.IsConflict(err) {
			metrics.LockConflictsTotal.Inc()
		}
		return nil, err
	}

	entry := s.appendHistory(ctx, bk, previousStatus, bk.Status(), req.Actor, req.Reason)

	if orphanedRef != "" {
		s.cleanupEvidence(ctx, bk.ID(), orphanedRef)
	}
	s.notify(ctx, eventForAction(action.ID), bk)
	metrics.TransitionsTotal.WithLabelValues(action.ID).Inc()

	s.logger.Info("booking transition committed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("action", action.ID),
		zap.String("from", string(previousStatus)),
		zap.String("to", string(bk.Status())))

	dto := toBookingDTO(bk)
	result := &TransitionResult{Committed: true, Warnings: warnings, Booking: &dto}
	if entry != nil {
		h := toHistoryDTO(*entry)
		result.History = &h
	}
	return result, nil
}

// AmendDates replaces a confirmed booking's schedule in place. The new range
// goes through the same overlap detection as a confirming transition, and the
// amendment is recorded as a confirmed-to-confirmed history entry.
func (s *ReservationService) AmendDates(ctx context.Context, bookingID uuid.UUID, req AmendDatesRequest) (*TransitionResult, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	expectedVersion := bk.UpdatedAt()

	if bk.Status() != reservation.StatusConfirmed {
		return nil, domain.NewValidationError(fmt.Sprintf("cannot amend dates in status %s", bk.Status()))
	}
	if err := req.Schedule.Validate(s.clock); err != nil {
		return nil, err
	}

	amendAction := reservation.ActionDefinition{ID: "amend_dates", RequiresValidation: true}
	warnings, err := s.checkConstraints(ctx, bk, amendAction, req.Schedule)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 && !req.ConfirmWarnings {
		return &TransitionResult{Committed: false, Warnings: warnings}, nil
	}

	if _, err := s.checkConstraints(ctx, bk, amendAction, req.Schedule); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := bk.AmendSchedule(s.clock, req.Schedule, now); err != nil {
		return nil, err
	}

	if err := s.bookings.UpdateIfUnmodified(ctx, bk, expectedVersion); err != nil {
		if domain.IsConflict(err) {
			metrics.LockConflictsTotal.Inc()
		}
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "dates amended"
	}
	entry := s.appendHistory(ctx, bk, reservation.StatusConfirmed, reservation.StatusConfirmed, req.Actor, reason)

	s.notify(ctx, EventBookingRescheduled, bk)
	metrics.TransitionsTotal.WithLabelValues("amend_dates").Inc()

	s.logger.Info("booking dates amended",
		zap.String("booking_id", bk.ID().String()),
		zap.String("start_date", req.Schedule.StartDate))

	dto := toBookingDTO(bk)
	result := &TransitionResult{Committed: true, Warnings: warnings, Booking: &dto}
	if entry != nil {
		h := toHistoryDTO(*entry)
		result.History = &h
	}
	return result, nil
}

// SubmitDepositEvidence handles the customer's token-gated response on a
// booking awaiting its deposit. The token is validated at entry and again
// immediately before commit so an expiring token cannot slip through a slow
// request. No status change happens here; verification stays with staff.
func (s *ReservationService) SubmitDepositEvidence(ctx context.Context, reference string, req RespondRequest) (*BookingDTO, error) {
	bk, err := s.bookings.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	expectedVersion := bk.UpdatedAt()

	if err := reservation.ValidateToken(bk, req.Token, s.clock, s.tokenGrace); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if req.EvidenceRef != "" {
		if err := bk.AttachDepositEvidence(req.EvidenceRef, req.Message, now); err != nil {
			return nil, err
		}
	} else if req.ProposedSchedule == nil {
		return nil, domain.NewValidationError("a response needs deposit evidence or a proposed schedule")
	}
	if req.ProposedSchedule != nil {
		if err := bk.ProposeSchedule(s.clock, *req.ProposedSchedule, now); err != nil {
			return nil, err
		}
	}

	// Pre-commit re-validation of the same token.
	if err := reservation.ValidateToken(bk, req.Token, s.clock, s.tokenGrace); err != nil {
		return nil, err
	}

	if err := s.bookings.UpdateIfUnmodified(ctx, bk, expectedVersion); err != nil {
		if domain.IsConflict(err) {
			metrics.LockConflictsTotal.Inc()
		}
		return nil, err
	}

	s.notify(ctx, EventDepositSubmitted, bk)

	s.logger.Info("deposit response received",
		zap.String("booking_id", bk.ID().String()),
		zap.Bool("has_evidence", req.EvidenceRef != ""),
		zap.Bool("has_proposal", req.ProposedSchedule != nil))

	dto := toBookingDTO(bk)
	return &dto, nil
}

// ResendNotification re-dispatches one event for a booking. Used by the retry
// worker.
func (s *ReservationService) ResendNotification(ctx context.Context, bookingID uuid.UUID, eventType string) error {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, eventType, bk)
}

// ListDeadJobs returns dead retry jobs for manual remediation.
func (s *ReservationService) ListDeadJobs(ctx context.Context, page, limit int) (*domain.PaginatedResult[RetryJobDTO], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	jobs, total, err := s.jobs.ListDead(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]RetryJobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toRetryJobDTO(j)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// RequeueDeadJob resets a dead retry job to pending with a fresh attempt
// budget.
func (s *ReservationService) RequeueDeadJob(ctx context.Context, id uuid.UUID) (*RetryJobDTO, error) {
	j, err := s.jobs.Requeue(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dead retry job requeued",
		zap.String("job_id", j.ID.String()),
		zap.String("type", j.Type))
	dto := toRetryJobDTO(j)
	return &dto, nil
}

// --- Pipeline Steps ---

// checkConstraints runs the validators for an action against the given
// schedule. Overlaps with blocking bookings are hard errors; a start in the
// past is a warning requiring explicit confirmation.
func (s *ReservationService) checkConstraints(ctx context.Context, bk *reservation.Booking, action reservation.ActionDefinition, sched reservation.Schedule) ([]string, error) {
	if !action.RequiresValidation {
		return nil, nil
	}

	start, end, err := sched.Interval(s.clock)
	if err != nil {
		return nil, err
	}

	conflicting, err := s.bookings.FindOverlapping(ctx, bk.ID(), start, end, reservation.BlockingStatuses())
	if err != nil {
		return nil, err
	}
	if len(conflicting) > 0 {
		metrics.OverlapRejectionsTotal.Inc()
		conflicts := make([]domain.OverlapConflict, len(conflicting))
		for i, c := range conflicting {
			cs := c.Schedule()
			conflicts[i] = domain.OverlapConflict{
				BookingID: c.ID().String(),
				Reference: c.Reference(),
				StartDate: cs.StartDate,
				EndDate:   cs.EndDate,
			}
		}
		return nil, domain.NewOverlapError(conflicts)
	}

	var warnings []string
	if s.clock.IsPast(start) {
		warnings = append(warnings, fmt.Sprintf("reservation starts in the past (%s)", sched.StartDate))
	}
	return warnings, nil
}

// applyAction mutates the aggregate for the resolved action and returns any
// evidence reference detached in the process.
func (s *ReservationService) applyAction(bk *reservation.Booking, action reservation.ActionDefinition, req TransitionRequest, now time.Time) (orphanedRef string, err error) {
	switch action.ID {
	case reservation.ActionAccept:
		token, expiry, err := s.newToken(bk)
		if err != nil {
			return "", err
		}
		return "", bk.Accept(token, expiry, now)

	case reservation.ActionRejectDeposit:
		token, expiry, err := s.newToken(bk)
		if err != nil {
			return "", err
		}
		return bk.RejectDeposit(token, expiry, now)

	case reservation.ActionVerifyDeposit:
		return "", bk.VerifyDeposit(req.Actor, req.VerifiedElsewhere, now)

	case reservation.ActionCancel:
		return bk.Cancel(now)

	case reservation.ActionFinish:
		return "", bk.Finish(now)

	default:
		return "", domain.NewValidationError(fmt.Sprintf("unknown action %q", action.ID))
	}
}

func (s *ReservationService) newToken(bk *reservation.Booking) (string, time.Time, error) {
	token, err := reservation.NewResponseToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiry, err := reservation.TokenExpiry(bk, s.clock)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// appendHistory records the transition in the audit trail. The booking write
// has already committed, so a failure here is logged and swallowed rather than
// surfaced as a failed transition.
func (s *ReservationService) appendHistory(ctx context.Context, bk *reservation.Booking, from, to reservation.Status, actor, reason string) *reservation.StatusHistoryEntry {
	entry := reservation.NewHistoryEntry(bk.ID(), from, to, actor, reason, s.clock.Now())
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append status history",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err))
		return nil
	}
	return &entry
}

// cleanupEvidence deletes an orphaned evidence blob, falling back to the
// durable retry queue when the synchronous attempt fails.
func (s *ReservationService) cleanupEvidence(ctx context.Context, bookingID uuid.UUID, ref string) {
	deleteErr := s.blobs.Delete(ctx, ref)
	if deleteErr == nil {
		return
	}
	s.logger.Warn("synchronous evidence cleanup failed, scheduling retry",
		zap.String("booking_id", bookingID.String()),
		zap.String("evidence_ref", ref),
		zap.Error(deleteErr))

	payload, err := json.Marshal(deleteBlobPayload{BookingID: bookingID, EvidenceRef: ref})
	if err != nil {
		s.logger.Error("failed to marshal cleanup payload", zap.Error(err))
		return
	}
	s.enqueueJob(ctx, job.TypeDeleteOrphanedBlob, payload, priorityCleanup)
}

// notify dispatches an event, falling back to the retry queue on failure.
func (s *ReservationService) notify(ctx context.Context, eventType string, bk *reservation.Booking) {
	if s.notifier == nil {
		return
	}
	notifyErr := s.notifier.Notify(ctx, eventType, bk)
	if notifyErr == nil {
		return
	}
	s.logger.Warn("notification dispatch failed, scheduling retry",
		zap.String("booking_id", bk.ID().String()),
		zap.String("event_type", eventType),
		zap.Error(notifyErr))

	payload, err := json.Marshal(resendNotificationPayload{BookingID: bk.ID(), EventType: eventType})
	if err != nil {
		s.logger.Error("failed to marshal notification payload", zap.Error(err))
		return
	}
	s.enqueueJob(ctx, job.TypeResendNotification, payload, priorityNotification)
}

func (s *ReservationService) enqueueJob(ctx context.Context, jobType string, payload json.RawMessage, priority int) {
	j := job.New(jobType, payload, priority, job.DefaultMaxAttempts, s.clock.Now())
	if err := s.jobs.Save(ctx, j); err != nil {
		s.logger.Error("failed to enqueue retry job",
			zap.String("type", jobType),
			zap.Error(err))
		return
	}
	metrics.RetryJobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func (s *ReservationService) illegalTransition(bk *reservation.Booking, target reservation.Status) error {
	actions := reservation.AvailableActions(bk.Status(), bk.HasDepositEvidence(), bk.IsPast(s.clock))
	targets := make([]string, len(actions))
	for i, a := range actions {
		targets[i] = string(a.TargetStatus)
	}
	return domain.NewIllegalTransitionError(string(bk.Status()), string(target), targets)
}

func eventForAction(actionID string) string {
	switch actionID {
	case reservation.ActionAccept:
		return EventBookingAccepted
	case reservation.ActionRejectDeposit:
		return EventDepositRejected
	case reservation.ActionVerifyDeposit:
		return EventBookingConfirmed
	case reservation.ActionCancel:
		return EventBookingCancelled
	case reservation.ActionFinish:
		return EventBookingFinished
	default:
		return "reservation.booking.updated"
	}
}
