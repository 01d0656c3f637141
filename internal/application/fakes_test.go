package application_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/job"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
)

// cloneBooking rebuilds an aggregate from its own state, the same way a real
// repository round-trip would.
func cloneBooking(bk *reservation.Booking) *reservation.Booking {
	return reservation.Reconstruct(
		bk.ID(), bk.Reference(), bk.CustomerName(), bk.CustomerEmail(),
		bk.Status(), bk.Schedule(), bk.ProposedSchedule(),
		bk.ResponseToken(), bk.TokenExpiresAt(),
		bk.DepositEvidenceRef(), bk.DepositVerifiedAt(), bk.DepositVerifiedBy(),
		bk.DepositVerifiedElsewhere(),
		bk.AdminNotes(), bk.LastResponse(),
		bk.CreatedAt(), bk.UpdatedAt(),
	)
}

// memBookingRepo is an in-memory BookingRepository with the same
// compare-and-swap semantics as the GORM implementation.
type memBookingRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*reservation.Booking
	clock *clock.Clock

	// beforeUpdate runs inside UpdateIfUnmodified before the version check,
	// to interleave a concurrent writer.
	beforeUpdate func()
}

func newMemBookingRepo(c *clock.Clock) *memBookingRepo {
	return &memBookingRepo{rows: make(map[uuid.UUID]*reservation.Booking), clock: c}
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*reservation.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return cloneBooking(bk), nil
}

func (r *memBookingRepo) FindByReference(_ context.Context, reference string) (*reservation.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.rows {
		if bk.Reference() == reference {
			return cloneBooking(bk), nil
		}
	}
	return nil, domain.NewNotFoundError("booking", reference)
}

func (r *memBookingRepo) FindOverlapping(_ context.Context, excludeID uuid.UUID, start, end time.Time, statuses []reservation.Status) ([]*reservation.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reservation.Booking
	for _, bk := range r.rows {
		if bk.ID() == excludeID {
			continue
		}
		blocking := false
		for _, s := range statuses {
			if bk.Status() == s {
				blocking = true
			}
		}
		if !blocking {
			continue
		}
		bStart, bEnd, err := bk.Schedule().Interval(r.clock)
		if err != nil {
			return nil, err
		}
		if reservation.Overlaps(start, end, bStart, bEnd) {
			out = append(out, cloneBooking(bk))
		}
	}
	return out, nil
}

func (r *memBookingRepo) ListAll(_ context.Context, status *reservation.Status, page, limit int) ([]*reservation.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*reservation.Booking
	for _, bk := range r.rows {
		if status != nil && bk.Status() != *status {
			continue
		}
		all = append(all, cloneBooking(bk))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt().Before(all[j].CreatedAt())
	})
	total := int64(len(all))
	offset := (page - 1) * limit
	if offset >= len(all) {
		return nil, total, nil
	}
	endIdx := offset + limit
	if endIdx > len(all) {
		endIdx = len(all)
	}
	return all[offset:endIdx], total, nil
}

func (r *memBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, bk := range r.rows {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *memBookingRepo) Save(_ context.Context, bk *reservation.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[bk.ID()]; exists {
		return fmt.Errorf("booking %s already exists", bk.ID())
	}
	r.rows[bk.ID()] = cloneBooking(bk)
	return nil
}

func (r *memBookingRepo) UpdateIfUnmodified(_ context.Context, bk *reservation.Booking, expectedVersion time.Time) error {
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[bk.ID()]
	if !ok || !stored.UpdatedAt().Equal(expectedVersion) {
		return domain.NewConflictError("booking was modified by another request; refetch and retry")
	}
	r.rows[bk.ID()] = cloneBooking(bk)
	return nil
}

// memHistoryRepo is an in-memory HistoryRepository.
type memHistoryRepo struct {
	mu      sync.Mutex
	entries []reservation.StatusHistoryEntry
	failing bool
}

func (r *memHistoryRepo) Append(_ context.Context, entry reservation.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return fmt.Errorf("history store unavailable")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memHistoryRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]reservation.StatusHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reservation.StatusHistoryEntry
	for _, e := range r.entries {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memHistoryRepo) forBooking(bookingID uuid.UUID) []reservation.StatusHistoryEntry {
	out, _ := r.FindByBookingID(context.Background(), bookingID)
	return out
}

// memJobRepo is an in-memory job.Repository.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job.RetryJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uuid.UUID]*job.RetryJob)}
}

func (r *memJobRepo) Save(_ context.Context, j *job.RetryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *j
	r.jobs[j.ID] = &copied
	return nil
}

func (r *memJobRepo) ClaimDue(_ context.Context, limit int) ([]*job.RetryJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*job.RetryJob
	for _, j := range r.jobs {
		if j.Status == job.StatusPending && !j.NextRunAt.After(time.Now().UTC()) {
			copied := *j
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].Priority != due[k].Priority {
			return due[i].Priority < due[k].Priority
		}
		return due[i].NextRunAt.Before(due[k].NextRunAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memJobRepo) Update(_ context.Context, j *job.RetryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; !ok {
		return domain.NewNotFoundError("retry job", j.ID.String())
	}
	copied := *j
	r.jobs[j.ID] = &copied
	return nil
}

func (r *memJobRepo) ListDead(_ context.Context, page, limit int) ([]*job.RetryJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead []*job.RetryJob
	for _, j := range r.jobs {
		if j.Status == job.StatusDead {
			copied := *j
			dead = append(dead, &copied)
		}
	}
	sort.Slice(dead, func(i, k int) bool { return dead[i].UpdatedAt.After(dead[k].UpdatedAt) })
	return dead, int64(len(dead)), nil
}

func (r *memJobRepo) Requeue(_ context.Context, id uuid.UUID) (*job.RetryJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("retry job", id.String())
	}
	if j.Status != job.StatusDead {
		return nil, domain.NewValidationError("only dead jobs can be requeued")
	}
	j.Status = job.StatusPending
	j.Attempts = 0
	j.LastError = ""
	j.NextRunAt = time.Now().UTC()
	copied := *j
	return &copied, nil
}

func (r *memJobRepo) byType(jobType string) []*job.RetryJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*job.RetryJob
	for _, j := range r.jobs {
		if j.Type == jobType {
			copied := *j
			out = append(out, &copied)
		}
	}
	return out
}

// memBlobStore is an in-memory BlobStore that can be told to fail deletes.
type memBlobStore struct {
	mu          sync.Mutex
	blobs       map[string]bool
	failDeletes bool
	deleted     []string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]bool)}
}

func (s *memBlobStore) put(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = true
}

func (s *memBlobStore) Delete(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDeletes {
		return fmt.Errorf("blob store unavailable")
	}
	delete(s.blobs, reference)
	s.deleted = append(s.deleted, reference)
	return nil
}

func (s *memBlobStore) Exists(_ context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[reference], nil
}

// recordingNotifier records dispatched events and can be told to fail.
type recordingNotifier struct {
	mu      sync.Mutex
	events  []string
	failing bool
}

func (n *recordingNotifier) Notify(_ context.Context, eventType string, _ *reservation.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failing {
		return fmt.Errorf("broker unreachable")
	}
	n.events = append(n.events, eventType)
	return nil
}

func (n *recordingNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
