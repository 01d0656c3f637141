package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuelane/service-reservation/internal/domain"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	c := testClock(t)
	bk, err := NewBooking(c, "Aina Rahman", "aina@example.com",
		Schedule{StartDate: "2025-06-01", StartTime: "09:00", EndTime: "12:00"}, "")
	require.NoError(t, err)
	return bk
}

func TestNewBooking(t *testing.T) {
	bk := newTestBooking(t)

	assert.Equal(t, StatusPending, bk.Status())
	assert.Regexp(t, `^RV-[A-Z2-9]{6}$`, bk.Reference())
	assert.Nil(t, bk.ResponseToken())
	assert.False(t, bk.HasDepositEvidence())
}

func TestNewBooking_Validation(t *testing.T) {
	c := testClock(t)
	sched := Schedule{StartDate: "2025-06-01", StartTime: "09:00", EndTime: "12:00"}

	_, err := NewBooking(c, "", "aina@example.com", sched, "")
	assert.Error(t, err)

	_, err = NewBooking(c, "Aina Rahman", "", sched, "")
	assert.Error(t, err)

	_, err = NewBooking(c, "Aina Rahman", "aina@example.com", Schedule{StartDate: "2025-06-01"}, "")
	assert.Error(t, err)
}

func TestAccept_ArmsToken(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)

	require.NoError(t, bk.Accept("secret-token", expiry, now))

	assert.Equal(t, StatusPendingDeposit, bk.Status())
	require.NotNil(t, bk.ResponseToken())
	assert.Equal(t, "secret-token", *bk.ResponseToken())
	require.NotNil(t, bk.TokenExpiresAt())
	assert.Equal(t, expiry, *bk.TokenExpiresAt())
}

func TestAccept_IllegalFromConfirmed(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	expiry := now.Add(24 * time.Hour)

	require.NoError(t, bk.Accept("tok", expiry, now))
	require.NoError(t, bk.AttachDepositEvidence("evidence/slip.jpg", "", now))
	require.NoError(t, bk.VerifyDeposit("staff-1", false, now))

	err := bk.Accept("tok2", expiry, now)
	var illegal *domain.IllegalTransitionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, "confirmed", illegal.From)
	assert.Equal(t, []string{"cancelled", "finished"}, illegal.LegalTargets)
}

func TestRejectDeposit_DetachesEvidenceAndRearmsToken(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	expiry := now.Add(24 * time.Hour)

	require.NoError(t, bk.Accept("tok-1", expiry, now))
	require.NoError(t, bk.AttachDepositEvidence("evidence/slip.jpg", "here you go", now))
	require.True(t, bk.HasDepositEvidence())

	orphaned, err := bk.RejectDeposit("tok-2", expiry, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "evidence/slip.jpg", orphaned)
	assert.False(t, bk.HasDepositEvidence())
	assert.Equal(t, StatusPendingDeposit, bk.Status())
	require.NotNil(t, bk.ResponseToken())
	assert.Equal(t, "tok-2", *bk.ResponseToken())
}

func TestRejectDeposit_WithoutEvidence(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	require.NoError(t, bk.Accept("tok", now.Add(time.Hour), now))

	_, err := bk.RejectDeposit("tok-2", now.Add(time.Hour), now)
	assert.Error(t, err)
}

func TestVerifyDeposit(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	require.NoError(t, bk.Accept("tok", now.Add(time.Hour), now))

	// No evidence and not verified elsewhere: refused.
	err := bk.VerifyDeposit("staff-1", false, now)
	assert.Error(t, err)

	// Verified through another channel needs no evidence.
	require.NoError(t, bk.VerifyDeposit("staff-1", true, now))
	assert.Equal(t, StatusConfirmed, bk.Status())
	assert.True(t, bk.DepositVerifiedElsewhere())
	require.NotNil(t, bk.DepositVerifiedBy())
	assert.Equal(t, "staff-1", *bk.DepositVerifiedBy())
	// Token is consumed on confirmation.
	assert.Nil(t, bk.ResponseToken())
	assert.Nil(t, bk.TokenExpiresAt())
}

func TestCancel_DetachesEvidence(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	require.NoError(t, bk.Accept("tok", now.Add(time.Hour), now))
	require.NoError(t, bk.AttachDepositEvidence("evidence/slip.jpg", "", now))

	orphaned, err := bk.Cancel(now)
	require.NoError(t, err)

	assert.Equal(t, "evidence/slip.jpg", orphaned)
	assert.Equal(t, StatusCancelled, bk.Status())
	assert.Nil(t, bk.ResponseToken())

	// Terminal: nothing further is legal.
	_, err = bk.Cancel(now)
	assert.Error(t, err)
	assert.Error(t, bk.Finish(now))
}

func TestFinish_OnlyFromConfirmed(t *testing.T) {
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)

	var illegal *domain.IllegalTransitionError
	require.True(t, errors.As(bk.Finish(now), &illegal))

	require.NoError(t, bk.Accept("tok", now.Add(time.Hour), now))
	require.NoError(t, bk.VerifyDeposit("staff-1", true, now))
	require.NoError(t, bk.Finish(now))
	assert.Equal(t, StatusFinished, bk.Status())
}

func TestAmendSchedule_ConfirmedOnly(t *testing.T) {
	c := testClock(t)
	bk := newTestBooking(t)
	now := time.Date(2025, 5, 1, 5, 0, 0, 0, time.UTC)
	newSched := Schedule{StartDate: "2025-06-05", StartTime: "10:00", EndTime: "14:00"}

	assert.Error(t, bk.AmendSchedule(c, newSched, now))

	require.NoError(t, bk.Accept("tok", now.Add(time.Hour), now))
	require.NoError(t, bk.VerifyDeposit("staff-1", true, now))
	require.NoError(t, bk.ProposeSchedule(c, newSched, now))
	require.NotNil(t, bk.ProposedSchedule())

	require.NoError(t, bk.AmendSchedule(c, newSched, now))
	assert.Equal(t, newSched, bk.Schedule())
	// An accepted amendment clears the pending proposal.
	assert.Nil(t, bk.ProposedSchedule())
}

func TestTouch_MonotonicVersion(t *testing.T) {
	bk := newTestBooking(t)
	now := bk.UpdatedAt()

	// Two writes at the same instant must still produce distinct versions.
	require.NoError(t, bk.Accept("tok", now.Add(time.Hour), now))
	v1 := bk.UpdatedAt()
	assert.True(t, v1.After(now))

	require.NoError(t, bk.AttachDepositEvidence("evidence/slip.jpg", "", now))
	v2 := bk.UpdatedAt()
	assert.True(t, v2.After(v1))
}
