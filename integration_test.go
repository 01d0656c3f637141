//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuelane/service-reservation/internal/application"
	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
	"github.com/venuelane/service-reservation/internal/events"
)

// TestIntakeToConfirmed walks a booking through the full lifecycle: an intake
// event creates it pending, staff accept and verify its deposit, and each
// committed transition shows up on the lifecycle topic.
func TestIntakeToConfirmed(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupReservationStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	// Publish an intake request.
	startDate := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	publishTestEvent(t, infra.KafkaBrokers, events.IntakeTopic,
		"service-intake", events.TypeBookingRequested, map[string]interface{}{
			"customer_name":  "Aina Rahman",
			"customer_email": "aina@example.com",
			"schedule": map[string]string{
				"start_date": startDate,
				"start_time": "09:00",
				"end_time":   "12:00",
			},
			"notes": "integration test",
		})

	// The consumer creates the booking in pending.
	model := waitForAnyBooking(t, infra.DB, 20*time.Second)
	assert.Equal(t, "pending", model.Status)
	assert.Equal(t, "Aina Rahman", model.CustomerName)

	// Staff accept: pending -> pending_deposit, token armed.
	result, err := stack.Service.RequestTransition(ctx, model.ID, application.TransitionRequest{
		RequestedStatus: "pending_deposit",
		Actor:           "staff-1",
	})
	require.NoError(t, err)
	require.True(t, result.Committed)

	accepted := waitForBookingStatus(t, infra.DB, model.Reference, "pending_deposit", 10*time.Second)
	require.NotNil(t, accepted.ResponseToken)

	// Customer submits evidence through the token-gated endpoint.
	_, err = stack.Service.SubmitDepositEvidence(ctx, model.Reference, application.RespondRequest{
		Token:       *accepted.ResponseToken,
		EvidenceRef: "evidence/slip.jpg",
		Message:     "transferred",
	})
	require.NoError(t, err)

	// Staff verify: pending_deposit -> confirmed.
	result, err = stack.Service.RequestTransition(ctx, model.ID, application.TransitionRequest{
		RequestedStatus: "confirmed",
		Actor:           "staff-1",
	})
	require.NoError(t, err)
	require.True(t, result.Committed)

	confirmed := waitForBookingStatus(t, infra.DB, model.Reference, "confirmed", 10*time.Second)
	assert.Nil(t, confirmed.ResponseToken, "token is consumed on confirmation")

	// History shows the full path.
	history, err := stack.Service.GetHistory(ctx, model.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "pending", history[0].PreviousStatus)
	assert.Equal(t, "pending_deposit", history[0].NewStatus)
	assert.Equal(t, "pending_deposit", history[1].PreviousStatus)
	assert.Equal(t, "confirmed", history[1].NewStatus)

	// The confirmation event is on the lifecycle topic.
	ce := consumeOneEvent(t, infra.KafkaBrokers, events.LifecycleTopic,
		application.EventBookingConfirmed, 15*time.Second)

	var data map[string]interface{}
	require.NoError(t, ce.ParseData(&data))
	assert.Equal(t, model.Reference, data["reference"])
	assert.Equal(t, "confirmed", data["status"])
}

// TestOverlapRejectedAgainstCommittedRow exercises the overlap detector
// against real SQL: a confirmed booking blocks an intersecting candidate but
// not one that merely touches it.
func TestOverlapRejectedAgainstCommittedRow(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupReservationStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	ctx := context.Background()

	date := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	sched := func(start, end string) reservation.Schedule {
		return reservation.Schedule{StartDate: date, StartTime: start, EndTime: end}
	}
	confirm := func(bookingID uuid.UUID) (*application.TransitionResult, error) {
		_, err := stack.Service.RequestTransition(ctx, bookingID, application.TransitionRequest{
			RequestedStatus: "pending_deposit",
		})
		if err != nil {
			return nil, err
		}
		return stack.Service.RequestTransition(ctx, bookingID, application.TransitionRequest{
			RequestedStatus:   "confirmed",
			VerifiedElsewhere: true,
		})
	}

	x, err := stack.Service.CreateBooking(ctx, "First", "first@example.com", sched("09:00", "12:00"), "")
	require.NoError(t, err)
	result, err := confirm(x.ID)
	require.NoError(t, err)
	require.True(t, result.Committed)

	// Intersecting candidate is refused with the conflicting reference.
	y, err := stack.Service.CreateBooking(ctx, "Second", "second@example.com", sched("11:00", "13:00"), "")
	require.NoError(t, err)
	_, err = confirm(y.ID)
	var overlap *domain.OverlapError
	require.ErrorAs(t, err, &overlap)
	require.Len(t, overlap.Conflicts, 1)
	assert.Equal(t, x.Reference, overlap.Conflicts[0].Reference)

	// A range that only touches the endpoint goes through.
	z, err := stack.Service.CreateBooking(ctx, "Third", "third@example.com", sched("12:00", "13:00"), "")
	require.NoError(t, err)
	result, err = confirm(z.ID)
	require.NoError(t, err)
	assert.True(t, result.Committed)
}
