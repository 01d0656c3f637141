// Package events connects the booking lifecycle to the message bus: outbound
// lifecycle events and the inbound intake stream that creates bookings.
package events

import (
	"context"
	"time"

	"github.com/venuelane/service-reservation/internal/domain/reservation"
	"github.com/venuelane/service-reservation/internal/platform/kafka"
)

const (
	// EventSource identifies this service in outbound event envelopes.
	EventSource = "service-reservation"
	// LifecycleTopic carries all outbound booking lifecycle events.
	LifecycleTopic = "reservation.events"
)

// bookingEventData is the payload of an outbound lifecycle event. It carries
// enough for downstream consumers (mailers, dashboards) to act without a
// read-back, but never the response token secret.
type bookingEventData struct {
	BookingID      string                `json:"booking_id"`
	Reference      string                `json:"reference"`
	CustomerName   string                `json:"customer_name"`
	CustomerEmail  string                `json:"customer_email"`
	Status         string                `json:"status"`
	Schedule       reservation.Schedule  `json:"schedule"`
	Proposed       *reservation.Schedule `json:"proposed_schedule,omitempty"`
	TokenExpiresAt *time.Time            `json:"token_expires_at,omitempty"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

// KafkaNotifier publishes booking lifecycle events as cloud events on the
// lifecycle topic.
type KafkaNotifier struct {
	producer *kafka.Producer
}

// NewKafkaNotifier creates a KafkaNotifier over the given producer.
func NewKafkaNotifier(producer *kafka.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

// Notify publishes one lifecycle event for the booking.
func (n *KafkaNotifier) Notify(ctx context.Context, eventType string, bk *reservation.Booking) error {
	data := bookingEventData{
		BookingID:      bk.ID().String(),
		Reference:      bk.Reference(),
		CustomerName:   bk.CustomerName(),
		CustomerEmail:  bk.CustomerEmail(),
		Status:         string(bk.Status()),
		Schedule:       bk.Schedule(),
		Proposed:       bk.ProposedSchedule(),
		TokenExpiresAt: bk.TokenExpiresAt(),
		OccurredAt:     bk.UpdatedAt(),
	}
	event, err := kafka.NewCloudEvent(EventSource, eventType, data)
	if err != nil {
		return err
	}
	return n.producer.PublishEvent(ctx, LifecycleTopic, event)
}
