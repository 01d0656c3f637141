package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/venuelane/service-reservation/internal/application"
	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
	"github.com/venuelane/service-reservation/internal/platform/kafka"
)

const (
	// IntakeTopic carries booking requests produced by the public intake
	// surface.
	IntakeTopic = "reservation.intake"
	// IntakeGroupID is the consumer group for intake processing.
	IntakeGroupID = "service-reservation-intake"

	// TypeBookingRequested is the intake event type this consumer handles.
	TypeBookingRequested = "intake.booking.requested"
)

// intakeData is the payload of an intake event.
type intakeData struct {
	CustomerName  string               `json:"customer_name"`
	CustomerEmail string               `json:"customer_email"`
	Schedule      reservation.Schedule `json:"schedule"`
	Notes         string               `json:"notes"`
}

// IntakeConsumer turns intake events into pending bookings.
type IntakeConsumer struct {
	consumer *kafka.Consumer
	service  *application.ReservationService
	logger   *zap.Logger
}

// NewIntakeConsumer creates an IntakeConsumer.
func NewIntakeConsumer(brokers []string, service *application.ReservationService, logger *zap.Logger) *IntakeConsumer {
	return &IntakeConsumer{
		consumer: kafka.NewConsumer(brokers, IntakeGroupID, IntakeTopic, logger),
		service:  service,
		logger:   logger,
	}
}

// Start blocks, consuming intake events until the context is cancelled.
func (c *IntakeConsumer) Start(ctx context.Context) error {
	c.logger.Info("intake consumer started", zap.String("topic", IntakeTopic))
	return c.consumer.Consume(ctx, c.handle)
}

// Close closes the underlying consumer.
func (c *IntakeConsumer) Close() error {
	return c.consumer.Close()
}

// handle processes one intake message. Malformed or invalid requests are
// committed and dropped; only infrastructure failures leave the message
// uncommitted for redelivery.
func (c *IntakeConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Warn("dropping malformed intake message",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	if event.Type != TypeBookingRequested {
		c.logger.Debug("ignoring intake event", zap.String("type", event.Type))
		return nil
	}

	var data intakeData
	if err := event.ParseData(&data); err != nil {
		c.logger.Warn("dropping intake event with malformed payload",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return nil
	}

	bk, err := c.service.CreateBooking(ctx, data.CustomerName, data.CustomerEmail, data.Schedule, data.Notes)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.logger.Warn("dropping invalid intake request",
				zap.String("event_id", event.ID),
				zap.String("reason", validationErr.Error()))
			return nil
		}
		return err
	}

	c.logger.Info("booking created from intake",
		zap.String("booking_id", bk.ID.String()),
		zap.String("reference", bk.Reference))
	return nil
}
