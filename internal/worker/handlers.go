package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/venuelane/service-reservation/internal/application"
	"github.com/venuelane/service-reservation/internal/domain"
	"github.com/venuelane/service-reservation/internal/domain/job"
	"github.com/venuelane/service-reservation/internal/storage"
)

// deleteBlobPayload mirrors the payload written by the orchestrator when a
// synchronous evidence cleanup fails.
type deleteBlobPayload struct {
	BookingID   uuid.UUID `json:"booking_id"`
	EvidenceRef string    `json:"evidence_ref"`
}

// resendNotificationPayload mirrors the payload written when a notification
// dispatch fails.
type resendNotificationPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	EventType string    `json:"event_type"`
}

// DeleteOrphanedBlobHandler returns the handler for delete-orphaned-blob
// jobs. Deletion is idempotent, so re-running after a partial failure is safe.
func DeleteOrphanedBlobHandler(blobs storage.BlobStore) Handler {
	return func(ctx context.Context, j *job.RetryJob) error {
		var payload deleteBlobPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		if payload.EvidenceRef == "" {
			return fmt.Errorf("payload missing evidence_ref")
		}
		return blobs.Delete(ctx, payload.EvidenceRef)
	}
}

// ResendNotificationHandler returns the handler for resend-notification jobs.
// A booking deleted since enqueue counts as success; there is nothing left to
// notify about.
func ResendNotificationHandler(service *application.ReservationService) Handler {
	return func(ctx context.Context, j *job.RetryJob) error {
		var payload resendNotificationPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		err := service.ResendNotification(ctx, payload.BookingID, payload.EventType)
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
}

// DefaultHandlers builds the standard handler registry.
func DefaultHandlers(blobs storage.BlobStore, service *application.ReservationService) map[string]Handler {
	return map[string]Handler{
		job.TypeDeleteOrphanedBlob: DeleteOrphanedBlobHandler(blobs),
		job.TypeResendNotification: ResendNotificationHandler(service),
	}
}
