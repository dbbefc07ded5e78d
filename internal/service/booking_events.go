package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

// EventPublisher ships booking events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.BookingEvent) error
}

// eventRecorder writes the audit row and then publishes. Both failures are logged, never returned.
type eventRecorder struct {
	repo      repository.BookingEventRepository
	publisher EventPublisher
	logger    *logrus.Logger
}

func (r *eventRecorder) record(ctx context.Context, b *domain.Booking, at time.Time) {
	event := domain.BookingEvent{
		EventID:    uuid.NewString(),
		BookingID:  b.ID,
		SlotID:     b.SlotID,
		UserID:     b.UserID,
		State:      b.State,
		OccurredAt: at,
	}
	fields := logrus.Fields{"booking_id": b.ID, "state": b.State, "event_id": event.EventID}

	if r.repo != nil {
		if err := r.repo.Create(ctx, &event); err != nil {
			r.logger.WithError(err).WithFields(fields).Error("Could not store booking event")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.WithError(err).WithFields(fields).Warn("Could not publish booking event")
		}
	}
}
