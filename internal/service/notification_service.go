package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

const defaultNotificationLimit = 50

// NotificationPusher delivers a serialized notification to a user's live connections.
type NotificationPusher interface {
	PushToUser(ctx context.Context, userID int, payload []byte) error
}

// Notifier is what the booking lifecycle needs from the notification sink.
type Notifier interface {
	Notify(ctx context.Context, userID int, content string) error
	NotifyStaff(ctx context.Context, content string) error
}

type NotificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	pusher           NotificationPusher
	logger           *logrus.Logger
}

func NewNotificationService(notificationRepo repository.NotificationRepository, userRepo repository.UserRepository,
	pusher NotificationPusher, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pusher:           pusher,
		logger:           logger,
	}
}

// Notify persists the notification and then pushes it. A failed push is logged only.
func (s *NotificationService) Notify(ctx context.Context, userID int, content string) error {
	n, err := s.notificationRepo.Create(ctx, &domain.Notification{UserID: userID, Content: content})
	if err != nil {
		return fmt.Errorf("saving notification for user %d: %w", userID, err)
	}
	if s.pusher == nil {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := s.pusher.PushToUser(ctx, userID, payload); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Could not push notification")
	}
	return nil
}

func (s *NotificationService) NotifyStaff(ctx context.Context, content string) error {
	staff, err := s.userRepo.FindStaff(ctx)
	if err != nil {
		return fmt.Errorf("listing staff: %w", err)
	}
	if len(staff) == 0 {
		s.logger.WithField("content", content).Warn("No staff account to notify")
		return nil
	}

	var errs []error
	for _, u := range staff {
		if err := s.Notify(ctx, u.ID, content); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) List(ctx context.Context, actor domain.Actor) ([]domain.Notification, error) {
	return s.notificationRepo.FindByUser(ctx, actor.UserID, defaultNotificationLimit)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id int) error {
	return s.notificationRepo.MarkRead(ctx, actor.UserID, id)
}
