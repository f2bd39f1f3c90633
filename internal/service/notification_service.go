package service

import (
	"context"

	"parkwise/internal/auth"
	"parkwise/internal/domain"
	"parkwise/internal/models"
)

// NotificationService exposes the notification outbox to administrators.
type NotificationService struct {
	repo domain.DeadLetterRepository
}

func NewNotificationService(repo domain.DeadLetterRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// ListFailed returns undelivered notifications, newest first. Admin only.
func (s *NotificationService) ListFailed(ctx context.Context, p auth.Principal) ([]models.NotificationTask, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	tasks, err := s.repo.GetFailedNotificationTasks(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.NotificationTask{}
	}
	return tasks, nil
}
