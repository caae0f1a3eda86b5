package service

import (
	"context"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

type notificationService struct {
	units unitRunner
}

func NewNotificationService(uow repository.UnitOfWork) NotificationService {
	return &notificationService{units: unitRunner{uow: uow}}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var notes []domain.Notification
	var total int32
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		notes, total, err = r.Notifications.List(ctx, userID, pageSize, offset)
		return err
	})
	return notes, total, err
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID int32, notificationID int64) error {
	return s.units.read(ctx, func(r *repository.Repos) error {
		return r.Notifications.MarkAsRead(ctx, notificationID, userID)
	})
}
