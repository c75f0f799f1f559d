package service

import (
	"context"

	"github.com/Dan9191/bank-portal/internal/models"
)

// ListNotifications returns the caller's own notifications
func (s *Service) ListNotifications(ctx context.Context) ([]*models.Notification, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListNotifications(ctx, a.UserID)
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	return list, nil
}

func (s *Service) ownNotification(ctx context.Context, id int64) (*models.Notification, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	n, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return nil, storeErr("load notification", err)
	}
	if _, err := requireOwner(ctx, n.UserID); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkNotificationRead flips is_read to true. Already read notifications
// are returned unchanged.
func (s *Service) MarkNotificationRead(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := s.ownNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.repo.MarkNotificationRead(ctx, id); err != nil {
		return nil, storeErr("mark notification read", err)
	}
	n.IsRead = true
	return n, nil
}

// DeleteNotification removes one of the caller's notifications
func (s *Service) DeleteNotification(ctx context.Context, id int64) error {
	if _, err := s.ownNotification(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteNotification(ctx, id); err != nil {
		return storeErr("delete notification", err)
	}
	return nil
}
