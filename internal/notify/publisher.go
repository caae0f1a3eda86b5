// Package notify delivers outbox rows written by the engine to their final sink.
package notify

import (
	"context"
	"fmt"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

// Publisher hands one outbox message to a delivery channel.
type Publisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
}

// InboxPublisher stores messages in the notifications table read by the apps.
type InboxPublisher struct {
	uow repository.UnitOfWork
}

func NewInboxPublisher(uow repository.UnitOfWork) *InboxPublisher {
	return &InboxPublisher{uow: uow}
}

func (p *InboxPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	return p.uow.Within(ctx, func(r *repository.Repos) error {
		note := &domain.Notification{
			UserID:      msg.RecipientID,
			Title:       msg.Title,
			Description: msg.Description,
			Category:    msg.Category,
			Attributes:  msg.Attributes,
		}
		if err := r.Notifications.Create(ctx, note); err != nil {
			return fmt.Errorf("failed to store notification for user %d: %w", msg.RecipientID, err)
		}
		return nil
	})
}
