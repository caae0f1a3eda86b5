package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	st := newFixture()
	require.NoError(t, st.Within(ctx, func(r *repository.Repos) error {
		for i := 1; i <= 25; i++ {
			note := &domain.Notification{UserID: workerID, Title: fmt.Sprintf("رسالة %d", i), Category: domain.CategoryGeneral}
			if err := r.Notifications.Create(ctx, note); err != nil {
				return err
			}
		}
		return r.Notifications.Create(ctx, &domain.Notification{UserID: companyOwnerID, Title: "أخرى"})
	}))
	svc := NewNotificationService(st)

	t.Run("Pages newest first", func(t *testing.T) {
		notes, total, err := svc.GetNotifications(ctx, workerID, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(25), total)
		assert.Len(t, notes, 20)
		assert.Equal(t, "رسالة 25", notes[0].Title)

		notes, _, err = svc.GetNotifications(ctx, workerID, 2, 20)
		require.NoError(t, err)
		assert.Len(t, notes, 5)
	})

	t.Run("Mark as read", func(t *testing.T) {
		notes, _, err := svc.GetNotifications(ctx, workerID, 1, 1)
		require.NoError(t, err)
		require.NoError(t, svc.MarkAsRead(ctx, workerID, notes[0].ID))

		notes, _, err = svc.GetNotifications(ctx, workerID, 1, 1)
		require.NoError(t, err)
		assert.True(t, notes[0].IsRead)
	})

	t.Run("Foreign notification", func(t *testing.T) {
		notes, _, err := svc.GetNotifications(ctx, companyOwnerID, 1, 10)
		require.NoError(t, err)
		require.Len(t, notes, 1)

		err = svc.MarkAsRead(ctx, workerID, notes[0].ID)
		assert.True(t, domain.IsNotFound(err))
	})
}
