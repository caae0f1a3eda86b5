package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
	"khazna-backend/internal/repository/memory"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func enqueue(t *testing.T, st *memory.Store, recipients ...int32) {
	t.Helper()
	ctx := context.Background()
	msgs := make([]domain.OutboxMessage, 0, len(recipients))
	for _, id := range recipients {
		msgs = append(msgs, domain.OutboxMessage{
			RecipientID: id,
			Title:       "تحويل رصيد",
			Description: "تم تحويل مبلغ 100.00 جنيه",
			Category:    domain.CategoryMoney,
			Attributes:  map[string]string{"type": "TRANSFER"},
		})
	}
	require.NoError(t, st.Within(ctx, func(r *repository.Repos) error {
		return r.Outbox.Enqueue(ctx, msgs)
	}))
}

func statusOf(st *memory.Store) []domain.OutboxStatus {
	var out []domain.OutboxStatus
	for _, m := range st.Outbox() {
		out = append(out, m.Status)
	}
	return out
}

func newTestDispatcher(st *memory.Store, pub Publisher, cfg DispatcherConfig) (*Dispatcher, *time.Time) {
	clock := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return clock })
	d := NewDispatcher(st, pub, cfg)
	d.now = func() time.Time { return clock }
	return d, &clock
}

func TestDispatcher_DeliversToInbox(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	enqueue(t, st, 2, 3)
	d, _ := newTestDispatcher(st, NewInboxPublisher(st), DispatcherConfig{})

	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []domain.OutboxStatus{domain.OutboxSent, domain.OutboxSent}, statusOf(st))

	notes := st.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, int32(2), notes[0].UserID)
	assert.Equal(t, "تحويل رصيد", notes[0].Title)
	assert.Equal(t, domain.CategoryMoney, notes[0].Category)
	assert.Equal(t, "TRANSFER", notes[0].Attributes["type"])

	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, st.Notifications(), 2)
}

func TestDispatcher_RetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	enqueue(t, st, 2)
	pub := new(MockPublisher)
	d, clock := newTestDispatcher(st, pub, DispatcherConfig{InitialBackoff: 5 * time.Second, MaxAttempts: 3})

	pub.On("Publish", ctx, mock.Anything).Return(errors.New("topic unavailable")).Once()
	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	row := st.Outbox()[0]
	assert.Equal(t, domain.OutboxFailed, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Equal(t, "topic unavailable", row.LastError)
	require.NotNil(t, row.NextAttemptAt)
	assert.Equal(t, clock.Add(5*time.Second), *row.NextAttemptAt)

	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	pub.AssertNumberOfCalls(t, "Publish", 1)

	*clock = clock.Add(5 * time.Second)
	pub.On("Publish", ctx, mock.Anything).Return(nil).Once()
	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []domain.OutboxStatus{domain.OutboxSent}, statusOf(st))
	assert.Equal(t, 2, st.Outbox()[0].Attempts)
}

func TestDispatcher_DeadAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	enqueue(t, st, 2)
	pub := new(MockPublisher)
	pub.On("Publish", ctx, mock.Anything).Return(errors.New("permission denied"))
	d, clock := newTestDispatcher(st, pub, DispatcherConfig{InitialBackoff: time.Second, MaxAttempts: 2})

	_, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.OutboxStatus{domain.OutboxFailed}, statusOf(st))

	*clock = clock.Add(time.Minute)
	_, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.OutboxStatus{domain.OutboxDead}, statusOf(st))

	*clock = clock.Add(time.Hour)
	_, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestDispatcher_PurgeSent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	enqueue(t, st, 2, 3)
	d, clock := newTestDispatcher(st, NewInboxPublisher(st), DispatcherConfig{})

	_, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	enqueue(t, st, 4)

	*clock = clock.Add(31 * 24 * time.Hour)
	n, err := d.PurgeSent(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []domain.OutboxStatus{domain.OutboxPending}, statusOf(st))
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{7, 320 * time.Second},
		{8, maxBackoff},
		{40, maxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(5*time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}
