package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"khazna-backend/internal/config"
	"khazna-backend/internal/domain"
	"khazna-backend/internal/service"
)

type MockOperationService struct {
	mock.Mock
	service.OperationService
}

func (m *MockOperationService) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *MockOperationService) ReleaseOrphanedLocks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockOutbox struct {
	mock.Mock
}

func (m *MockOutbox) DispatchOnce(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockOutbox) PurgeSent(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Operations.StalePendingMinutes = 30
	cfg.Notifications.BatchSize = 50
	cfg.Notifications.RetentionDays = 30
	return cfg
}

func TestJobRunner_ExpireStalePendingOperations(t *testing.T) {
	ops := new(MockOperationService)
	ops.On("ExpireStalePending", mock.Anything, 30*time.Minute).Return(2, nil)

	jr := NewJobRunner(&Services{Operations: ops}, testConfig())
	jr.ExpireStalePendingOperations()

	ops.AssertExpectations(t)
}

func TestJobRunner_ReleaseOrphanedCarLocks(t *testing.T) {
	ops := new(MockOperationService)
	ops.On("ReleaseOrphanedLocks", mock.Anything).Return(0, domain.Fail(domain.CodeConcurrencyConflict))

	jr := NewJobRunner(&Services{Operations: ops}, testConfig())
	assert.NotPanics(t, jr.ReleaseOrphanedCarLocks)

	ops.AssertExpectations(t)
}

func TestJobRunner_DispatchNotifications(t *testing.T) {
	t.Run("drains full batches", func(t *testing.T) {
		outbox := new(MockOutbox)
		outbox.On("DispatchOnce", mock.Anything).Return(50, nil).Twice()
		outbox.On("DispatchOnce", mock.Anything).Return(3, nil).Once()

		NewJobRunner(&Services{Outbox: outbox}, testConfig()).DispatchNotifications()

		outbox.AssertNumberOfCalls(t, "DispatchOnce", 3)
	})

	t.Run("stops on error", func(t *testing.T) {
		outbox := new(MockOutbox)
		outbox.On("DispatchOnce", mock.Anything).Return(0, errors.New("connection refused")).Once()

		NewJobRunner(&Services{Outbox: outbox}, testConfig()).DispatchNotifications()

		outbox.AssertNumberOfCalls(t, "DispatchOnce", 1)
	})

	t.Run("bounded rounds", func(t *testing.T) {
		outbox := new(MockOutbox)
		outbox.On("DispatchOnce", mock.Anything).Return(50, nil)

		NewJobRunner(&Services{Outbox: outbox}, testConfig()).DispatchNotifications()

		outbox.AssertNumberOfCalls(t, "DispatchOnce", maxDispatchRounds)
	})
}

func TestJobRunner_PurgeSentNotifications(t *testing.T) {
	outbox := new(MockOutbox)
	outbox.On("PurgeSent", mock.Anything, 30*24*time.Hour).Return(int64(12), nil)

	NewJobRunner(&Services{Outbox: outbox}, testConfig()).PurgeSentNotifications()

	outbox.AssertExpectations(t)
}

func TestJobRunner_RecoversFromPanic(t *testing.T) {
	ops := new(MockOperationService)
	ops.On("ExpireStalePending", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(0, nil)

	jr := NewJobRunner(&Services{Operations: ops}, testConfig())
	assert.NotPanics(t, jr.ExpireStalePendingOperations)
}
