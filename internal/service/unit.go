package service

import (
	"context"
	"time"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

// RetryPolicy bounds how often a unit of work that lost a balance race is replayed.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

type unitRunner struct {
	uow   repository.UnitOfWork
	retry RetryPolicy
}

// run executes fn in a unit of work and replays it on ConcurrencyConflict.
// fn must be safe to run more than once.
func (u unitRunner) run(ctx context.Context, method string, fn func(r *repository.Repos) error) error {
	backoff := u.retry.Backoff
	for attempt := 0; ; attempt++ {
		err := u.uow.Within(ctx, fn)
		if err == nil || !domain.IsConcurrencyConflict(err) || attempt >= u.retry.MaxRetries {
			return err
		}
		logger.Warn("Unit of work conflicted, retrying", "method", method, "attempt", attempt+1, "error", err)
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
}

// read runs fn without retry; used for plain lookups.
func (u unitRunner) read(ctx context.Context, fn func(r *repository.Repos) error) error {
	return u.uow.Within(ctx, fn)
}
