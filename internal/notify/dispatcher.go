package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

const maxBackoff = 10 * time.Minute

type DispatcherConfig struct {
	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Dispatcher moves committed outbox rows to a Publisher. Publish failures are
// retried with exponential backoff and never reach the ledger operation that
// wrote the row.
type Dispatcher struct {
	uow       repository.UnitOfWork
	publisher Publisher
	cfg       DispatcherConfig
	id        string
	now       func() time.Time
}

func NewDispatcher(uow repository.UnitOfWork, publisher Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 5 * time.Second
	}
	return &Dispatcher{
		uow:       uow,
		publisher: publisher,
		cfg:       cfg,
		id:        uuid.NewString(),
		now:       time.Now,
	}
}

// Run polls until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.Info("Outbox dispatcher started", "dispatcherID", d.id, "pollInterval", d.cfg.PollInterval.String())
	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Outbox dispatch round failed", "dispatcherID", d.id, "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Outbox dispatcher stopped", "dispatcherID", d.id)
			return
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and publishes it. It returns the number of
// messages marked SENT.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	now := d.now().UTC()
	var claimed []domain.OutboxMessage
	err := d.uow.Within(ctx, func(r *repository.Repos) error {
		var err error
		claimed, err = r.Outbox.Claim(ctx, repository.ClaimOptions{
			DispatcherID: d.id,
			BatchSize:    d.cfg.BatchSize,
			Now:          now,
			StaleBefore:  now.Add(-d.cfg.LockTimeout),
			MaxAttempts:  d.cfg.MaxAttempts,
		})
		return err
	})
	if err != nil || len(claimed) == 0 {
		return 0, err
	}

	sent := 0
	for _, msg := range claimed {
		if err := d.publisher.Publish(ctx, msg); err != nil {
			d.markFailed(ctx, msg, err)
			continue
		}
		if err := d.uow.Within(ctx, func(r *repository.Repos) error {
			return r.Outbox.MarkSent(ctx, msg.ID, now)
		}); err != nil {
			logger.Error("Failed to mark outbox row sent", "outboxID", msg.ID, "error", err)
			continue
		}
		sent++
	}
	logger.Debug("Outbox batch dispatched", "dispatcherID", d.id, "claimed", len(claimed), "sent", sent)
	return sent, nil
}

func (d *Dispatcher) markFailed(ctx context.Context, msg domain.OutboxMessage, cause error) {
	errMsg := cause.Error()
	err := d.uow.Within(ctx, func(r *repository.Repos) error {
		if msg.Attempts >= d.cfg.MaxAttempts {
			return r.Outbox.MarkDead(ctx, msg.ID, errMsg)
		}
		return r.Outbox.MarkFailed(ctx, msg.ID, errMsg, d.now().UTC().Add(backoff(d.cfg.InitialBackoff, msg.Attempts)))
	})
	if err != nil {
		logger.Error("Failed to record outbox publish failure", "outboxID", msg.ID, "error", err)
		return
	}
	logger.Warn("Outbox publish failed", "outboxID", msg.ID, "recipientID", msg.RecipientID,
		"attempt", msg.Attempts, "error", cause)
}

// backoff doubles initial for every attempt after the first, capped at ten minutes.
func backoff(initial time.Duration, attempt int) time.Duration {
	wait := initial
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

// PurgeSent deletes SENT rows older than retention.
func (d *Dispatcher) PurgeSent(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := d.uow.Within(ctx, func(r *repository.Repos) error {
		var err error
		n, err = r.Outbox.PurgeSent(ctx, d.now().UTC().Add(-retention))
		return err
	})
	return n, err
}
