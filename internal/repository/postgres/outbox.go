package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

type outboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msgs []domain.OutboxMessage) error {
	query := `INSERT INTO notification_outbox (recipient_id, title, description, category, attributes, status)
	          VALUES ($1, $2, $3, $4, $5, 'PENDING') RETURNING id, created_at`
	for i := range msgs {
		attrs, err := json.Marshal(msgs[i].Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox attributes: %w", err)
		}
		logger.DatabaseCall("INSERT", "notification_outbox", "recipientID", msgs[i].RecipientID)
		err = r.db.QueryRowContext(ctx, query, msgs[i].RecipientID, msgs[i].Title, msgs[i].Description,
			msgs[i].Category, attrs).Scan(&msgs[i].ID, &msgs[i].CreatedAt)
		if err != nil {
			logger.DatabaseResult("INSERT", 0, err, "recipientID", msgs[i].RecipientID)
			return mapError(err)
		}
		msgs[i].Status = domain.OutboxPending
	}
	return nil
}

// Claim must run inside a unit of work so the row locks hold until commit.
func (r *outboxRepository) Claim(ctx context.Context, opts repository.ClaimOptions) ([]domain.OutboxMessage, error) {
	query := `SELECT id, recipient_id, title, description, category, attributes, status, attempts, created_at
		FROM notification_outbox
		WHERE (status IN ('PENDING', 'FAILED') AND (next_attempt_at IS NULL OR next_attempt_at <= $1))
		   OR (status = 'PROCESSING' AND locked_at IS NOT NULL AND locked_at <= $2)
		ORDER BY id
		LIMIT $3
		FOR UPDATE SKIP LOCKED`
	rows, err := r.db.QueryContext(ctx, query, opts.Now, opts.StaleBefore, opts.BatchSize)
	if err != nil {
		return nil, mapError(err)
	}
	var candidates []domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		var attrs []byte
		if err := rows.Scan(&m.ID, &m.RecipientID, &m.Title, &m.Description, &m.Category, &attrs,
			&m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &m.Attributes); err != nil {
				rows.Close()
				return nil, err
			}
		}
		candidates = append(candidates, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	claimed := make([]domain.OutboxMessage, 0, len(candidates))
	for _, m := range candidates {
		if opts.MaxAttempts > 0 && m.Attempts >= opts.MaxAttempts {
			if err := r.MarkDead(ctx, m.ID, fmt.Sprintf("max publish attempts exceeded (%d)", opts.MaxAttempts)); err != nil {
				return nil, err
			}
			continue
		}
		_, err := r.db.ExecContext(ctx, `UPDATE notification_outbox
			SET status = 'PROCESSING', locked_at = $1, locked_by = $2, attempts = attempts + 1,
			    last_error = NULL, next_attempt_at = NULL
			WHERE id = $3`, opts.Now, opts.DispatcherID, m.ID)
		if err != nil {
			return nil, mapError(err)
		}
		now := opts.Now
		m.Status = domain.OutboxProcessing
		m.Attempts++
		m.LockedAt = &now
		m.LockedBy = opts.DispatcherID
		claimed = append(claimed, m)
	}
	logger.DatabaseResult("CLAIM", int64(len(claimed)), nil, "dispatcherID", opts.DispatcherID)
	return claimed, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notification_outbox
		SET status = 'SENT', sent_at = $1, locked_at = NULL, locked_by = NULL, next_attempt_at = NULL
		WHERE id = $2`, at, id)
	return mapError(err)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notification_outbox
		SET status = 'FAILED', last_error = $1, next_attempt_at = $2, locked_at = NULL, locked_by = NULL
		WHERE id = $3`, errMsg, nextAttempt, id)
	return mapError(err)
}

func (r *outboxRepository) MarkDead(ctx context.Context, id int64, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notification_outbox
		SET status = 'DEAD', last_error = $1, next_attempt_at = NULL, locked_at = NULL, locked_by = NULL
		WHERE id = $2`, errMsg, id)
	return mapError(err)
}

func (r *outboxRepository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_outbox WHERE status = 'SENT' AND sent_at < $1`, before)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}
