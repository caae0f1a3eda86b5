package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL backed repository.UnitOfWork.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func newRepos(q DBTX) *repository.Repos {
	return &repository.Repos{
		Holders:       NewHolderRepository(q),
		Companies:     NewCompanyRepository(q),
		Stations:      NewStationRepository(q),
		Cars:          NewCarRepository(q),
		Drivers:       NewDriverRepository(q),
		Users:         NewUserRepository(q),
		Transactions:  NewTransactionRepository(q),
		Operations:    NewOperationRepository(q),
		Outbox:        NewOutboxRepository(q),
		Notifications: NewNotificationRepository(q),
	}
}

// Repos returns repositories bound to the pool, outside any transaction.
func (s *Store) Repos() *repository.Repos {
	return newRepos(s.db)
}

// Within runs fn in a READ COMMITTED transaction. Balance rows are protected
// by explicit row locks and version checks rather than the isolation level.
func (s *Store) Within(ctx context.Context, fn func(r *repository.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logger.Warn("Rollback failed", "error", rbErr)
			}
		}
	}()

	if err := fn(newRepos(tx)); err != nil {
		return mapError(err)
	}

	err = tx.Commit()
	tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}
