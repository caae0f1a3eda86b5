package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
)

// HolderRepository reads and writes the balance column of any wallet row.
type HolderRepository interface {
	Get(ctx context.Context, ref domain.HolderRef) (*domain.Holder, error)
	// GetForUpdate row-locks the holder until the surrounding unit of work ends.
	GetForUpdate(ctx context.Context, ref domain.HolderRef) (*domain.Holder, error)
	// UpdateBalance writes balance only if version still matches; a miss is a
	// ConcurrencyConflict.
	UpdateBalance(ctx context.Context, ref domain.HolderRef, balance decimal.Decimal, expectedVersion int64) error
}

type CompanyRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Company, error)
	GetBranch(ctx context.Context, id int32) (*domain.CompanyBranch, error)
}

type StationRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Station, error)
	GetBranch(ctx context.Context, id int32) (*domain.StationBranch, error)
	GetService(ctx context.Context, id int32) (*domain.Service, error)
	IsServiceAssigned(ctx context.Context, branchID, serviceID int32) (bool, error)
}

type CarRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Car, error)
	GetByCode(ctx context.Context, code string) (*domain.Car, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.Car, error)
	SetBalanceBlocked(ctx context.Context, id int32, blocked bool) error
	UpdateLastMeter(ctx context.Context, id int32, meter int64) error
	// ListOrphanedBlocked returns blocked cars with no non-terminal operation.
	ListOrphanedBlocked(ctx context.Context) ([]int32, error)
}

type DriverRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Driver, error)
	GetByCode(ctx context.Context, code string) (*domain.Driver, error)
}

// UserFilter selects users by role and scope; zero fields are ignored.
type UserFilter struct {
	Roles           []domain.Role
	CompanyID       int32
	CompanyBranchID int32
	StationID       int32
	StationBranchID int32
}

type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	ListIDs(ctx context.Context, filter UserFilter) ([]int32, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, family domain.Family, id int64) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, family domain.Family, id int64) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
	ReferenceExists(ctx context.Context, family domain.Family, code string) (bool, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int32, error)
}

type OperationRepository interface {
	Create(ctx context.Context, op *domain.CarOperation) error
	GetByID(ctx context.Context, id int64) (*domain.CarOperation, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.CarOperation, error)
	Update(ctx context.Context, op *domain.CarOperation) error
	Delete(ctx context.Context, id int64) error
	// GetActiveByCar returns the pending or in-progress operation of a car, or NotFound.
	GetActiveByCar(ctx context.Context, carID int32) (*domain.CarOperation, error)
	CountCompletedFuelSince(ctx context.Context, carID int32, since time.Time) (int, error)
	ListActiveByStationBranch(ctx context.Context, branchID int32) ([]domain.CarOperation, error)
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.CarOperation, error)
}

// ClaimOptions drives one outbox claim round.
type ClaimOptions struct {
	DispatcherID string
	BatchSize    int
	Now          time.Time
	StaleBefore  time.Time
	MaxAttempts  int
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, msgs []domain.OutboxMessage) error
	// Claim locks ready rows with SKIP LOCKED, marks them PROCESSING and
	// moves rows past MaxAttempts to DEAD. Only PROCESSING rows are returned.
	Claim(ctx context.Context, opts ClaimOptions) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error
	MarkDead(ctx context.Context, id int64, errMsg string) error
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id int64, userID int32) error
}

// Repos is the set of repositories bound to one unit of work.
type Repos struct {
	Holders       HolderRepository
	Companies     CompanyRepository
	Stations      StationRepository
	Cars          CarRepository
	Drivers       DriverRepository
	Users         UserRepository
	Transactions  TransactionRepository
	Operations    OperationRepository
	Outbox        OutboxRepository
	Notifications NotificationRepository
}

// UnitOfWork runs fn atomically: every write made through r is committed
// together when fn returns nil and discarded otherwise.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(r *Repos) error) error
}
