package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
)

// TransferKind names an internal allocation an actor can request.
type TransferKind string

const (
	TransferFundBranch           TransferKind = "fund_branch"
	TransferReclaimBranch        TransferKind = "reclaim_branch"
	TransferFundCar              TransferKind = "fund_car"
	TransferReclaimCar           TransferKind = "reclaim_car"
	TransferFundStationBranch    TransferKind = "fund_station_branch"
	TransferReclaimStationBranch TransferKind = "reclaim_station_branch"
)

// TransferRequest is a fully resolved balance movement between two holders.
type TransferRequest struct {
	Source      domain.HolderRef
	Destination domain.HolderRef
	Amount      decimal.Decimal
	Minimum     decimal.Decimal
	Family      domain.Family
	IsIncoming  bool
	Description string
	Method      domain.PaymentMethod
	IsInternal  bool
	ForWhat     domain.ForWhat
	Actor       domain.Actor
	Category    domain.NotificationCategory
}

type TransferService interface {
	// Transfer moves Amount from Source to Destination and records one ledger row.
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	// Allocate resolves kind against the actor's role and scope, then transfers.
	Allocate(ctx context.Context, actor domain.Actor, kind TransferKind, targetID int32, amount decimal.Decimal, description string) (*domain.Transaction, error)
}

// MovementRequest is an external deposit or withdrawal. CompanyID and
// StationID are only read for admin actors.
type MovementRequest struct {
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	Description string
	CompanyID   int32
	StationID   int32
}

type PendingUpdate struct {
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	Description string
}

type LedgerService interface {
	RequestDeposit(ctx context.Context, actor domain.Actor, req MovementRequest) (*domain.Transaction, error)
	RequestWithdrawal(ctx context.Context, actor domain.Actor, req MovementRequest) (*domain.Transaction, error)
	UpdatePending(ctx context.Context, actor domain.Actor, family domain.Family, id int64, upd PendingUpdate) (*domain.Transaction, error)
	Approve(ctx context.Context, actor domain.Actor, family domain.Family, id int64) (*domain.Transaction, error)
	Decline(ctx context.Context, actor domain.Actor, family domain.Family, id int64) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, actor domain.Actor, family domain.Family, id int64) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, actor domain.Actor, filter domain.TransactionFilter) ([]domain.Transaction, int32, error)
	GetBalance(ctx context.Context, actor domain.Actor, ref domain.HolderRef) (*domain.Holder, error)
}

type CreateOperationRequest struct {
	CarCode    string
	DriverCode string
	Kind       domain.ServiceKind
}

type AdvanceRequest struct {
	Meter      *int64
	MeterPhoto string
}

type CompleteFuelRequest struct {
	Amount    decimal.Decimal
	PumpPhoto string
}

type CompleteOtherRequest struct {
	ServiceID int32
	Cost      decimal.Decimal
}

type OperationService interface {
	Create(ctx context.Context, actor domain.Actor, req CreateOperationRequest) (*domain.OperationStart, error)
	Advance(ctx context.Context, actor domain.Actor, operationID int64, req AdvanceRequest) (*domain.CarOperation, error)
	CompleteFuel(ctx context.Context, actor domain.Actor, operationID int64, req CompleteFuelRequest) (*domain.CarOperation, error)
	CompleteOther(ctx context.Context, actor domain.Actor, operationID int64, req CompleteOtherRequest) (*domain.CarOperation, error)
	Abort(ctx context.Context, actor domain.Actor, operationID int64) error
	Get(ctx context.Context, actor domain.Actor, operationID int64) (*domain.CarOperation, error)
	ListActive(ctx context.Context, actor domain.Actor) ([]domain.CarOperation, error)

	// ExpireStalePending aborts pending operations created before now-olderThan.
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
	// ReleaseOrphanedLocks clears balance locks of cars with no active operation.
	ReleaseOrphanedLocks(ctx context.Context) (int, error)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID int32, notificationID int64) error
}

// CarLocker serializes work on one car across processes.
type CarLocker interface {
	Lock(ctx context.Context, carID int32) (unlock func(), err error)
}
