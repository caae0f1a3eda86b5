package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

type transferService struct {
	units unitRunner
	refs  refCodes
	now   func() time.Time
}

func NewTransferService(uow repository.UnitOfWork, retry RetryPolicy) TransferService {
	return &transferService{
		units: unitRunner{uow: uow, retry: retry},
		refs:  newRefCodes(),
		now:   time.Now,
	}
}

func (s *transferService) Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	logger.EnterMethod("transferService.Transfer", "source", req.Source.String(), "destination", req.Destination.String(),
		"amount", req.Amount.String())

	var tx *domain.Transaction
	err := s.units.run(ctx, "transferService.Transfer", func(r *repository.Repos) error {
		var err error
		tx, err = s.transfer(ctx, r, req)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("transferService.Transfer", err, "source", req.Source.String(), "destination", req.Destination.String())
		return nil, err
	}

	logger.Settlement("transfer", "transactionID", tx.ID, "reference", tx.ReferenceCode, "amount", money(tx.Amount))
	logger.ExitMethod("transferService.Transfer", "transactionID", tx.ID)
	return tx, nil
}

func (s *transferService) Allocate(ctx context.Context, actor domain.Actor, kind TransferKind, targetID int32, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	logger.EnterMethod("transferService.Allocate", "actorID", actor.UserID, "role", actor.Role, "kind", kind, "targetID", targetID)

	var tx *domain.Transaction
	err := s.units.run(ctx, "transferService.Allocate", func(r *repository.Repos) error {
		req, err := resolveAllocation(ctx, r, actor, kind, targetID)
		if err != nil {
			return err
		}
		req.Amount = amount
		req.Description = description
		tx, err = s.transfer(ctx, r, req)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("transferService.Allocate", err, "actorID", actor.UserID, "kind", kind)
		return nil, err
	}

	logger.Settlement(string(kind), "transactionID", tx.ID, "reference", tx.ReferenceCode, "amount", money(tx.Amount))
	logger.ExitMethod("transferService.Allocate", "transactionID", tx.ID)
	return tx, nil
}

// transfer is the engine body; it must run inside a unit of work.
func (s *transferService) transfer(ctx context.Context, r *repository.Repos, req TransferRequest) (*domain.Transaction, error) {
	amount, err := validAmount(req.Amount, req.Minimum)
	if err != nil {
		return nil, err
	}
	if req.Source == req.Destination {
		return nil, domain.Fail(domain.CodeSameHolder)
	}
	if !req.Source.Type.Valid() || !req.Destination.Type.Valid() {
		return nil, domain.Fail(domain.CodeHolderNotFound)
	}
	family := req.Family
	if family == "" {
		family = req.Destination.Type.Family()
	}
	if req.Source.Type.Family() != family || req.Destination.Type.Family() != family {
		return nil, fmt.Errorf("transfer %s -> %s crosses ledger families", req.Source, req.Destination)
	}
	method := req.Method
	if method == "" {
		method = domain.MethodInternal
	}

	locked, err := lockHolders(ctx, r.Holders, req.Source, req.Destination)
	if err != nil {
		return nil, err
	}
	src, dst := locked[req.Source], locked[req.Destination]
	if src.BalanceBlocked || dst.BalanceBlocked {
		return nil, domain.Fail(domain.CodeCarBalanceBlocked)
	}
	if !src.CanCover(amount) {
		return nil, domain.Fail(domain.CodeNotEnoughBalance)
	}

	if err := applyDelta(ctx, r.Holders, src, amount.Neg()); err != nil {
		return nil, err
	}
	if err := applyDelta(ctx, r.Holders, dst, amount); err != nil {
		return nil, err
	}

	code, err := s.refs.next(ctx, r, family, req.IsInternal)
	if err != nil {
		return nil, err
	}
	approvedAt := s.now()
	tx := &domain.Transaction{
		Family:        family,
		Amount:        amount,
		IsIncoming:    req.IsIncoming,
		Status:        domain.TransactionStatusApproved,
		Method:        method,
		ReferenceCode: code,
		Description:   req.Description,
		IsInternal:    req.IsInternal,
		ForWhat:       req.ForWhat,
		CreatedBy:     req.Actor.UserID,
		UpdatedBy:     req.Actor.UserID,
		ApprovedAt:    &approvedAt,
	}
	applyScope(tx, src, dst)
	if err := r.Transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	recipients, err := stakeholders(ctx, r.Users, dst, req.Actor.UserID)
	if err != nil {
		return nil, err
	}
	category := req.Category
	if category == "" {
		category = domain.CategoryMoney
	}
	if err := enqueue(ctx, r.Outbox, recipients, transferNotice(tx, src, dst, category)); err != nil {
		return nil, err
	}
	return tx, nil
}

// validAmount rounds amount to money precision and enforces positivity and minimum.
func validAmount(amount, minimum decimal.Decimal) (decimal.Decimal, error) {
	amount = domain.Round(amount)
	if !amount.IsPositive() {
		return decimal.Zero, domain.FailField(domain.CodeInvalidAmount, "amount")
	}
	if amount.LessThan(minimum) {
		return decimal.Zero, domain.FailField(domain.CodeAmountBelowMinimum, "amount")
	}
	return amount, nil
}

// lockHolders row-locks refs in rank order so that two units of work touching
// the same holders never wait on each other in a cycle.
func lockHolders(ctx context.Context, holders repository.HolderRepository, refs ...domain.HolderRef) (map[domain.HolderRef]*domain.Holder, error) {
	ordered := append([]domain.HolderRef(nil), refs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	locked := make(map[domain.HolderRef]*domain.Holder, len(ordered))
	for _, ref := range ordered {
		if _, ok := locked[ref]; ok {
			continue
		}
		h, err := holders.GetForUpdate(ctx, ref)
		if err != nil {
			return nil, err
		}
		locked[ref] = h
	}
	return locked, nil
}

// applyDelta writes h.Balance+delta guarded by h's version and refreshes h.
func applyDelta(ctx context.Context, holders repository.HolderRepository, h *domain.Holder, delta decimal.Decimal) error {
	next := domain.Round(h.Balance.Add(delta))
	if next.IsNegative() {
		return domain.Fail(domain.CodeNotEnoughBalance)
	}
	if err := holders.UpdateBalance(ctx, h.Ref, next, h.Version); err != nil {
		return err
	}
	h.Balance = next
	h.Version++
	return nil
}

// applyScope copies organization ids of the involved holders onto tx.
func applyScope(tx *domain.Transaction, holders ...*domain.Holder) {
	for _, h := range holders {
		if h.CompanyID != 0 {
			tx.CompanyID = h.CompanyID
		}
		if h.CompanyBranchID != 0 {
			tx.CompanyBranchID = h.CompanyBranchID
		}
		if h.StationID != 0 {
			tx.StationID = h.StationID
		}
		if h.StationBranchID != 0 {
			tx.StationBranchID = h.StationBranchID
		}
		if h.Ref.Type == domain.HolderCar {
			tx.CarID = h.Ref.ID
		}
	}
}
