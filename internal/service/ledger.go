package service

import (
	"context"
	"fmt"
	"time"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

type ledgerService struct {
	units unitRunner
	refs  refCodes
	now   func() time.Time
}

func NewLedgerService(uow repository.UnitOfWork, retry RetryPolicy) LedgerService {
	return &ledgerService{
		units: unitRunner{uow: uow, retry: retry},
		refs:  newRefCodes(),
		now:   time.Now,
	}
}

func (s *ledgerService) RequestDeposit(ctx context.Context, actor domain.Actor, req MovementRequest) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.RequestDeposit", "actorID", actor.UserID, "amount", req.Amount.String())

	var subject domain.HolderRef
	switch {
	case actor.Role == domain.RoleCompanyOwner && actor.CompanyID != 0:
		subject = domain.CompanyRef(actor.CompanyID)
	case actor.Role == domain.RoleStationOwner && actor.StationID != 0:
		subject = domain.StationRef(actor.StationID)
	case actor.IsAdmin():
		ref, err := adminSubject(req)
		if err != nil {
			return nil, err
		}
		subject = ref
	default:
		return nil, domain.Fail(domain.CodeForbidden)
	}

	tx, err := s.record(ctx, actor, subject, true, req)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.RequestDeposit", err, "actorID", actor.UserID)
		return nil, err
	}
	logger.ExitMethod("ledgerService.RequestDeposit", "transactionID", tx.ID, "status", tx.Status)
	return tx, nil
}

func (s *ledgerService) RequestWithdrawal(ctx context.Context, actor domain.Actor, req MovementRequest) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.RequestWithdrawal", "actorID", actor.UserID, "amount", req.Amount.String())

	var subject domain.HolderRef
	switch {
	case actor.Role == domain.RoleStationOwner && actor.StationID != 0:
		subject = domain.StationRef(actor.StationID)
	case actor.IsAdmin() && req.StationID != 0:
		subject = domain.StationRef(req.StationID)
	default:
		return nil, domain.Fail(domain.CodeForbidden)
	}

	tx, err := s.record(ctx, actor, subject, false, req)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.RequestWithdrawal", err, "actorID", actor.UserID)
		return nil, err
	}
	logger.ExitMethod("ledgerService.RequestWithdrawal", "transactionID", tx.ID, "status", tx.Status)
	return tx, nil
}

func adminSubject(req MovementRequest) (domain.HolderRef, error) {
	switch {
	case req.CompanyID != 0 && req.StationID == 0:
		return domain.CompanyRef(req.CompanyID), nil
	case req.StationID != 0 && req.CompanyID == 0:
		return domain.StationRef(req.StationID), nil
	}
	return domain.HolderRef{}, domain.FailField(domain.CodeHolderNotFound, "company_id")
}

// record writes an external movement. Admin requests are settled at once;
// everything else waits in PENDING for an admin decision.
func (s *ledgerService) record(ctx context.Context, actor domain.Actor, subject domain.HolderRef, incoming bool, req MovementRequest) (*domain.Transaction, error) {
	amount, err := validAmount(req.Amount, domain.MinBranchTransfer)
	if err != nil {
		return nil, err
	}
	if !req.Method.ExternalMethod() {
		return nil, domain.FailField(domain.CodeInvalidMethod, "method")
	}

	var tx *domain.Transaction
	err = s.units.run(ctx, "ledgerService.record", func(r *repository.Repos) error {
		settle := actor.IsAdmin()
		var h *domain.Holder
		var err error
		if settle {
			h, err = r.Holders.GetForUpdate(ctx, subject)
		} else {
			h, err = r.Holders.Get(ctx, subject)
		}
		if err != nil {
			return err
		}
		if !incoming && !h.CanCover(amount) {
			return domain.Fail(domain.CodeNotEnoughBalance)
		}

		code, err := s.refs.next(ctx, r, subject.Type.Family(), false)
		if err != nil {
			return err
		}
		tx = &domain.Transaction{
			Family:        subject.Type.Family(),
			Amount:        amount,
			IsIncoming:    incoming,
			Status:        domain.TransactionStatusPending,
			Method:        req.Method,
			ReferenceCode: code,
			Description:   req.Description,
			CreatedBy:     actor.UserID,
		}
		applyScope(tx, h)

		if settle {
			delta := amount
			if !incoming {
				delta = amount.Neg()
			}
			if err := applyDelta(ctx, r.Holders, h, delta); err != nil {
				return err
			}
			now := s.now()
			tx.Status = domain.TransactionStatusApproved
			tx.ApprovedAt = &now
			tx.UpdatedBy = actor.UserID
		}
		if err := r.Transactions.Create(ctx, tx); err != nil {
			return fmt.Errorf("failed to record movement: %w", err)
		}

		recipients, err := stakeholders(ctx, r.Users, h, actor.UserID)
		if err != nil {
			return err
		}
		n := depositRequestNotice(tx, h)
		if settle {
			n = approvalNotice(tx, h)
		} else {
			admins, err := r.Users.ListIDs(ctx, repository.UserFilter{Roles: []domain.Role{domain.RoleAdmin}})
			if err != nil {
				return err
			}
			recipients = mergeIDs(recipients, admins)
		}
		return enqueue(ctx, r.Outbox, recipients, n)
	})
	if err != nil {
		return nil, err
	}
	if tx.Status == domain.TransactionStatusApproved {
		logger.Settlement("external_movement", "transactionID", tx.ID, "reference", tx.ReferenceCode, "amount", money(tx.Amount))
	}
	return tx, nil
}

func (s *ledgerService) UpdatePending(ctx context.Context, actor domain.Actor, family domain.Family, id int64, upd PendingUpdate) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.UpdatePending", "actorID", actor.UserID, "family", family, "transactionID", id)

	amount, err := validAmount(upd.Amount, domain.MinBranchTransfer)
	if err != nil {
		return nil, err
	}
	if !upd.Method.ExternalMethod() {
		return nil, domain.FailField(domain.CodeInvalidMethod, "method")
	}

	var tx *domain.Transaction
	err = s.units.run(ctx, "ledgerService.UpdatePending", func(r *repository.Repos) error {
		var err error
		tx, err = r.Transactions.GetForUpdate(ctx, family, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && tx.CreatedBy != actor.UserID {
			return domain.Fail(domain.CodeForbidden)
		}
		if !tx.IsPending() {
			return domain.Fail(domain.CodeTransactionNotPending)
		}
		tx.Amount = amount
		tx.Method = upd.Method
		tx.Description = upd.Description
		tx.UpdatedBy = actor.UserID
		return r.Transactions.Update(ctx, tx)
	})
	if err != nil {
		logger.ExitMethodWithError("ledgerService.UpdatePending", err, "transactionID", id)
		return nil, err
	}
	logger.ExitMethod("ledgerService.UpdatePending", "transactionID", id)
	return tx, nil
}

func (s *ledgerService) Approve(ctx context.Context, actor domain.Actor, family domain.Family, id int64) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.Approve", "actorID", actor.UserID, "family", family, "transactionID", id)
	if !actor.IsAdmin() {
		return nil, domain.Fail(domain.CodeForbidden)
	}

	var tx *domain.Transaction
	err := s.units.run(ctx, "ledgerService.Approve", func(r *repository.Repos) error {
		var err error
		tx, err = r.Transactions.GetForUpdate(ctx, family, id)
		if err != nil {
			return err
		}
		if !tx.IsPending() {
			return domain.Fail(domain.CodeTransactionNotPending)
		}

		h, err := r.Holders.GetForUpdate(ctx, tx.Subject())
		if err != nil {
			return err
		}
		delta := tx.Amount
		if !tx.IsIncoming {
			if !h.CanCover(tx.Amount) {
				return domain.Fail(domain.CodeNotEnoughBalance)
			}
			delta = tx.Amount.Neg()
		}
		if err := applyDelta(ctx, r.Holders, h, delta); err != nil {
			return err
		}

		now := s.now()
		tx.Status = domain.TransactionStatusApproved
		tx.ApprovedAt = &now
		tx.UpdatedBy = actor.UserID
		if err := r.Transactions.Update(ctx, tx); err != nil {
			return err
		}

		recipients, err := stakeholders(ctx, r.Users, h, tx.CreatedBy)
		if err != nil {
			return err
		}
		return enqueue(ctx, r.Outbox, recipients, approvalNotice(tx, h))
	})
	if err != nil {
		logger.ExitMethodWithError("ledgerService.Approve", err, "transactionID", id)
		return nil, err
	}
	logger.Settlement("approval", "transactionID", tx.ID, "reference", tx.ReferenceCode, "amount", money(tx.Amount))
	logger.ExitMethod("ledgerService.Approve", "transactionID", id)
	return tx, nil
}

func (s *ledgerService) Decline(ctx context.Context, actor domain.Actor, family domain.Family, id int64) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.Decline", "actorID", actor.UserID, "family", family, "transactionID", id)
	if !actor.IsAdmin() {
		return nil, domain.Fail(domain.CodeForbidden)
	}

	var tx *domain.Transaction
	err := s.units.run(ctx, "ledgerService.Decline", func(r *repository.Repos) error {
		var err error
		tx, err = r.Transactions.GetForUpdate(ctx, family, id)
		if err != nil {
			return err
		}
		if !tx.IsPending() {
			return domain.Fail(domain.CodeTransactionNotPending)
		}
		tx.Status = domain.TransactionStatusDeclined
		tx.UpdatedBy = actor.UserID
		if err := r.Transactions.Update(ctx, tx); err != nil {
			return err
		}

		h, err := r.Holders.Get(ctx, tx.Subject())
		if err != nil {
			return err
		}
		recipients, err := stakeholders(ctx, r.Users, h, tx.CreatedBy)
		if err != nil {
			return err
		}
		return enqueue(ctx, r.Outbox, recipients, declineNotice(tx))
	})
	if err != nil {
		logger.ExitMethodWithError("ledgerService.Decline", err, "transactionID", id)
		return nil, err
	}
	logger.ExitMethod("ledgerService.Decline", "transactionID", id)
	return tx, nil
}

func (s *ledgerService) GetTransaction(ctx context.Context, actor domain.Actor, family domain.Family, id int64) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		tx, err = r.Transactions.GetByID(ctx, family, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	scope := domain.Holder{
		CompanyID: tx.CompanyID, CompanyBranchID: tx.CompanyBranchID,
		StationID: tx.StationID, StationBranchID: tx.StationBranchID,
	}
	if !canView(actor, &scope) {
		return nil, domain.Fail(domain.CodeTransactionNotFound)
	}
	return tx, nil
}

func (s *ledgerService) ListTransactions(ctx context.Context, actor domain.Actor, filter domain.TransactionFilter) ([]domain.Transaction, int32, error) {
	if err := scopeFilter(actor, &filter); err != nil {
		return nil, 0, err
	}
	filter.Normalize()

	var txs []domain.Transaction
	var total int32
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		txs, total, err = r.Transactions.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (s *ledgerService) GetBalance(ctx context.Context, actor domain.Actor, ref domain.HolderRef) (*domain.Holder, error) {
	var h *domain.Holder
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		h, err = r.Holders.Get(ctx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canView(actor, h) {
		return nil, domain.Fail(domain.CodeHolderNotFound)
	}
	return h, nil
}

// canView reports whether actor's scope covers the organization ids in scope.
func canView(a domain.Actor, scope *domain.Holder) bool {
	switch a.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCompanyOwner:
		return a.CompanyID != 0 && scope.CompanyID == a.CompanyID
	case domain.RoleCompanyBranchManager:
		return a.CompanyBranchID != 0 && scope.CompanyBranchID == a.CompanyBranchID
	case domain.RoleStationOwner:
		return a.StationID != 0 && scope.StationID == a.StationID
	case domain.RoleStationBranchManager, domain.RoleWorker:
		return a.StationBranchID != 0 && scope.StationBranchID == a.StationBranchID
	}
	return false
}

// scopeFilter pins a listing to the family and organization ids of the actor.
func scopeFilter(a domain.Actor, f *domain.TransactionFilter) error {
	want := domain.FamilyCompany
	switch a.Role {
	case domain.RoleAdmin:
		if f.Family == "" {
			f.Family = domain.FamilyCompany
		}
		if !f.Family.Valid() {
			return domain.Fail(domain.CodeForbidden)
		}
		return nil
	case domain.RoleCompanyOwner:
		f.CompanyID = a.CompanyID
	case domain.RoleCompanyBranchManager:
		f.CompanyID = a.CompanyID
		f.CompanyBranchID = a.CompanyBranchID
	case domain.RoleStationOwner:
		want = domain.FamilyStation
		f.StationID = a.StationID
	case domain.RoleStationBranchManager:
		want = domain.FamilyStation
		f.StationID = a.StationID
		f.StationBranchID = a.StationBranchID
	default:
		return domain.Fail(domain.CodeForbidden)
	}
	if f.CompanyID == 0 && f.StationID == 0 {
		return domain.Fail(domain.CodeForbidden)
	}
	if f.Family != "" && f.Family != want {
		return domain.Fail(domain.CodeForbidden)
	}
	f.Family = want
	return nil
}

func mergeIDs(a, b []int32) []int32 {
	seen := make(map[int32]bool, len(a)+len(b))
	out := make([]int32, 0, len(a)+len(b))
	for _, ids := range [][]int32{a, b} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
