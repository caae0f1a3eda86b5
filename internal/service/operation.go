package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
	"khazna-backend/internal/utils"
)

// OperationConfig carries the policy knobs of the operation state machine.
type OperationConfig struct {
	CompletionWindow time.Duration
	Location         *time.Location
	Retry            RetryPolicy
}

type operationService struct {
	units  unitRunner
	refs   refCodes
	locker CarLocker
	cfg    OperationConfig
	now    func() time.Time
}

func NewOperationService(uow repository.UnitOfWork, locker CarLocker, cfg OperationConfig) OperationService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CompletionWindow <= 0 {
		cfg.CompletionWindow = 70 * time.Second
	}
	if locker == nil {
		locker = noopLocker{}
	}
	return &operationService{
		units:  unitRunner{uow: uow, retry: cfg.Retry},
		refs:   newRefCodes(),
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
	}
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, int32) (func(), error) { return func() {}, nil }

func (s *operationService) Create(ctx context.Context, actor domain.Actor, req CreateOperationRequest) (*domain.OperationStart, error) {
	logger.EnterMethod("operationService.Create", "workerID", actor.UserID, "carCode", req.CarCode, "kind", req.Kind)

	if actor.Role != domain.RoleWorker || actor.StationBranchID == 0 {
		return nil, domain.Fail(domain.CodeForbidden)
	}
	if req.Kind != domain.ServiceKindFuel && req.Kind != domain.ServiceKindOther {
		return nil, domain.FailField(domain.CodeInvalidServiceKind, "kind")
	}

	var carID int32
	err := s.units.read(ctx, func(r *repository.Repos) error {
		car, err := r.Cars.GetByCode(ctx, req.CarCode)
		if err != nil {
			return err
		}
		carID = car.ID
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.Create", err, "carCode", req.CarCode)
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, carID)
	if err != nil {
		logger.ExitMethodWithError("operationService.Create", err, "carID", carID)
		return nil, err
	}
	defer unlock()

	var start *domain.OperationStart
	err = s.units.run(ctx, "operationService.Create", func(r *repository.Repos) error {
		var err error
		start, err = s.create(ctx, r, actor, carID, req)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.Create", err, "carID", carID)
		return nil, err
	}
	logger.ExitMethod("operationService.Create", "operationID", start.Operation.ID, "available", start.AvailableQuantity.String())
	return start, nil
}

func (s *operationService) create(ctx context.Context, r *repository.Repos, actor domain.Actor, carID int32, req CreateOperationRequest) (*domain.OperationStart, error) {
	branch, err := r.Stations.GetBranch(ctx, actor.StationBranchID)
	if err != nil {
		return nil, err
	}
	if !branch.IsActive {
		return nil, domain.Fail(domain.CodeStationBranchInactive)
	}

	car, err := r.Cars.GetForUpdate(ctx, carID)
	if err != nil {
		return nil, err
	}
	if !car.IsActive {
		return nil, domain.Fail(domain.CodeCarInactive)
	}
	company, err := r.Companies.GetByID(ctx, car.CompanyID)
	if err != nil {
		return nil, err
	}
	if !company.IsActive {
		return nil, domain.Fail(domain.CodeCompanyInactive)
	}

	driver, err := r.Drivers.GetByCode(ctx, req.DriverCode)
	if err != nil {
		return nil, err
	}
	if !driver.IsActive {
		return nil, domain.Fail(domain.CodeDriverInactive)
	}
	if driver.CompanyID != car.CompanyID {
		return nil, domain.Fail(domain.CodeDriverCompanyMismatch)
	}

	if car.BalanceUpdateBlocked {
		return nil, domain.Fail(domain.CodeCarInProgress)
	}
	if _, err := r.Operations.GetActiveByCar(ctx, car.ID); err == nil {
		return nil, domain.Fail(domain.CodeCarInProgress)
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	now := s.now().In(s.cfg.Location)
	if !car.AllowedOn(now) {
		return nil, domain.Fail(domain.CodeDayNotAllowed)
	}

	op := &domain.CarOperation{
		Status:          domain.OperationPending,
		Kind:            req.Kind,
		CarID:           car.ID,
		DriverID:        driver.ID,
		StationBranchID: branch.ID,
		WorkerID:        actor.UserID,
		Amount:          decimal.Zero,
		Cost:            decimal.Zero,
		CompanyCost:     decimal.Zero,
		StationCost:     decimal.Zero,
		Profits:         decimal.Zero,
	}
	start := &domain.OperationStart{Operation: op, AvailableQuantity: decimal.Zero, UnitCost: decimal.Zero}

	if req.Kind == domain.ServiceKindFuel {
		if car.MaxDailyFuelOperations > 0 {
			dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
			done, err := r.Operations.CountCompletedFuelSince(ctx, car.ID, dayStart)
			if err != nil {
				return nil, err
			}
			if done >= int(car.MaxDailyFuelOperations) {
				return nil, domain.Fail(domain.CodeDailyLimitExceeded)
			}
		}
		svc, unit, err := s.fuelUnit(ctx, r, car)
		if err != nil {
			return nil, err
		}
		if car.Balance.LessThan(unit) {
			return nil, domain.Fail(domain.CodeNotEnoughBalance)
		}
		op.ServiceID = svc.ID
		start.UnitCost = unit
		start.AvailableQuantity = utils.AvailableQuantity(car.QuantityCap(), car.Balance, unit)
		// At least one unit must be sellable before the car is blocked.
		if start.AvailableQuantity.LessThan(decimal.NewFromInt(1)) {
			return nil, domain.Fail(domain.CodeQuantityExceedsMaximum)
		}
	}

	if err := r.Operations.Create(ctx, op); err != nil {
		return nil, err
	}
	if err := r.Cars.SetBalanceBlocked(ctx, car.ID, true); err != nil {
		return nil, err
	}
	return start, nil
}

// fuelUnit returns the car's fuel service and its per-unit price including the
// company branch fee.
func (s *operationService) fuelUnit(ctx context.Context, r *repository.Repos, car *domain.Car) (*domain.Service, decimal.Decimal, error) {
	svc, err := r.Stations.GetService(ctx, car.FuelServiceID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if svc.Kind != domain.ServiceKindFuel {
		return nil, decimal.Zero, domain.Fail(domain.CodeInvalidServiceKind)
	}
	branch, err := r.Companies.GetBranch(ctx, car.CompanyBranchID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return svc, utils.UnitCostWithFee(svc.Cost, branch.FeePercent), nil
}

func (s *operationService) Advance(ctx context.Context, actor domain.Actor, operationID int64, req AdvanceRequest) (*domain.CarOperation, error) {
	logger.EnterMethod("operationService.Advance", "workerID", actor.UserID, "operationID", operationID)

	var op *domain.CarOperation
	err := s.units.run(ctx, "operationService.Advance", func(r *repository.Repos) error {
		var err error
		op, err = s.lockForWorker(ctx, r, actor, operationID)
		if err != nil {
			return err
		}
		if op.Kind != domain.ServiceKindFuel {
			return domain.Fail(domain.CodeInvalidServiceKind)
		}
		if op.Status != domain.OperationPending {
			return domain.Fail(domain.CodeInvalidOperationState)
		}

		car, err := r.Cars.GetByID(ctx, op.CarID)
		if err != nil {
			return err
		}
		if car.OdometerTracked {
			if req.Meter == nil {
				return domain.FailField(domain.CodeMeterRequired, "meter")
			}
			if req.MeterPhoto == "" {
				return domain.FailField(domain.CodeMeterPhotoRequired, "meter_photo")
			}
			if *req.Meter < car.LastMeter {
				return domain.FailField(domain.CodeMeterRegression, "meter")
			}
			first, last := car.LastMeter, *req.Meter
			op.FirstCarMeter = &first
			op.LastCarMeter = &last
			op.MeterPhoto = req.MeterPhoto
		}

		now := s.now()
		op.StartTime = &now
		op.Status = domain.OperationInProgress
		return r.Operations.Update(ctx, op)
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.Advance", err, "operationID", operationID)
		return nil, err
	}
	logger.ExitMethod("operationService.Advance", "operationID", operationID)
	return op, nil
}

func (s *operationService) CompleteFuel(ctx context.Context, actor domain.Actor, operationID int64, req CompleteFuelRequest) (*domain.CarOperation, error) {
	logger.EnterMethod("operationService.CompleteFuel", "workerID", actor.UserID, "operationID", operationID, "amount", req.Amount.String())

	var op *domain.CarOperation
	err := s.units.run(ctx, "operationService.CompleteFuel", func(r *repository.Repos) error {
		var err error
		op, err = s.lockForWorker(ctx, r, actor, operationID)
		if err != nil {
			return err
		}
		if op.Kind != domain.ServiceKindFuel {
			return domain.Fail(domain.CodeInvalidServiceKind)
		}
		if op.Status != domain.OperationInProgress || op.StartTime == nil {
			return domain.Fail(domain.CodeOperationNotStarted)
		}
		now := s.now()
		if now.Sub(*op.StartTime) > s.cfg.CompletionWindow {
			return domain.Fail(domain.CodeTimeWindowExceeded)
		}
		if req.PumpPhoto == "" {
			return domain.FailField(domain.CodePumpPhotoRequired, "pump_photo")
		}
		amount := domain.Round(req.Amount)
		if !amount.IsPositive() {
			return domain.FailField(domain.CodeInvalidAmount, "amount")
		}

		car, err := r.Cars.GetForUpdate(ctx, op.CarID)
		if err != nil {
			return err
		}
		svc, unit, err := s.fuelUnit(ctx, r, car)
		if err != nil {
			return err
		}
		if amount.GreaterThan(utils.AvailableQuantity(car.QuantityCap(), car.Balance, unit)) {
			return domain.FailField(domain.CodeQuantityExceedsMaximum, "amount")
		}
		companyBranch, err := r.Companies.GetBranch(ctx, car.CompanyBranchID)
		if err != nil {
			return err
		}
		stationBranch, err := r.Stations.GetBranch(ctx, op.StationBranchID)
		if err != nil {
			return err
		}

		figures := utils.FuelFigures(amount, svc.Cost, companyBranch.FeePercent, stationBranch.FeePercent)
		op.Amount = amount
		op.FuelConsumptionRate = utils.ConsumptionRate(op.FirstCarMeter, op.LastCarMeter, amount)
		op.PumpPhoto = req.PumpPhoto
		if err := s.settle(ctx, r, actor, op, car, svc, stationBranch, figures, now); err != nil {
			return err
		}
		if op.LastCarMeter != nil {
			return r.Cars.UpdateLastMeter(ctx, car.ID, *op.LastCarMeter)
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.CompleteFuel", err, "operationID", operationID)
		return nil, err
	}
	logger.Settlement("fuel", "operationID", op.ID, "companyCost", money(op.CompanyCost), "stationCost", money(op.StationCost))
	logger.ExitMethod("operationService.CompleteFuel", "operationID", operationID)
	return op, nil
}

func (s *operationService) CompleteOther(ctx context.Context, actor domain.Actor, operationID int64, req CompleteOtherRequest) (*domain.CarOperation, error) {
	logger.EnterMethod("operationService.CompleteOther", "workerID", actor.UserID, "operationID", operationID, "serviceID", req.ServiceID)

	var op *domain.CarOperation
	err := s.units.run(ctx, "operationService.CompleteOther", func(r *repository.Repos) error {
		var err error
		op, err = s.lockForWorker(ctx, r, actor, operationID)
		if err != nil {
			return err
		}
		if op.Kind != domain.ServiceKindOther {
			return domain.Fail(domain.CodeInvalidServiceKind)
		}
		if !op.Status.Active() {
			return domain.Fail(domain.CodeInvalidOperationState)
		}
		cost := domain.Round(req.Cost)
		if !cost.IsPositive() {
			return domain.FailField(domain.CodeInvalidAmount, "cost")
		}

		svc, err := r.Stations.GetService(ctx, req.ServiceID)
		if err != nil {
			return err
		}
		if svc.Kind != domain.ServiceKindOther {
			return domain.FailField(domain.CodeInvalidServiceKind, "service_id")
		}
		assigned, err := r.Stations.IsServiceAssigned(ctx, op.StationBranchID, svc.ID)
		if err != nil {
			return err
		}
		if !assigned {
			return domain.FailField(domain.CodeServiceNotAssigned, "service_id")
		}

		car, err := r.Cars.GetForUpdate(ctx, op.CarID)
		if err != nil {
			return err
		}
		companyBranch, err := r.Companies.GetBranch(ctx, car.CompanyBranchID)
		if err != nil {
			return err
		}
		stationBranch, err := r.Stations.GetBranch(ctx, op.StationBranchID)
		if err != nil {
			return err
		}

		figures := utils.OtherFigures(cost, companyBranch.FeePercent, stationBranch.FeePercent)
		op.ServiceID = svc.ID
		now := s.now()
		if op.StartTime == nil {
			op.StartTime = &now
		}
		return s.settle(ctx, r, actor, op, car, svc, stationBranch, figures, now)
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.CompleteOther", err, "operationID", operationID)
		return nil, err
	}
	logger.Settlement("service", "operationID", op.ID, "companyCost", money(op.CompanyCost), "stationCost", money(op.StationCost))
	logger.ExitMethod("operationService.CompleteOther", "operationID", operationID)
	return op, nil
}

// settle moves the money of a finished operation: the car pays company_cost,
// the station branch earns station_cost, and each side gets one ledger row.
// The car lock is released and the operation is stored as completed.
func (s *operationService) settle(
	ctx context.Context,
	r *repository.Repos,
	actor domain.Actor,
	op *domain.CarOperation,
	car *domain.Car,
	svc *domain.Service,
	stationBranch *domain.StationBranch,
	figures utils.SettlementFigures,
	now time.Time,
) error {
	carRef, branchRef := car.Ref(), domain.StationBranchRef(stationBranch.ID)
	locked, err := lockHolders(ctx, r.Holders, carRef, branchRef)
	if err != nil {
		return err
	}
	carHolder, branchHolder := locked[carRef], locked[branchRef]
	if !carHolder.CanCover(figures.CompanyCost) {
		return domain.Fail(domain.CodeNotEnoughBalance)
	}
	if err := applyDelta(ctx, r.Holders, carHolder, figures.CompanyCost.Neg()); err != nil {
		return err
	}
	if err := applyDelta(ctx, r.Holders, branchHolder, figures.StationCost); err != nil {
		return err
	}

	opID := op.ID
	stationRow := &domain.Transaction{
		Family:         domain.FamilyStation,
		Amount:         figures.StationCost,
		IsIncoming:     true,
		Status:         domain.TransactionStatusApproved,
		Method:         domain.MethodInternal,
		Description:    fmt.Sprintf("%s - %s", svc.Name, car.Code),
		IsInternal:     true,
		CarOperationID: &opID,
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
		ApprovedAt:     &now,
	}
	applyScope(stationRow, branchHolder)
	companyRow := &domain.Transaction{
		Family:         domain.FamilyCompany,
		Amount:         figures.CompanyCost,
		IsIncoming:     false,
		Status:         domain.TransactionStatusApproved,
		Method:         domain.MethodInternal,
		Description:    fmt.Sprintf("%s - %s", svc.Name, stationBranch.Name),
		IsInternal:     true,
		ForWhat:        domain.ForCar,
		CarOperationID: &opID,
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
		ApprovedAt:     &now,
	}
	applyScope(companyRow, carHolder)
	for _, row := range []*domain.Transaction{stationRow, companyRow} {
		if row.Amount.IsZero() {
			continue
		}
		code, err := s.refs.next(ctx, r, row.Family, true)
		if err != nil {
			return err
		}
		row.ReferenceCode = code
		if err := r.Transactions.Create(ctx, row); err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}
	}

	if err := r.Cars.SetBalanceBlocked(ctx, car.ID, false); err != nil {
		return err
	}

	op.Cost = figures.Cost
	op.CompanyCost = figures.CompanyCost
	op.StationCost = figures.StationCost
	op.Profits = figures.Profits
	op.EndTime = &now
	if op.StartTime != nil {
		op.DurationSeconds = int64(now.Sub(*op.StartTime) / time.Second)
	}
	op.Status = domain.OperationCompleted
	if err := r.Operations.Update(ctx, op); err != nil {
		return err
	}

	carStake, err := stakeholders(ctx, r.Users, carHolder)
	if err != nil {
		return err
	}
	branchStake, err := stakeholders(ctx, r.Users, branchHolder, actor.UserID)
	if err != nil {
		return err
	}
	return enqueue(ctx, r.Outbox, mergeIDs(carStake, branchStake), settlementNotice(op, car, svc, stationBranch))
}

func (s *operationService) Abort(ctx context.Context, actor domain.Actor, operationID int64) error {
	logger.EnterMethod("operationService.Abort", "actorID", actor.UserID, "operationID", operationID)

	err := s.units.run(ctx, "operationService.Abort", func(r *repository.Repos) error {
		op, err := r.Operations.GetForUpdate(ctx, operationID)
		if err != nil {
			return err
		}
		car, err := r.Cars.GetForUpdate(ctx, op.CarID)
		if err != nil {
			return err
		}
		if !s.canAccess(ctx, r, actor, op, car) {
			return domain.Fail(domain.CodeForbidden)
		}
		if op.Status == domain.OperationCompleted {
			return domain.Fail(domain.CodeOperationCompleted)
		}
		return abort(ctx, r, op)
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.Abort", err, "operationID", operationID)
		return err
	}
	logger.ExitMethod("operationService.Abort", "operationID", operationID)
	return nil
}

func abort(ctx context.Context, r *repository.Repos, op *domain.CarOperation) error {
	if err := r.Operations.Delete(ctx, op.ID); err != nil {
		return err
	}
	return r.Cars.SetBalanceBlocked(ctx, op.CarID, false)
}

func (s *operationService) Get(ctx context.Context, actor domain.Actor, operationID int64) (*domain.CarOperation, error) {
	var op *domain.CarOperation
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		op, err = r.Operations.GetByID(ctx, operationID)
		if err != nil {
			return err
		}
		car, err := r.Cars.GetByID(ctx, op.CarID)
		if err != nil {
			return err
		}
		if !s.canAccess(ctx, r, actor, op, car) {
			return domain.Fail(domain.CodeOperationNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *operationService) ListActive(ctx context.Context, actor domain.Actor) ([]domain.CarOperation, error) {
	if actor.StationBranchID == 0 ||
		(actor.Role != domain.RoleWorker && actor.Role != domain.RoleStationBranchManager) {
		return nil, domain.Fail(domain.CodeForbidden)
	}
	var ops []domain.CarOperation
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		ops, err = r.Operations.ListActiveByStationBranch(ctx, actor.StationBranchID)
		return err
	})
	return ops, err
}

func (s *operationService) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	logger.EnterMethod("operationService.ExpireStalePending", "olderThan", olderThan.String())

	var stale []domain.CarOperation
	err := s.units.read(ctx, func(r *repository.Repos) error {
		var err error
		stale, err = r.Operations.ListStalePending(ctx, s.now().Add(-olderThan))
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		aborted := false
		err := s.units.run(ctx, "operationService.ExpireStalePending", func(r *repository.Repos) error {
			aborted = false
			op, err := r.Operations.GetForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if op.Status != domain.OperationPending {
				return nil
			}
			if err := abort(ctx, r, op); err != nil {
				return err
			}
			aborted = true
			return nil
		})
		if err != nil && !domain.IsNotFound(err) {
			logger.Error("Failed to expire operation", "operationID", candidate.ID, "error", err)
			continue
		}
		if aborted {
			expired++
		}
	}
	logger.ExitMethod("operationService.ExpireStalePending", "expired", expired)
	return expired, nil
}

func (s *operationService) ReleaseOrphanedLocks(ctx context.Context) (int, error) {
	logger.EnterMethod("operationService.ReleaseOrphanedLocks")

	released := 0
	err := s.units.run(ctx, "operationService.ReleaseOrphanedLocks", func(r *repository.Repos) error {
		released = 0
		ids, err := r.Cars.ListOrphanedBlocked(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := r.Cars.SetBalanceBlocked(ctx, id, false); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("operationService.ReleaseOrphanedLocks", err)
		return 0, err
	}
	logger.ExitMethod("operationService.ReleaseOrphanedLocks", "released", released)
	return released, nil
}

// lockForWorker loads the operation under lock and checks that actor works at
// its station branch.
func (s *operationService) lockForWorker(ctx context.Context, r *repository.Repos, actor domain.Actor, id int64) (*domain.CarOperation, error) {
	if actor.Role != domain.RoleWorker {
		return nil, domain.Fail(domain.CodeForbidden)
	}
	op, err := r.Operations.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if op.StationBranchID != actor.StationBranchID {
		return nil, domain.Fail(domain.CodeWorkerBranchMismatch)
	}
	if op.Status == domain.OperationCompleted {
		return nil, domain.Fail(domain.CodeOperationCompleted)
	}
	return op, nil
}

// canAccess covers both sides of an operation: the station branch that serves
// it and the company that owns the car.
func (s *operationService) canAccess(ctx context.Context, r *repository.Repos, actor domain.Actor, op *domain.CarOperation, car *domain.Car) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleWorker, domain.RoleStationBranchManager:
		return actor.StationBranchID != 0 && actor.StationBranchID == op.StationBranchID
	case domain.RoleStationOwner:
		branch, err := r.Stations.GetBranch(ctx, op.StationBranchID)
		return err == nil && actor.StationID != 0 && branch.StationID == actor.StationID
	case domain.RoleCompanyOwner:
		return actor.CompanyID != 0 && car.CompanyID == actor.CompanyID
	case domain.RoleCompanyBranchManager:
		return actor.CompanyBranchID != 0 && car.CompanyBranchID == actor.CompanyBranchID
	}
	return false
}
