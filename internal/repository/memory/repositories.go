package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

// Holders

type holderRepository struct {
	st *state
}

func holderOf(st *state, ref domain.HolderRef) (*domain.Holder, error) {
	switch ref.Type {
	case domain.HolderCompany:
		c, ok := st.companies[ref.ID]
		if !ok {
			break
		}
		return &domain.Holder{Ref: ref, Name: c.Name, Balance: c.Balance, Version: c.Version, CompanyID: c.ID}, nil
	case domain.HolderCompanyBranch:
		b, ok := st.companyBranches[ref.ID]
		if !ok {
			break
		}
		return &domain.Holder{Ref: ref, Name: b.Name, Balance: b.Balance, Version: b.Version,
			CompanyID: b.CompanyID, CompanyBranchID: b.ID}, nil
	case domain.HolderCar:
		c, ok := st.cars[ref.ID]
		if !ok {
			break
		}
		return &domain.Holder{Ref: ref, Name: c.Code, Balance: c.Balance, Version: c.Version,
			CompanyID: c.CompanyID, CompanyBranchID: c.CompanyBranchID, BalanceBlocked: c.BalanceUpdateBlocked}, nil
	case domain.HolderStation:
		s, ok := st.stations[ref.ID]
		if !ok {
			break
		}
		return &domain.Holder{Ref: ref, Name: s.Name, Balance: s.Balance, Version: s.Version, StationID: s.ID}, nil
	case domain.HolderStationBranch:
		b, ok := st.stationBranches[ref.ID]
		if !ok {
			break
		}
		return &domain.Holder{Ref: ref, Name: b.Name, Balance: b.Balance, Version: b.Version,
			StationID: b.StationID, StationBranchID: b.ID}, nil
	default:
		return nil, fmt.Errorf("unknown holder type %q", ref.Type)
	}
	return nil, domain.Fail(domain.CodeHolderNotFound)
}

func (r *holderRepository) Get(_ context.Context, ref domain.HolderRef) (*domain.Holder, error) {
	return holderOf(r.st, ref)
}

func (r *holderRepository) GetForUpdate(_ context.Context, ref domain.HolderRef) (*domain.Holder, error) {
	return holderOf(r.st, ref)
}

func (r *holderRepository) UpdateBalance(_ context.Context, ref domain.HolderRef, balance decimal.Decimal, expectedVersion int64) error {
	h, err := holderOf(r.st, ref)
	if err != nil {
		return err
	}
	if h.Version != expectedVersion {
		return domain.ConflictFrom(fmt.Errorf("update %s balance: version %d, expected %d", ref, h.Version, expectedVersion))
	}
	if balance.IsNegative() {
		return domain.Fail(domain.CodeNotEnoughBalance)
	}
	balance = domain.Round(balance)
	switch ref.Type {
	case domain.HolderCompany:
		c := r.st.companies[ref.ID]
		c.Balance, c.Version = balance, c.Version+1
		r.st.companies[ref.ID] = c
	case domain.HolderCompanyBranch:
		b := r.st.companyBranches[ref.ID]
		b.Balance, b.Version = balance, b.Version+1
		r.st.companyBranches[ref.ID] = b
	case domain.HolderCar:
		c := r.st.cars[ref.ID]
		c.Balance, c.Version = balance, c.Version+1
		r.st.cars[ref.ID] = c
	case domain.HolderStation:
		s := r.st.stations[ref.ID]
		s.Balance, s.Version = balance, s.Version+1
		r.st.stations[ref.ID] = s
	case domain.HolderStationBranch:
		b := r.st.stationBranches[ref.ID]
		b.Balance, b.Version = balance, b.Version+1
		r.st.stationBranches[ref.ID] = b
	}
	return nil
}

// Organizations

type companyRepository struct {
	st *state
}

func (r *companyRepository) GetByID(_ context.Context, id int32) (*domain.Company, error) {
	c, ok := r.st.companies[id]
	if !ok {
		return nil, domain.Fail(domain.CodeHolderNotFound)
	}
	return &c, nil
}

func (r *companyRepository) GetBranch(_ context.Context, id int32) (*domain.CompanyBranch, error) {
	b, ok := r.st.companyBranches[id]
	if !ok {
		return nil, domain.Fail(domain.CodeHolderNotFound)
	}
	return &b, nil
}

type stationRepository struct {
	st *state
}

func (r *stationRepository) GetByID(_ context.Context, id int32) (*domain.Station, error) {
	s, ok := r.st.stations[id]
	if !ok {
		return nil, domain.Fail(domain.CodeHolderNotFound)
	}
	return &s, nil
}

func (r *stationRepository) GetBranch(_ context.Context, id int32) (*domain.StationBranch, error) {
	b, ok := r.st.stationBranches[id]
	if !ok {
		return nil, domain.Fail(domain.CodeStationBranchNotFound)
	}
	return &b, nil
}

func (r *stationRepository) GetService(_ context.Context, id int32) (*domain.Service, error) {
	s, ok := r.st.services[id]
	if !ok {
		return nil, domain.Fail(domain.CodeServiceNotFound)
	}
	return &s, nil
}

func (r *stationRepository) IsServiceAssigned(_ context.Context, branchID, serviceID int32) (bool, error) {
	return r.st.branchServices[branchService{branchID, serviceID}], nil
}

// Cars and drivers

type carRepository struct {
	st *state
}

func (r *carRepository) GetByID(_ context.Context, id int32) (*domain.Car, error) {
	c, ok := r.st.cars[id]
	if !ok {
		return nil, domain.Fail(domain.CodeCarNotFound)
	}
	return &c, nil
}

func (r *carRepository) GetByCode(_ context.Context, code string) (*domain.Car, error) {
	for _, c := range r.st.cars {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, domain.Fail(domain.CodeCarNotFound)
}

func (r *carRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Car, error) {
	return r.GetByID(ctx, id)
}

func (r *carRepository) SetBalanceBlocked(_ context.Context, id int32, blocked bool) error {
	c, ok := r.st.cars[id]
	if !ok {
		return domain.Fail(domain.CodeCarNotFound)
	}
	c.BalanceUpdateBlocked = blocked
	r.st.cars[id] = c
	return nil
}

func (r *carRepository) UpdateLastMeter(_ context.Context, id int32, meter int64) error {
	c, ok := r.st.cars[id]
	if !ok {
		return domain.Fail(domain.CodeCarNotFound)
	}
	c.LastMeter = meter
	r.st.cars[id] = c
	return nil
}

func (r *carRepository) ListOrphanedBlocked(_ context.Context) ([]int32, error) {
	active := make(map[int32]bool)
	for _, op := range r.st.operations {
		if op.Status.Active() {
			active[op.CarID] = true
		}
	}
	var ids []int32
	for id, c := range r.st.cars {
		if c.BalanceUpdateBlocked && !active[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type driverRepository struct {
	st *state
}

func (r *driverRepository) GetByID(_ context.Context, id int32) (*domain.Driver, error) {
	d, ok := r.st.drivers[id]
	if !ok {
		return nil, domain.Fail(domain.CodeDriverNotFound)
	}
	return &d, nil
}

func (r *driverRepository) GetByCode(_ context.Context, code string) (*domain.Driver, error) {
	for _, d := range r.st.drivers {
		if d.Code == code {
			return &d, nil
		}
	}
	return nil, domain.Fail(domain.CodeDriverNotFound)
}

// Users

type userRepository struct {
	st *state
}

func (r *userRepository) GetByID(_ context.Context, id int32) (*domain.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, domain.Fail(domain.CodeUserNotFound)
	}
	return &u, nil
}

func (r *userRepository) ListIDs(_ context.Context, f repository.UserFilter) ([]int32, error) {
	var ids []int32
	for id, u := range r.st.users {
		if len(f.Roles) > 0 && !hasRole(f.Roles, u.Role) {
			continue
		}
		if f.CompanyID != 0 && u.CompanyID != f.CompanyID {
			continue
		}
		if f.CompanyBranchID != 0 && u.CompanyBranchID != f.CompanyBranchID {
			continue
		}
		if f.StationID != 0 && u.StationID != f.StationID {
			continue
		}
		if f.StationBranchID != 0 && u.StationBranchID != f.StationBranchID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Ledger

type transactionRepository struct {
	st  *state
	now func() time.Time
}

func (r *transactionRepository) Create(_ context.Context, t *domain.Transaction) error {
	for _, existing := range r.st.transactions[t.Family] {
		if existing.ReferenceCode == t.ReferenceCode {
			return domain.ConflictFrom(fmt.Errorf("duplicate reference code %s", t.ReferenceCode))
		}
	}
	r.st.nextTransactionID++
	t.ID = r.st.nextTransactionID
	t.CreatedAt = r.now()
	t.UpdatedAt = t.CreatedAt
	r.st.transactions[t.Family] = append(r.st.transactions[t.Family], *t)
	return nil
}

func (r *transactionRepository) find(family domain.Family, id int64) int {
	for i, t := range r.st.transactions[family] {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (r *transactionRepository) GetByID(_ context.Context, family domain.Family, id int64) (*domain.Transaction, error) {
	i := r.find(family, id)
	if i < 0 {
		return nil, domain.Fail(domain.CodeTransactionNotFound)
	}
	t := r.st.transactions[family][i]
	return &t, nil
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, family domain.Family, id int64) (*domain.Transaction, error) {
	return r.GetByID(ctx, family, id)
}

func (r *transactionRepository) Update(_ context.Context, t *domain.Transaction) error {
	i := r.find(t.Family, t.ID)
	if i < 0 {
		return domain.Fail(domain.CodeTransactionNotFound)
	}
	if !r.st.transactions[t.Family][i].IsPending() {
		return domain.Fail(domain.CodeTransactionNotPending)
	}
	t.UpdatedAt = r.now()
	r.st.transactions[t.Family][i] = *t
	return nil
}

func (r *transactionRepository) ReferenceExists(_ context.Context, family domain.Family, code string) (bool, error) {
	for _, t := range r.st.transactions[family] {
		if t.ReferenceCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *transactionRepository) List(_ context.Context, f domain.TransactionFilter) ([]domain.Transaction, int32, error) {
	f.Normalize()
	var matched []domain.Transaction
	for _, t := range r.st.transactions[f.Family] {
		if matchesFilter(t, f) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := int32(len(matched))
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []domain.Transaction{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matchesFilter(t domain.Transaction, f domain.TransactionFilter) bool {
	switch {
	case f.CompanyID != 0 && t.CompanyID != f.CompanyID,
		f.CompanyBranchID != 0 && t.CompanyBranchID != f.CompanyBranchID,
		f.CarID != 0 && t.CarID != f.CarID,
		f.StationID != 0 && t.StationID != f.StationID,
		f.StationBranchID != 0 && t.StationBranchID != f.StationBranchID,
		f.Status != "" && t.Status != f.Status,
		f.Method != "" && t.Method != f.Method,
		f.IsInternal != nil && t.IsInternal != *f.IsInternal,
		f.From != nil && t.CreatedAt.Before(*f.From),
		f.To != nil && t.CreatedAt.After(*f.To):
		return false
	}
	return true
}

// Operations

type operationRepository struct {
	st  *state
	now func() time.Time
}

func (r *operationRepository) Create(_ context.Context, op *domain.CarOperation) error {
	for _, existing := range r.st.operations {
		if existing.CarID == op.CarID && existing.Status.Active() {
			return domain.Fail(domain.CodeCarInProgress)
		}
	}
	r.st.nextOperationID++
	op.ID = r.st.nextOperationID
	op.CreatedAt = r.now()
	op.UpdatedAt = op.CreatedAt
	r.st.operations[op.ID] = *op
	return nil
}

func (r *operationRepository) GetByID(_ context.Context, id int64) (*domain.CarOperation, error) {
	op, ok := r.st.operations[id]
	if !ok {
		return nil, domain.Fail(domain.CodeOperationNotFound)
	}
	return &op, nil
}

func (r *operationRepository) GetForUpdate(ctx context.Context, id int64) (*domain.CarOperation, error) {
	return r.GetByID(ctx, id)
}

func (r *operationRepository) Update(_ context.Context, op *domain.CarOperation) error {
	if _, ok := r.st.operations[op.ID]; !ok {
		return domain.Fail(domain.CodeOperationNotFound)
	}
	op.UpdatedAt = r.now()
	r.st.operations[op.ID] = *op
	return nil
}

func (r *operationRepository) Delete(_ context.Context, id int64) error {
	op, ok := r.st.operations[id]
	if !ok || op.Status == domain.OperationCompleted {
		return domain.Fail(domain.CodeOperationNotFound)
	}
	delete(r.st.operations, id)
	return nil
}

func (r *operationRepository) GetActiveByCar(_ context.Context, carID int32) (*domain.CarOperation, error) {
	for _, op := range r.st.operations {
		if op.CarID == carID && op.Status.Active() {
			return &op, nil
		}
	}
	return nil, domain.Fail(domain.CodeOperationNotFound)
}

func (r *operationRepository) CountCompletedFuelSince(_ context.Context, carID int32, since time.Time) (int, error) {
	n := 0
	for _, op := range r.st.operations {
		if op.CarID == carID && op.Kind == domain.ServiceKindFuel && op.Status == domain.OperationCompleted &&
			op.EndTime != nil && !op.EndTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *operationRepository) ListActiveByStationBranch(_ context.Context, branchID int32) ([]domain.CarOperation, error) {
	return r.collect(func(op domain.CarOperation) bool {
		return op.StationBranchID == branchID && op.Status.Active()
	}), nil
}

func (r *operationRepository) ListStalePending(_ context.Context, createdBefore time.Time) ([]domain.CarOperation, error) {
	return r.collect(func(op domain.CarOperation) bool {
		return op.Status == domain.OperationPending && op.CreatedAt.Before(createdBefore)
	}), nil
}

func (r *operationRepository) collect(keep func(domain.CarOperation) bool) []domain.CarOperation {
	var ops []domain.CarOperation
	for _, op := range r.st.operations {
		if keep(op) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops
}

// Outbox

type outboxRepository struct {
	st  *state
	now func() time.Time
}

func (r *outboxRepository) Enqueue(_ context.Context, msgs []domain.OutboxMessage) error {
	for i := range msgs {
		r.st.nextOutboxID++
		msgs[i].ID = r.st.nextOutboxID
		msgs[i].Status = domain.OutboxPending
		msgs[i].CreatedAt = r.now()
		r.st.outbox = append(r.st.outbox, msgs[i])
	}
	return nil
}

func (r *outboxRepository) Claim(_ context.Context, opts repository.ClaimOptions) ([]domain.OutboxMessage, error) {
	var claimed []domain.OutboxMessage
	for i := range r.st.outbox {
		if opts.BatchSize > 0 && len(claimed) >= opts.BatchSize {
			break
		}
		m := &r.st.outbox[i]
		ready := (m.Status == domain.OutboxPending || m.Status == domain.OutboxFailed) &&
			(m.NextAttemptAt == nil || !m.NextAttemptAt.After(opts.Now))
		stale := m.Status == domain.OutboxProcessing && m.LockedAt != nil && !m.LockedAt.After(opts.StaleBefore)
		if !ready && !stale {
			continue
		}
		if opts.MaxAttempts > 0 && m.Attempts >= opts.MaxAttempts {
			m.Status = domain.OutboxDead
			m.LastError = fmt.Sprintf("max publish attempts exceeded (%d)", opts.MaxAttempts)
			m.LockedAt, m.LockedBy = nil, ""
			continue
		}
		now := opts.Now
		m.Status = domain.OutboxProcessing
		m.Attempts++
		m.LockedAt = &now
		m.LockedBy = opts.DispatcherID
		claimed = append(claimed, *m)
	}
	return claimed, nil
}

func (r *outboxRepository) find(id int64) *domain.OutboxMessage {
	for i := range r.st.outbox {
		if r.st.outbox[i].ID == id {
			return &r.st.outbox[i]
		}
	}
	return nil
}

func (r *outboxRepository) MarkSent(_ context.Context, id int64, at time.Time) error {
	if m := r.find(id); m != nil {
		m.Status = domain.OutboxSent
		m.SentAt = &at
		m.LockedAt, m.LockedBy = nil, ""
	}
	return nil
}

func (r *outboxRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextAttempt time.Time) error {
	if m := r.find(id); m != nil {
		m.Status = domain.OutboxFailed
		m.LastError = errMsg
		m.NextAttemptAt = &nextAttempt
		m.LockedAt, m.LockedBy = nil, ""
	}
	return nil
}

func (r *outboxRepository) MarkDead(_ context.Context, id int64, errMsg string) error {
	if m := r.find(id); m != nil {
		m.Status = domain.OutboxDead
		m.LastError = errMsg
		m.LockedAt, m.LockedBy = nil, ""
	}
	return nil
}

func (r *outboxRepository) PurgeSent(_ context.Context, before time.Time) (int64, error) {
	kept := r.st.outbox[:0]
	var n int64
	for _, m := range r.st.outbox {
		if m.Status == domain.OutboxSent && m.SentAt != nil && m.SentAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.st.outbox = kept
	return n, nil
}

// Inbox

type notificationRepository struct {
	st  *state
	now func() time.Time
}

func (r *notificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.st.nextNotificationID++
	n.ID = r.st.nextNotificationID
	n.CreatedAt = r.now()
	r.st.notifications = append(r.st.notifications, *n)
	return nil
}

func (r *notificationRepository) List(_ context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	var mine []domain.Notification
	for i := len(r.st.notifications) - 1; i >= 0; i-- {
		if r.st.notifications[i].UserID == userID {
			mine = append(mine, r.st.notifications[i])
		}
	}
	total := int32(len(mine))
	if offset >= total {
		return []domain.Notification{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

func (r *notificationRepository) MarkAsRead(_ context.Context, id int64, userID int32) error {
	for i := range r.st.notifications {
		n := &r.st.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return domain.ErrNotFound
}
