// Package memory is an in-process repository.UnitOfWork for tests and local runs.
// Units of work are serialized by one mutex and rolled back by restoring a
// snapshot, so a failed unit leaves no trace.
package memory

import (
	"context"
	"sync"
	"time"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

type branchService struct {
	branchID  int32
	serviceID int32
}

type state struct {
	companies       map[int32]domain.Company
	companyBranches map[int32]domain.CompanyBranch
	cars            map[int32]domain.Car
	drivers         map[int32]domain.Driver
	stations        map[int32]domain.Station
	stationBranches map[int32]domain.StationBranch
	services        map[int32]domain.Service
	branchServices  map[branchService]bool
	users           map[int32]domain.User

	transactions  map[domain.Family][]domain.Transaction
	operations    map[int64]domain.CarOperation
	outbox        []domain.OutboxMessage
	notifications []domain.Notification

	nextTransactionID  int64
	nextOperationID    int64
	nextOutboxID       int64
	nextNotificationID int64
}

func newState() *state {
	return &state{
		companies:       make(map[int32]domain.Company),
		companyBranches: make(map[int32]domain.CompanyBranch),
		cars:            make(map[int32]domain.Car),
		drivers:         make(map[int32]domain.Driver),
		stations:        make(map[int32]domain.Station),
		stationBranches: make(map[int32]domain.StationBranch),
		services:        make(map[int32]domain.Service),
		branchServices:  make(map[branchService]bool),
		users:           make(map[int32]domain.User),
		transactions:    make(map[domain.Family][]domain.Transaction),
		operations:      make(map[int64]domain.CarOperation),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.companyBranches {
		c.companyBranches[k] = v
	}
	for k, v := range s.cars {
		c.cars[k] = v
	}
	for k, v := range s.drivers {
		c.drivers[k] = v
	}
	for k, v := range s.stations {
		c.stations[k] = v
	}
	for k, v := range s.stationBranches {
		c.stationBranches[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.branchServices {
		c.branchServices[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = append([]domain.Transaction(nil), v...)
	}
	for k, v := range s.operations {
		c.operations[k] = v
	}
	c.outbox = append([]domain.OutboxMessage(nil), s.outbox...)
	c.notifications = append([]domain.Notification(nil), s.notifications...)
	c.nextTransactionID = s.nextTransactionID
	c.nextOperationID = s.nextOperationID
	c.nextOutboxID = s.nextOutboxID
	c.nextNotificationID = s.nextNotificationID
	return c
}

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), now: time.Now}
}

// SetClock replaces the clock used for created_at and updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Within runs fn against a working copy that replaces the committed state
// only when fn succeeds.
func (s *Store) Within(ctx context.Context, fn func(r *repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(newRepos(work, s.now)); err != nil {
		return err
	}
	s.state = work
	return nil
}

func newRepos(st *state, now func() time.Time) *repository.Repos {
	return &repository.Repos{
		Holders:       &holderRepository{st: st},
		Companies:     &companyRepository{st: st},
		Stations:      &stationRepository{st: st},
		Cars:          &carRepository{st: st},
		Drivers:       &driverRepository{st: st},
		Users:         &userRepository{st: st},
		Transactions:  &transactionRepository{st: st, now: now},
		Operations:    &operationRepository{st: st, now: now},
		Outbox:        &outboxRepository{st: st, now: now},
		Notifications: &notificationRepository{st: st, now: now},
	}
}

// Seed helpers write directly to the committed state.

func (s *Store) PutCompany(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.companies[c.ID] = c
}

func (s *Store) PutCompanyBranch(b domain.CompanyBranch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.companyBranches[b.ID] = b
}

func (s *Store) PutCar(c domain.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cars[c.ID] = c
}

func (s *Store) PutDriver(d domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.drivers[d.ID] = d
}

func (s *Store) PutStation(st domain.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.stations[st.ID] = st
}

func (s *Store) PutStationBranch(b domain.StationBranch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.stationBranches[b.ID] = b
}

func (s *Store) PutService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.services[svc.ID] = svc
}

func (s *Store) AssignService(branchID, serviceID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.branchServices[branchService{branchID, serviceID}] = true
}

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// PutOperation stores op as is, assigning an id when it has none.
func (s *Store) PutOperation(op domain.CarOperation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.ID == 0 {
		s.state.nextOperationID++
		op.ID = s.state.nextOperationID
	} else if op.ID > s.state.nextOperationID {
		s.state.nextOperationID = op.ID
	}
	s.state.operations[op.ID] = op
	return op.ID
}

// Inspection helpers read the committed state.

func (s *Store) Car(id int32) domain.Car {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cars[id]
}

func (s *Store) Holder(ref domain.HolderRef) *domain.Holder {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := holderOf(s.state, ref)
	if err != nil {
		return nil
	}
	return h
}

func (s *Store) Transactions(family domain.Family) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.state.transactions[family]...)
}

func (s *Store) Operations() []domain.CarOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]domain.CarOperation, 0, len(s.state.operations))
	for _, op := range s.state.operations {
		ops = append(ops, op)
	}
	return ops
}

func (s *Store) Outbox() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.state.outbox...)
}

func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.state.notifications...)
}
