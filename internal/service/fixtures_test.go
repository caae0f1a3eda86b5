package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
	"khazna-backend/internal/repository/memory"
)

const (
	companyID       int32 = 1
	companyBranchID int32 = 10
	carID           int32 = 100
	driverID        int32 = 200
	stationID       int32 = 2
	stationBranchID int32 = 20
	otherBranchID   int32 = 21
	fuelServiceID   int32 = 7
	washServiceID   int32 = 8

	adminID          int32 = 1
	companyOwnerID   int32 = 2
	branchManagerID  int32 = 3
	stationOwnerID   int32 = 4
	stationManagerID int32 = 5
	workerID         int32 = 6
	otherWorkerID    int32 = 7
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newFixture seeds one company with a branch and a car, one station with two
// branches, and a user for every role.
func newFixture() *memory.Store {
	st := memory.NewStore()
	st.PutCompany(domain.Company{ID: companyID, Name: "شركة النيل", Balance: dec("10000"), IsActive: true})
	st.PutCompanyBranch(domain.CompanyBranch{ID: companyBranchID, CompanyID: companyID, Name: "فرع المعادي",
		Balance: dec("2000"), FeePercent: dec("5")})
	st.PutCar(domain.Car{
		ID: carID, Code: "CAR-100", CompanyID: companyID, CompanyBranchID: companyBranchID,
		PlateNumber: "أ ب ج 123", Balance: dec("500"), IsActive: true,
		FuelServiceID: fuelServiceID, TankCapacity: dec("60"),
	})
	st.PutDriver(domain.Driver{ID: driverID, Code: "DRV-200", CompanyID: companyID, Name: "محمود", IsActive: true})

	st.PutStation(domain.Station{ID: stationID, Name: "محطة التحرير", IsActive: true})
	st.PutStationBranch(domain.StationBranch{ID: stationBranchID, StationID: stationID, Name: "فرع الدقي",
		FeePercent: dec("2"), IsActive: true})
	st.PutStationBranch(domain.StationBranch{ID: otherBranchID, StationID: stationID, Name: "فرع الهرم",
		FeePercent: dec("2"), IsActive: true})
	st.PutService(domain.Service{ID: fuelServiceID, Name: "بنزين 92", Kind: domain.ServiceKindFuel, Cost: dec("10")})
	st.PutService(domain.Service{ID: washServiceID, Name: "غسيل", Kind: domain.ServiceKindOther})
	st.AssignService(stationBranchID, washServiceID)

	st.PutUser(domain.User{ID: adminID, Name: "admin", Role: domain.RoleAdmin})
	st.PutUser(domain.User{ID: companyOwnerID, Name: "owner", Role: domain.RoleCompanyOwner, CompanyID: companyID})
	st.PutUser(domain.User{ID: branchManagerID, Name: "manager", Role: domain.RoleCompanyBranchManager,
		CompanyID: companyID, CompanyBranchID: companyBranchID})
	st.PutUser(domain.User{ID: stationOwnerID, Name: "station owner", Role: domain.RoleStationOwner, StationID: stationID})
	st.PutUser(domain.User{ID: stationManagerID, Name: "station manager", Role: domain.RoleStationBranchManager,
		StationID: stationID, StationBranchID: stationBranchID})
	st.PutUser(domain.User{ID: workerID, Name: "worker", Role: domain.RoleWorker,
		StationID: stationID, StationBranchID: stationBranchID})
	st.PutUser(domain.User{ID: otherWorkerID, Name: "other worker", Role: domain.RoleWorker,
		StationID: stationID, StationBranchID: otherBranchID})
	return st
}

func actorOf(st *memory.Store, id int32) domain.Actor {
	var actor domain.Actor
	ctx := context.Background()
	_ = st.Within(ctx, func(r *repository.Repos) error {
		u, err := r.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		actor = domain.ActorFromUser(u)
		return nil
	})
	return actor
}

func balanceOf(st *memory.Store, ref domain.HolderRef) decimal.Decimal {
	return st.Holder(ref).Balance
}

// fixedClock returns a settable clock starting at t.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }
