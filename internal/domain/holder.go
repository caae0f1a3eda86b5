package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type HolderType string

const (
	HolderCompany       HolderType = "company"
	HolderCompanyBranch HolderType = "company_branch"
	HolderCar           HolderType = "car"
	HolderStation       HolderType = "station"
	HolderStationBranch HolderType = "station_branch"
)

// rank fixes the order in which holders are row-locked inside one unit of work.
var holderRank = map[HolderType]int{
	HolderCompany:       1,
	HolderCompanyBranch: 2,
	HolderCar:           3,
	HolderStation:       4,
	HolderStationBranch: 5,
}

func (t HolderType) Valid() bool {
	_, ok := holderRank[t]
	return ok
}

// Family is the ledger table a holder's movements are recorded in.
func (t HolderType) Family() Family {
	switch t {
	case HolderStation, HolderStationBranch:
		return FamilyStation
	default:
		return FamilyCompany
	}
}

// HolderRef identifies one balance-bearing row.
type HolderRef struct {
	Type HolderType `json:"type"`
	ID   int32      `json:"id"`
}

func (r HolderRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Less orders refs for deadlock-free locking.
func (r HolderRef) Less(o HolderRef) bool {
	if holderRank[r.Type] != holderRank[o.Type] {
		return holderRank[r.Type] < holderRank[o.Type]
	}
	return r.ID < o.ID
}

func CompanyRef(id int32) HolderRef       { return HolderRef{Type: HolderCompany, ID: id} }
func CompanyBranchRef(id int32) HolderRef { return HolderRef{Type: HolderCompanyBranch, ID: id} }
func CarRef(id int32) HolderRef           { return HolderRef{Type: HolderCar, ID: id} }
func StationRef(id int32) HolderRef       { return HolderRef{Type: HolderStation, ID: id} }
func StationBranchRef(id int32) HolderRef { return HolderRef{Type: HolderStationBranch, ID: id} }

// Holder is the balance view of a company, branch, car, station or station branch.
// Scope ids are filled so that ledger rows and stakeholder lookups can be derived
// without another read.
type Holder struct {
	Ref     HolderRef       `json:"ref"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	Version int64           `json:"version"`

	CompanyID       int32 `json:"company_id,omitempty"`
	CompanyBranchID int32 `json:"company_branch_id,omitempty"`
	StationID       int32 `json:"station_id,omitempty"`
	StationBranchID int32 `json:"station_branch_id,omitempty"`

	// BalanceBlocked is only ever set for cars with an in-flight operation.
	BalanceBlocked bool `json:"balance_blocked"`
}

// CanCover reports whether the holder can pay amount without going negative.
func (h *Holder) CanCover(amount decimal.Decimal) bool {
	return h.Balance.GreaterThanOrEqual(amount)
}
