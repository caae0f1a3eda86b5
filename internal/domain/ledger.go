package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Family selects the ledger table a transaction lives in.
type Family string

const (
	FamilyCompany Family = "company"
	FamilyStation Family = "station"
)

func (f Family) Valid() bool {
	return f == FamilyCompany || f == FamilyStation
}

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusDeclined TransactionStatus = "DECLINED"
)

type PaymentMethod string

const (
	MethodBank     PaymentMethod = "bank"
	MethodInstapay PaymentMethod = "instapay"
	MethodCash     PaymentMethod = "cash"
	MethodInternal PaymentMethod = "internal"
)

// ExternalMethod reports whether m may be chosen by a user for a deposit or withdrawal.
func (m PaymentMethod) ExternalMethod() bool {
	return m == MethodBank || m == MethodInstapay || m == MethodCash
}

// ForWhat names the company-side sub-wallet a company transaction concerns.
type ForWhat string

const (
	ForCompany ForWhat = ""
	ForBranch  ForWhat = "branch"
	ForCar     ForWhat = "car"
)

// Transaction is one immutable ledger row of either family. Scope ids that do
// not apply to the family stay zero.
type Transaction struct {
	ID            int64             `json:"id"`
	Family        Family            `json:"family"`
	Amount        decimal.Decimal   `json:"amount"`
	IsIncoming    bool              `json:"is_incoming"`
	Status        TransactionStatus `json:"status"`
	Method        PaymentMethod     `json:"method"`
	ReferenceCode string            `json:"reference_code"`
	Description   string            `json:"description"`
	IsInternal    bool              `json:"is_internal"`
	ForWhat       ForWhat           `json:"for_what,omitempty"`

	CompanyID       int32  `json:"company_id,omitempty"`
	CompanyBranchID int32  `json:"company_branch_id,omitempty"`
	CarID           int32  `json:"car_id,omitempty"`
	StationID       int32  `json:"station_id,omitempty"`
	StationBranchID int32  `json:"station_branch_id,omitempty"`
	CarOperationID  *int64 `json:"car_operation_id,omitempty"`

	CreatedBy  int32      `json:"created_by"`
	UpdatedBy  int32      `json:"updated_by"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// Subject is the holder whose balance a pending external movement settles against.
func (t *Transaction) Subject() HolderRef {
	if t.Family == FamilyStation {
		if t.StationBranchID != 0 {
			return StationBranchRef(t.StationBranchID)
		}
		return StationRef(t.StationID)
	}
	switch {
	case t.CarID != 0:
		return CarRef(t.CarID)
	case t.CompanyBranchID != 0:
		return CompanyBranchRef(t.CompanyBranchID)
	default:
		return CompanyRef(t.CompanyID)
	}
}

// TransactionFilter narrows ledger listings. Zero values mean "any".
type TransactionFilter struct {
	Family          Family
	CompanyID       int32
	CompanyBranchID int32
	CarID           int32
	StationID       int32
	StationBranchID int32
	Status          TransactionStatus
	Method          PaymentMethod
	IsInternal      *bool
	From            *time.Time
	To              *time.Time
	Page            int32
	PageSize        int32
}

// Normalize applies paging defaults.
func (f *TransactionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}
}
