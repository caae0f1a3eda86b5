package domain

import "github.com/shopspring/decimal"

type Company struct {
	ID       int32           `json:"id"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	Version  int64           `json:"version"`
	IsActive bool            `json:"is_active"`
}

// CompanyBranch carries the platform markup charged to its cars per unit of service.
type CompanyBranch struct {
	ID         int32           `json:"id"`
	CompanyID  int32           `json:"company_id"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
	Version    int64           `json:"version"`
	FeePercent decimal.Decimal `json:"fee_percent"`
}

type Station struct {
	ID       int32           `json:"id"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	Version  int64           `json:"version"`
	IsActive bool            `json:"is_active"`
}

type StationBranch struct {
	ID         int32           `json:"id"`
	StationID  int32           `json:"station_id"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
	Version    int64           `json:"version"`
	FeePercent decimal.Decimal `json:"fee_percent"`
	IsActive   bool            `json:"is_active"`
}
