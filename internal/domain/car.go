package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Car is a fleet vehicle with its own prepaid wallet.
type Car struct {
	ID              int32           `json:"id"`
	Code            string          `json:"code"`
	CompanyID       int32           `json:"company_id"`
	CompanyBranchID int32           `json:"company_branch_id"`
	PlateNumber     string          `json:"plate_number"`
	Balance         decimal.Decimal `json:"balance"`
	Version         int64           `json:"version"`
	IsActive        bool            `json:"is_active"`

	// BalanceUpdateBlocked is held for the whole life of a non-terminal operation.
	BalanceUpdateBlocked bool `json:"balance_update_blocked"`

	FuelServiceID   int32            `json:"fuel_service_id"`
	TankCapacity    decimal.Decimal  `json:"tank_capacity"`
	PermittedAmount *decimal.Decimal `json:"permitted_amount,omitempty"`
	OdometerTracked bool             `json:"odometer_tracked"`
	LastMeter       int64            `json:"last_meter"`

	// AllowedDays is a weekday bitmask (bit 0 = Sunday); zero allows every day.
	AllowedDays            int32 `json:"allowed_days"`
	MaxDailyFuelOperations int32 `json:"max_daily_fuel_operations"`
}

// AllowedOn reports whether the car may be served on t's weekday.
func (c *Car) AllowedOn(t time.Time) bool {
	if c.AllowedDays == 0 {
		return true
	}
	return c.AllowedDays&(1<<uint(t.Weekday())) != 0
}

// QuantityCap is the configured per-operation limit: permitted amount when set,
// otherwise the tank capacity.
func (c *Car) QuantityCap() decimal.Decimal {
	if c.PermittedAmount != nil {
		return *c.PermittedAmount
	}
	return c.TankCapacity
}

func (c *Car) Ref() HolderRef {
	return CarRef(c.ID)
}

type Driver struct {
	ID        int32  `json:"id"`
	Code      string `json:"code"`
	CompanyID int32  `json:"company_id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
}
