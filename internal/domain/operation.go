package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperationStatus string

const (
	OperationPending    OperationStatus = "pending"
	OperationInProgress OperationStatus = "in_progress"
	OperationCompleted  OperationStatus = "completed"
)

func (s OperationStatus) Active() bool {
	return s == OperationPending || s == OperationInProgress
}

// CarOperation is one fueling or service event at a station branch.
// Aborted operations are deleted, so there is no cancelled status.
type CarOperation struct {
	ID              int64           `json:"id"`
	Status          OperationStatus `json:"status"`
	Kind            ServiceKind     `json:"kind"`
	CarID           int32           `json:"car_id"`
	DriverID        int32           `json:"driver_id"`
	StationBranchID int32           `json:"station_branch_id"`
	WorkerID        int32           `json:"worker_id"`
	ServiceID       int32           `json:"service_id"`

	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`

	FirstCarMeter *int64 `json:"first_car_meter,omitempty"`
	LastCarMeter  *int64 `json:"last_car_meter,omitempty"`

	Amount              decimal.Decimal  `json:"amount"`
	Cost                decimal.Decimal  `json:"cost"`
	CompanyCost         decimal.Decimal  `json:"company_cost"`
	StationCost         decimal.Decimal  `json:"station_cost"`
	Profits             decimal.Decimal  `json:"profits"`
	FuelConsumptionRate *decimal.Decimal `json:"fuel_consumption_rate,omitempty"`

	MeterPhoto string `json:"meter_photo,omitempty"`
	PumpPhoto  string `json:"pump_photo,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OperationStart is returned by Create together with the operation.
type OperationStart struct {
	Operation         *CarOperation   `json:"operation"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
}
