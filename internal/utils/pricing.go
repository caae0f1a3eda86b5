package utils

import (
	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
)

// SettlementFigures is the money breakdown of one completed operation.
type SettlementFigures struct {
	Cost        decimal.Decimal
	CompanyCost decimal.Decimal
	StationCost decimal.Decimal
	Profits     decimal.Decimal
}

// UnitCostWithFee is the price of one fuel unit charged to a car: the service
// cost plus the company branch fee on it.
func UnitCostWithFee(serviceCost, companyFeePercent decimal.Decimal) decimal.Decimal {
	return domain.Round(serviceCost.Add(domain.PercentOf(serviceCost, companyFeePercent)))
}

// StationUnitPrice is what the station branch earns per fuel unit.
func StationUnitPrice(serviceCost, stationFeePercent decimal.Decimal) decimal.Decimal {
	return domain.Round(serviceCost.Add(domain.PercentOf(serviceCost, stationFeePercent)))
}

// AvailableQuantity is min(cap, floor(balance / unitCost)). A zero or negative
// unit cost yields the cap alone.
func AvailableQuantity(quantityCap, balance, unitCost decimal.Decimal) decimal.Decimal {
	if !unitCost.IsPositive() {
		return quantityCap
	}
	affordable := balance.Div(unitCost).Floor()
	if affordable.LessThan(quantityCap) {
		return affordable
	}
	return quantityCap
}

// FuelFigures prices amount units of fuel.
func FuelFigures(amount, serviceCost, companyFeePercent, stationFeePercent decimal.Decimal) SettlementFigures {
	companyCost := domain.Round(amount.Mul(UnitCostWithFee(serviceCost, companyFeePercent)))
	stationCost := domain.Round(amount.Mul(StationUnitPrice(serviceCost, stationFeePercent)))
	return SettlementFigures{
		Cost:        domain.Round(amount.Mul(serviceCost)),
		CompanyCost: companyCost,
		StationCost: stationCost,
		Profits:     companyCost.Sub(stationCost),
	}
}

// OtherFigures prices a non-fuel service of the given cost. The company fee is
// added on top while the station fee is taken out of the station's share.
func OtherFigures(cost, companyFeePercent, stationFeePercent decimal.Decimal) SettlementFigures {
	companyCost := domain.Round(cost.Add(domain.PercentOf(cost, companyFeePercent)))
	stationCost := domain.Round(cost.Sub(domain.PercentOf(cost, stationFeePercent)))
	return SettlementFigures{
		Cost:        domain.Round(cost),
		CompanyCost: companyCost,
		StationCost: stationCost,
		Profits:     companyCost.Sub(stationCost),
	}
}

// ConsumptionRate returns distance per fuel unit, or nil when either side is unknown.
func ConsumptionRate(firstMeter, lastMeter *int64, amount decimal.Decimal) *decimal.Decimal {
	if firstMeter == nil || lastMeter == nil || !amount.IsPositive() {
		return nil
	}
	distance := decimal.NewFromInt(*lastMeter - *firstMeter)
	rate := domain.Round(distance.Div(amount))
	return &rate
}
