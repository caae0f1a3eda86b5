package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the fixed scale of every persisted amount.
const MoneyPlaces = 2

var (
	// MinCarTransfer is the smallest amount moved into or out of a car wallet.
	MinCarTransfer = decimal.NewFromInt(1)
	// MinBranchTransfer applies to branch-level allocations and external movements.
	MinBranchTransfer = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// Round rounds half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PercentOf returns the rounded share of amount for a percentage such as 5 or 2.5.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(percent).Div(hundred))
}
