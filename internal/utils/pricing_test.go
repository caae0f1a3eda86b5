package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUnitCostWithFee(t *testing.T) {
	t.Run("Five percent on ten", func(t *testing.T) {
		assert.True(t, UnitCostWithFee(dec("10"), dec("5")).Equal(dec("10.50")))
	})

	t.Run("Zero fee", func(t *testing.T) {
		assert.True(t, UnitCostWithFee(dec("12.34"), decimal.Zero).Equal(dec("12.34")))
	})

	t.Run("Rounds half away from zero", func(t *testing.T) {
		// 2.5% of 0.5 is 0.0125
		assert.True(t, UnitCostWithFee(dec("0.5"), dec("2.5")).Equal(dec("0.51")))
	})
}

func TestAvailableQuantity(t *testing.T) {
	t.Run("Capacity binds", func(t *testing.T) {
		q := AvailableQuantity(dec("45"), dec("500"), dec("10.50"))
		assert.True(t, q.Equal(dec("45")), q.String())
	})

	t.Run("Balance binds", func(t *testing.T) {
		q := AvailableQuantity(dec("60"), dec("500"), dec("10.50"))
		assert.True(t, q.Equal(dec("47")), q.String())
	})

	t.Run("Balance below one unit", func(t *testing.T) {
		q := AvailableQuantity(dec("60"), dec("10"), dec("10.50"))
		assert.True(t, q.IsZero())
	})

	t.Run("Free unit", func(t *testing.T) {
		q := AvailableQuantity(dec("60"), dec("10"), decimal.Zero)
		assert.True(t, q.Equal(dec("60")))
	})
}

func TestFuelFigures(t *testing.T) {
	f := FuelFigures(dec("40"), dec("10"), dec("5"), dec("2"))

	assert.True(t, f.Cost.Equal(dec("400.00")), f.Cost.String())
	assert.True(t, f.CompanyCost.Equal(dec("420.00")), f.CompanyCost.String())
	assert.True(t, f.StationCost.Equal(dec("408.00")), f.StationCost.String())
	assert.True(t, f.Profits.Equal(dec("12.00")), f.Profits.String())
	assert.True(t, f.Profits.Equal(f.CompanyCost.Sub(f.StationCost)))
}

func TestOtherFigures(t *testing.T) {
	f := OtherFigures(dec("200"), dec("5"), dec("3"))

	assert.True(t, f.Cost.Equal(dec("200")))
	assert.True(t, f.CompanyCost.Equal(dec("210.00")), f.CompanyCost.String())
	assert.True(t, f.StationCost.Equal(dec("194.00")), f.StationCost.String())
	assert.True(t, f.Profits.Equal(dec("16.00")), f.Profits.String())
}

func TestConsumptionRate(t *testing.T) {
	first, last := int64(1000), int64(1400)

	t.Run("Known meters", func(t *testing.T) {
		rate := ConsumptionRate(&first, &last, dec("40"))
		if assert.NotNil(t, rate) {
			assert.True(t, rate.Equal(dec("10")))
		}
	})

	t.Run("Missing meter", func(t *testing.T) {
		assert.Nil(t, ConsumptionRate(nil, &last, dec("40")))
	})

	t.Run("Zero amount", func(t *testing.T) {
		assert.Nil(t, ConsumptionRate(&first, &last, decimal.Zero))
	})
}
