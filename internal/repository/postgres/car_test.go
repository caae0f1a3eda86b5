package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khazna-backend/internal/domain"
)

const selectCar = `SELECT id, code, company_id, company_branch_id, plate_number, balance, version, is_active,
	balance_update_blocked, fuel_service_id, tank_capacity, permitted_amount, odometer_tracked,
	last_meter, allowed_days, max_daily_fuel_operations FROM cars`

var carRowColumns = []string{"id", "code", "company_id", "company_branch_id", "plate_number", "balance", "version",
	"is_active", "balance_update_blocked", "fuel_service_id", "tank_capacity", "permitted_amount", "odometer_tracked",
	"last_meter", "allowed_days", "max_daily_fuel_operations"}

func TestCarRepository_Get(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewCarRepository(db)
	ctx := context.Background()

	t.Run("for update locks the row", func(t *testing.T) {
		mock.ExpectQuery(selectCar + ` WHERE id = $1 FOR UPDATE`).
			WithArgs(int32(100)).
			WillReturnRows(sqlmock.NewRows(carRowColumns).AddRow(
				100, "CAR-100", 1, 10, "أ ب ج 123", "500.00", 3, true, false, 7, "60.00", nil, true, 1000, 64, 2))

		car, err := repo.GetForUpdate(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, "CAR-100", car.Code)
		assert.True(t, car.Balance.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, int64(3), car.Version)
		assert.Nil(t, car.PermittedAmount)
		assert.True(t, car.QuantityCap().Equal(decimal.NewFromInt(60)))
		assert.Equal(t, int64(1000), car.LastMeter)
		assert.Equal(t, int32(64), car.AllowedDays)
		assert.Equal(t, int32(2), car.MaxDailyFuelOperations)
	})

	t.Run("by code with permitted amount", func(t *testing.T) {
		mock.ExpectQuery(selectCar + ` WHERE code = $1`).
			WithArgs("CAR-101").
			WillReturnRows(sqlmock.NewRows(carRowColumns).AddRow(
				101, "CAR-101", 1, 10, "د هـ و 456", "80.00", 1, true, true, 7, "60.00", "25.00", false, 0, 0, 0))

		car, err := repo.GetByCode(ctx, "CAR-101")
		require.NoError(t, err)
		require.NotNil(t, car.PermittedAmount)
		assert.True(t, car.QuantityCap().Equal(decimal.NewFromInt(25)))
		assert.True(t, car.BalanceUpdateBlocked)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(selectCar + ` WHERE id = $1`).
			WithArgs(int32(404)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 404)
		assert.Equal(t, domain.CodeCarNotFound, domain.CodeOf(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCarRepository_Updates(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewCarRepository(db)
	ctx := context.Background()
	blockQuery := `UPDATE cars SET balance_update_blocked = $1, updated_at = NOW() WHERE id = $2`
	meterQuery := `UPDATE cars SET last_meter = $1, updated_at = NOW() WHERE id = $2`

	mock.ExpectExec(blockQuery).WithArgs(true, int32(100)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetBalanceBlocked(ctx, 100, true))

	mock.ExpectExec(blockQuery).WithArgs(false, int32(404)).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetBalanceBlocked(ctx, 404, false)
	assert.Equal(t, domain.CodeCarNotFound, domain.CodeOf(err))

	mock.ExpectExec(meterQuery).WithArgs(int64(1200), int32(100)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateLastMeter(ctx, 100, 1200))

	mock.ExpectExec(meterQuery).WithArgs(int64(1200), int32(404)).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateLastMeter(ctx, 404, 1200)
	assert.True(t, domain.IsNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCarRepository_ListOrphanedBlocked(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewCarRepository(db)

	mock.ExpectQuery(`SELECT c.id FROM cars c
		WHERE c.balance_update_blocked
		  AND NOT EXISTS (
			SELECT 1 FROM car_operations o
			WHERE o.car_id = c.id AND o.status IN ('pending', 'in_progress'))
		ORDER BY c.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100).AddRow(103))

	ids, err := repo.ListOrphanedBlocked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int32{100, 103}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverRepository_Get(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewDriverRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, code, company_id, name, is_active FROM drivers WHERE code = $1`).
		WithArgs("DRV-200").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "company_id", "name", "is_active"}).
			AddRow(200, "DRV-200", 1, "محمود", true))

	d, err := repo.GetByCode(ctx, "DRV-200")
	require.NoError(t, err)
	assert.Equal(t, int32(200), d.ID)
	assert.Equal(t, int32(1), d.CompanyID)

	mock.ExpectQuery(`SELECT id, code, company_id, name, is_active FROM drivers WHERE id = $1`).
		WithArgs(int32(9)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(ctx, 9)
	assert.Equal(t, domain.CodeDriverNotFound, domain.CodeOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
