package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khazna-backend/internal/domain"
)

const selectOperation = `SELECT id, status, kind, car_id, driver_id, station_branch_id, worker_id, service_id,
	start_time, end_time, duration_seconds, first_car_meter, last_car_meter,
	amount, cost, company_cost, station_cost, profits, fuel_consumption_rate,
	meter_photo, pump_photo, created_at, updated_at FROM car_operations`

var operationRowColumns = []string{"id", "status", "kind", "car_id", "driver_id", "station_branch_id", "worker_id",
	"service_id", "start_time", "end_time", "duration_seconds", "first_car_meter", "last_car_meter", "amount", "cost",
	"company_cost", "station_cost", "profits", "fuel_consumption_rate", "meter_photo", "pump_photo",
	"created_at", "updated_at"}

const insertOperation = `INSERT INTO car_operations (status, kind, car_id, driver_id, station_branch_id, worker_id, service_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`

func TestOperationRepository_Create(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewOperationRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	t.Run("fuel operation", func(t *testing.T) {
		op := &domain.CarOperation{Status: domain.OperationPending, Kind: domain.ServiceKindFuel,
			CarID: 100, DriverID: 200, StationBranchID: 20, WorkerID: 6, ServiceID: 7}
		mock.ExpectQuery(insertOperation).
			WithArgs("pending", "fuel", int32(100), int32(200), int32(20), int32(6), int32(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))

		require.NoError(t, repo.Create(ctx, op))
		assert.Equal(t, int64(9), op.ID)
		assert.Equal(t, now, op.CreatedAt)
	})

	t.Run("other service is stored without service id", func(t *testing.T) {
		op := &domain.CarOperation{Status: domain.OperationPending, Kind: domain.ServiceKindOther,
			CarID: 100, DriverID: 200, StationBranchID: 20, WorkerID: 6}
		mock.ExpectQuery(insertOperation).
			WithArgs("pending", "other", int32(100), int32(200), int32(20), int32(6), nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))

		require.NoError(t, repo.Create(ctx, op))
	})

	t.Run("second active operation for the car", func(t *testing.T) {
		op := &domain.CarOperation{Status: domain.OperationPending, Kind: domain.ServiceKindFuel,
			CarID: 100, DriverID: 200, StationBranchID: 20, WorkerID: 6, ServiceID: 7}
		mock.ExpectQuery(insertOperation).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: activeOperationConstraint})

		err := repo.Create(ctx, op)
		assert.Equal(t, domain.CodeCarInProgress, domain.CodeOf(err))
		assert.Zero(t, op.ID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_Get(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewOperationRepository(db)
	ctx := context.Background()
	start := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(selectOperation + ` WHERE id = $1 FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(operationRowColumns).AddRow(
			9, "in_progress", "fuel", 100, 200, 20, 6, 7,
			start, nil, 0, 1000, 1200,
			"0.00", "0.00", "0.00", "0.00", "0.00", nil,
			"operations/9/meter-a.jpg", nil, start, start))

	op, err := repo.GetForUpdate(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationInProgress, op.Status)
	assert.Equal(t, domain.ServiceKindFuel, op.Kind)
	require.NotNil(t, op.StartTime)
	assert.Equal(t, start, *op.StartTime)
	assert.Nil(t, op.EndTime)
	require.NotNil(t, op.FirstCarMeter)
	assert.Equal(t, int64(1000), *op.FirstCarMeter)
	assert.Equal(t, int64(1200), *op.LastCarMeter)
	assert.Nil(t, op.FuelConsumptionRate)
	assert.Equal(t, "operations/9/meter-a.jpg", op.MeterPhoto)
	assert.Empty(t, op.PumpPhoto)

	mock.ExpectQuery(selectOperation + ` WHERE id = $1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(ctx, 404)
	assert.Equal(t, domain.CodeOperationNotFound, domain.CodeOf(err))

	mock.ExpectQuery(selectOperation + ` WHERE car_id = $1 AND status IN ('pending', 'in_progress') LIMIT 1`).
		WithArgs(int32(100)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetActiveByCar(ctx, 100)
	assert.True(t, domain.IsNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_Update(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewOperationRepository(db)
	ctx := context.Background()
	start := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Second)
	first, last := int64(1000), int64(1200)
	rate := decimal.NewFromInt(5)

	op := &domain.CarOperation{
		ID:                  9,
		Status:              domain.OperationCompleted,
		ServiceID:           7,
		StartTime:           &start,
		EndTime:             &end,
		DurationSeconds:     30,
		FirstCarMeter:       &first,
		LastCarMeter:        &last,
		Amount:              decimal.NewFromInt(40),
		Cost:                decimal.NewFromInt(400),
		CompanyCost:         decimal.NewFromInt(420),
		StationCost:         decimal.NewFromInt(408),
		Profits:             decimal.NewFromInt(12),
		FuelConsumptionRate: &rate,
		MeterPhoto:          "operations/9/meter-a.jpg",
		PumpPhoto:           "operations/9/pump-b.jpg",
	}
	update := `UPDATE car_operations SET status = $1, service_id = $2, start_time = $3, end_time = $4,
		duration_seconds = $5, first_car_meter = $6, last_car_meter = $7, amount = $8, cost = $9,
		company_cost = $10, station_cost = $11, profits = $12, fuel_consumption_rate = $13,
		meter_photo = $14, pump_photo = $15, updated_at = NOW()
		WHERE id = $16`

	mock.ExpectExec(update).
		WithArgs("completed", int32(7), start, end, int64(30), int64(1000), int64(1200),
			"40", "400", "420", "408", "12", "5",
			"operations/9/meter-a.jpg", "operations/9/pump-b.jpg", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(ctx, op))

	pending := &domain.CarOperation{ID: 404, Status: domain.OperationPending}
	mock.ExpectExec(update).
		WithArgs("pending", nil, nil, nil, int64(0), nil, nil, "0", "0", "0", "0", "0", nil, nil, nil, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(ctx, pending)
	assert.Equal(t, domain.CodeOperationNotFound, domain.CodeOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_Delete(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewOperationRepository(db)
	ctx := context.Background()
	del := `DELETE FROM car_operations WHERE id = $1 AND status <> 'completed'`

	mock.ExpectExec(del).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, 9))

	// completed rows are never matched
	mock.ExpectExec(del).WithArgs(int64(10)).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(ctx, 10)
	assert.Equal(t, domain.CodeOperationNotFound, domain.CodeOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_Queries(t *testing.T) {
	db, mock := newExactMock(t)
	repo := NewOperationRepository(db)
	ctx := context.Background()
	created := time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)
	row := func(id int64, status string) []driver.Value {
		return []driver.Value{id, status, "fuel", 100, 200, 20, 6, 7,
			nil, nil, 0, nil, nil, "0.00", "0.00", "0.00", "0.00", "0.00", nil, nil, nil, created, created}
	}

	mock.ExpectQuery(`SELECT count(*) FROM car_operations
		WHERE car_id = $1 AND kind = 'fuel' AND status = 'completed' AND end_time >= $2`).
		WithArgs(int32(100), created).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := repo.CountCompletedFuelSince(ctx, 100, created)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectQuery(selectOperation + ` WHERE station_branch_id = $1 AND status IN ('pending', 'in_progress') ORDER BY created_at`).
		WithArgs(int32(20)).
		WillReturnRows(sqlmock.NewRows(operationRowColumns).
			AddRow(row(9, "pending")...).
			AddRow(row(11, "in_progress")...))
	ops, err := repo.ListActiveByStationBranch(ctx, 20)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, domain.OperationInProgress, ops[1].Status)

	cutoff := created.Add(time.Hour)
	mock.ExpectQuery(selectOperation + ` WHERE status = 'pending' AND created_at < $1 ORDER BY id`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(operationRowColumns).AddRow(row(9, "pending")...))
	ops, err = repo.ListStalePending(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, int64(9), ops[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
