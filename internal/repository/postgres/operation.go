package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

const operationColumns = `id, status, kind, car_id, driver_id, station_branch_id, worker_id, service_id,
	start_time, end_time, duration_seconds, first_car_meter, last_car_meter,
	amount, cost, company_cost, station_cost, profits, fuel_consumption_rate,
	meter_photo, pump_photo, created_at, updated_at`

type operationRepository struct {
	db DBTX
}

func NewOperationRepository(db DBTX) repository.OperationRepository {
	return &operationRepository{db: db}
}

func scanOperation(row rowScanner) (*domain.CarOperation, error) {
	var op domain.CarOperation
	var serviceID sql.NullInt32
	var start, end sql.NullTime
	var firstMeter, lastMeter sql.NullInt64
	var rate decimal.NullDecimal
	var meterPhoto, pumpPhoto sql.NullString
	err := row.Scan(
		&op.ID, &op.Status, &op.Kind, &op.CarID, &op.DriverID, &op.StationBranchID, &op.WorkerID, &serviceID,
		&start, &end, &op.DurationSeconds, &firstMeter, &lastMeter,
		&op.Amount, &op.Cost, &op.CompanyCost, &op.StationCost, &op.Profits, &rate,
		&meterPhoto, &pumpPhoto, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	op.ServiceID = serviceID.Int32
	if start.Valid {
		t := start.Time
		op.StartTime = &t
	}
	if end.Valid {
		t := end.Time
		op.EndTime = &t
	}
	if firstMeter.Valid {
		v := firstMeter.Int64
		op.FirstCarMeter = &v
	}
	if lastMeter.Valid {
		v := lastMeter.Int64
		op.LastCarMeter = &v
	}
	if rate.Valid {
		v := rate.Decimal
		op.FuelConsumptionRate = &v
	}
	op.MeterPhoto = meterPhoto.String
	op.PumpPhoto = pumpPhoto.String
	return &op, nil
}

func (r *operationRepository) Create(ctx context.Context, op *domain.CarOperation) error {
	logger.EnterMethod("operationRepository.Create", "carID", op.CarID, "kind", op.Kind)
	query := `INSERT INTO car_operations (status, kind, car_id, driver_id, station_branch_id, worker_id, service_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	logger.DatabaseCall("INSERT", "car_operations", "carID", op.CarID)
	err := r.db.QueryRowContext(ctx, query, op.Status, op.Kind, op.CarID, op.DriverID, op.StationBranchID,
		op.WorkerID, nullInt32(op.ServiceID)).Scan(&op.ID, &op.CreatedAt, &op.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "operationID", op.ID)
	if err != nil {
		err = mapError(err)
		logger.ExitMethodWithError("operationRepository.Create", err, "carID", op.CarID)
		return err
	}
	logger.ExitMethod("operationRepository.Create", "operationID", op.ID)
	return nil
}

func (r *operationRepository) GetByID(ctx context.Context, id int64) (*domain.CarOperation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM car_operations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.CodeOperationNotFound)
	}
	return op, nil
}

func (r *operationRepository) GetForUpdate(ctx context.Context, id int64) (*domain.CarOperation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM car_operations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, domain.CodeOperationNotFound)
	}
	return op, nil
}

func (r *operationRepository) Update(ctx context.Context, op *domain.CarOperation) error {
	query := `UPDATE car_operations SET status = $1, service_id = $2, start_time = $3, end_time = $4,
		duration_seconds = $5, first_car_meter = $6, last_car_meter = $7, amount = $8, cost = $9,
		company_cost = $10, station_cost = $11, profits = $12, fuel_consumption_rate = $13,
		meter_photo = $14, pump_photo = $15, updated_at = NOW()
		WHERE id = $16`
	var rate decimal.NullDecimal
	if op.FuelConsumptionRate != nil {
		rate = decimal.NewNullDecimal(*op.FuelConsumptionRate)
	}
	logger.DatabaseCall("UPDATE", "car_operations", "operationID", op.ID, "status", op.Status)
	res, err := r.db.ExecContext(ctx, query, op.Status, nullInt32(op.ServiceID), op.StartTime, op.EndTime,
		op.DurationSeconds, op.FirstCarMeter, op.LastCarMeter, op.Amount, op.Cost,
		op.CompanyCost, op.StationCost, op.Profits, rate,
		nullString(op.MeterPhoto), nullString(op.PumpPhoto), op.ID)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Fail(domain.CodeOperationNotFound)
	}
	return nil
}

func (r *operationRepository) Delete(ctx context.Context, id int64) error {
	logger.DatabaseCall("DELETE", "car_operations", "operationID", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM car_operations WHERE id = $1 AND status <> 'completed'`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Fail(domain.CodeOperationNotFound)
	}
	return nil
}

func (r *operationRepository) GetActiveByCar(ctx context.Context, carID int32) (*domain.CarOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM car_operations
		WHERE car_id = $1 AND status IN ('pending', 'in_progress') LIMIT 1`
	op, err := scanOperation(r.db.QueryRowContext(ctx, query, carID))
	if err != nil {
		return nil, notFound(err, domain.CodeOperationNotFound)
	}
	return op, nil
}

func (r *operationRepository) CountCompletedFuelSince(ctx context.Context, carID int32, since time.Time) (int, error) {
	query := `SELECT count(*) FROM car_operations
		WHERE car_id = $1 AND kind = 'fuel' AND status = 'completed' AND end_time >= $2`
	var n int
	if err := r.db.QueryRowContext(ctx, query, carID, since).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (r *operationRepository) ListActiveByStationBranch(ctx context.Context, branchID int32) ([]domain.CarOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM car_operations
		WHERE station_branch_id = $1 AND status IN ('pending', 'in_progress') ORDER BY created_at`
	return r.list(ctx, query, branchID)
}

func (r *operationRepository) ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.CarOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM car_operations
		WHERE status = 'pending' AND created_at < $1 ORDER BY id`
	return r.list(ctx, query, createdBefore)
}

func (r *operationRepository) list(ctx context.Context, query string, args ...any) ([]domain.CarOperation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ops []domain.CarOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}
