package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

const carColumns = `id, code, company_id, company_branch_id, plate_number, balance, version, is_active,
	balance_update_blocked, fuel_service_id, tank_capacity, permitted_amount, odometer_tracked,
	last_meter, allowed_days, max_daily_fuel_operations`

type carRepository struct {
	db DBTX
}

func NewCarRepository(db DBTX) repository.CarRepository {
	return &carRepository{db: db}
}

func scanCar(row *sql.Row) (*domain.Car, error) {
	var c domain.Car
	var permitted decimal.NullDecimal
	err := row.Scan(
		&c.ID, &c.Code, &c.CompanyID, &c.CompanyBranchID, &c.PlateNumber, &c.Balance, &c.Version, &c.IsActive,
		&c.BalanceUpdateBlocked, &c.FuelServiceID, &c.TankCapacity, &permitted, &c.OdometerTracked,
		&c.LastMeter, &c.AllowedDays, &c.MaxDailyFuelOperations,
	)
	if err != nil {
		return nil, notFound(err, domain.CodeCarNotFound)
	}
	if permitted.Valid {
		c.PermittedAmount = &permitted.Decimal
	}
	return &c, nil
}

func (r *carRepository) GetByID(ctx context.Context, id int32) (*domain.Car, error) {
	return scanCar(r.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, id))
}

func (r *carRepository) GetByCode(ctx context.Context, code string) (*domain.Car, error) {
	logger.DatabaseCall("SELECT", "cars", "code", code)
	return scanCar(r.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE code = $1`, code))
}

func (r *carRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Car, error) {
	logger.DatabaseCall("SELECT FOR UPDATE", "cars", "carID", id)
	return scanCar(r.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1 FOR UPDATE`, id))
}

func (r *carRepository) SetBalanceBlocked(ctx context.Context, id int32, blocked bool) error {
	query := `UPDATE cars SET balance_update_blocked = $1, updated_at = NOW() WHERE id = $2`
	logger.DatabaseCall("UPDATE", "cars", "carID", id, "blocked", blocked)
	res, err := r.db.ExecContext(ctx, query, blocked, id)
	if err != nil {
		return mapError(err)
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, nil, "carID", id)
	if n == 0 {
		return domain.Fail(domain.CodeCarNotFound)
	}
	return nil
}

func (r *carRepository) UpdateLastMeter(ctx context.Context, id int32, meter int64) error {
	query := `UPDATE cars SET last_meter = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, meter, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Fail(domain.CodeCarNotFound)
	}
	return nil
}

func (r *carRepository) ListOrphanedBlocked(ctx context.Context) ([]int32, error) {
	query := `SELECT c.id FROM cars c
		WHERE c.balance_update_blocked
		  AND NOT EXISTS (
			SELECT 1 FROM car_operations o
			WHERE o.car_id = c.id AND o.status IN ('pending', 'in_progress'))
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type driverRepository struct {
	db DBTX
}

func NewDriverRepository(db DBTX) repository.DriverRepository {
	return &driverRepository{db: db}
}

func (r *driverRepository) GetByID(ctx context.Context, id int32) (*domain.Driver, error) {
	return r.get(ctx, `SELECT id, code, company_id, name, is_active FROM drivers WHERE id = $1`, id)
}

func (r *driverRepository) GetByCode(ctx context.Context, code string) (*domain.Driver, error) {
	return r.get(ctx, `SELECT id, code, company_id, name, is_active FROM drivers WHERE code = $1`, code)
}

func (r *driverRepository) get(ctx context.Context, query string, arg any) (*domain.Driver, error) {
	var d domain.Driver
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&d.ID, &d.Code, &d.CompanyID, &d.Name, &d.IsActive); err != nil {
		return nil, notFound(err, domain.CodeDriverNotFound)
	}
	return &d, nil
}
