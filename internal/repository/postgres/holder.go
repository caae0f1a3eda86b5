package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

var holderTables = map[domain.HolderType]string{
	domain.HolderCompany:       "companies",
	domain.HolderCompanyBranch: "company_branches",
	domain.HolderCar:           "cars",
	domain.HolderStation:       "stations",
	domain.HolderStationBranch: "station_branches",
}

// Every holder query projects the same nine columns so one scan serves all types.
var holderSelects = map[domain.HolderType]string{
	domain.HolderCompany: `SELECT id, name, balance, version, id, 0, 0, 0, FALSE
		FROM companies WHERE id = $1`,
	domain.HolderCompanyBranch: `SELECT id, name, balance, version, company_id, id, 0, 0, FALSE
		FROM company_branches WHERE id = $1`,
	domain.HolderCar: `SELECT id, code, balance, version, company_id, company_branch_id, 0, 0, balance_update_blocked
		FROM cars WHERE id = $1`,
	domain.HolderStation: `SELECT id, name, balance, version, 0, 0, id, 0, FALSE
		FROM stations WHERE id = $1`,
	domain.HolderStationBranch: `SELECT id, name, balance, version, 0, 0, station_id, id, FALSE
		FROM station_branches WHERE id = $1`,
}

type holderRepository struct {
	db DBTX
}

func NewHolderRepository(db DBTX) repository.HolderRepository {
	return &holderRepository{db: db}
}

func (r *holderRepository) Get(ctx context.Context, ref domain.HolderRef) (*domain.Holder, error) {
	return r.get(ctx, ref, false)
}

func (r *holderRepository) GetForUpdate(ctx context.Context, ref domain.HolderRef) (*domain.Holder, error) {
	return r.get(ctx, ref, true)
}

func (r *holderRepository) get(ctx context.Context, ref domain.HolderRef, lock bool) (*domain.Holder, error) {
	query, ok := holderSelects[ref.Type]
	if !ok {
		return nil, fmt.Errorf("unknown holder type %q", ref.Type)
	}
	if lock {
		query += " FOR UPDATE"
	}
	logger.DatabaseCall("SELECT", holderTables[ref.Type], "holder", ref.String(), "lock", lock)

	h := &domain.Holder{Ref: domain.HolderRef{Type: ref.Type}}
	err := r.db.QueryRowContext(ctx, query, ref.ID).Scan(
		&h.Ref.ID, &h.Name, &h.Balance, &h.Version,
		&h.CompanyID, &h.CompanyBranchID, &h.StationID, &h.StationBranchID,
		&h.BalanceBlocked,
	)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "holder", ref.String())
		return nil, notFound(err, domain.CodeHolderNotFound)
	}
	logger.DatabaseResult("SELECT", 1, nil, "holder", ref.String(), "balance", h.Balance.StringFixed(2))
	return h, nil
}

func (r *holderRepository) UpdateBalance(ctx context.Context, ref domain.HolderRef, balance decimal.Decimal, expectedVersion int64) error {
	table, ok := holderTables[ref.Type]
	if !ok {
		return fmt.Errorf("unknown holder type %q", ref.Type)
	}
	query := fmt.Sprintf(`UPDATE %s SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`, table)
	logger.DatabaseCall("UPDATE", table, "holder", ref.String(), "version", expectedVersion)

	res, err := r.db.ExecContext(ctx, query, domain.Round(balance), ref.ID, expectedVersion)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "holder", ref.String())
		return mapError(err)
	}
	return checkAffected(res, "update "+ref.String()+" balance")
}
