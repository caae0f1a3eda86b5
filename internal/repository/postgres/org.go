package postgres

import (
	"context"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

type companyRepository struct {
	db DBTX
}

func NewCompanyRepository(db DBTX) repository.CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) GetByID(ctx context.Context, id int32) (*domain.Company, error) {
	query := `SELECT id, name, balance, version, is_active FROM companies WHERE id = $1`
	var c domain.Company
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Balance, &c.Version, &c.IsActive)
	if err != nil {
		return nil, notFound(err, domain.CodeHolderNotFound)
	}
	return &c, nil
}

func (r *companyRepository) GetBranch(ctx context.Context, id int32) (*domain.CompanyBranch, error) {
	query := `SELECT id, company_id, name, balance, version, fee_percent FROM company_branches WHERE id = $1`
	var b domain.CompanyBranch
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.CompanyID, &b.Name, &b.Balance, &b.Version, &b.FeePercent)
	if err != nil {
		return nil, notFound(err, domain.CodeHolderNotFound)
	}
	return &b, nil
}

type stationRepository struct {
	db DBTX
}

func NewStationRepository(db DBTX) repository.StationRepository {
	return &stationRepository{db: db}
}

func (r *stationRepository) GetByID(ctx context.Context, id int32) (*domain.Station, error) {
	query := `SELECT id, name, balance, version, is_active FROM stations WHERE id = $1`
	var s domain.Station
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.Balance, &s.Version, &s.IsActive)
	if err != nil {
		return nil, notFound(err, domain.CodeHolderNotFound)
	}
	return &s, nil
}

func (r *stationRepository) GetBranch(ctx context.Context, id int32) (*domain.StationBranch, error) {
	query := `SELECT id, station_id, name, balance, version, fee_percent, is_active FROM station_branches WHERE id = $1`
	var b domain.StationBranch
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.StationID, &b.Name, &b.Balance, &b.Version, &b.FeePercent, &b.IsActive)
	if err != nil {
		return nil, notFound(err, domain.CodeStationBranchNotFound)
	}
	return &b, nil
}

func (r *stationRepository) GetService(ctx context.Context, id int32) (*domain.Service, error) {
	query := `SELECT id, name, kind, cost FROM services WHERE id = $1`
	var s domain.Service
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.Kind, &s.Cost)
	if err != nil {
		return nil, notFound(err, domain.CodeServiceNotFound)
	}
	return &s, nil
}

func (r *stationRepository) IsServiceAssigned(ctx context.Context, branchID, serviceID int32) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM station_branch_services WHERE station_branch_id = $1 AND service_id = $2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, branchID, serviceID).Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}
