package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	query := `SELECT id, name, role, company_id, company_branch_id, station_id, station_branch_id
	          FROM users WHERE id = $1`
	var u domain.User
	var companyID, companyBranchID, stationID, stationBranchID sql.NullInt32
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Role, &companyID, &companyBranchID, &stationID, &stationBranchID)
	if err != nil {
		return nil, notFound(err, domain.CodeUserNotFound)
	}
	u.CompanyID = companyID.Int32
	u.CompanyBranchID = companyBranchID.Int32
	u.StationID = stationID.Int32
	u.StationBranchID = stationBranchID.Int32
	return &u, nil
}

func (r *userRepository) ListIDs(ctx context.Context, f repository.UserFilter) ([]int32, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.Roles) > 0 {
		roles := make([]string, len(f.Roles))
		for i, role := range f.Roles {
			roles[i] = string(role)
		}
		add("role = ANY($%d)", pq.Array(roles))
	}
	if f.CompanyID != 0 {
		add("company_id = $%d", f.CompanyID)
	}
	if f.CompanyBranchID != 0 {
		add("company_branch_id = $%d", f.CompanyBranchID)
	}
	if f.StationID != 0 {
		add("station_id = $%d", f.StationID)
	}
	if f.StationBranchID != 0 {
		add("station_branch_id = $%d", f.StationBranchID)
	}

	query := `SELECT id FROM users`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
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
