package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
)

// Column layout is shared by both families; columns a family lacks are
// projected as NULL so a single scan handles either table.
var ledgerTables = map[domain.Family]struct {
	table   string
	columns string
}{
	domain.FamilyCompany: {
		table: "company_khazna_transactions",
		columns: `id, amount, is_incoming, status, method, reference_code, description, is_internal, for_what,
			company_id, company_branch_id, car_id, NULL::int, NULL::int, car_operation_id,
			created_by, updated_by, approved_at, created_at, updated_at`,
	},
	domain.FamilyStation: {
		table: "station_khazna_transactions",
		columns: `id, amount, is_incoming, status, method, reference_code, description, is_internal, NULL::text,
			NULL::int, NULL::int, NULL::int, station_id, station_branch_id, car_operation_id,
			created_by, updated_by, approved_at, created_at, updated_at`,
	},
}

type transactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner, family domain.Family) (*domain.Transaction, error) {
	t := domain.Transaction{Family: family}
	var forWhat sql.NullString
	var companyID, companyBranchID, carID, stationID, stationBranchID sql.NullInt32
	var opID sql.NullInt64
	var updatedBy sql.NullInt32
	var approvedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.Amount, &t.IsIncoming, &t.Status, &t.Method, &t.ReferenceCode, &t.Description, &t.IsInternal, &forWhat,
		&companyID, &companyBranchID, &carID, &stationID, &stationBranchID, &opID,
		&t.CreatedBy, &updatedBy, &approvedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ForWhat = domain.ForWhat(forWhat.String)
	t.CompanyID = companyID.Int32
	t.CompanyBranchID = companyBranchID.Int32
	t.CarID = carID.Int32
	t.StationID = stationID.Int32
	t.StationBranchID = stationBranchID.Int32
	t.UpdatedBy = updatedBy.Int32
	if opID.Valid {
		id := opID.Int64
		t.CarOperationID = &id
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		t.ApprovedAt = &at
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Create", "family", t.Family, "reference", t.ReferenceCode)

	var opID sql.NullInt64
	if t.CarOperationID != nil {
		opID = sql.NullInt64{Int64: *t.CarOperationID, Valid: true}
	}

	var query string
	var args []any
	switch t.Family {
	case domain.FamilyCompany:
		query = `INSERT INTO company_khazna_transactions
			(amount, is_incoming, status, method, reference_code, description, is_internal, for_what,
			 company_id, company_branch_id, car_id, car_operation_id, created_by, approved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id, created_at, updated_at`
		args = []any{domain.Round(t.Amount), t.IsIncoming, t.Status, t.Method, t.ReferenceCode, t.Description, t.IsInternal,
			nullString(string(t.ForWhat)), t.CompanyID, nullInt32(t.CompanyBranchID), nullInt32(t.CarID), opID, t.CreatedBy, t.ApprovedAt}
	case domain.FamilyStation:
		query = `INSERT INTO station_khazna_transactions
			(amount, is_incoming, status, method, reference_code, description, is_internal,
			 station_id, station_branch_id, car_operation_id, created_by, approved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at`
		args = []any{domain.Round(t.Amount), t.IsIncoming, t.Status, t.Method, t.ReferenceCode, t.Description, t.IsInternal,
			t.StationID, nullInt32(t.StationBranchID), opID, t.CreatedBy, t.ApprovedAt}
	default:
		return fmt.Errorf("unknown transaction family %q", t.Family)
	}

	logger.DatabaseCall("INSERT", ledgerTables[t.Family].table, "reference", t.ReferenceCode)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "transactionID", t.ID)
	if err != nil {
		err = mapError(err)
		logger.ExitMethodWithError("transactionRepository.Create", err, "reference", t.ReferenceCode)
		return err
	}
	logger.ExitMethod("transactionRepository.Create", "transactionID", t.ID)
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, family domain.Family, id int64) (*domain.Transaction, error) {
	return r.get(ctx, family, id, false)
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, family domain.Family, id int64) (*domain.Transaction, error) {
	return r.get(ctx, family, id, true)
}

func (r *transactionRepository) get(ctx context.Context, family domain.Family, id int64, lock bool) (*domain.Transaction, error) {
	tbl, ok := ledgerTables[family]
	if !ok {
		return nil, fmt.Errorf("unknown transaction family %q", family)
	}
	query := `SELECT ` + tbl.columns + ` FROM ` + tbl.table + ` WHERE id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id), family)
	if err != nil {
		return nil, notFound(err, domain.CodeTransactionNotFound)
	}
	return t, nil
}

// Update persists the mutable fields of a pending row. Rows that already
// left PENDING are never matched.
func (r *transactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	tbl, ok := ledgerTables[t.Family]
	if !ok {
		return fmt.Errorf("unknown transaction family %q", t.Family)
	}
	query := `UPDATE ` + tbl.table + ` SET amount = $1, method = $2, description = $3, status = $4,
		updated_by = $5, approved_at = $6, updated_at = NOW()
		WHERE id = $7 AND status = 'PENDING'`
	logger.DatabaseCall("UPDATE", tbl.table, "transactionID", t.ID, "status", t.Status)
	res, err := r.db.ExecContext(ctx, query, domain.Round(t.Amount), t.Method, t.Description, t.Status,
		nullInt32(t.UpdatedBy), t.ApprovedAt, t.ID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Fail(domain.CodeTransactionNotPending)
	}
	return nil
}

func (r *transactionRepository) ReferenceExists(ctx context.Context, family domain.Family, code string) (bool, error) {
	tbl, ok := ledgerTables[family]
	if !ok {
		return false, fmt.Errorf("unknown transaction family %q", family)
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + tbl.table + ` WHERE reference_code = $1)`
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (r *transactionRepository) List(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int32, error) {
	tbl, ok := ledgerTables[f.Family]
	if !ok {
		return nil, 0, fmt.Errorf("unknown transaction family %q", f.Family)
	}
	f.Normalize()

	where, args := transactionWhere(f)
	var count int32
	countQuery := `SELECT count(*) FROM ` + tbl.table + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, mapError(err)
	}

	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		tbl.columns, tbl.table, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, f.PageSize, offset)...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, f.Family)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, *t)
	}
	return txs, count, rows.Err()
}

func transactionWhere(f domain.TransactionFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Family == domain.FamilyCompany {
		if f.CompanyID != 0 {
			add("company_id = $%d", f.CompanyID)
		}
		if f.CompanyBranchID != 0 {
			add("company_branch_id = $%d", f.CompanyBranchID)
		}
		if f.CarID != 0 {
			add("car_id = $%d", f.CarID)
		}
	} else {
		if f.StationID != 0 {
			add("station_id = $%d", f.StationID)
		}
		if f.StationBranchID != 0 {
			add("station_branch_id = $%d", f.StationBranchID)
		}
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Method != "" {
		add("method = $%d", f.Method)
	}
	if f.IsInternal != nil {
		add("is_internal = $%d", *f.IsInternal)
	}
	if f.From != nil {
		add("created_at >= $%d", f.From.UTC())
	}
	if f.To != nil {
		add("created_at <= $%d", f.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
