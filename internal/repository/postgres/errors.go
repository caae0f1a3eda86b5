package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"khazna-backend/internal/domain"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqUniqueViolation      = "23505"
	pqCheckViolation       = "23514"

	activeOperationConstraint = "car_operations_one_active_per_car"
	balanceCheckSuffix        = "_balance_non_negative"
)

// mapError turns driver errors that signal a lost race into domain failures.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
		return domain.ConflictFrom(err)
	case pqUniqueViolation:
		if pqErr.Constraint == activeOperationConstraint {
			e := domain.Fail(domain.CodeCarInProgress)
			e.Cause = err
			return e
		}
		return domain.ConflictFrom(err)
	case pqCheckViolation:
		if strings.HasSuffix(pqErr.Constraint, balanceCheckSuffix) {
			e := domain.Fail(domain.CodeNotEnoughBalance)
			e.Cause = err
			return e
		}
	}
	return err
}

// notFound translates sql.ErrNoRows into the catalogued failure for code.
func notFound(err error, code string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Fail(code)
	}
	return mapError(err)
}

func nullInt32(v int32) sql.NullInt32 {
	return sql.NullInt32{Int32: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func checkAffected(res sql.Result, operation string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if n == 0 {
		return domain.ConflictFrom(fmt.Errorf("%s: no rows affected", operation))
	}
	return nil
}
