package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"khazna-backend/internal/domain"
)

func TestMapError(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"serialization failure", &pq.Error{Code: pqSerializationFailure}, domain.CodeConcurrencyConflict},
		{"deadlock", &pq.Error{Code: pqDeadlockDetected}, domain.CodeConcurrencyConflict},
		{"lock not available", &pq.Error{Code: pqLockNotAvailable}, domain.CodeConcurrencyConflict},
		{"active operation index", &pq.Error{Code: pqUniqueViolation, Constraint: activeOperationConstraint}, domain.CodeCarInProgress},
		{"reference code collision", &pq.Error{Code: pqUniqueViolation, Constraint: "company_khazna_transactions_reference_code_key"}, domain.CodeConcurrencyConflict},
		{"balance check", &pq.Error{Code: pqCheckViolation, Constraint: "cars_balance_non_negative"}, domain.CodeNotEnoughBalance},
		{"other check", &pq.Error{Code: pqCheckViolation, Constraint: "amount_positive"}, "internal_error"},
		{"foreign error", plain, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.Equal(t, tt.code, domain.CodeOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, mapError(nil))
}

func TestNotFound(t *testing.T) {
	err := notFound(sql.ErrNoRows, domain.CodeCarNotFound)
	assert.Equal(t, domain.CodeCarNotFound, domain.CodeOf(err))
	assert.True(t, domain.IsNotFound(err))

	err = notFound(&pq.Error{Code: pqDeadlockDetected}, domain.CodeCarNotFound)
	assert.True(t, domain.IsConcurrencyConflict(err))
}
