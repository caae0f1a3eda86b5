package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khazna-backend/internal/domain"
)

func TestLedgerService_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner deposit waits for approval", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})

		tx, err := svc.RequestDeposit(ctx, actorOf(st, companyOwnerID), MovementRequest{
			Amount: dec("1000"), Method: domain.MethodBank, Description: "إيداع بنكي",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, tx.Status)
		assert.Equal(t, domain.FamilyCompany, tx.Family)
		assert.Equal(t, companyID, tx.CompanyID)
		assert.True(t, tx.IsIncoming)
		assert.False(t, tx.IsInternal)
		assert.Nil(t, tx.ApprovedAt)
		assert.Len(t, tx.ReferenceCode, 9)
		assert.False(t, strings.HasPrefix(tx.ReferenceCode, "INT-"))
		assert.Equal(t, "10000", balanceOf(st, domain.CompanyRef(companyID)).String())

		var recipients []int32
		for _, m := range st.Outbox() {
			recipients = append(recipients, m.RecipientID)
		}
		assert.ElementsMatch(t, []int32{companyOwnerID, adminID}, recipients)
	})

	t.Run("Admin deposit settles at once", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})

		tx, err := svc.RequestDeposit(ctx, actorOf(st, adminID), MovementRequest{
			Amount: dec("500"), Method: domain.MethodCash, StationID: stationID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusApproved, tx.Status)
		assert.Equal(t, domain.FamilyStation, tx.Family)
		assert.NotNil(t, tx.ApprovedAt)
		assert.Equal(t, "500", balanceOf(st, domain.StationRef(stationID)).String())
	})

	t.Run("Admin must name exactly one wallet", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})
		admin := actorOf(st, adminID)

		_, err := svc.RequestDeposit(ctx, admin, MovementRequest{Amount: dec("500"), Method: domain.MethodCash})
		assert.Equal(t, domain.CodeHolderNotFound, domain.CodeOf(err))

		_, err = svc.RequestDeposit(ctx, admin, MovementRequest{
			Amount: dec("500"), Method: domain.MethodCash, CompanyID: companyID, StationID: stationID,
		})
		assert.Equal(t, domain.CodeHolderNotFound, domain.CodeOf(err))
	})

	t.Run("Validation", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})
		owner := actorOf(st, companyOwnerID)

		_, err := svc.RequestDeposit(ctx, owner, MovementRequest{Amount: dec("100"), Method: domain.MethodInternal})
		assert.Equal(t, domain.CodeInvalidMethod, domain.CodeOf(err))

		_, err = svc.RequestDeposit(ctx, owner, MovementRequest{Amount: dec("9"), Method: domain.MethodBank})
		assert.Equal(t, domain.CodeAmountBelowMinimum, domain.CodeOf(err))

		_, err = svc.RequestDeposit(ctx, actorOf(st, workerID), MovementRequest{Amount: dec("100"), Method: domain.MethodBank})
		assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

		assert.Empty(t, st.Transactions(domain.FamilyCompany))
	})
}

func TestLedgerService_ApproveAndDecline(t *testing.T) {
	ctx := context.Background()

	t.Run("Approve once", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})
		admin := actorOf(st, adminID)

		tx, err := svc.RequestDeposit(ctx, actorOf(st, companyOwnerID), MovementRequest{Amount: dec("1000"), Method: domain.MethodInstapay})
		require.NoError(t, err)

		_, err = svc.Approve(ctx, actorOf(st, companyOwnerID), domain.FamilyCompany, tx.ID)
		assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

		approved, err := svc.Approve(ctx, admin, domain.FamilyCompany, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusApproved, approved.Status)
		assert.Equal(t, adminID, approved.UpdatedBy)
		assert.NotNil(t, approved.ApprovedAt)
		assert.Equal(t, "11000", balanceOf(st, domain.CompanyRef(companyID)).String())

		_, err = svc.Approve(ctx, admin, domain.FamilyCompany, tx.ID)
		assert.Equal(t, domain.CodeTransactionNotPending, domain.CodeOf(err))
		assert.Equal(t, "11000", balanceOf(st, domain.CompanyRef(companyID)).String())
	})

	t.Run("Declined rows never settle", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})
		admin := actorOf(st, adminID)

		tx, err := svc.RequestDeposit(ctx, actorOf(st, companyOwnerID), MovementRequest{Amount: dec("1000"), Method: domain.MethodBank})
		require.NoError(t, err)

		declined, err := svc.Decline(ctx, admin, domain.FamilyCompany, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusDeclined, declined.Status)

		_, err = svc.Approve(ctx, admin, domain.FamilyCompany, tx.ID)
		assert.Equal(t, domain.CodeTransactionNotPending, domain.CodeOf(err))
		_, err = svc.Decline(ctx, admin, domain.FamilyCompany, tx.ID)
		assert.Equal(t, domain.CodeTransactionNotPending, domain.CodeOf(err))
		assert.Equal(t, "10000", balanceOf(st, domain.CompanyRef(companyID)).String())
	})

	t.Run("Missing row", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})

		_, err := svc.Approve(ctx, actorOf(st, adminID), domain.FamilyStation, 42)
		assert.Equal(t, domain.CodeTransactionNotFound, domain.CodeOf(err))
	})
}

func TestLedgerService_Withdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("Balance is checked on request", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})

		_, err := svc.RequestWithdrawal(ctx, actorOf(st, stationOwnerID), MovementRequest{Amount: dec("100"), Method: domain.MethodBank})
		assert.Equal(t, domain.CodeNotEnoughBalance, domain.CodeOf(err))
		assert.Empty(t, st.Transactions(domain.FamilyStation))
	})

	t.Run("Company owners cannot withdraw", func(t *testing.T) {
		st := newFixture()
		svc := NewLedgerService(st, RetryPolicy{})

		_, err := svc.RequestWithdrawal(ctx, actorOf(st, companyOwnerID), MovementRequest{Amount: dec("100"), Method: domain.MethodBank})
		assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
	})

	t.Run("Balance is checked again on approval", func(t *testing.T) {
		st := newFixture()
		st.PutStation(domain.Station{ID: stationID, Name: "محطة التحرير", Balance: dec("1000"), IsActive: true})
		ledger := NewLedgerService(st, RetryPolicy{})
		transfers := NewTransferService(st, RetryPolicy{})
		owner := actorOf(st, stationOwnerID)

		tx, err := ledger.RequestWithdrawal(ctx, owner, MovementRequest{Amount: dec("800"), Method: domain.MethodBank})
		require.NoError(t, err)
		assert.False(t, tx.IsIncoming)
		assert.Equal(t, domain.TransactionStatusPending, tx.Status)

		_, err = transfers.Allocate(ctx, owner, TransferFundStationBranch, stationBranchID, dec("500"), "")
		require.NoError(t, err)

		_, err = ledger.Approve(ctx, actorOf(st, adminID), domain.FamilyStation, tx.ID)
		assert.Equal(t, domain.CodeNotEnoughBalance, domain.CodeOf(err))

		got, err := ledger.GetTransaction(ctx, owner, domain.FamilyStation, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, got.Status)
		assert.Equal(t, "500", balanceOf(st, domain.StationRef(stationID)).String())
	})

	t.Run("Approved withdrawal debits the station", func(t *testing.T) {
		st := newFixture()
		st.PutStation(domain.Station{ID: stationID, Name: "محطة التحرير", Balance: dec("1000"), IsActive: true})
		svc := NewLedgerService(st, RetryPolicy{})

		tx, err := svc.RequestWithdrawal(ctx, actorOf(st, stationOwnerID), MovementRequest{Amount: dec("300"), Method: domain.MethodCash})
		require.NoError(t, err)
		_, err = svc.Approve(ctx, actorOf(st, adminID), domain.FamilyStation, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, "700", balanceOf(st, domain.StationRef(stationID)).String())
	})
}

func TestLedgerService_UpdatePending(t *testing.T) {
	ctx := context.Background()
	st := newFixture()
	svc := NewLedgerService(st, RetryPolicy{})
	owner := actorOf(st, companyOwnerID)

	tx, err := svc.RequestDeposit(ctx, owner, MovementRequest{Amount: dec("100"), Method: domain.MethodBank})
	require.NoError(t, err)

	_, err = svc.UpdatePending(ctx, actorOf(st, branchManagerID), domain.FamilyCompany, tx.ID,
		PendingUpdate{Amount: dec("200"), Method: domain.MethodBank})
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

	updated, err := svc.UpdatePending(ctx, owner, domain.FamilyCompany, tx.ID,
		PendingUpdate{Amount: dec("250"), Method: domain.MethodInstapay, Description: "تعديل"})
	require.NoError(t, err)
	assert.Equal(t, "250", updated.Amount.String())
	assert.Equal(t, domain.MethodInstapay, updated.Method)

	_, err = svc.Approve(ctx, actorOf(st, adminID), domain.FamilyCompany, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "10250", balanceOf(st, domain.CompanyRef(companyID)).String())

	_, err = svc.UpdatePending(ctx, owner, domain.FamilyCompany, tx.ID,
		PendingUpdate{Amount: dec("300"), Method: domain.MethodBank})
	assert.Equal(t, domain.CodeTransactionNotPending, domain.CodeOf(err))
}

func TestLedgerService_Visibility(t *testing.T) {
	ctx := context.Background()
	st := newFixture()
	st.PutStation(domain.Station{ID: stationID, Name: "محطة التحرير", Balance: dec("1000"), IsActive: true})
	ledger := NewLedgerService(st, RetryPolicy{})
	transfers := NewTransferService(st, RetryPolicy{})

	companyTx, err := transfers.Allocate(ctx, actorOf(st, companyOwnerID), TransferFundCar, carID, dec("50"), "")
	require.NoError(t, err)
	stationTx, err := transfers.Allocate(ctx, actorOf(st, stationOwnerID), TransferFundStationBranch, stationBranchID, dec("50"), "")
	require.NoError(t, err)

	t.Run("Listings are pinned to the actor", func(t *testing.T) {
		txs, total, err := ledger.ListTransactions(ctx, actorOf(st, stationOwnerID), domain.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		assert.Equal(t, stationTx.ID, txs[0].ID)

		txs, _, err = ledger.ListTransactions(ctx, actorOf(st, branchManagerID), domain.TransactionFilter{CompanyID: 9})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, companyTx.ID, txs[0].ID)

		_, _, err = ledger.ListTransactions(ctx, actorOf(st, companyOwnerID), domain.TransactionFilter{Family: domain.FamilyStation})
		assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

		_, _, err = ledger.ListTransactions(ctx, actorOf(st, workerID), domain.TransactionFilter{})
		assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

		txs, _, err = ledger.ListTransactions(ctx, actorOf(st, adminID), domain.TransactionFilter{Family: domain.FamilyStation})
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("Rows outside scope look missing", func(t *testing.T) {
		_, err := ledger.GetTransaction(ctx, actorOf(st, stationOwnerID), domain.FamilyCompany, companyTx.ID)
		assert.Equal(t, domain.CodeTransactionNotFound, domain.CodeOf(err))

		got, err := ledger.GetTransaction(ctx, actorOf(st, stationManagerID), domain.FamilyStation, stationTx.ID)
		require.NoError(t, err)
		assert.Equal(t, stationTx.ReferenceCode, got.ReferenceCode)
	})

	t.Run("Balances", func(t *testing.T) {
		h, err := ledger.GetBalance(ctx, actorOf(st, branchManagerID), domain.CarRef(carID))
		require.NoError(t, err)
		assert.Equal(t, "550", h.Balance.String())

		_, err = ledger.GetBalance(ctx, actorOf(st, stationManagerID), domain.CarRef(carID))
		assert.Equal(t, domain.CodeHolderNotFound, domain.CodeOf(err))
	})
}
