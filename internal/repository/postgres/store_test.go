package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentfees/internal/domain"
	"studentfees/internal/repository"
)

var transactionColumns = []string{
	"checkout_request_id", "merchant_request_id", "account_id", "amount", "phone", "status",
	"receipt_number", "result_code", "result_desc", "callback", "created_at", "resolved_at",
}

var accountColumns = []string{"id", "student_name", "guardian_email", "balance", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStore(db), mock
}

func initiatedRow(createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(transactionColumns).AddRow(
		"ws_CO_1", "29115-34620561-1", "ADM-001", int64(500), "254712345678", "initiated",
		nil, nil, nil, nil, createdAt, nil,
	)
}

func TestTransactionRepository_CreateDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO pending_transactions`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Transactions().Create(context.Background(), &domain.PendingTransaction{
		CheckoutRequestID: "ws_CO_1",
		Amount:            500,
		Phone:             "254712345678",
		Status:            domain.TransactionStatusInitiated,
	})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestTransactionRepository_GetByCheckoutID(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	resolvedAt := createdAt.Add(time.Minute)

	t.Run("initiated", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM pending_transactions WHERE checkout_request_id = \$1$`).
			WithArgs("ws_CO_1").
			WillReturnRows(initiatedRow(createdAt))

		txn, err := store.Transactions().GetByCheckoutID(context.Background(), "ws_CO_1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusInitiated, txn.Status)
		assert.Equal(t, int64(500), txn.Amount)
		assert.Nil(t, txn.ResultCode)
		assert.Nil(t, txn.ResolvedAt)
		assert.Empty(t, txn.ReceiptNumber)
	})

	t.Run("resolved", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM pending_transactions WHERE checkout_request_id = \$1$`).
			WithArgs("ws_CO_1").
			WillReturnRows(sqlmock.NewRows(transactionColumns).AddRow(
				"ws_CO_1", "", "ADM-001", int64(500), "254712345678", "completed",
				"NLJ7RT61SV", int64(0), "The service request is processed successfully.", []byte(`{"ResultCode":0}`), createdAt, resolvedAt,
			))

		txn, err := store.Transactions().GetByCheckoutID(context.Background(), "ws_CO_1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
		assert.Equal(t, "NLJ7RT61SV", txn.ReceiptNumber)
		require.NotNil(t, txn.ResultCode)
		assert.Zero(t, *txn.ResultCode)
		require.NotNil(t, txn.ResolvedAt)
		assert.True(t, resolvedAt.Equal(*txn.ResolvedAt))
		assert.JSONEq(t, `{"ResultCode":0}`, string(txn.Callback))
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM pending_transactions`).
			WithArgs("ws_CO_missing").
			WillReturnRows(sqlmock.NewRows(transactionColumns))

		_, err := store.Transactions().GetByCheckoutID(context.Background(), "ws_CO_missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestTransactionRepository_ResolveOnlyFromInitiated(t *testing.T) {
	t.Parallel()

	res := domain.Resolution{
		Status:        domain.TransactionStatusCompleted,
		ReceiptNumber: "NLJ7RT61SV",
		ResultCode:    0,
		ResultDesc:    "The service request is processed successfully.",
		Callback:      []byte(`{"ResultCode":0}`),
		ResolvedAt:    time.Now(),
	}
	expectUpdate := func(mock sqlmock.Sqlmock, affected int64) {
		mock.ExpectExec(`UPDATE pending_transactions SET status = \$1.* WHERE checkout_request_id = \$7 AND status = \$8`).
			WithArgs("completed", "NLJ7RT61SV", int64(0), res.ResultDesc, sqlmock.AnyArg(), sqlmock.AnyArg(), "ws_CO_1", "initiated").
			WillReturnResult(sqlmock.NewResult(0, affected))
	}

	t.Run("initiated row is resolved", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		expectUpdate(mock, 1)

		assert.NoError(t, store.Transactions().Resolve(context.Background(), "ws_CO_1", res))
	})

	t.Run("already resolved", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		expectUpdate(mock, 0)
		mock.ExpectQuery(`FROM pending_transactions`).
			WithArgs("ws_CO_1").
			WillReturnRows(initiatedRow(time.Now()))

		err := store.Transactions().Resolve(context.Background(), "ws_CO_1", res)
		assert.ErrorIs(t, err, repository.ErrAlreadyResolved)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		expectUpdate(mock, 0)
		mock.ExpectQuery(`FROM pending_transactions`).
			WithArgs("ws_CO_1").
			WillReturnRows(sqlmock.NewRows(transactionColumns))

		err := store.Transactions().Resolve(context.Background(), "ws_CO_1", res)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAccountRepository_CreateDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Accounts().Create(context.Background(), &domain.Account{ID: "ADM-001", StudentName: "Amina Wanjiru"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestAccountRepository_OtherInsertErrorsPassThrough(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23514", Message: "check constraint"})

	err := store.Accounts().Create(context.Background(), &domain.Account{ID: "ADM-001", StudentName: "Amina Wanjiru"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestAccountRepository_UpdateBalanceMissing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE accounts SET balance = \$1`).
		WithArgs(int64(9500), "ADM-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Accounts().UpdateBalance(context.Background(), "ADM-404", 9500)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunInTx_LocksRowsAndCommits(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM pending_transactions WHERE checkout_request_id = \$1 FOR UPDATE$`).
		WithArgs("ws_CO_1").
		WillReturnRows(initiatedRow(now))
	mock.ExpectQuery(`FROM accounts WHERE id = \$1 FOR UPDATE$`).
		WithArgs("ADM-001").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("ADM-001", "Amina Wanjiru", "", int64(10000), now, now))
	mock.ExpectExec(`UPDATE accounts SET balance = \$1`).
		WithArgs(int64(9500), "ADM-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		txn, err := repos.Transactions.GetByCheckoutID(ctx, "ws_CO_1")
		if err != nil {
			return err
		}
		account, err := repos.Accounts.GetByID(ctx, txn.AccountID)
		if err != nil {
			return err
		}
		return repos.Accounts.UpdateBalance(ctx, account.ID, account.Balance-txn.Amount)
	})
	assert.NoError(t, err)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	errStop := errors.New("stop")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET balance = \$1`).
		WithArgs(int64(9500), "ADM-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Accounts.UpdateBalance(ctx, "ADM-001", 9500); err != nil {
			return err
		}
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
}

func TestRunInTx_BeginFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	called := false
	err := store.RunInTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, called)
}

func TestReadsOutsideTxDoNotLock(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery(`FROM accounts WHERE id = \$1$`).
		WithArgs("ADM-001").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("ADM-001", "Amina Wanjiru", "guardian@example.com", int64(10000), now, now))

	account, err := store.Accounts().GetByID(context.Background(), "ADM-001")
	require.NoError(t, err)
	assert.Equal(t, "guardian@example.com", account.GuardianEmail)
	assert.Equal(t, int64(10000), account.Balance)
}
