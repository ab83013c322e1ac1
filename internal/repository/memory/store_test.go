package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentfees/internal/domain"
	"studentfees/internal/repository"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Accounts().Create(ctx, &domain.Account{ID: "ADM-001", StudentName: "Amina", Balance: 10000}))
	require.NoError(t, s.Transactions().Create(ctx, &domain.PendingTransaction{
		CheckoutRequestID: "ws_CO_1",
		AccountID:         "ADM-001",
		Amount:            500,
		Phone:             "254712345678",
		Status:            domain.TransactionStatusInitiated,
		CreatedAt:         time.Now(),
	}))
}

func TestStore_CreateDuplicate(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seed(t, s)

	err := s.Transactions().Create(context.Background(), &domain.PendingTransaction{CheckoutRequestID: "ws_CO_1"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	err = s.Accounts().Create(context.Background(), &domain.Account{ID: "ADM-001"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := NewStore()

	_, err := s.Transactions().GetByCheckoutID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.Accounts().GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_ResolveOnlyOnce(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	res := domain.Resolution{Status: domain.TransactionStatusFailed, ResultCode: 1032, ResultDesc: "cancelled"}
	require.NoError(t, s.Transactions().Resolve(ctx, "ws_CO_1", res))

	err := s.Transactions().Resolve(ctx, "ws_CO_1", domain.Resolution{Status: domain.TransactionStatusCompleted})
	assert.ErrorIs(t, err, repository.ErrAlreadyResolved)

	txn, err := s.Transactions().GetByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, txn.Status)
}

func TestStore_RunInTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Accounts.UpdateBalance(ctx, "ADM-001", 9500))
		require.NoError(t, repos.Transactions.Resolve(ctx, "ws_CO_1", domain.Resolution{Status: domain.TransactionStatusCompleted}))

		// Writes are visible inside the unit of work.
		account, err := repos.Accounts.GetByID(ctx, "ADM-001")
		require.NoError(t, err)
		assert.Equal(t, int64(9500), account.Balance)

		return boom
	})
	require.ErrorIs(t, err, boom)

	account, err := s.Accounts().GetByID(ctx, "ADM-001")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), account.Balance)

	txn, err := s.Transactions().GetByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusInitiated, txn.Status)
}

func TestStore_RunInTx_Serializes(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
				account, err := repos.Accounts.GetByID(ctx, "ADM-001")
				if err != nil {
					return err
				}
				return repos.Accounts.UpdateBalance(ctx, account.ID, account.Balance-100)
			})
		}()
	}
	wg.Wait()

	account, err := s.Accounts().GetByID(ctx, "ADM-001")
	require.NoError(t, err)
	assert.Equal(t, int64(10000-workers*100), account.Balance)
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	txn, err := s.Transactions().GetByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	txn.Status = domain.TransactionStatusCompleted

	again, err := s.Transactions().GetByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusInitiated, again.Status)
}
