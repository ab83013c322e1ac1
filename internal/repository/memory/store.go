// Package memory is a non-durable repository.Store for demos and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"studentfees/internal/domain"
	"studentfees/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps transactions and accounts in process memory. Every unit of
// work holds the store lock and stages its writes, which are applied only
// when the unit succeeds.
type Store struct {
	mu           sync.Mutex
	transactions map[string]domain.PendingTransaction
	accounts     map[string]domain.Account
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]domain.PendingTransaction),
		accounts:     make(map[string]domain.Account),
	}
}

// Transactions returns a repository whose calls are individually atomic.
func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepo{run: s.run}
}

// Accounts returns a repository whose calls are individually atomic.
func (s *Store) Accounts() repository.AccountRepository {
	return &accountRepo{run: s.run}
}

// RunInTx runs fn with exclusive access to the store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.run(func(u *unitOfWork) error {
		inTx := func(f func(*unitOfWork) error) error { return f(u) }
		return fn(ctx, repository.Repositories{
			Transactions: &transactionRepo{run: inTx},
			Accounts:     &accountRepo{run: inTx},
		})
	})
}

func (s *Store) run(fn func(u *unitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &unitOfWork{
		store:        s,
		transactions: make(map[string]domain.PendingTransaction),
		accounts:     make(map[string]domain.Account),
	}
	if err := fn(u); err != nil {
		return err
	}
	u.commit()
	return nil
}

// unitOfWork overlays staged writes on the store maps. The store lock is
// held for its whole lifetime.
type unitOfWork struct {
	store        *Store
	transactions map[string]domain.PendingTransaction
	accounts     map[string]domain.Account
}

func (u *unitOfWork) transaction(id string) (domain.PendingTransaction, bool) {
	if txn, ok := u.transactions[id]; ok {
		return txn, true
	}
	txn, ok := u.store.transactions[id]
	return txn, ok
}

func (u *unitOfWork) account(id string) (domain.Account, bool) {
	if account, ok := u.accounts[id]; ok {
		return account, true
	}
	account, ok := u.store.accounts[id]
	return account, ok
}

func (u *unitOfWork) commit() {
	for id, txn := range u.transactions {
		u.store.transactions[id] = txn
	}
	for id, account := range u.accounts {
		u.store.accounts[id] = account
	}
}

type transactionRepo struct {
	run func(func(*unitOfWork) error) error
}

func (r *transactionRepo) Create(ctx context.Context, txn *domain.PendingTransaction) error {
	return r.run(func(u *unitOfWork) error {
		if _, ok := u.transaction(txn.CheckoutRequestID); ok {
			return repository.ErrAlreadyExists
		}
		u.transactions[txn.CheckoutRequestID] = cloneTransaction(*txn)
		return nil
	})
}

func (r *transactionRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	var out *domain.PendingTransaction
	err := r.run(func(u *unitOfWork) error {
		txn, ok := u.transaction(checkoutID)
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneTransaction(txn)
		out = &c
		return nil
	})
	return out, err
}

func (r *transactionRepo) Resolve(ctx context.Context, checkoutID string, res domain.Resolution) error {
	return r.run(func(u *unitOfWork) error {
		txn, ok := u.transaction(checkoutID)
		if !ok {
			return repository.ErrNotFound
		}
		if txn.Status != domain.TransactionStatusInitiated {
			return repository.ErrAlreadyResolved
		}
		res.Apply(&txn)
		u.transactions[checkoutID] = cloneTransaction(txn)
		return nil
	})
}

type accountRepo struct {
	run func(func(*unitOfWork) error) error
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	return r.run(func(u *unitOfWork) error {
		if _, ok := u.account(account.ID); ok {
			return repository.ErrAlreadyExists
		}
		u.accounts[account.ID] = *account
		return nil
	})
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var out *domain.Account
	err := r.run(func(u *unitOfWork) error {
		account, ok := u.account(id)
		if !ok {
			return repository.ErrNotFound
		}
		out = &account
		return nil
	})
	return out, err
}

func (r *accountRepo) UpdateBalance(ctx context.Context, id string, balance int64) error {
	return r.run(func(u *unitOfWork) error {
		account, ok := u.account(id)
		if !ok {
			return repository.ErrNotFound
		}
		account.Balance = balance
		account.UpdatedAt = time.Now()
		u.accounts[id] = account
		return nil
	})
}

func cloneTransaction(txn domain.PendingTransaction) domain.PendingTransaction {
	if txn.ResultCode != nil {
		code := *txn.ResultCode
		txn.ResultCode = &code
	}
	if txn.ResolvedAt != nil {
		at := *txn.ResolvedAt
		txn.ResolvedAt = &at
	}
	if txn.Callback != nil {
		txn.Callback = append([]byte(nil), txn.Callback...)
	}
	return txn
}
