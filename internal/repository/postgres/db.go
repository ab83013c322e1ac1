package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"studentfees/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Store)(nil)
)

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db           *sql.DB
	transactions *TransactionRepository
	accounts     *AccountRepository
}

// NewStore creates a new PostgreSQL store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		transactions: NewTransactionRepository(db),
		accounts:     NewAccountRepository(db),
	}
}

// Transactions returns the non-transactional transaction repository.
func (s *Store) Transactions() repository.TransactionRepository {
	return s.transactions
}

// Accounts returns the non-transactional account repository.
func (s *Store) Accounts() repository.AccountRepository {
	return s.accounts
}

// RunInTx runs fn inside a database transaction. Rows read through the
// transaction-scoped repositories are locked with SELECT ... FOR UPDATE.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := repository.Repositories{
		Transactions: NewTransactionRepositoryWithTx(tx),
		Accounts:     NewAccountRepositoryWithTx(tx),
	}

	if err = fn(ctx, repos); err != nil {
		return err
	}

	return tx.Commit()
}
