package repository

import (
	"context"

	"studentfees/internal/domain"
)

// TransactionRepository defines the persistence operations for pending transactions.
type TransactionRepository interface {
	// Create persists a new pending transaction.
	Create(ctx context.Context, txn *domain.PendingTransaction) error

	// GetByCheckoutID retrieves a transaction by its checkout request ID.
	// Inside Store.RunInTx the row stays locked until the transaction ends.
	GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error)

	// Resolve moves an initiated transaction to its final status.
	// Returns ErrAlreadyResolved if the transaction is no longer initiated.
	Resolve(ctx context.Context, checkoutID string, res domain.Resolution) error
}
