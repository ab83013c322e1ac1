package repository

import "context"

// Repositories groups the repositories bound to one atomic unit of work.
type Repositories struct {
	Transactions TransactionRepository
	Accounts     AccountRepository
}

// Store is the persistence capability used by the payment services.
type Store interface {
	Transactions() TransactionRepository
	Accounts() AccountRepository

	// RunInTx runs fn atomically. Writes made through repos are committed
	// only if fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
