package repository

import (
	"context"

	"studentfees/internal/domain"
)

// AccountRepository defines the persistence operations for student fee accounts.
type AccountRepository interface {
	// Create adds a new account.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by ID.
	// Inside Store.RunInTx the row stays locked until the transaction ends.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// UpdateBalance overwrites the balance of an account.
	UpdateBalance(ctx context.Context, id string, balance int64) error
}
