package postgres

import (
	"context"
	"database/sql"
	"errors"

	"studentfees/internal/domain"
	"studentfees/internal/repository"
)

// AccountRepository is a PostgreSQL implementation of repository.AccountRepository.
type AccountRepository struct {
	q         Querier
	forUpdate bool
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{q: db}
}

// NewAccountRepositoryWithTx creates an account repository using a database
// transaction. Reads lock the selected row.
func NewAccountRepositoryWithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{q: tx, forUpdate: true}
}

// Create adds a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, student_name, guardian_email, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query,
		account.ID,
		account.StudentName,
		account.GuardianEmail,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, student_name, guardian_email, balance, created_at, updated_at
		FROM accounts WHERE id = $1
	`
	if r.forUpdate {
		query += " FOR UPDATE"
	}

	var account domain.Account
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.StudentName,
		&account.GuardianEmail,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &account, nil
}

// UpdateBalance overwrites the balance of an account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id string, balance int64) error {
	query := `UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, balance, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
