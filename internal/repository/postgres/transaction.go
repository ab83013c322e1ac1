package postgres

import (
	"context"
	"database/sql"
	"errors"

	"studentfees/internal/domain"
	"studentfees/internal/repository"
)

// TransactionRepository is a PostgreSQL implementation of repository.TransactionRepository.
type TransactionRepository struct {
	q         Querier
	forUpdate bool
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{q: db}
}

// NewTransactionRepositoryWithTx creates a transaction repository using a
// database transaction. Reads lock the selected row.
func NewTransactionRepositoryWithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{q: tx, forUpdate: true}
}

// Create persists a new pending transaction.
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.PendingTransaction) error {
	query := `
		INSERT INTO pending_transactions
			(checkout_request_id, merchant_request_id, account_id, amount, phone, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		txn.CheckoutRequestID,
		txn.MerchantRequestID,
		txn.AccountID,
		txn.Amount,
		txn.Phone,
		txn.Status,
		txn.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}

	return err
}

// GetByCheckoutID retrieves a transaction by its checkout request ID.
func (r *TransactionRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	query := `
		SELECT checkout_request_id, merchant_request_id, account_id, amount, phone, status,
			receipt_number, result_code, result_desc, callback, created_at, resolved_at
		FROM pending_transactions WHERE checkout_request_id = $1
	`
	if r.forUpdate {
		query += " FOR UPDATE"
	}

	var (
		txn        domain.PendingTransaction
		receipt    sql.NullString
		resultCode sql.NullInt64
		resultDesc sql.NullString
		callback   []byte
		resolvedAt sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, query, checkoutID).Scan(
		&txn.CheckoutRequestID,
		&txn.MerchantRequestID,
		&txn.AccountID,
		&txn.Amount,
		&txn.Phone,
		&txn.Status,
		&receipt,
		&resultCode,
		&resultDesc,
		&callback,
		&txn.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	txn.ReceiptNumber = receipt.String
	txn.ResultDesc = resultDesc.String
	if resultCode.Valid {
		code := int(resultCode.Int64)
		txn.ResultCode = &code
	}
	if len(callback) > 0 {
		txn.Callback = callback
	}
	if resolvedAt.Valid {
		txn.ResolvedAt = &resolvedAt.Time
	}

	return &txn, nil
}

// Resolve moves an initiated transaction to its final status.
func (r *TransactionRepository) Resolve(ctx context.Context, checkoutID string, res domain.Resolution) error {
	query := `
		UPDATE pending_transactions
		SET status = $1, receipt_number = $2, result_code = $3, result_desc = $4, callback = $5, resolved_at = $6
		WHERE checkout_request_id = $7 AND status = $8
	`

	var callback sql.NullString
	if len(res.Callback) > 0 {
		callback = sql.NullString{String: string(res.Callback), Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		res.Status,
		res.ReceiptNumber,
		res.ResultCode,
		res.ResultDesc,
		callback,
		res.ResolvedAt,
		checkoutID,
		domain.TransactionStatusInitiated,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Distinguish a missing row from one that has already been resolved.
		if _, err := r.GetByCheckoutID(ctx, checkoutID); err != nil {
			return err
		}
		return repository.ErrAlreadyResolved
	}

	return nil
}
