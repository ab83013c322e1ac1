package domain

import (
	"encoding/json"
	"time"
)

// TransactionStatus represents the lifecycle state of a push payment.
type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// PendingTransaction is a push payment awaiting its provider callback.
// It is keyed by the provider-issued checkout request ID.
type PendingTransaction struct {
	CheckoutRequestID string            `json:"checkoutRequestId"`
	MerchantRequestID string            `json:"merchantRequestId,omitempty"`
	AccountID         string            `json:"accountId"`
	Amount            int64             `json:"amount"`
	Phone             string            `json:"phone"`
	Status            TransactionStatus `json:"status"`
	ReceiptNumber     string            `json:"receiptNumber,omitempty"`
	ResultCode        *int              `json:"resultCode,omitempty"`
	ResultDesc        string            `json:"resultDesc,omitempty"`
	Callback          json.RawMessage   `json:"callback,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	ResolvedAt        *time.Time        `json:"resolvedAt,omitempty"`
}

// Resolution is the outcome recorded against a PendingTransaction when its
// callback arrives.
type Resolution struct {
	Status        TransactionStatus
	ReceiptNumber string
	ResultCode    int
	ResultDesc    string
	Callback      json.RawMessage
	ResolvedAt    time.Time
}

// Apply copies the resolution onto the transaction.
func (r Resolution) Apply(txn *PendingTransaction) {
	code := r.ResultCode
	resolvedAt := r.ResolvedAt
	txn.Status = r.Status
	txn.ReceiptNumber = r.ReceiptNumber
	txn.ResultCode = &code
	txn.ResultDesc = r.ResultDesc
	txn.Callback = r.Callback
	txn.ResolvedAt = &resolvedAt
}
