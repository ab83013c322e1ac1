package domain

import "time"

// Receipt is a confirmation of a completed fee payment.
type Receipt struct {
	ReceiptNumber     string
	CheckoutRequestID string
	AccountID         string
	StudentName       string
	Phone             string
	Amount            int64
	BalanceAfter      int64
	PaidAt            time.Time
}
