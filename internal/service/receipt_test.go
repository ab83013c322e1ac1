package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentfees/internal/domain"
)

func TestReceiptService_GenerateAndFormat(t *testing.T) {
	t.Parallel()

	paidAt := time.Date(2024, 1, 15, 10, 35, 0, 0, time.UTC)
	txn := &domain.PendingTransaction{
		CheckoutRequestID: "ws_CO_1",
		AccountID:         "ADM-001",
		Phone:             "254712345678",
		ReceiptNumber:     "NLJ7RT61SV",
		ResolvedAt:        &paidAt,
	}
	account := &domain.Account{ID: "ADM-001", StudentName: "Amina <Wanjiru>", Balance: 9500}

	s := NewReceiptService()
	receipt := s.GenerateReceipt(txn, account, 500)

	assert.Equal(t, "NLJ7RT61SV", receipt.ReceiptNumber)
	assert.Equal(t, int64(500), receipt.Amount)
	assert.Equal(t, int64(9500), receipt.BalanceAfter)
	assert.Equal(t, paidAt, receipt.PaidAt)

	text := s.FormatReceipt(receipt)
	assert.Contains(t, text, "M-Pesa Receipt: NLJ7RT61SV")
	assert.Contains(t, text, "Amount Paid:      KES 500.00")
	assert.Contains(t, text, "Balance Due:      KES 9500.00")
	assert.Contains(t, text, "Jan 15, 2024")

	html, err := s.RenderReceiptHTML(receipt)
	require.NoError(t, err)
	assert.Contains(t, html, "Amina &lt;Wanjiru&gt;")
	assert.Contains(t, html, "NLJ7RT61SV")
}

func TestReceiptService_UnlinkedTransaction(t *testing.T) {
	t.Parallel()

	s := NewReceiptService()
	receipt := s.GenerateReceipt(&domain.PendingTransaction{CheckoutRequestID: "ws_CO_2"}, nil, 100)

	assert.Empty(t, receipt.StudentName)
	assert.Zero(t, receipt.BalanceAfter)
	assert.False(t, receipt.PaidAt.IsZero())
}
