package service

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"studentfees/internal/domain"
)

// ReceiptService builds payment receipts.
type ReceiptService struct{}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService() *ReceiptService {
	return &ReceiptService{}
}

// GenerateReceipt builds a receipt for a completed transaction. account may
// be nil when the transaction is not linked to a fee record.
func (s *ReceiptService) GenerateReceipt(txn *domain.PendingTransaction, account *domain.Account, amount int64) *domain.Receipt {
	receipt := &domain.Receipt{
		ReceiptNumber:     txn.ReceiptNumber,
		CheckoutRequestID: txn.CheckoutRequestID,
		AccountID:         txn.AccountID,
		Phone:             txn.Phone,
		Amount:            amount,
	}
	if txn.ResolvedAt != nil {
		receipt.PaidAt = *txn.ResolvedAt
	}
	if account != nil {
		receipt.StudentName = account.StudentName
		receipt.BalanceAfter = account.Balance
	}
	if receipt.PaidAt.IsZero() {
		receipt.PaidAt = time.Now()
	}
	return receipt
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	return `
=====================================
        SCHOOL FEES RECEIPT
=====================================
M-Pesa Receipt: ` + receipt.ReceiptNumber + `
Checkout ID:    ` + receipt.CheckoutRequestID + `
Date:           ` + receipt.PaidAt.Format("Jan 02, 2006 3:04 PM") + `

STUDENT
-------------------------------------
Account:  ` + receipt.AccountID + `
Name:     ` + receipt.StudentName + `

PAYMENT
-------------------------------------
Phone:            ` + receipt.Phone + `
Amount Paid:      KES ` + formatAmount(receipt.Amount) + `
Balance Due:      KES ` + formatAmount(receipt.BalanceAfter) + `

=====================================
     Thank you for your payment!
=====================================
`
}

var receiptHTML = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; border: 1px solid #ddd; border-radius: 8px;">
      <div style="background: #1976D2; color: white; padding: 20px; text-align: center;">
        <h1>Payment Received</h1>
      </div>
      <div style="padding: 20px;">
        <p>We have received a school fees payment{{if .StudentName}} for <strong>{{.StudentName}}</strong>{{end}}.</p>
        <table>
          <tr><td>M-Pesa receipt</td><td><strong>{{.ReceiptNumber}}</strong></td></tr>
          <tr><td>Account</td><td>{{.AccountID}}</td></tr>
          <tr><td>Amount paid</td><td>KES {{.Amount}}</td></tr>
          <tr><td>Balance due</td><td>KES {{.BalanceAfter}}</td></tr>
          <tr><td>Date</td><td>{{.PaidAt.Format "Jan 02, 2006 3:04 PM"}}</td></tr>
        </table>
      </div>
    </div>
  </body>
</html>
`))

// RenderReceiptHTML renders the receipt as an HTML email body.
func (s *ReceiptService) RenderReceiptHTML(receipt *domain.Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptHTML.Execute(&buf, receipt); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

func formatAmount(amount int64) string {
	return fmt.Sprintf("%d.00", amount)
}
