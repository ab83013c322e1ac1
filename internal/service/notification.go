package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studentfees/internal/domain"
	"studentfees/internal/email"
	"studentfees/internal/events"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPaymentCompleted NotificationType = "PAYMENT_COMPLETED"
	NotificationPaymentFailed    NotificationType = "PAYMENT_FAILED"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// EventPublisher publishes payment outcome events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.PaymentEvent) error
}

// Notification represents a notification about a payment outcome.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string // Account ID
	Title       string
	Message     string
	CreatedAt   time.Time
}

// NotificationService fans payment outcomes out to email and the event
// stream. Both channels are optional and best effort.
type NotificationService struct {
	mailer    Mailer
	publisher EventPublisher
	receipts  *ReceiptService
}

// NewNotificationService creates a new NotificationService. mailer and
// publisher may be nil.
func NewNotificationService(mailer Mailer, publisher EventPublisher, receipts *ReceiptService) *NotificationService {
	if receipts == nil {
		receipts = NewReceiptService()
	}
	return &NotificationService{
		mailer:    mailer,
		publisher: publisher,
		receipts:  receipts,
	}
}

// NotifyPaymentCompleted publishes a completion event and emails a receipt
// to the account's guardian when an address is on file.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, txn *domain.PendingTransaction, account *domain.Account, amount int64) error {
	notification := Notification{
		ID:          uuid.New().String(),
		Type:        NotificationPaymentCompleted,
		RecipientID: txn.AccountID,
		Title:       "Payment Received",
		Message:     fmt.Sprintf("Payment of KES %d received. Receipt %s", amount, txn.ReceiptNumber),
		CreatedAt:   time.Now(),
	}
	s.log(ctx, notification, txn)

	var firstErr error
	if err := s.publish(ctx, notification, events.TypePaymentCompleted, txn, amount); err != nil {
		firstErr = err
	}

	if s.mailer != nil && account != nil && account.GuardianEmail != "" {
		receipt := s.receipts.GenerateReceipt(txn, account, amount)
		html, err := s.receipts.RenderReceiptHTML(receipt)
		if err != nil {
			return err
		}
		msg := email.Message{
			To:       account.GuardianEmail,
			Subject:  "School Fees Payment Receipt " + receipt.ReceiptNumber,
			TextBody: s.receipts.FormatReceipt(receipt),
			HTMLBody: html,
		}
		if err := s.mailer.Send(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// NotifyPaymentFailed publishes a failure event.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, txn *domain.PendingTransaction) error {
	notification := Notification{
		ID:          uuid.New().String(),
		Type:        NotificationPaymentFailed,
		RecipientID: txn.AccountID,
		Title:       "Payment Failed",
		Message:     fmt.Sprintf("Payment was not completed: %s", txn.ResultDesc),
		CreatedAt:   time.Now(),
	}
	s.log(ctx, notification, txn)

	return s.publish(ctx, notification, events.TypePaymentFailed, txn, txn.Amount)
}

func (s *NotificationService) publish(ctx context.Context, n Notification, eventType string, txn *domain.PendingTransaction, amount int64) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx, events.PaymentEvent{
		ID:                n.ID,
		Type:              eventType,
		CheckoutRequestID: txn.CheckoutRequestID,
		AccountID:         txn.AccountID,
		Amount:            amount,
		ReceiptNumber:     txn.ReceiptNumber,
		ResultDesc:        txn.ResultDesc,
		OccurredAt:        n.CreatedAt,
	})
}

func (s *NotificationService) log(ctx context.Context, n Notification, txn *domain.PendingTransaction) {
	slog.InfoContext(ctx, "notification",
		slog.String("id", n.ID),
		slog.String("type", string(n.Type)),
		slog.String("recipient", n.RecipientID),
		slog.String("checkout_request_id", txn.CheckoutRequestID),
		slog.String("message", n.Message),
	)
}
