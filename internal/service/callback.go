package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"studentfees/internal/domain"
	"studentfees/internal/metrics"
	"studentfees/internal/repository"
)

// PaymentNotifier is told about final payment outcomes after they commit.
type PaymentNotifier interface {
	NotifyPaymentCompleted(ctx context.Context, txn *domain.PendingTransaction, account *domain.Account, amount int64) error
	NotifyPaymentFailed(ctx context.Context, txn *domain.PendingTransaction) error
}

const (
	// maxInFlightNotifications caps the notification goroutines running at
	// once. Outcomes beyond the cap are logged and dropped.
	maxInFlightNotifications = 64
	notifyTimeout            = 30 * time.Second
)

// CallbackService reconciles provider callbacks against pending transactions.
type CallbackService struct {
	store    repository.Store
	cache    TransactionCache
	notifier PaymentNotifier
	now      func() time.Time

	slots   chan struct{}
	pending sync.WaitGroup
}

// NewCallbackService creates a new CallbackService. cache and notifier may be nil.
func NewCallbackService(store repository.Store, cache TransactionCache, notifier PaymentNotifier) *CallbackService {
	return &CallbackService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
		slots:    make(chan struct{}, maxInFlightNotifications),
	}
}

// Wait blocks until every dispatched notification has finished.
func (s *CallbackService) Wait() {
	s.pending.Wait()
}

// ReconcileResult describes the state change made by a callback.
type ReconcileResult struct {
	Transaction *domain.PendingTransaction
	// Account is the linked account after the debit; nil when the
	// transaction is unlinked or failed.
	Account *domain.Account
	// Paid is the amount the provider reported as paid.
	Paid int64
	// Debited is the amount subtracted from the account balance.
	Debited int64
}

// HandleCallback reconciles a callback and always returns the acknowledgement
// the provider expects. Internal failures are logged, never returned.
func (s *CallbackService) HandleCallback(ctx context.Context, payload []byte) (ack domain.CallbackAck) {
	ack = domain.AcceptedAck()

	defer func() {
		if r := recover(); r != nil {
			metrics.IncCallback("panic")
			slog.ErrorContext(ctx, "callback processing panicked", slog.Any("panic", r))
		}
	}()

	result, err := s.Reconcile(ctx, payload)
	logReconcile(ctx, result, err)

	return ack
}

// Reconcile applies a callback. A successful callback debits the linked
// account and completes the transaction in one atomic step; a failed one
// marks the transaction failed. Both transitions only happen from the
// initiated status, so a redelivered callback changes nothing. Guardian
// notifications run in the background; Wait drains them.
func (s *CallbackService) Reconcile(ctx context.Context, payload []byte) (*ReconcileResult, error) {
	cb, raw, err := domain.ParseCallback(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCallbackShape, err)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: callback %s not recorded", ErrPersistenceUnavailable, cb.CheckoutRequestID)
	}

	ctx = context.WithoutCancel(ctx)

	var result *ReconcileResult
	if cb.Succeeded() {
		result, err = s.complete(ctx, cb, raw)
	} else {
		result, err = s.fail(ctx, cb, raw)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetTransaction(ctx, result.Transaction); err != nil {
			slog.WarnContext(ctx, "transaction cache write failed", slog.Any("error", err))
		}
	}

	s.dispatchNotification(ctx, result)

	return result, nil
}

// dispatchNotification hands the committed outcome to the notifier in the
// background so the provider is acknowledged without waiting on SMTP or Kafka.
func (s *CallbackService) dispatchNotification(ctx context.Context, result *ReconcileResult) {
	if s.notifier == nil {
		return
	}

	checkoutID := result.Transaction.CheckoutRequestID
	select {
	case s.slots <- struct{}{}:
	default:
		slog.WarnContext(ctx, "payment notification dropped, too many in flight",
			slog.String("checkout_request_id", checkoutID),
		)
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() { <-s.slots }()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("payment notification panicked",
					slog.String("checkout_request_id", checkoutID),
					slog.Any("panic", r),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		var err error
		if result.Transaction.Status == domain.TransactionStatusCompleted {
			err = s.notifier.NotifyPaymentCompleted(ctx, result.Transaction, result.Account, result.Paid)
		} else {
			err = s.notifier.NotifyPaymentFailed(ctx, result.Transaction)
		}
		if err != nil {
			slog.WarnContext(ctx, "payment notification failed",
				slog.String("checkout_request_id", checkoutID),
				slog.Any("error", err),
			)
		}
	}()
}

func (s *CallbackService) complete(ctx context.Context, cb *domain.STKCallback, raw json.RawMessage) (*ReconcileResult, error) {
	details := cb.Details()
	result := &ReconcileResult{}

	err := s.store.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		txn, err := loadInitiated(ctx, repos, cb.CheckoutRequestID)
		if err != nil {
			return err
		}

		// The callback amount is authoritative; fall back to the requested amount.
		amount := txn.Amount
		if details.Amount.Valid {
			amount = details.Amount.Decimal.Round(0).IntPart()
		}
		result.Paid = amount

		if txn.AccountID != "" {
			account, err := repos.Accounts.GetByID(ctx, txn.AccountID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%w: %s", ErrAccountNotFound, txn.AccountID)
				}
				return err
			}
			account.Balance -= amount
			if err := repos.Accounts.UpdateBalance(ctx, account.ID, account.Balance); err != nil {
				return err
			}
			result.Account = account
			result.Debited = amount
		}

		res := domain.Resolution{
			Status:        domain.TransactionStatusCompleted,
			ReceiptNumber: details.ReceiptNumber,
			ResultCode:    *cb.ResultCode,
			ResultDesc:    cb.ResultDesc,
			Callback:      raw,
			ResolvedAt:    s.now(),
		}
		if err := resolve(ctx, repos, cb.CheckoutRequestID, res); err != nil {
			return err
		}
		res.Apply(txn)
		result.Transaction = txn

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *CallbackService) fail(ctx context.Context, cb *domain.STKCallback, raw json.RawMessage) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	err := s.store.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		txn, err := loadInitiated(ctx, repos, cb.CheckoutRequestID)
		if err != nil {
			return err
		}

		res := domain.Resolution{
			Status:     domain.TransactionStatusFailed,
			ResultCode: *cb.ResultCode,
			ResultDesc: cb.ResultDesc,
			Callback:   raw,
			ResolvedAt: s.now(),
		}
		if err := resolve(ctx, repos, cb.CheckoutRequestID, res); err != nil {
			return err
		}
		res.Apply(txn)
		result.Transaction = txn

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// loadInitiated reads and locks a transaction that is still awaiting its callback.
func loadInitiated(ctx context.Context, repos repository.Repositories, checkoutID string) (*domain.PendingTransaction, error) {
	txn, err := repos.Transactions.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCheckout, checkoutID)
		}
		return nil, err
	}
	if txn.Status != domain.TransactionStatusInitiated {
		return nil, fmt.Errorf("%w: %s is %s", ErrDuplicateCallback, checkoutID, txn.Status)
	}
	return txn, nil
}

func resolve(ctx context.Context, repos repository.Repositories, checkoutID string, res domain.Resolution) error {
	err := repos.Transactions.Resolve(ctx, checkoutID, res)
	if errors.Is(err, repository.ErrAlreadyResolved) {
		return fmt.Errorf("%w: %s", ErrDuplicateCallback, checkoutID)
	}
	return err
}

func logReconcile(ctx context.Context, result *ReconcileResult, err error) {
	switch {
	case err == nil:
		txn := result.Transaction
		metrics.IncCallback(string(txn.Status))
		slog.InfoContext(ctx, "callback reconciled",
			slog.String("checkout_request_id", txn.CheckoutRequestID),
			slog.String("status", string(txn.Status)),
			slog.String("receipt", txn.ReceiptNumber),
			slog.Int64("debited", result.Debited),
		)
	case errors.Is(err, ErrInvalidCallbackShape):
		metrics.IncCallback("invalid")
		slog.WarnContext(ctx, "invalid callback format", slog.Any("error", err))
	case errors.Is(err, ErrUnknownCheckout):
		metrics.IncCallback("unknown")
		slog.InfoContext(ctx, "callback for unknown checkout request", slog.Any("error", err))
	case errors.Is(err, ErrDuplicateCallback):
		metrics.IncCallback("duplicate")
		slog.InfoContext(ctx, "duplicate callback ignored", slog.Any("error", err))
	case errors.Is(err, ErrAccountNotFound):
		metrics.IncCallback("account_not_found")
		slog.ErrorContext(ctx, "callback left transaction initiated", slog.Any("error", err))
	default:
		metrics.IncCallback("error")
		slog.ErrorContext(ctx, "callback processing failed", slog.Any("error", err))
	}
}
