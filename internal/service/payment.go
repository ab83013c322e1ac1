package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"studentfees/internal/domain"
	"studentfees/internal/metrics"
	"studentfees/internal/mpesa"
	"studentfees/internal/repository"
)

// TokenProvider exchanges API credentials for a bearer token.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Gateway submits push payments and status queries to the provider.
type Gateway interface {
	STKPush(ctx context.Context, token string, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	QuerySTKPush(ctx context.Context, token string, req mpesa.QueryRequest) (*mpesa.QueryResponse, error)
}

// TransactionCache caches resolved transactions for status polling.
type TransactionCache interface {
	GetTransaction(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error)
	SetTransaction(ctx context.Context, txn *domain.PendingTransaction) error
}

// Defaults applied when a request leaves the optional fields empty.
const (
	DefaultAccountReference = "StudentFees"
	DefaultTransactionDesc  = "School Fees Payment"
	DefaultTransactionType  = "CustomerPayBillOnline"
)

// PaymentConfig holds the request settings for push payments.
type PaymentConfig struct {
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
	TransactionType  string

	// RequirePersistence rejects initiation up front when no store is configured.
	RequirePersistence bool
}

// PaymentService initiates push payments and answers status queries.
type PaymentService struct {
	tokens  TokenProvider
	gateway Gateway
	signer  *mpesa.Signer
	store   repository.Store
	cache   TransactionCache
	cfg     PaymentConfig
}

// NewPaymentService creates a new PaymentService. store and cache may be nil.
func NewPaymentService(tokens TokenProvider, gateway Gateway, signer *mpesa.Signer, store repository.Store, cache TransactionCache, cfg PaymentConfig) *PaymentService {
	if cfg.AccountReference == "" {
		cfg.AccountReference = DefaultAccountReference
	}
	if cfg.TransactionDesc == "" {
		cfg.TransactionDesc = DefaultTransactionDesc
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = DefaultTransactionType
	}
	return &PaymentService{
		tokens:  tokens,
		gateway: gateway,
		signer:  signer,
		store:   store,
		cache:   cache,
		cfg:     cfg,
	}
}

// InitiatePaymentRequest contains the parameters for a push payment.
type InitiatePaymentRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

// InitiatePaymentResult is the outcome of a successful initiation.
type InitiatePaymentResult struct {
	// Transaction is nil when no store is configured.
	Transaction *domain.PendingTransaction
	Response    *mpesa.STKPushResponse
}

// InitiatePayment validates the request, signs it and submits a push payment.
// On success a pending transaction keyed by the checkout request ID is stored.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	result, err := s.initiatePayment(ctx, req)
	switch {
	case err == nil:
		metrics.IncInitiation("ok")
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidPhoneFormat), errors.Is(err, ErrInvalidAmount):
		metrics.IncInitiation("rejected")
	default:
		metrics.IncInitiation("error")
	}
	return result, err
}

func (s *PaymentService) initiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	if strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrMissingField)
	}

	phone, err := mpesa.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount := req.Amount.Round(0).IntPart()
	if amount < 1 {
		return nil, fmt.Errorf("%w: rounds to zero", ErrInvalidAmount)
	}

	if s.store == nil && s.cfg.RequirePersistence {
		return nil, ErrPersistenceUnavailable
	}

	if strings.TrimSpace(s.cfg.CallbackURL) == "" {
		return nil, fmt.Errorf("%w: CALLBACK_URL", ErrMissingCredential)
	}

	// Only a caller-supplied reference links the payment to an account. The
	// configured default is sent to the provider as a label.
	accountID := strings.TrimSpace(req.AccountReference)
	accountRef := accountID
	if accountRef == "" {
		accountRef = s.cfg.AccountReference
	}
	desc := strings.TrimSpace(req.TransactionDesc)
	if desc == "" {
		desc = s.cfg.TransactionDesc
	}

	// Side effects below must complete even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	sig, err := s.signer.Sign()
	if err != nil {
		return nil, err
	}

	shortcode := s.signer.Shortcode()
	resp, err := s.gateway.STKPush(ctx, token, mpesa.STKPushRequest{
		BusinessShortCode: shortcode,
		Password:          sig.Password,
		Timestamp:         sig.Timestamp,
		TransactionType:   s.cfg.TransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            shortcode,
		PhoneNumber:       phone,
		CallBackURL:       s.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   desc,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "stk push accepted",
		slog.String("checkout_request_id", resp.CheckoutRequestID),
		slog.String("phone", phone),
		slog.Int64("amount", amount),
		slog.String("account_reference", accountRef),
	)

	result := &InitiatePaymentResult{Response: resp}
	if s.store == nil {
		return result, nil
	}

	txn := &domain.PendingTransaction{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		AccountID:         accountID,
		Amount:            amount,
		Phone:             phone,
		Status:            domain.TransactionStatusInitiated,
		CreatedAt:         time.Now(),
	}
	if err := s.store.Transactions().Create(ctx, txn); err != nil {
		slog.ErrorContext(ctx, "stk push sent but pending transaction not stored",
			slog.String("checkout_request_id", resp.CheckoutRequestID),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	result.Transaction = txn

	return result, nil
}

// QueryPaymentStatus asks the provider for the status of a push payment.
func (s *PaymentService) QueryPaymentStatus(ctx context.Context, checkoutID string) (*mpesa.QueryResponse, error) {
	if strings.TrimSpace(checkoutID) == "" {
		return nil, fmt.Errorf("%w: checkoutRequestId is required", ErrMissingField)
	}

	ctx = context.WithoutCancel(ctx)

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	sig, err := s.signer.Sign()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return s.gateway.QuerySTKPush(ctx, token, mpesa.QueryRequest{
		BusinessShortCode: s.signer.Shortcode(),
		Password:          sig.Password,
		Timestamp:         sig.Timestamp,
		CheckoutRequestID: checkoutID,
	})
}

// GetTransaction reads the stored transaction for client polling.
// Returns nil if no transaction exists with the given checkout ID.
func (s *PaymentService) GetTransaction(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	if strings.TrimSpace(checkoutID) == "" {
		return nil, fmt.Errorf("%w: checkoutRequestId is required", ErrMissingField)
	}
	if s.store == nil {
		return nil, ErrPersistenceUnavailable
	}

	if s.cache != nil {
		cached, err := s.cache.GetTransaction(ctx, checkoutID)
		if err != nil {
			slog.WarnContext(ctx, "transaction cache read failed", slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	txn, err := s.store.Transactions().GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.SetTransaction(ctx, txn); err != nil {
			slog.WarnContext(ctx, "transaction cache write failed", slog.Any("error", err))
		}
	}

	return txn, nil
}

// AccessToken fetches a fresh provider token.
func (s *PaymentService) AccessToken(ctx context.Context) (string, error) {
	return s.tokens.AccessToken(context.WithoutCancel(ctx))
}
