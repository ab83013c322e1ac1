// Package tests holds end-to-end service scenarios and the fakes they share.
package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"studentfees/internal/domain"
	"studentfees/internal/email"
	"studentfees/internal/events"
	"studentfees/internal/mpesa"
	"studentfees/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK PROVIDER
// ──────────────────────────────────────────────

// MockProvider is a fake M-Pesa API implementing service.TokenProvider and
// service.Gateway.
type MockProvider struct {
	mu       sync.Mutex
	pushes   []mpesa.STKPushRequest
	queries  []mpesa.QueryRequest
	sequence int

	// Counters for verification
	TokenCallCount int32
	PushCallCount  int32
	QueryCallCount int32

	// Error injection
	TokenError error
	PushError  error
	QueryError error

	// QueryResponse is returned by QuerySTKPush when set.
	QueryResponse *mpesa.QueryResponse
}

// NewMockProvider creates a new mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) AccessToken(ctx context.Context) (string, error) {
	atomic.AddInt32(&m.TokenCallCount, 1)
	if m.TokenError != nil {
		return "", m.TokenError
	}
	return "mock-token", nil
}

func (m *MockProvider) STKPush(ctx context.Context, token string, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	atomic.AddInt32(&m.PushCallCount, 1)
	if m.PushError != nil {
		return nil, m.PushError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, req)
	m.sequence++

	return &mpesa.STKPushResponse{
		MerchantRequestID:   fmt.Sprintf("mock-merchant-%d", m.sequence),
		CheckoutRequestID:   fmt.Sprintf("ws_CO_mock_%d", m.sequence),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (m *MockProvider) QuerySTKPush(ctx context.Context, token string, req mpesa.QueryRequest) (*mpesa.QueryResponse, error) {
	atomic.AddInt32(&m.QueryCallCount, 1)
	if m.QueryError != nil {
		return nil, m.QueryError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, req)

	if m.QueryResponse != nil {
		resp := *m.QueryResponse
		return &resp, nil
	}
	return &mpesa.QueryResponse{
		ResponseCode:      "0",
		CheckoutRequestID: req.CheckoutRequestID,
		ResultCode:        "0",
		ResultDesc:        "The service request is processed successfully.",
	}, nil
}

// LastPush returns the most recent push request.
func (m *MockProvider) LastPush() (mpesa.STKPushRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pushes) == 0 {
		return mpesa.STKPushRequest{}, false
	}
	return m.pushes[len(m.pushes)-1], true
}

// LastQuery returns the most recent query request.
func (m *MockProvider) LastQuery() (mpesa.QueryRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queries) == 0 {
		return mpesa.QueryRequest{}, false
	}
	return m.queries[len(m.queries)-1], true
}

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// FailingStore wraps a store and fails transaction creation. Use it to
// simulate a persistence outage after the provider accepted a push.
type FailingStore struct {
	repository.Store
	CreateError error
}

func (s *FailingStore) Transactions() repository.TransactionRepository {
	return &failingTransactions{TransactionRepository: s.Store.Transactions(), err: s.CreateError}
}

type failingTransactions struct {
	repository.TransactionRepository
	err error
}

func (r *failingTransactions) Create(ctx context.Context, txn *domain.PendingTransaction) error {
	return r.err
}

// ──────────────────────────────────────────────
// MOCK CACHE
// ──────────────────────────────────────────────

// MockCache is an in-process service.TransactionCache.
type MockCache struct {
	mu    sync.Mutex
	items map[string]domain.PendingTransaction

	// Counters
	GetCallCount int32
	SetCallCount int32
}

// NewMockCache creates a new mock cache.
func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string]domain.PendingTransaction)}
}

func (m *MockCache) GetTransaction(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.items[checkoutID]
	if !ok {
		return nil, nil
	}
	return &txn, nil
}

func (m *MockCache) SetTransaction(ctx context.Context, txn *domain.PendingTransaction) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if !txn.Status.IsTerminal() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[txn.CheckoutRequestID] = *txn
	return nil
}

// Has reports whether checkoutID is cached.
func (m *MockCache) Has(checkoutID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[checkoutID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION CHANNELS
// ──────────────────────────────────────────────

// MockMailer records sent messages.
type MockMailer struct {
	mu   sync.Mutex
	sent []email.Message

	SendError error
	// Release, when set, holds every Send until it is closed.
	Release chan struct{}
}

// NewMockMailer creates a new mock mailer.
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Send(ctx context.Context, msg email.Message) error {
	if m.Release != nil {
		select {
		case <-m.Release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SendError != nil {
		return m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the sent messages.
func (m *MockMailer) Sent() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.PaymentEvent

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event events.PaymentEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []events.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.PaymentEvent(nil), m.events...)
}

// ErrMockUnavailable is a generic injected infrastructure failure.
var ErrMockUnavailable = errors.New("mock: unavailable")
