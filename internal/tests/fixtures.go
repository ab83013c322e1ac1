package tests

import (
	"fmt"
	"time"

	"studentfees/internal/mpesa"
	"studentfees/internal/repository/memory"
	"studentfees/internal/service"
)

// Test credentials.
const (
	TestShortcode   = "174379"
	TestPasskey     = "test-passkey"
	TestCallbackURL = "https://fees.example.com/mpesa/callback"
)

// Harness wires the payment services against fakes and an in-memory store.
type Harness struct {
	Store     *memory.Store
	Provider  *MockProvider
	Cache     *MockCache
	Mailer    *MockMailer
	Publisher *MockPublisher

	Payments  *service.PaymentService
	Callbacks *service.CallbackService
	Accounts  *service.AccountService
}

// NewHarness creates a fully wired harness.
func NewHarness() *Harness {
	h := &Harness{
		Store:     memory.NewStore(),
		Provider:  NewMockProvider(),
		Cache:     NewMockCache(),
		Mailer:    NewMockMailer(),
		Publisher: NewMockPublisher(),
	}

	notifier := service.NewNotificationService(h.Mailer, h.Publisher, service.NewReceiptService())
	h.Payments = service.NewPaymentService(h.Provider, h.Provider, NewTestSigner(), h.Store, h.Cache, service.PaymentConfig{
		CallbackURL:        TestCallbackURL,
		RequirePersistence: true,
	})
	h.Callbacks = service.NewCallbackService(h.Store, h.Cache, notifier)
	h.Accounts = service.NewAccountService(h.Store)

	return h
}

// NewTestSigner returns a signer with a fixed clock.
func NewTestSigner() *mpesa.Signer {
	return mpesa.NewSigner(TestShortcode, TestPasskey).WithClock(func() time.Time {
		return time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	})
}

// SuccessCallback builds a completed-payment callback body.
func SuccessCallback(checkoutID string, amount int64, receipt string) []byte {
	return []byte(fmt.Sprintf(`{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": %q,
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": %d},
          {"Name": "MpesaReceiptNumber", "Value": %q},
          {"Name": "TransactionDate", "Value": 20240115103512},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`, checkoutID, amount, receipt))
}

// FailureCallback builds a failed-payment callback body.
func FailureCallback(checkoutID string, code int, desc string) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":%q}}}`,
		checkoutID, code, desc))
}
