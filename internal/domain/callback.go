package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Callback metadata item names sent by the provider.
const (
	CallbackItemAmount        = "Amount"
	CallbackItemReceiptNumber = "MpesaReceiptNumber"
	CallbackItemPhoneNumber   = "PhoneNumber"
	CallbackItemTransDate     = "TransactionDate"
)

// CallbackEnvelope is the body the provider posts to the callback URL.
type CallbackEnvelope struct {
	Body *CallbackBody `json:"Body" validate:"required"`
}

// CallbackBody wraps the STK callback.
type CallbackBody struct {
	STKCallback *STKCallback `json:"stkCallback" validate:"required"`
}

// STKCallback is the final outcome of a push payment.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID" validate:"required"`
	ResultCode        *int              `json:"ResultCode" validate:"required"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata holds the name/value items of a successful payment.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item" validate:"dive"`
}

// CallbackItem is a single metadata entry. Value may be a number or a string
// and is absent on some items.
type CallbackItem struct {
	Name  string          `json:"Name" validate:"required"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Succeeded reports whether the payment was completed by the subscriber.
func (c *STKCallback) Succeeded() bool {
	return c.ResultCode != nil && *c.ResultCode == 0
}

// PaymentDetails are the metadata items the reconciler cares about. Missing
// items are left zero.
type PaymentDetails struct {
	Amount        decimal.NullDecimal
	ReceiptNumber string
	Phone         string
}

// Details extracts the known metadata items by name.
func (c *STKCallback) Details() PaymentDetails {
	var d PaymentDetails
	if c.CallbackMetadata == nil {
		return d
	}
	for _, item := range c.CallbackMetadata.Item {
		switch item.Name {
		case CallbackItemAmount:
			if amount, err := decimal.NewFromString(rawScalar(item.Value)); err == nil {
				d.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
			}
		case CallbackItemReceiptNumber:
			d.ReceiptNumber = rawScalar(item.Value)
		case CallbackItemPhoneNumber:
			d.Phone = rawScalar(item.Value)
		}
	}
	return d
}

// rawScalar renders a JSON number or string as plain text.
func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

var callbackValidator = validator.New()

// ParseCallback decodes and validates a callback payload. It returns the
// STK callback together with its raw JSON for storage.
func ParseCallback(payload []byte) (*STKCallback, json.RawMessage, error) {
	var raw struct {
		Body struct {
			STKCallback json.RawMessage `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode callback: %w", err)
	}

	var env CallbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, fmt.Errorf("decode callback: %w", err)
	}
	if err := callbackValidator.Struct(&env); err != nil {
		return nil, nil, fmt.Errorf("validate callback: %w", err)
	}

	return env.Body.STKCallback, raw.Body.STKCallback, nil
}

// CallbackAck is the body returned to the provider for every callback.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// AcceptedAck is the acknowledgement sent regardless of the internal outcome.
func AcceptedAck() CallbackAck {
	return CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
}
