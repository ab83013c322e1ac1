package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhoneFormat is returned when a phone number cannot be normalized.
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")

	// ErrMissingCredential is returned when an API credential or the callback URL is unset.
	ErrMissingCredential = errors.New("missing credential")

	// ErrTokenFetchFailed is returned when the OAuth token exchange fails.
	ErrTokenFetchFailed = errors.New("failed to get access token")

	// ErrSubmissionFailed is returned when the push payment request is rejected or fails in transit.
	ErrSubmissionFailed = errors.New("stk push submission failed")

	// ErrQueryFailed is returned when the push payment status query fails.
	ErrQueryFailed = errors.New("stk push query failed")
)

// APIError is an error body returned by the provider.
type APIError struct {
	StatusCode   int    `json:"-"`
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	if e.ErrorMessage != "" {
		return fmt.Sprintf("mpesa: status %d: %s (%s)", e.StatusCode, e.ErrorMessage, e.ErrorCode)
	}
	return fmt.Sprintf("mpesa: status %d", e.StatusCode)
}

// UpstreamMessage returns the provider's error description carried by err,
// or an empty string when there is none.
func UpstreamMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorMessage
	}
	return ""
}
