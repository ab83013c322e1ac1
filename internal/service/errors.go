package service

import (
	"errors"

	"studentfees/internal/mpesa"
)

var (
	// ErrMissingField is returned when a required request field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidAmount is returned when a payment amount is missing or not positive.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrPersistenceUnavailable is returned when an operation needs a store
	// and none is configured or the store failed.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrInvalidCallbackShape is returned when a callback body is not a valid STK callback.
	ErrInvalidCallbackShape = errors.New("invalid callback shape")

	// ErrAccountNotFound is returned when the account linked to a transaction no longer exists.
	ErrAccountNotFound = errors.New("linked account not found")

	// ErrUnknownCheckout is returned when a callback references no pending transaction.
	ErrUnknownCheckout = errors.New("no pending transaction for checkout request")

	// ErrDuplicateCallback is returned when a callback arrives for an already resolved transaction.
	ErrDuplicateCallback = errors.New("transaction already resolved")

	// ErrAccountExists is returned when creating an account whose ID is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidAccountID is returned when account ID is empty.
	ErrInvalidAccountID = errors.New("invalid account id")
)

// Provider errors, re-exported so callers need only this package.
var (
	ErrInvalidPhoneFormat = mpesa.ErrInvalidPhoneFormat
	ErrMissingCredential  = mpesa.ErrMissingCredential
	ErrTokenFetchFailed   = mpesa.ErrTokenFetchFailed
	ErrSubmissionFailed   = mpesa.ErrSubmissionFailed
	ErrQueryFailed        = mpesa.ErrQueryFailed
)
