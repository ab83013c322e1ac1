package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfees/internal/mpesa"
	"studentfees/internal/repository"
	"studentfees/internal/service"
)

// APIResponse is the envelope used by the payment and account endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// respondError sends a failure envelope with the status code mapped from err.
// fallback is used when err carries no client-facing message.
func respondError(c *gin.Context, err error, fallback string) {
	c.JSON(mapErrorToHTTPStatus(err), APIResponse{
		Success: false,
		Message: errorMessage(err, fallback),
	})
}

// respondJSON sends a success envelope.
func respondJSON(c *gin.Context, code int, message string, data any) {
	c.JSON(code, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidPhoneFormat),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidAccountID):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrAccountExists):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, service.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable

	// Provider failures and anything else
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage picks the most specific message for err: the provider's own
// description, then a fixed message for client input errors, then fallback.
func errorMessage(err error, fallback string) string {
	if msg := mpesa.UpstreamMessage(err); msg != "" {
		return msg
	}

	switch {
	case errors.Is(err, service.ErrInvalidPhoneFormat):
		return "Invalid phone number format. Use 07XX or 254XX format"
	case errors.Is(err, service.ErrInvalidAmount):
		return "Valid amount is required"
	case errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidAccountID),
		errors.Is(err, service.ErrAccountExists),
		errors.Is(err, repository.ErrNotFound):
		return err.Error()
	case errors.Is(err, service.ErrPersistenceUnavailable):
		return "Transaction storage is unavailable"
	}

	return fallback
}
