package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"studentfees/internal/domain"
	"studentfees/internal/service"
)

// maxCallbackBytes bounds the callback body read.
const maxCallbackBytes = 1 << 20

// MpesaHandler handles the push payment endpoints.
type MpesaHandler struct {
	paymentService  *service.PaymentService
	callbackService *service.CallbackService
}

// NewMpesaHandler creates a new MpesaHandler.
func NewMpesaHandler(paymentService *service.PaymentService, callbackService *service.CallbackService) *MpesaHandler {
	return &MpesaHandler{
		paymentService:  paymentService,
		callbackService: callbackService,
	}
}

// STKPushRequest is the HTTP request body for initiating a push payment.
type STKPushRequest struct {
	Phone            string              `json:"phone"`
	Amount           decimal.NullDecimal `json:"amount"`
	AccountReference string              `json:"accountReference"`
	TransactionDesc  string              `json:"transactionDesc"`
}

// QueryRequest is the HTTP request body for a status query.
type QueryRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// TokenResponse is the HTTP response for GET /mpesa/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// STKPush handles POST /mpesa/stkpush
func (h *MpesaHandler) STKPush(c *gin.Context) {
	var req STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}

	if req.Phone == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Message: "Phone number is required"})
		return
	}

	// A missing amount leaves a zero decimal, which InitiatePayment rejects
	// after the phone number has been checked.
	result, err := h.paymentService.InitiatePayment(c.Request.Context(), service.InitiatePaymentRequest{
		Phone:            req.Phone,
		Amount:           req.Amount.Decimal,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "stk push failed", slog.Any("error", err))
		respondError(c, err, "Mpesa STK push failed")
		return
	}

	respondJSON(c, http.StatusOK, "STK push sent successfully", providerBody(result.Response.Raw, result.Response))
}

// Query handles POST /mpesa/query
func (h *MpesaHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CheckoutRequestID == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Message: "CheckoutRequestID is required"})
		return
	}

	resp, err := h.paymentService.QueryPaymentStatus(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "stk query failed",
			slog.String("checkout_request_id", req.CheckoutRequestID),
			slog.Any("error", err),
		)
		respondError(c, err, "Mpesa query failed")
		return
	}

	c.JSON(http.StatusOK, providerBody(resp.Raw, resp))
}

// Callback handles POST /mpesa/callback. The provider always gets an
// acknowledgement, whatever happened to the payload.
func (h *MpesaHandler) Callback(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		slog.WarnContext(c.Request.Context(), "failed to read callback body", slog.Any("error", err))
		c.JSON(http.StatusOK, domain.AcceptedAck())
		return
	}

	c.JSON(http.StatusOK, h.callbackService.HandleCallback(c.Request.Context(), payload))
}

// GetTransaction handles GET /mpesa/transaction/:checkoutRequestId
func (h *MpesaHandler) GetTransaction(c *gin.Context) {
	checkoutID := c.Param("checkoutRequestId")

	txn, err := h.paymentService.GetTransaction(c.Request.Context(), checkoutID)
	if err != nil {
		respondError(c, err, "Failed to load transaction")
		return
	}
	if txn == nil {
		c.JSON(http.StatusNotFound, APIResponse{Message: "Transaction not found"})
		return
	}

	respondJSON(c, http.StatusOK, "", txn)
}

// Token handles GET /mpesa/token
func (h *MpesaHandler) Token(c *gin.Context) {
	token, err := h.paymentService.AccessToken(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to get access token")
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token})
}

// providerBody returns the provider's raw JSON when available so clients see
// exactly what was received.
func providerBody(raw json.RawMessage, parsed any) any {
	if len(raw) > 0 && json.Valid(raw) {
		return raw
	}
	return parsed
}
