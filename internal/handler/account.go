package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfees/internal/service"
)

// AccountHandler handles HTTP requests for student fee accounts.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest is the HTTP request body for opening an account.
type CreateAccountRequest struct {
	ID            string `json:"id"`
	StudentName   string `json:"studentName" binding:"required"`
	GuardianEmail string `json:"guardianEmail" binding:"omitempty,email"`
	Balance       int64  `json:"balance" binding:"gte=0"`
}

// Create handles POST /accounts
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Message: "invalid request body: " + err.Error()})
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), service.CreateAccountRequest{
		ID:            req.ID,
		StudentName:   req.StudentName,
		GuardianEmail: req.GuardianEmail,
		Balance:       req.Balance,
	})
	if err != nil {
		respondError(c, err, "Failed to create account")
		return
	}

	respondJSON(c, http.StatusCreated, "Account created", account)
}

// Get handles GET /accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.accountService.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load account")
		return
	}

	respondJSON(c, http.StatusOK, "", account)
}
