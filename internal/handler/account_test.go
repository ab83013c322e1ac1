package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentfees/internal/domain"
	"studentfees/internal/tests"
)

func TestAccounts_CreateAndGet(t *testing.T) {
	t.Parallel()

	router := newRouter(tests.NewHarness())

	w := do(t, router, http.MethodPost, "/accounts", `{"id":"ADM-001","studentName":"Amina Wanjiru","guardianEmail":"guardian@example.com","balance":10000}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodGet, "/accounts/ADM-001", "")
	require.Equal(t, http.StatusOK, w.Code)

	env := decode(t, w)
	var account domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.Equal(t, "Amina Wanjiru", account.StudentName)
	assert.Equal(t, int64(10000), account.Balance)

	w = do(t, router, http.MethodPost, "/accounts", `{"id":"ADM-001","studentName":"Someone Else"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAccounts_Errors(t *testing.T) {
	t.Parallel()

	router := newRouter(tests.NewHarness())

	w := do(t, router, http.MethodGet, "/accounts/ADM-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/accounts", `{"balance":100}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/accounts", `{"studentName":"X","guardianEmail":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/accounts", `{"studentName":"X","balance":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccounts_PaymentDebitsBalance(t *testing.T) {
	t.Parallel()

	router := newRouter(tests.NewHarness())

	w := do(t, router, http.MethodPost, "/accounts", `{"id":"ADM-002","studentName":"Brian Otieno","balance":5000}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/mpesa/stkpush", `{"phone":"254712345678","amount":1500,"accountReference":"ADM-002"}`)
	require.Equal(t, http.StatusOK, w.Code)

	callback := string(tests.SuccessCallback("ws_CO_mock_1", 1500, "QWE123RTY"))
	for i := 0; i < 2; i++ {
		w = do(t, router, http.MethodPost, "/mpesa/callback", callback)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = do(t, router, http.MethodGet, "/accounts/ADM-002", "")
	require.Equal(t, http.StatusOK, w.Code)

	var account domain.Account
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &account))
	assert.Equal(t, int64(3500), account.Balance)
}
