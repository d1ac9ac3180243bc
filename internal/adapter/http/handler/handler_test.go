package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func strPtr(s string) *string { return &s }

func newContext(method, target string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Params = params
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data: %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var reachy = gin.Param{Key: "name", Value: "Reachy"}

// --- Wallet Handler Tests ---

func TestCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().CreateWallet(gomock.Any(), ports.CreateWalletRequest{
		Name:     "Reachy",
		Password: strPtr("secret1"),
	}).Return(&domain.Wallet{Name: "Reachy"}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/wallets/Reachy?pwd=secret1", reachy)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "Reachy", data["wallet"])
	assert.Equal(t, true, data["created"])
}

func TestCreate_PasswordAbsent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	// An absent pwd reaches the ledger as nil, not as "".
	ledger.EXPECT().CreateWallet(gomock.Any(), ports.CreateWalletRequest{Name: "Reachy"}).
		Return(nil, apperror.InvalidArgument("Password should be 6-14 letters, digits or any of !@#$%^&*_-+=.?"))

	c, w := newContext(http.MethodPost, "/api/v1/wallets/Reachy", reachy)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidArgument, decodeError(t, w)["error_code"])
}

func TestBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().GetBalance(gomock.Any(), ports.AccessRequest{Name: "Reachy", Password: strPtr("secret1")}).
		Return(domain.Money(1289110), nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallets/Reachy/balance?pwd=secret1", reachy)
	h.Balance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "12891.10", data["balance"])
}

func TestBalance_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(domain.Money(0), apperror.ErrWalletNotFound("Ghost"))

	c, w := newContext(http.MethodGet, "/api/v1/wallets/Ghost/balance", gin.Param{Key: "name", Value: "Ghost"})
	h.Balance(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, apperror.CodeNotFound, resp["error_code"])
	assert.Equal(t, "Wallet Ghost doesn't exist", resp["message"])
}

func TestHistory_FormatsOperations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sent := domain.NewTransfer("Reachy", "Bobby", 101, at)
	signed := domain.Money(-101)
	sent.Amount = &signed
	ledger.EXPECT().GetHistory(gomock.Any(), gomock.Any()).Return([]domain.Operation{
		domain.NewCreation("Reachy", at),
		sent,
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallets/Reachy/history?pwd=secret1", reachy)
	h.History(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	history := data["history"].([]interface{})
	require.Len(t, history, 2)

	creation := history[0].(map[string]interface{})
	assert.Equal(t, "creation", creation["optype"])
	assert.Nil(t, creation["amount"])
	assert.Nil(t, creation["get_from"])
	assert.Equal(t, "2024-05-01T12:00:00Z", creation["time"])

	transfer := history[1].(map[string]interface{})
	assert.Equal(t, "transaction", transfer["optype"])
	assert.Equal(t, "-1.01", transfer["amount"])
	assert.Equal(t, "Bobby", transfer["sent_to"])
	assert.Equal(t, "Reachy", transfer["get_from"])
}

func TestHistory_EmptyIsArray(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)
	ledger.EXPECT().GetHistory(gomock.Any(), gomock.Any()).Return(nil, nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallets/Reachy/history", reachy)
	h.History(c)

	assert.Contains(t, w.Body.String(), `"history":[]`)
}

func TestHistoryPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().GetHistoryPage(gomock.Any(), ports.HistoryPageRequest{
		AccessRequest: ports.AccessRequest{Name: "Reachy", Password: strPtr("secret1")},
		Page:          2,
	}).Return(&ports.HistoryPage{Page: 2, TotalPages: 3}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallets/Reachy/history/page/2?pwd=secret1",
		reachy, gin.Param{Key: "page", Value: "2"})
	h.HistoryPage(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(3), data["total_pages"])
}

func TestHistoryPage_NotANumber(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockLedgerService(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/wallets/Reachy/history/page/two",
		reachy, gin.Param{Key: "page", Value: "two"})
	h.HistoryPage(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeposit_PassesIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().Deposit(gomock.Any(), ports.DepositRequest{
		Name:        "Reachy",
		Sum:         strPtr("42.221001"),
		Token:       strPtr("admin"),
		OperationID: "op-1",
	}).Return(domain.Money(4222), nil)

	c, w := newContext(http.MethodPost, "/api/v1/wallets/Reachy/deposit?sum=42.221001&token=admin", reachy)
	c.Request.Header.Set("Idempotency-Key", "op-1")
	h.Deposit(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42.22", decodeData(t, w)["new_balance"])
}

func TestDeposit_BadIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockLedgerService(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/wallets/Reachy/deposit?sum=1&token=admin", reachy)
	c.Request.Header.Set("Idempotency-Key", "not valid!")
	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPay_Conflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().Transfer(gomock.Any(), ports.TransferRequest{
		From:     "Reachy",
		To:       strPtr("Bobby"),
		Sum:      strPtr("1.01"),
		Password: strPtr("secret1"),
	}).Return(domain.Money(0), apperror.ErrInsufficientFunds("Reachy"))

	c, w := newContext(http.MethodPost, "/api/v1/wallets/Reachy/pay?to=Bobby&sum=1.01&pwd=secret1", reachy)
	h.Pay(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Not enough money in wallet Reachy", decodeError(t, w)["message"])
}

func TestPay_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)
	ledger.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(domain.Money(899), nil)

	c, w := newContext(http.MethodPut, "/api/v1/wallets/Reachy/pay?to=Bobby&sum=1.01&pwd=secret1", reachy)
	h.Pay(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "Reachy", data["wallet"])
	assert.Equal(t, "8.99", data["balance"])
}

func TestList_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	ledger.EXPECT().ListWallets(gomock.Any(), strPtr("admin")).Return([]domain.Wallet{
		{Name: "Bobby", Balance: 101},
		{Name: "Reachy", Balance: 0},
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallets?token=admin")
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	wallets := decodeData(t, w)["wallets"].([]interface{})
	require.Len(t, wallets, 2)
	assert.Equal(t, map[string]interface{}{"name": "Bobby", "balance": "1.01"}, wallets[0])
	assert.Equal(t, map[string]interface{}{"name": "Reachy", "balance": "0.00"}, wallets[1])
}

func TestList_InternalErrorHidesCause(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)
	ledger.EXPECT().ListWallets(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrDatabaseError(errors.New("pq: password authentication failed")))

	c, w := newContext(http.MethodGet, "/api/v1/wallets?token=admin")
	h.List(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password authentication")
}

// --- Health & Docs ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(_ context.Context) error { return s.err }
func (s stubChecker) Name() string                 { return s.name }

func TestHealthCheck(t *testing.T) {
	c, w := newContext(http.MethodGet, "/health")
	HealthCheck(stubChecker{name: "postgresql"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	c, w := newContext(http.MethodGet, "/health")
	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("dial tcp: refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Dependencies["redis"]["status"])
	assert.Equal(t, "healthy", resp.Dependencies["postgresql"]["status"])
}

func TestSwaggerUI(t *testing.T) {
	c, w := newContext(http.MethodGet, "/swagger")
	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec(t *testing.T) {
	c, w := newContext(http.MethodGet, "/swagger/spec")
	SwaggerSpec([]byte("openapi: 3.0.3\n"))(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "openapi: 3.0.3\n", w.Body.String())

	c, w = newContext(http.MethodGet, "/swagger/spec")
	SwaggerSpec(nil)(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
