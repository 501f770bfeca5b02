package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seatfee/internal/feetest"
	"github.com/smallbiznis/seatfee/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	env    *feetest.Env
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := feetest.New(t, feetest.Date(2025, 1, 2))
	engine := NewEngine(EngineParams{ObsCfg: observability.Config{Environment: "test"}})
	srv := NewServer(ServerParams{
		Gin:             engine,
		Clock:           env.Clock,
		FeeConfig:       env.FeeConfig,
		LedgerSvc:       env.Ledger,
		PaymentSvc:      env.Payment,
		AdvanceSvc:      env.Advance,
		DueSvc:          env.Due,
		BillingCycleSvc: env.BillingCycle,
		FeeSummarySvc:   env.Summary,
		AuditSvc:        env.Audit,
	})
	RegisterRoutes(srv)
	return &testServer{env: env, engine: engine}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func decimalField(t *testing.T, data map[string]any, key string) decimal.Decimal {
	t.Helper()
	raw, ok := data[key].(string)
	require.True(t, ok, "%s is not a decimal string", key)
	return decimal.RequireFromString(raw)
}

func errorCode(payload map[string]any) string {
	errBody, _ := payload["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestLedgerAndPaymentRoutes(t *testing.T) {
	ts := newTestServer(t)
	sub := ts.env.AddSubscriber(t, "500", 1, feetest.Date(2025, 1, 1))
	base := "/api/subscribers/" + sub.ID.String()

	rec, body := ts.do(t, http.MethodPut, base+"/ledger/2025-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, "2025-01", data["period"])
	assert.Equal(t, "PENDING", data["status"])

	rec, body = ts.do(t, http.MethodPost, base+"/payments", map[string]any{
		"period": "2025-01",
		"amount": "200",
		"method": "bitcoin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payment_method", errorCode(body))

	rec, body = ts.do(t, http.MethodPost, base+"/payments", map[string]any{
		"period": "2025-01",
		"amount": 500,
		"method": "UPI",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = body["data"].(map[string]any)
	assert.True(t, decimalField(t, data, "residual_due").IsZero())

	rec, body = ts.do(t, http.MethodPost, base+"/payments", map[string]any{
		"period": "2025-01",
		"amount": "1",
		"method": "cash",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ledger_record_locked", errorCode(body))

	rec, body = ts.do(t, http.MethodGet, base+"/fees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.True(t, decimalField(t, data, "total_outstanding").IsZero())
	assert.Len(t, data["payments"], 1)

	rec, body = ts.do(t, http.MethodGet, base+"/audit-logs?action=payment.recorded", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
}

func TestMarkDueAndAdvanceRoutes(t *testing.T) {
	ts := newTestServer(t)
	sub := ts.env.AddSubscriber(t, "500", 1, feetest.Date(2025, 1, 1))
	base := "/api/subscribers/" + sub.ID.String()

	rec, body := ts.do(t, http.MethodPost, base+"/ledger/2025-01/due", map[string]any{"reminder_date": "05-01-2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "validation_error", errBody["type"])

	rec, body = ts.do(t, http.MethodPost, base+"/ledger/2025-01/due", map[string]any{"reminder_date": "2025-01-05"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tracker := body["data"].(map[string]any)["tracker"].(map[string]any)
	assert.Equal(t, []any{"2025-01"}, tracker["periods"])

	rec, _ = ts.do(t, http.MethodPost, base+"/advance", map[string]any{"amount": "400"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = ts.do(t, http.MethodPost, base+"/advance/apply", map[string]any{"period": "2025-01"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_advance", errorCode(body))

	rec, body = ts.do(t, http.MethodPost, base+"/advance", map[string]any{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", errorCode(body))
}

func TestAdminJobRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.env.AddSubscriber(t, "500", 1, feetest.Date(2025, 1, 1))

	rec, body := ts.do(t, http.MethodPost, "/admin/billing-cycles/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["generated"])

	rec, body = ts.do(t, http.MethodPost, "/admin/escalations/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, float64(0), data["processed"])
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/subscribers/123456/fees", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "subscriber_not_found", errorCode(body))

	rec, body = ts.do(t, http.MethodPut, "/api/subscribers/abc/ledger/2025-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_subscriber_id", errorCode(body))

	rec, _ = ts.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
