// internal/common/fiscalapi/client_test.go
package fiscalapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fiscal-assistant/internal/common/cache"
	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlatform(t *testing.T, tokenCalls *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok-1", ExpiresIn: 300})
	})
	mux.HandleFunc("/v1/tenants/t1/nfse", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var in emitPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, 1500.0, in.Amount)
		_ = json.NewEncoder(w).Encode(invoicePayload{
			ID: "inv-1", Number: "2026000123", VerificationCode: "AB12-CD34", Status: "authorized",
			IssuedAt: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC),
		})
	})
	mux.HandleFunc("/v1/tenants/t1/nfse/77/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorPayload{Code: "E0202", Message: "prazo de cancelamento expirado"})
	})
	mux.HandleFunc("/v1/tenants/t1/connection", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	cfg := config.FiscalAPIConfig{BaseURL: srv.URL, TokenURL: srv.URL + "/token", ClientID: "assistant", ClientSecret: "s3cret", Timeout: 2000}
	return NewClient(cfg, nil, nil, logger.NewTestLogger(t))
}

func TestEmitInvoice_ReusesCachedToken(t *testing.T) {
	var tokenCalls int32
	srv := newPlatform(t, &tokenCalls)
	defer srv.Close()
	c := newTestClient(t, srv)

	req := models.EmissionRequest{CounterpartyID: "cp-1", CounterpartyName: "João Silva", Amount: 1500}
	for i := 0; i < 2; i++ {
		inv, err := c.EmitInvoice(context.Background(), "t1", req)
		require.NoError(t, err)
		assert.Equal(t, "2026000123", inv.Number)
		assert.Equal(t, models.InvoiceAuthorized, inv.Status)
		assert.Equal(t, "cp-1", inv.CounterpartyID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestTokenSource_RefreshesAfterExpiry(t *testing.T) {
	var tokenCalls int32
	srv := newPlatform(t, &tokenCalls)
	defer srv.Close()

	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := config.FiscalAPIConfig{BaseURL: srv.URL, TokenURL: srv.URL + "/token", ClientID: "assistant"}
	c := NewClient(cfg, cache.NewTTLCache[string, string](time.Hour, clock), clock, logger.NewNoOpLogger())

	_, err := c.tokens.Token(context.Background())
	require.NoError(t, err)
	now = now.Add(271 * time.Second)
	_, err = c.tokens.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestCancelInvoice_StructuredFailure(t *testing.T) {
	var tokenCalls int32
	srv := newPlatform(t, &tokenCalls)
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.CancelInvoice(context.Background(), "t1", models.CancellationRequest{InvoiceNumber: "77", Justification: "emitida em duplicidade"})

	sinkErr, ok := store.AsSinkError(err)
	require.True(t, ok)
	assert.Equal(t, "E0202", sinkErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, sinkErr.StatusCode)
	assert.False(t, sinkErr.Retryable)
	assert.Equal(t, "cancel", sinkErr.Operation)
}

func TestCheckConnection(t *testing.T) {
	var tokenCalls int32
	srv := newPlatform(t, &tokenCalls)
	defer srv.Close()

	health, err := newTestClient(t, srv).CheckConnection(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionHealthy, health)
}

func TestCall_TransportFailureIsRetryable(t *testing.T) {
	cfg := config.FiscalAPIConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200}
	c := NewClient(cfg, nil, nil, logger.NewNoOpLogger())

	_, err := c.EmitInvoice(context.Background(), "t1", models.EmissionRequest{Amount: 10})
	sinkErr, ok := store.AsSinkError(err)
	require.True(t, ok)
	assert.Equal(t, "TRANSPORT", sinkErr.Code)
	assert.True(t, sinkErr.Retryable)
}
