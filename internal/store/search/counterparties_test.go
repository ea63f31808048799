// internal/store/search/counterparties_test.go
package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store/memory"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestDirectory_SearchUsesIndex(t *testing.T) {
	client := newES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/counterparties/_search"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"tenant_id":"t1"`)
		assert.Contains(t, string(body), `"fuzziness":"AUTO"`)

		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"cp-1","_score":3.2,"_source":{"tenant_id":"t1","name":"João Silva","document":"52998224725","document_kind":"cpf"}}]}}`))
	})
	d := NewDirectory(memory.NewCounterparties(), client, "counterparties", logger.NewTestLogger(t))

	got, err := d.Search(context.Background(), "t1", "joao silv", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cp-1", got[0].ID)
	assert.Equal(t, models.DocumentCPF, got[0].DocumentKind)
}

func TestDirectory_SearchFallsBackOnClusterError(t *testing.T) {
	client := newES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})
	base := memory.NewCounterparties()
	require.NoError(t, base.Create(context.Background(), &models.Counterparty{TenantID: "t1", Name: "Empresa ABC", Document: "11222333000181"}))

	d := NewDirectory(base, client, "counterparties", logger.NewTestLogger(t))
	got, err := d.Search(context.Background(), "t1", "empresa abc", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Empresa ABC", got[0].Name)
}

func TestDirectory_CreateIndexesDocument(t *testing.T) {
	var indexed document
	client := newES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&indexed))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})
	d := NewDirectory(memory.NewCounterparties(), client, "counterparties", logger.NewTestLogger(t))

	cp := &models.Counterparty{TenantID: "t1", Name: "Maria Souza", Document: "12345678909", DocumentKind: models.DocumentCPF}
	require.NoError(t, d.Create(context.Background(), cp))
	assert.Equal(t, "Maria Souza", indexed.Name)
	assert.Equal(t, "t1", indexed.TenantID)
}
