// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: fiscal
    user: fiscal
  redis:
    address: localhost:6379
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Assistant.ConfidenceThreshold)
	assert.Equal(t, 8000, cfg.Assistant.ModelTimeout)
	assert.Equal(t, "none", cfg.Model.Provider)
	assert.Equal(t, 5, cfg.Validator.QuotaWarningThreshold)
	assert.Equal(t, 15, cfg.Validator.MinJustificationLength)
	assert.Equal(t, "counterparties", cfg.Database.Elasticsearch.CounterpartyIndex)
	assert.Contains(t, cfg.Jurisdictions, "3550308")
	assert.Equal(t, "configs/operation-registry.json", cfg.Registry.Path)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "gateway without base url",
			extra:   "model:\n  provider: gateway\n",
			wantErr: "model.base_url",
		},
		{
			name:    "unknown provider",
			extra:   "model:\n  provider: openai\n",
			wantErr: "not supported",
		},
		{
			name:    "threshold out of range",
			extra:   "assistant:\n  confidence_threshold: 1.5\n",
			wantErr: "confidence_threshold",
		},
		{
			name:    "cancellation without deadline",
			extra:   "jurisdictions:\n  \"9999999\":\n    name: Teste\n    supported: true\n    supports_cancellation: true\n",
			wantErr: "cancellation_deadline_hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_EnvOverridesSecret(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret-key")
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+"model:\n  provider: gemini\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Model.APIKey)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{}
	wc := GetWorkerConfig(cfg, "process-utterance")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "process-utterance"))
}

func TestDefaults_NoInfrastructure(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "none", cfg.Model.Provider)
	assert.Equal(t, 0.6, cfg.Assistant.ConfidenceThreshold)
	assert.Equal(t, 15, cfg.Validator.MinJustificationLength)
	assert.Len(t, cfg.Jurisdictions, len(DefaultJurisdictions()))
	assert.Empty(t, cfg.Database.Postgres.Host)
	assert.NotNil(t, cfg.Workers)
}
