// internal/common/logger/logger_test.go
package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskDocument(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123.456.789-01", "*******8901"},
		{"12345678000190", "**********0190"},
		{"123", "***"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskDocument(tt.in))
		})
	}
}

func TestZapLogger_MasksSensitiveFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core)).With(map[string]interface{}{"component": "test"})

	log.Info("counterparty lookup", map[string]interface{}{
		"document": "12345678901",
		"tenantId": "t-1",
	})

	entries := logs.All()
	assert.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "*******8901", ctx["document"])
	assert.Equal(t, "t-1", ctx["tenantId"])
	assert.Equal(t, "test", ctx["component"])
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	l := New("verbose", "console")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
