package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-assistant/pkg/registry"
)

func TestGenerate_Valid(t *testing.T) {
	reg, err := generate("2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", reg.Version)
	assert.NotEmpty(t, reg.Operations)
}

func TestCheck_NoDriftAfterGenerate(t *testing.T) {
	reg, err := generate("1.0.0")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "operation-registry.json")
	require.NoError(t, registry.SaveRegistry(reg, path))

	drift, err := check(path)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestDiff(t *testing.T) {
	current, err := generate("1.0.0")
	require.NoError(t, err)

	published := &registry.OperationRegistry{Version: "1.0.0"}
	for _, op := range current.Operations {
		switch op.Name {
		case "ultima_nota":
			continue
		case "emitir_nota":
			op.RequiresConfirmation = false
		}
		published.Operations = append(published.Operations, op)
	}
	published.Operations = append(published.Operations, registry.Operation{Name: "apagar_tudo", Intent: "unknown"})

	assert.Equal(t, []string{"changed: emitir_nota", "missing: ultima_nota", "removed: apagar_tudo"}, diff(published, current))
}

func TestCheck_MissingFile(t *testing.T) {
	_, err := check(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
