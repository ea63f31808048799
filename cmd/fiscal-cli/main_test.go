package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/pkg/registry"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { seedPath = "" })

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestClassifyCommand(t *testing.T) {
	out := run(t, "", "classify", "quero", "emitir", "uma", "nota", "de", "500", "reais", "para", "Maria")

	var res intent.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, models.IntentEmitInvoice, res.Top.Intent)
	assert.Greater(t, res.Top.Confidence, 0.0)
}

func TestExtractCommand(t *testing.T) {
	out := run(t, "", "extract", "nota de R$ 1.500 para o cpf 529.982.247-25")

	var ents models.Entities
	require.NoError(t, json.Unmarshal([]byte(out), &ents))
	require.NotNil(t, ents.Amount)
	assert.Equal(t, 1500.0, *ents.Amount)
	require.NotNil(t, ents.Document)
	assert.Equal(t, "52998224725", ents.Document.Number)
}

func TestOperationsCommand(t *testing.T) {
	out := run(t, "", "operations")

	var reg registry.OperationRegistry
	require.NoError(t, json.Unmarshal([]byte(out), &reg))
	require.NoError(t, reg.Validate())

	emit, ok := reg.Find("emitir_nota")
	require.True(t, ok)
	assert.True(t, emit.RequiresConfirmation)

	last, ok := reg.Find("ultima_nota")
	require.True(t, ok)
	assert.True(t, last.ReadOnly)
}

func TestChat_ReadOnlyAndConfirmedEmission(t *testing.T) {
	stdin := strings.Join([]string{
		"qual foi minha última nota?",
		"emitir nota de R$ 1.500 para João Silva",
		"sim",
		"sair",
	}, "\n")

	out := run(t, stdin, "chat")

	assert.Contains(t, out, "Assistente fiscal")
	assert.Contains(t, out, "Sua última nota")
	assert.Contains(t, out, "Vou emitir uma nota fiscal de R$ 1.500,00")
	assert.Contains(t, out, "emitida para João Silva")
}

func TestChat_SeedFile(t *testing.T) {
	s := seed{
		Counterparties: []models.Counterparty{{ID: "c1", Name: "Padaria Central", Document: "11222333000181", DocumentKind: models.DocumentCNPJ}},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out := run(t, "listar clientes\n", "chat", "--seed", path)

	assert.Contains(t, out, "Padaria Central")
}

func TestReadSeed_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := readSeed(path)
	require.Error(t, err)
}

func TestDemoSeed_AssignsTenant(t *testing.T) {
	stores := demoSeed().stores("acme")

	last, err := stores.Invoices.Last(t.Context(), "acme")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "acme", last.TenantID)
}
