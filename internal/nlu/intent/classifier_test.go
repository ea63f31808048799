// internal/nlu/intent/classifier_test.go
package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-assistant/internal/models"
)

func intents(scores []models.IntentScore) []models.Intent {
	out := make([]models.Intent, len(scores))
	for i, s := range scores {
		out[i] = s.Intent
	}
	return out
}

// ==========================
// Classification
// ==========================

func TestClassify_TopIntent(t *testing.T) {
	c := NewClassifier(Catalog())

	tests := []struct {
		text    string
		want    models.Intent
		minConf float64
	}{
		{"emitir nota de 2 mil para Empresa ABC", models.IntentEmitInvoice, 0.6},
		{"Emitir nota de R$ 1.500 para João Silva", models.IntentEmitInvoice, 0.6},
		{"emtir nf pro Carlos 300 reais", models.IntentEmitInvoice, 0.6},
		{"cancelar a nota 123", models.IntentCancelInvoice, 0.6},
		{"qual a minha ultima nota", models.IntentLastInvoice, 0.6},
		{"notas rejeitadas", models.IntentRejectedInvoices, 0.6},
		{"tenho notas pendentes?", models.IntentPendingInvoices, 0.6},
		{"cadastrar cliente João Silva cpf 529.982.247-25", models.IntentCreateClient, 0.6},
		{"listar clientes", models.IntentListClients, 0.6},
		{"quanto faturei este mês", models.IntentRevenueQuery, 0.6},
		{"status da conexão", models.IntentCheckConnection, 0.6},
		{"gerar guia do das", models.IntentGenerateTax, 0.6},
		{"ajuda", models.IntentHelp, 0.6},
		{"oi", models.IntentGreeting, 0.6},
		{"Olá!", models.IntentGreeting, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := c.Classify(tt.text)
			assert.Equal(t, tt.want, res.Top.Intent)
			assert.GreaterOrEqual(t, res.Top.Confidence, tt.minConf)
			assert.LessOrEqual(t, res.Top.Confidence, 1.0)
		})
	}
}

func TestClassify_EmptyAndUnknown(t *testing.T) {
	c := NewClassifier(Catalog())

	for _, text := range []string{"", "   ", "xyzzy"} {
		res := c.Classify(text)
		assert.Equal(t, models.IntentUnknown, res.Top.Intent, text)
		assert.Zero(t, res.Top.Confidence)
		assert.Empty(t, res.Alternatives)
	}
}

func TestClassify_GreetingInsideSentenceLosesExactBonus(t *testing.T) {
	c := NewClassifier(Catalog())
	res := c.Classify("oi, quero emitir uma nota de 500 reais para Maria")
	assert.Equal(t, models.IntentEmitInvoice, res.Top.Intent)
	assert.Contains(t, intents(res.Alternatives), models.IntentGreeting)
}

func TestClassify_NegativeContext(t *testing.T) {
	c := NewClassifier(Catalog())

	res := c.Classify("status da conexão")
	assert.NotContains(t, intents(res.Ranked()), models.IntentInvoiceStatus)

	res = c.Classify("cancelar a nota 123")
	assert.NotContains(t, intents(res.Ranked()), models.IntentEmitInvoice)
}

// ==========================
// "das" guard
// ==========================

func TestClassify_DasGuard(t *testing.T) {
	c := NewClassifier(Catalog())

	t.Run("bare das means tax", func(t *testing.T) {
		res := c.Classify("quero ver o das")
		assert.Equal(t, models.IntentViewTaxes, res.Top.Intent)
	})

	t.Run("das next to a document is not tax", func(t *testing.T) {
		res := c.Classify("das 529.982.247-25")
		assert.NotContains(t, intents(res.Ranked()), models.IntentViewTaxes)
	})

	t.Run("das as preposition before notas", func(t *testing.T) {
		res := c.Classify("lista das notas")
		assert.Equal(t, models.IntentListInvoices, res.Top.Intent)
		assert.NotContains(t, intents(res.Ranked()), models.IntentViewTaxes)
	})

	t.Run("explicit tax keyword wins over a document", func(t *testing.T) {
		res := c.Classify("imposto do cpf 529.982.247-25")
		assert.Equal(t, models.IntentViewTaxes, res.Top.Intent)
	})
}

// ==========================
// Ranking
// ==========================

func TestClassify_TiesKeepDeclarationOrder(t *testing.T) {
	c := NewClassifier([]Rule{
		{Intent: models.IntentListInvoices, Keywords: []string{"ver"}, Weight: 1},
		{Intent: models.IntentListClients, Keywords: []string{"ver"}, Weight: 1},
		{Intent: models.IntentRevenueQuery, Keywords: []string{"ver"}, Weight: 1},
		{Intent: models.IntentViewTaxes, Keywords: []string{"ver"}, Weight: 1},
	})

	res := c.Classify("ver")
	assert.Equal(t, models.IntentListInvoices, res.Top.Intent)
	require.Len(t, res.Alternatives, 2)
	assert.Equal(t, []models.Intent{models.IntentListClients, models.IntentRevenueQuery}, intents(res.Alternatives))
}

func TestClassify_WeightAndClamp(t *testing.T) {
	c := NewClassifier([]Rule{
		{Intent: models.IntentHelp, Keywords: []string{"ajuda"}, Weight: 0.5},
		{Intent: models.IntentEmitInvoice, Phrases: []string{"emitir nota", "nota fiscal"}, Keywords: []string{"emitir", "nota"}, Weight: 1},
	})

	res := c.Classify("ajuda")
	assert.InDelta(t, 0.15, res.Top.Confidence, 1e-9)

	res = c.Classify("emitir nota fiscal")
	assert.Equal(t, 1.0, res.Top.Confidence)
}

func TestClassifier_Rule(t *testing.T) {
	c := NewClassifier(Catalog())

	r, ok := c.Rule(models.IntentEmitInvoice)
	require.True(t, ok)
	assert.Equal(t, "emitir_nota", r.Operation)
	assert.False(t, r.ReadOnly)

	_, ok = c.Rule(models.IntentUnknown)
	assert.False(t, ok)
	assert.Len(t, c.Rules(), len(Catalog()))
}

func TestCatalog_MutatingIntentsAreNotReadOnly(t *testing.T) {
	for _, r := range Catalog() {
		switch r.Intent {
		case models.IntentEmitInvoice, models.IntentCancelInvoice, models.IntentCreateClient:
			assert.False(t, r.ReadOnly, r.Intent)
		default:
			assert.True(t, r.ReadOnly, r.Intent)
		}
	}
}
