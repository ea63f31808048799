// internal/assistant/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-assistant/internal/assistant/llm"
	"fiscal-assistant/internal/assistant/responder"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/internal/store/memory"
)

const (
	tenant = "tenant-1"
	user   = "user-1"
)

var testNow = time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)

type scriptedProvider struct {
	reply *llm.Reply
	err   error
	wait  bool
	last  llm.Request
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	p.calls++
	p.last = req
	if p.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.reply, p.err
}

type fixture struct {
	orchestrator *Orchestrator
	turns        *memory.TurnLog
	pending      *memory.Pending
}

func newFixture(t *testing.T, provider llm.Provider) *fixture {
	clients := memory.NewCounterparties(
		models.Counterparty{ID: "cp-joao", TenantID: tenant, Name: "João Silva", Document: "52998224725", DocumentKind: models.DocumentCPF},
		models.Counterparty{ID: "cp-joao-filho", TenantID: tenant, Name: "João Silva Filho", Document: "12345678909", DocumentKind: models.DocumentCPF},
		models.Counterparty{ID: "cp-abc", TenantID: tenant, Name: "Empresa ABC", Document: "11222333000181", DocumentKind: models.DocumentCNPJ},
		models.Counterparty{ID: "cp-maria-1", TenantID: tenant, Name: "Maria Souza"},
		models.Counterparty{ID: "cp-maria-2", TenantID: tenant, Name: "Maria Oliveira"},
	)
	registry := memory.NewRegistry()
	registry.Items[tenant] = models.FiscalRegistration{TenantID: tenant, MunicipalityCode: "3550308", Connection: models.ConnectionHealthy}

	log := logger.NewTestLogger(t)
	clock := func() time.Time { return testNow }
	rules := intent.Catalog()
	deps := Deps{
		Classifier:    intent.NewClassifier(rules),
		Disambiguator: intent.NewDisambiguator(rules),
		Responder: responder.New(responder.Deps{
			Counterparties: clients,
			Invoices:       memory.NewInvoices(),
			Registry:       registry,
		}, responder.Config{Clock: clock}, log),
		Turns:   memory.NewTurnLog(),
		Pending: memory.NewPending(),
	}
	if provider != nil {
		deps.Adapter = llm.NewAdapter(provider, rules, 50*time.Millisecond, 10, log)
	}
	return &fixture{
		orchestrator: New(deps, Config{ConfidenceThreshold: 0.6, Clock: clock}, log),
		turns:        deps.Turns.(*memory.TurnLog),
		pending:      deps.Pending.(*memory.Pending),
	}
}

func (f *fixture) say(text string) *Response {
	return f.orchestrator.Handle(context.Background(), models.Utterance{
		Text:  text,
		Hints: models.Hints{TenantID: tenant, UserID: user},
	})
}

func TestHandle_EmissionEndToEnd(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.say("Emitir nota de R$ 1.500 para João Silva")

	require.NotNil(t, resp.Plan)
	assert.Equal(t, RouteDeterministic, resp.Route)
	assert.Equal(t, models.ActionEmitInvoice, resp.Plan.Action)
	assert.True(t, resp.Plan.RequiresConfirmation)
	assert.Equal(t, 1500.0, resp.Plan.Data["amount"])
	assert.Equal(t, "cp-joao", resp.Plan.Data["counterparty"])
	assert.Nil(t, resp.Confirmation)

	turns, err := f.turns.Recent(context.Background(), user, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, resp.Plan.ID, turns[1].PlanID)
	assert.Equal(t, string(models.ActionEmitInvoice), turns[1].Action)
}

func TestHandle_Greeting(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.say("oi")

	assert.Equal(t, models.IntentGreeting, resp.Plan.Intent)
	assert.False(t, resp.Plan.RequiresConfirmation)
	assert.NotEmpty(t, resp.Plan.Explanation)
}

func TestHandle_EmissionWithThousandsWord(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.say("emitir nota de 2 mil para Empresa ABC")

	assert.Equal(t, models.IntentEmitInvoice, resp.Classification.Top.Intent)
	assert.GreaterOrEqual(t, resp.Classification.Top.Confidence, 0.6)
	assert.Equal(t, models.ActionEmitInvoice, resp.Plan.Action)
	assert.Equal(t, 2000.0, resp.Plan.Data["amount"])
	assert.Equal(t, "cp-abc", resp.Plan.Data["counterparty"])
}

func TestHandle_EmptyTextGetsMenu(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.say("   ")

	assert.Equal(t, models.ActionMenu, resp.Plan.Action)
	assert.Equal(t, RouteInput, resp.Route)
	assert.Equal(t, intent.GenericMenu, resp.Plan.Explanation)
}

func TestHandle_ModelCallResolvesThroughResponder(t *testing.T) {
	provider := &scriptedProvider{reply: &llm.Reply{Call: &llm.FunctionCall{
		Name: "emitir_nota",
		Args: map[string]interface{}{"valor": 300.0, "cliente": "João Silva"},
	}}}
	f := newFixture(t, provider)

	f.say("oi")
	assert.Zero(t, provider.calls, "confident turns never reach the model")

	resp := f.say("xyz abc")

	assert.Equal(t, RouteModel, resp.Route)
	assert.Equal(t, models.ActionEmitInvoice, resp.Plan.Action)
	assert.Equal(t, 300.0, resp.Plan.Data["amount"])
	assert.Equal(t, "cp-joao", resp.Plan.Data["counterparty"])
	assert.True(t, resp.Plan.RequiresConfirmation)

	// user "oi", assistant greeting, user "xyz abc"
	require.Len(t, provider.last.Messages, 3)
	assert.Equal(t, "xyz abc", provider.last.Messages[2].Text)
	assert.NotEmpty(t, provider.last.Functions)
}

func TestHandle_ModelTextReply(t *testing.T) {
	f := newFixture(t, &scriptedProvider{reply: &llm.Reply{Text: "Posso ajudar com notas fiscais."}})

	resp := f.say("xyz abc")

	assert.Equal(t, RouteModel, resp.Route)
	assert.Equal(t, models.ActionReply, resp.Plan.Action)
	assert.Equal(t, "Posso ajudar com notas fiscais.", resp.Plan.Explanation)
	assert.False(t, resp.Plan.RequiresConfirmation)
}

func TestHandle_ModelFailureFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedProvider
	}{
		{"transport error", &scriptedProvider{err: fmt.Errorf("%w: connection refused", llm.ErrModelUnavailable)}},
		{"timeout", &scriptedProvider{wait: true}},
		{"malformed reply", &scriptedProvider{reply: &llm.Reply{Call: &llm.FunctionCall{Name: "apagar_tudo"}}}},
		{"invalid arguments", &scriptedProvider{reply: &llm.Reply{Call: &llm.FunctionCall{
			Name: "emitir_nota", Args: map[string]interface{}{"valor": "muito"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.provider)

			resp := f.say("xyz abc")

			assert.Equal(t, 1, tt.provider.calls)
			assert.Equal(t, RouteFallback, resp.Route)
			assert.Equal(t, models.ActionMenu, resp.Plan.Action)
			assert.False(t, resp.Plan.RequiresConfirmation)

			turns, err := f.turns.Recent(context.Background(), user, 0)
			require.NoError(t, err)
			assert.Len(t, turns, 2)
		})
	}
}

func TestHandle_ConfirmationFlow(t *testing.T) {
	f := newFixture(t, nil)

	proposed := f.say("Emitir nota de R$ 1.500 para João Silva")
	require.True(t, proposed.Plan.RequiresConfirmation)

	confirmed := f.say("sim")

	assert.Equal(t, RoutePending, confirmed.Route)
	require.NotNil(t, confirmed.Confirmation)
	assert.Equal(t, proposed.Plan.ID, confirmed.Plan.ID)
	assert.Equal(t, proposed.Plan.ID, confirmed.Confirmation.PlanID)
	assert.Equal(t, testNow, confirmed.Confirmation.ConfirmedAt)

	// The plan was consumed; a second "sim" confirms nothing.
	again := f.say("sim")
	assert.Nil(t, again.Confirmation)
}

func TestHandle_DeclineDropsPendingPlan(t *testing.T) {
	f := newFixture(t, nil)

	proposed := f.say("Emitir nota de R$ 1.500 para João Silva")
	resp := f.say("não")

	assert.Equal(t, models.ActionDiscarded, resp.Plan.Action)
	assert.Equal(t, proposed.Plan.ID, resp.Plan.Data["plan_id"])
	assert.Nil(t, resp.Confirmation)

	_, err := f.pending.Take(context.Background(), user)
	assert.Error(t, err)
}

func TestHandle_CancellationReasonInFollowUp(t *testing.T) {
	f := newFixture(t, nil)

	asked := f.say("cancelar a nota 123")
	require.Equal(t, models.ActionCancelInvoice, asked.Plan.Action)
	require.Empty(t, asked.Plan.Data["justification"])

	resp := f.say("o cliente desistiu do serviço contratado")

	assert.Equal(t, RoutePending, resp.Route)
	assert.Nil(t, resp.Confirmation)
	assert.Equal(t, models.ActionCancelInvoice, resp.Plan.Action)
	assert.Equal(t, "123", resp.Plan.Data["invoice_number"])
	assert.Equal(t, "o cliente desistiu do serviço contratado", resp.Plan.Data["justification"])
	assert.Contains(t, resp.Plan.Explanation, "Confirma?")

	confirmed := f.say("sim")
	require.NotNil(t, confirmed.Confirmation)
	assert.Equal(t, resp.Plan.ID, confirmed.Confirmation.PlanID)
	assert.Equal(t, "o cliente desistiu do serviço contratado", confirmed.Plan.Data["justification"])
}

func TestHandle_CancellationWithoutReasonIsNotConfirmed(t *testing.T) {
	f := newFixture(t, nil)

	f.say("cancelar a nota 123")
	resp := f.say("sim")

	assert.Nil(t, resp.Confirmation)
	assert.Equal(t, RoutePending, resp.Route)
	assert.Equal(t, models.ActionCancelInvoice, resp.Plan.Action)
	assert.Contains(t, resp.Plan.Explanation, "motivo")

	// Still waiting for the reason.
	pending, err := f.pending.Take(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "123", pending.Data["invoice_number"])
	assert.Empty(t, pending.Data["justification"])
}

func TestHandle_NewCommandSupersedesPendingPlan(t *testing.T) {
	f := newFixture(t, nil)

	f.say("Emitir nota de R$ 1.500 para João Silva")
	resp := f.say("oi")

	assert.Equal(t, models.ActionGreeting, resp.Plan.Action)
	_, err := f.pending.Take(context.Background(), user)
	assert.Error(t, err)
}

func TestHandle_CounterpartyChoice(t *testing.T) {
	f := newFixture(t, nil)

	choose := f.say("emitir nota de 800 reais para Maria")
	require.Equal(t, models.ActionChooseCounterparty, choose.Plan.Action)

	resp := f.say("2")

	assert.Equal(t, RoutePending, resp.Route)
	assert.Equal(t, models.ActionEmitInvoice, resp.Plan.Action)
	assert.Equal(t, 800.0, resp.Plan.Data["amount"])
	ids := choose.Plan.Data["candidate_ids"].([]string)
	assert.Equal(t, ids[1], resp.Plan.Data["counterparty"])

	confirmed := f.say("pode emitir")
	require.NotNil(t, confirmed.Confirmation)
	assert.Equal(t, resp.Plan.ID, confirmed.Confirmation.PlanID)
}

func TestHandle_ClarificationRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	clarify := f.say("status")
	require.Equal(t, models.ActionClarify, clarify.Plan.Action)
	assert.Equal(t, RouteClarify, clarify.Route)
	assert.Contains(t, clarify.Plan.Explanation, "1. Consultar a situação de uma nota")
	assert.Contains(t, clarify.Plan.Explanation, "2. Verificar a conexão com a prefeitura")

	resp := f.say("2")

	assert.Equal(t, RoutePending, resp.Route)
	assert.Equal(t, models.ActionCheckConnection, resp.Plan.Action)
}

func TestIsConfirmationAndDecline(t *testing.T) {
	for _, text := range []string{"sim", "Sim!", "confirmo", "pode emitir", "sim, pode emitir", "ok"} {
		assert.True(t, IsConfirmation(text), text)
		assert.False(t, IsDecline(text), text)
	}
	for _, text := range []string{"não", "nao", "cancela", "esquece"} {
		assert.True(t, IsDecline(text), text)
		assert.False(t, IsConfirmation(text), text)
	}
	for _, text := range []string{"cancela a nota 123", "sim para o João", "emitir nota"} {
		assert.False(t, IsConfirmation(text), text)
		assert.False(t, IsDecline(text), text)
	}
}
