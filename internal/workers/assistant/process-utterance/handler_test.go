// internal/workers/assistant/process-utterance/handler_test.go
package processutterance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fiscal-assistant/internal/assistant/executor"
	"fiscal-assistant/internal/assistant/orchestrator"
	"fiscal-assistant/internal/assistant/responder"
	"fiscal-assistant/internal/assistant/validator"
	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/internal/store/memory"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	tenant = "tenant-1"
	user   = "user-1"
)

// ==========================
// Test Helper Functions
// ==========================

type stubTurns struct {
	resp *orchestrator.Response
	got  models.Utterance
}

func (s *stubTurns) Handle(_ context.Context, utt models.Utterance) *orchestrator.Response {
	s.got = utt
	return s.resp
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, tenantID string, plan *models.ActionPlan, conf *models.Confirmation) (*models.ExecutionResult, error) {
	args := m.Called(ctx, tenantID, plan, conf)
	var result *models.ExecutionResult
	if r := args.Get(0); r != nil {
		result = r.(*models.ExecutionResult)
	}
	return result, args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "assistant-conversation",
		ElementId:          "Activity_ProcessUtterance",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func testConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func confirmedEmission() *orchestrator.Response {
	return &orchestrator.Response{
		Route: orchestrator.RoutePending,
		Plan: &models.ActionPlan{
			ID: "plan-1", Action: models.ActionEmitInvoice, Explanation: "Confirma a emissão?",
			RequiresConfirmation: true,
		},
		Confirmation: &models.Confirmation{PlanID: "plan-1", TurnID: "turn-2", ConfirmedAt: time.Now()},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ReadOnlyTurn(t *testing.T) {
	turns := &stubTurns{resp: &orchestrator.Response{
		Route: orchestrator.RouteDeterministic,
		Plan:  &models.ActionPlan{ID: "p", Action: models.ActionGreeting, Explanation: "Olá! Como posso ajudar?"},
	}}
	e := new(MockExecutor)

	out := NewHandler(testConfig(), turns, e, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Text: "oi", TenantID: tenant, UserID: user, ActiveCounterpartyID: "cp-1",
	})

	assert.Equal(t, "Olá! Como posso ajudar?", out.Reply)
	assert.Equal(t, orchestrator.RouteDeterministic, out.Route)
	assert.False(t, out.Executed)
	assert.Equal(t, "cp-1", turns.got.Hints.ActiveCounterpartyID)
	e.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Execute_ConfirmedPlanIsExecuted(t *testing.T) {
	tests := []struct {
		name      string
		result    *models.ExecutionResult
		err       error
		wantReply string
		wantCode  string
	}{
		{
			name:      "success",
			result:    &models.ExecutionResult{PlanID: "plan-1", Success: true, Message: "Nota 7 emitida."},
			wantReply: "Nota 7 emitida.",
		},
		{
			name:      "validation failure keeps the rendered message",
			result:    &models.ExecutionResult{PlanID: "plan-1", Message: "Seu certificado digital venceu."},
			err:       apperrors.NewValidationFailedError([]string{"certificate-expired"}),
			wantReply: "Seu certificado digital venceu.",
			wantCode:  string(apperrors.ErrCodeValidationFailed),
		},
		{
			name:      "failure without a result",
			err:       apperrors.NewDatabaseError("plan", assert.AnError),
			wantReply: executionFallbackReply,
			wantCode:  string(apperrors.ErrCodeDatabaseFailed),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := confirmedEmission()
			e := new(MockExecutor)
			e.On("Execute", mock.Anything, tenant, resp.Plan, resp.Confirmation).Return(tt.result, tt.err)

			out := NewHandler(testConfig(), &stubTurns{resp: resp}, e, logger.NewTestLogger(t)).
				Execute(context.Background(), &Input{Text: "sim", TenantID: tenant, UserID: user})

			assert.True(t, out.Executed)
			assert.Equal(t, tt.wantReply, out.Reply)
			assert.Equal(t, tt.wantCode, out.ErrorCode)
			e.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_WithoutExecutorLeavesConfirmation(t *testing.T) {
	out := NewHandler(testConfig(), &stubTurns{resp: confirmedEmission()}, nil, logger.NewTestLogger(t)).
		Execute(context.Background(), &Input{Text: "sim", TenantID: tenant, UserID: user})

	assert.False(t, out.Executed)
	assert.Equal(t, "Confirma a emissão?", out.Reply)
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"valid", map[string]interface{}{"text": "oi", "tenantId": tenant, "userId": user}, false},
		{"empty text is allowed", map[string]interface{}{"text": "", "tenantId": tenant, "userId": user}, false},
		{"missing user", map[string]interface{}{"text": "oi", "tenantId": tenant}, true},
		{"missing tenant", map[string]interface{}{"text": "oi", "userId": user}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				stdErr, ok := apperrors.As(err)
				require.True(t, ok)
				assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// ==========================
// Pipeline Tests
// ==========================

func TestHandler_EmitAndConfirm(t *testing.T) {
	log := logger.NewTestLogger(t)
	expires := time.Now().AddDate(1, 0, 0)

	clients := memory.NewCounterparties(models.Counterparty{
		ID: "cp-joao", TenantID: tenant, Name: "João Silva", Document: "52998224725", DocumentKind: models.DocumentCPF,
	})
	invoices := memory.NewInvoices()
	registry := memory.NewRegistry()
	registry.Items[tenant] = models.FiscalRegistration{
		TenantID: tenant, MunicipalityCode: "3550308", Connection: models.ConnectionHealthy,
		ConnectionCheckedAt: time.Now(), CertificatePresent: true, CertificateExpiresAt: &expires,
		TaxRegime: models.RegimeSimplesNacional,
	}
	quota := memory.NewQuota()
	quota.Plans[tenant] = models.PlanStatus{TenantID: tenant, PlanID: "basic", Status: "active", InvoicesUsed: 10, InvoicesAllowed: 50}

	rules := intent.Catalog()
	orch := orchestrator.New(orchestrator.Deps{
		Classifier:    intent.NewClassifier(rules),
		Disambiguator: intent.NewDisambiguator(rules),
		Responder: responder.New(responder.Deps{
			Counterparties: clients, Invoices: invoices, Registry: registry,
		}, responder.Config{}, log),
		Turns:   memory.NewTurnLog(),
		Pending: memory.NewPending(),
	}, orchestrator.Config{}, log)

	exec := executor.New(executor.Deps{
		Validator:      validator.New(validator.Deps{Quota: quota, Registry: registry, Invoices: invoices}, validator.Config{}, log),
		Sink:           memory.NewSink(invoices),
		Counterparties: clients,
		Invoices:       invoices,
		Registry:       registry,
		Quota:          quota,
	}, nil, nil, log)

	h := NewHandler(testConfig(), orch, exec, log)
	ctx := context.Background()

	first := h.Execute(ctx, &Input{Text: "Emitir nota de R$ 1.500 para João Silva", TenantID: tenant, UserID: user})
	require.Equal(t, models.ActionEmitInvoice, first.Plan.Action)
	assert.False(t, first.Executed)

	second := h.Execute(ctx, &Input{Text: "sim", TenantID: tenant, UserID: user})
	require.True(t, second.Executed)
	require.NotNil(t, second.Result)
	assert.Empty(t, second.ErrorCode)
	assert.True(t, second.Result.Success)
	assert.Contains(t, second.Reply, "emitida para João Silva no valor de R$ 1.500,00")

	last, err := invoices.Last(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceAuthorized, last.Status)
	assert.Equal(t, 11, quota.Plans[tenant].InvoicesUsed)
}
