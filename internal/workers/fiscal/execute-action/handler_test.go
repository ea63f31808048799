// internal/workers/fiscal/execute-action/handler_test.go
package executeaction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

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
		BpmnProcessId:      "fiscal-action",
		ElementId:          "Activity_ExecuteAction",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, e ActionExecutor) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, e, logger.NewTestLogger(t))
}

func createInput() *Input {
	return &Input{
		TenantID: "tenant-1",
		Plan: &models.ActionPlan{
			ID:                   "plan-1",
			Action:               models.ActionEmitInvoice,
			Data:                 map[string]interface{}{"counterparty": "cp-1", "amount": 1500.0},
			RequiresConfirmation: true,
		},
		Confirmation: &models.Confirmation{
			PlanID:      "plan-1",
			TurnID:      "turn-2",
			ConfirmedAt: time.Date(2026, time.October, 14, 15, 31, 0, 0, time.UTC),
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	input := createInput()
	e := new(MockExecutor)
	e.On("Execute", mock.Anything, "tenant-1", input.Plan, input.Confirmation).Return(&models.ExecutionResult{
		PlanID:      "plan-1",
		Action:      models.ActionEmitInvoice,
		Success:     true,
		Message:     "Nota 124 emitida para João Silva no valor de R$ 1.500,00.",
		Invoice:     &models.Invoice{Number: "124", Status: models.InvoiceAuthorized},
		Diagnostics: map[string]interface{}{"internal": "hidden"},
	}, nil)

	output, err := createTestHandler(t, e).Execute(context.Background(), input)

	require.NoError(t, err)
	assert.True(t, output.Success)
	assert.Equal(t, "plan-1", output.PlanID)
	assert.Equal(t, "124", output.Invoice.Number)
	assert.Contains(t, output.Message, "R$ 1.500,00")
	e.AssertExpectations(t)

	vars, err := json.Marshal(output)
	require.NoError(t, err)
	assert.NotContains(t, string(vars), "hidden")
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		result      *models.ExecutionResult
		err         error
		wantCode    apperrors.ErrorCode
		wantMessage string
		wantRetries int
	}{
		{
			name:        "missing confirmation",
			err:         apperrors.NewConfirmationRequiredError("plan-1"),
			wantCode:    apperrors.ErrCodeConfirmationRequired,
			wantRetries: 0,
		},
		{
			name:        "validation failed carries the user message",
			result:      &models.ExecutionResult{PlanID: "plan-1", Message: "Você atingiu o limite de notas do seu plano."},
			err:         apperrors.NewValidationFailedError([]string{"quota-exceeded"}),
			wantCode:    apperrors.ErrCodeValidationFailed,
			wantMessage: "Você atingiu o limite de notas do seu plano.",
			wantRetries: 0,
		},
		{
			name:        "sink unavailable is retried",
			result:      &models.ExecutionResult{PlanID: "plan-1", Message: "A prefeitura de São Paulo está fora do ar."},
			err:         apperrors.NewSinkUnavailableError(assert.AnError),
			wantCode:    apperrors.ErrCodeSinkUnavailable,
			wantMessage: "A prefeitura de São Paulo está fora do ar.",
			wantRetries: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := new(MockExecutor)
			e.On("Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.result, tt.err)

			_, err := createTestHandler(t, e).Execute(context.Background(), createInput())

			stdErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.wantRetries, apperrors.GetRetryCount(stdErr.Code))
			if tt.wantMessage != "" {
				bpmnErr := apperrors.ConvertToBPMNError(stdErr)
				assert.Equal(t, tt.wantMessage, bpmnErr.ToErrorVariables()["userMessage"])
			}
		})
	}
}

func TestParseInput(t *testing.T) {
	job := createMockJob(7, map[string]interface{}{
		"tenantId": "tenant-1",
		"plan":     map[string]interface{}{"id": "plan-1", "action": "cancel_invoice", "data": map[string]interface{}{"invoice_number": "900"}},
		"confirmation": map[string]interface{}{
			"planId":      "plan-1",
			"turnId":      "turn-2",
			"confirmedAt": "2026-10-14T15:31:00Z",
		},
	})

	input, err := parseInput(job)

	require.NoError(t, err)
	assert.Equal(t, models.ActionCancelInvoice, input.Plan.Action)
	assert.Equal(t, "900", input.Plan.String("invoice_number"))
	require.NotNil(t, input.Confirmation)
	assert.Equal(t, "plan-1", input.Confirmation.PlanID)
	assert.False(t, input.Confirmation.ConfirmedAt.IsZero())
}

func TestParseInput_Invalid(t *testing.T) {
	_, err := parseInput(createMockJob(8, map[string]interface{}{"plan": map[string]interface{}{"action": "emit_invoice"}}))

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}
