// internal/workers/fiscal/validate-action/handler_test.go
package validateaction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fiscal-assistant/internal/common/config"
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

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(ctx context.Context, tenantID string, plan *models.ActionPlan) (*models.ValidationVerdict, error) {
	args := m.Called(ctx, tenantID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ValidationVerdict), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "fiscal-action",
		ElementId:          "Activity_ValidateAction",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, v ActionValidator) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, v, logger.NewTestLogger(t))
}

func emissionPlan() *models.ActionPlan {
	return &models.ActionPlan{
		ID:                   "plan-1",
		Action:               models.ActionEmitInvoice,
		Intent:               models.IntentEmitInvoice,
		Data:                 map[string]interface{}{"counterparty": "cp-1", "amount": 1500.0},
		RequiresConfirmation: true,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name       string
		verdict    *models.ValidationVerdict
		wantValid  bool
		wantCodes  []string
		wantWarned int
	}{
		{
			name:      "valid with no items",
			verdict:   models.NewVerdict(nil, nil),
			wantValid: true,
			wantCodes: nil,
		},
		{
			name:       "valid with a warning",
			verdict:    models.NewVerdict(nil, []models.ValidationItem{{Code: "quota-near-limit", Message: "Restam 3 notas"}}),
			wantValid:  true,
			wantWarned: 1,
		},
		{
			name: "rejected plan completes with isValid false",
			verdict: models.NewVerdict(
				[]models.ValidationItem{{Code: "quota-exceeded"}, {Code: "certificate-expired"}},
				nil,
			),
			wantValid: false,
			wantCodes: []string{"quota-exceeded", "certificate-expired"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := new(MockValidator)
			plan := emissionPlan()
			v.On("Validate", mock.Anything, "tenant-1", plan).Return(tt.verdict, nil)

			output, err := createTestHandler(t, v).Execute(context.Background(), &Input{TenantID: "tenant-1", Plan: plan})

			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, output.IsValid)
			if tt.wantCodes == nil {
				assert.Empty(t, output.Codes)
			} else {
				assert.Equal(t, tt.wantCodes, output.Codes)
			}
			assert.Len(t, output.Warnings, tt.wantWarned)
			v.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_ValidatorError(t *testing.T) {
	v := new(MockValidator)
	v.On("Validate", mock.Anything, "tenant-1", mock.Anything).
		Return(nil, apperrors.NewUnsupportedActionError("greeting"))

	_, err := createTestHandler(t, v).Execute(context.Background(), &Input{
		TenantID: "tenant-1",
		Plan:     &models.ActionPlan{ID: "p", Action: models.ActionGreeting},
	})

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnsupportedAction, stdErr.Code)
}

func TestParseInput(t *testing.T) {
	planVars := map[string]interface{}{"id": "plan-1", "action": "emit_invoice", "data": map[string]interface{}{"amount": 10.0}}

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"valid", map[string]interface{}{"tenantId": "tenant-1", "plan": planVars}, false},
		{"missing tenant", map[string]interface{}{"plan": planVars}, true},
		{"missing plan", map[string]interface{}{"tenantId": "tenant-1"}, true},
		{"plan without action", map[string]interface{}{"tenantId": "tenant-1", "plan": map[string]interface{}{"id": "x"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				var stdErr *apperrors.StandardError
				require.True(t, errors.As(err, &stdErr))
				assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ActionEmitInvoice, input.Plan.Action)
			amount, ok := input.Plan.Float("amount")
			assert.True(t, ok)
			assert.Equal(t, 10.0, amount)
		})
	}
}

func TestParseInput_MalformedVariables(t *testing.T) {
	job := createMockJob(2, nil)
	job.Variables = "{not json"

	_, err := parseInput(job)
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
}
