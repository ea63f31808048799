// internal/workers/fiscal/execute-action/models.go
package executeaction

import "fiscal-assistant/internal/models"

type Input struct {
	TenantID     string               `json:"tenantId"`
	Plan         *models.ActionPlan   `json:"plan"`
	Confirmation *models.Confirmation `json:"confirmation"`
}

type Output struct {
	Success      bool                 `json:"executionSuccess"`
	Message      string               `json:"executionMessage"`
	PlanID       string               `json:"planId"`
	Action       models.ActionType    `json:"action"`
	Invoice      *models.Invoice      `json:"invoice,omitempty"`
	Counterparty *models.Counterparty `json:"counterparty,omitempty"`
}

func outputFrom(r *models.ExecutionResult) *Output {
	return &Output{
		Success:      r.Success,
		Message:      r.Message,
		PlanID:       r.PlanID,
		Action:       r.Action,
		Invoice:      r.Invoice,
		Counterparty: r.Counterparty,
	}
}
