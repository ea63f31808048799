// internal/workers/fiscal/validate-action/models.go
package validateaction

import "fiscal-assistant/internal/models"

type Input struct {
	TenantID string             `json:"tenantId"`
	Plan     *models.ActionPlan `json:"plan"`
}

// Output is flattened so BPMN gateways can branch on isValid directly.
type Output struct {
	IsValid  bool                    `json:"isValid"`
	Errors   []models.ValidationItem `json:"validationErrors"`
	Warnings []models.ValidationItem `json:"validationWarnings"`
	Codes    []string                `json:"validationCodes"`
}
