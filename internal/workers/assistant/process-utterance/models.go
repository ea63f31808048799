// internal/workers/assistant/process-utterance/models.go
package processutterance

import "fiscal-assistant/internal/models"

type Input struct {
	Text                 string        `json:"text"`
	TenantID             string        `json:"tenantId"`
	UserID               string        `json:"userId"`
	ActiveCounterpartyID string        `json:"activeCounterpartyId,omitempty"`
	History              []models.Turn `json:"history,omitempty"`
}

// Output carries the reply shown to the user next to the plan that produced it.
type Output struct {
	Reply     string                  `json:"reply"`
	Route     string                  `json:"route"`
	Plan      *models.ActionPlan      `json:"plan"`
	Executed  bool                    `json:"executed"`
	Result    *models.ExecutionResult `json:"result,omitempty"`
	ErrorCode string                  `json:"errorCode,omitempty"`
}

func (i *Input) utterance() models.Utterance {
	return models.Utterance{
		Text:    i.Text,
		History: i.History,
		Hints: models.Hints{
			TenantID:             i.TenantID,
			UserID:               i.UserID,
			ActiveCounterpartyID: i.ActiveCounterpartyID,
		},
	}
}
