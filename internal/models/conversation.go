// internal/models/conversation.go
package models

import "time"

// Role tags the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry of the per-user conversation log.
type Turn struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	TenantID  string    `json:"tenantId" db:"tenant_id"`
	Role      Role      `json:"role" db:"role"`
	Text      string    `json:"text" db:"text"`
	Action    string    `json:"action,omitempty" db:"action"`
	PlanID    string    `json:"planId,omitempty" db:"plan_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Hints carries request context that the surrounding handler already knows.
type Hints struct {
	TenantID             string `json:"tenantId"`
	UserID               string `json:"userId"`
	ActiveCounterpartyID string `json:"activeCounterpartyId,omitempty"`
}

// Utterance is the immutable input of one pipeline invocation.
type Utterance struct {
	Text    string `json:"text"`
	History []Turn `json:"history,omitempty"`
	Hints   Hints  `json:"hints"`
}
