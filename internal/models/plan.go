// internal/models/plan.go
package models

import "time"

// ActionType identifies what an ActionPlan proposes.
type ActionType string

const (
	ActionEmitInvoice        ActionType = "emit_invoice"
	ActionCancelInvoice      ActionType = "cancel_invoice"
	ActionCreateClient       ActionType = "create_client"
	ActionChooseCounterparty ActionType = "choose_counterparty"
	ActionRegisterThenEmit   ActionType = "register_counterparty_then_emit"
	ActionRequestMissingData ActionType = "request_missing_data"
	ActionClientExists       ActionType = "client_exists"
	ActionListClients        ActionType = "list_clients"
	ActionSearchClients      ActionType = "search_clients"
	ActionQueryInvoices      ActionType = "query_invoices"
	ActionInvoiceDetail      ActionType = "invoice_detail"
	ActionInvoiceSummary     ActionType = "invoice_summary"
	ActionRevenueReport      ActionType = "revenue_report"
	ActionTaxInfo            ActionType = "tax_info"
	ActionCheckConnection    ActionType = "check_connection"
	ActionHelp               ActionType = "help"
	ActionGreeting           ActionType = "greeting"
	ActionClarify            ActionType = "clarify"
	ActionReply              ActionType = "reply"
	ActionMenu               ActionType = "menu"
	ActionNotUnderstood      ActionType = "not_understood"
	ActionDiscarded          ActionType = "discarded"
)

// mutating lists the actions with a real-world side effect.
var mutating = map[ActionType]bool{
	ActionEmitInvoice:   true,
	ActionCancelInvoice: true,
	ActionCreateClient:  true,
}

// IsMutating reports whether executing the action changes persisted state.
func (a ActionType) IsMutating() bool {
	return mutating[a]
}

// ActionPlan is the not-yet-executed proposal produced for one turn.
type ActionPlan struct {
	ID                   string                 `json:"id"`
	Action               ActionType             `json:"action"`
	Intent               Intent                 `json:"intent"`
	Data                 map[string]interface{} `json:"data,omitempty"`
	Explanation          string                 `json:"explanation"`
	RequiresConfirmation bool                   `json:"requiresConfirmation"`
	CreatedAt            time.Time              `json:"createdAt"`
}

// String returns a field of Data as a string, or "".
func (p *ActionPlan) String(key string) string {
	if v, ok := p.Data[key].(string); ok {
		return v
	}
	return ""
}

// Float returns a numeric field of Data; JSON round trips turn every number into float64.
func (p *ActionPlan) Float(key string) (float64, bool) {
	switch v := p.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Confirmation records that the user explicitly accepted a plan in a later turn.
type Confirmation struct {
	PlanID      string    `json:"planId"`
	TurnID      string    `json:"turnId"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// ValidationItem is one blocking error or warning of a verdict.
type ValidationItem struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
}

// ValidationVerdict is computed fresh for every validation request.
type ValidationVerdict struct {
	Valid    bool             `json:"valid"`
	Errors   []ValidationItem `json:"errors"`
	Warnings []ValidationItem `json:"warnings"`
}

// NewVerdict derives Valid from the error list so the two can never disagree.
func NewVerdict(errs, warnings []ValidationItem) *ValidationVerdict {
	if errs == nil {
		errs = []ValidationItem{}
	}
	if warnings == nil {
		warnings = []ValidationItem{}
	}
	return &ValidationVerdict{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// Codes lists the blocking error codes in order.
func (v *ValidationVerdict) Codes() []string {
	out := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		out = append(out, e.Code)
	}
	return out
}

// ExecutionResult is what the executor reports back for a plan.
type ExecutionResult struct {
	PlanID       string        `json:"planId"`
	Action       ActionType    `json:"action"`
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Invoice      *Invoice      `json:"invoice,omitempty"`
	Counterparty *Counterparty `json:"counterparty,omitempty"`
	// Diagnostics keeps technical failure detail for operators; it is never rendered to the user.
	Diagnostics map[string]interface{} `json:"-"`
}

// EmissionRequest builds the sink input from an emit_invoice plan.
func (p *ActionPlan) EmissionRequest() EmissionRequest {
	amount, _ := p.Float("amount")
	return EmissionRequest{
		CounterpartyID:   p.String("counterparty"),
		CounterpartyName: p.String("counterparty_name"),
		Document:         p.String("document"),
		Email:            p.String("email"),
		Amount:           amount,
		Description:      p.String("description"),
	}
}

// CancellationRequest builds the sink input from a cancel_invoice plan.
func (p *ActionPlan) CancellationRequest() CancellationRequest {
	return CancellationRequest{
		InvoiceNumber: p.String("invoice_number"),
		Justification: p.String("justification"),
	}
}
