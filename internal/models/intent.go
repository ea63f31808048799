// internal/models/intent.go
package models

// Intent is a tag from the closed intent catalog.
type Intent string

const (
	IntentEmitInvoice      Intent = "emit_invoice"
	IntentCancelInvoice    Intent = "cancel_invoice"
	IntentListInvoices     Intent = "list_invoices"
	IntentLastInvoice      Intent = "last_invoice"
	IntentInvoiceStatus    Intent = "invoice_status"
	IntentRejectedInvoices Intent = "rejected_invoices"
	IntentPendingInvoices  Intent = "pending_invoices"
	IntentCreateClient     Intent = "create_client"
	IntentListClients      Intent = "list_clients"
	IntentSearchClient     Intent = "search_client"
	IntentRevenueQuery     Intent = "revenue_query"
	IntentViewTaxes        Intent = "view_taxes"
	IntentPayTax           Intent = "pay_tax"
	IntentGenerateTax      Intent = "generate_tax"
	IntentCheckConnection  Intent = "check_connection"
	IntentHelp             Intent = "help"
	IntentGreeting         Intent = "greeting"
	IntentUnknown          Intent = "unknown"
)

// IntentScore pairs an intent with a confidence in [0,1].
type IntentScore struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
