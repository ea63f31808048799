// internal/models/fiscal.go
package models

import "time"

// Counterparty is the recipient (tomador) of a service invoice.
type Counterparty struct {
	ID               string       `json:"id" db:"id"`
	TenantID         string       `json:"tenantId" db:"tenant_id"`
	Name             string       `json:"name" db:"name"`
	Aliases          []string     `json:"aliases,omitempty" db:"aliases"`
	Document         string       `json:"document" db:"document"`
	DocumentKind     DocumentKind `json:"documentKind" db:"document_kind"`
	Email            string       `json:"email,omitempty" db:"email"`
	MunicipalityCode string       `json:"municipalityCode,omitempty" db:"municipality_code"`
	CreatedAt        time.Time    `json:"createdAt" db:"created_at"`
}

// InvoiceStatus follows the lifecycle reported by the fiscal authority.
type InvoiceStatus string

const (
	InvoiceAuthorized InvoiceStatus = "authorized"
	InvoicePending    InvoiceStatus = "pending"
	InvoiceProcessing InvoiceStatus = "processing"
	InvoiceRejected   InvoiceStatus = "rejected"
	InvoiceCancelled  InvoiceStatus = "cancelled"
)

// Invoice is a persisted NFS-e record.
type Invoice struct {
	ID               string        `json:"id" db:"id"`
	TenantID         string        `json:"tenantId" db:"tenant_id"`
	Number           string        `json:"number" db:"number"`
	VerificationCode string        `json:"verificationCode,omitempty" db:"verification_code"`
	Status           InvoiceStatus `json:"status" db:"status"`
	CounterpartyID   string        `json:"counterpartyId" db:"counterparty_id"`
	CounterpartyName string        `json:"counterpartyName" db:"counterparty_name"`
	Amount           float64       `json:"amount" db:"amount"`
	Description      string        `json:"description,omitempty" db:"description"`
	MunicipalityCode string        `json:"municipalityCode,omitempty" db:"municipality_code"`
	RejectionReason  string        `json:"rejectionReason,omitempty" db:"rejection_reason"`
	IssuedAt         time.Time     `json:"issuedAt" db:"issued_at"`
}

// InvoiceFilter narrows history lookups; zero values mean "any".
type InvoiceFilter struct {
	Status           InvoiceStatus
	CounterpartyID   string
	CounterpartyName string
	From             time.Time
	To               time.Time
	Limit            int
}

// InvoiceSummary aggregates invoice counts for a period.
type InvoiceSummary struct {
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	Total       int                   `json:"total"`
	ByStatus    map[InvoiceStatus]int `json:"byStatus"`
	TotalAmount float64               `json:"totalAmount"` // authorized invoices only
}

// PlanStatus is the tenant's subscription and quota snapshot.
type PlanStatus struct {
	TenantID         string `json:"tenantId"`
	PlanID           string `json:"planId"`
	PlanName         string `json:"planName"`
	Status           string `json:"status"` // active, trialing, past_due, cancelled
	InvoicesUsed     int    `json:"invoicesUsed"`
	InvoicesAllowed  int    `json:"invoicesAllowed"`
	Unlimited        bool   `json:"unlimited"`
	CompaniesUsed    int    `json:"companiesUsed"`
	CompaniesAllowed int    `json:"companiesAllowed"`
}

// Active reports whether the subscription allows emissions.
func (p PlanStatus) Active() bool {
	return p.Status == "active" || p.Status == "trialing"
}

// Remaining is the number of emissions left this month.
func (p PlanStatus) Remaining() int {
	if r := p.InvoicesAllowed - p.InvoicesUsed; r > 0 {
		return r
	}
	return 0
}

// UpgradeOption is a plan the tenant may move to.
type UpgradeOption struct {
	PlanID          string  `json:"planId"`
	Name            string  `json:"name"`
	MonthlyInvoices int     `json:"monthlyInvoices"`
	Unlimited       bool    `json:"unlimited"`
	MonthlyPrice    float64 `json:"monthlyPrice"`
}

// ConnectionHealth is the last known state of the link with the fiscal authority.
type ConnectionHealth string

const (
	ConnectionHealthy      ConnectionHealth = "healthy"
	ConnectionFailed       ConnectionHealth = "failed"
	ConnectionNotConnected ConnectionHealth = "not_connected"
)

// Tax regimes relevant to emission rules.
const (
	RegimeMEI             = "mei"
	RegimeSimplesNacional = "simples_nacional"
	RegimeLucroPresumido  = "lucro_presumido"
)

// FiscalRegistration is the tenant's state with the fiscal authority.
type FiscalRegistration struct {
	TenantID             string           `json:"tenantId"`
	ExternalID           string           `json:"externalId"`
	MunicipalityCode     string           `json:"municipalityCode"`
	Connection           ConnectionHealth `json:"connection"`
	ConnectionCheckedAt  time.Time        `json:"connectionCheckedAt"`
	CertificatePresent   bool             `json:"certificatePresent"`
	CertificateExpiresAt *time.Time       `json:"certificateExpiresAt,omitempty"`
	TaxRegime            string           `json:"taxRegime"`
	YearToDateRevenue    float64          `json:"yearToDateRevenue"`
}

// EmissionRequest is the input of an emission, built from an emit_invoice plan.
type EmissionRequest struct {
	CounterpartyID   string  `json:"counterpartyId"`
	CounterpartyName string  `json:"counterpartyName"`
	Document         string  `json:"document,omitempty"`
	Email            string  `json:"email,omitempty"`
	Amount           float64 `json:"amount"`
	Description      string  `json:"description,omitempty"`
}

// CancellationRequest is the input of a cancellation, built from a cancel_invoice plan.
type CancellationRequest struct {
	InvoiceNumber string `json:"invoiceNumber"`
	Justification string `json:"justification"`
}
