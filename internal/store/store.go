// Package store declares the collaborator contracts the assistant pipeline consumes.
// Implementations live in the postgres, search, redisstore and memory subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fiscal-assistant/internal/models"
)

var (
	ErrNotFound          = errors.New("NOT_FOUND")
	ErrDuplicateDocument = errors.New("DUPLICATE_DOCUMENT")
)

// CounterpartyDirectory resolves invoice recipients, always scoped to one tenant.
type CounterpartyDirectory interface {
	FindByDocument(ctx context.Context, tenantID, document string) (*models.Counterparty, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Counterparty, error)
	// Search matches name and aliases ignoring case and accents.
	Search(ctx context.Context, tenantID, name string, limit int) ([]models.Counterparty, error)
	List(ctx context.Context, tenantID string, limit int) ([]models.Counterparty, error)
	// Create fails with ErrDuplicateDocument when the tenant already has the document.
	Create(ctx context.Context, cp *models.Counterparty) error
}

// InvoiceHistory reads and records issued invoices.
type InvoiceHistory interface {
	List(ctx context.Context, tenantID string, filter models.InvoiceFilter) ([]models.Invoice, error)
	Last(ctx context.Context, tenantID string) (*models.Invoice, error)
	ByNumber(ctx context.Context, tenantID, number string) (*models.Invoice, error)
	Summary(ctx context.Context, tenantID string, from, to time.Time) (*models.InvoiceSummary, error)
	Record(ctx context.Context, inv *models.Invoice) error
}

// QuotaStatus reports the tenant's plan and the plans it can move to.
type QuotaStatus interface {
	Plan(ctx context.Context, tenantID string) (*models.PlanStatus, error)
	UpgradeOptions(ctx context.Context, planID string) ([]models.UpgradeOption, error)
}

// FiscalRegistry returns ErrNotFound when the tenant never registered with the authority.
type FiscalRegistry interface {
	Registration(ctx context.Context, tenantID string) (*models.FiscalRegistration, error)
}

// ActionSink performs the real-world side effects on the fiscal platform.
type ActionSink interface {
	EmitInvoice(ctx context.Context, tenantID string, req models.EmissionRequest) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, tenantID string, req models.CancellationRequest) (*models.Invoice, error)
	CheckConnection(ctx context.Context, tenantID string) (models.ConnectionHealth, error)
}

// TurnLog is the append-only per-user conversation record.
type TurnLog interface {
	Append(ctx context.Context, turn models.Turn) error
	// Recent returns up to n turns in chronological order.
	Recent(ctx context.Context, userID string, n int) ([]models.Turn, error)
}

// PendingActions holds at most one plan per user awaiting confirmation.
type PendingActions interface {
	Put(ctx context.Context, userID string, plan *models.ActionPlan) error
	// Take removes and returns the pending plan, or ErrNotFound.
	Take(ctx context.Context, userID string) (*models.ActionPlan, error)
	Discard(ctx context.Context, userID string) error
}

// SinkError is a structured failure of the fiscal platform. Code and Detail are technical
// and must not be shown to end users.
type SinkError struct {
	Operation  string
	StatusCode int
	Code       string
	Detail     string
	Retryable  bool
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("fiscal platform %s failed (status %d, code %s): %s", e.Operation, e.StatusCode, e.Code, e.Detail)
}

// AsSinkError extracts a *SinkError from an error chain.
func AsSinkError(err error) (*SinkError, bool) {
	var se *SinkError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
