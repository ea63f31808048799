// internal/store/memory/sink.go
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"

	"github.com/google/uuid"
)

// Sink simulates the fiscal platform. Emissions are authorized immediately and numbered
// sequentially; EmitErr and CancelErr force failures.
type Sink struct {
	mu        sync.Mutex
	next      int
	invoices  *Invoices
	Health    models.ConnectionHealth
	EmitErr   error
	CancelErr error
	Now       func() time.Time
}

var _ store.ActionSink = (*Sink)(nil)

// NewSink returns a sink that records what it emits into invoices (which may be nil).
func NewSink(invoices *Invoices) *Sink {
	return &Sink{next: 1, invoices: invoices, Health: models.ConnectionHealthy, Now: time.Now}
}

func (s *Sink) EmitInvoice(ctx context.Context, tenantID string, req models.EmissionRequest) (*models.Invoice, error) {
	s.mu.Lock()
	if s.EmitErr != nil {
		s.mu.Unlock()
		return nil, s.EmitErr
	}
	number := s.next
	s.next++
	s.mu.Unlock()

	inv := &models.Invoice{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		Number:           fmt.Sprintf("%d", number),
		VerificationCode: fmt.Sprintf("VC%06d", number),
		Status:           models.InvoiceAuthorized,
		CounterpartyID:   req.CounterpartyID,
		CounterpartyName: req.CounterpartyName,
		Amount:           req.Amount,
		Description:      req.Description,
		IssuedAt:         s.Now(),
	}
	return inv, nil
}

func (s *Sink) CancelInvoice(ctx context.Context, tenantID string, req models.CancellationRequest) (*models.Invoice, error) {
	s.mu.Lock()
	err := s.CancelErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if s.invoices == nil {
		return &models.Invoice{TenantID: tenantID, Number: req.InvoiceNumber, Status: models.InvoiceCancelled}, nil
	}
	inv, err := s.invoices.ByNumber(ctx, tenantID, req.InvoiceNumber)
	if err != nil {
		return nil, &store.SinkError{Operation: "cancel", StatusCode: 404, Code: "E404", Detail: "invoice not found"}
	}
	inv.Status = models.InvoiceCancelled
	return inv, nil
}

func (s *Sink) CheckConnection(context.Context, string) (models.ConnectionHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Health, nil
}
