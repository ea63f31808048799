// Package memory provides in-process implementations of the store contracts for the CLI and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/normalize"
	"fiscal-assistant/internal/store"

	"github.com/google/uuid"
)

// ==========================
// Counterparties
// ==========================

type Counterparties struct {
	mu    sync.RWMutex
	items []models.Counterparty
}

var _ store.CounterpartyDirectory = (*Counterparties)(nil)

func NewCounterparties(seed ...models.Counterparty) *Counterparties {
	return &Counterparties{items: append([]models.Counterparty(nil), seed...)}
}

func (c *Counterparties) FindByDocument(_ context.Context, tenantID, document string) (*models.Counterparty, error) {
	return c.find(func(cp models.Counterparty) bool { return cp.TenantID == tenantID && cp.Document == document })
}

func (c *Counterparties) FindByID(_ context.Context, tenantID, id string) (*models.Counterparty, error) {
	return c.find(func(cp models.Counterparty) bool { return cp.TenantID == tenantID && cp.ID == id })
}

func (c *Counterparties) find(match func(models.Counterparty) bool) (*models.Counterparty, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cp := range c.items {
		if match(cp) {
			out := cp
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (c *Counterparties) Search(_ context.Context, tenantID, name string, limit int) ([]models.Counterparty, error) {
	term := normalize.Fold(strings.ToLower(strings.TrimSpace(name)))
	if term == "" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Counterparty
	for _, cp := range c.items {
		if cp.TenantID != tenantID {
			continue
		}
		if matchesName(cp, term) {
			out = append(out, cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func matchesName(cp models.Counterparty, term string) bool {
	if strings.Contains(normalize.Fold(strings.ToLower(cp.Name)), term) {
		return true
	}
	for _, a := range cp.Aliases {
		if strings.Contains(normalize.Fold(strings.ToLower(a)), term) {
			return true
		}
	}
	return false
}

func (c *Counterparties) List(_ context.Context, tenantID string, limit int) ([]models.Counterparty, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Counterparty
	for i := len(c.items) - 1; i >= 0; i-- {
		if c.items[i].TenantID == tenantID {
			out = append(out, c.items[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (c *Counterparties) Create(_ context.Context, cp *models.Counterparty) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.items {
		if existing.TenantID == cp.TenantID && existing.Document == cp.Document {
			return fmt.Errorf("%w: %s", store.ErrDuplicateDocument, cp.Document)
		}
	}
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	c.items = append(c.items, *cp)
	return nil
}

// ==========================
// Invoices
// ==========================

type Invoices struct {
	mu    sync.RWMutex
	items []models.Invoice
}

var _ store.InvoiceHistory = (*Invoices)(nil)

func NewInvoices(seed ...models.Invoice) *Invoices {
	return &Invoices{items: append([]models.Invoice(nil), seed...)}
}

// sorted returns the tenant's invoices newest first.
func (s *Invoices) sorted(tenantID string) []models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Invoice
	for _, inv := range s.items {
		if inv.TenantID == tenantID {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out
}

func (s *Invoices) List(_ context.Context, tenantID string, f models.InvoiceFilter) ([]models.Invoice, error) {
	name := normalize.Fold(strings.ToLower(f.CounterpartyName))
	var out []models.Invoice
	for _, inv := range s.sorted(tenantID) {
		switch {
		case f.Status != "" && inv.Status != f.Status:
			continue
		case f.CounterpartyID != "" && inv.CounterpartyID != f.CounterpartyID:
			continue
		case name != "" && !strings.Contains(normalize.Fold(strings.ToLower(inv.CounterpartyName)), name):
			continue
		case !f.From.IsZero() && inv.IssuedAt.Before(f.From):
			continue
		case !f.To.IsZero() && !inv.IssuedAt.Before(f.To):
			continue
		}
		out = append(out, inv)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Invoices) Last(_ context.Context, tenantID string) (*models.Invoice, error) {
	all := s.sorted(tenantID)
	if len(all) == 0 {
		return nil, store.ErrNotFound
	}
	return &all[0], nil
}

func (s *Invoices) ByNumber(_ context.Context, tenantID, number string) (*models.Invoice, error) {
	for _, inv := range s.sorted(tenantID) {
		if inv.Number == number {
			out := inv
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Invoices) Summary(ctx context.Context, tenantID string, from, to time.Time) (*models.InvoiceSummary, error) {
	list, _ := s.List(ctx, tenantID, models.InvoiceFilter{From: from, To: to})
	sum := &models.InvoiceSummary{From: from, To: to, ByStatus: map[models.InvoiceStatus]int{}}
	for _, inv := range list {
		sum.Total++
		sum.ByStatus[inv.Status]++
		if inv.Status == models.InvoiceAuthorized {
			sum.TotalAmount += inv.Amount
		}
	}
	return sum, nil
}

func (s *Invoices) Record(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	for i := range s.items {
		if s.items[i].ID == inv.ID {
			s.items[i] = *inv
			return nil
		}
	}
	s.items = append(s.items, *inv)
	return nil
}

// ==========================
// Quota and registration
// ==========================

// Quota serves fixed plan snapshots; Err, when set, is returned by every call.
type Quota struct {
	mu       sync.RWMutex
	Plans    map[string]models.PlanStatus
	Upgrades []models.UpgradeOption
	Err      error
}

var _ store.QuotaStatus = (*Quota)(nil)

func NewQuota() *Quota {
	return &Quota{Plans: map[string]models.PlanStatus{}}
}

func (q *Quota) Plan(_ context.Context, tenantID string) (*models.PlanStatus, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.Err != nil {
		return nil, q.Err
	}
	ps, ok := q.Plans[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ps, nil
}

func (q *Quota) UpgradeOptions(_ context.Context, planID string) ([]models.UpgradeOption, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.Err != nil {
		return nil, q.Err
	}
	var out []models.UpgradeOption
	for _, o := range q.Upgrades {
		if o.PlanID != planID {
			out = append(out, o)
		}
	}
	return out, nil
}

// Consume counts one emission against the tenant's plan.
func (q *Quota) Consume(tenantID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ps, ok := q.Plans[tenantID]; ok {
		ps.InvoicesUsed++
		q.Plans[tenantID] = ps
	}
}

// Invalidate satisfies the executor's cache invalidation hook. There is no cache in
// front of the in-process plan, so the emission is counted instead.
func (q *Quota) Invalidate(_ context.Context, tenantID string) error {
	q.Consume(tenantID)
	return nil
}

type Registry struct {
	mu    sync.RWMutex
	Items map[string]models.FiscalRegistration
}

var _ store.FiscalRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{Items: map[string]models.FiscalRegistration{}}
}

func (r *Registry) Registration(_ context.Context, tenantID string) (*models.FiscalRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.Items[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &reg, nil
}

// ==========================
// Turn log and pending plans
// ==========================

type TurnLog struct {
	mu    sync.RWMutex
	turns map[string][]models.Turn
}

var _ store.TurnLog = (*TurnLog)(nil)

func NewTurnLog() *TurnLog {
	return &TurnLog{turns: map[string][]models.Turn{}}
}

func (l *TurnLog) Append(_ context.Context, turn models.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	l.turns[turn.UserID] = append(l.turns[turn.UserID], turn)
	return nil
}

func (l *TurnLog) Recent(_ context.Context, userID string, n int) ([]models.Turn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.turns[userID]
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.Turn(nil), all...), nil
}

type Pending struct {
	mu    sync.Mutex
	plans map[string]*models.ActionPlan
}

var _ store.PendingActions = (*Pending)(nil)

func NewPending() *Pending {
	return &Pending{plans: map[string]*models.ActionPlan{}}
}

func (p *Pending) Put(_ context.Context, userID string, plan *models.ActionPlan) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[userID] = plan
	return nil
}

func (p *Pending) Take(_ context.Context, userID string) (*models.ActionPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(p.plans, userID)
	return plan, nil
}

func (p *Pending) Discard(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.plans, userID)
	return nil
}
