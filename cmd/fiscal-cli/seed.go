package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"fiscal-assistant/internal/assistant/pipeline"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store/memory"
)

const demoTenant = "demo"

// seed is the --seed file format. Tenant ids in the file are replaced by --tenant.
type seed struct {
	Counterparties []models.Counterparty      `json:"counterparties"`
	Invoices       []models.Invoice           `json:"invoices"`
	Registration   *models.FiscalRegistration `json:"registration"`
	Plan           *models.PlanStatus         `json:"plan"`
	Upgrades       []models.UpgradeOption     `json:"upgrades"`
}

func readSeed(path string) (*seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var s seed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &s, nil
}

func demoSeed() *seed {
	now := time.Now().UTC()
	expires := now.AddDate(0, 8, 0)
	return &seed{
		Counterparties: []models.Counterparty{
			{ID: "cp-1", Name: "João Silva", Document: "52998224725", DocumentKind: models.DocumentCPF, Email: "joao@example.com"},
			{ID: "cp-2", Name: "Empresa ABC Ltda", Aliases: []string{"ABC"}, Document: "11222333000181", DocumentKind: models.DocumentCNPJ},
			{ID: "cp-3", Name: "Maria Souza", Document: "12345678909", DocumentKind: models.DocumentCPF},
			{ID: "cp-4", Name: "Maria Oliveira", Document: "12345678000195", DocumentKind: models.DocumentCNPJ},
		},
		Invoices: []models.Invoice{
			{ID: "inv-1", Number: "101", Status: models.InvoiceAuthorized, CounterpartyID: "cp-2", CounterpartyName: "Empresa ABC Ltda",
				Amount: 2000, MunicipalityCode: "3550308", IssuedAt: now.AddDate(0, 0, -20)},
			{ID: "inv-2", Number: "102", Status: models.InvoiceRejected, CounterpartyID: "cp-1", CounterpartyName: "João Silva",
				Amount: 350, MunicipalityCode: "3550308", RejectionReason: "Código de serviço inválido", IssuedAt: now.AddDate(0, 0, -3)},
			{ID: "inv-3", Number: "103", Status: models.InvoiceAuthorized, CounterpartyID: "cp-1", CounterpartyName: "João Silva",
				Amount: 1500, MunicipalityCode: "3550308", IssuedAt: now.Add(-5 * time.Hour)},
		},
		Registration: &models.FiscalRegistration{
			ExternalID: "demo-company", MunicipalityCode: "3550308", Connection: models.ConnectionHealthy,
			ConnectionCheckedAt: now, CertificatePresent: true, CertificateExpiresAt: &expires,
			TaxRegime: models.RegimeSimplesNacional, YearToDateRevenue: 38500,
		},
		Plan: &models.PlanStatus{PlanID: "basic", PlanName: "Básico", Status: "active", InvoicesUsed: 12, InvoicesAllowed: 50},
		Upgrades: []models.UpgradeOption{
			{PlanID: "basic", Name: "Básico", MonthlyInvoices: 50, MonthlyPrice: 49.9},
			{PlanID: "pro", Name: "Pro", MonthlyInvoices: 200, MonthlyPrice: 99.9},
			{PlanID: "unlimited", Name: "Ilimitado", Unlimited: true, MonthlyPrice: 199.9},
		},
	}
}

// stores loads the seed into fresh memory stores owned by tenant.
func (s *seed) stores(tenant string) pipeline.Stores {
	cps := make([]models.Counterparty, len(s.Counterparties))
	for i, cp := range s.Counterparties {
		cp.TenantID = tenant
		cps[i] = cp
	}
	invs := make([]models.Invoice, len(s.Invoices))
	for i, inv := range s.Invoices {
		inv.TenantID = tenant
		invs[i] = inv
	}

	invoices := memory.NewInvoices(invs...)
	registry := memory.NewRegistry()
	if s.Registration != nil {
		reg := *s.Registration
		reg.TenantID = tenant
		registry.Items[tenant] = reg
	}
	quota := memory.NewQuota()
	quota.Upgrades = s.Upgrades
	if s.Plan != nil {
		plan := *s.Plan
		plan.TenantID = tenant
		quota.Plans[tenant] = plan
	}

	return pipeline.Stores{
		Counterparties:   memory.NewCounterparties(cps...),
		Invoices:         invoices,
		Quota:            quota,
		Registry:         registry,
		Turns:            memory.NewTurnLog(),
		Pending:          memory.NewPending(),
		Sink:             memory.NewSink(invoices),
		QuotaInvalidator: quota,
	}
}
