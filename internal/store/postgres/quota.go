// internal/store/postgres/quota.go
package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

// countedStatuses are the invoice statuses that consume the monthly quota.
const countedStatuses = `('authorized', 'pending', 'processing')`

type QuotaStore struct {
	db *sql.DB
}

var _ store.QuotaStatus = (*QuotaStore)(nil)

func NewQuotaStore(db *sql.DB) *QuotaStore {
	return &QuotaStore{db: db}
}

func (s *QuotaStore) Plan(ctx context.Context, tenantID string) (*models.PlanStatus, error) {
	query := `SELECT s.tenant_id, s.plan_id, p.name, s.status, p.monthly_invoices, p.unlimited, s.companies_used, p.max_companies,
			(SELECT count(*) FROM invoices i
			  WHERE i.tenant_id = s.tenant_id
			    AND i.issued_at >= date_trunc('month', now())
			    AND i.status IN ` + countedStatuses + `)
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.tenant_id = $1`

	var ps models.PlanStatus
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&ps.TenantID, &ps.PlanID, &ps.PlanName, &ps.Status,
		&ps.InvoicesAllowed, &ps.Unlimited, &ps.CompaniesUsed, &ps.CompaniesAllowed, &ps.InvoicesUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("plan status", err)
	}
	return &ps, nil
}

// UpgradeOptions lists the plans priced above planID, cheapest first.
func (s *QuotaStore) UpgradeOptions(ctx context.Context, planID string) ([]models.UpgradeOption, error) {
	query := `SELECT id, name, monthly_invoices, unlimited, monthly_price FROM plans
		WHERE monthly_price > (SELECT monthly_price FROM plans WHERE id = $1)
		ORDER BY monthly_price`
	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("upgrade options", err)
	}
	defer rows.Close()

	var out []models.UpgradeOption
	for rows.Next() {
		var o models.UpgradeOption
		if err := rows.Scan(&o.PlanID, &o.Name, &o.MonthlyInvoices, &o.Unlimited, &o.MonthlyPrice); err != nil {
			return nil, apperrors.NewDatabaseError("upgrade options", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("upgrade options", err)
	}
	return out, nil
}
