// internal/store/postgres/invoices.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/normalize"
	"fiscal-assistant/internal/store"
)

const invoiceColumns = `id, tenant_id, number, verification_code, status, counterparty_id, counterparty_name,
	amount, description, municipality_code, rejection_reason, issued_at`

const defaultInvoiceLimit = 20

type InvoiceStore struct {
	db *sql.DB
}

var _ store.InvoiceHistory = (*InvoiceStore)(nil)

func NewInvoiceStore(db *sql.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.VerificationCode, &status, &inv.CounterpartyID,
		&inv.CounterpartyName, &inv.Amount, &inv.Description, &inv.MunicipalityCode, &inv.RejectionReason, &inv.IssuedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = models.InvoiceStatus(status)
	return &inv, nil
}

// List applies every non-zero filter field, newest first.
func (s *InvoiceStore) List(ctx context.Context, tenantID string, filter models.InvoiceFilter) ([]models.Invoice, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.CounterpartyID != "" {
		add("counterparty_id = $%d", filter.CounterpartyID)
	}
	if filter.CounterpartyName != "" {
		add(fmt.Sprintf(foldSQL, "counterparty_name")+" LIKE '%%' || $%d || '%%'", normalize.Fold(strings.ToLower(filter.CounterpartyName)))
	}
	if !filter.From.IsZero() {
		add("issued_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("issued_at < $%d", filter.To)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultInvoiceLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY issued_at DESC LIMIT $%d`,
		invoiceColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list invoices", err)
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list invoices", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list invoices", err)
	}
	return out, nil
}

func (s *InvoiceStore) Last(ctx context.Context, tenantID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 ORDER BY issued_at DESC LIMIT 1`
	return s.queryOne(ctx, "last invoice", query, tenantID)
}

func (s *InvoiceStore) ByNumber(ctx context.Context, tenantID, number string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND number = $2`
	return s.queryOne(ctx, "invoice by number", query, tenantID, number)
}

func (s *InvoiceStore) queryOne(ctx context.Context, op, query string, args ...interface{}) (*models.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return inv, nil
}

// Summary counts invoices by status in [from, to); TotalAmount sums authorized ones.
func (s *InvoiceStore) Summary(ctx context.Context, tenantID string, from, to time.Time) (*models.InvoiceSummary, error) {
	query := `SELECT status, count(*), COALESCE(sum(amount), 0) FROM invoices
		WHERE tenant_id = $1 AND issued_at >= $2 AND issued_at < $3
		GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError("invoice summary", err)
	}
	defer rows.Close()

	sum := &models.InvoiceSummary{From: from, To: to, ByStatus: map[models.InvoiceStatus]int{}}
	for rows.Next() {
		var status string
		var count int
		var amount float64
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, apperrors.NewDatabaseError("invoice summary", err)
		}
		sum.ByStatus[models.InvoiceStatus(status)] = count
		sum.Total += count
		if models.InvoiceStatus(status) == models.InvoiceAuthorized {
			sum.TotalAmount = amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("invoice summary", err)
	}
	return sum, nil
}

// Record upserts the invoice as reported by the fiscal platform.
func (s *InvoiceStore) Record(ctx context.Context, inv *models.Invoice) error {
	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			verification_code = EXCLUDED.verification_code,
			rejection_reason = EXCLUDED.rejection_reason`
	_, err := s.db.ExecContext(ctx, query, inv.ID, inv.TenantID, inv.Number, inv.VerificationCode, string(inv.Status),
		inv.CounterpartyID, inv.CounterpartyName, inv.Amount, inv.Description, inv.MunicipalityCode,
		inv.RejectionReason, inv.IssuedAt)
	if err != nil {
		return apperrors.NewDatabaseError("record invoice", err)
	}
	return nil
}
