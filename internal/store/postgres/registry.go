// internal/store/postgres/registry.go
package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

type RegistryStore struct {
	db *sql.DB
}

var _ store.FiscalRegistry = (*RegistryStore)(nil)

func NewRegistryStore(db *sql.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

// Registration loads the tenant's authority state; YearToDateRevenue sums authorized invoices of the current year.
func (s *RegistryStore) Registration(ctx context.Context, tenantID string) (*models.FiscalRegistration, error) {
	query := `SELECT r.tenant_id, r.external_id, r.municipality_code, r.connection, r.connection_checked_at,
			r.certificate_present, r.certificate_expires_at, r.tax_regime,
			COALESCE((SELECT sum(i.amount) FROM invoices i
			  WHERE i.tenant_id = r.tenant_id
			    AND i.status = 'authorized'
			    AND i.issued_at >= date_trunc('year', now())), 0)
		FROM fiscal_registrations r
		WHERE r.tenant_id = $1`

	var reg models.FiscalRegistration
	var connection string
	var checkedAt, expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&reg.TenantID, &reg.ExternalID, &reg.MunicipalityCode,
		&connection, &checkedAt, &reg.CertificatePresent, &expiresAt, &reg.TaxRegime, &reg.YearToDateRevenue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("fiscal registration", err)
	}

	reg.Connection = models.ConnectionHealth(connection)
	if checkedAt.Valid {
		reg.ConnectionCheckedAt = checkedAt.Time
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		reg.CertificateExpiresAt = &t
	}
	return &reg, nil
}
