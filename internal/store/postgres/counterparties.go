// Package postgres implements the store contracts on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/normalize"
	"fiscal-assistant/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// foldSQL strips Portuguese diacritics server-side so it can be compared with normalize.Fold output.
const foldSQL = `translate(lower(%s), 'áàâãäéèêëíìîïóòôõöúùûüç', 'aaaaaeeeeiiiiooooouuuuc')`

const counterpartyColumns = `id, tenant_id, name, aliases, document, document_kind, email, municipality_code, created_at`

type CounterpartyStore struct {
	db  *sql.DB
	log logger.Logger
}

var _ store.CounterpartyDirectory = (*CounterpartyStore)(nil)

func NewCounterpartyStore(db *sql.DB, log logger.Logger) *CounterpartyStore {
	return &CounterpartyStore{db: db, log: log.WithFields(map[string]interface{}{"component": "counterparty-store"})}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCounterparty(row rowScanner) (*models.Counterparty, error) {
	var cp models.Counterparty
	var kind string
	err := row.Scan(&cp.ID, &cp.TenantID, &cp.Name, pq.Array(&cp.Aliases), &cp.Document, &kind,
		&cp.Email, &cp.MunicipalityCode, &cp.CreatedAt)
	if err != nil {
		return nil, err
	}
	cp.DocumentKind = models.DocumentKind(kind)
	return &cp, nil
}

func (s *CounterpartyStore) FindByDocument(ctx context.Context, tenantID, document string) (*models.Counterparty, error) {
	query := `SELECT ` + counterpartyColumns + ` FROM counterparties WHERE tenant_id = $1 AND document = $2`
	return s.queryOne(ctx, "find counterparty by document", query, tenantID, document)
}

func (s *CounterpartyStore) FindByID(ctx context.Context, tenantID, id string) (*models.Counterparty, error) {
	query := `SELECT ` + counterpartyColumns + ` FROM counterparties WHERE tenant_id = $1 AND id = $2`
	return s.queryOne(ctx, "find counterparty by id", query, tenantID, id)
}

func (s *CounterpartyStore) queryOne(ctx context.Context, op, query string, args ...interface{}) (*models.Counterparty, error) {
	cp, err := scanCounterparty(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return cp, nil
}

// Search matches the folded term anywhere in the name or any alias.
func (s *CounterpartyStore) Search(ctx context.Context, tenantID, name string, limit int) ([]models.Counterparty, error) {
	term := normalize.Fold(strings.ToLower(strings.TrimSpace(name)))
	if term == "" {
		return nil, nil
	}
	query := `SELECT ` + counterpartyColumns + ` FROM counterparties
		WHERE tenant_id = $1
		  AND (` + fmt.Sprintf(foldSQL, "name") + ` LIKE '%' || $2 || '%'
		   OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE ` + fmt.Sprintf(foldSQL, "a") + ` LIKE '%' || $2 || '%'))
		ORDER BY name
		LIMIT $3`
	return s.queryMany(ctx, "search counterparties", query, tenantID, term, limit)
}

func (s *CounterpartyStore) List(ctx context.Context, tenantID string, limit int) ([]models.Counterparty, error) {
	query := `SELECT ` + counterpartyColumns + ` FROM counterparties WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`
	return s.queryMany(ctx, "list counterparties", query, tenantID, limit)
}

func (s *CounterpartyStore) queryMany(ctx context.Context, op, query string, args ...interface{}) ([]models.Counterparty, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	defer rows.Close()

	var out []models.Counterparty
	for rows.Next() {
		cp, err := scanCounterparty(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError(op, err)
		}
		out = append(out, *cp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return out, nil
}

func (s *CounterpartyStore) Create(ctx context.Context, cp *models.Counterparty) error {
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Aliases == nil {
		cp.Aliases = []string{}
	}
	query := `INSERT INTO counterparties (id, tenant_id, name, aliases, document, document_kind, email, municipality_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	err := s.db.QueryRowContext(ctx, query, cp.ID, cp.TenantID, cp.Name, pq.Array(cp.Aliases), cp.Document,
		string(cp.DocumentKind), cp.Email, cp.MunicipalityCode).Scan(&cp.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", store.ErrDuplicateDocument, logger.MaskDocument(cp.Document))
		}
		return apperrors.NewDatabaseError("create counterparty", err)
	}

	s.log.Info("counterparty created", map[string]interface{}{
		"tenantId": cp.TenantID,
		"id":       cp.ID,
		"document": cp.Document,
	})
	return nil
}
