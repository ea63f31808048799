// internal/store/postgres/turns.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"

	"github.com/google/uuid"
)

type TurnStore struct {
	db *sql.DB
}

var _ store.TurnLog = (*TurnStore)(nil)

func NewTurnStore(db *sql.DB) *TurnStore {
	return &TurnStore{db: db}
}

func (s *TurnStore) Append(ctx context.Context, turn models.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO conversation_turns (id, user_id, tenant_id, role, text, action, plan_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query, turn.ID, turn.UserID, turn.TenantID, string(turn.Role), turn.Text,
		turn.Action, turn.PlanID, turn.CreatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("append turn", err)
	}
	return nil
}

// Recent reads the newest n turns and returns them oldest first.
func (s *TurnStore) Recent(ctx context.Context, userID string, n int) ([]models.Turn, error) {
	query := `SELECT id, user_id, tenant_id, role, text, action, plan_id, created_at
		FROM conversation_turns WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, userID, n)
	if err != nil {
		return nil, apperrors.NewDatabaseError("recent turns", err)
	}
	defer rows.Close()

	var out []models.Turn
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.UserID, &t.TenantID, &role, &t.Text, &t.Action, &t.PlanID, &t.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("recent turns", err)
		}
		t.Role = models.Role(role)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("recent turns", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
