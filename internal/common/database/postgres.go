// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fiscal-assistant/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// schema creates the tables the stores read and write. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS counterparties (
		id                TEXT PRIMARY KEY,
		tenant_id         TEXT NOT NULL,
		name              TEXT NOT NULL,
		aliases           TEXT[] NOT NULL DEFAULT '{}',
		document          TEXT NOT NULL,
		document_kind     TEXT NOT NULL,
		email             TEXT NOT NULL DEFAULT '',
		municipality_code TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant_id, document)
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id                TEXT PRIMARY KEY,
		tenant_id         TEXT NOT NULL,
		number            TEXT NOT NULL,
		verification_code TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		counterparty_id   TEXT NOT NULL,
		counterparty_name TEXT NOT NULL,
		amount            NUMERIC(14,2) NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		municipality_code TEXT NOT NULL DEFAULT '',
		rejection_reason  TEXT NOT NULL DEFAULT '',
		issued_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS invoices_tenant_issued_idx ON invoices (tenant_id, issued_at DESC)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		tenant_id         TEXT PRIMARY KEY,
		plan_id           TEXT NOT NULL,
		status            TEXT NOT NULL,
		companies_used    INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		monthly_invoices  INT NOT NULL,
		unlimited         BOOLEAN NOT NULL DEFAULT false,
		max_companies     INT NOT NULL DEFAULT 1,
		monthly_price     NUMERIC(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fiscal_registrations (
		tenant_id              TEXT PRIMARY KEY,
		external_id            TEXT NOT NULL DEFAULT '',
		municipality_code      TEXT NOT NULL DEFAULT '',
		connection             TEXT NOT NULL DEFAULT 'not_connected',
		connection_checked_at  TIMESTAMPTZ,
		certificate_present    BOOLEAN NOT NULL DEFAULT false,
		certificate_expires_at TIMESTAMPTZ,
		tax_regime             TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_turns (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		tenant_id  TEXT NOT NULL,
		role       TEXT NOT NULL,
		text       TEXT NOT NULL,
		action     TEXT NOT NULL DEFAULT '',
		plan_id    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_turns_user_idx ON conversation_turns (user_id, created_at DESC)`,
}

// Migrate applies the schema inside one transaction.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}
