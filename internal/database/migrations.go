package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are ordered, idempotent DDL statements applied at startup.
// Cascades are deliberate no-ops here: dependent rows are deleted explicitly,
// in order, by the stores.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		description TEXT,
		owner_id UUID REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_access (
		user_id UUID NOT NULL REFERENCES users(id),
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		PRIMARY KEY (user_id, tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bills (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		name TEXT NOT NULL,
		amount BIGINT,
		is_variable BOOLEAN NOT NULL DEFAULT FALSE,
		frequency_kind TEXT NOT NULL,
		schedule_mode TEXT NOT NULL DEFAULT 'simple',
		schedule_config TEXT NOT NULL DEFAULT '{}',
		due_date DATE NOT NULL,
		auto_pay BOOLEAN NOT NULL DEFAULT FALSE,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		kind TEXT NOT NULL DEFAULT 'expense',
		account TEXT,
		category TEXT,
		notes TEXT,
		icon TEXT DEFAULT 'payment',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_tenant_due ON bills (tenant_id, due_date)`,
	`CREATE TABLE IF NOT EXISTS settlements (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		bill_id UUID NOT NULL REFERENCES bills(id),
		amount BIGINT NOT NULL,
		settled_on DATE NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_settlements_bill ON settlements (bill_id, settled_on)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id UUID PRIMARY KEY REFERENCES users(id),
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		trial_ends_at TIMESTAMPTZ,
		current_period_end TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
}

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}
