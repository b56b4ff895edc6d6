package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/tenant"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectTenantColumns = `id, name, display_name, description, owner_id, created_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(s scanner) (*tenant.Tenant, error) {
	var t tenant.Tenant

	var description sql.NullString

	if err := s.Scan(&t.ID, &t.Name, &t.DisplayName, &description, &t.OwnerID, &t.CreatedAt); err != nil {
		return nil, err
	}

	t.Description = description.String

	return &t, nil
}

func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tenants (name, display_name, description, owner_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	err = tx.QueryRowContext(ctx, query,
		t.Name,
		t.DisplayName,
		t.Description,
		t.OwnerID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating tenant: %w", err)
	}

	if t.OwnerID != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tenant_access (user_id, tenant_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, *t.OwnerID, t.ID)
		if err != nil {
			return fmt.Errorf("granting owner access: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	query := `SELECT ` + selectTenantColumns + ` FROM tenants WHERE id = $1`

	t, err := scanTenant(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrNotFound
		}

		return nil, fmt.Errorf("getting tenant: %w", err)
	}

	return t, nil
}

func (s *Store) GetTenantByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	query := `SELECT ` + selectTenantColumns + ` FROM tenants WHERE name = $1`

	t, err := scanTenant(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrNotFound
		}

		return nil, fmt.Errorf("getting tenant by name: %w", err)
	}

	return t, nil
}

// DeleteTenant removes the tenant and its dependents in one transaction.
// There is no ON DELETE CASCADE in the schema; the order here is the cascade.
func (s *Store) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM settlements WHERE bill_id IN (SELECT id FROM bills WHERE tenant_id = $1)`,
		`DELETE FROM bills WHERE tenant_id = $1`,
		`DELETE FROM tenant_access WHERE tenant_id = $1`,
		`DELETE FROM tenants WHERE id = $1`,
	}

	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("deleting tenant: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListAccessible(ctx context.Context, userID uuid.UUID) ([]*tenant.Tenant, error) {
	query := `SELECT ` + selectTenantColumns + `
		FROM tenants
		WHERE id IN (SELECT tenant_id FROM tenant_access WHERE user_id = $1)
		ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant

	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}

		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

func (s *Store) CountAccessible(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenant_access WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting accessible tenants: %w", err)
	}

	return n, nil
}

func (s *Store) HasAccess(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	var ok bool

	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tenant_access WHERE user_id = $1 AND tenant_id = $2
		)
	`, userID, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking access: %w", err)
	}

	return ok, nil
}

func (s *Store) Grant(ctx context.Context, userID, tenantID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_access (user_id, tenant_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("granting access: %w", err)
	}

	return nil
}

func (s *Store) Revoke(ctx context.Context, userID, tenantID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tenant_access WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("revoking access: %w", err)
	}

	return nil
}
