package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/tier"
)

// Store backs the tier gate with live usage counts and the subscription
// record. Counts are plain reads; the gate tolerates the resulting soft
// quota race by design.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetSubscription(ctx context.Context, userID uuid.UUID) (*tier.Subscription, error) {
	query := `
		SELECT user_id, tier, status, trial_ends_at, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	var sub tier.Subscription

	var tierStr, statusStr string

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&sub.UserID, &tierStr, &statusStr,
		&sub.TrialEndsAt, &sub.CurrentPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("getting subscription: %w", err)
	}

	sub.Tier = tier.Tier(tierStr)
	sub.Status = tier.Status(statusStr)

	return &sub, nil
}

// UpsertSubscription stores the billing state pushed in from the payment
// collaborator (or seeded for tests and provisioning).
func (s *Store) UpsertSubscription(ctx context.Context, sub *tier.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, status, trial_ends_at, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			trial_ends_at = EXCLUDED.trial_ends_at,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		sub.UserID, sub.Tier, sub.Status, sub.TrialEndsAt, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}

	return nil
}

func (s *Store) CountActiveBills(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bills b
		WHERE b.archived = FALSE
		  AND b.tenant_id IN (SELECT tenant_id FROM tenant_access WHERE user_id = $1)
	`

	var n int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting active bills: %w", err)
	}

	return n, nil
}

func (s *Store) CountTenants(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenant_access WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}

	return n, nil
}

func (s *Store) CountMembers(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(DISTINCT ta.user_id)
		FROM tenant_access ta
		JOIN tenants t ON ta.tenant_id = t.id
		WHERE t.owner_id = $1
	`

	var n int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}

	return n, nil
}
