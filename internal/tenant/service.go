package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/tier"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=tenant
type Repository interface {
	// CreateTenant persists the tenant and, when OwnerID is set, the owner's
	// membership, in one transaction.
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetTenantByName(ctx context.Context, name string) (*Tenant, error)

	// DeleteTenant removes the tenant and everything under it in one
	// transaction, in dependency order: settlements, bills, memberships,
	// then the tenant row.
	DeleteTenant(ctx context.Context, id uuid.UUID) error

	ListAccessible(ctx context.Context, userID uuid.UUID) ([]*Tenant, error)
	CountAccessible(ctx context.Context, userID uuid.UUID) (int, error)
	HasAccess(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
	Grant(ctx context.Context, userID, tenantID uuid.UUID) error
	Revoke(ctx context.Context, userID, tenantID uuid.UUID) error
}

// Service implements bill group provisioning and access control.
type Service struct {
	repo       Repository
	gate       *tier.Gate
	selfHosted bool
}

func NewService(repo Repository, gate *tier.Gate, selfHosted bool) *Service {
	return &Service{repo: repo, gate: gate, selfHosted: selfHosted}
}

type CreateParams struct {
	Name        string
	DisplayName string
	Description string
	OwnerID     *uuid.UUID
}

// Create provisions a new bill group after checking the owner's bill group
// quota. The owner is granted access as part of the same transaction.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Tenant, error) {
	name := strings.TrimSpace(params.Name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	if params.OwnerID != nil {
		if err := s.gate.Require(ctx, *params.OwnerID, tier.FeatureBillGroups); err != nil {
			return nil, err
		}
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		displayName = name
	}

	t := &Tenant{
		Name:        name,
		DisplayName: displayName,
		Description: strings.TrimSpace(params.Description),
		OwnerID:     params.OwnerID,
	}
	if err := s.repo.CreateTenant(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

// List returns every bill group the principal can access.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Tenant, error) {
	return s.repo.ListAccessible(ctx, userID)
}

// HasAccess reports whether the principal is a member of the tenant.
func (s *Service) HasAccess(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	return s.repo.HasAccess(ctx, userID, tenantID)
}

// ResolveCurrent maps a requested bill group slug to a tenant the principal
// may act on. Missing membership is access denied, not merely not found.
func (s *Service) ResolveCurrent(ctx context.Context, userID uuid.UUID, name string) (*Tenant, error) {
	t, err := s.repo.GetTenantByName(ctx, name)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.HasAccess(ctx, userID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("checking access: %w", err)
	}

	if !ok {
		return nil, ErrAccessDenied
	}

	return t, nil
}

// Grant gives a principal access to a tenant. Idempotent. Only existing
// members may grant access.
func (s *Service) Grant(ctx context.Context, callerID, userID, tenantID uuid.UUID) error {
	if err := s.requireMember(ctx, callerID, tenantID); err != nil {
		return err
	}

	return s.repo.Grant(ctx, userID, tenantID)
}

// Revoke removes a principal's access to a tenant. Idempotent. In SaaS mode
// the owner's access to their own group, and the caller's last remaining
// access, cannot be revoked.
func (s *Service) Revoke(ctx context.Context, callerID, userID, tenantID uuid.UUID) error {
	if err := s.requireMember(ctx, callerID, tenantID); err != nil {
		return err
	}

	if s.selfHosted {
		return s.repo.Revoke(ctx, userID, tenantID)
	}

	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	if t.OwnerID != nil && *t.OwnerID == userID {
		return ErrCannotRevokeOwner
	}

	if userID == callerID {
		n, err := s.repo.CountAccessible(ctx, userID)
		if err != nil {
			return fmt.Errorf("counting accessible bill groups: %w", err)
		}

		if n <= 1 {
			return ErrCannotRevokeLastAccess
		}
	}

	return s.repo.Revoke(ctx, userID, tenantID)
}

// Delete permanently removes a bill group and all of its bills and
// settlements. In SaaS mode only the owner may delete.
func (s *Service) Delete(ctx context.Context, callerID, tenantID uuid.UUID) error {
	if err := s.requireMember(ctx, callerID, tenantID); err != nil {
		return err
	}

	if !s.selfHosted {
		t, err := s.repo.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}

		if t.OwnerID == nil || *t.OwnerID != callerID {
			return ErrAccessDenied
		}
	}

	return s.repo.DeleteTenant(ctx, tenantID)
}

func (s *Service) requireMember(ctx context.Context, userID, tenantID uuid.UUID) error {
	ok, err := s.repo.HasAccess(ctx, userID, tenantID)
	if err != nil {
		return fmt.Errorf("checking access: %w", err)
	}

	if !ok {
		return ErrAccessDenied
	}

	return nil
}
