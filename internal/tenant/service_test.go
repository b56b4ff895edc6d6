package tenant_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/duetrack/duetrack/internal/tenant"
	"github.com/duetrack/duetrack/internal/tier"
)

// usageRepo backs the gate with fixed counts.
type usageRepo struct {
	tenants int
}

func (u *usageRepo) GetSubscription(context.Context, uuid.UUID) (*tier.Subscription, error) {
	return nil, nil
}

func (u *usageRepo) CountActiveBills(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (u *usageRepo) CountTenants(context.Context, uuid.UUID) (int, error) {
	return u.tenants, nil
}

func (u *usageRepo) CountMembers(context.Context, uuid.UUID) (int, error) { return 1, nil }

func saasGate(tenants int) *tier.Gate {
	return tier.NewGate(false, tier.DefaultTable(), &usageRepo{tenants: tenants})
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().
			CreateTenant(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, tn *tenant.Tenant) error {
				tn.ID = uuid.New()
				return nil
			})

		svc := tenant.NewService(repo, saasGate(0), false)

		got, err := svc.Create(ctx, tenant.CreateParams{
			Name:    "household",
			OwnerID: &ownerID,
		})
		require.NoError(t, err)
		assert.Equal(t, "household", got.Name)
		assert.Equal(t, "household", got.DisplayName, "display name defaults to the slug")
	})

	t.Run("QuotaExceededOnFreeTier", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// Free tier allows one bill group; owner already has it.
		repo := tenant.NewMockRepository(ctrl)
		svc := tenant.NewService(repo, saasGate(1), false)

		_, err := svc.Create(ctx, tenant.CreateParams{Name: "second", OwnerID: &ownerID})

		var quotaErr *tier.QuotaError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, tier.FeatureBillGroups, quotaErr.Feature)
	})

	t.Run("InvalidNameRejectedBeforeQuota", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		svc := tenant.NewService(repo, saasGate(0), false)

		_, err := svc.Create(ctx, tenant.CreateParams{Name: "a b c", OwnerID: &ownerID})
		assert.ErrorIs(t, err, tenant.ErrInvalid)
	})

	t.Run("SelfHostedSkipsGateWithoutOwner", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().
			CreateTenant(gomock.Any(), gomock.Any()).
			Return(nil)

		svc := tenant.NewService(repo, saasGate(99), true)

		_, err := svc.Create(ctx, tenant.CreateParams{Name: "home"})
		require.NoError(t, err)
	})
}

func TestService_ResolveCurrent(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	stored := &tenant.Tenant{ID: uuid.New(), Name: "household"}

	t.Run("MemberResolves", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().GetTenantByName(gomock.Any(), "household").Return(stored, nil)
		repo.EXPECT().HasAccess(gomock.Any(), userID, stored.ID).Return(true, nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		got, err := svc.ResolveCurrent(ctx, userID, "household")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
	})

	t.Run("NonMemberIsDenied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().GetTenantByName(gomock.Any(), "household").Return(stored, nil)
		repo.EXPECT().HasAccess(gomock.Any(), userID, stored.ID).Return(false, nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		_, err := svc.ResolveCurrent(ctx, userID, "household")
		assert.ErrorIs(t, err, tenant.ErrAccessDenied)
	})

	t.Run("MissingTenant", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().GetTenantByName(gomock.Any(), "nope").Return(nil, tenant.ErrNotFound)

		svc := tenant.NewService(repo, saasGate(0), false)

		_, err := svc.ResolveCurrent(ctx, userID, "nope")
		assert.ErrorIs(t, err, tenant.ErrNotFound)
	})
}

func TestService_Revoke(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	memberID := uuid.New()
	tenantID := uuid.New()

	owned := &tenant.Tenant{ID: tenantID, Name: "household", OwnerID: &ownerID}

	t.Run("OwnerCannotBeRevoked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), memberID, tenantID).Return(true, nil)
		repo.EXPECT().GetTenant(gomock.Any(), tenantID).Return(owned, nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		err := svc.Revoke(ctx, memberID, ownerID, tenantID)
		assert.ErrorIs(t, err, tenant.ErrCannotRevokeOwner)
	})

	t.Run("CannotRevokeOwnLastAccess", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), memberID, tenantID).Return(true, nil)
		repo.EXPECT().GetTenant(gomock.Any(), tenantID).Return(owned, nil)
		repo.EXPECT().CountAccessible(gomock.Any(), memberID).Return(1, nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		err := svc.Revoke(ctx, memberID, memberID, tenantID)
		assert.ErrorIs(t, err, tenant.ErrCannotRevokeLastAccess)
	})

	t.Run("MemberRevokesAnother", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		other := uuid.New()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), memberID, tenantID).Return(true, nil)
		repo.EXPECT().GetTenant(gomock.Any(), tenantID).Return(owned, nil)
		repo.EXPECT().Revoke(gomock.Any(), other, tenantID).Return(nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		require.NoError(t, svc.Revoke(ctx, memberID, other, tenantID))
	})

	t.Run("NonMemberCannotRevoke", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), memberID, tenantID).Return(false, nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		err := svc.Revoke(ctx, memberID, uuid.New(), tenantID)
		assert.ErrorIs(t, err, tenant.ErrAccessDenied)
	})

	t.Run("SelfHostedSkipsOwnerChecks", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), memberID, tenantID).Return(true, nil)
		repo.EXPECT().Revoke(gomock.Any(), ownerID, tenantID).Return(nil)

		svc := tenant.NewService(repo, saasGate(0), true)

		require.NoError(t, svc.Revoke(ctx, memberID, ownerID, tenantID))
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	memberID := uuid.New()
	tenantID := uuid.New()

	owned := &tenant.Tenant{ID: tenantID, Name: "household", OwnerID: &ownerID}

	t.Run("OwnerDeletes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), ownerID, tenantID).Return(true, nil)
		repo.EXPECT().GetTenant(gomock.Any(), tenantID).Return(owned, nil)
		repo.EXPECT().DeleteTenant(gomock.Any(), tenantID).Return(nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		require.NoError(t, svc.Delete(ctx, ownerID, tenantID))
	})

	t.Run("NonOwnerDeniedInSaaS", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := tenant.NewMockRepository(ctrl)
		repo.EXPECT().HasAccess(gomock.Any(), memberID, tenantID).Return(true, nil)
		repo.EXPECT().GetTenant(gomock.Any(), tenantID).Return(owned, nil)

		svc := tenant.NewService(repo, saasGate(0), false)

		err := svc.Delete(ctx, memberID, tenantID)
		assert.ErrorIs(t, err, tenant.ErrAccessDenied)
	})
}
