package tier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageRepository supplies the live counts the gate compares against the
// limit table.
type UsageRepository interface {
	// GetSubscription returns the principal's subscription, or nil when none
	// exists.
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// CountActiveBills counts non-archived bills across tenants accessible to
	// the principal.
	CountActiveBills(ctx context.Context, userID uuid.UUID) (int, error)

	// CountTenants counts tenants accessible to the principal.
	CountTenants(ctx context.Context, userID uuid.UUID) (int, error)

	// CountMembers counts distinct principals with access to tenants owned by
	// the principal.
	CountMembers(ctx context.Context, userID uuid.UUID) (int, error)
}

// CheckResult is the outcome of a single limit check. Limit and Remaining are
// Unlimited for uncapped numeric features and zero for capability flags.
type CheckResult struct {
	Allowed   bool `json:"allowed"`
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}

// Gate decides whether a mutation fits the principal's plan. Self-hosted
// deployments bypass every check and report unlimited usage.
//
// Numeric checks are read-then-compare with no lock: two concurrent creates
// can both observe 9-of-10 and both pass, overshooting the quota by one.
// The quota is advisory, so this race is tolerated rather than serialized.
type Gate struct {
	selfHosted bool
	table      Table
	repo       UsageRepository
	now        func() time.Time
}

// NewGate builds a gate for the given deployment mode and limit table.
func NewGate(selfHosted bool, table Table, repo UsageRepository) *Gate {
	return &Gate{
		selfHosted: selfHosted,
		table:      table,
		repo:       repo,
		now:        time.Now,
	}
}

// CheckLimit reports whether the principal may use one more unit of feature.
// It must be consulted before the mutation commits; it performs no writes.
func (g *Gate) CheckLimit(ctx context.Context, userID uuid.UUID, feature Feature) (CheckResult, error) {
	if g.selfHosted {
		return CheckResult{Allowed: true, Limit: Unlimited, Remaining: Unlimited}, nil
	}

	sub, err := g.repo.GetSubscription(ctx, userID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("loading subscription: %w", err)
	}

	limits := g.table.Limits(EffectiveTier(sub, g.now()))

	switch feature {
	case FeatureExport:
		return flagResult(limits.Export), nil
	case FeatureFullAnalytics:
		return flagResult(limits.FullAnalytics), nil
	case FeaturePrioritySupport:
		return flagResult(limits.PrioritySupport), nil
	}

	limit, used, err := g.usage(ctx, userID, feature, limits)
	if err != nil {
		return CheckResult{}, err
	}

	return countResult(limit, used), nil
}

// Require is CheckLimit with the refusal folded into a *QuotaError.
func (g *Gate) Require(ctx context.Context, userID uuid.UUID, feature Feature) error {
	res, err := g.CheckLimit(ctx, userID, feature)
	if err != nil {
		return err
	}

	if !res.Allowed {
		return &QuotaError{Feature: feature, Limit: res.Limit, Used: res.Used}
	}

	return nil
}

// Report describes the principal's plan and per-feature usage for the usage
// endpoint.
type Report struct {
	Tier       Tier                    `json:"tier"`
	SelfHosted bool                    `json:"self_hosted"`
	Features   map[Feature]CheckResult `json:"features"`
}

// Usage assembles the full usage report for a principal.
func (g *Gate) Usage(ctx context.Context, userID uuid.UUID) (*Report, error) {
	if g.selfHosted {
		unlimited := CheckResult{Allowed: true, Limit: Unlimited, Remaining: Unlimited}

		return &Report{
			Tier:       TierPlus,
			SelfHosted: true,
			Features: map[Feature]CheckResult{
				FeatureBills:           unlimited,
				FeatureUsers:           unlimited,
				FeatureBillGroups:      unlimited,
				FeatureExport:          {Allowed: true},
				FeatureFullAnalytics:   {Allowed: true},
				FeaturePrioritySupport: {Allowed: true},
			},
		}, nil
	}

	sub, err := g.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading subscription: %w", err)
	}

	effective := EffectiveTier(sub, g.now())
	limits := g.table.Limits(effective)

	report := &Report{
		Tier: effective,
		Features: map[Feature]CheckResult{
			FeatureExport:          flagResult(limits.Export),
			FeatureFullAnalytics:   flagResult(limits.FullAnalytics),
			FeaturePrioritySupport: flagResult(limits.PrioritySupport),
		},
	}

	for _, feature := range []Feature{FeatureBills, FeatureUsers, FeatureBillGroups} {
		limit, used, err := g.usage(ctx, userID, feature, limits)
		if err != nil {
			return nil, err
		}

		report.Features[feature] = countResult(limit, used)
	}

	return report, nil
}

func (g *Gate) usage(ctx context.Context, userID uuid.UUID, feature Feature, limits Limits) (limit, used int, err error) {
	switch feature {
	case FeatureBills:
		used, err = g.repo.CountActiveBills(ctx, userID)
		limit = limits.Bills
	case FeatureUsers:
		used, err = g.repo.CountMembers(ctx, userID)
		limit = limits.Users
	case FeatureBillGroups:
		used, err = g.repo.CountTenants(ctx, userID)
		limit = limits.BillGroups
	default:
		return 0, 0, fmt.Errorf("unknown feature %q", feature)
	}

	if err != nil {
		return 0, 0, fmt.Errorf("counting %s usage: %w", feature, err)
	}

	return limit, used, nil
}

func flagResult(allowed bool) CheckResult {
	return CheckResult{Allowed: allowed}
}

func countResult(limit, used int) CheckResult {
	if limit == Unlimited {
		return CheckResult{Allowed: true, Limit: Unlimited, Used: used, Remaining: Unlimited}
	}

	return CheckResult{
		Allowed:   used < limit,
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
	}
}
