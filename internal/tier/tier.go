// Package tier classifies a principal's subscription into an effective tier
// and enforces the per-tier resource limits.
package tier

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tier is a subscription plan level.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPlus  Tier = "plus"
)

// Subscription status values, mirroring the well-known Stripe states.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Subscription is the stored billing state for one principal. Absent
// subscriptions (nil) are treated as free tier in SaaS mode; self-hosted
// deployments never consult subscriptions at all.
type Subscription struct {
	UserID           uuid.UUID
	Tier             Tier
	Status           Status
	TrialEndsAt      *time.Time
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// EffectiveTier derives the tier actually granted at asOf: an active paid
// subscription grants its tier, an unexpired trial grants basic, everything
// else (past due, canceled, expired trial, no subscription) degrades to free.
func EffectiveTier(sub *Subscription, asOf time.Time) Tier {
	if sub == nil {
		return TierFree
	}

	switch sub.Status {
	case StatusActive:
		if sub.Tier == TierBasic || sub.Tier == TierPlus {
			return sub.Tier
		}
	case StatusTrialing:
		if sub.TrialEndsAt != nil && sub.TrialEndsAt.After(asOf) {
			return TierBasic
		}
	}

	return TierFree
}

// Feature identifies a gated resource or capability.
type Feature string

const (
	FeatureBills           Feature = "bills"
	FeatureUsers           Feature = "users"
	FeatureBillGroups      Feature = "bill_groups"
	FeatureExport          Feature = "export"
	FeatureFullAnalytics   Feature = "full_analytics"
	FeaturePrioritySupport Feature = "priority_support"
)

// Unlimited marks a numeric limit with no cap.
const Unlimited = -1

// Limits holds one tier's resource caps and capability flags.
type Limits struct {
	Bills           int
	Users           int
	BillGroups      int
	Export          bool
	FullAnalytics   bool
	PrioritySupport bool
}

// Table maps tiers to their limits. Lookups for unknown tiers must fall back
// to the free limits so a corrupt tier value fails closed.
type Table map[Tier]Limits

// DefaultTable returns the production limit table.
func DefaultTable() Table {
	return Table{
		TierFree: {
			Bills:      10,
			Users:      1,
			BillGroups: 1,
		},
		TierBasic: {
			Bills:         Unlimited,
			Users:         2,
			BillGroups:    1,
			Export:        true,
			FullAnalytics: true,
		},
		TierPlus: {
			Bills:           Unlimited,
			Users:           5,
			BillGroups:      3,
			Export:          true,
			FullAnalytics:   true,
			PrioritySupport: true,
		},
	}
}

// Limits resolves a tier's limits, degrading unknown tiers to free.
func (t Table) Limits(tier Tier) Limits {
	if l, ok := t[tier]; ok {
		return l
	}

	return t[TierFree]
}

// QuotaError reports a refused mutation along with the usage snapshot the
// caller needs to render an upgrade prompt. It is a policy decision, not a
// data-integrity failure.
type QuotaError struct {
	Feature Feature
	Limit   int
	Used    int
}

func (e *QuotaError) Error() string {
	if e.Limit == 0 {
		return fmt.Sprintf("%s is not available on the current plan", e.Feature)
	}

	return fmt.Sprintf("%s limit reached: %d of %d used", e.Feature, e.Used, e.Limit)
}
