// Package ledger implements the token-credit subscription ledger: per-subscriber
// balances with tier-dependent caps, one-time trial grants, renewals, payment-gated
// upgrades, and bounded usage/transaction history.
package ledger

import "captionflow/internal/types"

// TierSpec defines the authoritative parameters for a subscription tier.
type TierSpec struct {
	// TokenCap is the maximum token balance permitted on this tier.
	TokenCap int
	// MonthlyPriceCents is the renewal/upgrade charge for this tier.
	MonthlyPriceCents int64
}

// PlanRegistry is the single source of truth for what each tier allows.
type PlanRegistry interface {
	// GetSpec returns the tier parameters. Unknown tiers return the Basic
	// spec to fail safely toward the most restrictive cap.
	GetSpec(tier types.Tier) TierSpec
}

// tierDefaults defines the hardcoded tier parameters.
//
//	| Tier    | Token Cap | Monthly Price |
//	|---------|-----------|---------------|
//	| Basic   | 200       | $9.99         |
//	| Premium | 1000      | $29.99        |
var tierDefaults = map[types.Tier]TierSpec{
	types.TierBasic: {
		TokenCap:          200,
		MonthlyPriceCents: 999,
	},
	types.TierPremium: {
		TokenCap:          1000,
		MonthlyPriceCents: 2999,
	},
}

// basicSpec is cached to avoid map lookups on the fallback path.
var basicSpec = tierDefaults[types.TierBasic]

// staticPlanRegistry is a compile-time plan registry backed by an in-memory map.
type staticPlanRegistry struct {
	specs map[types.Tier]TierSpec
}

// NewStaticPlanRegistry returns a PlanRegistry backed by the hardcoded tier
// parameters. This is the standard production implementation; no database or
// external service is required.
func NewStaticPlanRegistry() PlanRegistry {
	// Copy the defaults so callers cannot mutate the package-level variable.
	m := make(map[types.Tier]TierSpec, len(tierDefaults))
	for k, v := range tierDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{specs: m}
}

// GetSpec returns the parameters for the given tier, or the Basic spec for
// unknown tiers.
func (r *staticPlanRegistry) GetSpec(tier types.Tier) TierSpec {
	if spec, ok := r.specs[tier]; ok {
		return spec
	}
	return basicSpec
}
