package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"captionflow/internal/types"
)

func TestPlanRegistry_TierSpecs(t *testing.T) {
	registry := NewStaticPlanRegistry()

	basic := registry.GetSpec(types.TierBasic)
	assert.Equal(t, 200, basic.TokenCap)
	assert.Equal(t, int64(999), basic.MonthlyPriceCents)

	premium := registry.GetSpec(types.TierPremium)
	assert.Equal(t, 1000, premium.TokenCap)
	assert.Equal(t, int64(2999), premium.MonthlyPriceCents)
}

func TestPlanRegistry_UnknownTierFallsBackToBasic(t *testing.T) {
	registry := NewStaticPlanRegistry()

	spec := registry.GetSpec(types.Tier("platinum"))
	assert.Equal(t, registry.GetSpec(types.TierBasic), spec)
}
