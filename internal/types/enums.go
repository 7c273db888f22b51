package types

// Tier identifies the subscription level for a subscriber.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Valid reports whether the tier is one of the known levels.
func (t Tier) Valid() bool {
	return t == TierBasic || t == TierPremium
}

// UsageAction identifies the kind of ledger event recorded in usage history.
type UsageAction string

const (
	ActionTrial   UsageAction = "trial"
	ActionUsed    UsageAction = "used"
	ActionRenewal UsageAction = "renewal"
)

// TransactionStatus is the terminal outcome of a billing attempt.
type TransactionStatus string

const (
	TxSucceeded TransactionStatus = "succeeded"
	TxDeclined  TransactionStatus = "declined"
)
