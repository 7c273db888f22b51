package types

import "time"

// Subscription is the core ledger entity: one consumable token balance per
// subscriber. Records are stored as JSON documents keyed by subscriber ID.
//
// Invariant: Tokens is always within [0, cap(Tier)]. Any read path that finds
// a value outside that range (e.g., a stale cache entry written under a
// different tier) must clamp on load and never write an out-of-range value.
type Subscription struct {
	SubscriberID   string     `json:"subscriber_id"`
	Tier           Tier       `json:"tier"`
	Tokens         int        `json:"tokens"`
	AutoRenew      bool       `json:"auto_renew"`
	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TrialStarted reports whether the one-time trial grant has been consumed.
// The flag is one-way: once set it is never cleared by this subsystem.
func (s *Subscription) TrialStarted() bool {
	return s.TrialStartedAt != nil
}

// UsageEvent is an immutable record of a token grant or consumption.
// Amount is positive for grants and is the absolute count for consumption.
type UsageEvent struct {
	ID           string      `json:"id"`
	SubscriberID string      `json:"subscriber_id"`
	Amount       int         `json:"amount"`
	Action       UsageAction `json:"action"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// Transaction is an immutable record of a billing outcome. Declined attempts
// are recorded alongside successes for audit purposes.
type Transaction struct {
	ID            string            `json:"id"`
	SubscriberID  string            `json:"subscriber_id"`
	Plan          Tier              `json:"plan"`
	AmountCents   int64             `json:"amount_cents"`
	PaymentMethod string            `json:"payment_method"`
	Status        TransactionStatus `json:"status"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// PaymentOutcome is the result contract consumed from the payment gateway.
// A decline is an outcome, never an error raised across this boundary.
type PaymentOutcome struct {
	Status        TransactionStatus `json:"status"`
	TransactionID string            `json:"transaction_id"`
}

// Succeeded reports whether the payment cleared.
func (o PaymentOutcome) Succeeded() bool {
	return o.Status == TxSucceeded
}

// UsageSummary is the month-windowed aggregation of consumption events.
// Windows are calendar months with first-of-month cutoffs.
type UsageSummary struct {
	ThisMonth int `json:"this_month"`
	LastMonth int `json:"last_month"`
	Total     int `json:"total"`
}

// TrialResult is returned by StartTrial. AlreadyStarted distinguishes the
// informational "trial already granted" case from a fresh grant; it is not
// a failure.
type TrialResult struct {
	AlreadyStarted bool          `json:"already_started"`
	Subscription   *Subscription `json:"subscription"`
}
