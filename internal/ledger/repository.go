package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"captionflow/internal/store"
	"captionflow/internal/types"
)

// subKeyPrefix namespaces subscription records in the document store.
const subKeyPrefix = "sub:"

// SubscriptionRepository is the typed read/write surface over the composed
// store. It owns (de)serialization and the clamp-on-load invariant: every
// subscription handed to a caller has tokens within [0, cap(tier)], even when
// the stored document was written under a different tier (stale cache entry).
type SubscriptionRepository struct {
	store  store.Store
	plans  PlanRegistry
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptionRepository creates a repository over the given store.
func NewSubscriptionRepository(st store.Store, plans PlanRegistry, logger *slog.Logger) *SubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepository{
		store:  st,
		plans:  plans,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the clamped subscription for id, or ErrNotFound from the store
// when no record exists.
func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*types.Subscription, error) {
	rec, err := r.store.Get(ctx, subKey(id))
	if err != nil {
		return nil, err
	}
	sub, err := r.decode(rec)
	if err != nil {
		return nil, err
	}
	r.clamp(sub)
	return sub, nil
}

// Create writes the default record for id if none exists. A second call on an
// existing record is a no-op; the existing record wins unchanged.
func (r *SubscriptionRepository) Create(ctx context.Context, def *types.Subscription) error {
	_, err := r.store.Update(ctx, subKey(def.SubscriberID), func(current store.Record, exists bool) (store.Record, error) {
		if exists {
			return nil, nil
		}
		return r.encode(def)
	})
	return err
}

// MutateFunc transforms a subscription in place. Returning changed=false
// skips the write; returning an error aborts without writing and propagates
// the error to the caller unchanged.
type MutateFunc func(sub *types.Subscription) (changed bool, err error)

// Mutate applies fn atomically against the subscription record. Missing
// records are lazily created with the Basic-tier default before fn runs, per
// the subscription lifecycle (created on first access, never deleted here).
// The returned subscription is the state as stored after the call.
func (r *SubscriptionRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*types.Subscription, error) {
	var result *types.Subscription
	_, err := r.store.Update(ctx, subKey(id), func(current store.Record, exists bool) (store.Record, error) {
		var sub *types.Subscription
		if exists {
			decoded, err := r.decode(current)
			if err != nil {
				return nil, err
			}
			sub = decoded
			r.clamp(sub)
		} else {
			sub = r.defaultSubscription(id)
		}

		changed, err := fn(sub)
		if err != nil {
			return nil, err
		}
		result = sub
		if !changed && exists {
			return nil, nil
		}

		r.clamp(sub)
		sub.UpdatedAt = r.now()
		return r.encode(sub)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DefaultSubscription returns the record created on first access:
// Basic tier at full cap, auto-renew off, trial not yet granted.
func (r *SubscriptionRepository) DefaultSubscription(id string) *types.Subscription {
	return r.defaultSubscription(id)
}

func (r *SubscriptionRepository) defaultSubscription(id string) *types.Subscription {
	now := r.now()
	return &types.Subscription{
		SubscriberID: id,
		Tier:         types.TierBasic,
		Tokens:       r.plans.GetSpec(types.TierBasic).TokenCap,
		AutoRenew:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// clamp enforces 0 <= tokens <= cap(tier). Out-of-range values are healed in
// memory; the healed value is only persisted if the surrounding mutation
// writes.
func (r *SubscriptionRepository) clamp(sub *types.Subscription) {
	cap := r.plans.GetSpec(sub.Tier).TokenCap
	switch {
	case sub.Tokens < 0:
		r.logger.Warn("clamped negative token balance",
			slog.String("subscriber_id", sub.SubscriberID),
			slog.Int("tokens", sub.Tokens),
		)
		sub.Tokens = 0
	case sub.Tokens > cap:
		r.logger.Warn("clamped token balance above tier cap",
			slog.String("subscriber_id", sub.SubscriberID),
			slog.String("tier", string(sub.Tier)),
			slog.Int("tokens", sub.Tokens),
			slog.Int("cap", cap),
		)
		sub.Tokens = cap
	}
}

func (r *SubscriptionRepository) encode(sub *types.Subscription) (store.Record, error) {
	rec, err := json.Marshal(sub)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to encode subscription record", err)
	}
	return rec, nil
}

func (r *SubscriptionRepository) decode(rec store.Record) (*types.Subscription, error) {
	var sub types.Subscription
	if err := json.Unmarshal(rec, &sub); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to decode subscription record", err)
	}
	return &sub, nil
}

// IsNotFound reports whether err means the subscription record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func subKey(id string) string {
	return fmt.Sprintf("%s%s", subKeyPrefix, id)
}
