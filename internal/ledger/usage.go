package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"captionflow/internal/store"
	"captionflow/internal/types"
)

const (
	// usageKeyPrefix namespaces per-subscriber usage histories in the store.
	usageKeyPrefix = "usage:"

	// usageHistoryCap bounds the retained event history. Eviction is FIFO --
	// oldest first -- since recency is what matters for the month-windowed
	// aggregation.
	usageHistoryCap = 100
)

// UsageTracker keeps the append-only consumption/trial/renewal event log and
// computes month-windowed aggregates over it.
type UsageTracker struct {
	store store.Store
	plans PlanRegistry
	seed  UsageSeedFunc
}

// UsageTrackerOption configures a UsageTracker.
type UsageTrackerOption func(*UsageTracker)

// WithUsageSeed overrides the empty-history seed. Passing nil disables
// seeding entirely, so empty histories aggregate to a zero summary.
func WithUsageSeed(fn UsageSeedFunc) UsageTrackerOption {
	return func(t *UsageTracker) {
		t.seed = fn
	}
}

// NewUsageTracker creates a UsageTracker over the given store.
func NewUsageTracker(st store.Store, plans PlanRegistry, opts ...UsageTrackerOption) *UsageTracker {
	t := &UsageTracker{
		store: st,
		plans: plans,
		seed:  DefaultUsageSeed,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends the event to the subscriber's history, trimming the oldest
// entries beyond usageHistoryCap. The append is atomic against the store.
func (t *UsageTracker) Record(ctx context.Context, event types.UsageEvent) error {
	_, err := t.store.Update(ctx, usageKey(event.SubscriberID), func(current store.Record, exists bool) (store.Record, error) {
		var events []types.UsageEvent
		if exists {
			if err := json.Unmarshal(current, &events); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to decode usage history", err)
			}
		}
		events = append(events, event)
		if len(events) > usageHistoryCap {
			events = events[len(events)-usageHistoryCap:]
		}
		rec, err := json.Marshal(events)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to encode usage history", err)
		}
		return rec, nil
	})
	return err
}

// Events returns the retained history, oldest first. A missing history is an
// empty slice, not an error.
func (t *UsageTracker) Events(ctx context.Context, id string) ([]types.UsageEvent, error) {
	rec, err := t.store.Get(ctx, usageKey(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var events []types.UsageEvent
	if err := json.Unmarshal(rec, &events); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to decode usage history", err)
	}
	return events, nil
}

// Aggregate partitions the subscriber's consumption events by calendar-month
// boundaries computed from now: ThisMonth and LastMonth sum the amounts of
// "used" events inside their windows, Total sums all "used" events regardless
// of window. Trial and renewal grants are excluded from all three figures.
//
// When no events exist at all, the configured seed summary for the
// subscriber's tier is returned instead of zeros.
func (t *UsageTracker) Aggregate(ctx context.Context, id string, tier types.Tier, now time.Time) (types.UsageSummary, error) {
	events, err := t.Events(ctx, id)
	if err != nil {
		return types.UsageSummary{}, err
	}

	if len(events) == 0 {
		if t.seed == nil {
			return types.UsageSummary{}, nil
		}
		return t.seed(t.plans.GetSpec(tier)), nil
	}

	thisMonthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := thisMonthStart.AddDate(0, -1, 0)

	var summary types.UsageSummary
	for _, ev := range events {
		if ev.Action != types.ActionUsed {
			continue
		}
		summary.Total += ev.Amount
		switch {
		case !ev.OccurredAt.Before(thisMonthStart):
			summary.ThisMonth += ev.Amount
		case !ev.OccurredAt.Before(lastMonthStart):
			summary.LastMonth += ev.Amount
		}
	}
	return summary, nil
}

func usageKey(id string) string {
	return fmt.Sprintf("%s%s", usageKeyPrefix, id)
}
