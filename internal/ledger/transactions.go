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
	// txKeyPrefix namespaces per-subscriber transaction histories in the store.
	txKeyPrefix = "tx:"

	// txHistoryCap bounds the retained billing history, FIFO eviction.
	txHistoryCap = 20
)

// TransactionLog keeps the append-only record of billing outcomes. Declined
// charges are recorded alongside successes for audit.
type TransactionLog struct {
	store store.Store
	plans PlanRegistry
	seed  TransactionSeedFunc
}

// TransactionLogOption configures a TransactionLog.
type TransactionLogOption func(*TransactionLog)

// WithTransactionSeed overrides the empty-history seed. Passing nil disables
// seeding, so List returns an empty slice for subscribers with no history.
func WithTransactionSeed(fn TransactionSeedFunc) TransactionLogOption {
	return func(l *TransactionLog) {
		l.seed = fn
	}
}

// NewTransactionLog creates a TransactionLog over the given store.
func NewTransactionLog(st store.Store, plans PlanRegistry, opts ...TransactionLogOption) *TransactionLog {
	l := &TransactionLog{
		store: st,
		plans: plans,
		seed:  DefaultTransactionSeed,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds the transaction to the subscriber's history, trimming the
// oldest entries beyond txHistoryCap. The append is atomic against the store.
func (l *TransactionLog) Append(ctx context.Context, tx types.Transaction) error {
	_, err := l.store.Update(ctx, txKey(tx.SubscriberID), func(current store.Record, exists bool) (store.Record, error) {
		var txs []types.Transaction
		if exists {
			if err := json.Unmarshal(current, &txs); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to decode transaction history", err)
			}
		}
		txs = append(txs, tx)
		if len(txs) > txHistoryCap {
			txs = txs[len(txs)-txHistoryCap:]
		}
		rec, err := json.Marshal(txs)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to encode transaction history", err)
		}
		return rec, nil
	})
	return err
}

// List returns the subscriber's billing history, most recent first. When no
// transactions exist the configured seed history for the subscriber's current
// tier is returned instead of an empty list.
func (l *TransactionLog) List(ctx context.Context, id string, tier types.Tier, now time.Time) ([]types.Transaction, error) {
	rec, err := l.store.Get(ctx, txKey(id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var txs []types.Transaction
	if rec != nil {
		if err := json.Unmarshal(rec, &txs); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to decode transaction history", err)
		}
	}

	if len(txs) == 0 {
		if l.seed == nil {
			return []types.Transaction{}, nil
		}
		return l.seed(id, tier, l.plans.GetSpec(tier), now), nil
	}

	// Stored oldest-first; serve most-recent-first.
	out := make([]types.Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	return out, nil
}

func txKey(id string) string {
	return fmt.Sprintf("%s%s", txKeyPrefix, id)
}
