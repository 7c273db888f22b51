package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captionflow/internal/store"
	"captionflow/internal/types"
)

func newRepo(t *testing.T) (*SubscriptionRepository, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewSubscriptionRepository(st, NewStaticPlanRegistry(), nil), st
}

// seedRaw writes a raw subscription document, bypassing the repository, to
// simulate records written by other processes or stale cache entries.
func seedRaw(t *testing.T, st *store.MemoryStore, sub types.Subscription) {
	t.Helper()
	rec, err := json.Marshal(sub)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), "sub:"+sub.SubscriberID, rec))
}

func TestRepository_GetNotFound(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestRepository_ClampOnLoad_CrossTierCacheEntry(t *testing.T) {
	repo, st := newRepo(t)

	// A stale record written while the subscriber was Premium, now read as
	// Basic: 900 tokens exceeds the Basic cap and must clamp to 200.
	seedRaw(t, st, types.Subscription{
		SubscriberID: "u1",
		Tier:         types.TierBasic,
		Tokens:       900,
	})

	sub, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, sub.Tokens)
}

func TestRepository_ClampOnLoad_NegativeBalance(t *testing.T) {
	repo, st := newRepo(t)

	seedRaw(t, st, types.Subscription{
		SubscriberID: "u1",
		Tier:         types.TierPremium,
		Tokens:       -40,
	})

	sub, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, sub.Tokens)
}

func TestRepository_ClampOnLoadDoesNotWriteBack(t *testing.T) {
	repo, st := newRepo(t)
	ctx := context.Background()

	seedRaw(t, st, types.Subscription{
		SubscriberID: "u1",
		Tier:         types.TierBasic,
		Tokens:       900,
	})

	_, err := repo.Get(ctx, "u1")
	require.NoError(t, err)

	// The stored document is untouched; healing happens in memory only.
	rec, err := st.Get(ctx, "sub:u1")
	require.NoError(t, err)
	var stored types.Subscription
	require.NoError(t, json.Unmarshal(rec, &stored))
	assert.Equal(t, 900, stored.Tokens)
}

func TestRepository_CreateIsNoOpWhenExists(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	def := repo.DefaultSubscription("u1")
	require.NoError(t, repo.Create(ctx, def))

	// Mutate, then re-create: the mutated state must survive.
	_, err := repo.Mutate(ctx, "u1", func(sub *types.Subscription) (bool, error) {
		sub.Tokens = 42
		return true, nil
	})
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, repo.DefaultSubscription("u1")))
	sub, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 42, sub.Tokens)
}

func TestRepository_MutateLazilyCreatesDefault(t *testing.T) {
	repo, _ := newRepo(t)

	sub, err := repo.Mutate(context.Background(), "u1", func(sub *types.Subscription) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.TierBasic, sub.Tier)
	assert.Equal(t, 200, sub.Tokens)

	// The default was persisted even though fn reported no change.
	stored, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, stored.Tokens)
}

func TestRepository_MutateErrorAbortsWrite(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, repo.DefaultSubscription("u1")))

	boom := errors.New("domain rule violated")
	_, err := repo.Mutate(ctx, "u1", func(sub *types.Subscription) (bool, error) {
		sub.Tokens = 0
		return true, boom
	})
	assert.ErrorIs(t, err, boom)

	sub, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, sub.Tokens, "aborted mutation must not persist")
}

func TestRepository_MutateClampsBeforeWrite(t *testing.T) {
	repo, st := newRepo(t)
	ctx := context.Background()

	_, err := repo.Mutate(ctx, "u1", func(sub *types.Subscription) (bool, error) {
		sub.Tokens = 5000
		return true, nil
	})
	require.NoError(t, err)

	rec, err := st.Get(ctx, "sub:u1")
	require.NoError(t, err)
	var stored types.Subscription
	require.NoError(t, json.Unmarshal(rec, &stored))
	assert.Equal(t, 200, stored.Tokens, "out-of-range values are never written")
}

func TestRepository_MutateTouchesUpdatedAt(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	sub, err := repo.Mutate(ctx, "u1", func(sub *types.Subscription) (bool, error) {
		sub.Tokens = 10
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, sub.UpdatedAt)
}
