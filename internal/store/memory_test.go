package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "k", Record(`{"a":1}`)))
	rec, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Record(`{"a":1}`), rec)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateCreatesWhenMissing(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	rec, err := st.Update(ctx, "k", func(current Record, exists bool) (Record, error) {
		assert.False(t, exists)
		assert.Nil(t, current)
		return Record(`new`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, Record(`new`), rec)

	stored, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Record(`new`), stored)
}

func TestMemoryStore_UpdateNoOpKeepsCurrent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "k", Record(`old`)))

	rec, err := st.Update(ctx, "k", func(current Record, exists bool) (Record, error) {
		assert.True(t, exists)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Record(`old`), rec)
}

func TestMemoryStore_UpdateNoOpOnMissingIsNotFound(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.Update(context.Background(), "k", func(Record, bool) (Record, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateErrorAborts(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "k", Record(`old`)))

	boom := errors.New("boom")
	_, err := st.Update(ctx, "k", func(Record, bool) (Record, error) {
		return Record(`partial`), boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Record(`old`), rec)
}

func TestMemoryStore_RecordsAreIsolated(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	original := Record(`abc`)
	require.NoError(t, st.Set(ctx, "k", original))
	original[0] = 'z'

	rec, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Record(`abc`), rec, "caller mutation must not leak into the store")
}
