package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisTxRetries bounds the optimistic retry loop in Update when the watched
// key is modified between read and write.
const redisTxRetries = 5

// RedisStore is the cache backend: a local, always-on Redis holding the last
// known value of every record. Entries are written without expiry -- a stale
// last-known value is exactly what the fallback path is expected to serve.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the record stored under key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return Record(val), nil
}

// Set unconditionally writes the record under key.
func (s *RedisStore) Set(ctx context.Context, key string, rec Record) error {
	if err := s.client.Set(ctx, key, []byte(rec), 0).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Update applies fn using WATCH-based optimistic concurrency: the key is
// watched, the transform computed, and the write committed in a MULTI/EXEC
// block that fails if the key changed underneath. Contended updates retry up
// to redisTxRetries times.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) (Record, error) {
	var result Record
	var fnErr error

	txf := func(tx *redis.Tx) error {
		fnErr = nil
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			exists = false
			current = nil
		}

		next, err := fn(Record(current), exists)
		if err != nil {
			fnErr = err
			return err
		}
		if next == nil {
			if !exists {
				fnErr = ErrNotFound
				return ErrNotFound
			}
			result = Record(current)
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, []byte(next), 0)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if fnErr != nil {
			// Domain error from the update function; pass through unchanged.
			return nil, fnErr
		}
		return nil, fmt.Errorf("%w: update %q: %v", ErrUnavailable, key, err)
	}
	return nil, fmt.Errorf("%w: update %q: optimistic retries exhausted", ErrUnavailable, key)
}
