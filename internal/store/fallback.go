package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FallbackStore composes a durable, authoritative backend with an
// always-available cache backend. Every operation goes to the durable store
// first; availability failures degrade silently to the cache and are never
// surfaced to the caller as a failure of the requested operation.
//
// Successful durable reads and writes are mirrored to the cache best-effort
// so the cache always holds the last known value. The dual write is not
// transactional: a write may land on one backend and not the other, which is
// the accepted degradation mode.
//
// A circuit breaker fronts the durable store so a dead backend stops costing
// a full timeout per request. Record misses (ErrNotFound) and domain errors
// from update functions count as breaker successes; only ErrUnavailable
// trips it.
type FallbackStore struct {
	durable Store
	cache   Store
	breaker *gobreaker.CircuitBreaker[Record]
	logger  *slog.Logger
}

// NewFallbackStore creates a FallbackStore over the given backends.
func NewFallbackStore(durable, cache Store, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[Record](gobreaker.Settings{
		Name:        "durable-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsUnavailable(err)
		},
	})
	return &FallbackStore{
		durable: durable,
		cache:   cache,
		breaker: cb,
		logger:  logger,
	}
}

// Get returns the durable record, mirroring it into the cache. When the
// durable store is unreachable the cache's last known value is served
// instead. A durable ErrNotFound is authoritative and does not fall back.
func (f *FallbackStore) Get(ctx context.Context, key string) (Record, error) {
	rec, err := f.breaker.Execute(func() (Record, error) {
		return f.durable.Get(ctx, key)
	})
	if err == nil {
		f.mirror(ctx, key, rec)
		return rec, nil
	}
	if !isAvailability(err) {
		return nil, err
	}

	f.logger.Warn("durable store unavailable; serving cached value",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	return f.cache.Get(ctx, key)
}

// Set writes to the durable store and mirrors to the cache. When the durable
// store is unreachable the write degrades to the cache alone.
func (f *FallbackStore) Set(ctx context.Context, key string, rec Record) error {
	_, err := f.breaker.Execute(func() (Record, error) {
		return nil, f.durable.Set(ctx, key, rec)
	})
	if err == nil {
		f.mirror(ctx, key, rec)
		return nil
	}
	if !isAvailability(err) {
		return err
	}

	f.logger.Warn("durable store unavailable; writing to cache only",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	return f.cache.Set(ctx, key, rec)
}

// Update applies fn atomically against the durable store and mirrors the
// result. When the durable store is unreachable the update runs atomically
// against the cache instead (degraded but still serialized per key).
// Errors returned by fn are domain outcomes and propagate unchanged.
func (f *FallbackStore) Update(ctx context.Context, key string, fn UpdateFunc) (Record, error) {
	rec, err := f.breaker.Execute(func() (Record, error) {
		return f.durable.Update(ctx, key, fn)
	})
	if err == nil {
		f.mirror(ctx, key, rec)
		return rec, nil
	}
	if !isAvailability(err) {
		return nil, err
	}

	f.logger.Warn("durable store unavailable; updating cache only",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	return f.cache.Update(ctx, key, fn)
}

// mirror best-effort copies a record into the cache. Failures only log;
// the cache is a fallback, not a second source of truth.
func (f *FallbackStore) mirror(ctx context.Context, key string, rec Record) {
	if rec == nil {
		return
	}
	if err := f.cache.Set(ctx, key, rec); err != nil {
		f.logger.Warn("cache mirror write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// isAvailability reports whether err is an availability failure of the
// durable backend, including the breaker refusing the call outright.
func isAvailability(err error) bool {
	return IsUnavailable(err) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}
