// Package store provides the persistence layer for the ledger: a small
// key-value document contract with a durable PostgreSQL implementation, a
// Redis cache implementation, an in-process memory implementation, and a
// fallback decorator that composes a durable and a cache backend.
//
// Every implementation exposes an atomic Update primitive so that
// read-modify-write sequences (balance decrements, trial grants, renewals)
// are serialized per key at the storage layer rather than in the caller.
package store

import (
	"context"
	"errors"
)

// Record is a serialized document. The ledger stores JSON; the store layer
// treats it as opaque bytes.
type Record []byte

// ErrNotFound is returned by Get and surfaced through Update when no record
// exists under the requested key and the update function declines to create one.
var ErrNotFound = errors.New("store: record not found")

// ErrUnavailable marks infrastructure failures (connectivity, timeouts,
// backend errors) as distinct from domain outcomes. The fallback store uses
// it to decide when to degrade to the cache backend.
var ErrUnavailable = errors.New("store: backend unavailable")

// UpdateFunc transforms the current record under a key. current is nil and
// exists is false when no record is stored. Returning (nil, nil) skips the
// write and leaves the stored value untouched. Returning an error aborts the
// update without writing; the error is propagated to the caller unchanged.
type UpdateFunc func(current Record, exists bool) (Record, error)

// Store is the minimal persistence capability the ledger depends on.
// Implementations must make Update atomic with respect to concurrent
// updates of the same key.
type Store interface {
	// Get returns the record stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Set unconditionally writes the record under key.
	Set(ctx context.Context, key string, rec Record) error

	// Update applies fn to the current record atomically and returns the
	// record as stored after the call (the new record, or the existing one
	// when fn skipped the write). Returns ErrNotFound if no record exists
	// and fn returned (nil, nil).
	Update(ctx context.Context, key string, fn UpdateFunc) (Record, error)
}

// IsUnavailable reports whether err represents an availability failure of a
// storage backend rather than a missing record or a domain error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
