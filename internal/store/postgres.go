package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// The store accepts this so the same query code works inside or outside
// a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is satisfied by *pgxpool.Pool. Update needs to open its own
// transaction to hold a row lock across the read-modify-write cycle.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSchema is the DDL for the ledger document table. Applied out of
// band (ops tooling), kept here as the single source of truth for the shape
// the queries below assume.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_records (
    key        TEXT PRIMARY KEY,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore is the durable, authoritative backend. Documents live in a
// single JSONB table keyed by record key.
type PostgresStore struct {
	db TxBeginner
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db TxBeginner) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the record stored under key, or ErrNotFound.
// Infrastructure failures are wrapped in ErrUnavailable so the fallback
// decorator can degrade to the cache.
func (s *PostgresStore) Get(ctx context.Context, key string) (Record, error) {
	var doc []byte
	err := s.db.QueryRow(ctx,
		`SELECT doc FROM ledger_records WHERE key = $1`,
		key,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return Record(doc), nil
}

// Set upserts the record under key.
func (s *PostgresStore) Set(ctx context.Context, key string, rec Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_records (key, doc, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET doc = EXCLUDED.doc, updated_at = now()`,
		key, []byte(rec),
	)
	if err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Update applies fn under a row lock. The row is locked with
// SELECT ... FOR UPDATE for the duration of the transaction, so concurrent
// updates of the same key serialize at the database.
//
// fn errors abort the transaction and are returned unchanged; they are never
// wrapped in ErrUnavailable, so domain errors pass through the fallback
// decorator intact.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) (Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin update %q: %v", ErrUnavailable, key, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var current []byte
	exists := true
	err = tx.QueryRow(ctx,
		`SELECT doc FROM ledger_records WHERE key = $1 FOR UPDATE`,
		key,
	).Scan(&current)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: lock %q: %v", ErrUnavailable, key, err)
		}
		exists = false
		current = nil
	}

	next, err := fn(Record(current), exists)
	if err != nil {
		return nil, err
	}
	if next == nil {
		// No-op update: fn declined to write.
		if !exists {
			return nil, ErrNotFound
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("%w: commit %q: %v", ErrUnavailable, key, err)
		}
		return Record(current), nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_records (key, doc, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET doc = EXCLUDED.doc, updated_at = now()`,
		key, []byte(next),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: write %q: %v", ErrUnavailable, key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit %q: %v", ErrUnavailable, key, err)
	}
	return next, nil
}
