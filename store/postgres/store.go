// Package postgres provides a store.Store on PostgreSQL via Grove ORM.
//
// All records live in a single multitoken_kv table keyed by BYTEA, whose
// bytewise ordering gives the prefix scans the ledger relies on.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/multitoken/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type kvModel struct {
	grove.BaseModel `grove:"table:multitoken_kv"`

	Key   []byte `grove:"key,pk"`
	Value []byte `grove:"value"`
}

// applySQL writes a whole batch in one statement so it commits atomically.
// Batches never name a key twice, so the delete and upsert never touch the
// same row.
const applySQL = `
WITH deleted AS (
    DELETE FROM multitoken_kv WHERE key = ANY($1::bytea[])
    RETURNING 1
), upserted AS (
    INSERT INTO multitoken_kv (key, value)
    SELECT k, v FROM unnest($2::bytea[], $3::bytea[]) AS t(k, v)
    ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
    RETURNING 1
)
SELECT (SELECT count(*) FROM deleted) + (SELECT count(*) FROM upserted)`

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required table using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("multitoken/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("multitoken/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	m := new(kvModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("multitoken/postgres: get: %w", err)
	}
	return m.Value, nil
}

// Scan implements store.Store.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var models []kvModel
	q := s.pg.NewSelect(&models).Where("key >= $1", prefix)
	if end := store.PrefixEnd(prefix); end != nil {
		q = q.Where("key < $2", end)
	}
	if err := q.OrderExpr("key ASC").Scan(ctx); err != nil {
		return fmt.Errorf("multitoken/postgres: scan: %w", err)
	}

	for i := range models {
		if err := fn(models[i].Key, models[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements store.Store.
func (s *Store) Apply(ctx context.Context, b *store.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	puts, deletes := b.Split()
	keys := make([][]byte, len(puts))
	values := make([][]byte, len(puts))
	for i, op := range puts {
		keys[i] = op.Key
		values[i] = op.Value
	}
	if deletes == nil {
		deletes = [][]byte{}
	}

	var touched int64
	if err := s.pg.NewRaw(applySQL, deletes, keys, values).Scan(ctx, &touched); err != nil {
		return fmt.Errorf("multitoken/postgres: apply batch: %w", err)
	}
	return nil
}

// Usage implements store.Store.
func (s *Store) Usage(ctx context.Context) (uint64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(octet_length(key) + octet_length(value) + $1), 0)::BIGINT
		FROM multitoken_kv
	`, store.RecordOverhead).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("multitoken/postgres: usage: %w", err)
	}
	return uint64(total), nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
