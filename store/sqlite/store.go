// Package sqlite provides a store.Store on SQLite via Grove ORM.
//
// A deleted key is kept as a row flagged deleted, so a whole batch is written
// by one upsert statement and commits atomically. Flagged rows are invisible
// to reads and purged after each batch.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/multitoken/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type kvModel struct {
	grove.BaseModel `grove:"table:multitoken_kv"`

	Key     []byte `grove:"key,pk"`
	Value   []byte `grove:"value"`
	Deleted bool   `grove:"deleted"`
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required table using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("multitoken/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("multitoken/sqlite: migration failed: %w", err)
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
	err := s.sdb.NewSelect(m).
		Where("key = ?", key).
		Where("deleted = 0").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("multitoken/sqlite: get: %w", err)
	}
	return m.Value, nil
}

// Scan implements store.Store.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var models []kvModel
	q := s.sdb.NewSelect(&models).Where("deleted = 0").Where("key >= ?", prefix)
	if end := store.PrefixEnd(prefix); end != nil {
		q = q.Where("key < ?", end)
	}
	if err := q.OrderExpr("key ASC").Scan(ctx); err != nil {
		return fmt.Errorf("multitoken/sqlite: scan: %w", err)
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

	models := rows(b)
	_, err := s.sdb.NewInsert(&models).
		OnConflict("(key) DO UPDATE").
		Set("value = EXCLUDED.value, deleted = EXCLUDED.deleted").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("multitoken/sqlite: apply batch: %w", err)
	}

	// The batch is committed; flagged rows left by a failed purge are
	// removed by the next one.
	_, _ = s.sdb.NewDelete((*kvModel)(nil)).
		Where("deleted = 1").
		Exec(ctx)
	return nil
}

// rows turns a batch into the rows of one upsert. A delete becomes an empty
// row flagged deleted.
func rows(b *store.Batch) []kvModel {
	ops := b.Ops()
	models := make([]kvModel, len(ops))
	for i, op := range ops {
		if op.Delete {
			models[i] = kvModel{Key: op.Key, Value: []byte{}, Deleted: true}
			continue
		}
		models[i] = kvModel{Key: op.Key, Value: op.Value}
	}
	return models
}

// Usage implements store.Store.
func (s *Store) Usage(ctx context.Context) (uint64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value) + ?), 0) FROM multitoken_kv
		WHERE deleted = 0
	`, store.RecordOverhead).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("multitoken/sqlite: usage: %w", err)
	}
	return uint64(total), nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
