// Package leveldb provides an embedded store.Store on goleveldb.
//
// Usage is tracked exactly: every Apply reads the previous size of each key it
// touches and commits the adjusted total under a reserved key in the same
// leveldb batch.
package leveldb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xraph/multitoken/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// usageKey holds the running usage total. The 0x00 prefix is reserved by
// store.Store so it never collides with ledger keys.
var usageKey = []byte("\x00usage")

// Store implements store.Store on a leveldb database.
type Store struct {
	mu sync.Mutex // serialises Apply so usage deltas are computed against committed state
	db *leveldb.DB
}

// Open opens (creating if needed) a leveldb database in dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, fmt.Errorf("multitoken/leveldb: open %s: %w", dir, err)
	}
	return New(db), nil
}

// OpenMemory opens a leveldb database held entirely in memory.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("multitoken/leveldb: open memory: %w", err)
	}
	return New(db), nil
}

// New wraps an open leveldb database.
func New(db *leveldb.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *leveldb.DB { return s.db }

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("multitoken/leveldb: get: %w", err)
	}
	return v, nil
}

// Scan implements store.Store.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(ldb_util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(prefix) == 0 && len(iter.Key()) > 0 && iter.Key()[0] == 0x00 {
			continue
		}
		// iterator buffers are reused between calls
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("multitoken/leveldb: scan: %w", err)
	}
	return nil
}

// Apply implements store.Store.
func (s *Store) Apply(_ context.Context, b *store.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := s.usage()
	if err != nil {
		return err
	}

	trx := new(leveldb.Batch)
	for _, op := range b.Ops() {
		old, err := s.db.Get(op.Key, nil)
		switch {
		case err == nil:
			usage -= store.RecordSize(op.Key, old)
		case errors.Is(err, leveldb.ErrNotFound):
		default:
			return fmt.Errorf("multitoken/leveldb: read before write: %w", err)
		}

		if op.Delete {
			trx.Delete(op.Key)
			continue
		}
		trx.Put(op.Key, op.Value)
		usage += store.RecordSize(op.Key, op.Value)
	}
	trx.Put(usageKey, encodeUsage(usage))

	if err := s.db.Write(trx, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("multitoken/leveldb: write batch: %w", err)
	}
	return nil
}

// Usage implements store.Store.
func (s *Store) Usage(_ context.Context) (uint64, error) {
	return s.usage()
}

func (s *Store) usage() (uint64, error) {
	v, err := s.db.Get(usageKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("multitoken/leveldb: read usage: %w", err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("multitoken/leveldb: usage record length: expected 8, actual %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func encodeUsage(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// Migrate is a no-op: leveldb has no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks that the database is still open.
func (s *Store) Ping(_ context.Context) error {
	if _, err := s.db.GetProperty("leveldb.stats"); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return store.ErrClosed
		}
		return err
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
