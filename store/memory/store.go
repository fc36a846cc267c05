// Package memory provides an in-process store.Store. It keeps every record in
// a map and is intended for tests, examples and ephemeral ledgers.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/xraph/multitoken/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store is a map-backed store.Store.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	usage  uint64
	closed bool
}

// New returns an empty memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[string(key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Scan implements store.Store.
func (s *Store) Scan(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0)
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(s.data[k])
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements store.Store.
func (s *Store) Apply(_ context.Context, b *store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range b.Ops() {
		k := string(op.Key)
		if old, ok := s.data[k]; ok {
			s.usage -= store.RecordSize(op.Key, old)
			delete(s.data, k)
		}
		if op.Delete {
			continue
		}
		s.data[k] = bytes.Clone(op.Value)
		s.usage += store.RecordSize(op.Key, op.Value)
	}
	return nil
}

// Usage implements store.Store.
func (s *Store) Usage(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
