// Package store defines the persistence contract the ledger runs on: an
// ordered key-value byte store with atomic batches and a usage counter.
//
// Keys beginning with 0x00 are reserved for backend bookkeeping and are never
// written by the ledger.
package store

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("store: not found")
	// ErrClosed is returned once a store has been closed.
	ErrClosed = errors.New("store: closed")
)

// RecordOverhead is the fixed number of bytes charged per stored record on top
// of its key and value. Every backend accounts usage with the same formula so
// measured storage costs are portable between them.
const RecordOverhead = 40

// Store is the ordered key-value store behind a ledger.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Scan calls fn for every key with the given prefix in ascending key
	// order. Returning an error from fn stops the scan and returns it.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error

	// Apply writes every operation of the batch.
	Apply(ctx context.Context, b *Batch) error

	// Usage returns the total bytes charged for all stored records.
	Usage(ctx context.Context) (uint64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// RecordSize is the usage charged for one record.
func RecordSize(key, value []byte) uint64 {
	return uint64(len(key)+len(value)) + RecordOverhead
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil if no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
