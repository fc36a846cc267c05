// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/multitoken/store"
)

// Factory opens a fresh, empty, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the full store.Store contract.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), []byte("nope"))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ApplyAndUsage", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		usage, err := s.Usage(ctx)
		require.NoError(t, err)
		assert.Zero(t, usage)

		b := store.NewBatch()
		b.Put([]byte("a1"), []byte("one"))
		b.Put([]byte("a2"), []byte("two!"))
		require.NoError(t, s.Apply(ctx, b))

		v, err := s.Get(ctx, []byte("a2"))
		require.NoError(t, err)
		assert.Equal(t, []byte("two!"), v)

		usage, err = s.Usage(ctx)
		require.NoError(t, err)
		want := store.RecordSize([]byte("a1"), []byte("one")) + store.RecordSize([]byte("a2"), []byte("two!"))
		assert.Equal(t, want, usage)

		b = store.NewBatch()
		b.Put([]byte("a1"), []byte("a much longer value"))
		b.Delete([]byte("a2"))
		b.Delete([]byte("never-written"))
		require.NoError(t, s.Apply(ctx, b))

		usage, err = s.Usage(ctx)
		require.NoError(t, err)
		assert.Equal(t, store.RecordSize([]byte("a1"), []byte("a much longer value")), usage)

		_, err = s.Get(ctx, []byte("a2"))
		assert.ErrorIs(t, err, store.ErrNotFound)

		b = store.NewBatch()
		b.Delete([]byte("a1"))
		require.NoError(t, s.Apply(ctx, b))

		usage, err = s.Usage(ctx)
		require.NoError(t, err)
		assert.Zero(t, usage)
	})

	t.Run("EmptyValue", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := store.NewBatch()
		b.Put([]byte("e"), nil)
		require.NoError(t, s.Apply(ctx, b))

		v, err := s.Get(ctx, []byte("e"))
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("ScanPrefixOrdered", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := store.NewBatch()
		for _, k := range []string{"b\x01zed", "b\x01alice", "a\x01x", "b\x01bob", "b\x02carol", "c"} {
			b.Put([]byte(k), []byte(k))
		}
		require.NoError(t, s.Apply(ctx, b))

		var keys []string
		err := s.Scan(ctx, []byte("b\x01"), func(key, value []byte) error {
			assert.Equal(t, key, value)
			keys = append(keys, string(key))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b\x01alice", "b\x01bob", "b\x01zed"}, keys)
	})

	t.Run("ScanStops", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := store.NewBatch()
		b.Put([]byte("p1"), []byte("1"))
		b.Put([]byte("p2"), []byte("2"))
		require.NoError(t, s.Apply(ctx, b))

		stop := errors.New("stop")
		calls := 0
		err := s.Scan(ctx, []byte("p"), func(_, _ []byte) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Apply(context.Background(), store.NewBatch()))
		require.NoError(t, s.Ping(context.Background()))
	})
}
