// Package state holds the ledger's persistent layout and a write overlay over
// store.Store.
//
// A Tx stages every write in memory, answers reads from the staged writes
// before falling back to the store, and tracks how the staged writes change
// the store's usage counter. Nothing reaches the store until Commit, so a
// failed operation is abandoned with Discard and leaves no trace.
package state

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"github.com/xraph/multitoken/store"
)

type staged struct {
	value   []byte
	deleted bool
}

// Tx is a read-through write overlay. It is not safe for concurrent use.
type Tx struct {
	base   store.Store
	writes map[string]staged
	order  []string
	delta  int64
}

// Begin starts an overlay on s.
func Begin(s store.Store) *Tx {
	return &Tx{base: s, writes: make(map[string]staged)}
}

func (t *Tx) get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	v, err := t.base.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *Tx) put(ctx context.Context, key, value []byte) error {
	old, ok, err := t.get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		t.delta -= int64(store.RecordSize(key, old))
	}
	t.delta += int64(store.RecordSize(key, value))
	t.stage(key, staged{value: bytes.Clone(value)})
	return nil
}

func (t *Tx) del(ctx context.Context, key []byte) error {
	old, ok, err := t.get(ctx, key)
	if err != nil || !ok {
		return err
	}
	t.delta -= int64(store.RecordSize(key, old))
	t.stage(key, staged{deleted: true})
	return nil
}

func (t *Tx) stage(key []byte, w staged) {
	k := string(key)
	if _, ok := t.writes[k]; !ok {
		t.order = append(t.order, k)
	}
	t.writes[k] = w
}

// scan merges the store's rows under prefix with the staged writes and calls
// fn in ascending key order.
func (t *Tx) scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := t.base.Scan(ctx, prefix, func(k, v []byte) error {
		merged[string(k)] = v
		return nil
	})
	if err != nil {
		return err
	}
	for k, w := range t.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if w.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = w.value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Usage returns the store's usage as it would be after Commit.
func (t *Tx) Usage(ctx context.Context) (uint64, error) {
	base, err := t.base.Usage(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(int64(base) + t.delta), nil
}

// Delta returns the usage change staged so far, in bytes.
func (t *Tx) Delta() int64 { return t.delta }

// Dirty reports whether any write is staged.
func (t *Tx) Dirty() bool { return len(t.writes) > 0 }

// Commit applies every staged write to the store as one batch and resets the
// overlay.
func (t *Tx) Commit(ctx context.Context) error {
	if !t.Dirty() {
		return nil
	}
	b := store.NewBatch()
	for _, k := range t.order {
		w := t.writes[k]
		if w.deleted {
			b.Delete([]byte(k))
			continue
		}
		b.Put([]byte(k), w.value)
	}
	if err := t.base.Apply(ctx, b); err != nil {
		return err
	}
	t.Discard()
	return nil
}

// Discard drops every staged write.
func (t *Tx) Discard() {
	t.writes = make(map[string]staged)
	t.order = nil
	t.delta = 0
}
