package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/multitoken/store"
)

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   []byte
	}{
		{"simple", []byte("b"), []byte("c")},
		{"carry", []byte{'b', 0xff}, []byte("c")},
		{"all ff", []byte{0xff, 0xff}, nil},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.PrefixEnd(tt.prefix))
		})
	}
}

func TestBatchLastWriteWins(t *testing.T) {
	b := store.NewBatch()
	b.Put([]byte("k1"), []byte("v1"))
	b.Put([]byte("k2"), []byte("v2"))
	b.Delete([]byte("k1"))
	b.Put([]byte("k2"), []byte("v3"))

	assert.Equal(t, 2, b.Len())

	puts, deletes := b.Split()
	assert.Equal(t, [][]byte{[]byte("k1")}, deletes)
	assert.Len(t, puts, 1)
	assert.Equal(t, []byte("v3"), puts[0].Value)
}

func TestBatchCopiesInput(t *testing.T) {
	key := []byte("k")
	val := []byte("v")

	b := store.NewBatch()
	b.Put(key, val)
	key[0], val[0] = 'x', 'x'

	assert.Equal(t, []byte("k"), b.Ops()[0].Key)
	assert.Equal(t, []byte("v"), b.Ops()[0].Value)
}

func TestRecordSize(t *testing.T) {
	assert.Equal(t, uint64(3+5+store.RecordOverhead), store.RecordSize([]byte("abc"), []byte("hello")))
}
