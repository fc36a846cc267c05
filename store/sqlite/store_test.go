package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/multitoken/store"
)

func TestRowsCarryDeletesInTheSameUpsert(t *testing.T) {
	b := store.NewBatch()
	b.Put([]byte("nalpha"), []byte("bob"))
	b.Delete([]byte("aalpha"))
	b.Put([]byte("salpha"), []byte{})

	assert.Equal(t, []kvModel{
		{Key: []byte("nalpha"), Value: []byte("bob")},
		{Key: []byte("aalpha"), Value: []byte{}, Deleted: true},
		{Key: []byte("salpha"), Value: []byte{}},
	}, rows(b))
}

func TestRowsLastWriteWins(t *testing.T) {
	b := store.NewBatch()
	b.Put([]byte("k"), []byte("v1"))
	b.Delete([]byte("k"))

	got := rows(b)
	assert.Len(t, got, 1)
	assert.True(t, got[0].Deleted)

	b.Put([]byte("k"), []byte("v2"))
	got = rows(b)
	assert.Len(t, got, 1)
	assert.False(t, got[0].Deleted)
	assert.Equal(t, []byte("v2"), got[0].Value)
}
