package store

// Op is a single write in a Batch. A nil Value with Delete set removes the key.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch collects writes to be applied together. When the same key is written
// more than once only the last write is kept, so every backend sees each key
// at most once.
type Batch struct {
	ops   []Op
	index map[string]int
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{index: make(map[string]int)}
}

// Put stages key=value.
func (b *Batch) Put(key, value []byte) {
	b.set(Op{Key: clone(key), Value: clone(value)})
}

// Delete stages removal of key.
func (b *Batch) Delete(key []byte) {
	b.set(Op{Key: clone(key), Delete: true})
}

func (b *Batch) set(op Op) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	if i, ok := b.index[string(op.Key)]; ok {
		b.ops[i] = op
		return
	}
	b.index[string(op.Key)] = len(b.ops)
	b.ops = append(b.ops, op)
}

// Ops returns the staged operations in first-write order.
func (b *Batch) Ops() []Op { return b.ops }

// Len returns the number of distinct keys staged.
func (b *Batch) Len() int { return len(b.ops) }

// Split returns the puts and deletes of the batch.
func (b *Batch) Split() (puts []Op, deletes [][]byte) {
	for _, op := range b.ops {
		if op.Delete {
			deletes = append(deletes, op.Key)
			continue
		}
		puts = append(puts, op)
	}
	return puts, deletes
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
