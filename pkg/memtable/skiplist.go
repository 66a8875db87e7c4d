// Package memtable implements the in-memory ordered map that buffers
// accepted writes before they're sorted and flushed into a table blob.
// There is exactly one writer (the submission loop), so unlike a
// general-purpose skip list this one needs no atomics: Put and Delete
// mutate nodes directly, and Freeze hands out a read-only view over the
// current structure without copying it.
package memtable

import (
	"bytes"
	"math/rand"
)

const (
	// MaxHeight is the maximum height of the skip list.
	MaxHeight = 12

	// BranchingFactor determines the probability of increasing the height.
	BranchingFactor = 4
)

// entry is one key/value pair, or a tombstone recording that key was
// deleted. A tombstone is its own entry kind, not merely an empty value, so
// a frozen snapshot can tell "deleted" apart from "never written".
type entry struct {
	key       []byte
	value     []byte
	tombstone bool
}

func (e *entry) sizeBytes() int {
	return len(e.key) + len(e.value) + 16
}

type node struct {
	entry *entry
	next  []*node
}

func newNode(e *entry, height int) *node {
	return &node{entry: e, next: make([]*node, height)}
}

// Map is the ordered, single-writer skip list backing one memtable
// generation. The zero value is not usable; construct with NewMap.
type Map struct {
	head      *node
	maxHeight int
	rnd       *rand.Rand
	size      int64
	frozen    bool
}

// NewMap constructs an empty, writable Map.
func NewMap() *Map {
	return &Map{
		head:      newNode(nil, MaxHeight),
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(1)),
	}
}

func (m *Map) randomHeight() int {
	height := 1
	for height < MaxHeight && m.rnd.Intn(BranchingFactor) == 0 {
		height++
	}
	return height
}

// findPredecessors locates, at every level, the last node whose key is
// strictly less than key, and returns the node at level 0 whose key would
// equal key if present.
func (m *Map) findPredecessors(key []byte) (prev [MaxHeight]*node, exact *node) {
	current := m.head
	for level := m.maxHeight - 1; level >= 0; level-- {
		for current.next[level] != nil && bytes.Compare(current.next[level].entry.key, key) < 0 {
			current = current.next[level]
		}
		prev[level] = current
	}
	if current.next[0] != nil && bytes.Equal(current.next[0].entry.key, key) {
		exact = current.next[0]
	}
	return
}

func (m *Map) put(key, value []byte, tombstone bool) {
	if m.frozen {
		panic("memtable: put on a frozen snapshot")
	}
	prev, exact := m.findPredecessors(key)
	if exact != nil {
		m.size += int64(len(value)) - int64(len(exact.entry.value))
		exact.entry.value = value
		exact.entry.tombstone = tombstone
		return
	}

	height := m.randomHeight()
	if height > m.maxHeight {
		for level := m.maxHeight; level < height; level++ {
			prev[level] = m.head
		}
		m.maxHeight = height
	}

	e := &entry{key: key, value: value, tombstone: tombstone}
	n := newNode(e, height)
	for level := 0; level < height; level++ {
		n.next[level] = prev[level].next[level]
		prev[level].next[level] = n
	}
	m.size += int64(e.sizeBytes())
}

// Put inserts or overwrites key with value.
func (m *Map) Put(key, value []byte) { m.put(key, value, false) }

// Delete records a tombstone for key.
func (m *Map) Delete(key []byte) { m.put(key, nil, true) }

// Get reports whether key is present and, if so, its value and whether it
// is a tombstone.
func (m *Map) Get(key []byte) (value []byte, tombstone bool, ok bool) {
	_, exact := m.findPredecessors(key)
	if exact == nil {
		return nil, false, false
	}
	return exact.entry.value, exact.entry.tombstone, true
}

// Len returns the number of distinct keys held, tombstones included.
func (m *Map) Len() int {
	n := 0
	for cur := m.head.next[0]; cur != nil; cur = cur.next[0] {
		n++
	}
	return n
}

// Size returns the approximate memory footprint in bytes, used against
// the flush threshold.
func (m *Map) Size() int64 { return m.size }

// Frozen reports whether this Map is a read-only snapshot produced by Freeze.
func (m *Map) Frozen() bool { return m.frozen }

// Freeze returns a read-only snapshot sharing the current structure. The
// caller must not mutate m after freezing except through Clear, which
// detaches a brand-new empty structure without disturbing the frozen view.
func (m *Map) Freeze() *Map {
	return &Map{head: m.head, maxHeight: m.maxHeight, rnd: m.rnd, size: m.size, frozen: true}
}

// Clear detaches this Map from its current structure and resets it to
// empty, leaving any previously frozen snapshot untouched.
func (m *Map) Clear() {
	m.head = newNode(nil, MaxHeight)
	m.maxHeight = 1
	m.size = 0
}

// Iterator provides ordered, read-only traversal of a Map.
type Iterator struct {
	current *node
	started bool
	head    *node
}

// NewIterator constructs an Iterator positioned before the first entry.
func (m *Map) NewIterator() *Iterator {
	return &Iterator{head: m.head}
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	it.current = it.head.next[0]
	it.started = true
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.started && it.current != nil }

// Next advances to the following entry.
func (it *Iterator) Next() {
	if it.current != nil {
		it.current = it.current.next[0]
	}
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.entry.key
}

// Value returns the current entry's value (nil for a tombstone).
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.entry.value
}

// IsTombstone reports whether the current entry is a deletion marker.
func (it *Iterator) IsTombstone() bool {
	return it.Valid() && it.current.entry.tombstone
}
