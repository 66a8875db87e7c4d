package iterator

import (
	"bytes"

	"github.com/jeremytregunna/ringdb/pkg/codec"
)

// Merge walks several sources, in newest-to-oldest order, as a single
// ordered stream: when two sources hold the same key, the newest source's
// value wins and the older duplicates are skipped. Sources are ordered the
// way pkg/table.Writer.FlushSnapshot lays out a table's records — by
// codec.SortKey16 prefix, not by raw key bytes (spec.md: the sort-key
// prefix "is the ordering key for cross-table merges") — so every
// comparison here runs on that derived prefix, never on Key() directly.
// Unlike the teacher's concurrent HierarchicalIterator, Merge is driven by
// the single submission loop goroutine and needs no internal locking.
type Merge struct {
	sources   []Iterator
	key       []byte
	value     []byte
	tombstone bool
	sortKey   [codec.SortKeySize]byte
	valid     bool
}

// NewMerge constructs a Merge over sources, newest first.
func NewMerge(sources []Iterator) *Merge {
	return &Merge{sources: sources}
}

func (m *Merge) SeekToFirst() {
	for _, s := range m.sources {
		s.SeekToFirst()
	}
	m.advance(false, [codec.SortKeySize]byte{})
}

func (m *Merge) Next() {
	if !m.valid {
		return
	}
	m.advance(true, m.sortKey)
}

// advance finds the smallest sort-key strictly greater than prevSortKey
// across all sources (or the smallest overall, if havePrev is false),
// preferring the newest source on ties. The winning source's own tombstone
// bit carries through untouched — a merged entry's deletion status is
// never inferred from its value.
func (m *Merge) advance(havePrev bool, prevSortKey [codec.SortKeySize]byte) {
	var bestKey, bestValue []byte
	var bestTombstone bool
	var bestSortKey [codec.SortKeySize]byte
	bestIdx := -1

	for i, s := range m.sources {
		if havePrev {
			for s.Valid() && codec.Cmp16(codec.SortKey16(s.Key()), prevSortKey) <= 0 {
				s.Next()
			}
		}
		if !s.Valid() {
			continue
		}
		sk := codec.SortKey16(s.Key())
		if bestIdx == -1 || codec.Cmp16(sk, bestSortKey) < 0 {
			bestKey, bestValue, bestTombstone, bestSortKey, bestIdx = s.Key(), s.Value(), s.IsTombstone(), sk, i
		}
	}

	if bestIdx == -1 {
		m.valid = false
		m.key, m.value, m.tombstone = nil, nil, false
		return
	}

	for i := 0; i < bestIdx; i++ {
		s := m.sources[i]
		if s.Valid() && bytes.Equal(s.Key(), bestKey) {
			bestValue, bestTombstone = s.Value(), s.IsTombstone()
			break
		}
	}

	m.key, m.value, m.tombstone, m.sortKey, m.valid = bestKey, bestValue, bestTombstone, bestSortKey, true
}

func (m *Merge) Valid() bool   { return m.valid }
func (m *Merge) Key() []byte   { return m.key }
func (m *Merge) Value() []byte { return m.value }

func (m *Merge) IsTombstone() bool {
	return m.valid && m.tombstone
}
