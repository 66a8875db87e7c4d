package iterator

import (
	"sort"
	"testing"

	"github.com/jeremytregunna/ringdb/pkg/codec"
)

// sliceIterator is a minimal Iterator over an in-memory, already-sorted
// slice, used to exercise Merge without a real table.Reader.
type sliceIterator struct {
	keys, values [][]byte
	i            int
	started      bool
}

func newSliceIterator(keys, values [][]byte) *sliceIterator {
	return &sliceIterator{keys: keys, values: values, i: -1}
}

func (s *sliceIterator) SeekToFirst() { s.i = 0; s.started = true }
func (s *sliceIterator) Valid() bool  { return s.started && s.i >= 0 && s.i < len(s.keys) }
func (s *sliceIterator) Next()        { s.i++ }
func (s *sliceIterator) Key() []byte {
	if !s.Valid() {
		return nil
	}
	return s.keys[s.i]
}
func (s *sliceIterator) Value() []byte {
	if !s.Valid() {
		return nil
	}
	return s.values[s.i]
}
func (s *sliceIterator) IsTombstone() bool { return s.Valid() && len(s.Value()) == 0 }

func collect(m *Merge) (keys, values []string) {
	for m.SeekToFirst(); m.Valid(); m.Next() {
		keys = append(keys, string(m.Key()))
		values = append(values, string(m.Value()))
	}
	return
}

// sortBySortKey orders strs the way a real table writer orders records: by
// codec.SortKey16 prefix, not raw lexicographic order. Merge assumes each
// source it's given already comes in this order, matching how
// pkg/table.Writer.FlushSnapshot lays records out on disk.
func sortBySortKey(strs []string) []string {
	out := append([]string(nil), strs...)
	sort.SliceStable(out, func(i, j int) bool {
		a := codec.SortKey16([]byte(out[i]))
		b := codec.SortKey16([]byte(out[j]))
		return codec.Cmp16(a, b) < 0
	})
	return out
}

func TestMergeOrdersDisjointSources(t *testing.T) {
	order := sortBySortKey([]string{"a", "b", "c", "d"})
	values := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}

	// Split the sort-key-ordered sequence across two sources, alternating,
	// so each source is individually still in sort-key order but neither
	// holds a contiguous run — mirroring how two level-0 tables can
	// interleave in prefix space.
	var evenKeys, evenVals, oddKeys, oddVals [][]byte
	for i, k := range order {
		if i%2 == 0 {
			evenKeys = append(evenKeys, []byte(k))
			evenVals = append(evenVals, []byte(values[k]))
		} else {
			oddKeys = append(oddKeys, []byte(k))
			oddVals = append(oddVals, []byte(values[k]))
		}
	}
	a := newSliceIterator(evenKeys, evenVals)
	b := newSliceIterator(oddKeys, oddVals)
	m := NewMerge([]Iterator{a, b})

	keys, gotValues := collect(m)
	var wantValues []string
	for _, k := range order {
		wantValues = append(wantValues, values[k])
	}
	if !eq(keys, order) || !eq(gotValues, wantValues) {
		t.Fatalf("got keys=%v values=%v, want keys=%v values=%v", keys, gotValues, order, wantValues)
	}
}

func TestMergeNewestSourceWinsOnDuplicateKey(t *testing.T) {
	order := sortBySortKey([]string{"a", "b"})
	oldValues := map[string]string{order[0]: "old0", order[1]: "old1"}

	newest := newSliceIterator(bs(order[0]), bs("new"))
	oldest := newSliceIterator(bs(order[0], order[1]), bs(oldValues[order[0]], oldValues[order[1]]))
	m := NewMerge([]Iterator{newest, oldest})

	keys, values := collect(m)
	wantValues := []string{"new", oldValues[order[1]]}
	if !eq(keys, order) || !eq(values, wantValues) {
		t.Fatalf("got keys=%v values=%v, want keys=%v values=%v", keys, values, order, wantValues)
	}
}

func TestMergeEmptySourcesIsNeverValid(t *testing.T) {
	m := NewMerge(nil)
	m.SeekToFirst()
	if m.Valid() {
		t.Fatal("expected an empty merge to be invalid")
	}
}

func bs(strs ...string) [][]byte {
	out := make([][]byte, len(strs))
	for i, s := range strs {
		out[i] = []byte(s)
	}
	return out
}

func eq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
