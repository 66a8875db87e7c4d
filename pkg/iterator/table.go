package iterator

import "github.com/jeremytregunna/ringdb/pkg/table"

// TableIterator adapts a table.Reader's one-record-at-a-time Next to the
// Iterator interface, carrying the reader's own tombstone bit through
// rather than inferring deletion from value length — a table blob can hold
// a legitimately empty value.
type TableIterator struct {
	r         *table.Reader
	key       []byte
	value     []byte
	tombstone bool
	valid     bool
	err       error
}

// NewTableIterator wraps r. The caller must not call r.Next directly while
// this iterator is in use.
func NewTableIterator(r *table.Reader) *TableIterator {
	return &TableIterator{r: r}
}

func (t *TableIterator) SeekToFirst() {
	t.r.Reset()
	t.advance()
}

func (t *TableIterator) Next() { t.advance() }

func (t *TableIterator) advance() {
	k, v, tombstone, ok, err := t.r.Next()
	if err != nil {
		t.err = err
		t.valid = false
		t.key, t.value, t.tombstone = nil, nil, false
		return
	}
	if !ok {
		t.valid = false
		t.key, t.value, t.tombstone = nil, nil, false
		return
	}
	t.key, t.value, t.tombstone, t.valid = k, v, tombstone, true
}

func (t *TableIterator) Valid() bool   { return t.valid }
func (t *TableIterator) Key() []byte   { return t.key }
func (t *TableIterator) Value() []byte { return t.value }

func (t *TableIterator) IsTombstone() bool {
	return t.valid && t.tombstone
}

// Err returns the first read error encountered, if any.
func (t *TableIterator) Err() error { return t.err }
