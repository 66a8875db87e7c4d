// Package iterator supplies the bounded k-way merge used to read across
// several table blobs (and, if asked, the live memtable state) as a single
// ordered stream. spec.md §1 sketches this only where it interacts with
// table readers — the merge here is forward-only, with no Seek/SeekToLast,
// since that is all a table.Reader or a memtable.Iterator can do.
package iterator

// Iterator is ordered, read-only traversal over key/value pairs.
type Iterator interface {
	SeekToFirst()
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	IsTombstone() bool
}
