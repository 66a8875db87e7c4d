package table

import (
	"github.com/jeremytregunna/ringdb/pkg/blockio"
	"github.com/jeremytregunna/ringdb/pkg/table/block"
)

// Reader iterates a sealed table blob one (key, value) pair at a time. It
// is read-only and safe to use concurrently with the submission loop,
// since sealed tables never mutate.
type Reader struct {
	file      *blockio.File
	dataStart int64
	blockSize uint32
	index     []IndexEntry

	blockIdx int
	records  []block.Record
	recIdx   int
}

// NewReader constructs a Reader over one table's meta page and block index.
func NewReader(file *blockio.File, meta Meta, index []IndexEntry) *Reader {
	return &Reader{
		file:      file,
		dataStart: int64(meta.IndexOff) + int64(alignUpIndexLen(meta.IndexLen)),
		blockSize: meta.BlockSize,
		index:     index,
	}
}

func alignUpIndexLen(n uint32) uint32 {
	const align = 8
	return (n + align - 1) / align * align
}

// Next returns the next (key, value) pair, or ok=false at end of table.
// tombstone reports whether the record is a deletion marker rather than a
// live value — a table blob can hold a legitimately empty value, so callers
// must consult this instead of inferring deletion from value length. The
// returned slices are views into an internal buffer and must be copied by
// the caller if they need to outlive the next call to Next.
func (r *Reader) Next() (key, value []byte, tombstone bool, ok bool, err error) {
	for r.recIdx >= len(r.records) {
		if r.blockIdx >= len(r.index) {
			return nil, nil, false, false, nil
		}
		entry := r.index[r.blockIdx]
		buf, rerr := r.file.ReadExact(r.dataStart+int64(entry.Off), int(entry.Len))
		if rerr != nil {
			return nil, nil, false, false, rerr
		}
		records, derr := block.Decode(buf)
		if derr != nil {
			return nil, nil, false, false, derr
		}
		r.records = records
		r.recIdx = 0
		r.blockIdx++
	}
	rec := r.records[r.recIdx]
	r.recIdx++
	return rec.Key, rec.Value, rec.Tombstone, true, nil
}

// Reset rewinds the reader to the beginning of the table.
func (r *Reader) Reset() {
	r.blockIdx = 0
	r.records = nil
	r.recIdx = 0
}
