// Package block implements the fixed-size data block format used inside a
// table blob: a small count header followed by packed key/value records,
// padded to the table's block size. It knows nothing about sort order or
// table framing — that's pkg/table's job.
package block

import (
	"github.com/jeremytregunna/ringdb/pkg/codec"
	"github.com/jeremytregunna/ringdb/pkg/errs"
)

// HeaderSize is the 2-byte record count at the start of every block.
const HeaderSize = 2

// tombstoneFlag is the high bit of a record's on-disk vlen field, repurposed
// as an out-of-band deletion marker. A table blob has no other home for
// this: a zero-length value is a legitimate write, so a tombstone needs a
// bit of its own rather than overloading value length. This halves the
// practical maximum value size (2^31-1 instead of 2^32-1), which is not a
// constraint spec.md's callers come anywhere near.
const tombstoneFlag = uint32(1) << 31

// MaxValueLen is the largest value length that leaves the tombstone flag
// bit free.
const MaxValueLen = int(tombstoneFlag - 1)

// Record is one key/value pair as it appears inside a data block, or a
// tombstone (Tombstone=true, Value empty) recording that Key was deleted.
type Record struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// EncodedLen returns the on-disk size of a record: klen(2) + vlen(4) + key + value.
func EncodedLen(r Record) int {
	return 2 + 4 + len(r.Key) + len(r.Value)
}

// Builder accumulates records into one block, sealing it once the next
// record would exceed blockSize.
type Builder struct {
	blockSize int
	records   []Record
	bodyLen   int
}

// NewBuilder constructs an empty block builder for the given block size.
func NewBuilder(blockSize int) *Builder {
	return &Builder{blockSize: blockSize}
}

// Fits reports whether adding r would keep the block within blockSize.
func (b *Builder) Fits(r Record) bool {
	return HeaderSize+b.bodyLen+EncodedLen(r) <= b.blockSize
}

// Empty reports whether no record has been added yet.
func (b *Builder) Empty() bool { return len(b.records) == 0 }

// Add appends r to the block. Callers must check Fits first.
func (b *Builder) Add(r Record) {
	b.records = append(b.records, r)
	b.bodyLen += EncodedLen(r)
}

// FirstKey returns the key of the first record added, or nil if empty.
func (b *Builder) FirstKey() []byte {
	if len(b.records) == 0 {
		return nil
	}
	return b.records[0].Key
}

// Seal encodes the block: count header, then each record, zero-padded to
// blockSize.
func (b *Builder) Seal() []byte {
	buf := make([]byte, b.blockSize)
	codec.PutUint16(buf, 0, uint16(len(b.records)))
	off := HeaderSize
	for _, r := range b.records {
		vlen := uint32(len(r.Value))
		if r.Tombstone {
			vlen |= tombstoneFlag
		}
		codec.PutUint16(buf, off, uint16(len(r.Key)))
		codec.PutUint32(buf, off+2, vlen)
		off += 6
		copy(buf[off:], r.Key)
		off += len(r.Key)
		copy(buf[off:], r.Value)
		off += len(r.Value)
	}
	return buf
}

// Decode parses every record out of a full blockSize-byte block buffer.
func Decode(buf []byte) ([]Record, error) {
	if len(buf) < HeaderSize {
		return nil, errs.Wrap(errs.KindTable, errs.CodeBrokenTableSize, "block shorter than header", nil)
	}
	count := codec.GetUint16(buf, 0)
	records := make([]Record, 0, count)
	off := HeaderSize
	for i := 0; i < int(count); i++ {
		if off+6 > len(buf) {
			break
		}
		klen := int(codec.GetUint16(buf, off))
		vlenRaw := codec.GetUint32(buf, off+2)
		tombstone := vlenRaw&tombstoneFlag != 0
		vlen := int(vlenRaw &^ tombstoneFlag)
		off += 6
		if off+klen+vlen > len(buf) {
			break
		}
		key := append([]byte(nil), buf[off:off+klen]...)
		off += klen
		value := append([]byte(nil), buf[off:off+vlen]...)
		off += vlen
		records = append(records, Record{Key: key, Value: value, Tombstone: tombstone})
	}
	return records, nil
}
