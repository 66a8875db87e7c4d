package table

import (
	"github.com/jeremytregunna/ringdb/pkg/codec"
	"github.com/jeremytregunna/ringdb/pkg/errs"
)

// Extent records one contiguous run of blocks backing a table's data
// region. This engine always writes a table as a single contiguous blob and
// FlushSnapshot records no extents (extentCount 0); the field exists because
// the on-disk format allows a list of them.
type Extent struct {
	StartBlock uint64
	Blocks     uint32
}

// Meta is the decoded meta page that opens every table blob.
type Meta struct {
	ID          []byte
	Level       uint16
	SeqMin      uint64
	SeqMax      uint64
	SizeBytes   uint64
	BlockSize   uint32
	IndexOff    uint64
	IndexLen    uint32
	EntryCount  uint32
	MinKey      [16]byte
	MaxKey      [16]byte
	Extents     []Extent
}

const metaFixedSize = 2 + 2 + 8 + 8 + 8 + 4 + 8 + 4 + 4 + 16 + 16 + 4 // 84

// EncodeMeta serializes m into a buffer of exactly blockSize bytes. Fails
// with ErrTruncatedID / ErrTruncatedExtents if the variable-length tail
// doesn't fit the page.
func EncodeMeta(m Meta, blockSize uint32) ([]byte, error) {
	buf := make([]byte, blockSize)
	off := 0
	codec.PutUint16(buf, off, uint16(len(m.ID)))
	off += 2
	codec.PutUint16(buf, off, m.Level)
	off += 2
	codec.PutUint64(buf, off, m.SeqMin)
	off += 8
	codec.PutUint64(buf, off, m.SeqMax)
	off += 8
	codec.PutUint64(buf, off, m.SizeBytes)
	off += 8
	codec.PutUint32(buf, off, m.BlockSize)
	off += 4
	codec.PutUint64(buf, off, m.IndexOff)
	off += 8
	codec.PutUint32(buf, off, m.IndexLen)
	off += 4
	codec.PutUint32(buf, off, m.EntryCount)
	off += 4
	copy(buf[off:off+16], m.MinKey[:])
	off += 16
	copy(buf[off:off+16], m.MaxKey[:])
	off += 16
	codec.PutUint32(buf, off, uint32(len(m.Extents)))
	off += 4

	if off+len(m.ID) > len(buf) {
		return nil, errs.Wrap(errs.KindTable, errs.CodeTruncatedID, "table id does not fit in meta page", nil)
	}
	copy(buf[off:], m.ID)
	off += len(m.ID)

	for _, e := range m.Extents {
		if off+12 > len(buf) {
			return nil, errs.Wrap(errs.KindTable, errs.CodeTruncatedExtents, "extent list does not fit in meta page", nil)
		}
		codec.PutUint64(buf, off, e.StartBlock)
		off += 8
		codec.PutUint32(buf, off, e.Blocks)
		off += 4
	}
	return buf, nil
}

// DecodeMeta parses a meta page out of a block-sized buffer.
func DecodeMeta(buf []byte) (Meta, error) {
	if len(buf) < metaFixedSize {
		return Meta{}, errs.Wrap(errs.KindTable, errs.CodeBrokenTableSize, "meta page shorter than fixed header", nil)
	}
	var m Meta
	off := 0
	idLen := int(codec.GetUint16(buf, off))
	off += 2
	m.Level = codec.GetUint16(buf, off)
	off += 2
	m.SeqMin = codec.GetUint64(buf, off)
	off += 8
	m.SeqMax = codec.GetUint64(buf, off)
	off += 8
	m.SizeBytes = codec.GetUint64(buf, off)
	off += 8
	m.BlockSize = codec.GetUint32(buf, off)
	off += 4
	m.IndexOff = codec.GetUint64(buf, off)
	off += 8
	m.IndexLen = codec.GetUint32(buf, off)
	off += 4
	m.EntryCount = codec.GetUint32(buf, off)
	off += 4
	copy(m.MinKey[:], buf[off:off+16])
	off += 16
	copy(m.MaxKey[:], buf[off:off+16])
	off += 16
	extentCount := int(codec.GetUint32(buf, off))
	off += 4

	if off+idLen > len(buf) {
		return Meta{}, errs.Wrap(errs.KindTable, errs.CodeTruncatedID, "meta page id truncated", nil)
	}
	m.ID = append([]byte(nil), buf[off:off+idLen]...)
	off += idLen

	m.Extents = make([]Extent, extentCount)
	for i := 0; i < extentCount; i++ {
		if off+12 > len(buf) {
			return Meta{}, errs.Wrap(errs.KindTable, errs.CodeTruncatedExtents, "meta page extents truncated", nil)
		}
		m.Extents[i] = Extent{
			StartBlock: codec.GetUint64(buf, off),
			Blocks:     codec.GetUint32(buf, off+8),
		}
		off += 12
	}
	return m, nil
}
