package table

import (
	"github.com/jeremytregunna/ringdb/pkg/codec"
)

// IndexEntry is one block index entry: enough to locate and validate a
// block's first key without reading the block itself.
type IndexEntry struct {
	FirstKey []byte
	Off      uint64 // relative to the data region start
	Len      uint32
}

// encodedLen returns the on-disk size of one index entry: firstKeyLen(2) +
// off(8) + len(4) + the raw key bytes.
func encodedLen(e IndexEntry) int {
	return 2 + 8 + 4 + len(e.FirstKey)
}

// EncodeIndex serializes entries into an unpadded buffer; callers pad to
// 8-byte alignment themselves before writing it to disk.
func EncodeIndex(entries []IndexEntry) []byte {
	total := 0
	for _, e := range entries {
		total += encodedLen(e)
	}
	buf := make([]byte, total)
	off := 0
	for _, e := range entries {
		codec.PutUint16(buf, off, uint16(len(e.FirstKey)))
		codec.PutUint64(buf, off+2, e.Off)
		codec.PutUint32(buf, off+10, e.Len)
		off += 14
		copy(buf[off:], e.FirstKey)
		off += len(e.FirstKey)
	}
	return buf
}

// DecodeIndex parses index entries out of buf. buf must hold exactly the
// unpadded index bytes (callers trim to meta.IndexLen before calling this):
// the alignment padding a table writes after the index has no in-band
// terminator, so decoding must stop at the real length rather than by
// sniffing for a sentinel value in the entry stream. A zero-length first key
// is a legitimate (if degenerate) entry, not end-of-index, so the only
// reason to stop early is a truncated tail that can't hold the entry it
// claims to.
func DecodeIndex(buf []byte) []IndexEntry {
	var entries []IndexEntry
	off := 0
	for off+14 <= len(buf) {
		keyLen := int(codec.GetUint16(buf, off))
		dataOff := codec.GetUint64(buf, off+2)
		length := codec.GetUint32(buf, off+10)
		off += 14
		if off+keyLen > len(buf) {
			break
		}
		key := append([]byte(nil), buf[off:off+keyLen]...)
		off += keyLen
		entries = append(entries, IndexEntry{FirstKey: key, Off: dataOff, Len: length})
	}
	return entries
}
