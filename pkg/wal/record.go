// Package wal implements the ring-shaped write-ahead journal: a fixed-size
// region of the backing file that records every operation before it is
// applied, wrapping around when it reaches the end and truncating from the
// head on checkpoint.
package wal

import (
	"github.com/jeremytregunna/ringdb/pkg/codec"
	"github.com/jeremytregunna/ringdb/pkg/errs"
)

// Op is the WAL record opcode.
type Op uint8

const (
	OpPad   Op = 0
	OpSet   Op = 1
	OpDel   Op = 2
	OpGet   Op = 3
	OpCheck Op = 4
)

// HeaderSize is the fixed 17-byte record header: lsn(8) + op(1) + klen(4) + vlen(4).
const HeaderSize = 17

// Align is the record padding alignment.
const Align = 8

// Record is one decoded WAL entry.
type Record struct {
	LSN   uint64
	Op    Op
	Key   []byte
	Value []byte
}

// EncodedLen returns the padded on-disk length of a record with the given
// key/value lengths.
func EncodedLen(klen, vlen int) int {
	return codec.AlignUpInt(HeaderSize+klen+vlen, Align)
}

// Encode serializes rec into a zero-padded, 8-byte-aligned buffer.
func Encode(rec Record) []byte {
	unpadded := HeaderSize + len(rec.Key) + len(rec.Value)
	buf := make([]byte, codec.AlignUpInt(unpadded, Align))
	codec.PutUint64(buf, 0, rec.LSN)
	buf[8] = byte(rec.Op)
	codec.PutUint32(buf, 9, uint32(len(rec.Key)))
	codec.PutUint32(buf, 13, uint32(len(rec.Value)))
	copy(buf[HeaderSize:], rec.Key)
	copy(buf[HeaderSize+len(rec.Key):], rec.Value)
	return buf
}

// encodePad builds a wrap-marker PAD record: klen=vlen=0, lsn copies the
// last used LSN and does not consume a new one.
func encodePad(lastLSN uint64) []byte {
	return Encode(Record{LSN: lastLSN, Op: OpPad})
}

// decodeHeader parses just the fixed header from buf, which must be at
// least HeaderSize bytes.
func decodeHeader(buf []byte) (lsn uint64, op Op, klen, vlen uint32) {
	lsn = codec.GetUint64(buf, 0)
	op = Op(buf[8])
	klen = codec.GetUint32(buf, 9)
	vlen = codec.GetUint32(buf, 13)
	return
}

// decodeRecord decodes one record from the start of buf, returning the
// record and the padded length it occupied. Returns ErrShortRead if buf does
// not hold a complete record.
func decodeRecord(buf []byte) (Record, int, error) {
	if len(buf) < HeaderSize {
		return Record{}, 0, errs.ErrShortRead
	}
	lsn, op, klen, vlen := decodeHeader(buf)
	total := HeaderSize + int(klen) + int(vlen)
	padded := codec.AlignUpInt(total, Align)
	if len(buf) < total {
		return Record{}, 0, errs.ErrShortRead
	}
	key := append([]byte(nil), buf[HeaderSize:HeaderSize+int(klen)]...)
	value := append([]byte(nil), buf[HeaderSize+int(klen):total]...)
	return Record{LSN: lsn, Op: op, Key: key, Value: value}, padded, nil
}
