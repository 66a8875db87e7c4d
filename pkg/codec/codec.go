// Package codec holds the little-endian integer encoding helpers and the
// sort-key derivation shared by every on-disk structure.
package codec

import "encoding/binary"

func PutUint16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:off+2], v) }
func PutUint32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }
func PutUint64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:off+8], v) }

func GetUint16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }
func GetUint32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }
func GetUint64(b []byte, off int) uint64 { return binary.LittleEndian.Uint64(b[off : off+8]) }

// AlignUp rounds n up to the next multiple of a, which must be a power of
// two. alignUp(n, B) is used throughout the on-disk format to pad records,
// indexes, and table regions to block boundaries.
func AlignUp(n uint64, a uint64) uint64 {
	if a == 0 || a&(a-1) != 0 {
		panic("codec: alignment must be a power of two")
	}
	return (n + a - 1) &^ (a - 1)
}

// AlignUpInt is the int-sized convenience form of AlignUp.
func AlignUpInt(n int, a int) int {
	return int(AlignUp(uint64(n), uint64(a)))
}
