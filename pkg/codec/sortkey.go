package codec

import (
	"bytes"

	"golang.org/x/crypto/blake2b"
)

// SortKeySize is the width of the derived ordering prefix.
const SortKeySize = 16

// SortKey16 derives the fixed 16-byte ordering prefix of a key: the first 16
// bytes of its blake2b-512 digest. Persisted tables lock in this function —
// substituting a different hash requires rewriting every table on disk.
func SortKey16(key []byte) [SortKeySize]byte {
	sum := blake2b.Sum512(key)
	var prefix [SortKeySize]byte
	copy(prefix[:], sum[:SortKeySize])
	return prefix
}

// Cmp16 is the bytewise lexicographic comparator for two 16-byte sort-key
// prefixes: negative if a < b, zero if equal, positive if a > b.
func Cmp16(a, b [SortKeySize]byte) int {
	return bytes.Compare(a[:], b[:])
}
