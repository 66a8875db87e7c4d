// Package manifest implements the stateless codec for the fixed-size
// manifest page that lists sealed table entries. The table writer owns the
// mutable in-memory page and persists it on every admission; this package
// only knows how to encode and decode one page.
package manifest

import (
	"github.com/jeremytregunna/ringdb/pkg/codec"
	"github.com/jeremytregunna/ringdb/pkg/errs"
)

const (
	headerSize = 16
	entrySize  = 48
)

// Cap returns the maximum number of entries a page of the given block size
// can hold: floor((blockSize-16)/48).
func Cap(blockSize uint32) int {
	return int((blockSize - headerSize) / entrySize)
}

// Entry describes one sealed table blob.
type Entry struct {
	Level     uint16
	MetaOff   uint64
	MetaLen   uint32
	MinPrefix [16]byte
	MaxPrefix [16]byte
}

// Page is the decoded manifest page: a version/epoch header plus up to
// Cap(blockSize) entries.
type Page struct {
	Version uint16
	Epoch   uint64
	Entries []Entry
}

// Encode serializes page into a buffer of exactly blockSize bytes. Fails
// with ErrTooManyEntries if len(page.Entries) exceeds Cap(blockSize).
func Encode(page Page, blockSize uint32) ([]byte, error) {
	cap := Cap(blockSize)
	if len(page.Entries) > cap {
		return nil, errs.Wrap(errs.KindManifest, errs.CodeTooManyEntries,
			"manifest page entry count exceeds capacity", nil)
	}
	buf := make([]byte, blockSize)
	codec.PutUint16(buf, 0, page.Version)
	codec.PutUint16(buf, 2, 0) // reserved
	codec.PutUint64(buf, 4, page.Epoch)
	codec.PutUint16(buf, 12, uint16(len(page.Entries)))
	codec.PutUint16(buf, 14, 0) // reserved

	for i, e := range page.Entries {
		off := headerSize + i*entrySize
		codec.PutUint16(buf, off, e.Level)
		codec.PutUint16(buf, off+2, 0) // reserved
		codec.PutUint64(buf, off+4, e.MetaOff)
		codec.PutUint32(buf, off+12, e.MetaLen)
		copy(buf[off+16:off+32], e.MinPrefix[:])
		copy(buf[off+32:off+48], e.MaxPrefix[:])
	}
	return buf, nil
}

// Decode parses a manifest page out of a block-sized buffer. A page whose
// version, epoch, and count header fields are all zero decodes to an empty
// page. Fails with ErrCountExceedsCap if the claimed entry count exceeds
// Cap(blockSize), or ErrInvalidPageSize if buf is not exactly blockSize
// bytes.
func Decode(buf []byte, blockSize uint32) (Page, error) {
	if uint32(len(buf)) != blockSize {
		return Page{}, errs.Wrap(errs.KindManifest, errs.CodeInvalidPageSize,
			"manifest page buffer must be exactly one block", nil)
	}

	version := codec.GetUint16(buf, 0)
	epoch := codec.GetUint64(buf, 4)
	count := codec.GetUint16(buf, 12)

	if version == 0 && epoch == 0 && count == 0 {
		return Page{}, nil
	}

	cap := Cap(blockSize)
	if int(count) > cap {
		return Page{}, errs.Wrap(errs.KindManifest, errs.CodeCountExceedsCap,
			"manifest page entry count exceeds capacity", nil)
	}
	if headerSize+int(count)*entrySize > len(buf) {
		return Page{}, errs.Wrap(errs.KindManifest, errs.CodeCorrupt,
			"manifest page claims more payload than the page holds", nil)
	}

	page := Page{Version: version, Epoch: epoch, Entries: make([]Entry, count)}
	for i := 0; i < int(count); i++ {
		off := headerSize + i*entrySize
		var e Entry
		e.Level = codec.GetUint16(buf, off)
		e.MetaOff = codec.GetUint64(buf, off+4)
		e.MetaLen = codec.GetUint32(buf, off+12)
		copy(e.MinPrefix[:], buf[off+16:off+32])
		copy(e.MaxPrefix[:], buf[off+32:off+48])
		page.Entries[i] = e
	}
	return page, nil
}
