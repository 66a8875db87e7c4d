// Package config holds the compiled-in tunables of the storage engine.
//
// Per the format specification there are no external configuration files:
// block size, journal size, and the memtable flush threshold are process-wide
// constants. Config exists so they can be varied in tests and between
// instances of the same process without a global.
package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the compiled-in constants governing file layout and the
// submission loop. BlockSize is fixed at 4096 by the on-disk format; it is
// still a field (rather than a literal constant) so tests can construct
// smaller files without recompiling the package.
type Config struct {
	// BlockSize is the fixed page/alignment unit (B). Must be a power of two.
	BlockSize uint32

	// JournalSize is the size in bytes of the ring journal region (J). Must
	// be a nonzero multiple of BlockSize.
	JournalSize uint64

	// MaxInflight bounds how many operations the submission loop drains from
	// the queue per iteration.
	MaxInflight int

	// MemtableMaxSize is the approximate byte size (memtable.Map.Size()) at
	// which the submission loop freezes and flushes the memtable to a
	// level-0 table.
	MemtableMaxSize int

	// MaxFileSize caps how far the table region may grow (absolute offset of
	// the last byte a table blob may occupy). Zero means unbounded.
	MaxFileSize int64
}

const (
	// DefaultBlockSize is the system-wide block size B.
	DefaultBlockSize = 4096
	// DefaultJournalBlocks is J expressed as a multiple of B (256*B).
	DefaultJournalBlocks = 256
	// DefaultMaxInflight bounds per-iteration batch size.
	DefaultMaxInflight = 256
	// DefaultMemtableMaxSize is the default flush threshold, compared against
	// memtable.Map.Size(): an approximate byte count, not a number of entries.
	DefaultMemtableMaxSize = 4096
)

// NewDefaultConfig returns the recommended defaults.
func NewDefaultConfig() *Config {
	return &Config{
		BlockSize:       DefaultBlockSize,
		JournalSize:     DefaultJournalBlocks * DefaultBlockSize,
		MaxInflight:     DefaultMaxInflight,
		MemtableMaxSize: DefaultMemtableMaxSize,
		MaxFileSize:     0,
	}
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.BlockSize == 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("%w: block size must be a power of two, got %d", ErrInvalidConfig, c.BlockSize)
	}
	if c.JournalSize == 0 || c.JournalSize%uint64(c.BlockSize) != 0 {
		return fmt.Errorf("%w: journal size must be a nonzero multiple of block size", ErrInvalidConfig)
	}
	if c.MaxInflight <= 0 {
		return fmt.Errorf("%w: max inflight must be positive", ErrInvalidConfig)
	}
	if c.MemtableMaxSize <= 0 {
		return fmt.Errorf("%w: memtable max size must be positive", ErrInvalidConfig)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("%w: max file size must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Layout is the set of absolute offsets derived from a Config, matching the
// file layout in spec §3.
type Layout struct {
	SuperblockA   uint64
	SuperblockB   uint64
	JournalStart  uint64
	JournalEnd    uint64
	ManifestStart uint64
	TablesStart   uint64
}

// Layout computes the absolute offsets for this configuration.
func (c *Config) Layout() Layout {
	b := uint64(c.BlockSize)
	journalStart := 2 * b
	journalEnd := journalStart + c.JournalSize
	manifestStart := journalEnd
	tablesStart := manifestStart + b
	return Layout{
		SuperblockA:   0,
		SuperblockB:   b,
		JournalStart:  journalStart,
		JournalEnd:    journalEnd,
		ManifestStart: manifestStart,
		TablesStart:   tablesStart,
	}
}
