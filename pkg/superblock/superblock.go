// Package superblock implements the dual A/B superblock protocol: two
// fixed-size slots at the head of the file, alternated with an fsync barrier
// so a crash mid-write never loses the previously committed state.
package superblock

import (
	"github.com/jeremytregunna/ringdb/pkg/blockio"
	"github.com/jeremytregunna/ringdb/pkg/codec"
	"github.com/jeremytregunna/ringdb/pkg/common/log"
	"github.com/jeremytregunna/ringdb/pkg/errs"
)

// Slot identifies one of the two superblock copies.
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// Superblock is the decoded fixed-size record persisted at the head of the
// file. Only the first 36 bytes of the block are meaningful; the rest is
// zero padding.
type Superblock struct {
	Version       uint16
	BlockSize     uint16
	Epoch         uint64
	CheckpointLSN uint64
	JHead         uint64
	JTail         uint64
}

const encodedSize = 2 + 2 + 8 + 8 + 8 + 8 // 36 bytes

// Encode serializes sb into a buffer of exactly blockSize bytes.
func Encode(sb Superblock, blockSize uint32) []byte {
	buf := make([]byte, blockSize)
	codec.PutUint16(buf, 0, sb.Version)
	codec.PutUint16(buf, 2, sb.BlockSize)
	codec.PutUint64(buf, 4, sb.Epoch)
	codec.PutUint64(buf, 12, sb.CheckpointLSN)
	codec.PutUint64(buf, 20, sb.JHead)
	codec.PutUint64(buf, 28, sb.JTail)
	return buf
}

// Decode parses a superblock out of a block-sized buffer. It does not
// validate the record; callers check Version/BlockSize themselves (valid
// returns that check for them).
func Decode(buf []byte) Superblock {
	return Superblock{
		Version:       codec.GetUint16(buf, 0),
		BlockSize:     codec.GetUint16(buf, 2),
		Epoch:         codec.GetUint64(buf, 4),
		CheckpointLSN: codec.GetUint64(buf, 12),
		JHead:         codec.GetUint64(buf, 20),
		JTail:         codec.GetUint64(buf, 28),
	}
}

func valid(sb Superblock, blockSize uint32) bool {
	return sb.Version != 0 && uint32(sb.BlockSize) == blockSize
}

// Manager owns the two on-disk superblock slots and the last loaded/written
// copy in memory. It is not safe for concurrent use; the submission loop is
// its sole caller.
type Manager struct {
	file       *blockio.File
	offsetA    int64
	offsetB    int64
	blockSize  uint32
	current    *Superblock
	activeSlot Slot
	log        log.Logger
}

// NewManager constructs a Manager over an already-open backing file.
func NewManager(file *blockio.File, offsetA, offsetB int64, blockSize uint32) *Manager {
	return &Manager{
		file:      file,
		offsetA:   offsetA,
		offsetB:   offsetB,
		blockSize: blockSize,
		log:       log.ForComponent("superblock"),
	}
}

func (m *Manager) offset(slot Slot) int64 {
	if slot == SlotA {
		return m.offsetA
	}
	return m.offsetB
}

// FormatInitial writes identical superblocks to both slots with version=1,
// checkpointLSN=0, jHead=jTail=journalStart, fsyncs once, and makes slot A
// active.
func (m *Manager) FormatInitial(journalStart uint64, epoch uint64) error {
	sb := Superblock{
		Version:       1,
		BlockSize:     uint16(m.blockSize),
		Epoch:         epoch,
		CheckpointLSN: 0,
		JHead:         journalStart,
		JTail:         journalStart,
	}
	buf := Encode(sb, m.blockSize)
	if err := m.file.WriteAt(m.offsetA, buf); err != nil {
		return err
	}
	if err := m.file.WriteAt(m.offsetB, buf); err != nil {
		return err
	}
	if err := m.file.Fsync(); err != nil {
		return err
	}
	m.current = &sb
	m.activeSlot = SlotA
	m.log.Info("formatted initial superblocks: epoch=%d jHead=%d jTail=%d", sb.Epoch, sb.JHead, sb.JTail)
	return nil
}

// Load reads both slots and selects the one with the larger epoch; ties
// resolve to slot B. Fails if neither slot decodes to a valid superblock.
func (m *Manager) Load() (Superblock, error) {
	rawA, errA := m.file.ReadExact(m.offsetA, int(m.blockSize))
	rawB, errB := m.file.ReadExact(m.offsetB, int(m.blockSize))

	var a, b Superblock
	validA, validB := false, false
	if errA == nil {
		a = Decode(rawA)
		validA = valid(a, m.blockSize)
	}
	if errB == nil {
		b = Decode(rawB)
		validB = valid(b, m.blockSize)
	}

	switch {
	case validA && validB:
		if a.Epoch > b.Epoch {
			m.current, m.activeSlot = &a, SlotA
		} else {
			m.current, m.activeSlot = &b, SlotB
		}
	case validA:
		m.current, m.activeSlot = &a, SlotA
	case validB:
		m.current, m.activeSlot = &b, SlotB
	default:
		return Superblock{}, errs.Wrap(errs.KindSuperblock, errs.CodeNoValidSuperblocks,
			"neither superblock slot decodes to a valid record", nil)
	}
	m.log.Info("loaded superblock from slot %d: epoch=%d checkpointLSN=%d", m.activeSlot, m.current.Epoch, m.current.CheckpointLSN)
	return *m.current, nil
}

// Update carries the fields a checkpoint refreshes.
type Update struct {
	CheckpointLSN uint64
	JHead         uint64
	JTail         uint64
}

// Checkpoint writes a new superblock — epoch incremented by 1, with the
// caller-supplied checkpoint fields — to the currently inactive slot,
// fsyncs, then flips the active pointer. If the write or fsync fails, the
// previously active slot is left untouched, so a subsequent Load still
// returns the older, consistent state.
func (m *Manager) Checkpoint(u Update) (Superblock, error) {
	if m.current == nil {
		return Superblock{}, errs.Wrap(errs.KindSuperblock, errs.CodeNotInitialized,
			"checkpoint called before format/load", nil)
	}
	next := Superblock{
		Version:       1,
		BlockSize:     uint16(m.blockSize),
		Epoch:         m.current.Epoch + 1,
		CheckpointLSN: u.CheckpointLSN,
		JHead:         u.JHead,
		JTail:         u.JTail,
	}
	inactive := m.activeSlot.other()
	buf := Encode(next, m.blockSize)
	if err := m.file.WriteAt(m.offset(inactive), buf); err != nil {
		return Superblock{}, err
	}
	if err := m.file.Fsync(); err != nil {
		return Superblock{}, err
	}
	m.current = &next
	m.activeSlot = inactive
	m.log.Debug("checkpoint: slot=%d epoch=%d checkpointLSN=%d jHead=%d jTail=%d",
		inactive, next.Epoch, next.CheckpointLSN, next.JHead, next.JTail)
	return next, nil
}

// Current returns the last loaded or written superblock. The second return
// value is false if Load/FormatInitial has not yet run.
func (m *Manager) Current() (Superblock, bool) {
	if m.current == nil {
		return Superblock{}, false
	}
	return *m.current, true
}
