package wal

import (
	"github.com/jeremytregunna/ringdb/pkg/blockio"
	"github.com/jeremytregunna/ringdb/pkg/common/log"
	"github.com/jeremytregunna/ringdb/pkg/errs"
	"github.com/jeremytregunna/ringdb/pkg/superblock"
)

// OpInput describes one operation to append, before an LSN has been
// assigned.
type OpInput struct {
	Op    Op
	Key   []byte
	Value []byte
}

// Journal is the ring-shaped WAL region: jStart..jEnd is a fixed byte range
// of the backing file, written to in a circle. It is the sole holder of
// mutable WAL state; the submission loop is its only caller.
type Journal struct {
	file *blockio.File

	jStart uint64
	jEnd   uint64

	head uint64 // oldest live byte, absolute offset in [jStart, jEnd)
	tail uint64 // next write position, absolute offset in [jStart, jEnd)

	lastLsn int64 // -1 means no LSN has been assigned yet

	// lsnOffset maps an assigned LSN to the normalized absolute offset just
	// past its record (normalized to jStart if it would equal jEnd). It is
	// the basis for checkpoint truncation and is pruned as checkpoints land.
	lsnOffset map[uint64]uint64

	log log.Logger
}

// New constructs a Journal over the region [jStart, jEnd) of file.
func New(file *blockio.File, jStart, jEnd uint64) *Journal {
	return &Journal{
		file:      file,
		jStart:    jStart,
		jEnd:      jEnd,
		head:      jStart,
		tail:      jStart,
		lastLsn:   -1,
		lsnOffset: make(map[uint64]uint64),
		log:       log.ForComponent("wal"),
	}
}

// LoadFromSuperblock restores the journal's head/tail/lastLsn after a boot
// scan has determined which LSN, if any, was last durable. The lsn->offset
// map is left as it is, so offsets recorded by ScanLive survive the call.
func (j *Journal) LoadFromSuperblock(head, tail uint64, lastLsn int64) {
	j.head = head
	j.tail = tail
	j.lastLsn = lastLsn
}

func (j *Journal) journalSize() uint64 { return j.jEnd - j.jStart }

// Used returns the number of live bytes currently occupied in the ring.
func (j *Journal) Used() uint64 {
	if j.tail >= j.head {
		return j.tail - j.head
	}
	return (j.jEnd - j.head) + (j.tail - j.jStart)
}

// Dirty reports whether the journal currently holds any live bytes.
func (j *Journal) Dirty() bool { return j.Used() > 0 }

func (j *Journal) Head() uint64   { return j.head }
func (j *Journal) Tail() uint64   { return j.tail }
func (j *Journal) LastLsn() int64 { return j.lastLsn }

// normalize maps an offset that may equal jEnd back to jStart.
func (j *Journal) normalize(off uint64) uint64 {
	if off == j.jEnd {
		return j.jStart
	}
	return off
}

// AppendMany assigns consecutive LSNs to ops, writes them (wrapping with a
// PAD record if needed), fsyncs once, and returns the last assigned LSN.
// Fails with ErrWALFull if there isn't enough free space for the whole
// batch (plus the wrap PAD, if a wrap is needed); on failure, journal state
// is left exactly as it was before the call.
func (j *Journal) AppendMany(ops []OpInput) (uint64, error) {
	if len(ops) == 0 {
		return uint64(j.lastLsn), nil
	}

	startLsn := uint64(j.lastLsn + 1)
	records := make([]Record, len(ops))
	batchBytes := 0
	for i, op := range ops {
		rec := Record{LSN: startLsn + uint64(i), Op: op.Op, Key: op.Key, Value: op.Value}
		records[i] = rec
		batchBytes += EncodedLen(len(op.Key), len(op.Value))
	}

	needsWrap := j.tail+uint64(batchBytes) > j.jEnd
	padBytes := uint64(0)
	if needsWrap {
		padBytes = uint64(EncodedLen(0, 0))
		// The wrap PAD is written at the current tail, before jEnd; if the
		// gap remaining there is smaller than the PAD itself, writing it
		// would spill past jEnd into whatever follows the journal region.
		// Fail the whole batch rather than let that happen.
		if j.jEnd-j.tail < padBytes {
			return 0, errs.Wrap(errs.KindWAL, errs.CodeWALFull,
				"gap before journal end too small to hold the wrap pad", nil)
		}
	}

	free := j.journalSize() - j.Used()
	if free < uint64(batchBytes)+padBytes {
		return 0, errs.Wrap(errs.KindWAL, errs.CodeWALFull,
			"not enough free space in journal for batch", nil)
	}

	tail := j.tail
	if needsWrap {
		pad := encodePad(uint64(j.lastLsn))
		if err := j.file.WriteAt(int64(tail), pad); err != nil {
			return 0, err
		}
		tail = j.jStart
	}

	newOffsets := make(map[uint64]uint64, len(records))
	for _, rec := range records {
		buf := Encode(rec)
		if err := j.file.WriteAt(int64(tail), buf); err != nil {
			return 0, err
		}
		tail += uint64(len(buf))
		newOffsets[rec.LSN] = j.normalize(tail)
		tail = j.normalize(tail)
	}

	if err := j.file.Fsync(); err != nil {
		return 0, err
	}

	j.tail = tail
	j.lastLsn = int64(records[len(records)-1].LSN)
	for lsn, off := range newOffsets {
		j.lsnOffset[lsn] = off
	}

	j.log.Debug("appended %d records, lastLsn=%d tail=%d", len(records), j.lastLsn, j.tail)
	return uint64(j.lastLsn), nil
}

// Scan reads up to maxBytes bytes starting at an absolute offset and decodes
// records from the start of that buffer. It does not itself wrap around the
// ring; PAD records advance the cursor without being yielded, and a
// truncated header or body stops the scan cleanly (what's already decoded is
// returned, with no error).
func (j *Journal) Scan(fromAbsolute uint64, maxBytes uint64) ([]Record, error) {
	out, _, err := j.scan(fromAbsolute, maxBytes)
	return out, err
}

// scan is Scan's implementation, additionally returning the normalized
// absolute offset just past each returned (non-PAD) record, parallel to the
// returned records; PAD records get no entry of their own.
func (j *Journal) scan(fromAbsolute uint64, maxBytes uint64) ([]Record, []uint64, error) {
	if maxBytes == 0 {
		return nil, nil, nil
	}
	readBuf := make([]byte, maxBytes)
	n, err := j.file.ReadAt(int64(fromAbsolute), readBuf)
	if err != nil {
		return nil, nil, err
	}
	readBuf = readBuf[:n]

	var out []Record
	var offsets []uint64
	cursor := 0
	for {
		rec, padded, err := decodeRecord(readBuf[cursor:])
		if err != nil {
			break
		}
		cursor += padded
		if rec.Op != OpPad {
			out = append(out, rec)
			offsets = append(offsets, j.normalize(fromAbsolute+uint64(cursor)))
		}
	}
	return out, offsets, nil
}

// ScanLive reads every live record currently in the ring, in LSN order,
// transparently handling the wrap: if head > tail the region is scanned in
// two pieces (head..jEnd, jStart..tail); otherwise one scan covers it. As a
// side effect, it repopulates the lsn->offset map for every record it
// finds, so a freshly booted process can checkpoint/truncate past records
// it recovered but never re-appended.
func (j *Journal) ScanLive() ([]Record, error) {
	used := j.Used()
	if used == 0 {
		return nil, nil
	}

	var records []Record
	var offsets []uint64
	var err error
	if j.tail > j.head {
		records, offsets, err = j.scan(j.head, used)
	} else {
		var firstRecs, secondRecs []Record
		var firstOffs, secondOffs []uint64
		firstRecs, firstOffs, err = j.scan(j.head, j.jEnd-j.head)
		if err == nil {
			secondRecs, secondOffs, err = j.scan(j.jStart, j.tail-j.jStart)
			records = append(firstRecs, secondRecs...)
			offsets = append(firstOffs, secondOffs...)
		}
	}
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		j.lsnOffset[rec.LSN] = offsets[i]
	}
	return records, nil
}

// Checkpoint advances the journal head past lsn and persists the new
// head/tail into the superblock. Fails with ErrLSNNotFound if lsn was not
// assigned since the last checkpoint (its offset has already been pruned, or
// it was never appended).
func (j *Journal) Checkpoint(lsn uint64, sb *superblock.Manager) (superblock.Superblock, error) {
	newHead, ok := j.lsnOffset[lsn]
	if !ok {
		return superblock.Superblock{}, errs.Wrap(errs.KindWAL, errs.CodeLSNNotFound,
			"checkpoint lsn not present in offset map", nil)
	}

	next, err := sb.Checkpoint(superblock.Update{
		CheckpointLSN: lsn,
		JHead:         newHead,
		JTail:         j.tail,
	})
	if err != nil {
		return superblock.Superblock{}, err
	}

	j.head = newHead
	for k := range j.lsnOffset {
		if k <= lsn {
			delete(j.lsnOffset, k)
		}
	}
	j.log.Debug("checkpoint lsn=%d newHead=%d", lsn, newHead)
	return next, nil
}
