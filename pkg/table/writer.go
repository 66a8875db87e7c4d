// Package table implements the sealed, sorted table blob: a meta page, a
// block index, and packed data blocks, plus the manifest page that tracks
// where every table blob lives in the backing file.
package table

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/jeremytregunna/ringdb/pkg/blockio"
	"github.com/jeremytregunna/ringdb/pkg/codec"
	"github.com/jeremytregunna/ringdb/pkg/common/log"
	"github.com/jeremytregunna/ringdb/pkg/errs"
	"github.com/jeremytregunna/ringdb/pkg/manifest"
	"github.com/jeremytregunna/ringdb/pkg/table/block"
)

// KV is one record handed to flushSnapshot, in insertion order; the flush
// sorts these by sort-key prefix before packing them into blocks. Tombstone
// marks a deletion: Value is ignored and a zero-length value with the
// tombstone flag set is written instead, so a later compactor (and Get's
// cascade) can tell "deleted" apart from "never written" or "written empty".
type KV struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

type cachedHead struct {
	meta  Meta
	index []IndexEntry
}

// Writer owns the mutable manifest page and the placement of new table
// blobs. It is not safe for concurrent use; the submission loop is its sole
// caller.
type Writer struct {
	file        *blockio.File
	manifestOff int64
	blockSize   uint32
	maxFileSize int64 // 0 = unbounded

	page      manifest.Page
	tableTail uint64

	heads map[uint64]cachedHead // keyed by metaOff

	log log.Logger
}

// NewWriter constructs a Writer over an already-open backing file. Call
// FormatInitial on a fresh database or Load when recovering an existing
// one before using it.
func NewWriter(file *blockio.File, manifestOff int64, blockSize uint32, maxFileSize int64) *Writer {
	return &Writer{
		file:        file,
		manifestOff: manifestOff,
		blockSize:   blockSize,
		maxFileSize: maxFileSize,
		heads:       make(map[uint64]cachedHead),
		log:         log.ForComponent("table"),
	}
}

// FormatInitial writes an empty manifest page and fsyncs.
func (w *Writer) FormatInitial(version uint16, epoch uint64) error {
	w.page = manifest.Page{Version: version, Epoch: epoch}
	buf, err := manifest.Encode(w.page, w.blockSize)
	if err != nil {
		return err
	}
	if err := w.file.WriteAt(w.manifestOff, buf); err != nil {
		return err
	}
	if err := w.file.Fsync(); err != nil {
		return err
	}
	w.tableTail = uint64(w.manifestOff) + uint64(w.blockSize)
	w.log.Info("formatted empty manifest: epoch=%d", epoch)
	return nil
}

// Load reads and decodes the manifest page, reconstructing tableTail from
// the accumulated size of every admitted table.
func (w *Writer) Load() error {
	buf, err := w.file.ReadExact(w.manifestOff, int(w.blockSize))
	if err != nil {
		return err
	}
	page, err := manifest.Decode(buf, w.blockSize)
	if err != nil {
		return err
	}
	w.page = page
	w.heads = make(map[uint64]cachedHead)

	tail := uint64(w.manifestOff) + uint64(w.blockSize)
	for _, e := range page.Entries {
		tail = codec.AlignUp(e.MetaOff+uint64(e.MetaLen), uint64(w.blockSize))
	}
	w.tableTail = tail
	w.log.Info("loaded manifest: %d entries, tableTail=%d", len(page.Entries), w.tableTail)
	return nil
}

func tableID(epoch, tableTail uint64, level uint16) []byte {
	var in [18]byte
	binary.LittleEndian.PutUint64(in[0:8], epoch)
	binary.LittleEndian.PutUint64(in[8:16], tableTail)
	binary.LittleEndian.PutUint16(in[16:18], level)
	sum := xxhash.Sum64(in[:])
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, sum)
	return id
}

// RequestTable reserves space for a new table blob of size bytes at the
// current tableTail, admits the manifest entry, and advances tableTail.
// Fails with ErrNeedsCompaction if maxFileSize is set and the reservation
// would exceed it.
func (w *Writer) RequestTable(level uint16, size uint64, minPrefix, maxPrefix [16]byte) (manifest.Entry, error) {
	if w.maxFileSize > 0 {
		maxFileSize := uint64(w.maxFileSize)
		if w.tableTail >= maxFileSize {
			return manifest.Entry{}, errs.Wrap(errs.KindTable, errs.CodeNeedsCompaction,
				"table tail already at or past max file size", nil)
		}
		left := maxFileSize - w.tableTail
		if size > left {
			return manifest.Entry{}, errs.Wrap(errs.KindTable, errs.CodeNeedsCompaction,
				"table does not fit before max file size", nil)
		}
	}

	entry := manifest.Entry{
		Level:     level,
		MetaOff:   w.tableTail,
		MetaLen:   uint32(size),
		MinPrefix: minPrefix,
		MaxPrefix: maxPrefix,
	}
	if err := w.addEntry(entry); err != nil {
		return manifest.Entry{}, err
	}
	w.tableTail = codec.AlignUp(w.tableTail+size, uint64(w.blockSize))
	return entry, nil
}

// addEntry appends e to the in-memory page and rewrites the whole manifest
// page to disk. Fails with ErrManifestFull once the page is at capacity.
func (w *Writer) addEntry(e manifest.Entry) error {
	if len(w.page.Entries) >= manifest.Cap(w.blockSize) {
		return errs.Wrap(errs.KindTable, errs.CodeManifestFull, "manifest page is at capacity", nil)
	}
	next := w.page
	next.Entries = append(append([]manifest.Entry(nil), w.page.Entries...), e)

	buf, err := manifest.Encode(next, w.blockSize)
	if err != nil {
		return err
	}
	if err := w.file.WriteAt(w.manifestOff, buf); err != nil {
		return err
	}
	if err := w.file.Fsync(); err != nil {
		return err
	}
	w.page = next
	w.log.Debug("admitted table: level=%d metaOff=%d metaLen=%d entries=%d",
		e.Level, e.MetaOff, e.MetaLen, len(w.page.Entries))
	return nil
}

// FlushSnapshot sorts pairs by sort-key prefix, packs them into data
// blocks, builds the block index and meta page, reserves and writes the
// whole blob with a single positioned write, and fsyncs. It returns the
// admitted manifest entry.
func (w *Writer) FlushSnapshot(pairs []KV, level uint16, seqMin, seqMax uint64) (manifest.Entry, error) {
	type sortable struct {
		kv     KV
		prefix [16]byte
	}
	sorted := make([]sortable, len(pairs))
	for i, kv := range pairs {
		sorted[i] = sortable{kv: kv, prefix: codec.SortKey16(kv.Key)}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return codec.Cmp16(sorted[i].prefix, sorted[j].prefix) < 0
	})

	var (
		minPrefix, maxPrefix [16]byte
		indexEntries         []IndexEntry
		dataBuf              []byte
	)
	builder := block.NewBuilder(int(w.blockSize))
	seal := func() {
		if builder.Empty() {
			return
		}
		indexEntries = append(indexEntries, IndexEntry{
			FirstKey: builder.FirstKey(),
			Off:      uint64(len(dataBuf)),
			Len:      uint32(w.blockSize),
		})
		dataBuf = append(dataBuf, builder.Seal()...)
		builder = block.NewBuilder(int(w.blockSize))
	}

	for i, s := range sorted {
		if i == 0 {
			minPrefix, maxPrefix = s.prefix, s.prefix
		} else {
			if codec.Cmp16(s.prefix, minPrefix) < 0 {
				minPrefix = s.prefix
			}
			if codec.Cmp16(s.prefix, maxPrefix) > 0 {
				maxPrefix = s.prefix
			}
		}
		value := s.kv.Value
		if s.kv.Tombstone {
			value = nil
		}
		rec := block.Record{Key: s.kv.Key, Value: value, Tombstone: s.kv.Tombstone}
		if !builder.Empty() && !builder.Fits(rec) {
			seal()
		}
		if !builder.Fits(rec) {
			return manifest.Entry{}, errs.Wrap(errs.KindTable, errs.CodeBrokenTableSize,
				"record larger than one data block", nil)
		}
		builder.Add(rec)
	}
	seal()

	indexUnpadded := EncodeIndex(indexEntries)
	indexLenPadded := codec.AlignUpInt(len(indexUnpadded), 8)
	sizeBytes := uint64(w.blockSize) + uint64(indexLenPadded) + uint64(len(dataBuf))

	entry, err := w.RequestTable(level, sizeBytes, minPrefix, maxPrefix)
	if err != nil {
		return manifest.Entry{}, err
	}

	meta := Meta{
		ID:         tableID(w.page.Epoch, entry.MetaOff, level),
		Level:      level,
		SeqMin:     seqMin,
		SeqMax:     seqMax,
		SizeBytes:  sizeBytes,
		BlockSize:  w.blockSize,
		IndexOff:   entry.MetaOff + uint64(w.blockSize),
		IndexLen:   uint32(len(indexUnpadded)),
		EntryCount: uint32(len(sorted)),
		MinKey:     minPrefix,
		MaxKey:     maxPrefix,
	}
	metaBuf, err := EncodeMeta(meta, w.blockSize)
	if err != nil {
		return manifest.Entry{}, err
	}

	blob := make([]byte, 0, sizeBytes)
	blob = append(blob, metaBuf...)
	paddedIndex := make([]byte, indexLenPadded)
	copy(paddedIndex, indexUnpadded)
	blob = append(blob, paddedIndex...)
	blob = append(blob, dataBuf...)

	if uint64(len(blob)) != sizeBytes {
		return manifest.Entry{}, errs.Wrap(errs.KindTable, errs.CodeBrokenTableSize,
			"composed table blob length does not match reserved size", nil)
	}

	if err := w.file.WriteAt(int64(entry.MetaOff), blob); err != nil {
		return manifest.Entry{}, err
	}
	if err := w.file.Fsync(); err != nil {
		return manifest.Entry{}, err
	}
	w.heads[entry.MetaOff] = cachedHead{meta: meta, index: DecodeIndex(paddedIndex[:len(indexUnpadded)])}
	w.log.Info("flushed level-%d table: entries=%d sizeBytes=%d metaOff=%d", level, len(sorted), sizeBytes, entry.MetaOff)
	return entry, nil
}

// ReadHead returns the decoded meta page and block index for manifest
// entry i, memoized by metaOff.
func (w *Writer) ReadHead(i int) (Meta, []IndexEntry, error) {
	e := w.page.Entries[i]
	if cached, ok := w.heads[e.MetaOff]; ok {
		return cached.meta, cached.index, nil
	}

	metaBuf, err := w.file.ReadExact(int64(e.MetaOff), int(w.blockSize))
	if err != nil {
		return Meta{}, nil, err
	}
	meta, err := DecodeMeta(metaBuf)
	if err != nil {
		return Meta{}, nil, err
	}

	indexLenPadded := codec.AlignUpInt(int(meta.IndexLen), 8)
	indexBuf, err := w.file.ReadExact(int64(meta.IndexOff), indexLenPadded)
	if err != nil {
		return Meta{}, nil, err
	}
	index := DecodeIndex(indexBuf[:meta.IndexLen])

	w.heads[e.MetaOff] = cachedHead{meta: meta, index: index}
	return meta, index, nil
}

// AggHeads returns the indices of every manifest entry at the given level,
// in admission order (oldest first).
func (w *Writer) AggHeads(level uint16) []int {
	var out []int
	for i, e := range w.page.Entries {
		if e.Level == level {
			out = append(out, i)
		}
	}
	return out
}

// LevelSize sums entryCount across every table at the given level.
func (w *Writer) LevelSize(level uint16) (uint32, error) {
	var total uint32
	for _, i := range w.AggHeads(level) {
		meta, _, err := w.ReadHead(i)
		if err != nil {
			return 0, err
		}
		total += meta.EntryCount
	}
	return total, nil
}

// EntryCount returns the number of admitted tables currently in the
// manifest page.
func (w *Writer) EntryCount() int { return len(w.page.Entries) }
