// Package submission implements the single cooperative loop that is the
// sole mutator of the WAL, superblock, memtable, and table writer. Every
// accepted operation passes through here: journal append, superblock
// checkpoint, apply, and — on threshold — freeze/flush/truncate, always in
// that order.
package submission

import (
	"runtime"
	"time"

	"github.com/jeremytregunna/ringdb/pkg/common/log"
	"github.com/jeremytregunna/ringdb/pkg/lsm"
	"github.com/jeremytregunna/ringdb/pkg/queue"
	"github.com/jeremytregunna/ringdb/pkg/stats"
	"github.com/jeremytregunna/ringdb/pkg/superblock"
	"github.com/jeremytregunna/ringdb/pkg/table"
	"github.com/jeremytregunna/ringdb/pkg/wal"
)

// Loop drains the submission queue in bounded batches and drives every
// other component's state transitions. It is not safe for concurrent use;
// exactly one goroutine should call Iterate/Run.
type Loop struct {
	queue       *queue.Queue
	journal     *wal.Journal
	sb          *superblock.Manager
	lsm         *lsm.State
	tw          *table.Writer
	maxInflight int
	stats       stats.Collector

	log log.Logger
}

// New constructs a Loop wiring together the components it coordinates.
func New(q *queue.Queue, j *wal.Journal, sb *superblock.Manager, l *lsm.State, tw *table.Writer, maxInflight int, collector stats.Collector) *Loop {
	return &Loop{
		queue:       q,
		journal:     j,
		sb:          sb,
		lsm:         l,
		tw:          tw,
		maxInflight: maxInflight,
		stats:       collector,
		log:         log.ForComponent("submission"),
	}
}

// Iterate runs exactly one batch: drain, journal, checkpoint, apply, and —
// if the memtable has crossed its threshold — freeze/flush/truncate. It
// returns the number of operations processed.
func (l *Loop) Iterate() (int, error) {
	ops := l.queue.PopUpTo(l.maxInflight)
	if len(ops) == 0 {
		runtime.Gosched()
		return 0, nil
	}

	recovering := l.lsm.ConsumeRecovery()
	if !recovering {
		walOps := make([]wal.OpInput, len(ops))
		for i, op := range ops {
			walOps[i] = wal.OpInput{Op: op.Kind, Key: op.Key, Value: op.Value}
		}
		if _, err := l.journal.AppendMany(walOps); err != nil {
			l.log.Error("wal append failed, failing batch: %v", err)
			for _, op := range ops {
				op.Complete(nil, err)
			}
			return 0, err
		}
	}

	if _, err := l.sb.Checkpoint(superblock.Update{
		CheckpointLSN: uint64(l.journal.LastLsn()),
		JHead:         l.journal.Head(),
		JTail:         l.journal.Tail(),
	}); err != nil {
		return 0, err
	}

	for _, op := range ops {
		l.apply(op, recovering)
		runtime.Gosched()
	}

	if l.lsm.NeedsFlush() {
		if err := l.flush(); err != nil {
			return len(ops), err
		}
	}

	if l.stats != nil {
		l.stats.TrackMemTableSize(uint64(l.lsm.Live().Size()))
	}
	return len(ops), nil
}

func (l *Loop) apply(op *queue.Op, replay bool) {
	switch op.Kind {
	case queue.KindSet:
		l.lsm.Put(op.Key, op.Value)
		if l.stats != nil {
			l.stats.TrackOperation(stats.OpPut)
		}
		op.Complete(nil, nil)
	case queue.KindDel:
		l.lsm.Delete(op.Key)
		if l.stats != nil {
			l.stats.TrackOperation(stats.OpDelete)
		}
		op.Complete(nil, nil)
	case queue.KindGet:
		value, tombstone, ok := l.lsm.Get(op.Key)
		if l.stats != nil {
			l.stats.TrackOperation(stats.OpGet)
		}
		if !ok || tombstone {
			op.Complete(nil, nil)
			return
		}
		op.Complete(value, nil)
	case queue.KindCheck:
		if replay {
			// A replayed check is a no-op; it does not re-run the checkpoint.
			op.Complete(nil, nil)
			return
		}
		if l.stats != nil {
			l.stats.TrackOperation(stats.OpCheck)
		}
		if l.journal.LastLsn() >= 0 {
			if _, err := l.journal.Checkpoint(uint64(l.journal.LastLsn()), l.sb); err != nil {
				op.Complete(nil, err)
				return
			}
		}
		op.Complete(nil, nil)
	}
}

// flush freezes the live memtable, clears the live memtable, writes the
// frozen snapshot to a level-0 table (tombstones included, so a delete
// shadows any older value already on disk), and truncates the journal up to
// the lastLsn observed at batch end.
func (l *Loop) flush() error {
	snapshot := l.lsm.Freeze()
	l.lsm.ClearLive()

	it := snapshot.NewIterator()
	it.SeekToFirst()
	var pairs []table.KV
	for it.Valid() {
		pairs = append(pairs, table.KV{Key: it.Key(), Value: it.Value(), Tombstone: it.IsTombstone()})
		it.Next()
	}

	if len(pairs) > 0 {
		if _, err := l.tw.FlushSnapshot(pairs, 0, 0, uint64(l.journal.LastLsn())); err != nil {
			return err
		}
	}
	l.lsm.DiscardFrozen()
	if l.stats != nil {
		l.stats.TrackFlush()
	}
	l.log.Info("flushed memtable: %d entries (tombstones included)", len(pairs))

	if lastLsn := l.journal.LastLsn(); lastLsn >= 0 {
		if _, err := l.journal.Checkpoint(uint64(lastLsn), l.sb); err != nil {
			return err
		}
	}
	return nil
}

// Run drains the queue repeatedly until d has elapsed.
func (l *Loop) Run(d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if _, err := l.Iterate(); err != nil {
			return err
		}
	}
	return nil
}
