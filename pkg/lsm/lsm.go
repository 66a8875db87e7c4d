// Package lsm holds the live memtable generation and the single frozen
// snapshot awaiting flush, and tracks the recovery marker the submission
// loop consults while replaying the journal.
package lsm

import (
	"github.com/jeremytregunna/ringdb/pkg/common/log"
	"github.com/jeremytregunna/ringdb/pkg/memtable"
)

// NoRecovery is the recoverFlush sentinel meaning "not currently replaying".
const NoRecovery int64 = -1

// State holds the live memtable, an optional frozen snapshot, and the
// flush threshold. It is mutated only by the submission loop.
type State struct {
	live     *memtable.Map
	frozen   *memtable.Map
	maxSize  int64

	recoverFlush int64

	log log.Logger
}

// New constructs a State with an empty live memtable and no frozen snapshot.
func New(maxSize int64) *State {
	return &State{
		live:         memtable.NewMap(),
		maxSize:      maxSize,
		recoverFlush: NoRecovery,
		log:          log.ForComponent("lsm"),
	}
}

// Put inserts key/value into the live memtable.
func (s *State) Put(key, value []byte) { s.live.Put(key, value) }

// Delete records a tombstone for key in the live memtable.
func (s *State) Delete(key []byte) { s.live.Delete(key) }

// Get returns the live memtable's value for key, if present. A tombstone
// counts as present-but-deleted: callers distinguish "absent" from
// "deleted" via the tombstone return.
func (s *State) Get(key []byte) (value []byte, tombstone bool, ok bool) {
	return s.live.Get(key)
}

// NeedsFlush reports whether the live memtable has reached the threshold.
func (s *State) NeedsFlush() bool {
	return s.live.Size() >= s.maxSize
}

// Freeze turns the live memtable into a read-only snapshot that shares its
// structure; no copy is made. The live
// memtable itself is not cleared here; the submission loop clears it once
// the snapshot has been handed to the table writer.
func (s *State) Freeze() *memtable.Map {
	s.frozen = s.live.Freeze()
	return s.frozen
}

// ClearLive detaches the live memtable from its current structure, leaving
// the frozen snapshot (if any) untouched.
func (s *State) ClearLive() {
	s.live.Clear()
}

// DiscardFrozen drops the frozen snapshot once it has been flushed.
func (s *State) DiscardFrozen() {
	s.frozen = nil
}

// Frozen returns the current frozen snapshot, or nil if there isn't one.
func (s *State) Frozen() *memtable.Map { return s.frozen }

// Live returns the live memtable. Used by pkg/store to cascade Get.
func (s *State) Live() *memtable.Map { return s.live }

// RecoverFlush returns the current recovery marker.
func (s *State) RecoverFlush() int64 { return s.recoverFlush }

// BeginRecovery records the pre-recovery lastLsn, so the submission loop
// knows to skip re-journaling replayed operations for exactly one batch.
func (s *State) BeginRecovery(preRecoveryLastLsn int64) {
	s.recoverFlush = preRecoveryLastLsn
	s.log.Info("recovery marker set: lastLsn=%d", preRecoveryLastLsn)
}

// ConsumeRecovery reports whether recovery is active and, if so, clears
// the marker — it is consulted at most once, for the first batch after
// boot.
func (s *State) ConsumeRecovery() bool {
	if s.recoverFlush <= 0 {
		return false
	}
	s.recoverFlush = NoRecovery
	return true
}
