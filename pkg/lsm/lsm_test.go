package lsm

import "testing"

func TestPutGetDelete(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("a"), []byte("1"))
	v, tombstone, ok := s.Get([]byte("a"))
	if !ok || tombstone || string(v) != "1" {
		t.Fatalf("Get = %q, %v, %v", v, tombstone, ok)
	}

	s.Delete([]byte("a"))
	_, tombstone, ok = s.Get([]byte("a"))
	if !ok || !tombstone {
		t.Fatalf("expected tombstone after delete, got ok=%v tombstone=%v", ok, tombstone)
	}
}

func TestNeedsFlushAtThreshold(t *testing.T) {
	s := New(32)
	if s.NeedsFlush() {
		t.Fatal("empty memtable should not need flush")
	}
	s.Put([]byte("key"), []byte("value-long-enough-to-cross-threshold"))
	if !s.NeedsFlush() {
		t.Fatal("expected NeedsFlush after crossing threshold")
	}
}

func TestFreezeClearLivePreservesSnapshot(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("a"), []byte("1"))
	snap := s.Freeze()
	s.ClearLive()

	if s.Live().Len() != 0 {
		t.Fatalf("live should be empty after ClearLive, got %d entries", s.Live().Len())
	}
	v, _, ok := snap.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("frozen snapshot should still have a=1, got %q, %v", v, ok)
	}

	s.Put([]byte("b"), []byte("2"))
	if _, _, ok := snap.Get([]byte("b")); ok {
		t.Fatal("write to live memtable after clear leaked into frozen snapshot")
	}

	s.DiscardFrozen()
	if s.Frozen() != nil {
		t.Fatal("expected Frozen() to be nil after DiscardFrozen")
	}
}

func TestRecoveryMarkerConsumedOnce(t *testing.T) {
	s := New(1 << 20)
	if s.ConsumeRecovery() {
		t.Fatal("fresh State should not report recovery active")
	}

	s.BeginRecovery(5)
	if !s.ConsumeRecovery() {
		t.Fatal("expected ConsumeRecovery to report true once armed")
	}
	if s.ConsumeRecovery() {
		t.Fatal("ConsumeRecovery should only fire once")
	}
}

func TestRecoveryMarkerZeroLsnBehavesAsNoRecovery(t *testing.T) {
	s := New(1 << 20)
	s.BeginRecovery(0)
	if s.ConsumeRecovery() {
		t.Fatal("a pre-recovery lastLsn of 0 is treated as no recovery, per recoverFlush <= 0")
	}
}
