package memtable

import (
	"fmt"
	"testing"
)

func TestMapPutGet(t *testing.T) {
	m := NewMap()
	m.Put([]byte("b"), []byte("2"))
	m.Put([]byte("a"), []byte("1"))
	m.Put([]byte("c"), []byte("3"))

	v, tombstone, ok := m.Get([]byte("a"))
	if !ok || tombstone || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v, %v", v, tombstone, ok)
	}
	if _, _, ok := m.Get([]byte("missing")); ok {
		t.Fatal("expected missing key to be absent")
	}
}

func TestMapPutOverwritesInPlace(t *testing.T) {
	m := NewMap()
	m.Put([]byte("a"), []byte("1"))
	m.Put([]byte("a"), []byte("2"))
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (overwrite must not grow the map)", m.Len())
	}
	v, _, _ := m.Get([]byte("a"))
	if string(v) != "2" {
		t.Fatalf("Get(a) = %q, want 2", v)
	}
}

func TestMapDeleteIsTombstoneNotAbsence(t *testing.T) {
	m := NewMap()
	m.Put([]byte("a"), []byte("1"))
	m.Delete([]byte("a"))

	_, tombstone, ok := m.Get([]byte("a"))
	if !ok {
		t.Fatal("deleted key should still be present as a tombstone")
	}
	if !tombstone {
		t.Fatal("expected tombstone=true after Delete")
	}
}

func TestMapOrderedIteration(t *testing.T) {
	m := NewMap()
	keys := []string{"banana", "apple", "cherry", "date"}
	for _, k := range keys {
		m.Put([]byte(k), []byte(k))
	}

	it := m.NewIterator()
	it.SeekToFirst()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	want := []string{"apple", "banana", "cherry", "date"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMapFreezeThenClearPreservesSnapshot(t *testing.T) {
	m := NewMap()
	for i := 0; i < 5; i++ {
		m.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
	}

	frozen := m.Freeze()
	m.Clear()
	m.Put([]byte("new"), []byte("1"))

	if frozen.Len() != 5 {
		t.Fatalf("frozen.Len() = %d, want 5", frozen.Len())
	}
	if m.Len() != 1 {
		t.Fatalf("live.Len() = %d, want 1", m.Len())
	}
	if !frozen.Frozen() {
		t.Fatal("snapshot should report Frozen() == true")
	}
	if _, _, ok := frozen.Get([]byte("new")); ok {
		t.Fatal("frozen snapshot must not see writes made to the live map after Clear")
	}
}

func TestMapPutOnFrozenPanics(t *testing.T) {
	m := NewMap()
	m.Put([]byte("a"), []byte("1"))
	frozen := m.Freeze()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic writing to a frozen snapshot")
		}
	}()
	frozen.Put([]byte("b"), []byte("2"))
}

func TestMapApproximateSizeGrows(t *testing.T) {
	m := NewMap()
	if m.Size() != 0 {
		t.Fatalf("expected initial size 0, got %d", m.Size())
	}
	m.Put([]byte("key1"), []byte("value1"))
	first := m.Size()
	if first <= 0 {
		t.Fatalf("expected size > 0 after insert, got %d", first)
	}
	m.Put([]byte("key2"), []byte("a longer value than before"))
	if m.Size() <= first {
		t.Fatalf("expected size to grow after second insert, got %d (was %d)", m.Size(), first)
	}
}
