package config

import "testing"

func TestNewDefaultConfigValidates(t *testing.T) {
	c := NewDefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsNonPowerOfTwoBlockSize(t *testing.T) {
	c := NewDefaultConfig()
	c.BlockSize = 4000
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for non-power-of-two block size")
	}
}

func TestValidateRejectsJournalSizeNotMultipleOfBlockSize(t *testing.T) {
	c := NewDefaultConfig()
	c.JournalSize = c.JournalSize + 1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for journal size not a multiple of block size")
	}
}

func TestValidateRejectsNonPositiveMaxInflight(t *testing.T) {
	c := NewDefaultConfig()
	c.MaxInflight = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for non-positive max inflight")
	}
}

func TestValidateRejectsNegativeMaxFileSize(t *testing.T) {
	c := NewDefaultConfig()
	c.MaxFileSize = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative max file size")
	}
}

func TestLayoutOffsets(t *testing.T) {
	c := &Config{BlockSize: 4096, JournalSize: 256 * 4096}
	l := c.Layout()

	if l.SuperblockA != 0 {
		t.Fatalf("SuperblockA = %d, want 0", l.SuperblockA)
	}
	if l.SuperblockB != 4096 {
		t.Fatalf("SuperblockB = %d, want 4096", l.SuperblockB)
	}
	if l.JournalStart != 2*4096 {
		t.Fatalf("JournalStart = %d, want %d", l.JournalStart, 2*4096)
	}
	wantJournalEnd := l.JournalStart + c.JournalSize
	if l.JournalEnd != wantJournalEnd {
		t.Fatalf("JournalEnd = %d, want %d", l.JournalEnd, wantJournalEnd)
	}
	if l.ManifestStart != l.JournalEnd {
		t.Fatalf("ManifestStart = %d, want %d", l.ManifestStart, l.JournalEnd)
	}
	if l.TablesStart != l.ManifestStart+uint64(c.BlockSize) {
		t.Fatalf("TablesStart = %d, want %d", l.TablesStart, l.ManifestStart+uint64(c.BlockSize))
	}
}
