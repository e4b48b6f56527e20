package soc

import "testing"

func TestSocIDReadsConstant(t *testing.T) {
	b := New()
	if got := b.ReadReg32(OffSocID); got != socID {
		t.Fatalf("SOC_ID: got %#x, want %#x", got, socID)
	}
}

func TestUnlistedOffsetReadsZeroAndIgnoresWrites(t *testing.T) {
	b := New()
	b.WriteReg32(0x08, 0xFFFFFFFF)
	if got := b.ReadReg32(0x08); got != 0 {
		t.Fatalf("unlisted offset: got %#x, want 0", got)
	}
}

func TestRSTResetFullChipBitFiresCallback(t *testing.T) {
	b := New()
	fired := false
	b.OnResetRequest = func() { fired = true }

	b.WriteReg32(OffRSTReset, 0x01) // some other bit, not the full-chip one
	if fired {
		t.Fatalf("unrelated RST_RESET bits must not request a reset")
	}

	b.WriteReg32(OffRSTReset, rstResetFullChip)
	if !fired {
		t.Fatalf("expected the full-chip reset bit to fire OnResetRequest")
	}
}

func TestMiscIntrMaskIsReadWrite(t *testing.T) {
	b := New()
	b.WriteReg32(OffMiscIntrMask, 0xABCD)
	if got := b.ReadReg32(OffMiscIntrMask); got != 0xABCD {
		t.Fatalf("MISC_INTR_MASK: got %#x, want 0xabcd", got)
	}
}
