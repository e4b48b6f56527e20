package spi

import "testing"

type fakeSlave struct {
	selects []bool
	shifted []byte
	reply   byte
}

func (s *fakeSlave) Select(selected bool)     { s.selects = append(s.selects, selected) }
func (s *fakeSlave) Shift(out byte) (in byte) { s.shifted = append(s.shifted, out); return s.reply }

func TestFlashMappedIsThePowerOnDefault(t *testing.T) {
	b := New()
	if !b.FlashMapped() {
		t.Fatalf("FUNC_SEL resets to 0, which must select flash-mapped mode so the core can fetch its boot code")
	}
}

func TestFuncSelBitOneSelectsRegisterWindow(t *testing.T) {
	b := New()
	b.WriteReg32(OffFuncSel, 1)
	if b.FlashMapped() {
		t.Fatalf("FUNC_SEL bit 0 set must select the register window, not flash-mapped mode")
	}
}

func TestCtrlChipSelectDrivesSlaveSelect(t *testing.T) {
	b := New()
	slave := &fakeSlave{}
	b.AttachSlave(0, slave)

	b.WriteReg32(OffCtrl, ctrlCS0)
	if len(slave.selects) != 1 || slave.selects[0] != true {
		t.Fatalf("expected slave 0 to be selected: %v", slave.selects)
	}

	b.WriteReg32(OffCtrl, 0) // TERMINATE
	if len(slave.selects) != 2 || slave.selects[1] != false {
		t.Fatalf("expected slave 0 to be deselected on TERMINATE: %v", slave.selects)
	}
}

func TestShiftCntClocksSelectedSlave(t *testing.T) {
	b := New()
	slave := &fakeSlave{reply: 0xAB}
	b.AttachSlave(1, slave)
	b.WriteReg32(OffCtrl, ctrlCS1)

	b.WriteReg32(OffShiftDataOut, 0x42)
	b.WriteReg32(OffShiftCnt, 1)

	if len(slave.shifted) != 1 || slave.shifted[0] != 0x42 {
		t.Fatalf("expected the selected slave to see the shifted-out byte: %v", slave.shifted)
	}
	if got := b.ReadReg32(OffShiftDataIn); got != 0xAB {
		t.Fatalf("SHIFT_DATAIN: got %#x, want 0xab", got)
	}
}

func TestUnselectedShiftReadsBackFF(t *testing.T) {
	b := New()
	b.WriteReg32(OffShiftDataOut, 0x00)
	b.WriteReg32(OffShiftCnt, 1)
	if got := b.ReadReg32(OffShiftDataIn); got != 0xFF {
		t.Fatalf("shift with no slave selected: got %#x, want 0xff", got)
	}
}

func TestRemapDisableToggleInvokesCallback(t *testing.T) {
	b := New()
	var got []bool
	b.OnRemapChange = func(disabled bool) { got = append(got, disabled) }

	b.WriteReg32(OffCtrl, ctrlRemapDisable)
	b.WriteReg32(OffCtrl, 0)

	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("expected two toggle callbacks [true false], got %v", got)
	}
}
