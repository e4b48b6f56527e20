package cpu

import (
	"testing"

	"mipsemu/internal/cp0"
	"mipsemu/internal/excode"
)

func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	return New(Config{RAMSize: 1 << 16})
}

func TestResetSetsPCAndClearsRegisters(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetGPR(5, 0x1234)
	c.Reset(0xBFC00000)
	if c.Regs.PC != 0xBFC00000 {
		t.Fatalf("PC: got %#x, want 0xbfc00000", c.Regs.PC)
	}
	if c.Regs.GPR(5) != 0 {
		t.Fatalf("Reset must clear the register file")
	}
}

// clearExcFlags drops Status.EXL/ERL, which cp0.New's reset leaves set
// (BEV|ERL), so a test can exercise the "not already in an exception"
// EPC-writing path instead of the ErrorEPC one.
func clearExcFlags(c *CPU) {
	c.CP0.SetStatus(c.CP0.Status() &^ (cp0.StatusEXL | cp0.StatusERL))
}

func TestRaiseExceptionOutsideDelaySlotRecordsFaultingPC(t *testing.T) {
	c := newTestCPU(t)
	c.Reset(0x8000_0000)
	clearExcFlags(c)

	c.RaiseException(excode.Ov, 0x8000_1000, 0)

	epc := c.CP0.ReadRaw(cp0.RegEPC, 0)
	if epc != 0x8000_1000 {
		t.Fatalf("EPC: got %#x, want 0x80001000", epc)
	}
	if c.CP0.Cause()&cp0.CauseBD != 0 {
		t.Fatalf("Cause.BD must be clear outside a delay slot")
	}
	if c.CP0.Status()&cp0.StatusEXL == 0 {
		t.Fatalf("expected Status.EXL to be set by the exception")
	}
}

func TestRaiseExceptionInDelaySlotRecordsBranchPCAndSetsBD(t *testing.T) {
	c := newTestCPU(t)
	c.Reset(0x8000_0000)
	clearExcFlags(c)
	c.Regs.ArmDelaySlot(0x8000_2000, 0x8000_3000)

	c.RaiseException(excode.AdEL, 0x8000_2004, 0)

	epc := c.CP0.ReadRaw(cp0.RegEPC, 0)
	if epc != 0x8000_2000 {
		t.Fatalf("EPC: got %#x, want the branch's own PC 0x80002000", epc)
	}
	if c.CP0.Cause()&cp0.CauseBD == 0 {
		t.Fatalf("expected Cause.BD to be set for a delay-slot exception")
	}
	if c.Regs.DelayEn {
		t.Fatalf("the pending delay slot must be discarded once redirected into the exception")
	}
}

func TestRaiseExceptionWhileAlreadyInExceptionWritesErrorEPC(t *testing.T) {
	c := newTestCPU(t)
	c.Reset(0x8000_0000) // power-on leaves Status.ERL set

	c.RaiseException(excode.Ov, 0x8000_6000, 0)

	if got := c.CP0.ReadRaw(cp0.RegErrorEPC, 0); got != 0x8000_6000 {
		t.Fatalf("ErrorEPC: got %#x, want 0x80006000", got)
	}
	if got := c.CP0.ReadRaw(cp0.RegEPC, 0); got != 0 {
		t.Fatalf("EPC must be left untouched when the fault nests inside an existing exception: got %#x", got)
	}
}

func TestERETRestoresFromEPCWhenOnlyEXLSet(t *testing.T) {
	c := newTestCPU(t)
	c.Reset(0x8000_0000)
	c.CP0.SetStatus(c.CP0.Status() &^ cp0.StatusERL | cp0.StatusEXL)
	c.CP0.WriteDirect(cp0.RegEPC, 0, 0x8000_4000)

	target := c.ERET()
	if target != 0x8000_4000 {
		t.Fatalf("ERET target: got %#x, want 0x80004000", target)
	}
	if c.CP0.Status()&cp0.StatusEXL != 0 {
		t.Fatalf("ERET must clear Status.EXL")
	}
}

func TestERETRestoresFromErrorEPCWhenERLSet(t *testing.T) {
	c := newTestCPU(t)
	c.Reset(0x8000_0000) // power-on leaves Status.ERL set
	c.CP0.WriteDirect(cp0.RegErrorEPC, 0, 0x8000_5000)

	target := c.ERET()
	if target != 0x8000_5000 {
		t.Fatalf("ERET target: got %#x, want 0x80005000", target)
	}
	if c.CP0.Status()&cp0.StatusERL != 0 {
		t.Fatalf("ERET must clear Status.ERL")
	}
}
