package exec32

import (
	"testing"

	"mipsemu/internal/cp0"
	"mipsemu/internal/cpu"
)

func newTestCPU(t *testing.T) *cpu.CPU {
	t.Helper()
	c := cpu.New(cpu.Config{RAMSize: 1 << 16, TLBConfig: cp0.Config{}})
	c.Reset(0)
	return c
}

func encodeI(op OpCode, rs, rt uint8, imm uint16) uint32 {
	return uint32(op)<<26 | uint32(rs)<<21 | uint32(rt)<<16 | uint32(imm)
}

func encodeR(rs, rt, rd, shamt, funct uint8) uint32 {
	return uint32(rs)<<21 | uint32(rt)<<16 | uint32(rd)<<11 | uint32(shamt)<<6 | uint32(funct)
}

func TestAddiuAddsSignExtendedImmediate(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetGPR(1, 10)
	Step(c, encodeI(OpADDIU, 1, 2, 0xFFFF)) // imm = -1
	if got := c.Regs.GPR(2); got != 9 {
		t.Fatalf("addiu: got %d, want 9", got)
	}
	if c.Regs.PC != 4 {
		t.Fatalf("pc: got %#x, want 4", c.Regs.PC)
	}
}

func TestAddOverflowRaisesException(t *testing.T) {
	c := newTestCPU(t)
	c.Reset(0x8000_0000)
	c.Regs.SetGPR(1, 0x7FFFFFFF)
	c.Regs.SetGPR(2, 1)
	Step(c, encodeR(1, 2, 3, 0, FnADD))
	if c.Regs.GPR(3) != 0x8000_0000 {
		t.Fatalf("overflowed add writes rd before trapping: got %#x, want 0x80000000", c.Regs.GPR(3))
	}
	if c.Regs.PC == 0x8000_0004 {
		t.Fatalf("overflow should redirect to the exception vector, not fall through")
	}
}

func TestBeqTakenArmesDelaySlotThenJumps(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetGPR(4, 7)
	c.Regs.SetGPR(5, 7)
	c.Reset(0x1000)

	Step(c, encodeI(OpBEQ, 4, 5, 2)) // branch +8 bytes past the delay slot
	if c.Regs.PC != 0x1004 {
		t.Fatalf("branch must execute the delay slot first: pc=%#x", c.Regs.PC)
	}

	Step(c, encodeI(OpADDIU, 0, 1, 0)) // delay-slot instruction: addiu $1, $0, 0
	if c.Regs.PC != 0x1000+4+8 {
		t.Fatalf("after delay slot pc should be branch target: got %#x", c.Regs.PC)
	}
}

func TestLoadStoreWordRoundTrips(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetGPR(1, 0x8000_0100) // KSEG0 -> DRAM
	c.Regs.SetGPR(2, 0xDEADBEEF)

	Step(c, encodeI(OpSW, 1, 2, 0))
	Step(c, encodeI(OpLW, 1, 3, 0))

	if got := c.Regs.GPR(3); got != 0xDEADBEEF {
		t.Fatalf("lw after sw: got %#x, want 0xdeadbeef", got)
	}
}

func TestUnknownEncodingHalts(t *testing.T) {
	c := newTestCPU(t)
	if !Step(c, 0x7C00_003F) { // SPECIAL3 with an unassigned funct
		t.Fatalf("expected an unrecognized SPECIAL3 funct to halt")
	}
}
