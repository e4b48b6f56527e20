package exec16

import "mipsemu/internal/cpu"

// execI8 handles seven of the I8 major op's eight sub-ops, selected by
// bits [10:8]: BTEQZ/BTNEZ (branch on the T register), SWRASP/ADJSP
// (stack pointer housekeeping), SVRS (SAVE/RESTORE), and MOV32R/MOVR32
// (register moves that reach the non-3-bit-encodable GPRs). Sub-op 7
// is not decoded and halts.
func execI8(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool) bool {
	sub := uint8((instr16 >> 8) & 0x7)

	switch sub {
	case i8BTEQZ:
		return execBCondT(c, pc, instr16, ext, prefixed, c.Regs.GPR(tReg) == 0)
	case i8BTNEZ:
		return execBCondT(c, pc, instr16, ext, prefixed, c.Regs.GPR(tReg) != 0)
	case i8SWRASP:
		// Store RA at SP+offset (8-bit word offset, <<2).
		off := uint32(instr16&0xFF) << 2
		if code, ok := c.Mem.StoreWord(c.Regs.GPR(spReg)+off, c.Regs.GPR(raReg)); !ok {
			c.RaiseException(code, pc, c.Regs.GPR(spReg)+off)
			return false
		}
	case i8ADJSP:
		imm := imm8Signed(instr16, ext, prefixed)
		c.Regs.SetGPR(spReg, c.Regs.GPR(spReg)+(imm<<3))
	case i8SVRS:
		return execSaveRestore(c, pc, instr16, ext, prefixed)
	case i8MOV32R:
		// Move rx (3-bit encoded) into a full 5-bit-encoded GPR
		// named by bits [4:0].
		dst := uint8(instr16 & 0x1F)
		rx := regMap3[(instr16>>8)&0x7]
		c.Regs.SetGPR(dst, c.Regs.GPR(rx))
	case i8MOVR32:
		// The inverse: a full 5-bit-encoded GPR into rx.
		src := uint8(instr16 & 0x1F)
		rx := regMap3[(instr16>>8)&0x7]
		c.Regs.SetGPR(rx, c.Regs.GPR(src))
	default:
		return true
	}
	advancePC16(c, pc, 2)
	return false
}

// execBCondT is BTEQZ/BTNEZ: identical to BEQZ/BNEZ but tested against
// the T register instead of an rx operand.
func execBCondT(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool, taken bool) bool {
	var off uint32
	if prefixed {
		off = signExt(extendImm16(ext, instr16), 16)
	} else {
		off = signExt(uint32(instr16&0xFF), 8)
	}
	if taken {
		target := pc + 2 + (off << 1)
		c.Regs.ArmDelaySlot(pc, target)
	}
	c.Regs.PC = pc + 2
	return false
}

// aregsArgSlots/aregsStaticSlots implement the extended SAVE/RESTORE
// aregs field's two independent counts (spec.md §4.7 "up to four
// outgoing-argument slots"): how many of $a0-$a3 the frame spills as
// outgoing arguments (SAVE only), and how many of $a3-$a0 it spills as
// incoming static arguments (both SAVE and RESTORE). Grounded on
// _examples/original_source/src/exec_mips16.rs's aregs match arms.
func aregsArgSlots(aregs uint32) int {
	switch aregs {
	case 4, 5, 6, 7:
		return 1
	case 8, 9, 10:
		return 2
	case 12, 13:
		return 3
	case 14:
		return 4
	default:
		return 0
	}
}

func aregsStaticSlots(aregs uint32) int {
	switch aregs {
	case 1, 5, 9, 13:
		return 1
	case 2, 6, 10:
		return 2
	case 3, 7:
		return 3
	case 11:
		return 4
	default:
		return 0
	}
}

// xsregsGPR maps the extended static-register count's 1-based index to
// its GPR number: $18-$23 ($s2-$s7), then $30 for the seventh.
func xsregsGPR(i uint32) uint8 {
	if i == 7 {
		return 30
	}
	return uint8(18 + (i - 1))
}

// pushWord stores val just below addr and returns the decremented
// address, or raises an exception and reports failure.
func pushWord(c *cpu.CPU, pc uint32, addr uint32, val uint32) (uint32, bool) {
	addr -= 4
	if code, ok := c.Mem.StoreWord(addr, val); !ok {
		c.RaiseException(code, pc, addr)
		return addr, false
	}
	return addr, true
}

// popWord loads the word just below addr and returns it with the
// decremented address, or raises an exception and reports failure.
func popWord(c *cpu.CPU, pc uint32, addr uint32) (val uint32, next uint32, ok bool) {
	addr -= 4
	val, code, ok := c.Mem.LoadWord(addr)
	if !ok {
		c.RaiseException(code, pc, addr)
		return 0, addr, false
	}
	return val, addr, true
}

// execSaveRestore implements the compressed prologue/epilogue: bit 7
// set is SAVE (push RA/static regs and any extended arg spills, then
// shrink the frame by frameSize), clear is RESTORE (the inverse,
// growing the frame back). spec.md §4.7. The extended form additionally
// spills outgoing-argument registers, incoming static-argument
// registers, and the extended static-register range $s2-$s7/$30, none
// of which the base 16-bit encoding has room to name.
func execSaveRestore(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool) bool {
	save := instr16&0x80 != 0
	ra := instr16&0x40 != 0
	s0 := instr16&0x20 != 0
	s1 := instr16&0x10 != 0
	fs := uint32(instr16 & 0xF)

	var aregs, xsregs uint32
	if prefixed {
		aregs = uint32(ext & 0xF)
		xsregs = uint32((ext >> 8) & 0x7)
		fs |= uint32(ext & 0xF0)
	}

	if save {
		return execSave(c, pc, prefixed, ra, s0, s1, fs, aregs, xsregs)
	}
	return execRestore(c, pc, prefixed, ra, s0, s1, fs, aregs, xsregs)
}

func execSave(c *cpu.CPU, pc uint32, prefixed bool, ra, s0, s1 bool, fs, aregs, xsregs uint32) bool {
	sp := c.Regs.GPR(spReg)
	slot := sp

	if prefixed {
		for i := 0; i < aregsArgSlots(aregs); i++ {
			addr := sp + uint32(i)*4
			if code, ok := c.Mem.StoreWord(addr, c.Regs.GPR(uint8(4+i))); !ok {
				c.RaiseException(code, pc, addr)
				return false
			}
		}
	}

	var ok bool
	if ra {
		if slot, ok = pushWord(c, pc, slot, c.Regs.GPR(raReg)); !ok {
			return false
		}
	}
	if prefixed {
		for i := xsregs; i >= 1; i-- {
			if slot, ok = pushWord(c, pc, slot, c.Regs.GPR(xsregsGPR(i))); !ok {
				return false
			}
		}
	}
	if s1 {
		if slot, ok = pushWord(c, pc, slot, c.Regs.GPR(17)); !ok {
			return false
		}
	}
	if s0 {
		if slot, ok = pushWord(c, pc, slot, c.Regs.GPR(16)); !ok {
			return false
		}
	}
	if prefixed {
		for i := 0; i < aregsStaticSlots(aregs); i++ {
			if slot, ok = pushWord(c, pc, slot, c.Regs.GPR(uint8(7-i))); !ok {
				return false
			}
		}
	}

	c.Regs.SetGPR(spReg, sp-frameSize(fs, prefixed))
	advanceSaveRestorePC(c, pc, prefixed)
	return false
}

func execRestore(c *cpu.CPU, pc uint32, prefixed bool, ra, s0, s1 bool, fs, aregs, xsregs uint32) bool {
	sp := c.Regs.GPR(spReg)
	newSP := sp + frameSize(fs, prefixed)
	slot := newSP

	var val uint32
	var ok bool
	if ra {
		if val, slot, ok = popWord(c, pc, slot); !ok {
			return false
		}
		c.Regs.SetGPR(raReg, val)
	}
	if prefixed {
		for i := xsregs; i >= 1; i-- {
			if val, slot, ok = popWord(c, pc, slot); !ok {
				return false
			}
			c.Regs.SetGPR(xsregsGPR(i), val)
		}
	}
	if s1 {
		if val, slot, ok = popWord(c, pc, slot); !ok {
			return false
		}
		c.Regs.SetGPR(17, val)
	}
	if s0 {
		if val, slot, ok = popWord(c, pc, slot); !ok {
			return false
		}
		c.Regs.SetGPR(16, val)
	}
	if prefixed {
		for i := 0; i < aregsStaticSlots(aregs); i++ {
			if val, slot, ok = popWord(c, pc, slot); !ok {
				return false
			}
			c.Regs.SetGPR(uint8(7-i), val)
		}
	}

	c.Regs.SetGPR(spReg, newSP)
	advanceSaveRestorePC(c, pc, prefixed)
	return false
}

// frameSize scales the SAVE/RESTORE frame-size field by 8; the
// non-extended encoding treats an all-zero field as 128 (the only way
// its 4 bits can reach that value), while the extended 8-bit field
// just encodes 0 as a genuinely empty frame.
func frameSize(fs uint32, prefixed bool) uint32 {
	if !prefixed && fs == 0 {
		return 128
	}
	return fs << 3
}

func advanceSaveRestorePC(c *cpu.CPU, pc uint32, prefixed bool) {
	if prefixed {
		advancePC16(c, pc, 4)
		return
	}
	advancePC16(c, pc, 2)
}
