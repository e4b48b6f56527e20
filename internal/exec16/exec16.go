// Package exec16 implements the MIPS16e compressed-instruction
// decoder/executor described in spec.md §4.7: the 5-bit major-opcode
// dispatch, the EXTEND prefix, the 3-bit register encoding, and the
// compressed frame-management ops (SAVE/RESTORE). internal/exec32
// establishes the decode-then-dispatch shape (a fields struct plus a
// big op switch) this package mirrors for the 16-bit encoding space;
// both executors share the same cpu.CPU register file, memory bus,
// and delay-slot bookkeeping.
//
// Bit assignments for the formats spec.md names but doesn't give a
// wire-level table for (RRI-A, I8, SAVE/RESTORE's aregs nibble, the
// EXTEND immediate merge rule) are this package's own consistent
// choice, documented at each format's decode site; they are not taken
// from a particular chip's data sheet.
package exec16

import (
	"mipsemu/internal/cpu"
	"mipsemu/internal/excode"
	"mipsemu/internal/utils"
)

// Major opcodes, the 5-bit field at bits [15:11] of the lower halfword.
const (
	Op16AddiuSP = 0x00
	Op16AddiuPC = 0x01
	Op16B       = 0x02
	Op16JAL     = 0x03
	Op16BEQZ    = 0x04
	Op16BNEZ    = 0x05
	Op16SHIFT   = 0x06
	Op16RRIA    = 0x07
	Op16ADDIU8  = 0x08
	Op16SLTI    = 0x09
	Op16SLTIU   = 0x0A
	Op16I8      = 0x0B
	Op16LB      = 0x0C
	Op16LH      = 0x0D
	Op16CMPI    = 0x0E
	Op16LBU     = 0x0F
	Op16LW      = 0x10
	Op16LHU     = 0x11
	Op16LWSP    = 0x12
	Op16SB      = 0x18
	Op16SH      = 0x19
	Op16SWSP    = 0x1A
	Op16SW      = 0x1C
	Op16EXTEND  = 0x1E
	Op16RR      = 0x1F
)

// SHIFT sub-op (bits [4:3] of the instruction word, see execShift).
const (
	shiftSLL = 0
	shiftSRL = 2
	shiftSRA = 3
)

// I8 sub-op (bits [10:8]).
const (
	i8BTEQZ   = 0
	i8BTNEZ   = 1
	i8SWRASP  = 2
	i8ADJSP   = 3
	i8SVRS    = 4 // SAVE/RESTORE
	i8MOV32R  = 5
	i8MOVR32  = 6
)

// RR funct (bits [4:0]).
const (
	rrJR    = 0x00
	rrJALR  = 0x01
	rrJRC   = 0x02
	rrJALRC = 0x03
	rrSLT   = 0x04
	rrSLTU  = 0x05
	rrSLLV  = 0x06
	rrBREAK = 0x07
	rrSRAV  = 0x08
	rrSRLV  = 0x09
	rrCMP   = 0x0A
	rrNEG   = 0x0B
	rrAND   = 0x0C
	rrOR    = 0x0D
	rrXOR   = 0x0E
	rrNOT   = 0x0F
	rrMFHI  = 0x10
	rrCNVT  = 0x11
	rrMFLO  = 0x12
	rrMULT  = 0x13
	rrMULTU = 0x14
	rrDIV   = 0x15
	rrDIVU  = 0x16
)

// CNVT sub-op, carried in the rx field.
const (
	cnvtZEB = 0
	cnvtZEH = 1
	cnvtSEB = 2
	cnvtSEH = 3
)

// tReg is the dedicated "T" register CMP/CMPI write into (spec.md
// §4.7 "CMP/CMPI (XOR into T)"). spReg/raReg are the dedicated stack
// and return-address registers MIPS16e never encodes explicitly.
const (
	tReg  = 24
	spReg = 29
	raReg = 31
)

// regMap3 translates a 3-bit encoded register field into its
// full GPR number (spec.md §4.7 "{0→16, 1→17, 2→2, …, 7→7}").
var regMap3 = [8]uint8{16, 17, 2, 3, 4, 5, 6, 7}

func signExt(v uint32, bits uint) uint32 {
	return utils.SignExtend(v, int(bits))
}

// extendImm16 merges an EXTEND halfword's low 11 bits with the real
// instruction's low 5 bits into a single 16-bit immediate, this
// package's uniform rule for every "extendable" 8-/11-bit field
// (spec.md §4.7 "promoting the next halfword's immediate to a 16- or
// 15-bit wide field").
func extendImm16(ext uint16, instr16 uint16) uint32 {
	return (uint32(ext&0x7FF) << 5) | uint32(instr16&0x1F)
}

// Step decodes and executes one MIPS16e instruction. raw is the
// 32-bit value internal/memory's fetch path already assembled per
// spec.md §4.5: if the first halfword's op is EXTEND or JAL, raw is
// (first<<16)|second; otherwise raw is the lone halfword in its upper
// 16 bits (first<<16, low 16 bits clear), so op1 comes from the same
// bits in both cases. halted mirrors exec32.Step's convention.
func Step(c *cpu.CPU, raw uint32) (halted bool) {
	pc := c.Regs.PC
	op1 := uint8((raw >> 27) & 0x1F)

	switch op1 {
	case Op16JAL:
		return execJAL(c, pc, raw)
	case Op16EXTEND:
		ext := uint16((raw >> 16) & 0x7FF)
		instr16 := uint16(raw & 0xFFFF)
		return dispatch(c, pc, instr16, ext, true)
	default:
		// Unprefixed: the fetch path left the lone halfword in the
		// upper 16 bits (raw = first<<16) so op1's bit-27 test above
		// lines up with the prefixed case; recover it from there.
		instr16 := uint16(raw >> 16)
		return dispatch(c, pc, instr16, 0, false)
	}
}

// dispatch handles every major op except JAL/JALX (handled directly
// by Step, since it alone spans two halfwords without an EXTEND).
func dispatch(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool) bool {
	op := uint8((instr16 >> 11) & 0x1F)
	rx := regMap3[(instr16>>8)&0x7]
	ry := regMap3[(instr16>>5)&0x7]

	switch op {
	case Op16AddiuSP:
		imm := addiuImm(instr16, ext, prefixed)
		c.Regs.SetGPR(rx, c.Regs.GPR(spReg)+imm)
	case Op16AddiuPC:
		imm := addiuImm(instr16, ext, prefixed)
		c.Regs.SetGPR(rx, (pc&^uint32(3))+4+imm)
	case Op16B:
		return execB(c, pc, instr16, ext, prefixed)
	case Op16BEQZ:
		return execBCond(c, pc, instr16, ext, prefixed, c.Regs.GPR(rx) == 0)
	case Op16BNEZ:
		return execBCond(c, pc, instr16, ext, prefixed, c.Regs.GPR(rx) != 0)
	case Op16SHIFT:
		return execShift(c, pc, instr16)
	case Op16RRIA:
		// RRI-A: rx = ry + sign-extended 4-bit immediate (this
		// package's ADDIU-only reading of the format).
		imm4 := uint32(instr16 & 0xF)
		if prefixed {
			imm4 = extendImm16(ext, instr16)
			c.Regs.SetGPR(rx, c.Regs.GPR(ry)+signExt(imm4, 16))
		} else {
			c.Regs.SetGPR(rx, c.Regs.GPR(ry)+signExt(imm4, 4))
		}
	case Op16ADDIU8:
		imm := imm8Signed(instr16, ext, prefixed)
		c.Regs.SetGPR(rx, c.Regs.GPR(rx)+imm)
	case Op16SLTI:
		imm := imm8Signed(instr16, ext, prefixed)
		c.Regs.SetGPR(tReg, boolToGPR(int32(c.Regs.GPR(rx)) < int32(imm)))
	case Op16SLTIU:
		imm := imm8Signed(instr16, ext, prefixed)
		c.Regs.SetGPR(tReg, boolToGPR(c.Regs.GPR(rx) < imm))
	case Op16CMPI:
		imm := imm8Signed(instr16, ext, prefixed)
		c.Regs.SetGPR(tReg, c.Regs.GPR(rx)^imm)
	case Op16I8:
		return execI8(c, pc, instr16, ext, prefixed)

	case Op16LB:
		return execLoad16(c, pc, instr16, ext, prefixed, rx, ry, 1, true)
	case Op16LBU:
		return execLoad16(c, pc, instr16, ext, prefixed, rx, ry, 1, false)
	case Op16LH:
		return execLoad16(c, pc, instr16, ext, prefixed, rx, ry, 2, true)
	case Op16LHU:
		return execLoad16(c, pc, instr16, ext, prefixed, rx, ry, 2, false)
	case Op16LW:
		return execLoad16(c, pc, instr16, ext, prefixed, rx, ry, 4, true)
	case Op16LWSP:
		return execLoad16(c, pc, instr16, ext, prefixed, rx, spReg, 4, true)

	case Op16SB:
		return execStore16(c, pc, instr16, ext, prefixed, rx, ry, 1)
	case Op16SH:
		return execStore16(c, pc, instr16, ext, prefixed, rx, ry, 2)
	case Op16SW:
		return execStore16(c, pc, instr16, ext, prefixed, rx, ry, 4)
	case Op16SWSP:
		return execStore16(c, pc, instr16, ext, prefixed, rx, spReg, 4)

	case Op16RR:
		return execRR(c, pc, instr16)

	default:
		return true
	}

	advancePC16(c, pc, 2)
	return false
}

func boolToGPR(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// addiuImm reads ADDIUSP/ADDIUPC's 8-bit, <<2-scaled, unsigned literal
// (16-bit/<<2 when prefixed).
func addiuImm(instr16 uint16, ext uint16, prefixed bool) uint32 {
	if prefixed {
		return extendImm16(ext, instr16) << 2
	}
	return uint32(instr16&0xFF) << 2
}

// imm8Signed reads an 8-bit signed literal (16-bit when prefixed),
// the shape shared by ADDIU8/SLTI/SLTIU/CMPI.
func imm8Signed(instr16 uint16, ext uint16, prefixed bool) uint32 {
	if prefixed {
		return signExt(extendImm16(ext, instr16), 16)
	}
	return signExt(uint32(instr16&0xFF), 8)
}

// execB implements the unconditional branch: 11-bit signed halfword
// offset, 16-bit when prefixed, scaled by 2 (spec.md §4.7 "B (11-bit
// signed offset without prefix, 16-bit with)").
func execB(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool) bool {
	var off uint32
	if prefixed {
		off = signExt(extendImm16(ext, instr16), 16)
	} else {
		off = signExt(uint32(instr16&0x7FF), 11)
	}
	target := pc + 2 + (off << 1)
	c.Regs.ArmDelaySlot(pc, target)
	c.Regs.PC = pc + 2
	return false
}

// execBCond implements BEQZ/BNEZ: 8-bit signed offset, 16-bit when
// prefixed.
func execBCond(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool, taken bool) bool {
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

// execJAL implements JAL/JALX, the only format spanning two halfwords
// without an EXTEND prefix (spec.md §4.7 "26-bit target spanning two
// halfwords; +1 on the target preserves or switches ISA").
func execJAL(c *cpu.CPU, pc uint32, raw uint32) bool {
	jalx := (raw>>26)&1 != 0
	target26 := ((raw >> 16) & 0x3FF << 16) | (raw & 0xFFFF)
	base := (pc + 4) &^ uint32(0x0FFF_FFFF)
	addr := base | (target26 << 2)

	ret := (pc + 6) | 1 // return lands back in MIPS16e code
	c.Regs.SetGPR(raReg, ret)

	if !jalx {
		addr |= 1 // stay in MIPS16e
	}
	c.Regs.ArmDelaySlot(pc, addr)
	c.Regs.PC = pc + 4
	return false
}

// execShift implements SLL/SRL/SRA, whose 3-bit shift-amount field
// encodes 0 as a shift of 8 (spec.md §4.7).
func execShift(c *cpu.CPU, pc uint32, instr16 uint16) bool {
	rx := regMap3[(instr16>>8)&0x7]
	ry := regMap3[(instr16>>5)&0x7]
	funct := uint8((instr16 >> 3) & 0x3)
	sa := uint32(instr16 & 0x7)
	if sa == 0 {
		sa = 8
	}

	v := c.Regs.GPR(ry)
	switch funct {
	case shiftSLL:
		v <<= sa
	case shiftSRL:
		v >>= sa
	case shiftSRA:
		v = uint32(int32(v) >> sa)
	default:
		return true
	}
	c.Regs.SetGPR(rx, v)
	advancePC16(c, pc, 2)
	return false
}

// execLoad16/execStore16 implement LB/LH/LW/LBU/LHU/LWSP and
// SB/SH/SW/SWSP: a base register plus a size-scaled offset, unscaled
// and widened by EXTEND exactly like the 32-bit immediate formats.
func execLoad16(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool, rx, base uint8, size int, signed bool) bool {
	off := loadStoreOffset(instr16, ext, prefixed, size)
	addr := c.Regs.GPR(base) + off

	var val uint32
	var code excode.Code
	var ok bool
	switch size {
	case 1:
		val, code, ok = c.Mem.LoadByte(addr, signed)
	case 2:
		val, code, ok = c.Mem.LoadHalf(addr, signed)
	case 4:
		val, code, ok = c.Mem.LoadWord(addr)
	}
	if !ok {
		c.RaiseException(code, pc, addr)
		return false
	}
	c.Regs.SetGPR(rx, val)
	advancePC16(c, pc, 2)
	return false
}

func execStore16(c *cpu.CPU, pc uint32, instr16 uint16, ext uint16, prefixed bool, rx, base uint8, size int) bool {
	off := loadStoreOffset(instr16, ext, prefixed, size)
	addr := c.Regs.GPR(base) + off
	val := c.Regs.GPR(rx)

	var code excode.Code
	var ok bool
	switch size {
	case 1:
		code, ok = c.Mem.StoreByte(addr, byte(val))
	case 2:
		code, ok = c.Mem.StoreHalf(addr, uint16(val))
	case 4:
		code, ok = c.Mem.StoreWord(addr, val)
	}
	if !ok {
		c.RaiseException(code, pc, addr)
		return false
	}
	advancePC16(c, pc, 2)
	return false
}

func loadStoreOffset(instr16 uint16, ext uint16, prefixed bool, size int) uint32 {
	if prefixed {
		return extendImm16(ext, instr16)
	}
	var scale uint
	switch size {
	case 2:
		scale = 1
	case 4:
		scale = 2
	}
	return uint32(instr16&0x1F) << scale
}

// advancePC16 mirrors exec32's advancePC for 2-byte-step instructions,
// sharing the same armed-delay-slot bookkeeping.
func advancePC16(c *cpu.CPU, pc uint32, step uint32) {
	if target, armed := c.Regs.ConsumeDelaySlot(); armed {
		c.Regs.PC = target
		return
	}
	c.Regs.PC = pc + step
}
