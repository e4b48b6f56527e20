// Package exec32 implements the MIPS32 Release 2 decoder/executor
// described in spec.md §4.6: the full R2 integer ISA including
// SPECIAL2/SPECIAL3, COP0, traps, LL/SC, LWL/LWR/SWL/SWR, and
// CACHE/PREF. The teacher's internal/mips32 package (OpCode constants,
// an Instruction interface per instruction) establishes the decode
// vocabulary this package generalizes into a single dispatch table,
// since the full R2 ISA has far more encodings than the teacher's
// subset.
package exec32

import (
	"mipsemu/internal/cp0"
	"mipsemu/internal/cpu"
	"mipsemu/internal/excode"
	"mipsemu/internal/utils"
)

// OpCode is the 6-bit primary opcode field, inst[31:26].
type OpCode uint8

// Primary opcodes, per spec.md §4.6 and MIPS32r2.
const (
	OpSpecial  OpCode = 0x00
	OpRegImm   OpCode = 0x01
	OpJ        OpCode = 0x02
	OpJAL      OpCode = 0x03
	OpBEQ      OpCode = 0x04
	OpBNE      OpCode = 0x05
	OpBLEZ     OpCode = 0x06
	OpBGTZ     OpCode = 0x07
	OpADDI     OpCode = 0x08
	OpADDIU    OpCode = 0x09
	OpSLTI     OpCode = 0x0A
	OpSLTIU    OpCode = 0x0B
	OpANDI     OpCode = 0x0C
	OpORI      OpCode = 0x0D
	OpXORI     OpCode = 0x0E
	OpLUI      OpCode = 0x0F
	OpCOP0     OpCode = 0x10
	OpBEQL     OpCode = 0x14
	OpBNEL     OpCode = 0x15
	OpBLEZL    OpCode = 0x16
	OpBGTZL    OpCode = 0x17
	OpSpecial2 OpCode = 0x1C
	OpJALX     OpCode = 0x1D
	OpSpecial3 OpCode = 0x1F
	OpLB       OpCode = 0x20
	OpLH       OpCode = 0x21
	OpLWL      OpCode = 0x22
	OpLW       OpCode = 0x23
	OpLBU      OpCode = 0x24
	OpLHU      OpCode = 0x25
	OpLWR      OpCode = 0x26
	OpSB       OpCode = 0x28
	OpSH       OpCode = 0x29
	OpSWL      OpCode = 0x2A
	OpSW       OpCode = 0x2B
	OpSWR      OpCode = 0x2E
	OpCACHE    OpCode = 0x2F
	OpLL       OpCode = 0x30
	OpPREF     OpCode = 0x33
	OpSC       OpCode = 0x38
)

// SPECIAL funct codes.
const (
	FnSLL     = 0x00
	FnSRL     = 0x02
	FnSRA     = 0x03
	FnSLLV    = 0x04
	FnSRLV    = 0x06
	FnSRAV    = 0x07
	FnJR      = 0x08
	FnJALR    = 0x09
	FnMOVZ    = 0x0A
	FnMOVN    = 0x0B
	FnSYSCALL = 0x0C
	FnBREAK   = 0x0D
	FnMFHI    = 0x10
	FnMTHI    = 0x11
	FnMFLO    = 0x12
	FnMTLO    = 0x13
	FnMULT    = 0x18
	FnMULTU   = 0x19
	FnDIV     = 0x1A
	FnDIVU    = 0x1B
	FnADD     = 0x20
	FnADDU    = 0x21
	FnSUB     = 0x22
	FnSUBU    = 0x23
	FnAND     = 0x24
	FnOR      = 0x25
	FnXOR     = 0x26
	FnNOR     = 0x27
	FnSLT     = 0x2A
	FnSLTU    = 0x2B
	FnTGE     = 0x30
	FnTGEU    = 0x31
	FnTLT     = 0x32
	FnTLTU    = 0x33
	FnTEQ     = 0x34
	FnTNE     = 0x36
)

// SPECIAL2 funct codes.
const (
	Fn2MADD  = 0x00
	Fn2MADDU = 0x01
	Fn2MUL   = 0x02
	Fn2MSUB  = 0x04
	Fn2MSUBU = 0x05
	Fn2CLZ   = 0x20
	Fn2CLO   = 0x21
)

// SPECIAL3 funct codes.
const (
	Fn3EXT   = 0x00
	Fn3INS   = 0x04
	Fn3BSHFL = 0x20
	Fn3RDHWR = 0x3B
)

// BSHFL shamt sub-ops.
const (
	BshflSEB  = 0x10
	BshflSEH  = 0x18
	BshflWSBH = 0x02
)

// REGIMM rt field codes.
const (
	RtBLTZ   = 0x00
	RtBGEZ   = 0x01
	RtBLTZL  = 0x02
	RtBGEZL  = 0x03
	RtTGEI   = 0x08
	RtTGEIU  = 0x09
	RtTLTI   = 0x0A
	RtTLTIU  = 0x0B
	RtTEQI   = 0x0C
	RtTNEI   = 0x0E
	RtBLTZAL = 0x10
	RtBGEZAL = 0x11
)

// COP0 rs field and funct for the CO-form.
const (
	Cop0RsMF  = 0x00
	Cop0RsMT  = 0x04
	Cop0RsCO  = 0x10
	Cop0FnTLBR  = 0x01
	Cop0FnTLBWI = 0x02
	Cop0FnTLBWR = 0x06
	Cop0FnTLBP  = 0x08
	Cop0FnERET  = 0x18
	Cop0FnDERET = 0x1F
	Cop0FnWAIT  = 0x20
)

// fields decodes the common R/I/J-type subfields of a 32-bit word.
type fields struct {
	op      OpCode
	rs, rt, rd uint8
	shamt   uint8
	funct   uint8
	imm16   uint16
	target  uint32
}

func decode(instr uint32) fields {
	return fields{
		op:     OpCode((instr >> 26) & 0x3F),
		rs:     uint8((instr >> 21) & 0x1F),
		rt:     uint8((instr >> 16) & 0x1F),
		rd:     uint8((instr >> 11) & 0x1F),
		shamt:  uint8((instr >> 6) & 0x1F),
		funct:  uint8(instr & 0x3F),
		imm16:  uint16(instr & 0xFFFF),
		target: instr & 0x03FFFFFF,
	}
}

func signExt16(v uint16) uint32 { return utils.SignExtend(uint32(v), 16) }

// Step decodes and executes one MIPS32 instruction. halted reports an
// unknown encoding (spec.md §4.6 "Unknown encodings log and halt the
// main loop"); the caller is expected to stop the run loop.
func Step(c *cpu.CPU, instr uint32) (halted bool) {
	pc := c.Regs.PC
	f := decode(instr)

	switch f.op {
	case OpSpecial:
		return execSpecial(c, pc, f)
	case OpRegImm:
		return execRegImm(c, pc, f)
	case OpSpecial2:
		return execSpecial2(c, f)
	case OpSpecial3:
		return execSpecial3(c, f)
	case OpCOP0:
		return execCOP0(c, pc, f)

	case OpJ:
		execJump(c, pc, (pc&0xF0000000)|(f.target<<2))
	case OpJAL:
		c.Regs.SetGPR(31, pc+8)
		execJump(c, pc, (pc&0xF0000000)|(f.target<<2))
	case OpJALX:
		c.Regs.SetGPR(31, pc+8)
		execJump(c, pc, ((pc&0xF0000000)|(f.target<<2))|1)

	case OpBEQ:
		branch(c, pc, f, c.Regs.GPR(f.rs) == c.Regs.GPR(f.rt), false)
	case OpBNE:
		branch(c, pc, f, c.Regs.GPR(f.rs) != c.Regs.GPR(f.rt), false)
	case OpBLEZ:
		branch(c, pc, f, int32(c.Regs.GPR(f.rs)) <= 0, false)
	case OpBGTZ:
		branch(c, pc, f, int32(c.Regs.GPR(f.rs)) > 0, false)
	case OpBEQL:
		branch(c, pc, f, c.Regs.GPR(f.rs) == c.Regs.GPR(f.rt), true)
	case OpBNEL:
		branch(c, pc, f, c.Regs.GPR(f.rs) != c.Regs.GPR(f.rt), true)
	case OpBLEZL:
		branch(c, pc, f, int32(c.Regs.GPR(f.rs)) <= 0, true)
	case OpBGTZL:
		branch(c, pc, f, int32(c.Regs.GPR(f.rs)) > 0, true)

	case OpADDI:
		return addiTrap(c, f, pc)
	case OpADDIU:
		c.Regs.SetGPR(f.rt, c.Regs.GPR(f.rs)+signExt16(f.imm16))
	case OpSLTI:
		v := uint32(0)
		if int32(c.Regs.GPR(f.rs)) < int32(signExt16(f.imm16)) {
			v = 1
		}
		c.Regs.SetGPR(f.rt, v)
	case OpSLTIU:
		v := uint32(0)
		if c.Regs.GPR(f.rs) < signExt16(f.imm16) {
			v = 1
		}
		c.Regs.SetGPR(f.rt, v)
	case OpANDI:
		c.Regs.SetGPR(f.rt, c.Regs.GPR(f.rs)&uint32(f.imm16))
	case OpORI:
		c.Regs.SetGPR(f.rt, c.Regs.GPR(f.rs)|uint32(f.imm16))
	case OpXORI:
		c.Regs.SetGPR(f.rt, c.Regs.GPR(f.rs)^uint32(f.imm16))
	case OpLUI:
		c.Regs.SetGPR(f.rt, uint32(f.imm16)<<16)

	case OpLB, OpLH, OpLWL, OpLW, OpLBU, OpLHU, OpLWR, OpLL:
		return execLoad(c, pc, f)
	case OpSB, OpSH, OpSWL, OpSW, OpSWR, OpSC:
		return execStore(c, pc, f)

	case OpCACHE, OpPREF:
		// no-ops, advance PC (spec.md §4.6).

	default:
		return true
	}

	advancePC(c, pc, 4)
	return false
}

// advancePC implements spec.md §4.6's branch-delay-slot protocol:
// if a delay slot is armed, jump to its target instead of PC+step.
func advancePC(c *cpu.CPU, pc uint32, step uint32) {
	if target, armed := c.Regs.ConsumeDelaySlot(); armed {
		c.Regs.PC = target
		return
	}
	c.Regs.PC = pc + step
}

func execJump(c *cpu.CPU, pc uint32, target uint32) {
	c.Regs.ArmDelaySlot(pc, target)
	c.Regs.PC = pc + 4
}

func branch(c *cpu.CPU, pc uint32, f fields, taken bool, likely bool) {
	if taken {
		target := pc + 4 + (signExt16(f.imm16) << 2)
		c.Regs.ArmDelaySlot(pc, target)
		c.Regs.PC = pc + 4
		return
	}
	if likely {
		c.Regs.PC = pc + 8 // skip the delay slot entirely
		return
	}
	c.Regs.PC = pc + 4
}

func addiTrap(c *cpu.CPU, f fields, pc uint32) bool {
	a := c.Regs.GPR(f.rs)
	b := signExt16(f.imm16)
	sum := a + b
	c.Regs.SetGPR(f.rt, sum)
	if overflowsAdd(a, b, sum) {
		c.RaiseException(excode.Ov, pc, 0)
		return false
	}
	advancePC(c, pc, 4)
	return false
}

func overflowsAdd(a, b, sum uint32) bool {
	return utils.CheckAdditionOverflow(int32(a), int32(b), int32(sum))
}

func overflowsSub(a, b, diff uint32) bool {
	return utils.CheckSubtractionOverflow(int32(a), int32(b), int32(diff))
}

func execLoad(c *cpu.CPU, pc uint32, f fields) bool {
	addr := c.Regs.GPR(f.rs) + signExt16(f.imm16)
	var val uint32
	var code excode.Code
	var ok bool

	switch f.op {
	case OpLB:
		val, code, ok = c.Mem.LoadByte(addr, true)
	case OpLBU:
		val, code, ok = c.Mem.LoadByte(addr, false)
	case OpLH:
		val, code, ok = c.Mem.LoadHalf(addr, true)
	case OpLHU:
		val, code, ok = c.Mem.LoadHalf(addr, false)
	case OpLW:
		val, code, ok = c.Mem.LoadWord(addr)
	case OpLL:
		val, code, ok = c.Mem.LoadWord(addr)
		if ok {
			c.Regs.LLBit = true
		}
	case OpLWL:
		val, code, ok = c.Mem.LoadWordLeft(addr, c.Regs.GPR(f.rt))
	case OpLWR:
		val, code, ok = c.Mem.LoadWordRight(addr, c.Regs.GPR(f.rt))
	}

	if !ok {
		c.RaiseException(code, pc, addr)
		return false
	}
	c.Regs.SetGPR(f.rt, val)
	advancePC(c, pc, 4)
	return false
}

func execStore(c *cpu.CPU, pc uint32, f fields) bool {
	addr := c.Regs.GPR(f.rs) + signExt16(f.imm16)
	rt := c.Regs.GPR(f.rt)
	var code excode.Code
	var ok bool

	switch f.op {
	case OpSB:
		code, ok = c.Mem.StoreByte(addr, byte(rt))
	case OpSH:
		code, ok = c.Mem.StoreHalf(addr, uint16(rt))
	case OpSW:
		code, ok = c.Mem.StoreWord(addr, rt)
	case OpSC:
		if !c.Regs.LLBit {
			c.Regs.SetGPR(f.rt, 0)
			advancePC(c, pc, 4)
			return false
		}
		code, ok = c.Mem.StoreWord(addr, rt)
		if ok {
			c.Regs.SetGPR(f.rt, 1)
		}
	case OpSWL:
		code, ok = c.Mem.StoreWordLeft(addr, rt)
	case OpSWR:
		code, ok = c.Mem.StoreWordRight(addr, rt)
	}

	if !ok {
		c.RaiseException(code, pc, addr)
		return false
	}
	advancePC(c, pc, 4)
	return false
}

// execRegImm handles REGIMM-space (op=1) branches and immediate traps.
func execRegImm(c *cpu.CPU, pc uint32, f fields) bool {
	rs := int32(c.Regs.GPR(f.rs))
	switch f.rt {
	case RtBLTZ:
		branch(c, pc, f, rs < 0, false)
	case RtBGEZ:
		branch(c, pc, f, rs >= 0, false)
	case RtBLTZL:
		branch(c, pc, f, rs < 0, true)
	case RtBGEZL:
		branch(c, pc, f, rs >= 0, true)
	case RtBLTZAL:
		c.Regs.SetGPR(31, pc+8)
		branch(c, pc, f, rs < 0, false)
	case RtBGEZAL:
		c.Regs.SetGPR(31, pc+8)
		branch(c, pc, f, rs >= 0, false)
	case RtTGEI:
		return trapImm(c, pc, rs >= int32(signExt16(f.imm16)))
	case RtTGEIU:
		return trapImm(c, pc, c.Regs.GPR(f.rs) >= signExt16(f.imm16))
	case RtTLTI:
		return trapImm(c, pc, rs < int32(signExt16(f.imm16)))
	case RtTLTIU:
		return trapImm(c, pc, c.Regs.GPR(f.rs) < signExt16(f.imm16))
	case RtTEQI:
		return trapImm(c, pc, c.Regs.GPR(f.rs) == signExt16(f.imm16))
	case RtTNEI:
		return trapImm(c, pc, c.Regs.GPR(f.rs) != signExt16(f.imm16))
	default:
		return true
	}
	advancePC(c, pc, 4)
	return false
}

func trapImm(c *cpu.CPU, pc uint32, cond bool) bool {
	if cond {
		c.RaiseException(excode.Tr, pc, 0)
		return false
	}
	advancePC(c, pc, 4)
	return false
}
