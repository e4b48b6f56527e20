package exec16

import (
	"mipsemu/internal/cpu"
	"mipsemu/internal/excode"
)

// execRR handles the RR major op's register-only instructions: the
// jump/call family (with and without delay slots), the ALU ops, and
// CNVT/MULT/DIV (spec.md §4.7 "JR/JALR/JRC/JALRC ..., CNVT ZEB/ZEH/
// SEB/SEH, multiply/divide identical to MIPS32 semantics").
func execRR(c *cpu.CPU, pc uint32, instr16 uint16) bool {
	ry := regMap3[(instr16>>8)&0x7]
	rx := regMap3[(instr16>>5)&0x7]
	funct := uint8(instr16 & 0x1F)

	switch funct {
	case rrJR:
		target := c.Regs.GPR(ry)
		c.Regs.ArmDelaySlot(pc, target)
		c.Regs.PC = pc + 2
		return false
	case rrJALR:
		target := c.Regs.GPR(ry)
		c.Regs.SetGPR(raReg, (pc+4)|1)
		c.Regs.ArmDelaySlot(pc, target)
		c.Regs.PC = pc + 2
		return false
	case rrJRC:
		// No delay slot: branches immediately (spec.md §4.7).
		c.Regs.PC = c.Regs.GPR(ry)
		return false
	case rrJALRC:
		target := c.Regs.GPR(ry)
		c.Regs.SetGPR(raReg, (pc+2)|1)
		c.Regs.PC = target
		return false

	case rrSLT:
		v := uint32(0)
		if int32(c.Regs.GPR(rx)) < int32(c.Regs.GPR(ry)) {
			v = 1
		}
		c.Regs.SetGPR(tReg, v)
	case rrSLTU:
		v := uint32(0)
		if c.Regs.GPR(rx) < c.Regs.GPR(ry) {
			v = 1
		}
		c.Regs.SetGPR(tReg, v)
	case rrSLLV:
		c.Regs.SetGPR(rx, c.Regs.GPR(rx)<<(c.Regs.GPR(ry)&0x1F))
	case rrSRLV:
		c.Regs.SetGPR(rx, c.Regs.GPR(rx)>>(c.Regs.GPR(ry)&0x1F))
	case rrSRAV:
		c.Regs.SetGPR(rx, uint32(int32(c.Regs.GPR(rx))>>(c.Regs.GPR(ry)&0x1F)))
	case rrBREAK:
		c.RaiseException(excode.Bp, pc, 0)
		return false

	case rrCMP:
		c.Regs.SetGPR(tReg, c.Regs.GPR(rx)^c.Regs.GPR(ry))
	case rrNEG:
		c.Regs.SetGPR(rx, -c.Regs.GPR(ry))
	case rrAND:
		c.Regs.SetGPR(rx, c.Regs.GPR(rx)&c.Regs.GPR(ry))
	case rrOR:
		c.Regs.SetGPR(rx, c.Regs.GPR(rx)|c.Regs.GPR(ry))
	case rrXOR:
		c.Regs.SetGPR(rx, c.Regs.GPR(rx)^c.Regs.GPR(ry))
	case rrNOT:
		c.Regs.SetGPR(rx, ^c.Regs.GPR(ry))

	case rrMFHI:
		c.Regs.SetGPR(rx, c.Regs.HI)
	case rrMFLO:
		c.Regs.SetGPR(rx, c.Regs.LO)
	case rrCNVT:
		return execCnvt(c, pc, instr16, ry)

	case rrMULT:
		p := int64(int32(c.Regs.GPR(rx))) * int64(int32(c.Regs.GPR(ry)))
		c.Regs.HI, c.Regs.LO = uint32(p>>32), uint32(p)
	case rrMULTU:
		p := uint64(c.Regs.GPR(rx)) * uint64(c.Regs.GPR(ry))
		c.Regs.HI, c.Regs.LO = uint32(p>>32), uint32(p)
	case rrDIV:
		a, b := int32(c.Regs.GPR(rx)), int32(c.Regs.GPR(ry))
		if b == 0 {
			c.Regs.HI, c.Regs.LO = 0, 0
		} else {
			c.Regs.HI, c.Regs.LO = uint32(a%b), uint32(a/b)
		}
	case rrDIVU:
		a, b := c.Regs.GPR(rx), c.Regs.GPR(ry)
		if b == 0 {
			c.Regs.HI, c.Regs.LO = 0, 0
		} else {
			c.Regs.HI, c.Regs.LO = a%b, a/b
		}

	default:
		return true
	}

	advancePC16(c, pc, 2)
	return false
}

// execCnvt implements ZEB/ZEH/SEB/SEH, whose sub-op rides in the rx
// field (this package's assignment; spec.md only names the four ops).
func execCnvt(c *cpu.CPU, pc uint32, instr16 uint16, rx uint8) bool {
	sub := uint8((instr16 >> 5) & 0x3)
	v := c.Regs.GPR(rx)
	switch sub {
	case cnvtZEB:
		v &= 0xFF
	case cnvtZEH:
		v &= 0xFFFF
	case cnvtSEB:
		v = uint32(int32(int8(v)))
	case cnvtSEH:
		v = uint32(int32(int16(v)))
	}
	c.Regs.SetGPR(rx, v)
	advancePC16(c, pc, 2)
	return false
}
