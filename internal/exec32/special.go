package exec32

import (
	"mipsemu/internal/cp0"
	"mipsemu/internal/cpu"
	"mipsemu/internal/excode"
)

// execSpecial dispatches SPECIAL-space (op=0) R-type instructions,
// including the ROTR/ROTRV variants distinguished by the unused
// SA/RS field (spec.md §4.6).
func execSpecial(c *cpu.CPU, pc uint32, f fields) bool {
	switch f.funct {
	case FnSLL:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rt)<<f.shamt)
	case FnSRL:
		if f.rs == 1 {
			c.Regs.SetGPR(f.rd, rotr(c.Regs.GPR(f.rt), uint32(f.shamt)))
		} else {
			c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rt)>>f.shamt)
		}
	case FnSRA:
		c.Regs.SetGPR(f.rd, uint32(int32(c.Regs.GPR(f.rt))>>f.shamt))
	case FnSLLV:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rt)<<(c.Regs.GPR(f.rs)&0x1F))
	case FnSRLV:
		if f.shamt == 1 {
			c.Regs.SetGPR(f.rd, rotr(c.Regs.GPR(f.rt), c.Regs.GPR(f.rs)&0x1F))
		} else {
			c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rt)>>(c.Regs.GPR(f.rs)&0x1F))
		}
	case FnSRAV:
		c.Regs.SetGPR(f.rd, uint32(int32(c.Regs.GPR(f.rt))>>(c.Regs.GPR(f.rs)&0x1F)))

	case FnJR:
		target := c.Regs.GPR(f.rs)
		c.Regs.ArmDelaySlot(pc, target)
		c.Regs.PC = pc + 4
		return false
	case FnJALR:
		target := c.Regs.GPR(f.rs)
		dest := f.rd
		if dest == 0 {
			dest = 31
		}
		c.Regs.SetGPR(dest, pc+8)
		c.Regs.ArmDelaySlot(pc, target)
		c.Regs.PC = pc + 4
		return false

	case FnMOVZ:
		if c.Regs.GPR(f.rt) == 0 {
			c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs))
		}
	case FnMOVN:
		if c.Regs.GPR(f.rt) != 0 {
			c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs))
		}

	case FnSYSCALL:
		c.RaiseException(excode.Sys, pc, 0)
		return false
	case FnBREAK:
		c.RaiseException(excode.Bp, pc, 0)
		return false

	case FnMFHI:
		c.Regs.SetGPR(f.rd, c.Regs.HI)
	case FnMTHI:
		c.Regs.HI = c.Regs.GPR(f.rs)
	case FnMFLO:
		c.Regs.SetGPR(f.rd, c.Regs.LO)
	case FnMTLO:
		c.Regs.LO = c.Regs.GPR(f.rs)

	case FnMULT:
		p := int64(int32(c.Regs.GPR(f.rs))) * int64(int32(c.Regs.GPR(f.rt)))
		c.Regs.HI, c.Regs.LO = uint32(p>>32), uint32(p)
	case FnMULTU:
		p := uint64(c.Regs.GPR(f.rs)) * uint64(c.Regs.GPR(f.rt))
		c.Regs.HI, c.Regs.LO = uint32(p>>32), uint32(p)
	case FnDIV:
		a, b := int32(c.Regs.GPR(f.rs)), int32(c.Regs.GPR(f.rt))
		if b == 0 {
			c.Regs.HI, c.Regs.LO = 0, 0
		} else {
			c.Regs.HI, c.Regs.LO = uint32(a%b), uint32(a/b)
		}
	case FnDIVU:
		a, b := c.Regs.GPR(f.rs), c.Regs.GPR(f.rt)
		if b == 0 {
			c.Regs.HI, c.Regs.LO = 0, 0
		} else {
			c.Regs.HI, c.Regs.LO = a%b, a/b
		}

	case FnADD:
		a, b := c.Regs.GPR(f.rs), c.Regs.GPR(f.rt)
		sum := a + b
		c.Regs.SetGPR(f.rd, sum)
		if overflowsAdd(a, b, sum) {
			c.RaiseException(excode.Ov, pc, 0)
			return false
		}
	case FnADDU:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs)+c.Regs.GPR(f.rt))
	case FnSUB:
		a, b := c.Regs.GPR(f.rs), c.Regs.GPR(f.rt)
		diff := a - b
		c.Regs.SetGPR(f.rd, diff)
		if overflowsSub(a, b, diff) {
			c.RaiseException(excode.Ov, pc, 0)
			return false
		}
	case FnSUBU:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs)-c.Regs.GPR(f.rt))

	case FnAND:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs)&c.Regs.GPR(f.rt))
	case FnOR:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs)|c.Regs.GPR(f.rt))
	case FnXOR:
		c.Regs.SetGPR(f.rd, c.Regs.GPR(f.rs)^c.Regs.GPR(f.rt))
	case FnNOR:
		c.Regs.SetGPR(f.rd, ^(c.Regs.GPR(f.rs) | c.Regs.GPR(f.rt)))

	case FnSLT:
		v := uint32(0)
		if int32(c.Regs.GPR(f.rs)) < int32(c.Regs.GPR(f.rt)) {
			v = 1
		}
		c.Regs.SetGPR(f.rd, v)
	case FnSLTU:
		v := uint32(0)
		if c.Regs.GPR(f.rs) < c.Regs.GPR(f.rt) {
			v = 1
		}
		c.Regs.SetGPR(f.rd, v)

	case FnTGE:
		return trapCond(c, pc, int32(c.Regs.GPR(f.rs)) >= int32(c.Regs.GPR(f.rt)))
	case FnTGEU:
		return trapCond(c, pc, c.Regs.GPR(f.rs) >= c.Regs.GPR(f.rt))
	case FnTLT:
		return trapCond(c, pc, int32(c.Regs.GPR(f.rs)) < int32(c.Regs.GPR(f.rt)))
	case FnTLTU:
		return trapCond(c, pc, c.Regs.GPR(f.rs) < c.Regs.GPR(f.rt))
	case FnTEQ:
		return trapCond(c, pc, c.Regs.GPR(f.rs) == c.Regs.GPR(f.rt))
	case FnTNE:
		return trapCond(c, pc, c.Regs.GPR(f.rs) != c.Regs.GPR(f.rt))

	default:
		return true
	}

	advancePC(c, pc, 4)
	return false
}

func trapCond(c *cpu.CPU, pc uint32, cond bool) bool {
	if cond {
		c.RaiseException(excode.Tr, pc, 0)
		return false
	}
	advancePC(c, pc, 4)
	return false
}

func rotr(v uint32, n uint32) uint32 {
	n &= 0x1F
	if n == 0 {
		return v
	}
	return (v >> n) | (v << (32 - n))
}

// execSpecial2 handles MUL/MADD/MADDU/MSUB/MSUBU/CLO/CLZ.
func execSpecial2(c *cpu.CPU, f fields) bool {
	pc := c.Regs.PC
	switch f.funct {
	case Fn2MUL:
		p := int64(int32(c.Regs.GPR(f.rs))) * int64(int32(c.Regs.GPR(f.rt)))
		c.Regs.SetGPR(f.rd, uint32(p))
	case Fn2MADD:
		p := int64(int32(c.Regs.GPR(f.rs))) * int64(int32(c.Regs.GPR(f.rt)))
		acc := (int64(c.Regs.HI)<<32 | int64(c.Regs.LO)) + p
		c.Regs.HI, c.Regs.LO = uint32(acc>>32), uint32(acc)
	case Fn2MADDU:
		p := uint64(c.Regs.GPR(f.rs)) * uint64(c.Regs.GPR(f.rt))
		acc := (uint64(c.Regs.HI)<<32 | uint64(c.Regs.LO)) + p
		c.Regs.HI, c.Regs.LO = uint32(acc>>32), uint32(acc)
	case Fn2MSUB:
		p := int64(int32(c.Regs.GPR(f.rs))) * int64(int32(c.Regs.GPR(f.rt)))
		acc := (int64(c.Regs.HI)<<32 | int64(c.Regs.LO)) - p
		c.Regs.HI, c.Regs.LO = uint32(acc>>32), uint32(acc)
	case Fn2MSUBU:
		p := uint64(c.Regs.GPR(f.rs)) * uint64(c.Regs.GPR(f.rt))
		acc := (uint64(c.Regs.HI)<<32 | uint64(c.Regs.LO)) - p
		c.Regs.HI, c.Regs.LO = uint32(acc>>32), uint32(acc)
	case Fn2CLZ:
		c.Regs.SetGPR(f.rd, countLeading(c.Regs.GPR(f.rs), false))
	case Fn2CLO:
		c.Regs.SetGPR(f.rd, countLeading(c.Regs.GPR(f.rs), true))
	default:
		return true
	}
	advancePC(c, pc, 4)
	return false
}

func countLeading(v uint32, ones bool) uint32 {
	if ones {
		v = ^v
	}
	var n uint32
	for n < 32 && v&0x80000000 == 0 {
		v <<= 1
		n++
	}
	return n
}

// execSpecial3 handles EXT/INS/SEB/SEH/WSBH/RDHWR.
func execSpecial3(c *cpu.CPU, f fields) bool {
	pc := c.Regs.PC
	switch f.funct {
	case Fn3EXT:
		pos := uint32(f.shamt)
		size := uint32(f.rd) + 1
		c.Regs.SetGPR(f.rt, (c.Regs.GPR(f.rs)>>pos)&((1<<size)-1))
	case Fn3INS:
		pos := uint32(f.shamt)
		msb := uint32(f.rd)
		size := msb - pos + 1
		mask := ((uint32(1) << size) - 1) << pos
		v := (c.Regs.GPR(f.rs) << pos) & mask
		c.Regs.SetGPR(f.rt, (c.Regs.GPR(f.rt) &^ mask) | v)
	case Fn3BSHFL:
		switch f.shamt {
		case BshflSEB:
			c.Regs.SetGPR(f.rd, uint32(int32(int8(c.Regs.GPR(f.rt)))))
		case BshflSEH:
			c.Regs.SetGPR(f.rd, uint32(int32(int16(c.Regs.GPR(f.rt)))))
		case BshflWSBH:
			v := c.Regs.GPR(f.rt)
			c.Regs.SetGPR(f.rd, (v&0xFF00FF00)>>8|(v&0x00FF00FF)<<8)
		default:
			return true
		}
	case Fn3RDHWR:
		return execRDHWR(c, pc, f)
	default:
		return true
	}
	advancePC(c, pc, 4)
	return false
}

// execRDHWR implements spec.md §4.6's RDHWR: CPUNum=0, SYNCI_Step=0,
// CC=Count, CCRes=configured resolution, UserLocal=CP0 UserLocal,
// each gated by HWREna when running in user mode.
func execRDHWR(c *cpu.CPU, pc uint32, f fields) bool {
	userMode := c.CP0.Mode() == uint8(2<<3)
	if userMode && !c.CP0.HWREnaBit(uint(f.rd)) {
		c.RaiseException(excode.RI, pc, 0)
		return false
	}
	var v uint32
	switch f.rd {
	case 0:
		v = 0 // CPUNum
	case 1:
		v = 0 // SYNCI_Step
	case 2:
		v = c.CP0.Read(cp0.RegCount, 0)
	case 3:
		v = c.CP0.CCRes()
	case 29:
		v = c.CP0.UserLocal()
	default:
		c.RaiseException(excode.RI, pc, 0)
		return false
	}
	c.Regs.SetGPR(f.rt, v)
	advancePC(c, pc, 4)
	return false
}
