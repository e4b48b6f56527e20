package exec32

import (
	"mipsemu/internal/cp0"
	"mipsemu/internal/cpu"
)

// execCOP0 handles the COP0 opcode space: MFC0/MTC0, DI/EI, and the
// CO-form (TLBWI/TLBWR/TLBP/TLBR/ERET/WAIT), per spec.md §4.6.
func execCOP0(c *cpu.CPU, pc uint32, f fields) bool {
	switch f.rs {
	case Cop0RsMF:
		sel := int(instrSel(f))
		c.Regs.SetGPR(f.rt, c.CP0.Read(int(f.rd), sel))
	case Cop0RsMT:
		sel := int(instrSel(f))
		c.CP0.Write(int(f.rd), sel, c.Regs.GPR(f.rt))
	case Cop0RsCO:
		return execCop0CO(c, pc, f)
	case 0x0B: // DI/EI share rs=0x0B (MFMC0), distinguished by rt bit 5
		return execDIEI(c, pc, f)
	default:
		return true
	}
	advancePC(c, pc, 4)
	return false
}

// instrSel recovers the sel field, which the teacher's decoder treats
// as the low 3 bits of the raw instruction word; exec32's fields
// struct keeps rd/funct but not sel directly, so callers reconstruct
// it from funct (the low bits of a COP0 MFC0/MTC0 encoding carry sel).
func instrSel(f fields) uint8 {
	return f.funct & 0x7
}

// execDIEI implements DI/EI, the MFMC0 encoding's two pseudo-ops: the
// "sc" bit (bit 5 of the instruction, i.e. funct&0x20) selects EI (1)
// vs DI (0). rt receives the Status register value from before the
// update, per spec.md §4.6 "DI/EI clear or set Status.IE".
func execDIEI(c *cpu.CPU, pc uint32, f fields) bool {
	status := c.CP0.Status()
	c.Regs.SetGPR(f.rt, status)
	if f.funct&0x20 != 0 {
		c.CP0.SetStatus(status | cp0.StatusIE)
	} else {
		c.CP0.SetStatus(status &^ cp0.StatusIE)
	}
	advancePC(c, pc, 4)
	return false
}

func execCop0CO(c *cpu.CPU, pc uint32, f fields) bool {
	switch f.funct {
	case Cop0FnTLBWI:
		// c.TLB.OnWrite (wired in cpu.New) already clears the address
		// caches on every write.
		c.TLB.WriteIndexed(c.CP0.Index(), c.CP0)
	case Cop0FnTLBWR:
		newRandom := c.TLB.WriteRandom(c.CP0.Random(), c.CP0.Wired(), c.CP0)
		c.CP0.SetRandom(newRandom)
	case Cop0FnTLBP:
		index, fail := c.TLB.Probe(c.CP0.EntryHi())
		if fail {
			c.CP0.SetIndex(0x80000000)
		} else {
			c.CP0.SetIndex(index)
		}
	case Cop0FnTLBR:
		entryHi, lo0, lo1, pageMask, ok := c.TLB.Read(c.CP0.Index() & 0x1F)
		if ok {
			c.CP0.WriteDirect(cp0.RegEntryHi, 0, entryHi)
			c.CP0.WriteDirect(cp0.RegEntryLo0, 0, lo0)
			c.CP0.WriteDirect(cp0.RegEntryLo1, 0, lo1)
			c.CP0.WriteDirect(cp0.RegPageMask, 0, pageMask)
		}
	case Cop0FnERET:
		target := c.ERET()
		c.Regs.PC = target
		return false
	case Cop0FnWAIT:
		c.Sleep = true
	default:
		return true
	}
	advancePC(c, pc, 4)
	return false
}
