// Package cpu aggregates the register file, CP0, TLB, address caches,
// memory dispatcher, and exception unit into the single CPU type the
// MIPS32 and MIPS16e executors operate on. The teacher's mips.CPU
// (internal/mips/cpu.go) plays the same aggregating role for its much
// smaller register+coprocessor model; this type generalizes it to the
// full machine described in spec.md §3.
package cpu

import (
	"mipsemu/internal/addrcache"
	"mipsemu/internal/cp0"
	"mipsemu/internal/cpuregs"
	"mipsemu/internal/exception"
	"mipsemu/internal/excode"
	"mipsemu/internal/memory"
	"mipsemu/internal/tlb"
)

// Config bundles the construction-time parameters spread across the
// leaf packages.
type Config struct {
	RAMSize   uint32
	ROMSize   uint32
	TLBConfig cp0.Config
}

// CPU is the complete architectural state a single instruction step
// mutates.
type CPU struct {
	Regs *cpuregs.File
	CP0  *cp0.File
	TLB  *tlb.TLB
	Caches *addrcache.Set5
	Mem  *memory.Bus
	Exc  *exception.Unit

	// Sleep is set by WAIT (spec.md §3 "a 'sleep requested' flag");
	// the main loop clears it on the next wall-clock tick. An
	// interrupt taken while it is set does not clear it.
	Sleep bool
}

// New builds a CPU with all sub-components wired: TLB writes
// invalidate the address caches. The SPI REMAP_DISABLE toggle hook is
// not wired here; internal/machine connects it to
// Mem.InvalidateCaches once the SPI bus exists.
func New(cfg Config) *CPU {
	c := &CPU{
		Regs:   &cpuregs.File{},
		CP0:    cp0.New(cfg.TLBConfig),
		TLB:    tlb.New(),
		Caches: &addrcache.Set5{},
	}
	c.Mem = memory.New(memory.Config{RAMSize: cfg.RAMSize, ROMSize: cfg.ROMSize}, c.CP0, c.TLB, c.Caches)
	c.Exc = exception.New(c.CP0)
	c.TLB.OnWrite = func() { c.Caches.ClearAll() }
	return c
}

// Reset clears the register file, sets PC to bootPC, and clears the
// address caches. CP0 (including Status.BEV/ERL, which cp0.New sets),
// the TLB, and DRAM are left as-is, matching "higher-level
// orchestration may discard and rebuild the state" rather than an
// in-place full reset.
func (c *CPU) Reset(bootPC uint32) {
	*c.Regs = cpuregs.File{}
	c.Regs.PC = bootPC
	c.Caches.ClearAll()
}

// RaiseException routes to the exception unit and redirects PC,
// honoring the branch-delay-slot EPC/BD rule (spec.md §4.6 "Any
// exception that occurs in the delay slot records pc_prev_jump as
// EPC and sets Cause.BD").
func (c *CPU) RaiseException(code excode.Code, faultPC uint32, option uint32) {
	inDelaySlot := c.Regs.DelayEn
	epcPC := faultPC
	if inDelaySlot {
		epcPC = c.Regs.PrevJumpPC()
	}
	vector := c.Exc.PrepareException(code, epcPC, inDelaySlot, option)
	c.Regs.DelayEn = false
	c.Regs.PC = vector
}

// RaiseInterrupt is RaiseException specialized for an asynchronous
// interrupt taken between instructions.
func (c *CPU) RaiseInterrupt() {
	inDelaySlot := c.Regs.DelayEn
	epcPC := c.Regs.PC
	if inDelaySlot {
		epcPC = c.Regs.PrevJumpPC()
	}
	vector := c.Exc.PrepareInterrupt(epcPC, inDelaySlot)
	c.Regs.DelayEn = false
	c.Regs.PC = vector
}

// ERET implements spec.md §4.6's exception return: if Status.ERL,
// target is ErrorEPC and ERL clears; else target is EPC and EXL
// clears. The LL link flag is always cleared.
func (c *CPU) ERET() uint32 {
	status := c.CP0.Status()
	var target uint32
	if status&cp0.StatusERL != 0 {
		target = c.CP0.ReadRaw(cp0.RegErrorEPC, 0)
		c.CP0.SetStatus(status &^ cp0.StatusERL)
	} else {
		target = c.CP0.ReadRaw(cp0.RegEPC, 0)
		c.CP0.SetStatus(status &^ cp0.StatusEXL)
	}
	c.Regs.ClearLL()
	return target
}
