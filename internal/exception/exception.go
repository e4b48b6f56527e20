// Package exception implements the exception unit described in
// spec.md §4.8: building EPC/Cause/Status/BadVAddr/Context/EntryHi and
// selecting the vector address by BEV/IV/EXL.
package exception

import (
	"mipsemu/internal/cp0"
	"mipsemu/internal/excode"
)

const (
	bootBEV  = 0xBFC00000
	vpn2Mask = 0xFFFFE000
)

// Unit binds a CP0 register file; it holds no state of its own beyond
// that (the architectural state all lives in cp0.File).
type Unit struct {
	CP0 *cp0.File
}

func New(c *cp0.File) *Unit {
	return &Unit{CP0: c}
}

// PrepareException implements spec.md §4.8's common actions plus the
// per-code side effects, and returns the exception vector PC. pc is
// the faulting instruction's address; inDelaySlot is true iff that
// instruction occupies an armed branch-delay slot, in which case the
// caller must have already resolved EPC candidate to the branch's own
// address (spec.md §4.6 "Branch-delay-slot protocol").
func (u *Unit) PrepareException(code excode.Code, pc uint32, inDelaySlot bool, option uint32) uint32 {
	arch := excode.Architectural(code)

	status := u.CP0.Status()
	prevEXLorERL := status&(cp0.StatusEXL|cp0.StatusERL) != 0

	cause := u.CP0.ReadRaw(cp0.RegCause, 0)
	cause &^= cp0.CauseExcMask
	cause |= uint32(arch&0x1F) << cp0.CauseExcShift

	if inDelaySlot {
		cause |= cp0.CauseBD
	} else {
		cause &^= cp0.CauseBD
	}
	u.CP0.WriteDirect(cp0.RegCause, 0, cause)

	if prevEXLorERL {
		u.CP0.WriteDirect(cp0.RegErrorEPC, 0, pc)
	} else {
		u.CP0.WriteDirect(cp0.RegEPC, 0, pc)
	}

	switch code {
	case excode.TLBRefillL, excode.TLBRefillS, excode.TLBL, excode.TLBS, excode.Mod:
		entryHi := u.CP0.ReadRaw(cp0.RegEntryHi, 0)
		entryHi = (entryHi &^ vpn2Mask) | (option & vpn2Mask)
		u.CP0.WriteDirect(cp0.RegEntryHi, 0, entryHi)

		ctx := u.CP0.ReadRaw(cp0.RegContext, 0)
		ctx = (ctx & 0xFF80000F) | ((option & vpn2Mask) >> 9)
		u.CP0.WriteDirect(cp0.RegContext, 0, ctx)

		u.CP0.WriteDirect(cp0.RegBadVAddr, 0, option)

	case excode.AdEL, excode.AdES:
		u.CP0.WriteDirect(cp0.RegBadVAddr, 0, option)

	case excode.CpU:
		cause = u.CP0.ReadRaw(cp0.RegCause, 0)
		cause &^= cp0.CauseCEMask
		cause |= (option & 0x3) << cp0.CauseCEShift
		u.CP0.WriteDirect(cp0.RegCause, 0, cause)
	}

	if code == excode.CacheErr {
		u.CP0.SetStatus(u.CP0.Status() | cp0.StatusERL)
	} else {
		u.CP0.SetStatus(u.CP0.Status() | cp0.StatusEXL)
	}

	return u.vector(code, prevEXLorERL)
}

// PrepareInterrupt is PrepareException specialized for an interrupt
// taken outside any instruction-level fault (spec.md §4.8
// "prepare_interrupt(ip_num)"); ipNum is informational only, since the
// pending IP bits are already latched in Cause by the main loop.
func (u *Unit) PrepareInterrupt(pc uint32, inDelaySlot bool) uint32 {
	return u.PrepareException(excode.Int, pc, inDelaySlot, 0)
}

// vector implements the BEV x IV x refill/EXL selection table in
// spec.md §4.8.
func (u *Unit) vector(code excode.Code, prevEXLorERL bool) uint32 {
	status := u.CP0.Status()
	bev := status&cp0.StatusBEV != 0
	cause := u.CP0.Cause()
	iv := cause&cp0.CauseIV != 0
	ebase := u.CP0.EBase()

	if code == excode.CacheErr {
		if bev {
			return 0xBFC00300
		}
		return 0xA0000100 | (ebase & 0x1FFFF000)
	}

	if excode.IsRefill(code) {
		switch {
		case !prevEXLorERL && !bev:
			return 0x80000000 | (ebase & 0x3FFFF000)
		case prevEXLorERL && !bev:
			return 0x80000180 | (ebase & 0x3FFFF000)
		case !prevEXLorERL && bev:
			return bootBEV + 0x200
		default: // prevEXLorERL && bev
			return bootBEV + 0x380
		}
	}

	if code == excode.Int {
		switch {
		case iv && !bev:
			return 0x80000200 | (ebase & 0x3FFFF000)
		case !iv && !bev:
			return 0x80000180 | (ebase & 0x3FFFF000)
		case bev && iv:
			return bootBEV + 0x400
		default: // bev && !iv
			return bootBEV + 0x380
		}
	}

	// General exception.
	if bev {
		return bootBEV + 0x380
	}
	return 0x80000180 | (ebase & 0x3FFFF000)
}
