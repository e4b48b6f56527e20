// Package soc implements the PLL/Reset/RTC/SRIF constant-reporting
// stubs described in spec.md §4.4 and §6: reads return plausible
// clock/PLL/revision constants, and only two writes have any effect —
// RST_RESET bit 24 and the misc interrupt mask register.
package soc

// Register offsets within the PLL/Reset/RTC/SRIF block (spec.md §6).
// Only RST_RESET and MISC_INTR_MASK are stateful; every other offset
// in the region is a read-as-constant, write-ignored stub.
const (
	OffRSTReset      = 0x1C
	OffMiscIntrMask  = 0x44
	OffSocID         = 0x2C

	RegionSize = 0x100
)

// rstResetFullChip is RST_RESET bit 24 (spec.md §6 "writes of the
// reset-full-chip bit... set reset_request").
const rstResetFullChip = 1 << 24

// socID is the AR9342-like SOC revision ID spec.md §4.4 calls out by
// value.
const socID = 0x1120 | 3

// Block is the soft state for the PLL/Reset/RTC/SRIF region.
type Block struct {
	miscIntrMask uint32
	rstReset     uint32

	// OnResetRequest fires once RST_RESET's full-chip-reset bit is
	// written, so the main loop can set its reset_request flag
	// (spec.md §4.9 step 6).
	OnResetRequest func()
}

func New() *Block { return &Block{} }

// ReadReg32 returns the constant for offset, or stateful register
// contents for RST_RESET/MISC_INTR_MASK. Unlisted offsets read 0
// (spec.md §7 "other accesses read 0 and have no effect on writes").
func (b *Block) ReadReg32(offset uint32) uint32 {
	switch offset {
	case OffRSTReset:
		return b.rstReset
	case OffMiscIntrMask:
		return b.miscIntrMask
	case OffSocID:
		return socID
	default:
		return 0
	}
}

// WriteReg32 applies a write; only RST_RESET's reset-full-chip bit
// and MISC_INTR_MASK have any effect.
func (b *Block) WriteReg32(offset uint32, val uint32) {
	switch offset {
	case OffRSTReset:
		b.rstReset = val
		if val&rstResetFullChip != 0 && b.OnResetRequest != nil {
			b.OnResetRequest()
		}
	case OffMiscIntrMask:
		b.miscIntrMask = val
	}
}
