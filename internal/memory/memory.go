// Package memory implements the memory dispatcher described in
// spec.md §4.4: virtual-to-physical translation keyed on Status and
// address segment, then physical-address routing to DRAM, the
// ROM/SPI window, or an MMIO peripheral block. The teacher's
// internal/mips32.Memory establishes the big-endian byte-lane
// convention this package generalizes to a segmented, MMIO-routed
// address space.
package memory

import (
	"mipsemu/internal/addrcache"
	"mipsemu/internal/cp0"
	"mipsemu/internal/dev/gpio"
	"mipsemu/internal/dev/soc"
	"mipsemu/internal/dev/spi"
	"mipsemu/internal/dev/uart"
	"mipsemu/internal/excode"
	"mipsemu/internal/tlb"
)

// Physical region bases, per spec.md §4.4.
const (
	romBase    = 0x1F00_0000
	romSizeDef = 16 << 20 // device is 16 MiB; only ROM_SIZE of it is addressed per boot image

	uart0Base = 0x1802_0000
	uart1Base = 0x1850_0000

	gpioBase = 0x1804_0000

	socBase = 0x1806_0000

	resetVectorPhys = 0x1FC0_0000
	remapMask       = 0xFF3F_FFFF
)

// segment selects the address-space region used by translation.
type segment int

const (
	segUser segment = iota
	segKSEG0
	segKSEG1
	segKSEG2
	segKSEG3
)

func classify(vaddr uint32) segment {
	switch {
	case vaddr < 0x8000_0000:
		return segUser
	case vaddr < 0xA000_0000:
		return segKSEG0
	case vaddr < 0xC000_0000:
		return segKSEG1
	case vaddr < 0xE000_0000:
		return segKSEG2
	default:
		return segKSEG3
	}
}

// Config configures the DRAM size and flash geometry at construction.
type Config struct {
	RAMSize uint32
	// ROMSize overrides the ROM window's size; 0 selects romSizeDef.
	ROMSize uint32
}

// Bus is the memory dispatcher: DRAM, TLB/address-cache translation,
// and MMIO routing to the peripheral collaborators.
type Bus struct {
	dram     []byte
	dramMask uint32

	cp0    *cp0.File
	tlb    *tlb.TLB
	caches *addrcache.Set5

	UART0 *uart.UART
	UART1 *uart.UART
	GPIO  *gpio.GPIO
	SOC   *soc.Block
	SPI   *spi.Bus

	romSize uint32
	flash   flashReader
}

// New builds a memory dispatcher. The caller wires UART0/UART1/GPIO/
// SOC/SPI afterward (they need backends constructed first) and must
// set Bus.SPI.OnRemapChange / Bus.SOC.OnResetRequest to the machine's
// own invalidation/reset hooks.
func New(cfg Config, c *cp0.File, t *tlb.TLB, caches *addrcache.Set5) *Bus {
	romSize := cfg.ROMSize
	if romSize == 0 {
		romSize = romSizeDef
	}
	dramSize := nextPow2(cfg.RAMSize)
	b := &Bus{
		dram:     make([]byte, dramSize),
		dramMask: dramSize - 1,
		cp0:      c,
		tlb:      t,
		caches:   caches,
		romSize:  romSize,
	}
	return b
}

// nextPow2 rounds n up to the nearest power of 2 (minimum 4096), so
// DRAM wraparound can use a bitmask (_examples/original_source/src/
// config.rs's DRAM_SIZE/DRAM_ADDR_MASK pair) instead of a modulo that
// can leave the byte-lane helpers indexing past the end of a
// non-multiple-of-4 slice.
func nextPow2(n uint32) uint32 {
	const minDRAM = 1 << 12
	if n <= minDRAM {
		return minDRAM
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

// effectiveMode mirrors spec.md §3's "Mode is the 5 low bits of
// Status" used to fingerprint the address caches.
func (b *Bus) effectiveMode() uint8 { return b.cp0.Mode() }

// effectiveKSU mirrors the architectural KSU field of Status (kernel
// mode whenever EXL or ERL is set, regardless of KSU): 0=kernel,
// 1=supervisor, 2=user.
func effectiveKSU(mode uint8) uint8 {
	if mode&uint8(cp0.StatusEXL|cp0.StatusERL) != 0 {
		return 0
	}
	return (mode & uint8(cp0.StatusKSU)) >> 3
}

func addrErr(write bool) (uint32, excode.Code, bool) {
	if write {
		return 0, excode.AdES, false
	}
	return 0, excode.AdEL, false
}

// Translate implements spec.md §4.4's virtual-to-physical mapping.
// write selects ADDR_ERR_STORE/TLB_STORE over the load variants on
// failure. The returned excode.Code is only meaningful when ok is
// false; callers must check ok before consulting it, since
// excode.Int (0) is itself a valid architectural code.
func (b *Bus) Translate(vaddr uint32, write bool) (uint32, excode.Code, bool) {
	mode := b.effectiveMode()
	ksu := effectiveKSU(mode)
	seg := classify(vaddr)

	if seg != segUser && ksu == 2 {
		return addrErr(write)
	}

	switch seg {
	case segUser:
		erl := b.cp0.Status()&cp0.StatusERL != 0
		if erl && vaddr < (1<<29) {
			return vaddr, 0, true
		}
		return b.tlbLookup(vaddr, write)

	case segKSEG0, segKSEG1:
		if ksu == 1 {
			return addrErr(write)
		}
		paddr := vaddr &^ 0xE000_0000
		paddr = b.applyROMAlias(paddr)
		return paddr, 0, true

	case segKSEG3:
		if ksu == 1 {
			return addrErr(write)
		}
		return b.tlbLookup(vaddr, write)

	default: // segKSEG2
		return b.tlbLookup(vaddr, write)
	}
}

// applyROMAlias mirrors the reset-vector window into the ROM device's
// address range when REMAP_DISABLE is 0 (spec.md §4.4 "alias it down
// to paddr & 0xFF3F_FFFF").
func (b *Bus) applyROMAlias(paddr uint32) uint32 {
	if !b.remapDisabled() && paddr >= resetVectorPhys {
		return paddr & remapMask
	}
	return paddr
}

func (b *Bus) remapDisabled() bool {
	return b.SPI != nil && b.SPI.RemapDisabled()
}

func (b *Bus) tlbLookup(vaddr uint32, write bool) (uint32, excode.Code, bool) {
	asid := b.cp0.ASID()
	res := b.tlb.Lookup(vaddr, asid, write)
	if res.Fail != 0 {
		return 0, res.Fail, false
	}
	return res.PAddr, 0, true
}

// ResolveCached performs the address-cache-assisted translation used
// by fetch and load/store (spec.md §3 "address-translation cache",
// §4.4/§4.5): check the cache first, else translate and populate it.
func (b *Bus) ResolveCached(kind addrcache.Kind, vaddr uint32, write bool) (uint32, excode.Code, bool) {
	mode := b.effectiveMode()
	asid := b.cp0.ASID()
	page := vaddr &^ 0xFFF
	cache := b.caches.For(kind)

	if cache.Check(page, asid, mode) {
		paddr := cache.Lookup(vaddr)
		return paddr, 0, true
	}

	paddr, code, ok := b.Translate(vaddr, write)
	if !ok {
		return 0, code, false
	}
	cache.Set(page, asid, mode, paddr&^0xFFF)
	return paddr, 0, true
}

// InvalidateCaches clears all five address caches (spec.md §3 "All
// five are cleared whenever a TLB write occurs or when the SPI
// REMAP_DISABLE bit toggles").
func (b *Bus) InvalidateCaches() {
	b.caches.ClearAll()
}
