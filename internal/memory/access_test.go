package memory

import (
	"testing"

	"mipsemu/internal/addrcache"
	"mipsemu/internal/cp0"
	"mipsemu/internal/dev/spi"
	"mipsemu/internal/dev/spiflash"
	"mipsemu/internal/excode"
	"mipsemu/internal/tlb"
)

func newTestBus(t *testing.T, ramSize uint32) *Bus {
	t.Helper()
	c := cp0.New(cp0.Config{})
	tl := tlb.New()
	caches := &addrcache.Set5{}
	return New(Config{RAMSize: ramSize}, c, tl, caches)
}

func TestLoadStoreWordRoundTrips(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0100
	if _, ok := b.StoreWord(vaddr, 0xDEADBEEF); !ok {
		t.Fatalf("StoreWord failed")
	}
	got, _, ok := b.LoadWord(vaddr)
	if !ok {
		t.Fatalf("LoadWord failed")
	}
	if got != 0xDEADBEEF {
		t.Fatalf("got %#x, want 0xdeadbeef", got)
	}
}

func TestFetchWordReadsStoredInstruction(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0200
	b.StoreWord(vaddr, 0x24011234) // ADDIU $1, $0, 0x1234
	word, _, ok := b.FetchWord(vaddr)
	if !ok || word != 0x24011234 {
		t.Fatalf("FetchWord: got %#x ok=%v", word, ok)
	}
}

func TestFetchWordRejectsMisalignment(t *testing.T) {
	b := newTestBus(t, 1<<16)
	_, code, ok := b.FetchWord(0x8000_0201)
	if ok {
		t.Fatalf("expected misaligned fetch to fail")
	}
	if code != excode.AdEL {
		t.Fatalf("got code %v, want AdEL", code)
	}
}

func TestFetchHalfExtractsCorrectLane(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const base = 0x8000_0300
	b.StoreWord(base, 0x1111_2222)
	if got, _, ok := b.FetchHalf(base); !ok || got != 0x1111 {
		t.Fatalf("low vaddr half: got %#x ok=%v, want 0x1111", got, ok)
	}
	if got, _, ok := b.FetchHalf(base + 2); !ok || got != 0x2222 {
		t.Fatalf("high vaddr half: got %#x ok=%v, want 0x2222", got, ok)
	}
}

func TestLoadStoreHalfSignExtension(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0400
	if code, ok := b.StoreHalf(vaddr, 0xFFFE); !ok {
		t.Fatalf("StoreHalf failed: code=%v", code)
	}
	if got, _, ok := b.LoadHalf(vaddr, true); !ok || got != 0xFFFFFFFE {
		t.Fatalf("signed LoadHalf: got %#x ok=%v, want 0xfffffffe", got, ok)
	}
	if got, _, ok := b.LoadHalf(vaddr, false); !ok || got != 0xFFFE {
		t.Fatalf("unsigned LoadHalf: got %#x ok=%v, want 0xfffe", got, ok)
	}
}

func TestStoreHalfDoesNotClobberNeighboringLane(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0500
	b.StoreWord(vaddr, 0xAAAA_BBBB)
	b.StoreHalf(vaddr+2, 0xCCCC)
	got, _, _ := b.LoadWord(vaddr)
	if got != 0xAAAA_CCCC {
		t.Fatalf("got %#x, want 0xaaaacccc", got)
	}
}

func TestLoadStoreByteLanes(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0600
	b.StoreWord(vaddr, 0x11223344)
	for i, want := range []byte{0x11, 0x22, 0x33, 0x44} {
		if got, _, ok := b.LoadByte(vaddr+uint32(i), false); !ok || got != uint32(want) {
			t.Fatalf("byte %d: got %#x ok=%v, want %#x", i, got, ok, want)
		}
	}
	b.StoreByte(vaddr+1, 0xFF)
	got, _, _ := b.LoadWord(vaddr)
	if got != 0x11FF3344 {
		t.Fatalf("after StoreByte: got %#x, want 0x11ff3344", got)
	}
}

func TestLoadByteSignExtension(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0700
	b.StoreByte(vaddr, 0x80)
	if got, _, ok := b.LoadByte(vaddr, true); !ok || got != 0xFFFFFF80 {
		t.Fatalf("signed LoadByte: got %#x ok=%v, want 0xffffff80", got, ok)
	}
}

func TestLoadStoreWordLeftRightMergeLaws(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0800
	b.StoreWord(vaddr, 0x11223344)

	// LWL at byte 1 replaces the top 3 bytes of reg, keeping the low byte.
	got, _, ok := b.LoadWordLeft(vaddr+1, 0xFFFFFFFF)
	if !ok || got != 0x223344FF {
		t.Fatalf("LoadWordLeft: got %#x ok=%v, want 0x223344ff", got, ok)
	}

	// LWR at byte 1 replaces the bottom 2 bytes of reg with memory bytes
	// 0-1, keeping the top 2 bytes.
	got, _, ok = b.LoadWordRight(vaddr+1, 0xFFFFFFFF)
	if !ok || got != 0xFFFF1122 {
		t.Fatalf("LoadWordRight: got %#x ok=%v, want 0xffff1122", got, ok)
	}
}

func TestStoreWordLeftRightMergeLaws(t *testing.T) {
	b := newTestBus(t, 1<<16)
	const vaddr = 0x8000_0900
	b.StoreWord(vaddr, 0x00000000)

	if _, ok := b.StoreWordLeft(vaddr+1, 0xAABBCCDD); !ok {
		t.Fatalf("StoreWordLeft failed")
	}
	// SWL at byte 1 writes reg's top 3 bytes into the bottom 3 bytes of
	// the aligned word, leaving its own top byte untouched.
	got, _, _ := b.LoadWord(vaddr)
	if got != 0x00AABBCC {
		t.Fatalf("got %#x, want 0x00aabbcc", got)
	}

	b.StoreWord(vaddr, 0x00000000)
	if _, ok := b.StoreWordRight(vaddr+1, 0xAABBCCDD); !ok {
		t.Fatalf("StoreWordRight failed")
	}
	// SWR at byte 1 writes reg's bottom 2 bytes into the top 2 bytes of
	// the aligned word, leaving its own bottom 2 bytes untouched.
	got, _, _ = b.LoadWord(vaddr)
	if got != 0xCCDD0000 {
		t.Fatalf("got %#x, want 0xccdd0000", got)
	}
}

func TestAlignCheckRejectsUnalignedWordAccess(t *testing.T) {
	if _, ok := AlignCheck(0x8000_0001, 4, false); ok {
		t.Fatalf("expected unaligned word load to fail")
	}
	if code, _ := AlignCheck(0x8000_0001, 4, true); code != excode.AdES {
		t.Fatalf("unaligned word store: got %v, want AdES", code)
	}
	if _, ok := AlignCheck(0x8000_0002, 4, false); ok {
		t.Fatalf("word access at a halfword-only offset must still fail")
	}
	if _, ok := AlignCheck(0x8000_0002, 2, false); !ok {
		t.Fatalf("halfword access at a halfword-aligned offset must succeed")
	}
}

// TestROMWindowDefaultsToFlashMapped exercises the fix to SPI's
// FUNC_SEL polarity: with FUNC_SEL left at its power-on zero value, a
// read from the ROM window must come from the attached flash image,
// not the (mostly zero) SPI register file, since that's how the core
// fetches its boot code.
func TestROMWindowDefaultsToFlashMapped(t *testing.T) {
	b := newTestBus(t, 1<<16)

	image := make([]byte, 0x1000)
	copy(image, []byte{0x24, 0x01, 0x12, 0x34}) // ADDIU $1, $0, 0x1234

	flash := spiflash.New(spiflash.Part8MiB, image)
	spiBus := spi.New()
	spiBus.AttachSlave(0, flash)
	b.SPI = spiBus
	b.SetFlashReader(flash)

	const romBaseVAddr = 0x9F00_0000 // KSEG0, maps straight to romBase with no reset-vector alias
	word, _, ok := b.FetchWord(romBaseVAddr)
	if !ok {
		t.Fatalf("FetchWord from the ROM window failed")
	}
	if word != 0x24011234 {
		t.Fatalf("ROM window: got %#x, want 0x24011234 (flash-mapped by default)", word)
	}
}
