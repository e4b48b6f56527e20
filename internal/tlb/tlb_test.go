package tlb

import (
	"testing"

	"mipsemu/internal/excode"
)

type fakeSource struct {
	hi, lo0, lo1, pm, wired uint32
}

func (s fakeSource) EntryHi() uint32  { return s.hi }
func (s fakeSource) EntryLo0() uint32 { return s.lo0 }
func (s fakeSource) EntryLo1() uint32 { return s.lo1 }
func (s fakeSource) PageMask() uint32 { return s.pm }
func (s fakeSource) Wired() uint32    { return s.wired }

func TestWriteIndexedThenProbe(t *testing.T) {
	tl := New()
	src := fakeSource{
		hi:  0x10000000 | 5, // VPN2=0x10000000, ASID=5
		lo0: (0x00001000 >> 6 << 6) | (1 << 1) | (1 << 2), // V=1 D=1
		lo1: (0x00002000 >> 6 << 6) | (1 << 1),
	}
	tl.WriteIndexed(3, src)

	idx, fail := tl.Probe(src.EntryHi())
	if fail {
		t.Fatalf("expected probe hit")
	}
	if idx != 3 {
		t.Fatalf("expected index 3, got %d", idx)
	}
}

func TestLookupRefillOnEmptyTLB(t *testing.T) {
	tl := New()
	res := tl.Lookup(0x10000000, 0, false)
	if res.Fail != excode.TLBRefillL {
		t.Fatalf("expected TLBRefillL, got %v", res.Fail)
	}
}

func TestLookupOddHalfInvalidIsTLBNotRefill(t *testing.T) {
	tl := New()
	src := fakeSource{
		hi:  0x10000000,
		lo0: (0x1000 << 6) | (1 << 1) | (1 << 2), // even valid+dirty
		lo1: 0,                                   // odd invalid
	}
	tl.WriteIndexed(0, src)

	// vaddr with the odd-page bit set (bit 12, since page size 4K, mask default 0)
	res := tl.Lookup(0x10000000|0x1000, 0, false)
	if res.Fail == 0 {
		t.Fatalf("expected a fault for invalid odd half")
	}
	if res.Fail == excode.TLBRefillL {
		t.Fatalf("expected TLBL not TLB_REFILL_L for a matched-but-invalid entry")
	}
}

func TestWriteRandomDecrementsWithWrap(t *testing.T) {
	tl := New()
	src := fakeSource{hi: 0x20000000}
	r := tl.WriteRandom(0, 0, src)
	if r != NumEntries-1 {
		t.Fatalf("expected wrap to %d, got %d", NumEntries-1, r)
	}
}
