// Package tlb implements the 32-entry software-managed TLB and its
// direct-mapped index-cache hint, per spec.md §3 ("TLB", "TLB index
// cache") and §4.2.
package tlb

import "mipsemu/internal/excode"

// NumEntries is the fixed TLB size (spec.md §3: "Exactly 32 entries").
const NumEntries = 32

// indexCacheSize is the 2^10-entry side table size (spec.md §3).
const indexCacheSize = 1024

// noHit is the sentinel meaning "no hit" for an index-cache bucket
// (spec.md §3: "the sentinel NUM_ENTRIES meaning no hit").
const noHit = NumEntries

// Entry is one TLB entry: an even/odd virtual page pair with two
// physical sub-entries (spec.md §3 "TLB").
type Entry struct {
	VPN2 uint32 // top bits of the even-odd virtual page pair
	ASID uint8
	G    bool // AND of the two low-half G bits
	Mask uint32

	PFN0 uint32
	V0   bool
	D0   bool

	PFN1 uint32
	V1   bool
	D1   bool
}

// Source supplies the register values that back a TLB write
// (EntryHi/EntryLo0/EntryLo1/PageMask/Wired); Index and Random are
// passed to WriteIndexed/WriteRandom as plain arguments. It is kept
// as an interface so internal/cp0 stays the single owner of register
// state while internal/tlb stays free of a cp0 import cycle.
type Source interface {
	EntryHi() uint32
	EntryLo0() uint32
	EntryLo1() uint32
	PageMask() uint32
	Wired() uint32
}

// TLB is the 32-entry array plus its index-cache hint.
type TLB struct {
	entries    [NumEntries]Entry
	indexCache [indexCacheSize]uint32 // -> TLB index, or noHit

	// OnWrite is invoked whenever WriteIndexed/WriteRandom install a
	// new entry, so the owner can invalidate address-translation
	// caches (spec.md §4.2).
	OnWrite func()
}

// New returns an empty TLB with every index-cache bucket set to the
// no-hit sentinel.
func New() *TLB {
	t := &TLB{}
	for i := range t.indexCache {
		t.indexCache[i] = noHit
	}
	return t
}

func bucketOf(vaddr uint32) uint32 {
	return (vaddr >> 12) % indexCacheSize
}

func addrMask(pageMask uint32) uint32 {
	return 0xFFF | pageMask
}

// decodeEntry builds an Entry from EntryHi/EntryLo0/EntryLo1/PageMask
// register values, per spec.md §4.2 "Write (indexed or random)".
func decodeEntry(entryHi, lo0, lo1, pageMask uint32) Entry {
	var e Entry
	e.VPN2 = entryHi & 0xFFFFE000
	e.ASID = uint8(entryHi & 0xFF)
	e.Mask = pageMask & 0x01FFE000

	g0 := lo0&1 != 0
	g1 := lo1&1 != 0
	e.G = g0 && g1

	e.V0 = lo0&(1<<1) != 0
	e.D0 = lo0&(1<<2) != 0
	e.PFN0 = (lo0 << 6) & 0xFFFFF000

	e.V1 = lo1&(1<<1) != 0
	e.D1 = lo1&(1<<2) != 0
	e.PFN1 = (lo1 << 6) & 0xFFFFF000

	return e
}

// evictFromIndexCache/installIndexCache key the hint on the entry's
// raw VPN2, the same way Lookup's miss path keys it on the raw
// faulting vaddr (bucketOf does the >>12 itself); masking by the
// entry's page size here would compute a different bucket than the
// one a same-page Lookup call probes, so larger-than-4KB pages would
// never hit the hint.
func (t *TLB) evictFromIndexCache(oldVPN2 uint32) {
	b := bucketOf(oldVPN2)
	if t.indexCache[b] != noHit {
		t.indexCache[b] = noHit
	}
}

func (t *TLB) installIndexCache(vpn2 uint32, index int) {
	b := bucketOf(vpn2)
	t.indexCache[b] = uint32(index)
}

// WriteIndexed implements TLBWI: writes the decoded entry at
// Index & 0x3F (wrapped modulo 32 if >= 32), per spec.md §4.2.
func (t *TLB) WriteIndexed(index uint32, src Source) {
	idx := int(index & 0x3F)
	if idx >= NumEntries {
		idx %= NumEntries
	}
	t.writeAt(idx, src)
}

// WriteRandom implements TLBWR: decrements Random with the wrap rule
// from spec.md §4.2 "Write random", then writes at the post-wrap
// index. It returns the new Random value so the caller (cp0) can
// store it back into the Random register.
func (t *TLB) WriteRandom(random, wired uint32, src Source) (newRandom uint32) {
	if random <= (wired&0x3F) || random >= NumEntries {
		newRandom = NumEntries - 1
	} else {
		newRandom = random - 1
	}
	t.writeAt(int(newRandom), src)
	return newRandom
}

func (t *TLB) writeAt(idx int, src Source) {
	old := t.entries[idx]
	t.evictFromIndexCache(old.VPN2)

	e := decodeEntry(src.EntryHi(), src.EntryLo0(), src.EntryLo1(), src.PageMask())
	t.entries[idx] = e

	t.installIndexCache(e.VPN2, idx)

	if t.OnWrite != nil {
		t.OnWrite()
	}
}

// Read implements TLBR: returns the raw register values to reinstall
// into EntryHi/EntryLo0/EntryLo1/PageMask.
func (t *TLB) Read(index uint32) (entryHi, lo0, lo1, pageMask uint32, ok bool) {
	idx := int(index & 0x3F)
	if idx >= NumEntries {
		return 0, 0, 0, 0, false
	}
	e := t.entries[idx]

	entryHi = (e.VPN2 & 0xFFFFE000) | uint32(e.ASID)
	pageMask = e.Mask & 0x01FFE000

	lo0 = (e.PFN0 >> 6) & 0x3FFFFC0
	if e.D0 {
		lo0 |= 1 << 2
	}
	if e.V0 {
		lo0 |= 1 << 1
	}
	if e.G {
		lo0 |= 1
	}

	lo1 = (e.PFN1 >> 6) & 0x3FFFFC0
	if e.D1 {
		lo1 |= 1 << 2
	}
	if e.V1 {
		lo1 |= 1 << 1
	}
	if e.G {
		lo1 |= 1
	}

	return entryHi, lo0, lo1, pageMask, true
}

// Probe implements TLBP (spec.md §4.2 "Probe"): scans all entries for
// a VPN2/ASID(or-Global) match and returns the matching index, or
// probeFail=true on miss.
func (t *TLB) Probe(entryHi uint32) (index uint32, probeFail bool) {
	vpn2 := entryHi & 0xFFFFE000
	asid := uint8(entryHi & 0xFF)

	for i := range t.entries {
		e := &t.entries[i]
		mask := addrMask(e.Mask)
		mask2 := (mask << 1) | 1
		if (e.VPN2&^mask2) == (vpn2&^mask2) && (e.G || e.ASID == asid) {
			return uint32(i), false
		}
	}
	return 0, true
}

// LookupResult carries the outcome of a Lookup call.
type LookupResult struct {
	PAddr uint32
	Fail  excode.Code // zero value means success
}

// Lookup implements spec.md §4.2 "Lookup": consult the index-cache
// hint first, fall back to a linear scan, and distinguish
// TLB_REFILL_* (no match at all) from TLB_LOAD/TLB_STORE (matched
// entry, wrong half invalid) and MOD (write to a non-dirty valid
// page).
func (t *TLB) Lookup(vaddr uint32, asid uint8, write bool) LookupResult {
	b := bucketOf(vaddr)
	if hint := t.indexCache[b]; hint < NumEntries {
		e := &t.entries[hint]
		if res, ok := t.testEntry(e, vaddr, asid, write); ok {
			return res
		}
	}

	for i := range t.entries {
		e := &t.entries[i]
		if !matches(e, vaddr, asid) {
			continue
		}
		t.indexCache[b] = uint32(i)
		res, _ := t.testEntry(e, vaddr, asid, write)
		return res
	}

	if write {
		return LookupResult{Fail: excode.TLBRefillS}
	}
	return LookupResult{Fail: excode.TLBRefillL}
}

// matches reports whether entry e's VPN2/ASID tag matches vaddr/asid,
// per the same comparison spec.md §4.2 "Probe" and "Lookup" describe.
func matches(e *Entry, vaddr uint32, asid uint8) bool {
	mask2 := (addrMask(e.Mask) << 1) | 1
	vpn2 := vaddr & 0xFFFFE000
	if (e.VPN2 &^ mask2) != (vpn2 &^ mask2) {
		return false
	}
	return e.G || e.ASID == asid
}

// testEntry validates tag, then valid/dirty bits, for a candidate
// entry already known (or hinted) to match vaddr/asid. It re-checks
// the tag (spec.md §9 open question: "validate the tag on hit") so a
// stale index-cache hint that now points at a rewritten entry is
// rejected rather than trusted blindly.
func (t *TLB) testEntry(e *Entry, vaddr uint32, asid uint8, write bool) (LookupResult, bool) {
	if !matches(e, vaddr, asid) {
		return LookupResult{}, false
	}

	mask := addrMask(e.Mask)
	mask2 := (mask << 1) | 1
	oddSelector := (mask2 ^ mask) & vaddr
	useOdd := oddSelector != 0

	valid := e.V0
	dirty := e.D0
	pfn := e.PFN0
	if useOdd {
		valid = e.V1
		dirty = e.D1
		pfn = e.PFN1
	}

	if !valid {
		if write {
			return LookupResult{Fail: excode.TLBS}, true
		}
		return LookupResult{Fail: excode.TLBL}, true
	}
	if write && !dirty {
		return LookupResult{Fail: excode.Mod}, true
	}

	paddr := pfn | (vaddr & mask)
	return LookupResult{PAddr: paddr}, true
}
