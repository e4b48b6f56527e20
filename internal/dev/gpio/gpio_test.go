package gpio

import "testing"

func TestOEAndOutLatch(t *testing.T) {
	g := New()
	g.WriteReg32(OffOE, 0xFF)
	g.WriteReg32(OffOut, 0x0A)
	if got := g.ReadReg32(OffOE); got != 0xFF {
		t.Fatalf("OE: got %#x, want 0xff", got)
	}
	if got := g.ReadReg32(OffOut); got != 0x0A {
		t.Fatalf("OUT: got %#x, want 0x0a", got)
	}
}

func TestSetAndClrAreOrAndAndNot(t *testing.T) {
	g := New()
	g.WriteReg32(OffOut, 0x0F)
	g.WriteReg32(OffSet, 0xF0)
	if got := g.ReadReg32(OffOut); got != 0xFF {
		t.Fatalf("after SET: got %#x, want 0xff", got)
	}
	g.WriteReg32(OffClr, 0x0F)
	if got := g.ReadReg32(OffOut); got != 0xF0 {
		t.Fatalf("after CLR: got %#x, want 0xf0", got)
	}
}

func TestSetClrLeaveOEAlone(t *testing.T) {
	g := New()
	g.WriteReg32(OffOE, 0x55)
	g.WriteReg32(OffSet, 0xFF)
	g.WriteReg32(OffClr, 0xFF)
	if got := g.ReadReg32(OffOE); got != 0x55 {
		t.Fatalf("OE must be untouched by SET/CLR: got %#x", got)
	}
}
