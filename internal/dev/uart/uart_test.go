package uart

import "testing"

type fakeBackend struct {
	rx      []byte
	written []byte
}

func (f *fakeBackend) TryReadByte() (byte, bool) {
	if len(f.rx) == 0 {
		return 0, false
	}
	b := f.rx[0]
	f.rx = f.rx[1:]
	return b, true
}

func (f *fakeBackend) WriteChar(b byte) bool {
	f.written = append(f.written, b)
	return true
}

func TestPollLatchesOneByteAndTranslatesLF(t *testing.T) {
	be := &fakeBackend{rx: []byte{'\n'}}
	u := New(be)
	u.Poll()
	if !u.DataAvailable() {
		t.Fatalf("expected a byte to be latched")
	}
	if got := u.ReadReg32(OffRXTXBuf) >> 24; got != uint32('\r') {
		t.Fatalf("LF should translate to CR on RX: got %#x", got)
	}
}

func TestReadingRXTXBufConsumesIt(t *testing.T) {
	be := &fakeBackend{rx: []byte{'a', 'b'}}
	u := New(be)
	u.Poll()

	u.ReadReg32(OffRXTXBuf)
	if u.DataAvailable() {
		t.Fatalf("reading RXTXBuf must clear the data-ready condition")
	}

	u.Poll()
	if got := u.ReadReg32(OffRXTXBuf) >> 24; got != uint32('b') {
		t.Fatalf("second keystroke: got %#x, want 'b'", got)
	}
}

func TestTransmitPrefixesLFWithCR(t *testing.T) {
	be := &fakeBackend{}
	u := New(be)
	u.WriteReg32(OffRXTXBuf, uint32('\n')<<24)
	if len(be.written) != 2 || be.written[0] != 0x0D || be.written[1] != 0x0A {
		t.Fatalf("expected CR then LF, got %v", be.written)
	}
}

func TestLSRReportsDataReadyOnlyWhenPending(t *testing.T) {
	be := &fakeBackend{rx: []byte{'x'}}
	u := New(be)
	if lsr := u.ReadReg32(OffLSR) >> 24; lsr&lsrDataReady != 0 {
		t.Fatalf("LSR must not report data-ready before a byte is latched")
	}
	u.Poll()
	if lsr := u.ReadReg32(OffLSR) >> 24; lsr&lsrDataReady == 0 {
		t.Fatalf("LSR must report data-ready once a byte is latched")
	}
}

func TestDivisorLatchAccessGatedByLCRBit7(t *testing.T) {
	be := &fakeBackend{}
	u := New(be)
	u.WriteReg32(OffLCR, lcrDLAB)
	u.WriteReg32(OffRXTXBuf, 0x12<<24) // writes DLL instead of transmitting
	if len(be.written) != 0 {
		t.Fatalf("DLAB-gated write must not reach the backend")
	}
	if got := u.ReadReg32(OffRXTXBuf) >> 24; got != 0x12 {
		t.Fatalf("DLL readback: got %#x, want 0x12", got)
	}
}

func TestInjectBreakLatchesETXWithoutOverwritingPendingByte(t *testing.T) {
	be := &fakeBackend{rx: []byte{'z'}}
	u := New(be)
	u.Poll()
	u.InjectBreak()
	if got := u.ReadReg32(OffRXTXBuf) >> 24; got != uint32('z') {
		t.Fatalf("a pending byte must not be clobbered by InjectBreak: got %#x", got)
	}
}
