// Package uart implements the 16550-lite UART described in spec.md §6:
// registers shifted by 2, big-endian lanes, LF/CR and DEL/BS translation
// on the RX path, and divisor-latch access gated by LCR bit 7.
package uart

// Register offsets (register index x 4), per spec.md §6.
const (
	OffRXTXBuf = 0x00
	OffIER     = 0x04
	OffIIR     = 0x08
	OffLCR     = 0x0C
	OffMCR     = 0x10
	OffLSR     = 0x14
	OffMSR     = 0x18
	OffSCR     = 0x1C

	RegionSize = 0x20
)

// LSR bits
const (
	lsrDataReady  = 1 << 0
	lsrTxHoldEmpt = 1 << 5
	lsrTxEmpty    = 1 << 6
)

// LCR bit 7 selects the divisor latch.
const lcrDLAB = 1 << 7

// IIR pending-interrupt codes. Reading IIR reports iirRxDataAvail
// while a received byte is buffered and iirNoInterrupt otherwise; the
// read clears nothing, and iirTxEmpty is never reported.
const (
	iirNoInterrupt  = 0x01
	iirRxDataAvail  = 0x04
	iirTxEmpty      = 0x02
)

// Backend is the polymorphic console back end a UART is built on
// (spec.md §3 "A UART back-end is polymorphic over {try_read_byte,
// write_char}"). The native backend is in backend_native.go; tests
// use an in-memory backend.
type Backend interface {
	// TryReadByte returns the next buffered keystroke, if any.
	TryReadByte() (b byte, ok bool)
	// WriteChar emits a byte to the console; ok is false if the host
	// I/O failed (spec.md §7 "Host-side I/O failures... propagated as
	// not buffered; never fatal").
	WriteChar(b byte) (ok bool)
}

// UART is the soft state for one 16550-lite instance.
type UART struct {
	backend Backend

	ier, lcr, mcr, scr uint8
	dll, dlm           uint8

	rxByte    byte
	rxPending bool

	breakPending bool
}

func New(backend Backend) *UART {
	return &UART{backend: backend, mcr: 0}
}

// Poll lets a queued keystroke latch into the RX buffer; called once
// per main-loop wall-clock tick (spec.md §4.9 step 1: "poke the UART
// line-status read to let it latch a queued keystroke into its
// buffer").
func (u *UART) Poll() {
	if u.rxPending {
		return
	}
	if b, ok := u.backend.TryReadByte(); ok {
		u.rxByte = translateRX(b)
		u.rxPending = true
	}
}

// InjectBreak forwards a Ctrl-C as an ETX byte into the guest, per
// spec.md §4.9 step 5 ("inject a break into the UART (forward as ETX
// byte to the guest)").
func (u *UART) InjectBreak() {
	if !u.rxPending {
		u.rxByte = 0x03
		u.rxPending = true
	}
	u.breakPending = true
}

// translateRX applies the guest ASCII conventions: LF<->CR and
// DEL<->BS (spec.md §6).
func translateRX(b byte) byte {
	switch b {
	case '\n':
		return '\r'
	case 0x7F:
		return 0x08
	default:
		return b
	}
}

// DataAvailable reports whether the RX buffer holds a byte, for the
// main loop's external-interrupt pending-bit refresh (spec.md §4.9
// step 3).
func (u *UART) DataAvailable() bool {
	return u.rxPending
}

// ReadReg32 reads the 32-bit-aligned register at offset. byte/half
// extraction is handled by the memory dispatcher (spec.md §4.4
// "Access-width semantics").
func (u *UART) ReadReg32(offset uint32) uint32 {
	if u.lcrDLAB() && (offset == OffRXTXBuf || offset == OffIER) {
		if offset == OffRXTXBuf {
			return uint32(u.dll) << 24
		}
		return uint32(u.dlm) << 24
	}

	switch offset {
	case OffRXTXBuf:
		if u.rxPending {
			b := u.rxByte
			u.ConsumeRX()
			return uint32(b) << 24
		}
		return 0
	case OffIER:
		return uint32(u.ier) << 24
	case OffIIR:
		if u.rxPending {
			return uint32(iirRxDataAvail) << 24
		}
		return uint32(iirNoInterrupt) << 24
	case OffLCR:
		return uint32(u.lcr) << 24
	case OffMCR:
		return uint32(u.mcr) << 24
	case OffLSR:
		return uint32(u.lsr()) << 24
	case OffMSR:
		// CTS, DSR, and "ring" pinned high per spec.md §6.
		return uint32(0x30|0x80) << 24
	case OffSCR:
		return uint32(u.scr) << 24
	}
	return 0
}

func (u *UART) lcrDLAB() bool { return u.lcr&lcrDLAB != 0 }

// WriteReg32 writes the 32-bit-aligned register at offset.
func (u *UART) WriteReg32(offset uint32, val uint32) {
	b := byte(val >> 24)

	if u.lcrDLAB() && (offset == OffRXTXBuf || offset == OffIER) {
		if offset == OffRXTXBuf {
			u.dll = b
		} else {
			u.dlm = b
		}
		return
	}

	switch offset {
	case OffRXTXBuf:
		u.transmit(b)
	case OffIER:
		u.ier = b
	case OffLCR:
		u.lcr = b
	case OffMCR:
		u.mcr = b
	case OffSCR:
		u.scr = b
	}
}

// transmit writes b through the backend, prefixing a CR before an LF
// per spec.md §6 scenario 4 ("a 0x0A byte is prefixed with a 0x0D").
func (u *UART) transmit(b byte) {
	if b == 0x0A {
		u.backend.WriteChar(0x0D)
	}
	u.backend.WriteChar(b)
}

// lsr reports TX-empty/TX-buf-empty always, and RX-buf-full when a
// byte is buffered (spec.md §6 "LSR always reports TX-empty and
// TX-buf-empty; if a byte is buffered... RX-buf-full is set").
func (u *UART) lsr() uint8 {
	v := uint8(lsrTxHoldEmpt | lsrTxEmpty)
	if u.rxPending {
		v |= lsrDataReady
	}
	return v
}

// ConsumeRX pops the buffered RX byte, clearing the data-ready
// condition the way reading a real 16550's RBR does. ReadReg32 calls
// this itself on an RXTXBuf read; it's exported so a future register
// window reset path can clear RX state without going through a read.
func (u *UART) ConsumeRX() {
	u.rxPending = false
	u.breakPending = false
}
