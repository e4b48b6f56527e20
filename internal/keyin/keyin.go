// Package keyin implements the keystroke producer described in
// spec.md §5: a background reader that feeds a lock-free
// single-producer/single-consumer mailbox consumed by the UART back
// end, plus a channel of Ctrl-C events the main loop uses to drive
// the grace-period/double-tap reset detector (spec.md §4.9 step 5).
package keyin

// mailboxCapacity bounds the SPSC ring; one outstanding keystroke is
// the common case, a small cushion absorbs fast paste-like bursts.
const mailboxCapacity = 16

// ctrlCEventsCapacity bounds the Ctrl-C event queue; Ctrl-C arrives at
// human typing speed, so a handful of slots is ample headroom.
const ctrlCEventsCapacity = 4

// Mailbox is a single-producer/single-consumer byte mailbox. The
// producer goroutine is the sole writer; the UART back end (running
// on the emulator's single fiber) is the sole reader.
type Mailbox struct {
	ch         chan byte
	ctrlEvents chan int64 // UnixNano timestamps of Ctrl-C keypresses
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		ch:         make(chan byte, mailboxCapacity),
		ctrlEvents: make(chan int64, ctrlCEventsCapacity),
	}
}

// Push enqueues a keystroke byte; non-blocking, drops the byte if the
// mailbox is full rather than stalling the producer thread.
func (m *Mailbox) Push(b byte) {
	select {
	case m.ch <- b:
	default:
	}
}

// TryReadByte implements internal/dev/uart.Backend's consumer side.
func (m *Mailbox) TryReadByte() (byte, bool) {
	select {
	case b := <-m.ch:
		return b, true
	default:
		return 0, false
	}
}

// PushCtrlC records a Ctrl-C keypress at unixNano. The main loop,
// not the producer, owns the grace-period/double-tap decision
// (spec.md §4.9 step 5), so this only queues the raw event.
func (m *Mailbox) PushCtrlC(unixNano int64) {
	select {
	case m.ctrlEvents <- unixNano:
	default:
	}
}

// PollCtrlC drains the next queued Ctrl-C event, if any.
func (m *Mailbox) PollCtrlC() (unixNano int64, ok bool) {
	select {
	case t := <-m.ctrlEvents:
		return t, true
	default:
		return 0, false
	}
}
