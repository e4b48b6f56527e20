package uart

import (
	"os"

	"golang.org/x/term"
)

// NativeBackend is the host-terminal Backend: reads come from a
// keyin.Mailbox-like byte source (decoupled here as a small interface
// so this package doesn't import internal/keyin), writes go straight
// to stdout. Grounded in the pack's own raw-mode terminal handling
// (gmofishsauce-wut4/emul/main.go's setupTerminal/restoreTerminal)
// rather than the teacher, which only sketches the idea in a comment.
type NativeBackend struct {
	mailbox mailboxReader
}

// mailboxReader is the one method NativeBackend needs from
// internal/keyin.Mailbox.
type mailboxReader interface {
	TryReadByte() (byte, bool)
}

// NewNativeBackend wraps a keystroke mailbox as a UART Backend.
func NewNativeBackend(mailbox mailboxReader) *NativeBackend {
	return &NativeBackend{mailbox: mailbox}
}

func (n *NativeBackend) TryReadByte() (byte, bool) {
	return n.mailbox.TryReadByte()
}

func (n *NativeBackend) WriteChar(b byte) bool {
	_, err := os.Stdout.Write([]byte{b})
	return err == nil
}

// SetupRawMode puts stdin into raw mode so keystrokes reach the guest
// one at a time, unbuffered and unechoed, returning a restore func
// that is a no-op when stdin isn't a terminal (e.g. piped input in
// tests or CI).
func SetupRawMode() (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, state) }, nil
}
