package keyin

import (
	"time"

	"github.com/eiannone/keyboard"
)

// Producer reads the host terminal on a background goroutine and
// feeds a Mailbox, the way the teacher's main.go reads single
// keystrokes with keyboard.GetSingleKey in its TRAP_GETC/TRAP_IN
// handlers — except here the read loop runs independently of
// instruction execution, matching spec.md §5's "keystroke producer
// reads the host's terminal in a background thread".
type Producer struct {
	mailbox *Mailbox
	stop    chan struct{}
}

// StartProducer opens the keyboard and launches the background reader.
// Callers on a headless host (tests, CI) should not call this; feed
// the Mailbox directly instead.
func StartProducer(mailbox *Mailbox) (*Producer, error) {
	if err := keyboard.Open(); err != nil {
		return nil, err
	}
	p := &Producer{mailbox: mailbox, stop: make(chan struct{})}
	go p.run()
	return p, nil
}

func (p *Producer) run() {
	defer keyboard.Close()
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		ch, key, err := keyboard.GetSingleKey()
		if err != nil {
			return
		}

		if key == keyboard.KeyCtrlC {
			p.mailbox.PushCtrlC(time.Now().UnixNano())
			continue
		}

		p.mailbox.Push(byte(ch))
	}
}

// Close stops the background reader.
func (p *Producer) Close() {
	close(p.stop)
}
