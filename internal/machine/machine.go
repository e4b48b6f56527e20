// Package machine assembles the CPU, memory-mapped peripherals, and
// background producers (keystrokes, wall-clock ticks) into the single
// Run loop described in spec.md §4.9. The teacher's mips.CPU.Run (a
// goroutine driven by a done channel, stoppable from main) is the
// shape this package's Machine.Run generalizes to the fuller
// peripheral/interrupt/Ctrl-C machinery spec.md adds on top.
package machine

import (
	"fmt"
	"time"

	"mipsemu/internal/cp0"
	"mipsemu/internal/cpu"
	"mipsemu/internal/dev/gpio"
	"mipsemu/internal/dev/soc"
	"mipsemu/internal/dev/spi"
	"mipsemu/internal/dev/spiflash"
	"mipsemu/internal/dev/uart"
	"mipsemu/internal/exec16"
	"mipsemu/internal/exec32"
	"mipsemu/internal/excode"
	"mipsemu/internal/keyin"
	"mipsemu/internal/timesrc"
)

// ctrlCGracePeriod is the window spec.md §4.9 step 5 describes: a
// solitary Ctrl-C injects a break after this delay, two within it
// requests a reset.
const ctrlCGracePeriod = time.Second

// Config bundles the construction-time parameters a caller (cmd/mipsemu)
// supplies.
type Config struct {
	RAMSize    uint32
	ROMSize    uint32
	FlashPart  spiflash.Part
	FlashImage []byte
	BootPC     uint32
}

// Machine is the fully wired emulator: CPU core, peripherals, and the
// background keystroke/tick producers.
type Machine struct {
	CPU *cpu.CPU

	UART0 *uart.UART
	Flash *spiflash.Flash

	mailbox  *keyin.Mailbox
	producer *keyin.Producer
	ticker   *timesrc.Source

	resetRequest  bool
	ctrlCFirstAt  time.Time
	ctrlCArmed    bool
	instCount     uint64
}

// New builds a Machine with every peripheral wired per spec.md §3/§6:
// TLB writes and SPI REMAP_DISABLE toggles invalidate the address
// caches, RST_RESET's full-chip bit requests a reset, and the flash
// image backs both the bit-banged SPI slave and the fast-read alias.
func New(cfg Config) *Machine {
	c := cpu.New(cpu.Config{RAMSize: cfg.RAMSize, ROMSize: cfg.ROMSize, TLBConfig: cp0.Config{}})

	mailbox := keyin.NewMailbox()
	uart0 := uart.New(uart.NewNativeBackend(mailbox))
	uart1 := uart.New(uart.NewNativeBackend(mailbox))

	gp := gpio.New()
	socBlock := soc.New()
	spiBus := spi.New()
	flash := spiflash.New(cfg.FlashPart, cfg.FlashImage)
	spiBus.AttachSlave(0, flash)

	c.Mem.UART0 = uart0
	c.Mem.UART1 = uart1
	c.Mem.GPIO = gp
	c.Mem.SOC = socBlock
	c.Mem.SPI = spiBus
	c.Mem.SetFlashReader(flash)

	spiBus.OnRemapChange = func(bool) { c.Mem.InvalidateCaches() }

	m := &Machine{
		CPU:     c,
		UART0:   uart0,
		Flash:   flash,
		mailbox: mailbox,
		ticker:  timesrc.Start(),
	}
	socBlock.OnResetRequest = func() { m.resetRequest = true }

	c.Reset(cfg.BootPC)
	return m
}

// StartKeyboard attaches the host terminal as the keystroke source;
// headless callers (tests) skip this and feed m.Mailbox() directly.
func (m *Machine) StartKeyboard() error {
	p, err := keyin.StartProducer(m.mailbox)
	if err != nil {
		return err
	}
	m.producer = p
	return nil
}

// Mailbox exposes the keystroke mailbox for callers that drive it
// without a live terminal (tests, scripted input).
func (m *Machine) Mailbox() *keyin.Mailbox { return m.mailbox }

// Stop terminates the background producers.
func (m *Machine) Stop() {
	if m.producer != nil {
		m.producer.Close()
	}
	m.ticker.Stop()
}

// Run drives the fetch/dispatch loop described in spec.md §4.9 until
// a reset is requested or an unknown encoding halts execution; stopCh
// lets the caller break out from a signal handler the way the
// teacher's cmd/mipsvm/main.go does with its CPU.Stop().
func (m *Machine) Run(stopCh <-chan struct{}) error {
	for {
		select {
		case <-stopCh:
			return nil
		default:
		}

		halted, err := m.StepOnce()
		if halted {
			return err
		}
		if m.resetRequest {
			return nil
		}
	}
}

// StepOnce runs exactly one main-loop iteration (spec.md §4.9): zero
// r0, fetch/dispatch (or idle a quarter-tick while WAIT-sleeping),
// then the wall-clock/interrupt/Ctrl-C bookkeeping. halted reports an
// unknown encoding; callers driving the loop themselves (a debugger's
// breakpoint stepping) should also check ResetRequested after each
// call.
func (m *Machine) StepOnce() (halted bool, err error) {
	m.CPU.Regs.ZeroR0()

	if m.CPU.Sleep {
		m.tick()
		if !m.CPU.Sleep {
			return false, nil
		}
		time.Sleep(timesrc.SystemTimerIntervalUS / 4 * time.Microsecond)
		return false, nil
	}

	if halted, err := m.step(); halted {
		return true, err
	}
	m.instCount++
	m.CPU.CP0.AdvanceInstructions(1)

	m.tick()
	return false, nil
}

// ResetRequested reports whether a reset has been requested (RST_RESET
// write or double Ctrl-C), for callers driving StepOnce directly.
func (m *Machine) ResetRequested() bool { return m.resetRequest }

// step fetches and executes exactly one instruction, returning halted
// if the encoding was unrecognized (spec.md §4.6 "unknown encodings
// log and halt the main loop").
func (m *Machine) step() (halted bool, err error) {
	pc := m.CPU.Regs.PC

	if pc&3 == 2 {
		m.CPU.RaiseException(excode.AdEL, pc, 0)
		return false, nil
	}

	if pc&1 == 0 {
		word, code, ok := m.CPU.Mem.FetchWord(pc)
		if !ok {
			m.CPU.RaiseException(code, pc, 0)
			return false, nil
		}
		if exec32.Step(m.CPU, word) {
			return true, fmt.Errorf("unknown MIPS32 encoding %#08x at pc=%#08x", word, pc)
		}
		return false, nil
	}

	first, code, ok := m.CPU.Mem.FetchHalf(pc &^ 1)
	if !ok {
		m.CPU.RaiseException(code, pc, 0)
		return false, nil
	}

	raw := uint32(first) << 16
	op1 := (first >> 11) & 0x1F
	if op1 == exec16.Op16EXTEND || op1 == exec16.Op16JAL {
		second, code, ok := m.CPU.Mem.FetchHalf((pc &^ 1) + 2)
		if !ok {
			m.CPU.RaiseException(code, pc, 0)
			return false, nil
		}
		raw |= uint32(second)
	}

	if exec16.Step(m.CPU, raw) {
		return true, fmt.Errorf("unknown MIPS16e encoding %#06x at pc=%#08x", raw, pc)
	}
	return false, nil
}

// tick implements spec.md §4.9's per-iteration wall-clock/interrupt
// bookkeeping (steps 1-5); step 6 (instruction count, reset_request)
// is handled by the caller.
func (m *Machine) tick() {
	if m.ticker.ConsumeTick() {
		m.CPU.CP0.Tick(time.Now().UnixNano() / 1000)
		m.UART0.Poll()
		if m.CPU.Sleep {
			m.CPU.Sleep = false
		}
	}
	m.CPU.CP0.CheckTimerDeadline()

	m.CPU.CP0.SetHWInterrupt(6, m.UART0.DataAvailable())

	if m.CPU.CP0.PendingInterrupt() {
		m.CPU.RaiseInterrupt()
	}

	m.pollCtrlC()
}

// pollCtrlC implements spec.md §4.9 step 5: a lone Ctrl-C injects a
// break after a 1 second grace period; a second Ctrl-C within that
// window requests a reset instead.
func (m *Machine) pollCtrlC() {
	for {
		at, ok := m.mailbox.PollCtrlC()
		if !ok {
			break
		}
		t := time.Unix(0, at)
		if m.ctrlCArmed && t.Sub(m.ctrlCFirstAt) <= ctrlCGracePeriod {
			m.resetRequest = true
			m.ctrlCArmed = false
			continue
		}
		m.ctrlCFirstAt = t
		m.ctrlCArmed = true
	}

	if m.ctrlCArmed && time.Since(m.ctrlCFirstAt) >= ctrlCGracePeriod {
		m.UART0.InjectBreak()
		m.ctrlCArmed = false
	}
}
