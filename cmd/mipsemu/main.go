package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mipsemu/internal/dev/spiflash"
	"mipsemu/internal/dev/uart"
	"mipsemu/internal/machine"
)

func main() {
	debug := flag.Bool("d", false, "enable debug logging")
	breakAt := flag.String("b", "", "breakpoint address (hex), e.g. 0xbfc00000")
	postBreak := flag.Uint64("r", 0, "instructions to run after the breakpoint before stopping")
	flashSize := flag.Int("f", 8, "flash size in MiB: 8 or 256")
	ramBytes := flag.Uint64("ram", 64<<20, "DRAM size in bytes")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <firmware-image>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	part := spiflash.Part8MiB
	if *flashSize == 256 {
		part = spiflash.Part256MiB
	} else if *flashSize != 8 {
		log.Fatalf("invalid -f value %d: must be 8 or 256", *flashSize)
	}

	if *ramBytes == 0 || *ramBytes > 1<<32 {
		log.Fatalf("invalid -ram value %d: must be between 1 and %d bytes", *ramBytes, uint64(1)<<32)
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		log.Fatalf("failed to read firmware image %s: %v", imagePath, err)
	}
	if uint32(len(image)) > part.SizeBytes {
		log.Fatalf("firmware image %s (%d bytes) exceeds %s capacity (%d bytes)", imagePath, len(image), part.Name, part.SizeBytes)
	}

	var breakpoint uint32
	var hasBreakpoint bool
	if *breakAt != "" {
		var v uint64
		if _, err := fmt.Sscanf(*breakAt, "0x%x", &v); err != nil {
			if _, err := fmt.Sscanf(*breakAt, "%x", &v); err != nil {
				log.Fatalf("invalid -b value %q: %v", *breakAt, err)
			}
		}
		breakpoint = uint32(v)
		hasBreakpoint = true
	}

	printIfVerbose(*debug, "Allocating %d bytes of DRAM, %s flash...", *ramBytes, part.Name)
	m := machine.New(machine.Config{
		RAMSize:    uint32(*ramBytes),
		FlashPart:  part,
		FlashImage: image,
		BootPC:     0xBFC0_0000,
	})

	restoreTerm, err := uart.SetupRawMode()
	if err != nil {
		printIfVerbose(*debug, "failed to set stdin raw mode: %v", err)
		restoreTerm = func() {}
	}
	defer restoreTerm()

	if err := m.StartKeyboard(); err != nil {
		printIfVerbose(*debug, "no interactive keyboard available: %v", err)
	}
	defer m.Stop()

	done := make(chan struct{})
	stopCh := make(chan struct{})

	printIfVerbose(*debug, "Running CPU...")
	var runErr error
	go func() {
		if hasBreakpoint {
			runErr = runWithBreakpoint(m, stopCh, breakpoint, *postBreak, *debug)
		} else {
			runErr = m.Run(stopCh)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		printIfVerbose(*debug, "Signal received, stopping CPU...")
		close(stopCh)
		<-done
	case <-done:
	}

	if runErr != nil {
		log.Fatal(runErr)
	}
}

// runWithBreakpoint runs m until its PC reaches at, then continues
// for exactly budget more instructions before stopping — the
// "post-break instruction budget" debugging aid (SPEC_FULL.md §3).
func runWithBreakpoint(m *machine.Machine, stopCh <-chan struct{}, at uint32, budget uint64, debug bool) error {
	hit := false
	var remaining uint64 = budget
	for {
		select {
		case <-stopCh:
			return nil
		default:
		}
		if !hit && m.CPU.Regs.PC == at {
			hit = true
			printIfVerbose(debug, "breakpoint hit at pc=%#08x, running %d more instructions", at, budget)
		}
		halted, err := m.StepOnce()
		if halted {
			return err
		}
		if m.ResetRequested() {
			return nil
		}
		if hit {
			if remaining == 0 {
				return nil
			}
			remaining--
		}
	}
}

func printIfVerbose(verbose bool, format string, v ...interface{}) {
	if verbose {
		log.Printf(format, v...)
	}
}
