// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/gmofishsauce/rv64core/internal/bus"
	"github.com/gmofishsauce/rv64core/internal/hart"
)

var (
	traceFile   = flag.String("trace", "", "Write execution trace to file")
	maxCycles   = flag.Uint64("max-cycles", 0, "Stop after N cycles (0 = unlimited)")
	showVersion = flag.Bool("version", false, "Show version and exit")
	testing     = flag.Bool("testing", false, "Enable the riscv-tests harness termination protocol")
	mtimeHz     = flag.Uint64("mtime-hz", 1, "Retired instructions per CLINT mtime tick")
	entryFlag   = flag.Uint64("entry", bus.RAMBase, "Guest entry point (physical address)")
)

const version = "1.0.0"

var savedTermState *term.State

// setupTerminal puts the terminal in raw mode for the UART emulation.
func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to get terminal state: %v", err)
	}
	savedTermState = state

	_, err = term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %v", err)
	}
	return nil
}

// restoreTerminal restores the terminal to its original state.
func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("rv64core v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}
	binaryFile := args[0]

	// Load the image before setting up terminal raw mode so that any
	// errors are reported cleanly in normal terminal mode.
	data, err := os.ReadFile(binaryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading binary file: %v\n", err)
		os.Exit(1)
	}

	ram := bus.NewRAM()
	ram.Load(data)

	clint := bus.NewCLINT()
	uart := bus.NewUART()
	uart.Source = os.Stdin
	uart.Sink = os.Stderr
	b := bus.New(ram, clint, bus.NewPLIC(), uart)

	h := hart.NewHart(b)
	h.Testing = *testing

	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		h.Tracer = hart.NewTracer(f)
		fmt.Fprintf(f, "rv64core execution trace\n")
		fmt.Fprintf(f, "Binary: %s\n", binaryFile)
		fmt.Fprintf(f, "Size: %d bytes\n", len(data))
		fmt.Fprintf(f, "========================================\n\n")
	}

	if err := setupTerminal(); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up terminal: %v\n", err)
		os.Exit(1)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		restoreTerminal()
		os.Exit(130)
	}()

	h.Reset(*entryFlag)

	startTime := time.Now()
	runErr := runEmulator(h, clint, *maxCycles, *mtimeHz)
	elapsed := time.Since(startTime)

	restoreTerminal()

	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "Execution completed\n")
	fmt.Fprintf(os.Stderr, "Instructions: %d\n", h.Retired)
	fmt.Fprintf(os.Stderr, "Time: %v\n", elapsed.Round(time.Millisecond))

	if elapsed.Seconds() > 0 {
		mhz := (float64(h.Retired) / 1_000_000.0) / elapsed.Seconds()
		fmt.Fprintf(os.Stderr, "Speed: %.3f MIPS\n", mhz)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}

	if h.Exited {
		fmt.Fprintf(os.Stderr, "Exit: test harness code %d\n", h.ExitCode)
		if h.ExitCode != 0 {
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Exit: normal\n")
}

// runEmulator drives the fetch/decode/execute loop, the driver's own
// responsibility per spec §6: the hart package never loops on its
// own, and it never decides when a run should stop beyond the
// test-harness termination protocol the hart struct tracks.
func runEmulator(h *hart.Hart, clint *bus.CLINT, maxCycles uint64, mtimeHz uint64) error {
	ticker := &bus.DividedTicker{Rate: mtimeHz}
	var cycles uint64
	for !h.Exited {
		if maxCycles > 0 && cycles >= maxCycles {
			fmt.Fprintf(os.Stderr, "\nMax cycles reached (%d)\n", maxCycles)
			return nil
		}
		if err := h.Step(); err != nil {
			return err
		}
		cycles++
		ticker.Tick(clint)
		if clint.Pending() {
			h.SetMachineTimerPending()
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <binary-file>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "rv64core - Execute RV64IMAFC binaries\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nArguments:\n")
	fmt.Fprintf(os.Stderr, "  <binary-file>    Raw RV64 binary image to execute\n")
	fmt.Fprintf(os.Stderr, "\nThe emulator executes the binary and connects UART I/O to stdin/stderr.\n")
	fmt.Fprintf(os.Stderr, "Use -trace to generate a detailed execution trace file.\n")
	fmt.Fprintf(os.Stderr, "Use -testing to enable the riscv-tests harness termination protocol.\n")
}
