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

// Package hart implements the single-hart RV64IMAFC execution engine:
// fetch/decode/execute, the CSR file, Sv39 translation, the A
// extension's reservation set and the F/D floating point unit. The
// RAM array, the platform devices and the binary loader live outside
// this package and are reached only through the bus.Bus seam handed
// to NewHart (spec §1, §6).
package hart

import "github.com/gmofishsauce/rv64core/internal/bus"

// Mode is a RISC-V privilege level (spec §3 / §4.F). ModeReserved
// (the encoding for Hypervisor) is never entered by this core but is
// named so mstatus.MPP/SPP decode exhaustively.
type Mode uint8

const (
	ModeUser       Mode = 0
	ModeSupervisor Mode = 1
	ModeReserved   Mode = 2
	ModeMachine    Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeUser:
		return "U"
	case ModeSupervisor:
		return "S"
	case ModeMachine:
		return "M"
	default:
		return "?"
	}
}

// Hart is the complete architectural state of one RV64IMAFC hart:
// integer and floating point register files, the program counter,
// current privilege mode, the full CSR space, the LR/SC reservation
// set and the bus it fetches and accesses memory through.
type Hart struct {
	X  [32]uint64
	F  [32]uint64
	PC uint64

	Mode Mode
	csrs [4096]uint64

	Res ReservationSet
	Bus *bus.Bus

	// DebugProbeCompat makes the architecture test harness's debug
	// probe CSRs (0x7a0/0x7a5) read back as 1, the fixed value the
	// riscv-tests suite expects (Open Question (b), SPEC_FULL §11).
	DebugProbeCompat bool

	// Testing enables the store-intercept test-harness termination
	// protocol at the fixed addresses the riscv-tests binaries use
	// (spec §6); a normal guest OS image never triggers it since it
	// never stores there.
	Testing bool

	Tracer *Tracer

	Retired uint64

	// Exited and ExitCode are set once the test-harness termination
	// protocol ends the run; Step keeps returning nil after that so
	// the driver's loop can check Exited instead of threading a
	// sentinel error through every layer.
	Exited   bool
	ExitCode int
}

// NewHart builds a hart wired to b, with reset-time defaults: machine
// mode, DebugProbeCompat on, misa's fixed value already reflected by
// csr.go's read path, and a PC of 0 (the driver is expected to set
// PC to the image's entry point before the first Step).
func NewHart(b *bus.Bus) *Hart {
	h := &Hart{
		Bus:              b,
		Mode:             ModeMachine,
		DebugProbeCompat: true,
	}
	return h
}

// Reset restores a hart to its power-on state without discarding the
// bus it's wired to, mirroring the teacher's CPU.Reset.
func (h *Hart) Reset(entry uint64) {
	h.X = [32]uint64{}
	h.F = [32]uint64{}
	h.PC = entry
	h.Mode = ModeMachine
	h.csrs = [4096]uint64{}
	h.csrs[CSRMstatus] = 0x0000_000a_0000_2000 // UXL=SXL=64-bit, FS=Initial
	h.Res.Clear()
	h.Retired = 0
	h.Exited = false
	h.ExitCode = 0
}

// Step executes exactly one instruction (or, if an interrupt is
// pending and enabled, delivers it instead), advancing PC and
// retiring one instruction count. It never returns a non-nil error
// for an architectural exception -- those are caught and converted
// into a trap delivery internally, matching how a real hart never
// stops running on a guest fault (spec §6). A non-nil error return
// indicates a host-level problem the driver cannot recover from.
func (h *Hart) Step() error {
	if h.Exited {
		return nil
	}

	if cause, ok := h.PendingInterrupt(); ok {
		if h.Tracer != nil {
			h.Tracer.TraceInterrupt(h, cause)
		}
		h.PollAndDeliverCause(cause)
		return nil
	}

	pc := h.PC
	raw, size, ferr := h.fetch(pc)
	if ferr != nil {
		h.takeTrap(ferr, pc)
		return nil
	}

	ins := Decode(raw, size)

	if h.Tracer != nil {
		h.Tracer.TraceFetch(h, pc, ins)
	}

	nextPC, eerr := h.execute(ins)
	if eerr != nil {
		if e, ok := eerr.(*Exception); ok && e.Cause == CauseIllegalInst && e.TVal == 0 {
			e.TVal = uint64(ins.Raw)
		}
		h.takeTrap(eerr, pc)
		return nil
	}

	h.PC = nextPC
	h.Retired++
	return nil
}

// fetch reads one instruction at va, expanding a compressed 16-bit
// form to its 32-bit equivalent via compExpand (spec §4.J). It
// enforces the 2-byte alignment the C extension relaxes instruction
// fetch to (spec §4.K).
func (h *Hart) fetch(va uint64) (uint32, int, error) {
	if va&0x1 != 0 {
		return 0, 0, exc(CauseInstAddrMisalign, va)
	}

	pa, err := h.Translate(va, AccessFetch)
	if err != nil {
		return 0, 0, err
	}
	lo, lerr := h.Bus.LoadU16(pa)
	if lerr != nil {
		return 0, 0, exc(CauseInstAccessFault, va)
	}

	if lo&0x3 != 0x3 {
		raw, cerr := compExpand(lo)
		if cerr != nil {
			return 0, 0, exc(CauseIllegalInst, uint64(lo))
		}
		return raw, 2, nil
	}

	pa2, err := h.Translate(va+2, AccessFetch)
	if err != nil {
		return 0, 0, err
	}
	hi, herr := h.Bus.LoadU16(pa2)
	if herr != nil {
		return 0, 0, exc(CauseInstAccessFault, va)
	}
	return uint32(lo) | uint32(hi)<<16, 4, nil
}

// takeTrap converts an *Exception into a full trap delivery at pc,
// tracing it first if a Tracer is attached.
func (h *Hart) takeTrap(err error, pc uint64) {
	e, ok := err.(*Exception)
	if !ok {
		return
	}
	if h.Tracer != nil {
		h.Tracer.TraceException(h, e, pc)
	}
	h.deliverTrap(e.Cause, false, e.TVal, pc)
}

// PollAndDeliverCause delivers a specific already-identified pending
// interrupt; Step uses this instead of PollAndDeliver so it can trace
// the cause before delivery changes hart state.
func (h *Hart) PollAndDeliverCause(cause Cause) {
	h.deliverTrap(cause, true, 0, h.PC)
}
