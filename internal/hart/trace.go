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

package hart

import (
	"fmt"
	"io"
)

// Tracer writes a human-readable execution trace to an io.Writer,
// the same plain fmt.Fprintf-based approach the teacher's Tracer
// uses rather than a structured logging library -- there is no log
// line here a human isn't meant to read sequentially while stepping
// through a failing test case.
type Tracer struct {
	w io.Writer
}

// NewTracer wraps w; a nil w is never passed to NewTracer -- callers
// that don't want tracing simply leave Hart.Tracer nil.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

func (t *Tracer) TraceFetch(h *Hart, pc uint64, ins Instruction) {
	fmt.Fprintf(t.w, "%8d [%s] pc=%016x raw=%08x op=%02x rd=x%-2d rs1=x%-2d rs2=x%-2d\n",
		h.Retired, h.Mode, pc, ins.Raw, ins.Opcode, ins.Rd, ins.Rs1, ins.Rs2)
}

func (t *Tracer) TraceException(h *Hart, e *Exception, pc uint64) {
	fmt.Fprintf(t.w, "%8d [%s] pc=%016x EXCEPTION cause=%d tval=%016x\n",
		h.Retired, h.Mode, pc, e.Cause, e.TVal)
}

func (t *Tracer) TraceInterrupt(h *Hart, cause Cause) {
	fmt.Fprintf(t.w, "%8d [%s] pc=%016x INTERRUPT cause=%d\n",
		h.Retired, h.Mode, h.PC, cause)
}

// DumpRegisters prints the integer register file, pc, mode and the
// handful of CSRs most useful when a run ends unexpectedly,
// the RV64 analogue of the teacher's printSpecialRegisters.
func (h *Hart) DumpRegisters(w io.Writer) {
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(w, "x%-2d=%016x x%-2d=%016x x%-2d=%016x x%-2d=%016x\n",
			i, h.X[i], i+1, h.X[i+1], i+2, h.X[i+2], i+3, h.X[i+3])
	}
	fmt.Fprintf(w, "pc=%016x mode=%s mstatus=%016x mcause=%016x mepc=%016x\n",
		h.PC, h.Mode, h.csrs[CSRMstatus], h.csrs[CSRMcause], h.csrs[CSRMepc])
}
