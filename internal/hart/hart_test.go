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
	"testing"

	"github.com/gmofishsauce/rv64core/internal/bus"
)

func newTestHart() *Hart {
	b := bus.New(bus.NewRAM(), bus.NewCLINT(), bus.NewPLIC(), bus.NewUART())
	h := NewHart(b)
	h.Reset(bus.RAMBase)
	return h
}

func (h *Hart) storeProgram(words []uint32) {
	for i, w := range words {
		h.Bus.StoreU32(bus.RAMBase+uint64(i*4), w)
	}
}

func TestAddiAndStep(t *testing.T) {
	h := newTestHart()
	// addi x1, x0, 5
	h.storeProgram([]uint32{encodeIType(5, 0, 0, 1, opOpImm)})
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.X[1] != 5 {
		t.Fatalf("x1 = %d, want 5", h.X[1])
	}
	if h.PC != bus.RAMBase+4 {
		t.Fatalf("pc = %x, want %x", h.PC, bus.RAMBase+4)
	}
}

func TestBranchTaken(t *testing.T) {
	h := newTestHart()
	// beq x0, x0, 8
	h.storeProgram([]uint32{encodeBType(8, 0, 0, 0, 0, opBranch)})
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.PC != bus.RAMBase+8 {
		t.Fatalf("pc = %x, want %x", h.PC, bus.RAMBase+8)
	}
}

// A jump target aligned to 2 bytes but not 4 must be accepted: this
// core always has the C extension, so spec §3's fetch alignment
// relaxation applies to every control-transfer target, not only to
// instruction fetch.
func TestJalToTwoByteAlignedTargetSucceeds(t *testing.T) {
	h := newTestHart()
	// jal x1, 2 -- target is RAMBase+2, which is not 4-byte aligned.
	h.storeProgram([]uint32{encodeJType(2, 1, opJAL)})
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.PC != bus.RAMBase+2 {
		t.Fatalf("pc = %x, want %x (2-byte aligned jump must not fault)", h.PC, bus.RAMBase+2)
	}
	if h.X[1] != bus.RAMBase+4 {
		t.Fatalf("x1 = %x, want link address %x", h.X[1], bus.RAMBase+4)
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	h := newTestHart()
	h.X[2] = bus.RAMBase + 0x100
	h.X[3] = 0xdeadbeef
	// sw x3, 0(x2) ; lw x4, 0(x2)
	h.storeProgram([]uint32{
		encodeSType(0, 2, 3, 2, opStore),
		encodeIType(0, 2, 2, 4, opLoad),
	})
	if err := h.Step(); err != nil {
		t.Fatalf("store step: %v", err)
	}
	if err := h.Step(); err != nil {
		t.Fatalf("load step: %v", err)
	}
	if h.X[4] != 0xffffffffdeadbeef { // lw sign-extends the loaded word
		t.Fatalf("x4 = %x, want ffffffffdeadbeef", h.X[4])
	}
}

func TestEcallTrapsToMachineMode(t *testing.T) {
	h := newTestHart()
	// ecall
	h.storeProgram([]uint32{0x00000073})
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.Mode != ModeMachine {
		t.Fatalf("mode = %v, want Machine", h.Mode)
	}
	if h.csrs[CSRMcause] != uint64(CauseECallFromM) {
		t.Fatalf("mcause = %d, want %d", h.csrs[CSRMcause], CauseECallFromM)
	}
	if h.csrs[CSRMepc] != bus.RAMBase {
		t.Fatalf("mepc = %x, want %x", h.csrs[CSRMepc], bus.RAMBase)
	}
}

func TestMretRestoresPC(t *testing.T) {
	h := newTestHart()
	h.csrs[CSRMepc] = bus.RAMBase + 0x40
	h.storeProgram([]uint32{0x30200073}) // mret
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.PC != bus.RAMBase+0x40 {
		t.Fatalf("pc = %x, want %x", h.PC, bus.RAMBase+0x40)
	}
}

func TestCSRReadWrite(t *testing.T) {
	h := newTestHart()
	// csrrw reads the old mscratch into x1 and writes x2's value.
	h.csrs[CSRMscratch] = 0x1234
	h.X[2] = 0xabcd
	// csrrw x1, mscratch, x2
	raw := encodeIType(uint32(CSRMscratch), 2, 1, 1, opSystem)
	h.storeProgram([]uint32{uint32(raw)})
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.X[1] != 0x1234 {
		t.Fatalf("x1 = %x, want 1234", h.X[1])
	}
	if h.csrs[CSRMscratch] != 0xabcd {
		t.Fatalf("mscratch = %x, want abcd", h.csrs[CSRMscratch])
	}
}

func TestLRSCSuccess(t *testing.T) {
	h := newTestHart()
	h.X[1] = bus.RAMBase + 0x200
	h.X[2] = 42
	h.Bus.StoreU32(h.X[1], 7)
	// lr.w x3, (x1); sc.w x4, x2, (x1)
	lr := (uint32(amoLR) << 27) | (2 << 25) | (0 << 20) | (1 << 15) | (2 << 12) | (3 << 7) | opAMO
	sc := (uint32(amoSC) << 27) | (2 << 25) | (2 << 20) | (1 << 15) | (2 << 12) | (4 << 7) | opAMO
	h.storeProgram([]uint32{lr, sc})
	if err := h.Step(); err != nil {
		t.Fatalf("lr step: %v", err)
	}
	if h.X[3] != 7 {
		t.Fatalf("x3 = %d, want 7", h.X[3])
	}
	if err := h.Step(); err != nil {
		t.Fatalf("sc step: %v", err)
	}
	if h.X[4] != 0 {
		t.Fatalf("sc.w result = %d, want 0 (success)", h.X[4])
	}
	v, _ := h.Bus.LoadU32(h.X[1])
	if v != 42 {
		t.Fatalf("stored value = %d, want 42", v)
	}
}

func TestCompressedAddi(t *testing.T) {
	h := newTestHart()
	// c.li x5, 3: quadrant 1, funct3 2 (C.LI), rd=5, imm=3.
	var inst uint16
	inst |= 2 << 13  // funct3 = 2 (C.LI)
	inst |= 0 << 12  // imm[5] = 0
	inst |= 5 << 7   // rd = 5
	inst |= 3 << 2   // imm[4:0] = 3
	inst |= 1        // quadrant 1
	h.Bus.StoreU16(bus.RAMBase, inst)
	if err := h.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.X[5] != 3 {
		t.Fatalf("x5 = %d, want 3", h.X[5])
	}
	if h.PC != bus.RAMBase+2 {
		t.Fatalf("pc = %x, want %x (compressed instruction is 2 bytes)", h.PC, bus.RAMBase+2)
	}
}

func TestTestHarnessTerminationPass(t *testing.T) {
	h := newTestHart()
	h.Testing = true
	// The word 4 bytes below tohost holds the pass/fail code (1 means
	// pass, per the riscv-tests convention); the store of 0 to tohost
	// itself is what triggers termination (spec §6).
	h.Bus.StoreU32(testHarnessTohost-4, 1)
	h.checkTestHarnessStore(testHarnessTohost, 0)
	if !h.Exited || h.ExitCode != 0 {
		t.Fatalf("exited=%v code=%d, want exited with code 0", h.Exited, h.ExitCode)
	}
}

func TestTestHarnessTerminationFailureCode(t *testing.T) {
	h := newTestHart()
	h.Testing = true
	h.Bus.StoreU32(testHarnessFromhost-4, 5)
	h.checkTestHarnessStore(testHarnessFromhost, 0)
	if !h.Exited || h.ExitCode != 4 {
		t.Fatalf("exited=%v code=%d, want exited with code 4", h.Exited, h.ExitCode)
	}
}

func TestTestHarnessStoreIgnoredWhenValueNonzero(t *testing.T) {
	h := newTestHart()
	h.Testing = true
	h.checkTestHarnessStore(testHarnessTohost, 1)
	if h.Exited {
		t.Fatal("a nonzero store to tohost must not terminate the run")
	}
}
