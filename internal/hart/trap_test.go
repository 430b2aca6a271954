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

import "testing"

func TestPendingInterruptRespectsGlobalEnable(t *testing.T) {
	h := newTestHart()
	h.csrs[CSRMip] = uint64(1) << IntMTimer
	h.csrs[CSRMie] = uint64(1) << IntMTimer
	if _, ok := h.PendingInterrupt(); ok {
		t.Fatal("MIE clear should mask the pending timer interrupt")
	}
	h.csrs[CSRMstatus] |= mstatusMIE
	cause, ok := h.PendingInterrupt()
	if !ok || cause != IntMTimer {
		t.Fatalf("expected IntMTimer pending, got cause=%d ok=%v", cause, ok)
	}
}

func TestDeliverTrapSetsMPPFromCurrentMode(t *testing.T) {
	h := newTestHart()
	h.Mode = ModeSupervisor
	h.deliverTrap(CauseIllegalInst, false, 0, 0x1000)
	mstatus := h.Mstatus()
	mpp := (mstatus & mstatusMPPMask) >> mstatusMPPShift
	if Mode(mpp) != ModeSupervisor {
		t.Fatalf("MPP = %d, want Supervisor", mpp)
	}
	if h.Mode != ModeMachine {
		t.Fatalf("mode after trap = %v, want Machine", h.Mode)
	}
	if h.csrs[CSRMepc] != 0x1000 {
		t.Fatalf("mepc = %x, want 0x1000", h.csrs[CSRMepc])
	}
}

func TestDelegatedExceptionGoesToSupervisor(t *testing.T) {
	h := newTestHart()
	h.Mode = ModeUser
	h.csrs[CSRMedeleg] = uint64(1) << CauseBreakpoint
	h.csrs[CSRStvec] = 0x2000
	h.deliverTrap(CauseBreakpoint, false, 0, 0x500)
	if h.Mode != ModeSupervisor {
		t.Fatalf("mode = %v, want Supervisor (delegated)", h.Mode)
	}
	if h.PC != 0x2000 {
		t.Fatalf("pc = %x, want stvec 0x2000", h.PC)
	}
	if h.csrs[CSRSepc] != 0x500 {
		t.Fatalf("sepc = %x, want 0x500", h.csrs[CSRSepc])
	}
}

func TestMtvecVectoredMode(t *testing.T) {
	h := newTestHart()
	h.csrs[CSRMtvec] = 0x8000 | 1 // vectored
	h.deliverTrap(IntMTimer, true, 0, 0x100)
	want := uint64(0x8000) + 4*uint64(IntMTimer)
	if h.PC != want {
		t.Fatalf("pc = %x, want %x", h.PC, want)
	}
}

func TestXRetClearsReservations(t *testing.T) {
	h := newTestHart()
	h.Res.Acquire(0x4000)
	h.csrs[CSRMepc] = 0x9000
	if err := h.xRET(true); err != nil {
		t.Fatalf("xRET: %v", err)
	}
	if h.Res.CheckOwnership(0x4000) {
		t.Fatal("xRET should clear outstanding reservations")
	}
	if h.PC != 0x9000 {
		t.Fatalf("pc = %x, want mepc 0x9000", h.PC)
	}
}
