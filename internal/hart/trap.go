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

// interruptCheckList is the fixed priority order the trap engine
// polls pending-and-enabled interrupts in (spec §4.L): counter-overflow
// first, then machine external, timer and software, then supervisor
// external, timer and software.
var interruptCheckList = []Cause{
	IntCounterOverflow,
	IntMExternal,
	IntMTimer,
	IntMSoftware,
	IntSExternal,
	IntSTimer,
	IntSSoftware,
}

const mtvecModeMask = 0x3

// deliverTrap performs the full exception-delivery sequence of spec
// §4.L: delegation lookup, xEPC/xCAUSE/xTVAL write, xPP record,
// xIE -> xPIE shift with xIE cleared, mode switch, MPRV clear on trap
// into M-mode, and the mtvec direct/vectored jump.
func (h *Hart) deliverTrap(cause Cause, isInterrupt bool, tval uint64, pc uint64) {
	toSupervisor := h.delegated(cause, isInterrupt) && h.Mode != ModeMachine

	causeVal := uint64(cause)
	if isInterrupt {
		causeVal |= uint64(1) << 63
		h.csrs[CSRMip] &^= uint64(1) << uint(cause) // mie is left untouched
	}

	if toSupervisor {
		h.WriteCSRTrap(CSRSepc, pc)
		h.WriteCSRTrap(CSRScause, causeVal)
		h.WriteCSRTrap(CSRStval, tval)

		ms := h.Mstatus()
		spie := (ms >> 1) & 1 // current SIE becomes SPIE
		ms = (ms &^ mstatusSPIE) | (spie << 5)
		ms &^= mstatusSIE
		if h.Mode == ModeUser {
			ms &^= mstatusSPP
		} else {
			ms |= mstatusSPP
		}
		h.setMstatus(ms)

		h.Mode = ModeSupervisor
		h.PC = h.mtvecJump(h.csrs[CSRStvec], causeVal, isInterrupt)
		return
	}

	h.WriteCSRTrap(CSRMepc, pc)
	h.WriteCSRTrap(CSRMcause, causeVal)
	h.WriteCSRTrap(CSRMtval, tval)

	ms := h.Mstatus()
	mpie := (ms >> 3) & 1 // current MIE becomes MPIE
	ms = (ms &^ mstatusMPIE) | (mpie << 7)
	ms &^= mstatusMIE
	ms = (ms &^ mstatusMPPMask) | (uint64(h.Mode) << mstatusMPPShift)
	ms &^= mstatusMPRV
	h.setMstatus(ms)

	h.Mode = ModeMachine
	h.PC = h.mtvecJump(h.csrs[CSRMtvec], causeVal, isInterrupt)
}

func (h *Hart) mtvecJump(tvec uint64, causeVal uint64, isInterrupt bool) uint64 {
	base := tvec &^ mtvecModeMask
	mode := tvec & mtvecModeMask
	if isInterrupt && mode == 1 { // vectored
		return base + 4*(causeVal&^(uint64(1)<<63))
	}
	return base
}

// delegated reports whether cause is routed to S-mode by medeleg (for
// exceptions) or mideleg (for interrupts). Delegation is meaningless
// from M-mode, which deliverTrap already checks separately.
func (h *Hart) delegated(cause Cause, isInterrupt bool) bool {
	bit := uint64(1) << uint(cause)
	if isInterrupt {
		return h.csrs[CSRMideleg]&bit != 0
	}
	return h.csrs[CSRMedeleg]&bit != 0
}

// PendingInterrupt returns the highest-priority pending-and-enabled
// interrupt, or false if none is ready to fire, implementing the
// polling order and the global/per-level enable gating of spec §4.L.
func (h *Hart) PendingInterrupt() (Cause, bool) {
	mie := h.Mstatus()&mstatusMIE != 0
	sie := h.Mstatus()&mstatusSIE != 0
	mip, mieReg := h.csrs[CSRMip], h.csrs[CSRMie]

	for _, c := range interruptCheckList {
		bit := uint64(1) << uint(c)
		if mip&bit == 0 || mieReg&bit == 0 {
			continue
		}
		delegatedToS := h.csrs[CSRMideleg]&bit != 0
		if !delegatedToS {
			if h.Mode == ModeMachine && !mie {
				continue
			}
			return c, true
		}
		// Delegated to S-mode: never taken in M-mode, taken in S-mode
		// only if SIE is set, and always taken in U-mode.
		switch h.Mode {
		case ModeMachine:
			continue // delegated interrupts don't preempt M-mode
		case ModeSupervisor:
			if !sie {
				continue
			}
		}
		return c, true
	}
	return 0, false
}

// SetMachineTimerPending mirrors the CLINT's mtime >= mtimecmp
// comparison into mip's machine-timer bit. The bus has no path back
// into the CSR file on its own, so the driver calls this once per
// Step after advancing the clock (spec §4.D / §4.L).
func (h *Hart) SetMachineTimerPending() {
	h.csrs[CSRMip] |= uint64(1) << IntMTimer
}

// ClearMachineTimerPending is the converse, for a driver that wants
// to model mtimecmp being raised again before it fires.
func (h *Hart) ClearMachineTimerPending() {
	h.csrs[CSRMip] &^= uint64(1) << IntMTimer
}

// PollAndDeliver checks for a pending interrupt and, if one is ready,
// delivers it exactly as deliverTrap delivers a synchronous exception
// (spec §4.L). Step does not call it: Step checks PendingInterrupt
// and delivers through PollAndDeliverCause before fetching.
func (h *Hart) PollAndDeliver() {
	cause, ok := h.PendingInterrupt()
	if !ok {
		return
	}
	h.deliverTrap(cause, true, 0, h.PC)
}

// xRET restores privilege state after MRET/SRET (spec §4.L): xIE is
// restored from xPIE, xPIE is set to 1, the mode is restored from xPP
// (which is then reset to the least-privileged mode for that xRET
// per spec), MPRV is cleared unless returning to M-mode, and PC is
// set to xEPC. All outstanding LR reservations are dropped.
func (h *Hart) xRET(machine bool) error {
	if machine {
		if h.Mode != ModeMachine {
			return exc(CauseIllegalInst, 0)
		}
		ms := h.Mstatus()
		if ms&mstatusTSR != 0 && h.Mode == ModeSupervisor {
			return exc(CauseIllegalInst, 0)
		}
		mpp := Mode((ms >> mstatusMPPShift) & 0x3)
		mpie := (ms >> 7) & 1
		ms = (ms &^ mstatusMIE) | (mpie << 3)
		ms |= mstatusMPIE
		ms = ms &^ mstatusMPPMask // MPP -> U after MRET
		if mpp != ModeMachine {
			ms &^= mstatusMPRV
		}
		h.setMstatus(ms)
		h.Mode = mpp
		h.PC = h.csrs[CSRMepc]
	} else {
		if h.Mode == ModeUser {
			return exc(CauseIllegalInst, 0)
		}
		ms := h.Mstatus()
		if ms&mstatusTSR != 0 && h.Mode == ModeSupervisor {
			return exc(CauseIllegalInst, 0)
		}
		spp := Mode((ms >> 8) & 0x1)
		spie := (ms >> 5) & 1
		ms = (ms &^ mstatusSIE) | (spie << 1)
		ms |= mstatusSPIE
		ms &^= mstatusSPP
		ms &^= mstatusMPRV
		h.setMstatus(ms)
		h.Mode = spp
		h.PC = h.csrs[CSRSepc]
	}
	h.Res.Clear()
	return nil
}
