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

import "fmt"

// CSR addresses actually given meaning by this core (component F).
// Anything not listed here is a plain read/write slot in the flat
// 4096-entry table, gated only by the generic permission check.
const (
	CSRFflags = 0x001
	CSRFrm    = 0x002
	CSRFcsr   = 0x003

	CSRSstatus  = 0x100
	CSRSie      = 0x104
	CSRStvec    = 0x105
	CSRSscratch = 0x140
	CSRSepc     = 0x141
	CSRScause   = 0x142
	CSRStval    = 0x143
	CSRSip      = 0x144
	CSRSatp     = 0x180

	CSRMstatus    = 0x300
	CSRMisa       = 0x301
	CSRMedeleg    = 0x302
	CSRMideleg    = 0x303
	CSRMie        = 0x304
	CSRMtvec      = 0x305
	CSRMcounteren = 0x306
	CSRMscratch   = 0x340
	CSRMepc       = 0x341
	CSRMcause     = 0x342
	CSRMtval      = 0x343
	CSRMip        = 0x344

	CSRMvendorid  = 0xf11
	CSRMarchid    = 0xf12
	CSRMimpid     = 0xf13
	CSRMhartid    = 0xf14
	CSRMconfigptr = 0xf15

	// Debug-mode probe CSRs satisfying the architecture test harness
	// (spec §4.F); gated by DebugProbeCompat (SPEC_FULL §11 (b)).
	csrDebugProbe1 = 0x7a0
	csrDebugProbe2 = 0x7a5
)

// mstatus/sstatus bit layout (RV64).
const (
	mstatusSIE      = uint64(1) << 1
	mstatusMIE      = uint64(1) << 3
	mstatusSPIE     = uint64(1) << 5
	mstatusMPIE     = uint64(1) << 7
	mstatusSPP      = uint64(1) << 8
	mstatusMPPShift = 11
	mstatusMPPMask  = uint64(0x3) << mstatusMPPShift
	mstatusFSShift  = 13
	mstatusFSMask   = uint64(0x3) << mstatusFSShift
	mstatusXSShift  = 15
	mstatusXSMask   = uint64(0x3) << mstatusXSShift
	mstatusMPRV     = uint64(1) << 17
	mstatusSUM      = uint64(1) << 18
	mstatusMXR      = uint64(1) << 19
	mstatusTVM      = uint64(1) << 20
	mstatusTSR      = uint64(1) << 22
	mstatusSD       = uint64(1) << 63

	// W_MASK: writable bits of mstatus (spec §4.F).
	mstatusWMask = uint64(0x7fff_ffc0_fff6_79bf)
	// S_MASK: the subset of mstatus visible through sstatus (spec §4.F).
	sstatusMask = uint64(0x8000_0003_000f_e7e2)

	fsDirty = uint64(3)
)

// ReadCSR performs a permission-checked CSR read (spec §4.F). It is
// the path ordinary CSRRx instructions use.
func (h *Hart) ReadCSR(addr uint16) (uint64, error) {
	return h.readCSR(addr, true)
}

// ReadCSRTrap reads a CSR bypassing the permission check, for use
// only by trap delivery and xRET (the teacher's "_cpu variants",
// spec §4.F).
func (h *Hart) ReadCSRTrap(addr uint16) uint64 {
	v, _ := h.readCSR(addr, false)
	return v
}

func (h *Hart) readCSR(addr uint16, checked bool) (uint64, error) {
	a := addr & 0xfff
	if checked {
		if err := h.checkCSRPerm(a); err != nil {
			return 0, err
		}
		if checked && a == CSRSatp && h.csrs[CSRMstatus]&mstatusTVM != 0 && h.Mode == ModeSupervisor {
			return 0, exc(CauseIllegalInst, 0)
		}
	}

	switch a {
	case CSRMstatus:
		v := h.csrs[CSRMstatus]
		fs := (v & mstatusFSMask) >> mstatusFSShift
		xs := (v & mstatusXSMask) >> mstatusXSShift
		if fs == fsDirty || xs == fsDirty {
			v |= mstatusSD
		} else {
			v &^= mstatusSD
		}
		return v, nil
	case CSRSstatus:
		return h.csrs[CSRMstatus] & sstatusMask, nil
	case CSRFflags:
		return h.csrs[CSRFcsr] & 0x1f, nil
	case CSRFrm:
		return (h.csrs[CSRFcsr] >> 5) & 0x7, nil
	case CSRMisa:
		// rv64imaf_su, with D and C folded in since this core implements them too.
		return (uint64(2) << 62) | misaExtBits("imafdcsu"), nil
	case CSRMvendorid, CSRMarchid, CSRMimpid, CSRMhartid, CSRMconfigptr:
		return 0, nil
	case csrDebugProbe1, csrDebugProbe2:
		if h.DebugProbeCompat {
			return 1, nil
		}
		return h.csrs[a], nil
	default:
		return h.csrs[a], nil
	}
}

func misaExtBits(exts string) uint64 {
	var v uint64
	for _, c := range exts {
		v |= uint64(1) << uint(c-'a')
	}
	return v
}

// WriteCSR performs a permission-checked CSR write (spec §4.F).
func (h *Hart) WriteCSR(addr uint16, val uint64) error {
	return h.writeCSR(addr, val, true)
}

// WriteCSRTrap writes a CSR bypassing the permission check (the
// teacher's "_cpu variant"), for trap delivery and xRET only.
func (h *Hart) WriteCSRTrap(addr uint16, val uint64) {
	h.writeCSR(addr, val, false)
}

func (h *Hart) writeCSR(addr uint16, val uint64, checked bool) error {
	a := addr & 0xfff
	if checked {
		if err := h.checkCSRPerm(a); err != nil {
			return err
		}
		if (a>>10)&0x3 == 0x3 {
			return exc(CauseIllegalInst, 0)
		}
		if a == CSRSatp && h.csrs[CSRMstatus]&mstatusTVM != 0 && h.Mode == ModeSupervisor {
			return exc(CauseIllegalInst, 0)
		}
	}

	switch a {
	case CSRMstatus:
		h.csrs[CSRMstatus] = (h.csrs[CSRMstatus] &^ mstatusWMask) | (val & mstatusWMask)
	case CSRSstatus:
		h.csrs[CSRMstatus] = (h.csrs[CSRMstatus] &^ sstatusMask) | (val & sstatusMask)
	case CSRFflags:
		h.csrs[CSRFcsr] = (h.csrs[CSRFcsr] &^ 0x1f) | (val & 0x1f)
		h.setFSDirty()
	case CSRFrm:
		h.csrs[CSRFcsr] = (h.csrs[CSRFcsr] &^ (0x7 << 5)) | ((val & 0x7) << 5)
		h.setFSDirty()
	case CSRFcsr:
		h.csrs[CSRFcsr] = val & 0xff
		h.setFSDirty()
	case CSRMisa:
		// writes ignored (spec §4.F).
	case CSRMvendorid, CSRMarchid, CSRMimpid, CSRMhartid, CSRMconfigptr:
		// read-only, writes ignored.
	default:
		h.csrs[a] = val
	}
	return nil
}

func (h *Hart) setFSDirty() {
	h.csrs[CSRMstatus] = (h.csrs[CSRMstatus] &^ mstatusFSMask) | (fsDirty << mstatusFSShift)
}

// checkCSRPerm enforces bits [9:8] minimum-privilege encoding (spec
// §4.F). It is skipped by the _cpu/Trap variants.
func (h *Hart) checkCSRPerm(a uint16) error {
	minPriv := uint8((a >> 8) & 0x3)
	if uint8(h.Mode) < minPriv {
		return exc(CauseIllegalInst, 0)
	}
	return nil
}

// Mstatus is a convenience accessor for internal use by the MMU and
// trap engine, which need raw field access far more often than a
// guest CSRRx instruction does.
func (h *Hart) Mstatus() uint64 { return h.csrs[CSRMstatus] }

func (h *Hart) setMstatus(v uint64) { h.csrs[CSRMstatus] = v }

func init() {
	// Sanity-check the fixed bit layout at package init, in the
	// teacher's own style (spr.go's init() constant assertions).
	if mstatusWMask&mstatusSD != 0 {
		panic(fmt.Sprintf("mstatus W_MASK must not include SD, got 0x%016x", mstatusWMask))
	}
}
