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

// SYSTEM-opcode imm12 values that aren't CSR instructions (funct3==0,
// spec §4.K / §4.L).
const (
	sysECall  = 0x000
	sysEBreak = 0x001
	sysSRet   = 0x102
	sysWFI    = 0x105
	sysMRet   = 0x302
)

// executeSystem implements every SYSTEM-opcode instruction: the six
// CSR read-modify-write forms, ECALL/EBREAK, xRET and WFI, and
// SFENCE.VMA (spec §4.F, §4.G, §4.L). It returns the PC the caller
// should resume at, since xRET and traps redirect control flow in
// ways the uniform "PC+size" default in execute() cannot express.
func (h *Hart) executeSystem(ins Instruction, nextPC uint64) (uint64, error) {
	switch ins.Funct3 {
	case 0:
		return h.executePrivSpecial(ins, nextPC)
	case 1: // CSRRW
		return nextPC, h.csrOp(ins, h.getX(ins.Rs1), ins.Rd != 0)
	case 2: // CSRRS
		return nextPC, h.csrOpSetClear(ins, h.getX(ins.Rs1), true, ins.Rs1 != 0)
	case 3: // CSRRC
		return nextPC, h.csrOpSetClear(ins, h.getX(ins.Rs1), false, ins.Rs1 != 0)
	case 5: // CSRRWI
		return nextPC, h.csrOp(ins, uint64(ins.Rs1), ins.Rd != 0)
	case 6: // CSRRSI
		return nextPC, h.csrOpSetClear(ins, uint64(ins.Rs1), true, ins.Rs1 != 0)
	case 7: // CSRRCI
		return nextPC, h.csrOpSetClear(ins, uint64(ins.Rs1), false, ins.Rs1 != 0)
	}
	return nextPC, exc(CauseIllegalInst, uint64(ins.Raw))
}

func (h *Hart) executePrivSpecial(ins Instruction, nextPC uint64) (uint64, error) {
	imm := uint32(ins.Raw>>20) & 0xfff
	switch imm {
	case sysECall:
		cause := CauseECallFromU
		switch h.Mode {
		case ModeSupervisor:
			cause = CauseECallFromS
		case ModeMachine:
			cause = CauseECallFromM
		}
		return nextPC, exc(cause, 0)
	case sysEBreak:
		return nextPC, exc(CauseBreakpoint, 0)
	case sysSRet:
		if err := h.xRET(false); err != nil {
			return nextPC, err
		}
		return h.PC, nil
	case sysMRet:
		if err := h.xRET(true); err != nil {
			return nextPC, err
		}
		return h.PC, nil
	case sysWFI:
		if h.Mstatus()&mstatusTSR != 0 && h.Mode == ModeSupervisor {
			return nextPC, exc(CauseIllegalInst, uint64(ins.Raw))
		}
		// No external collaborator signals "halt until interrupt" at
		// this layer; WFI is treated as a no-op, matching a core that
		// polls interrupts every Step regardless.
		return nextPC, nil
	}

	if (ins.Raw>>25)&0x7f == 0x09 { // SFENCE.VMA
		if h.Mstatus()&mstatusTVM != 0 && h.Mode == ModeSupervisor {
			return nextPC, exc(CauseIllegalInst, uint64(ins.Raw))
		}
		h.FlushTLB()
		return nextPC, nil
	}

	return nextPC, exc(CauseIllegalInst, uint64(ins.Raw))
}

// csrOp implements CSRRW/CSRRWI: always write, only read into rd
// when rd != 0 (spec §4.F: a destination of x0 must not generate a
// side-effecting read, though this file's CSRs have none beyond the
// F-state-dirty bit, which writes already set).
func (h *Hart) csrOp(ins Instruction, writeVal uint64, readRd bool) error {
	var old uint64
	var err error
	if readRd {
		old, err = h.ReadCSR(uint16(ins.Raw >> 20))
		if err != nil {
			return err
		}
	} else if err := h.checkCSRPerm(uint16(ins.Raw >> 20)); err != nil {
		return err
	}
	if err := h.WriteCSR(uint16(ins.Raw>>20), writeVal); err != nil {
		return err
	}
	if readRd {
		h.setX(ins.Rd, old)
	}
	return nil
}

// csrOpSetClear implements CSRRS/CSRRC/CSRRSI/CSRRCI: always read,
// only write when the mask operand is non-zero (rs1 != 0 for the
// register forms, the immediate != 0 for the immediate forms), per
// spec §4.F (a zero mask must not raise a spurious write-side
// permission error against a read-only CSR).
func (h *Hart) csrOpSetClear(ins Instruction, mask uint64, set bool, doWrite bool) error {
	old, err := h.ReadCSR(uint16(ins.Raw >> 20))
	if err != nil {
		return err
	}
	h.setX(ins.Rd, old)
	if !doWrite {
		return nil
	}
	var newVal uint64
	if set {
		newVal = old | mask
	} else {
		newVal = old &^ mask
	}
	return h.WriteCSR(uint16(ins.Raw>>20), newVal)
}
