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

// getX/setX enforce x0 being hardwired to zero (spec §4.K), the one
// invariant every execute handler relies on instead of re-checking.
func (h *Hart) getX(r uint32) uint64 {
	if r == 0 {
		return 0
	}
	return h.X[r]
}

func (h *Hart) setX(r uint32, v uint64) {
	if r != 0 {
		h.X[r] = v
	}
}

// execute dispatches a decoded instruction to the handler for its
// opcode family (component K, spec §4.K). Each family's own file
// narrows further on funct3/funct7/imm as needed; this top-level
// switch is the only place opcode values are tested against each
// other, keeping every handler's dispatch local and flat.
func (h *Hart) execute(ins Instruction) (nextPC uint64, err error) {
	nextPC = h.PC + uint64(ins.Size)

	switch ins.Opcode {
	case opLUI:
		h.setX(ins.Rd, uint64(ins.ImmU))
	case opAUIPC:
		h.setX(ins.Rd, h.PC+uint64(ins.ImmU))
	case opJAL:
		h.setX(ins.Rd, nextPC)
		target := h.PC + uint64(ins.ImmJ)
		// The C extension relaxes every control-transfer target to
		// 2-byte alignment, the same relaxation fetch applies (spec
		// §3, §4.K); only a 4-byte-unaligned target with C disabled
		// would need the stricter check, and this core always has C.
		if target&0x1 != 0 {
			return 0, exc(CauseInstAddrMisalign, target)
		}
		nextPC = target
	case opJALR:
		target := (h.getX(ins.Rs1) + uint64(ins.ImmI)) &^ 1
		h.setX(ins.Rd, nextPC)
		if target&0x1 != 0 {
			return 0, exc(CauseInstAddrMisalign, target)
		}
		nextPC = target
	case opBranch:
		taken, berr := h.evalBranch(ins)
		if berr != nil {
			return 0, berr
		}
		if taken {
			target := h.PC + uint64(ins.ImmB)
			if target&0x1 != 0 {
				return 0, exc(CauseInstAddrMisalign, target)
			}
			nextPC = target
		}
	case opOpImm, opOpImm32, opOp, opOp32:
		err = h.executeALU(ins)
	case opLoad, opStore:
		err = h.executeMem(ins)
	case opLoadFP, opStoreFP:
		err = h.executeFPMem(ins)
	case opMiscMem:
		// FENCE / FENCE.I: this core runs a single in-order hart with
		// no store buffering, so both are no-ops beyond decoding.
	case opAMO:
		err = h.executeAtomic(ins)
	case opOpFP, opMAdd, opMSub, opNMSub, opNMAdd:
		err = h.executeFP(ins)
	case opSystem:
		nextPC, err = h.executeSystem(ins, nextPC)
	default:
		err = exc(CauseIllegalInst, uint64(ins.Raw))
	}

	return nextPC, err
}

func (h *Hart) evalBranch(ins Instruction) (bool, error) {
	a, b := h.getX(ins.Rs1), h.getX(ins.Rs2)
	switch ins.Funct3 {
	case 0: // BEQ
		return a == b, nil
	case 1: // BNE
		return a != b, nil
	case 4: // BLT
		return int64(a) < int64(b), nil
	case 5: // BGE
		return int64(a) >= int64(b), nil
	case 6: // BLTU
		return a < b, nil
	case 7: // BGEU
		return a >= b, nil
	default:
		return false, exc(CauseIllegalInst, uint64(ins.Raw))
	}
}
