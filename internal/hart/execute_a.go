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

// RV32A/RV64A funct5 values, packed into instruction bits [31:27].
const (
	amoLR      = 0x02
	amoSC      = 0x03
	amoSwap    = 0x01
	amoAdd     = 0x00
	amoXor     = 0x04
	amoAnd     = 0x0c
	amoOr      = 0x08
	amoMinOp   = 0x10
	amoMaxOp   = 0x14
	amoMinuOp  = 0x18
	amoMaxuOp  = 0x1c
)

// executeAtomic implements the A extension: LR/SC with reservation
// tracking and the AMO read-modify-write ops, for both W and D widths
// (spec §4.H).
func (h *Hart) executeAtomic(ins Instruction) error {
	funct5 := ins.Raw >> 27
	addr := h.getX(ins.Rs1)
	isDouble := ins.Funct3 == 3

	if isDouble {
		if addr&0x7 != 0 {
			return exc(CauseLoadAddrMisalign, addr)
		}
	} else if addr&0x3 != 0 {
		return exc(CauseLoadAddrMisalign, addr)
	}

	pa, err := h.Translate(addr, AccessLoad)
	if err != nil {
		return err
	}

	if funct5 == amoLR {
		if isDouble {
			v, lerr := h.Bus.LoadU64(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			h.Res.AcquireDouble(pa)
			h.setX(ins.Rd, v)
		} else {
			v, lerr := h.Bus.LoadU32(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			h.Res.Acquire(pa)
			h.setX(ins.Rd, uint64(int64(int32(v))))
		}
		return nil
	}

	if funct5 == amoSC {
		spa, serr := h.Translate(addr, AccessStore)
		if serr != nil {
			return serr
		}
		var ok bool
		if isDouble {
			ok = h.Res.CheckOwnershipDouble(spa)
		} else {
			ok = h.Res.CheckOwnership(spa)
		}
		if !ok {
			h.Res.Clear()
			h.setX(ins.Rd, 1) // failure
			return nil
		}
		h.Res.Clear()
		if isDouble {
			if werr := h.Bus.StoreU64(spa, h.getX(ins.Rs2)); werr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		} else {
			if werr := h.Bus.StoreU32(spa, uint32(h.getX(ins.Rs2))); werr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		}
		h.setX(ins.Rd, 0) // success
		return nil
	}

	spa, serr := h.Translate(addr, AccessStore)
	if serr != nil {
		return serr
	}

	if isDouble {
		op, operr := amoOp64(funct5)
		if operr != nil {
			return operr
		}
		old, aerr := h.amoApply64(spa, h.getX(ins.Rs2), op)
		if aerr != nil {
			return aerr
		}
		h.setX(ins.Rd, old)
		return nil
	}

	op, operr := amoOp32(funct5)
	if operr != nil {
		return operr
	}
	old, aerr := h.amoApply32(spa, uint32(h.getX(ins.Rs2)), op)
	if aerr != nil {
		return aerr
	}
	h.setX(ins.Rd, uint64(int64(int32(old))))
	return nil
}

func amoOp32(funct5 uint32) (amoFunc32, error) {
	switch funct5 {
	case amoSwap:
		return amoSwap32, nil
	case amoAdd:
		return amoAdd32, nil
	case amoXor:
		return amoXor32, nil
	case amoAnd:
		return amoAnd32, nil
	case amoOr:
		return amoOr32, nil
	case amoMinOp:
		return amoMin32, nil
	case amoMaxOp:
		return amoMax32, nil
	case amoMinuOp:
		return amoMinu32, nil
	case amoMaxuOp:
		return amoMaxu32, nil
	default:
		return nil, exc(CauseIllegalInst, 0)
	}
}

func amoOp64(funct5 uint32) (amoFunc64, error) {
	switch funct5 {
	case amoSwap:
		return amoSwap64, nil
	case amoAdd:
		return amoAdd64, nil
	case amoXor:
		return amoXor64, nil
	case amoAnd:
		return amoAnd64, nil
	case amoOr:
		return amoOr64, nil
	case amoMinOp:
		return amoMin64, nil
	case amoMaxOp:
		return amoMax64, nil
	case amoMinuOp:
		return amoMinu64, nil
	case amoMaxuOp:
		return amoMaxu64, nil
	default:
		return nil, exc(CauseIllegalInst, 0)
	}
}
