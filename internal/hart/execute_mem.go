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

// executeMem implements RV64I's integer loads and stores: address
// computation, Sv39 translation, width-correct sign/zero extension
// and the bus access itself (spec §4.K / §4.G).
func (h *Hart) executeMem(ins Instruction) error {
	switch ins.Opcode {
	case opLoad:
		addr := h.getX(ins.Rs1) + uint64(ins.ImmI)
		pa, err := h.Translate(addr, AccessLoad)
		if err != nil {
			return err
		}
		var v uint64
		switch ins.Funct3 {
		case 0: // LB
			b, lerr := h.Bus.LoadU8(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = uint64(int64(int8(b)))
		case 1: // LH
			x, lerr := h.Bus.LoadU16(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = uint64(int64(int16(x)))
		case 2: // LW
			x, lerr := h.Bus.LoadU32(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = uint64(int64(int32(x)))
		case 3: // LD
			x, lerr := h.Bus.LoadU64(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = x
		case 4: // LBU
			b, lerr := h.Bus.LoadU8(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = uint64(b)
		case 5: // LHU
			x, lerr := h.Bus.LoadU16(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = uint64(x)
		case 6: // LWU
			x, lerr := h.Bus.LoadU32(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			v = uint64(x)
		default:
			return exc(CauseIllegalInst, uint64(ins.Raw))
		}
		h.setX(ins.Rd, v)
		return nil

	case opStore:
		addr := h.getX(ins.Rs1) + uint64(ins.ImmS)
		pa, err := h.Translate(addr, AccessStore)
		if err != nil {
			return err
		}
		v := h.getX(ins.Rs2)
		switch ins.Funct3 {
		case 0: // SB
			if serr := h.Bus.StoreU8(pa, uint8(v)); serr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		case 1: // SH
			if serr := h.Bus.StoreU16(pa, uint16(v)); serr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		case 2: // SW
			if serr := h.Bus.StoreU32(pa, uint32(v)); serr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		case 3: // SD
			if serr := h.Bus.StoreU64(pa, v); serr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		default:
			return exc(CauseIllegalInst, uint64(ins.Raw))
		}
		if ins.Funct3 == 2 { // only SW takes part in the harness protocol
			h.checkTestHarnessStore(pa, uint64(uint32(v)))
		}
		return nil
	}
	return exc(CauseIllegalInst, uint64(ins.Raw))
}

// Test-harness termination protocol addresses (spec §6): a 32-bit
// store of value 0 to either address ends the run. The exit code is
// the 32-bit word already sitting 4 bytes below the stored address,
// minus 1, clamped to zero rather than wrapping negative. Only live
// when Hart.Testing is set, so an ordinary guest OS image storing
// through these physical addresses by coincidence can never trigger
// it.
const (
	testHarnessTohost   = 0x8000_1004
	testHarnessFromhost = 0x8000_2004
)

func (h *Hart) checkTestHarnessStore(pa, v uint64) {
	if !h.Testing || h.Exited {
		return
	}
	if pa != testHarnessTohost && pa != testHarnessFromhost {
		return
	}
	if v != 0 {
		return
	}
	word, _ := h.Bus.LoadU32(pa - 4)
	var code uint32
	if word > 0 {
		code = word - 1
	}
	h.Exited = true
	h.ExitCode = int(code)
}

// executeFPMem implements FLW/FLD and FSW/FSD (spec §4.I / §4.K):
// FP loads always NaN-box a single-precision value on read, and FP
// stores read the raw bit pattern straight out of the register file.
func (h *Hart) executeFPMem(ins Instruction) error {
	switch ins.Opcode {
	case opLoadFP:
		addr := h.getX(ins.Rs1) + uint64(ins.ImmI)
		pa, err := h.Translate(addr, AccessLoad)
		if err != nil {
			return err
		}
		switch ins.Funct3 {
		case 2: // FLW
			x, lerr := h.Bus.LoadU32(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			h.WriteF32(int(ins.Rd), x)
		case 3: // FLD
			x, lerr := h.Bus.LoadU64(pa)
			if lerr != nil {
				return exc(CauseLoadAccessFault, addr)
			}
			h.WriteF64(int(ins.Rd), x)
		default:
			return exc(CauseIllegalInst, uint64(ins.Raw))
		}
		return nil

	case opStoreFP:
		addr := h.getX(ins.Rs1) + uint64(ins.ImmS)
		pa, err := h.Translate(addr, AccessStore)
		if err != nil {
			return err
		}
		switch ins.Funct3 {
		case 2: // FSW
			if serr := h.Bus.StoreU32(pa, h.ReadF32(int(ins.Rs2))); serr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		case 3: // FSD
			if serr := h.Bus.StoreU64(pa, h.ReadF64(int(ins.Rs2))); serr != nil {
				return exc(CauseStoreAccessFault, addr)
			}
		default:
			return exc(CauseIllegalInst, uint64(ins.Raw))
		}
		return nil
	}
	return exc(CauseIllegalInst, uint64(ins.Raw))
}
