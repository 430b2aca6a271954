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

import "math"

// OP-FP funct7 op classes (bits [31:27] of funct7, i.e. funct7>>2);
// the low two bits of funct7 select the format: 0 = single, 1 =
// double (spec §4.I / §4.K).
const (
	fpOpAdd      = 0x00
	fpOpSub      = 0x01
	fpOpMul      = 0x02
	fpOpDiv      = 0x03
	fpOpSgnj     = 0x04
	fpOpMinMax   = 0x05
	fpOpCvtSzFmt = 0x08 // FCVT.S.D / FCVT.D.S (cross-format)
	fpOpSqrt     = 0x0b
	fpOpCmp      = 0x14
	fpOpClassMv  = 0x1c // FCLASS / FMV.X.w
	fpOpCvtToInt = 0x18
	fpOpCvtToFP  = 0x1a
	fpOpMvToFP   = 0x1e // FMV.w.X
)

func (h *Hart) executeFP(ins Instruction) error {
	switch ins.Opcode {
	case opMAdd, opMSub, opNMSub, opNMAdd:
		return h.executeFMA(ins)
	case opOpFP:
		return h.executeOpFP(ins)
	}
	return exc(CauseIllegalInst, uint64(ins.Raw))
}

func (h *Hart) executeFMA(ins Instruction) error {
	double := ins.Funct7&0x3 == 1
	rm, rerr := h.roundingMode(ins.Rm)
	if rerr != nil {
		return rerr
	}

	var negProd, subC bool
	switch ins.Opcode {
	case opMAdd: // a*b + c
	case opMSub: // a*b - c
		subC = true
	case opNMSub: // -(a*b) + c
		negProd = true
	case opNMAdd: // -(a*b) - c
		negProd, subC = true, true
	}

	if double {
		a, b, c := h.readFloat64(int(ins.Rs1)), h.readFloat64(int(ins.Rs2)), h.readFloat64(int(ins.Rs3))
		r, inexact := fpFMA64(a, b, c, negProd, subC, rm)
		h.setFFlags(flagsForFloat64([]float64{a, b, c}, r, false, inexact))
		h.writeFloat64(int(ins.Rd), r)
		return nil
	}

	a, b, c := h.readFloat32(int(ins.Rs1)), h.readFloat32(int(ins.Rs2)), h.readFloat32(int(ins.Rs3))
	r, inexact := fpFMA32(a, b, c, negProd, subC, rm)
	h.setFFlags(flagsForFloat32([]float32{a, b, c}, r, false, inexact))
	h.writeFloat32(int(ins.Rd), r)
	return nil
}

func (h *Hart) executeOpFP(ins Instruction) error {
	opClass := ins.Funct7 >> 2
	double := ins.Funct7&0x1 == 1

	rm, rerr := h.roundingMode(ins.Rm)
	if rerr != nil {
		return rerr
	}

	switch opClass {
	case fpOpAdd, fpOpSub, fpOpMul, fpOpDiv:
		return h.executeFPArith(ins, opClass, double, rm)
	case fpOpSqrt:
		return h.executeFPSqrt(ins, double, rm)
	case fpOpSgnj:
		return h.executeFPSgnj(ins, double)
	case fpOpMinMax:
		return h.executeFPMinMax(ins, double)
	case fpOpCvtSzFmt:
		return h.executeFPCvtFmt(ins, double, rm)
	case fpOpCmp:
		return h.executeFPCmp(ins, double)
	case fpOpClassMv:
		return h.executeFPClassMv(ins, double)
	case fpOpCvtToInt:
		return h.executeFPCvtToInt(ins, double)
	case fpOpCvtToFP:
		return h.executeFPCvtToFP(ins, double)
	case fpOpMvToFP:
		return h.executeFPMvToFP(ins, double)
	}
	return exc(CauseIllegalInst, uint64(ins.Raw))
}

func (h *Hart) executeFPArith(ins Instruction, opClass uint32, double bool, rm uint32) error {
	if double {
		a, b := h.readFloat64(int(ins.Rs1)), h.readFloat64(int(ins.Rs2))
		var r float64
		var inexact bool
		divZero := opClass == fpOpDiv && b == 0 && a != 0 && !math.IsNaN(a)
		switch opClass {
		case fpOpAdd:
			r, inexact = fpAdd64(a, b, rm)
		case fpOpSub:
			r, inexact = fpSub64(a, b, rm)
		case fpOpMul:
			r, inexact = fpMul64(a, b, rm)
		case fpOpDiv:
			r, inexact = fpDiv64(a, b, rm)
		}
		h.setFFlags(flagsForFloat64([]float64{a, b}, r, divZero, inexact))
		h.writeFloat64(int(ins.Rd), r)
		return nil
	}

	a, b := h.readFloat32(int(ins.Rs1)), h.readFloat32(int(ins.Rs2))
	var r float32
	var inexact bool
	divZero := opClass == fpOpDiv && b == 0 && a != 0 && !math.IsNaN(float64(a))
	switch opClass {
	case fpOpAdd:
		r, inexact = fpAdd32(a, b, rm)
	case fpOpSub:
		r, inexact = fpSub32(a, b, rm)
	case fpOpMul:
		r, inexact = fpMul32(a, b, rm)
	case fpOpDiv:
		r, inexact = fpDiv32(a, b, rm)
	}
	h.setFFlags(flagsForFloat32([]float32{a, b}, r, divZero, inexact))
	h.writeFloat32(int(ins.Rd), r)
	return nil
}

func (h *Hart) executeFPSqrt(ins Instruction, double bool, rm uint32) error {
	if double {
		a := h.readFloat64(int(ins.Rs1))
		r, inexact := fpSqrt64(a, rm)
		h.setFFlags(flagsForFloat64([]float64{a}, r, false, inexact))
		h.writeFloat64(int(ins.Rd), r)
		return nil
	}
	a := h.readFloat32(int(ins.Rs1))
	r, inexact := fpSqrt32(a, rm)
	h.setFFlags(flagsForFloat32([]float32{a}, r, false, inexact))
	h.writeFloat32(int(ins.Rd), r)
	return nil
}

func (h *Hart) executeFPSgnj(ins Instruction, double bool) error {
	if double {
		abits := h.ReadF64(int(ins.Rs1))
		bbits := h.ReadF64(int(ins.Rs2))
		var rbits uint64
		switch ins.Funct3 {
		case 0: // FSGNJ
			rbits = (abits &^ (uint64(1) << 63)) | (bbits & (uint64(1) << 63))
		case 1: // FSGNJN
			rbits = (abits &^ (uint64(1) << 63)) | (^bbits & (uint64(1) << 63))
		case 2: // FSGNJX
			rbits = abits ^ (bbits & (uint64(1) << 63))
		default:
			return exc(CauseIllegalInst, uint64(ins.Raw))
		}
		h.WriteF64(int(ins.Rd), rbits)
		return nil
	}
	abits := h.ReadF32(int(ins.Rs1))
	bbits := h.ReadF32(int(ins.Rs2))
	var rbits uint32
	switch ins.Funct3 {
	case 0:
		rbits = (abits &^ (1 << 31)) | (bbits & (1 << 31))
	case 1:
		rbits = (abits &^ (1 << 31)) | (^bbits & (1 << 31))
	case 2:
		rbits = abits ^ (bbits & (1 << 31))
	default:
		return exc(CauseIllegalInst, uint64(ins.Raw))
	}
	h.WriteF32(int(ins.Rd), rbits)
	return nil
}

func (h *Hart) executeFPMinMax(ins Instruction, double bool) error {
	if double {
		a, b := h.readFloat64(int(ins.Rs1)), h.readFloat64(int(ins.Rs2))
		var r float64
		var fl uint64
		switch ins.Funct3 {
		case 0:
			r, fl = fmin64(a, b)
		case 1:
			r, fl = fmax64(a, b)
		default:
			return exc(CauseIllegalInst, uint64(ins.Raw))
		}
		h.setFFlags(fl)
		h.writeFloat64(int(ins.Rd), r)
		return nil
	}
	a, b := h.readFloat32(int(ins.Rs1)), h.readFloat32(int(ins.Rs2))
	var r float32
	var fl uint64
	switch ins.Funct3 {
	case 0:
		r, fl = fmin32(a, b)
	case 1:
		r, fl = fmax32(a, b)
	default:
		return exc(CauseIllegalInst, uint64(ins.Raw))
	}
	h.setFFlags(fl)
	h.writeFloat32(int(ins.Rd), r)
	return nil
}

// executeFPCvtFmt implements FCVT.S.D (rs2=1) and FCVT.D.S (rs2=0).
// Widening single->double is always exact; narrowing double->single
// can lose precision and is rounded per rm (spec §4.I).
func (h *Hart) executeFPCvtFmt(ins Instruction, toDouble bool, rm uint32) error {
	if toDouble {
		a := h.readFloat32(int(ins.Rs1))
		r := float64(a)
		h.setFFlags(flagsForFloat64([]float64{float64(a)}, r, false, false))
		h.writeFloat64(int(ins.Rd), r)
		return nil
	}
	a := h.readFloat64(int(ins.Rs1))
	var r float32
	var inexact bool
	switch {
	case math.IsNaN(a):
		r = float32(math.NaN())
	case math.IsInf(a, 0):
		r = float32(a)
	default:
		r, inexact = roundBig32(bigFromFloat64(a), rm)
	}
	h.setFFlags(flagsForFloat32([]float32{float32(a)}, r, false, inexact))
	h.writeFloat32(int(ins.Rd), r)
	return nil
}

func (h *Hart) executeFPCmp(ins Instruction, double bool) error {
	var eq, lt bool
	var nv bool
	if double {
		a, b := h.readFloat64(int(ins.Rs1)), h.readFloat64(int(ins.Rs2))
		if isSNaN64(math.Float64bits(a)) || isSNaN64(math.Float64bits(b)) {
			nv = true
		}
		if math.IsNaN(a) || math.IsNaN(b) {
			if ins.Funct3 != 2 && (math.IsNaN(a) || math.IsNaN(b)) {
				nv = true
			}
			eq, lt = false, false
		} else {
			eq, lt = a == b, a < b
		}
	} else {
		a, b := h.readFloat32(int(ins.Rs1)), h.readFloat32(int(ins.Rs2))
		if isSNaN32(math.Float32bits(a)) || isSNaN32(math.Float32bits(b)) {
			nv = true
		}
		if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
			if ins.Funct3 != 2 {
				nv = true
			}
			eq, lt = false, false
		} else {
			eq, lt = a == b, a < b
		}
	}
	if nv {
		h.setFFlags(fflagNV)
	}

	var r uint64
	switch ins.Funct3 {
	case 2: // FEQ
		r = boolToU64(eq)
	case 1: // FLT
		r = boolToU64(lt)
	case 0: // FLE
		r = boolToU64(lt || eq)
	default:
		return exc(CauseIllegalInst, uint64(ins.Raw))
	}
	h.setX(ins.Rd, r)
	return nil
}

func (h *Hart) executeFPClassMv(ins Instruction, double bool) error {
	switch ins.Funct3 {
	case 0: // FMV.X.W / FMV.X.D
		if double {
			h.setX(ins.Rd, h.ReadF64(int(ins.Rs1)))
		} else {
			h.setX(ins.Rd, uint64(int64(int32(h.ReadF32(int(ins.Rs1))))))
		}
		return nil
	case 1: // FCLASS
		if double {
			h.setX(ins.Rd, fclass64(h.readFloat64(int(ins.Rs1))))
		} else {
			h.setX(ins.Rd, fclass32(h.readFloat32(int(ins.Rs1))))
		}
		return nil
	}
	return exc(CauseIllegalInst, uint64(ins.Raw))
}

func (h *Hart) executeFPMvToFP(ins Instruction, double bool) error {
	if double {
		h.WriteF64(int(ins.Rd), h.getX(ins.Rs1))
	} else {
		h.WriteF32(int(ins.Rd), uint32(h.getX(ins.Rs1)))
	}
	return nil
}

// executeFPCvtToInt implements FCVT.{W,WU,L,LU}.{S,D}; ins.Rs2 selects
// the destination integer type (spec §4.I).
func (h *Hart) executeFPCvtToInt(ins Instruction, double bool) error {
	var f float64
	if double {
		f = h.readFloat64(int(ins.Rs1))
	} else {
		f = float64(h.readFloat32(int(ins.Rs1)))
	}

	var r uint64
	var fl uint64
	switch ins.Rs2 {
	case 0: // W
		v, f2 := fcvtF64ToI32(f)
		r, fl = uint64(int64(v)), f2
	case 1: // WU
		v, f2 := fcvtF64ToU32(f)
		r, fl = uint64(int64(int32(v))), f2
	case 2: // L
		v, f2 := fcvtF64ToI64(f)
		r, fl = uint64(v), f2
	case 3: // LU
		v, f2 := fcvtF64ToU64(f)
		r, fl = v, f2
	default:
		return exc(CauseIllegalInst, uint64(ins.Raw))
	}
	h.setFFlags(fl)
	h.setX(ins.Rd, r)
	return nil
}

// executeFPCvtToFP implements FCVT.{S,D}.{W,WU,L,LU}; ins.Rs2 selects
// the source integer type.
func (h *Hart) executeFPCvtToFP(ins Instruction, double bool) error {
	x := h.getX(ins.Rs1)
	var f float64
	switch ins.Rs2 {
	case 0: // W
		f = float64(int32(x))
	case 1: // WU
		f = float64(uint32(x))
	case 2: // L
		f = float64(int64(x))
	case 3: // LU
		f = float64(x)
	default:
		return exc(CauseIllegalInst, uint64(ins.Raw))
	}
	if double {
		h.writeFloat64(int(ins.Rd), f)
	} else {
		h.writeFloat32(int(ins.Rd), float32(f))
	}
	return nil
}
