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
	"math"
	"math/big"
)

// fflags bit positions (spec §4.I).
const (
	fflagNX = uint64(1) << 0
	fflagUF = uint64(1) << 1
	fflagOF = uint64(1) << 2
	fflagDZ = uint64(1) << 3
	fflagNV = uint64(1) << 4
)

// Canonical quiet NaNs substituted for any arithmetic result that
// produced a NaN, per the RISC-V F/D NaN-boxing rules (spec §4.I).
const (
	f32CanonicalNaN = uint32(0x7fc00000)
	f64CanonicalNaN = uint64(0x7ff8000000000000)

	nanBoxUpper32 = uint64(0xffffffff00000000)
)

// ReadF32 un-boxes a single-precision value from register fr, which
// holds its bit pattern in the low half of a 64-bit slot whose upper
// half is all ones (NaN-boxed) per spec §4.I. A register whose upper 32 bits aren't all ones
// is not correctly NaN-boxed and reads back as the canonical NaN.
func (h *Hart) ReadF32(fr int) uint32 {
	v := h.F[fr]
	if v&nanBoxUpper32 != nanBoxUpper32 {
		return f32CanonicalNaN
	}
	return uint32(v)
}

// WriteF32 NaN-boxes val into register fr and marks mstatus.FS dirty
// (spec §3: "any FP write must set mstatus.FS = Dirty"), since every
// FP-register write in this core funnels through here.
func (h *Hart) WriteF32(fr int, val uint32) {
	h.F[fr] = nanBoxUpper32 | uint64(val)
	h.setFSDirty()
}

func (h *Hart) ReadF64(fr int) uint64 { return h.F[fr] }

// WriteF64 stores v into register fr and marks mstatus.FS dirty, same
// as WriteF32.
func (h *Hart) WriteF64(fr int, v uint64) {
	h.F[fr] = v
	h.setFSDirty()
}

func (h *Hart) readFloat32(fr int) float32 {
	return math.Float32frombits(h.ReadF32(fr))
}

func (h *Hart) writeFloat32(fr int, f float32) {
	bits := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		bits = f32CanonicalNaN
	}
	h.WriteF32(fr, bits)
}

func (h *Hart) readFloat64(fr int) float64 {
	return math.Float64frombits(h.ReadF64(fr))
}

func (h *Hart) writeFloat64(fr int, f float64) {
	bits := math.Float64bits(f)
	if math.IsNaN(f) {
		bits = f64CanonicalNaN
	}
	h.WriteF64(fr, bits)
}

// roundingMode resolves the effective dynamic rounding mode for an
// instruction whose rm field is rmField: either that static mode, or
// frm from fcsr when rmField is rmDyn. Modes 5 and 6 are reserved and
// illegal in both positions (spec §4.I).
const (
	rmRNE = 0
	rmRTZ = 1
	rmRDN = 2
	rmRUP = 3
	rmRMM = 4
	rmDyn = 7
)

func (h *Hart) roundingMode(rmField uint32) (uint32, error) {
	rm := rmField
	if rm == rmDyn {
		rm = uint32((h.csrs[CSRFcsr] >> 5) & 0x7)
	}
	if rm == 5 || rm == 6 || rm > 7 {
		return 0, exc(CauseIllegalInst, 0)
	}
	return rm, nil
}

// Go's native float32/float64 arithmetic always rounds to nearest-
// even and this core has no portable binding to the host FPU's
// rounding-control register (no cgo fenv wrapper is available among
// the libraries this module already depends on). Instead, every
// rounding-mode-sensitive op below computes its result with
// math/big.Float at a generous fixed intermediate precision and
// rounds down to the target IEEE width with the matching
// big.RoundingMode, reporting whether that final rounding step
// changed the value. Addition, subtraction and multiplication are
// exact at these intermediate widths (the precision comfortably
// exceeds the exponent spread either format can produce); division
// and square root are irrational in general, so the wide intermediate
// precision makes a double-rounding error astronomically unlikely
// rather than impossible. SPEC_FULL §11 records this design.
const (
	bigPrec32 = 2048
	bigPrec64 = 8192
)

func bigRoundingMode(rm uint32) big.RoundingMode {
	switch rm {
	case rmRTZ:
		return big.ToZero
	case rmRDN:
		return big.ToNegativeInf
	case rmRUP:
		return big.ToPositiveInf
	case rmRMM:
		return big.ToNearestAway
	default:
		return big.ToNearestEven
	}
}

func bigFromFloat32(f float32) *big.Float {
	return new(big.Float).SetPrec(bigPrec32).SetFloat64(float64(f))
}

func bigFromFloat64(f float64) *big.Float {
	return new(big.Float).SetPrec(bigPrec64).SetFloat64(f)
}

// roundBig32/64 round an arbitrary-precision value to the target
// width under rm, reporting whether the conversion was inexact — the
// NX source for every op below, since a correctly-rounded-at-RNE
// native float32/float64 op gives no way to recover whether rounding
// actually happened.
func roundBig32(v *big.Float, rm uint32) (float32, bool) {
	r := new(big.Float).SetPrec(24).SetMode(bigRoundingMode(rm))
	r.Set(v)
	f, _ := r.Float32()
	return f, r.Acc() != big.Exact
}

func roundBig64(v *big.Float, rm uint32) (float64, bool) {
	r := new(big.Float).SetPrec(53).SetMode(bigRoundingMode(rm))
	r.Set(v)
	f, _ := r.Float64()
	return f, r.Acc() != big.Exact
}

// fpAdd32/fpSub32/fpMul32/fpDiv32/fpSqrt32/fpFMA32 and their 64-bit
// counterparts implement the rounding-mode-sensitive arithmetic ops
// (spec §4.I). NaN and infinite operands are resolved directly before
// any math/big.Float call, since big.Float has no NaN representation
// and panics on the operations that would produce one (Inf-Inf,
// 0*Inf, 0/0, Sqrt of a negative) — those are exact categorical
// results, not rounded numeric ones, so rm doesn't apply to them.
func fpAdd32(a, b float32, rm uint32) (float32, bool) {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN()), false
	}
	aInf, bInf := math.IsInf(float64(a), 0), math.IsInf(float64(b), 0)
	if aInf && bInf && math.Signbit(float64(a)) != math.Signbit(float64(b)) {
		return float32(math.NaN()), false
	}
	if aInf {
		return a, false
	}
	if bInf {
		return b, false
	}
	z := new(big.Float).SetPrec(bigPrec32).Add(bigFromFloat32(a), bigFromFloat32(b))
	return roundBig32(z, rm)
}

func fpSub32(a, b float32, rm uint32) (float32, bool) {
	return fpAdd32(a, -b, rm)
}

func fpMul32(a, b float32, rm uint32) (float32, bool) {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN()), false
	}
	aInf, bInf := math.IsInf(float64(a), 0), math.IsInf(float64(b), 0)
	if (aInf && b == 0) || (bInf && a == 0) {
		return float32(math.NaN()), false
	}
	if aInf || bInf {
		return a * b, false // native op signs the resulting infinity correctly
	}
	z := new(big.Float).SetPrec(bigPrec32).Mul(bigFromFloat32(a), bigFromFloat32(b))
	return roundBig32(z, rm)
}

func fpDiv32(a, b float32, rm uint32) (float32, bool) {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN()), false
	}
	aInf, bInf := math.IsInf(float64(a), 0), math.IsInf(float64(b), 0)
	if (aInf && bInf) || (a == 0 && b == 0) {
		return float32(math.NaN()), false
	}
	if b == 0 || aInf || bInf {
		return a / b, false // native op: correctly-signed infinity or zero
	}
	z := new(big.Float).SetPrec(bigPrec32).Quo(bigFromFloat32(a), bigFromFloat32(b))
	return roundBig32(z, rm)
}

func fpSqrt32(a float32, rm uint32) (float32, bool) {
	switch {
	case math.IsNaN(float64(a)):
		return float32(math.NaN()), false
	case a == 0, math.IsInf(float64(a), 1):
		return a, false
	case a < 0:
		return float32(math.NaN()), false
	}
	z := new(big.Float).SetPrec(bigPrec32).Sqrt(bigFromFloat32(a))
	return roundBig32(z, rm)
}

// fpFMA32 computes a*b±c in one rounding step, negating the product
// first for the FNMSUB/FNMADD forms (spec §4.I's fused multiply-add
// family); subC folds FMSUB/FNMADD's subtraction into a negated c so
// the Inf/NaN special cases only need to be handled once.
func fpFMA32(a, b, c float32, negProd, subC bool, rm uint32) (float32, bool) {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) || math.IsNaN(float64(c)) {
		return float32(math.NaN()), false
	}
	aInf, bInf := math.IsInf(float64(a), 0), math.IsInf(float64(b), 0)
	if (aInf || bInf) && (a == 0 || b == 0) {
		return float32(math.NaN()), false
	}
	cc := c
	if subC {
		cc = -c
	}
	if aInf || bInf {
		p := a * b
		if negProd {
			p = -p
		}
		if math.IsInf(float64(cc), 0) && math.Signbit(float64(p)) != math.Signbit(float64(cc)) {
			return float32(math.NaN()), false
		}
		return p, false
	}
	if math.IsInf(float64(cc), 0) {
		return cc, false
	}
	prod := new(big.Float).SetPrec(bigPrec32).Mul(bigFromFloat32(a), bigFromFloat32(b))
	if negProd {
		prod.Neg(prod)
	}
	z := new(big.Float).SetPrec(bigPrec32).Add(prod, bigFromFloat32(cc))
	return roundBig32(z, rm)
}

func fpAdd64(a, b float64, rm uint32) (float64, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN(), false
	}
	aInf, bInf := math.IsInf(a, 0), math.IsInf(b, 0)
	if aInf && bInf && math.Signbit(a) != math.Signbit(b) {
		return math.NaN(), false
	}
	if aInf {
		return a, false
	}
	if bInf {
		return b, false
	}
	z := new(big.Float).SetPrec(bigPrec64).Add(bigFromFloat64(a), bigFromFloat64(b))
	return roundBig64(z, rm)
}

func fpSub64(a, b float64, rm uint32) (float64, bool) {
	return fpAdd64(a, -b, rm)
}

func fpMul64(a, b float64, rm uint32) (float64, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN(), false
	}
	aInf, bInf := math.IsInf(a, 0), math.IsInf(b, 0)
	if (aInf && b == 0) || (bInf && a == 0) {
		return math.NaN(), false
	}
	if aInf || bInf {
		return a * b, false
	}
	z := new(big.Float).SetPrec(bigPrec64).Mul(bigFromFloat64(a), bigFromFloat64(b))
	return roundBig64(z, rm)
}

func fpDiv64(a, b float64, rm uint32) (float64, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN(), false
	}
	aInf, bInf := math.IsInf(a, 0), math.IsInf(b, 0)
	if (aInf && bInf) || (a == 0 && b == 0) {
		return math.NaN(), false
	}
	if b == 0 || aInf || bInf {
		return a / b, false
	}
	z := new(big.Float).SetPrec(bigPrec64).Quo(bigFromFloat64(a), bigFromFloat64(b))
	return roundBig64(z, rm)
}

func fpSqrt64(a float64, rm uint32) (float64, bool) {
	switch {
	case math.IsNaN(a):
		return math.NaN(), false
	case a == 0, math.IsInf(a, 1):
		return a, false
	case a < 0:
		return math.NaN(), false
	}
	z := new(big.Float).SetPrec(bigPrec64).Sqrt(bigFromFloat64(a))
	return roundBig64(z, rm)
}

func fpFMA64(a, b, c float64, negProd, subC bool, rm uint32) (float64, bool) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) {
		return math.NaN(), false
	}
	aInf, bInf := math.IsInf(a, 0), math.IsInf(b, 0)
	if (aInf || bInf) && (a == 0 || b == 0) {
		return math.NaN(), false
	}
	cc := c
	if subC {
		cc = -c
	}
	if aInf || bInf {
		p := a * b
		if negProd {
			p = -p
		}
		if math.IsInf(cc, 0) && math.Signbit(p) != math.Signbit(cc) {
			return math.NaN(), false
		}
		return p, false
	}
	if math.IsInf(cc, 0) {
		return cc, false
	}
	prod := new(big.Float).SetPrec(bigPrec64).Mul(bigFromFloat64(a), bigFromFloat64(b))
	if negProd {
		prod.Neg(prod)
	}
	z := new(big.Float).SetPrec(bigPrec64).Add(prod, bigFromFloat64(cc))
	return roundBig64(z, rm)
}

// setFFlags ORs newFlags into fcsr's fflags field (spec §4.I: flags
// accumulate across instructions until explicitly cleared).
func (h *Hart) setFFlags(newFlags uint64) {
	h.csrs[CSRFcsr] |= newFlags & 0x1f
}

// flagsForFloat32 reconstructs the NV/DZ/OF/UF/NX flags a real FPU
// would report for a single-precision op by inspecting its operands,
// result and rounding outcome directly, since Go exposes no
// fetestexcept binding (SPEC_FULL §9/§11). inexact is the value
// returned alongside the op's result by the fp*32 functions above.
func flagsForFloat32(inputs []float32, result float32, isDivByZero, inexact bool) uint64 {
	var fl uint64
	for _, in := range inputs {
		if isSNaN32(math.Float32bits(in)) {
			fl |= fflagNV
		}
	}
	if math.IsNaN(float64(result)) {
		fl |= fflagNV
	}
	if isDivByZero {
		fl |= fflagDZ
	}
	if math.IsInf(float64(result), 0) && !anyInf32(inputs) {
		fl |= fflagOF
	}
	if result == 0 && !anyZero32(inputs) && !math.IsNaN(float64(result)) {
		fl |= fflagUF
	}
	if inexact {
		fl |= fflagNX
	}
	return fl
}

func flagsForFloat64(inputs []float64, result float64, isDivByZero, inexact bool) uint64 {
	var fl uint64
	for _, in := range inputs {
		if isSNaN64(math.Float64bits(in)) {
			fl |= fflagNV
		}
	}
	if math.IsNaN(result) {
		fl |= fflagNV
	}
	if isDivByZero {
		fl |= fflagDZ
	}
	if math.IsInf(result, 0) && !anyInf64(inputs) {
		fl |= fflagOF
	}
	if result == 0 && !anyZero64(inputs) && !math.IsNaN(result) {
		fl |= fflagUF
	}
	if inexact {
		fl |= fflagNX
	}
	return fl
}

func anyInf32(vs []float32) bool {
	for _, v := range vs {
		if math.IsInf(float64(v), 0) {
			return true
		}
	}
	return false
}
func anyZero32(vs []float32) bool {
	for _, v := range vs {
		if v == 0 {
			return true
		}
	}
	return false
}
func anyInf64(vs []float64) bool {
	for _, v := range vs {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
func anyZero64(vs []float64) bool {
	for _, v := range vs {
		if v == 0 {
			return true
		}
	}
	return false
}

// isSNaN32/64 test the signaling bit (bit 22 / bit 51) of a NaN
// payload, per the original's f32_is_snan/f64_is_snan.
func isSNaN32(bits uint32) bool {
	return (bits&0x7fc00000) == 0x7f800000 && (bits&0x003fffff) != 0 && bits&0x00400000 == 0
}

func isSNaN64(bits uint64) bool {
	return (bits&0x7ff0000000000000) == 0x7ff0000000000000 &&
		(bits&0x000fffffffffffff) != 0 && bits&0x0008000000000000 == 0
}

// fmin32/fmax32 implement the RISC-V FMIN.S/FMAX.S tie-break rules:
// a quiet NaN operand loses to any number, two NaNs yield the
// canonical NaN (with NV raised if either was signaling), and -0.0
// sorts below +0.0 (spec §4.I).
func fmin32(a, b float32) (float32, uint64) {
	var fl uint64
	abits, bbits := math.Float32bits(a), math.Float32bits(b)
	if isSNaN32(abits) || isSNaN32(bbits) {
		fl |= fflagNV
	}
	aNaN, bNaN := math.IsNaN(float64(a)), math.IsNaN(float64(b))
	switch {
	case aNaN && bNaN:
		return math.Float32frombits(f32CanonicalNaN), fl
	case aNaN:
		return b, fl
	case bNaN:
		return a, fl
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return a, fl
		}
		return b, fl
	}
	if a < b {
		return a, fl
	}
	return b, fl
}

func fmax32(a, b float32) (float32, uint64) {
	var fl uint64
	abits, bbits := math.Float32bits(a), math.Float32bits(b)
	if isSNaN32(abits) || isSNaN32(bbits) {
		fl |= fflagNV
	}
	aNaN, bNaN := math.IsNaN(float64(a)), math.IsNaN(float64(b))
	switch {
	case aNaN && bNaN:
		return math.Float32frombits(f32CanonicalNaN), fl
	case aNaN:
		return b, fl
	case bNaN:
		return a, fl
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return b, fl
		}
		return a, fl
	}
	if a > b {
		return a, fl
	}
	return b, fl
}

func fmin64(a, b float64) (float64, uint64) {
	var fl uint64
	if isSNaN64(math.Float64bits(a)) || isSNaN64(math.Float64bits(b)) {
		fl |= fflagNV
	}
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return math.Float64frombits(f64CanonicalNaN), fl
	case aNaN:
		return b, fl
	case bNaN:
		return a, fl
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a, fl
		}
		return b, fl
	}
	if a < b {
		return a, fl
	}
	return b, fl
}

func fmax64(a, b float64) (float64, uint64) {
	var fl uint64
	if isSNaN64(math.Float64bits(a)) || isSNaN64(math.Float64bits(b)) {
		fl |= fflagNV
	}
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return math.Float64frombits(f64CanonicalNaN), fl
	case aNaN:
		return b, fl
	case bNaN:
		return a, fl
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b, fl
		}
		return a, fl
	}
	if a > b {
		return a, fl
	}
	return b, fl
}

// fclass32/64 build the 10-bit FCLASS mask (spec §4.I).
func fclass32(f float32) uint64 {
	bits := math.Float32bits(f)
	neg := bits>>31 == 1
	switch {
	case math.IsInf(float64(f), -1):
		return 1 << 0
	case math.IsInf(float64(f), 1):
		return 1 << 7
	case isSNaN32(bits):
		return 1 << 8
	case math.IsNaN(float64(f)):
		return 1 << 9
	case f == 0 && neg:
		return 1 << 3
	case f == 0:
		return 1 << 4
	}
	exp := (bits >> 23) & 0xff
	if exp == 0 {
		if neg {
			return 1 << 2
		}
		return 1 << 5
	}
	if neg {
		return 1 << 1
	}
	return 1 << 6
}

func fclass64(f float64) uint64 {
	bits := math.Float64bits(f)
	neg := bits>>63 == 1
	switch {
	case math.IsInf(f, -1):
		return 1 << 0
	case math.IsInf(f, 1):
		return 1 << 7
	case isSNaN64(bits):
		return 1 << 8
	case math.IsNaN(f):
		return 1 << 9
	case f == 0 && neg:
		return 1 << 3
	case f == 0:
		return 1 << 4
	}
	exp := (bits >> 52) & 0x7ff
	if exp == 0 {
		if neg {
			return 1 << 2
		}
		return 1 << 5
	}
	if neg {
		return 1 << 1
	}
	return 1 << 6
}

// fcvtF64ToI64/U64/I32/U32 convert f to the named integer type,
// truncating toward zero. Out-of-range inputs saturate and NaN
// saturates to the maximum positive value (spec §4.I), both setting
// NV; an in-range input with a fractional part sets NX.
func fcvtF64ToI64(f float64) (int64, uint64) {
	if math.IsNaN(f) {
		return math.MaxInt64, fflagNV
	}
	if f >= 9223372036854775808.0 {
		return math.MaxInt64, fflagNV
	}
	if f < -9223372036854775808.0 {
		return math.MinInt64, fflagNV
	}
	r := int64(f)
	var fl uint64
	if float64(r) != f {
		fl = fflagNX
	}
	return r, fl
}

func fcvtF64ToU64(f float64) (uint64, uint64) {
	if math.IsNaN(f) {
		return math.MaxUint64, fflagNV
	}
	if f < 0 {
		return 0, fflagNV
	}
	if f >= 18446744073709551616.0 {
		return math.MaxUint64, fflagNV
	}
	r := uint64(f)
	var fl uint64
	if float64(r) != f {
		fl = fflagNX
	}
	return r, fl
}

func fcvtF64ToI32(f float64) (int32, uint64) {
	if math.IsNaN(f) {
		return math.MaxInt32, fflagNV
	}
	if f >= 2147483648.0 {
		return math.MaxInt32, fflagNV
	}
	if f < -2147483648.0 {
		return math.MinInt32, fflagNV
	}
	r := int32(f)
	var fl uint64
	if float64(r) != f {
		fl = fflagNX
	}
	return r, fl
}

func fcvtF64ToU32(f float64) (uint32, uint64) {
	if math.IsNaN(f) {
		return math.MaxUint32, fflagNV
	}
	if f < 0 {
		return 0, fflagNV
	}
	if f >= 4294967296.0 {
		return math.MaxUint32, fflagNV
	}
	r := uint32(f)
	var fl uint64
	if float64(r) != f {
		fl = fflagNX
	}
	return r, fl
}
