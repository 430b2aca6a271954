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
	"testing"
)

func TestNaNBoxingRoundTrip(t *testing.T) {
	h := newTestHart()
	h.WriteF32(1, math.Float32bits(3.5))
	if got := h.ReadF32(1); got != math.Float32bits(3.5) {
		t.Fatalf("got %x, want %x", got, math.Float32bits(3.5))
	}
	if h.F[1]&nanBoxUpper32 != nanBoxUpper32 {
		t.Fatal("expected upper 32 bits all ones (NaN-boxed)")
	}
}

func TestReadF32RejectsImproperBoxing(t *testing.T) {
	h := newTestHart()
	h.F[1] = 0x0000000000001234 // not NaN-boxed
	if h.ReadF32(1) != f32CanonicalNaN {
		t.Fatal("improperly boxed register should read back as canonical NaN")
	}
}

func TestFMinFMaxSignedZero(t *testing.T) {
	r, _ := fmin32(0.0, float32(math.Copysign(0, -1)))
	if !math.Signbit(float64(r)) {
		t.Fatal("fmin32(+0,-0) should return -0")
	}
	r2, _ := fmax32(0.0, float32(math.Copysign(0, -1)))
	if math.Signbit(float64(r2)) {
		t.Fatal("fmax32(+0,-0) should return +0")
	}
}

func TestFMinPropagatesQuietNaN(t *testing.T) {
	nan := math.Float32frombits(f32CanonicalNaN)
	r, _ := fmin32(nan, 1.5)
	if r != 1.5 {
		t.Fatalf("fmin32(qNaN, 1.5) = %v, want 1.5", r)
	}
}

func TestFClassDetectsNegativeInfinity(t *testing.T) {
	mask := fclass64(math.Inf(-1))
	if mask != 1<<0 {
		t.Fatalf("fclass64(-Inf) = %b, want bit 0", mask)
	}
}

func TestFClassDetectsPositiveZero(t *testing.T) {
	mask := fclass32(0)
	if mask != 1<<4 {
		t.Fatalf("fclass32(+0) = %b, want bit 4", mask)
	}
}

func TestFcvtSaturatesOnOverflow(t *testing.T) {
	v, fl := fcvtF64ToI32(1e30)
	if v != math.MaxInt32 {
		t.Fatalf("got %d, want MaxInt32", v)
	}
	if fl&fflagNV == 0 {
		t.Fatal("expected NV flag on saturating conversion")
	}
}

func TestFcvtNaNSaturatesToMax(t *testing.T) {
	v, fl := fcvtF64ToU64(math.NaN())
	if v != math.MaxUint64 {
		t.Fatalf("got %d, want MaxUint64", v)
	}
	if fl&fflagNV == 0 {
		t.Fatal("expected NV flag on NaN conversion")
	}
}

func TestFAddSetsUnderflowFlagOnTinyResult(t *testing.T) {
	fl := flagsForFloat32([]float32{1, 2}, 0, false, false)
	if fl&fflagUF == 0 {
		t.Fatal("zero result from nonzero inputs should raise UF")
	}
}

func TestFDivRoundingModesProduceDifferentResults(t *testing.T) {
	rtz, inexactRTZ := fpDiv32(1, 3, rmRTZ)
	rup, inexactRUP := fpDiv32(1, 3, rmRUP)
	if !inexactRTZ || !inexactRUP {
		t.Fatal("1/3 is not exactly representable; expected inexact under both roundings")
	}
	if rtz >= rup {
		t.Fatalf("RTZ result %v should be strictly less than RUP result %v for 1/3", rtz, rup)
	}
}

func TestFAddExactSumIsNotInexact(t *testing.T) {
	_, inexact := fpAdd32(1, 2, rmRNE)
	if inexact {
		t.Fatal("1+2 is exact; should not set the NX condition")
	}
}

func TestFDivSetsInexactFlagOnRepeatingResult(t *testing.T) {
	h := newTestHart()
	h.writeFloat32(1, 1)
	h.writeFloat32(2, 3)
	if err := h.executeFPArith(Instruction{Rs1: 1, Rs2: 2, Rd: 3, Rm: rmRNE}, fpOpDiv, false, rmRNE); err != nil {
		t.Fatalf("executeFPArith: %v", err)
	}
	if h.csrs[CSRFcsr]&fflagNX == 0 {
		t.Fatal("1/3 should set the NX flag")
	}
}

func TestWriteF32SetsFSDirty(t *testing.T) {
	h := newTestHart()
	h.csrs[CSRMstatus] &^= mstatusFSMask
	h.WriteF32(1, math.Float32bits(1.0))
	if (h.csrs[CSRMstatus]&mstatusFSMask)>>mstatusFSShift != fsDirty {
		t.Fatal("WriteF32 should mark mstatus.FS dirty")
	}
}
