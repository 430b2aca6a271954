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

// reservationSetSize bounds the ring used to track outstanding
// LR reservations (spec §4.H); a single-hart core never needs more
// than a handful of live reservations, but the ring is sized generously
// to match the reference model.
const reservationSetSize = 16

// ReservationSet implements LR/SC ownership tracking at 4-byte
// granularity (spec §4.H). A reservation on a doubleword inserts both
// of its constituent words so that an SC.W inside a prior LR.D range
// still observes the reservation correctly.
type ReservationSet struct {
	set    [reservationSetSize]uint64
	length int
}

// Acquire records a reservation covering the 4-byte-aligned word at
// addr, evicting the oldest entry if the ring is full.
func (r *ReservationSet) Acquire(addr uint64) {
	r.acquire4(addr &^ 3)
}

// AcquireDouble records a reservation over both 4-byte subunits of the
// doubleword at addr (spec §4.H: LR.D reserves per-4-byte-subunit).
func (r *ReservationSet) AcquireDouble(addr uint64) {
	base := addr &^ 7
	r.acquire4(base)
	r.acquire4(base + 4)
}

func (r *ReservationSet) acquire4(addr uint64) {
	if r.length < reservationSetSize {
		r.set[r.length] = addr
		r.length++
		return
	}
	// Ring wraps: evict oldest (index 0) by shifting down.
	copy(r.set[:], r.set[1:])
	r.set[reservationSetSize-1] = addr
}

// CheckOwnership reports whether the 4-byte-aligned word at addr is
// currently reserved.
func (r *ReservationSet) CheckOwnership(addr uint64) bool {
	return r.checkOwnership4(addr &^ 3)
}

// CheckOwnershipDouble reports whether both 4-byte subunits of the
// doubleword at addr are reserved, the condition SC.D requires.
func (r *ReservationSet) CheckOwnershipDouble(addr uint64) bool {
	base := addr &^ 7
	return r.checkOwnership4(base) && r.checkOwnership4(base+4)
}

func (r *ReservationSet) checkOwnership4(addr uint64) bool {
	for i := 0; i < r.length; i++ {
		if r.set[i] == addr {
			return true
		}
	}
	return false
}

// Clear drops every outstanding reservation, as SC and xRET do on this
// single-hart core (spec §4.H / Open Question (c)).
func (r *ReservationSet) Clear() {
	r.length = 0
}

// amoFunc32/64 apply an AMO operator to the old memory value and the
// register operand, returning the value to be stored back.
type amoFunc32 func(old, rs2 uint32) uint32
type amoFunc64 func(old, rs2 uint64) uint64

func amoSwap32(_, rs2 uint32) uint32 { return rs2 }
func amoAdd32(old, rs2 uint32) uint32 { return old + rs2 }
func amoXor32(old, rs2 uint32) uint32 { return old ^ rs2 }
func amoAnd32(old, rs2 uint32) uint32 { return old & rs2 }
func amoOr32(old, rs2 uint32) uint32  { return old | rs2 }
func amoMin32(old, rs2 uint32) uint32 {
	if int32(old) < int32(rs2) {
		return old
	}
	return rs2
}
func amoMax32(old, rs2 uint32) uint32 {
	if int32(old) > int32(rs2) {
		return old
	}
	return rs2
}
func amoMinu32(old, rs2 uint32) uint32 {
	if old < rs2 {
		return old
	}
	return rs2
}
func amoMaxu32(old, rs2 uint32) uint32 {
	if old > rs2 {
		return old
	}
	return rs2
}

func amoSwap64(_, rs2 uint64) uint64 { return rs2 }
func amoAdd64(old, rs2 uint64) uint64 { return old + rs2 }
func amoXor64(old, rs2 uint64) uint64 { return old ^ rs2 }
func amoAnd64(old, rs2 uint64) uint64 { return old & rs2 }
func amoOr64(old, rs2 uint64) uint64  { return old | rs2 }
func amoMin64(old, rs2 uint64) uint64 {
	if int64(old) < int64(rs2) {
		return old
	}
	return rs2
}
func amoMax64(old, rs2 uint64) uint64 {
	if int64(old) > int64(rs2) {
		return old
	}
	return rs2
}
func amoMinu64(old, rs2 uint64) uint64 {
	if old < rs2 {
		return old
	}
	return rs2
}
func amoMaxu64(old, rs2 uint64) uint64 {
	if old > rs2 {
		return old
	}
	return rs2
}

// amoApply32 performs a read-modify-write AMO at addr, returning the
// original (pre-modification) value the ISA loads into rd.
func (h *Hart) amoApply32(addr uint64, rs2 uint32, op amoFunc32) (uint32, error) {
	old, err := h.Bus.LoadU32(addr)
	if err != nil {
		return 0, exc(CauseLoadAccessFault, addr)
	}
	if err := h.Bus.StoreU32(addr, op(old, rs2)); err != nil {
		return 0, exc(CauseStoreAccessFault, addr)
	}
	return old, nil
}

func (h *Hart) amoApply64(addr uint64, rs2 uint64, op amoFunc64) (uint64, error) {
	old, err := h.Bus.LoadU64(addr)
	if err != nil {
		return 0, exc(CauseLoadAccessFault, addr)
	}
	if err := h.Bus.StoreU64(addr, op(old, rs2)); err != nil {
		return 0, exc(CauseStoreAccessFault, addr)
	}
	return old, nil
}
