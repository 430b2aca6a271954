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
	"testing"

	"github.com/gmofishsauce/rv64core/internal/bus"
)

func TestReservationSetAcquireAndCheck(t *testing.T) {
	var r ReservationSet
	r.Acquire(0x1000)
	if !r.CheckOwnership(0x1000) {
		t.Fatal("expected ownership of 0x1000")
	}
	if r.CheckOwnership(0x2000) {
		t.Fatal("did not expect ownership of unreserved address")
	}
}

func TestReservationSetClearDropsReservation(t *testing.T) {
	var r ReservationSet
	r.Acquire(0x1000)
	r.Clear()
	if r.CheckOwnership(0x1000) {
		t.Fatal("expected reservation cleared")
	}
}

func TestReservationSetDoubleRequiresBothSubunits(t *testing.T) {
	var r ReservationSet
	r.Acquire(0x2000) // only the low word
	if r.CheckOwnershipDouble(0x2000) {
		t.Fatal("double ownership should require both subunits reserved")
	}
	r.AcquireDouble(0x2000)
	if !r.CheckOwnershipDouble(0x2000) {
		t.Fatal("expected double ownership after AcquireDouble")
	}
}

func TestReservationSetRingWraps(t *testing.T) {
	var r ReservationSet
	for i := 0; i < reservationSetSize+1; i++ {
		r.Acquire(uint64(i * 4))
	}
	if r.CheckOwnership(0) {
		t.Fatal("oldest reservation should have been evicted")
	}
	if !r.CheckOwnership(uint64(reservationSetSize * 4)) {
		t.Fatal("newest reservation should still be held")
	}
}

func TestAmoAddApply32(t *testing.T) {
	h := newTestHart()
	addr := uint64(bus.RAMBase + 0x300)
	h.Bus.StoreU32(addr, 10)
	old, err := h.amoApply32(addr, 5, amoAdd32)
	if err != nil {
		t.Fatalf("amoApply32: %v", err)
	}
	if old != 10 {
		t.Fatalf("old = %d, want 10", old)
	}
	v, _ := h.Bus.LoadU32(addr)
	if v != 15 {
		t.Fatalf("stored = %d, want 15", v)
	}
}

func TestAmoMinMax64(t *testing.T) {
	if amoMin64(5, 3) != 3 {
		t.Fatal("amoMin64 wrong")
	}
	if amoMax64(5, 3) != 5 {
		t.Fatal("amoMax64 wrong")
	}
	if amoMinu64(^uint64(0), 3) != 3 {
		t.Fatal("amoMinu64 should treat operands unsigned")
	}
}
