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

func TestBareModePassthrough(t *testing.T) {
	h := newTestHart()
	pa, err := h.Translate(bus.RAMBase+0x10, AccessLoad)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if pa != bus.RAMBase+0x10 {
		t.Fatalf("pa = %x, want %x", pa, bus.RAMBase+0x10)
	}
}

func TestMachineModeNeverTranslates(t *testing.T) {
	h := newTestHart()
	h.csrs[CSRSatp] = uint64(satpModeSv39) << satpModeShift
	pa, err := h.Translate(0x1000, AccessLoad)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if pa != 0x1000 {
		t.Fatal("M-mode access must bypass translation even with Sv39 enabled")
	}
}

// buildSv39Identity installs a single 3-level Sv39 mapping identity-
// mapping va's page to itself, returning the root PPN to place in satp.
func buildSv39Identity(h *Hart, va uint64, perm uint64) uint64 {
	root := uint64(bus.RAMBase + 0x10000)
	l1 := uint64(bus.RAMBase + 0x11000)
	l0 := uint64(bus.RAMBase + 0x12000)

	vpn2 := (va >> 30) & vpnMask
	vpn1 := (va >> 21) & vpnMask
	vpn0 := (va >> 12) & vpnMask

	h.Bus.StoreU64(root+vpn2*8, ((l1/pageSize)<<ptePPNShift)|pteV)
	h.Bus.StoreU64(l1+vpn1*8, ((l0/pageSize)<<ptePPNShift)|pteV)

	leafPPN := (va &^ (pageSize - 1)) / pageSize
	h.Bus.StoreU64(l0+vpn0*8, (leafPPN<<ptePPNShift)|perm|pteV|pteA|pteD)

	return root / pageSize
}

func TestSv39SupervisorLoadSucceedsWithPermission(t *testing.T) {
	h := newTestHart()
	h.Mode = ModeSupervisor
	va := uint64(0x1000)
	rootPPN := buildSv39Identity(h, va, pteR|pteW)
	h.csrs[CSRSatp] = (uint64(satpModeSv39) << satpModeShift) | rootPPN

	pa, err := h.Translate(va, AccessLoad)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if pa != va {
		t.Fatalf("pa = %x, want identity-mapped %x", pa, va)
	}
}

func TestSv39PageFaultOnMissingPermission(t *testing.T) {
	h := newTestHart()
	h.Mode = ModeSupervisor
	va := uint64(0x2000)
	rootPPN := buildSv39Identity(h, va, pteR) // no W
	h.csrs[CSRSatp] = (uint64(satpModeSv39) << satpModeShift) | rootPPN

	if _, err := h.Translate(va, AccessStore); err == nil {
		t.Fatal("expected a store page fault without W permission")
	}
}

func TestSv39UserPageDeniedFromSupervisorWithoutSUM(t *testing.T) {
	h := newTestHart()
	h.Mode = ModeSupervisor
	va := uint64(0x3000)
	rootPPN := buildSv39Identity(h, va, pteR|pteU)
	h.csrs[CSRSatp] = (uint64(satpModeSv39) << satpModeShift) | rootPPN

	if _, err := h.Translate(va, AccessLoad); err == nil {
		t.Fatal("expected page fault accessing a U page from S-mode without SUM")
	}

	h.csrs[CSRMstatus] |= mstatusSUM
	if _, err := h.Translate(va, AccessLoad); err != nil {
		t.Fatalf("expected success with SUM set: %v", err)
	}
}
