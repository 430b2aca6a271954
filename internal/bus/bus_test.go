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

package bus

import (
	"bytes"
	"testing"
)

func newTestBus() *Bus {
	return New(NewRAM(), NewCLINT(), NewPLIC(), NewUART())
}

func TestRAMRoundTrip(t *testing.T) {
	b := newTestBus()
	if err := b.StoreU32(RAMBase+4, 0xdeadbeef); err != nil {
		t.Fatalf("store: %v", err)
	}
	v, err := b.LoadU32(RAMBase + 4)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != 0xdeadbeef {
		t.Fatalf("got 0x%x, want 0xdeadbeef", v)
	}
}

func TestOutOfRangeFaults(t *testing.T) {
	b := newTestBus()
	if _, err := b.LoadU32(0x1234); err == nil {
		t.Fatal("expected access fault for unmapped address")
	}
	if err := b.StoreU8(RAMBase+RAMSize, 1); err == nil {
		t.Fatal("expected access fault for store one byte past RAM")
	}
}

func TestCLINTRegisters(t *testing.T) {
	b := newTestBus()
	if err := b.StoreU64(ClintBase+clintMtimeCmpOff, 100); err != nil {
		t.Fatalf("store mtimecmp: %v", err)
	}
	if b.CLINT.Pending() {
		t.Fatal("should not be pending before mtime reaches mtimecmp")
	}
	b.CLINT.MTime = 100
	if !b.CLINT.Pending() {
		t.Fatal("expected pending once mtime reaches mtimecmp")
	}
	v, _ := b.LoadU64(ClintBase + clintMtimeOff)
	if v != 100 {
		t.Fatalf("mtime readback got %d, want 100", v)
	}
}

func TestPLICRegisters(t *testing.T) {
	b := newTestBus()
	b.StoreU32(PlicBase+plicSEnableOff, 0x2)
	v, _ := b.LoadU32(PlicBase + plicSEnableOff)
	if v != 0x2 {
		t.Fatalf("senable got 0x%x, want 0x2", v)
	}
}

func TestUARTWritesToSink(t *testing.T) {
	var out bytes.Buffer
	u := NewUART()
	u.Sink = &out
	b := New(NewRAM(), NewCLINT(), NewPLIC(), u)

	b.StoreU8(UartBase, 'h')
	b.StoreU8(UartBase, 'i')
	if out.String() != "hi" {
		t.Fatalf("got %q, want %q", out.String(), "hi")
	}
}

func TestUARTReadsFromSource(t *testing.T) {
	u := NewUART()
	u.Source = bytes.NewReader([]byte("x"))
	b := New(NewRAM(), NewCLINT(), NewPLIC(), u)

	v, err := b.LoadU8(UartBase)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != 'x' {
		t.Fatalf("got %q, want 'x'", v)
	}
}

func TestInstructionTicker(t *testing.T) {
	c := NewCLINT()
	var tk Ticker = InstructionTicker{}
	tk.Tick(c)
	tk.Tick(c)
	if c.MTime != 2 {
		t.Fatalf("mtime got %d, want 2", c.MTime)
	}
}
