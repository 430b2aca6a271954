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

import "testing"

func TestCompExpandZeroIsIllegal(t *testing.T) {
	if _, err := compExpand(0); err == nil {
		t.Fatal("expected IllegalInst for the all-zero compressed word")
	}
}

func TestCompExpandCNop(t *testing.T) {
	// c.nop: quadrant 1, funct3 0, rd=0, imm=0.
	inst := uint16(1) // quadrant 1, everything else zero
	raw, err := compExpand(inst)
	if err != nil {
		t.Fatalf("compExpand: %v", err)
	}
	ins := Decode(raw, 2)
	if ins.Opcode != opOpImm || ins.Rd != 0 || ins.ImmI != 0 {
		t.Fatalf("c.nop expanded wrong: %+v", ins)
	}
}

func TestCompExpandCJIsUnconditionalJump(t *testing.T) {
	// c.j with a zero offset: quadrant 1, funct3 5.
	var inst uint16
	inst |= 5 << 13
	inst |= 1 // quadrant 1
	// bits [12:2] all zero here just exercises the J-immediate shape,
	// not a specific target.
	raw, err := compExpand(inst)
	if err != nil {
		t.Fatalf("compExpand: %v", err)
	}
	ins := Decode(raw, 2)
	if ins.Opcode != opJAL {
		t.Fatalf("c.j should expand to JAL, got opcode %x", ins.Opcode)
	}
	if ins.Rd != 0 {
		t.Fatalf("c.j must target x0, got rd=%d", ins.Rd)
	}
}

func TestCompExpandCAddi4spnRequiresNonzeroImm(t *testing.T) {
	// quadrant 0, funct3 0, all immediate bits zero => reserved/illegal.
	// rd' = x9 keeps the word from being the all-zero encoding.
	inst := uint16(0)
	inst |= 0 << 13
	inst |= 1 << 2 // rd' = x9
	inst |= 0      // quadrant 0
	if _, err := compExpand(inst); err == nil {
		t.Fatal("expected IllegalInst for c.addi4spn with zero immediate")
	}
}
