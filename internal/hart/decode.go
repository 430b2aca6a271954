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

// Opcode values this core recognizes (component K, spec §4.K).
const (
	opLoad     = 0x03
	opLoadFP   = 0x07
	opMiscMem  = 0x0f
	opOpImm    = 0x13
	opAUIPC    = 0x17
	opOpImm32  = 0x1b
	opStore    = 0x23
	opStoreFP  = 0x27
	opAMO      = 0x2f
	opOp       = 0x33
	opLUI      = 0x37
	opOp32     = 0x3b
	opMAdd     = 0x43
	opMSub     = 0x47
	opNMSub    = 0x4b
	opNMAdd    = 0x4f
	opOpFP     = 0x53
	opBranch   = 0x63
	opJALR     = 0x67
	opJAL      = 0x6f
	opSystem   = 0x73
)

// Instruction is a fully decoded 32-bit instruction word. Every
// immediate shape the ISA defines is pre-computed; execute handlers
// simply pick the one that matches their format, following the
// decode/execute split the reference Go decoder in this pack uses.
type Instruction struct {
	Raw    uint32
	Size   int // 2 for an instruction that began life compressed, 4 otherwise
	Opcode uint32
	Rd     uint32
	Rs1    uint32
	Rs2    uint32
	Rs3    uint32
	Funct3 uint32
	Funct7 uint32
	Rm     uint32 // funct3 reinterpreted as a rounding mode, FP only

	ImmI int64
	ImmS int64
	ImmB int64
	ImmU int64
	ImmJ int64
	Aq   bool
	Rl   bool
}

// Decode extracts every field of a 32-bit RV64 instruction word. raw
// must already have had its low two bits confirmed == 0b11 (the
// caller is responsible for expanding 16-bit compressed forms first,
// via compExpand).
func Decode(raw uint32, size int) Instruction {
	ins := Instruction{
		Raw:    raw,
		Size:   size,
		Opcode: raw & 0x7f,
		Rd:     (raw >> 7) & 0x1f,
		Funct3: (raw >> 12) & 0x7,
		Rs1:    (raw >> 15) & 0x1f,
		Rs2:    (raw >> 20) & 0x1f,
		Rs3:    (raw >> 27) & 0x1f,
		Funct7: (raw >> 25) & 0x7f,
	}
	ins.Rm = ins.Funct3

	ins.ImmI = signExtend64(raw>>20, 12)
	ins.ImmS = signExtend64((((raw>>25)&0x7f)<<5)|((raw>>7)&0x1f), 12)

	bImm := (((raw >> 31) & 0x1) << 12) | (((raw >> 7) & 0x1) << 11) |
		(((raw >> 25) & 0x3f) << 5) | (((raw >> 8) & 0xf) << 1)
	ins.ImmB = signExtend64(bImm, 13)

	ins.ImmU = int64(int32(raw & 0xfffff000))

	jImm := (((raw >> 31) & 0x1) << 20) | (((raw >> 12) & 0xff) << 12) |
		(((raw >> 20) & 0x1) << 11) | (((raw >> 21) & 0x3ff) << 1)
	ins.ImmJ = signExtend64(jImm, 21)

	if ins.Opcode == opAMO {
		ins.Aq = raw&(1<<26) != 0
		ins.Rl = raw&(1<<25) != 0
	}

	return ins
}

func signExtend64(v uint32, bits uint) int64 {
	shift := 64 - bits
	return int64(int64(v)<<shift) >> shift
}
