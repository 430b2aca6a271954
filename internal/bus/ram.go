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

import "encoding/binary"

// RAM is a little-endian byte-addressable store anchored at RAMBase
// (spec §4.B). The loader (an external collaborator, spec §6) is
// expected to populate Bytes directly with the guest image before the
// first Step; RAM itself has no notion of a file format.
type RAM struct {
	Bytes []byte
}

// NewRAM allocates a zeroed RAM of the platform's fixed size.
func NewRAM() *RAM {
	return &RAM{Bytes: make([]byte, RAMSize)}
}

// Load copies a raw guest image to the start of RAM (guest VA
// RAMBase). It is the minimal loader a caller needs; the spec treats
// anything richer (headers, relocations) as out of scope.
func (r *RAM) Load(image []byte) {
	copy(r.Bytes, image)
}

func (r *RAM) off(addr, size uint64) (int, bool) {
	start := addr - RAMBase
	if start+size > uint64(len(r.Bytes)) {
		return 0, false
	}
	return int(start), true
}

func (r *RAM) LoadU8(addr uint64) (uint8, error) {
	off, ok := r.off(addr, 1)
	if !ok {
		return 0, &AccessFault{Addr: addr}
	}
	return r.Bytes[off], nil
}

func (r *RAM) LoadU16(addr uint64) (uint16, error) {
	off, ok := r.off(addr, 2)
	if !ok {
		return 0, &AccessFault{Addr: addr}
	}
	return binary.LittleEndian.Uint16(r.Bytes[off:]), nil
}

func (r *RAM) LoadU32(addr uint64) (uint32, error) {
	off, ok := r.off(addr, 4)
	if !ok {
		return 0, &AccessFault{Addr: addr}
	}
	return binary.LittleEndian.Uint32(r.Bytes[off:]), nil
}

func (r *RAM) LoadU64(addr uint64) (uint64, error) {
	off, ok := r.off(addr, 8)
	if !ok {
		return 0, &AccessFault{Addr: addr}
	}
	return binary.LittleEndian.Uint64(r.Bytes[off:]), nil
}

func (r *RAM) StoreU8(addr uint64, v uint8) error {
	off, ok := r.off(addr, 1)
	if !ok {
		return &AccessFault{Store: true, Addr: addr}
	}
	r.Bytes[off] = v
	return nil
}

func (r *RAM) StoreU16(addr uint64, v uint16) error {
	off, ok := r.off(addr, 2)
	if !ok {
		return &AccessFault{Store: true, Addr: addr}
	}
	binary.LittleEndian.PutUint16(r.Bytes[off:], v)
	return nil
}

func (r *RAM) StoreU32(addr uint64, v uint32) error {
	off, ok := r.off(addr, 4)
	if !ok {
		return &AccessFault{Store: true, Addr: addr}
	}
	binary.LittleEndian.PutUint32(r.Bytes[off:], v)
	return nil
}

func (r *RAM) StoreU64(addr uint64, v uint64) error {
	off, ok := r.off(addr, 8)
	if !ok {
		return &AccessFault{Store: true, Addr: addr}
	}
	binary.LittleEndian.PutUint64(r.Bytes[off:], v)
	return nil
}
