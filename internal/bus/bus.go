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

// Package bus implements the memory-mapped I/O fabric that connects
// RAM, CLINT, PLIC and UART to the core. The bus itself carries no
// architectural state; it is pure address-decoded dispatch.
package bus

import "fmt"

// Fixed platform memory map (spec §4.A).
const (
	ClintBase = 0x0200_0000
	ClintSize = 64 * 1024

	PlicBase = 0x0C00_0000
	PlicSize = 64 * 1024 * 1024

	UartBase = 0x1000_0000
	UartSize = 8

	RAMBase = 0x8000_0000
	RAMSize = 32 * 1024 * 1024
)

// AccessFault distinguishes load/store bus errors from architectural
// exceptions raised further up in the decode/execute layer. The core
// always converts an AccessFault into the matching Exception before
// a trap is ever visible to the guest (spec §7).
type AccessFault struct {
	Store bool
	Addr  uint64
}

func (e *AccessFault) Error() string {
	dir := "load"
	if e.Store {
		dir = "store"
	}
	return fmt.Sprintf("%s access fault at 0x%016x", dir, e.Addr)
}

// Device is the uniform load/store seam every bus-attached peripheral
// implements. A device need only override the widths it actually
// supports; the embeddable UnimplementedDevice below supplies the
// spec-mandated "every unsupported width is an access fault" default.
type Device interface {
	LoadU8(addr uint64) (uint8, error)
	LoadU16(addr uint64) (uint16, error)
	LoadU32(addr uint64) (uint32, error)
	LoadU64(addr uint64) (uint64, error)

	StoreU8(addr uint64, v uint8) error
	StoreU16(addr uint64, v uint16) error
	StoreU32(addr uint64, v uint32) error
	StoreU64(addr uint64, v uint64) error
}

// UnimplementedDevice is embedded by devices that don't support every
// width; unsupported calls fall through to these access-fault stubs,
// mirroring the default method bodies on the original's Device trait.
type UnimplementedDevice struct{}

func (UnimplementedDevice) LoadU8(addr uint64) (uint8, error)   { return 0, &AccessFault{Addr: addr} }
func (UnimplementedDevice) LoadU16(addr uint64) (uint16, error) { return 0, &AccessFault{Addr: addr} }
func (UnimplementedDevice) LoadU32(addr uint64) (uint32, error) { return 0, &AccessFault{Addr: addr} }
func (UnimplementedDevice) LoadU64(addr uint64) (uint64, error) { return 0, &AccessFault{Addr: addr} }

func (UnimplementedDevice) StoreU8(addr uint64, v uint8) error {
	return &AccessFault{Store: true, Addr: addr}
}
func (UnimplementedDevice) StoreU16(addr uint64, v uint16) error {
	return &AccessFault{Store: true, Addr: addr}
}
func (UnimplementedDevice) StoreU32(addr uint64, v uint32) error {
	return &AccessFault{Store: true, Addr: addr}
}
func (UnimplementedDevice) StoreU64(addr uint64, v uint64) error {
	return &AccessFault{Store: true, Addr: addr}
}

type region struct {
	base, size uint64
	dev        Device
}

// Bus routes loads and stores to whichever device's range contains
// the address, per spec §4.A. Regions never overlap on this platform.
type Bus struct {
	regions []region
	RAM     *RAM
	CLINT   *CLINT
	PLIC    *PLIC
	UART    *UART
}

// New wires up the fixed platform devices. ram must already be sized
// to RAMSize; the guest image is expected to have been copied into it
// by the loader (an external collaborator, spec §6) before Reset.
func New(ram *RAM, clint *CLINT, plic *PLIC, uart *UART) *Bus {
	b := &Bus{RAM: ram, CLINT: clint, PLIC: plic, UART: uart}
	b.regions = []region{
		{ClintBase, ClintSize, clint},
		{PlicBase, PlicSize, plic},
		{UartBase, UartSize, uart},
		{RAMBase, RAMSize, ram},
	}
	return b
}

func (b *Bus) find(addr, size uint64) Device {
	for _, r := range b.regions {
		if addr >= r.base && addr+size <= r.base+r.size {
			return r.dev
		}
	}
	return nil
}

func (b *Bus) LoadU8(addr uint64) (uint8, error) {
	d := b.find(addr, 1)
	if d == nil {
		return 0, &AccessFault{Addr: addr}
	}
	return d.LoadU8(addr)
}

func (b *Bus) LoadU16(addr uint64) (uint16, error) {
	d := b.find(addr, 2)
	if d == nil {
		return 0, &AccessFault{Addr: addr}
	}
	return d.LoadU16(addr)
}

func (b *Bus) LoadU32(addr uint64) (uint32, error) {
	d := b.find(addr, 4)
	if d == nil {
		return 0, &AccessFault{Addr: addr}
	}
	return d.LoadU32(addr)
}

func (b *Bus) LoadU64(addr uint64) (uint64, error) {
	d := b.find(addr, 8)
	if d == nil {
		return 0, &AccessFault{Addr: addr}
	}
	return d.LoadU64(addr)
}

func (b *Bus) StoreU8(addr uint64, v uint8) error {
	d := b.find(addr, 1)
	if d == nil {
		return &AccessFault{Store: true, Addr: addr}
	}
	return d.StoreU8(addr, v)
}

func (b *Bus) StoreU16(addr uint64, v uint16) error {
	d := b.find(addr, 2)
	if d == nil {
		return &AccessFault{Store: true, Addr: addr}
	}
	return d.StoreU16(addr, v)
}

func (b *Bus) StoreU32(addr uint64, v uint32) error {
	d := b.find(addr, 4)
	if d == nil {
		return &AccessFault{Store: true, Addr: addr}
	}
	return d.StoreU32(addr, v)
}

func (b *Bus) StoreU64(addr uint64, v uint64) error {
	d := b.find(addr, 8)
	if d == nil {
		return &AccessFault{Store: true, Addr: addr}
	}
	return d.StoreU64(addr, v)
}
