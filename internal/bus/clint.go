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

// CLINT offsets relative to ClintBase (spec §4.A / §6).
const (
	clintMtimeCmpOff = 0x4000
	clintMtimeOff    = 0xbff8
)

// CLINT exposes mtime and mtimecmp as plain 64-bit slots (spec §4.C).
// Time advances only when something external writes mtime; the core
// never assumes a cadence (SPEC_FULL §11, Open Question (a)). A
// Ticker, if attached, is the one place that cadence is decided.
type CLINT struct {
	UnimplementedDevice
	MTime    uint64
	MTimeCmp uint64
}

func NewCLINT() *CLINT {
	return &CLINT{}
}

// Pending reports whether mtime has reached mtimecmp, i.e. whether
// MTI should be latched into mip by the caller (the driver checks this
// once per step and calls hart.Hart.SetMachineTimerPending).
func (c *CLINT) Pending() bool {
	return c.MTime >= c.MTimeCmp
}

func (c *CLINT) LoadU64(addr uint64) (uint64, error) {
	switch addr - ClintBase {
	case clintMtimeCmpOff:
		return c.MTimeCmp, nil
	case clintMtimeOff:
		return c.MTime, nil
	default:
		return 0, nil
	}
}

func (c *CLINT) StoreU64(addr uint64, v uint64) error {
	switch addr - ClintBase {
	case clintMtimeCmpOff:
		c.MTimeCmp = v
	case clintMtimeOff:
		c.MTime = v
	}
	return nil
}

// Ticker advances the CLINT's notion of time. The core never calls
// this itself — it is a driver-level concern (component O) wired by
// cmd/rv64, resolving SPEC_FULL §11 Open Question (a). The default
// driver ticks once per retired instruction; a real-time driver could
// instead tick from a wall-clock goroutine.
type Ticker interface {
	Tick(c *CLINT)
}

// InstructionTicker advances mtime by one on every call, matching a
// software-clocked architecture-test harness where wall-clock pacing
// is irrelevant (spec §1 Non-goals: "real-time pacing against a wall
// clock" is explicitly out of scope).
type InstructionTicker struct{}

func (InstructionTicker) Tick(c *CLINT) { c.MTime++ }

// DividedTicker advances mtime by one every Rate calls, letting a
// driver decouple mtime's cadence from the instruction-retirement rate
// without inventing a wall-clock dependency. Rate <= 1 behaves exactly
// like InstructionTicker.
type DividedTicker struct {
	Rate  uint64
	count uint64
}

func (d *DividedTicker) Tick(c *CLINT) {
	if d.Rate <= 1 {
		c.MTime++
		return
	}
	d.count++
	if d.count >= d.Rate {
		d.count = 0
		c.MTime++
	}
}
