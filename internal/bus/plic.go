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

// PLIC register offsets relative to PlicBase (spec §4.A / §6).
const (
	plicPendingOff   = 0x1000
	plicSEnableOff   = 0x2080
	plicSPriorityOff = 0x201000
	plicSClaimOff    = 0x201004
)

// PLIC models the four registers spec §4.D and §6 name: pending,
// supervisor-enable, supervisor-priority and supervisor-claim. Each
// is a flat 32-bit slot; no priority arbitration logic is modeled
// beyond storage, matching the reference implementation this core is
// grounded on.
type PLIC struct {
	UnimplementedDevice
	Pending   uint32
	SEnable   uint32
	SPriority uint32
	SClaim    uint32
}

func NewPLIC() *PLIC {
	return &PLIC{}
}

func (p *PLIC) LoadU32(addr uint64) (uint32, error) {
	switch addr - PlicBase {
	case plicPendingOff:
		return p.Pending, nil
	case plicSEnableOff:
		return p.SEnable, nil
	case plicSPriorityOff:
		return p.SPriority, nil
	case plicSClaimOff:
		return p.SClaim, nil
	default:
		return 0, nil
	}
}

func (p *PLIC) StoreU32(addr uint64, v uint32) error {
	switch addr - PlicBase {
	case plicPendingOff:
		p.Pending = v
	case plicSEnableOff:
		p.SEnable = v
	case plicSPriorityOff:
		p.SPriority = v
	case plicSClaimOff:
		p.SClaim = v
	}
	return nil
}
