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

import "fmt"

// Cause is a RISC-V exception cause code (spec §4.L / §7), 0-19 as
// defined by the privileged spec. Interrupt cause codes share the
// same numeric space but are distinguished by the interrupt bit of
// xcause, which the trap-delivery code sets separately.
type Cause uint

const (
	CauseInstAddrMisalign Cause = 0
	CauseInstAccessFault  Cause = 1
	CauseIllegalInst      Cause = 2
	CauseBreakpoint       Cause = 3
	CauseLoadAddrMisalign Cause = 4
	CauseLoadAccessFault  Cause = 5
	CauseStoreAddrMisalign Cause = 6
	CauseStoreAccessFault Cause = 7
	CauseECallFromU       Cause = 8
	CauseECallFromS       Cause = 9
	// 10 reserved
	CauseECallFromM   Cause = 11
	CauseInstPageFault  Cause = 12
	CauseLoadPageFault  Cause = 13
	// 14 reserved
	CauseStorePageFault Cause = 15
	// 16, 17 reserved
	CauseSoftwareCheck Cause = 18
	CauseHardwareError Cause = 19
)

// Interrupt bit numbers (spec §4.L). interruptCheckList in trap.go
// gives the order the trap engine polls them in.
const (
	IntSSoftware Cause = 1
	IntMSoftware Cause = 3
	IntSTimer    Cause = 5
	IntMTimer    Cause = 7
	IntSExternal Cause = 9
	IntMExternal Cause = 11
	IntCounterOverflow Cause = 13
)

// Exception is an architectural trap cause carrying the cause code
// and its associated tval, exactly the pair the trap engine writes
// into xCAUSE/xTVAL (spec §4.L step 2). It satisfies error so bus and
// decode/execute code can return it directly; Hart.deliverTrap is the
// only place that cares about its fields instead of its message.
type Exception struct {
	Cause Cause
	TVal  uint64
}

func (e *Exception) Error() string {
	return fmt.Sprintf("exception %d (tval=0x%x)", e.Cause, e.TVal)
}

func exc(c Cause, tval uint64) *Exception { return &Exception{Cause: c, TVal: tval} }
