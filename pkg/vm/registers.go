// Package vm implements the register-based bytecode interpreter (spec.md
// C8): a dense switch-dispatch loop over pkg/ir.Instruction operating on a
// fixed register file and a paged stack with a guard region, grounded on
// original_source/src/vm/VM.cpp and its State.h register file.
package vm

import "strconv"

// NumGPRegisters is the count of general-purpose 64-bit registers the VM
// exposes to compiled code (spec.md §4.8 "256 general-purpose registers"),
// matching original_source's `Registers` fixed array sized past the named
// slots below.
const NumGPRegisters = 256

// Named register slots, indices into the same register file as the 256
// general-purpose registers (original_source/src/vm/Instruction.h's
// `vm_register` enum: sp/ip/ra/zero plus four value-passing registers
// v0-v3 used for host-call argument/return marshaling).
const (
	RegSP Reg = NumGPRegisters + iota
	RegIP
	RegRA
	RegZero
	RegV0
	RegV1
	RegV2
	RegV3

	numNamedRegisters
)

// Reg indexes into the VM's register file; general-purpose registers are
// [0, NumGPRegisters), named slots occupy the range above that.
type Reg int

// TotalRegisters is the full register-file size backing a State.
const TotalRegisters = NumGPRegisters + int(numNamedRegisters)

func (r Reg) String() string {
	switch r {
	case RegSP:
		return "sp"
	case RegIP:
		return "ip"
	case RegRA:
		return "ra"
	case RegZero:
		return "zero"
	case RegV0:
		return "v0"
	case RegV1:
		return "v1"
	case RegV2:
		return "v2"
	case RegV3:
		return "v3"
	default:
		return "r" + strconv.Itoa(int(r))
	}
}
