package ir

import "github.com/tsvm-lang/tsvm/pkg/ids"

// Function is the per-function compile-time state (spec.md C5): signature,
// argument Values (some implicit), the IR instruction buffer, a label
// table, a poison singleton, and the current source span.
//
// It owns register, stack-slot and label allocation for its own lifetime
// (spec.md §3 Lifecycle: "Values are stack-lived compile-time objects;
// virtual-register ids and stack-allocation ids are owned by the function
// definition that produced them").
type Function struct {
	Name        string
	Module      string
	SignatureID ids.TypeID
	Args        []Value
	Code        []Instruction

	// LabelOffsets maps a reserved Label to its resolved instruction index.
	// Populated by the optimizer's (required) label-offset pass; empty
	// until that pass has run at least once.
	LabelOffsets map[Label]int

	// PoisonType is the registry's distinguished poison type id, stamped
	// onto every Value this function's Poison() method returns.
	PoisonType ids.TypeID

	nextReg   Reg
	nextSlot  Slot
	nextLabel Label
}

// NewFunction creates an empty Function ready for a Builder to emit into.
func NewFunction(name, module string, sig, poisonType ids.TypeID) *Function {
	return &Function{
		Name:        name,
		Module:      module,
		SignatureID: sig,
		PoisonType:  poisonType,
		nextReg:     1,
		nextSlot:    1,
		nextLabel:   1,
	}
}

// Poison returns the typed poison sentinel Value for this function
// (spec.md §4.5 getPoison — exposed here "so that all error paths in C3 and
// C6 can return a typed sentinel without allocating").
func (f *Function) Poison() Value { return Poison(f.PoisonType) }

// NumRegisters returns how many virtual registers have been allocated.
func (f *Function) NumRegisters() int { return int(f.nextReg) - 1 }

// NumSlots returns how many stack slots have been allocated.
func (f *Function) NumSlots() int { return int(f.nextSlot) - 1 }
