package vm

// State is the VM's register file plus its stack — original_source's
// `vm::State` (VM.h/State.h): one instance lives for the whole VM, reused
// across nested execute() calls rather than allocated per call.
type State struct {
	Registers [TotalRegisters]uint64
	Stack     *Stack
}

// NewState allocates a State with a stack of the given size.
func NewState(stackSize uint64) *State {
	s := &State{Stack: NewStack(stackSize)}
	s.Registers[RegSP] = s.Stack.Base() + stackSize // stack grows down from the top
	return s
}

// Push decrements sp by 8 and writes r's value at the new sp — used by
// VM.Execute to save ip/ra across a nested execute() (spec.md §4.8
// "saving/restoring ip and ra around each execute()").
func (s *State) Push(r Reg) error {
	s.Registers[RegSP] -= 8
	return s.Stack.Store64(s.Registers[RegSP], s.Registers[r])
}

// Pop restores r's value from the current sp and increments sp by 8.
func (s *State) Pop(r Reg) error {
	v, err := s.Stack.Load64(s.Registers[RegSP])
	if err != nil {
		return err
	}
	s.Registers[r] = v
	s.Registers[RegSP] += 8
	return nil
}
