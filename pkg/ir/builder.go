package ir

import "github.com/tsvm-lang/tsvm/pkg/ids"

// Builder emits three-address instructions into a Function's instruction
// buffer and owns virtual-register and stack-slot allocation for it
// (spec.md C4). One Builder is created per function being compiled; its
// Span is advanced by the caller (the expression-lowering pass, outside
// this package's scope) to track the AST node currently being compiled.
type Builder struct {
	Fn   *Function
	Span Span
}

// NewBuilder creates a Builder over fn.
func NewBuilder(fn *Function) *Builder { return &Builder{Fn: fn} }

// SetSpan updates the source span stamped onto subsequently emitted
// instructions (spec.md §4.5, §6: "Each node carries a source location...
// which the core copies into every emitted instruction").
func (b *Builder) SetSpan(s Span) { b.Span = s }

// Val allocates a fresh virtual register Value of type t.
func (b *Builder) Val(t ids.TypeID) Value {
	r := b.Fn.nextReg
	b.Fn.nextReg++
	return Register(r, t)
}

// Stack allocates a fresh stack-slot Value of type t.
func (b *Builder) Stack(t ids.TypeID) Value {
	s := b.Fn.nextSlot
	b.Fn.nextSlot++
	return Stack(s, t)
}

// NewLabel reserves a label id without binding it to any instruction yet
// (spec.md §4.4: "label allocation... a monotonically increasing label id
// reserved before being bound to an instruction offset later").
func (b *Builder) NewLabel() Label {
	l := b.Fn.nextLabel
	b.Fn.nextLabel++
	return l
}

// BindLabel emits an OpLabel instruction that binds l to the current
// instruction offset.
func (b *Builder) BindLabel(l Label) {
	b.Fn.Code = append(b.Fn.Code, Instruction{Op: OpLabel, Target: l, Span: b.Span})
}

// Add begins a chained instruction encoder for opcode op. Call .Operand
// up to three times, optionally .WithImm/.WithLabel, then .Commit.
func (b *Builder) Add(op Opcode) *InstructionEncoder {
	return &InstructionEncoder{b: b, instr: Instruction{Op: op, Span: b.Span}}
}

// InstructionEncoder incrementally builds one Instruction before appending
// it to the owning Builder's Function.Code (spec.md §4.4: "add(opcode) ->
// InstructionEncoder (chain .op(Value) calls up to 3 times, then commit)").
type InstructionEncoder struct {
	b     *Builder
	instr Instruction
}

// Operand appends operand v (up to 3 per instruction).
func (e *InstructionEncoder) Operand(v Value) *InstructionEncoder {
	if e.instr.NumOperands >= 3 {
		panic("ir: instruction cannot carry more than 3 operands")
	}
	e.instr.Operands[e.instr.NumOperands] = v
	e.instr.NumOperands++
	return e
}

// WithImm attaches an immediate payload (offsets, sizes, cvt type pairs).
func (e *InstructionEncoder) WithImm(imm Immediate) *InstructionEncoder {
	e.instr.Imm = &imm
	return e
}

// WithLabel attaches a branch/jump target or binds a label instruction.
func (e *InstructionEncoder) WithLabel(l Label) *InstructionEncoder {
	e.instr.Target = l
	return e
}

// Commit appends the built instruction to the function's code buffer and
// returns it.
func (e *InstructionEncoder) Commit() Instruction {
	e.b.Fn.Code = append(e.b.Fn.Code, e.instr)
	return e.instr
}

// Dest, when a committed instruction has a destination operand (operand 0
// for every opcode that produces a value), is a convenience for the common
// "emit then use the destination" pattern.
func (i Instruction) Dest() Value {
	if i.NumOperands == 0 {
		return Value{}
	}
	return i.Operands[0]
}
