// Package ir implements the three-address intermediate representation both
// back-ends consume (spec.md C4/C5): the opcode set, the Value sum type,
// the per-function instruction buffer, and the builder that emits into it.
//
// This mirrors the teacher's pkg/rtl ("Register Transfer Language... the
// primary backend IR — a CFG-based representation with infinite
// pseudo-registers and 3-address code") almost exactly in spirit: spec.md's
// own prose calls the model "a three-address instruction stream" with
// "virtual-register allocation" and a "per-function instruction buffer" —
// the same shape ralph-cc's rtl.Function/rtl.Instruction already have. The
// operation set is generalized from the teacher's per-category arithmetic
// (Oadd/Oaddl/Oaddf/Oadds for int/long/double/float) to the four numeric
// categories spec.md §4.4 names (signed/unsigned/f32/f64), and the
// instruction shape is generalized from the teacher's CFG-node-keyed map to
// a linear buffer with explicit label/branch/jump opcodes, per spec.md
// §3's "Labels are indices into the instruction vector, produced by the
// optimizer's label-offset pass".
package ir

// Opcode identifies an IR instruction's operation (spec.md §4.4).
type Opcode int

const (
	OpNoop Opcode = iota

	// Memory
	OpLoad
	OpStore

	// Stack
	OpStackAlloc
	OpStackFree

	// Module
	OpModuleData

	// Arithmetic — signed 32-bit
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIMod
	// Arithmetic — unsigned 32-bit
	OpUAdd
	OpUSub
	OpUMul
	OpUDiv
	OpUMod
	// Arithmetic — f32
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod
	// Arithmetic — f64
	OpDAdd
	OpDSub
	OpDMul
	OpDDiv
	OpDMod

	// Bitwise / shift (integral only)
	OpBAnd
	OpBOr
	OpBXor
	OpShl
	OpShr
	// Logical
	OpLAnd
	OpLOr
	OpNot
	OpInv

	// Compare — signed
	OpIEq
	OpINeq
	OpILt
	OpIGt
	OpILte
	OpIGte
	// Compare — unsigned
	OpUEq
	OpUNeq
	OpULt
	OpUGt
	OpULte
	OpUGte
	// Compare — f32
	OpFEq
	OpFNeq
	OpFLt
	OpFGt
	OpFLte
	OpFGte
	// Compare — f64
	OpDEq
	OpDNeq
	OpDLt
	OpDGt
	OpDLte
	OpDGte

	// Move / convert
	OpAssign
	OpCvt
	OpNeg
	OpInc
	OpDec

	// Control
	OpLabel
	OpBranch
	OpJump
	OpRet

	// Call
	OpCall
	OpParam

	// Misc
	OpTerm
	OpReserve
	OpResolve
)

// Category is the numeric category an arithmetic/compare/convert opcode
// operates over (spec.md §3 invariant I6).
type Category int

const (
	CatNone Category = iota
	CatSigned
	CatUnsigned
	CatF32
	CatF64
)

// ArithOpcode returns the opcode for op ("add","sub","mul","div","mod") in
// category cat — the "(category, signed/unsigned, floating-width) table"
// spec.md §4.3 describes for dispatching a binary operator to its IR
// instruction.
func ArithOpcode(op string, cat Category) (Opcode, bool) {
	table := map[Category]map[string]Opcode{
		CatSigned:   {"add": OpIAdd, "sub": OpISub, "mul": OpIMul, "div": OpIDiv, "mod": OpIMod},
		CatUnsigned: {"add": OpUAdd, "sub": OpUSub, "mul": OpUMul, "div": OpUDiv, "mod": OpUMod},
		CatF32:      {"add": OpFAdd, "sub": OpFSub, "mul": OpFMul, "div": OpFDiv, "mod": OpFMod},
		CatF64:      {"add": OpDAdd, "sub": OpDSub, "mul": OpDMul, "div": OpDDiv, "mod": OpDMod},
	}
	m, ok := table[cat]
	if !ok {
		return OpNoop, false
	}
	code, ok := m[op]
	return code, ok
}

// CompareOpcode returns the opcode for comparison cond ("eq","neq","lt",
// "gt","lte","gte") in category cat.
func CompareOpcode(cond string, cat Category) (Opcode, bool) {
	table := map[Category]map[string]Opcode{
		CatSigned:   {"eq": OpIEq, "neq": OpINeq, "lt": OpILt, "gt": OpIGt, "lte": OpILte, "gte": OpIGte},
		CatUnsigned: {"eq": OpUEq, "neq": OpUNeq, "lt": OpULt, "gt": OpUGt, "lte": OpULte, "gte": OpUGte},
		CatF32:      {"eq": OpFEq, "neq": OpFNeq, "lt": OpFLt, "gt": OpFGt, "lte": OpFLte, "gte": OpFGte},
		CatF64:      {"eq": OpDEq, "neq": OpDNeq, "lt": OpDLt, "gt": OpDGt, "lte": OpDLte, "gte": OpDGte},
	}
	m, ok := table[cat]
	if !ok {
		return OpNoop, false
	}
	code, ok := m[cond]
	return code, ok
}

func (o Opcode) String() string {
	names := map[Opcode]string{
		OpNoop: "noop", OpLoad: "load", OpStore: "store",
		OpStackAlloc: "stack_alloc", OpStackFree: "stack_free", OpModuleData: "module_data",
		OpIAdd: "iadd", OpISub: "isub", OpIMul: "imul", OpIDiv: "idiv", OpIMod: "imod",
		OpUAdd: "uadd", OpUSub: "usub", OpUMul: "umul", OpUDiv: "udiv", OpUMod: "umod",
		OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFMod: "fmod",
		OpDAdd: "dadd", OpDSub: "dsub", OpDMul: "dmul", OpDDiv: "ddiv", OpDMod: "dmod",
		OpBAnd: "band", OpBOr: "bor", OpBXor: "bxor", OpShl: "shl", OpShr: "shr",
		OpLAnd: "land", OpLOr: "lor", OpNot: "not", OpInv: "inv",
		OpIEq: "ieq", OpINeq: "ineq", OpILt: "ilt", OpIGt: "igt", OpILte: "ilte", OpIGte: "igte",
		OpUEq: "ueq", OpUNeq: "uneq", OpULt: "ult", OpUGt: "ugt", OpULte: "ulte", OpUGte: "ugte",
		OpFEq: "feq", OpFNeq: "fneq", OpFLt: "flt", OpFGt: "fgt", OpFLte: "flte", OpFGte: "fgte",
		OpDEq: "deq", OpDNeq: "dneq", OpDLt: "dlt", OpDGt: "dgt", OpDLte: "dlte", OpDGte: "dgte",
		OpAssign: "assign", OpCvt: "cvt", OpNeg: "neg", OpInc: "inc", OpDec: "dec",
		OpLabel: "label", OpBranch: "branch", OpJump: "jump", OpRet: "ret",
		OpCall: "call", OpParam: "param",
		OpTerm: "term", OpReserve: "reserve", OpResolve: "resolve",
	}
	if s, ok := names[o]; ok {
		return s
	}
	return "?"
}
