// Package asm defines a small x86-64 instruction AST and an AT&T-syntax
// printer for it (spec.md §4.9, C9's native back end).
//
// This replaces the teacher's own `pkg/asm`: that package targets ARM64 and
// imports a `pkg/ltl` location-model package that does not exist anywhere
// in the retrieved corpus (every importer fails for the same missing-import
// reason pkg/loc's doc comment already records), and its printer.go
// additionally references AST fields (`GlobVar.ReadOnly`, `B.IsSymbol`,
// `LDPpost`, `STPpre`, `ADDpageoff`) that are absent from its own ast.go —
// the retrieved copy is internally inconsistent even set apart from the
// missing import. Rather than patch a blind, already-broken ARM64 AST,
// this is a from-scratch x86-64 instruction set, scoped to exactly the
// operations pkg/asmgen's lowering of pkg/ir needs (spec.md §4.4's opcode
// table) plus the call/prologue machinery pkg/stacking/pkg/codegen use.
//
// Shaped like pkg/ir.Instruction (one tagged-union struct covering every
// opcode, interpreted per Op) rather than the teacher's one-Go-type-per-
// mnemonic style (~90 structs in the retrieved ast.go) — a deliberate
// simplification proportionate to this package's narrower, from-scratch
// scope.
package asm

import "github.com/tsvm-lang/tsvm/pkg/loc"

// Op identifies an x86-64 instruction this package can emit.
type Op int

const (
	OpNoop     Op = iota
	OpLabelDef    // binds Label at this point in the stream

	// Data movement.
	OpMovRR    // Dst, Src: mov dst, src (both general-purpose, or both XMM per the registers' IsFloat)
	OpMovRI    // Dst, Imm: mov dst, imm32 (Width==4) or movabs dst, imm64 (Width==8)
	OpMovLoad  // Dst, Mem: mov dst, [mem]
	OpMovStore // Mem, Src: mov [mem], src
	OpLea      // Dst, Mem: lea dst, [mem]

	// Integer arithmetic; Dst is also the first source (two-address, like
	// real x86-64 ADD/SUB/IMUL).
	OpAdd
	OpSub
	OpAddImm // Dst, Imm: add dst, imm32 (used for RSP frame adjustment, not register-file arithmetic)
	OpSubImm // Dst, Imm: sub dst, imm32
	OpIMul
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpNeg
	OpNot

	// Division: dividend is RDX:RAX, divisor is Src, quotient ends in RAX,
	// remainder in RDX (System V AMD64 convention) — asmgen always targets
	// those fixed registers for a div/mod lowering rather than letting
	// regalloc pick an arbitrary one, since the instruction has no other
	// operand-register shape.
	OpCqo     // sign-extend rax into rdx:rax, ahead of a signed IDiv
	OpZeroRDX // xor rdx,rdx, ahead of an unsigned Div
	OpIDiv    // Src: signed divide rdx:rax by src
	OpDiv     // Src: unsigned divide rdx:rax by src

	// SSE2 scalar float arithmetic (Dst/Src1 two-address, like the integer
	// ops above); Width picks the ss (4-byte) or sd (8-byte) form.
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpXorPS // Dst, Src: clear/flip bits (used for float negation via a sign-mask XOR)

	// Comparison.
	OpCmp    // Src1, Src2: integer compare, sets flags
	OpUComiF // Src1, Src2: unordered float compare, sets flags (ucomiss/ucomisd)
	OpSetCC  // Dst: set low byte of dst to 1/0 per Cond, rest of dst undefined
	OpMovzxB // Dst: zero-extend dst's low byte to the full register width

	// Conversion between integer and float registers.
	OpCvt // Dst, Src: kind given by CvtKind

	// Control flow.
	OpJmp
	OpJcc
	OpCallReg // Src: indirect call through the address held in Src
	OpRet
	OpPush
	OpPop
)

// Width is an operand's size in bytes, selecting an instruction's register
// width and, for OpMovRR/arithmetic, whether GP or XMM registers are meant.
type Width int

const (
	W8  Width = 1
	W32 Width = 4
	W64 Width = 8
)

// Cond is a condition code, used by OpJcc/OpSetCC.
type Cond int

const (
	CondEQ Cond = iota
	CondNE
	CondLT // signed <
	CondLE
	CondGT
	CondGE
	CondB // unsigned <
	CondBE
	CondA // unsigned >
	CondAE
	CondP // parity (unordered float compare)
)

func (c Cond) String() string {
	names := []string{"e", "ne", "l", "le", "g", "ge", "b", "be", "a", "ae", "p"}
	if int(c) < len(names) {
		return names[c]
	}
	return "?"
}

// CvtKind selects which int<->float conversion OpCvt performs.
type CvtKind int

const (
	CvtNone CvtKind = iota
	CvtI2F          // cvtsi2sd/cvtsi2ss: signed GP -> XMM
	CvtF2I          // cvttsd2si/cvttss2si: XMM -> signed GP, truncating
	CvtF2F          // cvtsd2ss/cvtss2sd: XMM -> XMM, widening/narrowing
)

// Label is a branch target, resolved to a byte offset by pkg/assembler.
type Label int

// Mem is a base+displacement memory operand — the only addressing mode
// this back end needs (spec.md §4.8's Value model never produces scaled-
// index addressing; every address asmgen builds is a register plus a
// constant byte offset).
type Mem struct {
	Base loc.MReg
	Disp int32
}

// Instruction is one x86-64 instruction, interpreted per Op the way
// pkg/ir.Instruction is interpreted per Opcode.
type Instruction struct {
	Op Op

	Dst  loc.MReg
	Src  loc.MReg
	Src2 loc.MReg
	Mem  Mem

	Imm   int64
	Width Width
	Cond  Cond
	Kind  CvtKind

	Label  Label // OpLabelDef: the label this instruction binds
	Target Label // OpJmp/OpJcc: the label branched to
}

// Function is a compiled function's instruction stream plus the frame size
// its prologue reserves, mirroring pkg/ir.Function's Code buffer at one
// stage further down the pipeline.
type Function struct {
	Name      string
	Code      []Instruction
	FrameSize int64 // bytes reserved by `sub rsp, FrameSize` in the prologue
}
