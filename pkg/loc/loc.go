// Package loc defines the location model register allocation assigns IR
// virtual registers to: a physical machine register or a stack slot
// (spec.md C9, the "Location Transfer Language" stage of the native
// back-end pipeline). This is a from-scratch, x86-64-targeted replacement
// for a package the teacher's own pipeline depends on but never actually
// ships — grounded on the only copy of it retrieved for this corpus,
// other_examples' jpshackelford-ralph-cc-go ltl/ast.go, which defines the
// same Loc/R/S/MReg/SlotKind shape for CompCert's ARM64 LTL stage. Every
// register constant and width rule below is retargeted from that file's
// AArch64 model (X0-X30 integer, D0-D31 float) to the System V AMD64 ABI
// (RAX-R15 integer, XMM0-XMM15 float) asm/asmgen/regalloc/stacking
// consume.
package loc

// Loc is a location a register-allocated value can live in: a machine
// register or a stack slot.
type Loc interface{ implLoc() }

// R is a machine-register location.
type R struct{ Reg MReg }

// S is a stack-slot location.
type S struct {
	Slot SlotKind
	Ofs  int64
	Ty   Typ
}

func (R) implLoc() {}
func (S) implLoc() {}

// MReg is a physical x86-64 register, general-purpose or XMM.
type MReg int

// General-purpose integer registers (System V AMD64 calling convention
// order: RDI, RSI, RDX, RCX, R8, R9 carry the first six integer/pointer
// args; RAX carries the return value and is the IDIV/IMUL implicit
// operand; RSP/RBP are reserved for the frame; R10/R11 are caller-saved
// scratch the assembler stage uses for spills).
const (
	RAX MReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// XMM floating-point registers, offset to avoid colliding with the integer
// register constants above.
const (
	XMM0 MReg = iota + 64
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// IsInteger reports whether r is a general-purpose register.
func (r MReg) IsInteger() bool { return r <= R15 }

// IsFloat reports whether r is an XMM register.
func (r MReg) IsFloat() bool { return r >= XMM0 && r <= XMM15 }

var intNames = []string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var xmmNames = []string{
	"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
	"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
}

func (r MReg) String() string {
	if r.IsInteger() {
		return intNames[r]
	}
	if r.IsFloat() {
		return xmmNames[r-XMM0]
	}
	return "?"
}

// CalleeSaved reports whether r must be preserved across a call per the
// System V AMD64 ABI. pkg/stacking's prologue/epilogue does not consult it;
// it saves its own fixed stacking.CalleeSaved list.
func (r MReg) CalleeSaved() bool {
	switch r {
	case RBX, RBP, R12, R13, R14, R15:
		return true
	default:
		return false
	}
}

// ArgIntRegs is the System V AMD64 integer/pointer argument-passing order.
var ArgIntRegs = []MReg{RDI, RSI, RDX, RCX, R8, R9}

// ArgFloatRegs is the System V AMD64 floating-point argument-passing order.
var ArgFloatRegs = []MReg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}

// SlotKind distinguishes a stack slot's role in the caller/callee frame
// layout pkg/stacking computes.
type SlotKind int

const (
	SlotLocal    SlotKind = iota // a function's own local/spill slot
	SlotIncoming                 // an argument passed to this function on the stack
	SlotOutgoing                 // an argument this function passes to a callee on the stack
)

func (s SlotKind) String() string {
	switch s {
	case SlotLocal:
		return "local"
	case SlotIncoming:
		return "incoming"
	case SlotOutgoing:
		return "outgoing"
	}
	return "?"
}

// Typ is the machine-level type a stack slot or register holds, mirroring
// the four numeric categories pkg/ir.Category names plus a pointer category
// (spec.md §4.9's "i64/u64 -> 64-bit integer registers... f32/f64 -> XMM
// registers; pointers are unsigned 64-bit").
type Typ int

const (
	TInt32 Typ = iota
	TInt64
	TFloat32
	TFloat64
	TPointer
)

func (t Typ) String() string {
	names := []string{"i32", "i64", "f32", "f64", "ptr"}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// Width reports the byte width of a value of type t, used by pkg/stacking
// to compute slot offsets and by pkg/asmgen to pick the right instruction
// suffix/register width.
func (t Typ) Width() int64 {
	switch t {
	case TInt32, TFloat32:
		return 4
	default:
		return 8
	}
}
