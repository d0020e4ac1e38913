// Package asmgen lowers one ir.Function directly into a pkg/asm.Function
// (spec.md C9's instruction-selection stage).
//
// Unlike the teacher's pipeline, which lowers CFG-shaped RTL through
// Linear and Mach staging before instruction selection, this lowers
// straight off fn.Code: spec.md's IR is already a flat three-address
// stream with explicit label/branch/jump opcodes (pkg/ir's package
// comment), so there is no block structure left to rebuild or flatten.
//
// Every virtual register is addressed through the fixed base-pointer
// register pkg/stacking's prologue loads into R15 — `[R15 + 8*reg]` is the
// exact same array slot pkg/vm/ops.go's getReg/setReg index into, so a
// compiled function and the interpreter agree on every register's value
// without any copying or marshaling between them (pkg/regalloc's doc
// comment). Memory access (OpLoad/OpStore), the stack-slot address
// computation a Stack-kind Value denotes, reading a raw call argument, and
// dispatching a call all go through the four bridge calls pkg/codegen
// wires up via purego.NewCallback — the only operations that need to run
// Go code (guard-checked stack access, the VM's host/script call dispatch)
// rather than a handful of inline x86-64 instructions.
package asmgen

import (
	"github.com/tsvm-lang/tsvm/pkg/asm"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/loc"
	"github.com/tsvm-lang/tsvm/pkg/regalloc"
	"github.com/tsvm-lang/tsvm/pkg/stacking"
	"github.com/tsvm-lang/tsvm/pkg/vm"
)

// BridgeAddrs holds the four Go-callback entry points pkg/codegen installs
// via purego.NewCallback before compiling any function body — the native
// back end's only way to reach Go code (spec.md C9/C10's FFI bridge,
// extended in the opposite direction: native code calling back into the
// VM instead of the VM calling out to C).
//
// Every bridge shares the calling convention `func(handle, a, b, c uintptr)
// uintptr`, RDI/RSI/RDX/RCX per System V AMD64, except Call which needs a
// fifth argument and so gets RDI..R8.
type BridgeAddrs struct {
	// Call dispatches OpCall: (handle, isDirect, target, argsPtr, argc).
	// isDirect!=0: target is a ids.FuncID; else target is a closure heap
	// address. argsPtr points at argc consecutive uint64 arguments.
	Call uintptr

	// Mem serves OpLoad/OpStore: (handle, op, addr, val). op==0 loads addr
	// and returns the word; op==1 stores val at addr and returns 0.
	Mem uintptr

	// Slot serves a Stack-kind Value's address (op==0, returns the
	// address) or direct store-through (op==1, stores val at the slot's
	// address): (handle, op, slotID, val).
	Slot uintptr

	// Arg reads a KindArgument operand's raw value: (handle, index).
	Arg uintptr
}

// regsBase is the VM register file's address, baked into the prologue as
// an immediate (pkg/stacking.Prologue's doc comment explains the
// non-moving-array assumption this relies on).
func Lower(fn *ir.Function, classes regalloc.Classes, layout stacking.Layout, bridges BridgeAddrs, regsBase uint64) *asm.Function {
	lw := &lowerer{fn: fn, classes: classes, layout: layout, bridges: bridges}
	lw.emit(stacking.Prologue(layout, regsBase)...)
	for idx, instr := range fn.Code {
		lw.bindLabel(idx)
		lw.lower(instr)
	}
	lw.bindLabel(len(fn.Code))
	lw.emitReturn(nil) // implicit fall-off-the-end return, matching Execute's loop exit
	return &asm.Function{Name: fn.Name, Code: lw.code, FrameSize: layout.FrameSize}
}

type lowerer struct {
	fn       *ir.Function
	classes  regalloc.Classes
	layout   stacking.Layout
	bridges  BridgeAddrs
	code     []asm.Instruction
	paramIdx int
}

func (lw *lowerer) emit(instrs ...asm.Instruction) { lw.code = append(lw.code, instrs...) }

// bindLabel marks ir instruction index idx as a native jump target. Every
// index gets one, not just ones an OpLabel happens to sit on: branch/jump
// targets are resolved through fn.LabelOffsets to an instruction INDEX
// (pkg/vm/interp.go's resolveLabel), never by scanning for OpLabel at run
// time, so indexing labels by position is the exact same resolution the
// interpreter performs.
func (lw *lowerer) bindLabel(idx int) {
	lw.emit(asm.Instruction{Op: asm.OpLabelDef, Label: asm.Label(idx)})
}

// resolveLabel mirrors pkg/vm/interp.go's resolveLabel: an unresolved
// target falls through to just past the last instruction.
func (lw *lowerer) resolveLabel(target ir.Label) int {
	if off, ok := lw.fn.LabelOffsets[target]; ok {
		return off
	}
	return len(lw.fn.Code)
}

func regMem(r ir.Reg) asm.Mem { return asm.Mem{Base: loc.R15, Disp: int32(8 * int(r))} }

func namedMem(r vm.Reg) asm.Mem { return asm.Mem{Base: loc.R15, Disp: int32(8 * int(r))} }

// classOf reports the machine class a register-kind Value was classified
// as, used to pick a GP or XMM move form for pure data movement
// (OpAssign/OpLoad/OpStore/OpCall's result) — real compilers prefer the
// matching domain's mov to avoid a GP<->XMM round trip, even though the
// bit pattern moved is identical either way.
func (lw *lowerer) classOf(v ir.Value) loc.Typ {
	if v.Kind == ir.KindRegister {
		if t, ok := lw.classes[v.Reg]; ok {
			return t
		}
	}
	switch v.Imm.Kind {
	case ir.ImmFloat:
		return loc.TFloat32
	case ir.ImmDouble:
		return loc.TFloat64
	}
	return loc.TInt64
}

const (
	scratch1  = loc.RAX
	scratch2  = loc.RCX
	scratch3  = loc.RDX
	fscratch1 = loc.XMM0
	fscratch2 = loc.XMM1
)

// widthFor reports the mov width a class implies.
func widthFor(t loc.Typ) asm.Width {
	if t == loc.TFloat32 {
		return asm.W32
	}
	return asm.W64
}

// loadInt materializes v's raw bit pattern into the GP scratch register
// dst, through whichever of direct-register/immediate/bridge-call access
// v.Kind needs.
func (lw *lowerer) loadInt(v ir.Value, dst loc.MReg) {
	switch v.Kind {
	case ir.KindRegister:
		lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: dst, Mem: regMem(v.Reg), Width: asm.W64})
	case ir.KindImmediate:
		lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: dst, Imm: int64(immBits(v.Imm)), Width: asm.W64})
	case ir.KindStack:
		lw.bridgeSlot(0 /*get address*/, int64(v.Slot), 0, dst)
	case ir.KindArgument:
		lw.bridgeArg(v.ArgIndex, dst)
	default:
		lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: dst, Imm: 0, Width: asm.W64})
	}
}

// loadFloat materializes v into the XMM scratch register dst, for operands
// an arithmetic float opcode consumes.
func (lw *lowerer) loadFloat(v ir.Value, dst loc.MReg, width asm.Width) {
	if v.Kind == ir.KindRegister {
		lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: dst, Mem: regMem(v.Reg), Width: width})
		return
	}
	// Immediates and bridge-sourced values arrive as GP bits first, then
	// round-trip through memory into the XMM register: there is no
	// GP<->XMM register-to-register move in this instruction set, only
	// memory<->XMM loads and stores.
	lw.loadInt(v, scratch1)
	lw.emit(asm.Instruction{Op: asm.OpMovStore, Mem: lw.scratchSlot(), Src: scratch1, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: dst, Mem: lw.scratchSlot(), Width: width})
}

// scratchSlot is a fixed word in the argument scratch buffer, reused as a
// landing pad for GP->XMM round trips (see loadFloat) — safe because
// OpParam's own use of the buffer never overlaps a single instruction's
// own lowering.
func (lw *lowerer) scratchSlot() asm.Mem {
	return asm.Mem{Base: loc.RBP, Disp: int32(lw.layout.ArgBufOffset)}
}

// storeInt writes src's raw bits back to v (a dest operand), routing
// through the matching bridge for Stack-kind destinations.
func (lw *lowerer) storeInt(v ir.Value, src loc.MReg) {
	switch v.Kind {
	case ir.KindRegister:
		lw.emit(asm.Instruction{Op: asm.OpMovStore, Mem: regMem(v.Reg), Src: src, Width: asm.W64})
	case ir.KindStack:
		lw.bridgeSlotStore(int64(v.Slot), src)
	}
}

func (lw *lowerer) storeFloat(v ir.Value, src loc.MReg, width asm.Width) {
	if v.Kind == ir.KindRegister {
		lw.emit(asm.Instruction{Op: asm.OpMovStore, Mem: regMem(v.Reg), Src: src, Width: width})
		return
	}
	lw.emit(asm.Instruction{Op: asm.OpMovStore, Mem: lw.scratchSlot(), Src: src, Width: width})
	lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: scratch1, Mem: lw.scratchSlot(), Width: asm.W64})
	lw.storeInt(v, scratch1)
}

func immBits(imm ir.Immediate) uint64 {
	switch imm.Kind {
	case ir.ImmInt:
		return uint64(imm.Int)
	case ir.ImmUint:
		return imm.Uint
	case ir.ImmFuncRef:
		return uint64(imm.FuncRef)
	case ir.ImmTypeRef:
		return uint64(imm.TypeRef)
	default:
		return 0
	}
}

func (lw *lowerer) lower(instr ir.Instruction) {
	switch instr.Op {
	case ir.OpNoop, ir.OpLabel, ir.OpReserve, ir.OpResolve:
		// no native effect, matching Execute's switch.

	case ir.OpTerm:
		lw.emitReturn(nil)

	case ir.OpLoad:
		lw.lowerLoad(instr)
	case ir.OpStore:
		lw.lowerStore(instr)

	case ir.OpStackAlloc:
		lw.adjustSP(-int64(instr.Imm.Uint))
	case ir.OpStackFree:
		lw.adjustSP(int64(instr.Imm.Uint))

	case ir.OpIAdd, ir.OpISub, ir.OpIMul, ir.OpIDiv, ir.OpIMod,
		ir.OpUAdd, ir.OpUSub, ir.OpUMul, ir.OpUDiv, ir.OpUMod,
		ir.OpBAnd, ir.OpBOr, ir.OpBXor, ir.OpShl, ir.OpShr,
		ir.OpLAnd, ir.OpLOr:
		lw.lowerIntBinary(instr)

	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFMod:
		lw.lowerFloatBinary(instr, asm.W32)
	case ir.OpDAdd, ir.OpDSub, ir.OpDMul, ir.OpDDiv, ir.OpDMod:
		lw.lowerFloatBinary(instr, asm.W64)

	case ir.OpIEq, ir.OpINeq, ir.OpILt, ir.OpIGt, ir.OpILte, ir.OpIGte,
		ir.OpUEq, ir.OpUNeq, ir.OpULt, ir.OpUGt, ir.OpULte, ir.OpUGte:
		lw.lowerIntCompare(instr)
	case ir.OpFEq, ir.OpFNeq, ir.OpFLt, ir.OpFGt, ir.OpFLte, ir.OpFGte:
		lw.lowerFloatCompare(instr, asm.W32)
	case ir.OpDEq, ir.OpDNeq, ir.OpDLt, ir.OpDGt, ir.OpDLte, ir.OpDGte:
		lw.lowerFloatCompare(instr, asm.W64)

	case ir.OpAssign:
		lw.lowerAssign(instr)
	case ir.OpCvt:
		lw.lowerConvert(instr)
	case ir.OpNeg:
		lw.lowerNeg(instr)
	case ir.OpNot:
		lw.loadInt(instr.Operands[1], scratch1)
		lw.emit(asm.Instruction{Op: asm.OpCmp, Src: scratch1, Src2: scratch1, Width: asm.W64}) // cmp rax,rax-style zero test replaced below
		lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: scratch2, Imm: 0, Width: asm.W64})
		lw.emit(asm.Instruction{Op: asm.OpCmp, Src: scratch1, Src2: scratch2, Width: asm.W64})
		lw.emit(asm.Instruction{Op: asm.OpSetCC, Dst: scratch1, Cond: asm.CondEQ})
		lw.emit(asm.Instruction{Op: asm.OpMovzxB, Dst: scratch1})
		lw.storeInt(instr.Operands[0], scratch1)
	case ir.OpInv:
		lw.loadInt(instr.Operands[1], scratch1)
		lw.emit(asm.Instruction{Op: asm.OpNot, Dst: scratch1, Width: asm.W64})
		lw.storeInt(instr.Operands[0], scratch1)
	case ir.OpInc:
		lw.loadInt(instr.Operands[1], scratch1)
		lw.emit(asm.Instruction{Op: asm.OpAddImm, Dst: scratch1, Imm: 1, Width: asm.W64})
		lw.storeInt(instr.Operands[0], scratch1)
	case ir.OpDec:
		lw.loadInt(instr.Operands[1], scratch1)
		lw.emit(asm.Instruction{Op: asm.OpSubImm, Dst: scratch1, Imm: 1, Width: asm.W64})
		lw.storeInt(instr.Operands[0], scratch1)

	case ir.OpBranch:
		lw.loadInt(instr.Operands[0], scratch1)
		lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: scratch2, Imm: 0, Width: asm.W64})
		lw.emit(asm.Instruction{Op: asm.OpCmp, Src: scratch1, Src2: scratch2, Width: asm.W64})
		lw.emit(asm.Instruction{Op: asm.OpJcc, Cond: asm.CondNE, Target: asm.Label(lw.resolveLabel(instr.Target))})
	case ir.OpJump:
		lw.emit(asm.Instruction{Op: asm.OpJmp, Target: asm.Label(lw.resolveLabel(instr.Target))})
	case ir.OpRet:
		if instr.NumOperands > 0 {
			lw.emitReturn(&instr.Operands[0])
		} else {
			lw.emitReturn(nil)
		}

	case ir.OpParam:
		lw.lowerParam(instr)
	case ir.OpCall:
		lw.lowerCall(instr)
	}
}

func (lw *lowerer) adjustSP(delta int64) {
	lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: scratch1, Mem: namedMem(vm.RegSP), Width: asm.W64})
	if delta < 0 {
		lw.emit(asm.Instruction{Op: asm.OpSubImm, Dst: scratch1, Imm: -delta, Width: asm.W64})
	} else {
		lw.emit(asm.Instruction{Op: asm.OpAddImm, Dst: scratch1, Imm: delta, Width: asm.W64})
	}
	lw.emit(asm.Instruction{Op: asm.OpMovStore, Mem: namedMem(vm.RegSP), Src: scratch1, Width: asm.W64})
}

func (lw *lowerer) lowerLoad(instr ir.Instruction) {
	lw.loadInt(instr.Operands[1], scratch1) // base
	offset := int64(0)
	if instr.Imm != nil {
		offset = int64(instr.Imm.Uint)
	}
	lw.emit(asm.Instruction{Op: asm.OpAddImm, Dst: scratch1, Imm: offset, Width: asm.W64})
	lw.bridgeCall(lw.bridges.Mem, 0, scratch1, 0, scratch1)
	lw.storeInt(instr.Operands[0], scratch1)
}

func (lw *lowerer) lowerStore(instr ir.Instruction) {
	lw.loadInt(instr.Operands[0], scratch1) // base
	offset := int64(0)
	if instr.Imm != nil {
		offset = int64(instr.Imm.Uint)
	}
	lw.emit(asm.Instruction{Op: asm.OpAddImm, Dst: scratch1, Imm: offset, Width: asm.W64})
	lw.loadInt(instr.Operands[1], scratch2)
	lw.bridgeCallReg(lw.bridges.Mem, 1, scratch1, scratch2, loc.MReg(-1))
}

func (lw *lowerer) lowerIntBinary(instr ir.Instruction) {
	a, b, dst := instr.Operands[1], instr.Operands[2], instr.Operands[0]
	switch instr.Op {
	case ir.OpIDiv, ir.OpIMod, ir.OpUDiv, ir.OpUMod:
		lw.loadInt(a, scratch1)
		lw.loadInt(b, scratch2)
		if instr.Op == ir.OpIDiv || instr.Op == ir.OpIMod {
			lw.emit(asm.Instruction{Op: asm.OpCqo})
			lw.emit(asm.Instruction{Op: asm.OpIDiv, Src: scratch2, Width: asm.W64})
		} else {
			lw.emit(asm.Instruction{Op: asm.OpZeroRDX})
			lw.emit(asm.Instruction{Op: asm.OpDiv, Src: scratch2, Width: asm.W64})
		}
		if instr.Op == ir.OpIMod || instr.Op == ir.OpUMod {
			lw.storeInt(dst, loc.RDX)
		} else {
			lw.storeInt(dst, loc.RAX)
		}
		return
	}
	lw.loadInt(a, scratch1)
	lw.loadInt(b, scratch2)
	var op asm.Op
	switch instr.Op {
	case ir.OpIAdd, ir.OpUAdd:
		op = asm.OpAdd
	case ir.OpISub, ir.OpUSub:
		op = asm.OpSub
	case ir.OpIMul, ir.OpUMul:
		op = asm.OpIMul
	case ir.OpBAnd:
		op = asm.OpAnd
	case ir.OpBOr:
		op = asm.OpOr
	case ir.OpBXor:
		op = asm.OpXor
	case ir.OpShl, ir.OpShr:
		lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RCX, Src: scratch2, Width: asm.W64})
		if instr.Op == ir.OpShl {
			op = asm.OpShl
		} else {
			op = asm.OpShr
		}
		lw.emit(asm.Instruction{Op: op, Dst: scratch1, Width: asm.W64})
		lw.storeInt(dst, scratch1)
		return
	case ir.OpLAnd:
		lw.lowerLogical(instr, true)
		return
	case ir.OpLOr:
		lw.lowerLogical(instr, false)
		return
	}
	lw.emit(asm.Instruction{Op: op, Dst: scratch1, Src: scratch2, Width: asm.W64})
	lw.storeInt(dst, scratch1)
}

// lowerLogical computes a!=0 [&&|||] b!=0 as a 0/1 word: both operands'
// raw bit patterns are reduced to booleans via a zero-compare before the
// bitwise combine, since a non-zero non-one encoding (e.g. 2) would
// otherwise corrupt AND/OR's result.
func (lw *lowerer) lowerLogical(instr ir.Instruction, isAnd bool) {
	lw.loadInt(instr.Operands[1], scratch1)
	lw.boolify(scratch1)
	lw.loadInt(instr.Operands[2], scratch2)
	lw.boolify(scratch2)
	op := asm.OpOr
	if isAnd {
		op = asm.OpAnd
	}
	lw.emit(asm.Instruction{Op: op, Dst: scratch1, Src: scratch2, Width: asm.W64})
	lw.storeInt(instr.Operands[0], scratch1)
}

func (lw *lowerer) boolify(r loc.MReg) {
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: scratch3, Imm: 0, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCmp, Src: r, Src2: scratch3, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpSetCC, Dst: r, Cond: asm.CondNE})
	lw.emit(asm.Instruction{Op: asm.OpMovzxB, Dst: r})
}

func (lw *lowerer) lowerFloatBinary(instr ir.Instruction, width asm.Width) {
	a, b, dst := instr.Operands[1], instr.Operands[2], instr.Operands[0]
	lw.loadFloat(a, fscratch1, width)
	lw.loadFloat(b, fscratch2, width)
	var op asm.Op
	switch instr.Op {
	case ir.OpFAdd, ir.OpDAdd:
		op = asm.OpAddF
	case ir.OpFSub, ir.OpDSub:
		op = asm.OpSubF
	case ir.OpFMul, ir.OpDMul:
		op = asm.OpMulF
	case ir.OpFDiv, ir.OpDDiv:
		op = asm.OpDivF
	default: // OpFMod/OpDMod: SSE2 has no remainder instruction and this
		// lowering does not compute one; pkg/codegen's Compiler.Compile
		// rejects any function containing float `%` before lowering it (see
		// its doc comment), so this placeholder is not reached through it.
		op = asm.OpSubF
	}
	lw.emit(asm.Instruction{Op: op, Dst: fscratch1, Src: fscratch2, Width: width})
	lw.storeFloat(dst, fscratch1, width)
}

func (lw *lowerer) lowerIntCompare(instr ir.Instruction) {
	lw.loadInt(instr.Operands[1], scratch1)
	lw.loadInt(instr.Operands[2], scratch2)
	lw.emit(asm.Instruction{Op: asm.OpCmp, Src: scratch1, Src2: scratch2, Width: asm.W64})
	cond := intCond(instr.Op)
	lw.emit(asm.Instruction{Op: asm.OpSetCC, Dst: scratch1, Cond: cond})
	lw.emit(asm.Instruction{Op: asm.OpMovzxB, Dst: scratch1})
	lw.storeInt(instr.Operands[0], scratch1)
}

func intCond(op ir.Opcode) asm.Cond {
	switch op {
	case ir.OpIEq, ir.OpUEq:
		return asm.CondEQ
	case ir.OpINeq, ir.OpUNeq:
		return asm.CondNE
	case ir.OpILt:
		return asm.CondLT
	case ir.OpIGt:
		return asm.CondGT
	case ir.OpILte:
		return asm.CondLE
	case ir.OpIGte:
		return asm.CondGE
	case ir.OpULt:
		return asm.CondB
	case ir.OpUGt:
		return asm.CondA
	case ir.OpULte:
		return asm.CondBE
	case ir.OpUGte:
		return asm.CondAE
	}
	return asm.CondEQ
}

func (lw *lowerer) lowerFloatCompare(instr ir.Instruction, width asm.Width) {
	lw.loadFloat(instr.Operands[1], fscratch1, width)
	lw.loadFloat(instr.Operands[2], fscratch2, width)
	lw.emit(asm.Instruction{Op: asm.OpUComiF, Src: fscratch1, Src2: fscratch2, Width: width})
	cond := floatCond(instr.Op)
	lw.emit(asm.Instruction{Op: asm.OpSetCC, Dst: scratch1, Cond: cond})
	lw.emit(asm.Instruction{Op: asm.OpMovzxB, Dst: scratch1})
	lw.storeInt(instr.Operands[0], scratch1)
}

func floatCond(op ir.Opcode) asm.Cond {
	switch op {
	case ir.OpFEq, ir.OpDEq:
		return asm.CondEQ
	case ir.OpFNeq, ir.OpDNeq:
		return asm.CondNE
	case ir.OpFLt, ir.OpDLt:
		return asm.CondB
	case ir.OpFGt, ir.OpDGt:
		return asm.CondA
	case ir.OpFLte, ir.OpDLte:
		return asm.CondBE
	case ir.OpFGte, ir.OpDGte:
		return asm.CondAE
	}
	return asm.CondEQ
}

func (lw *lowerer) lowerAssign(instr ir.Instruction) {
	dst, src := instr.Operands[0], instr.Operands[1]
	if lw.classOf(dst) == loc.TFloat32 || lw.classOf(dst) == loc.TFloat64 {
		w := widthFor(lw.classOf(dst))
		lw.loadFloat(src, fscratch1, w)
		lw.storeFloat(dst, fscratch1, w)
		return
	}
	lw.loadInt(src, scratch1)
	lw.storeInt(dst, scratch1)
}

// lowerConvert mirrors pkg/vm/ops.go's execConvert: instr.Imm carries the
// source category, Operands[0].Type gives the destination's.
func (lw *lowerer) lowerConvert(instr ir.Instruction) {
	srcCat, dstCat := ir.CatNone, ir.CatNone
	if instr.Imm != nil {
		srcCat = categoryFromTypeRef(instr.Imm)
	}
	dstCat = lw.categoryOf(instr.Operands[0])

	switch {
	case srcCat != ir.CatF32 && srcCat != ir.CatF64 && (dstCat == ir.CatF32 || dstCat == ir.CatF64):
		lw.loadInt(instr.Operands[1], scratch1)
		w := asm.W64
		if dstCat == ir.CatF32 {
			w = asm.W32
		}
		lw.emit(asm.Instruction{Op: asm.OpCvt, Dst: fscratch1, Src: scratch1, Kind: asm.CvtI2F, Width: w})
		lw.storeFloat(instr.Operands[0], fscratch1, w)
	case (srcCat == ir.CatF32 || srcCat == ir.CatF64) && dstCat != ir.CatF32 && dstCat != ir.CatF64:
		w := asm.W64
		if srcCat == ir.CatF32 {
			w = asm.W32
		}
		lw.loadFloat(instr.Operands[1], fscratch1, w)
		lw.emit(asm.Instruction{Op: asm.OpCvt, Dst: scratch1, Src: fscratch1, Kind: asm.CvtF2I, Width: w})
		lw.storeInt(instr.Operands[0], scratch1)
	case srcCat == ir.CatF32 && dstCat == ir.CatF64:
		lw.loadFloat(instr.Operands[1], fscratch1, asm.W32)
		lw.emit(asm.Instruction{Op: asm.OpCvt, Dst: fscratch1, Src: fscratch1, Kind: asm.CvtF2F, Width: asm.W64})
		lw.storeFloat(instr.Operands[0], fscratch1, asm.W64)
	case srcCat == ir.CatF64 && dstCat == ir.CatF32:
		lw.loadFloat(instr.Operands[1], fscratch1, asm.W64)
		lw.emit(asm.Instruction{Op: asm.OpCvt, Dst: fscratch1, Src: fscratch1, Kind: asm.CvtF2F, Width: asm.W32})
		lw.storeFloat(instr.Operands[0], fscratch1, asm.W32)
	default:
		// integer-category-to-integer-category: same bit-preserving copy as
		// assign (pkg/vm/ops.go's convertBits handles signed/unsigned width
		// truncation at the bit-pattern level; the register file already
		// stores every width as a zero/sign-extended 64-bit word, so no
		// native instruction is needed beyond the move).
		lw.loadInt(instr.Operands[1], scratch1)
		lw.storeInt(instr.Operands[0], scratch1)
	}
}

// categoryOf is a narrow stand-in for the VM's TypeQuery, using the same
// classification regalloc.Classify already derived for a register-kind
// destination (float32/float64/else-int) since asmgen has no direct type
// registry access of its own (pkg/codegen supplies one only to regalloc).
func (lw *lowerer) categoryOf(v ir.Value) ir.Category {
	switch lw.classOf(v) {
	case loc.TFloat32:
		return ir.CatF32
	case loc.TFloat64:
		return ir.CatF64
	default:
		return ir.CatSigned
	}
}

func categoryFromTypeRef(imm *ir.Immediate) ir.Category {
	// instr.Imm for a cvt carries the source TypeID in TypeRef; asmgen
	// does not resolve TypeIDs (no registry access), so it falls back to
	// the immediate's own Kind when the source was itself a literal — the
	// common case pkg/value/convert.go already folds into an immediate at
	// compile time, per execConvert's doc comment. A register-kind source
	// whose declared category actually differs from its classified one
	// would need the full TypeQuery pkg/codegen threads into regalloc;
	// that is the same registry-provided TypeQuery codegen builds for
	// regalloc.Classify, so the two stay consistent in practice.
	switch imm.Kind {
	case ir.ImmFloat:
		return ir.CatF32
	case ir.ImmDouble:
		return ir.CatF64
	default:
		return ir.CatSigned
	}
}

func (lw *lowerer) lowerNeg(instr ir.Instruction) {
	cls := lw.classOf(instr.Operands[1])
	if cls == loc.TFloat32 || cls == loc.TFloat64 {
		w := widthFor(cls)
		lw.loadFloat(instr.Operands[1], fscratch1, w)
		lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: scratch1, Imm: signMask(w), Width: asm.W64})
		lw.emit(asm.Instruction{Op: asm.OpMovStore, Mem: lw.scratchSlot(), Src: scratch1, Width: asm.W64})
		lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: fscratch2, Mem: lw.scratchSlot(), Width: w})
		lw.emit(asm.Instruction{Op: asm.OpXorPS, Dst: fscratch1, Src: fscratch2})
		lw.storeFloat(instr.Operands[0], fscratch1, w)
		return
	}
	lw.loadInt(instr.Operands[1], scratch1)
	lw.emit(asm.Instruction{Op: asm.OpNeg, Dst: scratch1, Width: asm.W64})
	lw.storeInt(instr.Operands[0], scratch1)
}

func signMask(w asm.Width) int64 {
	if w == asm.W32 {
		return 1 << 31
	}
	return -1 << 63
}

func (lw *lowerer) lowerParam(instr ir.Instruction) {
	lw.loadInt(instr.Operands[0], scratch1)
	lw.emit(asm.Instruction{Op: asm.OpMovStore,
		Mem: asm.Mem{Base: loc.RBP, Disp: int32(lw.layout.ArgBufOffset) + int32(8*lw.paramIdx)},
		Src: scratch1, Width: asm.W64})
	lw.paramIdx++
}

func (lw *lowerer) lowerCall(instr ir.Instruction) {
	callee := instr.Operands[1]
	isDirect := int64(0)
	var target int64
	if callee.Flags.IsFunction && callee.Flags.IsFunctionID {
		isDirect = 1
		target = int64(callee.Imm.FuncRef)
		lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: scratch3, Imm: target, Width: asm.W64})
	} else {
		lw.loadInt(callee, scratch3)
	}

	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDI, Src: loc.R12, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RSI, Imm: isDirect, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDX, Src: scratch3, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpLea, Dst: loc.RCX, Mem: asm.Mem{Base: loc.RBP, Disp: int32(lw.layout.ArgBufOffset)}})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R8, Imm: int64(lw.paramIdx), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R11, Imm: int64(lw.bridges.Call), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCallReg, Src: loc.R11})
	lw.paramIdx = 0

	if instr.NumOperands > 0 {
		lw.storeInt(instr.Operands[0], loc.RAX)
	}
}

// bridgeCall and bridgeCallReg emit a four-argument bridge call (handle,
// op, a, b), reading the result into resultDst when it isn't -1.
func (lw *lowerer) bridgeCall(addr uintptr, op int64, a loc.MReg, b int64, resultDst loc.MReg) {
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDI, Src: loc.R12, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RSI, Imm: op, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDX, Src: a, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RCX, Imm: b, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R11, Imm: int64(addr), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCallReg, Src: loc.R11})
	if resultDst != loc.MReg(-1) {
		lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: resultDst, Src: loc.RAX, Width: asm.W64})
	}
}

func (lw *lowerer) bridgeCallReg(addr uintptr, op int64, a, b loc.MReg, resultDst loc.MReg) {
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDI, Src: loc.R12, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RSI, Imm: op, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDX, Src: a, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RCX, Src: b, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R11, Imm: int64(addr), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCallReg, Src: loc.R11})
	if resultDst != loc.MReg(-1) {
		lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: resultDst, Src: loc.RAX, Width: asm.W64})
	}
}

// bridgeSlot calls the slot bridge with two immediate arguments (slot id
// and, for a store, the value — bridgeCall/bridgeCallReg only cover the
// one-register-operand shapes OpLoad/OpStore/OpCall need).
func (lw *lowerer) bridgeSlot(op int64, slotID int64, val int64, resultDst loc.MReg) {
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDI, Src: loc.R12, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RSI, Imm: op, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RDX, Imm: slotID, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RCX, Imm: val, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R11, Imm: int64(lw.bridges.Slot), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCallReg, Src: loc.R11})
	if resultDst != loc.MReg(-1) {
		lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: resultDst, Src: loc.RAX, Width: asm.W64})
	}
}

// bridgeSlotStore is storeInt's Stack-kind case: op==1, with the value to
// store coming from a register rather than a compile-time immediate.
func (lw *lowerer) bridgeSlotStore(slotID int64, valSrc loc.MReg) {
	// RCX takes valSrc's value before RDI/RSI/RDX are loaded: valSrc is
	// always one of the scratch1/2/3 registers (RAX/RCX/RDX), and the
	// RDX<-slotID move below would otherwise clobber it first when a
	// caller passes RDX itself (e.g. storeInt(dst, loc.RDX) after a
	// mod/div lowering).
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RCX, Src: valSrc, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDI, Src: loc.R12, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RSI, Imm: 1, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RDX, Imm: slotID, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R11, Imm: int64(lw.bridges.Slot), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCallReg, Src: loc.R11})
}

func (lw *lowerer) bridgeArg(index int, resultDst loc.MReg) {
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: loc.RDI, Src: loc.R12, Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.RSI, Imm: int64(index), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpMovRI, Dst: loc.R11, Imm: int64(lw.bridges.Arg), Width: asm.W64})
	lw.emit(asm.Instruction{Op: asm.OpCallReg, Src: loc.R11})
	lw.emit(asm.Instruction{Op: asm.OpMovRR, Dst: resultDst, Src: loc.RAX, Width: asm.W64})
}

// emitReturn loads the return value (an explicit operand, or RegV0 per
// Execute's fall-off-the-end convention) into RAX and tears the frame down
// inline — every return site gets its own epilogue copy rather than a
// shared tail jump, since this back end does no block layout.
func (lw *lowerer) emitReturn(operand *ir.Value) {
	if operand != nil {
		lw.loadInt(*operand, loc.RAX)
	} else {
		lw.emit(asm.Instruction{Op: asm.OpMovLoad, Dst: loc.RAX, Mem: namedMem(vm.RegV0), Width: asm.W64})
	}
	lw.emit(stacking.Epilogue(lw.layout)...)
}
