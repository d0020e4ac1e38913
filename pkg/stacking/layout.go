// Package stacking synthesizes a native function's prologue/epilogue and
// computes its frame size (spec.md C9, the "activation record layout"
// stage of the native back-end pipeline).
//
// The teacher's own pkg/stacking computes a CompCert-style frame with a
// callee-save area, a local-variable area and an outgoing-argument area,
// because its Linear IR spills virtual registers into stack slots under
// register pressure. This back end never spills a virtual register to a
// native stack slot at all — pkg/regalloc's doc comment explains why: this
// project's virtual registers already live one-to-one in the VM's shared
// register file, addressed through a fixed base-pointer register, the same
// way the interpreter addresses them. So the only things a native frame
// needs are: the fixed set of callee-saved registers asmgen/codegen always
// use (so their values survive across the bridge calls a function body
// makes) and a small scratch buffer for OpParam's pending-argument
// accumulation ahead of an OpCall.
package stacking

import "github.com/tsvm-lang/tsvm/pkg/loc"

// CalleeSaved is the fixed set of registers every native function's
// prologue preserves and epilogue restores, regardless of whether the
// function body actually uses all of them — a deliberate simplification
// of the teacher's per-function liveness-driven callee-save set (kept
// here as four registers, an even count, echoing the teacher's own
// "round up to even number for paired stores" layout comment, though this
// back end has no paired-store instruction to exploit it with): RBP (frame
// pointer), RBX (unused but kept for a round push count), R12 (the
// bridge-call handle, spec.md §4.10/C9's call dispatch), and R15 (the
// pointer to the VM's register file, spec.md §4.8).
var CalleeSaved = []loc.MReg{loc.RBP, loc.RBX, loc.R12, loc.R15}

// pushBytes is the stack space CalleeSaved's pushes occupy, including the
// frame-pointer push.
var pushBytes = int64(len(CalleeSaved)) * 8

// Layout is a compiled function's frame description.
type Layout struct {
	// ArgBufBytes is the scratch buffer size reserved for OpParam
	// accumulation: 8 bytes per argument slot, sized to the call site with
	// the most arguments in the function.
	ArgBufBytes int64

	// ArgBufOffset is the buffer's offset from RBP (negative: RBP-relative,
	// below the saved registers). RBP points at the saved RBP, so the
	// buffer starts FrameSize bytes below the last callee-saved push, at
	// the RSP the prologue leaves.
	ArgBufOffset int64

	// FrameSize is the `sub rsp, FrameSize` the prologue emits, chosen so
	// that RSP is 16-byte aligned immediately before every CALL instruction
	// the function body issues (System V AMD64 ABI requirement): entry
	// state has RSP%16==8 (the return address the caller's CALL pushed),
	// CalleeSaved's pushes add pushBytes (a multiple of 16, preserving that
	// residue), so FrameSize must itself be ≡8 (mod 16).
	FrameSize int64
}

// maxParamArity bounds the pending-argument buffer the same way
// pkg/ffi.maxWrapperArgs bounds wrapper arity — a fixed ceiling rather than
// a dynamically resized buffer, since a native frame's size is fixed at
// compile time.
const maxParamArity = 16

// ComputeLayout sizes a frame for maxArgs, the largest number of
// consecutive OpParam instructions preceding any OpCall in the function
// (computed by pkg/codegen's maxParamArity scan over fn.Code).
func ComputeLayout(maxArgs int) Layout {
	if maxArgs > maxParamArity {
		maxArgs = maxParamArity
	}
	argBuf := int64(maxArgs) * 8

	frame := align16(argBuf)
	if frame%16 == 0 {
		frame += 8 // bring (pushBytes(≡0 mod16) + 8-entry-residue + frame) to ≡0 mod 16 before a call
	}

	return Layout{
		ArgBufBytes:  argBuf,
		ArgBufOffset: -(pushBytes - 8 + frame),
		FrameSize:    frame,
	}
}

func align16(n int64) int64 {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}
