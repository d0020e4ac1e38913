package stacking

import (
	"github.com/tsvm-lang/tsvm/pkg/asm"
	"github.com/tsvm-lang/tsvm/pkg/loc"
)

// Prologue emits the instructions every native function starts with: save
// the fixed callee-saved set, reserve the frame, load the two
// function-lifetime constants the rest of the body depends on — R15 (the
// VM register file's base address, baked in as an immediate: codegen
// compiles one function at a time against one already-running VM instance,
// whose State is allocated once in vm.NewState and never reallocated, so
// this address is stable for the compiled code's lifetime) and R12 (the
// bridge-call handle, the native entry point's sole incoming argument in
// RDI per the System V AMD64 ABI).
func Prologue(layout Layout, regsBase uint64) []asm.Instruction {
	var code []asm.Instruction
	code = append(code, asm.Instruction{Op: asm.OpPush, Src: loc.RBP})
	code = append(code, asm.Instruction{Op: asm.OpMovRR, Dst: loc.RBP, Src: loc.RSP, Width: asm.W64})
	for _, r := range CalleeSaved[1:] { // RBP already saved above
		code = append(code, asm.Instruction{Op: asm.OpPush, Src: r})
	}
	if layout.FrameSize > 0 {
		code = append(code, asm.Instruction{Op: asm.OpSubImm, Dst: loc.RSP, Imm: layout.FrameSize, Width: asm.W64})
	}
	code = append(code, asm.Instruction{Op: asm.OpMovRI, Dst: loc.R15, Imm: int64(regsBase), Width: asm.W64})
	code = append(code, asm.Instruction{Op: asm.OpMovRR, Dst: loc.R12, Src: loc.RDI, Width: asm.W64})
	return code
}

// Epilogue emits the matching teardown; asmgen appends this in place of
// every OpRet, after moving the return value into RAX.
func Epilogue(layout Layout) []asm.Instruction {
	var code []asm.Instruction
	if layout.FrameSize > 0 {
		code = append(code, asm.Instruction{Op: asm.OpAddImm, Dst: loc.RSP, Imm: layout.FrameSize, Width: asm.W64})
	}
	for i := len(CalleeSaved) - 1; i >= 1; i-- {
		code = append(code, asm.Instruction{Op: asm.OpPop, Dst: CalleeSaved[i]})
	}
	code = append(code, asm.Instruction{Op: asm.OpPop, Dst: loc.RBP})
	code = append(code, asm.Instruction{Op: asm.OpRet})
	return code
}
