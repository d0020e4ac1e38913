// Package assembler turns a pkg/asm.Function into executable machine code:
// a two-pass x86-64 byte encoder (resolve label offsets, then emit) plus
// the mmap/mprotect-backed executable memory pkg/codegen installs compiled
// functions into (spec.md C9's final "emit native code" stage).
//
// Grounded on other_examples' launix-de-memcp scm-jit.go, the one retrieved
// from-scratch x86-64 JIT in this corpus: its allocExec/makeRX pair (mmap
// PROT_READ|PROT_WRITE, then mprotect to PROT_READ|PROT_EXEC once the code
// is copied in) is the same W^X discipline this package follows, just
// through golang.org/x/sys/unix instead of the raw syscall package scm-jit
// uses, since this module already depends on x/sys/unix for other things
// (pkg/ffi's corpus-mates use it the same way).
package assembler

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tsvm-lang/tsvm/pkg/asm"
	"github.com/tsvm-lang/tsvm/pkg/loc"
)

// Assemble encodes fn's instruction stream into raw machine code.
func Assemble(fn *asm.Function) ([]byte, error) {
	enc := &encoder{}
	offsets, size, err := enc.layout(fn)
	if err != nil {
		return nil, err
	}
	enc.labelOffsets = offsets
	out := make([]byte, 0, size)
	for _, instr := range fn.Code {
		bytes, err := enc.encode(instr, len(out))
		if err != nil {
			return nil, fmt.Errorf("assembler: %s: %w", fn.Name, err)
		}
		out = append(out, bytes...)
	}
	return out, nil
}

// encoder carries the label->byte-offset map a two-pass assembler needs to
// resolve forward jumps: pass one walks the instruction stream computing
// each instruction's encoded length without emitting bytes, pass two
// encodes for real now that every label's final offset is known.
type encoder struct {
	labelOffsets map[asm.Label]int
}

func (enc *encoder) layout(fn *asm.Function) (map[asm.Label]int, int, error) {
	offsets := make(map[asm.Label]int)
	size := 0
	probe := &encoder{labelOffsets: map[asm.Label]int{}}
	for _, instr := range fn.Code {
		if instr.Op == asm.OpLabelDef {
			offsets[instr.Label] = size
			continue
		}
		b, err := probe.encode(instr, size)
		if err != nil {
			return nil, 0, fmt.Errorf("assembler: %s: %w", fn.Name, err)
		}
		size += len(b)
	}
	return offsets, size, nil
}

// rex returns a REX prefix byte (0x40), with W set when w is true and the
// reg/index/base bits a ModRM/SIB encoding needs, given the operand
// registers' upper-bit (r8-r15) extension status.
func rex(w bool, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func regBits(r loc.MReg) byte {
	if r.IsFloat() {
		return byte(r-loc.XMM0) & 7
	}
	return byte(r) & 7
}

func regExt(r loc.MReg) bool {
	if r.IsFloat() {
		return (r - loc.XMM0) >= 8
	}
	return r >= loc.R8 && r <= loc.R15
}

// modrmReg builds a ModRM byte for two register operands (mod==11).
func modrmReg(dst, src loc.MReg) byte {
	return 0xC0 | (regBits(src) << 3) | regBits(dst)
}

// modrmMem builds a ModRM+SIB+disp encoding for [base+disp32] addressing —
// the only addressing mode this back end's Mem operand needs.
func modrmMem(reg loc.MReg, m asm.Mem) []byte {
	base := regBits(m.Base)
	var out []byte
	mod := byte(0x80) // disp32, unconditionally: asmgen's offsets are not
	// known to fit in disp8 at encode time without a second sizing pass,
	// and a disp32 encoding is always correct even when wasteful.
	if base == 4 { // RSP/R12 as a base needs a SIB byte
		out = append(out, mod|(regBits(reg)<<3)|4, 0x24)
	} else {
		out = append(out, mod|(regBits(reg)<<3)|base)
	}
	out = append(out, le32(m.Disp)...)
	return out
}

func le32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64(v int64) []byte {
	u := uint64(v)
	out := make([]byte, 8)
	for i := range out {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

func needsRexExt(regs ...loc.MReg) bool {
	for _, r := range regs {
		if regExt(r) {
			return true
		}
	}
	return false
}

// encode emits instr's machine code. pos is instr's own byte offset,
// needed for OpJmp/OpJcc's relative displacement (computed against the
// label table already resolved by layout's first pass).
func (enc *encoder) encode(instr asm.Instruction, pos int) ([]byte, error) {
	switch instr.Op {
	case asm.OpNoop, asm.OpLabelDef:
		return nil, nil

	case asm.OpMovRR:
		if instr.Dst.IsFloat() || instr.Src.IsFloat() {
			return sseRR(0xF2, 0x10, instr.Src, instr.Dst, instr.Width), nil // movsd/movss xmm,xmm
		}
		return gpRR(0x89, instr.Dst, instr.Src), nil // mov r/m(dst),reg(src)

	case asm.OpMovRI:
		return movRI(instr.Dst, instr.Imm, instr.Width), nil
	case asm.OpMovLoad:
		return movMem(instr.Dst, instr.Mem, instr.Width, true), nil
	case asm.OpMovStore:
		return movMem(instr.Src, instr.Mem, instr.Width, false), nil
	case asm.OpLea:
		return leaMem(instr.Dst, instr.Mem), nil

	case asm.OpAdd:
		return gpRR(0x01, instr.Dst, instr.Src), nil
	case asm.OpSub:
		return gpRR(0x29, instr.Dst, instr.Src), nil
	case asm.OpAddImm:
		return aluImm(0x00, instr.Dst, instr.Imm), nil
	case asm.OpSubImm:
		return aluImm(0x05, instr.Dst, instr.Imm), nil
	case asm.OpIMul:
		return imulRR(instr.Dst, instr.Src), nil
	case asm.OpAnd:
		return gpRR(0x21, instr.Dst, instr.Src), nil
	case asm.OpOr:
		return gpRR(0x09, instr.Dst, instr.Src), nil
	case asm.OpXor:
		return gpRR(0x31, instr.Dst, instr.Src), nil
	case asm.OpShl:
		return shiftCL(4, instr.Dst), nil
	case asm.OpShr:
		return shiftCL(5, instr.Dst), nil
	case asm.OpSar:
		return shiftCL(7, instr.Dst), nil
	case asm.OpNeg:
		return unaryF7(3, instr.Dst), nil
	case asm.OpNot:
		return unaryF7(2, instr.Dst), nil

	case asm.OpCqo:
		return []byte{0x48, 0x99}, nil
	case asm.OpZeroRDX:
		return gpRR(0x31, loc.RDX, loc.RDX), nil
	case asm.OpIDiv:
		return unaryF7(7, instr.Src), nil
	case asm.OpDiv:
		return unaryF7(6, instr.Src), nil

	case asm.OpAddF:
		return sseRR(fpPrefix(instr.Width), 0x58, instr.Src, instr.Dst, instr.Width), nil
	case asm.OpSubF:
		return sseRR(fpPrefix(instr.Width), 0x5C, instr.Src, instr.Dst, instr.Width), nil
	case asm.OpMulF:
		return sseRR(fpPrefix(instr.Width), 0x59, instr.Src, instr.Dst, instr.Width), nil
	case asm.OpDivF:
		return sseRR(fpPrefix(instr.Width), 0x5E, instr.Src, instr.Dst, instr.Width), nil
	case asm.OpXorPS:
		return xorps(instr.Dst, instr.Src), nil

	case asm.OpCmp:
		return gpRR(0x39, instr.Src, instr.Src2), nil
	case asm.OpUComiF:
		return ucomi(instr.Src, instr.Src2, instr.Width), nil
	case asm.OpSetCC:
		return setcc(instr.Cond, instr.Dst), nil
	case asm.OpMovzxB:
		return movzxB(instr.Dst), nil

	case asm.OpCvt:
		return cvt(instr), nil

	case asm.OpJmp:
		return jmpRel(pos, enc.labelOffsets[instr.Target]), nil
	case asm.OpJcc:
		return jccRel(instr.Cond, pos, enc.labelOffsets[instr.Target]), nil
	case asm.OpCallReg:
		return callReg(instr.Src), nil
	case asm.OpRet:
		return []byte{0xC3}, nil
	case asm.OpPush:
		return pushReg(instr.Src), nil
	case asm.OpPop:
		return popReg(instr.Dst), nil
	}
	return nil, fmt.Errorf("unencodable op %d", instr.Op)
}

// gpRR encodes a two-register r/m,reg-form ALU or mov instruction: rm is
// the r/m-field operand (read and, for ALU ops, written in place — the
// two-address destination), reg is the reg-field operand (the unmodified
// second source).
func gpRR(opcode byte, rm, reg loc.MReg) []byte {
	return []byte{rex(true, regExt(reg), false, regExt(rm)), opcode, modrmReg(rm, reg)}
}

func aluImm(subOpcode byte, dst loc.MReg, imm int64) []byte {
	out := []byte{rex(true, false, false, regExt(dst)), 0x81, 0xC0 | (alu81Reg(subOpcode) << 3) | regBits(dst)}
	return append(out, le32(int32(imm))...)
}

// alu81Reg maps our {add,sub}Imm selector to opcode-0x81's /digit field
// (add=/0, or=/1, adc=/2, sbb=/3, and=/4, sub=/5, xor=/6, cmp=/7).
func alu81Reg(sel byte) byte {
	if sel == 0x05 {
		return 5 // sub
	}
	return 0 // add
}

func imulRR(dst, src loc.MReg) []byte {
	return []byte{rex(true, regExt(dst), false, regExt(src)), 0x0F, 0xAF, modrmReg(src, dst)}
}

func shiftCL(digit byte, dst loc.MReg) []byte {
	return []byte{rex(true, false, false, regExt(dst)), 0xD3, 0xC0 | (digit << 3) | regBits(dst)}
}

func unaryF7(digit byte, r loc.MReg) []byte {
	return []byte{rex(true, false, false, regExt(r)), 0xF7, 0xC0 | (digit << 3) | regBits(r)}
}

func movRI(dst loc.MReg, imm int64, w asm.Width) []byte {
	if w == asm.W64 {
		out := []byte{rex(true, false, false, regExt(dst)), 0xB8 | regBits(dst)}
		return append(out, le64(imm)...)
	}
	out := []byte{0xB8 | regBits(dst)}
	if regExt(dst) {
		out = append([]byte{rex(false, false, false, true)}, out...)
	}
	return append(out, le32(int32(imm))...)
}

func movMem(reg loc.MReg, m asm.Mem, w asm.Width, load bool) []byte {
	if reg.IsFloat() {
		prefix := fpPrefix(w)
		opcode := byte(0x11) // movsd/movss xmm->mem (store)
		if load {
			opcode = 0x10 // mem->xmm (load)
		}
		out := []byte{prefix, 0x0F, opcode}
		if needsRexExt(reg, m.Base) {
			out = append([]byte{rex(false, regExt(reg), false, regExt(m.Base))}, out...)
		}
		return append(out, modrmMem(reg, m)...)
	}
	opcode := byte(0x8B) // mov r,r/m (load)
	if !load {
		opcode = 0x89 // mov r/m,r (store)
	}
	out := []byte{rex(w == asm.W64, regExt(reg), false, regExt(m.Base)), opcode}
	return append(out, modrmMem(reg, m)...)
}

func leaMem(dst loc.MReg, m asm.Mem) []byte {
	out := []byte{rex(true, regExt(dst), false, regExt(m.Base)), 0x8D}
	return append(out, modrmMem(dst, m)...)
}

func fpPrefix(w asm.Width) byte {
	if w == asm.W32 {
		return 0xF3 // ss
	}
	return 0xF2 // sd
}

func sseRR(prefix, opcode byte, src, dst loc.MReg, w asm.Width) []byte {
	_ = w
	out := []byte{prefix, 0x0F, opcode}
	if needsRexExt(dst, src) {
		out = append([]byte{rex(false, regExt(dst), false, regExt(src))}, out...)
	}
	return append(out, modrmReg(src, dst)...)
}

func xorps(dst, src loc.MReg) []byte {
	out := []byte{0x0F, 0x57}
	if needsRexExt(dst, src) {
		out = append([]byte{rex(false, regExt(dst), false, regExt(src))}, out...)
	}
	return append(out, modrmReg(src, dst)...)
}

func ucomi(a, b loc.MReg, w asm.Width) []byte {
	prefix := byte(0x66) // ucomisd needs 66 0F 2E; ucomiss is bare 0F 2E
	if w == asm.W32 {
		var out []byte
		if needsRexExt(a, b) {
			out = append(out, rex(false, regExt(a), false, regExt(b)))
		}
		return append(append(out, 0x0F, 0x2E), modrmReg(b, a)...)
	}
	out := []byte{prefix}
	if needsRexExt(a, b) {
		out = append(out, rex(false, regExt(a), false, regExt(b)))
	}
	return append(append(out, 0x0F, 0x2E), modrmReg(b, a)...)
}

func setcc(cond asm.Cond, dst loc.MReg) []byte {
	cc := ccCode(cond)
	out := []byte{}
	if regExt(dst) {
		out = append(out, rex(false, false, false, true))
	}
	return append(out, 0x0F, 0x90|cc, 0xC0|regBits(dst))
}

func movzxB(dst loc.MReg) []byte {
	return []byte{rex(true, regExt(dst), false, regExt(dst)), 0x0F, 0xB6, modrmReg(dst, dst)}
}

func ccCode(cond asm.Cond) byte {
	switch cond {
	case asm.CondEQ:
		return 0x4
	case asm.CondNE:
		return 0x5
	case asm.CondLT:
		return 0xC
	case asm.CondLE:
		return 0xE
	case asm.CondGT:
		return 0xF
	case asm.CondGE:
		return 0xD
	case asm.CondB:
		return 0x2
	case asm.CondBE:
		return 0x6
	case asm.CondA:
		return 0x7
	case asm.CondAE:
		return 0x3
	case asm.CondP:
		return 0xA
	}
	return 0x4
}

func cvt(instr asm.Instruction) []byte {
	switch instr.Kind {
	case asm.CvtI2F:
		prefix := fpPrefix(instr.Width)
		out := []byte{prefix, rex(true, regExt(instr.Dst), false, regExt(instr.Src)), 0x0F, 0x2A}
		return append(out, modrmReg(instr.Src, instr.Dst)...)
	case asm.CvtF2I:
		prefix := byte(0xF3)
		if instr.Width == asm.W64 {
			prefix = 0xF2
		}
		out := []byte{prefix, rex(true, regExt(instr.Dst), false, regExt(instr.Src)), 0x0F, 0x2C}
		return append(out, modrmReg(instr.Src, instr.Dst)...)
	case asm.CvtF2F:
		// Width here names the DESTINATION width: narrowing (f64->f32, W32)
		// uses F2 0F 5A (cvtsd2ss); widening (f32->f64, W64) uses F3 0F 5A
		// (cvtss2sd).
		prefix := byte(0xF3)
		if instr.Width == asm.W32 {
			prefix = 0xF2
		}
		out := []byte{prefix}
		if needsRexExt(instr.Dst, instr.Src) {
			out = append(out, rex(false, regExt(instr.Dst), false, regExt(instr.Src)))
		}
		out = append(out, 0x0F, 0x5A)
		return append(out, modrmReg(instr.Src, instr.Dst)...)
	}
	return nil
}

func jmpRel(pos, target int) []byte {
	out := []byte{0xE9}
	rel := int32(target - (pos + 5))
	return append(out, le32(rel)...)
}

func jccRel(cond asm.Cond, pos, target int) []byte {
	out := []byte{0x0F, 0x80 | ccCode(cond)}
	rel := int32(target - (pos + 6))
	return append(out, le32(rel)...)
}

func callReg(r loc.MReg) []byte {
	out := []byte{}
	if regExt(r) {
		out = append(out, rex(false, false, false, true))
	}
	return append(out, 0xFF, 0xD0|regBits(r))
}

func pushReg(r loc.MReg) []byte {
	out := []byte{}
	if regExt(r) {
		out = append(out, rex(false, false, false, true))
	}
	return append(out, 0x50|regBits(r))
}

func popReg(r loc.MReg) []byte {
	out := []byte{}
	if regExt(r) {
		out = append(out, rex(false, false, false, true))
	}
	return append(out, 0x58|regBits(r))
}

// ExecutableMemory is a page of RX-mapped memory holding one function's
// encoded machine code, freed by Close.
type ExecutableMemory struct {
	mem  []byte
	Addr uintptr
}

// MapExecutable copies code into a fresh mmap'd page, then mprotects it
// RX — matching other_examples' scm-jit.go allocExec/makeRX split: write
// while writable, then flip to executable, never both at once.
func MapExecutable(code []byte) (*ExecutableMemory, error) {
	size := pageAlign(len(code))
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("assembler: mmap: %w", err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("assembler: mprotect: %w", err)
	}
	return &ExecutableMemory{mem: mem, Addr: firstAddr(mem)}, nil
}

// Close unmaps the executable page. Callers must not invoke the compiled
// function again afterward.
func (e *ExecutableMemory) Close() error { return unix.Munmap(e.mem) }

func pageAlign(n int) int {
	page := unix.Getpagesize()
	return (n + page - 1) &^ (page - 1)
}

func firstAddr(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mem[0]))
}
