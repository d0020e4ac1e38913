package codegen

import (
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/vm"
)

// fakeProgram/fakeHost/fakeTypes mirror pkg/vm/interp_test.go's own
// adapters: this package needs a live *vm.VM to build a Compiler against,
// the same way the interpreter's own tests build one without a real
// pkg/module/pkg/ffi/pkg/types wiring.
type fakeProgram struct{ fns map[ids.FuncID]*ir.Function }

func (p fakeProgram) Function(id ids.FuncID) (*ir.Function, bool) { fn, ok := p.fns[id]; return fn, ok }

type fakeHost struct{}

func (fakeHost) Call(w *funcs.WrappedFunction, args []uint64) (uint64, error) { return 0, nil }

const i32ID ids.TypeID = 1

type fakeTypes struct{}

func (fakeTypes) CategoryOf(t ids.TypeID) ir.Category {
	if t == i32ID {
		return ir.CatSigned
	}
	return ir.CatNone
}

func (fakeTypes) WidthOf(ids.TypeID) int { return 8 }

func newTestCompiler(t *testing.T) (*Compiler, *vm.VM) {
	t.Helper()
	v := vm.New(4096, funcs.NewRegistry(), fakeProgram{fns: map[ids.FuncID]*ir.Function{}}, fakeHost{}, fakeTypes{})
	c, err := NewCompiler(v, fakeTypes{})
	if err != nil {
		t.Fatalf("NewCompiler: %v", err)
	}
	return c, v
}

// buildAdd builds `fn(a, b) { return a + b }`, the simplest function that
// exercises argument binding, GP arithmetic and the return path together.
func buildAdd() *ir.Function {
	fn := ir.NewFunction("add", "m", 0, 0)
	b := ir.NewBuilder(fn)
	x := b.Val(i32ID)
	y := b.Val(i32ID)
	dst := b.Val(i32ID)
	fn.Args = []ir.Value{x, y}
	b.Add(ir.OpIAdd).Operand(dst).Operand(x).Operand(y).Commit()
	b.Add(ir.OpRet).Operand(dst).Commit()
	return fn
}

func TestCompileAndInvokeRunsIntegerAddNatively(t *testing.T) {
	c, _ := newTestCompiler(t)
	fn := buildAdd()

	exe, err := c.Compile(fn)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer exe.Close()

	result, err := exe.Invoke([]uint64{7, 35})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != 42 {
		t.Errorf("add(7, 35) = %d, want 42 (this exercises the gpRR ModRM fix: a miscompiled add would leave the stale source register unstored)", result)
	}
}

// buildSub builds `fn(a, b) { return a - b }`, which is order-sensitive in
// a way add alone is not: a reversed rm/reg role would silently compute
// b-a, or leave a's register untouched entirely.
func buildSub() *ir.Function {
	fn := ir.NewFunction("sub", "m", 0, 0)
	b := ir.NewBuilder(fn)
	x := b.Val(i32ID)
	y := b.Val(i32ID)
	dst := b.Val(i32ID)
	fn.Args = []ir.Value{x, y}
	b.Add(ir.OpISub).Operand(dst).Operand(x).Operand(y).Commit()
	b.Add(ir.OpRet).Operand(dst).Commit()
	return fn
}

func TestCompileAndInvokeRunsIntegerSubWithCorrectOperandOrder(t *testing.T) {
	c, _ := newTestCompiler(t)
	fn := buildSub()

	exe, err := c.Compile(fn)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer exe.Close()

	result, err := exe.Invoke([]uint64{100, 37})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != 63 {
		t.Errorf("sub(100, 37) = %d, want 63 (100-37, not 37-100 or an unmodified operand)", result)
	}
}

func TestCompileAndInvokeRunsIntegerCompare(t *testing.T) {
	c, _ := newTestCompiler(t)
	fn := ir.NewFunction("lt", "m", 0, 0)
	b := ir.NewBuilder(fn)
	x := b.Val(i32ID)
	y := b.Val(i32ID)
	dst := b.Val(i32ID)
	fn.Args = []ir.Value{x, y}
	b.Add(ir.OpILt).Operand(dst).Operand(x).Operand(y).Commit()
	b.Add(ir.OpRet).Operand(dst).Commit()

	exe, err := c.Compile(fn)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer exe.Close()

	lt, err := exe.Invoke([]uint64{3, 5})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if lt != 1 {
		t.Errorf("lt(3, 5) = %d, want 1", lt)
	}

	ge, err := exe.Invoke([]uint64{5, 3})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if ge != 0 {
		t.Errorf("lt(5, 3) = %d, want 0", ge)
	}
}

func TestInvokeReportsBridgeErrorFromAnOutOfBoundsLoad(t *testing.T) {
	c, _ := newTestCompiler(t)
	fn := ir.NewFunction("badload", "m", 0, 0)
	b := ir.NewBuilder(fn)
	dst := b.Val(i32ID)
	addr := b.Val(i32ID)
	fn.Args = []ir.Value{addr}
	b.Add(ir.OpLoad).Operand(dst).Operand(addr).Commit()
	b.Add(ir.OpRet).Operand(dst).Commit()

	exe, err := c.Compile(fn)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer exe.Close()

	if _, err := exe.Invoke([]uint64{0xffffffffffff0000}); err == nil {
		t.Errorf("expected an error loading from a wild address, got none")
	}
}

func TestMaxParamArityCountsTheLargestRunBeforeACall(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	fn.Code = []ir.Instruction{
		{Op: ir.OpParam}, {Op: ir.OpParam}, {Op: ir.OpParam},
		{Op: ir.OpCall},
		{Op: ir.OpParam},
		{Op: ir.OpCall},
	}
	if got := maxParamArity(fn); got != 3 {
		t.Errorf("maxParamArity = %d, want 3 (the first run, the largest)", got)
	}
}
