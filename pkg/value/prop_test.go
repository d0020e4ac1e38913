package value

import (
	"testing"

	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// recordingCaller is a Caller stub that records its last invocation and
// returns a fixed result register, for the getProp paths that dispatch
// through a getter/method rather than loading a field directly.
type recordingCaller struct {
	lastCallee ids.FuncID
	lastSelf   *ir.Value
	result     ir.Value
}

func (c *recordingCaller) GenerateCall(b *ir.Builder, callee ids.FuncID, args []ir.Value, self *ir.Value) ir.Value {
	c.lastCallee = callee
	c.lastSelf = self
	return c.result
}

func newPropTestEngine(t *testing.T) (*Engine, *types.Registry, *funcs.Registry, *recordingCaller, ids.TypeID) {
	t.Helper()
	tr := types.NewRegistry()
	fr := funcs.NewRegistry()
	e := NewEngine(tr, fr)
	caller := &recordingCaller{}
	e.SetCaller(caller)

	i32ID, err := tr.Register(&types.Type{Kind: types.KindPlain, Name: "i32", FQN: "i32",
		Meta: types.Meta{Size: 4, IsPrimitive: true, IsIntegral: true}})
	if err != nil {
		t.Fatal(err)
	}
	return e, tr, fr, caller, i32ID
}

func TestGetPropFieldLoadAttachesWriteBackLinks(t *testing.T) {
	e, tr, _, _, i32ID := newPropTestEngine(t)
	pointID, err := tr.Register(&types.Type{Kind: types.KindClass, Name: "Point", FQN: "Point",
		Properties: []types.Property{{Name: "x", Type: i32ID, Offset: 0}}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	self := b.Val(pointID)
	out := e.GetProp(b, sink, self, "x", PropFlags{})
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if out.IsPoison() {
		t.Fatalf("expected a non-poison result")
	}
	if out.SrcSelf == nil || out.SrcSelf.Reg != self.Reg {
		t.Fatalf("expected the loaded field to carry a write-back link to self")
	}

	var loads int
	for _, instr := range fn.Code {
		if instr.Op == ir.OpLoad {
			loads++
		}
	}
	if loads != 2 {
		t.Fatalf("expected a field load to compute the field address then load through it (2 OpLoad), got %d", loads)
	}
}

func TestGetPropAccessorBackedPropertyCallsGetter(t *testing.T) {
	e, tr, fr, caller, i32ID := newPropTestEngine(t)

	getter := fr.Register(&funcs.Function{Name: "getX", SignatureID: ids.NoType})
	pointID, err := tr.Register(&types.Type{Kind: types.KindClass, Name: "Point", FQN: "Point",
		Properties: []types.Property{{Name: "x", Type: i32ID, Getter: getter}}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	caller.result = b.Val(i32ID)
	self := b.Val(pointID)
	out := e.GetProp(b, sink, self, "x", PropFlags{})
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if caller.lastCallee != getter {
		t.Fatalf("expected the getter %d to be invoked, got %d", getter, caller.lastCallee)
	}
	if caller.lastSelf == nil || caller.lastSelf.Reg != self.Reg {
		t.Fatalf("expected the getter to be called against self")
	}
	if out.SrcSelf == nil {
		t.Fatalf("expected the getter result to carry a write-back self link for a later setter call")
	}
}

func TestGetPropMethodBindsSelfWithoutCalling(t *testing.T) {
	e, tr, fr, caller, _ := newPropTestEngine(t)

	method := fr.Register(&funcs.Function{Name: "foo", SignatureID: ids.NoType})
	pointID, err := tr.Register(&types.Type{Kind: types.KindClass, Name: "Point", FQN: "Point",
		Methods: []ids.FuncID{method}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	self := b.Val(pointID)
	out := e.GetProp(b, sink, self, "foo", PropFlags{})
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if !out.Flags.IsFunctionID || out.Imm.FuncRef != method {
		t.Fatalf("expected a bound-method immediate referring to %d, got %+v", method, out)
	}
	if out.SrcSelf == nil || out.SrcSelf.Reg != self.Reg {
		t.Fatalf("expected the bound method to carry self, got %+v", out)
	}
	if caller.lastCallee != 0 {
		t.Fatalf("expected no call to be generated for a bare method reference")
	}
}

func TestGetPropMissingPropertyReportsDiagnostic(t *testing.T) {
	e, tr, _, _, _ := newPropTestEngine(t)
	pointID, err := tr.Register(&types.Type{Kind: types.KindClass, Name: "Point", FQN: "Point"})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	self := b.Val(pointID)
	out := e.GetProp(b, sink, self, "nope", PropFlags{})
	if !sink.HasErrors() {
		t.Fatalf("expected a property-not-found diagnostic")
	}
	if !out.IsPoison() {
		t.Fatalf("expected a poison result")
	}
}

func TestGetPropStaticOnlyRejectsInstanceAccess(t *testing.T) {
	e, tr, _, _, i32ID := newPropTestEngine(t)
	pointID, err := tr.Register(&types.Type{Kind: types.KindClass, Name: "Point", FQN: "Point",
		Properties: []types.Property{{Name: "x", Type: i32ID}}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	self := b.Val(pointID)
	out := e.GetProp(b, sink, self, "x", PropFlags{StaticOnly: true})
	if !sink.HasErrors() {
		t.Fatalf("expected a diagnostic rejecting instance access through StaticOnly")
	}
	if !out.IsPoison() {
		t.Fatalf("expected a poison result")
	}
}

func TestGetPropOnTypeResolvesStaticMember(t *testing.T) {
	e, tr, _, _, i32ID := newPropTestEngine(t)
	pointID, err := tr.Register(&types.Type{Kind: types.KindClass, Name: "Point", FQN: "Point",
		Properties: []types.Property{{Name: "count", Type: i32ID, Flags: types.PropertyFlags{IsStatic: true}}}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	typeVal := ir.ImmTypeVal(pointID)
	out := e.GetProp(b, sink, typeVal, "count", PropFlags{})
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if out.IsPoison() {
		t.Fatalf("expected a non-poison result for a static property accessed through its type")
	}
}

func TestGetPropOnModuleResolvesExport(t *testing.T) {
	e, tr, _, _, _ := newPropTestEngine(t)
	exportID, err := tr.Register(&types.Type{Kind: types.KindPlain, Name: "Widget", FQN: "widgets::Widget",
		Meta: types.Meta{Size: 1}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	moduleVal := ir.ImmModuleVal("widgets")
	out := e.GetProp(b, sink, moduleVal, "Widget", PropFlags{})
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if !out.Flags.IsType || out.Imm.TypeRef != exportID {
		t.Fatalf("expected a type-valued export reference to %d, got %+v", exportID, out)
	}
}
