package module

import (
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

func buildTestModule() (*Module, ids.TypeID, ids.TypeID, ids.FuncID) {
	i32ID := ids.HashFQN("i32")
	sigID := ids.HashFQN("add#sig")
	const encodedFuncID ids.FuncID = 55

	fn := ir.NewFunction("add", "test", sigID, 0)
	fn.Code = []ir.Instruction{{Op: ir.OpRet, NumOperands: 1,
		Operands: [3]ir.Value{ir.ImmIntVal(42, i32ID)}}}

	m := &Module{
		Name: "test",
		Types: []TypeEntry{
			{ID: i32ID, Kind: types.KindPlain, Name: "i32", FQN: "i32",
				Meta: types.Meta{Size: 4, IsPrimitive: true, IsIntegral: true}},
			{ID: sigID, Kind: types.KindFunctionSignature, Name: "add#sig", FQN: "add#sig",
				Signature: &types.Signature{Return: i32ID, Args: []types.Argument{
					{Type: i32ID, Kind: types.ArgExplicit}, {Type: i32ID, Kind: types.ArgExplicit},
				}}},
		},
		Functions: []FuncEntry{
			{ID: encodedFuncID, Name: "add", SignatureID: sigID},
		},
		Code: map[ids.FuncID]*ir.Function{encodedFuncID: fn},
		Data: []DataSlot{{Name: "counter", Type: i32ID, Init: []byte{0, 0, 0, 0}}},
	}
	return m, i32ID, sigID, encodedFuncID
}

func TestSerializeDeserializeRoundTripsModuleShape(t *testing.T) {
	m, i32ID, sigID, encodedFuncID := buildTestModule()

	data, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	tr := types.NewRegistry()
	fr := funcs.NewRegistry()
	got, err := Deserialize(data, tr, fr)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.Name != "test" {
		t.Errorf("Name = %q, want %q", got.Name, "test")
	}
	if len(got.Types) != 2 || len(got.Functions) != 1 || len(got.Data) != 1 {
		t.Fatalf("unexpected table sizes: %+v", got)
	}
	if got.Data[0].Name != "counter" || got.Data[0].Type != i32ID {
		t.Errorf("unexpected data slot: %+v", got.Data[0])
	}

	gotFn, ok := got.Code[encodedFuncID]
	if !ok || len(gotFn.Code) != 1 || gotFn.Code[0].Op != ir.OpRet {
		t.Fatalf("expected the code section to round-trip the function body, got %+v", got.Code)
	}

	i32, ok := tr.GetByFQN("i32")
	if !ok || i32.Meta.Size != 4 || !i32.Meta.IsPrimitive {
		t.Fatalf("expected i32 to be registered into the type registry, got %+v", i32)
	}
	sig, ok := tr.GetByFQN("add#sig")
	if !ok || sig.Kind != types.KindFunctionSignature || sig.Signature == nil {
		t.Fatalf("expected add#sig to be registered as a function-signature type, got %+v", sig)
	}
	if sig.Signature.Return != i32ID || len(sig.Signature.Args) != 2 {
		t.Fatalf("expected the signature's return/args to round-trip, got %+v", sig.Signature)
	}

	// The function registry assigns its own monotonic id (spec.md §9's
	// cross-module identity guarantee); a fresh registry's first
	// registration gets id 1.
	newFuncID := ids.FuncID(1)
	if fr.Name(newFuncID) != "add" {
		t.Fatalf("expected function %d to be named add, got %q", newFuncID, fr.Name(newFuncID))
	}
	if fr.SignatureID(newFuncID) != sigID {
		t.Fatalf("expected the function's signature id to resolve to the registered signature type, got %d want %d",
			fr.SignatureID(newFuncID), sigID)
	}
}

func TestDeserializeRejectsGarbageInput(t *testing.T) {
	tr := types.NewRegistry()
	fr := funcs.NewRegistry()
	if _, err := Deserialize([]byte("not a gob stream"), tr, fr); err == nil {
		t.Fatalf("expected an error decoding a non-gob byte stream")
	}
}

func TestDeserializeIsIdempotentAcrossTwoModulesSharingAType(t *testing.T) {
	m, i32ID, _, _ := buildTestModule()
	data, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	tr := types.NewRegistry()
	fr := funcs.NewRegistry()
	if _, err := Deserialize(data, tr, fr); err != nil {
		t.Fatalf("first Deserialize: %v", err)
	}
	if _, err := Deserialize(data, tr, fr); err != nil {
		t.Fatalf("second Deserialize: %v", err)
	}

	i32, ok := tr.GetByFQN("i32")
	if !ok || i32.ID != i32ID {
		t.Fatalf("expected re-registering the same FQN to resolve to the same type id, got %+v", i32)
	}
}
