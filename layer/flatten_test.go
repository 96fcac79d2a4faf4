package layer

import (
	"testing"

	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/tensor"
)

func TestFlattenEvaluateReshapes(t *testing.T) {
	fl := &Flatten{}
	in := tensor.New([]int{2, 3}, []field.Element{1, 2, 3, 4, 5, 6})
	out, err := fl.Evaluate([]*tensor.Tensor[field.Element]{in}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	shape := out.Outputs[0].Shape()
	if len(shape) != 1 || shape[0] != 6 {
		t.Fatalf("unexpected output shape %v", shape)
	}
	got := out.Outputs[0].GetData()
	want := []field.Element{1, 2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("data[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFlattenOutputShapes(t *testing.T) {
	fl := &Flatten{}
	out := fl.OutputShapes([][]int{{2, 3, 4}}, graph.NoPadding)
	if len(out) != 1 || len(out[0]) != 1 || out[0][0] != 24 {
		t.Fatalf("unexpected output shapes %v", out)
	}
}

func TestFlattenIsNotProvable(t *testing.T) {
	fl := &Flatten{}
	if fl.IsProvable() {
		t.Fatalf("expected Flatten to be non-provable")
	}
	ctx := LayerCtx{Kind: KindFlatten, Flatten: &FlattenCtx{PolyID: 0}}
	claims, err := ctx.Verify(&LayerProof{Kind: KindFlatten}, nil, nil, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected default single claim, got %d", len(claims))
	}
}

func TestFlattenGenLookupWitnessIsNoop(t *testing.T) {
	fl := &Flatten{}
	f := field.NewDegreeOne(2147483647)
	gen := newFakeProver(f).gen
	if err := fl.GenLookupWitness(0, gen, nil); err != nil {
		t.Fatalf("GenLookupWitness: %v", err)
	}
}
