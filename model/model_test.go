package model

import (
	"testing"

	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/layer"
	"zkmlprove/tensor"
)

func testChain() *Chain {
	return &Chain{Ops: []Operator{
		&layer.Dense{Scale: 1, Bias: 0},
		&layer.Requant{RightShift: 4, Range: 8, AfterRange: 16},
		&layer.Activation{Bits: 4},
		&layer.Pooling{Bits: 4},
		&layer.Flatten{},
	}}
}

func TestChainDeriveContextsKindsAndShapes(t *testing.T) {
	c := testChain()
	nodeCtxs, err := c.DeriveContexts([]int{4})
	if err != nil {
		t.Fatalf("DeriveContexts: %v", err)
	}
	if len(nodeCtxs) != 5 {
		t.Fatalf("expected 5 node contexts, got %d", len(nodeCtxs))
	}
	wantKinds := []layer.Kind{layer.KindDense, layer.KindRequant, layer.KindActivation, layer.KindPooling, layer.KindFlatten}
	for i, want := range wantKinds {
		if nodeCtxs[i].Ctx.Kind != want {
			t.Fatalf("node %d: kind = %v, want %v", i, nodeCtxs[i].Ctx.Kind, want)
		}
		if nodeCtxs[i].Id != i {
			t.Fatalf("node %d: Id = %d, want %d", i, nodeCtxs[i].Id, i)
		}
	}
	// Pooling halves the last dimension; Flatten collapses to one dim.
	poolShapes := nodeCtxs[3].Ctx.OutputShapes([][]int{{4}}, graph.NoPadding)
	if poolShapes[0][0] != 2 {
		t.Fatalf("pooling output shape = %v, want [2]", poolShapes[0])
	}
}

func TestChainEvaluateMatchesHandComputedOutput(t *testing.T) {
	c := testChain()
	x := []field.Element{4, 20, -4, 8}
	trace, err := c.Evaluate(tensor.New([]int{4}, x))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(trace.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(trace.Steps))
	}
	want := []field.Element{1, 0}
	got := trace.Final.GetData()
	if len(got) != len(want) {
		t.Fatalf("final output length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("final output[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestChainEvaluateRejectsOddLengthPoolingInput(t *testing.T) {
	c := &Chain{Ops: []Operator{&layer.Pooling{Bits: 4}}}
	// Pooling requires an even-length input; an odd length must error.
	_, err := c.Evaluate(tensor.New([]int{3}, []field.Element{1, 2, 3}))
	if err == nil {
		t.Fatalf("expected an error for odd-length pooling input")
	}
}
