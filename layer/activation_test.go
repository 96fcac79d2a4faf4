package layer

import (
	"testing"

	"zkmlprove/claim"
	"zkmlprove/internal/field"
	"zkmlprove/tensor"
)

func buildActivationStepData(f *field.Field) (*Activation, *StepData) {
	a := &Activation{Bits: 3}
	x := []field.Element{-3, 2, 5, -1}
	y := []field.Element{0, 2, 5, 0}
	stepData := &StepData{
		Inputs:  []*tensor.Tensor[field.Element]{tensor.New([]int{4}, x)},
		Outputs: LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New([]int{4}, y)}},
	}
	return a, stepData
}

func TestActivationEvaluateMatchesRelu(t *testing.T) {
	a := &Activation{Bits: 3}
	in := tensor.New([]int{4}, []field.Element{-3, 2, 5, -1})
	out, err := a.Evaluate([]*tensor.Tensor[field.Element]{in}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []field.Element{0, 2, 5, 0}
	got := out.Outputs[0].GetData()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Evaluate[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestActivationProveVerifyRoundTrip(t *testing.T) {
	f := testField()
	a, stepData := buildActivationStepData(f)

	prover := newFakeProver(f)
	if err := a.GenLookupWitness(0, prover.gen, stepData); err != nil {
		t.Fatalf("GenLookupWitness: %v", err)
	}

	ctx := LayerCtx{Kind: KindActivation, Activation: &ActivationCtx{Activation: *a, PolyID: 1, NumVars: 2}}
	point := []field.Elem{f.EmbedF(9)}
	lastClaim := claim.New(point, f.EmbedF(100))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	out, err := a.Prove(0, &ctx, lastClaims, stepData, prover)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(out))
	}

	pushed, ok := prover.proofs[0]
	if !ok || pushed.Kind != KindActivation || pushed.Activation == nil {
		t.Fatalf("expected an activation proof pushed for node 0, got %+v", pushed)
	}

	verifier := newFakeVerifier(f, prover.gen.Tables)
	gotClaims, err := ctx.Verify(&pushed, lastClaims, verifier, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !f.Equal(gotClaims[0].Eval, out[0].Eval) {
		t.Fatalf("verify returned eval %v, want %v", gotClaims[0].Eval, out[0].Eval)
	}
}

func TestActivationGenLookupWitnessRejectsLengthMismatch(t *testing.T) {
	f := testField()
	a := &Activation{Bits: 3}
	stepData := &StepData{
		Inputs:  []*tensor.Tensor[field.Element]{tensor.New([]int{3}, []field.Element{1, 2, 3})},
		Outputs: LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New([]int{4}, []field.Element{1, 2, 3, 0})}},
	}
	gen := newFakeProver(f).gen
	if err := a.GenLookupWitness(0, gen, stepData); err == nil {
		t.Fatalf("expected error on input/output length mismatch")
	}
}
