package layer

import (
	"testing"

	"zkmlprove/claim"
	"zkmlprove/internal/field"
	"zkmlprove/tensor"
)

func buildPoolingStepData(f *field.Field) (*Pooling, *StepData) {
	p := &Pooling{Bits: 3}
	x := []field.Element{1, 6, 4, 2}
	y := []field.Element{6, 4}
	stepData := &StepData{
		Inputs:  []*tensor.Tensor[field.Element]{tensor.New([]int{4}, x)},
		Outputs: LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New([]int{2}, y)}},
	}
	return p, stepData
}

func TestPoolingEvaluateMatchesMax(t *testing.T) {
	p := &Pooling{Bits: 3}
	in := tensor.New([]int{4}, []field.Element{1, 6, 4, 2})
	out, err := p.Evaluate([]*tensor.Tensor[field.Element]{in}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []field.Element{6, 4}
	got := out.Outputs[0].GetData()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Evaluate[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if len(out.Outputs[0].Shape()) != 1 || out.Outputs[0].Shape()[0] != 2 {
		t.Fatalf("unexpected output shape %v", out.Outputs[0].Shape())
	}
}

func TestPoolingProveVerifyRoundTrip(t *testing.T) {
	f := testField()
	p, stepData := buildPoolingStepData(f)

	prover := newFakeProver(f)
	if err := p.GenLookupWitness(0, prover.gen, stepData); err != nil {
		t.Fatalf("GenLookupWitness: %v", err)
	}

	ctx := LayerCtx{Kind: KindPooling, Pooling: &PoolingCtx{Pooling: *p, PolyID: 1, NumVars: 1}}
	point := []field.Elem{f.EmbedF(13)}
	lastClaim := claim.New(point, f.EmbedF(77))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	out, err := p.Prove(0, &ctx, lastClaims, stepData, prover)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	pushed, ok := prover.proofs[0]
	if !ok || pushed.Kind != KindPooling || pushed.Pooling == nil {
		t.Fatalf("expected a pooling proof pushed for node 0, got %+v", pushed)
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
