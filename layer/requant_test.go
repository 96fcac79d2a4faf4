package layer

import (
	"errors"
	"testing"

	"zkmlprove/claim"
	"zkmlprove/internal/field"
	"zkmlprove/tensor"
)

func testRequant() *Requant {
	return &Requant{RightShift: 4, Range: 8, AfterRange: 16}
}

func TestRequantApplyTable(t *testing.T) {
	r := testRequant()
	cases := []struct {
		e       field.Element
		want    field.Element
		inRange bool
	}{
		{e: 0, want: 0, inRange: true},
		{e: -16, want: -1, inRange: true},
		{e: 16, want: 1, inRange: true},
		{e: 111, want: 6, inRange: true},
		{e: 127, want: 7, inRange: true},
		{e: 128, want: 8, inRange: false}, // 8 > max (7)
	}
	for _, c := range cases {
		got, inRange := r.Apply(c.e)
		if got != c.want {
			t.Fatalf("Apply(%d) = %d, want %d", c.e, got, c.want)
		}
		if inRange != c.inRange {
			t.Fatalf("Apply(%d) inRange = %v, want %v", c.e, inRange, c.inRange)
		}
	}
}

func TestRequantApplyPanicsOnTooNegativeInput(t *testing.T) {
	r := testRequant()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Apply to panic on an offset too small to absorb the input")
		}
	}()
	r.Apply(-1000)
}

func TestRequantApplyPanicsWithMultiplierSet(t *testing.T) {
	r := testRequant()
	m := 1.5
	r.Multiplier = &m
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Apply to panic when Multiplier is set")
		}
	}()
	r.Apply(0)
}

func TestRequantDecomposeLookupFormRecombinesToOriginal(t *testing.T) {
	f := testField()
	r := testRequant()
	for _, e := range []field.Element{0, -16, 16, 111, 127, -10, 5} {
		columns, err := r.Decompose(f, []field.Element{e}, true)
		if err != nil {
			t.Fatalf("Decompose(%d): %v", e, err)
		}
		claims := make([]field.Elem, len(columns))
		for i, col := range columns {
			claims[i] = col[0]
		}
		got := r.Recombine(f, claims, f.One())
		want := f.Lift(e)
		if !f.Equal(got, want) {
			t.Fatalf("Recombine(Decompose(%d, forLookup=true)) = %v, want lift of %d", e, got, e)
		}
	}
}

func TestRequantDecomposeNonLookupColumnZeroMatchesApply(t *testing.T) {
	f := testField()
	r := testRequant()
	for _, e := range []field.Element{0, -16, 16, 111, 127, -10} {
		columns, err := r.Decompose(f, []field.Element{e}, false)
		if err != nil {
			t.Fatalf("Decompose(%d): %v", e, err)
		}
		want, _ := r.Apply(e)
		if !f.Equal(columns[0][0], f.Lift(want)) {
			t.Fatalf("Decompose(%d, forLookup=false) column0 = %v, want lift of Apply result %d", e, columns[0][0], want)
		}
	}
}

func TestRequantDecomposeColumnCount(t *testing.T) {
	f := testField()
	r := testRequant()
	columns, err := r.Decompose(f, []field.Element{0}, true)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(columns) != r.NumColumns() {
		t.Fatalf("Decompose produced %d columns, want %d", len(columns), r.NumColumns())
	}
}

func TestRequantOpPreservesShapeAndCountsOutOfRange(t *testing.T) {
	r := testRequant()
	in := tensor.New([]int{3}, []field.Element{0, 127, 128})
	out, outOfRange, err := r.Op(in)
	if err != nil {
		t.Fatalf("Op: %v", err)
	}
	if out.Shape()[0] != 3 {
		t.Fatalf("Op changed shape: %v", out.Shape())
	}
	if outOfRange != 1 {
		t.Fatalf("expected 1 out-of-range element, got %d", outOfRange)
	}
}

func TestRequantProveVerifyRoundTrip(t *testing.T) {
	f := testField()
	r := testRequant()

	input := []field.Element{0, -16, 16, 111}
	output, _, err := r.Op(tensor.New([]int{4}, input))
	if err != nil {
		t.Fatalf("Op: %v", err)
	}
	stepData := &StepData{
		Inputs:  []*tensor.Tensor[field.Element]{tensor.New([]int{4}, input)},
		Outputs: LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{output}},
	}

	prover := newFakeProver(f)
	if err := r.GenLookupWitness(0, prover.gen, stepData); err != nil {
		t.Fatalf("GenLookupWitness: %v", err)
	}

	ctx := LayerCtx{Kind: KindRequant, Requant: &RequantCtx{Requant: *r, PolyID: 1, NumVars: 2}}
	point := []field.Elem{f.EmbedF(21)}
	lastClaim := claim.New(point, f.EmbedF(55))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	out, err := r.Prove(0, &ctx, lastClaims, stepData, prover)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	pushed, ok := prover.proofs[0]
	if !ok || pushed.Kind != KindRequant || pushed.Requant == nil {
		t.Fatalf("expected a requant proof pushed for node 0, got %+v", pushed)
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

// TestRequantProveRecombinesToPerElementWeightedSum exercises a batch of
// more than one row, where the lookup argument's column claims are each
// already an alpha-fold over every row. It checks Recombine's output
// against the true per-element identity (Σ_i alpha^i * field lift of
// input[i]) rather than against Verify's own recomputation of the same
// formula, so a mismatched affine scaling in Recombine cannot hide behind
// prover/verifier self-consistency.
func TestRequantProveRecombinesToPerElementWeightedSum(t *testing.T) {
	f := testField()
	r := testRequant()

	input := []field.Element{0, -16, 16, 111}
	output, _, err := r.Op(tensor.New([]int{4}, input))
	if err != nil {
		t.Fatalf("Op: %v", err)
	}
	stepData := &StepData{
		Inputs:  []*tensor.Tensor[field.Element]{tensor.New([]int{4}, input)},
		Outputs: LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{output}},
	}

	prover := newFakeProver(f)
	if err := r.GenLookupWitness(0, prover.gen, stepData); err != nil {
		t.Fatalf("GenLookupWitness: %v", err)
	}

	ctx := LayerCtx{Kind: KindRequant, Requant: &RequantCtx{Requant: *r, PolyID: 1, NumVars: 2}}
	point := []field.Elem{f.EmbedF(21)}
	lastClaim := claim.New(point, f.EmbedF(55))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	out, err := r.Prove(0, &ctx, lastClaims, stepData, prover)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	pushed, ok := prover.proofs[0]
	if !ok || pushed.Requant == nil {
		t.Fatalf("expected a requant proof pushed for node 0, got %+v", pushed)
	}

	alpha := pushed.Requant.Lookup.Alpha
	want := f.Zero()
	power := f.One()
	for _, e := range input {
		want = f.Add(want, f.Mul(power, f.Lift(e)))
		power = f.Mul(power, alpha)
	}
	if !f.Equal(out[0].Eval, want) {
		t.Fatalf("Prove over a %d-row batch recombined to %v, want the per-element weighted sum %v", len(input), out[0].Eval, want)
	}
}

func TestRequantVerifyRejectsVariantMismatch(t *testing.T) {
	f := testField()
	r := testRequant()
	ctx := LayerCtx{Kind: KindRequant, Requant: &RequantCtx{Requant: *r, PolyID: 1, NumVars: 1}}
	point := []field.Elem{f.EmbedF(1)}
	lastClaim := claim.New(point, f.EmbedF(1))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	proof := LayerProof{Kind: KindDense, Dense: &DenseProof{}}
	verifier := newFakeVerifier(f, nil)
	if _, err := ctx.Verify(&proof, lastClaims, verifier, nil); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected ErrVariantMismatch, got %v", err)
	}
}
