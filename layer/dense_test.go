package layer

import (
	"errors"
	"testing"

	"zkmlprove/claim"
	"zkmlprove/internal/field"
)

func TestDenseProveVerifyRoundTrip(t *testing.T) {
	f := testField()
	d := Dense{Scale: 3, Bias: 5}
	ctx := LayerCtx{Kind: KindDense, Dense: &DenseCtx{Dense: d, PolyID: 1}}

	point := []field.Elem{f.EmbedF(7)}
	lastClaim := claim.New(point, f.EmbedF(35)) // 3*10+5 = 35
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	prover := newFakeProver(f)
	out, err := d.Prove(0, &ctx, lastClaims, nil, prover)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(out))
	}
	want := f.EmbedF(10)
	if !f.Equal(out[0].Eval, want) {
		t.Fatalf("input claim eval = %v, want %v", out[0].Eval, want)
	}

	pushed, ok := prover.proofs[0]
	if !ok {
		t.Fatalf("expected a proof to be pushed for node 0")
	}
	if pushed.Kind != KindDense || pushed.Dense == nil {
		t.Fatalf("pushed proof has wrong shape: %+v", pushed)
	}

	verifier := newFakeVerifier(f, nil)
	gotClaims, err := ctx.Verify(&pushed, lastClaims, verifier, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !f.Equal(gotClaims[0].Eval, want) {
		t.Fatalf("verify returned eval %v, want %v", gotClaims[0].Eval, want)
	}
}

func TestDenseVerifyRejectsTamperedClaim(t *testing.T) {
	f := testField()
	d := Dense{Scale: 3, Bias: 5}
	ctx := LayerCtx{Kind: KindDense, Dense: &DenseCtx{Dense: d, PolyID: 1}}

	point := []field.Elem{f.EmbedF(7)}
	lastClaim := claim.New(point, f.EmbedF(35))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	proof := LayerProof{Kind: KindDense, Dense: &DenseProof{InputClaim: claim.New(point, f.EmbedF(11))}}
	verifier := newFakeVerifier(f, nil)
	if _, err := ctx.Verify(&proof, lastClaims, verifier, nil); err == nil {
		t.Fatalf("expected Verify to reject a tampered input claim")
	}
}

func TestDenseVerifyRejectsVariantMismatch(t *testing.T) {
	f := testField()
	ctx := LayerCtx{Kind: KindDense, Dense: &DenseCtx{Dense: Dense{Scale: 1, Bias: 0}, PolyID: 1}}
	point := []field.Elem{f.EmbedF(1)}
	lastClaim := claim.New(point, f.EmbedF(1))
	lastClaims := []*claim.Claim[field.Elem]{&lastClaim}

	proof := LayerProof{Kind: KindRequant, Requant: &RequantProof{}}
	verifier := newFakeVerifier(f, nil)
	if _, err := ctx.Verify(&proof, lastClaims, verifier, nil); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected ErrVariantMismatch, got %v", err)
	}
}
