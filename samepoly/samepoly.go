// Package samepoly reduces a batch of claims about the same underlying
// polynomial, asserted at the same point, to a single claim: the
// recombination step every lookup and requantization layer needs before
// handing its claims up to the next layer.
//
// It generalizes the teacher's fixed two-step linear commitment protocol
// (commitment/linear.go: Commit forms A_c·vec, Verify recomputes A_c·vec
// from an opening and compares) from one hardcoded matrix-vector product to
// an arbitrary list of claims merged via a transcript-sampled batching
// vector: the combined evaluation is exactly a (1×n)·(n×1) linear
// combination, and verification is the same recompute-and-compare pattern
// linear.go uses, just over field elements instead of ring polynomials.
package samepoly

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/internal/field"
	"zkmlprove/transcript"
)

// Context carries the shape of the claims being merged.
type Context struct {
	NumVars int
}

// NewContext builds a context for claims over an numVars-variate polynomial.
func NewContext(numVars int) *Context {
	return &Context{NumVars: numVars}
}

func samePoint(f *field.Field, a, b []field.Elem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !f.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Proof is the batched claim plus the coefficients used to derive it.
// Verifier.Verify re-derives the coefficients from its own transcript and
// does not read Coeffs.
type Proof struct {
	Point  []field.Elem
	Eval   field.Elem
	Coeffs []field.Elem
}

// ExtractClaim returns the Proof's batched claim, ready to be handed to the
// next layer up the proving chain.
func (p *Proof) ExtractClaim() claim.Claim[field.Elem] {
	return claim.New(p.Point, p.Eval)
}

func deriveCoeffs(f *field.Field, n int, tr transcript.Transcript) []field.Elem {
	coeffs := make([]field.Elem, n)
	for i := 0; i < n; i++ {
		coeffs[i] = tr.Challenge("samepoly")
	}
	return coeffs
}

func combine(f *field.Field, claims []claim.Claim[field.Elem], coeffs []field.Elem) field.Elem {
	acc := f.Zero()
	for i, c := range claims {
		acc = f.Add(acc, f.Mul(coeffs[i], c.Eval))
	}
	return acc
}

// Prover accumulates claims sharing one evaluation point about a single
// underlying polynomial and batches them into one claim.
type Prover struct {
	f      *field.Field
	claims []claim.Claim[field.Elem]
}

// NewProver builds a Prover over field f.
func NewProver(f *field.Field) *Prover {
	return &Prover{f: f}
}

// AddClaim records a claim to be batched. Every claim added to the same
// Prover must share the same evaluation point.
func (p *Prover) AddClaim(c claim.Claim[field.Elem]) error {
	if len(p.claims) > 0 && !samePoint(p.f, p.claims[0].Point, c.Point) {
		return fmt.Errorf("samepoly: claim point does not match the batch's point")
	}
	p.claims = append(p.claims, c)
	return nil
}

// Prove derives batching coefficients from the transcript and folds every
// accumulated claim into one.
func (p *Prover) Prove(ctx *Context, tr transcript.Transcript) (*Proof, error) {
	if len(p.claims) == 0 {
		return nil, fmt.Errorf("samepoly: no claims to prove")
	}
	coeffs := deriveCoeffs(p.f, len(p.claims), tr)
	return &Proof{
		Point:  p.claims[0].Point,
		Eval:   combine(p.f, p.claims, coeffs),
		Coeffs: coeffs,
	}, nil
}

// Verifier mirrors Prover on the verification side: it accumulates the same
// claims (as surfaced by other components) and checks a Proof against them.
type Verifier struct {
	f      *field.Field
	claims []claim.Claim[field.Elem]
}

// NewVerifier builds a Verifier over field f.
func NewVerifier(f *field.Field) *Verifier {
	return &Verifier{f: f}
}

// AddClaim records a claim to be checked against a batched proof.
func (v *Verifier) AddClaim(c claim.Claim[field.Elem]) error {
	if len(v.claims) > 0 && !samePoint(v.f, v.claims[0].Point, c.Point) {
		return fmt.Errorf("samepoly: claim point does not match the batch's point")
	}
	v.claims = append(v.claims, c)
	return nil
}

// Verify recomputes the batching coefficients from the transcript, checks
// that folding the verifier's own accumulated claims under them reproduces
// the proof's claimed point and evaluation, and, on success, returns the
// proof's batched claim for the caller to carry forward.
func (v *Verifier) Verify(ctx *Context, proof *Proof, tr transcript.Transcript) (claim.Claim[field.Elem], error) {
	if len(v.claims) == 0 {
		return claim.Claim[field.Elem]{}, fmt.Errorf("samepoly: no claims to verify against")
	}
	if !samePoint(v.f, v.claims[0].Point, proof.Point) {
		return claim.Claim[field.Elem]{}, fmt.Errorf("samepoly: proof point does not match the accumulated claims' point")
	}
	coeffs := deriveCoeffs(v.f, len(v.claims), tr)
	expected := combine(v.f, v.claims, coeffs)
	if !v.f.Equal(expected, proof.Eval) {
		return claim.Claim[field.Elem]{}, fmt.Errorf("samepoly: batched evaluation does not match proof")
	}
	return proof.ExtractClaim(), nil
}
