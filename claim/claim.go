// Package claim defines the single currency exchanged between every proving
// and verification step: an assertion that some multilinear polynomial
// evaluates to a given value at a given point.
package claim

// Claim asserts that some multilinear polynomial evaluates to Eval at Point.
type Claim[E any] struct {
	Point []E
	Eval  E
}

// New builds a Claim from a point and an evaluation.
func New[E any](point []E, eval E) Claim[E] {
	return Claim[E]{Point: point, Eval: eval}
}

// WithEval returns a copy of c with Eval replaced, keeping Point unchanged.
// This is the Go shape of the Rust source's frequent
// `Claim { point: point.clone(), eval: <derived> }` pattern (e.g. the
// requant prover/verifier's "corrected claim").
func (c Claim[E]) WithEval(eval E) Claim[E] {
	return Claim[E]{Point: c.Point, Eval: eval}
}
