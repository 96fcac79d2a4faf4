package layer

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/lookup"
	"zkmlprove/tensor"
)

// Dense is a scalar affine layer, y_i = Scale*x_i + Bias applied
// element-wise. The ancestor's Dense layer is a full weight-matrix multiply,
// whose claim reduction requires a genuine multivariate sumcheck over the
// matrix's MLE; that machinery is out of scope here (see the package-level
// note on lookup's collapsed LogUp), so this port keeps the affine shape of
// a dense layer while restricting it to a per-element scale and bias. The
// claim reduction this admits is still an exact multilinear-extension
// identity, not an approximation: since the all-ones vector's multilinear
// extension is the constant polynomial 1, MLE(y)(p) = Scale*MLE(x)(p) + Bias
// holds at every point p, not just on the boolean hypercube.
type Dense struct {
	Scale int64
	Bias  int64
}

// DenseCtx is the proving context derived for a Dense node.
type DenseCtx struct {
	Dense  Dense
	PolyID graph.PolyID
}

// DenseProof carries the claim the prover asserts about the node's input,
// derived from the downstream claim about its output by inverting the
// affine map.
type DenseProof struct {
	InputClaim claim.Claim[field.Elem]
}

const denseIsProvable = true

func (d *Dense) OutputShapes(inputShapes [][]int, _ graph.PaddingMode) [][]int {
	out := make([][]int, len(inputShapes))
	for i, s := range inputShapes {
		out[i] = append([]int(nil), s...)
	}
	return out
}

func (d *Dense) NumOutputs(numInputs int) int { return numInputs }

func (d *Dense) Describe() string {
	return fmt.Sprintf("Dense: scale %d, bias %d", d.Scale, d.Bias)
}

func (d *Dense) IsProvable() bool { return denseIsProvable }

func (c *DenseCtx) OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int {
	return c.Dense.OutputShapes(inputShapes, mode)
}
func (c *DenseCtx) NumOutputs(numInputs int) int { return c.Dense.NumOutputs(numInputs) }
func (c *DenseCtx) Describe() string             { return c.Dense.Describe() }
func (c *DenseCtx) IsProvable() bool             { return c.Dense.IsProvable() }

// Evaluate applies the affine map element-wise over the quantized integer
// domain.
func (d *Dense) Evaluate(inputs []*tensor.Tensor[field.Element], _ [][]int) (LayerOut[field.Element], error) {
	if len(inputs) != 1 {
		return LayerOut[field.Element]{}, fmt.Errorf("layer: Dense.Evaluate expects exactly one input, got %d", len(inputs))
	}
	in := inputs[0]
	data := in.GetData()
	out := make([]field.Element, len(data))
	for i, x := range data {
		out[i] = field.Element(d.Scale)*x + field.Element(d.Bias)
	}
	return LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New(in.Shape(), out)}}, nil
}

// Prove inverts the affine map at the claim algebra level: given a claim
// that the output polynomial evaluates to e at p, it asserts the input
// polynomial evaluates to (e-Bias)/Scale at the same p.
func (d *Dense) Prove(nodeID graph.NodeId, ctx *LayerCtx, lastClaims []*claim.Claim[field.Elem], _ *StepData, prover ProverHandle) ([]claim.Claim[field.Elem], error) {
	if ctx == nil || ctx.Dense == nil {
		return nil, fmt.Errorf("layer: Dense.Prove called with a non-dense context")
	}
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: Dense.Prove expects exactly one downstream claim, got %d", len(lastClaims))
	}
	f := prover.Field()
	lastClaim := *lastClaims[0]

	scale := f.Lift(field.Element(ctx.Dense.Dense.Scale))
	bias := f.Lift(field.Element(ctx.Dense.Dense.Bias))
	diff := f.Sub(lastClaim.Eval, bias)
	inputEval := f.Mul(diff, f.Inv(scale))
	inputClaim := claim.New(lastClaim.Point, inputEval)

	prover.PushProof(nodeID, LayerProof{
		Kind:  KindDense,
		Dense: &DenseProof{InputClaim: inputClaim},
	})
	return []claim.Claim[field.Elem]{inputClaim}, nil
}

// GenLookupWitness is a no-op: Dense needs no lookup argument.
func (d *Dense) GenLookupWitness(nodeID graph.NodeId, gen *lookup.LookupWitnessGen, stepData *StepData) error {
	return nil
}

// StepInfo derives the proving context for a Dense node.
func (d *Dense) StepInfo(id graph.PolyID, aux graph.ContextAux) (LayerCtx, graph.ContextAux, error) {
	return LayerCtx{
		Kind:  KindDense,
		Dense: &DenseCtx{Dense: *d, PolyID: id},
	}, aux, nil
}

// CommitInfo reports that Dense has no constant polynomials to precommit
// in this scalar-affine form.
func (d *Dense) CommitInfo(id graph.NodeId) []*CommitEntry { return nil }

// PadNode is the identity: a scalar affine map is shape-agnostic.
func (d *Dense) PadNode(si *graph.ShapeInfo) error { return PadNodeDefault(si) }

// Verify recomputes the same affine inversion the prover ran and checks the
// proof's asserted input claim against it.
func (c *DenseCtx) Verify(proof *DenseProof, lastClaims []*claim.Claim[field.Elem], verifier VerifierHandle, _ *graph.ShapeStep) ([]claim.Claim[field.Elem], error) {
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: DenseCtx.Verify expects exactly one downstream claim, got %d", len(lastClaims))
	}
	f := verifier.Field()
	lastClaim := *lastClaims[0]

	scale := f.Lift(field.Element(c.Dense.Scale))
	bias := f.Lift(field.Element(c.Dense.Bias))
	diff := f.Sub(lastClaim.Eval, bias)
	expectedEval := f.Mul(diff, f.Inv(scale))

	if !f.Equal(expectedEval, proof.InputClaim.Eval) {
		return nil, fmt.Errorf("layer: dense verify: asserted input claim does not match the affine inversion")
	}
	return []claim.Claim[field.Elem]{proof.InputClaim}, nil
}
