package layer

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/lookup"
	"zkmlprove/samepoly"
	"zkmlprove/tabletype"
	"zkmlprove/tensor"
)

// Activation implements ReLU: y = max(0, x). It is proved the same way
// Requant is — by decomposing the witness into columns bound into range by
// a lookup, then closing the gap with a plain linear identity — rather than
// by the ancestor's dedicated activation sumcheck, consistent with the
// scope this port collapses lookup-backed nonlinearities to (see the
// package-level note on lookup's collapsed LogUp). The two witness columns
// are pos = y and neg = y-x, both range-checked against [0, 2^Bits); the
// public identity pos - neg = x then recovers the input claim.
type Activation struct {
	Bits int
}

// ActivationCtx is the proving context derived for an Activation node.
type ActivationCtx struct {
	Activation Activation
	PolyID     graph.PolyID
	NumVars    int
}

// ActivationProof carries the lookup proof over the pos/neg columns and the
// accumulation proof linking the downstream claim to the pos column.
type ActivationProof struct {
	IOAccumulation *samepoly.Proof
	Lookup         *lookup.LogUpProof
}

const activationIsProvable = true

func (a *Activation) OutputShapes(inputShapes [][]int, _ graph.PaddingMode) [][]int {
	out := make([][]int, len(inputShapes))
	for i, s := range inputShapes {
		out[i] = append([]int(nil), s...)
	}
	return out
}

func (a *Activation) NumOutputs(numInputs int) int { return numInputs }

func (a *Activation) Describe() string { return fmt.Sprintf("Activation: relu, bits %d", a.Bits) }

func (a *Activation) IsProvable() bool { return activationIsProvable }

func (c *ActivationCtx) OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int {
	return c.Activation.OutputShapes(inputShapes, mode)
}
func (c *ActivationCtx) NumOutputs(numInputs int) int { return c.Activation.NumOutputs(numInputs) }
func (c *ActivationCtx) Describe() string             { return c.Activation.Describe() }
func (c *ActivationCtx) IsProvable() bool             { return c.Activation.IsProvable() }

func (a *Activation) Evaluate(inputs []*tensor.Tensor[field.Element], _ [][]int) (LayerOut[field.Element], error) {
	if len(inputs) != 1 {
		return LayerOut[field.Element]{}, fmt.Errorf("layer: Activation.Evaluate expects exactly one input, got %d", len(inputs))
	}
	in := inputs[0]
	data := in.GetData()
	out := make([]field.Element, len(data))
	for i, x := range data {
		if x > 0 {
			out[i] = x
		}
	}
	return LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New(in.Shape(), out)}}, nil
}

func ReluTableValues(f *field.Field, bits int) []field.Elem {
	n := 1 << uint(bits)
	values := make([]field.Elem, n)
	for i := 0; i < n; i++ {
		values[i] = f.EmbedF(uint64(i))
	}
	return values
}

// GenLookupWitness decomposes the node's matched input/output into the
// pos/neg witness columns and registers them against the shared Relu
// table.
func (a *Activation) GenLookupWitness(nodeID graph.NodeId, gen *lookup.LookupWitnessGen, stepData *StepData) error {
	if len(stepData.Inputs) != 1 {
		return fmt.Errorf("layer: activation node %d: expected exactly one input tensor, got %d", nodeID, len(stepData.Inputs))
	}
	if len(stepData.Outputs.Outputs) != 1 {
		return fmt.Errorf("layer: activation node %d: expected exactly one output tensor, got %d", nodeID, len(stepData.Outputs.Outputs))
	}
	f := gen.Field
	gen.RegisterTable(tabletype.Relu, ReluTableValues(f, a.Bits))

	x := stepData.Inputs[0].GetData()
	y := stepData.Outputs.Outputs[0].GetData()
	if len(x) != len(y) {
		return fmt.Errorf("layer: activation node %d: input/output length mismatch", nodeID)
	}
	pos := make([]field.Elem, len(x))
	neg := make([]field.Elem, len(x))
	for i := range x {
		pos[i] = f.Lift(y[i])
		neg[i] = f.Lift(y[i] - x[i])
	}
	return gen.AddColumns(nodeID, graph.PolyID(nodeID), tabletype.Relu, [][]field.Elem{pos, neg})
}

// ProveStep runs the lookup over the pos/neg columns, folds the downstream
// claim with the corrected pos-column claim into one output claim, and
// recovers the input-side claim via the public pos-neg=x identity.
func (a *Activation) ProveStep(prover ProverHandle, lastClaim claim.Claim[field.Elem], ctx *ActivationCtx, id graph.NodeId) (claim.Claim[field.Elem], error) {
	f := prover.Field()

	logupProof, err := lookup.BatchProve(f, prover.LookupWitnessGen(), id, prover.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: activation lookup proving failed: %w", err)
	}
	if len(logupProof.ColumnClaims) != 2 {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: activation expects 2 column claims, got %d", len(logupProof.ColumnClaims))
	}
	posClaim, negClaim := logupProof.ColumnClaims[0], logupProof.ColumnClaims[1]

	samePolyProver := samepoly.NewProver(f)
	samePolyCtx := samepoly.NewContext(len(lastClaim.Point))
	if err := samePolyProver.AddClaim(lastClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: activation same-poly add failed: %w", err)
	}
	correctedClaim := claim.New(lastClaim.Point, posClaim.Eval)
	if err := samePolyProver.AddClaim(correctedClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: activation same-poly add failed: %w", err)
	}
	accProof, err := samePolyProver.Prove(samePolyCtx, prover.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: activation same-poly prove failed: %w", err)
	}
	newOutputClaim := accProof.ExtractClaim()
	if err := prover.WitnessCommitment().AddClaim(ctx.PolyID, newOutputClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: activation witness commitment failed: %w", err)
	}

	inputEval := f.Sub(newOutputClaim.Eval, negClaim.Eval)
	inputClaim := claim.New(newOutputClaim.Point, inputEval)

	prover.PushProof(id, LayerProof{
		Kind:       KindActivation,
		Activation: &ActivationProof{IOAccumulation: accProof, Lookup: logupProof},
	})
	return inputClaim, nil
}

func (a *Activation) Prove(nodeID graph.NodeId, ctx *LayerCtx, lastClaims []*claim.Claim[field.Elem], stepData *StepData, prover ProverHandle) ([]claim.Claim[field.Elem], error) {
	if ctx == nil || ctx.Activation == nil {
		return nil, fmt.Errorf("layer: Activation.Prove called with a non-activation context")
	}
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: Activation.Prove expects exactly one downstream claim, got %d", len(lastClaims))
	}
	out, err := a.ProveStep(prover, *lastClaims[0], ctx.Activation, nodeID)
	if err != nil {
		return nil, err
	}
	return []claim.Claim[field.Elem]{out}, nil
}

func (a *Activation) StepInfo(id graph.PolyID, aux graph.ContextAux) (LayerCtx, graph.ContextAux, error) {
	if aux.Tables == nil {
		aux.Tables = tabletype.NewSet()
	}
	aux.Tables.Add(tabletype.Relu)
	numVars := 0
	for _, dim := range aux.LastShape {
		numVars += ceilLog2(dim)
	}
	return LayerCtx{
		Kind:       KindActivation,
		Activation: &ActivationCtx{Activation: *a, PolyID: id, NumVars: numVars},
	}, aux, nil
}

func (a *Activation) CommitInfo(id graph.NodeId) []*CommitEntry { return nil }

func (a *Activation) PadNode(si *graph.ShapeInfo) error { return PadNodeDefault(si) }

// Verify mirrors ProveStep: it rechecks the lookup, re-derives the folded
// output claim, and recomputes the input claim from the public identity.
func (c *ActivationCtx) Verify(proof *ActivationProof, lastClaims []*claim.Claim[field.Elem], verifier VerifierHandle, _ *graph.ShapeStep) ([]claim.Claim[field.Elem], error) {
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: ActivationCtx.Verify expects exactly one downstream claim, got %d", len(lastClaims))
	}
	f := verifier.Field()
	lastClaim := *lastClaims[0]

	table, ok := verifier.LookupTable(tabletype.Relu)
	if !ok {
		return nil, fmt.Errorf("layer: activation verify: relu table not registered")
	}
	verifierClaims, err := lookup.VerifyLogupProof(f, table, proof.Lookup, tabletype.Relu, verifier.Transcript())
	if err != nil {
		return nil, fmt.Errorf("layer: activation lookup verification failed: %w", err)
	}
	if len(verifierClaims.Claims()) != 2 {
		return nil, fmt.Errorf("layer: activation verify: expected 2 column claims, got %d", len(verifierClaims.Claims()))
	}
	posClaim, negClaim := verifierClaims.Claims()[0], verifierClaims.Claims()[1]

	spCtx := samepoly.NewContext(c.NumVars)
	spVerifier := samepoly.NewVerifier(f)
	if err := spVerifier.AddClaim(lastClaim); err != nil {
		return nil, fmt.Errorf("layer: activation same-poly add failed: %w", err)
	}
	correctedClaim := claim.New(lastClaim.Point, posClaim.Eval)
	if err := spVerifier.AddClaim(correctedClaim); err != nil {
		return nil, fmt.Errorf("layer: activation same-poly add failed: %w", err)
	}
	if _, err := spVerifier.Verify(spCtx, proof.IOAccumulation, verifier.Transcript()); err != nil {
		return nil, fmt.Errorf("layer: activation same-poly verification failed: %w", err)
	}
	newOutputClaim := proof.IOAccumulation.ExtractClaim()
	if err := verifier.WitnessCommitment().AddClaim(c.PolyID, newOutputClaim); err != nil {
		return nil, fmt.Errorf("layer: activation witness commitment failed: %w", err)
	}

	inputEval := f.Sub(newOutputClaim.Eval, negClaim.Eval)
	inputClaim := claim.New(newOutputClaim.Point, inputEval)
	return []claim.Claim[field.Elem]{inputClaim}, nil
}
