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

// Pooling implements max-pooling over non-overlapping windows of size 2,
// proved the same way Activation is: two witness columns, diffA = out-a and
// diffB = out-b for each window (a,b), range-checked against [0, 2^Bits).
// That bounds out above both window elements but, unlike a dedicated
// pooling sumcheck, doesn't force out to equal one of them; recovering a
// single upstream claim for a fan-in-2 operator without that extra
// machinery means this port settles for the claim that holds unconditionally
// from the range-checked columns: a claim about the window's element sum,
// a+b = 2*out - diffA - diffB.
type Pooling struct {
	Bits int
}

// PoolingCtx is the proving context derived for a Pooling node.
type PoolingCtx struct {
	Pooling Pooling
	PolyID  graph.PolyID
	NumVars int
}

// PoolingProof carries the lookup proof over the diffA/diffB columns and
// the accumulation proof linking the downstream claim to the diffA column.
type PoolingProof struct {
	IOAccumulation *samepoly.Proof
	Lookup         *lookup.LogUpProof
}

const poolingIsProvable = true

func (p *Pooling) OutputShapes(inputShapes [][]int, _ graph.PaddingMode) [][]int {
	out := make([][]int, len(inputShapes))
	for i, s := range inputShapes {
		shape := append([]int(nil), s...)
		if len(shape) > 0 {
			shape[len(shape)-1] /= 2
		}
		out[i] = shape
	}
	return out
}

func (p *Pooling) NumOutputs(numInputs int) int { return numInputs }

func (p *Pooling) Describe() string { return fmt.Sprintf("Pooling: max, window 2, bits %d", p.Bits) }

func (p *Pooling) IsProvable() bool { return poolingIsProvable }

func (c *PoolingCtx) OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int {
	return c.Pooling.OutputShapes(inputShapes, mode)
}
func (c *PoolingCtx) NumOutputs(numInputs int) int { return c.Pooling.NumOutputs(numInputs) }
func (c *PoolingCtx) Describe() string             { return c.Pooling.Describe() }
func (c *PoolingCtx) IsProvable() bool             { return c.Pooling.IsProvable() }

func (p *Pooling) Evaluate(inputs []*tensor.Tensor[field.Element], _ [][]int) (LayerOut[field.Element], error) {
	if len(inputs) != 1 {
		return LayerOut[field.Element]{}, fmt.Errorf("layer: Pooling.Evaluate expects exactly one input, got %d", len(inputs))
	}
	in := inputs[0]
	data := in.GetData()
	if len(data)%2 != 0 {
		return LayerOut[field.Element]{}, fmt.Errorf("layer: Pooling.Evaluate: input length %d is not even", len(data))
	}
	out := make([]field.Element, len(data)/2)
	for i := range out {
		a, b := data[2*i], data[2*i+1]
		if a >= b {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	shape := append([]int(nil), in.Shape()...)
	if len(shape) > 0 {
		shape[len(shape)-1] /= 2
	}
	return LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New(shape, out)}}, nil
}

func PoolingTableValues(f *field.Field, bits int) []field.Elem {
	n := 1 << uint(bits)
	values := make([]field.Elem, n)
	for i := 0; i < n; i++ {
		values[i] = f.EmbedF(uint64(i))
	}
	return values
}

// GenLookupWitness decomposes the node's matched input/output into the
// diffA/diffB witness columns and registers them against the shared Pooling
// table.
func (p *Pooling) GenLookupWitness(nodeID graph.NodeId, gen *lookup.LookupWitnessGen, stepData *StepData) error {
	if len(stepData.Inputs) != 1 {
		return fmt.Errorf("layer: pooling node %d: expected exactly one input tensor, got %d", nodeID, len(stepData.Inputs))
	}
	if len(stepData.Outputs.Outputs) != 1 {
		return fmt.Errorf("layer: pooling node %d: expected exactly one output tensor, got %d", nodeID, len(stepData.Outputs.Outputs))
	}
	f := gen.Field
	gen.RegisterTable(tabletype.Pooling, PoolingTableValues(f, p.Bits))

	x := stepData.Inputs[0].GetData()
	y := stepData.Outputs.Outputs[0].GetData()
	if len(x) != 2*len(y) {
		return fmt.Errorf("layer: pooling node %d: input/output length mismatch", nodeID)
	}
	diffA := make([]field.Elem, len(y))
	diffB := make([]field.Elem, len(y))
	for i := range y {
		diffA[i] = f.Lift(y[i] - x[2*i])
		diffB[i] = f.Lift(y[i] - x[2*i+1])
	}
	return gen.AddColumns(nodeID, graph.PolyID(nodeID), tabletype.Pooling, [][]field.Elem{diffA, diffB})
}

// ProveStep runs the lookup over the diffA/diffB columns, folds the
// downstream claim into one output claim, and derives a claim about the
// pooled window's element sum via the public 2*out-diffA-diffB=a+b identity.
func (p *Pooling) ProveStep(prover ProverHandle, lastClaim claim.Claim[field.Elem], ctx *PoolingCtx, id graph.NodeId) (claim.Claim[field.Elem], error) {
	f := prover.Field()

	logupProof, err := lookup.BatchProve(f, prover.LookupWitnessGen(), id, prover.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: pooling lookup proving failed: %w", err)
	}
	if len(logupProof.ColumnClaims) != 2 {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: pooling expects 2 column claims, got %d", len(logupProof.ColumnClaims))
	}
	diffAClaim, diffBClaim := logupProof.ColumnClaims[0], logupProof.ColumnClaims[1]

	samePolyProver := samepoly.NewProver(f)
	samePolyCtx := samepoly.NewContext(len(lastClaim.Point))
	if err := samePolyProver.AddClaim(lastClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: pooling same-poly add failed: %w", err)
	}
	correctedClaim := claim.New(lastClaim.Point, diffAClaim.Eval)
	if err := samePolyProver.AddClaim(correctedClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: pooling same-poly add failed: %w", err)
	}
	accProof, err := samePolyProver.Prove(samePolyCtx, prover.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: pooling same-poly prove failed: %w", err)
	}
	newOutputClaim := accProof.ExtractClaim()
	if err := prover.WitnessCommitment().AddClaim(ctx.PolyID, newOutputClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: pooling witness commitment failed: %w", err)
	}

	sumEval := f.Sub(f.MulScalar(newOutputClaim.Eval, 2), f.Add(diffAClaim.Eval, diffBClaim.Eval))
	sumClaim := claim.New(newOutputClaim.Point, sumEval)

	prover.PushProof(id, LayerProof{
		Kind:    KindPooling,
		Pooling: &PoolingProof{IOAccumulation: accProof, Lookup: logupProof},
	})
	return sumClaim, nil
}

func (p *Pooling) Prove(nodeID graph.NodeId, ctx *LayerCtx, lastClaims []*claim.Claim[field.Elem], stepData *StepData, prover ProverHandle) ([]claim.Claim[field.Elem], error) {
	if ctx == nil || ctx.Pooling == nil {
		return nil, fmt.Errorf("layer: Pooling.Prove called with a non-pooling context")
	}
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: Pooling.Prove expects exactly one downstream claim, got %d", len(lastClaims))
	}
	out, err := p.ProveStep(prover, *lastClaims[0], ctx.Pooling, nodeID)
	if err != nil {
		return nil, err
	}
	return []claim.Claim[field.Elem]{out}, nil
}

func (p *Pooling) StepInfo(id graph.PolyID, aux graph.ContextAux) (LayerCtx, graph.ContextAux, error) {
	if aux.Tables == nil {
		aux.Tables = tabletype.NewSet()
	}
	aux.Tables.Add(tabletype.Pooling)
	numVars := 0
	for _, dim := range aux.LastShape {
		numVars += ceilLog2(dim)
	}
	return LayerCtx{
		Kind:    KindPooling,
		Pooling: &PoolingCtx{Pooling: *p, PolyID: id, NumVars: numVars},
	}, aux, nil
}

func (p *Pooling) CommitInfo(id graph.NodeId) []*CommitEntry { return nil }

func (p *Pooling) PadNode(si *graph.ShapeInfo) error { return PadNodeDefault(si) }

// Verify mirrors ProveStep.
func (c *PoolingCtx) Verify(proof *PoolingProof, lastClaims []*claim.Claim[field.Elem], verifier VerifierHandle, _ *graph.ShapeStep) ([]claim.Claim[field.Elem], error) {
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: PoolingCtx.Verify expects exactly one downstream claim, got %d", len(lastClaims))
	}
	f := verifier.Field()
	lastClaim := *lastClaims[0]

	table, ok := verifier.LookupTable(tabletype.Pooling)
	if !ok {
		return nil, fmt.Errorf("layer: pooling verify: pooling table not registered")
	}
	verifierClaims, err := lookup.VerifyLogupProof(f, table, proof.Lookup, tabletype.Pooling, verifier.Transcript())
	if err != nil {
		return nil, fmt.Errorf("layer: pooling lookup verification failed: %w", err)
	}
	if len(verifierClaims.Claims()) != 2 {
		return nil, fmt.Errorf("layer: pooling verify: expected 2 column claims, got %d", len(verifierClaims.Claims()))
	}
	diffAClaim, diffBClaim := verifierClaims.Claims()[0], verifierClaims.Claims()[1]

	spCtx := samepoly.NewContext(c.NumVars)
	spVerifier := samepoly.NewVerifier(f)
	if err := spVerifier.AddClaim(lastClaim); err != nil {
		return nil, fmt.Errorf("layer: pooling same-poly add failed: %w", err)
	}
	correctedClaim := claim.New(lastClaim.Point, diffAClaim.Eval)
	if err := spVerifier.AddClaim(correctedClaim); err != nil {
		return nil, fmt.Errorf("layer: pooling same-poly add failed: %w", err)
	}
	if _, err := spVerifier.Verify(spCtx, proof.IOAccumulation, verifier.Transcript()); err != nil {
		return nil, fmt.Errorf("layer: pooling same-poly verification failed: %w", err)
	}
	newOutputClaim := proof.IOAccumulation.ExtractClaim()
	if err := verifier.WitnessCommitment().AddClaim(c.PolyID, newOutputClaim); err != nil {
		return nil, fmt.Errorf("layer: pooling witness commitment failed: %w", err)
	}

	sumEval := f.Sub(f.MulScalar(newOutputClaim.Eval, 2), f.Add(diffAClaim.Eval, diffBClaim.Eval))
	sumClaim := claim.New(newOutputClaim.Point, sumEval)
	return []claim.Claim[field.Elem]{sumClaim}, nil
}
