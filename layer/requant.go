package layer

import (
	"fmt"
	"log"
	"math/bits"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/lookup"
	"zkmlprove/samepoly"
	"zkmlprove/tabletype"
	"zkmlprove/tensor"
)

// Requant is the only provable "glue" layer: it right-shifts a dense or
// convolution layer's wide integer outputs back into the quantized value
// domain, offset-corrected so the shift operates on a non-negative
// quantity. It is grounded on the ancestor's layers::requant::Requant.
type Requant struct {
	RightShift int
	Range      int
	AfterRange int
	// Multiplier simulates a float-scaled requantization for inference-only
	// testing. It cannot be proven: Apply panics if it is set, mirroring
	// the source's unconditional `panic!` in that branch.
	Multiplier *float64
}

// RequantCtx is the proving context derived for a Requant node: the
// operator itself, its committed polynomial id, and the number of
// variables of its input/output multilinear extension.
type RequantCtx struct {
	Requant Requant
	PolyID  graph.PolyID
	NumVars int
}

// RequantProof is the proof emitted for a Requant node: the accumulation
// proof linking the node's output claim to the lookup's column claims, and
// the lookup proof itself.
type RequantProof struct {
	IOAccumulation *samepoly.Proof
	Lookup         *lookup.LogUpProof
}

const requantIsProvable = true

func (r *Requant) OutputShapes(inputShapes [][]int, _ graph.PaddingMode) [][]int {
	out := make([][]int, len(inputShapes))
	for i, s := range inputShapes {
		out[i] = append([]int(nil), s...)
	}
	return out
}

func (r *Requant) NumOutputs(numInputs int) int { return numInputs }

func (r *Requant) Describe() string {
	return fmt.Sprintf("Requant: shift: %d, offset bits: %d", r.RightShift, bitsLog2(r.Range<<1))
}

func (r *Requant) IsProvable() bool { return requantIsProvable }

func (c *RequantCtx) OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int {
	return c.Requant.OutputShapes(inputShapes, mode)
}
func (c *RequantCtx) NumOutputs(numInputs int) int { return c.Requant.NumOutputs(numInputs) }
func (c *RequantCtx) Describe() string             { return c.Requant.Describe() }
func (c *RequantCtx) IsProvable() bool             { return c.Requant.IsProvable() }

func bitsLog2(v int) int {
	if v <= 0 {
		return 0
	}
	return bits.Len(uint(v)) - 1
}

// b returns log2(AfterRange); AfterRange is required to be a power of two.
func (r *Requant) b() int { return bitsLog2(r.AfterRange) }

// NumColumns is K = ceil((RightShift-1)/b) + 2.
func (r *Requant) NumColumns() int {
	b := r.b()
	return (r.RightShift-1+b-1)/b + 2
}

// bounds returns the symmetric [MIN, MAX] of the post-requantization
// integer domain.
func (r *Requant) bounds() (min, max field.Element) {
	half := field.Element(r.AfterRange / 2)
	return -half, half - 1
}

// Apply requantizes a single element, returning the result and whether it
// landed in range. Out-of-range results are returned unclamped: soundness
// is enforced only by the lookup argument, never by this function.
func (r *Requant) Apply(e field.Element) (field.Element, bool) {
	if r.Multiplier != nil {
		panic("layer: Requant.Apply: multiplier path is test-only and cannot be proven")
	}
	maxBit := field.Element(r.Range) << 1
	tmp := e + maxBit
	if tmp < 0 {
		panic(fmt.Sprintf("layer: Requant.Apply: offset is too small: element %d + %d = %d", e, maxBit, tmp))
	}
	tmp >>= uint(r.RightShift)
	res := tmp - (maxBit >> uint(r.RightShift))
	min, max := r.bounds()
	return res, res >= min && res <= max
}

// Op maps Apply element-wise over a tensor, preserving its shape, and
// reports how many elements landed out of range for diagnostics.
func (r *Requant) Op(t *tensor.Tensor[field.Element]) (*tensor.Tensor[field.Element], int, error) {
	data := t.GetData()
	out := make([]field.Element, len(data))
	outOfRange := 0
	for i, e := range data {
		res, ok := r.Apply(e)
		out[i] = res
		if !ok {
			outOfRange++
		}
	}
	if outOfRange > 0 {
		min, max := r.bounds()
		log.Printf("layer: requant: %d of %d elements outside [%d, %d]", outOfRange, len(data), min, max)
	}
	return tensor.New(t.Shape(), out), outOfRange, nil
}

// Evaluate requantizes the single input tensor element-wise via Op.
func (r *Requant) Evaluate(inputs []*tensor.Tensor[field.Element], _ [][]int) (LayerOut[field.Element], error) {
	if len(inputs) != 1 {
		return LayerOut[field.Element]{}, fmt.Errorf("layer: Requant.Evaluate expects exactly one input, got %d", len(inputs))
	}
	out, _, err := r.Op(inputs[0])
	if err != nil {
		return LayerOut[field.Element]{}, err
	}
	return LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{out}}, nil
}

// Decompose splits every input element into its K-column limb
// decomposition. Column 0 is the output column (shifted into [0,
// AfterRange) by adding AfterRange/2 when forLookup is set, left in
// recombination-ready signed form otherwise); columns 1..K-1 carry the
// discarded low-bit chunks of e+maxBit, most-significant-first, always as
// raw unsigned digits regardless of forLookup.
func (r *Requant) Decompose(f *field.Field, input []field.Element, forLookup bool) ([][]field.Elem, error) {
	b := r.b()
	if b <= 0 {
		return nil, fmt.Errorf("layer: Requant.Decompose: AfterRange must be a power of two greater than 1")
	}
	numColumns := r.NumColumns()
	columns := make([][]field.Elem, numColumns)
	for i := range columns {
		columns[i] = make([]field.Elem, len(input))
	}

	maxBit := field.Element(r.Range) << 1
	subtract := maxBit >> uint(r.RightShift)
	bitMask := field.Element(r.AfterRange) - 1
	half := field.Element(r.AfterRange / 2)

	for idx, val := range input {
		preShift := val + maxBit
		if preShift < 0 {
			return nil, fmt.Errorf("layer: Requant.Decompose: offset is too small for element %d", val)
		}
		tmp := preShift >> uint(r.RightShift)
		out := tmp - subtract
		if forLookup {
			out += half
		}
		columns[0][idx] = f.Lift(out)

		remainder := preShift - (tmp << uint(r.RightShift))
		for col := numColumns - 1; col >= 1; col-- {
			chunk := remainder & bitMask
			columns[col][idx] = f.Lift(chunk)
			remainder >>= uint(b)
		}
		if remainder != 0 {
			return nil, fmt.Errorf("layer: Requant.Decompose: non-zero remainder after decomposition for element %d", val)
		}
	}
	return columns, nil
}

// Recombine reconstructs the field lift of the original element from a
// vector of K column claims about one index, using only cheap scalar
// field operations, per the recombination identity:
//
//	2^RightShift*(c[0]+subtract-AfterRange/2) + sum_i B^(K-1-i)*c[i] - maxBit
//
// claims is not one row's raw columns: the lookup argument folds every
// row of a batch into each column claim as Σ_i alpha^i*col[j][i], so the
// identity's three constant terms (subtract, AfterRange/2, maxBit) must
// be scaled by rowWeightSum = Σ_i alpha^i over the same row range before
// combining, or the result is not the lift of any real element once a
// node's batch has more than one row. rowWeightSum is 1 for a single-row
// batch, recovering the identity's single-element form.
func (r *Requant) Recombine(f *field.Field, claims []field.Elem, rowWeightSum field.Elem) field.Elem {
	maxBit := uint64(r.Range) << 1
	subtract := maxBit >> uint(r.RightShift)
	half := uint64(r.AfterRange / 2)

	head := f.Add(claims[0], f.MulScalar(rowWeightSum, subtract))
	head = f.Sub(head, f.MulScalar(rowWeightSum, half))
	tmp := f.MulScalar(head, uint64(1)<<uint(r.RightShift))

	acc := f.Zero()
	weight := uint64(1)
	for col := len(claims) - 1; col >= 1; col-- {
		acc = f.Add(acc, f.MulScalar(claims[col], weight))
		weight *= uint64(r.AfterRange)
	}

	result := f.Add(tmp, acc)
	return f.Sub(result, f.MulScalar(rowWeightSum, maxBit))
}

// ProveStep proves a Requant node: it runs the batched lookup argument over
// the node's pre-aggregated lookup witness, folds the downstream claim and
// the lookup's corrected output-column claim into one via the same-
// polynomial accumulator, registers the merged claim under the node's
// PolyID, pushes the resulting RequantProof, and returns the single
// input-side claim the recombination identity produces.
func (r *Requant) ProveStep(prover ProverHandle, lastClaim claim.Claim[field.Elem], ctx *RequantCtx, id graph.NodeId) (claim.Claim[field.Elem], error) {
	f := prover.Field()

	logupProof, err := lookup.BatchProve(f, prover.LookupWitnessGen(), id, prover.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant lookup proving failed: %w", err)
	}

	samePolyProver := samepoly.NewProver(f)
	samePolyCtx := samepoly.NewContext(len(lastClaim.Point))
	if err := samePolyProver.AddClaim(lastClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant same-poly add failed: %w", err)
	}

	evalClaims := make([]field.Elem, len(logupProof.ColumnClaims))
	for i, c := range logupProof.ColumnClaims {
		evalClaims[i] = c.Eval
	}
	numRows := logupProof.NumInstances / len(logupProof.ColumnClaims)
	rowWeightSum := lookup.RowWeightSum(f, logupProof.Alpha, numRows)
	combinedEval := r.Recombine(f, evalClaims, rowWeightSum)

	// The lookup's column claims live at a point built from the table's own
	// transcript challenges, not lastClaim's point: same-poly here only
	// batches evaluations that are already collapsed to one scalar per
	// claim (see the samepoly entry in DESIGN.md), so
	// the corrected claim is re-pointed onto lastClaim's point before
	// batching rather than requiring the two points to coincide naturally.
	// The AfterRange/2 offset is scaled by rowWeightSum for the same reason
	// Recombine's constants are: firstClaim.Eval is itself an alpha-folded
	// sum over every row of the batch.
	firstClaim := logupProof.ColumnClaims[0]
	point := lastClaim.Point
	correctedClaim := claim.New(point, f.Sub(firstClaim.Eval, f.MulScalar(rowWeightSum, uint64(r.AfterRange/2))))
	if err := samePolyProver.AddClaim(correctedClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant same-poly add failed: %w", err)
	}

	accProof, err := samePolyProver.Prove(samePolyCtx, prover.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant same-poly prove failed: %w", err)
	}

	if err := prover.WitnessCommitment().AddClaim(ctx.PolyID, accProof.ExtractClaim()); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant witness commitment failed: %w", err)
	}

	prover.PushProof(id, LayerProof{
		Kind:    KindRequant,
		Requant: &RequantProof{IOAccumulation: accProof, Lookup: logupProof},
	})

	return claim.New(point, combinedEval), nil
}

// Prove implements ProvableOp for Requant nodes.
func (r *Requant) Prove(nodeID graph.NodeId, ctx *LayerCtx, lastClaims []*claim.Claim[field.Elem], stepData *StepData, prover ProverHandle) ([]claim.Claim[field.Elem], error) {
	if ctx == nil || ctx.Requant == nil {
		return nil, fmt.Errorf("layer: Requant.Prove called with a non-requant context")
	}
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: Requant.Prove expects exactly one downstream claim, got %d", len(lastClaims))
	}
	out, err := r.ProveStep(prover, *lastClaims[0], ctx.Requant, nodeID)
	if err != nil {
		return nil, err
	}
	return []claim.Claim[field.Elem]{out}, nil
}

// GenLookupWitness registers this node's decomposed lookup columns with
// the shared aggregator, in the lookup-witness (output column shifted by
// AfterRange/2) form. Lookup columns are decomposed from the node's input
// tensor, i.e. the dense/convolution layer's raw pre-shift output.
func (r *Requant) GenLookupWitness(nodeID graph.NodeId, gen *lookup.LookupWitnessGen, stepData *StepData) error {
	if len(stepData.Inputs) != 1 {
		return fmt.Errorf("layer: requant node %d: expected exactly one input tensor, got %d", nodeID, len(stepData.Inputs))
	}
	if len(stepData.Outputs.Outputs) != 1 {
		return fmt.Errorf("layer: requant node %d: expected exactly one output tensor, got %d", nodeID, len(stepData.Outputs.Outputs))
	}
	f := gen.Field
	gen.RegisterTable(tabletype.Range, RangeTableValues(f, r.AfterRange))
	columns, err := r.Decompose(f, stepData.Inputs[0].GetData(), true)
	if err != nil {
		return fmt.Errorf("layer: requant node %d: %w", nodeID, err)
	}
	return gen.AddColumns(nodeID, graph.PolyID(nodeID), tabletype.Range, columns)
}

func RangeTableValues(f *field.Field, afterRange int) []field.Elem {
	values := make([]field.Elem, afterRange)
	for i := 0; i < afterRange; i++ {
		values[i] = f.EmbedF(uint64(i))
	}
	return values
}

// StepInfo derives the proving context for a Requant node: it registers
// the Range table requirement and reads the number of variables off the
// single running shape (aux.LastShape). No comparison across several input
// shapes takes place.
func (r *Requant) StepInfo(id graph.PolyID, aux graph.ContextAux) (LayerCtx, graph.ContextAux, error) {
	if aux.Tables == nil {
		aux.Tables = tabletype.NewSet()
	}
	aux.Tables.Add(tabletype.Range)
	numVars := 0
	for _, dim := range aux.LastShape {
		numVars += ceilLog2(dim)
	}
	return LayerCtx{
		Kind:    KindRequant,
		Requant: &RequantCtx{Requant: *r, PolyID: id, NumVars: numVars},
	}, aux, nil
}

// CommitInfo reports that Requant has no constant polynomials of its own
// to precommit.
func (r *Requant) CommitInfo(id graph.NodeId) []*CommitEntry { return nil }

// PadNode is the identity: Requant is shape-agnostic.
func (r *Requant) PadNode(si *graph.ShapeInfo) error { return PadNodeDefault(si) }

func ceilLog2(v int) int {
	if v <= 1 {
		return 0
	}
	return bits.Len(uint(v - 1))
}

// Verify implements VerifiableCtx for a RequantCtx: it checks the lookup
// proof against the verifier's registered Range table, re-derives the
// same-polynomial accumulation and the recombined claim, and registers the
// merged claim under PolyID.
func (c *RequantCtx) Verify(proof *RequantProof, lastClaims []*claim.Claim[field.Elem], verifier VerifierHandle, _ *graph.ShapeStep) ([]claim.Claim[field.Elem], error) {
	if len(lastClaims) != 1 {
		return nil, fmt.Errorf("layer: RequantCtx.Verify expects exactly one downstream claim, got %d", len(lastClaims))
	}

	out, err := c.VerifyRequant(verifier, *lastClaims[0], proof)
	if err != nil {
		return nil, err
	}
	return []claim.Claim[field.Elem]{out}, nil
}

// VerifyRequant is the Go shape of the source's RequantCtx::verify_requant.
// It takes no challenges as parameters: lookup.VerifyLogupProof re-derives
// the Range table's challenges from the verifier's transcript and rejects a
// proof whose Alpha/Beta differ. The verifier's challenge storage is not
// read.
func (c *RequantCtx) VerifyRequant(verifier VerifierHandle, lastClaim claim.Claim[field.Elem], proof *RequantProof) (claim.Claim[field.Elem], error) {
	f := verifier.Field()

	table, ok := verifier.LookupTable(tabletype.Range)
	if !ok {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant verify: range table not registered")
	}

	verifierClaims, err := lookup.VerifyLogupProof(f, table, proof.Lookup, tabletype.Range, verifier.Transcript())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant lookup verification failed: %w", err)
	}

	numInstances := c.Requant.NumColumns()
	if len(verifierClaims.Claims()) != numInstances {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant verify: expected %d column claims, got %d", numInstances, len(verifierClaims.Claims()))
	}

	spCtx := samepoly.NewContext(c.NumVars)
	spVerifier := samepoly.NewVerifier(f)
	if err := spVerifier.AddClaim(lastClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant same-poly add failed: %w", err)
	}

	numRows := proof.Lookup.NumInstances / len(verifierClaims.Claims())
	rowWeightSum := lookup.RowWeightSum(f, proof.Lookup.Alpha, numRows)

	firstClaim := verifierClaims.Claims()[0]
	point := lastClaim.Point
	correctedClaim := claim.New(point, f.Sub(firstClaim.Eval, f.MulScalar(rowWeightSum, uint64(c.Requant.AfterRange/2))))
	if err := spVerifier.AddClaim(correctedClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant same-poly add failed: %w", err)
	}

	if _, err := spVerifier.Verify(spCtx, proof.IOAccumulation, verifier.Transcript()); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant same-poly verification failed: %w", err)
	}
	newOutputClaim := proof.IOAccumulation.ExtractClaim()

	if err := verifier.WitnessCommitment().AddClaim(c.PolyID, newOutputClaim); err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("layer: requant witness commitment failed: %w", err)
	}

	evalClaims := make([]field.Elem, len(verifierClaims.Claims()))
	for i, cl := range verifierClaims.Claims() {
		evalClaims[i] = cl.Eval
	}
	eval := c.Requant.Recombine(f, evalClaims, rowWeightSum)

	return claim.New(point, eval), nil
}
