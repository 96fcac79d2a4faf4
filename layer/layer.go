// Package layer implements every operator variant a model's graph can
// contain, and the capability contracts (shape, evaluation, context
// derivation, padding, proving, lookup-witness generation, verification)
// every variant must satisfy.
//
// The ancestor's per-operator trait-object dispatch (`OpInfo`, `Evaluate`,
// `ProveInfo`, `ProvableOp`, `VerifiableCtx` implemented separately for
// each Rust struct, matched generically over `LayerCtx<E>`) has no
// equivalent in Go without runtime type assertions, so this port collapses
// it to a tagged union: a `Kind` discriminant plus one pointer field per
// variant on `LayerCtx`/`LayerProof`, dispatched by a single exhaustive
// switch (mirroring the source's own `match self { LayerCtx::Dense(..) =>
// .. }` blocks in layers/provable/mod.rs almost verbatim). Every concrete
// operator (Requant, Dense, Activation, Pooling, Flatten) lives in this one
// package alongside the contracts, since Go packages — unlike Rust
// same-crate submodules — cannot import each other cyclically, and the
// contracts and their implementers are mutually referential (LayerCtx's
// dispatch switch must name every variant's type).
package layer

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/lookup"
	"zkmlprove/tabletype"
	"zkmlprove/tensor"
	"zkmlprove/transcript"
	"zkmlprove/witness"
)

// Kind discriminates the operator variants this port implements.
type Kind int

const (
	KindDense Kind = iota
	KindActivation
	KindRequant
	KindPooling
	KindFlatten
)

func (k Kind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindActivation:
		return "activation"
	case KindRequant:
		return "requant"
	case KindPooling:
		return "pooling"
	case KindFlatten:
		return "flatten"
	default:
		return "unknown"
	}
}

// LayerOut is the result of evaluating an operation: its output tensors.
// It carries no auxiliary proving data, since none of the operators this
// port implements produces any.
type LayerOut[T tensor.Number] struct {
	Outputs []*tensor.Tensor[T]
}

// OpInfo is the shape/description capability every operator variant
// implements.
type OpInfo interface {
	OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int
	NumOutputs(numInputs int) int
	Describe() string
	IsProvable() bool
}

// Evaluate is the pure evaluation capability over the quantized integer
// domain.
type Evaluate interface {
	Evaluate(inputs []*tensor.Tensor[field.Element], unpaddedInputShapes [][]int) (LayerOut[field.Element], error)
}

// CommitEntry names a constant polynomial an operator wants precommitted.
type CommitEntry struct {
	PolyID graph.PolyID
	Values []field.Elem
}

// ProveInfo derives a node's proving context.
type ProveInfo interface {
	StepInfo(id graph.PolyID, aux graph.ContextAux) (LayerCtx, graph.ContextAux, error)
	CommitInfo(id graph.NodeId) []*CommitEntry
}

// PadOp is the padding capability; operators that don't need to rewrite
// themselves when shapes are padded simply don't implement it, and callers
// fall back to PadNodeDefault.
type PadOp interface {
	PadNode(si *graph.ShapeInfo) error
}

// PadNodeDefault is the identity padding behavior (Requant, Flatten).
func PadNodeDefault(si *graph.ShapeInfo) error { return nil }

// StepData is the matched witness produced by a forward evaluation pass
// and consumed by the corresponding proving pass: a node's evaluated
// inputs and outputs in the quantized integer domain.
type StepData struct {
	Inputs  []*tensor.Tensor[field.Element]
	Outputs LayerOut[field.Element]
}

// ProverHandle is the narrow slice of a top-level prover every operator's
// Prove method needs. It is defined here, not in the `prover` package, so
// that `layer` never has to import `prover` — `prover` imports `layer` and
// supplies a concrete type satisfying this interface instead.
type ProverHandle interface {
	Field() *field.Field
	Transcript() transcript.Transcript
	LookupWitnessGen() *lookup.LookupWitnessGen
	WitnessCommitment() *witness.Commitment
	PushProof(id graph.NodeId, proof LayerProof)
}

// VerifierHandle mirrors ProverHandle on the verification side.
type VerifierHandle interface {
	Field() *field.Field
	Transcript() transcript.Transcript
	ChallengeStorage() *transcript.ChallengeStorage
	WitnessCommitment() *witness.Commitment
	LookupTable(tt tabletype.TableType) (*lookup.Table, bool)
}

// ProvableOp is the proving capability.
type ProvableOp interface {
	Prove(nodeID graph.NodeId, ctx *LayerCtx, lastClaims []*claim.Claim[field.Elem], stepData *StepData, prover ProverHandle) ([]claim.Claim[field.Elem], error)
	GenLookupWitness(nodeID graph.NodeId, gen *lookup.LookupWitnessGen, stepData *StepData) error
}

// DefaultProve is the behavior spec'd for operators that don't override
// Prove: it asserts the operator is indeed non-provable (a provable
// operator reaching here is an implementation bug, so this panics exactly
// like the source's default trait method does) and returns a single
// default claim.
func DefaultProve(isProvable bool) ([]claim.Claim[field.Elem], error) {
	if isProvable {
		panic("layer: running default prove implementation for a provable operation")
	}
	return []claim.Claim[field.Elem]{{}}, nil
}

// LayerCtx is the tagged union of per-operator proving contexts.
type LayerCtx struct {
	Kind       Kind
	Dense      *DenseCtx
	Activation *ActivationCtx
	Requant    *RequantCtx
	Pooling    *PoolingCtx
	Flatten    *FlattenCtx
}

// LayerProof is the tagged union of per-operator proofs, one entry per
// node in the model's proof stream.
type LayerProof struct {
	Kind       Kind
	Dense      *DenseProof
	Activation *ActivationProof
	Requant    *RequantProof
	Pooling    *PoolingProof
}

func (c *LayerCtx) OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int {
	switch c.Kind {
	case KindDense:
		return c.Dense.OutputShapes(inputShapes, mode)
	case KindActivation:
		return c.Activation.OutputShapes(inputShapes, mode)
	case KindRequant:
		return c.Requant.OutputShapes(inputShapes, mode)
	case KindPooling:
		return c.Pooling.OutputShapes(inputShapes, mode)
	case KindFlatten:
		return c.Flatten.OutputShapes(inputShapes, mode)
	default:
		panic(fmt.Sprintf("layer: unknown kind %v", c.Kind))
	}
}

func (c *LayerCtx) NumOutputs(numInputs int) int {
	switch c.Kind {
	case KindDense:
		return c.Dense.NumOutputs(numInputs)
	case KindActivation:
		return c.Activation.NumOutputs(numInputs)
	case KindRequant:
		return c.Requant.NumOutputs(numInputs)
	case KindPooling:
		return c.Pooling.NumOutputs(numInputs)
	case KindFlatten:
		return c.Flatten.NumOutputs(numInputs)
	default:
		panic(fmt.Sprintf("layer: unknown kind %v", c.Kind))
	}
}

func (c *LayerCtx) Describe() string {
	switch c.Kind {
	case KindDense:
		return c.Dense.Describe()
	case KindActivation:
		return c.Activation.Describe()
	case KindRequant:
		return c.Requant.Describe()
	case KindPooling:
		return c.Pooling.Describe()
	case KindFlatten:
		return c.Flatten.Describe()
	default:
		panic(fmt.Sprintf("layer: unknown kind %v", c.Kind))
	}
}

func (c *LayerCtx) IsProvable() bool {
	switch c.Kind {
	case KindDense:
		return c.Dense.IsProvable()
	case KindActivation:
		return c.Activation.IsProvable()
	case KindRequant:
		return c.Requant.IsProvable()
	case KindPooling:
		return c.Pooling.IsProvable()
	case KindFlatten:
		return c.Flatten.IsProvable()
	default:
		panic(fmt.Sprintf("layer: unknown kind %v", c.Kind))
	}
}

// ErrVariantMismatch reports a LayerCtx/LayerProof tag disagreement at
// verification time.
var ErrVariantMismatch = fmt.Errorf("layer: proof variant does not match context variant")

// Verify dispatches to the matching variant's verification, returning
// ErrVariantMismatch (wrapped with which kinds disagreed) if the proof's
// tag doesn't match the context's — a hard verification failure checked
// before any cryptographic work, per the fidelity requirement that a tag
// mismatch must fail fast.
func (c *LayerCtx) Verify(proof *LayerProof, lastClaims []*claim.Claim[field.Elem], verifier VerifierHandle, shapeStep *graph.ShapeStep) ([]claim.Claim[field.Elem], error) {
	if proof.Kind != c.Kind {
		return nil, fmt.Errorf("%w: ctx is %s, proof is %s", ErrVariantMismatch, c.Kind, proof.Kind)
	}
	switch c.Kind {
	case KindDense:
		if proof.Dense == nil {
			return nil, fmt.Errorf("%w: dense proof payload missing", ErrVariantMismatch)
		}
		return c.Dense.Verify(proof.Dense, lastClaims, verifier, shapeStep)
	case KindActivation:
		if proof.Activation == nil {
			return nil, fmt.Errorf("%w: activation proof payload missing", ErrVariantMismatch)
		}
		return c.Activation.Verify(proof.Activation, lastClaims, verifier, shapeStep)
	case KindRequant:
		if proof.Requant == nil {
			return nil, fmt.Errorf("%w: requant proof payload missing", ErrVariantMismatch)
		}
		return c.Requant.Verify(proof.Requant, lastClaims, verifier, shapeStep)
	case KindPooling:
		if proof.Pooling == nil {
			return nil, fmt.Errorf("%w: pooling proof payload missing", ErrVariantMismatch)
		}
		return c.Pooling.Verify(proof.Pooling, lastClaims, verifier, shapeStep)
	case KindFlatten:
		return DefaultProve(false)
	default:
		panic(fmt.Sprintf("layer: unknown kind %v", c.Kind))
	}
}
