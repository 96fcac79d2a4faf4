package layer

import (
	"fmt"

	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/lookup"
	"zkmlprove/tensor"
)

// Flatten collapses a tensor's shape down to a single dimension without
// touching its data. It carries no state: the ancestor's Flatten layer is
// likewise a zero-field unit struct, since the reshape is entirely
// determined by the input shape.
type Flatten struct{}

// FlattenCtx is the (trivial) proving context derived for a Flatten node.
type FlattenCtx struct {
	PolyID graph.PolyID
}

const flattenIsProvable = false

func (fl *Flatten) OutputShapes(inputShapes [][]int, _ graph.PaddingMode) [][]int {
	out := make([][]int, len(inputShapes))
	for i, s := range inputShapes {
		out[i] = []int{sizeOf(s)}
	}
	return out
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (fl *Flatten) NumOutputs(numInputs int) int { return numInputs }

func (fl *Flatten) Describe() string { return "Flatten" }

func (fl *Flatten) IsProvable() bool { return flattenIsProvable }

func (c *FlattenCtx) OutputShapes(inputShapes [][]int, mode graph.PaddingMode) [][]int {
	return (&Flatten{}).OutputShapes(inputShapes, mode)
}
func (c *FlattenCtx) NumOutputs(numInputs int) int { return (&Flatten{}).NumOutputs(numInputs) }
func (c *FlattenCtx) Describe() string             { return (&Flatten{}).Describe() }
func (c *FlattenCtx) IsProvable() bool             { return (&Flatten{}).IsProvable() }

// Evaluate reshapes the input tensor to one dimension, keeping its data.
func (fl *Flatten) Evaluate(inputs []*tensor.Tensor[field.Element], _ [][]int) (LayerOut[field.Element], error) {
	if len(inputs) != 1 {
		return LayerOut[field.Element]{}, fmt.Errorf("layer: Flatten.Evaluate expects exactly one input, got %d", len(inputs))
	}
	in := inputs[0]
	data := append([]field.Element(nil), in.GetData()...)
	return LayerOut[field.Element]{Outputs: []*tensor.Tensor[field.Element]{tensor.New([]int{len(data)}, data)}}, nil
}

// GenLookupWitness is a no-op: Flatten is not provable and needs no lookup.
func (fl *Flatten) GenLookupWitness(nodeID graph.NodeId, gen *lookup.LookupWitnessGen, stepData *StepData) error {
	return nil
}

// StepInfo derives the (trivial) proving context for a Flatten node.
func (fl *Flatten) StepInfo(id graph.PolyID, aux graph.ContextAux) (LayerCtx, graph.ContextAux, error) {
	return LayerCtx{
		Kind:    KindFlatten,
		Flatten: &FlattenCtx{PolyID: id},
	}, aux, nil
}

// CommitInfo reports that Flatten has no constant polynomials to precommit.
func (fl *Flatten) CommitInfo(id graph.NodeId) []*CommitEntry { return nil }

// PadNode is the identity: reshaping commutes with padding individual
// dimensions up to a power of two only at the model's padding layer, not
// here.
func (fl *Flatten) PadNode(si *graph.ShapeInfo) error { return PadNodeDefault(si) }
