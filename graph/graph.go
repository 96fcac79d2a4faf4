// Package graph defines the node/edge wiring of a model: how a node's
// inputs and outputs link to other nodes (or to the model's own input/output
// slots), and the claim-routing helpers that walk those links during proving
// and verification.
//
// This is the Go shape of the ancestor's `layers::provable` module
// (`Edge`, `OutputWire`, `Node<N>`, `NodeCtx<E>`, `claims_for_node`,
// `input_claims`). It is kept a leaf package: it depends only on `claim`
// and `tabletype`, never on `layer`, so that `layer` can freely import it
// without creating a cycle.
package graph

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/tabletype"
)

// NodeId identifies a node within a model.
type NodeId = int

// PolyID identifies a committed polynomial (a node's witness or a constant).
type PolyID = int

// Edge links an input or output wire to another node's wire, or, when Node
// is nil, to one of the model's own input/output slots.
type Edge struct {
	Node  *NodeId
	Index int
}

// NewEdge builds an edge pointing at wire `index` of node `node`.
func NewEdge(node NodeId, index int) Edge {
	id := node
	return Edge{Node: &id, Index: index}
}

// NewModelEdge builds an edge pointing at the model's own input/output slot
// `index` (mirrors the ancestor's `Edge::new_at_edge`).
func NewModelEdge(index int) Edge {
	return Edge{Node: nil, Index: index}
}

// IsModelEdge reports whether the edge refers to a model input/output slot
// rather than another node.
func (e Edge) IsModelEdge() bool { return e.Node == nil }

// OutputWire holds every edge consuming a node's output. Proving currently
// supports exactly one consumer per output wire (see ClaimsForNode).
type OutputWire struct {
	Edges []Edge
}

// ContextAux carries auxiliary state threaded through a model's per-node
// proving-context construction: the running polynomial id counter, the
// shape of the previous node's output, and the set of lookup table kinds
// accumulated so far.
type ContextAux struct {
	LastPolyID PolyID
	LastShape  []int
	Tables     tabletype.Set
}

// ShapeStep records the unpadded and padded shapes on either side of a
// node, handed to a context's Verify so it can recompute padding-dependent
// quantities without re-deriving them from the model.
type ShapeStep struct {
	UnpaddedInputShape  []int
	PaddedInputShape    []int
	UnpaddedOutputShape []int
	PaddedOutputShape   []int
}

// PaddingMode selects how output_shapes rounds tensor dimensions.
type PaddingMode int

const (
	// NoPadding reports the true, unpadded output shape.
	NoPadding PaddingMode = iota
	// Padded rounds every dimension up to the next power of two.
	Padded
)

// ShapeInfo tracks the shapes flowing through pad_node as a model's graph
// is padded end-to-end, one node at a time.
type ShapeInfo struct {
	UnpaddedInputShapes [][]int
	InputShapes         [][]int
}

// ClaimsForNode resolves the claim attached to each of a node's output
// wires, given the claims already produced for every node in the model and
// the claims asserted about the model's own outputs.
//
// Fan-out (an output wire consumed by more than one edge) is not a
// recoverable proving failure: batching claims about the same polynomial
// across multiple consumers is unimplemented, so encountering it here is a
// hard precondition violation and this function panics, mirroring the
// ancestor's `assert_eq!(out.edges.len(), 1)`. Every other structural
// failure (an unknown node id, an out-of-range edge index, a missing
// output claim) returns an error.
func ClaimsForNode[E any](outputs []OutputWire, claimsByNode map[NodeId][]claim.Claim[E], outputClaims []claim.Claim[E]) ([]*claim.Claim[E], error) {
	result := make([]*claim.Claim[E], 0, len(outputs))
	for _, out := range outputs {
		if len(out.Edges) != 1 {
			panic(fmt.Sprintf("graph: output wire has %d consumers, claim batching across multiple consumers is unsupported", len(out.Edges)))
		}
		edge := out.Edges[0]
		if edge.Node != nil {
			id := *edge.Node
			claims, ok := claimsByNode[id]
			if !ok {
				return nil, fmt.Errorf("graph: no claims found for node %d", id)
			}
			if edge.Index >= len(claims) {
				return nil, fmt.Errorf("graph: not enough claims found for node %d: required claim for input %d, but %d claims found", id, edge.Index, len(claims))
			}
			result = append(result, &claims[edge.Index])
		} else {
			if edge.Index >= len(outputClaims) {
				return nil, fmt.Errorf("graph: required claim for output %d of the model, but only %d output claims found", edge.Index, len(outputClaims))
			}
			result = append(result, &outputClaims[edge.Index])
		}
	}
	return result, nil
}

// NodeInputs is the minimal view InputClaims needs of a node: its id and
// its input edges. Callers build it from their own node representation, so
// graph never has to import the packages that define one.
type NodeInputs struct {
	Id     NodeId
	Inputs []Edge
}

// InputClaims collects the claims asserted about the model's own input
// slots, scanning every given node's input edges for ones that point at a
// model slot (Node == nil) rather than another node. The resulting claim
// set's indices must form a dense {0,...,k-1} range, i.e. every model
// input slot must have exactly one claim asserted about it.
func InputClaims[E any](nodes []NodeInputs, claimsByNode map[NodeId][]claim.Claim[E]) ([]*claim.Claim[E], error) {
	byIndex := make(map[int]*claim.Claim[E])
	for _, node := range nodes {
		claims, haveClaims := claimsByNode[node.Id]
		for i, edge := range node.Inputs {
			if !edge.IsModelEdge() {
				continue
			}
			if !haveClaims {
				return nil, fmt.Errorf("graph: claim not found for node %d", node.Id)
			}
			if i >= len(claims) {
				return nil, fmt.Errorf("graph: claim not found for node %d input %d", node.Id, i)
			}
			byIndex[edge.Index] = &claims[i]
		}
	}
	if len(byIndex) == 0 {
		return nil, fmt.Errorf("graph: no input claims found for the set of nodes provided")
	}
	ordered := make([]*claim.Claim[E], len(byIndex))
	for idx, c := range byIndex {
		if idx < 0 || idx >= len(ordered) {
			return nil, fmt.Errorf("graph: not all input claims were found")
		}
		ordered[idx] = c
	}
	for _, c := range ordered {
		if c == nil {
			return nil, fmt.Errorf("graph: not all input claims were found")
		}
	}
	return ordered, nil
}
