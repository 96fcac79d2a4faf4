// Package model ties a sequence of layer operators into the single
// structure both a prover and a verifier walk: a straight-line chain from
// the model's own input slot to its own output slot, the shape the
// ancestor's graph-of-nodes collapses to once every node has exactly one
// input and one output edge (the only fan-out/fan-in-free shape
// graph.ClaimsForNode and graph.InputClaims need to route claims through,
// per their single-consumer precondition).
package model

import (
	"fmt"

	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/layer"
	"zkmlprove/tensor"
)

// Operator is the capability set every node's concrete operator exposes:
// shape/description, pure evaluation, and proving-context derivation.
// Provable operators additionally satisfy layer.ProvableOp; the chain
// checks for that with a type assertion at proving time, mirroring the
// ancestor's IsProvable()-gated dispatch to the default trait method.
type Operator interface {
	layer.OpInfo
	layer.Evaluate
	layer.ProveInfo
}

// Chain is a single straight-line model: node i's output feeds node i+1's
// input, node 0 consumes the model's own input, and the last node produces
// the model's own output.
type Chain struct {
	Ops []Operator
}

// NodeCtx pairs a node's id with the proving context StepInfo derived for
// it, plus its concrete operator for evaluation/proving.
type NodeCtx struct {
	Id  graph.NodeId
	Op  Operator
	Ctx layer.LayerCtx
}

// DeriveContexts runs StepInfo over the chain in forward order, threading
// ContextAux exactly as the ancestor's per-node context derivation pass
// does: each node sees the running polynomial id and the previous node's
// output shape. It needs no witness data, so a verifier can call this
// independently of the prover and arrive at the identical context sequence
// (the contract PadOp/OpInfo/ProveInfo are built to uphold).
func (c *Chain) DeriveContexts(inputShape []int) ([]NodeCtx, error) {
	aux := graph.ContextAux{LastPolyID: 0, LastShape: inputShape}
	result := make([]NodeCtx, len(c.Ops))
	for i, op := range c.Ops {
		ctx, nextAux, err := op.StepInfo(aux.LastPolyID, aux)
		if err != nil {
			return nil, fmt.Errorf("model: node %d StepInfo: %w", i, err)
		}
		result[i] = NodeCtx{Id: i, Op: op, Ctx: ctx}
		outShapes := ctx.OutputShapes([][]int{aux.LastShape}, graph.NoPadding)
		if len(outShapes) == 0 {
			return nil, fmt.Errorf("model: node %d produced no output shape", i)
		}
		nextAux.LastPolyID = i + 1
		nextAux.LastShape = outShapes[0]
		aux = nextAux
	}
	return result, nil
}

// Trace is the forward evaluation witness for every node in the chain:
// node i's matched (input, output) tensor pair.
type Trace struct {
	Steps []*layer.StepData
	Final *tensor.Tensor[field.Element]
}

// Evaluate runs every operator in order, keeping each node's matched
// input/output tensors so GenLookupWitness and Prove can consume them
// without re-running the forward pass.
func (c *Chain) Evaluate(input *tensor.Tensor[field.Element]) (*Trace, error) {
	steps := make([]*layer.StepData, len(c.Ops))
	cur := input
	for i, op := range c.Ops {
		out, err := op.Evaluate([]*tensor.Tensor[field.Element]{cur}, nil)
		if err != nil {
			return nil, fmt.Errorf("model: node %d Evaluate: %w", i, err)
		}
		steps[i] = &layer.StepData{
			Inputs:  []*tensor.Tensor[field.Element]{cur},
			Outputs: out,
		}
		if len(out.Outputs) != 1 {
			return nil, fmt.Errorf("model: node %d produced %d outputs, chain requires exactly 1", i, len(out.Outputs))
		}
		cur = out.Outputs[0]
	}
	return &Trace{Steps: steps, Final: cur}, nil
}
