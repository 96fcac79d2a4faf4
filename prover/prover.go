// Package prover drives a model chain's proving pass end to end: it
// evaluates every node, registers every provable node's lookup witness,
// then walks the chain backward from the asserted output claim, handing
// each node's returned claim to its upstream neighbor exactly as the
// ancestor's reverse-topological proving pass does, and satisfies
// layer.ProverHandle so every operator's Prove method can reach the shared
// field, transcript, lookup aggregator and witness commitment without this
// package needing to be imported by layer.
package prover

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/layer"
	"zkmlprove/lookup"
	"zkmlprove/model"
	"zkmlprove/tensor"
	"zkmlprove/transcript"
	"zkmlprove/witness"
)

// Prover accumulates every piece of state a model chain's proving pass
// shares across nodes: the field, a running transcript, the lookup
// witness aggregator, the output-polynomial commitment, and the proof
// emitted for every node.
type Prover struct {
	f      *field.Field
	tr     transcript.Transcript
	gen    *lookup.LookupWitnessGen
	commit *witness.Commitment
	proofs map[graph.NodeId]layer.LayerProof
}

// New builds an empty Prover over field f.
func New(f *field.Field) *Prover {
	return &Prover{
		f:      f,
		tr:     transcript.New(f),
		gen:    lookup.NewLookupWitnessGen(f),
		commit: witness.NewCommitment(),
		proofs: make(map[graph.NodeId]layer.LayerProof),
	}
}

func (p *Prover) Field() *field.Field                        { return p.f }
func (p *Prover) Transcript() transcript.Transcript          { return p.tr }
func (p *Prover) LookupWitnessGen() *lookup.LookupWitnessGen { return p.gen }
func (p *Prover) WitnessCommitment() *witness.Commitment     { return p.commit }
func (p *Prover) PushProof(id graph.NodeId, proof layer.LayerProof) {
	p.proofs[id] = proof
}

// Proofs returns every proof pushed so far, keyed by node id.
func (p *Prover) Proofs() map[graph.NodeId]layer.LayerProof { return p.proofs }

// ProveChain runs a full proving pass over a model chain: forward
// evaluation, lookup-witness registration for every provable node, then a
// backward walk from outputClaim (the claim asserted about the chain's own
// output) down to the claim about the chain's own input.
//
// A non-provable node (e.g. Flatten) never runs Prove at all: its context
// reports IsProvable()==false, so the node is skipped and the claim is
// carried through unchanged to the next node upstream, mirroring the
// source's treatment of shape-only layers as outside the cryptographic
// chain entirely.
func (p *Prover) ProveChain(c *model.Chain, input *tensor.Tensor[field.Element], outputClaim claim.Claim[field.Elem]) (claim.Claim[field.Elem], error) {
	nodeCtxs, err := c.DeriveContexts(input.Shape())
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("prover: %w", err)
	}
	trace, err := c.Evaluate(input)
	if err != nil {
		return claim.Claim[field.Elem]{}, fmt.Errorf("prover: %w", err)
	}

	for i, nc := range nodeCtxs {
		if !nc.Ctx.IsProvable() {
			continue
		}
		provable, ok := nc.Op.(layer.ProvableOp)
		if !ok {
			return claim.Claim[field.Elem]{}, fmt.Errorf("prover: node %d is provable but its operator does not implement ProvableOp", i)
		}
		if err := provable.GenLookupWitness(nc.Id, p.gen, trace.Steps[i]); err != nil {
			return claim.Claim[field.Elem]{}, fmt.Errorf("prover: node %d GenLookupWitness: %w", i, err)
		}
	}

	current := outputClaim
	for i := len(nodeCtxs) - 1; i >= 0; i-- {
		nc := nodeCtxs[i]
		if !nc.Ctx.IsProvable() {
			continue
		}
		provable := nc.Op.(layer.ProvableOp)
		lastClaims := []*claim.Claim[field.Elem]{&current}
		out, err := provable.Prove(nc.Id, &nc.Ctx, lastClaims, trace.Steps[i], p)
		if err != nil {
			return claim.Claim[field.Elem]{}, fmt.Errorf("prover: node %d Prove: %w", i, err)
		}
		if len(out) != 1 {
			return claim.Claim[field.Elem]{}, fmt.Errorf("prover: node %d Prove returned %d claims, chain requires exactly 1", i, len(out))
		}
		current = out[0]
	}
	return current, nil
}
