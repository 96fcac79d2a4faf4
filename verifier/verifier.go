// Package verifier drives a model chain's verification pass end to end: it
// rederives every node's public proving context exactly as the prover did
// (without ever touching a witness), builds the public lookup tables every
// provable node needs, then walks the chain backward from the asserted
// output claim through each node's proof, mirroring the ancestor's
// reverse-topological verification pass. It satisfies layer.VerifierHandle
// so every operator's Verify method can reach the shared field, transcript
// and lookup table registry without this package needing to be imported
// by layer.
package verifier

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/layer"
	"zkmlprove/lookup"
	"zkmlprove/model"
	"zkmlprove/tabletype"
	"zkmlprove/transcript"
	"zkmlprove/witness"
)

// Verifier accumulates every piece of state a model chain's verification
// pass shares across nodes: the field, a running transcript matched to
// the prover's, the registry of public lookup tables, the challenge
// storage, and the output-polynomial commitment.
type Verifier struct {
	f      *field.Field
	tr     transcript.Transcript
	tables map[tabletype.TableType]*lookup.Table
	cs     *transcript.ChallengeStorage
	commit *witness.Commitment
}

// New builds a Verifier over field f with an empty table registry; call
// BuildTables once the chain is known to populate it.
func New(f *field.Field) *Verifier {
	return &Verifier{
		f:      f,
		tr:     transcript.New(f),
		tables: make(map[tabletype.TableType]*lookup.Table),
		cs:     transcript.NewChallengeStorage(),
		commit: witness.NewCommitment(),
	}
}

func (v *Verifier) Field() *field.Field                            { return v.f }
func (v *Verifier) Transcript() transcript.Transcript              { return v.tr }
func (v *Verifier) ChallengeStorage() *transcript.ChallengeStorage { return v.cs }
func (v *Verifier) WitnessCommitment() *witness.Commitment         { return v.commit }

func (v *Verifier) LookupTable(tt tabletype.TableType) (*lookup.Table, bool) {
	t, ok := v.tables[tt]
	return t, ok
}

// BuildTables derives the chain's node contexts from public shape data
// alone and registers the table every provable node's Kind requires,
// using the same table-construction functions the prover's
// GenLookupWitness methods call — so the verifier's tables are bit-for-
// bit the ones the prover committed its columns against, without ever
// reading the witness that produced those columns.
func (v *Verifier) BuildTables(c *model.Chain, inputShape []int) ([]model.NodeCtx, error) {
	nodeCtxs, err := c.DeriveContexts(inputShape)
	if err != nil {
		return nil, fmt.Errorf("verifier: %w", err)
	}
	for _, nc := range nodeCtxs {
		switch nc.Ctx.Kind {
		case layer.KindRequant:
			r := nc.Ctx.Requant.Requant
			v.tables[tabletype.Range] = &lookup.Table{Values: layer.RangeTableValues(v.f, r.AfterRange)}
		case layer.KindActivation:
			a := nc.Ctx.Activation.Activation
			v.tables[tabletype.Relu] = &lookup.Table{Values: layer.ReluTableValues(v.f, a.Bits)}
		case layer.KindPooling:
			p := nc.Ctx.Pooling.Pooling
			v.tables[tabletype.Pooling] = &lookup.Table{Values: layer.PoolingTableValues(v.f, p.Bits)}
		}
	}
	return nodeCtxs, nil
}

// VerifyChain walks a chain backward from outputClaim (the claim asserted
// about the chain's own output), checking each provable node's proof in
// turn and carrying a non-provable node's claim through unchanged, until
// it arrives at the claim about the chain's own input — mirroring
// prover.Prover.ProveChain's backward walk exactly, one Verify call per
// Prove call.
func (v *Verifier) VerifyChain(c *model.Chain, inputShape []int, proofs map[graph.NodeId]layer.LayerProof, outputClaim claim.Claim[field.Elem]) (claim.Claim[field.Elem], error) {
	nodeCtxs, err := v.BuildTables(c, inputShape)
	if err != nil {
		return claim.Claim[field.Elem]{}, err
	}

	current := outputClaim
	for i := len(nodeCtxs) - 1; i >= 0; i-- {
		nc := nodeCtxs[i]
		if !nc.Ctx.IsProvable() {
			continue
		}
		proof, ok := proofs[nc.Id]
		if !ok {
			return claim.Claim[field.Elem]{}, fmt.Errorf("verifier: node %d: no proof supplied", nc.Id)
		}
		lastClaims := []*claim.Claim[field.Elem]{&current}
		out, err := nc.Ctx.Verify(&proof, lastClaims, v, nil)
		if err != nil {
			return claim.Claim[field.Elem]{}, fmt.Errorf("verifier: node %d Verify: %w", nc.Id, err)
		}
		if len(out) != 1 {
			return claim.Claim[field.Elem]{}, fmt.Errorf("verifier: node %d Verify returned %d claims, chain requires exactly 1", nc.Id, len(out))
		}
		current = out[0]
	}
	return current, nil
}
