// Package witness keys every provable node's output claim by the id of its
// committed polynomial, so a single claim map can be threaded through an
// entire proving (or verification) pass and queried by any later node that
// consumes an earlier node's commitment.
//
// It is grounded on the keyed-by-id aggregation pattern of the ancestor's
// `LVCS.ProverKey` (commit-time state accumulated under an `OracleLayout`
// keyed by polynomial id, read back during EvalInit/EvalFinish): here the
// key space is flattened to a single PolyID -> Claim map, since this
// module's claims are not themselves segmented across oracle layouts.
package witness

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
)

// Commitment maps a committed polynomial's id to the claim asserted about
// its evaluation.
type Commitment struct {
	claims map[graph.PolyID]claim.Claim[field.Elem]
}

// NewCommitment builds an empty commitment claim map.
func NewCommitment() *Commitment {
	return &Commitment{claims: make(map[graph.PolyID]claim.Claim[field.Elem])}
}

// AddClaim records the claim for PolyID id. A model is only ever meant to
// insert one claim per provable layer's committed polynomial; inserting a
// second claim for the same id is a structural error.
func (c *Commitment) AddClaim(id graph.PolyID, claimVal claim.Claim[field.Elem]) error {
	if _, ok := c.claims[id]; ok {
		return fmt.Errorf("witness: claim for poly %d already recorded", id)
	}
	c.claims[id] = claimVal
	return nil
}

// Get returns the claim recorded for PolyID id, if any.
func (c *Commitment) Get(id graph.PolyID) (claim.Claim[field.Elem], bool) {
	v, ok := c.claims[id]
	return v, ok
}

// Len returns the number of distinct polynomials with a recorded claim.
func (c *Commitment) Len() int { return len(c.claims) }
