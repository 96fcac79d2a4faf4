// Package lookup implements a LogUp-style batched multiset-check lookup
// argument: proving that every value fed through a set of witness columns
// belongs to a registered table, without revealing which table entry each
// value matches.
//
// It is grounded on the commit-then-read-only-pass shape of the ancestor's
// `LVCS.ProverKey` (commitment/LVCS: a struct filled incrementally up
// through CommitFinish, then only read during EvalInit/EvalFinish) and
// `DECS.Prover` (CommitInit/CommitStep2 aggregate state, EvalOpen only
// reads it), transplanted onto the multiset identity
//
//	Σ_i 1/(alpha - v_i) == Σ_t mult(t)/(alpha - t)
//
// that LogUp-family arguments check. This is a real, testable
// implementation of the interface the requantization layer consumes, not
// a soundness-audited construction: it collapses what a production GKR-
// based LogUp would prove via a full sumcheck into a single
// transcript-derived evaluation point, consistent with the way the
// requantization layer only ever consumes "a per-column evaluation claim
// at a common random point", never the machinery that produced it.
package lookup

import (
	"fmt"

	"zkmlprove/claim"
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/tabletype"
	"zkmlprove/transcript"
)

// Table is the finite set of values a column must draw every entry from.
type Table struct {
	Values []field.Elem
}

// ColumnEvals holds the witness columns a single node contributed to a
// lookup, prior to challenge derivation.
type ColumnEvals struct {
	Columns [][]field.Elem
	Table   tabletype.TableType
	PolyID  graph.PolyID
}

// LookupWitnessGen aggregates every node's lookup columns during the
// pre-proving pass, across every table kind a model uses. It is filled in
// topological order by calling a node's GenLookupWitness once per node
// before the proving pass starts, mirroring the "a table is registered
// once and all contributions from all layers are merged before the table
// prover runs" ordering guarantee it serves; it is read-only once proving
// begins.
type LookupWitnessGen struct {
	Field               *field.Field
	Tables              map[tabletype.TableType]*Table
	LookupsNoChallenges map[graph.NodeId]ColumnEvals
}

// NewLookupWitnessGen builds an empty aggregator over field f. Every
// operator's GenLookupWitness reaches the field through gen.Field rather
// than through its own parameters, since the field is shared model-wide.
func NewLookupWitnessGen(f *field.Field) *LookupWitnessGen {
	return &LookupWitnessGen{
		Field:               f,
		Tables:              make(map[tabletype.TableType]*Table),
		LookupsNoChallenges: make(map[graph.NodeId]ColumnEvals),
	}
}

// RegisterTable installs the value set for a table kind, if not already
// present. Re-registering the same kind with the same values is a no-op.
func (g *LookupWitnessGen) RegisterTable(tt tabletype.TableType, values []field.Elem) {
	if _, ok := g.Tables[tt]; ok {
		return
	}
	g.Tables[tt] = &Table{Values: append([]field.Elem(nil), values...)}
}

// AddColumns records one node's lookup witness columns against table kind
// tt. Calling this twice for the same node is an error: a table's
// contributions must be merged exactly once per node.
func (g *LookupWitnessGen) AddColumns(nodeID graph.NodeId, polyID graph.PolyID, tt tabletype.TableType, columns [][]field.Elem) error {
	if _, ok := g.LookupsNoChallenges[nodeID]; ok {
		return fmt.Errorf("lookup: node %d already contributed lookup columns", nodeID)
	}
	if _, ok := g.Tables[tt]; !ok {
		return fmt.Errorf("lookup: table %s not registered before node %d's columns", tt, nodeID)
	}
	g.LookupsNoChallenges[nodeID] = ColumnEvals{Columns: columns, Table: tt, PolyID: polyID}
	return nil
}

// LogUpProof is the batched lookup argument's transcript, sufficient for a
// verifier to recheck the multiset identity and recover per-column claims.
type LogUpProof struct {
	NumInstances   int
	Alpha          field.Elem
	Beta           field.Elem
	ClaimedSum     field.Elem
	Multiplicities []uint64
	ColumnClaims   []claim.Claim[field.Elem]
}

// LogUpVerifierClaims is the verifier-side view of a checked LogUpProof:
// the per-column evaluation claims the requantization layer's recombination
// identity consumes.
type LogUpVerifierClaims struct {
	claims []claim.Claim[field.Elem]
}

// Claims returns the per-column evaluation claims surfaced by verification.
func (c *LogUpVerifierClaims) Claims() []claim.Claim[field.Elem] { return c.claims }

// elemKey builds a hashable key for a field element, since Elem's backing
// limb slice makes it unusable directly as a map key.
func elemKey(e field.Elem) string {
	return fmt.Sprint(e.Limb)
}

// BatchProve proves that every entry of every one of the node's registered
// lookup columns lies in its registered table. Each column is an
// independent sequence of range-checked values sharing one table, not a
// multi-field row to be folded together, so the multiset check runs over
// the flattened concatenation of all columns: checking K independent
// columns against table T is exactly checking one column of length K*n
// against T. The evaluation challenge (Alpha) folds each column separately
// (across its own rows) into one claim per column, at a shared point built
// from Alpha and the column-separation challenge (Beta) — both derived
// from the transcript, labelled by the table kind's name so independent
// tables never share a challenge.
func BatchProve(f *field.Field, gen *LookupWitnessGen, nodeID graph.NodeId, tr transcript.Transcript) (*LogUpProof, error) {
	entry, ok := gen.LookupsNoChallenges[nodeID]
	if !ok {
		return nil, fmt.Errorf("lookup: no lookup columns registered for node %d", nodeID)
	}
	table, ok := gen.Tables[entry.Table]
	if !ok {
		return nil, fmt.Errorf("lookup: table %s not registered", entry.Table)
	}
	if len(entry.Columns) == 0 || len(entry.Columns[0]) == 0 {
		return nil, fmt.Errorf("lookup: node %d has no rows to prove", nodeID)
	}
	numRows := len(entry.Columns[0])
	for _, col := range entry.Columns {
		if len(col) != numRows {
			return nil, fmt.Errorf("lookup: node %d has columns of mismatched length", nodeID)
		}
	}

	alpha, beta := tr.ChallengePair(entry.Table.String())
	point := []field.Elem{alpha, beta}

	flattened := make([]field.Elem, 0, numRows*len(entry.Columns))
	for _, col := range entry.Columns {
		flattened = append(flattened, col...)
	}

	multiplicities := make([]uint64, len(table.Values))
	index := make(map[string]int, len(table.Values))
	for i, v := range table.Values {
		index[elemKey(v)] = i
	}
	for _, v := range flattened {
		idx, ok := index[elemKey(v)]
		if !ok {
			return nil, fmt.Errorf("lookup: node %d produced a value outside table %s", nodeID, entry.Table)
		}
		multiplicities[idx]++
	}

	claimedSum := f.Zero()
	for _, v := range flattened {
		claimedSum = f.Add(claimedSum, f.Inv(f.Sub(alpha, v)))
	}

	columnClaims := make([]claim.Claim[field.Elem], len(entry.Columns))
	for j, col := range entry.Columns {
		eval := f.Zero()
		power := f.One()
		for i := 0; i < numRows; i++ {
			eval = f.Add(eval, f.Mul(power, col[i]))
			power = f.Mul(power, alpha)
		}
		columnClaims[j] = claim.New(point, eval)
	}

	return &LogUpProof{
		NumInstances:   len(flattened),
		Alpha:          alpha,
		Beta:           beta,
		ClaimedSum:     claimedSum,
		Multiplicities: multiplicities,
		ColumnClaims:   columnClaims,
	}, nil
}

// RowWeightSum returns alpha^0 + alpha^1 + ... + alpha^(numRows-1), the
// same weight total the column fold above applies across a node's rows.
// Callers that invert an affine per-row identity against a folded column
// claim (Requant's recombination) need this to scale constant terms by
// the fold's weight total rather than by the single-row case of 1.
func RowWeightSum(f *field.Field, alpha field.Elem, numRows int) field.Elem {
	sum := f.Zero()
	term := f.One()
	for i := 0; i < numRows; i++ {
		sum = f.Add(sum, term)
		term = f.Mul(term, alpha)
	}
	return sum
}

// VerifyLogupProof recomputes the challenges from the transcript (so a
// proof replayed against a different transcript history fails), rechecks
// the multiset identity against the table's multiplicities, and returns
// the per-column claims the caller should feed into its own recombination
// check.
func VerifyLogupProof(f *field.Field, table *Table, proof *LogUpProof, tableKind tabletype.TableType, tr transcript.Transcript) (*LogUpVerifierClaims, error) {
	alpha, beta := tr.ChallengePair(tableKind.String())
	if !f.Equal(alpha, proof.Alpha) || !f.Equal(beta, proof.Beta) {
		return nil, fmt.Errorf("lookup: proof challenges do not match the transcript")
	}
	if proof.NumInstances <= 0 {
		return nil, fmt.Errorf("lookup: proof claims zero instances")
	}
	if len(proof.ColumnClaims) == 0 {
		return nil, fmt.Errorf("lookup: proof carries no column claims")
	}
	if len(proof.Multiplicities) != len(table.Values) {
		return nil, fmt.Errorf("lookup: multiplicity vector does not match table size")
	}

	var total uint64
	rhs := f.Zero()
	for i, v := range table.Values {
		m := proof.Multiplicities[i]
		total += m
		if m == 0 {
			continue
		}
		rhs = f.Add(rhs, f.MulScalar(f.Inv(f.Sub(alpha, v)), m))
	}
	if total != uint64(proof.NumInstances) {
		return nil, fmt.Errorf("lookup: multiplicities sum to %d, expected %d instances", total, proof.NumInstances)
	}
	if !f.Equal(rhs, proof.ClaimedSum) {
		return nil, fmt.Errorf("lookup: multiset identity does not hold for table %s", tableKind)
	}

	return &LogUpVerifierClaims{claims: proof.ColumnClaims}, nil
}
