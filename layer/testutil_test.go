package layer

import (
	"zkmlprove/graph"
	"zkmlprove/internal/field"
	"zkmlprove/lookup"
	"zkmlprove/tabletype"
	"zkmlprove/transcript"
	"zkmlprove/witness"
)

// fakeProver is a minimal ProverHandle backing these tests: a single shared
// field, a fresh transcript and lookup aggregator, a witness commitment,
// and a log of every pushed proof.
type fakeProver struct {
	f      *field.Field
	tr     transcript.Transcript
	gen    *lookup.LookupWitnessGen
	commit *witness.Commitment
	proofs map[graph.NodeId]LayerProof
}

func newFakeProver(f *field.Field) *fakeProver {
	return &fakeProver{
		f:      f,
		tr:     transcript.New(f),
		gen:    lookup.NewLookupWitnessGen(f),
		commit: witness.NewCommitment(),
		proofs: make(map[graph.NodeId]LayerProof),
	}
}

func (p *fakeProver) Field() *field.Field                           { return p.f }
func (p *fakeProver) Transcript() transcript.Transcript              { return p.tr }
func (p *fakeProver) LookupWitnessGen() *lookup.LookupWitnessGen     { return p.gen }
func (p *fakeProver) WitnessCommitment() *witness.Commitment         { return p.commit }
func (p *fakeProver) PushProof(id graph.NodeId, proof LayerProof)    { p.proofs[id] = proof }

// fakeVerifier mirrors fakeProver, reading tables out of the same gen the
// matched fakeProver populated rather than its own copy.
type fakeVerifier struct {
	f      *field.Field
	tr     transcript.Transcript
	tables map[tabletype.TableType]*lookup.Table
	cs     *transcript.ChallengeStorage
	commit *witness.Commitment
}

func newFakeVerifier(f *field.Field, tables map[tabletype.TableType]*lookup.Table) *fakeVerifier {
	return &fakeVerifier{
		f:      f,
		tr:     transcript.New(f),
		tables: tables,
		cs:     transcript.NewChallengeStorage(),
		commit: witness.NewCommitment(),
	}
}

func (v *fakeVerifier) Field() *field.Field                           { return v.f }
func (v *fakeVerifier) Transcript() transcript.Transcript              { return v.tr }
func (v *fakeVerifier) ChallengeStorage() *transcript.ChallengeStorage { return v.cs }
func (v *fakeVerifier) WitnessCommitment() *witness.Commitment         { return v.commit }
func (v *fakeVerifier) LookupTable(tt tabletype.TableType) (*lookup.Table, bool) {
	t, ok := v.tables[tt]
	return t, ok
}

func testField() *field.Field {
	return field.NewDegreeOne(2147483647)
}
