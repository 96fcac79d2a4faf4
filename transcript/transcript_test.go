package transcript

import (
	"testing"

	"zkmlprove/internal/field"
)

func testField() *field.Field {
	return field.NewDegreeOne(2147483647)
}

func TestChallengeDeterministic(t *testing.T) {
	f := testField()
	t1 := New(f)
	t1.AppendFieldElement(f.EmbedF(42))
	c1 := t1.Challenge("range")

	t2 := New(f)
	t2.AppendFieldElement(f.EmbedF(42))
	c2 := t2.Challenge("range")

	if !f.Equal(c1, c2) {
		t.Fatalf("same transcript history must yield same challenge: %+v vs %+v", c1, c2)
	}
}

func TestChallengeDivergesOnHistory(t *testing.T) {
	f := testField()
	t1 := New(f)
	t1.AppendFieldElement(f.EmbedF(1))
	c1 := t1.Challenge("range")

	t2 := New(f)
	t2.AppendFieldElement(f.EmbedF(2))
	c2 := t2.Challenge("range")

	if f.Equal(c1, c2) {
		t.Fatalf("distinct absorbed history must yield distinct challenges")
	}
}

func TestRepeatedLabelDiverges(t *testing.T) {
	f := testField()
	tr := New(f)
	tr.AppendFieldElement(f.EmbedF(7))
	a := tr.Challenge("range")
	b := tr.Challenge("range")
	if f.Equal(a, b) {
		t.Fatalf("repeated challenge under same label must not collide")
	}
}

func TestChallengeStorageRoundTrip(t *testing.T) {
	f := testField()
	cs := NewChallengeStorage()
	alpha, beta := f.EmbedF(3), f.EmbedF(5)
	cs.SetChallenges("Range", alpha, beta)

	gotA, gotB, ok := cs.GetChallengesByName("Range")
	if !ok {
		t.Fatalf("expected challenges to be found")
	}
	if !f.Equal(gotA, alpha) || !f.Equal(gotB, beta) {
		t.Fatalf("challenge pair mismatch")
	}
	if _, _, ok := cs.GetChallengesByName("Pooling"); ok {
		t.Fatalf("expected missing challenges for unregistered table")
	}
}
