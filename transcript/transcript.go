// Package transcript implements the Fiat-Shamir transcript consumed by the
// lookup argument, the same-polynomial accumulator and the requantization
// layer's challenge derivation.
//
// It is grounded on the labelled SHAKE-256 duplex used by the PIOP package
// of this module's ancestor (PIOP.Shake256XOF / PIOP.FS): every absorption
// is ordered, and every challenge is derived from a fresh squeeze keyed by a
// label plus a per-label counter, so repeated challenge requests under the
// same label never collide. The grinding/proof-of-work loop of the ancestor
// is specific to its protocol and is not part of this transcript.
package transcript

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"zkmlprove/internal/field"
)

// Transcript is the interface consumed by the lookup argument and the
// same-polynomial accumulator.
type Transcript interface {
	AppendFieldElement(e field.Elem)
	AppendFieldElements(es []field.Elem)
	AppendUint64(v uint64)
	Challenge(label string) field.Elem
	ChallengePair(label string) (field.Elem, field.Elem)
}

// Shake256Transcript is a SHAKE-256 backed Transcript.
type Shake256Transcript struct {
	f        *field.Field
	absorbed []byte
	counters map[string]uint64
}

// New creates an empty transcript over the extension field f.
func New(f *field.Field) *Shake256Transcript {
	return &Shake256Transcript{f: f, counters: make(map[string]uint64)}
}

// AppendFieldElement absorbs a single field element's limbs into the transcript.
func (t *Shake256Transcript) AppendFieldElement(e field.Elem) {
	for _, limb := range e.Limb {
		t.absorbed = append(t.absorbed, u64le(limb)...)
	}
}

// AppendFieldElements absorbs a slice of field elements in order.
func (t *Shake256Transcript) AppendFieldElements(es []field.Elem) {
	for _, e := range es {
		t.AppendFieldElement(e)
	}
}

// AppendUint64 absorbs a raw 64-bit integer in little-endian order. No layer
// in this module absorbs its parameters (e.g. Requant.RightShift,
// Requant.Range) through it.
func (t *Shake256Transcript) AppendUint64(v uint64) {
	t.absorbed = append(t.absorbed, u64le(v)...)
}

// Challenge derives a single field element from the absorbed state, the
// label, and the label's current counter, then folds the derived bytes back
// into the absorbed state so subsequent challenges depend on it.
func (t *Shake256Transcript) Challenge(label string) field.Elem {
	out := t.squeeze(label, 8*t.f.Theta)
	e := field.Elem{Limb: make([]uint64, t.f.Theta)}
	for i := 0; i < t.f.Theta; i++ {
		e.Limb[i] = binary.LittleEndian.Uint64(out[i*8:(i+1)*8]) % t.f.Q
	}
	return e
}

// ChallengePair derives two independent field elements under the same label
// (distinct counters), the shape the lookup argument needs for its pair of
// batching challenges (constant_challenge, column_separation_challenge).
func (t *Shake256Transcript) ChallengePair(label string) (field.Elem, field.Elem) {
	a := t.Challenge(label)
	b := t.Challenge(label)
	return a, b
}

func (t *Shake256Transcript) squeeze(label string, outLen int) []byte {
	ctr := t.counters[label]
	h := sha3.NewShake256()
	_, _ = h.Write(t.absorbed)
	_, _ = h.Write([]byte(label))
	_, _ = h.Write(u64le(ctr))
	out := make([]byte, outLen)
	_, _ = h.Read(out)
	t.counters[label] = ctr + 1
	t.absorbed = append(t.absorbed, out...)
	return out
}

func u64le(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

// ChallengeStorage is a store of (constant, column-separation) challenge
// pairs keyed by table name, in the shape of the source's
// challenge_storage.get_challenges_by_name. It is filled only through
// SetChallenges; the proving and verification drivers never write to it,
// and the lookup verifier re-derives its challenges from the transcript
// instead of reading them here.
type ChallengeStorage struct {
	pairs map[string][2]field.Elem
}

// NewChallengeStorage creates an empty challenge store.
func NewChallengeStorage() *ChallengeStorage {
	return &ChallengeStorage{pairs: make(map[string][2]field.Elem)}
}

// SetChallenges records the (constant, column-separation) challenge pair for
// a named table type.
func (c *ChallengeStorage) SetChallenges(name string, constant, columnSep field.Elem) {
	c.pairs[name] = [2]field.Elem{constant, columnSep}
}

// GetChallengesByName returns the recorded challenge pair for a named table
// type, and whether it was found.
func (c *ChallengeStorage) GetChallengesByName(name string) (constant, columnSep field.Elem, ok bool) {
	pair, ok := c.pairs[name]
	if !ok {
		return field.Elem{}, field.Elem{}, false
	}
	return pair[0], pair[1], true
}
