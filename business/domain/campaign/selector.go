package campaign

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// Candidate is a registered verifier together with the number of
// participants assigned to it in the current cycle.
type Candidate struct {
	Handle   string
	Assigned int
}

// Selection describes one submission that needs a verifier.
type Selection struct {
	Participant string
	// Submissions counts the submissions accepted in the current cycle before
	// this one.
	Submissions int
	// Candidates is never empty and keeps registry order.
	Candidates []Candidate
}

// Selector picks the verifier for a submission. It must return the handle of
// one of the candidates. Select is always called with the campaign lock held.
type Selector interface {
	Select(s Selection) string
}

// LeastAssignedSelector spreads assignments by choosing among the verifiers
// with the fewest assignments, breaking ties with its random source. It is
// not safe for concurrent use, give every Service its own instance.
type LeastAssignedSelector struct {
	rnd *rand.Rand
}

func NewLeastAssignedSelector(seed uint64) *LeastAssignedSelector {
	return &LeastAssignedSelector{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *LeastAssignedSelector) Select(s Selection) string {
	least := s.Candidates[0].Assigned
	for _, c := range s.Candidates[1:] {
		least = min(least, c.Assigned)
	}

	var ties []string
	for _, c := range s.Candidates {
		if c.Assigned == least {
			ties = append(ties, c.Handle)
		}
	}
	return ties[l.rnd.IntN(len(ties))]
}

// HashSelector derives the verifier from a hash over its seed, the
// participant and the submission count. It keeps no state, the same inputs
// always select the same verifier.
type HashSelector struct {
	seed []byte
}

func NewHashSelector(seed string) *HashSelector {
	return &HashSelector{seed: []byte(seed)}
}

func (h *HashSelector) Select(s Selection) string {
	hash := sha256.New()
	hash.Write(h.seed)
	hash.Write([]byte(s.Participant))
	hash.Write(binary.BigEndian.AppendUint64(nil, uint64(s.Submissions)))
	sum := hash.Sum(nil)

	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(s.Candidates))
	return s.Candidates[idx].Handle
}
