package campaign

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestLeastAssignedSelector_Select_thenPickLeastAssigned(t *testing.T) {
	selector := NewLeastAssignedSelector(1)

	selected := selector.Select(Selection{
		Participant: "p",
		Candidates: []Candidate{
			{Handle: "a", Assigned: 3},
			{Handle: "b", Assigned: 1},
			{Handle: "c", Assigned: 2},
		},
	})
	assert.Equal(t, "b", selected)
}

func TestLeastAssignedSelector_Select_givenTies_thenPickAmongTies(t *testing.T) {
	selector := NewLeastAssignedSelector(7)
	candidates := []Candidate{
		{Handle: "a", Assigned: 1},
		{Handle: "b", Assigned: 0},
		{Handle: "c", Assigned: 0},
	}

	seen := make(map[string]int)
	for i := 0; i < 200; i++ {
		seen[selector.Select(Selection{Participant: "p", Submissions: i, Candidates: candidates})]++
	}
	assert.Zero(t, seen["a"])
	assert.Positive(t, seen["b"])
	assert.Positive(t, seen["c"])
}

func TestLeastAssignedSelector_givenSameSeed_thenSameSequence(t *testing.T) {
	first := NewLeastAssignedSelector(99)
	second := NewLeastAssignedSelector(99)
	candidates := []Candidate{{Handle: "a"}, {Handle: "b"}, {Handle: "c"}, {Handle: "d"}}

	for i := 0; i < 20; i++ {
		sel := Selection{Participant: "p", Submissions: i, Candidates: candidates}
		require.Equal(t, first.Select(sel), second.Select(sel))
	}
}

func TestHashSelector_Select_thenDeterministic(t *testing.T) {
	candidates := []Candidate{{Handle: "a"}, {Handle: "b"}, {Handle: "c"}}
	sel := Selection{Participant: "participant", Submissions: 4, Candidates: candidates}

	selected := NewHashSelector("seed").Select(sel)
	assert.Contains(t, []string{"a", "b", "c"}, selected)
	assert.Equal(t, selected, NewHashSelector("seed").Select(sel))
}

func TestHashSelector_Select_thenSpreadOverCandidates(t *testing.T) {
	selector := NewHashSelector("crowdsensing")
	candidates := []Candidate{{Handle: "a"}, {Handle: "b"}}

	seen := make(map[string]int)
	for i := 0; i < 100; i++ {
		seen[selector.Select(Selection{Participant: "p", Submissions: i, Candidates: candidates})]++
	}
	assert.Positive(t, seen["a"])
	assert.Positive(t, seen["b"])
	assert.Equal(t, 100, seen["a"]+seen["b"])
}

type fixedSelector string

func (f fixedSelector) Select(Selection) string {
	return string(f)
}

func TestService_SubmitData_givenSelectorReturnsUnknown_thenFirstCandidate(t *testing.T) {
	s, _ := newTestService(t, 1, WithSelector(fixedSelector("nobody")))
	require.NoError(t, s.AddVerifier(owner, verifier1))
	require.NoError(t, s.AddVerifier(owner, verifier2))

	verifier, err := s.SubmitData(user1, "ipfs://datahash", fee)
	require.NoError(t, err)
	assert.Equal(t, verifier1, verifier)
}

func TestService_SubmitData_givenCustomSelector_thenUseIt(t *testing.T) {
	s, _ := newTestService(t, 1, WithSelector(fixedSelector(verifier2)))
	require.NoError(t, s.AddVerifier(owner, verifier1))
	require.NoError(t, s.AddVerifier(owner, verifier2))

	verifier, err := s.SubmitData(user1, "ipfs://datahash", fee)
	require.NoError(t, err)
	assert.Equal(t, verifier2, verifier)
}
