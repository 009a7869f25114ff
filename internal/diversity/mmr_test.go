package diversity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectorRejectsOutOfRangeLambda(t *testing.T) {
	_, err := NewSelector(-0.1)
	assert.Error(t, err)
	_, err = NewSelector(1.1)
	assert.Error(t, err)
}

func TestSelectLimitedByCandidateCount(t *testing.T) {
	s := NewDefaultSelector()
	candidates := []Candidate{
		{EpisodeID: uuid.New(), Relevance: 0.9, Embedding: []float32{1, 0, 0}},
		{EpisodeID: uuid.New(), Relevance: 0.8, Embedding: []float32{0, 1, 0}},
	}
	selected := s.Select(candidates, 5)
	assert.Len(t, selected, 2)
}

func TestSelectAtLambdaOneMatchesRelevanceOrder(t *testing.T) {
	s, err := NewSelector(1.0)
	require.NoError(t, err)
	candidates := []Candidate{
		{EpisodeID: uuid.New(), Relevance: 0.5, Embedding: []float32{1, 0, 0}},
		{EpisodeID: uuid.New(), Relevance: 0.9, Embedding: []float32{0, 1, 0}},
		{EpisodeID: uuid.New(), Relevance: 0.7, Embedding: []float32{0, 0, 1}},
	}
	selected := s.Select(candidates, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, candidates[1].EpisodeID, selected[0].EpisodeID)
	assert.Equal(t, candidates[2].EpisodeID, selected[1].EpisodeID)
}

// End-to-end scenario 6 of spec §8.
func TestMMROrthogonalCandidates(t *testing.T) {
	s, err := NewSelector(0.7)
	require.NoError(t, err)
	e1, e2, e3 := uuid.New(), uuid.New(), uuid.New()
	candidates := []Candidate{
		{EpisodeID: e1, Relevance: 0.9, Embedding: []float32{1, 0, 0}},
		{EpisodeID: e2, Relevance: 0.8, Embedding: []float32{0, 1, 0}},
		{EpisodeID: e3, Relevance: 0.7, Embedding: []float32{0, 0, 1}},
	}

	selected := s.Select(candidates, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, e1, selected[0].EpisodeID)
	assert.Contains(t, []uuid.UUID{e2, e3}, selected[1].EpisodeID)
	assert.GreaterOrEqual(t, DiversityScore(selected), 0.99)
}

func TestCosineMismatchedDimensionsOrZeroMagnitude(t *testing.T) {
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 0}))
}
