// Package diversity implements the Maximal Marginal Relevance (MMR)
// diversity selector (spec §4.4): a greedy re-ranker that balances
// relevance against similarity to already-selected candidates.
package diversity

import (
	"math"

	"github.com/google/uuid"

	"episodic-memory/internal/types"
)

// Candidate is one retrieval candidate: its relevance score and embedding.
type Candidate struct {
	EpisodeID uuid.UUID
	Relevance float64 // ∈ [0,1]
	Embedding []float32
}

// Selector re-ranks candidates for a relevance/diversity trade-off governed
// by Lambda ∈ [0,1] (default 0.7: favor relevance).
type Selector struct {
	lambda float64
}

const defaultLambda = 0.7

// NewSelector validates lambda and returns a Selector. A lambda outside
// [0,1] is a programmer error in the Rust original (panics at
// construction); Go idiom returns an error instead so callers can recover
// from a bad configuration value rather than crash the process.
func NewSelector(lambda float64) (*Selector, error) {
	if lambda < 0 || lambda > 1 {
		return nil, types.NewInvalidInput("lambda must be in [0,1]")
	}
	return &Selector{lambda: lambda}, nil
}

// NewDefaultSelector returns a Selector with the default lambda of 0.7.
func NewDefaultSelector() *Selector {
	return &Selector{lambda: defaultLambda}
}

// Select runs greedy MMR over candidates, returning at most limit entries
// in order of selection.
//
//	selected ← []
//	while |selected| < limit and candidates not empty:
//	    mmr(c) = λ·relevance(c) [- (1-λ)·max_{s∈selected} cos(c,s) once selected is non-empty]
//	    move argmax mmr(c) from candidates to selected
func (s *Selector) Select(candidates []Candidate, limit int) []Candidate {
	remaining := append([]Candidate(nil), candidates...)
	selected := make([]Candidate, 0, limit)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0

		for i, c := range remaining {
			score := s.lambda * c.Relevance
			if len(selected) > 0 {
				maxSim := 0.0
				for _, sel := range selected {
					if sim := cosine(c.Embedding, sel.Embedding); sim > maxSim {
						maxSim = sim
					}
				}
				score -= (1 - s.lambda) * maxSim
			}
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// cosine computes cos(a,b) clamped to [0,1]; mismatched dimensions or
// zero-magnitude vectors yield 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// DiversityScore returns the mean pairwise dissimilarity (1 - cos) across a
// final selection.
func DiversityScore(selected []Candidate) float64 {
	n := len(selected)
	if n < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += 1 - cosine(selected[i].Embedding, selected[j].Embedding)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}
