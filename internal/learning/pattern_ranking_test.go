package learning

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/types"
)

func TestContextSimilarityHighOverlapDespiteDifferentTags(t *testing.T) {
	a := types.TaskContext{Domain: "api_development", Language: "rust", Framework: "axum", Complexity: types.ComplexityModerate, Tags: []string{"api", "rest"}}
	b := types.TaskContext{Domain: "api_development", Language: "rust", Framework: "axum", Complexity: types.ComplexityModerate, Tags: []string{"api", "graphql"}}

	sim := ContextSimilarity(a, b)
	assert.Greater(t, sim, 0.8)
}

func TestJaccardSimilarityPartialOverlap(t *testing.T) {
	sim := jaccardSimilarity([]string{"api", "rest", "web"}, []string{"api", "graphql", "web"})
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}

func TestShouldApplyHeuristicThresholds(t *testing.T) {
	ctx := types.TaskContext{Domain: "api_development", Complexity: types.ComplexitySimple}

	h := &types.Heuristic{Confidence: 0.9, Evidence: types.HeuristicEvidence{SampleSize: 6}}
	assert.True(t, ShouldApplyHeuristic(h, ctx, ctx))

	lowConfidence := &types.Heuristic{Confidence: 0.5, Evidence: types.HeuristicEvidence{SampleSize: 6}}
	assert.False(t, ShouldApplyHeuristic(lowConfidence, ctx, ctx))

	smallSample := &types.Heuristic{Confidence: 0.9, Evidence: types.HeuristicEvidence{SampleSize: 2}}
	assert.False(t, ShouldApplyHeuristic(smallSample, ctx, ctx))
}

func TestScoreRanksHigherSuccessRateAbove(t *testing.T) {
	r := NewPatternRanker()
	ctx := types.TaskContext{Domain: "testing"}

	high := &types.Pattern{Context: ctx, SuccessRate: 0.9, OccurrenceCount: 3}
	low := &types.Pattern{Context: ctx, SuccessRate: 0.2, OccurrenceCount: 3}

	assert.Greater(t, r.Score(high, ctx), r.Score(low, ctx))
}

func TestDedupeMergesSameVariantSimilarContext(t *testing.T) {
	ctx := types.TaskContext{Domain: "testing", Language: "go", Complexity: types.ComplexitySimple}

	p1 := &types.Pattern{ID: uuid.New(), Kind: types.PatternToolSequence, Tools: []string{"a", "b"}, Context: ctx, SuccessRate: 0.5, OccurrenceCount: 2}
	p2 := &types.Pattern{ID: uuid.New(), Kind: types.PatternToolSequence, Tools: []string{"a", "b"}, Context: ctx, SuccessRate: 0.8, OccurrenceCount: 5}

	merged := Dedupe([]*types.Pattern{p1, p2})

	require.Len(t, merged, 1)
	assert.Equal(t, 5, merged[0].OccurrenceCount)
	assert.Equal(t, 0.8, merged[0].SuccessRate)
}

func TestDedupeKeepsDistinctVariants(t *testing.T) {
	ctx := types.TaskContext{Domain: "testing"}

	p1 := &types.Pattern{ID: uuid.New(), Kind: types.PatternToolSequence, Tools: []string{"a", "b"}, Context: ctx}
	p2 := &types.Pattern{ID: uuid.New(), Kind: types.PatternToolSequence, Tools: []string{"c", "d"}, Context: ctx}

	merged := Dedupe([]*types.Pattern{p1, p2})
	assert.Len(t, merged, 2)
}
