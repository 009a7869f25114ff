package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStepIsSuccess(t *testing.T) {
	success := ExecutionStep{Result: &ExecutionResult{Success: true}}
	failure := ExecutionStep{Result: &ExecutionResult{Success: false}}
	pending := ExecutionStep{}

	assert.True(t, success.IsSuccess())
	assert.False(t, failure.IsSuccess())
	assert.False(t, pending.IsSuccess())
}

func TestTaskOutcomeIsSuccessOrPartial(t *testing.T) {
	assert.True(t, (&TaskOutcome{Kind: OutcomeSuccess}).IsSuccessOrPartial())
	assert.True(t, (&TaskOutcome{Kind: OutcomePartialSuccess, Completed: []string{"a"}}).IsSuccessOrPartial())
	assert.False(t, (&TaskOutcome{Kind: OutcomePartialSuccess}).IsSuccessOrPartial())
	assert.False(t, (&TaskOutcome{Kind: OutcomeFailure}).IsSuccessOrPartial())
	assert.False(t, (*TaskOutcome)(nil).IsSuccessOrPartial())
}

func TestHeuristicRecomputeConfidence(t *testing.T) {
	h := &Heuristic{Evidence: HeuristicEvidence{SampleSize: 16, SuccessRate: 0.5}}
	h.RecomputeConfidence()
	assert.InDelta(t, 2.0, h.Confidence, 1e-9) // 0.5 * sqrt(16) = 2.0
}

func TestRelationshipTypeRequiresAcyclic(t *testing.T) {
	assert.True(t, RelDependsOn.RequiresAcyclic())
	assert.True(t, RelFollows.RequiresAcyclic())
	assert.True(t, RelBlocks.RequiresAcyclic())
	assert.True(t, RelParentChild.RequiresAcyclic())
	assert.False(t, RelRelatedTo.RequiresAcyclic())
	assert.False(t, RelDuplicates.RequiresAcyclic())
	assert.False(t, RelReferences.RequiresAcyclic())
}

func TestTimeBucketCompare(t *testing.T) {
	a := TimeBucket{2026, 1, 1, 0}
	b := TimeBucket{2026, 1, 1, 1}
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestEpisodeCloneIsIndependent(t *testing.T) {
	e := NewEpisode("do a thing", TaskContext{Domain: "web-api", Tags: []string{"x"}}, TaskCodeGeneration, time.Now())
	e.Steps = append(e.Steps, ExecutionStep{StepNumber: 1, Tool: "edit"})

	clone := e.Clone()
	clone.Steps[0].Tool = "mutated"
	clone.Context.Tags[0] = "mutated"

	assert.Equal(t, "edit", e.Steps[0].Tool)
	assert.Equal(t, "x", e.Context.Tags[0])
}

func TestComplexitySimilarity(t *testing.T) {
	assert.Equal(t, 1.0, ComplexitySimilarity(ComplexitySimple, ComplexitySimple))
	assert.Equal(t, 0.7, ComplexitySimilarity(ComplexitySimple, ComplexityModerate))
	assert.Equal(t, 0.3, ComplexitySimilarity(ComplexitySimple, ComplexityComplex))
}

func TestMemoryErrorUnwrap(t *testing.T) {
	err := NewNotFound("episode 123")
	assert.ErrorIs(t, err, ErrNotFound)
}
