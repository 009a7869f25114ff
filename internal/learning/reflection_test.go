package learning

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"episodic-memory/internal/types"
)

func reflectionTestEpisode() *types.Episode {
	ctx := types.TaskContext{Language: "go", Complexity: types.ComplexityModerate, Domain: "testing"}
	return types.NewEpisode("Test task", ctx, types.TaskTesting, time.Now())
}

func containsSubstr(items []string, substr string) bool {
	for _, s := range items {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestSuccessfulEpisodeReflection(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()
	for i := 0; i < 5; i++ {
		step := ep.AddStep("tool", "Action")
		step.Result = &types.ExecutionResult{Success: true, Output: "OK"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "All tests passed", Artifacts: []string{"test_results.json"}}, time.Now())

	refl := gen.Generate(ep, time.Now())

	assert.NotEmpty(t, refl.Successes)
	assert.True(t, containsSubstr(refl.Successes, "Successfully completed"))
	assert.True(t, containsSubstr(refl.Successes, "Generated 1 artifact"))
}

func TestFailedEpisodeReflection(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()
	for i := 0; i < 3; i++ {
		step := ep.AddStep("tool", "Action")
		step.Result = &types.ExecutionResult{Success: false, Message: "Error occurred"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeFailure, Reason: "Tests failed", ErrorDetails: "Multiple errors"}, time.Now())

	refl := gen.Generate(ep, time.Now())

	assert.NotEmpty(t, refl.Improvements)
	assert.True(t, containsSubstr(refl.Improvements, "Task failed"))
}

func TestPartialSuccessReflection(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()
	ep.Complete(types.TaskOutcome{
		Kind: types.OutcomePartialSuccess, Verdict: "Some tests passed",
		Completed: []string{"test1", "test2"}, Failed: []string{"test3"},
	}, time.Now())

	refl := gen.Generate(ep, time.Now())

	assert.True(t, containsSubstr(refl.Successes, "Partial success"))
	assert.True(t, containsSubstr(refl.Improvements, "Failed"))
}

func TestErrorRecoveryInsight(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()

	errStep := ep.AddStep("failing_tool", "Failed action")
	errStep.Result = &types.ExecutionResult{Success: false, Message: "Error"}
	recStep := ep.AddStep("recovery_tool", "Recovery action")
	recStep.Result = &types.ExecutionResult{Success: true, Output: "Recovered"}

	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Recovered and completed"}, time.Now())

	refl := gen.Generate(ep, time.Now())
	assert.True(t, containsSubstr(refl.Insights, "Successfully recovered"))
}

func TestProblematicToolIdentification(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()
	for i := 0; i < 3; i++ {
		step := ep.AddStep("buggy_tool", "Action")
		step.Result = &types.ExecutionResult{Success: false, Message: "Tool error"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeFailure, Reason: "Tool errors"}, time.Now())

	refl := gen.Generate(ep, time.Now())
	assert.True(t, containsSubstr(refl.Improvements, "buggy_tool"))
}

func TestToolDiversityInsight(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()
	tools := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, tool := range tools {
		step := ep.AddStep(tool, "Action")
		step.Result = &types.ExecutionResult{Success: true, Output: "OK"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())

	refl := gen.Generate(ep, time.Now())
	assert.True(t, containsSubstr(refl.Insights, "diverse toolset"))
}

func TestSingleToolAutomationInsight(t *testing.T) {
	gen := NewReflectionGenerator()
	ep := reflectionTestEpisode()
	for i := 0; i < 5; i++ {
		step := ep.AddStep("same_tool", "Action")
		step.Result = &types.ExecutionResult{Success: true, Output: "OK"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())

	refl := gen.Generate(ep, time.Now())
	assert.True(t, containsSubstr(refl.Insights, "single tool"))
}

func TestReflectionCustomMaxItems(t *testing.T) {
	gen := NewReflectionGeneratorWithMaxItems(2)
	ep := reflectionTestEpisode()
	for i := 0; i < 10; i++ {
		step := ep.AddStep("tool", "Action")
		step.Result = &types.ExecutionResult{Success: true, Output: "OK"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done", Artifacts: []string{"a", "b", "c"}}, time.Now())

	refl := gen.Generate(ep, time.Now())
	assert.LessOrEqual(t, len(refl.Successes), 2)
	assert.LessOrEqual(t, len(refl.Insights), 2)
}
