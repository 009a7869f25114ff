package learning

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/types"
)

func testEpisode(complexity types.Complexity) *types.Episode {
	ctx := types.TaskContext{Language: "go", Complexity: complexity, Domain: "testing"}
	return types.NewEpisode("Test task", ctx, types.TaskTesting, time.Now())
}

func addSteps(ep *types.Episode, n int, failFirst int) {
	for i := 0; i < n; i++ {
		step := ep.AddStep("tool_"+uuid.New().String()[:4], "Action")
		if i < failFirst {
			step.Result = &types.ExecutionResult{Success: false, Message: "Error"}
		} else {
			step.Result = &types.ExecutionResult{Success: true, Output: "OK"}
		}
	}
}

func TestSuccessfulEpisodeReward(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityModerate)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "All tests passed"}, time.Now())

	reward := calc.Calculate(ep)

	assert.Equal(t, float32(1.0), reward.Base)
	assert.Greater(t, reward.Efficiency, float32(0.0))
	assert.Equal(t, float32(1.1), reward.ComplexityBonus)
	assert.Greater(t, reward.QualityMultiplier, float32(0.0))
	assert.GreaterOrEqual(t, reward.LearningBonus, float32(0.0))
	assert.Greater(t, reward.Total, float32(0.0))
}

func TestFailedEpisodeReward(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexitySimple)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeFailure, Reason: "Tests failed"}, time.Now())

	reward := calc.Calculate(ep)

	assert.Equal(t, float32(0.0), reward.Base)
	assert.Equal(t, float32(0.0), reward.Total)
}

func TestPartialSuccessReward(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityModerate)
	ep.Complete(types.TaskOutcome{
		Kind:      types.OutcomePartialSuccess,
		Verdict:   "Some tests passed",
		Completed: []string{"test1", "test2"},
		Failed:    []string{"test3"},
	}, time.Now())

	reward := calc.Calculate(ep)

	require.InDelta(t, 0.667, float64(reward.Base), 0.01)
	assert.Greater(t, reward.Total, float32(0.0))
}

func TestEfficiencyFastExecution(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexitySimple)
	addSteps(ep, 3, 0)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Quick completion"}, ep.StartTime.Add(2*time.Second))

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.Efficiency, float32(1.0))
}

func TestEfficiencySlowExecution(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexitySimple)
	ep.StartTime = time.Now().Add(-5 * time.Minute)
	addSteps(ep, 50, 0)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Slow completion"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Less(t, reward.Efficiency, float32(1.0))
}

func TestComplexityBonusOrdering(t *testing.T) {
	calc := NewRewardCalculator()

	mk := func(c types.Complexity) types.RewardScore {
		ep := testEpisode(c)
		ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())
		return calc.Calculate(ep)
	}

	simple := mk(types.ComplexitySimple)
	moderate := mk(types.ComplexityModerate)
	complex := mk(types.ComplexityComplex)

	assert.Equal(t, float32(1.0), simple.ComplexityBonus)
	assert.Equal(t, float32(1.1), moderate.ComplexityBonus)
	assert.Equal(t, float32(1.2), complex.ComplexityBonus)

	assert.Greater(t, complex.Total, moderate.Total)
	assert.Greater(t, moderate.Total, simple.Total)
}

func TestCustomWeights(t *testing.T) {
	calc := NewRewardCalculatorWithWeights(0.9, 0.1)
	ep := testEpisode(types.ComplexityModerate)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.Total, float32(0.0))
}

func TestIncompleteEpisodeReward(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityModerate)

	reward := calc.Calculate(ep)
	assert.Equal(t, float32(0.0), reward.Base)
	assert.Equal(t, float32(0.0), reward.Total)
}

func TestQualityMultiplierWithTestCoverage(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityModerate)
	ep.Metadata = map[string]string{"test_coverage": "85.5"}
	ep.Complete(types.TaskOutcome{
		Kind: types.OutcomeSuccess, Verdict: "Tests passed with coverage",
		Artifacts: []string{"coverage_report.html"},
	}, time.Now())

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.QualityMultiplier, float32(1.0))
}

func TestQualityMultiplierWithZeroErrors(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexitySimple)
	addSteps(ep, 5, 0)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Perfect execution"}, time.Now())

	reward := calc.Calculate(ep)
	assert.GreaterOrEqual(t, reward.QualityMultiplier, float32(1.0))
}

func TestQualityMultiplierWithHighErrorRate(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexitySimple)
	addSteps(ep, 10, 7)
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Eventually succeeded"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Less(t, reward.QualityMultiplier, float32(1.0))
}

func TestLearningBonusWithPatterns(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityModerate)
	addSteps(ep, 5, 0)
	ep.PatternIDs = append(ep.PatternIDs, uuid.New(), uuid.New())
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Learned new patterns"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.LearningBonus, float32(0.0))
}

func TestLearningBonusForErrorRecovery(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityModerate)

	errStep := ep.AddStep("failing_tool", "Failed action")
	errStep.Result = &types.ExecutionResult{Success: false, Message: "Error"}
	recStep := ep.AddStep("recovery_tool", "Recovery action")
	recStep.Result = &types.ExecutionResult{Success: true, Output: "Recovered"}

	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Recovered from error"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.LearningBonus, float32(0.0))
}

func TestLearningBonusForDiverseTools(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityComplex)
	for i := 0; i < 6; i++ {
		step := ep.AddStep("tool_"+string(rune('a'+i)), "Action")
		step.Result = &types.ExecutionResult{Success: true, Output: "OK"}
	}
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Used diverse toolset"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.LearningBonus, float32(0.0))
}

func TestCombinedQualityAndLearningBonuses(t *testing.T) {
	calc := NewRewardCalculator()
	ep := testEpisode(types.ComplexityComplex)
	addSteps(ep, 7, 0)
	ep.Metadata = map[string]string{"test_coverage": "90.0", "clippy_warnings": "0"}
	ep.PatternIDs = append(ep.PatternIDs, uuid.New())
	ep.Complete(types.TaskOutcome{
		Kind: types.OutcomeSuccess, Verdict: "High quality with learning",
		Artifacts: []string{"tests.go", "coverage.html", "docs.md"},
	}, time.Now())

	reward := calc.Calculate(ep)
	assert.Greater(t, reward.QualityMultiplier, float32(1.0))
	assert.Greater(t, reward.LearningBonus, float32(0.0))
	assert.Greater(t, reward.Total, reward.Base)
}
