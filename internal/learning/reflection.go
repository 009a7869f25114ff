package learning

import (
	"fmt"
	"strings"
	"time"

	"episodic-memory/internal/types"
)

const (
	minStepsForReflection = 2
	maxReflectionItems    = 5
)

// ReflectionGenerator produces a structured post-hoc summary of a
// completed episode: what worked, what to improve, and what was learned.
type ReflectionGenerator struct {
	maxItems int
}

// NewReflectionGenerator returns a generator capped at the default item
// count per category.
func NewReflectionGenerator() *ReflectionGenerator {
	return &ReflectionGenerator{maxItems: maxReflectionItems}
}

// NewReflectionGeneratorWithMaxItems returns a generator capped at maxItems
// entries per category.
func NewReflectionGeneratorWithMaxItems(maxItems int) *ReflectionGenerator {
	return &ReflectionGenerator{maxItems: maxItems}
}

// Generate builds the reflection for a completed episode.
func (g *ReflectionGenerator) Generate(ep *types.Episode, now time.Time) types.Reflection {
	return types.Reflection{
		Successes:    g.identifySuccesses(ep),
		Improvements: g.identifyImprovements(ep),
		Insights:     g.generateInsights(ep),
		GeneratedAt:  now,
	}
}

func (g *ReflectionGenerator) identifySuccesses(ep *types.Episode) []string {
	var successes []string

	if ep.Outcome != nil {
		switch ep.Outcome.Kind {
		case types.OutcomeSuccess:
			successes = append(successes, fmt.Sprintf("Successfully completed task: %s", ep.Outcome.Verdict))
			if len(ep.Outcome.Artifacts) > 0 {
				successes = append(successes, fmt.Sprintf("Generated %d artifact(s)", len(ep.Outcome.Artifacts)))
			}
		case types.OutcomePartialSuccess:
			successes = append(successes, fmt.Sprintf("Partial success: %s", ep.Outcome.Verdict))
			if len(ep.Outcome.Completed) > 0 {
				successes = append(successes, fmt.Sprintf("Completed %d subtask(s)", len(ep.Outcome.Completed)))
			}
		}
	}

	successfulSteps := ep.SuccessfulStepsCount()
	totalSteps := len(ep.Steps)
	if successfulSteps > 0 && totalSteps > 0 {
		successRate := float32(successfulSteps) / float32(totalSteps)
		if successRate >= 0.8 {
			successes = append(successes, fmt.Sprintf("High execution success rate: %.1f%% (%d/%d)",
				successRate*100, successfulSteps, totalSteps))
		}
	}

	if toolPattern, ok := g.identifyEffectiveToolSequence(ep); ok {
		successes = append(successes, toolPattern)
	}

	if dur, ok := ep.Duration(); ok {
		durationSecs := int64(dur.Seconds())
		if durationSecs < 30 && totalSteps > 0 {
			successes = append(successes, fmt.Sprintf("Efficient execution: completed in %d seconds", durationSecs))
		}
	}

	return truncate(successes, g.maxItems)
}

func (g *ReflectionGenerator) identifyImprovements(ep *types.Episode) []string {
	var improvements []string

	if ep.Outcome != nil {
		switch ep.Outcome.Kind {
		case types.OutcomeFailure:
			improvements = append(improvements, fmt.Sprintf("Task failed: %s", ep.Outcome.Reason))
		case types.OutcomePartialSuccess:
			if len(ep.Outcome.Failed) > 0 {
				improvements = append(improvements, fmt.Sprintf("Failed %d subtask(s)", len(ep.Outcome.Failed)))
			}
		}
	}

	failedSteps := ep.FailedStepsCount()
	if failedSteps > 0 {
		improvements = append(improvements, fmt.Sprintf("Reduce failed execution steps (current: %d)", failedSteps))

		if problematicTool, ok := g.identifyProblematicTool(ep); ok {
			improvements = append(improvements, problematicTool)
		}
	}

	if dur, ok := ep.Duration(); ok {
		durationSecs := int64(dur.Seconds())
		if durationSecs > 300 {
			improvements = append(improvements, fmt.Sprintf("Optimize execution time (took %d seconds)", durationSecs))
		}
	}

	stepCount := len(ep.Steps)
	if stepCount > 50 {
		improvements = append(improvements, fmt.Sprintf("Reduce number of execution steps (current: %d)", stepCount))
	}

	if repeated, ok := g.identifyRepeatedErrors(ep); ok {
		improvements = append(improvements, repeated)
	}

	if len(improvements) == 0 && ep.Outcome != nil &&
		(ep.Outcome.Kind == types.OutcomeFailure || ep.Outcome.Kind == types.OutcomePartialSuccess) {
		improvements = append(improvements, "Review and refine approach for better outcomes")
	}

	return truncate(improvements, g.maxItems)
}

func (g *ReflectionGenerator) generateInsights(ep *types.Episode) []string {
	var insights []string

	if len(ep.Steps) < minStepsForReflection {
		return insights
	}

	if patternInsight, ok := g.analyzeStepPatterns(ep); ok {
		insights = append(insights, patternInsight)
	}

	if recoveryInsight, ok := g.identifyErrorRecoveryPattern(ep); ok {
		insights = append(insights, recoveryInsight)
	}

	insights = append(insights, fmt.Sprintf("Task in %s domain with %s complexity", ep.Context.Domain, ep.Context.Complexity))

	uniqueTools := g.countUniqueTools(ep)
	if uniqueTools > 5 {
		insights = append(insights, fmt.Sprintf("Task required diverse toolset (%d different tools)", uniqueTools))
	} else if uniqueTools == 1 && len(ep.Steps) > 3 {
		insights = append(insights, "Task accomplished with single tool - potential for automation")
	}

	if avgLatency, ok := g.calculateAverageLatency(ep); ok && avgLatency > 5000 {
		insights = append(insights, fmt.Sprintf("High average step latency: %dms - consider optimization", avgLatency))
	}

	return truncate(insights, g.maxItems)
}

func (g *ReflectionGenerator) identifyEffectiveToolSequence(ep *types.Episode) (string, bool) {
	if len(ep.Steps) < 2 {
		return "", false
	}

	var successfulTools []string
	for _, s := range ep.Steps {
		if s.IsSuccess() {
			successfulTools = append(successfulTools, s.Tool)
		}
	}

	if len(successfulTools) < 3 {
		return "", false
	}
	return fmt.Sprintf("Effective tool sequence: %s", strings.Join(successfulTools[:3], " -> ")), true
}

func (g *ReflectionGenerator) identifyProblematicTool(ep *types.Episode) (string, bool) {
	failures := make(map[string]int)
	for _, s := range ep.Steps {
		if !s.IsSuccess() {
			failures[s.Tool]++
		}
	}

	tool, count, ok := maxByCount(failures)
	if !ok || count < 2 {
		return "", false
	}
	return fmt.Sprintf("Tool '%s' failed %d times - needs attention", tool, count), true
}

func (g *ReflectionGenerator) identifyRepeatedErrors(ep *types.Episode) (string, bool) {
	messages := make(map[string]int)
	for _, s := range ep.Steps {
		if s.Result != nil && !s.Result.Success && s.Result.Message != "" {
			messages[s.Result.Message]++
		}
	}

	msg, count, ok := maxByCount(messages)
	if !ok || count < 2 {
		return "", false
	}
	return fmt.Sprintf("Repeated error (%d times): %s", count, msg), true
}

func (g *ReflectionGenerator) analyzeStepPatterns(ep *types.Episode) (string, bool) {
	totalSteps := len(ep.Steps)
	if totalSteps == 0 {
		return "", false
	}

	successRate := float32(ep.SuccessfulStepsCount()) / float32(totalSteps)

	switch {
	case successRate == 1.0:
		return "All steps executed successfully - reliable execution pattern", true
	case successRate >= 0.8:
		return fmt.Sprintf("High reliability pattern with %.0f%% step success rate", successRate*100), true
	case successRate < 0.5:
		return fmt.Sprintf("Low reliability pattern (%.0f%% success) - review approach", successRate*100), true
	default:
		return "", false
	}
}

func (g *ReflectionGenerator) identifyErrorRecoveryPattern(ep *types.Episode) (string, bool) {
	for i := 0; i+1 < len(ep.Steps); i++ {
		if !ep.Steps[i].IsSuccess() && ep.Steps[i+1].IsSuccess() {
			return fmt.Sprintf("Successfully recovered from error using '%s'", ep.Steps[i+1].Tool), true
		}
	}
	return "", false
}

func (g *ReflectionGenerator) countUniqueTools(ep *types.Episode) int {
	unique := make(map[string]struct{})
	for _, s := range ep.Steps {
		unique[s.Tool] = struct{}{}
	}
	return len(unique)
}

func (g *ReflectionGenerator) calculateAverageLatency(ep *types.Episode) (uint64, bool) {
	if len(ep.Steps) == 0 {
		return 0, false
	}
	var total uint64
	for _, s := range ep.Steps {
		total += s.LatencyMs
	}
	return total / uint64(len(ep.Steps)), true
}

func maxByCount(counts map[string]int) (string, int, bool) {
	var best string
	bestCount := -1
	for k, v := range counts {
		if v > bestCount {
			best, bestCount = k, v
		}
	}
	return best, bestCount, bestCount >= 0
}

func truncate(s []string, max int) []string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
