// Package learning implements the episode learning pipeline: reward
// scoring, reflection generation, pattern extraction and ranking, and the
// asynchronous extraction queue that runs them after an episode completes.
package learning

import (
	"math"

	"episodic-memory/internal/types"
)

const (
	efficientDurationSecs   float32 = 60.0
	efficientStepCount      int     = 10
	maxEfficiencyMultiplier float32 = 1.5
	minEfficiencyMultiplier float32 = 0.5
)

// RewardCalculator scores completed episodes. Total = Base * Efficiency *
// ComplexityBonus * QualityMultiplier + LearningBonus.
type RewardCalculator struct {
	durationWeight  float32
	stepCountWeight float32
}

// NewRewardCalculator returns a calculator with equal duration/step weights.
func NewRewardCalculator() *RewardCalculator {
	return &RewardCalculator{durationWeight: 0.5, stepCountWeight: 0.5}
}

// NewRewardCalculatorWithWeights returns a calculator with custom weights
// for the efficiency sub-scores.
func NewRewardCalculatorWithWeights(durationWeight, stepCountWeight float32) *RewardCalculator {
	return &RewardCalculator{durationWeight: durationWeight, stepCountWeight: stepCountWeight}
}

// Calculate computes the full reward score for an episode.
func (c *RewardCalculator) Calculate(ep *types.Episode) types.RewardScore {
	base := c.calculateBaseReward(ep)
	efficiency := c.calculateEfficiencyMultiplier(ep)
	complexityBonus := c.calculateComplexityBonus(ep)
	qualityMultiplier := c.calculateQualityMultiplier(ep)
	learningBonus := c.calculateLearningBonus(ep)

	total := base*efficiency*complexityBonus*qualityMultiplier + learningBonus

	return types.RewardScore{
		Base:              base,
		Efficiency:        efficiency,
		ComplexityBonus:   complexityBonus,
		QualityMultiplier: qualityMultiplier,
		LearningBonus:     learningBonus,
		Total:             total,
	}
}

func (c *RewardCalculator) calculateBaseReward(ep *types.Episode) float32 {
	if ep.Outcome == nil {
		return 0.0
	}
	switch ep.Outcome.Kind {
	case types.OutcomeSuccess:
		return 1.0
	case types.OutcomePartialSuccess:
		total := len(ep.Outcome.Completed) + len(ep.Outcome.Failed)
		if total == 0 {
			return 0.5
		}
		return float32(len(ep.Outcome.Completed)) / float32(total)
	case types.OutcomeFailure:
		return 0.0
	default:
		return 0.0
	}
}

func (c *RewardCalculator) calculateEfficiencyMultiplier(ep *types.Episode) float32 {
	durationScore := c.calculateDurationEfficiency(ep)
	stepScore := c.calculateStepCountEfficiency(ep)

	combined := durationScore*c.durationWeight + stepScore*c.stepCountWeight
	return clampF32(combined, minEfficiencyMultiplier, maxEfficiencyMultiplier)
}

func (c *RewardCalculator) calculateDurationEfficiency(ep *types.Episode) float32 {
	dur, ok := ep.Duration()
	if !ok {
		return 1.0
	}
	durationSecs := float32(dur.Seconds())
	if durationSecs <= 0.0 {
		return maxEfficiencyMultiplier
	}

	ratio := durationSecs / efficientDurationSecs
	score := float32(math.Exp(float64(-ratio / 2.0)))

	return minEfficiencyMultiplier + score*(maxEfficiencyMultiplier-minEfficiencyMultiplier)
}

func (c *RewardCalculator) calculateStepCountEfficiency(ep *types.Episode) float32 {
	stepCount := len(ep.Steps)
	if stepCount == 0 {
		return minEfficiencyMultiplier
	}

	ratio := float32(stepCount) / float32(efficientStepCount)
	score := float32(math.Exp(float64(-ratio / 2.0)))

	return minEfficiencyMultiplier + score*(maxEfficiencyMultiplier-minEfficiencyMultiplier)
}

func (c *RewardCalculator) calculateComplexityBonus(ep *types.Episode) float32 {
	switch ep.Context.Complexity {
	case types.ComplexitySimple:
		return 1.0
	case types.ComplexityModerate:
		return 1.1
	case types.ComplexityComplex:
		return 1.2
	default:
		return 1.0
	}
}

func (c *RewardCalculator) calculateQualityMultiplier(ep *types.Episode) float32 {
	quality := float32(1.0)

	if ep.Outcome != nil && ep.Outcome.Kind == types.OutcomeSuccess {
		artifacts := ep.Outcome.Artifacts

		hasTestCoverage := false
		for _, a := range artifacts {
			if containsAny(a, "coverage", "test") {
				hasTestCoverage = true
				break
			}
		}
		if hasTestCoverage {
			quality += 0.1
		}

		if len(artifacts) >= 3 {
			quality += 0.05
		}

		if coverageStr, ok := ep.Metadata["test_coverage"]; ok {
			if coverage, err := parseFloat32(coverageStr); err == nil {
				switch {
				case coverage > 80.0:
					quality += 0.15
				case coverage > 60.0:
					quality += 0.1
				}
			}
		}
	}

	totalSteps := len(ep.Steps)
	if totalSteps > 0 {
		errorRate := float32(ep.FailedStepsCount()) / float32(totalSteps)
		switch {
		case errorRate > 0.3:
			quality -= 0.2
		case errorRate > 0.1:
			quality -= 0.1
		case errorRate == 0.0:
			quality += 0.1
		}
	}

	if warnings, ok := ep.Metadata["clippy_warnings"]; ok && warnings == "0" {
		quality += 0.05
	}

	return clampF32(quality, 0.5, 1.5)
}

func (c *RewardCalculator) calculateLearningBonus(ep *types.Episode) float32 {
	bonus := float32(0.0)

	patternCount := len(ep.PatternIDs)
	if patternCount > 0 {
		bonus += minF32(float32(patternCount)*0.1, 0.3)
	}

	if novelty, ok := c.calculateNoveltyBonus(ep); ok {
		bonus += novelty
	}

	totalSteps := len(ep.Steps)
	if totalSteps > 0 {
		successRate := float32(ep.SuccessfulStepsCount()) / float32(totalSteps)
		switch {
		case successRate > 0.9 && totalSteps >= 5:
			bonus += 0.2
		case successRate == 1.0 && totalSteps >= 3:
			bonus += 0.15
		}
	}

	if c.detectErrorRecovery(ep) {
		bonus += 0.15
	}

	if dur, ok := ep.Duration(); ok {
		durationSecs := float32(dur.Seconds())
		if durationSecs < 30.0 && totalSteps > 0 && totalSteps < 10 {
			bonus += 0.1
		}
	}

	return minF32(bonus, 0.5)
}

func (c *RewardCalculator) calculateNoveltyBonus(ep *types.Episode) (float32, bool) {
	if len(ep.Steps) < 3 {
		return 0, false
	}

	unique := make(map[string]struct{})
	for _, s := range ep.Steps {
		unique[s.Tool] = struct{}{}
	}

	switch {
	case len(unique) >= 5:
		return 0.15, true
	case len(unique) >= 3:
		return 0.1, true
	default:
		return 0, false
	}
}

func (c *RewardCalculator) detectErrorRecovery(ep *types.Episode) bool {
	for i := 0; i+1 < len(ep.Steps); i++ {
		if !ep.Steps[i].IsSuccess() && ep.Steps[i+1].IsSuccess() {
			return true
		}
	}
	return false
}
