package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/types"
)

func TestAdaptiveCalculatorMatchesBaseBelowSampleThreshold(t *testing.T) {
	calc := NewAdaptiveRewardCalculator(NewRewardCalculator())
	ep := testEpisode(types.ComplexityModerate)
	ep.Context.Domain = "web-api"
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Equal(t, float32(1.0), reward.Base)
}

func TestAdaptiveCalculatorTracksDomainStats(t *testing.T) {
	calc := NewAdaptiveRewardCalculator(NewRewardCalculator())
	domain := "web-api"

	for i := 0; i < 6; i++ {
		ep := testEpisode(types.ComplexityModerate)
		ep.Context.Domain = domain
		ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())
		calc.Calculate(ep)
	}

	stats, ok := calc.DomainStats(domain)
	require.True(t, ok)
	assert.Equal(t, 6, stats.SampleSize)
}

func TestAdaptiveCalculatorNoDomainFallsBackToRaw(t *testing.T) {
	calc := NewAdaptiveRewardCalculator(NewRewardCalculator())
	ep := testEpisode(types.ComplexitySimple)
	ep.Context.Domain = ""
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeFailure, Reason: "no domain"}, time.Now())

	reward := calc.Calculate(ep)
	assert.Equal(t, float32(0.0), reward.Total)
}

func TestAdaptiveCalculatorAdjustsOutlierAfterWarmup(t *testing.T) {
	calc := NewAdaptiveRewardCalculator(NewRewardCalculator())
	domain := "data-pipeline"

	// Warm up with consistent partial-success episodes.
	for i := 0; i < 8; i++ {
		ep := testEpisode(types.ComplexityModerate)
		ep.Context.Domain = domain
		ep.Complete(types.TaskOutcome{
			Kind: types.OutcomePartialSuccess, Verdict: "ok",
			Completed: []string{"a"}, Failed: []string{"b", "c", "d"},
		}, time.Now())
		calc.Calculate(ep)
	}

	// A perfect success should now read as an above-domain-average outlier,
	// so the adjusted base should not move below the raw base.
	ep := testEpisode(types.ComplexityModerate)
	ep.Context.Domain = domain
	ep.Complete(types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "Done"}, time.Now())

	reward := calc.Calculate(ep)
	assert.GreaterOrEqual(t, reward.Base, float32(1.0)*0.99)
}
