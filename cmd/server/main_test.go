package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/types"
)

// TestSmokeTestEpisodeLifecycle exercises the same sequence main() runs,
// confirming the wired components (reward calculation, reflection, query
// cache, diversity re-rank) produce a retrievable result end to end.
func TestSmokeTestEpisodeLifecycle(t *testing.T) {
	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	m := components.Memory
	taskCtx := types.TaskContext{
		Domain:     "web",
		Language:   "go",
		Framework:  "chi",
		Complexity: types.ComplexityModerate,
		Tags:       []string{"startup-smoke-test"},
	}

	id := m.StartEpisode("verify orchestrator wiring on startup", taskCtx, types.TaskDebugging)
	m.LogStep(id, "bootstrap", "construct memory façade", types.SuccessResult("wired C1-C8"), 1)
	require.NoError(t, m.CompleteEpisode(id, types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "wiring verified"}))

	ep, ok := m.GetEpisode(id)
	require.True(t, ok)
	assert.True(t, ep.IsComplete())
	assert.NotNil(t, ep.Reward)
	assert.NotNil(t, ep.Reflection)

	results := m.RetrieveRelevantContext(context.Background(), "verify orchestrator wiring", taskCtx, 5)
	assert.Len(t, results, 1)

	stats := m.GetStats()
	assert.Equal(t, 1, stats.TotalEpisodes)
	assert.Equal(t, 1, stats.CompletedEpisodes)
}
