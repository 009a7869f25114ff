// Package main provides a thin wiring and smoke-test entry point for the
// episodic memory core. The core itself defines no wire protocol: a CLI or
// RPC front-end that would expose it to other processes is an external
// collaborator outside this module's scope. This binary exists to construct
// the orchestrator from configuration, run one episode through its full
// lifecycle to confirm the wiring is sound, and report summary stats.
//
// Environment variables:
//   - EM_SQLITE_PATH: path to a SQLite database file. If unset, an
//     in-memory backend is used and nothing survives process exit.
//   - EM_*: see internal/config for the full set of tunables.
package main

import (
	"context"
	"log"

	"episodic-memory/internal/types"
)

func main() {
	components, err := InitializeServer()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := components.Cleanup(); err != nil {
			log.Printf("Warning: cleanup failed: %v", err)
		}
	}()

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

	if err := m.CompleteEpisode(id, types.TaskOutcome{Kind: types.OutcomeSuccess, Verdict: "wiring verified"}); err != nil {
		log.Fatalf("Smoke-test episode failed to complete: %v", err)
	}

	results := m.RetrieveRelevantContext(context.Background(), "verify orchestrator wiring", taskCtx, 5)
	stats := m.GetStats()

	log.Printf("Smoke test complete: %d episode(s), %d completed, %d pattern(s), %d relevant result(s) retrieved",
		stats.TotalEpisodes, stats.CompletedEpisodes, stats.TotalPatterns, len(results))
}
