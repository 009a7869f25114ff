package learning

import (
	"strings"

	"github.com/google/uuid"

	"episodic-memory/internal/types"
)

const (
	minNgramLength = 2
	maxNgramLength = 5

	// minSampleSize is the default occurrence floor for decision-point
	// grouping (spec §4.3.3).
	minSampleSize = 2

	// decisionConfidenceDefault is the default confidence threshold applied
	// when deciding whether a decision-point grouping is worth emitting.
	decisionConfidenceDefault = 0.7
)

var decisionKeywords = []string{"check if", "verify", "validate", "test"}

// PatternExtractor mines a single completed episode for tool-sequence,
// decision-point, error-recovery, and context patterns. Tool-sequence
// n-grams are emitted regardless of their within-episode count; the
// orchestrator accumulates their occurrence_count across episodes via
// PatternRanker's Dedupe and only treats a sequence as qualifying once
// it has recurred, historically or within one episode, at least twice —
// the extractor itself only ever sees one episode at a time.
type PatternExtractor struct {
	minSampleSize     int
	decisionThreshold float64
}

// NewPatternExtractor returns an extractor using spec defaults.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{minSampleSize: minSampleSize, decisionThreshold: decisionConfidenceDefault}
}

// Extract returns every pattern minable from a single episode.
func (x *PatternExtractor) Extract(ep *types.Episode) []*types.Pattern {
	var patterns []*types.Pattern
	patterns = append(patterns, x.extractToolSequences(ep)...)
	patterns = append(patterns, x.extractDecisionPoints(ep)...)
	patterns = append(patterns, x.extractErrorRecoveries(ep)...)
	if p := x.extractContextPattern(ep); p != nil {
		patterns = append(patterns, p)
	}
	return patterns
}

// extractToolSequences finds successful-step n-grams (length 2..5) and
// emits one candidate pattern per distinct n-gram observed, whatever its
// within-episode count. A count of 1 here still qualifies once merged
// against a prior sighting of the same sequence in another episode
// (spec: emit when a sequence recurs "in ≥2 episodes historically or ≥2
// times within the episode").
func (x *PatternExtractor) extractToolSequences(ep *types.Episode) []*types.Pattern {
	var successfulTools []string
	var successfulLatencies []uint64
	for _, s := range ep.Steps {
		if s.IsSuccess() {
			successfulTools = append(successfulTools, s.Tool)
			successfulLatencies = append(successfulLatencies, s.LatencyMs)
		}
	}

	var patterns []*types.Pattern
	for n := minNgramLength; n <= maxNgramLength && n <= len(successfulTools); n++ {
		seen := make(map[string]int)
		latencySum := make(map[string]uint64)
		firstSeq := make(map[string][]string)

		for i := 0; i+n <= len(successfulTools); i++ {
			seq := successfulTools[i : i+n]
			key := strings.Join(seq, "\x1f")
			seen[key]++
			for _, lat := range successfulLatencies[i : i+n] {
				latencySum[key] += lat
			}
			if _, ok := firstSeq[key]; !ok {
				firstSeq[key] = append([]string(nil), seq...)
			}
		}

		for key, count := range seen {
			avgLatency := float64(latencySum[key]) / float64(count*n)
			patterns = append(patterns, &types.Pattern{
				ID:              uuid.New(),
				Kind:            types.PatternToolSequence,
				Tools:           firstSeq[key],
				AvgLatencyMs:    avgLatency,
				Context:         ep.Context,
				SuccessRate:     1.0,
				OccurrenceCount: count,
			})
		}
	}
	return patterns
}

// extractDecisionPoints scans step actions for decision keywords and
// groups (condition, next-action) pairs occurring at least minSampleSize
// times.
func (x *PatternExtractor) extractDecisionPoints(ep *types.Episode) []*types.Pattern {
	type key struct{ condition, action string }
	counts := make(map[key]int)
	outcomes := make(map[key]map[string]int)

	for i, s := range ep.Steps {
		if !containsDecisionKeyword(s.Action) {
			continue
		}
		if i+1 >= len(ep.Steps) {
			continue
		}
		next := ep.Steps[i+1]
		k := key{condition: s.Action, action: next.Action}
		counts[k]++

		if outcomes[k] == nil {
			outcomes[k] = make(map[string]int)
		}
		if next.IsSuccess() {
			outcomes[k]["success"]++
		} else {
			outcomes[k]["failure"]++
		}
	}

	var patterns []*types.Pattern
	for k, count := range counts {
		if count < x.minSampleSize {
			continue
		}
		successRate := 0.0
		if total := outcomes[k]["success"] + outcomes[k]["failure"]; total > 0 {
			successRate = float64(outcomes[k]["success"]) / float64(total)
		}
		p := &types.Pattern{
			ID:              uuid.New(),
			Kind:            types.PatternDecisionPoint,
			Condition:       k.condition,
			Action:          k.action,
			OutcomeStats:    outcomes[k],
			Context:         ep.Context,
			SuccessRate:     successRate,
			OccurrenceCount: count,
		}
		if p.Confidence() < x.decisionThreshold {
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}

func containsDecisionKeyword(action string) bool {
	lower := strings.ToLower(action)
	for _, kw := range decisionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractErrorRecoveries synthesizes one pattern per distinct error type
// observed in an Error -> Success adjacent pair.
func (x *PatternExtractor) extractErrorRecoveries(ep *types.Episode) []*types.Pattern {
	type key string
	recoverySteps := make(map[key][]string)
	counts := make(map[key]int)

	for i := 0; i+1 < len(ep.Steps); i++ {
		current := ep.Steps[i]
		next := ep.Steps[i+1]
		if current.IsSuccess() || !next.IsSuccess() {
			continue
		}
		errType := current.Tool
		if current.Result != nil && current.Result.Message != "" {
			errType = current.Result.Message
		}
		k := key(errType)
		counts[k]++
		recoverySteps[k] = append(recoverySteps[k], next.Tool)
	}

	var patterns []*types.Pattern
	for k, count := range counts {
		patterns = append(patterns, &types.Pattern{
			ID:              uuid.New(),
			Kind:            types.PatternErrorRecovery,
			ErrorType:       string(k),
			RecoverySteps:   recoverySteps[k],
			Context:         ep.Context,
			SuccessRate:     1.0,
			OccurrenceCount: count,
		})
	}
	return patterns
}

// extractContextPattern summarizes the salient context features of the
// episode as a single pattern, only when the outcome succeeded or
// partially succeeded (spec §3 invariant).
func (x *PatternExtractor) extractContextPattern(ep *types.Episode) *types.Pattern {
	if !ep.Outcome.IsSuccessOrPartial() {
		return nil
	}

	var features []string
	if ep.Context.Domain != "" {
		features = append(features, "domain:"+ep.Context.Domain)
	}
	if ep.Context.Language != "" {
		features = append(features, "language:"+ep.Context.Language)
	}
	if ep.Context.Framework != "" {
		features = append(features, "framework:"+ep.Context.Framework)
	}
	for _, tag := range ep.Context.Tags {
		features = append(features, "tag:"+tag)
	}
	if len(features) == 0 {
		return nil
	}

	return &types.Pattern{
		ID:              uuid.New(),
		Kind:            types.PatternContext,
		ContextFeatures: features,
		Context:         ep.Context,
		SuccessRate:     1.0,
		OccurrenceCount: 1,
	}
}
