// Package types defines the core domain model of the episodic memory
// service: episodes, steps, outcomes, rewards, reflections, patterns,
// heuristics, and the relationships that connect episodes into a graph.
package types

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Complexity classifies the complexity of a task.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// complexityRank orders complexity levels for "adjacent-level" similarity
// comparisons used by pattern context similarity (spec §4.3.4).
var complexityRank = map[Complexity]int{
	ComplexitySimple:   0,
	ComplexityModerate: 1,
	ComplexityComplex:  2,
}

// ComplexitySimilarity returns 1.0 for exact match, 0.7 for adjacent levels,
// 0.3 otherwise.
func ComplexitySimilarity(a, b Complexity) float64 {
	if a == b {
		return 1.0
	}
	ra, aok := complexityRank[a]
	rb, bok := complexityRank[b]
	if aok && bok {
		diff := ra - rb
		if diff == 1 || diff == -1 {
			return 0.7
		}
	}
	return 0.3
}

// TaskType enumerates the kinds of tasks an episode can record.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskDebugging      TaskType = "debugging"
	TaskRefactoring    TaskType = "refactoring"
	TaskTesting        TaskType = "testing"
	TaskAnalysis       TaskType = "analysis"
	TaskDocumentation  TaskType = "documentation"
)

// TaskContext carries the descriptive metadata an episode is executed under.
type TaskContext struct {
	Language   string   `json:"language,omitempty"`
	Framework  string   `json:"framework,omitempty"`
	Complexity Complexity `json:"complexity"`
	Domain     string   `json:"domain"`
	Tags       []string `json:"tags,omitempty"`
}

// ExecutionResult is the sum type Success{output} | Error{message} for a step.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResult constructs a successful ExecutionResult.
func SuccessResult(output string) ExecutionResult {
	return ExecutionResult{Success: true, Output: output}
}

// ErrorResult constructs a failed ExecutionResult.
func ErrorResult(message string) ExecutionResult {
	return ExecutionResult{Success: false, Message: message}
}

// ExecutionStep records one action taken during an episode.
type ExecutionStep struct {
	StepNumber int              `json:"step_number"`
	Tool       string           `json:"tool"`
	Action     string           `json:"action"`
	Result     *ExecutionResult `json:"result,omitempty"`
	LatencyMs  uint64           `json:"latency_ms"`
}

// IsSuccess reports whether the step's result was a success. Invariant:
// is_success ⇔ result is Success.
func (s ExecutionStep) IsSuccess() bool {
	return s.Result != nil && s.Result.Success
}

// OutcomeKind tags the TaskOutcome variant.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomePartialSuccess OutcomeKind = "partial_success"
	OutcomeFailure        OutcomeKind = "failure"
)

// TaskOutcome is the tagged-variant sum Success | PartialSuccess | Failure.
type TaskOutcome struct {
	Kind         OutcomeKind `json:"kind"`
	Verdict      string      `json:"verdict,omitempty"`
	Artifacts    []string    `json:"artifacts,omitempty"`
	Completed    []string    `json:"completed,omitempty"`
	Failed       []string    `json:"failed,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	ErrorDetails string      `json:"error_details,omitempty"`
}

// IsSuccessOrPartial reports whether the outcome is Success or PartialSuccess
// with a non-empty completed set — the condition under which patterns and
// heuristics may be derived (spec §3 invariants).
func (o *TaskOutcome) IsSuccessOrPartial() bool {
	if o == nil {
		return false
	}
	switch o.Kind {
	case OutcomeSuccess:
		return true
	case OutcomePartialSuccess:
		return len(o.Completed) > 0
	default:
		return false
	}
}

// RewardScore is the scalar quality assessment of a completed episode.
// Contract: Total = Base * Efficiency * ComplexityBonus * QualityMultiplier + LearningBonus.
type RewardScore struct {
	Base              float32 `json:"base"`
	Efficiency        float32 `json:"efficiency"`
	ComplexityBonus   float32 `json:"complexity_bonus"`
	QualityMultiplier float32 `json:"quality_multiplier"`
	LearningBonus     float32 `json:"learning_bonus"`
	Total             float32 `json:"total"`
}

// Reflection is the structured post-hoc summary of an episode.
type Reflection struct {
	Successes    []string  `json:"successes"`
	Improvements []string  `json:"improvements"`
	Insights     []string  `json:"insights"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// PatternKind tags the Pattern variant.
type PatternKind string

const (
	PatternToolSequence  PatternKind = "tool_sequence"
	PatternDecisionPoint PatternKind = "decision_point"
	PatternErrorRecovery PatternKind = "error_recovery"
	PatternContext       PatternKind = "context_pattern"
)

// Pattern is the tagged-variant type mined from episodes: ToolSequence,
// DecisionPoint, ErrorRecovery, or ContextPattern. Only the fields relevant
// to the active Kind are populated.
type Pattern struct {
	ID   uuid.UUID   `json:"id"`
	Kind PatternKind `json:"kind"`

	// ToolSequence fields.
	Tools        []string `json:"tools,omitempty"`
	AvgLatencyMs float64  `json:"avg_latency_ms,omitempty"`

	// DecisionPoint fields.
	Condition    string         `json:"condition,omitempty"`
	Action       string         `json:"action,omitempty"`
	OutcomeStats map[string]int `json:"outcome_stats,omitempty"`

	// ErrorRecovery fields.
	ErrorType     string   `json:"error_type,omitempty"`
	RecoverySteps []string `json:"recovery_steps,omitempty"`

	// ContextPattern fields.
	ContextFeatures []string `json:"context_features,omitempty"`

	// Shared statistics.
	Context         TaskContext `json:"context"`
	SuccessRate     float64     `json:"success_rate"`
	OccurrenceCount int         `json:"occurrence_count"`
}

// Confidence returns confidence() ∈ [0,∞): success rate scaled by
// log-occurrence, giving patterns and heuristics a shared notion of
// confidence for ranking (spec §4.3.4's occurrence term).
func (p *Pattern) Confidence() float64 {
	if p == nil {
		return 0
	}
	return p.SuccessRate * (1 + math.Log1p(float64(maxInt(p.OccurrenceCount, 0))))
}

// SuccessRateOf returns success_rate() ∈ [0,1].
func (p *Pattern) SuccessRateOf() float64 {
	if p == nil {
		return 0
	}
	return p.SuccessRate
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// HeuristicEvidence tracks the statistical basis for a Heuristic's confidence.
type HeuristicEvidence struct {
	SampleSize  int         `json:"sample_size"`
	SuccessRate float64     `json:"success_rate"`
	EpisodeIDs  []uuid.UUID `json:"episode_ids"`
}

// Heuristic is a condition/action rule with statistical evidence.
// Invariant: Confidence = SuccessRate * sqrt(SampleSize).
type Heuristic struct {
	HeuristicID uuid.UUID         `json:"heuristic_id"`
	Condition   string            `json:"condition"`
	Action      string            `json:"action"`
	Confidence  float64           `json:"confidence"`
	Evidence    HeuristicEvidence `json:"evidence"`
}

// RecomputeConfidence restores the invariant Confidence = SuccessRate * sqrt(SampleSize).
func (h *Heuristic) RecomputeConfidence() {
	h.Confidence = h.Evidence.SuccessRate * math.Sqrt(float64(h.Evidence.SampleSize))
}

// RelationshipType enumerates edge kinds between episodes.
type RelationshipType string

const (
	RelDependsOn   RelationshipType = "depends_on"
	RelFollows     RelationshipType = "follows"
	RelRelatedTo   RelationshipType = "related_to"
	RelBlocks      RelationshipType = "blocks"
	RelParentChild RelationshipType = "parent_child"
	RelDuplicates  RelationshipType = "duplicates"
	RelReferences  RelationshipType = "references"
)

// RequiresAcyclic reports whether this relationship type's subgraph must
// never contain a cycle (spec §3, §4.1.2).
func (t RelationshipType) RequiresAcyclic() bool {
	switch t {
	case RelDependsOn, RelFollows, RelBlocks, RelParentChild:
		return true
	default:
		return false
	}
}

// RelationshipMetadata carries optional edge annotations.
type RelationshipMetadata struct {
	Priority *int              `json:"priority,omitempty"` // 1-10 when present
	Reason   string            `json:"reason,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// EpisodeRelationship is a directed, typed edge between two episodes.
type EpisodeRelationship struct {
	ID            uuid.UUID            `json:"id"`
	FromEpisodeID uuid.UUID            `json:"from_episode_id"`
	ToEpisodeID   uuid.UUID            `json:"to_episode_id"`
	Type          RelationshipType     `json:"type"`
	Metadata      RelationshipMetadata `json:"metadata"`
}

// TimeBucket is a Year/Month/Day/Hour hierarchical key. Buckets compare
// lexicographically by component.
type TimeBucket struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
	Hour  int `json:"hour"`
}

// BucketFromTime derives the full-precision TimeBucket for an instant.
func BucketFromTime(t time.Time) TimeBucket {
	t = t.UTC()
	return TimeBucket{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour()}
}

// Compare returns -1, 0, or 1 comparing buckets lexicographically by
// Year, Month, Day, Hour.
func (b TimeBucket) Compare(o TimeBucket) int {
	pairs := [4][2]int{{b.Year, o.Year}, {b.Month, o.Month}, {b.Day, o.Day}, {b.Hour, o.Hour}}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Episode is a single bounded task execution: task description, context,
// ordered steps, and (once complete) outcome, reward, and reflection.
//
// Invariants: EndTime >= StartTime once set; Steps have strictly increasing
// StepNumber starting at 1; Reward/Reflection/Patterns are present iff
// Outcome is present (the episode is "complete"); Patterns/Heuristics are
// only populated when Outcome.IsSuccessOrPartial().
type Episode struct {
	ID           uuid.UUID         `json:"id"`
	Description  string            `json:"description"`
	Context      TaskContext       `json:"context"`
	TaskType     TaskType          `json:"task_type"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	Steps        []ExecutionStep   `json:"steps"`
	Outcome      *TaskOutcome      `json:"outcome,omitempty"`
	Reward       *RewardScore      `json:"reward,omitempty"`
	Reflection   *Reflection       `json:"reflection,omitempty"`
	PatternIDs   []uuid.UUID       `json:"pattern_ids,omitempty"`
	HeuristicIDs []uuid.UUID       `json:"heuristic_ids,omitempty"`
	Salient      string            `json:"salient_features,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// IsComplete reports whether the episode has been sealed by complete_episode.
func (e *Episode) IsComplete() bool {
	return e != nil && e.Outcome != nil
}

// Duration returns the episode's wall-clock span, or false if it hasn't
// completed yet.
func (e *Episode) Duration() (time.Duration, bool) {
	if e == nil || e.EndTime == nil {
		return 0, false
	}
	return e.EndTime.Sub(e.StartTime), true
}

// SuccessfulStepsCount counts steps whose result was a success.
func (e *Episode) SuccessfulStepsCount() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, s := range e.Steps {
		if s.IsSuccess() {
			n++
		}
	}
	return n
}

// FailedStepsCount counts steps whose result was not a success.
func (e *Episode) FailedStepsCount() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, s := range e.Steps {
		if !s.IsSuccess() {
			n++
		}
	}
	return n
}

// NewEpisode allocates a fresh open episode. Mirrors start_episode (spec §4.0).
func NewEpisode(description string, ctx TaskContext, taskType TaskType, now time.Time) *Episode {
	return &Episode{
		ID:          uuid.New(),
		Description: description,
		Context:     ctx,
		TaskType:    taskType,
		StartTime:   now,
		Steps:       make([]ExecutionStep, 0, 4),
	}
}

// AddStep appends a step, enforcing the strictly-increasing StepNumber
// invariant by assigning the next sequential number.
func (e *Episode) AddStep(tool, action string) *ExecutionStep {
	e.Steps = append(e.Steps, ExecutionStep{StepNumber: len(e.Steps) + 1, Tool: tool, Action: action})
	return &e.Steps[len(e.Steps)-1]
}

// Complete seals the episode with its outcome and end time.
func (e *Episode) Complete(outcome TaskOutcome, now time.Time) {
	e.Outcome = &outcome
	end := now
	e.EndTime = &end
}

// Clone returns a deep copy safe to hand to a caller or background worker
// without risking mutation of the store's owned copy, matching the
// teacher's deep-copy-on-read discipline (internal/storage/memory.go).
func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}
	clone := *e
	if e.EndTime != nil {
		end := *e.EndTime
		clone.EndTime = &end
	}
	clone.Steps = make([]ExecutionStep, len(e.Steps))
	copy(clone.Steps, e.Steps)
	if e.Outcome != nil {
		outcome := *e.Outcome
		clone.Outcome = &outcome
	}
	if e.Reward != nil {
		reward := *e.Reward
		clone.Reward = &reward
	}
	if e.Reflection != nil {
		refl := *e.Reflection
		clone.Reflection = &refl
	}
	clone.PatternIDs = append([]uuid.UUID(nil), e.PatternIDs...)
	clone.HeuristicIDs = append([]uuid.UUID(nil), e.HeuristicIDs...)
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.Context.Tags = append([]string(nil), e.Context.Tags...)
	return &clone
}
