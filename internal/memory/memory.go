// Package memory implements the orchestrator façade (spec §4.0): the
// `Memory` type wires the domain model, graph engine, hierarchical index,
// learning pipeline, diversity selector, caches, and resilience layer into
// the public episode lifecycle and retrieval operations.
//
// The store/index/logging idiom here (RWMutex-guarded maps, secondary
// indices, best-effort persistence with log.Printf on failure) follows
// this module's own EpisodicMemoryStore as it stood before this package
// was rebuilt around Episode instead of ReasoningTrajectory.
package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"episodic-memory/internal/cache"
	"episodic-memory/internal/clock"
	"episodic-memory/internal/diversity"
	"episodic-memory/internal/embeddings"
	"episodic-memory/internal/graph"
	"episodic-memory/internal/learning"
	"episodic-memory/internal/resilience"
	"episodic-memory/internal/spatiotemporal"
	"episodic-memory/internal/storage"
	"episodic-memory/internal/ttlcache"
	"episodic-memory/internal/types"
)

// Stats is the snapshot returned by GetStats.
type Stats struct {
	TotalEpisodes     int
	CompletedEpisodes int
	TotalPatterns     int
}

// Memory is the orchestrator façade described in spec §4.0. All exported
// methods are safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	episodes   map[uuid.UUID]*types.Episode
	patterns   map[uuid.UUID]*types.Pattern
	heuristics map[uuid.UUID]*types.Heuristic
	// heuristicKey maps (condition, action) -> heuristic id, so repeated
	// decision-point patterns revise one heuristic instead of minting a
	// fresh one per episode.
	heuristicKey map[string]uuid.UUID
	// heuristicContext tracks the TaskContext a heuristic was derived under,
	// since types.Heuristic itself carries no context — ShouldApplyHeuristic
	// needs it as a separate argument.
	heuristicContext map[uuid.UUID]types.TaskContext

	clk clock.Clock

	store         *storage.EpisodeStore
	relationships *graph.RelationshipManager
	hierIndex     *spatiotemporal.HierarchicalIndex
	queryCache    *cache.QueryCache
	hotCache      *ttlcache.AdaptiveTTLCache[uuid.UUID, *types.Episode]
	breaker       *resilience.CircuitBreaker
	transport     *resilience.CompressedTransport

	rewardCalc  rewardCalculator
	reflections *learning.ReflectionGenerator
	extractor   *learning.PatternExtractor
	ranker      *learning.PatternRanker
	queue       *learning.ExtractionQueue

	selector *diversity.Selector
	embedder embeddings.Embedder
}

// rewardCalculator is satisfied by both learning.RewardCalculator and
// learning.AdaptiveRewardCalculator so Options can swap in the adaptive
// variant (spec §4.3.5) without the orchestrator caring which one it holds.
type rewardCalculator interface {
	Calculate(ep *types.Episode) types.RewardScore
}

// Options configures a new Memory. Zero-value fields fall back to
// reasonable defaults, matching the teacher's own config-with-defaults
// construction idiom.
type Options struct {
	Backend          storage.Backend
	Clock            clock.Clock
	Embedder         embeddings.Embedder
	RewardCalculator rewardCalculator // nil -> learning.NewRewardCalculator()
	TTLConfig        *ttlcache.TTLConfig
	CircuitBreaker   *resilience.CircuitBreakerConfig
	Transport        *resilience.TransportConfig
	QueryCacheSize   int
	QueryCacheTTL    time.Duration
	// QueueCapacity/QueueWorkers configure background pattern extraction
	// (spec §4.3.5). QueueCapacity of 0 runs extraction synchronously
	// inside CompleteEpisode instead of enqueuing it.
	QueueCapacity int
	QueueWorkers  int
	ReflectionMax int
}

// New builds a Memory with the given options, wiring C1-C8 together.
func New(opts Options) (*Memory, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Embedder == nil {
		opts.Embedder = embeddings.NewMockEmbedder(32)
	}
	if opts.RewardCalculator == nil {
		opts.RewardCalculator = learning.NewRewardCalculator()
	}
	if opts.QueryCacheSize == 0 {
		opts.QueryCacheSize = 1000
	}
	if opts.QueryCacheTTL == 0 {
		opts.QueryCacheTTL = 5 * time.Minute
	}
	if opts.ReflectionMax == 0 {
		opts.ReflectionMax = 5
	}

	ttlCfg := ttlcache.DefaultTTLConfig()
	if opts.TTLConfig != nil {
		ttlCfg = *opts.TTLConfig
	}
	hotCache, err := ttlcache.New[uuid.UUID, *types.Episode](ttlCfg, opts.Clock)
	if err != nil {
		return nil, err
	}

	cbCfg := resilience.DefaultCircuitBreakerConfig()
	if opts.CircuitBreaker != nil {
		cbCfg = *opts.CircuitBreaker
	}

	transportCfg := resilience.DefaultTransportConfig()
	if opts.Transport != nil {
		transportCfg = *opts.Transport
	}
	// m.transport backs EncodeForTransport/DecodeFromTransport, a
	// general-purpose compression utility with no backing store of its
	// own, so its inner transport is a loopback. The episode store (below,
	// once opts.Backend is known) gets its own CompressedTransport
	// instance wrapping the actual backend, so storage reads and writes
	// are compressed independently of this one.
	transport, err := resilience.NewCompressedTransport(resilience.LoopbackTransport{}, transportCfg)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		episodes:         make(map[uuid.UUID]*types.Episode),
		patterns:         make(map[uuid.UUID]*types.Pattern),
		heuristics:       make(map[uuid.UUID]*types.Heuristic),
		heuristicKey:     make(map[string]uuid.UUID),
		heuristicContext: make(map[uuid.UUID]types.TaskContext),
		clk:              opts.Clock,
		relationships:    graph.NewRelationshipManager(),
		hierIndex:        spatiotemporal.NewHierarchicalIndex(opts.Clock.Now()),
		queryCache:       cache.New(opts.QueryCacheSize, opts.QueryCacheTTL),
		hotCache:         hotCache,
		breaker:          resilience.NewCircuitBreaker(cbCfg, opts.Clock),
		transport:        transport,
		rewardCalc:       opts.RewardCalculator,
		reflections:      learning.NewReflectionGeneratorWithMaxItems(opts.ReflectionMax),
		extractor:        learning.NewPatternExtractor(),
		ranker:           learning.NewPatternRanker(),
		selector:         diversity.NewDefaultSelector(),
		embedder:         opts.Embedder,
	}

	m.hotCache.StartCleanup()

	if opts.Backend != nil {
		storeTransport, err := resilience.NewCompressedTransport(storage.NewBackendTransport(opts.Backend), transportCfg)
		if err != nil {
			return nil, err
		}
		m.store = storage.NewEpisodeStore(opts.Backend, storeTransport)
		if err := m.loadFromStore(context.Background()); err != nil {
			return nil, err
		}
	}
	if opts.QueueCapacity > 0 {
		m.queue = learning.NewExtractionQueue(opts.QueueCapacity, opts.QueueWorkers, m.extractAndAttach)
		m.queue.Start()
	}

	return m, nil
}

// loadFromStore replays a persisted backend's episodes, patterns,
// heuristics, and relationships into the in-memory structures on startup,
// matching the teacher's own "rebuild caches from storage" boot sequence
// (cmd/server/initializer.go).
func (m *Memory) loadFromStore(ctx context.Context) error {
	episodes, err := m.store.ScanEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("memory: loading episodes: %w", err)
	}
	for _, ep := range episodes {
		m.episodes[ep.ID] = ep
		if ep.IsComplete() {
			m.hierIndex.Insert(ep.ID, ep.Context.Domain, ep.TaskType, ep.StartTime, m.clk.Now())
		}
	}

	patterns, err := m.store.ScanPatterns(ctx)
	if err != nil {
		return fmt.Errorf("memory: loading patterns: %w", err)
	}
	for _, p := range patterns {
		m.patterns[p.ID] = p
	}

	heuristics, err := m.store.ScanHeuristics(ctx)
	if err != nil {
		return fmt.Errorf("memory: loading heuristics: %w", err)
	}
	for _, h := range heuristics {
		m.heuristics[h.HeuristicID] = h
		m.heuristicKey[h.Condition+"\x00"+h.Action] = h.HeuristicID
	}

	relationships, err := m.store.ScanRelationships(ctx)
	if err != nil {
		return fmt.Errorf("memory: loading relationships: %w", err)
	}
	for _, rel := range relationships {
		if err := m.relationships.AddWithValidation(*rel); err != nil {
			log.Printf("memory: dropping persisted relationship %s on load: %v", rel.ID, err)
		}
	}

	return nil
}

// Close stops the background extraction queue and the hot-entry cache's
// cleanup goroutine, bounded by deadline, and closes the storage backend.
func (m *Memory) Close(deadline time.Duration) error {
	if m.queue != nil {
		m.queue.Stop(deadline)
	}
	m.hotCache.Stop(deadline)
	m.transport.Close()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// StartEpisode allocates a fresh episode, stores it, and returns its id.
// Never fails (spec §4.0).
func (m *Memory) StartEpisode(description string, ctx types.TaskContext, taskType types.TaskType) uuid.UUID {
	ep := types.NewEpisode(description, ctx, taskType, m.clk.Now())

	m.mu.Lock()
	m.episodes[ep.ID] = ep
	m.mu.Unlock()

	m.persistEpisode(ep)
	return ep.ID
}

// LogStep appends a step if the episode exists and is open; otherwise logs
// a warning and drops it silently.
func (m *Memory) LogStep(episodeID uuid.UUID, tool, action string, result types.ExecutionResult, latencyMs uint64) {
	m.mu.Lock()
	ep, ok := m.episodes[episodeID]
	if !ok || ep.IsComplete() {
		m.mu.Unlock()
		log.Printf("memory: dropping log_step for %s: episode missing or already complete", episodeID)
		return
	}
	step := ep.AddStep(tool, action)
	step.Result = &result
	step.LatencyMs = latencyMs
	m.mu.Unlock()

	m.persistEpisode(ep)
}

// CompleteEpisode seals the episode, computes reward and reflection, then
// either extracts patterns synchronously or enqueues the episode for
// background extraction.
func (m *Memory) CompleteEpisode(episodeID uuid.UUID, outcome types.TaskOutcome) error {
	m.mu.Lock()
	ep, ok := m.episodes[episodeID]
	if !ok {
		m.mu.Unlock()
		return types.NewNotFound("episode " + episodeID.String())
	}

	ep.Complete(outcome, m.clk.Now())
	reward := m.rewardCalc.Calculate(ep)
	ep.Reward = &reward
	reflection := m.reflections.Generate(ep, m.clk.Now())
	ep.Reflection = &reflection
	m.mu.Unlock()

	m.persistEpisode(ep)
	m.hierIndex.Insert(ep.ID, ep.Context.Domain, ep.TaskType, ep.StartTime, m.clk.Now())
	m.queryCache.InvalidateDomain(ep.Context.Domain)

	if ep.Outcome.IsSuccessOrPartial() {
		if m.queue != nil && m.queue.Enqueue(ep.ID) {
			return nil
		}
		if m.queue != nil {
			log.Printf("memory: extraction queue full, falling back to synchronous extraction for %s", ep.ID)
		}
		if err := m.extractAndAttach(ep.ID); err != nil {
			log.Printf("memory: synchronous pattern extraction failed for %s: %v", ep.ID, err)
		}
	}

	return nil
}

// extractAndAttach runs the pattern extractor over the named episode,
// merges the results into the pattern store, derives/updates heuristics
// from qualifying decision-point patterns, and attaches the resulting
// pattern ids to the episode. This is the callback handed to the async
// extraction queue, and is also called inline when no queue is configured.
func (m *Memory) extractAndAttach(episodeID uuid.UUID) error {
	m.mu.Lock()
	ep, ok := m.episodes[episodeID]
	if !ok {
		m.mu.Unlock()
		return types.NewNotFound("episode " + episodeID.String())
	}
	epCopy := ep.Clone()
	m.mu.Unlock()

	fresh := m.extractor.Extract(epCopy)
	if len(fresh) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make([]*types.Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		existing = append(existing, p)
	}
	merged := learning.Dedupe(append(existing, fresh...))

	m.patterns = make(map[uuid.UUID]*types.Pattern, len(merged))
	attached := make([]uuid.UUID, 0, len(fresh))
	for _, p := range merged {
		m.patterns[p.ID] = p
	}
	var touchedHeuristics []*types.Heuristic
	for _, p := range fresh {
		// p's own id may not survive Dedupe if it merged into a
		// pre-existing pattern; resolve to whichever pattern in the
		// merged set now carries p's evidence.
		match := findMergedVariant(merged, p)
		if match == nil {
			continue
		}
		// A tool-sequence candidate only qualifies once it has recurred
		// ≥2 times within the episode or ≥2 times across episodes
		// (accumulated into OccurrenceCount by Dedupe's merge); other
		// kinds are attached as the extractor emits them (only decision
		// points carry a per-episode count and confidence gate there).
		if match.Kind == types.PatternToolSequence && match.OccurrenceCount < 2 {
			continue
		}
		attached = appendUnique(attached, match.ID)
		if p.Kind == types.PatternDecisionPoint {
			touchedHeuristics = append(touchedHeuristics, m.upsertHeuristicLocked(match, episodeID))
		}
	}

	if ep, ok := m.episodes[episodeID]; ok {
		ep.PatternIDs = append(ep.PatternIDs, attached...)
		for _, h := range touchedHeuristics {
			ep.HeuristicIDs = appendUnique(ep.HeuristicIDs, h.HeuristicID)
		}
	}

	if m.store != nil {
		if err := m.store.PutPatterns(context.Background(), epCopy, fresh); err != nil {
			log.Printf("memory: failed to persist patterns for %s: %v", episodeID, err)
		}
		for _, h := range touchedHeuristics {
			if err := m.store.PutHeuristic(context.Background(), h); err != nil {
				log.Printf("memory: failed to persist heuristic %s: %v", h.HeuristicID, err)
			}
		}
	}

	return nil
}

// upsertHeuristicLocked creates or revises the heuristic for a
// decision-point pattern's (condition, action) pair and returns it. Called
// with mu held.
func (m *Memory) upsertHeuristicLocked(p *types.Pattern, episodeID uuid.UUID) *types.Heuristic {
	key := p.Condition + "\x00" + p.Action
	id, exists := m.heuristicKey[key]
	if !exists {
		id = uuid.New()
		m.heuristicKey[key] = id
		m.heuristics[id] = &types.Heuristic{
			HeuristicID: id,
			Condition:   p.Condition,
			Action:      p.Action,
			Evidence:    types.HeuristicEvidence{},
		}
	}
	h := m.heuristics[id]
	n := float64(h.Evidence.SampleSize)
	add := float64(p.OccurrenceCount)
	if n+add > 0 {
		h.Evidence.SuccessRate = (h.Evidence.SuccessRate*n + p.SuccessRate*add) / (n + add)
	}
	h.Evidence.SampleSize += p.OccurrenceCount
	h.Evidence.EpisodeIDs = appendUnique(h.Evidence.EpisodeIDs, episodeID)
	h.RecomputeConfidence()
	m.heuristicContext[id] = p.Context
	return h
}

// findMergedVariant locates the pattern within merged that now carries
// candidate's evidence, following the same identity test learning.Dedupe
// merges on.
func findMergedVariant(merged []*types.Pattern, candidate *types.Pattern) *types.Pattern {
	for _, p := range merged {
		if learning.SameVariant(p, candidate) && learning.ContextSimilarity(p.Context, candidate.Context) >= learning.DedupSimilarityThreshold {
			return p
		}
	}
	return nil
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// UpdateHeuristicConfidence updates evidence (sample_size += 1, success_rate
// incrementally revised) and recomputes confidence.
func (m *Memory) UpdateHeuristicConfidence(heuristicID, episodeID uuid.UUID, outcome types.TaskOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.heuristics[heuristicID]
	if !ok {
		return types.NewNotFound("heuristic " + heuristicID.String())
	}

	n := float64(h.Evidence.SampleSize)
	success := 0.0
	if outcome.IsSuccessOrPartial() {
		success = 1.0
	}
	h.Evidence.SuccessRate = (h.Evidence.SuccessRate*n + success) / (n + 1)
	h.Evidence.SampleSize++
	h.Evidence.EpisodeIDs = appendUnique(h.Evidence.EpisodeIDs, episodeID)
	h.RecomputeConfidence()

	if m.store != nil {
		if err := m.store.PutHeuristic(context.Background(), h); err != nil {
			log.Printf("memory: failed to persist heuristic %s: %v", h.HeuristicID, err)
		}
	}

	return nil
}

// GetEpisode returns the episode by id, checking the hot-entry adaptive TTL
// cache before falling back to the primary store.
func (m *Memory) GetEpisode(id uuid.UUID) (*types.Episode, bool) {
	if ep, ok := m.hotCache.Get(id); ok {
		return ep, true
	}

	m.mu.RLock()
	ep, ok := m.episodes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	m.hotCache.Put(id, ep, estimateEpisodeSize(ep))
	return ep, true
}

// GetStats returns (total_episodes, completed_episodes, total_patterns).
func (m *Memory) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	completed := 0
	for _, ep := range m.episodes {
		if ep.IsComplete() {
			completed++
		}
	}
	return Stats{
		TotalEpisodes:     len(m.episodes),
		CompletedEpisodes: completed,
		TotalPatterns:     len(m.patterns),
	}
}

// RetrieveRelevantContext returns up to limit completed episodes ordered by
// relevance score (§4.0.1), filtered by the relevance predicate, re-ranked
// for diversity via MMR. Results are served from the query cache when
// possible.
func (m *Memory) RetrieveRelevantContext(ctx context.Context, taskDescription string, taskCtx types.TaskContext, limit int) []*types.Episode {
	key := cache.Key{
		Query:    taskDescription,
		Domain:   taskCtx.Domain,
		TaskType: "",
		Limit:    limit,
	}
	if cached, ok := m.queryCache.Get(key); ok {
		return cached
	}

	candidates := m.relevantEpisodesLocked(taskDescription, taskCtx)
	selected := m.diversityRank(ctx, candidates, limit)

	m.queryCache.Put(key, selected)
	return selected
}

func (m *Memory) relevantEpisodesLocked(taskDescription string, taskCtx types.TaskContext) []*types.Episode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Episode
	for _, ep := range m.episodes {
		if !ep.IsComplete() {
			continue
		}
		if !isRelevant(ep, taskCtx, taskDescription) {
			continue
		}
		out = append(out, ep)
	}

	sort.Slice(out, func(i, j int) bool {
		return relevanceScore(out[i], taskCtx, taskDescription) > relevanceScore(out[j], taskCtx, taskDescription)
	})
	return out
}

// QueryByWindow exposes the hierarchical spatiotemporal index (spec §4.2)
// directly: episode ids filed under domain/task type within [start, end],
// most-specific index path first. Unlike RetrieveRelevantContext, this does
// not apply the relevance predicate or diversity re-ranking — it's the raw
// indexed lookup the spec describes as its own capability.
func (m *Memory) QueryByWindow(domain string, taskType types.TaskType, start, end time.Time, limit int) []uuid.UUID {
	q := spatiotemporal.NewHierarchicalQuery().WithLimit(limit)
	if domain != "" {
		q = q.WithDomain(domain)
	}
	if taskType != "" {
		q = q.WithTaskType(taskType)
	}
	if !start.IsZero() && !end.IsZero() {
		q = q.WithTimeRange(start, end)
	}
	return m.hierIndex.Query(q, m.clk.Now())
}

// diversityRank embeds each candidate's description and re-ranks with MMR,
// falling back to the plain relevance order if embedding fails.
func (m *Memory) diversityRank(ctx context.Context, candidates []*types.Episode, limit int) []*types.Episode {
	if len(candidates) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*types.Episode, len(candidates))
	mmrCandidates := make([]diversity.Candidate, 0, len(candidates))
	for i, ep := range candidates {
		byID[ep.ID] = ep
		relevance := 1.0 - float64(i)/float64(len(candidates))
		vec, err := m.embedder.Embed(ctx, ep.Description)
		if err != nil {
			log.Printf("memory: embedding failed for episode %s, diversity re-rank skipped for it: %v", ep.ID, err)
			vec = nil
		}
		mmrCandidates = append(mmrCandidates, diversity.Candidate{EpisodeID: ep.ID, Relevance: relevance, Embedding: vec})
	}

	selected := m.selector.Select(mmrCandidates, limit)
	out := make([]*types.Episode, 0, len(selected))
	for _, c := range selected {
		out = append(out, byID[c.EpisodeID])
	}
	return out
}

// RetrieveRelevantPatterns ranks all stored patterns by relevance+quality
// and deduplicates (§4.3.4).
func (m *Memory) RetrieveRelevantPatterns(targetContext types.TaskContext, limit int) []*types.Pattern {
	m.mu.RLock()
	all := make([]*types.Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		all = append(all, p)
	}
	m.mu.RUnlock()

	deduped := learning.Dedupe(all)
	sort.Slice(deduped, func(i, j int) bool {
		return m.ranker.Score(deduped[i], targetContext) > m.ranker.Score(deduped[j], targetContext)
	})
	if limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

// RetrieveRelevantHeuristics orders heuristics by confidence × contextual
// relevance, restricted to ones that clear the "optimized validator"
// application thresholds (spec §4.3.4).
func (m *Memory) RetrieveRelevantHeuristics(targetContext types.TaskContext, limit int) []*types.Heuristic {
	m.mu.RLock()
	all := make([]*types.Heuristic, 0, len(m.heuristics))
	heuristicCtx := make(map[uuid.UUID]types.TaskContext, len(m.heuristics))
	for _, h := range m.heuristics {
		all = append(all, h)
		heuristicCtx[h.HeuristicID] = m.heuristicContext[h.HeuristicID]
	}
	m.mu.RUnlock()

	filtered := all[:0:0]
	for _, h := range all {
		if learning.ShouldApplyHeuristic(h, targetContext, heuristicCtx[h.HeuristicID]) {
			filtered = append(filtered, h)
		}
	}

	score := func(h *types.Heuristic) float64 {
		return h.Confidence * learning.ContextSimilarity(heuristicCtx[h.HeuristicID], targetContext)
	}
	sort.Slice(filtered, func(i, j int) bool { return score(filtered[i]) > score(filtered[j]) })
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// AddRelationship validates and inserts a directed relationship between two
// episodes, delegating to the graph engine (C1).
func (m *Memory) AddRelationship(rel types.EpisodeRelationship) error {
	if err := m.relationships.AddWithValidation(rel); err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.PutRelationship(context.Background(), &rel); err != nil {
			log.Printf("memory: failed to persist relationship %s: %v", rel.ID, err)
		}
	}
	return nil
}

// HasPath reports whether end is reachable from start in the relationship
// graph.
func (m *Memory) HasPath(start, end uuid.UUID) bool {
	return m.relationships.HasPath(start, end)
}

// EncodeForTransport compresses a retrieval payload at or above the
// configured threshold (spec §4.7.2) via the compressed transport; the
// circuit breaker is not involved.
func (m *Memory) EncodeForTransport(payload []byte) resilience.Encoded {
	return m.transport.Compress(payload)
}

// DecodeFromTransport reverses EncodeForTransport.
func (m *Memory) DecodeFromTransport(enc resilience.Encoded) ([]byte, error) {
	return m.transport.Decompress(enc)
}

func (m *Memory) persistEpisode(ep *types.Episode) {
	if m.store == nil {
		return
	}
	_, err := resilience.Call(m.breaker, func() (struct{}, error) {
		return struct{}{}, m.store.PutEpisode(context.Background(), ep)
	})
	if err != nil {
		log.Printf("memory: failed to persist episode %s: %v", ep.ID, err)
	}
}

func estimateEpisodeSize(ep *types.Episode) int {
	return 256 + len(ep.Steps)*128
}

// isRelevant implements the §4.0.1 predicate: true if any of same domain
// (unconditional — two episodes with no domain set still match, per
// original_source/memory-core/src/memory.rs:511's unguarded equality),
// same non-empty language, same non-empty framework, non-empty tag
// intersection, or a query word longer than 3 characters that appears as
// a substring anywhere in the episode's raw (untokenized) description.
func isRelevant(ep *types.Episode, ctx types.TaskContext, taskDescription string) bool {
	if ep.Context.Domain == ctx.Domain {
		return true
	}
	if ctx.Language != "" && ep.Context.Language == ctx.Language {
		return true
	}
	if ctx.Framework != "" && ep.Context.Framework == ctx.Framework {
		return true
	}
	if tagsIntersect(ep.Context.Tags, ctx.Tags) {
		return true
	}
	episodeDescLower := strings.ToLower(ep.Description)
	for _, w := range strings.Fields(strings.ToLower(taskDescription)) {
		if len(w) > 3 && strings.Contains(episodeDescLower, w) {
			return true
		}
	}
	return false
}

// relevanceScore implements the §4.0.1 score: reward quality × 0.3, a
// context subscore capped at 0.4, and description similarity × 0.3.
// Description similarity follows
// original_source/memory-core/src/memory.rs:567's literal formula: the
// denominator is every whitespace-delimited query word (not just the
// long ones), and the numerator counts query words longer than 3
// characters found as a substring of the episode's raw description.
func relevanceScore(ep *types.Episode, ctx types.TaskContext, taskDescription string) float64 {
	var rewardQuality float64
	if ep.Reward != nil {
		rewardQuality = float64(ep.Reward.Total)
	}

	contextSub := 0.0
	if ep.Context.Domain == ctx.Domain {
		contextSub += 0.4
	}
	if ctx.Language != "" && ep.Context.Language == ctx.Language {
		contextSub += 0.3
	}
	if ctx.Framework != "" && ep.Context.Framework == ctx.Framework {
		contextSub += 0.2
	}
	contextSub += 0.1 * float64(commonTagCount(ep.Context.Tags, ctx.Tags))
	if contextSub > 0.4 {
		contextSub = 0.4
	}

	episodeDescLower := strings.ToLower(ep.Description)
	descWords := strings.Fields(strings.ToLower(taskDescription))
	common := 0
	for _, w := range descWords {
		if len(w) > 3 && strings.Contains(episodeDescLower, w) {
			common++
		}
	}
	descSim := 0.0
	if len(descWords) > 0 {
		descSim = float64(common) / float64(len(descWords))
	}

	return rewardQuality*0.3 + contextSub + descSim*0.3
}

func tagsIntersect(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

func commonTagCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	n := 0
	for _, t := range b {
		if set[t] {
			n++
		}
	}
	return n
}
