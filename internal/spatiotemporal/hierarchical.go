package spatiotemporal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"episodic-memory/internal/types"
)

// taskTypeLevelIndex is the leaf level: one SpatiotemporalIndex per task type.
type taskTypeLevelIndex struct {
	taskType      types.TaskType
	temporal      *SpatiotemporalIndex
	totalEpisodes int
}

func newTaskTypeLevelIndex(tt types.TaskType) *taskTypeLevelIndex {
	return &taskTypeLevelIndex{taskType: tt, temporal: NewSpatiotemporalIndex()}
}

// domainLevelIndex is the middle level: one set of task types per domain,
// plus a domain-wide temporal index spanning all of its task types.
type domainLevelIndex struct {
	domain        string
	taskTypes     map[types.TaskType]*taskTypeLevelIndex
	temporal      *SpatiotemporalIndex
	totalEpisodes int
}

func newDomainLevelIndex(domain string) *domainLevelIndex {
	return &domainLevelIndex{
		domain:    domain,
		taskTypes: make(map[types.TaskType]*taskTypeLevelIndex),
		temporal:  NewSpatiotemporalIndex(),
	}
}

// HierarchicalIndexStats tracks query volume and latency, reset never, read
// via Stats.
type HierarchicalIndexStats struct {
	QueryCount         uint64
	DomainQueryCount   uint64
	TaskTypeQueryCount uint64
	TemporalQueryCount uint64
	AvgQueryTimeUs     float64
}

// HierarchicalIndex is the three-level Domain -> TaskType ->
// SpatiotemporalIndex tree plus a flat global SpatiotemporalIndex
// (spec §4.2).
type HierarchicalIndex struct {
	mu            sync.RWMutex
	domains       map[string]*domainLevelIndex
	global        *SpatiotemporalIndex
	totalEpisodes int
	createdAt     time.Time
	lastModified  time.Time
	stats         HierarchicalIndexStats

	// entry records, needed to support Remove(id) by domain/taskType/time
	// without requiring the caller to re-supply them.
	entries map[uuid.UUID]entryKey
}

type entryKey struct {
	domain   string
	taskType types.TaskType
	at       time.Time
}

// NewHierarchicalIndex creates an empty index.
func NewHierarchicalIndex(now time.Time) *HierarchicalIndex {
	return &HierarchicalIndex{
		domains:      make(map[string]*domainLevelIndex),
		global:       NewSpatiotemporalIndex(),
		createdAt:    now,
		lastModified: now,
		entries:      make(map[uuid.UUID]entryKey),
	}
}

// Insert adds an episode to the global index, its domain node (creating if
// absent), and the task-type node within that domain, in O(1) amortized
// beyond the three index writes.
func (h *HierarchicalIndex) Insert(id uuid.UUID, domain string, taskType types.TaskType, at time.Time, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.global.Insert(id, at)

	dom, ok := h.domains[domain]
	if !ok {
		dom = newDomainLevelIndex(domain)
		h.domains[domain] = dom
	}
	dom.temporal.Insert(id, at)
	dom.totalEpisodes++

	tt, ok := dom.taskTypes[taskType]
	if !ok {
		tt = newTaskTypeLevelIndex(taskType)
		dom.taskTypes[taskType] = tt
	}
	tt.temporal.Insert(id, at)
	tt.totalEpisodes++

	h.totalEpisodes++
	h.lastModified = now
	h.entries[id] = entryKey{domain: domain, taskType: taskType, at: at}
}

// Remove deletes id from every level it was indexed under, cleaning up
// empty task-type nodes and then empty domain nodes (spec §4.2).
func (h *HierarchicalIndex) Remove(id uuid.UUID, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, ok := h.entries[id]
	if !ok {
		return
	}
	delete(h.entries, id)

	h.global.Remove(id)

	dom, ok := h.domains[key.domain]
	if !ok {
		return
	}
	dom.temporal.Remove(id)
	dom.totalEpisodes--

	if tt, ok := dom.taskTypes[key.taskType]; ok {
		tt.temporal.Remove(id)
		tt.totalEpisodes--
		if tt.temporal.IsEmpty() {
			delete(dom.taskTypes, key.taskType)
		}
	}

	if dom.temporal.IsEmpty() && len(dom.taskTypes) == 0 {
		delete(h.domains, key.domain)
	}

	h.totalEpisodes--
	h.lastModified = now
}

// HierarchicalQuery carries the optional filters the dispatch (§4.2) uses to
// select the most specific query path.
type HierarchicalQuery struct {
	Domain    *string
	TaskType  *types.TaskType
	StartTime *time.Time
	EndTime   *time.Time
	TimeBucket *types.TimeBucket
	Limit     int
}

// NewHierarchicalQuery creates an empty query builder.
func NewHierarchicalQuery() *HierarchicalQuery {
	return &HierarchicalQuery{}
}

// WithDomain sets the domain filter.
func (q *HierarchicalQuery) WithDomain(domain string) *HierarchicalQuery {
	q.Domain = &domain
	return q
}

// WithTaskType sets the task type filter.
func (q *HierarchicalQuery) WithTaskType(tt types.TaskType) *HierarchicalQuery {
	q.TaskType = &tt
	return q
}

// WithTimeRange sets the [start,end] time filter.
func (q *HierarchicalQuery) WithTimeRange(start, end time.Time) *HierarchicalQuery {
	q.StartTime = &start
	q.EndTime = &end
	return q
}

// WithTimeBucket sets the exact-bucket filter.
func (q *HierarchicalQuery) WithTimeBucket(b types.TimeBucket) *HierarchicalQuery {
	q.TimeBucket = &b
	return q
}

// WithLimit sets the result limit.
func (q *HierarchicalQuery) WithLimit(limit int) *HierarchicalQuery {
	q.Limit = limit
	return q
}

func (q *HierarchicalQuery) hasBucket() bool { return q.TimeBucket != nil }
func (q *HierarchicalQuery) hasRange() bool  { return q.StartTime != nil && q.EndTime != nil }

// Query dispatches to the most specific path available (§4.2 priority 1-6),
// truncates the union to q.Limit, and updates query statistics.
func (h *HierarchicalIndex) Query(q *HierarchicalQuery, now time.Time) []uuid.UUID {
	start := time.Now()
	h.mu.Lock()
	defer func() {
		elapsedUs := float64(time.Since(start).Microseconds())
		h.stats.QueryCount++
		n := float64(h.stats.QueryCount)
		h.stats.AvgQueryTimeUs += (elapsedUs - h.stats.AvgQueryTimeUs) / n
		h.mu.Unlock()
	}()

	var result []uuid.UUID

	switch {
	case q.Domain != nil && q.TaskType != nil && q.hasBucket():
		h.stats.DomainQueryCount++
		h.stats.TaskTypeQueryCount++
		h.stats.TemporalQueryCount++
		if tt := h.taskTypeNodeLocked(*q.Domain, *q.TaskType); tt != nil {
			result = tt.temporal.QueryByBucket(*q.TimeBucket)
		}

	case q.Domain != nil && q.TaskType != nil && q.hasRange():
		h.stats.DomainQueryCount++
		h.stats.TaskTypeQueryCount++
		h.stats.TemporalQueryCount++
		if tt := h.taskTypeNodeLocked(*q.Domain, *q.TaskType); tt != nil {
			result = tt.temporal.QueryByRange(*q.StartTime, *q.EndTime)
		}

	case q.Domain != nil && q.TaskType != nil:
		h.stats.DomainQueryCount++
		h.stats.TaskTypeQueryCount++
		if tt := h.taskTypeNodeLocked(*q.Domain, *q.TaskType); tt != nil {
			result = tt.temporal.QueryAll()
		}

	case q.Domain != nil && q.hasBucket():
		h.stats.DomainQueryCount++
		h.stats.TemporalQueryCount++
		if dom := h.domains[*q.Domain]; dom != nil {
			result = dom.temporal.QueryByBucket(*q.TimeBucket)
		}

	case q.Domain != nil && q.hasRange():
		h.stats.DomainQueryCount++
		h.stats.TemporalQueryCount++
		if dom := h.domains[*q.Domain]; dom != nil {
			result = dom.temporal.QueryByRange(*q.StartTime, *q.EndTime)
		}

	case q.Domain != nil:
		h.stats.DomainQueryCount++
		if dom := h.domains[*q.Domain]; dom != nil {
			result = dom.temporal.QueryAll()
		}

	case q.TaskType != nil:
		h.stats.TaskTypeQueryCount++
		for _, dom := range h.domains {
			if tt, ok := dom.taskTypes[*q.TaskType]; ok {
				result = append(result, tt.temporal.QueryAll()...)
			}
		}

	case q.hasBucket():
		h.stats.TemporalQueryCount++
		result = h.global.QueryByBucket(*q.TimeBucket)

	case q.hasRange():
		h.stats.TemporalQueryCount++
		result = h.global.QueryByRange(*q.StartTime, *q.EndTime)

	default:
		result = h.global.QueryAll()
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result
}

func (h *HierarchicalIndex) taskTypeNodeLocked(domain string, tt types.TaskType) *taskTypeLevelIndex {
	dom, ok := h.domains[domain]
	if !ok {
		return nil
	}
	return dom.taskTypes[tt]
}

// Stats returns a snapshot of query statistics.
func (h *HierarchicalIndex) Stats() HierarchicalIndexStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// TotalEpisodes returns the number of indexed episodes.
func (h *HierarchicalIndex) TotalEpisodes() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalEpisodes
}
