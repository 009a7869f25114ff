package graph

import (
	"log"
	"sync"

	dgraph "github.com/dominikbraun/graph"
	"github.com/google/uuid"

	"episodic-memory/internal/types"
)

// dupKey identifies a (from, to, type) triple for O(1) duplicate detection.
type dupKey struct {
	From uuid.UUID
	To   uuid.UUID
	Type types.RelationshipType
}

// RelationshipManager owns the full set of EpisodeRelationships and
// maintains outgoing/incoming adjacency indices plus a duplicate index.
// It additionally mirrors the full (untyped) graph into a dominikbraun/graph
// directed graph, used as a structural cross-check for would_create_cycle
// and for vertex/edge bookkeeping (spec §4.1.2, SPEC_FULL.md §3).
type RelationshipManager struct {
	mu sync.RWMutex

	outgoing map[uuid.UUID][]types.EpisodeRelationship
	incoming map[uuid.UUID][]types.EpisodeRelationship
	byKey    map[dupKey]types.EpisodeRelationship

	full dgraph.Graph[uuid.UUID, uuid.UUID]
}

func vertexHash(id uuid.UUID) uuid.UUID { return id }

// NewRelationshipManager creates an empty manager.
func NewRelationshipManager() *RelationshipManager {
	return &RelationshipManager{
		outgoing: make(map[uuid.UUID][]types.EpisodeRelationship),
		incoming: make(map[uuid.UUID][]types.EpisodeRelationship),
		byKey:    make(map[dupKey]types.EpisodeRelationship),
		full:     dgraph.New(vertexHash, dgraph.Directed()),
	}
}

func (m *RelationshipManager) ensureVertex(id uuid.UUID) {
	_ = m.full.AddVertex(id) // idempotent: errors on duplicate, ignored
}

// typeSubgraphLocked builds the adjacency map restricted to relationships of t,
// for cycle checks that must only consider acyclic-required types.
func (m *RelationshipManager) typeSubgraphLocked(t types.RelationshipType) AdjacencyMap {
	adj := make(AdjacencyMap)
	for from, rels := range m.outgoing {
		for _, r := range rels {
			if r.Type == t {
				adj[from] = append(adj[from], r)
			}
		}
	}
	return adj
}

// fullSubgraphLocked builds the adjacency map over every relationship,
// irrespective of type.
func (m *RelationshipManager) fullSubgraphLocked() AdjacencyMap {
	adj := make(AdjacencyMap, len(m.outgoing))
	for from, rels := range m.outgoing {
		adj[from] = append(adj[from], rels...)
	}
	return adj
}

// AddWithValidation inserts rel after checking, in order: from != to; no
// existing (from,to,type); priority in [1,10] if set; and, for
// acyclic-required types, that the hypothetical insertion does not
// introduce a cycle in the type-restricted subgraph.
func (m *RelationshipManager) AddWithValidation(rel types.EpisodeRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rel.FromEpisodeID == rel.ToEpisodeID {
		return types.NewInvalidInput("relationship cannot connect an episode to itself")
	}

	key := dupKey{From: rel.FromEpisodeID, To: rel.ToEpisodeID, Type: rel.Type}
	if _, exists := m.byKey[key]; exists {
		return types.NewInvalidInput("duplicate relationship for (from, to, type)")
	}

	if rel.Metadata.Priority != nil {
		p := *rel.Metadata.Priority
		if p < 1 || p > 10 {
			return types.NewInvalidInput("priority must be in [1,10]")
		}
	}

	if rel.Type.RequiresAcyclic() {
		sub := m.typeSubgraphLocked(rel.Type)
		sub[rel.FromEpisodeID] = append(sub[rel.FromEpisodeID], rel)
		if HasCycle(sub) {
			path, _ := FindPath(sub, rel.ToEpisodeID, rel.FromEpisodeID)
			strPath := make([]string, len(path))
			for i, id := range path {
				strPath[i] = id.String()
			}
			return types.NewCycle("insertion would create a cycle", strPath)
		}
	}

	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}

	m.outgoing[rel.FromEpisodeID] = append(m.outgoing[rel.FromEpisodeID], rel)
	m.incoming[rel.ToEpisodeID] = append(m.incoming[rel.ToEpisodeID], rel)
	m.byKey[key] = rel

	m.ensureVertex(rel.FromEpisodeID)
	m.ensureVertex(rel.ToEpisodeID)
	_ = m.full.AddEdge(rel.FromEpisodeID, rel.ToEpisodeID) // best-effort mirror

	return nil
}

// WouldCreateCycle is a predicate query over the current state, independent
// of per-type acyclicity rules: would adding from->to create a cycle in the
// full graph? The adjacency-map answer (authoritative, per the pure
// algorithm contract of §4.1.1) is cross-checked against
// dominikbraun/graph's own cycle detector over the mirrored graph.
func (m *RelationshipManager) WouldCreateCycle(from, to uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub := m.fullSubgraphLocked()
	answer := HasPath(sub, to, from)

	if mirrored, err := dgraph.CreatesCycle[uuid.UUID, uuid.UUID](m.full, from, to); err == nil {
		if mirrored != answer {
			log.Printf("graph: mirror drift detected for WouldCreateCycle(%s, %s): adjacency map=%v, dominikbraun/graph=%v; adjacency map is authoritative", from, to, answer, mirrored)
		}
	} else {
		log.Printf("graph: mirrored cycle check failed for (%s, %s): %v", from, to, err)
	}
	return answer
}

// FindCyclePath returns the path that would close a cycle if from->to were
// added, for diagnostics.
func (m *RelationshipManager) FindCyclePath(from, to uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub := m.fullSubgraphLocked()
	return FindPath(sub, to, from)
}

// TopologicalOrder returns the topological sort of the full graph, failing
// if any cycle exists across any relationship type.
func (m *RelationshipManager) TopologicalOrder() ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return TopologicalSort(m.fullSubgraphLocked())
}

// HasPath reports whether end is reachable from start in the full graph.
func (m *RelationshipManager) HasPath(start, end uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return HasPath(m.fullSubgraphLocked(), start, end)
}

// FindPath returns the first path from start to end in the full graph.
func (m *RelationshipManager) FindPath(start, end uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FindPath(m.fullSubgraphLocked(), start, end)
}

// TransitiveClosure returns every episode reachable from start.
func (m *RelationshipManager) TransitiveClosure(start uuid.UUID) map[uuid.UUID]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return TransitiveClosure(m.fullSubgraphLocked(), start)
}

// Ancestors returns every episode that can reach target.
func (m *RelationshipManager) Ancestors(target uuid.UUID) map[uuid.UUID]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Ancestors(m.fullSubgraphLocked(), target)
}

// Outgoing returns a copy of the outgoing relationships from an episode.
func (m *RelationshipManager) Outgoing(from uuid.UUID) []types.EpisodeRelationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.EpisodeRelationship(nil), m.outgoing[from]...)
}

// Incoming returns a copy of the incoming relationships to an episode.
func (m *RelationshipManager) Incoming(to uuid.UUID) []types.EpisodeRelationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.EpisodeRelationship(nil), m.incoming[to]...)
}

// RemoveEpisode deletes every relationship touching id, keeping all three
// indices and the mirrored graph consistent.
func (m *RelationshipManager) RemoveEpisode(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.outgoing[id] {
		delete(m.byKey, dupKey{From: r.FromEpisodeID, To: r.ToEpisodeID, Type: r.Type})
		m.incoming[r.ToEpisodeID] = removeRel(m.incoming[r.ToEpisodeID], r.ID)
		_ = m.full.RemoveEdge(r.FromEpisodeID, r.ToEpisodeID)
	}
	for _, r := range m.incoming[id] {
		delete(m.byKey, dupKey{From: r.FromEpisodeID, To: r.ToEpisodeID, Type: r.Type})
		m.outgoing[r.FromEpisodeID] = removeRel(m.outgoing[r.FromEpisodeID], r.ID)
		_ = m.full.RemoveEdge(r.FromEpisodeID, r.ToEpisodeID)
	}
	delete(m.outgoing, id)
	delete(m.incoming, id)
	_ = m.full.RemoveVertex(id)
}

func removeRel(list []types.EpisodeRelationship, id uuid.UUID) []types.EpisodeRelationship {
	out := list[:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
