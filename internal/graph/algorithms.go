// Package graph implements the directed relationship graph over episodes:
// pure traversal algorithms over a caller-provided adjacency map, and the
// RelationshipManager that owns the full set of relationships and enforces
// the acyclicity rules of spec §4.1.2.
package graph

import (
	"fmt"

	"github.com/google/uuid"

	"episodic-memory/internal/types"
)

// AdjacencyMap is from_id -> outgoing relationships, the shape every
// algorithm in this file operates over. All traversals are O(V+E).
type AdjacencyMap map[uuid.UUID][]types.EpisodeRelationship

func neighbors(adj AdjacencyMap, from uuid.UUID) []uuid.UUID {
	rels := adj[from]
	ids := make([]uuid.UUID, len(rels))
	for i, r := range rels {
		ids[i] = r.ToEpisodeID
	}
	return ids
}

// HasPath reports whether end is reachable from start via DFS. A node is
// trivially reachable from itself.
func HasPath(adj AdjacencyMap, start, end uuid.UUID) bool {
	if start == end {
		return true
	}
	visited := make(map[uuid.UUID]bool)
	return hasPathDFS(adj, start, end, visited)
}

func hasPathDFS(adj AdjacencyMap, current, end uuid.UUID, visited map[uuid.UUID]bool) bool {
	if current == end {
		return true
	}
	visited[current] = true
	for _, next := range neighbors(adj, current) {
		if visited[next] {
			continue
		}
		if hasPathDFS(adj, next, end, visited) {
			return true
		}
	}
	return false
}

// FindPath returns the first DFS path found from start to end (inclusive
// endpoints), or an error if no path exists. Same-node returns a
// single-element path.
func FindPath(adj AdjacencyMap, start, end uuid.UUID) ([]uuid.UUID, error) {
	if start == end {
		return []uuid.UUID{start}, nil
	}
	visited := make(map[uuid.UUID]bool)
	path, ok := findPathDFS(adj, start, end, visited)
	if !ok {
		return nil, fmt.Errorf("no path found from %s to %s", start, end)
	}
	return path, nil
}

func findPathDFS(adj AdjacencyMap, current, end uuid.UUID, visited map[uuid.UUID]bool) ([]uuid.UUID, bool) {
	visited[current] = true
	if current == end {
		return []uuid.UUID{current}, true
	}
	for _, next := range neighbors(adj, current) {
		if visited[next] {
			continue
		}
		if sub, ok := findPathDFS(adj, next, end, visited); ok {
			return append([]uuid.UUID{current}, sub...), true
		}
	}
	return nil, false
}

// HasCycle reports whether adj contains any cycle, using three-color
// (white/gray/black) DFS from every node that appears as a key. A self-loop
// counts as a cycle.
func HasCycle(adj AdjacencyMap) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uuid.UUID]int)

	var visit func(uuid.UUID) bool
	visit = func(node uuid.UUID) bool {
		color[node] = gray
		for _, next := range neighbors(adj, node) {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for node := range adj {
		if color[node] == white {
			if visit(node) {
				return true
			}
		}
	}
	return false
}

// TopologicalSort returns a topological order of adj, failing if the graph
// is cyclic.
func TopologicalSort(adj AdjacencyMap) ([]uuid.UUID, error) {
	if HasCycle(adj) {
		return nil, fmt.Errorf("cannot perform topological sort on cyclic graph")
	}

	visited := make(map[uuid.UUID]bool)
	var stack []uuid.UUID

	var visit func(uuid.UUID)
	visit = func(node uuid.UUID) {
		visited[node] = true
		for _, next := range neighbors(adj, node) {
			if !visited[next] {
				visit(next)
			}
		}
		stack = append(stack, node)
	}

	for node := range adj {
		if !visited[node] {
			visit(node)
		}
	}

	// post-order DFS list, reversed.
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	return stack, nil
}

// TransitiveClosure returns every node reachable from start via BFS,
// excluding start itself.
func TransitiveClosure(adj AdjacencyMap, start uuid.UUID) map[uuid.UUID]bool {
	reachable := make(map[uuid.UUID]bool)
	visited := map[uuid.UUID]bool{start: true}
	queue := append([]uuid.UUID(nil), neighbors(adj, start)...)
	for _, n := range queue {
		visited[n] = true
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		reachable[node] = true
		for _, next := range neighbors(adj, node) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reachable
}

// Ancestors returns every node that can reach target via BFS over the
// reverse adjacency list, excluding target itself.
func Ancestors(adj AdjacencyMap, target uuid.UUID) map[uuid.UUID]bool {
	reverse := make(AdjacencyMap)
	for from, rels := range adj {
		for _, r := range rels {
			reverse[r.ToEpisodeID] = append(reverse[r.ToEpisodeID], types.EpisodeRelationship{
				FromEpisodeID: r.ToEpisodeID,
				ToEpisodeID:   from,
			})
		}
	}
	return TransitiveClosure(reverse, target)
}

// FindAllCyclesFrom enumerates simple cycles that return to node, pruning
// already-visited non-start nodes. A cycle is recorded only when the
// traversal returns to node with a path length greater than one.
func FindAllCyclesFrom(adj AdjacencyMap, node uuid.UUID) [][]uuid.UUID {
	var cycles [][]uuid.UUID
	path := []uuid.UUID{node}
	visited := map[uuid.UUID]bool{}

	var visit func(current uuid.UUID)
	visit = func(current uuid.UUID) {
		for _, next := range neighbors(adj, current) {
			if next == node && len(path) > 1 {
				cycle := append([]uuid.UUID(nil), path...)
				cycle = append(cycle, node)
				cycles = append(cycles, cycle)
				continue
			}
			if visited[next] || containsUUID(path, next) {
				continue
			}
			visited[next] = true
			path = append(path, next)
			visit(next)
			path = path[:len(path)-1]
		}
	}
	visit(node)
	return cycles
}

func containsUUID(list []uuid.UUID, id uuid.UUID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
