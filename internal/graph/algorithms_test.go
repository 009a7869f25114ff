package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/types"
)

func rel(from, to uuid.UUID) types.EpisodeRelationship {
	return types.EpisodeRelationship{ID: uuid.New(), FromEpisodeID: from, ToEpisodeID: to, Type: types.RelDependsOn}
}

func TestHasPathSameNode(t *testing.T) {
	a := uuid.New()
	assert.True(t, HasPath(AdjacencyMap{}, a, a))
}

func TestHasPathBranching(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b), rel(a, c)}, b: {rel(b, d)}}
	assert.True(t, HasPath(adj, a, d))
	assert.False(t, HasPath(adj, c, d))
}

func TestFindPathSameNode(t *testing.T) {
	a := uuid.New()
	path, err := FindPath(AdjacencyMap{}, a, a)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, path)
}

func TestFindPathNotFound(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	_, err := FindPath(AdjacencyMap{}, a, b)
	assert.Error(t, err)
}

func TestHasCycleSelfLoop(t *testing.T) {
	a := uuid.New()
	adj := AdjacencyMap{a: {rel(a, a)}}
	assert.True(t, HasCycle(adj))
}

func TestHasCycleNone(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, c)}}
	assert.False(t, HasCycle(adj))
}

func TestHasCycleBackEdge(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, c)}, c: {rel(c, a)}}
	assert.True(t, HasCycle(adj))
}

func TestTopologicalSortOrdering(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, c)}}
	order, err := TopologicalSort(adj)
	require.NoError(t, err)

	index := make(map[uuid.UUID]int)
	for i, id := range order {
		index[id] = i
	}
	for from, rels := range adj {
		for _, r := range rels {
			assert.Less(t, index[from], index[r.ToEpisodeID])
		}
	}
}

func TestTopologicalSortCyclicErrors(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, a)}}
	_, err := TopologicalSort(adj)
	assert.Error(t, err)
}

func TestTransitiveClosureExcludesStart(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, c)}}
	closure := TransitiveClosure(adj, a)
	assert.False(t, closure[a])
	assert.True(t, closure[b])
	assert.True(t, closure[c])

	for v := range closure {
		assert.True(t, HasPath(adj, a, v))
	}
}

func TestAncestorsExcludesTarget(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, c)}}
	ancestors := Ancestors(adj, c)
	assert.False(t, ancestors[c])
	assert.True(t, ancestors[a])
	assert.True(t, ancestors[b])
}

func TestFindAllCyclesFromNode(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	adj := AdjacencyMap{a: {rel(a, b)}, b: {rel(b, c)}, c: {rel(c, a)}}
	cycles := FindAllCyclesFrom(adj, a)
	require.Len(t, cycles, 1)
	assert.Equal(t, a, cycles[0][0])
	assert.Equal(t, a, cycles[0][len(cycles[0])-1])
}
