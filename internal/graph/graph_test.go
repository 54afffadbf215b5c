package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jacEdge(to string, line int) Edge { return Edge{To: to, IsJac: true, Line: line} }

func TestSetOutgoingEdges_Replaces(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetOutgoingEdges("a", []Edge{jacEdge("b", 0), jacEdge("c", 1)})
	g.SetOutgoingEdges("a", []Edge{jacEdge("c", 0)})

	assert.Equal(t, []string{"c"}, g.Dependencies("a"))
	assert.Empty(t, g.Dependents("b"))
	assert.Equal(t, []string{"a"}, g.Dependents("c"))

	out := g.Outgoing("a")
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].From)
}

func TestDependencies_DistinctJacOnly(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetOutgoingEdges("a", []Edge{
		jacEdge("c", 0),
		{To: "m.py", Line: 1},
		jacEdge("b", 2),
		jacEdge("c", 3),
		jacEdge("a", 4),
	})
	assert.Equal(t, []string{"c", "b"}, g.Dependencies("a"))
	assert.Len(t, g.Outgoing("a"), 5, "duplicates are kept on the edge list")
	assert.Equal(t, []string{"a"}, g.Dependents("m.py"))
}

func TestTransitiveDependents(t *testing.T) {
	t.Parallel()
	g := New()
	// d -> c -> b -> a, e -> a (python only)
	g.SetOutgoingEdges("b", []Edge{jacEdge("a", 0)})
	g.SetOutgoingEdges("c", []Edge{jacEdge("b", 0)})
	g.SetOutgoingEdges("d", []Edge{jacEdge("c", 0), jacEdge("b", 1)})
	g.SetOutgoingEdges("e", []Edge{{To: "a"}})

	assert.Equal(t, []string{"b", "c", "d"}, g.TransitiveDependents("a"))
	assert.Equal(t, []string{"b", "e"}, g.Dependents("a"))
	assert.Empty(t, g.TransitiveDependents("d"))
}

func TestTransitiveDependents_Cycle(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetOutgoingEdges("a", []Edge{jacEdge("b", 0)})
	g.SetOutgoingEdges("b", []Edge{jacEdge("a", 0)})

	assert.Equal(t, []string{"b"}, g.TransitiveDependents("a"))
	assert.Equal(t, []string{"a"}, g.TransitiveDependents("b"))
}

func TestRemoveFile_KeepsIncoming(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetOutgoingEdges("a", []Edge{jacEdge("b", 0)})
	g.SetOutgoingEdges("b", []Edge{jacEdge("c", 0)})
	g.RemoveFile("b")

	assert.Empty(t, g.Outgoing("b"))
	assert.Empty(t, g.Dependents("c"))
	assert.Equal(t, []string{"a"}, g.Dependents("b"))
	assert.Equal(t, []string{"a"}, g.Files())
}

func TestOrder_DependencyFirst(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetOutgoingEdges("main", []Edge{jacEdge("lib", 0), jacEdge("util", 1)})
	g.SetOutgoingEdges("util", []Edge{jacEdge("lib", 0), jacEdge("outside", 1)})

	order, cyclic := g.Order([]string{"main", "util", "lib", "solo"})
	assert.Equal(t, []string{"lib", "solo", "util", "main"}, order)
	assert.Empty(t, cyclic)
}

func TestOrder_CycleAppended(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetOutgoingEdges("a", []Edge{jacEdge("b", 0)})
	g.SetOutgoingEdges("b", []Edge{jacEdge("a", 0)})
	g.SetOutgoingEdges("c", []Edge{jacEdge("a", 0)})

	order, cyclic := g.Order([]string{"c", "b", "a", "z"})
	assert.Equal(t, []string{"z", "a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, cyclic)
}
