package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variable(id string) Node {
	return Node{ID: NodeID(NodeVariable, id), Type: NodeVariable, EntityID: id, Label: id}
}

func condition(id string) Node {
	return Node{ID: NodeID(NodeCondition, id), Type: NodeCondition, EntityID: id, Label: id}
}

func plain(id string) Node {
	return Node{ID: id, Type: NodeEntity, EntityID: id, Label: id}
}

func link(t *testing.T, g *Graph, from, to string) {
	t.Helper()
	require.NoError(t, g.AddEdge(Edge{FromID: from, ToID: to, Type: EdgeDependsOn}))
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "VARIABLE:v1", NodeID(NodeVariable, "v1"))
	assert.Equal(t, "EFFECT:abc", NodeID(NodeEffect, "abc"))
}

func TestAddNode(t *testing.T) {
	g := New()
	g.AddNode(variable("v1"))

	n, ok := g.GetNode("VARIABLE:v1")
	require.True(t, ok)
	assert.Equal(t, "v1", n.Label)
	assert.Equal(t, 1, g.GetNodeCount())
	assert.Empty(t, g.GetOutgoingEdges("VARIABLE:v1"))
	assert.Empty(t, g.GetIncomingEdges("VARIABLE:v1"))
}

func TestAddNode_UpsertKeepsEdges(t *testing.T) {
	g := New()
	g.AddNode(condition("c1"))
	g.AddNode(variable("v1"))
	link(t, g, "CONDITION:c1", "VARIABLE:v1")

	updated := variable("v1")
	updated.Label = "campaign:gold"
	updated.Metadata = map[string]any{"key": "gold"}
	g.AddNode(updated)

	n, ok := g.GetNode("VARIABLE:v1")
	require.True(t, ok)
	assert.Equal(t, "campaign:gold", n.Label)
	assert.Equal(t, "gold", n.Metadata["key"])
	assert.Equal(t, 2, g.GetNodeCount())
	assert.Len(t, g.GetIncomingEdges("VARIABLE:v1"), 1)
	assert.Equal(t, 1, g.GetEdgeCount())
}

func TestRemoveNode_CascadesBothDirections(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(plain(id))
	}
	link(t, g, "a", "b")
	link(t, g, "b", "c")
	link(t, g, "d", "b")
	link(t, g, "b", "b")

	g.RemoveNode("b")

	assert.False(t, g.HasNode("b"))
	assert.Equal(t, 0, g.GetEdgeCount())
	for _, id := range []string{"a", "c", "d"} {
		assert.Empty(t, g.GetOutgoingEdges(id), id)
		assert.Empty(t, g.GetIncomingEdges(id), id)
	}
	for _, e := range g.GetAllEdges() {
		assert.NotEqual(t, "b", e.FromID)
		assert.NotEqual(t, "b", e.ToID)
	}
}

func TestRemoveNode_Unknown(t *testing.T) {
	g := New()
	g.AddNode(plain("a"))

	g.RemoveNode("missing")

	assert.Equal(t, 1, g.GetNodeCount())
}

func TestAddEdge(t *testing.T) {
	t.Run("indexes both directions", func(t *testing.T) {
		g := New()
		g.AddNode(condition("c1"))
		g.AddNode(variable("v1"))

		err := g.AddEdge(Edge{FromID: "CONDITION:c1", ToID: "VARIABLE:v1", Type: EdgeReads})
		require.NoError(t, err)

		out := g.GetOutgoingEdges("CONDITION:c1")
		require.Len(t, out, 1)
		assert.Equal(t, EdgeReads, out[0].Type)
		in := g.GetIncomingEdges("VARIABLE:v1")
		require.Len(t, in, 1)
		assert.Equal(t, "CONDITION:c1", in[0].FromID)
	})

	t.Run("missing endpoint leaves graph untouched", func(t *testing.T) {
		g := New()
		g.AddNode(plain("a"))

		err := g.AddEdge(Edge{FromID: "dne", ToID: "a", Type: EdgeReads})
		assert.ErrorIs(t, err, ErrMissingEndpoint)
		assert.ErrorContains(t, err, "source node dne")

		err = g.AddEdge(Edge{FromID: "a", ToID: "dne", Type: EdgeReads})
		assert.ErrorIs(t, err, ErrMissingEndpoint)
		assert.ErrorContains(t, err, "target node dne")

		assert.Equal(t, 0, g.GetEdgeCount())
		assert.Equal(t, 1, g.GetNodeCount())
		assert.Empty(t, g.GetOutgoingEdges("a"))
		assert.Empty(t, g.GetIncomingEdges("a"))
	})

	t.Run("same endpoints and type replace", func(t *testing.T) {
		g := New()
		g.AddNode(plain("a"))
		g.AddNode(plain("b"))
		require.NoError(t, g.AddEdge(Edge{FromID: "a", ToID: "b", Type: EdgeReads, Metadata: map[string]any{"key": "x"}}))
		require.NoError(t, g.AddEdge(Edge{FromID: "a", ToID: "b", Type: EdgeReads, Metadata: map[string]any{"key": "y"}}))

		out := g.GetOutgoingEdges("a")
		require.Len(t, out, 1)
		assert.Equal(t, "y", out[0].Metadata["key"])
		assert.Len(t, g.GetIncomingEdges("b"), 1)
	})
}

func TestRemoveEdge(t *testing.T) {
	g := New()
	g.AddNode(plain("a"))
	g.AddNode(plain("b"))
	link(t, g, "a", "b")

	g.RemoveEdge("b", "a")
	assert.Equal(t, 1, g.GetEdgeCount())

	g.RemoveEdge("a", "b")
	assert.Equal(t, 0, g.GetEdgeCount())
	assert.Empty(t, g.GetIncomingEdges("b"))

	g.RemoveEdge("x", "y")
}

func TestRemoveOutgoingEdges(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(plain(id))
	}
	link(t, g, "a", "b")
	link(t, g, "a", "c")
	link(t, g, "c", "a")

	assert.Equal(t, 2, g.RemoveOutgoingEdges("a"))
	assert.Empty(t, g.GetOutgoingEdges("a"))
	assert.Empty(t, g.GetIncomingEdges("b"))
	assert.Empty(t, g.GetIncomingEdges("c"))
	assert.Len(t, g.GetIncomingEdges("a"), 1)
	assert.Equal(t, 0, g.RemoveOutgoingEdges("missing"))
}

func TestGetEdges_UnknownNode(t *testing.T) {
	g := New()
	assert.Empty(t, g.GetOutgoingEdges("nope"))
	assert.Empty(t, g.GetIncomingEdges("nope"))
}

func TestGetAllNodes_InsertionOrder(t *testing.T) {
	g := New()
	for _, id := range []string{"c", "a", "b"} {
		g.AddNode(plain(id))
	}
	g.AddNode(plain("a"))

	var ids []string
	for _, n := range g.GetAllNodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestClear(t *testing.T) {
	g := New()
	g.AddNode(plain("a"))
	g.AddNode(plain("b"))
	link(t, g, "a", "b")

	g.Clear()

	assert.Equal(t, 0, g.GetNodeCount())
	assert.Equal(t, 0, g.GetEdgeCount())
	assert.Empty(t, g.GetAllNodes())
	assert.Empty(t, g.GetAllEdges())
}

func TestHasPath(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(plain(id))
	}
	link(t, g, "a", "b")
	link(t, g, "b", "c")

	assert.True(t, g.HasPath("a", "c"))
	assert.True(t, g.HasPath("a", "a"))
	assert.False(t, g.HasPath("c", "a"))
	assert.False(t, g.HasPath("a", "d"))
	assert.False(t, g.HasPath("a", "missing"))
	assert.False(t, g.HasPath("missing", "missing"))
}

func TestWouldCreateCycle(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(plain(id))
	}
	link(t, g, "a", "b")
	link(t, g, "b", "c")

	assert.True(t, g.WouldCreateCycle("c", "a"))
	assert.True(t, g.WouldCreateCycle("a", "a"))
	assert.False(t, g.WouldCreateCycle("a", "c"))
	assert.False(t, g.WouldCreateCycle("c", "missing"))
}
