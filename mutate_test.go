package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	w := New("", "campaign")
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "campaign", w.Name)
	assert.NotNil(t, w.Nodes)
	assert.NotNil(t, w.Edges)
	assert.False(t, w.CreatedAt.IsZero())
}

func TestAddNode(t *testing.T) {
	w := New("wf", "x")

	next, n, err := w.AddNode(Node{Type: NodeTypeAgent, Agent: &AgentData{AgentDefinitionID: "lp"}})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Len(t, next.Nodes, 1)
	assert.Empty(t, w.Nodes, "original must be untouched")

	_, _, err = next.AddNode(Node{ID: n.ID, Type: NodeTypeAgent, Agent: &AgentData{}})
	assert.ErrorIs(t, err, ErrDuplicateNode)

	invalid := []Node{
		{ID: "x1", Type: NodeTypeInput},
		{ID: "x2", Type: NodeTypeAgent},
		{ID: "x3", Type: NodeTypeInput, Input: &InputData{Kind: "mood"}},
		{ID: "x4", Type: "note"},
		{ID: "x5", Type: NodeTypeAgent, Agent: &AgentData{}, Input: &InputData{Kind: InputProduct}},
	}
	for _, bad := range invalid {
		_, _, err := w.AddNode(bad)
		assert.ErrorIs(t, err, ErrInvalidNode, bad.ID)
	}
}

func TestUpdateNode(t *testing.T) {
	w := build(t, []Node{agentNode("a")}, nil)

	changed := agentNode("a")
	changed.Agent.Status = AgentSuccess
	changed.Agent.LastRunID = "run-1"
	next, err := w.UpdateNode(changed)
	require.NoError(t, err)
	n, _ := next.Node("a")
	assert.Equal(t, "run-1", n.Agent.LastRunID)
	old, _ := w.Node("a")
	assert.Empty(t, old.Agent.LastRunID)

	_, err = w.UpdateNode(inputNode("a", InputProduct))
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = w.UpdateNode(agentNode("missing"))
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRemoveNodeCascades(t *testing.T) {
	w := build(t,
		[]Node{inputNode("i", InputIntent), inputNode("p", InputProduct), agentNode("a"), agentNode("b")},
		[][2]string{{"i", "a"}, {"p", "a"}, {"a", "b"}, {"p", "b"}},
	)

	next := w.RemoveNode("a")
	assert.Len(t, next.Nodes, 3)
	for _, e := range next.Edges {
		assert.NotEqual(t, "a", e.FromNodeID)
		assert.NotEqual(t, "a", e.ToNodeID)
	}
	assert.Len(t, next.Edges, 1)
	assert.Len(t, w.Edges, 4, "original must be untouched")

	assert.Equal(t, next, next.RemoveNode("missing"))
}

func TestAddConnection(t *testing.T) {
	w := build(t, []Node{inputNode("p", InputProduct), agentNode("Agent1")}, nil)

	t.Run("legal", func(t *testing.T) {
		next, e, err := w.AddConnection("p", "Agent1")
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, []Edge{e}, next.Edges)
		assert.Empty(t, w.Edges)
	})

	t.Run("agent to input rejected", func(t *testing.T) {
		next, _, err := w.AddConnection("Agent1", "p")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConnectionNotAllowed))
		var cerr *ConnectionError
		require.ErrorAs(t, err, &cerr)
		assert.Contains(t, cerr.Reason, "禁止")
		assert.Equal(t, w, next)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		next, _, err := w.AddConnection("p", "Agent1")
		require.NoError(t, err)
		_, _, err = next.AddConnection("p", "Agent1")
		assert.ErrorIs(t, err, ErrDuplicateEdge)
	})

	t.Run("missing node", func(t *testing.T) {
		_, _, err := w.AddConnection("p", "ghost")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestRemoveEdge(t *testing.T) {
	w := build(t, []Node{inputNode("p", InputProduct), agentNode("a")}, [][2]string{{"p", "a"}})
	next, err := w.RemoveEdge(w.Edges[0].ID)
	require.NoError(t, err)
	assert.Empty(t, next.Edges)
	assert.Len(t, w.Edges, 1)

	_, err = w.RemoveEdge("nope")
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestValidate(t *testing.T) {
	w := build(t,
		[]Node{inputNode("p", InputProduct), agentNode("a"), agentNode("b")},
		[][2]string{{"p", "a"}, {"a", "b"}},
	)
	require.NoError(t, w.Validate())

	cyclic := w.Clone()
	cyclic.Edges = append(cyclic.Edges, Edge{ID: "back", FromNodeID: "b", ToNodeID: "a"})
	assert.ErrorIs(t, cyclic.Validate(), ErrCycleDetected)

	layered := w.Clone()
	layered.Edges = append(layered.Edges, Edge{ID: "up", FromNodeID: "b", ToNodeID: "p"})
	assert.ErrorIs(t, layered.Validate(), ErrConnectionNotAllowed)

	dangling := w.Clone()
	dangling.Edges = append(dangling.Edges, Edge{ID: "d", FromNodeID: "ghost", ToNodeID: "a"})
	assert.ErrorIs(t, dangling.Validate(), ErrNodeNotFound)
}

func TestRebuildEdgeIDs(t *testing.T) {
	w := New("wf", "test")
	w.Nodes = []Node{inputNode("i1", InputIntent), inputNode("i2", InputIntent), agentNode("a")}
	w.Edges = []Edge{{FromNodeID: "i1", ToNodeID: "a"}, {FromNodeID: "i2", ToNodeID: "a"}}

	rebuilt, err := w.Rebuild()
	require.NoError(t, err)
	require.Len(t, rebuilt.Edges, 2)
	assert.NotEmpty(t, rebuilt.Edges[0].ID)
	assert.NotEmpty(t, rebuilt.Edges[1].ID)
	assert.NotEqual(t, rebuilt.Edges[0].ID, rebuilt.Edges[1].ID)
	assert.Equal(t, w.Name, rebuilt.Name)
	assert.Empty(t, w.Edges[0].ID)

	next, err := rebuilt.RemoveEdge(rebuilt.Edges[0].ID)
	require.NoError(t, err)
	assert.Len(t, next.Edges, 1)

	w.Edges[0].ID, w.Edges[1].ID = "e", "e"
	_, err = w.Rebuild()
	assert.ErrorIs(t, err, ErrDuplicateEdge)
	assert.ErrorIs(t, w.Validate(), ErrDuplicateEdge)
}
