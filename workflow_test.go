package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inputNode(id string, kind InputKind) Node {
	n := Node{ID: id, Type: NodeTypeInput, Label: id, Input: &InputData{Kind: kind}}
	if kind == InputIntent {
		n.Input.Intent = &IntentPayload{Goal: "increase signups", SuccessCriteria: "+10% CVR"}
	} else {
		n.Input.RefID = "ref-" + id
		n.Input.RefKind = string(kind)
	}
	return n
}

func agentNode(id string) Node {
	return Node{ID: id, Type: NodeTypeAgent, Label: id, Agent: &AgentData{AgentDefinitionID: "def-" + id, Status: AgentIdle}}
}

func build(t *testing.T, nodes []Node, edges [][2]string) Workflow {
	t.Helper()
	w := New("wf", "test")
	var err error
	for _, n := range nodes {
		w, _, err = w.AddNode(n)
		require.NoError(t, err)
	}
	for _, e := range edges {
		w, _, err = w.AddConnection(e[0], e[1])
		require.NoError(t, err)
	}
	return w
}

func TestReferences(t *testing.T) {
	d := &InputData{Kind: InputKnowledge, RefID: "k1", RefIDs: []string{"k2", "k1", "", "k3", "k2"}}
	assert.Equal(t, []string{"k1", "k2", "k3"}, d.References())

	var nilData *InputData
	assert.Nil(t, nilData.References())
}

func TestStructuralQueries(t *testing.T) {
	w := build(t,
		[]Node{inputNode("intent", InputIntent), agentNode("a1"), agentNode("a2")},
		[][2]string{{"intent", "a1"}, {"a1", "a2"}},
	)

	assert.Equal(t, []string{"a1", "a2"}, w.AgentNodeIDs())
	assert.True(t, w.HasAgentNode("a1"))
	assert.False(t, w.HasAgentNode("intent"))
	assert.False(t, w.HasAgentNode(""))
	assert.False(t, w.HasAgentNode("missing"))

	require.Len(t, w.Incoming("a1"), 1)
	assert.Equal(t, "intent", w.Incoming("a1")[0].FromNodeID)
	require.Len(t, w.Outgoing("a1"), 1)
	assert.Equal(t, "a2", w.Outgoing("a1")[0].ToNodeID)
	assert.Empty(t, w.Incoming("intent"))
}
