package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(nodes []Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestCollectUpstream(t *testing.T) {
	t.Run("direct inputs", func(t *testing.T) {
		w := build(t,
			[]Node{inputNode("intent", InputIntent), inputNode("product", InputProduct), agentNode("Agent1")},
			[][2]string{{"intent", "Agent1"}, {"product", "Agent1"}},
		)
		up, err := CollectUpstream(w, "Agent1")
		require.NoError(t, err)
		assert.Equal(t, []string{"intent", "product"}, nodeIDs(up.Nodes))
		assert.Len(t, up.Edges, 2)
	})

	t.Run("transitive and deduplicated", func(t *testing.T) {
		// k -> p -> a1 -> a2, k -> a2, unrelated u -> a3
		w := build(t,
			[]Node{
				inputNode("k", InputKnowledge), inputNode("p", InputProduct),
				agentNode("a1"), agentNode("a2"), inputNode("u", InputPersona), agentNode("a3"),
			},
			[][2]string{{"k", "p"}, {"p", "a1"}, {"a1", "a2"}, {"k", "a2"}, {"u", "a3"}},
		)
		up, err := CollectUpstream(w, "a2")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "p", "k"}, nodeIDs(up.Nodes))

		var pairs [][2]string
		for _, e := range up.Edges {
			pairs = append(pairs, [2]string{e.FromNodeID, e.ToNodeID})
		}
		assert.Equal(t, [][2]string{{"k", "p"}, {"p", "a1"}, {"a1", "a2"}, {"k", "a2"}}, pairs)
	})

	t.Run("no upstream", func(t *testing.T) {
		w := build(t, []Node{agentNode("lonely")}, nil)
		up, err := CollectUpstream(w, "lonely")
		require.NoError(t, err)
		assert.Empty(t, up.Nodes)
		assert.Empty(t, up.Edges)
	})

	t.Run("missing target", func(t *testing.T) {
		w := build(t, nil, nil)
		_, err := CollectUpstream(w, "nope")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("terminates on corrupted cyclic data", func(t *testing.T) {
		w := build(t, []Node{agentNode("a"), agentNode("b"), agentNode("c")}, [][2]string{{"a", "b"}, {"b", "c"}})
		// Bypass the gate to simulate a corrupted stored graph.
		w.Edges = append(w.Edges, Edge{ID: "bad", FromNodeID: "c", ToNodeID: "a"})
		up, err := CollectUpstream(w, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, nodeIDs(up.Nodes))
	})
}
