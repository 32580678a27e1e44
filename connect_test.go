package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanConnect(t *testing.T) {
	w := build(t, []Node{
		inputNode("p", InputProduct),
		inputNode("k", InputKnowledge),
		agentNode("a1"),
		agentNode("a2"),
	}, nil)
	// Legacy data may carry node types the engine does not know.
	w.Nodes = append(w.Nodes, Node{ID: "odd", Type: "note"})

	tests := []struct {
		name     string
		from, to string
		allowed  bool
		contains string
	}{
		{"input to agent", "p", "a1", true, ""},
		{"input to input", "k", "p", true, ""},
		{"agent to agent", "a1", "a2", true, ""},
		{"agent to input", "a1", "p", false, "禁止"},
		{"self loop", "a1", "a1", false, "itself"},
		{"unknown type pair", "odd", "a1", false, "not allowed"},
		{"missing source", "nope", "a1", false, "not found"},
		{"missing target", "p", "nope", false, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := w.Clone()
			v := CanConnect(w, tt.from, tt.to)
			assert.Equal(t, tt.allowed, v.Allowed)
			if tt.allowed {
				assert.Empty(t, v.Reason)
			} else {
				assert.Contains(t, v.Reason, tt.contains)
			}
			assert.Equal(t, before, w)
		})
	}
}
