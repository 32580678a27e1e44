package workflow

import "fmt"

// Verdict is the outcome of a connection legality check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

const (
	ReasonSelfLoop   = "接続禁止: a node cannot be connected to itself (not allowed)"
	ReasonAgentInput = "接続禁止: agent → input connections are not allowed; inputs must stay upstream of agents"
	ReasonCycle      = "would create a cycle; the graph must remain a DAG"
	ReasonDuplicate  = "these nodes are already connected"
)

// CanConnect decides whether an edge from fromID to toID is legal for the two
// node types involved. It looks only at the two referenced nodes and never
// mutates w.
func CanConnect(w Workflow, fromID, toID string) Verdict {
	if fromID == toID {
		return Verdict{Reason: ReasonSelfLoop}
	}
	from, ok := w.Node(fromID)
	if !ok {
		return Verdict{Reason: fmt.Sprintf("source node %q not found", fromID)}
	}
	to, ok := w.Node(toID)
	if !ok {
		return Verdict{Reason: fmt.Sprintf("target node %q not found", toID)}
	}
	return connectTypes(from.Type, to.Type)
}

func connectTypes(from, to NodeType) Verdict {
	switch {
	case from == NodeTypeAgent && to == NodeTypeInput:
		return Verdict{Reason: ReasonAgentInput}
	case from == NodeTypeInput && to == NodeTypeInput,
		from == NodeTypeInput && to == NodeTypeAgent,
		from == NodeTypeAgent && to == NodeTypeAgent:
		return Verdict{Allowed: true}
	}
	return Verdict{Reason: fmt.Sprintf("接続禁止: %s → %s connections are not allowed", displayType(from), displayType(to))}
}

func displayType(t NodeType) string {
	if t == "" {
		return "untyped"
	}
	return string(t)
}
