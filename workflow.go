package workflow

import (
	"encoding/json"
	"time"
)

// NodeType discriminates the two node variants.
type NodeType string

const (
	NodeTypeInput NodeType = "input"
	NodeTypeAgent NodeType = "agent"
)

// InputKind is the kind of data an input node supplies.
type InputKind string

const (
	InputProduct   InputKind = "product"
	InputPersona   InputKind = "persona"
	InputKnowledge InputKind = "knowledge"
	InputIntent    InputKind = "intent"
)

// AgentStatus is the last-run status carried on an agent node.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentRunning AgentStatus = "running"
	AgentSuccess AgentStatus = "success"
	AgentError   AgentStatus = "error"
)

// Workflow is a graph of input and agent nodes.
// It is treated as an immutable value: mutation methods return a new Workflow.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Position is canvas layout only. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex in the workflow. Type selects which of Input or Agent is set.
type Node struct {
	ID       string     `json:"id"`
	Type     NodeType   `json:"type"`
	Label    string     `json:"label,omitempty"`
	Position Position   `json:"position"`
	Input    *InputData `json:"input,omitempty"`
	Agent    *AgentData `json:"agent,omitempty"`
}

// InputData is the payload of an input node.
// Reference kinds point at an external record; intent carries its payload inline.
type InputData struct {
	Kind    InputKind      `json:"kind"`
	RefID   string         `json:"refId,omitempty"`
	RefIDs  []string       `json:"refIds,omitempty"`
	RefKind string         `json:"refKind,omitempty"`
	Intent  *IntentPayload `json:"intent,omitempty"`
}

// IntentPayload frames the goal of an agent run. Goal and SuccessCriteria are required.
type IntentPayload struct {
	Goal            string `json:"goal"`
	SuccessCriteria string `json:"successCriteria"`
	Background      string `json:"background,omitempty"`
	Constraints     string `json:"constraints,omitempty"`
	Tone            string `json:"tone,omitempty"`
}

// AgentData is the payload of an agent node.
type AgentData struct {
	AgentDefinitionID string           `json:"agentDefinitionId"`
	Status            AgentStatus      `json:"status,omitempty"`
	LastRunID         string           `json:"lastRunId,omitempty"`
	LastError         string           `json:"lastError,omitempty"`
	ExecutionResult   *ExecutionResult `json:"executionResult,omitempty"`
}

// ExecutionResult is the legacy inline result kept on agent nodes.
type ExecutionResult struct {
	Output     json.RawMessage `json:"output,omitempty"`
	ExecutedAt time.Time       `json:"executedAt"`
	Error      string          `json:"error,omitempty"`
}

// Edge is a directed "feeds into" connection.
type Edge struct {
	ID         string `json:"id"`
	FromNodeID string `json:"fromNodeId"`
	ToNodeID   string `json:"toNodeId"`
}

// References returns every external record id an input node points at, in order.
func (d *InputData) References() []string {
	if d == nil {
		return nil
	}
	refs := make([]string, 0, len(d.RefIDs)+1)
	seen := make(map[string]bool)
	if d.RefID != "" {
		refs = append(refs, d.RefID)
		seen[d.RefID] = true
	}
	for _, id := range d.RefIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, id)
	}
	return refs
}

// Node returns the node with the given id.
func (w Workflow) Node(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// AgentNodeIDs returns the ids of all agent nodes in graph order.
func (w Workflow) AgentNodeIDs() []string {
	var ids []string
	for _, n := range w.Nodes {
		if n.Type == NodeTypeAgent {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// HasAgentNode reports whether id names an agent node of w.
func (w Workflow) HasAgentNode(id string) bool {
	if id == "" {
		return false
	}
	n, ok := w.Node(id)
	return ok && n.Type == NodeTypeAgent
}

// Incoming returns the edges ending at id, in graph order.
func (w Workflow) Incoming(id string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.ToNodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges starting at id, in graph order.
func (w Workflow) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.FromNodeID == id {
			out = append(out, e)
		}
	}
	return out
}
