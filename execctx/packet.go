package execctx

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/workflow"
)

// PacketKind classifies a context packet.
type PacketKind string

const (
	KindIntent         PacketKind = "intent"
	KindProduct        PacketKind = "product"
	KindPersona        PacketKind = "persona"
	KindKBItem         PacketKind = "kb_item"
	KindWorkflowRunRef PacketKind = "workflow_run_ref"
	KindAgentOutput    PacketKind = "agent_output"
)

// priority fixes the order the agent sees packets in, regardless of wiring.
var priority = map[PacketKind]int{
	KindIntent:         1,
	KindProduct:        2,
	KindPersona:        3,
	KindKBItem:         4,
	KindWorkflowRunRef: 5,
	KindAgentOutput:    6,
}

// Kinds lists every packet kind in priority order.
var Kinds = []PacketKind{KindIntent, KindProduct, KindPersona, KindKBItem, KindWorkflowRunRef, KindAgentOutput}

// Priority returns the rank of k; unknown kinds sort last.
func Priority(k PacketKind) int {
	if p, ok := priority[k]; ok {
		return p
	}
	return len(priority) + 1
}

// Packet is one unit of upstream data prepared for an agent call.
type Packet struct {
	ID           string            `json:"id"`
	NodeID       string            `json:"nodeId"`
	NodeType     workflow.NodeType `json:"nodeType"`
	Kind         PacketKind        `json:"kind"`
	Title        string            `json:"title"`
	Content      json.RawMessage   `json:"content"`
	EvidenceRefs []string          `json:"evidenceRefs,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

var packetNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/meikuraledutech/workflow/execctx/packet"))

// packetID is stable for the same agent, source node, kind and ordinal.
func packetID(agentNodeID, nodeID string, kind PacketKind, ordinal int) string {
	name := fmt.Sprintf("%s/%s/%s/%d", agentNodeID, nodeID, kind, ordinal)
	return uuid.NewSHA1(packetNamespace, []byte(name)).String()
}

// SortByPriority orders packets by kind priority, keeping the incoming order
// within a kind.
func SortByPriority(packets []Packet) {
	sort.SliceStable(packets, func(i, j int) bool {
		return Priority(packets[i].Kind) < Priority(packets[j].Kind)
	})
}
