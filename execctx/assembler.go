package execctx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/meikuraledutech/workflow"
)

// Omission reasons.
const (
	OmitNotFound      = "record_not_found"
	OmitResolveFailed = "resolve_failed"
	OmitNoReference   = "no_reference"
	OmitNoOutput      = "no_agent_output"
	OmitUnknownKind   = "unknown_kind"
	OmitEmptyPayload  = "empty_payload"
)

// Omission records an upstream node (or one of its references) that produced
// no packet.
type Omission struct {
	NodeID string `json:"nodeId"`
	RefID  string `json:"refId,omitempty"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Recorder receives assembly events. A nil Recorder is allowed.
type Recorder interface {
	PacketOmitted(reason string)
	ContextBuilt(packets, omitted int)
}

// Assembler converts upstream nodes into context packets.
type Assembler struct {
	resolver Resolver
	logger   *slog.Logger
	recorder Recorder
}

// NewAssembler returns an Assembler. A nil logger falls back to slog.Default().
func NewAssembler(resolver Resolver, logger *slog.Logger, recorder Recorder) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{resolver: resolver, logger: logger, recorder: recorder}
}

// Assemble produces packets for nodes, which must already be in topological
// order, then reorders them by kind priority. A node that cannot be turned
// into a packet is skipped and reported as an Omission. Only cancellation of
// ctx aborts the assembly.
func (a *Assembler) Assemble(ctx context.Context, agentNodeID string, nodes []workflow.Node, at time.Time) ([]Packet, []Omission, error) {
	packets := []Packet{}
	omitted := []Omission{}

	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		ps, oms := a.packetize(ctx, agentNodeID, n, at)
		packets = append(packets, ps...)
		for _, om := range oms {
			a.omit(om)
		}
		omitted = append(omitted, oms...)
	}

	// A cancellation during the last resolution discards its result.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	SortByPriority(packets)
	return packets, omitted, nil
}

func (a *Assembler) omit(om Omission) {
	a.logger.Warn("context packet omitted",
		"node_id", om.NodeID,
		"ref_id", om.RefID,
		"reason", om.Reason,
		"detail", om.Detail,
	)
	if a.recorder != nil {
		a.recorder.PacketOmitted(om.Reason)
	}
}

func (a *Assembler) packetize(ctx context.Context, agentNodeID string, n workflow.Node, at time.Time) ([]Packet, []Omission) {
	switch n.Type {
	case workflow.NodeTypeInput:
		if n.Input == nil {
			return nil, []Omission{{NodeID: n.ID, Reason: OmitUnknownKind, Detail: "input node without data"}}
		}
		switch n.Input.Kind {
		case workflow.InputIntent:
			return a.intentPacket(agentNodeID, n, at)
		case workflow.InputProduct:
			return a.referencePackets(ctx, agentNodeID, n, RecordProduct, KindProduct, at)
		case workflow.InputPersona:
			return a.referencePackets(ctx, agentNodeID, n, RecordPersona, KindPersona, at)
		case workflow.InputKnowledge:
			if n.Input.RefKind == string(RecordWorkflowRun) {
				return a.referencePackets(ctx, agentNodeID, n, RecordWorkflowRun, KindWorkflowRunRef, at)
			}
			return a.referencePackets(ctx, agentNodeID, n, RecordKnowledge, KindKBItem, at)
		}
		return nil, []Omission{{NodeID: n.ID, Reason: OmitUnknownKind, Detail: string(n.Input.Kind)}}
	case workflow.NodeTypeAgent:
		return a.agentOutputPacket(ctx, agentNodeID, n, at)
	}
	return nil, []Omission{{NodeID: n.ID, Reason: OmitUnknownKind, Detail: string(n.Type)}}
}

func (a *Assembler) intentPacket(agentNodeID string, n workflow.Node, at time.Time) ([]Packet, []Omission) {
	if n.Input.Intent == nil {
		return nil, []Omission{{NodeID: n.ID, Reason: OmitEmptyPayload, Detail: "intent without payload"}}
	}
	content, err := json.Marshal(n.Input.Intent)
	if err != nil {
		return nil, []Omission{{NodeID: n.ID, Reason: OmitEmptyPayload, Detail: err.Error()}}
	}
	return []Packet{{
		ID:        packetID(agentNodeID, n.ID, KindIntent, 0),
		NodeID:    n.ID,
		NodeType:  n.Type,
		Kind:      KindIntent,
		Title:     titleOr(n.Label, "Intent"),
		Content:   content,
		CreatedAt: at,
	}}, nil
}

func (a *Assembler) referencePackets(ctx context.Context, agentNodeID string, n workflow.Node, rk RecordKind, pk PacketKind, at time.Time) ([]Packet, []Omission) {
	refs := n.Input.References()
	if len(refs) == 0 {
		return nil, []Omission{{NodeID: n.ID, Reason: OmitNoReference}}
	}

	var (
		packets []Packet
		omitted []Omission
	)
	for i, ref := range refs {
		rec, om := a.resolve(ctx, n.ID, rk, ref)
		if om != nil {
			omitted = append(omitted, *om)
			continue
		}
		packets = append(packets, Packet{
			ID:           packetID(agentNodeID, n.ID, pk, i),
			NodeID:       n.ID,
			NodeType:     n.Type,
			Kind:         pk,
			Title:        titleOr(rec.Title, titleOr(n.Label, string(pk)+" "+ref)),
			Content:      rec.Payload,
			EvidenceRefs: evidence(rec),
			CreatedAt:    at,
		})
	}
	return packets, omitted
}

func (a *Assembler) agentOutputPacket(ctx context.Context, agentNodeID string, n workflow.Node, at time.Time) ([]Packet, []Omission) {
	if n.Agent == nil {
		return nil, []Omission{{NodeID: n.ID, Reason: OmitUnknownKind, Detail: "agent node without data"}}
	}

	title := titleOr(n.Label, "Output of "+n.ID)
	if res := n.Agent.ExecutionResult; res != nil && hasPayload(res.Output) {
		return []Packet{{
			ID:        packetID(agentNodeID, n.ID, KindAgentOutput, 0),
			NodeID:    n.ID,
			NodeType:  n.Type,
			Kind:      KindAgentOutput,
			Title:     title,
			Content:   res.Output,
			CreatedAt: at,
		}}, nil
	}

	if n.Agent.LastRunID == "" {
		return nil, []Omission{{NodeID: n.ID, Reason: OmitNoOutput}}
	}
	rec, om := a.resolve(ctx, n.ID, RecordRun, n.Agent.LastRunID)
	if om != nil {
		return nil, []Omission{*om}
	}
	return []Packet{{
		ID:           packetID(agentNodeID, n.ID, KindAgentOutput, 0),
		NodeID:       n.ID,
		NodeType:     n.Type,
		Kind:         KindAgentOutput,
		Title:        title,
		Content:      rec.Payload,
		EvidenceRefs: evidence(rec),
		CreatedAt:    at,
	}}, nil
}

func (a *Assembler) resolve(ctx context.Context, nodeID string, kind RecordKind, ref string) (*Record, *Omission) {
	if a.resolver == nil {
		return nil, &Omission{NodeID: nodeID, RefID: ref, Reason: OmitResolveFailed, Detail: "no resolver configured"}
	}
	rec, err := a.resolver.Resolve(ctx, kind, ref)
	if err != nil {
		return nil, &Omission{NodeID: nodeID, RefID: ref, Reason: OmitResolveFailed, Detail: err.Error()}
	}
	if rec == nil {
		return nil, &Omission{NodeID: nodeID, RefID: ref, Reason: OmitNotFound, Detail: fmt.Sprintf("%s %s", kind, ref)}
	}
	if !hasPayload(rec.Payload) {
		return nil, &Omission{NodeID: nodeID, RefID: ref, Reason: OmitEmptyPayload}
	}
	return rec, nil
}

func evidence(rec *Record) []string {
	refs := make([]string, 0, len(rec.EvidenceRefs)+1)
	refs = append(refs, rec.ID)
	for _, r := range rec.EvidenceRefs {
		if r != rec.ID {
			refs = append(refs, r)
		}
	}
	return refs
}

func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func titleOr(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
