package execctx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meikuraledutech/workflow"
)

// DefaultPreviewLimit caps a preview line, in runes.
const DefaultPreviewLimit = 120

// ExecutionContext is the bundle handed to one agent invocation.
type ExecutionContext struct {
	WorkflowID        string   `json:"workflowId"`
	AgentNodeID       string   `json:"agentNodeId"`
	AgentDefinitionID string   `json:"agentDefinitionId"`
	Packets           []Packet `json:"packets"`
	Trace             Trace    `json:"trace"`

	// First packet of each kind, for consumers that predate Packets.
	Product   *Packet  `json:"product,omitempty"`
	Persona   *Packet  `json:"persona,omitempty"`
	Intent    *Packet  `json:"intent,omitempty"`
	Knowledge []Packet `json:"knowledge"`

	InputsFull    InputsFull `json:"inputsFull"`
	InputsPreview Preview    `json:"inputsPreview"`
}

// Trace records what went into a context, for audit.
type Trace struct {
	NodeIDs  []string   `json:"nodeIds"`
	EdgeIDs  []string   `json:"edgeIds"`
	Omitted  []Omission `json:"omitted"`
	MergedAt time.Time  `json:"mergedAt"`
}

// InputsFull is the lossless projection sent to the model, grouped by kind.
type InputsFull struct {
	Intents      []json.RawMessage `json:"intents"`
	Products     []json.RawMessage `json:"products"`
	Personas     []json.RawMessage `json:"personas"`
	Knowledge    []json.RawMessage `json:"knowledge"`
	WorkflowRuns []json.RawMessage `json:"workflowRuns"`
	AgentOutputs []json.RawMessage `json:"agentOutputs"`
}

// BuilderConfig holds dependencies for creating a Builder.
type BuilderConfig struct {
	Resolver     Resolver
	Logger       *slog.Logger
	Recorder     Recorder
	PreviewLimit int
	// Now stamps packets and the trace. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Builder assembles execution contexts.
type Builder struct {
	assembler    *Assembler
	logger       *slog.Logger
	recorder     Recorder
	previewLimit int
	now          func() time.Time
	tracer       trace.Tracer
}

// NewBuilder creates a Builder from cfg.
func NewBuilder(cfg BuilderConfig) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.PreviewLimit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Builder{
		assembler:    NewAssembler(cfg.Resolver, logger, cfg.Recorder),
		logger:       logger,
		recorder:     cfg.Recorder,
		previewLimit: limit,
		now:          now,
		tracer:       otel.Tracer("github.com/meikuraledutech/workflow/execctx"),
	}
}

// Build collects the upstream of agentNodeID, orders it, assembles packets and
// fills the compatibility fields and previews. It reads w only.
func (b *Builder) Build(ctx context.Context, w workflow.Workflow, agentNodeID string) (*ExecutionContext, error) {
	ctx, span := b.tracer.Start(ctx, "execctx.Build", trace.WithAttributes(
		attribute.String("workflow.id", w.ID),
		attribute.String("agent.node_id", agentNodeID),
	))
	defer span.End()

	ec, err := b.build(ctx, w, agentNodeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("context.packets", len(ec.Packets)),
		attribute.Int("context.omitted", len(ec.Trace.Omitted)),
	)
	if b.recorder != nil {
		b.recorder.ContextBuilt(len(ec.Packets), len(ec.Trace.Omitted))
	}
	b.logger.Debug("execution context built",
		"workflow_id", w.ID,
		"agent_node_id", agentNodeID,
		"packets", len(ec.Packets),
		"omitted", len(ec.Trace.Omitted),
	)
	return ec, nil
}

func (b *Builder) build(ctx context.Context, w workflow.Workflow, agentNodeID string) (*ExecutionContext, error) {
	target, ok := w.Node(agentNodeID)
	if !ok {
		return nil, fmt.Errorf("execctx: %w: %s", workflow.ErrNodeNotFound, agentNodeID)
	}
	if target.Type != workflow.NodeTypeAgent || target.Agent == nil {
		return nil, fmt.Errorf("execctx: %w: %s is not an agent node", workflow.ErrInvalidNode, agentNodeID)
	}

	up, err := workflow.CollectUpstream(w, agentNodeID)
	if err != nil {
		return nil, fmt.Errorf("execctx: collect upstream: %w", err)
	}

	order := workflow.TopoSort(append(slices.Clone(up.Nodes), target), up.Edges)
	byID := make(map[string]workflow.Node, len(up.Nodes))
	for _, n := range up.Nodes {
		byID[n.ID] = n
	}
	ordered := make([]workflow.Node, 0, len(up.Nodes))
	nodeIDs := make([]string, 0, len(up.Nodes))
	for _, id := range order {
		if n, ok := byID[id]; ok {
			ordered = append(ordered, n)
			nodeIDs = append(nodeIDs, id)
		}
	}

	at := b.now()
	packets, omitted, err := b.assembler.Assemble(ctx, agentNodeID, ordered, at)
	if err != nil {
		return nil, fmt.Errorf("execctx: assemble: %w", err)
	}

	edgeIDs := make([]string, 0, len(up.Edges))
	for _, e := range up.Edges {
		edgeIDs = append(edgeIDs, e.ID)
	}

	ec := &ExecutionContext{
		WorkflowID:        w.ID,
		AgentNodeID:       agentNodeID,
		AgentDefinitionID: target.Agent.AgentDefinitionID,
		Packets:           packets,
		Trace: Trace{
			NodeIDs:  nodeIDs,
			EdgeIDs:  edgeIDs,
			Omitted:  omitted,
			MergedAt: at,
		},
		Knowledge: []Packet{},
	}
	ec.fillCompat()
	ec.InputsFull = fullInputs(packets)
	ec.InputsPreview = NewPreview(packets, b.previewLimit)
	return ec, nil
}

func (ec *ExecutionContext) fillCompat() {
	for i := range ec.Packets {
		p := &ec.Packets[i]
		switch p.Kind {
		case KindIntent:
			if ec.Intent == nil {
				ec.Intent = p
			}
		case KindProduct:
			if ec.Product == nil {
				ec.Product = p
			}
		case KindPersona:
			if ec.Persona == nil {
				ec.Persona = p
			}
		case KindKBItem:
			ec.Knowledge = append(ec.Knowledge, *p)
		}
	}
}

func fullInputs(packets []Packet) InputsFull {
	full := InputsFull{
		Intents:      []json.RawMessage{},
		Products:     []json.RawMessage{},
		Personas:     []json.RawMessage{},
		Knowledge:    []json.RawMessage{},
		WorkflowRuns: []json.RawMessage{},
		AgentOutputs: []json.RawMessage{},
	}
	for _, p := range packets {
		switch p.Kind {
		case KindIntent:
			full.Intents = append(full.Intents, p.Content)
		case KindProduct:
			full.Products = append(full.Products, p.Content)
		case KindPersona:
			full.Personas = append(full.Personas, p.Content)
		case KindKBItem:
			full.Knowledge = append(full.Knowledge, p.Content)
		case KindWorkflowRunRef:
			full.WorkflowRuns = append(full.WorkflowRuns, p.Content)
		case KindAgentOutput:
			full.AgentOutputs = append(full.AgentOutputs, p.Content)
		}
	}
	return full
}
