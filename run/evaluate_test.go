package run

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/meikuraledutech/workflow"
)

func testWorkflow(t *testing.T) workflow.Workflow {
	t.Helper()
	w := workflow.New("wf-1", "launch")
	var err error
	for _, n := range []workflow.Node{
		{ID: "Intent1", Type: workflow.NodeTypeInput, Input: &workflow.InputData{
			Kind: workflow.InputIntent, Intent: &workflow.IntentPayload{Goal: "g", SuccessCriteria: "s"},
		}},
		{ID: "Agent1", Type: workflow.NodeTypeAgent, Agent: &workflow.AgentData{AgentDefinitionID: "lp-writer"}},
		{ID: "Agent2", Type: workflow.NodeTypeAgent, Agent: &workflow.AgentData{AgentDefinitionID: "banner-maker"}},
	} {
		w, _, err = w.AddNode(n)
		require.NoError(t, err)
	}
	w, _, err = w.AddConnection("Intent1", "Agent1")
	require.NoError(t, err)
	return w
}

func withOutput(r Record) *Record {
	if r.FinalOutput == nil {
		r.FinalOutput = json.RawMessage(`{"sections":[]}`)
	}
	if r.Status == "" {
		r.Status = StatusSuccess
	}
	return &r
}

func TestEvaluateForListing(t *testing.T) {
	w := testWorkflow(t)

	tests := []struct {
		name string
		rec  *Record
		opts ListingOptions
		want Listing
	}{
		{
			name: "nil record",
			rec:  nil,
			want: Listing{Reason: ReasonInvalidRecord},
		},
		{
			name: "matching workflow",
			rec:  withOutput(Record{WorkflowID: "wf-1", NodeID: "Agent1"}),
			want: Listing{Include: true, Reason: ReasonOK, OutputKind: KindLPStructure},
		},
		{
			name: "missing workflow id rescued by node",
			rec:  withOutput(Record{NodeID: "Agent1"}),
			want: Listing{Include: true, Reason: ReasonMissingWorkflowInferred, OutputKind: KindLPStructure, InferredWorkflowID: "wf-1"},
		},
		{
			name: "missing workflow id on foreign node",
			rec:  withOutput(Record{NodeID: "AgentX"}),
			want: Listing{Reason: ReasonMissingWorkflowID},
		},
		{
			name: "missing workflow id on an input node",
			rec:  withOutput(Record{NodeID: "Intent1"}),
			want: Listing{Reason: ReasonMissingWorkflowID},
		},
		{
			name: "mismatched workflow rescued by node",
			rec:  withOutput(Record{WorkflowID: "wf-old", NodeID: "Agent2"}),
			want: Listing{Include: true, Reason: ReasonMismatchInferred, OutputKind: KindLPStructure, InferredWorkflowID: "wf-1"},
		},
		{
			name: "mismatched workflow",
			rec:  withOutput(Record{WorkflowID: "wf-2", NodeID: "Agent9"}),
			want: Listing{Reason: ReasonWorkflowMismatch},
		},
		{
			name: "no agent",
			rec:  withOutput(Record{WorkflowID: "wf-1"}),
			want: Listing{Reason: ReasonMissingAgent},
		},
		{
			name: "agent id alone is enough",
			rec:  withOutput(Record{WorkflowID: "wf-1", AgentID: "lp-writer"}),
			want: Listing{Include: true, Reason: ReasonOK, OutputKind: KindLPStructure},
		},
		{
			name: "raw output only",
			rec:  &Record{WorkflowID: "wf-1", NodeID: "Agent1", RawOutput: "sorry, no JSON", Status: StatusSuccess},
			want: Listing{Reason: ReasonNoOutput},
		},
		{
			name: "null final output",
			rec:  &Record{WorkflowID: "wf-1", NodeID: "Agent1", FinalOutput: json.RawMessage(`null`)},
			want: Listing{Reason: ReasonNoOutput},
		},
		{
			name: "ui output alone",
			rec:  &Record{WorkflowID: "wf-1", NodeID: "Agent2", UIOutput: json.RawMessage(`{"layers":[1]}`), Status: StatusSuccess},
			want: Listing{Include: true, Reason: ReasonOK, OutputKind: KindBannerStructure},
		},
		{
			name: "error status filtered",
			rec:  withOutput(Record{WorkflowID: "wf-1", NodeID: "Agent1", Status: StatusError}),
			want: Listing{Reason: ReasonStatusFiltered, OutputKind: KindLPStructure},
		},
		{
			name: "error status kept when asked",
			rec:  withOutput(Record{WorkflowID: "wf-1", NodeID: "Agent1", Status: StatusError}),
			opts: ListingOptions{AllStatuses: true},
			want: Listing{Include: true, Reason: ReasonOK, OutputKind: KindLPStructure},
		},
		{
			name: "unknown kind still listed",
			rec:  withOutput(Record{WorkflowID: "wf-1", NodeID: "Agent1", FinalOutput: json.RawMessage(`{"headline":"x"}`)}),
			want: Listing{Include: true, Reason: ReasonUnknownOutputKind, OutputKind: KindUnknown},
		},
		{
			name: "rescue reason wins over unknown kind",
			rec:  withOutput(Record{NodeID: "Agent1", FinalOutput: json.RawMessage(`[1,2]`)}),
			want: Listing{Include: true, Reason: ReasonMissingWorkflowInferred, OutputKind: KindUnknown, InferredWorkflowID: "wf-1"},
		},
		{
			name: "running status is listed",
			rec:  withOutput(Record{WorkflowID: "wf-1", NodeID: "Agent1", Status: StatusRunning}),
			want: Listing{Include: true, Reason: ReasonOK, OutputKind: KindLPStructure},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateForListing(tt.rec, w, tt.opts))
		})
	}
}

func TestEvaluateMissingWorkflowScenario(t *testing.T) {
	w := testWorkflow(t)
	r := NormalizeJSON([]byte(`{"type":"run","workflowId":"","nodeId":"Agent1","finalOutput":{"sections":[{"t":"fv"}]}}`))
	require.NotNil(t, r)

	got := EvaluateForListing(r, w, ListingOptions{})
	assert.True(t, got.Include)
	assert.Equal(t, ReasonMissingWorkflowInferred, got.Reason)
	assert.Equal(t, "wf-1", got.InferredWorkflowID)
}

func TestInferOutputKind(t *testing.T) {
	w := testWorkflow(t)
	defs := DefinitionKinds{"banner-maker": KindBannerStructure, "lp-writer": KindLPStructure, "vague": KindUnknown}

	tests := []struct {
		name string
		rec  Record
		opts ListingOptions
		want OutputKind
	}{
		{
			name: "stored kind wins",
			rec:  Record{OutputKind: "banner_structure", SchemaRef: "lp_structure.v1", FinalOutput: json.RawMessage(`{"sections":[]}`)},
			want: KindBannerStructure,
		},
		{
			name: "stored unknown falls through",
			rec:  Record{OutputKind: "unknown", FinalOutput: json.RawMessage(`{"sections":[]}`)},
			want: KindLPStructure,
		},
		{
			name: "schema ref path and version",
			rec:  Record{SchemaRef: "schemas/LpStructure.v2.json", FinalOutput: json.RawMessage(`{"bboxes":[]}`)},
			want: KindLPStructure,
		},
		{
			name: "schema ref fragment",
			rec:  Record{SchemaRef: "#/definitions/banner_structure", FinalOutput: json.RawMessage(`{}`)},
			want: KindBannerStructure,
		},
		{
			name: "unrecognized schema ref falls through",
			rec:  Record{SchemaRef: "copy_v3", FinalOutput: json.RawMessage(`{"canvas":{}}`)},
			want: KindBannerStructure,
		},
		{
			name: "embedded in final output",
			rec:  Record{FinalOutput: json.RawMessage(`{"kind":"Banner","sections":[]}`)},
			want: KindBannerStructure,
		},
		{
			name: "embedded in parsed output",
			rec:  Record{FinalOutput: json.RawMessage(`[]`), ParsedOutput: json.RawMessage(`{"outputKind":"lp-structure"}`)},
			want: KindLPStructure,
		},
		{
			name: "definition of the run's agent",
			rec:  Record{AgentID: "banner-maker", FinalOutput: json.RawMessage(`{"sections":[]}`)},
			opts: ListingOptions{Definitions: defs},
			want: KindBannerStructure,
		},
		{
			name: "definition of the graph node",
			rec:  Record{NodeID: "Agent2", FinalOutput: json.RawMessage(`{}`)},
			opts: ListingOptions{Definitions: defs},
			want: KindBannerStructure,
		},
		{
			name: "definition declared unknown falls through to sniffing",
			rec:  Record{AgentID: "vague", FinalOutput: json.RawMessage(`{"firstView":{}}`)},
			opts: ListingOptions{Definitions: defs},
			want: KindLPStructure,
		},
		{
			name: "sniff ui output",
			rec:  Record{FinalOutput: json.RawMessage(`{"x":1}`), UIOutput: json.RawMessage(`{"layers":[]}`)},
			want: KindBannerStructure,
		},
		{
			name: "sniffed field must carry a value",
			rec:  Record{FinalOutput: json.RawMessage(`{"sections":null}`)},
			want: KindUnknown,
		},
		{
			name: "custom sniffers replace the defaults",
			rec:  Record{FinalOutput: json.RawMessage(`{"sections":[],"frames":[]}`)},
			opts: ListingOptions{Sniffers: []Sniffer{{Kind: KindBannerStructure, AnyOf: []string{"frames"}}}},
			want: KindBannerStructure,
		},
		{
			name: "nothing matches",
			rec:  Record{FinalOutput: json.RawMessage(`"text"`)},
			want: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferOutputKind(&tt.rec, w, tt.opts))
		})
	}
}

var knownReasons = map[Reason]bool{
	ReasonOK: true, ReasonMissingWorkflowInferred: true, ReasonMismatchInferred: true,
	ReasonMissingWorkflowID: true, ReasonWorkflowMismatch: true, ReasonMissingAgent: true,
	ReasonNoOutput: true, ReasonStatusFiltered: true, ReasonUnknownOutputKind: true,
	ReasonInvalidRecord: true,
}

// Every record gets a decision with a known reason, and inclusion always
// comes with output and an agent.
func TestEvaluateTotalProperty(t *testing.T) {
	w := testWorkflow(t)
	payloads := []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`{}`), json.RawMessage(`{"sections":[1]}`), json.RawMessage(`[1]`)}

	rapid.Check(t, func(rt *rapid.T) {
		if rapid.Bool().Draw(rt, "nil") {
			got := EvaluateForListing(nil, w, ListingOptions{})
			if got.Include || got.Reason != ReasonInvalidRecord {
				rt.Fatalf("nil record: %+v", got)
			}
			return
		}
		r := &Record{
			WorkflowID:  rapid.SampledFrom([]string{"", "wf-1", "wf-2"}).Draw(rt, "workflowId"),
			NodeID:      rapid.SampledFrom([]string{"", "Agent1", "Agent2", "Intent1", "ghost"}).Draw(rt, "nodeId"),
			AgentID:     rapid.SampledFrom([]string{"", "lp-writer", "other"}).Draw(rt, "agentId"),
			Status:      rapid.SampledFrom([]Status{"", StatusSuccess, StatusError, StatusRunning}).Draw(rt, "status"),
			FinalOutput: rapid.SampledFrom(payloads).Draw(rt, "final"),
			UIOutput:    rapid.SampledFrom(payloads).Draw(rt, "ui"),
			OutputKind:  rapid.SampledFrom([]string{"", "unknown", "lp_structure", "bogus"}).Draw(rt, "kind"),
		}
		opts := ListingOptions{AllStatuses: rapid.Bool().Draw(rt, "all")}

		got := EvaluateForListing(r, w, opts)
		if !knownReasons[got.Reason] {
			rt.Fatalf("unknown reason %q", got.Reason)
		}
		if got.Include {
			if !r.HasOutput() {
				rt.Fatalf("included without output: %+v", got)
			}
			if r.NodeID == "" && r.AgentID == "" {
				rt.Fatalf("included without agent: %+v", got)
			}
			if r.Status == StatusError && !opts.AllStatuses {
				rt.Fatalf("error run included: %+v", got)
			}
			if got.OutputKind == "" {
				rt.Fatalf("included without kind: %+v", got)
			}
		}
		if r.WorkflowID != "wf-1" && got.Include && got.InferredWorkflowID != "wf-1" {
			rt.Fatalf("rescued run without inferred workflow: %+v", got)
		}
	})
}
