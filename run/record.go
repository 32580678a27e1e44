// Package run normalizes persisted agent run records and decides how they are
// listed and labelled.
package run

import (
	"encoding/json"
	"time"
)

// Status is the canonical run status.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusRunning Status = "running"
)

// Where FinalOutput came from.
const (
	SourceFinal  = "final"
	SourceParsed = "parsed"
	SourceRaw    = "raw"
)

// TypeTag is written on every canonical record.
const TypeTag = "run"

// Validation is the schema-validation verdict of a run.
type Validation struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// InputsSnapshot describes what the agent was given, for the quality score.
type InputsSnapshot struct {
	HasIntent      bool `json:"hasIntent"`
	HasProduct     bool `json:"hasProduct"`
	HasPersona     bool `json:"hasPersona"`
	KnowledgeCount int  `json:"knowledgeCount"`
}

// Record is a normalized run record.
type Record struct {
	ID                string
	WorkflowID        string
	NodeID            string
	AgentID           string
	Status            Status
	CreatedAt         time.Time
	CompletedAt       time.Time
	RawOutput         string
	ParsedOutput      json.RawMessage
	Validation        *Validation
	FinalOutput       json.RawMessage
	FinalOutputSource string
	UIOutput          json.RawMessage
	OutputKind        string
	SchemaRef         string
	Error             string
	Inputs            *InputsSnapshot

	// Extra holds fields this package does not know, compacted.
	Extra map[string]json.RawMessage
}

// HasOutput reports whether any of the output slots carries a payload.
func (r *Record) HasOutput() bool {
	return hasPayload(r.FinalOutput) || hasPayload(r.ParsedOutput) || hasPayload(r.UIOutput)
}

// MarshalJSON writes the canonical shape, with unknown fields passed through.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+20)
	for k, v := range r.Extra {
		out[k] = v
	}

	out["type"] = TypeTag
	put := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	putRaw := func(key string, v json.RawMessage) {
		if hasPayload(v) {
			out[key] = v
		}
	}
	putTime := func(key string, t time.Time) {
		if !t.IsZero() {
			out[key] = t.UTC().Format(time.RFC3339Nano)
		}
	}

	put("id", r.ID)
	put("workflowId", r.WorkflowID)
	put("nodeId", r.NodeID)
	put("agentId", r.AgentID)
	put("status", string(r.Status))
	putTime("createdAt", r.CreatedAt)
	putTime("completedAt", r.CompletedAt)
	put("rawOutput", r.RawOutput)
	putRaw("parsedOutput", r.ParsedOutput)
	putRaw("finalOutput", r.FinalOutput)
	put("finalOutputSource", r.FinalOutputSource)
	putRaw("uiOutput", r.UIOutput)
	put("outputKind", r.OutputKind)
	put("schemaRef", r.SchemaRef)
	put("error", r.Error)
	if r.Validation != nil {
		out["validation"] = r.Validation
	}
	if r.Inputs != nil {
		out["inputs"] = r.Inputs
	}
	return json.Marshal(out)
}

func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
