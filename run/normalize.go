package run

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// fields is a raw run document, one undecoded value per key.
type fields map[string]json.RawMessage

// extractor pulls one canonical value out of a raw document.
type extractor[T any] func(f fields) (T, bool)

// firstOf returns the value of the first extractor that matches.
func firstOf[T any](f fields, chain []extractor[T]) (T, bool) {
	for _, ex := range chain {
		if v, ok := ex(f); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Fallback chains, oldest schema last. Order is significant.
var (
	idFrom          = []extractor[string]{str("id"), str("runId"), str("_id")}
	workflowIDFrom  = []extractor[string]{str("workflowId"), str("workflow_id"), str("flowId"), nestedStr("meta", "workflowId")}
	nodeIDFrom      = []extractor[string]{str("nodeId"), str("agentNodeId"), str("node_id"), nestedStr("meta", "nodeId")}
	agentIDFrom     = []extractor[string]{str("agentId"), str("agentDefinitionId"), str("agent_definition_id"), str("agent_id")}
	statusFrom      = []extractor[string]{str("status"), str("state")}
	createdAtFrom   = []extractor[time.Time]{timeAt("createdAt"), timeAt("created_at"), timeAt("startedAt"), timeAt("timestamp")}
	completedAtFrom = []extractor[time.Time]{timeAt("completedAt"), timeAt("finishedAt"), timeAt("executedAt"), nestedTime("executionResult", "executedAt")}
	rawOutputFrom   = []extractor[string]{str("rawOutput"), str("llmRawText"), str("rawText"), str("output_raw"), str("output")}
	parsedFrom      = []extractor[json.RawMessage]{value("parsedOutput"), value("parsed"), value("output_parsed")}
	finalFrom       = []extractor[json.RawMessage]{value("finalOutput"), value("final_output"), structured("output"), nestedStructured("executionResult", "output")}
	sourceFrom      = []extractor[string]{str("finalOutputSource")}
	uiFrom          = []extractor[json.RawMessage]{value("uiOutput"), value("outputUI"), value("ui"), value("uiProjection")}
	validationFrom  = []extractor[*Validation]{validation("validation"), validation("schemaValidation"), validationFlag("isValid"), validationFlag("schemaValid")}
	outputKindFrom  = []extractor[string]{str("outputKind"), str("output_kind"), str("outputType")}
	schemaRefFrom   = []extractor[string]{str("schemaRef"), str("outputSchemaRef"), str("schema_ref"), str("schemaName")}
	errorFrom       = []extractor[string]{str("error"), str("errorMessage"), str("lastError"), nestedStr("executionResult", "error")}
	inputsFrom      = []extractor[*InputsSnapshot]{inputs("inputs"), inputs("inputsSnapshot")}
)

// knownKeys are consumed by the chains above and never copied to Extra.
var knownKeys = map[string]bool{
	"type": true, "recordType": true,
	"id": true, "runId": true, "_id": true,
	"workflowId": true, "workflow_id": true, "flowId": true,
	"nodeId": true, "agentNodeId": true, "node_id": true,
	"agentId": true, "agentDefinitionId": true, "agent_definition_id": true, "agent_id": true,
	"status": true, "state": true,
	"createdAt": true, "created_at": true, "startedAt": true, "timestamp": true,
	"completedAt": true, "finishedAt": true, "executedAt": true, "executionResult": true,
	"rawOutput": true, "llmRawText": true, "rawText": true, "output_raw": true, "output": true,
	"parsedOutput": true, "parsed": true, "output_parsed": true,
	"finalOutput": true, "final_output": true, "finalOutputSource": true,
	"uiOutput": true, "outputUI": true, "ui": true, "uiProjection": true,
	"validation": true, "schemaValidation": true, "isValid": true, "schemaValid": true,
	"outputKind": true, "output_kind": true, "outputType": true,
	"schemaRef": true, "outputSchemaRef": true, "schema_ref": true, "schemaName": true,
	"error": true, "errorMessage": true, "lastError": true,
	"inputs": true, "inputsSnapshot": true,
}

var runTypeTags = map[string]bool{
	TypeTag: true, "agent_run": true, "agentRun": true, "workflow_run": true, "execution": true,
}

var statusAliases = map[string]Status{
	"success": StatusSuccess, "succeeded": StatusSuccess, "completed": StatusSuccess,
	"complete": StatusSuccess, "done": StatusSuccess, "ok": StatusSuccess,
	"error": StatusError, "failed": StatusError, "failure": StatusError, "errored": StatusError,
	"running": StatusRunning, "pending": StatusRunning, "queued": StatusRunning, "in_progress": StatusRunning,
}

// NormalizeJSON decodes data and normalizes it. It returns nil for anything
// that is not a JSON object or not a run record with some payload.
func NormalizeJSON(data []byte) *Record {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return nil
	}
	return Normalize(f)
}

// Normalize coerces a raw run document into a Record. A nil result is a
// filter signal: the document is not a run, or it carries no payload at all.
func Normalize(f fields) *Record {
	if !isRunDocument(f) {
		return nil
	}

	r := &Record{}
	r.ID, _ = firstOf(f, idFrom)
	r.WorkflowID, _ = firstOf(f, workflowIDFrom)
	r.NodeID, _ = firstOf(f, nodeIDFrom)
	r.AgentID, _ = firstOf(f, agentIDFrom)
	r.CreatedAt, _ = firstOf(f, createdAtFrom)
	r.CompletedAt, _ = firstOf(f, completedAtFrom)
	r.RawOutput, _ = firstOf(f, rawOutputFrom)
	r.ParsedOutput, _ = firstOf(f, parsedFrom)
	r.UIOutput, _ = firstOf(f, uiFrom)
	r.Validation, _ = firstOf(f, validationFrom)
	r.OutputKind, _ = firstOf(f, outputKindFrom)
	r.SchemaRef, _ = firstOf(f, schemaRefFrom)
	r.Error, _ = firstOf(f, errorFrom)
	r.Inputs, _ = firstOf(f, inputsFrom)

	if r.ParsedOutput == nil && r.RawOutput != "" {
		r.ParsedOutput = parseModelText(r.RawOutput)
	}

	if final, ok := firstOf(f, finalFrom); ok {
		r.FinalOutput = final
		r.FinalOutputSource = SourceFinal
	} else if r.ParsedOutput != nil {
		r.FinalOutput = r.ParsedOutput
		r.FinalOutputSource = SourceParsed
		if _, fromField := firstOf(f, parsedFrom); !fromField {
			r.FinalOutputSource = SourceRaw
		}
	}
	if src, ok := firstOf(f, sourceFrom); ok && r.FinalOutput != nil {
		r.FinalOutputSource = src
	}

	if r.FinalOutput == nil && r.ParsedOutput == nil && r.RawOutput == "" && r.UIOutput == nil {
		return nil
	}

	status, _ := firstOf(f, statusFrom)
	r.Status = normalizeStatus(status, r)

	for k, v := range f {
		if knownKeys[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = compact(v)
	}
	return r
}

func isRunDocument(f fields) bool {
	for _, key := range []string{"type", "recordType"} {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return false
		}
		return runTypeTags[tag]
	}
	// Legacy records carry no tag.
	return true
}

func normalizeStatus(s string, r *Record) Status {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	switch {
	case r.Error != "":
		return StatusError
	case r.FinalOutput != nil || !r.CompletedAt.IsZero():
		return StatusSuccess
	}
	return StatusRunning
}

// parseModelText finds a JSON object or array in raw model text, allowing for
// markdown code fences and surrounding prose.
func parseModelText(text string) json.RawMessage {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		s = strings.TrimSpace(body)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return nil
	}
	return asStructured(json.RawMessage(s[start : end+1]))
}

// asStructured returns raw compacted if it is a JSON object or array. A JSON
// string holding an object or array is unwrapped once.
func asStructured(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '{', '[':
		if !json.Valid(trimmed) {
			return nil
		}
		return compact(trimmed)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		inner := bytes.TrimSpace([]byte(s))
		if len(inner) > 0 && (inner[0] == '{' || inner[0] == '[') && json.Valid(inner) {
			return compact(inner)
		}
	}
	return nil
}

// compact removes insignificant space and applies the same HTML escaping
// json.Marshal does, so a value survives a marshal round trip byte for byte.
func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	var out bytes.Buffer
	json.HTMLEscape(&out, buf.Bytes())
	return out.Bytes()
}

func str(key string) extractor[string] {
	return func(f fields) (string, bool) {
		return scalarString(f[key])
	}
}

func nestedStr(outer, key string) extractor[string] {
	return func(f fields) (string, bool) {
		inner, ok := object(f[outer])
		if !ok {
			return "", false
		}
		return scalarString(inner[key])
	}
}

func structured(key string) extractor[json.RawMessage] {
	return func(f fields) (json.RawMessage, bool) {
		v := asStructured(f[key])
		return v, v != nil
	}
}

// value accepts any JSON value other than null or an empty string. Strings
// holding an object or array are unwrapped as in structured.
func value(key string) extractor[json.RawMessage] {
	return func(f fields) (json.RawMessage, bool) {
		if v := asStructured(f[key]); v != nil {
			return v, true
		}
		trimmed := bytes.TrimSpace(f[key])
		switch string(trimmed) {
		case "", "null", `""`:
			return nil, false
		}
		if !json.Valid(trimmed) {
			return nil, false
		}
		return compact(trimmed), true
	}
}

func nestedStructured(outer, key string) extractor[json.RawMessage] {
	return func(f fields) (json.RawMessage, bool) {
		inner, ok := object(f[outer])
		if !ok {
			return nil, false
		}
		v := asStructured(inner[key])
		return v, v != nil
	}
}

func timeAt(key string) extractor[time.Time] {
	return func(f fields) (time.Time, bool) {
		return parseTime(f[key])
	}
}

func nestedTime(outer, key string) extractor[time.Time] {
	return func(f fields) (time.Time, bool) {
		inner, ok := object(f[outer])
		if !ok {
			return time.Time{}, false
		}
		return parseTime(inner[key])
	}
}

func validation(key string) extractor[*Validation] {
	return func(f fields) (*Validation, bool) {
		obj, ok := object(f[key])
		if !ok {
			return nil, false
		}
		v := &Validation{}
		found := false
		for _, flag := range []string{"ok", "valid", "success", "isValid"} {
			if b, ok := boolean(obj[flag]); ok {
				v.OK, found = b, true
				break
			}
		}
		if !found {
			return nil, false
		}
		var items []json.RawMessage
		if err := json.Unmarshal(obj["errors"], &items); err == nil {
			for _, item := range items {
				if s, ok := scalarString(item); ok {
					v.Errors = append(v.Errors, s)
				} else if hasPayload(item) {
					v.Errors = append(v.Errors, string(compact(item)))
				}
			}
		}
		return v, true
	}
}

func validationFlag(key string) extractor[*Validation] {
	return func(f fields) (*Validation, bool) {
		b, ok := boolean(f[key])
		if !ok {
			return nil, false
		}
		return &Validation{OK: b}, true
	}
}

func inputs(key string) extractor[*InputsSnapshot] {
	return func(f fields) (*InputsSnapshot, bool) {
		obj, ok := object(f[key])
		if !ok {
			return nil, false
		}
		if _, canonical := obj["knowledgeCount"]; canonical {
			var s InputsSnapshot
			if err := json.Unmarshal(f[key], &s); err != nil {
				return nil, false
			}
			return &s, true
		}
		// Legacy runs stored the aggregates themselves.
		s := &InputsSnapshot{
			HasIntent:  hasPayload(obj["intent"]),
			HasProduct: hasPayload(obj["product"]),
			HasPersona: hasPayload(obj["persona"]),
		}
		var kb []json.RawMessage
		if err := json.Unmarshal(obj["knowledge"], &kb); err == nil {
			s.KnowledgeCount = len(kb)
		}
		return s, true
	}
}

func object(raw json.RawMessage) (fields, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj fields
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func scalarString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func boolean(raw json.RawMessage) (bool, bool) {
	var b bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return false, false
	}
	return b, true
}

const maxEpoch = 1e15

func parseTime(raw json.RawMessage) (time.Time, bool) {
	t, ok := parseAnyTime(raw)
	// Only years RFC 3339 can write back.
	if !ok || t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

func parseAnyTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epoch(float64(n))
		}
		return time.Time{}, false
	}
	var fl float64
	if err := json.Unmarshal(raw, &fl); err == nil {
		return epoch(fl)
	}
	return time.Time{}, false
}

// epoch reads n as milliseconds, or as seconds when it is too small to be.
func epoch(n float64) (time.Time, bool) {
	if math.IsNaN(n) || math.Abs(n) > maxEpoch {
		return time.Time{}, false
	}
	if n < 1e11 {
		return time.Unix(int64(n), 0).UTC(), true
	}
	return time.UnixMilli(int64(n)).UTC(), true
}
