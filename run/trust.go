package run

import (
	"encoding/json"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/execctx"
)

// TrustLevel is a presentation label. It never gates inclusion.
type TrustLevel string

const (
	TrustVerified      TrustLevel = "verified"
	TrustUsable        TrustLevel = "usable"
	TrustUnverified    TrustLevel = "unverified"
	TrustSchemaWarning TrustLevel = "schema_warning"
	TrustPartial       TrustLevel = "partial"
)

// DefaultLowQualityThreshold is the input-quality score below which a label
// is downgraded.
const DefaultLowQualityThreshold = 60

// Trust is the quality label attached to a listed run.
type Trust struct {
	Level           TrustLevel `json:"level"`
	Label           string     `json:"label"`
	SchemaValid     *bool      `json:"schemaValid,omitempty"`
	HasUIProjection bool       `json:"hasUiProjection"`
	InputQuality    *int       `json:"inputQuality,omitempty"`
	LowInputQuality bool       `json:"lowInputQuality"`
	Warnings        []string   `json:"warnings,omitempty"`
}

var trustLabels = map[TrustLevel]string{
	TrustVerified:      "verified",
	TrustUsable:        "usable",
	TrustUnverified:    "usable, not schema-checked",
	TrustSchemaWarning: "usable, schema validation failed",
	TrustPartial:       "partial result of a failed run",
}

// AssessTrust labels r. A failed schema validation degrades the label but
// keeps the artifact visible. A low input-quality score only downgrades.
func AssessTrust(r *Record, lowQualityThreshold int) Trust {
	if lowQualityThreshold <= 0 {
		lowQualityThreshold = DefaultLowQualityThreshold
	}
	t := Trust{HasUIProjection: hasPayload(r.UIOutput)}
	if r.Validation != nil {
		ok := r.Validation.OK
		t.SchemaValid = &ok
	}

	switch {
	case r.Status == StatusError:
		t.Level = TrustPartial
		t.Warnings = append(t.Warnings, "run finished with an error")
		if r.Error != "" {
			t.Warnings = append(t.Warnings, r.Error)
		}
	case r.Validation != nil && !r.Validation.OK:
		t.Level = TrustSchemaWarning
		t.Warnings = append(t.Warnings, r.Validation.Errors...)
	case r.Validation != nil && t.HasUIProjection:
		t.Level = TrustVerified
	case r.Validation != nil:
		t.Level = TrustUsable
	default:
		t.Level = TrustUnverified
	}
	if r.FinalOutputSource == SourceRaw {
		t.Warnings = append(t.Warnings, "output recovered from raw model text")
	}

	t.Label = trustLabels[t.Level]
	if score, ok := InputQuality(r.Inputs); ok {
		t.InputQuality = &score
		if score < lowQualityThreshold {
			t.LowInputQuality = true
			if t.Level == TrustVerified {
				t.Level = TrustUsable
				t.Label = trustLabels[TrustUsable]
			}
			t.Label += ", input quality low"
		}
	}
	return t
}

// InputQuality scores the inputs a run was given, 0 to 100: 20 points each
// for intent, product and persona, and up to 40 for supporting knowledge.
// It reports false when the run carries no snapshot.
func InputQuality(s *InputsSnapshot) (int, bool) {
	if s == nil {
		return 0, false
	}
	score := 0
	for _, present := range []bool{s.HasIntent, s.HasProduct, s.HasPersona} {
		if present {
			score += 20
		}
	}
	switch {
	case s.KnowledgeCount >= 5:
		score += 40
	case s.KnowledgeCount >= 3:
		score += 30
	case s.KnowledgeCount == 2:
		score += 20
	case s.KnowledgeCount == 1:
		score += 10
	}
	return score, true
}

// SnapshotFromContext records what an execution context supplied, to be
// stored with the run it feeds.
func SnapshotFromContext(ec *execctx.ExecutionContext) *InputsSnapshot {
	if ec == nil {
		return nil
	}
	s := &InputsSnapshot{
		HasProduct:     ec.Product != nil,
		HasPersona:     ec.Persona != nil,
		KnowledgeCount: len(ec.Knowledge),
	}
	if ec.Intent != nil {
		var in workflow.IntentPayload
		if err := json.Unmarshal(ec.Intent.Content, &in); err == nil {
			s.HasIntent = in.Goal != "" && in.SuccessCriteria != ""
		}
	}
	return s
}
