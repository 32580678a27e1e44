package run

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/meikuraledutech/workflow"
)

// Reason explains a listing decision.
type Reason string

const (
	ReasonOK                      Reason = "OK"
	ReasonMissingWorkflowInferred Reason = "MISSING_WORKFLOWID_BUT_INFERRED"
	ReasonMismatchInferred        Reason = "WORKFLOW_MISMATCH_BUT_INFERRED"
	ReasonMissingWorkflowID       Reason = "MISSING_WORKFLOWID"
	ReasonWorkflowMismatch        Reason = "WORKFLOW_MISMATCH"
	ReasonMissingAgent            Reason = "MISSING_AGENT"
	ReasonNoOutput                Reason = "NO_OUTPUT"
	ReasonStatusFiltered          Reason = "STATUS_FILTERED"
	ReasonUnknownOutputKind       Reason = "UNKNOWN_OUTPUT_KIND"
	ReasonInvalidRecord           Reason = "INVALID_RECORD"
)

// OutputKind tags the shape of the artifact a run produced.
type OutputKind string

const (
	KindLPStructure     OutputKind = "lp_structure"
	KindBannerStructure OutputKind = "banner_structure"
	KindUnknown         OutputKind = "unknown"
)

// kindAliases maps normalized names found in schema refs and payloads to kinds.
var kindAliases = map[string]OutputKind{
	"lp_structure":     KindLPStructure,
	"lpstructure":      KindLPStructure,
	"lp":               KindLPStructure,
	"landing_page":     KindLPStructure,
	"banner_structure": KindBannerStructure,
	"bannerstructure":  KindBannerStructure,
	"banner":           KindBannerStructure,
}

// Sniffer recognises an output kind by characteristic top-level fields.
type Sniffer struct {
	Kind  OutputKind
	AnyOf []string
}

// DefaultSniffers is used when ListingOptions.Sniffers is nil.
var DefaultSniffers = []Sniffer{
	{Kind: KindLPStructure, AnyOf: []string{"sections", "firstView", "fv"}},
	{Kind: KindBannerStructure, AnyOf: []string{"bboxes", "layers", "canvas"}},
}

// DefinitionLookup returns the declared output kind of an agent definition.
type DefinitionLookup interface {
	OutputKind(agentDefinitionID string) (OutputKind, bool)
}

// DefinitionKinds is a map-backed DefinitionLookup.
type DefinitionKinds map[string]OutputKind

// OutputKind implements DefinitionLookup.
func (d DefinitionKinds) OutputKind(id string) (OutputKind, bool) {
	k, ok := d[id]
	return k, ok && k != "" && k != KindUnknown
}

// ListingOptions tune EvaluateForListing.
type ListingOptions struct {
	// AllStatuses includes error runs, which are otherwise filtered.
	AllStatuses bool
	Definitions DefinitionLookup
	Sniffers    []Sniffer
}

// Listing is the outcome of EvaluateForListing.
type Listing struct {
	Include            bool       `json:"include"`
	Reason             Reason     `json:"reason"`
	OutputKind         OutputKind `json:"outputKind,omitempty"`
	InferredWorkflowID string     `json:"inferredWorkflowId,omitempty"`
}

// EvaluateForListing decides whether r is shown in the output listing of w.
// Checks run in a fixed order and the first exclusion wins. It never panics
// and always returns a reason.
func EvaluateForListing(r *Record, w workflow.Workflow, opts ListingOptions) Listing {
	if r == nil {
		return Listing{Reason: ReasonInvalidRecord}
	}

	base := ReasonOK
	var inferred string
	switch {
	case r.WorkflowID != "" && r.WorkflowID == w.ID:
	case r.WorkflowID == "":
		if !w.HasAgentNode(r.NodeID) {
			return Listing{Reason: ReasonMissingWorkflowID}
		}
		base, inferred = ReasonMissingWorkflowInferred, w.ID
	default:
		if !w.HasAgentNode(r.NodeID) {
			return Listing{Reason: ReasonWorkflowMismatch}
		}
		base, inferred = ReasonMismatchInferred, w.ID
	}

	if r.NodeID == "" && r.AgentID == "" {
		return Listing{Reason: ReasonMissingAgent, InferredWorkflowID: inferred}
	}

	if !r.HasOutput() {
		return Listing{Reason: ReasonNoOutput, InferredWorkflowID: inferred}
	}

	kind := InferOutputKind(r, w, opts)

	if r.Status == StatusError && !opts.AllStatuses {
		return Listing{Reason: ReasonStatusFiltered, OutputKind: kind, InferredWorkflowID: inferred}
	}

	reason := base
	if reason == ReasonOK && kind == KindUnknown {
		reason = ReasonUnknownOutputKind
	}
	return Listing{Include: true, Reason: reason, OutputKind: kind, InferredWorkflowID: inferred}
}

// InferOutputKind walks the fallback chain: stored kind, schema reference,
// kind embedded in the payload, the agent definition's declared kind, then
// structural sniffing. Earlier sources win.
func InferOutputKind(r *Record, w workflow.Workflow, opts ListingOptions) OutputKind {
	chain := []func() (OutputKind, bool){
		func() (OutputKind, bool) {
			k := OutputKind(strings.TrimSpace(r.OutputKind))
			return k, k != "" && k != KindUnknown
		},
		func() (OutputKind, bool) { return kindFromSchemaRef(r.SchemaRef) },
		func() (OutputKind, bool) { return embeddedKind(r) },
		func() (OutputKind, bool) {
			if opts.Definitions == nil {
				return "", false
			}
			return opts.Definitions.OutputKind(definitionID(r, w))
		},
		func() (OutputKind, bool) { return sniff(r, opts.Sniffers) },
	}
	for _, source := range chain {
		if k, ok := source(); ok {
			return k
		}
	}
	return KindUnknown
}

// definitionID is the run's agent id, or the definition of the graph node it
// ran on.
func definitionID(r *Record, w workflow.Workflow) string {
	if r.AgentID != "" {
		return r.AgentID
	}
	if n, ok := w.Node(r.NodeID); ok && n.Agent != nil {
		return n.Agent.AgentDefinitionID
	}
	return ""
}

var (
	versionSuffix = regexp.MustCompile(`[._-]?v\d+$`)
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// kindFromSchemaRef maps refs like "schemas/LpStructure.v2.json" or
// "#/definitions/banner_structure" to a known kind.
func kindFromSchemaRef(ref string) (OutputKind, bool) {
	name := strings.TrimSpace(ref)
	if i := strings.LastIndexAny(name, "/#:"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".json")
	name = versionSuffix.ReplaceAllString(name, "")
	return lookupKind(name)
}

func lookupKind(name string) (OutputKind, bool) {
	name = camelBoundary.ReplaceAllString(name, "${1}_${2}")
	name = strings.ToLower(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(name))
	k, ok := kindAliases[name]
	return k, ok
}

func embeddedKind(r *Record) (OutputKind, bool) {
	for _, payload := range []json.RawMessage{r.FinalOutput, r.ParsedOutput} {
		obj, ok := object(payload)
		if !ok {
			continue
		}
		for _, key := range []string{"outputKind", "kind", "type"} {
			if s, ok := scalarString(obj[key]); ok {
				if k, ok := lookupKind(s); ok {
					return k, true
				}
			}
		}
	}
	return "", false
}

func sniff(r *Record, sniffers []Sniffer) (OutputKind, bool) {
	if sniffers == nil {
		sniffers = DefaultSniffers
	}
	for _, payload := range []json.RawMessage{r.FinalOutput, r.ParsedOutput, r.UIOutput} {
		obj, ok := object(payload)
		if !ok {
			continue
		}
		for _, s := range sniffers {
			for _, field := range s.AnyOf {
				if hasPayload(obj[field]) {
					return s.Kind, true
				}
			}
		}
	}
	return "", false
}
