package run

import (
	"encoding/json"
	"sort"

	"github.com/meikuraledutech/workflow"
)

// Entry is one evaluated run.
type Entry struct {
	Record  *Record `json:"record"`
	Listing Listing `json:"listing"`
	Trust   *Trust  `json:"trust,omitempty"`
}

// Result is the output listing of a workflow.
type Result struct {
	// Included runs, newest first.
	Included []Entry `json:"included"`
	// Excluded runs, in input order.
	Excluded []Entry `json:"excluded"`
	// Dropped counts documents the normalizer filtered out.
	Dropped int `json:"dropped"`
}

// Recorder receives one event per evaluated document. A nil Recorder is allowed.
type Recorder interface {
	RunEvaluated(reason string, include bool)
}

// ListOptions combine listing and trust settings.
type ListOptions struct {
	ListingOptions
	LowQualityThreshold int
	Recorder            Recorder
}

// List normalizes, evaluates and labels raw run documents for w. Documents
// that do not normalize are counted, not returned.
func List(docs []json.RawMessage, w workflow.Workflow, opts ListOptions) Result {
	res := Result{Included: []Entry{}, Excluded: []Entry{}}
	for _, doc := range docs {
		r := NormalizeJSON(doc)
		if r == nil {
			res.Dropped++
			if opts.Recorder != nil {
				opts.Recorder.RunEvaluated(string(ReasonInvalidRecord), false)
			}
			continue
		}

		l := EvaluateForListing(r, w, opts.ListingOptions)
		if opts.Recorder != nil {
			opts.Recorder.RunEvaluated(string(l.Reason), l.Include)
		}
		if !l.Include {
			res.Excluded = append(res.Excluded, Entry{Record: r, Listing: l})
			continue
		}
		t := AssessTrust(r, opts.LowQualityThreshold)
		res.Included = append(res.Included, Entry{Record: r, Listing: l, Trust: &t})
	}

	sort.SliceStable(res.Included, func(i, j int) bool {
		a, b := res.Included[i].Record, res.Included[j].Record
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return res
}
