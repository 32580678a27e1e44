package run

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEval struct {
	reason  string
	include bool
}

type fakeRecorder struct{ events []recordedEval }

func (f *fakeRecorder) RunEvaluated(reason string, include bool) {
	f.events = append(f.events, recordedEval{reason, include})
}

func TestList(t *testing.T) {
	w := testWorkflow(t)
	docs := []json.RawMessage{
		json.RawMessage(`{"id":"old","workflowId":"wf-1","nodeId":"Agent1","createdAt":"2026-01-01T00:00:00Z","finalOutput":{"sections":[]}}`),
		json.RawMessage(`{"type":"persona","id":"P1"}`),
		json.RawMessage(`{"id":"rescued","workflowId":"","nodeId":"Agent1","createdAt":"2026-03-01T00:00:00Z","finalOutput":{"sections":[]},"validation":{"ok":true},"uiOutput":{"cards":[]}}`),
		json.RawMessage(`{"id":"foreign","workflowId":"wf-9","nodeId":"Agent7","finalOutput":{}}`),
		json.RawMessage(`{"id":"b-tie","workflowId":"wf-1","nodeId":"Agent2","createdAt":"2026-02-01T00:00:00Z","finalOutput":{"bboxes":[]}}`),
		json.RawMessage(`{"id":"a-tie","workflowId":"wf-1","nodeId":"Agent2","createdAt":"2026-02-01T00:00:00Z","finalOutput":{"bboxes":[]}}`),
		json.RawMessage(`{"id":"failed","workflowId":"wf-1","nodeId":"Agent1","status":"error","error":"boom","rawOutput":"{\"sections\":[]}"}`),
		json.RawMessage(`not json`),
	}
	rec := &fakeRecorder{}

	res := List(docs, w, ListOptions{Recorder: rec})

	var included []string
	for _, e := range res.Included {
		included = append(included, e.Record.ID)
		require.NotNil(t, e.Trust)
	}
	assert.Equal(t, []string{"rescued", "a-tie", "b-tie", "old"}, included)
	assert.Equal(t, ReasonMissingWorkflowInferred, res.Included[0].Listing.Reason)
	assert.Equal(t, TrustVerified, res.Included[0].Trust.Level)

	require.Len(t, res.Excluded, 2)
	assert.Equal(t, "foreign", res.Excluded[0].Record.ID)
	assert.Equal(t, ReasonWorkflowMismatch, res.Excluded[0].Listing.Reason)
	assert.Nil(t, res.Excluded[0].Trust)
	assert.Equal(t, "failed", res.Excluded[1].Record.ID)
	assert.Equal(t, ReasonStatusFiltered, res.Excluded[1].Listing.Reason)

	assert.Equal(t, 2, res.Dropped)
	assert.Len(t, rec.events, len(docs))
	assert.Equal(t, recordedEval{string(ReasonInvalidRecord), false}, rec.events[1])
	assert.Equal(t, recordedEval{string(ReasonMissingWorkflowInferred), true}, rec.events[2])
}

func TestListAllStatuses(t *testing.T) {
	w := testWorkflow(t)
	docs := []json.RawMessage{
		json.RawMessage(`{"id":"failed","workflowId":"wf-1","nodeId":"Agent1","status":"error","error":"boom","finalOutput":{"sections":[]}}`),
	}

	res := List(docs, w, ListOptions{ListingOptions: ListingOptions{AllStatuses: true}})
	require.Len(t, res.Included, 1)
	assert.Equal(t, TrustPartial, res.Included[0].Trust.Level)
	assert.Empty(t, res.Excluded)
}

func TestListEmpty(t *testing.T) {
	res := List(nil, testWorkflow(t), ListOptions{})
	assert.NotNil(t, res.Included)
	assert.NotNil(t, res.Excluded)
	assert.Zero(t, res.Dropped)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"included":[],"excluded":[],"dropped":0}`, string(data))
}
