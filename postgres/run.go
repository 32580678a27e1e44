package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/run"
)

// SaveRun stores a run document as is. A document without an "id" gets a
// generated UUID written into it. Saving an existing id replaces the row.
// Returns the run ID.
func (s *PGStore) SaveRun(ctx context.Context, raw json.RawMessage) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return "", workflow.ErrInvalidRun
	}

	var id, workflowID, nodeID string
	if r := run.NormalizeJSON(raw); r != nil {
		id, workflowID, nodeID = r.ID, r.WorkflowID, r.NodeID
	}
	if id == "" {
		id = uuid.NewString()
		doc["id"], _ = json.Marshal(id)
		data, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("workflow: encode run: %w", err)
		}
		raw = data
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, node_id, data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET workflow_id = EXCLUDED.workflow_id, node_id = EXCLUDED.node_id, data = EXCLUDED.data`,
		id, workflowID, nodeID, []byte(raw),
	)
	if err != nil {
		return "", fmt.Errorf("workflow: insert run: %w", err)
	}
	return id, nil
}

// ListRuns returns the raw run documents that may belong to a workflow: those
// tagged with it, those with no workflow id at all, and those recorded against
// one of its nodes. Deciding which to show is left to run.List.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListRuns(ctx context.Context, workflowID string) ([]json.RawMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT data FROM workflow_runs
		 WHERE workflow_id = $1
		    OR workflow_id = ''
		    OR node_id IN (SELECT id FROM workflow_nodes WHERE workflow_id = $1)
		 ORDER BY created_at, id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list runs: %w", err)
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("workflow: scan run: %w", err)
		}
		docs = append(docs, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows runs: %w", err)
	}
	return docs, nil
}
