package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/workflow"
)

// AddConnection inserts a single edge into a workflow.
// The edge must pass the connection rules and must not close a cycle;
// otherwise a *workflow.ConnectionError is returned and nothing is written.
func (s *PGStore) AddConnection(ctx context.Context, workflowID, fromID, toID string) (workflow.Edge, error) {
	var added workflow.Edge
	err := s.mutate(ctx, workflowID, func(tx pgx.Tx, w workflow.Workflow) error {
		_, e, err := w.AddConnection(fromID, toID)
		if err != nil {
			return err
		}
		seq, err := nextSeq(ctx, tx, "workflow_edges", workflowID)
		if err != nil {
			return err
		}
		added = e
		return insertEdge(ctx, tx, workflowID, seq, e)
	})
	if err != nil {
		return workflow.Edge{}, err
	}
	return added, nil
}

// DeleteEdge deletes an edge by its ID.
// Returns ErrEdgeNotFound if the edge doesn't exist.
func (s *PGStore) DeleteEdge(ctx context.Context, workflowID, edgeID string) error {
	return s.mutate(ctx, workflowID, func(tx pgx.Tx, w workflow.Workflow) error {
		if _, err := w.RemoveEdge(edgeID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM workflow_edges WHERE workflow_id = $1 AND id = $2`, workflowID, edgeID,
		); err != nil {
			return fmt.Errorf("workflow: delete edge: %w", err)
		}
		return nil
	})
}

func insertEdge(ctx context.Context, q querier, workflowID string, seq int, e workflow.Edge) error {
	if _, err := q.Exec(ctx,
		`INSERT INTO workflow_edges (workflow_id, id, seq, from_node_id, to_node_id) VALUES ($1, $2, $3, $4, $5)`,
		workflowID, e.ID, seq, e.FromNodeID, e.ToNodeID,
	); err != nil {
		return fmt.Errorf("workflow: insert edge %s: %w", e.ID, err)
	}
	return nil
}
