package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/workflow"
)

// AddNode inserts a single node into a workflow.
// If node.ID is empty, a UUID is auto-generated.
// Returns the stored node.
func (s *PGStore) AddNode(ctx context.Context, workflowID string, node workflow.Node) (workflow.Node, error) {
	var added workflow.Node
	err := s.mutate(ctx, workflowID, func(tx pgx.Tx, w workflow.Workflow) error {
		_, n, err := w.AddNode(node)
		if err != nil {
			return err
		}
		seq, err := nextSeq(ctx, tx, "workflow_nodes", workflowID)
		if err != nil {
			return err
		}
		added = n
		return insertNode(ctx, tx, workflowID, seq, n)
	})
	if err != nil {
		return workflow.Node{}, err
	}
	return added, nil
}

// DeleteNode deletes a node and every edge touching it.
// No error if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	return s.mutate(ctx, workflowID, func(tx pgx.Tx, w workflow.Workflow) error {
		if _, ok := w.Node(nodeID); !ok {
			return nil
		}
		next := w.RemoveNode(nodeID)

		// Edges go first so the foreign keys never see a dangling row.
		kept := make(map[string]bool, len(next.Edges))
		for _, e := range next.Edges {
			kept[e.ID] = true
		}
		for _, e := range w.Edges {
			if kept[e.ID] {
				continue
			}
			if _, err := tx.Exec(ctx,
				`DELETE FROM workflow_edges WHERE workflow_id = $1 AND id = $2`, workflowID, e.ID,
			); err != nil {
				return fmt.Errorf("workflow: delete edge %s: %w", e.ID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM workflow_nodes WHERE workflow_id = $1 AND id = $2`, workflowID, nodeID,
		); err != nil {
			return fmt.Errorf("workflow: delete node: %w", err)
		}
		return nil
	})
}

func insertNode(ctx context.Context, q querier, workflowID string, seq int, n workflow.Node) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("workflow: encode node %s: %w", n.ID, err)
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO workflow_nodes (workflow_id, id, seq, data) VALUES ($1, $2, $3, $4)`,
		workflowID, n.ID, seq, data,
	); err != nil {
		return fmt.Errorf("workflow: insert node %s: %w", n.ID, err)
	}
	return nil
}

// nextSeq returns the position after the last row of table in a workflow.
func nextSeq(ctx context.Context, q querier, table, workflowID string) (int, error) {
	var seq int
	err := q.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(seq) + 1, 0) FROM %s WHERE workflow_id = $1`, table), workflowID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("workflow: next %s seq: %w", table, err)
	}
	return seq, nil
}
