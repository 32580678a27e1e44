package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/workflow"
)

// SaveWorkflow saves a full workflow (nodes + edges) in one transaction.
// The graph is rebuilt through the same gates as single mutations first, so
// id-less edges are stored under generated ids.
// Existing nodes and edges are replaced. Returns the stored workflow.
func (s *PGStore) SaveWorkflow(ctx context.Context, w workflow.Workflow) (workflow.Workflow, error) {
	if w.ID == "" {
		w = withGraph(workflow.New("", w.Name), w)
	}
	w, err := w.Rebuild()
	if err != nil {
		return workflow.Workflow{}, err
	}
	t := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = t
	}
	w.UpdatedAt = t

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO workflows (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`,
		w.ID, w.Name, w.CreatedAt, w.UpdatedAt,
	); err != nil {
		return workflow.Workflow{}, fmt.Errorf("workflow: upsert workflow: %w", err)
	}

	// Replace semantics.
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_edges WHERE workflow_id = $1`, w.ID); err != nil {
		return workflow.Workflow{}, fmt.Errorf("workflow: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, w.ID); err != nil {
		return workflow.Workflow{}, fmt.Errorf("workflow: delete nodes: %w", err)
	}

	for i, n := range w.Nodes {
		if err := insertNode(ctx, tx, w.ID, i, n); err != nil {
			return workflow.Workflow{}, err
		}
	}
	for i, e := range w.Edges {
		if err := insertEdge(ctx, tx, w.ID, i, e); err != nil {
			return workflow.Workflow{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return workflow.Workflow{}, fmt.Errorf("workflow: commit: %w", err)
	}

	// created_at is kept from the first save.
	stored, err := s.GetWorkflow(ctx, w.ID)
	if err != nil {
		return workflow.Workflow{}, err
	}
	if stored == nil {
		return workflow.Workflow{}, workflow.ErrWorkflowNotFound
	}
	return *stored, nil
}

func withGraph(dst, src workflow.Workflow) workflow.Workflow {
	dst.Nodes, dst.Edges = src.Nodes, src.Edges
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	return dst
}

// GetWorkflow retrieves a full workflow (nodes + edges) by its ID.
// Returns nil, nil if the workflow doesn't exist.
func (s *PGStore) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	return loadWorkflow(ctx, s.db, workflowID, false)
}

// loadWorkflow reads a workflow through q. With lock set the workflow row is
// locked for the rest of the transaction, serializing graph mutations.
func loadWorkflow(ctx context.Context, q querier, workflowID string, lock bool) (*workflow.Workflow, error) {
	query := `SELECT id, name, created_at, updated_at FROM workflows WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	w := workflow.Workflow{Nodes: []workflow.Node{}, Edges: []workflow.Edge{}}
	err := q.QueryRow(ctx, query, workflowID).Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: get workflow: %w", err)
	}
	w.CreatedAt, w.UpdatedAt = w.CreatedAt.UTC(), w.UpdatedAt.UTC()

	rows, err := q.Query(ctx,
		`SELECT data FROM workflow_nodes WHERE workflow_id = $1 ORDER BY seq`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow: query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("workflow: scan node: %w", err)
		}
		var n workflow.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("workflow: decode node: %w", err)
		}
		w.Nodes = append(w.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows nodes: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT id, from_node_id, to_node_id FROM workflow_edges WHERE workflow_id = $1 ORDER BY seq`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow: query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e workflow.Edge
		if err := rows.Scan(&e.ID, &e.FromNodeID, &e.ToNodeID); err != nil {
			return nil, fmt.Errorf("workflow: scan edge: %w", err)
		}
		w.Edges = append(w.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows edges: %w", err)
	}

	return &w, nil
}

// ListWorkflows returns every workflow, most recently updated first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM workflows ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("workflow: list workflows: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("workflow: scan workflow id: %w", err)
	}

	out := make([]workflow.Workflow, 0, len(ids))
	for _, id := range ids {
		w, err := s.GetWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}
		// Deleted between the two queries.
		if w == nil {
			continue
		}
		out = append(out, *w)
	}
	return out, nil
}

// DeleteWorkflow removes a workflow with all of its nodes and edges.
// Run records are kept. No error if the workflow doesn't exist.
func (s *PGStore) DeleteWorkflow(ctx context.Context, workflowID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM workflow_edges WHERE workflow_id = $1`, workflowID); err != nil {
		return fmt.Errorf("workflow: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, workflowID); err != nil {
		return fmt.Errorf("workflow: delete nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, workflowID); err != nil {
		return fmt.Errorf("workflow: delete workflow: %w", err)
	}

	return tx.Commit(ctx)
}

// mutate loads the workflow under a row lock, lets apply run a pure graph
// mutation and persist its effect on tx, then bumps updated_at and commits.
func (s *PGStore) mutate(ctx context.Context, workflowID string, apply func(tx pgx.Tx, w workflow.Workflow) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := loadWorkflow(ctx, tx, workflowID, true)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, workflowID)
	}

	if err := apply(tx, *w); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE workflows SET updated_at = NOW() WHERE id = $1`, workflowID); err != nil {
		return fmt.Errorf("workflow: touch workflow: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("workflow: commit: %w", err)
	}
	return nil
}
