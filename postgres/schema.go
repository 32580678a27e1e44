package postgres

import "context"

// Run documents and record payloads are JSON, not JSONB, so they come back
// with their original key order and spacing.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS workflows (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS workflow_nodes (
    workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    data        JSONB NOT NULL,
    PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS workflow_edges (
    workflow_id  TEXT NOT NULL,
    id           TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    from_node_id TEXT NOT NULL,
    to_node_id   TEXT NOT NULL,
    PRIMARY KEY (workflow_id, id),
    UNIQUE (workflow_id, from_node_id, to_node_id),
    FOREIGN KEY (workflow_id, from_node_id) REFERENCES workflow_nodes(workflow_id, id) ON DELETE CASCADE,
    FOREIGN KEY (workflow_id, to_node_id)   REFERENCES workflow_nodes(workflow_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS workflow_runs (
    id          TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL DEFAULT '',
    node_id     TEXT NOT NULL DEFAULT '',
    data        JSON NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS records (
    kind          TEXT NOT NULL,
    id            TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    payload       JSON NOT NULL DEFAULT 'null',
    evidence_refs TEXT[] NOT NULL DEFAULT '{}',
    PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_workflow_edges_from ON workflow_edges(workflow_id, from_node_id);
CREATE INDEX IF NOT EXISTS idx_workflow_edges_to   ON workflow_edges(workflow_id, to_node_id);
CREATE INDEX IF NOT EXISTS idx_workflow_runs_wf    ON workflow_runs(workflow_id);
CREATE INDEX IF NOT EXISTS idx_workflow_runs_node  ON workflow_runs(node_id);
`

// CreateSchema creates the workflow, run and record tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table CreateSchema creates.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS workflow_edges, workflow_nodes, workflows, workflow_runs, records CASCADE;`)
	return err
}
