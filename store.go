package workflow

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrCycleDetected        = errors.New("workflow: cycle detected, graph must remain a DAG")
	ErrConnectionNotAllowed = errors.New("workflow: connection not allowed")
	ErrDuplicateEdge        = errors.New("workflow: edge already exists")
	ErrDuplicateNode        = errors.New("workflow: node already exists")
	ErrInvalidNode          = errors.New("workflow: invalid node")
	ErrNodeNotFound         = errors.New("workflow: node not found")
	ErrEdgeNotFound         = errors.New("workflow: edge not found")
	ErrWorkflowNotFound     = errors.New("workflow: workflow not found")
	ErrInvalidRun           = errors.New("workflow: run record must be a JSON object")
)

// Store defines the contract for persisting workflows and their run records.
// Node and edge operations go through the pure mutation functions of this
// package so that the acyclicity gate cannot be bypassed by a store.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Workflow (bulk operations)
	SaveWorkflow(ctx context.Context, w Workflow) (Workflow, error)
	GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	DeleteWorkflow(ctx context.Context, workflowID string) error

	// Nodes
	AddNode(ctx context.Context, workflowID string, node Node) (Node, error)
	DeleteNode(ctx context.Context, workflowID, nodeID string) error

	// Edges
	AddConnection(ctx context.Context, workflowID, fromID, toID string) (Edge, error)
	DeleteEdge(ctx context.Context, workflowID, edgeID string) error

	// Runs are opaque JSON documents; normalization happens on read.
	SaveRun(ctx context.Context, raw json.RawMessage) (string, error)
	ListRuns(ctx context.Context, workflowID string) ([]json.RawMessage, error)
}
