package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/execctx"
	"github.com/meikuraledutech/workflow/postgres"
	"github.com/meikuraledutech/workflow/run"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// Wire up the postgres implementation behind the Store interface.
	pg := postgres.New(pool)
	var store workflow.Store = pg

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Records the input nodes point at ──────────────────────────────
	for _, rec := range []execctx.Record{
		{ID: "P1", Kind: execctx.RecordProduct, Title: "Acme Widget", Payload: json.RawMessage(`{"name":"Acme Widget","price":"$49"}`)},
		{ID: "PE1", Kind: execctx.RecordPersona, Title: "Busy parent", Payload: json.RawMessage(`{"age":"30-45","pain":"no time"}`)},
		{ID: "K1", Kind: execctx.RecordKnowledge, Title: "Reviews", Payload: json.RawMessage(`{"stars":4.6}`)},
	} {
		if err := pg.PutRecord(ctx, rec); err != nil {
			log.Fatalf("put record: %v", err)
		}
	}

	// ── Bulk save ─────────────────────────────────────────────────────
	w := workflow.New("spring-campaign", "Spring campaign")
	w.Nodes = []workflow.Node{
		{ID: "Intent1", Type: workflow.NodeTypeInput, Label: "Goal", Input: &workflow.InputData{
			Kind:   workflow.InputIntent,
			Intent: &workflow.IntentPayload{Goal: "Increase signups", SuccessCriteria: "+10% CVR"},
		}},
		{ID: "Product1", Type: workflow.NodeTypeInput, Input: &workflow.InputData{Kind: workflow.InputProduct, RefID: "P1"}},
		{ID: "Persona1", Type: workflow.NodeTypeInput, Input: &workflow.InputData{Kind: workflow.InputPersona, RefID: "PE1"}},
		{ID: "Agent1", Type: workflow.NodeTypeAgent, Label: "LP writer", Agent: &workflow.AgentData{AgentDefinitionID: "lp-writer"}},
	}
	w.Edges = []workflow.Edge{
		{ID: "e1", FromNodeID: "Product1", ToNodeID: "Agent1"},
		{ID: "e2", FromNodeID: "Persona1", ToNodeID: "Agent1"},
		{ID: "e3", FromNodeID: "Intent1", ToNodeID: "Agent1"},
	}

	saved, err := store.SaveWorkflow(ctx, w)
	if err != nil {
		log.Fatalf("save workflow: %v", err)
	}
	fmt.Println("workflow saved")
	printJSON(saved)

	// ── Granular: add a knowledge node and connect it ─────────────────
	kb, err := store.AddNode(ctx, saved.ID, workflow.Node{
		Type:  workflow.NodeTypeInput,
		Input: &workflow.InputData{Kind: workflow.InputKnowledge, RefID: "K1"},
	})
	if err != nil {
		log.Fatalf("add node: %v", err)
	}
	fmt.Printf("\nadded node: %s\n", kb.ID)

	edge, err := store.AddConnection(ctx, saved.ID, kb.ID, "Agent1")
	if err != nil {
		log.Fatalf("add connection: %v", err)
	}
	fmt.Printf("added edge: %s\n", edge.ID)

	// ── Rejected connections ──────────────────────────────────────────
	_, err = store.AddConnection(ctx, saved.ID, "Agent1", "Product1")
	var cerr *workflow.ConnectionError
	if errors.As(err, &cerr) {
		fmt.Printf("\nrejected Agent1 → Product1: %s\n", cerr.Reason)
	}

	// ── Execution context ─────────────────────────────────────────────
	current, err := store.GetWorkflow(ctx, saved.ID)
	if err != nil || current == nil {
		log.Fatalf("get workflow: %v", err)
	}
	builder := execctx.NewBuilder(execctx.BuilderConfig{Resolver: pg})
	ec, err := builder.Build(ctx, *current, "Agent1")
	if err != nil {
		log.Fatalf("build context: %v", err)
	}
	fmt.Println("\nexecution context:")
	fmt.Print(ec.Summary())

	// ── Runs and the output listing ───────────────────────────────────
	runDoc, err := json.Marshal(map[string]any{
		"nodeId":      "Agent1",
		"agentId":     "lp-writer",
		"status":      "success",
		"finalOutput": map[string]any{"sections": []string{"fv", "benefits", "cta"}},
		"validation":  map[string]any{"ok": true},
		"inputs":      run.SnapshotFromContext(ec),
	})
	if err != nil {
		log.Fatalf("encode run: %v", err)
	}
	runID, err := store.SaveRun(ctx, runDoc)
	if err != nil {
		log.Fatalf("save run: %v", err)
	}
	fmt.Printf("\nsaved run: %s\n", runID)

	docs, err := store.ListRuns(ctx, saved.ID)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	printJSON(run.List(docs, *current, run.ListOptions{}))

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteWorkflow(ctx, saved.ID); err != nil {
		log.Fatalf("delete workflow: %v", err)
	}
	fmt.Println("\nworkflow deleted")
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
