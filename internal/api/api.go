// Package api exposes the workflow engine over HTTP with fiber.
package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/execctx"
	"github.com/meikuraledutech/workflow/internal/metrics"
	"github.com/meikuraledutech/workflow/run"
)

// Config holds the dependencies of the HTTP surface.
type Config struct {
	Store    workflow.Store
	Resolver execctx.Resolver
	Logger   *slog.Logger
	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.Metrics

	PreviewLimit        int
	LowQualityThreshold int
	Definitions         run.DefinitionLookup
}

type handler struct {
	store    workflow.Store
	builder  *execctx.Builder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	listOpts run.ListOptions
}

// New returns a fiber app with every route registered.
func New(cfg Config) *fiber.App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{store: cfg.Store, logger: logger, metrics: cfg.Metrics}

	bc := execctx.BuilderConfig{Resolver: cfg.Resolver, Logger: logger, PreviewLimit: cfg.PreviewLimit}
	h.listOpts = run.ListOptions{
		ListingOptions:      run.ListingOptions{Definitions: cfg.Definitions},
		LowQualityThreshold: cfg.LowQualityThreshold,
	}
	// A typed nil would satisfy the interfaces and panic on use.
	if cfg.Metrics != nil {
		bc.Recorder = cfg.Metrics
		h.listOpts.Recorder = cfg.Metrics
	}
	h.builder = execctx.NewBuilder(bc)

	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", h.createSchema)
	app.Delete("/schema", h.dropSchema)

	// ── Workflows ─────────────────────────────────────────────────────
	app.Post("/workflows", h.saveWorkflow)
	app.Get("/workflows", h.listWorkflows)
	app.Get("/workflows/:id", h.getWorkflow)
	app.Delete("/workflows/:id", h.deleteWorkflow)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/workflows/:id/nodes", h.addNode)
	app.Delete("/workflows/:id/nodes/:nodeId", h.deleteNode)

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/workflows/:id/connections", h.addConnection)
	app.Get("/workflows/:id/connections/check", h.checkConnection)
	app.Delete("/workflows/:id/edges/:edgeId", h.deleteEdge)

	// ── Execution context ─────────────────────────────────────────────
	app.Get("/workflows/:id/agents/:nodeId/context", h.buildContext)
	app.Get("/workflows/:id/agents/:nodeId/context/summary", h.contextSummary)

	// ── Runs ──────────────────────────────────────────────────────────
	app.Post("/runs", h.saveRun)
	app.Get("/workflows/:id/outputs", h.listOutputs)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	return app
}

// loadWorkflow fetches the :id workflow, writing a 404 or 500 when it can't.
func (h *handler) loadWorkflow(c fiber.Ctx) (*workflow.Workflow, error) {
	w, err := h.store.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return nil, h.fail(c, err)
	}
	if w == nil {
		return nil, c.Status(404).JSON(fiber.Map{"error": "workflow not found"})
	}
	return w, nil
}

// fail maps an error to a status code and writes it.
func (h *handler) fail(c fiber.Ctx, err error) error {
	var cerr *workflow.ConnectionError
	switch {
	case errors.As(err, &cerr):
		status := 422
		if errors.Is(err, workflow.ErrNodeNotFound) {
			status = 404
		}
		return c.Status(status).JSON(fiber.Map{"error": cerr.Err.Error(), "reason": cerr.Reason})
	case errors.Is(err, workflow.ErrWorkflowNotFound),
		errors.Is(err, workflow.ErrNodeNotFound),
		errors.Is(err, workflow.ErrEdgeNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, workflow.ErrCycleDetected),
		errors.Is(err, workflow.ErrConnectionNotAllowed),
		errors.Is(err, workflow.ErrDuplicateEdge),
		errors.Is(err, workflow.ErrDuplicateNode),
		errors.Is(err, workflow.ErrInvalidNode),
		errors.Is(err, workflow.ErrInvalidRun):
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}
	h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

// rejectionCause labels a rejected connection for metrics.
func rejectionCause(err error) string {
	switch {
	case errors.Is(err, workflow.ErrCycleDetected):
		return "cycle"
	case errors.Is(err, workflow.ErrDuplicateEdge):
		return "duplicate"
	case errors.Is(err, workflow.ErrNodeNotFound):
		return "node_not_found"
	default:
		return "not_allowed"
	}
}
