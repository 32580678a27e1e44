package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/workflow"
)

func (h *handler) createSchema(c fiber.Ctx) error {
	if err := h.store.CreateSchema(c.Context()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (h *handler) dropSchema(c fiber.Ctx) error {
	if err := h.store.DropSchema(c.Context()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}

func (h *handler) saveWorkflow(c fiber.Ctx) error {
	var w workflow.Workflow
	if err := c.Bind().JSON(&w); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	saved, err := h.store.SaveWorkflow(c.Context(), w)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(201).JSON(saved)
}

func (h *handler) listWorkflows(c fiber.Ctx) error {
	ws, err := h.store.ListWorkflows(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ws)
}

func (h *handler) getWorkflow(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if w == nil {
		return err
	}
	return c.JSON(w)
}

func (h *handler) deleteWorkflow(c fiber.Ctx) error {
	if err := h.store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(204)
}

func (h *handler) addNode(c fiber.Ctx) error {
	var node workflow.Node
	if err := c.Bind().JSON(&node); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	added, err := h.store.AddNode(c.Context(), c.Params("id"), node)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(201).JSON(added)
}

func (h *handler) deleteNode(c fiber.Ctx) error {
	if err := h.store.DeleteNode(c.Context(), c.Params("id"), c.Params("nodeId")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(204)
}

type connectionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *handler) addConnection(c fiber.Ctx) error {
	var req connectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	edge, err := h.store.AddConnection(c.Context(), c.Params("id"), req.From, req.To)
	if err != nil {
		var cerr *workflow.ConnectionError
		if errors.As(err, &cerr) && h.metrics != nil {
			h.metrics.ConnectionRejected(rejectionCause(err))
		}
		return h.fail(c, err)
	}
	return c.Status(201).JSON(edge)
}

// checkConnection previews AddConnection without writing anything.
func (h *handler) checkConnection(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if w == nil {
		return err
	}
	if _, _, err := w.AddConnection(c.Query("from"), c.Query("to")); err != nil {
		var cerr *workflow.ConnectionError
		if errors.As(err, &cerr) {
			return c.JSON(workflow.Verdict{Reason: cerr.Reason})
		}
		return h.fail(c, err)
	}
	return c.JSON(workflow.Verdict{Allowed: true})
}

func (h *handler) deleteEdge(c fiber.Ctx) error {
	if err := h.store.DeleteEdge(c.Context(), c.Params("id"), c.Params("edgeId")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(204)
}
