package api

import (
	"github.com/gofiber/fiber/v3"
)

func (h *handler) buildContext(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if w == nil {
		return err
	}
	ec, err := h.builder.Build(c.Context(), *w, c.Params("nodeId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ec)
}

func (h *handler) contextSummary(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if w == nil {
		return err
	}
	ec, err := h.builder.Build(c.Context(), *w, c.Params("nodeId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"summary": ec.Summary(),
		"counts":  ec.InputsPreview.Counts,
		"omitted": ec.Trace.Omitted,
	})
}
