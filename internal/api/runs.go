package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/workflow/run"
)

func (h *handler) saveRun(c fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	// fiber reuses the request buffer.
	raw := make(json.RawMessage, len(body))
	copy(raw, body)

	id, err := h.store.SaveRun(c.Context(), raw)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"id": id})
}

// listOutputs returns the runs shown for a workflow. ?all=true keeps error
// runs; ?debug=true adds the excluded runs with their reasons.
func (h *handler) listOutputs(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if w == nil {
		return err
	}
	docs, err := h.store.ListRuns(c.Context(), w.ID)
	if err != nil {
		return h.fail(c, err)
	}

	opts := h.listOpts
	opts.AllStatuses = c.Query("all") == "true"
	res := run.List(docs, *w, opts)

	if c.Query("debug") != "true" {
		return c.JSON(fiber.Map{"included": res.Included})
	}
	return c.JSON(res)
}
