package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// PrioritiesHandler exposes priority reference data.
type PrioritiesHandler struct {
	priorities repository.PriorityRepository
}

// NewPrioritiesHandler constructs handler.
func NewPrioritiesHandler(priorities repository.PriorityRepository) *PrioritiesHandler {
	return &PrioritiesHandler{priorities: priorities}
}

// List GET /priorities.
func (h *PrioritiesHandler) List(c *fiber.Ctx) error {
	if _, err := requirePrincipal(c); err != nil {
		return err
	}
	priorities, err := h.priorities.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(priorities))
	for _, p := range priorities {
		out = append(out, fiber.Map{"id": p.ID, "name": p.Name, "order": p.Order})
	}
	return c.JSON(fiber.Map{"data": out})
}
