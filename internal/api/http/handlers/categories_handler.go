package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/category"
)

// CategoriesHandler exposes the caller's category closure.
type CategoriesHandler struct {
	resolver *category.Resolver
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(resolver *category.Resolver) *CategoriesHandler {
	return &CategoriesHandler{resolver: resolver}
}

// ListAccessible GET /categories/accessible.
func (h *CategoriesHandler) ListAccessible(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ids, err := h.resolver.AccessibleCategoryIDs(c.UserContext(), principal.Actor)
	if err != nil {
		return err
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return c.JSON(fiber.Map{"data": out})
}
