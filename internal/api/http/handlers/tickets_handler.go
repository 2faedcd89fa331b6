package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

func requirePrincipal(c *fiber.Ctx) (auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return *principal, nil
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), principal, service.TicketCreateInput{
		Subject:    req.Subject,
		CategoryID: req.CategoryID,
		PriorityID: req.PriorityID,
		TeamID:     req.TeamID,
		Body:       req.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// ListAccessible GET /tickets/accessible.
func (h *TicketsHandler) ListAccessible(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	accesses, err := h.service.AccessibleTickets(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AccessEntriesFromDomain(accesses)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// GetAudience GET /tickets/:id/audience.
func (h *TicketsHandler) GetAudience(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	audience, err := h.service.Audience(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AudienceFromDomain(audience)})
}

// GetHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	changes, err := h.service.History(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ChangeResponse, 0, len(changes))
	for i := range changes {
		items = append(items, dto.ChangeFromDomain(&changes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ChangeAssignment POST /tickets/:id/assignment.
func (h *TicketsHandler) ChangeAssignment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.ChangeAssignment(c.UserContext(), principal, c.Params("id"), service.AssignmentInput{
		TeamID:     req.TeamID,
		UserTeamID: req.UserTeamID,
	}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangeCategory POST /tickets/:id/category.
func (h *TicketsHandler) ChangeCategory(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil || req.CategoryID == "" {
		return apperrors.NewValidationError("category_id is required", nil)
	}
	if err := h.service.ChangeCategory(c.UserContext(), principal, c.Params("id"), req.CategoryID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangePriority POST /tickets/:id/priority.
func (h *TicketsHandler) ChangePriority(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PriorityRequest
	if err := c.BodyParser(&req); err != nil || req.PriorityID == "" {
		return apperrors.NewValidationError("priority_id is required", nil)
	}
	if err := h.service.ChangePriority(c.UserContext(), principal, c.Params("id"), req.PriorityID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return apperrors.NewValidationError("status is required", nil)
	}
	if err := h.service.ChangeStatus(c.UserContext(), principal, c.Params("id"), domain.TicketStatus(req.Status)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddThread POST /tickets/:id/threads.
func (h *TicketsHandler) AddThread(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	thread, err := h.service.AddThread(c.UserContext(), principal, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.ThreadFromDomain(thread)})
}

// ListThreads GET /tickets/:id/threads.
func (h *TicketsHandler) ListThreads(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	threads, err := h.service.Threads(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ThreadResponse, 0, len(threads))
	for i := range threads {
		items = append(items, dto.ThreadFromDomain(&threads[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
