package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// PreferencesHandler manages a user's notification rules.
type PreferencesHandler struct {
	service *service.PreferenceService
}

// NewPreferencesHandler constructs handler.
func NewPreferencesHandler(prefService *service.PreferenceService) *PreferencesHandler {
	return &PreferencesHandler{service: prefService}
}

// ListRules GET /me/notification-rules.
func (h *PreferencesHandler) ListRules(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	rules, err := h.service.ListRules(c.UserContext(), principal)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, dto.RuleFromDomain(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ReplaceRules PUT /me/notification-rules.
func (h *PreferencesHandler) ReplaceRules(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req struct {
		Rules []dto.NotificationRuleRequest `json:"rules"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rules := make([]domain.NotificationRule, 0, len(req.Rules))
	for _, r := range req.Rules {
		rules = append(rules, dto.RuleToDomain(r))
	}
	if err := h.service.ReplaceRules(c.UserContext(), principal, rules); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
