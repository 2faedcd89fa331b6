package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationRuleRequest is one rule in a preference update. Conditions is
// the raw rule tree; an absent tree matches every listed event type.
type NotificationRuleRequest struct {
	Channel    string               `json:"channel"`
	EventTypes []string             `json:"event_types"`
	Conditions domain.ConditionNode `json:"conditions"`
	Enabled    bool                 `json:"enabled"`
}

// NotificationRuleResponse is the external rule shape.
type NotificationRuleResponse struct {
	ID         string               `json:"id"`
	Channel    string               `json:"channel"`
	EventTypes []string             `json:"event_types"`
	Conditions domain.ConditionNode `json:"conditions"`
	Enabled    bool                 `json:"enabled"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// RuleFromDomain maps a stored rule.
func RuleFromDomain(r *domain.NotificationRule) NotificationRuleResponse {
	return NotificationRuleResponse{
		ID:         r.ID,
		Channel:    string(r.Channel),
		EventTypes: r.EventTypes,
		Conditions: r.Conditions,
		Enabled:    r.Enabled,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// RuleToDomain maps an incoming rule.
func RuleToDomain(r NotificationRuleRequest) domain.NotificationRule {
	return domain.NotificationRule{
		Channel:    domain.NotificationChannel(r.Channel),
		EventTypes: r.EventTypes,
		Conditions: r.Conditions,
		Enabled:    r.Enabled,
	}
}
