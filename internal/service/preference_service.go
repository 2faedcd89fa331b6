package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// PreferenceService manages a user's notification rules.
type PreferenceService struct {
	rules repository.RuleRepository
}

// NewPreferenceService constructs preference service.
func NewPreferenceService(rules repository.RuleRepository) *PreferenceService {
	return &PreferenceService{rules: rules}
}

// ListRules returns the caller's rules across channels.
func (s *PreferenceService) ListRules(ctx context.Context, principal auth.Principal) ([]domain.NotificationRule, error) {
	return s.rules.ListAllForUser(ctx, principal.Actor.UserID)
}

// ReplaceRules swaps the caller's full rule set after validating it.
// Unknown operators would otherwise silently evaluate to no-match, so they
// are rejected here instead.
func (s *PreferenceService) ReplaceRules(ctx context.Context, principal auth.Principal, rules []domain.NotificationRule) error {
	for i, rule := range rules {
		if rule.Channel != domain.ChannelEmail && rule.Channel != domain.ChannelSMS {
			return apperrors.NewValidationError(fmt.Sprintf("rule %d: unknown channel %q", i, rule.Channel), nil)
		}
		for _, et := range rule.EventTypes {
			if !validEventType(et) {
				return apperrors.NewValidationError(fmt.Sprintf("rule %d: unknown event type %q", i, et), nil)
			}
		}
		if err := validateConditions(rule.Conditions, 0); err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("rule %d: %v", i, err), nil)
		}
	}
	return s.rules.ReplaceForUser(ctx, principal.Actor.UserID, rules)
}

func validEventType(et string) bool {
	switch domain.NotificationEventType(et) {
	case domain.EventCreated, domain.EventThreadNew, domain.EventAssignmentChanged,
		domain.EventPriorityChanged, domain.EventStatusChanged, domain.EventCategoryChanged:
		return true
	}
	return false
}

const maxConditionDepth = 32

func validateConditions(node domain.ConditionNode, depth int) error {
	if depth > maxConditionDepth {
		return fmt.Errorf("condition tree too deep")
	}
	switch node.Operator {
	case domain.OperatorAnd, domain.OperatorOr:
		for _, child := range node.Rules {
			if err := validateConditions(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	case domain.OperatorEquals, domain.OperatorIn, domain.OperatorIsTrue, domain.OperatorIsFalse, domain.OperatorAny:
		if node.Field == "" && node.Operator != domain.OperatorAny {
			return fmt.Errorf("atomic condition missing field")
		}
		return nil
	case "":
		// An empty node is permitted and matches everything.
		if len(node.Rules) == 0 && node.Field == "" {
			return nil
		}
		return fmt.Errorf("condition node missing operator")
	}
	return fmt.Errorf("unknown operator %q", node.Operator)
}
