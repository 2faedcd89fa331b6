package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

type fakeRuleRepo struct {
	stored map[string][]domain.NotificationRule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{stored: make(map[string][]domain.NotificationRule)}
}

func (f *fakeRuleRepo) ListForUser(_ context.Context, userID string, channel domain.NotificationChannel) ([]domain.NotificationRule, error) {
	var out []domain.NotificationRule
	for _, r := range f.stored[userID] {
		if r.Channel == channel {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) ListAllForUser(_ context.Context, userID string) ([]domain.NotificationRule, error) {
	return f.stored[userID], nil
}

func (f *fakeRuleRepo) ReplaceForUser(_ context.Context, userID string, rules []domain.NotificationRule) error {
	f.stored[userID] = rules
	return nil
}

func userPrincipal(id string) auth.Principal {
	return auth.Principal{Actor: domain.Actor{UserID: id}}
}

func TestReplaceRulesStoresValidSet(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewPreferenceService(repo)

	rules := []domain.NotificationRule{
		{
			Channel:    domain.ChannelEmail,
			EventTypes: []string{"CREATED", "STATUS_CHANGED"},
			Conditions: domain.ConditionNode{
				Operator: domain.OperatorAnd,
				Rules: []domain.ConditionNode{
					{Operator: domain.OperatorEquals, Field: "priorityId", Value: "p-high"},
				},
			},
			Enabled: true,
		},
		{
			Channel:    domain.ChannelSMS,
			EventTypes: []string{"ASSIGNMENT_CHANGED"},
			Enabled:    true,
		},
	}
	require.NoError(t, svc.ReplaceRules(context.Background(), userPrincipal("u1"), rules))

	stored, err := svc.ListRules(context.Background(), userPrincipal("u1"))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReplaceRulesRejectsUnknownChannel(t *testing.T) {
	svc := NewPreferenceService(newFakeRuleRepo())
	err := svc.ReplaceRules(context.Background(), userPrincipal("u1"), []domain.NotificationRule{
		{Channel: "pigeon", EventTypes: []string{"CREATED"}},
	})
	assert.Error(t, err)
}

func TestReplaceRulesRejectsUnknownEventType(t *testing.T) {
	svc := NewPreferenceService(newFakeRuleRepo())
	err := svc.ReplaceRules(context.Background(), userPrincipal("u1"), []domain.NotificationRule{
		{Channel: domain.ChannelEmail, EventTypes: []string{"TICKET_EXPLODED"}},
	})
	assert.Error(t, err)
}

func TestReplaceRulesRejectsUnknownOperator(t *testing.T) {
	svc := NewPreferenceService(newFakeRuleRepo())
	err := svc.ReplaceRules(context.Background(), userPrincipal("u1"), []domain.NotificationRule{
		{
			Channel:    domain.ChannelEmail,
			EventTypes: []string{"CREATED"},
			Conditions: domain.ConditionNode{Operator: "xor"},
		},
	})
	assert.Error(t, err)
}

func TestReplaceRulesAllowsEmptyConditions(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewPreferenceService(repo)
	err := svc.ReplaceRules(context.Background(), userPrincipal("u1"), []domain.NotificationRule{
		{Channel: domain.ChannelEmail, EventTypes: []string{"CREATED"}, Enabled: true},
	})
	assert.NoError(t, err)
}
