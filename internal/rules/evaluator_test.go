package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func atomic(op domain.ConditionOperator, field string, value any) domain.ConditionNode {
	return domain.ConditionNode{Operator: op, Field: field, Value: value}
}

func TestEvaluateEmptyCombinators(t *testing.T) {
	ctx := Context{"priority": "HIGH"}

	assert.True(t, Evaluate(domain.ConditionNode{Operator: domain.OperatorAnd}, ctx),
		"and over no rules is vacuously true")
	assert.False(t, Evaluate(domain.ConditionNode{Operator: domain.OperatorOr}, ctx),
		"or over no rules is vacuously false")
}

func TestEvaluateAtomicOperators(t *testing.T) {
	ctx := Context{
		"priority":   "HIGH",
		"teamId":     "5",
		"isFirst":    true,
		"isInternal": false,
	}

	assert.True(t, Evaluate(atomic(domain.OperatorEquals, "priority", "HIGH"), ctx))
	assert.False(t, Evaluate(atomic(domain.OperatorEquals, "priority", "LOW"), ctx))
	assert.False(t, Evaluate(atomic(domain.OperatorEquals, "missing", "x"), ctx))

	assert.True(t, Evaluate(atomic(domain.OperatorIn, "priority", []any{"LOW", "HIGH"}), ctx))
	assert.False(t, Evaluate(atomic(domain.OperatorIn, "priority", []any{"LOW"}), ctx))
	assert.False(t, Evaluate(atomic(domain.OperatorIn, "priority", "notalist"), ctx))

	assert.True(t, Evaluate(atomic(domain.OperatorIsTrue, "isFirst", nil), ctx))
	assert.False(t, Evaluate(atomic(domain.OperatorIsTrue, "isInternal", nil), ctx))
	assert.True(t, Evaluate(atomic(domain.OperatorIsFalse, "isInternal", nil), ctx))
	assert.False(t, Evaluate(atomic(domain.OperatorIsTrue, "missing", nil), ctx))

	assert.True(t, Evaluate(atomic(domain.OperatorAny, "", nil), Context{}))
}

func TestEvaluateNumericStringEquality(t *testing.T) {
	// JSON decoding yields float64 for numbers; rules comparing against id
	// fields stored as strings should still match.
	ctx := Context{"categoryId": "7"}
	assert.True(t, Evaluate(atomic(domain.OperatorEquals, "categoryId", float64(7)), ctx))
}

func TestEvaluateEqualsDoesNotCoerceBools(t *testing.T) {
	// The numeric/string coercion must not widen into bools; "true" is a
	// string, not the boolean. is_true exists for boolean fields.
	ctx := Context{"isFirst": true}
	assert.False(t, Evaluate(atomic(domain.OperatorEquals, "isFirst", "true"), ctx))
	assert.True(t, Evaluate(atomic(domain.OperatorEquals, "isFirst", true), ctx))
}

func TestEvaluateNestedTree(t *testing.T) {
	tree := domain.ConditionNode{
		Operator: domain.OperatorAnd,
		Rules: []domain.ConditionNode{
			atomic(domain.OperatorEquals, "eventType", "STATUS_CHANGED"),
			{
				Operator: domain.OperatorOr,
				Rules: []domain.ConditionNode{
					atomic(domain.OperatorEquals, "toStatus", "CLOSED"),
					atomic(domain.OperatorEquals, "toStatus", "RESOLVED"),
				},
			},
		},
	}

	assert.True(t, Evaluate(tree, Context{"eventType": "STATUS_CHANGED", "toStatus": "CLOSED"}))
	assert.True(t, Evaluate(tree, Context{"eventType": "STATUS_CHANGED", "toStatus": "RESOLVED"}))
	assert.False(t, Evaluate(tree, Context{"eventType": "STATUS_CHANGED", "toStatus": "OPEN"}))
	assert.False(t, Evaluate(tree, Context{"eventType": "THREAD_NEW", "toStatus": "CLOSED"}))
}

func TestEvaluateUnknownOperatorIsFalse(t *testing.T) {
	assert.False(t, Evaluate(domain.ConditionNode{Operator: "between", Field: "x"}, Context{"x": 1}))
}

func TestEvaluateDepthBound(t *testing.T) {
	// Build a chain deeper than the bound; it must evaluate to false, not
	// blow the stack.
	node := atomic(domain.OperatorAny, "", nil)
	for i := 0; i < maxDepth+5; i++ {
		node = domain.ConditionNode{Operator: domain.OperatorAnd, Rules: []domain.ConditionNode{node}}
	}
	assert.False(t, Evaluate(node, Context{}))
}

func TestRuleApplies(t *testing.T) {
	rule := domain.NotificationRule{
		Channel:    domain.ChannelEmail,
		EventTypes: []string{"CREATED", "STATUS_CHANGED"},
		Conditions: domain.ConditionNode{Operator: domain.OperatorAnd},
		Enabled:    true,
	}
	ctx := Context{}

	assert.True(t, RuleApplies(rule, domain.EventCreated, ctx))
	assert.False(t, RuleApplies(rule, domain.EventPriorityChanged, ctx), "event type not listed")

	rule.Enabled = false
	assert.False(t, RuleApplies(rule, domain.EventCreated, ctx), "disabled rule never applies")
}
