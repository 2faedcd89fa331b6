// Package rules implements the boolean-expression interpreter for
// user-authored notification rule trees.
package rules

import (
	"fmt"
	"reflect"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// maxDepth bounds recursion over nested condition trees. User-supplied
// trees deeper than this evaluate to false instead of risking the stack.
const maxDepth = 32

// Context is the flat field map an event exposes to rule conditions.
type Context map[string]any

// Evaluate runs a condition tree against an event context. It is total: an
// unknown operator, a missing field, or an over-deep tree evaluates to
// false, never panics or errors.
//
// Combining semantics: "and" over zero children is vacuously true, "or"
// over zero children is vacuously false.
func Evaluate(node domain.ConditionNode, ctx Context) bool {
	return evaluate(node, ctx, 0)
}

func evaluate(node domain.ConditionNode, ctx Context, depth int) bool {
	if depth > maxDepth {
		return false
	}

	switch node.Operator {
	case domain.OperatorAnd:
		for _, child := range node.Rules {
			if !evaluate(child, ctx, depth+1) {
				return false
			}
		}
		return true
	case domain.OperatorOr:
		for _, child := range node.Rules {
			if evaluate(child, ctx, depth+1) {
				return true
			}
		}
		return false
	default:
		return evaluateAtomic(node, ctx)
	}
}

func evaluateAtomic(node domain.ConditionNode, ctx Context) bool {
	switch node.Operator {
	case domain.OperatorAny:
		return true
	case domain.OperatorEquals:
		val, ok := ctx[node.Field]
		if !ok {
			return false
		}
		return looseEqual(val, node.Value)
	case domain.OperatorIn:
		val, ok := ctx[node.Field]
		if !ok {
			return false
		}
		return contains(node.Value, val)
	case domain.OperatorIsTrue:
		return truthy(ctx[node.Field])
	case domain.OperatorIsFalse:
		return !truthy(ctx[node.Field])
	}
	return false
}

// looseEqual compares context and rule values. Rule trees arrive from JSON,
// so numbers are float64 and ids are strings; comparing string forms keeps
// "5" equal to 5 the way user-authored rules expect. The coercion covers
// only numeric and string values; anything else must match exactly, so a
// bool never equals the string "true".
func looseEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if !stringComparable(a) || !stringComparable(b) {
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func stringComparable(v any) bool {
	switch v.(type) {
	case string, int, int32, int64, float32, float64:
		return true
	}
	return false
}

func contains(list any, val any) bool {
	rv := reflect.ValueOf(list)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(rv.Index(i).Interface(), val) {
			return true
		}
	}
	return false
}

func truthy(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// RuleApplies gates a top-level rule before its condition tree is touched:
// the rule must be enabled and list the (normalized) event type.
func RuleApplies(rule domain.NotificationRule, eventType domain.NotificationEventType, ctx Context) bool {
	if !rule.Enabled {
		return false
	}
	listed := false
	for _, t := range rule.EventTypes {
		if t == string(eventType) {
			listed = true
			break
		}
	}
	if !listed {
		return false
	}
	// A rule saved without a condition tree matches every listed event.
	if rule.Conditions.Operator == "" && len(rule.Conditions.Rules) == 0 {
		return true
	}
	return Evaluate(rule.Conditions, ctx)
}
