package rules

import (
	"strconv"
	"strings"

	"github.com/quantfold/rulebot/internal/indicator"
)

// Evaluate tests a rule tree against an indicator snapshot. It is pure
// and total: unknown fields, malformed values, and unsupported operator
// combinations all evaluate to false rather than failing.
func Evaluate(node Node, snap indicator.Snapshot) bool {
	switch n := node.(type) {
	case Rule:
		return evaluateRule(n, snap)
	case Group:
		return evaluateGroup(n, snap)
	default:
		return false
	}
}

// evaluateGroup applies the combinator over the children. An empty group
// cannot be satisfied regardless of combinator.
func evaluateGroup(g Group, snap indicator.Snapshot) bool {
	if len(g.Children) == 0 {
		return false
	}

	switch g.Combinator {
	case CombinatorAnd:
		for _, child := range g.Children {
			if !Evaluate(child, snap) {
				return false
			}
		}
		return true
	case CombinatorOr:
		for _, child := range g.Children {
			if Evaluate(child, snap) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evaluateRule(r Rule, snap indicator.Snapshot) bool {
	// String-typed fields support only exact match.
	if actual, ok := snap.Categorical(r.Field); ok {
		return r.Operator == OpEqual && actual == r.Value
	}

	actual, ok := snap.Numeric(r.Field)
	if !ok {
		return false
	}

	if r.Operator == OpBetween {
		low, high, ok := parseBetween(r.Value)
		return ok && actual >= low && actual <= high
	}

	expected, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
	if err != nil {
		return false
	}

	switch r.Operator {
	case OpGreater:
		return actual > expected
	case OpLess:
		return actual < expected
	case OpGreaterEqual:
		return actual >= expected
	case OpLessEqual:
		return actual <= expected
	case OpEqual:
		return actual == expected
	default:
		return false
	}
}

// parseBetween parses a "low,high" operand; both bounds are inclusive.
func parseBetween(value string) (float64, float64, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return low, high, true
}
