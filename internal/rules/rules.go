// Package rules defines user-authored trading conditions as a tree of
// rules and rule groups, plus the evaluator that tests a tree against an
// indicator snapshot.
package rules

import (
	"encoding/json"
	"fmt"
)

// Supported comparison operators.
const (
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpEqual        = "="
	OpBetween      = "between"
)

// Group combinators.
const (
	CombinatorAnd = "and"
	CombinatorOr  = "or"
)

// Node is a single condition or a nested group in a rule tree. The two
// variants are Rule and Group; trees are built top-down and never mutated
// into a cycle.
type Node interface {
	isNode()
}

// Rule is a leaf condition over one indicator field. Value is kept as a
// string and parsed per operator at evaluation time ("30,70" for between,
// a number for numeric comparisons, a literal for categorical equality).
type Rule struct {
	// Field names an IndicatorSnapshot key (e.g., "rsi_14", "macd_signal").
	Field string `json:"field"`

	// Operator is one of >, <, >=, <=, =, between.
	Operator string `json:"operator"`

	// Value is the comparison operand, parsed per operator.
	Value string `json:"value"`
}

func (Rule) isNode() {}

// Group combines child nodes with "and" or "or" semantics. A group with
// no children can never be satisfied.
type Group struct {
	// Combinator is "and" or "or".
	Combinator string `json:"combinator"`

	// Children holds the ordered rules and nested groups of this group.
	Children []Node `json:"rules"`
}

func (Group) isNode() {}

// groupWire mirrors the persisted JSON shape of a group. Children are
// kept raw so each can be decoded as a rule or a nested group.
type groupWire struct {
	Combinator string            `json:"combinator"`
	Children   []json.RawMessage `json:"rules"`
}

// nodeProbe detects the variant of a child: the presence of a "rules" key
// marks a nested group on the wire.
type nodeProbe struct {
	Children *json.RawMessage `json:"rules"`
}

// UnmarshalJSON decodes the persisted rule-tree format, disambiguating
// each child by the presence of a "rules" key.
func (g *Group) UnmarshalJSON(data []byte) error {
	var wire groupWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	g.Combinator = wire.Combinator
	g.Children = make([]Node, 0, len(wire.Children))

	for i, raw := range wire.Children {
		node, err := unmarshalNode(raw)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		g.Children = append(g.Children, node)
	}
	return nil
}

func unmarshalNode(raw json.RawMessage) (Node, error) {
	var probe nodeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	if probe.Children != nil {
		var child Group
		if err := json.Unmarshal(raw, &child); err != nil {
			return nil, err
		}
		return child, nil
	}

	var rule Rule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// MarshalJSON encodes the group back into the persisted format.
func (g Group) MarshalJSON() ([]byte, error) {
	children := make([]json.RawMessage, 0, len(g.Children))
	for _, child := range g.Children {
		var (
			raw []byte
			err error
		)
		switch c := child.(type) {
		case Rule:
			raw, err = json.Marshal(c)
		case Group:
			raw, err = json.Marshal(c)
		default:
			err = fmt.Errorf("unknown rule node type %T", child)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, raw)
	}

	return json.Marshal(groupWire{Combinator: g.Combinator, Children: children})
}
