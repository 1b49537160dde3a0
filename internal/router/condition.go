package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// GroupOperator combines the children of a ConditionGroup.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Condition is a leaf node: one field compared against a value.
// Negate inverts the result after the comparison, applied exactly once by
// the interpreter; evaluator matching logic must never apply it.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Negate   bool   `json:"negate,omitempty"`
}

// ConditionGroup is a composite node combining children with AND/OR.
type ConditionGroup struct {
	Operator   GroupOperator   `json:"operator"`
	Conditions []ConditionNode `json:"conditions"`
	Negate     bool            `json:"negate,omitempty"`
}

// ConditionNode is the sum type over Condition | ConditionGroup. Exactly one
// of Leaf and Group is non-nil after a successful unmarshal.
type ConditionNode struct {
	Leaf  *Condition
	Group *ConditionGroup
}

// Leaf builds a leaf node.
func NewLeaf(c Condition) ConditionNode { return ConditionNode{Leaf: &c} }

// NewGroup builds a composite node.
func NewGroup(g ConditionGroup) ConditionNode { return ConditionNode{Group: &g} }

// ErrMalformedCondition indicates a condition tree that fails shape checks.
var ErrMalformedCondition = errors.New("malformed condition")

// UnmarshalJSON decides leaf vs group by the presence of "conditions".
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	var probe struct {
		Field      string          `json:"field"`
		Conditions json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("condition node: %w", err)
	}
	if probe.Conditions != nil {
		var g ConditionGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("condition group: %w", err)
		}
		n.Group = &g
		n.Leaf = nil
		return nil
	}
	if probe.Field == "" {
		return fmt.Errorf("%w: node has neither field nor conditions", ErrMalformedCondition)
	}
	var c Condition
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	n.Leaf = &c
	n.Group = nil
	return nil
}

// MarshalJSON emits whichever variant is set.
func (n ConditionNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Leaf != nil:
		return json.Marshal(n.Leaf)
	case n.Group != nil:
		return json.Marshal(n.Group)
	default:
		return nil, fmt.Errorf("%w: empty node", ErrMalformedCondition)
	}
}

// ValidateShape checks structural well-formedness of a condition tree.
// Field/operator membership is validated separately against the evaluator
// registry when a rule is saved, not on every evaluation.
func (n ConditionNode) ValidateShape() error {
	switch {
	case n.Leaf != nil:
		if n.Leaf.Field == "" {
			return fmt.Errorf("%w: leaf missing field", ErrMalformedCondition)
		}
		if n.Leaf.Operator == "" {
			return fmt.Errorf("%w: leaf %q missing operator", ErrMalformedCondition, n.Leaf.Field)
		}
		return nil
	case n.Group != nil:
		if n.Group.Operator != GroupAnd && n.Group.Operator != GroupOr {
			return fmt.Errorf("%w: group operator %q", ErrMalformedCondition, n.Group.Operator)
		}
		for i, child := range n.Group.Conditions {
			if err := child.ValidateShape(); err != nil {
				return fmt.Errorf("group child %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: empty node", ErrMalformedCondition)
	}
}

// NumberRange is an inclusive numeric range; open bounds default to +-inf.
type NumberRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v falls inside the range.
func (r NumberRange) Contains(v float64) bool {
	min := math.Inf(-1)
	max := math.Inf(1)
	if r.Min != nil {
		min = *r.Min
	}
	if r.Max != nil {
		max = *r.Max
	}
	return v >= min && v <= max
}

// valueStrings coerces a condition value into a string slice.
// Accepts a scalar string or an array of strings/numbers.
func valueStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}, true
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			switch s := e.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// valueNumbers coerces a condition value into a float slice.
func valueNumbers(v any) ([]float64, bool) {
	switch t := v.(type) {
	case float64:
		return []float64{t}, true
	case int:
		return []float64{float64(t)}, true
	case int64:
		return []float64{float64(t)}, true
	case []float64:
		return t, true
	case []int:
		out := make([]float64, len(t))
		for i, n := range t {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			n, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

// valueRange coerces a condition value into a NumberRange.
func valueRange(v any) (NumberRange, bool) {
	switch t := v.(type) {
	case NumberRange:
		return t, true
	case map[string]any:
		var r NumberRange
		if min, ok := t["min"].(float64); ok {
			r.Min = &min
		}
		if max, ok := t["max"].(float64); ok {
			r.Max = &max
		}
		if r.Min == nil && r.Max == nil {
			return NumberRange{}, false
		}
		return r, true
	default:
		return NumberRange{}, false
	}
}
