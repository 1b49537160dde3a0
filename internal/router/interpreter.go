package router

import (
	"context"
	"log/slog"
)

// Interpreter evaluates a boolean condition tree against a content item.
// It is pure and synchronous: leaf evaluation delegates to the evaluator
// registered for the field, and field evaluators used inside trees perform
// no I/O (lookup-backed fields read from item metadata only).
//
// Empty groups use the standard boolean identities: an empty AND is
// vacuously true, an empty OR is false.
type Interpreter struct {
	registry *Registry
	logger   *slog.Logger
}

// NewInterpreter creates an interpreter over the given registry.
func NewInterpreter(registry *Registry, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{registry: registry, logger: logger}
}

// Evaluate walks the tree. Negate is applied exactly once per node, after
// the node's own result is combined; unknown fields and operators evaluate
// to false (fail-closed) rather than erroring.
func (in *Interpreter) Evaluate(ctx context.Context, node ConditionNode, item ContentItem, rctx RoutingContext) bool {
	switch {
	case node.Leaf != nil:
		result := in.evaluateLeaf(ctx, *node.Leaf, item, rctx)
		if node.Leaf.Negate {
			result = !result
		}
		return result
	case node.Group != nil:
		result := in.evaluateGroup(ctx, *node.Group, item, rctx)
		if node.Group.Negate {
			result = !result
		}
		return result
	default:
		return false
	}
}

func (in *Interpreter) evaluateLeaf(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) bool {
	e := in.registry.ForField(cond.Field)
	if e == nil {
		in.logger.Warn("no evaluator for condition field", "field", cond.Field)
		return false
	}
	match, err := e.EvaluateCondition(ctx, cond, item, rctx)
	if err != nil {
		in.logger.Warn("condition evaluation failed",
			"field", cond.Field, "operator", cond.Operator, "error", err)
		return false
	}
	return match
}

func (in *Interpreter) evaluateGroup(ctx context.Context, group ConditionGroup, item ContentItem, rctx RoutingContext) bool {
	switch group.Operator {
	case GroupAnd:
		for _, child := range group.Conditions {
			if !in.Evaluate(ctx, child, item, rctx) {
				return false
			}
		}
		return true
	case GroupOr:
		for _, child := range group.Conditions {
			if in.Evaluate(ctx, child, item, rctx) {
				return true
			}
		}
		return false
	default:
		in.logger.Warn("unknown group operator", "operator", group.Operator)
		return false
	}
}
