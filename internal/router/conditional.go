package router

import (
	"context"
	"fmt"
	"log/slog"
)

// ConditionalEvaluator matches rules whose criteria is a full condition
// tree, composing the other families through the interpreter. It carries
// the highest priority so composed rules are considered first, and it never
// serves as a leaf field itself.
type ConditionalEvaluator struct {
	store  *Store
	interp *Interpreter
	logger *slog.Logger
}

// NewConditionalEvaluator creates the conditional family evaluator.
func NewConditionalEvaluator(store *Store, interp *Interpreter, logger *slog.Logger) *ConditionalEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConditionalEvaluator{store: store, interp: interp, logger: logger.With("evaluator", FamilyConditional)}
}

func (e *ConditionalEvaluator) Name() string  { return FamilyConditional }
func (e *ConditionalEvaluator) Priority() int { return 100 }

// CanEvaluate requires at least one enabled conditional rule.
func (e *ConditionalEvaluator) CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error) {
	return len(familyRules(e.store, e.logger, FamilyConditional, rctx)) > 0, nil
}

// Evaluate runs each rule's stored condition tree through the interpreter
// and returns one decision per rule whose tree evaluates true.
func (e *ConditionalEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error) {
	rules := familyRules(e.store, e.logger, FamilyConditional, rctx)
	if len(rules) == 0 {
		return nil, nil
	}

	var decisions []RoutingDecision
	for _, rule := range rules {
		var crit ConditionalCriteria
		if err := decodeCriteria(rule.Criteria, &crit); err != nil {
			e.logger.Warn("skipping rule with malformed criteria", "rule", rule.Name, "error", err)
			continue
		}
		if e.interp.Evaluate(ctx, crit.Condition, item, rctx) {
			decisions = append(decisions, rule.Decision())
		}
	}
	if len(decisions) == 0 {
		return nil, nil
	}
	return decisions, nil
}

// EvaluateCondition always errors: conditional is never a leaf field.
func (e *ConditionalEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error) {
	return false, fmt.Errorf("conditional evaluator has no leaf fields")
}

func (e *ConditionalEvaluator) CanEvaluateConditionField(field string) bool {
	return false
}

func (e *ConditionalEvaluator) Metadata() EvaluatorMetadata {
	return EvaluatorMetadata{
		Name:        FamilyConditional,
		Description: "Routes content based on a composed condition tree over the other families",
		Priority:    e.Priority(),
	}
}
