package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// UserEvaluator matches rules against the requesting user(s). An item may
// carry several attributed users (group watchlists); a rule matches when
// any of them matches any criterion value. Values may be numeric ids or
// usernames.
type UserEvaluator struct {
	store  *Store
	logger *slog.Logger
}

// NewUserEvaluator creates the user family evaluator.
func NewUserEvaluator(store *Store, logger *slog.Logger) *UserEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserEvaluator{store: store, logger: logger.With("evaluator", FamilyUser)}
}

func (e *UserEvaluator) Name() string  { return FamilyUser }
func (e *UserEvaluator) Priority() int { return 90 }

// CanEvaluate requires user attribution and at least one enabled rule.
func (e *UserEvaluator) CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error) {
	if len(rctx.UserIDs) == 0 && len(rctx.UserNames) == 0 {
		return false, nil
	}
	return len(familyRules(e.store, e.logger, FamilyUser, rctx)) > 0, nil
}

// Evaluate returns one decision per matching user rule.
func (e *UserEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error) {
	rules := familyRules(e.store, e.logger, FamilyUser, rctx)
	if len(rules) == 0 {
		return nil, nil
	}

	var decisions []RoutingDecision
	for _, rule := range rules {
		var crit UserCriteria
		if err := decodeCriteria(rule.Criteria, &crit); err != nil {
			e.logger.Warn("skipping rule with malformed criteria", "rule", rule.Name, "error", err)
			continue
		}
		match, err := matchUsers(crit.Users, rctx)
		if err != nil {
			e.logger.Warn("skipping rule", "rule", rule.Name, "error", err)
			continue
		}
		if match {
			decisions = append(decisions, rule.Decision())
		}
	}
	if len(decisions) == 0 {
		return nil, nil
	}
	return decisions, nil
}

// EvaluateCondition matches a user leaf condition.
func (e *UserEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error) {
	if !e.CanEvaluateConditionField(cond.Field) {
		return false, fmt.Errorf("unsupported field %q", cond.Field)
	}
	switch cond.Operator {
	case "equals", "in":
		return matchUsers(cond.Value, rctx)
	case "notEquals", "notIn":
		match, err := matchUsers(cond.Value, rctx)
		if err != nil {
			return false, err
		}
		return !match, nil
	default:
		e.logger.Warn("unknown user operator", "operator", cond.Operator)
		return false, nil
	}
}

func (e *UserEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "user" || field == "users"
}

func (e *UserEvaluator) Metadata() EvaluatorMetadata {
	return EvaluatorMetadata{
		Name:        FamilyUser,
		Description: "Routes content based on the requesting user",
		Priority:    e.Priority(),
		Fields: []FieldInfo{{
			Field:      "user",
			Operators:  []string{"equals", "notEquals", "in", "notIn"},
			ValueTypes: []string{"string", "number", "string[]", "number[]"},
		}},
	}
}

// matchUsers reports whether any context user matches any criterion value.
// Numeric values match user ids; everything else matches usernames
// case-insensitively.
func matchUsers(value any, rctx RoutingContext) (bool, error) {
	want, ok := valueStrings(value)
	if !ok {
		return false, fmt.Errorf("user value must be a string, number, or array")
	}
	for _, w := range want {
		if id, err := strconv.ParseInt(w, 10, 64); err == nil {
			for _, uid := range rctx.UserIDs {
				if uid == id {
					return true, nil
				}
			}
		}
		for _, name := range rctx.UserNames {
			if foldEqual(name, w) {
				return true, nil
			}
		}
	}
	return false, nil
}
