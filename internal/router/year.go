package router

import (
	"context"
	"fmt"
	"log/slog"
)

// YearEvaluator matches rules against a release year. The year comes from
// item metadata when present, otherwise from a GUID lookup against the
// download manager. The rule-existence precondition runs before any network
// call so unconfigured setups pay no lookup latency.
type YearEvaluator struct {
	store  *Store
	source MetadataSource
	logger *slog.Logger
}

// NewYearEvaluator creates the year family evaluator. source may be nil;
// without it only items carrying metadata years can match.
func NewYearEvaluator(store *Store, source MetadataSource, logger *slog.Logger) *YearEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &YearEvaluator{store: store, source: source, logger: logger.With("evaluator", FamilyYear)}
}

func (e *YearEvaluator) Name() string  { return FamilyYear }
func (e *YearEvaluator) Priority() int { return 70 }

// CanEvaluate requires enabled year rules and some way to resolve a year.
func (e *YearEvaluator) CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error) {
	if len(familyRules(e.store, e.logger, FamilyYear, rctx)) == 0 {
		return false, nil
	}
	if item.Metadata != nil && item.Metadata.Year > 0 {
		return true, nil
	}
	guids := ParseGUIDs(item.GUIDs)
	return e.source != nil && (guids.TMDB != 0 || guids.TVDB != 0), nil
}

// Evaluate resolves the item's year and returns one decision per matching
// rule. A lookup failure skips the family (no decision) and logs a warning.
func (e *YearEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error) {
	rules := familyRules(e.store, e.logger, FamilyYear, rctx)
	if len(rules) == 0 {
		return nil, nil
	}

	year, ok := e.resolveYear(ctx, item, rctx)
	if !ok {
		return nil, nil
	}

	var decisions []RoutingDecision
	for _, rule := range rules {
		var crit YearCriteria
		if err := decodeCriteria(rule.Criteria, &crit); err != nil {
			e.logger.Warn("skipping rule with malformed criteria", "rule", rule.Name, "error", err)
			continue
		}
		if matchYearValue(crit.Year, year) {
			decisions = append(decisions, rule.Decision())
		}
	}
	if len(decisions) == 0 {
		return nil, nil
	}
	return decisions, nil
}

// EvaluateCondition matches a year leaf inside a conditional tree. The
// interpreter is pure, so only the item's own metadata year is consulted
// here; items without one evaluate false.
func (e *YearEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error) {
	if !e.CanEvaluateConditionField(cond.Field) {
		return false, fmt.Errorf("unsupported field %q", cond.Field)
	}
	if item.Metadata == nil || item.Metadata.Year == 0 {
		return false, nil
	}
	return matchYearOperator(cond.Operator, cond.Value, item.Metadata.Year, e.logger)
}

func (e *YearEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "year"
}

func (e *YearEvaluator) Metadata() EvaluatorMetadata {
	return EvaluatorMetadata{
		Name:        FamilyYear,
		Description: "Routes content based on release year",
		Priority:    e.Priority(),
		Fields: []FieldInfo{{
			Field:      "year",
			Operators:  []string{"equals", "notEquals", "in", "notIn", "between", "greaterThan", "lessThan"},
			ValueTypes: []string{"number", "number[]", "range"},
		}},
	}
}

// resolveYear prefers item metadata, then falls back to a GUID lookup.
func (e *YearEvaluator) resolveYear(ctx context.Context, item ContentItem, rctx RoutingContext) (int, bool) {
	if item.Metadata != nil && item.Metadata.Year > 0 {
		return item.Metadata.Year, true
	}
	result, err := lookupByGUID(ctx, e.source, item, rctx)
	if err != nil {
		e.logger.Warn("year lookup failed, skipping family", "title", item.Title, "error", err)
		return 0, false
	}
	if result == nil || result.Year == 0 {
		return 0, false
	}
	return result.Year, true
}

// lookupByGUID resolves an item through the metadata source appropriate for
// its content type. Shared by the year and language evaluators.
func lookupByGUID(ctx context.Context, source MetadataSource, item ContentItem, rctx RoutingContext) (*LookupResult, error) {
	if source == nil {
		return nil, nil
	}
	guids := ParseGUIDs(item.GUIDs)
	switch rctx.ContentType {
	case ContentTypeShow:
		if guids.TVDB == 0 {
			return nil, nil
		}
		return source.SeriesByTVDBID(ctx, guids.TVDB)
	default:
		if guids.TMDB == 0 {
			return nil, nil
		}
		return source.MovieByTMDBID(ctx, guids.TMDB)
	}
}

// matchYearValue applies the shorthand semantics: scalar = equals,
// array = in, range = between (inclusive, open bounds unbounded).
func matchYearValue(value any, year int) bool {
	if r, ok := valueRange(value); ok {
		return r.Contains(float64(year))
	}
	if nums, ok := valueNumbers(value); ok {
		for _, n := range nums {
			if int(n) == year {
				return true
			}
		}
	}
	return false
}

// matchYearOperator applies an explicit condition operator to a year.
func matchYearOperator(operator string, value any, year int, logger *slog.Logger) (bool, error) {
	switch operator {
	case "equals", "in":
		nums, ok := valueNumbers(value)
		if !ok {
			return false, fmt.Errorf("year value must be numeric")
		}
		for _, n := range nums {
			if int(n) == year {
				return true, nil
			}
		}
		return false, nil
	case "notEquals", "notIn":
		nums, ok := valueNumbers(value)
		if !ok {
			return false, fmt.Errorf("year value must be numeric")
		}
		for _, n := range nums {
			if int(n) == year {
				return false, nil
			}
		}
		return true, nil
	case "between":
		r, ok := valueRange(value)
		if !ok {
			return false, fmt.Errorf("between requires a {min, max} range")
		}
		return r.Contains(float64(year)), nil
	case "greaterThan":
		nums, ok := valueNumbers(value)
		if !ok || len(nums) != 1 {
			return false, fmt.Errorf("greaterThan requires a single number")
		}
		return float64(year) > nums[0], nil
	case "lessThan":
		nums, ok := valueNumbers(value)
		if !ok || len(nums) != 1 {
			return false, fmt.Errorf("lessThan requires a single number")
		}
		return float64(year) < nums[0], nil
	default:
		if logger != nil {
			logger.Warn("unknown year operator", "operator", operator)
		}
		return false, nil
	}
}
