package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// maxRegexPattern caps authored regex length. Go's regexp is RE2 and cannot
// backtrack catastrophically, so the guard reduces to rejecting patterns
// that fail to compile or exceed this cap.
const maxRegexPattern = 256

// compileSafeRegex compiles an authored pattern under the safety guard.
func compileSafeRegex(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > maxRegexPattern {
		return nil, fmt.Errorf("pattern exceeds %d bytes", maxRegexPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return re, nil
}

// normalizeGenre lowercases and trims for set comparison.
func normalizeGenre(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GenreEvaluator matches rules against an item's genre set.
type GenreEvaluator struct {
	store  *Store
	logger *slog.Logger
}

// NewGenreEvaluator creates the genre family evaluator.
func NewGenreEvaluator(store *Store, logger *slog.Logger) *GenreEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenreEvaluator{store: store, logger: logger.With("evaluator", FamilyGenre)}
}

func (e *GenreEvaluator) Name() string  { return FamilyGenre }
func (e *GenreEvaluator) Priority() int { return 80 }

// CanEvaluate requires genre data on the item and at least one enabled rule.
func (e *GenreEvaluator) CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error) {
	if len(item.Genres) == 0 {
		return false, nil
	}
	return len(familyRules(e.store, e.logger, FamilyGenre, rctx)) > 0, nil
}

// Evaluate returns one decision per matching genre rule.
func (e *GenreEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error) {
	rules := familyRules(e.store, e.logger, FamilyGenre, rctx)
	if len(rules) == 0 {
		return nil, nil
	}

	var decisions []RoutingDecision
	for _, rule := range rules {
		var crit GenreCriteria
		if err := decodeCriteria(rule.Criteria, &crit); err != nil {
			e.logger.Warn("skipping rule with malformed criteria", "rule", rule.Name, "error", err)
			continue
		}
		op := crit.Operator
		if op == "" {
			op = "contains"
		}
		match, err := e.matchGenres(op, crit.Genre, item)
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

// EvaluateCondition applies genre matching to a leaf condition. Negation is
// the interpreter's job and is never applied here.
func (e *GenreEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error) {
	if !e.CanEvaluateConditionField(cond.Field) {
		return false, fmt.Errorf("unsupported field %q", cond.Field)
	}
	return e.matchGenres(cond.Operator, cond.Value, item)
}

func (e *GenreEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "genre" || field == "genres"
}

func (e *GenreEvaluator) Metadata() EvaluatorMetadata {
	return EvaluatorMetadata{
		Name:        FamilyGenre,
		Description: "Routes content based on genre membership",
		Priority:    e.Priority(),
		Fields: []FieldInfo{{
			Field:      "genre",
			Operators:  []string{"contains", "in", "notContains", "notIn", "equals", "regex"},
			ValueTypes: []string{"string", "string[]"},
		}},
	}
}

func (e *GenreEvaluator) matchGenres(operator string, value any, item ContentItem) (bool, error) {
	itemSet := make(map[string]bool, len(item.Genres))
	for _, g := range item.Genres {
		itemSet[normalizeGenre(g)] = true
	}

	if operator == "regex" {
		pattern, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("regex operator requires a string value")
		}
		re, err := compileSafeRegex(pattern)
		if err != nil {
			return false, err
		}
		for _, g := range item.Genres {
			if re.MatchString(g) {
				return true, nil
			}
		}
		return false, nil
	}

	want, ok := valueStrings(value)
	if !ok {
		return false, fmt.Errorf("genre value must be a string or string array")
	}
	wantSet := make(map[string]bool, len(want))
	for _, g := range want {
		wantSet[normalizeGenre(g)] = true
	}

	switch operator {
	case "contains", "in":
		for g := range wantSet {
			if itemSet[g] {
				return true, nil
			}
		}
		return false, nil
	case "notContains", "notIn":
		for g := range wantSet {
			if itemSet[g] {
				return false, nil
			}
		}
		return true, nil
	case "equals":
		if len(wantSet) != len(itemSet) {
			return false, nil
		}
		for g := range wantSet {
			if !itemSet[g] {
				return false, nil
			}
		}
		return true, nil
	default:
		// Unknown operator evaluates false rather than erroring the rule set.
		e.logger.Warn("unknown genre operator", "operator", operator)
		return false, nil
	}
}
