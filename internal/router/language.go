package router

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/cases"
)

// foldEqual compares language names caselessly using Unicode case folding,
// so "FRANÇAIS" matches "français".
func foldEqual(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

// LanguageEvaluator matches rules against an item's original language,
// resolved from item metadata or a GUID lookup.
type LanguageEvaluator struct {
	store  *Store
	source MetadataSource
	logger *slog.Logger
}

// NewLanguageEvaluator creates the language family evaluator. source may be
// nil; without it only items carrying metadata can match.
func NewLanguageEvaluator(store *Store, source MetadataSource, logger *slog.Logger) *LanguageEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LanguageEvaluator{store: store, source: source, logger: logger.With("evaluator", FamilyLanguage)}
}

func (e *LanguageEvaluator) Name() string  { return FamilyLanguage }
func (e *LanguageEvaluator) Priority() int { return 60 }

// CanEvaluate requires enabled language rules and a resolvable language.
// The rule check runs first so no lookup happens when none are configured.
func (e *LanguageEvaluator) CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error) {
	if len(familyRules(e.store, e.logger, FamilyLanguage, rctx)) == 0 {
		return false, nil
	}
	if item.Metadata != nil && item.Metadata.OriginalLanguage != "" {
		return true, nil
	}
	guids := ParseGUIDs(item.GUIDs)
	return e.source != nil && (guids.TMDB != 0 || guids.TVDB != 0), nil
}

// Evaluate resolves the original language and returns one decision per
// matching rule. Lookup failures skip the family.
func (e *LanguageEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error) {
	rules := familyRules(e.store, e.logger, FamilyLanguage, rctx)
	if len(rules) == 0 {
		return nil, nil
	}

	lang, ok := e.resolveLanguage(ctx, item, rctx)
	if !ok {
		return nil, nil
	}

	var decisions []RoutingDecision
	for _, rule := range rules {
		var crit LanguageCriteria
		if err := decodeCriteria(rule.Criteria, &crit); err != nil {
			e.logger.Warn("skipping rule with malformed criteria", "rule", rule.Name, "error", err)
			continue
		}
		match, err := matchLanguage(crit.OriginalLanguage, lang)
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

// EvaluateCondition matches a language leaf using item metadata only; the
// interpreter performs no I/O.
func (e *LanguageEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error) {
	if !e.CanEvaluateConditionField(cond.Field) {
		return false, fmt.Errorf("unsupported field %q", cond.Field)
	}
	if item.Metadata == nil || item.Metadata.OriginalLanguage == "" {
		return false, nil
	}
	switch cond.Operator {
	case "equals", "in":
		return matchLanguage(cond.Value, item.Metadata.OriginalLanguage)
	case "notEquals", "notIn":
		match, err := matchLanguage(cond.Value, item.Metadata.OriginalLanguage)
		if err != nil {
			return false, err
		}
		return !match, nil
	default:
		e.logger.Warn("unknown language operator", "operator", cond.Operator)
		return false, nil
	}
}

func (e *LanguageEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "language" || field == "originalLanguage"
}

func (e *LanguageEvaluator) Metadata() EvaluatorMetadata {
	return EvaluatorMetadata{
		Name:        FamilyLanguage,
		Description: "Routes content based on original language",
		Priority:    e.Priority(),
		Fields: []FieldInfo{{
			Field:      "originalLanguage",
			Operators:  []string{"equals", "notEquals", "in", "notIn"},
			ValueTypes: []string{"string", "string[]"},
		}},
	}
}

func (e *LanguageEvaluator) resolveLanguage(ctx context.Context, item ContentItem, rctx RoutingContext) (string, bool) {
	if item.Metadata != nil && item.Metadata.OriginalLanguage != "" {
		return item.Metadata.OriginalLanguage, true
	}
	result, err := lookupByGUID(ctx, e.source, item, rctx)
	if err != nil {
		e.logger.Warn("language lookup failed, skipping family", "title", item.Title, "error", err)
		return "", false
	}
	if result == nil || result.OriginalLanguage == "" {
		return "", false
	}
	return result.OriginalLanguage, true
}

// matchLanguage reports whether lang case-insensitively equals any value.
func matchLanguage(value any, lang string) (bool, error) {
	want, ok := valueStrings(value)
	if !ok {
		return false, fmt.Errorf("language value must be a string or string array")
	}
	for _, w := range want {
		if foldEqual(w, lang) {
			return true, nil
		}
	}
	return false, nil
}
