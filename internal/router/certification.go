package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// CertificationEvaluator matches rules against an item's certification
// (e.g. PG-13, TV-MA). Sourced from item metadata only; no external call.
type CertificationEvaluator struct {
	store  *Store
	logger *slog.Logger
}

// NewCertificationEvaluator creates the certification family evaluator.
func NewCertificationEvaluator(store *Store, logger *slog.Logger) *CertificationEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificationEvaluator{store: store, logger: logger.With("evaluator", FamilyCertification)}
}

func (e *CertificationEvaluator) Name() string  { return FamilyCertification }
func (e *CertificationEvaluator) Priority() int { return 50 }

// CanEvaluate requires certification metadata and at least one enabled rule.
func (e *CertificationEvaluator) CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error) {
	if item.Metadata == nil || item.Metadata.Certification == "" {
		return false, nil
	}
	return len(familyRules(e.store, e.logger, FamilyCertification, rctx)) > 0, nil
}

// Evaluate returns one decision per matching certification rule.
func (e *CertificationEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error) {
	if item.Metadata == nil || item.Metadata.Certification == "" {
		return nil, nil
	}
	rules := familyRules(e.store, e.logger, FamilyCertification, rctx)
	if len(rules) == 0 {
		return nil, nil
	}

	var decisions []RoutingDecision
	for _, rule := range rules {
		var crit CertificationCriteria
		if err := decodeCriteria(rule.Criteria, &crit); err != nil {
			e.logger.Warn("skipping rule with malformed criteria", "rule", rule.Name, "error", err)
			continue
		}
		op := crit.Operator
		if op == "" {
			op = "in"
		}
		match, err := e.matchCertification(op, crit.Certification, item.Metadata.Certification)
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

// EvaluateCondition matches a certification leaf condition.
func (e *CertificationEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error) {
	if !e.CanEvaluateConditionField(cond.Field) {
		return false, fmt.Errorf("unsupported field %q", cond.Field)
	}
	if item.Metadata == nil || item.Metadata.Certification == "" {
		return false, nil
	}
	return e.matchCertification(cond.Operator, cond.Value, item.Metadata.Certification)
}

func (e *CertificationEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "certification"
}

func (e *CertificationEvaluator) Metadata() EvaluatorMetadata {
	return EvaluatorMetadata{
		Name:        FamilyCertification,
		Description: "Routes content based on certification rating",
		Priority:    e.Priority(),
		Fields: []FieldInfo{{
			Field:      "certification",
			Operators:  []string{"equals", "notEquals", "contains", "notContains", "in", "notIn", "regex"},
			ValueTypes: []string{"string", "string[]"},
		}},
	}
}

func (e *CertificationEvaluator) matchCertification(operator string, value any, cert string) (bool, error) {
	certLower := strings.ToLower(strings.TrimSpace(cert))

	if operator == "regex" {
		pattern, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("regex operator requires a string value")
		}
		re, err := compileSafeRegex("(?i)" + pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(cert), nil
	}

	want, ok := valueStrings(value)
	if !ok {
		return false, fmt.Errorf("certification value must be a string or string array")
	}

	anyEqual := func() bool {
		for _, w := range want {
			if strings.ToLower(strings.TrimSpace(w)) == certLower {
				return true
			}
		}
		return false
	}
	anySubstring := func() bool {
		for _, w := range want {
			if strings.Contains(certLower, strings.ToLower(strings.TrimSpace(w))) {
				return true
			}
		}
		return false
	}

	switch operator {
	case "equals", "in":
		return anyEqual(), nil
	case "notEquals", "notIn":
		return !anyEqual(), nil
	case "contains":
		return anySubstring(), nil
	case "notContains":
		return !anySubstring(), nil
	default:
		e.logger.Warn("unknown certification operator", "operator", operator)
		return false, nil
	}
}
