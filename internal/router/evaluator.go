package router

import (
	"context"
	"log/slog"
	"sort"
)

// Rule family names. The set is closed: adding a family means adding an
// Evaluator implementation plus a Register call at startup.
const (
	FamilyGenre         = "genre"
	FamilyYear          = "year"
	FamilyLanguage      = "language"
	FamilyCertification = "certification"
	FamilyUser          = "user"
	FamilyConditional   = "conditional"
)

// Evaluator matches one rule family against content. Implementations are
// stateless per call and safe for concurrent use.
type Evaluator interface {
	// Name returns the rule family this evaluator serves.
	Name() string

	// Priority ranks evaluators; higher runs first. The conditional
	// evaluator uses the highest value because it composes the others.
	Priority() int

	// CanEvaluate is a cheap precondition, checked before any expensive
	// work (rule fetch, external lookup).
	CanEvaluate(ctx context.Context, item ContentItem, rctx RoutingContext) (bool, error)

	// Evaluate matches every enabled rule of this family against the item
	// and returns one decision per matching rule, or nil when none apply.
	Evaluate(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RoutingDecision, error)

	// EvaluateCondition applies this family's matching logic to a single
	// leaf condition inside a conditional rule's tree. It must not apply
	// the condition's Negate flag; the interpreter owns negation.
	EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx RoutingContext) (bool, error)

	// CanEvaluateConditionField reports whether this evaluator owns a
	// condition field.
	CanEvaluateConditionField(field string) bool

	// Metadata describes supported fields and operators for rule
	// authoring; not used in the hot path.
	Metadata() EvaluatorMetadata
}

// FieldInfo describes one authorable condition field.
type FieldInfo struct {
	Field      string   `json:"field"`
	Operators  []string `json:"operators"`
	ValueTypes []string `json:"value_types"`
}

// EvaluatorMetadata is the introspectable description of one family.
type EvaluatorMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"`
	Fields      []FieldInfo `json:"fields,omitempty"`
}

// Registry holds the closed set of evaluator families, sorted by priority
// at registration time. Adding a family means adding a type plus one
// Register call; no runtime reflection.
type Registry struct {
	evaluators []Evaluator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an evaluator, keeping descending priority order. Ties are
// broken by name so iteration order stays deterministic.
func (r *Registry) Register(e Evaluator) {
	r.evaluators = append(r.evaluators, e)
	sort.SliceStable(r.evaluators, func(i, j int) bool {
		if r.evaluators[i].Priority() != r.evaluators[j].Priority() {
			return r.evaluators[i].Priority() > r.evaluators[j].Priority()
		}
		return r.evaluators[i].Name() < r.evaluators[j].Name()
	})
}

// All returns evaluators in descending priority order.
func (r *Registry) All() []Evaluator {
	return r.evaluators
}

// ForField returns the evaluator owning a condition field, or nil.
func (r *Registry) ForField(field string) Evaluator {
	for _, e := range r.evaluators {
		if e.CanEvaluateConditionField(field) {
			return e
		}
	}
	return nil
}

// Metadata returns authoring metadata for every registered family.
func (r *Registry) Metadata() []EvaluatorMetadata {
	out := make([]EvaluatorMetadata, 0, len(r.evaluators))
	for _, e := range r.evaluators {
		out = append(out, e.Metadata())
	}
	return out
}

// NewDefaultRegistry wires the standard evaluator set. The conditional
// family runs first (priority 100) because it composes the others, then
// user (90), genre (80), year (70), language (60), certification (50).
func NewDefaultRegistry(store *Store, source MetadataSource, logger *slog.Logger) (*Registry, *Interpreter) {
	reg := NewRegistry()
	interp := NewInterpreter(reg, logger)
	reg.Register(NewConditionalEvaluator(store, interp, logger))
	reg.Register(NewUserEvaluator(store, logger))
	reg.Register(NewGenreEvaluator(store, logger))
	reg.Register(NewYearEvaluator(store, source, logger))
	reg.Register(NewLanguageEvaluator(store, source, logger))
	reg.Register(NewCertificationEvaluator(store, logger))
	return reg, interp
}

// familyRules fetches the enabled rules of one family for the context's
// content type. Store failures degrade to "no rules of this family apply"
// so a single family's failure never aborts the others.
func familyRules(store *Store, logger *slog.Logger, family string, rctx RoutingContext) []*Rule {
	rules, err := store.RulesByType(family, TargetFor(rctx.ContentType))
	if err != nil {
		logger.Error("rule fetch failed", "family", family, "error", err)
		return nil
	}
	return rules
}
