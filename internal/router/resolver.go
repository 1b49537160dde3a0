package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Resolver orchestrates every registered evaluator and aggregates their
// decisions into the final verdict set: one RouterDecision per target
// instance. Aggregation is a union (multi-instance fan-out), with
// same-instance conflicts won by the higher-priority rule, ties broken by
// lowest rule id.
type Resolver struct {
	registry *Registry
	store    *Store
	logger   *slog.Logger
}

// NewResolver creates a resolver over the registry and store.
func NewResolver(registry *Registry, store *Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, store: store, logger: logger.With("component", "resolver")}
}

// Resolve evaluates an item against every family and returns the decision
// set. Evaluators run concurrently; all results are collected before any
// conflict is resolved so the merge is deterministic regardless of
// completion order. A failing evaluator contributes nothing and never
// aborts the others.
func (r *Resolver) Resolve(ctx context.Context, item ContentItem, rctx RoutingContext) ([]RouterDecision, error) {
	evaluators := r.registry.All()
	results := make([][]RoutingDecision, len(evaluators))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range evaluators {
		g.Go(func() error {
			ok, err := e.CanEvaluate(gctx, item, rctx)
			if err != nil {
				r.logger.Error("precondition failed", "evaluator", e.Name(), "error", err)
				return nil
			}
			if !ok {
				return nil
			}
			decisions, err := e.Evaluate(gctx, item, rctx)
			if err != nil {
				r.logger.Error("evaluation failed", "evaluator", e.Name(), "error", err)
				return nil
			}
			results[i] = decisions
			return nil
		})
	}
	// Evaluator errors are logged, not propagated; Wait only observes
	// context cancellation.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve %q: %w", item.Title, err)
	}

	instances, err := r.instanceMap()
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", item.Title, err)
	}

	selected := r.merge(results, rctx, instances)
	if len(selected) == 0 {
		fallback, err := r.defaultDecision(rctx)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", item.Title, err)
		}
		if fallback == nil {
			r.logger.Warn("no rule matched and no default instance configured",
				"title", item.Title, "content_type", rctx.ContentType)
			return nil, nil
		}
		selected = []RoutingDecision{*fallback}
	}

	verdicts := make([]RouterDecision, 0, len(selected))
	for _, d := range selected {
		if d.RequireApproval {
			reason := d.ApprovalReason
			if reason == "" {
				reason = "routing rule requires approval"
			}
			verdicts = append(verdicts, RequireApproval(reason, TriggeredByRule, d))
			continue
		}
		verdicts = append(verdicts, Route(d))
	}
	return verdicts, nil
}

// merge unions all decisions, dropping any that reference a disabled or
// wrong-type instance, and resolves same-instance conflicts.
func (r *Resolver) merge(results [][]RoutingDecision, rctx RoutingContext, instances map[int64]*Instance) []RoutingDecision {
	target := TargetFor(rctx.ContentType)
	byInstance := make(map[int64]RoutingDecision)

	for _, decisions := range results {
		for _, d := range decisions {
			inst, ok := instances[d.InstanceID]
			if !ok || !inst.Enabled || inst.Type != target {
				r.logger.Warn("dropping decision for unusable instance",
					"instance_id", d.InstanceID, "rule_id", d.RuleID)
				continue
			}
			current, exists := byInstance[d.InstanceID]
			if !exists || wins(d, current) {
				byInstance[d.InstanceID] = d
			}
		}
	}

	ids := make([]int64, 0, len(byInstance))
	for id := range byInstance {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]RoutingDecision, 0, len(ids))
	for _, id := range ids {
		out = append(out, byInstance[id])
	}
	return out
}

// wins reports whether a beats b for the same instance: higher rule
// priority first, then lowest rule id for determinism.
func wins(a, b RoutingDecision) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.RuleID < b.RuleID
}

// defaultDecision builds the fallback from the content type's default
// instance, carrying that instance's own stored configuration. Returns nil
// when no default is configured.
func (r *Resolver) defaultDecision(rctx RoutingContext) (*RoutingDecision, error) {
	inst, err := r.store.DefaultInstance(TargetFor(rctx.ContentType))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &RoutingDecision{
		InstanceID:     inst.ID,
		QualityProfile: inst.QualityProfile,
		RootFolder:     inst.RootFolder,
		Tags:           inst.Tags,
	}, nil
}

func (r *Resolver) instanceMap() (map[int64]*Instance, error) {
	all, err := r.store.ListInstances()
	if err != nil {
		return nil, err
	}
	m := make(map[int64]*Instance, len(all))
	for _, inst := range all {
		m[inst.ID] = inst
	}
	return m, nil
}
