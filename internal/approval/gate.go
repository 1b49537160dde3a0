package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/pulsarr/internal/events"
	"github.com/vmunix/pulsarr/internal/quota"
	"github.com/vmunix/pulsarr/internal/router"
)

// Gate sits between the resolver and acquisition. Every resolved decision
// passes through here exactly once; the gate decides whether to execute it
// now or park it as a pending request.
type Gate struct {
	quotas      *quota.Tracker
	store       *Store
	acquirer    Acquirer
	bus         *events.Bus
	logger      *slog.Logger
	expireAfter time.Duration
	now         func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithExpiry sets a deadline on deferred requests. Zero means requests
// never expire.
func WithExpiry(d time.Duration) GateOption {
	return func(g *Gate) { g.expireAfter = d }
}

// WithGateClock overrides the time source (for testing).
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate creates an approval gate. The bus may be nil.
func NewGate(quotas *quota.Tracker, store *Store, acquirer Acquirer, bus *events.Bus, logger *slog.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		quotas:   quotas,
		store:    store,
		acquirer: acquirer,
		bus:      bus,
		logger:   logger.With("component", "gate"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result reports what the gate did with a decision set.
type Result struct {
	Routed   []router.RoutingDecision `json:"routed,omitempty"`
	Deferred *Request                 `json:"deferred,omitempty"`
	Rejected bool                     `json:"rejected,omitempty"`
}

// Process takes the resolver's verdicts for one content item and either
// executes them or defers them. The quota check happens here, after
// resolution, so a deferred request carries the exact routing it would
// have executed. Usage is recorded only when routing actually happens.
func (g *Gate) Process(ctx context.Context, item router.ContentItem, rctx router.RoutingContext, decisions []router.RouterDecision) (*Result, error) {
	var routes []router.RoutingDecision
	var gated *router.RouterDecision
	for i := range decisions {
		d := decisions[i]
		switch d.Action {
		case router.ActionRoute:
			if d.Routing != nil {
				routes = append(routes, *d.Routing)
			}
		case router.ActionRequireApproval:
			// A rule-forced approval gates the whole item. Highest
			// priority decision comes first from the resolver.
			if gated == nil {
				gated = &d
			}
		case router.ActionReject:
			// A reject blocks the whole item, ahead of any deferral.
			g.logger.Info("item rejected", "title", item.Title)
			return &Result{Rejected: true}, nil
		case router.ActionContinue:
			// Explicit decline; nothing to execute here.
		}
	}

	if gated != nil {
		req, err := g.deferDecision(ctx, item, rctx, *gated)
		if err != nil {
			return nil, err
		}
		return &Result{Deferred: req}, nil
	}

	if len(routes) == 0 {
		return &Result{}, nil
	}

	userID := rctx.PrimaryUserID()
	status, err := g.quotas.GetStatus(ctx, userID, rctx.ContentType)
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}
	if status != nil && status.Exceeded {
		primary := primaryRoute(routes)
		reason := fmt.Sprintf("%s quota exceeded (%d/%d)", status.Type, status.CurrentUsage, status.Limit)
		req, err := g.deferDecision(ctx, item, rctx, router.RouterDecision{
			Action:  router.ActionRequireApproval,
			Routing: &primary,
			Approval: &router.ApprovalContext{
				Reason:      reason,
				TriggeredBy: router.TriggeredByQuota,
			},
		})
		if err != nil {
			return nil, err
		}
		return &Result{Deferred: req}, nil
	}

	var lastErr error
	acquired := 0
	for _, r := range routes {
		if err := g.acquirer.Acquire(ctx, contentRef(item, rctx), r); err != nil {
			g.logger.Error("acquisition failed", "title", item.Title, "instance_id", r.InstanceID, "error", err)
			lastErr = err
			continue
		}
		acquired++
		g.publish(ctx, events.NewContentRouted(item.Title, r.InstanceID, userID, false))
	}
	if acquired > 0 {
		if err := g.quotas.RecordUsage(ctx, userID, rctx.ContentType); err != nil {
			g.logger.Error("failed to record usage", "user_id", userID, "error", err)
		}
	}
	return &Result{Routed: routes}, lastErr
}

// deferDecision persists a pending request for later admin action. A duplicate
// pending request for the same user and content is returned as-is rather
// than treated as an error.
func (g *Gate) deferDecision(ctx context.Context, item router.ContentItem, rctx router.RoutingContext, d router.RouterDecision) (*Request, error) {
	ref := contentRef(item, rctx)
	req := &Request{
		UserID:           rctx.PrimaryUserID(),
		ContentType:      rctx.ContentType,
		ContentTitle:     ref.Title,
		ContentKey:       ref.Key,
		ContentGUIDs:     ref.GUIDs,
		ProposedDecision: d,
	}
	if d.Approval != nil {
		req.TriggeredBy = d.Approval.TriggeredBy
		req.ApprovalReason = d.Approval.Reason
	}
	if d.Routing != nil && d.Routing.RuleID != 0 {
		ruleID := d.Routing.RuleID
		req.RouterRuleID = &ruleID
	}
	if g.expireAfter > 0 {
		deadline := g.now().Add(g.expireAfter)
		req.ExpiresAt = &deadline
	}

	if err := g.store.Create(req); err != nil {
		if errors.Is(err, ErrDuplicate) {
			existing, lookupErr := g.pendingFor(req.UserID, req.ContentKey)
			if lookupErr == nil && existing != nil {
				g.logger.Debug("approval already pending", "user_id", req.UserID, "content_key", req.ContentKey, "request_id", existing.ID)
				return existing, nil
			}
		}
		return nil, fmt.Errorf("defer approval: %w", err)
	}

	g.logger.Info("approval deferred",
		"request_id", req.ID,
		"user_id", req.UserID,
		"title", req.ContentTitle,
		"triggered_by", req.TriggeredBy,
		"reason", req.ApprovalReason)
	g.publish(ctx, events.NewApprovalCreated(req.ID, req.UserID, req.ContentTitle, string(req.TriggeredBy), req.ApprovalReason))
	return req, nil
}

// pendingFor finds the existing pending request behind an ErrDuplicate.
func (g *Gate) pendingFor(userID int64, contentKey string) (*Request, error) {
	pending := StatusPending
	reqs, err := g.store.List(Filter{Status: &pending, UserID: &userID})
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		if r.ContentKey == contentKey {
			return r, nil
		}
	}
	return nil, nil
}

func (g *Gate) publish(ctx context.Context, e events.Event) {
	if g.bus == nil {
		return
	}
	_ = g.bus.Publish(ctx, e)
}

// primaryRoute picks the decision to store on a quota deferral: highest
// routing priority, then lowest instance ID for determinism.
func primaryRoute(routes []router.RoutingDecision) router.RoutingDecision {
	best := routes[0]
	for _, r := range routes[1:] {
		if r.Priority > best.Priority || (r.Priority == best.Priority && r.InstanceID < best.InstanceID) {
			best = r
		}
	}
	return best
}

// contentRef derives a stable content identity. The first GUID wins so the
// same item always maps to the same pending-uniqueness key.
func contentRef(item router.ContentItem, rctx router.RoutingContext) ContentRef {
	key := item.Title
	if len(item.GUIDs) > 0 {
		key = item.GUIDs[0]
	}
	return ContentRef{
		Title: item.Title,
		Key:   key,
		GUIDs: item.GUIDs,
		Type:  rctx.ContentType,
	}
}
