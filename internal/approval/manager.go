package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/pulsarr/internal/events"
	"github.com/vmunix/pulsarr/internal/quota"
	"github.com/vmunix/pulsarr/internal/router"
)

// Manager drives the lifecycle of deferred requests. Approve replays the
// stored decision verbatim; nothing is re-resolved at approval time.
type Manager struct {
	store    *Store
	quotas   *quota.Tracker
	acquirer Acquirer
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock overrides the time source (for testing).
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an approval lifecycle manager. The bus may be nil.
func NewManager(store *Store, quotas *quota.Tracker, acquirer Acquirer, bus *events.Bus, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:    store,
		quotas:   quotas,
		acquirer: acquirer,
		bus:      bus,
		logger:   logger.With("component", "approvals"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a single request.
func (m *Manager) Get(ctx context.Context, id int64) (*Request, error) {
	return m.store.Get(id)
}

// List returns requests matching the filter.
func (m *Manager) List(ctx context.Context, f Filter) ([]*Request, error) {
	return m.store.List(f)
}

// Approve transitions a pending request to approved and replays its stored
// routing through the acquirer. Approving an already-resolved request is a
// no-op that returns the current record, so retries and concurrent admins
// are safe. The transition is claimed before the acquisition call; a lost
// race means someone else resolved it first.
func (m *Manager) Approve(ctx context.Context, id int64, approvedBy, notes string) (*Request, error) {
	req, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		m.logger.Debug("approve on resolved request", "request_id", id, "status", req.Status)
		return req, nil
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(m.now()) {
		// Past its deadline but the sweep hasn't run yet.
		return m.expireOne(ctx, req)
	}

	ok, err := m.store.Transition(id, StatusApproved, approvedBy, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race; report whatever it became.
		return m.store.Get(id)
	}

	routing, err := proposedRouting(req.ProposedDecision)
	if err != nil {
		return nil, fmt.Errorf("approve %d: %w", id, err)
	}
	if err := m.acquirer.Acquire(ctx, req.Content(), *routing); err != nil {
		// The request stays approved; acquisition can be retried out of
		// band without flipping the state back.
		m.logger.Error("replay acquisition failed", "request_id", id, "title", req.ContentTitle, "error", err)
		updated, getErr := m.store.Get(id)
		if getErr != nil {
			return nil, getErr
		}
		return updated, fmt.Errorf("approve %d: acquire: %w", id, err)
	}
	if err := m.quotas.RecordUsage(ctx, req.UserID, req.ContentType); err != nil {
		m.logger.Error("failed to record usage", "request_id", id, "user_id", req.UserID, "error", err)
	}

	m.logger.Info("approval granted", "request_id", id, "approved_by", approvedBy, "title", req.ContentTitle)
	m.publish(ctx, events.NewApprovalResolved(events.EventApprovalApproved, id, req.UserID, req.ContentTitle, approvedBy, notes))
	m.publish(ctx, events.NewContentRouted(req.ContentTitle, routing.InstanceID, req.UserID, true))

	return m.store.Get(id)
}

// Reject transitions a pending request to rejected. No acquisition happens
// and no usage is recorded. Rejecting a resolved request is a no-op.
func (m *Manager) Reject(ctx context.Context, id int64, rejectedBy, notes string) (*Request, error) {
	req, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		m.logger.Debug("reject on resolved request", "request_id", id, "status", req.Status)
		return req, nil
	}

	ok, err := m.store.Transition(id, StatusRejected, rejectedBy, notes)
	if err != nil {
		return nil, err
	}
	if ok {
		m.logger.Info("approval rejected", "request_id", id, "rejected_by", rejectedBy, "title", req.ContentTitle)
		m.publish(ctx, events.NewApprovalResolved(events.EventApprovalRejected, id, req.UserID, req.ContentTitle, rejectedBy, notes))
	}
	return m.store.Get(id)
}

// Delete removes a request record entirely. Usage already recorded for an
// approved request is untouched.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if _, err := m.store.Get(id); err != nil {
		return err
	}
	return m.store.Delete(id)
}

// ExpireSweep flips every pending request past its deadline to expired.
// Called periodically by the server; returns how many were expired.
func (m *Manager) ExpireSweep(ctx context.Context) (int64, error) {
	n, err := m.store.ExpirePending(m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("expired pending approvals", "count", n)
	}
	return n, nil
}

// expireOne lazily expires a single overdue request hit outside the sweep.
func (m *Manager) expireOne(ctx context.Context, req *Request) (*Request, error) {
	ok, err := m.store.Transition(req.ID, StatusExpired, "", "")
	if err != nil {
		return nil, err
	}
	if ok {
		m.logger.Info("approval expired", "request_id", req.ID, "title", req.ContentTitle)
		m.publish(ctx, events.NewApprovalResolved(events.EventApprovalExpired, req.ID, req.UserID, req.ContentTitle, "", ""))
	}
	return m.store.Get(req.ID)
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, e)
}

// proposedRouting extracts the routing to replay from a stored decision.
func proposedRouting(d router.RouterDecision) (*router.RoutingDecision, error) {
	if d.Routing != nil {
		return d.Routing, nil
	}
	if d.Approval != nil && d.Approval.ProposedRouting != nil {
		return d.Approval.ProposedRouting, nil
	}
	return nil, fmt.Errorf("stored decision has no routing")
}
