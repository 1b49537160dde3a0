package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/pulsarr/internal/router"
)

// Tracker answers quota questions and records consumption. The clock is
// injectable for tests; everything else reads straight from the store.
type Tracker struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a quota tracker.
func NewTracker(store *Store, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		store:  store,
		logger: logger.With("component", "quota"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetStatus computes the user's quota status for a content type. Returns
// nil with no error when the user has no quota configured (unlimited).
// BypassApproval forces Exceeded to false regardless of usage.
func (t *Tracker) GetStatus(ctx context.Context, userID int64, ct router.ContentType) (*Status, error) {
	q, err := t.store.GetQuota(userID, ct)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("quota status: %w", err)
	}

	now := t.now()
	windowStart, resetDate := t.window(q.Type, now)

	usage, err := t.store.CountUsageSince(userID, ct, windowStart)
	if err != nil {
		return nil, fmt.Errorf("quota status: %w", err)
	}

	// Rolling windows reset when the oldest counted row ages out.
	if q.Type == TypeWeeklyRolling && usage > 0 {
		oldest, err := t.store.OldestUsageSince(userID, ct, windowStart)
		if err == nil {
			resetDate = oldest.AddDate(0, 0, 7)
		}
	}

	status := &Status{
		UserID:         userID,
		ContentType:    ct,
		Type:           q.Type,
		Limit:          q.Limit,
		CurrentUsage:   usage,
		Exceeded:       usage >= q.Limit && !q.BypassApproval,
		ResetDate:      resetDate,
		BypassApproval: q.BypassApproval,
	}
	return status, nil
}

// RecordUsage appends one accepted-request row. Call only when a request is
// actually accepted for routing (routed now or approved later), never for
// rejected or still-pending requests.
func (t *Tracker) RecordUsage(ctx context.Context, userID int64, ct router.ContentType) error {
	if userID == 0 {
		return nil
	}
	if err := t.store.RecordUsage(userID, ct, t.now()); err != nil {
		return err
	}
	t.logger.Debug("usage recorded", "user_id", userID, "content_type", ct)
	return nil
}

// window returns the inclusive start of the counting window and the default
// reset date for a quota type.
func (t *Tracker) window(qt Type, now time.Time) (start, reset time.Time) {
	switch qt {
	case TypeWeeklyRolling:
		return now.AddDate(0, 0, -6), now.AddDate(0, 0, 1)
	case TypeMonthly:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return monthStart, monthStart.AddDate(0, 1, 0)
	default: // daily
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return dayStart, dayStart.AddDate(0, 0, 1)
	}
}
