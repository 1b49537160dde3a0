package quota

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmunix/pulsarr/internal/router"
)

// ErrNotFound indicates no quota is configured for the user/content type.
var ErrNotFound = errors.New("not found")

// Store provides access to quota configuration and usage rows.
type Store struct {
	db *sql.DB
}

// NewStore creates a new quota store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if strings.Contains(err.Error(), "CHECK constraint failed") {
		return fmt.Errorf("constraint violation: %w", err)
	}
	return err
}

// GetQuota retrieves a user's quota for a content type.
// Returns ErrNotFound when none is configured.
func (s *Store) GetQuota(userID int64, ct router.ContentType) (*UserQuota, error) {
	q := &UserQuota{}
	err := s.db.QueryRow(`
		SELECT user_id, content_type, quota_type, quota_limit, bypass_approval
		FROM user_quotas WHERE user_id = ? AND content_type = ?`,
		userID, ct,
	).Scan(&q.UserID, &q.ContentType, &q.Type, &q.Limit, &q.BypassApproval)
	if err != nil {
		return nil, fmt.Errorf("get quota %d/%s: %w", userID, ct, mapSQLiteError(err))
	}
	return q, nil
}

// UpsertQuota inserts or replaces a user's quota configuration.
func (s *Store) UpsertQuota(q *UserQuota) error {
	_, err := s.db.Exec(`
		INSERT INTO user_quotas (user_id, content_type, quota_type, quota_limit, bypass_approval)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, content_type) DO UPDATE SET
			quota_type = excluded.quota_type,
			quota_limit = excluded.quota_limit,
			bypass_approval = excluded.bypass_approval`,
		q.UserID, q.ContentType, q.Type, q.Limit, q.BypassApproval,
	)
	if err != nil {
		return fmt.Errorf("upsert quota %d/%s: %w", q.UserID, q.ContentType, mapSQLiteError(err))
	}
	return nil
}

// DeleteQuota removes a user's quota configuration. Idempotent.
func (s *Store) DeleteQuota(userID int64, ct router.ContentType) error {
	if _, err := s.db.Exec(
		`DELETE FROM user_quotas WHERE user_id = ? AND content_type = ?`, userID, ct); err != nil {
		return fmt.Errorf("delete quota %d/%s: %w", userID, ct, mapSQLiteError(err))
	}
	return nil
}

// RecordUsage appends one accepted-request row at day granularity.
func (s *Store) RecordUsage(userID int64, ct router.ContentType, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO quota_usage (user_id, content_type, request_date)
		VALUES (?, ?, ?)`,
		userID, ct, dateKey(at),
	)
	if err != nil {
		return fmt.Errorf("record usage %d/%s: %w", userID, ct, mapSQLiteError(err))
	}
	return nil
}

// CountUsageSince counts usage rows on or after a date (inclusive).
// Date keys sort lexicographically, so string comparison is correct.
func (s *Store) CountUsageSince(userID int64, ct router.ContentType, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM quota_usage
		WHERE user_id = ? AND content_type = ? AND request_date >= ?`,
		userID, ct, dateKey(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count usage %d/%s: %w", userID, ct, err)
	}
	return n, nil
}

// OldestUsageSince returns the oldest usage date on or after a cutoff, used
// to compute rolling-window reset dates. Returns ErrNotFound with no rows.
func (s *Store) OldestUsageSince(userID int64, ct router.ContentType, since time.Time) (time.Time, error) {
	var key sql.NullString
	err := s.db.QueryRow(`
		SELECT MIN(request_date) FROM quota_usage
		WHERE user_id = ? AND content_type = ? AND request_date >= ?`,
		userID, ct, dateKey(since),
	).Scan(&key)
	if err != nil {
		return time.Time{}, fmt.Errorf("oldest usage %d/%s: %w", userID, ct, err)
	}
	if !key.Valid || key.String == "" {
		return time.Time{}, ErrNotFound
	}
	t, err := time.ParseInLocation("2006-01-02", key.String, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse usage date %q: %w", key.String, err)
	}
	return t, nil
}

// PruneUsage removes usage rows older than the cutoff. A retention sweep
// only; window correctness never depends on it.
func (s *Store) PruneUsage(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM quota_usage WHERE request_date < ?`, dateKey(olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w", err)
	}
	return result.RowsAffected()
}
