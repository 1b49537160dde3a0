package approval

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested approval doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a pending request already exists for the
	// same user and content.
	ErrDuplicate = errors.New("duplicate entry")
)

// mapSQLiteError converts SQLite errors to custom error types.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return ErrDuplicate
	}
	return err
}

// Store provides access to approval request records.
type Store struct {
	db *sql.DB
}

// NewStore creates a new approval store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const requestColumns = `id, user_id, content_type, content_title, content_key,
	content_guids, proposed_decision, router_rule_id, triggered_by, approval_reason,
	status, approved_by, approval_notes, expires_at, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*Request, error) {
	r := &Request{}
	var guids, decision string
	var reason, approvedBy, notes sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&r.ID, &r.UserID, &r.ContentType, &r.ContentTitle, &r.ContentKey,
		&guids, &decision, &r.RouterRuleID, &r.TriggeredBy, &reason,
		&r.Status, &approvedBy, &notes, &expiresAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(guids), &r.ContentGUIDs); err != nil {
		return nil, fmt.Errorf("decode guids: %w", err)
	}
	if err := json.Unmarshal([]byte(decision), &r.ProposedDecision); err != nil {
		return nil, fmt.Errorf("decode proposed decision: %w", err)
	}
	r.ApprovalReason = reason.String
	r.ApprovedBy = approvedBy.String
	r.ApprovalNotes = notes.String
	if expiresAt.Valid {
		r.ExpiresAt = &expiresAt.Time
	}
	return r, nil
}

// Create persists a new pending request. Sets ID, Status, CreatedAt, and
// UpdatedAt on the struct. Returns ErrDuplicate when the user already has a
// pending request for the same content.
func (s *Store) Create(r *Request) error {
	guids, err := json.Marshal(r.ContentGUIDs)
	if err != nil {
		return fmt.Errorf("encode guids: %w", err)
	}
	decision, err := encodeDecision(r.ProposedDecision)
	if err != nil {
		return fmt.Errorf("encode proposed decision: %w", err)
	}

	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO approval_requests (user_id, content_type, content_title,
			content_key, content_guids, proposed_decision, router_rule_id,
			triggered_by, approval_reason, status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.ContentType, r.ContentTitle, r.ContentKey, string(guids),
		decision, r.RouterRuleID, r.TriggeredBy, r.ApprovalReason, StatusPending,
		r.ExpiresAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	r.ID = id
	r.Status = StatusPending
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// Get retrieves a request by ID. Returns ErrNotFound if it doesn't exist.
func (s *Store) Get(id int64) (*Request, error) {
	r, err := scanRequest(s.db.QueryRow(
		`SELECT `+requestColumns+` FROM approval_requests WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get approval %d: %w", id, mapSQLiteError(err))
	}
	return r, nil
}

// Filter narrows List results.
type Filter struct {
	Status *Status
	UserID *int64
	Limit  int
	Offset int
}

// List returns requests matching the filter, newest first.
func (s *Store) List(f Filter) ([]*Request, error) {
	var conditions []string
	var args []any

	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *f.UserID)
	}

	query := `SELECT ` + requestColumns + ` FROM approval_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	var results []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return results, nil
}

// Transition atomically moves a request out of pending. Returns false when
// the request was no longer pending (lost race or already resolved); the
// conditional WHERE is what makes concurrent approve/reject/expire safe
// across processes.
func (s *Store) Transition(id int64, to Status, actor, notes string) (bool, error) {
	if !StatusPending.CanTransitionTo(to) {
		return false, fmt.Errorf("invalid transition pending -> %s", to)
	}
	result, err := s.db.Exec(`
		UPDATE approval_requests
		SET status = ?, approved_by = ?, approval_notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, actor, notes, time.Now(), id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("transition approval %d: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

// ExpirePending flips every pending request whose deadline has passed to
// expired, returning how many were expired.
func (s *Store) ExpirePending(now time.Time) (int64, error) {
	result, err := s.db.Exec(`
		UPDATE approval_requests
		SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		StatusExpired, now, StatusPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire approvals: %w", err)
	}
	return result.RowsAffected()
}

// Delete permanently removes a request record. Idempotent; does not touch
// quota usage already recorded.
func (s *Store) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM approval_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete approval %d: %w", id, mapSQLiteError(err))
	}
	return nil
}
