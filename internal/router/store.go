// Package router: Store provides database access for rules and instances.
package router

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// querier abstracts *sql.DB and *sql.Tx for shared query logic.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// mapSQLiteError converts SQLite errors to custom error types.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	// modernc.org/sqlite wraps errors; check error message for constraint violations
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return ErrDuplicate
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "CHECK constraint failed") {
		return ErrConstraint
	}
	return err
}

// Store provides access to router rules and instances.
type Store struct {
	db       *sql.DB
	validate *validator.Validate
}

// NewStore creates a new router store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

const ruleColumns = `id, name, type, target_type, target_instance_id, quality_profile,
	root_folder, tags, priority, enabled, criteria, series_type, season_monitoring,
	search_on_add, require_approval, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*Rule, error) {
	r := &Rule{}
	var tags string
	var criteria string
	err := row.Scan(&r.ID, &r.Name, &r.Type, &r.TargetType, &r.TargetInstanceID,
		&r.QualityProfile, &r.RootFolder, &tags, &r.Priority, &r.Enabled, &criteria,
		&r.SeriesType, &r.SeasonMonitoring, &r.SearchOnAdd, &r.RequireApproval,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	r.Criteria = json.RawMessage(criteria)
	return r, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

// ValidateRule checks a rule before it is saved: struct constraints, the
// family against the registry, and the criteria shape (condition trees are
// validated once here, not on every evaluation).
func (s *Store) ValidateRule(r *Rule, registry *Registry) error {
	if err := s.validate.Struct(r); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	if registry != nil {
		var family Evaluator
		for _, e := range registry.All() {
			if e.Name() == r.Type {
				family = e
				break
			}
		}
		if family == nil {
			return fmt.Errorf("rule %q: unknown family %q", r.Name, r.Type)
		}
		if r.Type == FamilyConditional {
			var crit ConditionalCriteria
			if err := decodeCriteria(r.Criteria, &crit); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
			if err := crit.Condition.ValidateShape(); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
			if err := validateFields(crit.Condition, registry); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
		}
	}
	return nil
}

// validateFields checks every leaf field in a tree against the registry.
func validateFields(node ConditionNode, registry *Registry) error {
	switch {
	case node.Leaf != nil:
		if registry.ForField(node.Leaf.Field) == nil {
			return fmt.Errorf("%w: no evaluator for field %q", ErrMalformedCondition, node.Leaf.Field)
		}
		return nil
	case node.Group != nil:
		for _, child := range node.Group.Conditions {
			if err := validateFields(child, registry); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// CreateRule inserts a new rule. Sets ID, CreatedAt, and UpdatedAt.
func (s *Store) CreateRule(r *Rule) error {
	tags, err := marshalTags(r.Tags)
	if err != nil {
		return err
	}
	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO router_rules (name, type, target_type, target_instance_id,
			quality_profile, root_folder, tags, priority, enabled, criteria,
			series_type, season_monitoring, search_on_add, require_approval,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Type, r.TargetType, r.TargetInstanceID, r.QualityProfile,
		r.RootFolder, tags, r.Priority, r.Enabled, string(r.Criteria),
		r.SeriesType, r.SeasonMonitoring, r.SearchOnAdd, r.RequireApproval, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// GetRule retrieves a rule by ID. Returns ErrNotFound if it doesn't exist.
func (s *Store) GetRule(id int64) (*Rule, error) {
	r, err := scanRule(s.db.QueryRow(
		`SELECT `+ruleColumns+` FROM router_rules WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, mapSQLiteError(err))
	}
	return r, nil
}

// ListRules returns all rules ordered by descending priority then id.
func (s *Store) ListRules() ([]*Rule, error) {
	return s.queryRules(`SELECT ` + ruleColumns + ` FROM router_rules ORDER BY priority DESC, id ASC`)
}

// RulesByType returns enabled rules of one family for one target type,
// ordered by descending priority then id. This is the evaluator hot path.
func (s *Store) RulesByType(family string, target TargetType) ([]*Rule, error) {
	return s.queryRules(`
		SELECT `+ruleColumns+` FROM router_rules
		WHERE type = ? AND target_type = ? AND enabled = 1
		ORDER BY priority DESC, id ASC`, family, target)
}

func (s *Store) queryRules(query string, args ...any) ([]*Rule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	var results []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return results, nil
}

// UpdateRule updates an existing rule. Sets UpdatedAt.
// Returns ErrNotFound if the rule does not exist.
func (s *Store) UpdateRule(r *Rule) error {
	tags, err := marshalTags(r.Tags)
	if err != nil {
		return err
	}
	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE router_rules SET name = ?, type = ?, target_type = ?,
			target_instance_id = ?, quality_profile = ?, root_folder = ?, tags = ?,
			priority = ?, enabled = ?, criteria = ?, series_type = ?,
			season_monitoring = ?, search_on_add = ?, require_approval = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Type, r.TargetType, r.TargetInstanceID, r.QualityProfile,
		r.RootFolder, tags, r.Priority, r.Enabled, string(r.Criteria),
		r.SeriesType, r.SeasonMonitoring, r.SearchOnAdd, r.RequireApproval, now, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update rule %d: %w", r.ID, ErrNotFound)
	}
	r.UpdatedAt = now
	return nil
}

// DeleteRule removes a rule by ID. Idempotent.
func (s *Store) DeleteRule(id int64) error {
	if _, err := s.db.Exec("DELETE FROM router_rules WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, mapSQLiteError(err))
	}
	return nil
}
