package router

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rule is an admin-authored condition plus target-instance configuration.
// The engine only reads rules during evaluation; they are persisted and
// mutated through the Store.
type Rule struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name" validate:"required"`
	Type             string          `json:"type" validate:"required"`
	TargetType       TargetType      `json:"target_type" validate:"required,oneof=radarr sonarr"`
	TargetInstanceID int64           `json:"target_instance_id" validate:"required,gt=0"`
	QualityProfile   string          `json:"quality_profile"`
	RootFolder       string          `json:"root_folder"`
	Tags             []string        `json:"tags"`
	Priority         int             `json:"priority" validate:"gte=0,lte=100"`
	Enabled          bool            `json:"enabled"`
	Criteria         json.RawMessage `json:"criteria" validate:"required"`
	SeriesType       *string         `json:"series_type,omitempty"`
	SeasonMonitoring *string         `json:"season_monitoring,omitempty"`
	SearchOnAdd      *bool           `json:"search_on_add,omitempty"`
	RequireApproval  bool            `json:"require_approval"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ContentType maps the rule's target back to the content type it serves.
func (r *Rule) ContentType() ContentType {
	if r.TargetType == TargetSonarr {
		return ContentTypeShow
	}
	return ContentTypeMovie
}

// Decision builds the routing decision a matching rule produces.
func (r *Rule) Decision() RoutingDecision {
	d := RoutingDecision{
		InstanceID:      r.TargetInstanceID,
		QualityProfile:  r.QualityProfile,
		RootFolder:      r.RootFolder,
		Tags:            r.Tags,
		Priority:        r.Priority,
		RuleID:          r.ID,
		RuleName:        r.Name,
		SearchOnAdd:     r.SearchOnAdd,
		RequireApproval: r.RequireApproval,
	}
	if r.SeasonMonitoring != nil {
		d.SeasonMonitoring = *r.SeasonMonitoring
	}
	if r.SeriesType != nil {
		d.SeriesType = *r.SeriesType
	}
	if r.RequireApproval {
		d.ApprovalReason = fmt.Sprintf("rule %q requires approval", r.Name)
	}
	return d
}

// Family-specific criteria shorthands. Each family decodes its own shape
// from Rule.Criteria; unknown keys are ignored so families can share a rule
// table without schema churn.

// GenreCriteria is the genre family shorthand: {"genre": ..., "operator": ...}.
type GenreCriteria struct {
	Genre    any    `json:"genre"`
	Operator string `json:"operator,omitempty"`
}

// YearCriteria is the year family shorthand: a scalar year, a list, or a
// {min, max} range under "year".
type YearCriteria struct {
	Year any `json:"year"`
}

// LanguageCriteria is the language family shorthand.
type LanguageCriteria struct {
	OriginalLanguage any `json:"originalLanguage"`
}

// CertificationCriteria is the certification family shorthand.
type CertificationCriteria struct {
	Certification any    `json:"certification"`
	Operator      string `json:"operator,omitempty"`
}

// UserCriteria is the user family shorthand: ids and/or names.
type UserCriteria struct {
	Users any `json:"users"`
}

// ConditionalCriteria wraps the single top-level condition tree of a
// conditional rule.
type ConditionalCriteria struct {
	Condition ConditionNode `json:"condition"`
}

// decodeCriteria unmarshals a family shorthand, mapping JSON failures to
// ErrMalformedCondition so callers can treat them as configuration errors.
func decodeCriteria(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty criteria", ErrMalformedCondition)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCondition, err)
	}
	return nil
}
