// Package quota tracks per-user request consumption against configured
// limits. Storage is the single source of truth: no process-local caching,
// since several daemon instances may record usage concurrently.
package quota

import (
	"time"

	"github.com/vmunix/pulsarr/internal/router"
)

// Type selects the quota window.
type Type string

const (
	// TypeDaily counts rows for the local calendar day, reset at midnight.
	TypeDaily Type = "daily"
	// TypeWeeklyRolling counts the trailing 7 days from now.
	TypeWeeklyRolling Type = "weekly_rolling"
	// TypeMonthly counts the current calendar month, reset at month start.
	TypeMonthly Type = "monthly"
)

// UserQuota is one user's configured cap for a content type.
type UserQuota struct {
	UserID         int64              `json:"user_id"`
	ContentType    router.ContentType `json:"content_type"`
	Type           Type               `json:"quota_type"`
	Limit          int                `json:"quota_limit"`
	BypassApproval bool               `json:"bypass_approval"`
}

// Usage is one accepted request, day granularity. Append-only; rows are
// only removed by the retention sweep.
type Usage struct {
	ID          int64              `json:"id"`
	UserID      int64              `json:"user_id"`
	ContentType router.ContentType `json:"content_type"`
	RequestDate string             `json:"request_date"`
}

// Status answers "may this user route another request right now".
type Status struct {
	UserID         int64              `json:"user_id"`
	ContentType    router.ContentType `json:"content_type"`
	Type           Type               `json:"quota_type"`
	Limit          int                `json:"quota_limit"`
	CurrentUsage   int                `json:"current_usage"`
	Exceeded       bool               `json:"exceeded"`
	ResetDate      time.Time          `json:"reset_date"`
	BypassApproval bool               `json:"bypass_approval"`
}

// dateKey formats a time at day granularity for usage rows.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
