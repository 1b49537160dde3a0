// Package approval implements the quota-aware approval gate and the
// lifecycle of deferred routing decisions.
package approval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vmunix/pulsarr/internal/router"
)

// ContentRef identifies the content a deferred decision belongs to, enough
// to replay the acquisition later.
type ContentRef struct {
	Title string             `json:"title"`
	Key   string             `json:"key"`
	GUIDs []string           `json:"guids"`
	Type  router.ContentType `json:"type"`
}

// Request is a persisted, deferred routing decision awaiting admin action.
// Created by the Gate; mutated only by the Manager. The proposed decision
// is replayed verbatim on approval, never recomputed, so routing reflects
// the state at request time.
type Request struct {
	ID               int64                 `json:"id"`
	UserID           int64                 `json:"user_id"`
	ContentType      router.ContentType    `json:"content_type"`
	ContentTitle     string                `json:"content_title"`
	ContentKey       string                `json:"content_key"`
	ContentGUIDs     []string              `json:"content_guids"`
	ProposedDecision router.RouterDecision `json:"proposed_decision"`
	RouterRuleID     *int64                `json:"router_rule_id,omitempty"`
	TriggeredBy      router.TriggeredBy    `json:"triggered_by"`
	ApprovalReason   string                `json:"approval_reason,omitempty"`
	Status           Status                `json:"status"`
	ApprovedBy       string                `json:"approved_by,omitempty"`
	ApprovalNotes    string                `json:"approval_notes,omitempty"`
	ExpiresAt        *time.Time            `json:"expires_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Content rebuilds the ContentRef for replay.
func (r *Request) Content() ContentRef {
	return ContentRef{
		Title: r.ContentTitle,
		Key:   r.ContentKey,
		GUIDs: r.ContentGUIDs,
		Type:  r.ContentType,
	}
}

// Acquirer issues the actual "add to instance" call. The surrounding
// acquisition workflow owns payload translation; the engine only hands it
// the resolved routing.
type Acquirer interface {
	Acquire(ctx context.Context, content ContentRef, routing router.RoutingDecision) error
}

// encodeDecision serializes a proposed decision for storage.
func encodeDecision(d router.RouterDecision) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
