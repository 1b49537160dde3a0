package events

// Event type names for the routing and approval domain.
const (
	EventContentRouted    = "content.routed"
	EventApprovalCreated  = "approval.created"
	EventApprovalApproved = "approval.approved"
	EventApprovalRejected = "approval.rejected"
	EventApprovalExpired  = "approval.expired"
)

// Entity type names.
const (
	EntityApproval = "approval"
	EntityRouting  = "routing"
)

// ContentRouted fires when a routing decision is executed against an
// instance, either immediately or on approval replay.
type ContentRouted struct {
	BaseEvent
	Title      string `json:"title"`
	InstanceID int64  `json:"instance_id"`
	UserID     int64  `json:"user_id,omitempty"`
	Replayed   bool   `json:"replayed,omitempty"`
}

// NewContentRouted creates a ContentRouted event keyed by instance.
func NewContentRouted(title string, instanceID, userID int64, replayed bool) ContentRouted {
	return ContentRouted{
		BaseEvent:  NewBaseEvent(EventContentRouted, EntityRouting, instanceID),
		Title:      title,
		InstanceID: instanceID,
		UserID:     userID,
		Replayed:   replayed,
	}
}

// ApprovalCreated fires when the gate defers a routing decision.
type ApprovalCreated struct {
	BaseEvent
	RequestID    int64  `json:"request_id"`
	UserID       int64  `json:"user_id"`
	ContentTitle string `json:"content_title"`
	TriggeredBy  string `json:"triggered_by"`
	Reason       string `json:"reason,omitempty"`
}

// NewApprovalCreated creates an ApprovalCreated event.
func NewApprovalCreated(requestID, userID int64, title, triggeredBy, reason string) ApprovalCreated {
	return ApprovalCreated{
		BaseEvent:    NewBaseEvent(EventApprovalCreated, EntityApproval, requestID),
		RequestID:    requestID,
		UserID:       userID,
		ContentTitle: title,
		TriggeredBy:  triggeredBy,
		Reason:       reason,
	}
}

// ApprovalResolved fires on approve, reject, and expiry transitions.
type ApprovalResolved struct {
	BaseEvent
	RequestID    int64  `json:"request_id"`
	UserID       int64  `json:"user_id"`
	ContentTitle string `json:"content_title"`
	Actor        string `json:"actor,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// NewApprovalResolved creates a resolution event of the given type
// (approval.approved, approval.rejected, or approval.expired).
func NewApprovalResolved(eventType string, requestID, userID int64, title, actor, notes string) ApprovalResolved {
	return ApprovalResolved{
		BaseEvent:    NewBaseEvent(eventType, EntityApproval, requestID),
		RequestID:    requestID,
		UserID:       userID,
		ContentTitle: title,
		Actor:        actor,
		Notes:        notes,
	}
}
