package approval

// Status tracks the lifecycle of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
// Everything out of pending is terminal; nothing ever reverses.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved: {},
	StatusRejected: {},
	StatusExpired:  {},
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	valid, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this status has no valid outgoing transitions.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}
