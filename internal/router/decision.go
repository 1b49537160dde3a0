package router

// Action is the top-level verdict kind for a RouterDecision.
type Action string

const (
	// ActionRoute routes the item to a concrete instance.
	ActionRoute Action = "route"
	// ActionRequireApproval defers the routing until an admin approves it.
	ActionRequireApproval Action = "require_approval"
	// ActionReject terminates evaluation with no routing.
	ActionReject Action = "reject"
	// ActionContinue explicitly declines and passes to the next rule.
	// Distinct from "no match": it preserves evaluator composability.
	ActionContinue Action = "continue"
)

// TriggeredBy records what caused an approval deferral.
type TriggeredBy string

const (
	TriggeredByQuota    TriggeredBy = "quota_exceeded"
	TriggeredByRule     TriggeredBy = "router_rule"
	TriggeredByManual   TriggeredBy = "manual_flag"
	TriggeredByCriteria TriggeredBy = "content_criteria"
)

// RoutingDecision is one concrete (instance, configuration) pairing produced
// by a matching rule or the default-instance fallback.
type RoutingDecision struct {
	InstanceID       int64    `json:"instance_id"`
	QualityProfile   string   `json:"quality_profile,omitempty"`
	RootFolder       string   `json:"root_folder,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Priority         int      `json:"priority"`
	RuleID           int64    `json:"rule_id,omitempty"`
	RuleName         string   `json:"rule_name,omitempty"`
	SearchOnAdd      *bool    `json:"search_on_add,omitempty"`
	SeasonMonitoring string   `json:"season_monitoring,omitempty"`
	SeriesType       string   `json:"series_type,omitempty"`

	// RequireApproval marks rule-author intent to defer regardless of quota.
	RequireApproval bool   `json:"require_approval,omitempty"`
	ApprovalReason  string `json:"approval_reason,omitempty"`
}

// ApprovalContext carries the deferral details on a require_approval verdict.
type ApprovalContext struct {
	Reason          string           `json:"reason"`
	TriggeredBy     TriggeredBy      `json:"triggered_by"`
	Data            map[string]any   `json:"data,omitempty"`
	ProposedRouting *RoutingDecision `json:"proposed_routing"`
}

// RouterDecision is the resolver's final verdict for one target instance.
// Routing is set for route actions, Approval for require_approval; reject
// and continue carry neither.
type RouterDecision struct {
	Action   Action           `json:"action"`
	Routing  *RoutingDecision `json:"routing,omitempty"`
	Approval *ApprovalContext `json:"approval,omitempty"`
}

// Route builds a route verdict for one resolved decision.
func Route(d RoutingDecision) RouterDecision {
	return RouterDecision{Action: ActionRoute, Routing: &d}
}

// Reject builds a terminal verdict: the item routes nowhere. Rejects take
// precedence over route and require_approval verdicts for the same item.
func Reject() RouterDecision {
	return RouterDecision{Action: ActionReject}
}

// Continue builds an explicit decline that leaves the item to other
// evaluators or the default-instance fallback.
func Continue() RouterDecision {
	return RouterDecision{Action: ActionContinue}
}

// RequireApproval builds a deferral verdict preserving the proposed routing.
func RequireApproval(reason string, by TriggeredBy, proposed RoutingDecision) RouterDecision {
	return RouterDecision{
		Action: ActionRequireApproval,
		Approval: &ApprovalContext{
			Reason:          reason,
			TriggeredBy:     by,
			ProposedRouting: &proposed,
		},
	}
}
