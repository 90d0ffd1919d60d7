package models

import "time"

// PackEvent notifies downstream consumers (dashboards, sibling instances)
// that rule-pack state changed and resolved-pack caches must be refreshed.
type PackEvent struct {
	EventType   string                 `json:"event_type"`
	PackID      string                 `json:"pack_id"`
	ScopeType   string                 `json:"scope_type"`
	ScopeID     string                 `json:"scope_id"`
	PlanType    string                 `json:"plan_type"`
	PackVersion int                    `json:"pack_version"`
	Action      string                 `json:"action"`
	Timestamp   time.Time              `json:"timestamp"`
	ChangedBy   string                 `json:"changed_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypePackUpdated         = "rule_pack_updated"
	EventTypePackRulesReplaced   = "rule_pack_rules_replaced"
	EventTypeRequirementsChanged = "rule_pack_requirements_replaced"
)

const (
	ActionCreate     = "create"
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionReplace    = "replace"
)
