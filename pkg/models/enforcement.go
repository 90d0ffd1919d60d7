package models

// RuleResult is the per-rule outcome of an enforcement evaluation.
// Advisory results come from rule-config condition expressions and never
// affect the aggregate Allowed flag.
type RuleResult struct {
	RuleKey             string   `json:"rule_key"`
	Satisfied           bool     `json:"satisfied"`
	MissingEvidenceKeys []string `json:"missing_evidence_keys"`
	Advisory            bool     `json:"advisory,omitempty"`
}

// EnforcementReport aggregates rule results for one meeting. Allowed is the
// AND over all non-advisory results; a missing rule pack yields
// Allowed=true with no results.
type EnforcementReport struct {
	Allowed     bool         `json:"allowed"`
	RuleResults []RuleResult `json:"rule_results"`
}

// GateError is a workflow precondition failure, reported apart from rule
// evidence failures so callers can render a different message.
type GateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GateDecision is the outcome of a state-transition gate check.
type GateDecision struct {
	Allowed bool              `json:"allowed"`
	Errors  []GateError       `json:"errors,omitempty"`
	Report  EnforcementReport `json:"report"`
}
