package rulepack

import (
	"time"

	"planguard/internal/catalog"
)

// RulePack is a versioned ruleset scoped to one (scopeType, scopeId,
// planType) key. At most one pack per key is active at any instant.
type RulePack struct {
	ID            string     `json:"id" db:"id"`
	ScopeType     string     `json:"scope_type" db:"scope_type"`
	ScopeID       string     `json:"scope_id" db:"scope_id"`
	PlanType      string     `json:"plan_type" db:"plan_type"`
	Name          string     `json:"name" db:"name"`
	Version       int        `json:"version" db:"version"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	Rules         []PackRule `json:"rules,omitempty"`
}

// PackRule attaches a catalog rule definition to a pack with per-pack
// config overrides. RuleKey and DefaultConfig are denormalized from the
// definition on load.
type PackRule struct {
	ID               string                `json:"id" db:"id"`
	RulePackID       string                `json:"rule_pack_id" db:"rule_pack_id"`
	RuleDefinitionID string                `json:"rule_definition_id" db:"rule_definition_id"`
	RuleKey          string                `json:"rule_key" db:"rule_key"`
	IsEnabled        bool                  `json:"is_enabled" db:"is_enabled"`
	Config           catalog.RuleConfig    `json:"config" db:"config"`
	DefaultConfig    catalog.RuleConfig    `json:"default_config" db:"-"`
	SortOrder        int                   `json:"sort_order" db:"sort_order"`
	Requirements     []EvidenceRequirement `json:"requirements,omitempty"`
}

// MergedConfig is the rule's effective config: pack overrides applied on
// top of the definition's defaults.
func (r PackRule) MergedConfig() catalog.RuleConfig {
	return catalog.Merge(r.DefaultConfig, r.Config)
}

type EvidenceRequirement struct {
	ID             string `json:"id" db:"id"`
	PackRuleID     string `json:"pack_rule_id" db:"pack_rule_id"`
	EvidenceTypeID string `json:"evidence_type_id" db:"evidence_type_id"`
	EvidenceKey    string `json:"evidence_key" db:"evidence_key"`
	IsRequired     bool   `json:"is_required" db:"is_required"`
}

type CreatePackRequest struct {
	ScopeType     string     `json:"scope_type" binding:"required"`
	ScopeID       string     `json:"scope_id" binding:"required"`
	PlanType      string     `json:"plan_type" binding:"required"`
	Name          string     `json:"name" binding:"required"`
	EffectiveFrom time.Time  `json:"effective_from" binding:"required"`
	EffectiveTo   *time.Time `json:"effective_to"`
	IsActive      bool       `json:"is_active"`
}

type PackRuleInput struct {
	RuleDefinitionID string             `json:"rule_definition_id" binding:"required"`
	IsEnabled        *bool              `json:"is_enabled"`
	Config           catalog.RuleConfig `json:"config"`
	SortOrder        int                `json:"sort_order"`
}

type SetRulesRequest struct {
	Rules []PackRuleInput `json:"rules"`
}

type RequirementInput struct {
	EvidenceTypeID string `json:"evidence_type_id" binding:"required"`
	IsRequired     bool   `json:"is_required"`
}

type SetEvidenceRequirementsRequest struct {
	Requirements []RequirementInput `json:"requirements"`
}

// PackFilter narrows ListPacks. Zero fields match everything.
type PackFilter struct {
	ScopeType  string
	ScopeID    string
	PlanType   string
	ActiveOnly bool
}
