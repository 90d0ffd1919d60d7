package rulepack

import (
	"fmt"

	"planguard/internal/constants"
	"planguard/pkg/cel"
)

var validScopeTypes = map[string]bool{
	constants.ScopeState:    true,
	constants.ScopeDistrict: true,
	constants.ScopeSchool:   true,
}

var validPlanTypes = map[string]bool{
	constants.PlanTypeIEP: true,
	constants.PlanType504: true,
	constants.PlanTypeBIP: true,
	constants.PlanTypeAll: true,
}

func ValidateCreatePack(req CreatePackRequest) error {
	if !validScopeTypes[req.ScopeType] {
		return fmt.Errorf("invalid scope_type: %s. Allowed: STATE, DISTRICT, SCHOOL", req.ScopeType)
	}
	if req.ScopeID == "" {
		return fmt.Errorf("scope_id is required")
	}
	if !validPlanTypes[req.PlanType] {
		return fmt.Errorf("invalid plan_type: %s. Allowed: IEP, PLAN504, BIP, ALL", req.PlanType)
	}
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.EffectiveFrom.IsZero() {
		return fmt.Errorf("effective_from is required")
	}
	if req.EffectiveTo != nil && !req.EffectiveTo.After(req.EffectiveFrom) {
		return fmt.Errorf("effective_to must be after effective_from")
	}
	return nil
}

func ValidateSetRules(req SetRulesRequest) error {
	var evaluator *cel.Evaluator

	seen := make(map[string]bool, len(req.Rules))
	for i, rule := range req.Rules {
		if rule.RuleDefinitionID == "" {
			return fmt.Errorf("rules[%d].rule_definition_id is required", i)
		}
		if seen[rule.RuleDefinitionID] {
			return fmt.Errorf("rules[%d] duplicates rule definition %s", i, rule.RuleDefinitionID)
		}
		seen[rule.RuleDefinitionID] = true

		if days, ok := rule.Config.DaysValue(); ok && days < 0 {
			return fmt.Errorf("rules[%d].config.days must be non-negative", i)
		}

		if rule.Config.Condition != "" {
			if evaluator == nil {
				var err error
				evaluator, err = cel.NewEvaluator()
				if err != nil {
					return fmt.Errorf("failed to create CEL evaluator: %w", err)
				}
			}
			if err := evaluator.ValidateConditionExpression(rule.Config.Condition); err != nil {
				return fmt.Errorf("invalid condition expression in rules[%d]: %w", i, err)
			}
		}
	}

	return nil
}

func ValidateSetEvidenceRequirements(req SetEvidenceRequirementsRequest) error {
	seen := make(map[string]bool, len(req.Requirements))
	for i, r := range req.Requirements {
		if r.EvidenceTypeID == "" {
			return fmt.Errorf("requirements[%d].evidence_type_id is required", i)
		}
		if seen[r.EvidenceTypeID] {
			return fmt.Errorf("requirements[%d] duplicates evidence type %s", i, r.EvidenceTypeID)
		}
		seen[r.EvidenceTypeID] = true
	}
	return nil
}
