package catalog

import (
	"fmt"
	"regexp"

	"planguard/internal/constants"
	"planguard/pkg/cel"
)

// Catalog keys are stable machine identifiers, e.g. MEETING_RECORDING_POLICY.
var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

var validPlanTypes = map[string]bool{
	constants.PlanTypeIEP: true,
	constants.PlanType504: true,
	constants.PlanTypeBIP: true,
	constants.PlanTypeAll: true,
}

func ValidateRuleDefinition(req CreateRuleDefinitionRequest) error {
	if req.Key == "" {
		return fmt.Errorf("key is required")
	}
	if !keyPattern.MatchString(req.Key) {
		return fmt.Errorf("invalid key: %s. Keys are upper snake case", req.Key)
	}
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if days, ok := req.DefaultConfig.DaysValue(); ok && days < 0 {
		return fmt.Errorf("default_config.days must be non-negative")
	}

	if req.DefaultConfig.Condition != "" {
		evaluator, err := cel.NewEvaluator()
		if err != nil {
			return fmt.Errorf("failed to create CEL evaluator: %w", err)
		}
		if err := evaluator.ValidateConditionExpression(req.DefaultConfig.Condition); err != nil {
			return fmt.Errorf("invalid condition expression: %w", err)
		}
	}

	return nil
}

func ValidateEvidenceType(req CreateEvidenceTypeRequest) error {
	if req.Key == "" {
		return fmt.Errorf("key is required")
	}
	if !keyPattern.MatchString(req.Key) {
		return fmt.Errorf("invalid key: %s. Keys are upper snake case", req.Key)
	}
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.AppliesTo != "" && !validPlanTypes[req.AppliesTo] {
		return fmt.Errorf("invalid applies_to: %s. Allowed: IEP, PLAN504, BIP, ALL", req.AppliesTo)
	}
	return nil
}

func ValidatePlanType(planType string) error {
	if !validPlanTypes[planType] {
		return fmt.Errorf("invalid plan type: %s. Allowed: IEP, PLAN504, BIP, ALL", planType)
	}
	return nil
}
