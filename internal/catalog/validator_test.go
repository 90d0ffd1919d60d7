package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRuleDefinition(t *testing.T) {
	valid := CreateRuleDefinitionRequest{
		Key:  "WRITTEN_NOTICE_DELIVERY",
		Name: "Written notice delivery",
		DefaultConfig: RuleConfig{
			Days: intPtr(10),
		},
	}

	tests := []struct {
		name    string
		mutate  func(*CreateRuleDefinitionRequest)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(r *CreateRuleDefinitionRequest) {},
		},
		{
			name:    "missing key",
			mutate:  func(r *CreateRuleDefinitionRequest) { r.Key = "" },
			wantErr: "key is required",
		},
		{
			name:    "lowercase key",
			mutate:  func(r *CreateRuleDefinitionRequest) { r.Key = "written_notice" },
			wantErr: "upper snake case",
		},
		{
			name:    "key starting with digit",
			mutate:  func(r *CreateRuleDefinitionRequest) { r.Key = "10_DAY_NOTICE" },
			wantErr: "upper snake case",
		},
		{
			name:    "missing name",
			mutate:  func(r *CreateRuleDefinitionRequest) { r.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "negative days",
			mutate:  func(r *CreateRuleDefinitionRequest) { r.DefaultConfig.Days = intPtr(-1) },
			wantErr: "non-negative",
		},
		{
			name: "valid condition",
			mutate: func(r *CreateRuleDefinitionRequest) {
				r.DefaultConfig.Condition = `plan_type == "IEP"`
			},
		},
		{
			name: "malformed condition",
			mutate: func(r *CreateRuleDefinitionRequest) {
				r.DefaultConfig.Condition = `plan_type ==`
			},
			wantErr: "condition",
		},
		{
			name: "non-boolean condition",
			mutate: func(r *CreateRuleDefinitionRequest) {
				r.DefaultConfig.Condition = `plan_type`
			},
			wantErr: "condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := ValidateRuleDefinition(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateEvidenceType(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateEvidenceTypeRequest
		wantErr string
	}{
		{
			name: "valid with applies_to",
			req:  CreateEvidenceTypeRequest{Key: "PARENT_SIGNATURE", Name: "Parent signature", AppliesTo: "IEP"},
		},
		{
			name: "valid without applies_to",
			req:  CreateEvidenceTypeRequest{Key: "DELIVERY_RECEIPT", Name: "Delivery receipt"},
		},
		{
			name:    "missing key",
			req:     CreateEvidenceTypeRequest{Name: "Parent signature"},
			wantErr: "key is required",
		},
		{
			name:    "lowercase key",
			req:     CreateEvidenceTypeRequest{Key: "parent_signature", Name: "Parent signature"},
			wantErr: "upper snake case",
		},
		{
			name:    "unknown applies_to",
			req:     CreateEvidenceTypeRequest{Key: "PARENT_SIGNATURE", Name: "Parent signature", AppliesTo: "IFSP"},
			wantErr: "applies_to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvidenceType(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidatePlanType(t *testing.T) {
	for _, pt := range []string{"IEP", "PLAN504", "BIP", "ALL"} {
		assert.NoError(t, ValidatePlanType(pt))
	}
	assert.Error(t, ValidatePlanType("IFSP"))
	assert.Error(t, ValidatePlanType(""))
}
