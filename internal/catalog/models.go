package catalog

import "time"

type RuleDefinition struct {
	ID            string     `json:"id" db:"id"`
	Key           string     `json:"key" db:"key"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description" db:"description"`
	DefaultConfig RuleConfig `json:"default_config" db:"default_config"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type RuleEvidenceType struct {
	ID        string    `json:"id" db:"id"`
	Key       string    `json:"key" db:"key"`
	Name      string    `json:"name" db:"name"`
	AppliesTo string    `json:"applies_to" db:"applies_to"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CreateRuleDefinitionRequest struct {
	Key           string     `json:"key" binding:"required"`
	Name          string     `json:"name" binding:"required"`
	Description   string     `json:"description"`
	DefaultConfig RuleConfig `json:"default_config"`
}

type UpdateRuleDefinitionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type CreateEvidenceTypeRequest struct {
	Key       string `json:"key" binding:"required"`
	Name      string `json:"name" binding:"required"`
	AppliesTo string `json:"applies_to"`
}
