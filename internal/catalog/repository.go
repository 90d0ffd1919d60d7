package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"planguard/internal/constants"
	pkgerrors "planguard/pkg/errors"
)

type Repository interface {
	CreateRuleDefinition(ctx context.Context, def *RuleDefinition) error
	GetRuleDefinition(ctx context.Context, id string) (*RuleDefinition, error)
	GetRuleDefinitionByKey(ctx context.Context, key string) (*RuleDefinition, error)
	ListRuleDefinitions(ctx context.Context) ([]RuleDefinition, error)
	UpdateRuleDefinition(ctx context.Context, def *RuleDefinition) error

	CreateEvidenceType(ctx context.Context, et *RuleEvidenceType) error
	GetEvidenceType(ctx context.Context, id string) (*RuleEvidenceType, error)
	ListEvidenceTypes(ctx context.Context, planType string) ([]RuleEvidenceType, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateRuleDefinition(ctx context.Context, def *RuleDefinition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	configJSON, err := json.Marshal(def.DefaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	query := `
		INSERT INTO rule_definitions (id, key, name, description, default_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.Key, def.Name, def.Description,
		configJSON, def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrDuplicateRuleKey.WithCause(err).
				WithDetail("message", fmt.Sprintf("rule definition with key '%s' already exists", def.Key))
		}
		return fmt.Errorf("failed to create rule definition: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetRuleDefinition(ctx context.Context, id string) (*RuleDefinition, error) {
	return r.getRuleDefinition(ctx, "id", id)
}

func (r *PostgresRepository) GetRuleDefinitionByKey(ctx context.Context, key string) (*RuleDefinition, error) {
	return r.getRuleDefinition(ctx, "key", key)
}

func (r *PostgresRepository) getRuleDefinition(ctx context.Context, column, value string) (*RuleDefinition, error) {
	query := fmt.Sprintf(`
		SELECT id, key, name, description, default_config, created_at, updated_at
		FROM rule_definitions
		WHERE %s = $1
	`, column)

	row := r.db.QueryRowContext(ctx, query, value)

	def, err := scanRuleDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule definition: %w", err)
	}

	return def, nil
}

func (r *PostgresRepository) ListRuleDefinitions(ctx context.Context) ([]RuleDefinition, error) {
	query := `
		SELECT id, key, name, description, default_config, created_at, updated_at
		FROM rule_definitions
		ORDER BY key
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule definitions: %w", err)
	}
	defer rows.Close()

	var defs []RuleDefinition
	for rows.Next() {
		def, err := scanRuleDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule definition: %w", err)
		}
		defs = append(defs, *def)
	}

	return defs, rows.Err()
}

// UpdateRuleDefinition touches descriptive fields only. Key and default
// config stay fixed once a pack rule may reference the definition.
func (r *PostgresRepository) UpdateRuleDefinition(ctx context.Context, def *RuleDefinition) error {
	def.UpdatedAt = time.Now()

	query := `
		UPDATE rule_definitions
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`

	res, err := r.db.ExecContext(ctx, query, def.Name, def.Description, def.UpdatedAt, def.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule definition: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", def.ID)
	}

	return nil
}

func (r *PostgresRepository) CreateEvidenceType(ctx context.Context, et *RuleEvidenceType) error {
	if et.ID == "" {
		et.ID = uuid.New().String()
	}
	if et.AppliesTo == "" {
		et.AppliesTo = constants.PlanTypeAll
	}
	et.CreatedAt = time.Now()

	query := `
		INSERT INTO rule_evidence_types (id, key, name, applies_to, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, et.ID, et.Key, et.Name, et.AppliesTo, et.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrDuplicateRuleKey.WithCause(err).
				WithDetail("message", fmt.Sprintf("evidence type with key '%s' already exists", et.Key))
		}
		return fmt.Errorf("failed to create evidence type: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetEvidenceType(ctx context.Context, id string) (*RuleEvidenceType, error) {
	query := `
		SELECT id, key, name, applies_to, created_at
		FROM rule_evidence_types
		WHERE id = $1
	`

	var et RuleEvidenceType
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&et.ID, &et.Key, &et.Name, &et.AppliesTo, &et.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence type: %w", err)
	}

	return &et, nil
}

// ListEvidenceTypes returns evidence types applicable to planType; types
// marked ALL always apply. An empty planType returns everything.
func (r *PostgresRepository) ListEvidenceTypes(ctx context.Context, planType string) ([]RuleEvidenceType, error) {
	query := `
		SELECT id, key, name, applies_to, created_at
		FROM rule_evidence_types
	`
	var args []interface{}
	if planType != "" {
		query += ` WHERE applies_to = $1 OR applies_to = $2`
		args = []interface{}{planType, constants.PlanTypeAll}
	}
	query += ` ORDER BY key`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence types: %w", err)
	}
	defer rows.Close()

	var types []RuleEvidenceType
	for rows.Next() {
		var et RuleEvidenceType
		if err := rows.Scan(&et.ID, &et.Key, &et.Name, &et.AppliesTo, &et.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence type: %w", err)
		}
		types = append(types, et)
	}

	return types, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRuleDefinition(row rowScanner) (*RuleDefinition, error) {
	var def RuleDefinition
	var configJSON []byte

	if err := row.Scan(
		&def.ID, &def.Key, &def.Name, &def.Description,
		&configJSON, &def.CreatedAt, &def.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &def.DefaultConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
		}
	}

	return &def, nil
}
