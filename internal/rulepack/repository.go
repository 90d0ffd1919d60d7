package rulepack

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"planguard/internal/constants"
	pkgerrors "planguard/pkg/errors"
)

type Repository interface {
	CreatePack(ctx context.Context, pack *RulePack) error
	GetPack(ctx context.Context, id string) (*RulePack, error)
	ListPacks(ctx context.Context, filter PackFilter) ([]RulePack, error)
	SetActive(ctx context.Context, packID string, active bool) (*RulePack, error)
	ReplaceRules(ctx context.Context, packID string, rules []PackRule) error
	ReplaceEvidenceRequirements(ctx context.Context, packRuleID string, reqs []EvidenceRequirement) error
	GetPackRule(ctx context.Context, packRuleID string) (*PackRule, error)
	FindActive(ctx context.Context, scopeType, scopeID, planType string, asOf time.Time) (*RulePack, error)
	CountActive(ctx context.Context) (int, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// CreatePack assigns the next version for the pack's scope key and, when
// the pack starts active, deactivates siblings in the same transaction.
// The partial unique index on active packs backstops concurrent writers.
func (r *PostgresRepository) CreatePack(ctx context.Context, pack *RulePack) error {
	if pack.ID == "" {
		pack.ID = uuid.New().String()
	}
	now := time.Now()
	pack.CreatedAt = now
	pack.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if pack.IsActive {
		// exceptID must be a valid uuid; the new row is not inserted yet,
		// so its own id excludes nothing.
		if err := deactivateSiblings(ctx, tx, pack.ScopeType, pack.ScopeID, pack.PlanType, pack.ID); err != nil {
			return err
		}
	}

	versionQuery := `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM rule_packs
		WHERE scope_type = $1 AND scope_id = $2 AND plan_type = $3
	`
	if err := tx.QueryRowContext(ctx, versionQuery, pack.ScopeType, pack.ScopeID, pack.PlanType).Scan(&pack.Version); err != nil {
		return fmt.Errorf("failed to compute next version: %w", err)
	}

	insertQuery := `
		INSERT INTO rule_packs (id, scope_type, scope_id, plan_type, name, version, is_active, effective_from, effective_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		pack.ID, pack.ScopeType, pack.ScopeID, pack.PlanType, pack.Name,
		pack.Version, pack.IsActive, pack.EffectiveFrom, pack.EffectiveTo,
		pack.CreatedAt, pack.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", "concurrent pack write for the same scope key, retry the request")
		}
		return fmt.Errorf("failed to insert pack: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pack creation: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetPack(ctx context.Context, id string) (*RulePack, error) {
	query := packSelect + ` WHERE id = $1`

	pack, err := scanPack(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	if err := r.loadRules(ctx, pack); err != nil {
		return nil, err
	}

	return pack, nil
}

func (r *PostgresRepository) ListPacks(ctx context.Context, filter PackFilter) ([]RulePack, error) {
	query := packSelect
	var conds []string
	var args []interface{}

	addCond := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ScopeType != "" {
		addCond("scope_type = $%d", filter.ScopeType)
	}
	if filter.ScopeID != "" {
		addCond("scope_id = $%d", filter.ScopeID)
	}
	if filter.PlanType != "" {
		addCond("plan_type = $%d", filter.PlanType)
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY scope_type, scope_id, plan_type, version DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	defer rows.Close()

	var packs []RulePack
	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pack: %w", err)
		}
		packs = append(packs, *pack)
	}

	return packs, rows.Err()
}

// SetActive flips a pack's active flag. Activation deactivates siblings
// sharing the scope key inside the same transaction so no reader ever
// observes two active packs for one key.
func (r *PostgresRepository) SetActive(ctx context.Context, packID string, active bool) (*RulePack, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var scopeType, scopeID, planType string
	lockQuery := `SELECT scope_type, scope_id, plan_type FROM rule_packs WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, lockQuery, packID).Scan(&scopeType, &scopeID, &planType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", packID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock pack: %w", err)
	}

	if active {
		if err := deactivateSiblings(ctx, tx, scopeType, scopeID, planType, packID); err != nil {
			return nil, err
		}
	}

	updateQuery := `UPDATE rule_packs SET is_active = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, active, time.Now(), packID); err != nil {
		return nil, fmt.Errorf("failed to update pack: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return r.GetPack(ctx, packID)
}

func deactivateSiblings(ctx context.Context, tx *sql.Tx, scopeType, scopeID, planType, exceptID string) error {
	query := `
		UPDATE rule_packs
		SET is_active = false, updated_at = $4
		WHERE scope_type = $1 AND scope_id = $2 AND plan_type = $3 AND is_active AND id != $5
	`
	if _, err := tx.ExecContext(ctx, query, scopeType, scopeID, planType, time.Now(), exceptID); err != nil {
		return fmt.Errorf("failed to deactivate sibling packs: %w", err)
	}
	return nil
}

// ReplaceRules implements the full-replace contract: the pack's rule set is
// deleted and rebuilt from the input inside one transaction. An unknown
// rule definition aborts the whole batch.
func (r *PostgresRepository) ReplaceRules(ctx context.Context, packID string, rules []PackRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT true FROM rule_packs WHERE id = $1 FOR UPDATE`, packID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pkgerrors.ErrNotFound.WithDetail("id", packID)
		}
		return fmt.Errorf("failed to lock pack: %w", err)
	}

	// Requirements cascade with their rules
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_pack_rules WHERE rule_pack_id = $1`, packID); err != nil {
		return fmt.Errorf("failed to clear pack rules: %w", err)
	}

	insertQuery := `
		INSERT INTO rule_pack_rules (id, rule_pack_id, rule_definition_id, is_enabled, config, sort_order, ordinal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range rules {
		rule := &rules[i]
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		rule.RulePackID = packID

		configJSON, err := json.Marshal(rule.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal rule config: %w", err)
		}

		_, err = tx.ExecContext(ctx, insertQuery,
			rule.ID, packID, rule.RuleDefinitionID, rule.IsEnabled, configJSON, rule.SortOrder, i,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
				return pkgerrors.ErrUnknownRuleDefinition.WithCause(err).
					WithDetail("rule_definition_id", rule.RuleDefinitionID)
			}
			return fmt.Errorf("failed to insert pack rule: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rule_packs SET updated_at = $1 WHERE id = $2`, time.Now(), packID); err != nil {
		return fmt.Errorf("failed to touch pack: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule replacement: %w", err)
	}

	return nil
}

// ReplaceEvidenceRequirements has the same full-replace contract scoped to
// one pack rule.
func (r *PostgresRepository) ReplaceEvidenceRequirements(ctx context.Context, packRuleID string, reqs []EvidenceRequirement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT true FROM rule_pack_rules WHERE id = $1 FOR UPDATE`, packRuleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pkgerrors.ErrNotFound.WithDetail("pack_rule_id", packRuleID)
		}
		return fmt.Errorf("failed to lock pack rule: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_pack_evidence_requirements WHERE pack_rule_id = $1`, packRuleID); err != nil {
		return fmt.Errorf("failed to clear evidence requirements: %w", err)
	}

	insertQuery := `
		INSERT INTO rule_pack_evidence_requirements (id, pack_rule_id, evidence_type_id, is_required)
		VALUES ($1, $2, $3, $4)
	`
	for i := range reqs {
		req := &reqs[i]
		if req.ID == "" {
			req.ID = uuid.New().String()
		}
		req.PackRuleID = packRuleID

		_, err := tx.ExecContext(ctx, insertQuery, req.ID, packRuleID, req.EvidenceTypeID, req.IsRequired)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
				return pkgerrors.ErrUnknownEvidenceType.WithCause(err).
					WithDetail("evidence_type_id", req.EvidenceTypeID)
			}
			return fmt.Errorf("failed to insert evidence requirement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit requirement replacement: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetPackRule(ctx context.Context, packRuleID string) (*PackRule, error) {
	query := `
		SELECT pr.id, pr.rule_pack_id, pr.rule_definition_id, rd.key, pr.is_enabled, pr.config, rd.default_config, pr.sort_order
		FROM rule_pack_rules pr
		JOIN rule_definitions rd ON rd.id = pr.rule_definition_id
		WHERE pr.id = $1
	`

	rule, err := scanPackRule(r.db.QueryRowContext(ctx, query, packRuleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pack rule: %w", err)
	}

	if err := r.loadRequirements(ctx, map[string]*PackRule{rule.ID: rule}); err != nil {
		return nil, err
	}

	return rule, nil
}

// FindActive returns the single qualifying active pack for one scope level,
// preferring the exact plan type over ALL. Nil without error means no pack
// applies at this level.
func (r *PostgresRepository) FindActive(ctx context.Context, scopeType, scopeID, planType string, asOf time.Time) (*RulePack, error) {
	query := `
		SELECT id
		FROM rule_packs
		WHERE scope_type = $1 AND scope_id = $2
		  AND (plan_type = $3 OR plan_type = $4)
		  AND is_active
		  AND effective_from <= $5
		  AND (effective_to IS NULL OR effective_to > $5)
		ORDER BY (plan_type = $3) DESC
		LIMIT 1
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, scopeType, scopeID, planType, constants.PlanTypeAll, asOf).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active pack: %w", err)
	}

	return r.GetPack(ctx, id)
}

func (r *PostgresRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rule_packs WHERE is_active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active packs: %w", err)
	}
	return n, nil
}

const packSelect = `
	SELECT id, scope_type, scope_id, plan_type, name, version, is_active, effective_from, effective_to, created_at, updated_at
	FROM rule_packs
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPack(row rowScanner) (*RulePack, error) {
	var pack RulePack
	if err := row.Scan(
		&pack.ID, &pack.ScopeType, &pack.ScopeID, &pack.PlanType, &pack.Name,
		&pack.Version, &pack.IsActive, &pack.EffectiveFrom, &pack.EffectiveTo,
		&pack.CreatedAt, &pack.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &pack, nil
}

func scanPackRule(row rowScanner) (*PackRule, error) {
	var rule PackRule
	var configJSON, defaultConfigJSON []byte

	if err := row.Scan(
		&rule.ID, &rule.RulePackID, &rule.RuleDefinitionID, &rule.RuleKey,
		&rule.IsEnabled, &configJSON, &defaultConfigJSON, &rule.SortOrder,
	); err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &rule.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule config: %w", err)
		}
	}
	if len(defaultConfigJSON) > 0 {
		if err := json.Unmarshal(defaultConfigJSON, &rule.DefaultConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
		}
	}

	return &rule, nil
}

// loadRules hydrates the pack's rules and their evidence requirements in
// evaluation order: sort_order, ties broken by insertion order.
func (r *PostgresRepository) loadRules(ctx context.Context, pack *RulePack) error {
	query := `
		SELECT pr.id, pr.rule_pack_id, pr.rule_definition_id, rd.key, pr.is_enabled, pr.config, rd.default_config, pr.sort_order
		FROM rule_pack_rules pr
		JOIN rule_definitions rd ON rd.id = pr.rule_definition_id
		WHERE pr.rule_pack_id = $1
		ORDER BY pr.sort_order, pr.ordinal
	`

	rows, err := r.db.QueryContext(ctx, query, pack.ID)
	if err != nil {
		return fmt.Errorf("failed to load pack rules: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*PackRule)
	var order []string
	for rows.Next() {
		rule, err := scanPackRule(rows)
		if err != nil {
			return fmt.Errorf("failed to scan pack rule: %w", err)
		}
		byID[rule.ID] = rule
		order = append(order, rule.ID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(byID) > 0 {
		if err := r.loadRequirements(ctx, byID); err != nil {
			return err
		}
	}

	pack.Rules = make([]PackRule, 0, len(order))
	for _, id := range order {
		pack.Rules = append(pack.Rules, *byID[id])
	}

	return nil
}

func (r *PostgresRepository) loadRequirements(ctx context.Context, rules map[string]*PackRule) error {
	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}

	query := `
		SELECT er.id, er.pack_rule_id, er.evidence_type_id, et.key, er.is_required
		FROM rule_pack_evidence_requirements er
		JOIN rule_evidence_types et ON et.id = er.evidence_type_id
		WHERE er.pack_rule_id = ANY($1)
		ORDER BY et.key
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load evidence requirements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var req EvidenceRequirement
		if err := rows.Scan(&req.ID, &req.PackRuleID, &req.EvidenceTypeID, &req.EvidenceKey, &req.IsRequired); err != nil {
			return fmt.Errorf("failed to scan evidence requirement: %w", err)
		}
		if rule, ok := rules[req.PackRuleID]; ok {
			rule.Requirements = append(rule.Requirements, req)
		}
	}

	return rows.Err()
}
