package rulepack

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PackAuditLog records one administrative mutation of a rule pack.
type PackAuditLog struct {
	ID        string                 `json:"id"`
	PackID    *string                `json:"pack_id,omitempty"`
	Action    string                 `json:"action"`
	OldValue  map[string]interface{} `json:"old_value,omitempty"`
	NewValue  map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy string                 `json:"changed_by"`
	Timestamp time.Time              `json:"timestamp"`
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, log *PackAuditLog) error
	GetAuditLogs(ctx context.Context, packID *string, limit int) ([]PackAuditLog, error)
}

type postgresAuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) CreateAuditLog(ctx context.Context, log *PackAuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	var oldValueJSON, newValueJSON []byte
	var err error

	if log.OldValue != nil {
		oldValueJSON, err = json.Marshal(log.OldValue)
		if err != nil {
			return fmt.Errorf("failed to marshal old value: %w", err)
		}
	}

	if log.NewValue != nil {
		newValueJSON, err = json.Marshal(log.NewValue)
		if err != nil {
			return fmt.Errorf("failed to marshal new value: %w", err)
		}
	}

	query := `
		INSERT INTO rule_pack_audit_logs (id, pack_id, action, old_value, new_value, changed_by, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.PackID, log.Action, oldValueJSON, newValueJSON, log.ChangedBy, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

func (r *postgresAuditRepository) GetAuditLogs(ctx context.Context, packID *string, limit int) ([]PackAuditLog, error) {
	var query string
	var args []interface{}

	if packID != nil {
		query = `
			SELECT id, pack_id, action, old_value, new_value, changed_by, timestamp
			FROM rule_pack_audit_logs
			WHERE pack_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{*packID, limit}
	} else {
		query = `
			SELECT id, pack_id, action, old_value, new_value, changed_by, timestamp
			FROM rule_pack_audit_logs
			ORDER BY timestamp DESC
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []PackAuditLog
	for rows.Next() {
		var log PackAuditLog
		var oldValueJSON, newValueJSON []byte

		if err := rows.Scan(
			&log.ID, &log.PackID, &log.Action, &oldValueJSON, &newValueJSON, &log.ChangedBy, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if len(oldValueJSON) > 0 {
			if err := json.Unmarshal(oldValueJSON, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}
		if len(newValueJSON) > 0 {
			if err := json.Unmarshal(newValueJSON, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func packToMap(pack *RulePack) (map[string]interface{}, error) {
	data, err := json.Marshal(pack)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
