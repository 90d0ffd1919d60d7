package meeting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "planguard/pkg/errors"
)

type Repository interface {
	CreateMeeting(ctx context.Context, m *Meeting) error
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	SetStatus(ctx context.Context, id, status string, heldAt *time.Time) error
	SetPackSnapshot(ctx context.Context, id, packID string, packVersion int) error
	ListEvidence(ctx context.Context, meetingID string) ([]Evidence, error)
	UpsertEvidence(ctx context.Context, ev *Evidence) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateMeeting(ctx context.Context, m *Meeting) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO plan_meetings (id, plan_type, meeting_type_code, status, scheduled_at, held_at, consent_status, school_id, district_id, state_code, rule_pack_id, rule_pack_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.PlanType, m.MeetingTypeCode, m.Status, m.ScheduledAt, m.HeldAt,
		m.ConsentStatus, m.SchoolID, m.DistrictID, m.StateCode,
		m.RulePackID, m.RulePackVersion, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	query := `
		SELECT id, plan_type, meeting_type_code, status, scheduled_at, held_at, consent_status, school_id, district_id, state_code, rule_pack_id, rule_pack_version, created_at, updated_at
		FROM plan_meetings
		WHERE id = $1
	`

	var m Meeting
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.PlanType, &m.MeetingTypeCode, &m.Status, &m.ScheduledAt, &m.HeldAt,
		&m.ConsentStatus, &m.SchoolID, &m.DistrictID, &m.StateCode,
		&m.RulePackID, &m.RulePackVersion, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	return &m, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id, status string, heldAt *time.Time) error {
	query := `
		UPDATE plan_meetings
		SET status = $1, held_at = COALESCE($2, held_at), updated_at = $3
		WHERE id = $4
	`

	res, err := r.db.ExecContext(ctx, query, status, heldAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	return nil
}

// SetPackSnapshot records which pack version the meeting is evaluated
// against. Only set once; later pack edits do not move the snapshot.
func (r *PostgresRepository) SetPackSnapshot(ctx context.Context, id, packID string, packVersion int) error {
	query := `
		UPDATE plan_meetings
		SET rule_pack_id = $1, rule_pack_version = $2, updated_at = $3
		WHERE id = $4 AND rule_pack_id IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, packID, packVersion, time.Now(), id); err != nil {
		return fmt.Errorf("failed to snapshot rule pack: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListEvidence(ctx context.Context, meetingID string) ([]Evidence, error) {
	query := `
		SELECT me.id, me.meeting_id, me.evidence_type_id, et.key, me.note, me.evidence_date, me.delivery_method, me.created_by_user_id, me.created_at, me.updated_at
		FROM meeting_evidence me
		JOIN rule_evidence_types et ON et.id = me.evidence_type_id
		WHERE me.meeting_id = $1
		ORDER BY me.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var evidence []Evidence
	for rows.Next() {
		var ev Evidence
		if err := rows.Scan(
			&ev.ID, &ev.MeetingID, &ev.EvidenceTypeID, &ev.EvidenceKey, &ev.Note,
			&ev.EvidenceDate, &ev.DeliveryMethod, &ev.CreatedByUserID, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		evidence = append(evidence, ev)
	}

	return evidence, rows.Err()
}

// UpsertEvidence enforces one record per (meeting, evidence type);
// re-submission overwrites the existing record.
func (r *PostgresRepository) UpsertEvidence(ctx context.Context, ev *Evidence) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.EvidenceDate.IsZero() {
		ev.EvidenceDate = now
	}

	query := `
		INSERT INTO meeting_evidence (id, meeting_id, evidence_type_id, note, evidence_date, delivery_method, created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (meeting_id, evidence_type_id) DO UPDATE
		SET note = EXCLUDED.note,
		    evidence_date = EXCLUDED.evidence_date,
		    delivery_method = EXCLUDED.delivery_method,
		    created_by_user_id = EXCLUDED.created_by_user_id,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.MeetingID, ev.EvidenceTypeID, ev.Note, ev.EvidenceDate,
		ev.DeliveryMethod, ev.CreatedByUserID, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			if pqErr.Constraint == "meeting_evidence_evidence_type_id_fkey" {
				return pkgerrors.ErrUnknownEvidenceType.WithCause(err).
					WithDetail("evidence_type_id", ev.EvidenceTypeID)
			}
			return pkgerrors.ErrNotFound.WithCause(err).WithDetail("meeting_id", ev.MeetingID)
		}
		return fmt.Errorf("failed to upsert evidence: %w", err)
	}

	return nil
}
