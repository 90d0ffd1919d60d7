package meeting

import "time"

// Meeting is the workflow record the engine gates. Scope identifiers are
// opaque strings supplied by the case-management side; the engine only
// compares them for equality.
type Meeting struct {
	ID              string     `json:"id" db:"id"`
	PlanType        string     `json:"plan_type" db:"plan_type"`
	MeetingTypeCode string     `json:"meeting_type_code" db:"meeting_type_code"`
	Status          string     `json:"status" db:"status"`
	ScheduledAt     time.Time  `json:"scheduled_at" db:"scheduled_at"`
	HeldAt          *time.Time `json:"held_at,omitempty" db:"held_at"`
	ConsentStatus   string     `json:"consent_status" db:"consent_status"`
	SchoolID        string     `json:"school_id" db:"school_id"`
	DistrictID      string     `json:"district_id" db:"district_id"`
	StateCode       string     `json:"state_code" db:"state_code"`
	RulePackID      *string    `json:"rule_pack_id,omitempty" db:"rule_pack_id"`
	RulePackVersion *int       `json:"rule_pack_version,omitempty" db:"rule_pack_version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Evidence is one collected artifact, unique per (meeting, evidence type).
// Submission is an upsert: re-submitting a type overwrites the record.
type Evidence struct {
	ID              string    `json:"id" db:"id"`
	MeetingID       string    `json:"meeting_id" db:"meeting_id"`
	EvidenceTypeID  string    `json:"evidence_type_id" db:"evidence_type_id"`
	EvidenceKey     string    `json:"evidence_key" db:"evidence_key"`
	Note            string    `json:"note" db:"note"`
	EvidenceDate    time.Time `json:"evidence_date" db:"evidence_date"`
	DeliveryMethod  string    `json:"delivery_method" db:"delivery_method"`
	CreatedByUserID string    `json:"created_by_user_id" db:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type CreateMeetingRequest struct {
	PlanType        string    `json:"plan_type" binding:"required"`
	MeetingTypeCode string    `json:"meeting_type_code" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	ConsentStatus   string    `json:"consent_status"`
	SchoolID        string    `json:"school_id"`
	DistrictID      string    `json:"district_id"`
	StateCode       string    `json:"state_code"`
}

type SubmitEvidenceRequest struct {
	EvidenceTypeID  string    `json:"evidence_type_id" binding:"required"`
	Note            string    `json:"note"`
	EvidenceDate    time.Time `json:"evidence_date"`
	DeliveryMethod  string    `json:"delivery_method"`
	CreatedByUserID string    `json:"created_by_user_id"`
}
