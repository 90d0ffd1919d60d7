package meeting

import (
	"context"
	"fmt"
	"time"

	"planguard/internal/constants"
	"planguard/internal/logger"
	pkgerrors "planguard/pkg/errors"
	"planguard/pkg/models"
)

// GateChecker is the enforcement side of the close transition. The meeting
// workflow consults it but never interprets rule results itself.
type GateChecker interface {
	CanCloseMeeting(ctx context.Context, meetingID string) (*models.GateDecision, error)
}

type Service interface {
	CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*Meeting, error)
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	MarkHeld(ctx context.Context, id string) (*Meeting, error)
	Close(ctx context.Context, id string) (*models.GateDecision, *Meeting, error)
	Cancel(ctx context.Context, id string) (*Meeting, error)
	SubmitEvidence(ctx context.Context, meetingID string, req SubmitEvidenceRequest) (*Evidence, error)
	ListEvidence(ctx context.Context, meetingID string) ([]Evidence, error)
}

type service struct {
	repo Repository
	gate GateChecker
	log  logger.Logger
}

type ServiceOption func(*service)

func WithCloseGate(gate GateChecker) ServiceOption {
	return func(s *service) {
		s.gate = gate
	}
}

func NewService(repo Repository, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		repo: repo,
		log:  log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var validPlanTypes = map[string]bool{
	constants.PlanTypeIEP: true,
	constants.PlanType504: true,
	constants.PlanTypeBIP: true,
}

var validConsentStatuses = map[string]bool{
	constants.ConsentObtained: true,
	constants.ConsentPending:  true,
	constants.ConsentRefused:  true,
}

func (s *service) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*Meeting, error) {
	if !validPlanTypes[req.PlanType] {
		return nil, pkgerrors.ErrValidation.
			WithDetail("message", fmt.Sprintf("invalid plan_type: %s. Allowed: IEP, PLAN504, BIP", req.PlanType))
	}
	consent := req.ConsentStatus
	if consent == "" {
		consent = constants.ConsentPending
	}
	if !validConsentStatuses[consent] {
		return nil, pkgerrors.ErrValidation.
			WithDetail("message", fmt.Sprintf("invalid consent_status: %s. Allowed: OBTAINED, PENDING, REFUSED", req.ConsentStatus))
	}

	m := &Meeting{
		PlanType:        req.PlanType,
		MeetingTypeCode: req.MeetingTypeCode,
		Status:          constants.MeetingStatusScheduled,
		ScheduledAt:     req.ScheduledAt,
		ConsentStatus:   consent,
		SchoolID:        req.SchoolID,
		DistrictID:      req.DistrictID,
		StateCode:       req.StateCode,
	}

	if err := s.repo.CreateMeeting(ctx, m); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return m, nil
}

func (s *service) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	m, err := s.repo.GetMeeting(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if m == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return m, nil
}

func (s *service) MarkHeld(ctx context.Context, id string) (*Meeting, error) {
	m, err := s.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	if m.Status != constants.MeetingStatusScheduled {
		return nil, pkgerrors.ErrInvalidTransition.
			WithDetail("message", fmt.Sprintf("cannot mark a %s meeting as held", m.Status))
	}

	now := time.Now()
	if err := s.repo.SetStatus(ctx, id, constants.MeetingStatusHeld, &now); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return s.GetMeeting(ctx, id)
}

// Close runs the enforcement gate and transitions the meeting only when
// the gate allows. A denied gate is a result, not an error.
func (s *service) Close(ctx context.Context, id string) (*models.GateDecision, *Meeting, error) {
	m, err := s.GetMeeting(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if s.gate == nil {
		return nil, nil, pkgerrors.ErrInternal.WithDetail("message", "close gate not configured")
	}

	decision, err := s.gate.CanCloseMeeting(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !decision.Allowed {
		return decision, m, nil
	}

	if err := s.repo.SetStatus(ctx, id, constants.MeetingStatusClosed, nil); err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	m, err = s.GetMeeting(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return decision, m, nil
}

// Cancel is terminal and bypasses enforcement entirely.
func (s *service) Cancel(ctx context.Context, id string) (*Meeting, error) {
	m, err := s.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	if m.Status != constants.MeetingStatusScheduled && m.Status != constants.MeetingStatusHeld {
		return nil, pkgerrors.ErrInvalidTransition.
			WithDetail("message", fmt.Sprintf("cannot cancel a %s meeting", m.Status))
	}

	if err := s.repo.SetStatus(ctx, id, constants.MeetingStatusCanceled, nil); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return s.GetMeeting(ctx, id)
}

func (s *service) SubmitEvidence(ctx context.Context, meetingID string, req SubmitEvidenceRequest) (*Evidence, error) {
	m, err := s.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	if m.Status == constants.MeetingStatusClosed || m.Status == constants.MeetingStatusCanceled {
		return nil, pkgerrors.ErrInvalidTransition.
			WithDetail("message", fmt.Sprintf("cannot submit evidence for a %s meeting", m.Status))
	}

	ev := &Evidence{
		MeetingID:       meetingID,
		EvidenceTypeID:  req.EvidenceTypeID,
		Note:            req.Note,
		EvidenceDate:    req.EvidenceDate,
		DeliveryMethod:  req.DeliveryMethod,
		CreatedByUserID: req.CreatedByUserID,
	}

	if err := s.repo.UpsertEvidence(ctx, ev); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrUnknownEvidenceType) || pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return ev, nil
}

func (s *service) ListEvidence(ctx context.Context, meetingID string) ([]Evidence, error) {
	if _, err := s.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}

	evidence, err := s.repo.ListEvidence(ctx, meetingID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return evidence, nil
}
