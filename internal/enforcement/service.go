package enforcement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"planguard/internal/config"
	"planguard/internal/constants"
	"planguard/internal/logger"
	"planguard/internal/meeting"
	"planguard/internal/resolver"
	"planguard/internal/rulepack"
	pkgcel "planguard/pkg/cel"
	pkgerrors "planguard/pkg/errors"
	"planguard/pkg/metrics"
	"planguard/pkg/models"
	"planguard/pkg/tracing"
)

const (
	GateClose     = "close"
	GateImplement = "implement"

	reasonRulesUnsatisfied = "RULES_UNSATISFIED"
)

// PackReader is the slice of the rule pack repository the evaluator needs
// for snapshot lookups.
type PackReader interface {
	GetPack(ctx context.Context, id string) (*rulepack.RulePack, error)
}

type Service interface {
	// Report evaluates the meeting's evidence against its rule pack without
	// gating any transition.
	Report(ctx context.Context, meetingID string) (*models.EnforcementReport, error)
	DueDates(ctx context.Context, meetingID string) (map[string]time.Time, error)
	CanCloseMeeting(ctx context.Context, meetingID string) (*models.GateDecision, error)
	CanImplementPlan(ctx context.Context, meetingID string) (*models.GateDecision, error)
}

type service struct {
	meetings meeting.Repository
	packs    PackReader
	resolver resolver.Service
	cel      *pkgcel.Evaluator
	cfg      config.EnforcementConfig
	log      logger.Logger
}

func NewService(meetings meeting.Repository, packs PackReader, res resolver.Service, cfg config.EnforcementConfig, log logger.Logger) (Service, error) {
	s := &service{
		meetings: meetings,
		packs:    packs,
		resolver: res,
		cfg:      cfg,
		log:      log,
	}

	if cfg.EvaluateAdvisoryConditions {
		evaluator, err := pkgcel.NewEvaluator()
		if err != nil {
			return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
		}
		s.cel = evaluator
	}

	return s, nil
}

func (s *service) Report(ctx context.Context, meetingID string) (*models.EnforcementReport, error) {
	m, pack, evidence, err := s.loadInputs(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	report := s.evaluate(ctx, m, evidence, pack)
	return &report, nil
}

func (s *service) DueDates(ctx context.Context, meetingID string) (map[string]time.Time, error) {
	m, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	pack, err := s.resolvePackForMeeting(ctx, m)
	if err != nil {
		return nil, err
	}

	return CalculateDueDates(m.ScheduledAt, pack), nil
}

// CanCloseMeeting gates the HELD -> CLOSED transition. A meeting that was
// never held is denied before rule evaluation, but the report is still
// produced so the caller can show both problems at once.
func (s *service) CanCloseMeeting(ctx context.Context, meetingID string) (*models.GateDecision, error) {
	m, pack, evidence, err := s.loadInputs(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	report := s.evaluate(ctx, m, evidence, pack)

	var gateErrors []models.GateError
	if m.Status != constants.MeetingStatusHeld {
		gateErrors = append(gateErrors, models.GateError{
			Code:    pkgerrors.ErrMeetingNotHeld.Code,
			Message: pkgerrors.ErrMeetingNotHeld.Message,
		})
	}
	gateErrors = appendRuleFailures(gateErrors, report)

	return s.decide(GateClose, gateErrors, report), nil
}

// CanImplementPlan gates plan implementation. The initial-IEP consent
// requirement is a fixed legal precondition, deliberately not expressed
// as a catalog rule.
func (s *service) CanImplementPlan(ctx context.Context, meetingID string) (*models.GateDecision, error) {
	m, pack, evidence, err := s.loadInputs(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	report := s.evaluate(ctx, m, evidence, pack)

	var gateErrors []models.GateError
	if m.MeetingTypeCode == constants.MeetingTypeInitial &&
		m.PlanType == constants.PlanTypeIEP &&
		m.ConsentStatus != constants.ConsentObtained {
		gateErrors = append(gateErrors, models.GateError{
			Code:    pkgerrors.ErrConsentRequired.Code,
			Message: pkgerrors.ErrConsentRequired.Message,
		})
	}
	gateErrors = appendRuleFailures(gateErrors, report)

	return s.decide(GateImplement, gateErrors, report), nil
}

func (s *service) decide(gate string, gateErrors []models.GateError, report models.EnforcementReport) *models.GateDecision {
	allowed := len(gateErrors) == 0
	if !allowed {
		for _, ge := range gateErrors {
			metrics.GateDenialsTotal.WithLabelValues(gate, ge.Code).Inc()
		}
	}

	return &models.GateDecision{
		Allowed: allowed,
		Errors:  gateErrors,
		Report:  report,
	}
}

func appendRuleFailures(gateErrors []models.GateError, report models.EnforcementReport) []models.GateError {
	if report.Allowed {
		return gateErrors
	}

	var failing []string
	for _, rr := range report.RuleResults {
		if !rr.Advisory && !rr.Satisfied {
			failing = append(failing, rr.RuleKey)
		}
	}

	return append(gateErrors, models.GateError{
		Code:    reasonRulesUnsatisfied,
		Message: fmt.Sprintf("required evidence missing for rules: %s", strings.Join(failing, ", ")),
	})
}

// evaluate checks every enabled rule's required evidence against the
// meeting's collected evidence. A nil pack means no enforcement applies.
func (s *service) evaluate(ctx context.Context, m *meeting.Meeting, evidence []meeting.Evidence, pack *rulepack.RulePack) models.EnforcementReport {
	ctx, span := tracing.GetTracer("compliance-service").Start(ctx, "enforcement.evaluate")
	defer span.End()

	start := time.Now()

	report := models.EnforcementReport{
		Allowed:     true,
		RuleResults: []models.RuleResult{},
	}
	if pack == nil {
		s.observe(start, report.Allowed)
		return report
	}

	present := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		present[ev.EvidenceTypeID] = true
	}

	for _, rule := range pack.Rules {
		if !rule.IsEnabled {
			continue
		}

		var missing []string
		for _, req := range rule.Requirements {
			if !req.IsRequired {
				continue
			}
			if !present[req.EvidenceTypeID] {
				missing = append(missing, req.EvidenceKey)
			}
		}
		sort.Strings(missing)

		satisfied := len(missing) == 0
		report.RuleResults = append(report.RuleResults, models.RuleResult{
			RuleKey:             rule.RuleKey,
			Satisfied:           satisfied,
			MissingEvidenceKeys: missing,
		})
		if !satisfied {
			report.Allowed = false
		}

		if advisory, ok := s.evaluateAdvisory(ctx, m, evidence, rule); ok {
			report.RuleResults = append(report.RuleResults, advisory)
		}
	}

	s.observe(start, report.Allowed)
	return report
}

// evaluateAdvisory runs the rule's config condition when advisory
// evaluation is enabled. The result is informational and never changes
// the blocking outcome.
func (s *service) evaluateAdvisory(ctx context.Context, m *meeting.Meeting, evidence []meeting.Evidence, rule rulepack.PackRule) (models.RuleResult, bool) {
	if s.cel == nil {
		return models.RuleResult{}, false
	}

	condition := rule.MergedConfig().Condition
	if condition == "" {
		return models.RuleResult{}, false
	}

	keys := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		keys = append(keys, ev.EvidenceKey)
	}

	satisfied, err := s.cel.EvaluateCondition(ctx, condition, pkgcel.ConditionInput{
		PlanType:        m.PlanType,
		MeetingTypeCode: m.MeetingTypeCode,
		MeetingStatus:   m.Status,
		ConsentStatus:   m.ConsentStatus,
		ScheduledAt:     m.ScheduledAt,
		EvidenceKeys:    keys,
	})
	if err != nil {
		s.log.WarnwCtx(ctx, "Advisory condition evaluation failed",
			"rule_key", rule.RuleKey, "error", err)
		return models.RuleResult{}, false
	}

	return models.RuleResult{
		RuleKey:   rule.RuleKey,
		Satisfied: satisfied,
		Advisory:  true,
	}, true
}

func (s *service) observe(start time.Time, allowed bool) {
	outcome := metrics.EvaluationOutcome(allowed)
	metrics.EvaluationsTotal.WithLabelValues(outcome).Inc()
	metrics.ObserveEvaluationDuration(time.Since(start), outcome)
}

func (s *service) loadInputs(ctx context.Context, meetingID string) (*meeting.Meeting, *rulepack.RulePack, []meeting.Evidence, error) {
	m, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, nil, nil, err
	}

	pack, err := s.resolvePackForMeeting(ctx, m)
	if err != nil {
		return nil, nil, nil, err
	}

	evidence, err := s.meetings.ListEvidence(ctx, meetingID)
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return m, pack, evidence, nil
}

func (s *service) getMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	m, err := s.meetings.GetMeeting(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if m == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return m, nil
}

// resolvePackForMeeting prefers the meeting's snapshotted pack so later
// pack edits never silently change a meeting's enforcement. The first
// live resolution records the snapshot.
func (s *service) resolvePackForMeeting(ctx context.Context, m *meeting.Meeting) (*rulepack.RulePack, error) {
	if m.RulePackID != nil {
		pack, err := s.packs.GetPack(ctx, *m.RulePackID)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		return pack, nil
	}

	pack, err := s.resolver.ResolveActivePack(ctx, resolver.Query{
		SchoolID:   m.SchoolID,
		DistrictID: m.DistrictID,
		StateCode:  m.StateCode,
		PlanType:   m.PlanType,
	})
	if err != nil {
		return nil, err
	}

	if pack != nil {
		if err := s.meetings.SetPackSnapshot(ctx, m.ID, pack.ID, pack.Version); err != nil {
			s.log.WarnwCtx(ctx, "Failed to record pack snapshot",
				"meeting_id", m.ID, "pack_id", pack.ID, "error", err)
		}
	}

	return pack, nil
}
