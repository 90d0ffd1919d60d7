package rulepack

import (
	"context"

	"planguard/internal/constants"
	"planguard/internal/logger"
	pkgerrors "planguard/pkg/errors"
	"planguard/pkg/metrics"
	"planguard/pkg/models"
)

type Service interface {
	CreatePack(ctx context.Context, req CreatePackRequest) (*RulePack, error)
	GetPack(ctx context.Context, id string) (*RulePack, error)
	ListPacks(ctx context.Context, filter PackFilter) ([]RulePack, error)
	SetRules(ctx context.Context, packID string, req SetRulesRequest) (*RulePack, error)
	SetEvidenceRequirements(ctx context.Context, packRuleID string, req SetEvidenceRequirementsRequest) (*PackRule, error)
	Activate(ctx context.Context, packID string) (*RulePack, error)
	Deactivate(ctx context.Context, packID string) (*RulePack, error)
	GetAuditLogs(ctx context.Context, packID *string, limit int) ([]PackAuditLog, error)
}

// ResolvedPackInvalidator drops cached resolver results after a pack
// mutation. Implemented by the resolver's redis cache.
type ResolvedPackInvalidator interface {
	InvalidateResolved(ctx context.Context)
}

type service struct {
	repo        Repository
	auditRepo   AuditRepository
	events      *PackEventProducer
	invalidator ResolvedPackInvalidator
	log         logger.Logger
}

type ServiceOption func(*service)

func WithAudit(auditRepo AuditRepository) ServiceOption {
	return func(s *service) {
		s.auditRepo = auditRepo
	}
}

func WithPackEvents(events *PackEventProducer) ServiceOption {
	return func(s *service) {
		s.events = events
	}
}

func WithCacheInvalidator(invalidator ResolvedPackInvalidator) ServiceOption {
	return func(s *service) {
		s.invalidator = invalidator
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

func (s *service) CreatePack(ctx context.Context, req CreatePackRequest) (*RulePack, error) {
	if err := ValidateCreatePack(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	pack := &RulePack{
		ScopeType:     req.ScopeType,
		ScopeID:       req.ScopeID,
		PlanType:      req.PlanType,
		Name:          req.Name,
		IsActive:      req.IsActive,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
	}

	if err := s.repo.CreatePack(ctx, pack); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrConflict) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	metrics.PackMutationsTotal.WithLabelValues(models.ActionCreate).Inc()
	s.afterMutation(ctx, models.EventTypePackUpdated, models.ActionCreate, pack, nil)

	return pack, nil
}

func (s *service) GetPack(ctx context.Context, id string) (*RulePack, error) {
	pack, err := s.repo.GetPack(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if pack == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return pack, nil
}

func (s *service) ListPacks(ctx context.Context, filter PackFilter) ([]RulePack, error) {
	packs, err := s.repo.ListPacks(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return packs, nil
}

func (s *service) SetRules(ctx context.Context, packID string, req SetRulesRequest) (*RulePack, error) {
	if err := ValidateSetRules(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	oldPack, err := s.repo.GetPack(ctx, packID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if oldPack == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", packID)
	}

	rules := make([]PackRule, len(req.Rules))
	for i, input := range req.Rules {
		enabled := true
		if input.IsEnabled != nil {
			enabled = *input.IsEnabled
		}
		rules[i] = PackRule{
			RuleDefinitionID: input.RuleDefinitionID,
			IsEnabled:        enabled,
			Config:           input.Config,
			SortOrder:        input.SortOrder,
		}
	}

	if err := s.repo.ReplaceRules(ctx, packID, rules); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrUnknownRuleDefinition) || pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	pack, err := s.repo.GetPack(ctx, packID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	metrics.PackMutationsTotal.WithLabelValues(models.ActionReplace).Inc()
	s.afterMutation(ctx, models.EventTypePackRulesReplaced, models.ActionReplace, pack, oldPack)

	return pack, nil
}

func (s *service) SetEvidenceRequirements(ctx context.Context, packRuleID string, req SetEvidenceRequirementsRequest) (*PackRule, error) {
	if err := ValidateSetEvidenceRequirements(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	reqs := make([]EvidenceRequirement, len(req.Requirements))
	for i, input := range req.Requirements {
		reqs[i] = EvidenceRequirement{
			EvidenceTypeID: input.EvidenceTypeID,
			IsRequired:     input.IsRequired,
		}
	}

	if err := s.repo.ReplaceEvidenceRequirements(ctx, packRuleID, reqs); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrUnknownEvidenceType) || pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	rule, err := s.repo.GetPackRule(ctx, packRuleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	metrics.PackMutationsTotal.WithLabelValues(models.ActionReplace).Inc()

	if pack, err := s.repo.GetPack(ctx, rule.RulePackID); err == nil && pack != nil {
		s.afterMutation(ctx, models.EventTypeRequirementsChanged, models.ActionReplace, pack, nil)
	}

	return rule, nil
}

func (s *service) Activate(ctx context.Context, packID string) (*RulePack, error) {
	return s.setActive(ctx, packID, true, models.ActionActivate)
}

func (s *service) Deactivate(ctx context.Context, packID string) (*RulePack, error) {
	return s.setActive(ctx, packID, false, models.ActionDeactivate)
}

func (s *service) setActive(ctx context.Context, packID string, active bool, action string) (*RulePack, error) {
	oldPack, err := s.repo.GetPack(ctx, packID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if oldPack == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", packID)
	}

	pack, err := s.repo.SetActive(ctx, packID, active)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	metrics.PackMutationsTotal.WithLabelValues(action).Inc()
	s.afterMutation(ctx, models.EventTypePackUpdated, action, pack, oldPack)

	return pack, nil
}

func (s *service) GetAuditLogs(ctx context.Context, packID *string, limit int) ([]PackAuditLog, error) {
	if s.auditRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.auditRepo.GetAuditLogs(ctx, packID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

// afterMutation runs the best-effort side effects of a pack change: audit
// trail, broker event, resolver cache invalidation, active-pack gauge.
// None of them can fail the mutation itself.
func (s *service) afterMutation(ctx context.Context, eventType, action string, pack, oldPack *RulePack) {
	if s.auditRepo != nil {
		newValue, err := packToMap(pack)
		if err == nil {
			var oldValue map[string]interface{}
			if oldPack != nil {
				oldValue, _ = packToMap(oldPack)
			}
			log := &PackAuditLog{
				PackID:    &pack.ID,
				Action:    action,
				OldValue:  oldValue,
				NewValue:  newValue,
				ChangedBy: getChangedBy(ctx),
			}
			if err := s.auditRepo.CreateAuditLog(ctx, log); err != nil {
				s.log.WarnwCtx(ctx, "Failed to write pack audit log", "error", err, "pack_id", pack.ID)
			}
		}
	}

	if s.events != nil {
		if err := s.events.PublishPackEvent(ctx, eventType, action, pack, getChangedBy(ctx)); err != nil {
			s.log.WarnwCtx(ctx, "Failed to publish pack event", "error", err, "pack_id", pack.ID)
		}
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateResolved(ctx)
	}

	if n, err := s.repo.CountActive(ctx); err == nil {
		metrics.SetActivePacks(n)
	}
}

func getChangedBy(ctx context.Context) string {
	if userID := ctx.Value("user_id"); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return "system"
}
