package catalog

import (
	"context"

	pkgerrors "planguard/pkg/errors"
)

type Service interface {
	CreateRuleDefinition(ctx context.Context, req CreateRuleDefinitionRequest) (*RuleDefinition, error)
	GetRuleDefinition(ctx context.Context, key string) (*RuleDefinition, error)
	ListRuleDefinitions(ctx context.Context) ([]RuleDefinition, error)
	UpdateRuleDefinition(ctx context.Context, key string, req UpdateRuleDefinitionRequest) (*RuleDefinition, error)

	CreateEvidenceType(ctx context.Context, req CreateEvidenceTypeRequest) (*RuleEvidenceType, error)
	ListEvidenceTypes(ctx context.Context, planType string) ([]RuleEvidenceType, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateRuleDefinition(ctx context.Context, req CreateRuleDefinitionRequest) (*RuleDefinition, error) {
	if err := ValidateRuleDefinition(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	def := &RuleDefinition{
		Key:           req.Key,
		Name:          req.Name,
		Description:   req.Description,
		DefaultConfig: req.DefaultConfig,
	}

	if err := s.repo.CreateRuleDefinition(ctx, def); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrDuplicateRuleKey) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return def, nil
}

func (s *service) GetRuleDefinition(ctx context.Context, key string) (*RuleDefinition, error) {
	def, err := s.repo.GetRuleDefinitionByKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if def == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("key", key)
	}
	return def, nil
}

func (s *service) ListRuleDefinitions(ctx context.Context) ([]RuleDefinition, error) {
	defs, err := s.repo.ListRuleDefinitions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return defs, nil
}

func (s *service) UpdateRuleDefinition(ctx context.Context, key string, req UpdateRuleDefinitionRequest) (*RuleDefinition, error) {
	def, err := s.repo.GetRuleDefinitionByKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if def == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("key", key)
	}

	if req.Name != nil {
		def.Name = *req.Name
	}
	if req.Description != nil {
		def.Description = *req.Description
	}

	if err := s.repo.UpdateRuleDefinition(ctx, def); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return def, nil
}

func (s *service) CreateEvidenceType(ctx context.Context, req CreateEvidenceTypeRequest) (*RuleEvidenceType, error) {
	if err := ValidateEvidenceType(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	et := &RuleEvidenceType{
		Key:       req.Key,
		Name:      req.Name,
		AppliesTo: req.AppliesTo,
	}

	if err := s.repo.CreateEvidenceType(ctx, et); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrDuplicateRuleKey) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return et, nil
}

func (s *service) ListEvidenceTypes(ctx context.Context, planType string) ([]RuleEvidenceType, error) {
	if planType != "" {
		if err := ValidatePlanType(planType); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
		}
	}

	types, err := s.repo.ListEvidenceTypes(ctx, planType)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return types, nil
}
