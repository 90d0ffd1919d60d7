package resolver

import (
	"context"
	"time"

	"planguard/internal/constants"
	"planguard/internal/logger"
	"planguard/internal/rulepack"
	pkgerrors "planguard/pkg/errors"
	"planguard/pkg/metrics"
	"planguard/pkg/tracing"
)

// PackFinder is the slice of the rule pack repository the resolver needs.
type PackFinder interface {
	FindActive(ctx context.Context, scopeType, scopeID, planType string, asOf time.Time) (*rulepack.RulePack, error)
}

// Query identifies the meeting's jurisdiction. AsOf zero means "now" and
// makes the resolution cacheable.
type Query struct {
	SchoolID   string
	DistrictID string
	StateCode  string
	PlanType   string
	AsOf       time.Time
}

type Service interface {
	// ResolveActivePack returns the single applicable pack, or nil when no
	// enforcement applies. Nil is a valid result, never an error.
	ResolveActivePack(ctx context.Context, q Query) (*rulepack.RulePack, error)
}

type service struct {
	packs PackFinder
	cache *Cache
	log   logger.Logger
}

func NewService(packs PackFinder, cache *Cache, log logger.Logger) Service {
	return &service{
		packs: packs,
		cache: cache,
		log:   log,
	}
}

// ResolveActivePack walks scope levels most specific first. The first
// level with a qualifying pack terminates the search even when that pack
// has no enabled rules; at one level the exact plan type beats ALL.
func (s *service) ResolveActivePack(ctx context.Context, q Query) (*rulepack.RulePack, error) {
	ctx, span := tracing.GetTracer("compliance-service").Start(ctx, "resolver.resolve_active_pack")
	defer span.End()

	asOf := q.AsOf
	cacheable := false
	if asOf.IsZero() {
		asOf = time.Now()
		cacheable = s.cache != nil
	}

	if cacheable {
		if pack, ok := s.cache.Get(ctx, q.SchoolID, q.DistrictID, q.StateCode, q.PlanType); ok {
			return pack, nil
		}
	}

	levels := []struct {
		scopeType string
		scopeID   string
	}{
		{constants.ScopeSchool, q.SchoolID},
		{constants.ScopeDistrict, q.DistrictID},
		{constants.ScopeState, q.StateCode},
	}

	var resolved *rulepack.RulePack
	for _, level := range levels {
		if level.scopeID == "" {
			continue
		}

		pack, err := s.packs.FindActive(ctx, level.scopeType, level.scopeID, q.PlanType, asOf)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		if pack != nil {
			resolved = pack
			break
		}
	}

	if resolved != nil {
		metrics.ResolutionsTotal.WithLabelValues(metrics.ScopeLabel(resolved.ScopeType)).Inc()
	} else {
		metrics.ResolutionsTotal.WithLabelValues(metrics.ScopeLabel("")).Inc()
	}

	if cacheable {
		s.cache.Set(ctx, q.SchoolID, q.DistrictID, q.StateCode, q.PlanType, resolved)
	}

	return resolved, nil
}
