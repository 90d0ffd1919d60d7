package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/constants"
	"planguard/internal/logger"
	"planguard/internal/rulepack"
)

type fakeKey struct {
	scopeType string
	scopeID   string
	planType  string
}

// fakePackFinder mimics the repository's per-level lookup: exact plan type
// wins over ALL, inactive and out-of-window packs never match.
type fakePackFinder struct {
	packs map[fakeKey]*rulepack.RulePack
	calls []string
}

func (f *fakePackFinder) FindActive(_ context.Context, scopeType, scopeID, planType string, asOf time.Time) (*rulepack.RulePack, error) {
	f.calls = append(f.calls, scopeType)

	for _, pt := range []string{planType, constants.PlanTypeAll} {
		pack, ok := f.packs[fakeKey{scopeType, scopeID, pt}]
		if !ok || !pack.IsActive {
			continue
		}
		if pack.EffectiveFrom.After(asOf) {
			continue
		}
		if pack.EffectiveTo != nil && !pack.EffectiveTo.After(asOf) {
			continue
		}
		return pack, nil
	}
	return nil, nil
}

func activePack(id, scopeType, scopeID, planType string) *rulepack.RulePack {
	return &rulepack.RulePack{
		ID:            id,
		ScopeType:     scopeType,
		ScopeID:       scopeID,
		PlanType:      planType,
		Version:       1,
		IsActive:      true,
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newFinder(packs ...*rulepack.RulePack) *fakePackFinder {
	f := &fakePackFinder{packs: make(map[fakeKey]*rulepack.RulePack)}
	for _, p := range packs {
		f.packs[fakeKey{p.ScopeType, p.ScopeID, p.PlanType}] = p
	}
	return f
}

func query() Query {
	return Query{
		SchoolID:   "school-1",
		DistrictID: "district-1",
		StateCode:  "CA",
		PlanType:   constants.PlanTypeIEP,
	}
}

func TestResolveSchoolBeatsDistrict(t *testing.T) {
	finder := newFinder(
		activePack("school-pack", constants.ScopeSchool, "school-1", constants.PlanTypeIEP),
		activePack("district-pack", constants.ScopeDistrict, "district-1", constants.PlanTypeIEP),
	)
	svc := NewService(finder, nil, logger.NopLogger())

	pack, err := svc.ResolveActivePack(context.Background(), query())
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, "school-pack", pack.ID)
	// broader scopes are never consulted once a narrower one matches
	assert.Equal(t, []string{constants.ScopeSchool}, finder.calls)
}

func TestResolveSpecificPlanTypeBeatsAll(t *testing.T) {
	finder := newFinder(
		activePack("iep-pack", constants.ScopeSchool, "school-1", constants.PlanTypeIEP),
		activePack("all-pack", constants.ScopeSchool, "school-1", constants.PlanTypeAll),
	)
	svc := NewService(finder, nil, logger.NopLogger())

	pack, err := svc.ResolveActivePack(context.Background(), query())
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, "iep-pack", pack.ID)
}

func TestResolveFallsBackThroughLevels(t *testing.T) {
	finder := newFinder(
		activePack("state-pack", constants.ScopeState, "CA", constants.PlanTypeAll),
	)
	svc := NewService(finder, nil, logger.NopLogger())

	pack, err := svc.ResolveActivePack(context.Background(), query())
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, "state-pack", pack.ID)
	assert.Equal(t, []string{constants.ScopeSchool, constants.ScopeDistrict, constants.ScopeState}, finder.calls)
}

func TestResolveNoMatchReturnsNil(t *testing.T) {
	svc := NewService(newFinder(), nil, logger.NopLogger())

	pack, err := svc.ResolveActivePack(context.Background(), query())
	require.NoError(t, err)
	assert.Nil(t, pack)
}

func TestResolveSkipsEmptyScopeIdentifiers(t *testing.T) {
	finder := newFinder(
		activePack("state-pack", constants.ScopeState, "CA", constants.PlanTypeIEP),
	)
	svc := NewService(finder, nil, logger.NopLogger())

	q := query()
	q.SchoolID = ""
	q.DistrictID = ""

	pack, err := svc.ResolveActivePack(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, []string{constants.ScopeState}, finder.calls)
}

func TestResolveHonorsEffectiveWindow(t *testing.T) {
	expired := activePack("expired", constants.ScopeSchool, "school-1", constants.PlanTypeIEP)
	to := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	expired.EffectiveTo = &to

	future := activePack("future", constants.ScopeDistrict, "district-1", constants.PlanTypeIEP)
	future.EffectiveFrom = time.Now().Add(24 * time.Hour)

	current := activePack("current", constants.ScopeState, "CA", constants.PlanTypeIEP)

	svc := NewService(newFinder(expired, future, current), nil, logger.NopLogger())

	pack, err := svc.ResolveActivePack(context.Background(), query())
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, "current", pack.ID)
}

func TestResolveAsOfSelectsHistoricalPack(t *testing.T) {
	old := activePack("old", constants.ScopeSchool, "school-1", constants.PlanTypeIEP)
	to := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	old.EffectiveTo = &to

	svc := NewService(newFinder(old), nil, logger.NopLogger())

	q := query()
	q.AsOf = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

	pack, err := svc.ResolveActivePack(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, "old", pack.ID)
}

func TestResolveInactivePackIgnored(t *testing.T) {
	inactive := activePack("inactive", constants.ScopeSchool, "school-1", constants.PlanTypeIEP)
	inactive.IsActive = false

	svc := NewService(newFinder(inactive), nil, logger.NopLogger())

	pack, err := svc.ResolveActivePack(context.Background(), query())
	require.NoError(t, err)
	assert.Nil(t, pack)
}
