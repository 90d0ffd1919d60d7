package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/constants"
	"planguard/internal/resolver"
	"planguard/internal/rulepack"
)

func TestResolverWithCache_EndToEnd(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true)

	packRepo := rulepack.NewRepository(infra.PostgresDB)
	cache := resolver.NewCache(infra.RedisClient, 300, createTestLogger())
	svc := resolver.NewService(packRepo, cache, createTestLogger())
	ctx := context.Background()

	def := createTestRuleDefinition(t, infra.PostgresDB, "WRITTEN_NOTICE_DELIVERY", 5)
	pack := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, true)
	require.NoError(t, packRepo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: def.ID, IsEnabled: true},
	}))

	query := resolver.Query{
		SchoolID:   "school-1",
		DistrictID: "district-1",
		StateCode:  "CA",
		PlanType:   constants.PlanTypeIEP,
	}

	resolved, err := svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, pack.ID, resolved.ID)
	require.Len(t, resolved.Rules, 1)
	coldDays, ok := resolved.Rules[0].MergedConfig().DaysValue()
	require.True(t, ok)

	// Second resolution is served from the cache: deactivating the pack
	// behind the cache's back does not change the result until invalidation.
	_, err = packRepo.SetActive(ctx, pack.ID, false)
	require.NoError(t, err)

	resolved, err = svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, pack.ID, resolved.ID)

	// The warm resolution carries the rule definition defaults, so merged
	// config matches the cold one.
	require.Len(t, resolved.Rules, 1)
	warmDays, ok := resolved.Rules[0].MergedConfig().DaysValue()
	require.True(t, ok)
	assert.Equal(t, coldDays, warmDays)

	cache.InvalidateResolved(ctx)

	resolved, err = svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestResolverWithCache_NegativeResultIsCached(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true)

	packRepo := rulepack.NewRepository(infra.PostgresDB)
	cache := resolver.NewCache(infra.RedisClient, 300, createTestLogger())
	svc := resolver.NewService(packRepo, cache, createTestLogger())
	ctx := context.Background()

	query := resolver.Query{
		SchoolID:   "school-9",
		DistrictID: "district-9",
		StateCode:  "WY",
		PlanType:   constants.PlanTypeBIP,
	}

	resolved, err := svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// "No pack applies" is itself cached: a pack created afterwards stays
	// invisible until the cache is invalidated.
	createTestPack(t, infra.PostgresDB, constants.ScopeState, "WY", constants.PlanTypeBIP, true)

	resolved, err = svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	cache.InvalidateResolved(ctx)

	resolved, err = svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	require.NotNil(t, resolved)
}

func TestResolver_AsOfBypassesCache(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true)

	packRepo := rulepack.NewRepository(infra.PostgresDB)
	cache := resolver.NewCache(infra.RedisClient, 300, createTestLogger())
	svc := resolver.NewService(packRepo, cache, createTestLogger())
	ctx := context.Background()

	createTestPack(t, infra.PostgresDB, constants.ScopeState, "CA", constants.PlanTypeIEP, true)

	query := resolver.Query{
		StateCode: "CA",
		PlanType:  constants.PlanTypeIEP,
		AsOf:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	// EffectiveFrom is 2024-01-01, so a 2023 as-of query finds nothing,
	// and the historical result must not pollute the "now" cache slot.
	resolved, err := svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	query.AsOf = time.Time{}
	resolved, err = svc.ResolveActivePack(ctx, query)
	require.NoError(t, err)
	require.NotNil(t, resolved)
}
