package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/constants"
	"planguard/internal/rulepack"
	pkgerrors "planguard/pkg/errors"
)

func TestRulePackRepository_VersionsAreMonotonicPerScopeKey(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	for expected := 1; expected <= 3; expected++ {
		pack := testPack(constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, false)
		require.NoError(t, repo.CreatePack(ctx, pack))
		assert.Equal(t, expected, pack.Version)
	}

	// A different scope key starts its own version sequence.
	other := testPack(constants.ScopeDistrict, "district-2", constants.PlanTypeIEP, false)
	require.NoError(t, repo.CreatePack(ctx, other))
	assert.Equal(t, 1, other.Version)
}

func TestRulePackRepository_SingleActivePerScopeKey(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	first := createTestPack(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP, true)
	second := createTestPack(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP, true)

	active := activePackIDs(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP)
	require.Equal(t, []string{second.ID}, active)

	// Re-activating the first pack flips the invariant the other way.
	_, err := repo.SetActive(ctx, first.ID, true)
	require.NoError(t, err)

	active = activePackIDs(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP)
	require.Equal(t, []string{first.ID}, active)
}

func TestRulePackRepository_SetActiveNotFound(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)

	_, err := repo.SetActive(context.Background(), uuid.New().String(), true)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}

func TestRulePackRepository_ReplaceRulesIsAtomic(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	def := createTestRuleDefinition(t, infra.PostgresDB, "DOC_DELIVERY", 5)
	pack := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, true)

	require.NoError(t, repo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: def.ID, IsEnabled: true},
	}))

	// One valid rule plus one pointing at a missing definition: the whole
	// replace must roll back, leaving the previous rule set untouched.
	err := repo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: def.ID, IsEnabled: true},
		{RuleDefinitionID: uuid.New().String(), IsEnabled: true},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnknownRuleDefinition))

	stored, err := repo.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	require.Len(t, stored.Rules, 1)
	assert.Equal(t, "DOC_DELIVERY", stored.Rules[0].RuleKey)
}

func TestRulePackRepository_ReplaceRulesPreservesOrder(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	defA := createTestRuleDefinition(t, infra.PostgresDB, "RULE_A", 5)
	defB := createTestRuleDefinition(t, infra.PostgresDB, "RULE_B", 10)
	defC := createTestRuleDefinition(t, infra.PostgresDB, "RULE_C", 15)
	pack := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, true)

	// B and C share a sort order; insertion order breaks the tie.
	require.NoError(t, repo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: defC.ID, IsEnabled: true, SortOrder: 1},
		{RuleDefinitionID: defB.ID, IsEnabled: true, SortOrder: 1},
		{RuleDefinitionID: defA.ID, IsEnabled: true, SortOrder: 0},
	}))

	stored, err := repo.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	require.Len(t, stored.Rules, 3)
	assert.Equal(t, "RULE_A", stored.Rules[0].RuleKey)
	assert.Equal(t, "RULE_C", stored.Rules[1].RuleKey)
	assert.Equal(t, "RULE_B", stored.Rules[2].RuleKey)
}

func TestRulePackRepository_ReplaceEvidenceRequirementsIsAtomic(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	def := createTestRuleDefinition(t, infra.PostgresDB, "DOC_DELIVERY", 5)
	et := createTestEvidenceType(t, infra.PostgresDB, "PARENT_SIGNATURE")
	pack := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, true)

	require.NoError(t, repo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: def.ID, IsEnabled: true},
	}))
	stored, err := repo.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	packRuleID := stored.Rules[0].ID

	require.NoError(t, repo.ReplaceEvidenceRequirements(ctx, packRuleID, []rulepack.EvidenceRequirement{
		{EvidenceTypeID: et.ID, IsRequired: true},
	}))

	err = repo.ReplaceEvidenceRequirements(ctx, packRuleID, []rulepack.EvidenceRequirement{
		{EvidenceTypeID: et.ID, IsRequired: true},
		{EvidenceTypeID: uuid.New().String(), IsRequired: true},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnknownEvidenceType))

	rule, err := repo.GetPackRule(ctx, packRuleID)
	require.NoError(t, err)
	require.Len(t, rule.Requirements, 1)
	assert.Equal(t, "PARENT_SIGNATURE", rule.Requirements[0].EvidenceKey)
}

func TestRulePackRepository_FindActivePrefersExactPlanType(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	fallback := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeAll, true)
	exact := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, true)

	found, err := repo.FindActive(ctx, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, time.Now())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, exact.ID, found.ID)

	// A plan type without a matching pack falls back to the ALL pack.
	found, err = repo.FindActive(ctx, constants.ScopeDistrict, "district-1", constants.PlanType504, time.Now())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, fallback.ID, found.ID)
}

func TestRulePackRepository_FindActiveHonorsEffectiveWindow(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	pack := testPack(constants.ScopeState, "CA", constants.PlanTypeIEP, true)
	expiry := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	pack.EffectiveTo = &expiry
	require.NoError(t, repo.CreatePack(ctx, pack))

	found, err := repo.FindActive(ctx, constants.ScopeState, "CA", constants.PlanTypeIEP, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, found)

	found, err = repo.FindActive(ctx, constants.ScopeState, "CA", constants.PlanTypeIEP, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, found)

	// Before the window opens nothing matches either.
	found, err = repo.FindActive(ctx, constants.ScopeState, "CA", constants.PlanTypeIEP, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRulePackRepository_FindActiveIgnoresInactive(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := rulepack.NewRepository(infra.PostgresDB)

	createTestPack(t, infra.PostgresDB, constants.ScopeState, "CA", constants.PlanTypeIEP, false)

	found, err := repo.FindActive(context.Background(), constants.ScopeState, "CA", constants.PlanTypeIEP, time.Now())
	require.NoError(t, err)
	assert.Nil(t, found)
}
