package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/config"
	"planguard/internal/constants"
	"planguard/internal/enforcement"
	"planguard/internal/meeting"
	"planguard/internal/resolver"
	"planguard/internal/rulepack"
)

// Exercises the whole close-gate path against real storage: catalog, pack,
// evidence requirement, meeting workflow, evidence submission, gate.
func TestEnforcementFlow_CloseGate(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()

	def := createTestRuleDefinition(t, infra.PostgresDB, "WRITTEN_NOTICE", 10)
	et := createTestEvidenceType(t, infra.PostgresDB, "PARENT_SIGNATURE")

	packRepo := rulepack.NewRepository(infra.PostgresDB)
	pack := createTestPack(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP, true)
	require.NoError(t, packRepo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: def.ID, IsEnabled: true},
	}))
	stored, err := packRepo.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	require.NoError(t, packRepo.ReplaceEvidenceRequirements(ctx, stored.Rules[0].ID, []rulepack.EvidenceRequirement{
		{EvidenceTypeID: et.ID, IsRequired: true},
	}))

	meetingRepo := meeting.NewRepository(infra.PostgresDB)
	resolverSvc := resolver.NewService(packRepo, nil, createTestLogger())
	enforcementSvc, err := enforcement.NewService(meetingRepo, packRepo, resolverSvc, config.EnforcementConfig{}, createTestLogger())
	require.NoError(t, err)
	meetingSvc := meeting.NewService(meetingRepo, createTestLogger(), meeting.WithCloseGate(enforcementSvc))

	m := createTestMeeting(t, infra.PostgresDB, constants.PlanTypeIEP, "school-1")

	// Scheduled meeting: denied for not being held and for missing evidence.
	decision, _, err := meetingSvc.Close(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.Len(t, decision.Errors, 2)
	assert.Equal(t, "MEETING_NOT_HELD", decision.Errors[0].Code)

	// The first evaluation pinned the pack snapshot to the meeting.
	pinned, err := meetingRepo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, pinned.RulePackID)
	assert.Equal(t, pack.ID, *pinned.RulePackID)

	_, err = meetingSvc.MarkHeld(ctx, m.ID)
	require.NoError(t, err)

	decision, _, err = meetingSvc.Close(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.Len(t, decision.Errors, 1)
	assert.Equal(t, "RULES_UNSATISFIED", decision.Errors[0].Code)
	require.Len(t, decision.Report.RuleResults, 1)
	assert.Equal(t, []string{"PARENT_SIGNATURE"}, decision.Report.RuleResults[0].MissingEvidenceKeys)

	_, err = meetingSvc.SubmitEvidence(ctx, m.ID, meeting.SubmitEvidenceRequest{
		EvidenceTypeID: et.ID,
		Note:           "signed at the meeting",
		EvidenceDate:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		DeliveryMethod: "IN_PERSON",
	})
	require.NoError(t, err)

	decision, closed, err := meetingSvc.Close(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, constants.MeetingStatusClosed, closed.Status)

	// Closing is terminal: no further transitions.
	_, err = meetingSvc.Cancel(ctx, m.ID)
	require.Error(t, err)
}

func TestEnforcementFlow_DueDatesFromResolvedPack(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()

	def := createTestRuleDefinition(t, infra.PostgresDB, "WRITTEN_NOTICE", 5)

	packRepo := rulepack.NewRepository(infra.PostgresDB)
	pack := createTestPack(t, infra.PostgresDB, constants.ScopeDistrict, "district-1", constants.PlanTypeIEP, true)
	require.NoError(t, packRepo.ReplaceRules(ctx, pack.ID, []rulepack.PackRule{
		{RuleDefinitionID: def.ID, IsEnabled: true},
	}))

	meetingRepo := meeting.NewRepository(infra.PostgresDB)
	resolverSvc := resolver.NewService(packRepo, nil, createTestLogger())
	enforcementSvc, err := enforcement.NewService(meetingRepo, packRepo, resolverSvc, config.EnforcementConfig{}, createTestLogger())
	require.NoError(t, err)

	m := createTestMeeting(t, infra.PostgresDB, constants.PlanTypeIEP, "school-1")

	dueDates, err := enforcementSvc.DueDates(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, dueDates, 1)
	// Scheduled 2024-03-01, five calendar days from the definition default.
	assert.True(t, dueDates["WRITTEN_NOTICE"].Equal(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)))
}
