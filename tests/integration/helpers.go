package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"planguard/internal/catalog"
	"planguard/internal/constants"
	"planguard/internal/logger"
	"planguard/internal/meeting"
	"planguard/internal/rulepack"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestRuleDefinition(t *testing.T, db *sql.DB, key string, days int) *catalog.RuleDefinition {
	t.Helper()

	repo := catalog.NewRepository(db)
	def := &catalog.RuleDefinition{
		Key:  key,
		Name: key,
		DefaultConfig: catalog.RuleConfig{
			Days: &days,
		},
	}
	require.NoError(t, repo.CreateRuleDefinition(context.Background(), def))
	return def
}

func createTestEvidenceType(t *testing.T, db *sql.DB, key string) *catalog.RuleEvidenceType {
	t.Helper()

	repo := catalog.NewRepository(db)
	et := &catalog.RuleEvidenceType{
		Key:       key,
		Name:      key,
		AppliesTo: constants.PlanTypeAll,
	}
	require.NoError(t, repo.CreateEvidenceType(context.Background(), et))
	return et
}

func testPack(scopeType, scopeID, planType string, active bool) *rulepack.RulePack {
	return &rulepack.RulePack{
		ScopeType:     scopeType,
		ScopeID:       scopeID,
		PlanType:      planType,
		Name:          "test pack",
		IsActive:      active,
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func createTestPack(t *testing.T, db *sql.DB, scopeType, scopeID, planType string, active bool) *rulepack.RulePack {
	t.Helper()

	repo := rulepack.NewRepository(db)
	pack := testPack(scopeType, scopeID, planType, active)
	require.NoError(t, repo.CreatePack(context.Background(), pack))
	return pack
}

func createTestMeeting(t *testing.T, db *sql.DB, planType, schoolID string) *meeting.Meeting {
	t.Helper()

	repo := meeting.NewRepository(db)
	m := &meeting.Meeting{
		PlanType:        planType,
		MeetingTypeCode: "ANNUAL",
		Status:          constants.MeetingStatusScheduled,
		ScheduledAt:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		ConsentStatus:   constants.ConsentPending,
		SchoolID:        schoolID,
		DistrictID:      "district-1",
		StateCode:       "CA",
	}
	require.NoError(t, repo.CreateMeeting(context.Background(), m))
	return m
}

func activePackIDs(t *testing.T, db *sql.DB, scopeType, scopeID, planType string) []string {
	t.Helper()

	rows, err := db.Query(
		`SELECT id FROM rule_packs WHERE scope_type = $1 AND scope_id = $2 AND plan_type = $3 AND is_active`,
		scopeType, scopeID, planType,
	)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}
