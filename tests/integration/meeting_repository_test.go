package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/constants"
	"planguard/internal/meeting"
	pkgerrors "planguard/pkg/errors"
)

func TestMeetingRepository_EvidenceSubmissionIsUpsert(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := meeting.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	et := createTestEvidenceType(t, infra.PostgresDB, "PARENT_SIGNATURE")
	m := createTestMeeting(t, infra.PostgresDB, constants.PlanTypeIEP, "school-1")

	first := &meeting.Evidence{
		MeetingID:      m.ID,
		EvidenceTypeID: et.ID,
		Note:           "signed copy on file",
		EvidenceDate:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		DeliveryMethod: "IN_PERSON",
	}
	require.NoError(t, repo.UpsertEvidence(ctx, first))

	// Resubmitting the same evidence type replaces the record in place.
	second := &meeting.Evidence{
		MeetingID:      m.ID,
		EvidenceTypeID: et.ID,
		Note:           "updated: mailed copy",
		EvidenceDate:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		DeliveryMethod: "MAIL",
	}
	require.NoError(t, repo.UpsertEvidence(ctx, second))

	list, err := repo.ListEvidence(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "updated: mailed copy", list[0].Note)
	assert.Equal(t, "MAIL", list[0].DeliveryMethod)
	assert.Equal(t, "PARENT_SIGNATURE", list[0].EvidenceKey)
}

func TestMeetingRepository_UpsertEvidenceUnknownType(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := meeting.NewRepository(infra.PostgresDB)
	m := createTestMeeting(t, infra.PostgresDB, constants.PlanTypeIEP, "school-1")

	err := repo.UpsertEvidence(context.Background(), &meeting.Evidence{
		MeetingID:      m.ID,
		EvidenceTypeID: uuid.New().String(),
		EvidenceDate:   time.Now(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnknownEvidenceType))
}

func TestMeetingRepository_PackSnapshotIsSetOnce(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := meeting.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	m := createTestMeeting(t, infra.PostgresDB, constants.PlanTypeIEP, "school-1")
	first := createTestPack(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP, true)
	second := createTestPack(t, infra.PostgresDB, constants.ScopeSchool, "school-1", constants.PlanTypeIEP, true)

	require.NoError(t, repo.SetPackSnapshot(ctx, m.ID, first.ID, first.Version))

	// A later resolution against a newer pack must not move the snapshot.
	require.NoError(t, repo.SetPackSnapshot(ctx, m.ID, second.ID, second.Version))

	stored, err := repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RulePackID)
	assert.Equal(t, first.ID, *stored.RulePackID)
	require.NotNil(t, stored.RulePackVersion)
	assert.Equal(t, first.Version, *stored.RulePackVersion)
}

func TestMeetingRepository_SetStatusRecordsHeldAt(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := meeting.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	m := createTestMeeting(t, infra.PostgresDB, constants.PlanTypeIEP, "school-1")

	heldAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetStatus(ctx, m.ID, constants.MeetingStatusHeld, &heldAt))

	stored, err := repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.MeetingStatusHeld, stored.Status)
	require.NotNil(t, stored.HeldAt)
	assert.True(t, stored.HeldAt.Equal(heldAt))

	// A later transition without a timestamp keeps the recorded held_at.
	require.NoError(t, repo.SetStatus(ctx, m.ID, constants.MeetingStatusClosed, nil))
	stored, err = repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.MeetingStatusClosed, stored.Status)
	require.NotNil(t, stored.HeldAt)
}

func TestMeetingRepository_SetStatusNotFound(t *testing.T) {
	infra := SetupTestInfra(t)

	repo := meeting.NewRepository(infra.PostgresDB)

	err := repo.SetStatus(context.Background(), uuid.New().String(), constants.MeetingStatusHeld, nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}
