package meeting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/constants"
	"planguard/internal/logger"
	pkgerrors "planguard/pkg/errors"
	"planguard/pkg/models"
)

type fakeRepository struct {
	meetings map[string]*Meeting
	evidence map[string][]Evidence
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		meetings: make(map[string]*Meeting),
		evidence: make(map[string][]Evidence),
	}
}

func (f *fakeRepository) CreateMeeting(_ context.Context, m *Meeting) error {
	m.ID = "m-1"
	f.meetings[m.ID] = m
	return nil
}

func (f *fakeRepository) GetMeeting(_ context.Context, id string) (*Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (f *fakeRepository) SetStatus(_ context.Context, id, status string, heldAt *time.Time) error {
	m, ok := f.meetings[id]
	if !ok {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	m.Status = status
	if heldAt != nil {
		m.HeldAt = heldAt
	}
	return nil
}

func (f *fakeRepository) SetPackSnapshot(_ context.Context, _, _ string, _ int) error {
	return nil
}

func (f *fakeRepository) ListEvidence(_ context.Context, meetingID string) ([]Evidence, error) {
	return f.evidence[meetingID], nil
}

func (f *fakeRepository) UpsertEvidence(_ context.Context, ev *Evidence) error {
	f.evidence[ev.MeetingID] = append(f.evidence[ev.MeetingID], *ev)
	return nil
}

type fakeGate struct {
	decision *models.GateDecision
	calls    int
}

func (f *fakeGate) CanCloseMeeting(_ context.Context, _ string) (*models.GateDecision, error) {
	f.calls++
	return f.decision, nil
}

func allowAll() *fakeGate {
	return &fakeGate{decision: &models.GateDecision{Allowed: true}}
}

func denyAll() *fakeGate {
	return &fakeGate{decision: &models.GateDecision{
		Allowed: false,
		Errors:  []models.GateError{{Code: "RULES_UNSATISFIED", Message: "missing evidence"}},
	}}
}

func seedMeeting(repo *fakeRepository, status string) *Meeting {
	m := &Meeting{
		ID:            "m-1",
		PlanType:      constants.PlanTypeIEP,
		Status:        status,
		ScheduledAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		ConsentStatus: constants.ConsentObtained,
	}
	repo.meetings[m.ID] = m
	return m
}

func TestCreateMeetingDefaultsConsentPending(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, logger.NopLogger())

	m, err := svc.CreateMeeting(context.Background(), CreateMeetingRequest{
		PlanType:        constants.PlanTypeIEP,
		MeetingTypeCode: "ANNUAL",
		ScheduledAt:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		SchoolID:        "school-1",
	})
	require.NoError(t, err)

	assert.Equal(t, constants.MeetingStatusScheduled, m.Status)
	assert.Equal(t, constants.ConsentPending, m.ConsentStatus)
}

func TestCreateMeetingValidation(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())

	_, err := svc.CreateMeeting(context.Background(), CreateMeetingRequest{PlanType: "IFSP"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrValidation))

	_, err = svc.CreateMeeting(context.Background(), CreateMeetingRequest{
		PlanType:      constants.PlanTypeIEP,
		ConsentStatus: "MAYBE",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrValidation))
}

func TestMarkHeldTransitions(t *testing.T) {
	tests := []struct {
		name      string
		status    string
		expectErr bool
	}{
		{"scheduled meeting becomes held", constants.MeetingStatusScheduled, false},
		{"held meeting cannot be held again", constants.MeetingStatusHeld, true},
		{"closed meeting cannot be held", constants.MeetingStatusClosed, true},
		{"canceled meeting cannot be held", constants.MeetingStatusCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			svc := NewService(repo, logger.NopLogger())
			seedMeeting(repo, tt.status)

			m, err := svc.MarkHeld(context.Background(), "m-1")

			if tt.expectErr {
				assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidTransition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, constants.MeetingStatusHeld, m.Status)
			require.NotNil(t, m.HeldAt)
		})
	}
}

func TestCloseConsultsGate(t *testing.T) {
	t.Run("allowed gate closes the meeting", func(t *testing.T) {
		repo := newFakeRepository()
		gate := allowAll()
		svc := NewService(repo, logger.NopLogger(), WithCloseGate(gate))
		seedMeeting(repo, constants.MeetingStatusHeld)

		decision, m, err := svc.Close(context.Background(), "m-1")
		require.NoError(t, err)

		assert.True(t, decision.Allowed)
		assert.Equal(t, constants.MeetingStatusClosed, m.Status)
		assert.Equal(t, 1, gate.calls)
	})

	t.Run("denied gate leaves the meeting untouched", func(t *testing.T) {
		repo := newFakeRepository()
		svc := NewService(repo, logger.NopLogger(), WithCloseGate(denyAll()))
		seedMeeting(repo, constants.MeetingStatusHeld)

		decision, m, err := svc.Close(context.Background(), "m-1")
		require.NoError(t, err)

		assert.False(t, decision.Allowed)
		assert.Equal(t, constants.MeetingStatusHeld, m.Status)
		assert.Equal(t, constants.MeetingStatusHeld, repo.meetings["m-1"].Status)
	})
}

func TestCancelBypassesGate(t *testing.T) {
	repo := newFakeRepository()
	gate := denyAll()
	svc := NewService(repo, logger.NopLogger(), WithCloseGate(gate))
	seedMeeting(repo, constants.MeetingStatusHeld)

	m, err := svc.Cancel(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Equal(t, constants.MeetingStatusCanceled, m.Status)
	assert.Equal(t, 0, gate.calls)
}

func TestCancelTerminalStates(t *testing.T) {
	for _, status := range []string{constants.MeetingStatusClosed, constants.MeetingStatusCanceled} {
		repo := newFakeRepository()
		svc := NewService(repo, logger.NopLogger())
		seedMeeting(repo, status)

		_, err := svc.Cancel(context.Background(), "m-1")
		assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidTransition), "status %s", status)
	}
}

func TestSubmitEvidenceRejectedForTerminalMeetings(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, logger.NopLogger())
	seedMeeting(repo, constants.MeetingStatusClosed)

	_, err := svc.SubmitEvidence(context.Background(), "m-1", SubmitEvidenceRequest{
		EvidenceTypeID: "et-1",
	})

	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidTransition))
}

func TestSubmitEvidenceUnknownMeeting(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())

	_, err := svc.SubmitEvidence(context.Background(), "missing", SubmitEvidenceRequest{
		EvidenceTypeID: "et-1",
	})

	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}
