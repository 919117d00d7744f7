package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/repository"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

type mockProposalRepo struct {
	details    map[string]*models.MakeupProposalDetail
	pending    map[string]bool
	approveErr error
	lastSlot   bool
	approved   *repository.ApproveSlotParams
}

func newMockProposalRepo() *mockProposalRepo {
	return &mockProposalRepo{
		details: make(map[string]*models.MakeupProposalDetail),
		pending: make(map[string]bool),
	}
}

func (m *mockProposalRepo) Create(ctx context.Context, proposal *models.MakeupProposal, slots []models.MakeupProposalSlot) error {
	proposal.ID = fmt.Sprintf("prop-%d", len(m.details)+1)
	detail := &models.MakeupProposalDetail{MakeupProposal: *proposal}
	for i := range slots {
		slots[i].ID = fmt.Sprintf("slot-%d", i+1)
		slots[i].ProposalID = proposal.ID
	}
	detail.Slots = slots
	m.details[proposal.ID] = detail
	m.pending[proposal.OriginalSessionID] = true
	return nil
}

func (m *mockProposalRepo) FindDetailByID(ctx context.Context, id string) (*models.MakeupProposalDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProposalRepo) FindSlotByID(ctx context.Context, slotID string) (*models.MakeupProposalSlot, error) {
	for _, d := range m.details {
		for i := range d.Slots {
			if d.Slots[i].ID == slotID {
				return &d.Slots[i], nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockProposalRepo) ExistsPendingForSession(ctx context.Context, sessionID string) (bool, error) {
	return m.pending[sessionID], nil
}

func (m *mockProposalRepo) List(ctx context.Context, filter models.MakeupProposalFilter) ([]models.MakeupProposal, int, error) {
	var list []models.MakeupProposal
	for _, d := range m.details {
		list = append(list, d.MakeupProposal)
	}
	return list, len(list), nil
}

func (m *mockProposalRepo) ApproveSlot(ctx context.Context, params repository.ApproveSlotParams) error {
	if m.approveErr != nil {
		return m.approveErr
	}
	m.approved = &params
	detail := m.details[params.ProposalID]
	detail.Status = models.ProposalStatusApproved
	reason := models.SiblingRejectedReason
	for i := range detail.Slots {
		if detail.Slots[i].ID == params.SlotID {
			detail.Slots[i].Status = models.SlotStatusApproved
		} else if detail.Slots[i].Status == models.SlotStatusPending {
			detail.Slots[i].Status = models.SlotStatusRejected
			detail.Slots[i].RejectReason = &reason
		}
	}
	params.MakeupSession.ID = "mk-1"
	m.pending[params.OriginalSessionID] = false
	return nil
}

func (m *mockProposalRepo) RejectSlot(ctx context.Context, proposalID, slotID, reason, resolvedBy string) (bool, error) {
	detail := m.details[proposalID]
	for i := range detail.Slots {
		if detail.Slots[i].ID == slotID {
			detail.Slots[i].Status = models.SlotStatusRejected
			detail.Slots[i].RejectReason = &reason
		}
	}
	if m.lastSlot || len(detail.PendingSlots()) == 0 {
		detail.Status = models.ProposalStatusRejected
		m.pending[detail.OriginalSessionID] = false
		return true, nil
	}
	return false, nil
}

func (m *mockProposalRepo) RejectProposal(ctx context.Context, proposalID string) error {
	detail, ok := m.details[proposalID]
	if !ok || detail.Status != models.ProposalStatusPending {
		return sql.ErrNoRows
	}
	detail.Status = models.ProposalStatusRejected
	m.pending[detail.OriginalSessionID] = false
	return nil
}

func (m *mockProposalRepo) Delete(ctx context.Context, proposalID string) error {
	detail, ok := m.details[proposalID]
	if !ok || detail.Status != models.ProposalStatusPending {
		return sql.ErrNoRows
	}
	delete(m.details, proposalID)
	m.pending[detail.OriginalSessionID] = false
	return nil
}

type mockRescheduleMarker struct {
	marked []string
	err    error
}

func (m *mockRescheduleMarker) MarkSessionRescheduled(ctx context.Context, sessionID string) error {
	if m.err != nil {
		return m.err
	}
	m.marked = append(m.marked, sessionID)
	return nil
}

func newTestProposalService(proposals *mockProposalRepo, sessions *mockSessionRepo, marker *mockRescheduleMarker) *MakeupProposalService {
	if marker == nil {
		marker = &mockRescheduleMarker{}
	}
	validator := NewBookingValidator(sessions, &mockEnrollmentReader{}, &mockExtensionReader{}, &mockHolidayCalendar{}, 60, nil, zap.NewNop())
	return NewMakeupProposalService(proposals, sessions, marker, validator, nil, nil, 3, nil, zap.NewNop())
}

func slotInput(date, tutorID string) ProposalSlotInput {
	return ProposalSlotInput{Date: date, TimeSlot: "16:00", ProposedTutorID: tutorID, Location: "MSA"}
}

func pendingSession(id string) models.Session {
	return models.Session{
		ID:        id,
		StudentID: "s1",
		TutorID:   "t1",
		Date:      day("2025-01-06"),
		TimeSlot:  "16:00",
		Location:  "MSA",
		Status:    models.SessionStatusRescheduledPendingMakeup,
	}
}

func TestProposalCreateSpecificSlots(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	proposals := newMockProposalRepo()
	svc := newTestProposalService(proposals, sessions, nil)

	detail, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "SPECIFIC_SLOTS",
		Slots: []ProposalSlotInput{
			slotInput("2025-01-13", "t2"),
			slotInput("2025-01-20", "t2"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, detail.Status)
	assert.Equal(t, "t1", detail.ProposedByTutorID)
	require.Len(t, detail.Slots, 2)
	assert.Equal(t, models.SlotStatusPending, detail.Slots[0].Status)
}

func TestProposalCreateSessionNotPending(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{
		"orig": {ID: "orig", Status: models.SessionStatusScheduled},
	}}
	svc := newTestProposalService(newMockProposalRepo(), sessions, nil)

	_, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "SPECIFIC_SLOTS",
		Slots:             []ProposalSlotInput{slotInput("2025-01-13", "t2")},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestProposalCreateDuplicatePending(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	proposals := newMockProposalRepo()
	proposals.pending["orig"] = true
	svc := newTestProposalService(proposals, sessions, nil)

	_, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "SPECIFIC_SLOTS",
		Slots:             []ProposalSlotInput{slotInput("2025-01-13", "t2")},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicatePendingExists.Code, appErrors.FromError(err).Code)
}

func TestProposalCreateTooManySlots(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	svc := newTestProposalService(newMockProposalRepo(), sessions, nil)

	_, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "SPECIFIC_SLOTS",
		Slots: []ProposalSlotInput{
			slotInput("2025-01-13", "t2"),
			slotInput("2025-01-14", "t2"),
			slotInput("2025-01-15", "t2"),
			slotInput("2025-01-16", "t2"),
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProposalCreateNeedsInputRules(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	svc := newTestProposalService(newMockProposalRepo(), sessions, nil)
	actor := Actor{ID: "t1", Role: models.RoleTutor}

	_, err := svc.Create(context.Background(), actor, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "NEEDS_INPUT",
		Slots:             []ProposalSlotInput{slotInput("2025-01-13", "t2")},
		NeedsInputTutorID: strPtr("t2"),
	})
	require.Error(t, err, "NEEDS_INPUT must not carry slots")

	_, err = svc.Create(context.Background(), actor, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "NEEDS_INPUT",
	})
	require.Error(t, err, "NEEDS_INPUT must name a tutor")

	detail, err := svc.Create(context.Background(), actor, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "NEEDS_INPUT",
		NeedsInputTutorID: strPtr("t2"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalTypeNeedsInput, detail.Type)
	assert.Empty(t, detail.Slots)
}

func approvalFixture(t *testing.T) (*mockProposalRepo, *mockSessionRepo, *mockRescheduleMarker, *MakeupProposalService, string) {
	t.Helper()
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	proposals := newMockProposalRepo()
	marker := &mockRescheduleMarker{}
	svc := newTestProposalService(proposals, sessions, marker)

	detail, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "SPECIFIC_SLOTS",
		Slots: []ProposalSlotInput{
			slotInput("2025-01-13", "t2"),
			slotInput("2025-01-20", "t2"),
		},
	})
	require.NoError(t, err)
	return proposals, sessions, marker, svc, detail.ID
}

func TestProposalApproveSlot(t *testing.T) {
	proposals, _, marker, svc, proposalID := approvalFixture(t)

	detail, err := svc.ApproveSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, proposalID, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusApproved, detail.Status)
	assert.Equal(t, models.SlotStatusApproved, detail.Slots[0].Status)
	assert.Equal(t, models.SlotStatusRejected, detail.Slots[1].Status)
	require.NotNil(t, detail.Slots[1].RejectReason)
	assert.Equal(t, models.SiblingRejectedReason, *detail.Slots[1].RejectReason)

	require.NotNil(t, proposals.approved)
	makeup := proposals.approved.MakeupSession
	assert.Equal(t, models.SessionStatusMakeupClass, makeup.Status)
	require.NotNil(t, makeup.MakeUpForID)
	assert.Equal(t, "orig", *makeup.MakeUpForID)
	assert.Equal(t, "t2", makeup.TutorID)
	assert.Equal(t, models.SessionStatusRescheduledMakeupBooked, proposals.approved.BookedStatus)

	assert.Equal(t, []string{"orig"}, marker.marked)
}

func TestProposalApproveSlotConcurrentResolution(t *testing.T) {
	proposals, _, _, svc, proposalID := approvalFixture(t)
	proposals.approveErr = sql.ErrNoRows

	_, err := svc.ApproveSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, proposalID, "slot-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProposalResolved.Code, appErrors.FromError(err).Code)
}

func TestProposalApproveSlotOccupiedConcurrently(t *testing.T) {
	proposals, _, _, svc, proposalID := approvalFixture(t)
	proposals.approveErr = repository.ErrSlotOccupied

	_, err := svc.ApproveSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, proposalID, "slot-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErrors.FromError(err).Code)
}

func TestProposalApproveSlotUnauthorized(t *testing.T) {
	_, _, _, svc, proposalID := approvalFixture(t)

	_, err := svc.ApproveSlot(context.Background(), Actor{ID: "t3", Role: models.RoleTutor}, proposalID, "slot-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestProposalApproveSlotPrivilegedActor(t *testing.T) {
	_, _, _, svc, proposalID := approvalFixture(t)

	detail, err := svc.ApproveSlot(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, proposalID, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusApproved, detail.Status)
}

func TestProposalApproveSlotAlreadyResolved(t *testing.T) {
	proposals, _, _, svc, proposalID := approvalFixture(t)
	proposals.details[proposalID].Status = models.ProposalStatusApproved

	_, err := svc.ApproveSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, proposalID, "slot-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProposalResolved.Code, appErrors.FromError(err).Code)
}

func TestProposalApproveSlotWindowExceeded(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	svc := newTestProposalService(newMockProposalRepo(), sessions, nil)

	// 2025-04-01 is 85 days after the vacated lesson on 2025-01-06.
	detail, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "SPECIFIC_SLOTS",
		Slots:             []ProposalSlotInput{slotInput("2025-04-01", "t2")},
	})
	require.NoError(t, err)

	_, err = svc.ApproveSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, detail.ID, detail.Slots[0].ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMakeupWindowExceeded.Code, appErrors.FromError(err).Code)
}

func TestProposalRejectSlotRequiresReason(t *testing.T) {
	_, _, _, svc, proposalID := approvalFixture(t)

	_, err := svc.RejectSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, proposalID, "slot-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProposalRejectSlot(t *testing.T) {
	_, _, _, svc, proposalID := approvalFixture(t)

	detail, err := svc.RejectSlot(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, proposalID, "slot-1", "teaching at that time")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, detail.Status)
	assert.Equal(t, models.SlotStatusRejected, detail.Slots[0].Status)
	assert.Equal(t, models.SlotStatusPending, detail.Slots[1].Status)
}

func TestProposalRejectLastSlotRejectsProposal(t *testing.T) {
	_, _, _, svc, proposalID := approvalFixture(t)
	actor := Actor{ID: "t2", Role: models.RoleTutor}

	_, err := svc.RejectSlot(context.Background(), actor, proposalID, "slot-1", "busy")
	require.NoError(t, err)
	detail, err := svc.RejectSlot(context.Background(), actor, proposalID, "slot-2", "also busy")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, detail.Status)
}

func TestProposalRejectNeedsInputOnly(t *testing.T) {
	_, _, _, svc, proposalID := approvalFixture(t)

	_, err := svc.Reject(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, proposalID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProposalRejectNeedsInput(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"orig": pendingSession("orig")}}
	svc := newTestProposalService(newMockProposalRepo(), sessions, nil)

	detail, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateProposalRequest{
		OriginalSessionID: "orig",
		Type:              "NEEDS_INPUT",
		NeedsInputTutorID: strPtr("t2"),
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), Actor{ID: "t2", Role: models.RoleTutor}, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, rejected.Status)
}

func TestProposalCancel(t *testing.T) {
	proposals, _, _, svc, proposalID := approvalFixture(t)

	err := svc.Cancel(context.Background(), Actor{ID: "t3", Role: models.RoleTutor}, proposalID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Cancel(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, proposalID)
	require.NoError(t, err)
	_, ok := proposals.details[proposalID]
	assert.False(t, ok)
}
