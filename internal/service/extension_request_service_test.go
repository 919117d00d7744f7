package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/repository"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

type mockExtensionRepo struct {
	requests   map[string]*models.ExtensionRequest
	pending    map[string]bool
	resolveErr error

	appliedEnrollmentID string
	appliedWeeks        int
	appliedAuditLine    string
	rescheduledSessions []string
}

func newMockExtensionRepo() *mockExtensionRepo {
	return &mockExtensionRepo{
		requests: make(map[string]*models.ExtensionRequest),
		pending:  make(map[string]bool),
	}
}

func (m *mockExtensionRepo) Create(ctx context.Context, request *models.ExtensionRequest) error {
	request.ID = fmt.Sprintf("req-%d", len(m.requests)+1)
	m.requests[request.ID] = request
	m.pending[request.SessionID] = true
	return nil
}

func (m *mockExtensionRepo) FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	if r, ok := m.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExtensionRepo) ExistsPendingForSession(ctx context.Context, sessionID string) (bool, error) {
	return m.pending[sessionID], nil
}

func (m *mockExtensionRepo) List(ctx context.Context, filter models.ExtensionRequestFilter) ([]models.ExtensionRequest, int, error) {
	var list []models.ExtensionRequest
	for _, r := range m.requests {
		list = append(list, *r)
	}
	return list, len(list), nil
}

func (m *mockExtensionRepo) Resolve(ctx context.Context, params repository.ResolveExtensionParams) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	request, ok := m.requests[params.ID]
	if !ok || request.Status != models.ExtensionRequestStatusPending {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.GrantedWeeks = params.GrantedWeeks
	request.ReviewedBy = &params.ReviewedBy
	request.ReviewedAt = &params.ReviewedAt
	request.Note = params.Note
	m.pending[request.SessionID] = false
	return nil
}

func (m *mockExtensionRepo) ApproveAndApply(ctx context.Context, params repository.ResolveExtensionParams, targetEnrollmentID string, weeks int, auditLine string) error {
	if err := m.Resolve(ctx, params); err != nil {
		return err
	}
	m.appliedEnrollmentID = targetEnrollmentID
	m.appliedWeeks = weeks
	m.appliedAuditLine = auditLine
	return nil
}

func (m *mockExtensionRepo) MarkSessionRescheduled(ctx context.Context, sessionID string) error {
	for _, r := range m.requests {
		if r.SessionID == sessionID && r.Status == models.ExtensionRequestStatusApproved {
			r.SessionRescheduled = true
			m.rescheduledSessions = append(m.rescheduledSessions, sessionID)
			return nil
		}
	}
	return sql.ErrNoRows
}

func newTestExtensionService(repo *mockExtensionRepo, sessions *mockSessionRepo, enrollments *mockEnrollmentReader) *ExtensionRequestService {
	if enrollments == nil {
		enrollments = &mockEnrollmentReader{}
	}
	return NewExtensionRequestService(repo, sessions, enrollments, nil, nil, zap.NewNop())
}

func enrolledSession(id, enrollmentID string) models.Session {
	return models.Session{
		ID:           id,
		StudentID:    "s1",
		TutorID:      "t1",
		EnrollmentID: strPtr(enrollmentID),
		Date:         day("2025-01-06"),
		TimeSlot:     "16:00",
		Location:     "MSA",
		Status:       models.SessionStatusRescheduledPendingMakeup,
	}
}

func TestExtensionCreate(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"sess-1": enrolledSession("sess-1", "e1")}}
	repo := newMockExtensionRepo()
	svc := newTestExtensionService(repo, sessions, nil)

	request, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateExtensionRequest{
		SessionID:      "sess-1",
		RequestedWeeks: 2,
		Reason:         "student hospitalized",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionRequestStatusPending, request.Status)
	assert.Equal(t, "e1", request.EnrollmentID)
	assert.Nil(t, request.TargetEnrollmentID)
	assert.Equal(t, "t1", request.RequestedBy)
}

func TestExtensionCreateTargetsRenewedEnrollment(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"sess-1": enrolledSession("sess-1", "e1")}}
	enrollments := &mockEnrollmentReader{current: map[string]models.Enrollment{
		"s1": {ID: "e2", StudentID: "s1"},
	}}
	svc := newTestExtensionService(newMockExtensionRepo(), sessions, enrollments)

	request, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateExtensionRequest{
		SessionID:      "sess-1",
		RequestedWeeks: 1,
		Reason:         "typhoon make-up still unbooked",
	})
	require.NoError(t, err)
	require.NotNil(t, request.TargetEnrollmentID)
	assert.Equal(t, "e2", *request.TargetEnrollmentID)
	assert.Equal(t, "e2", request.TargetID())
}

func TestExtensionCreateDuplicatePending(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"sess-1": enrolledSession("sess-1", "e1")}}
	repo := newMockExtensionRepo()
	repo.pending["sess-1"] = true
	svc := newTestExtensionService(repo, sessions, nil)

	_, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateExtensionRequest{
		SessionID:      "sess-1",
		RequestedWeeks: 1,
		Reason:         "second ask",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicatePendingExists.Code, appErrors.FromError(err).Code)
}

func TestExtensionCreateNoEnrollment(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{
		"sess-1": {ID: "sess-1", StudentID: "s1", Status: models.SessionStatusRescheduledPendingMakeup},
	}}
	svc := newTestExtensionService(newMockExtensionRepo(), sessions, nil)

	_, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateExtensionRequest{
		SessionID:      "sess-1",
		RequestedWeeks: 1,
		Reason:         "trial class",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func extensionFixture(t *testing.T) (*mockExtensionRepo, *ExtensionRequestService, string) {
	t.Helper()
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"sess-1": enrolledSession("sess-1", "e1")}}
	repo := newMockExtensionRepo()
	svc := newTestExtensionService(repo, sessions, nil)

	request, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateExtensionRequest{
		SessionID:      "sess-1",
		RequestedWeeks: 2,
		Reason:         "student hospitalized",
	})
	require.NoError(t, err)
	return repo, svc, request.ID
}

func TestExtensionApprove(t *testing.T) {
	repo, svc, id := extensionFixture(t)

	request, err := svc.Approve(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, id, ReviewExtensionRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionRequestStatusApproved, request.Status)
	require.NotNil(t, request.GrantedWeeks)
	assert.Equal(t, 2, *request.GrantedWeeks, "granted weeks default to the requested amount")

	assert.Equal(t, "e1", repo.appliedEnrollmentID)
	assert.Equal(t, 2, repo.appliedWeeks)
	assert.Contains(t, repo.appliedAuditLine, "+2 week(s) granted by admin for session sess-1")
	assert.NotContains(t, repo.appliedAuditLine, "carried over")
}

func TestExtensionApprovePartialGrant(t *testing.T) {
	repo, svc, id := extensionFixture(t)
	one := 1

	request, err := svc.Approve(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, id, ReviewExtensionRequest{GrantedWeeks: &one})
	require.NoError(t, err)
	require.NotNil(t, request.GrantedWeeks)
	assert.Equal(t, 1, *request.GrantedWeeks)
	assert.Equal(t, 1, repo.appliedWeeks)
}

func TestExtensionApproveCarriedOverAuditLine(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]models.Session{"sess-1": enrolledSession("sess-1", "e1")}}
	enrollments := &mockEnrollmentReader{current: map[string]models.Enrollment{
		"s1": {ID: "e2", StudentID: "s1"},
	}}
	repo := newMockExtensionRepo()
	svc := newTestExtensionService(repo, sessions, enrollments)

	created, err := svc.Create(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, CreateExtensionRequest{
		SessionID:      "sess-1",
		RequestedWeeks: 2,
		Reason:         "renewed mid-cycle",
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, created.ID, ReviewExtensionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "e2", repo.appliedEnrollmentID)
	assert.True(t, strings.HasSuffix(repo.appliedAuditLine, "[carried over from enrollment e1]"))
}

func TestExtensionApproveNonAdmin(t *testing.T) {
	_, svc, id := extensionFixture(t)

	_, err := svc.Approve(context.Background(), Actor{ID: "t1", Role: models.RoleTutor}, id, ReviewExtensionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExtensionApproveResolvedConcurrently(t *testing.T) {
	repo, svc, id := extensionFixture(t)
	repo.resolveErr = sql.ErrNoRows

	_, err := svc.Approve(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, id, ReviewExtensionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestExtensionReject(t *testing.T) {
	repo, svc, id := extensionFixture(t)
	note := "deadline already generous"

	request, err := svc.Reject(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, id, ReviewExtensionRequest{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionRequestStatusRejected, request.Status)
	assert.Empty(t, repo.appliedEnrollmentID, "rejection never touches the enrollment")
}

func TestExtensionRejectAlreadyResolved(t *testing.T) {
	_, svc, id := extensionFixture(t)
	admin := Actor{ID: "admin", Role: models.RoleAdmin}

	_, err := svc.Reject(context.Background(), admin, id, ReviewExtensionRequest{})
	require.NoError(t, err)
	_, err = svc.Reject(context.Background(), admin, id, ReviewExtensionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestExtensionMarkRescheduled(t *testing.T) {
	repo, svc, id := extensionFixture(t)
	admin := Actor{ID: "admin", Role: models.RoleAdmin}

	_, err := svc.MarkRescheduled(context.Background(), admin, id)
	require.Error(t, err, "only approved requests can be flagged")

	_, err = svc.Approve(context.Background(), admin, id, ReviewExtensionRequest{})
	require.NoError(t, err)

	request, err := svc.MarkRescheduled(context.Background(), admin, id)
	require.NoError(t, err)
	assert.True(t, request.SessionRescheduled)
	assert.Equal(t, []string{"sess-1"}, repo.rescheduledSessions)
}
