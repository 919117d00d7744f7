package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/repository"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

type extensionRequestRepository interface {
	Create(ctx context.Context, request *models.ExtensionRequest) error
	FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error)
	ExistsPendingForSession(ctx context.Context, sessionID string) (bool, error)
	List(ctx context.Context, filter models.ExtensionRequestFilter) ([]models.ExtensionRequest, int, error)
	Resolve(ctx context.Context, params repository.ResolveExtensionParams) error
	ApproveAndApply(ctx context.Context, params repository.ResolveExtensionParams, targetEnrollmentID string, weeks int, auditLine string) error
	MarkSessionRescheduled(ctx context.Context, sessionID string) error
}

// ExtensionRequestService runs the deadline extension workflow.
// Approval is the only path that moves an enrollment's deadline: the
// request resolution and the week increment commit together, so the
// extension audit trail always matches the stored weeks.
type ExtensionRequestService struct {
	requests    extensionRequestRepository
	sessions    sessionRepository
	enrollments enrollmentReader
	events      eventPublisher
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewExtensionRequestService constructs the service.
func NewExtensionRequestService(requests extensionRequestRepository, sessions sessionRepository, enrollments enrollmentReader, events eventPublisher, validate *validator.Validate, logger *zap.Logger) *ExtensionRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtensionRequestService{
		requests:    requests,
		sessions:    sessions,
		enrollments: enrollments,
		events:      events,
		validate:    validate,
		logger:      logger,
	}
}

// CreateExtensionRequest asks for extra weeks on a deadline because a
// session must be rescheduled past it.
type CreateExtensionRequest struct {
	SessionID      string `json:"session_id" validate:"required"`
	RequestedWeeks int    `json:"requested_weeks" validate:"required,min=1,max=12"`
	Reason         string `json:"reason" validate:"required"`
}

// Create opens a request for the session. The target enrollment
// defaults to the session's own enrollment; when the student has since
// renewed onto a newer enrollment, the current one becomes the target
// so the extension lands where the make-up will be booked.
func (s *ExtensionRequestService) Create(ctx context.Context, actor Actor, req CreateExtensionRequest) (*models.ExtensionRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension request payload")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.EnrollmentID == nil || *session.EnrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session is not tied to an enrollment")
	}

	exists, err := s.requests.ExistsPendingForSession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicatePendingExists, "a pending extension request already exists for this session")
	}

	request := &models.ExtensionRequest{
		SessionID:      session.ID,
		EnrollmentID:   *session.EnrollmentID,
		RequestedWeeks: req.RequestedWeeks,
		Status:         models.ExtensionRequestStatusPending,
		Reason:         req.Reason,
		RequestedBy:    actor.ID,
	}

	if current, err := s.enrollments.FindCurrentRegular(ctx, session.StudentID); err == nil {
		if current.ID != request.EnrollmentID {
			request.TargetEnrollmentID = &current.ID
		}
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve target enrollment")
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create extension request")
	}

	s.publish(ctx, EventExtensionRequested, session, request, nil)
	s.logger.Info("extension request created",
		zap.String("request_id", request.ID),
		zap.String("session_id", session.ID),
		zap.String("target_enrollment_id", request.TargetID()),
		zap.Int("requested_weeks", request.RequestedWeeks))
	return request, nil
}

// Get returns a request by id.
func (s *ExtensionRequestService) Get(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extension request")
	}
	return request, nil
}

// List returns requests matching the filter.
func (s *ExtensionRequestService) List(ctx context.Context, filter models.ExtensionRequestFilter) ([]models.ExtensionRequest, int, error) {
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list extension requests")
	}
	return requests, total, nil
}

// ReviewExtensionRequest carries the reviewer's decision inputs.
type ReviewExtensionRequest struct {
	GrantedWeeks *int    `json:"granted_weeks,omitempty" validate:"omitempty,min=1,max=12"`
	Note         *string `json:"note,omitempty"`
}

// Approve grants the extension. The granted weeks default to the
// requested amount and land on the target enrollment atomically with
// the request resolution; each grant appends an audit line naming the
// request. A request already resolved surfaces as a conflict.
func (s *ExtensionRequestService) Approve(ctx context.Context, actor Actor, id string, review ReviewExtensionRequest) (*models.ExtensionRequest, error) {
	if !actor.Privileged() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins review extension requests")
	}
	if err := s.validate.Struct(review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ExtensionRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "extension request has already been resolved")
	}

	weeks := request.RequestedWeeks
	if review.GrantedWeeks != nil {
		weeks = *review.GrantedWeeks
	}
	targetID := request.TargetID()
	now := time.Now().UTC()

	auditLine := fmt.Sprintf("%s: +%d week(s) granted by %s for session %s (request %s)",
		now.Format(models.HolidayDateFormat), weeks, actor.ID, request.SessionID, request.ID)
	if targetID != request.EnrollmentID {
		auditLine += fmt.Sprintf(" [carried over from enrollment %s]", request.EnrollmentID)
	}

	err = s.requests.ApproveAndApply(ctx, repository.ResolveExtensionParams{
		ID:           request.ID,
		Status:       models.ExtensionRequestStatusApproved,
		GrantedWeeks: &weeks,
		ReviewedBy:   actor.ID,
		ReviewedAt:   now,
		Note:         review.Note,
	}, targetID, weeks, auditLine)
	if err == sql.ErrNoRows {
		return nil, appErrors.Clone(appErrors.ErrConflict, "extension request was resolved concurrently")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve extension request")
	}

	s.publish(ctx, EventExtensionApproved, nil, request, map[string]interface{}{
		"granted_weeks":        weeks,
		"target_enrollment_id": targetID,
	})
	s.logger.Info("extension request approved",
		zap.String("request_id", request.ID),
		zap.String("target_enrollment_id", targetID),
		zap.Int("granted_weeks", weeks),
		zap.String("reviewed_by", actor.ID))
	return s.Get(ctx, id)
}

// Reject denies the request. No enrollment state changes.
func (s *ExtensionRequestService) Reject(ctx context.Context, actor Actor, id string, review ReviewExtensionRequest) (*models.ExtensionRequest, error) {
	if !actor.Privileged() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins review extension requests")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ExtensionRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "extension request has already been resolved")
	}

	err = s.requests.Resolve(ctx, repository.ResolveExtensionParams{
		ID:         request.ID,
		Status:     models.ExtensionRequestStatusRejected,
		ReviewedBy: actor.ID,
		ReviewedAt: time.Now().UTC(),
		Note:       review.Note,
	})
	if err == sql.ErrNoRows {
		return nil, appErrors.Clone(appErrors.ErrConflict, "extension request was resolved concurrently")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject extension request")
	}

	s.publish(ctx, EventExtensionRejected, nil, request, nil)
	return s.Get(ctx, id)
}

// MarkRescheduled flags an approved request once its session was
// actually rebooked. The booking flow sets this automatically; the
// endpoint covers make-ups arranged outside the proposal protocol.
func (s *ExtensionRequestService) MarkRescheduled(ctx context.Context, actor Actor, id string) (*models.ExtensionRequest, error) {
	if !actor.Privileged() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins flag extension requests")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ExtensionRequestStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only approved requests can be flagged as rescheduled")
	}

	if err := s.requests.MarkSessionRescheduled(ctx, request.SessionID); err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag extension request")
	}
	return s.Get(ctx, id)
}

func (s *ExtensionRequestService) publish(ctx context.Context, eventType string, session *models.Session, request *models.ExtensionRequest, extra map[string]interface{}) {
	if s.events == nil {
		return
	}
	event := Event{
		Type:      eventType,
		SessionID: request.SessionID,
		Payload: map[string]interface{}{
			"request_id": request.ID,
		},
	}
	if session != nil {
		event.StudentID = session.StudentID
		event.TutorID = session.TutorID
	}
	for k, v := range extra {
		event.Payload[k] = v
	}
	s.events.Publish(ctx, event)
}
