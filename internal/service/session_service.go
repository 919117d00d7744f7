package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/repository"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	Create(ctx context.Context, session *models.Session) error
	TransitionStatus(ctx context.Context, id string, from []models.SessionStatus, to models.SessionStatus) error
}

// SessionService owns the session lifecycle: attendance, miss
// declarations and cancellation. Every transition is a guarded update
// keyed on the status the caller last saw, so concurrent writers lose
// cleanly instead of clobbering each other.
type SessionService struct {
	sessions  sessionRepository
	validator *BookingValidator
	events    eventPublisher
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions sessionRepository, bookingValidator *BookingValidator, events eventPublisher, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:  sessions,
		validator: bookingValidator,
		events:    events,
		validate:  validate,
		logger:    logger,
	}
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter with a total count.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown session status: "+string(status))
		}
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, total, nil
}

// CreateSessionRequest is the payload for creating an ad-hoc session,
// including trial classes.
type CreateSessionRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	TutorID      string  `json:"tutor_id" validate:"required"`
	EnrollmentID *string `json:"enrollment_id,omitempty"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot     string  `json:"time_slot" validate:"required"`
	Location     string  `json:"location" validate:"required"`
	Trial        bool    `json:"trial"`
}

// Create schedules a single session. Trial classes start in
// TRIAL_CLASS, everything else in SCHEDULED. The slot must be free of
// active sessions for the student.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	occupying, err := s.validator.sessions.FindActiveAtSlot(ctx, req.StudentID, date, req.TimeSlot, req.Location, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot occupancy")
	}
	if occupying != nil {
		return nil, appErrors.WithDetails(appErrors.ErrSlotTaken, map[string]interface{}{
			"occupying_session_id": occupying.ID,
		})
	}

	status := models.SessionStatusScheduled
	if req.Trial {
		status = models.SessionStatusTrialClass
	}
	session := &models.Session{
		StudentID:    req.StudentID,
		TutorID:      req.TutorID,
		EnrollmentID: req.EnrollmentID,
		Date:         date,
		TimeSlot:     req.TimeSlot,
		Location:     req.Location,
		Status:       status,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSlotOccupied) {
			return nil, appErrors.Clone(appErrors.ErrSlotTaken, "slot was booked concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("student_id", session.StudentID),
		zap.String("status", string(session.Status)))
	return session, nil
}

// MarkAttendance records the outcome of a held session. Attendance is
// only valid from an attendable status; the attended variant preserves
// whether the session was a make-up.
func (s *SessionService) MarkAttendance(ctx context.Context, id string, present bool) (*models.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsAttendable() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance cannot be marked from status "+string(session.Status))
	}

	target := models.SessionStatusNoShow
	if present {
		target = models.SessionStatusAttended
		if session.Status == models.SessionStatusMakeupClass {
			target = models.SessionStatusAttendedMakeup
		}
	}

	if err := s.transition(ctx, session, target); err != nil {
		return nil, err
	}
	session.Status = target
	s.publish(ctx, EventSessionAttendanceMarked, session)
	return session, nil
}

// DeclareMiss vacates a session for the given reason, moving it into
// the matching pending make-up status. The slot is freed and a make-up
// proposal becomes possible.
func (s *SessionService) DeclareMiss(ctx context.Context, id string, reason models.MissReason) (*models.Session, error) {
	pending, ok := reason.PendingStatus()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown miss reason: "+string(reason))
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsMissable() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session cannot be vacated from status "+string(session.Status))
	}

	if err := s.transition(ctx, session, pending); err != nil {
		return nil, err
	}
	session.Status = pending
	s.publish(ctx, EventSessionMissed, session)
	s.logger.Info("session vacated",
		zap.String("session_id", session.ID),
		zap.String("reason", string(reason)),
		zap.String("status", string(pending)))
	return session, nil
}

// Cancel moves a session to CANCELLED. Terminal sessions cannot be
// cancelled.
func (s *SessionService) Cancel(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is already in a terminal status")
	}

	if err := s.transition(ctx, session, models.SessionStatusCancelled); err != nil {
		return nil, err
	}
	session.Status = models.SessionStatusCancelled
	s.publish(ctx, EventSessionCancelled, session)
	return session, nil
}

// RootOriginal resolves the first vacated session behind a make-up
// chain.
func (s *SessionService) RootOriginal(ctx context.Context, id string) (*models.Session, error) {
	return s.validator.RootOriginal(ctx, id)
}

func (s *SessionService) transition(ctx context.Context, session *models.Session, to models.SessionStatus) error {
	err := s.sessions.TransitionStatus(ctx, session.ID, []models.SessionStatus{session.Status}, to)
	if err == sql.ErrNoRows {
		return appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently, reload and retry")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	return nil
}

func (s *SessionService) publish(ctx context.Context, eventType string, session *models.Session) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, Event{
		Type:      eventType,
		SessionID: session.ID,
		StudentID: session.StudentID,
		TutorID:   session.TutorID,
		Payload: map[string]interface{}{
			"status": string(session.Status),
			"date":   session.Date.Format(models.HolidayDateFormat),
		},
	})
}
