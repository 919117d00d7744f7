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

type enrollmentRepository interface {
	enrollmentReader
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type sessionBulkWriter interface {
	BulkCreate(ctx context.Context, sessions []models.Session) error
}

// EnrollmentService manages enrollments and generates the recurring
// session schedule a paid enrollment entitles the student to.
type EnrollmentService struct {
	enrollments enrollmentRepository
	sessions    sessionBulkWriter
	holidays    holidayCalendar
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(enrollments enrollmentRepository, sessions sessionBulkWriter, holidays holidayCalendar, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		sessions:    sessions,
		holidays:    holidays,
		validate:    validate,
		logger:      logger,
	}
}

// CreateEnrollmentRequest registers a paid recurring slot.
type CreateEnrollmentRequest struct {
	StudentID       string `json:"student_id" validate:"required"`
	TutorID         string `json:"tutor_id" validate:"required"`
	FirstLessonDate string `json:"first_lesson_date" validate:"required,datetime=2006-01-02"`
	LessonsPaid     int    `json:"lessons_paid" validate:"min=0"`
	AssignedTime    string `json:"assigned_time" validate:"required"`
	Location        string `json:"location" validate:"required"`
}

// Create registers the enrollment and generates one SCHEDULED session
// per paid lesson on the weekly recurrence, skipping holidays so the
// generated dates line up with the effective end date. The assigned
// weekday is derived from the first lesson date.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	firstLesson, err := parseDate(req.FirstLessonDate)
	if err != nil {
		return nil, err
	}

	holidays, err := s.holidays.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if holidays.Contains(firstLesson) {
		return nil, appErrors.Clone(appErrors.ErrHolidayConflict, "first lesson date falls on a holiday")
	}

	enrollment := &models.Enrollment{
		StudentID:       req.StudentID,
		TutorID:         req.TutorID,
		FirstLessonDate: firstLesson,
		LessonsPaid:     req.LessonsPaid,
		AssignedDay:     firstLesson.Weekday().String(),
		AssignedTime:    req.AssignedTime,
		Location:        req.Location,
		Status:          models.EnrollmentStatusActive,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	sessions := generateSchedule(enrollment, holidays)
	if len(sessions) > 0 {
		if err := s.sessions.BulkCreate(ctx, sessions); err != nil {
			if errors.Is(err, repository.ErrSlotOccupied) {
				return nil, appErrors.Clone(appErrors.ErrSlotTaken, "a generated session collides with an existing active session")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session schedule")
		}
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.Int("lessons_paid", enrollment.LessonsPaid),
		zap.Int("sessions_generated", len(sessions)))
	return enrollment, nil
}

// Get returns an enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Cancel marks an enrollment cancelled. Its sessions keep their own
// lifecycle; FindCurrentRegular no longer returns it.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.enrollments.UpdateStatus(ctx, id, models.EnrollmentStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	s.logger.Info("enrollment cancelled", zap.String("enrollment_id", id))
	return nil
}

// generateSchedule lays out one session per paid lesson on the weekly
// recurrence, skipping holiday occurrences. The last generated date
// equals the effective end date with zero extension weeks.
func generateSchedule(enrollment *models.Enrollment, holidays models.HolidaySet) []models.Session {
	sessions := make([]models.Session, 0, enrollment.LessonsPaid)
	date := enrollment.FirstLessonDate
	for len(sessions) < enrollment.LessonsPaid {
		if !holidays.Contains(date) {
			sessions = append(sessions, models.Session{
				StudentID:    enrollment.StudentID,
				TutorID:      enrollment.TutorID,
				EnrollmentID: &enrollment.ID,
				Date:         date,
				TimeSlot:     enrollment.AssignedTime,
				Location:     enrollment.Location,
				Status:       models.SessionStatusScheduled,
			})
		}
		date = date.AddDate(0, 0, 7)
	}
	return sessions
}
