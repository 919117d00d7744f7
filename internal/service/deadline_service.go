package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

// EffectiveEndDate computes the date of the last counted lesson for an
// enrollment: starting at firstLessonDate it advances one week at a
// time, counting every non-holiday occurrence, until
// lessonsPaid+extensionWeeks dates have been counted. Each holiday
// occurrence therefore defers the result by one week. A zero target
// returns firstLessonDate unchanged (documented convention for
// zero-lesson enrollments).
//
// Pure and deterministic for a given holiday set; this is the single
// source of truth for whether an enrollment is still active and
// whether a proposed date falls past the deadline.
func EffectiveEndDate(firstLessonDate time.Time, lessonsPaid, extensionWeeks int, holidays models.HolidaySet) time.Time {
	target := lessonsPaid + extensionWeeks
	if target <= 0 {
		return firstLessonDate
	}

	date := firstLessonDate
	counted := 0
	for {
		if !holidays.Contains(date) {
			counted++
			if counted == target {
				return date
			}
		}
		date = date.AddDate(0, 0, 7)
	}
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindCurrentRegular(ctx context.Context, studentID string) (*models.Enrollment, error)
}

type holidayCalendar interface {
	Refresh(ctx context.Context) (models.HolidaySet, error)
}

// EffectiveEndDateResult reports a computed deadline with its inputs.
type EffectiveEndDateResult struct {
	EnrollmentID     string    `json:"enrollment_id"`
	FirstLessonDate  time.Time `json:"first_lesson_date"`
	LessonsPaid      int       `json:"lessons_paid"`
	ExtensionWeeks   int       `json:"extension_weeks"`
	EffectiveEndDate time.Time `json:"effective_end_date"`
}

// DeadlineService computes enrollment deadlines against a fresh
// holiday snapshot.
type DeadlineService struct {
	enrollments enrollmentReader
	holidays    holidayCalendar
	logger      *zap.Logger
}

// NewDeadlineService constructs the service.
func NewDeadlineService(enrollments enrollmentReader, holidays holidayCalendar, logger *zap.Logger) *DeadlineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadlineService{enrollments: enrollments, holidays: holidays, logger: logger}
}

// ForEnrollment computes the effective end date of one enrollment.
func (s *DeadlineService) ForEnrollment(ctx context.Context, enrollmentID string) (*EffectiveEndDateResult, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return s.compute(ctx, enrollment)
}

// ForCurrentRegular computes the effective end date of the student's
// current regular enrollment. Returns NotFound when the student has no
// non-cancelled enrollment.
func (s *DeadlineService) ForCurrentRegular(ctx context.Context, studentID string) (*EffectiveEndDateResult, error) {
	enrollment, err := s.enrollments.FindCurrentRegular(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no active enrollment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return s.compute(ctx, enrollment)
}

func (s *DeadlineService) compute(ctx context.Context, enrollment *models.Enrollment) (*EffectiveEndDateResult, error) {
	holidays, err := s.holidays.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	end := EffectiveEndDate(enrollment.FirstLessonDate, enrollment.LessonsPaid, enrollment.DeadlineExtensionWeeks, holidays)
	return &EffectiveEndDateResult{
		EnrollmentID:     enrollment.ID,
		FirstLessonDate:  enrollment.FirstLessonDate,
		LessonsPaid:      enrollment.LessonsPaid,
		ExtensionWeeks:   enrollment.DeadlineExtensionWeeks,
		EffectiveEndDate: end,
	}, nil
}
