package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindActiveAtSlot(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeID string) (*models.Session, error)
}

type extensionApprovalReader interface {
	FindApprovedForSession(ctx context.Context, sessionID string) (*models.ExtensionRequest, error)
}

type validationObserver interface {
	ObserveBookingValidation(outcome string)
}

// BookingCheck describes a candidate booking that would replace a
// vacated session.
type BookingCheck struct {
	StudentID          string
	ReplacingSessionID string
	Date               time.Time
	TimeSlot           string
	Location           string
	Privileged         bool
}

// BookingValidator gates every new make-up booking. Checks run in a
// fixed order and the first failure short-circuits: make-up window,
// holiday, regular-slot deadline, double booking. All checks read
// before any caller writes, so a failed validation leaves no state
// behind.
type BookingValidator struct {
	sessions    sessionReader
	enrollments enrollmentReader
	extensions  extensionApprovalReader
	holidays    holidayCalendar
	windowDays  int
	metrics     validationObserver
	logger      *zap.Logger
}

// NewBookingValidator constructs the validator.
func NewBookingValidator(sessions sessionReader, enrollments enrollmentReader, extensions extensionApprovalReader, holidays holidayCalendar, windowDays int, metrics validationObserver, logger *zap.Logger) *BookingValidator {
	if windowDays <= 0 {
		windowDays = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingValidator{
		sessions:    sessions,
		enrollments: enrollments,
		extensions:  extensions,
		holidays:    holidays,
		windowDays:  windowDays,
		metrics:     metrics,
		logger:      logger,
	}
}

// Validate reports whether the candidate slot is bookable. A nil error
// means every check passed.
func (v *BookingValidator) Validate(ctx context.Context, check BookingCheck) error {
	err := v.validate(ctx, check)
	v.observe(err)
	return err
}

func (v *BookingValidator) validate(ctx context.Context, check BookingCheck) error {
	replacing, err := v.sessions.FindByID(ctx, check.ReplacingSessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session being replaced not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if err := v.checkWindow(ctx, replacing, check); err != nil {
		return err
	}

	holidays, err := v.holidays.Refresh(ctx)
	if err != nil {
		return err
	}
	if holidays.Contains(check.Date) {
		return appErrors.ErrHolidayConflict
	}

	if err := v.checkDeadline(ctx, check, holidays); err != nil {
		return err
	}

	occupying, err := v.sessions.FindActiveAtSlot(ctx, check.StudentID, check.Date, check.TimeSlot, check.Location, check.ReplacingSessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot occupancy")
	}
	if occupying != nil {
		return appErrors.WithDetails(appErrors.ErrSlotTaken, map[string]interface{}{
			"occupying_session_id": occupying.ID,
		})
	}

	return nil
}

// checkWindow enforces the make-up window against the root original
// session. An approved extension request on the session bypasses the
// rule for any caller.
func (v *BookingValidator) checkWindow(ctx context.Context, replacing *models.Session, check BookingCheck) error {
	root := v.rootOriginal(ctx, replacing)
	days := int(check.Date.Sub(root.Date).Hours() / 24)
	if days <= v.windowDays || check.Privileged {
		return nil
	}

	if _, err := v.extensions.FindApprovedForSession(ctx, replacing.ID); err == nil {
		v.logger.Info("make-up window bypassed by approved extension request",
			zap.String("session_id", replacing.ID),
			zap.Int("days_from_original", days))
		return nil
	} else if err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check extension approvals")
	}

	return appErrors.WithDetails(appErrors.ErrMakeupWindowExceeded, map[string]interface{}{
		"root_session_id":    root.ID,
		"root_session_date":  root.Date.Format(models.HolidayDateFormat),
		"days_from_original": days,
		"window_days":        v.windowDays,
	})
}

// checkDeadline fails only when the candidate lands on the student's
// regular recurring slot past the enrollment's effective end date. An
// arbitrary make-up slot is never deadline-bound.
func (v *BookingValidator) checkDeadline(ctx context.Context, check BookingCheck, holidays models.HolidaySet) error {
	enrollment, err := v.enrollments.FindCurrentRegular(ctx, check.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.MatchesRegularSlot(check.Date, check.TimeSlot) {
		return nil
	}

	end := EffectiveEndDate(enrollment.FirstLessonDate, enrollment.LessonsPaid, enrollment.DeadlineExtensionWeeks, holidays)
	if !check.Date.After(end) {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrDeadlineExceeded, map[string]interface{}{
		"enrollment_id":      enrollment.ID,
		"effective_end_date": end.Format(models.HolidayDateFormat),
	})
}

// rootOriginal follows the make-up chain backwards until a session
// with no predecessor is reached. Cycles and dangling references are
// data corruption: they are logged and the traversal degrades to the
// last reached node instead of looping or failing.
func (v *BookingValidator) rootOriginal(ctx context.Context, start *models.Session) *models.Session {
	current := start
	visited := map[string]struct{}{current.ID: {}}
	for current.MakeUpForID != nil && *current.MakeUpForID != "" {
		parentID := *current.MakeUpForID
		if _, seen := visited[parentID]; seen {
			v.logger.Error("make-up chain contains a cycle",
				zap.String("session_id", start.ID),
				zap.String("repeated_id", parentID))
			return current
		}
		parent, err := v.sessions.FindByID(ctx, parentID)
		if err != nil {
			v.logger.Error("make-up chain references a missing session",
				zap.String("session_id", current.ID),
				zap.String("missing_id", parentID),
				zap.Error(err))
			return current
		}
		visited[parentID] = struct{}{}
		current = parent
	}
	return current
}

// RootOriginal resolves the root original session for a session id.
func (v *BookingValidator) RootOriginal(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := v.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return v.rootOriginal(ctx, session), nil
}

func (v *BookingValidator) observe(err error) {
	if v.metrics == nil {
		return
	}
	if err == nil {
		v.metrics.ObserveBookingValidation("ok")
		return
	}
	v.metrics.ObserveBookingValidation(appErrors.FromError(err).Code)
}
