package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

type mockSessionReader struct {
	sessions map[string]models.Session
	atSlot   *models.Session
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionReader) FindActiveAtSlot(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeID string) (*models.Session, error) {
	return m.atSlot, nil
}

type mockExtensionReader struct {
	approved map[string]models.ExtensionRequest
}

func (m *mockExtensionReader) FindApprovedForSession(ctx context.Context, sessionID string) (*models.ExtensionRequest, error) {
	if r, ok := m.approved[sessionID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func newTestValidator(sessions *mockSessionReader, enrollments *mockEnrollmentReader, extensions *mockExtensionReader, holidays *mockHolidayCalendar) *BookingValidator {
	if enrollments == nil {
		enrollments = &mockEnrollmentReader{}
	}
	if extensions == nil {
		extensions = &mockExtensionReader{}
	}
	if holidays == nil {
		holidays = &mockHolidayCalendar{}
	}
	return NewBookingValidator(sessions, enrollments, extensions, holidays, 60, nil, zap.NewNop())
}

func vacated(id, studentID, date string) models.Session {
	return models.Session{
		ID:        id,
		StudentID: studentID,
		Date:      day(date),
		TimeSlot:  "16:00",
		Location:  "MSA",
		Status:    models.SessionStatusRescheduledPendingMakeup,
	}
}

func TestBookingValidatorWithinWindow(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	v := newTestValidator(sessions, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-03-07"), // 60 days out
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.NoError(t, err)
}

func TestBookingValidatorWindowExceeded(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	v := newTestValidator(sessions, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-03-08"), // 61 days out
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMakeupWindowExceeded.Code, appErrors.FromError(err).Code)
}

func TestBookingValidatorWindowPrivilegedOverride(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	v := newTestValidator(sessions, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-03-08"),
		TimeSlot:           "16:00",
		Location:           "MSA",
		Privileged:         true,
	})
	require.NoError(t, err)
}

func TestBookingValidatorWindowExtensionBypass(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	extensions := &mockExtensionReader{approved: map[string]models.ExtensionRequest{
		"orig": {ID: "req-1", SessionID: "orig", Status: models.ExtensionRequestStatusApproved},
	}}
	v := newTestValidator(sessions, nil, extensions, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-03-08"),
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.NoError(t, err)
}

func TestBookingValidatorWindowFromRootOriginal(t *testing.T) {
	// A make-up of a make-up measures the window from the first
	// vacated session, so a chain cannot ratchet the window forward.
	root := vacated("root", "s1", "2025-01-06")
	middle := vacated("mid", "s1", "2025-02-10")
	middle.MakeUpForID = strPtr("root")
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"root": root,
		"mid":  middle,
	}}
	v := newTestValidator(sessions, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "mid",
		Date:               day("2025-03-20"), // within 60d of mid, beyond 60d of root
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMakeupWindowExceeded.Code, appErrors.FromError(err).Code)
}

func TestBookingValidatorChainCycleDoesNotHang(t *testing.T) {
	a := vacated("a", "s1", "2025-01-06")
	a.MakeUpForID = strPtr("b")
	b := vacated("b", "s1", "2025-01-06")
	b.MakeUpForID = strPtr("a")
	sessions := &mockSessionReader{sessions: map[string]models.Session{"a": a, "b": b}}
	v := newTestValidator(sessions, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "a",
		Date:               day("2025-01-20"),
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.NoError(t, err)
}

func TestBookingValidatorHolidayConflict(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	holidays := &mockHolidayCalendar{set: holidaySet("2025-01-20")}
	v := newTestValidator(sessions, nil, nil, holidays)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-01-20"),
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHolidayConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingValidatorRegularSlotPastDeadline(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	enrollments := &mockEnrollmentReader{current: map[string]models.Enrollment{
		"s1": {
			ID:              "e1",
			StudentID:       "s1",
			FirstLessonDate: day("2025-01-06"),
			LessonsPaid:     4, // ends 2025-01-27
			AssignedDay:     "Monday",
			AssignedTime:    "16:00",
		},
	}}
	v := newTestValidator(sessions, enrollments, nil, nil)

	// 2025-02-03 is a Monday at the assigned time, past the deadline.
	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-02-03"),
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDeadlineExceeded.Code, appErr.Code)
	assert.Equal(t, "e1", appErr.Details["enrollment_id"])
	assert.Equal(t, "2025-01-27", appErr.Details["effective_end_date"])
}

func TestBookingValidatorNonRegularSlotIgnoresDeadline(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"orig": vacated("orig", "s1", "2025-01-06"),
	}}
	enrollments := &mockEnrollmentReader{current: map[string]models.Enrollment{
		"s1": {
			ID:              "e1",
			StudentID:       "s1",
			FirstLessonDate: day("2025-01-06"),
			LessonsPaid:     4,
			AssignedDay:     "Monday",
			AssignedTime:    "16:00",
		},
	}}
	v := newTestValidator(sessions, enrollments, nil, nil)

	// Same date past the deadline but a different time slot.
	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-02-03"),
		TimeSlot:           "18:00",
		Location:           "MSA",
	})
	require.NoError(t, err)
}

func TestBookingValidatorDoubleBooking(t *testing.T) {
	occupying := models.Session{ID: "busy", Status: models.SessionStatusScheduled}
	sessions := &mockSessionReader{
		sessions: map[string]models.Session{"orig": vacated("orig", "s1", "2025-01-06")},
		atSlot:   &occupying,
	}
	v := newTestValidator(sessions, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "orig",
		Date:               day("2025-01-20"),
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
	assert.Equal(t, "busy", appErr.Details["occupying_session_id"])
}

func TestBookingValidatorMissingSession(t *testing.T) {
	v := newTestValidator(&mockSessionReader{}, nil, nil, nil)

	err := v.Validate(context.Background(), BookingCheck{
		StudentID:          "s1",
		ReplacingSessionID: "missing",
		Date:               day("2025-01-20"),
		TimeSlot:           "16:00",
		Location:           "MSA",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func strPtr(s string) *string { return &s }
