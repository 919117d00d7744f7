package models

import (
	"strings"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment is a student's entitlement to a recurring weekly slot with
// a tutor. The effective end date is never stored; it is recomputed
// from FirstLessonDate, LessonsPaid and DeadlineExtensionWeeks against
// the current holiday set.
type Enrollment struct {
	ID                     string           `db:"id" json:"id"`
	StudentID              string           `db:"student_id" json:"student_id"`
	TutorID                string           `db:"tutor_id" json:"tutor_id"`
	FirstLessonDate        time.Time        `db:"first_lesson_date" json:"first_lesson_date"`
	LessonsPaid            int              `db:"lessons_paid" json:"lessons_paid"`
	DeadlineExtensionWeeks int              `db:"deadline_extension_weeks" json:"deadline_extension_weeks"`
	AssignedDay            string           `db:"assigned_day" json:"assigned_day"`
	AssignedTime           string           `db:"assigned_time" json:"assigned_time"`
	Location               string           `db:"location" json:"location"`
	Status                 EnrollmentStatus `db:"status" json:"status"`
	ExtensionNotes         string           `db:"extension_notes" json:"extension_notes"`
	CreatedAt              time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time        `db:"updated_at" json:"updated_at"`
}

// MatchesRegularSlot reports whether the given date and time slot fall
// on the enrollment's assigned recurring weekday/time.
func (e *Enrollment) MatchesRegularSlot(date time.Time, timeSlot string) bool {
	return strings.EqualFold(e.AssignedDay, date.Weekday().String()) &&
		strings.EqualFold(e.AssignedTime, timeSlot)
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	TutorID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
