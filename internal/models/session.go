package models

import "time"

// SessionStatus is the closed set of lifecycle states for a session.
type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "SCHEDULED"
	SessionStatusTrialClass  SessionStatus = "TRIAL_CLASS"
	SessionStatusMakeupClass SessionStatus = "MAKEUP_CLASS"

	SessionStatusAttended       SessionStatus = "ATTENDED"
	SessionStatusAttendedMakeup SessionStatus = "ATTENDED_MAKEUP"
	SessionStatusNoShow         SessionStatus = "NO_SHOW"

	SessionStatusRescheduledPendingMakeup SessionStatus = "RESCHEDULED_PENDING_MAKEUP"
	SessionStatusRescheduledMakeupBooked  SessionStatus = "RESCHEDULED_MAKEUP_BOOKED"
	SessionStatusSickLeavePendingMakeup   SessionStatus = "SICK_LEAVE_PENDING_MAKEUP"
	SessionStatusSickLeaveMakeupBooked    SessionStatus = "SICK_LEAVE_MAKEUP_BOOKED"
	SessionStatusWeatherPendingMakeup     SessionStatus = "WEATHER_PENDING_MAKEUP"
	SessionStatusWeatherMakeupBooked      SessionStatus = "WEATHER_MAKEUP_BOOKED"

	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusTrialClass, SessionStatusMakeupClass,
		SessionStatusAttended, SessionStatusAttendedMakeup, SessionStatusNoShow,
		SessionStatusRescheduledPendingMakeup, SessionStatusRescheduledMakeupBooked,
		SessionStatusSickLeavePendingMakeup, SessionStatusSickLeaveMakeupBooked,
		SessionStatusWeatherPendingMakeup, SessionStatusWeatherMakeupBooked,
		SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a session in this status occupies its slot
// for double-booking purposes. Pending/booked make-up placeholders and
// cancelled sessions leave their slot free.
func (s SessionStatus) IsActive() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusMakeupClass, SessionStatusAttended, SessionStatusAttendedMakeup:
		return true
	default:
		return false
	}
}

// IsPendingMakeup reports whether the slot was vacated and a make-up is
// owed but not yet scheduled.
func (s SessionStatus) IsPendingMakeup() bool {
	switch s {
	case SessionStatusRescheduledPendingMakeup, SessionStatusSickLeavePendingMakeup, SessionStatusWeatherPendingMakeup:
		return true
	default:
		return false
	}
}

// IsMakeupBooked reports whether a replacement session has already been
// linked; no further proposal is allowed for the session.
func (s SessionStatus) IsMakeupBooked() bool {
	switch s {
	case SessionStatusRescheduledMakeupBooked, SessionStatusSickLeaveMakeupBooked, SessionStatusWeatherMakeupBooked:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition out of the status exists.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusAttended, SessionStatusAttendedMakeup, SessionStatusNoShow, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsAttendable reports whether attendance may still be marked.
func (s SessionStatus) IsAttendable() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusTrialClass, SessionStatusMakeupClass:
		return true
	default:
		return false
	}
}

// IsMissable reports whether the session can be vacated with a miss
// declaration. Trial classes earn no make-up entitlement, so they can
// only be attended, no-showed or cancelled.
func (s SessionStatus) IsMissable() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusMakeupClass:
		return true
	default:
		return false
	}
}

// BookedVariant maps a pending make-up status to its booked
// counterpart. The second return is false for non-pending statuses.
func (s SessionStatus) BookedVariant() (SessionStatus, bool) {
	switch s {
	case SessionStatusRescheduledPendingMakeup:
		return SessionStatusRescheduledMakeupBooked, true
	case SessionStatusSickLeavePendingMakeup:
		return SessionStatusSickLeaveMakeupBooked, true
	case SessionStatusWeatherPendingMakeup:
		return SessionStatusWeatherMakeupBooked, true
	default:
		return s, false
	}
}

// MissReason captures why a session was vacated and selects the pending
// make-up variant the session transitions into.
type MissReason string

const (
	MissReasonRescheduled MissReason = "RESCHEDULED"
	MissReasonSickLeave   MissReason = "SICK_LEAVE"
	MissReasonWeather     MissReason = "WEATHER"
)

// PendingStatus returns the pending make-up status for the reason.
func (r MissReason) PendingStatus() (SessionStatus, bool) {
	switch r {
	case MissReasonRescheduled:
		return SessionStatusRescheduledPendingMakeup, true
	case MissReasonSickLeave:
		return SessionStatusSickLeavePendingMakeup, true
	case MissReasonWeather:
		return SessionStatusWeatherPendingMakeup, true
	default:
		return "", false
	}
}

// Session is one concrete lesson occurrence. Make-up linkage is kept as
// id references: RescheduledToID points forward to the replacement,
// MakeUpForID points backward to the session being made up for.
type Session struct {
	ID              string        `db:"id" json:"id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	TutorID         string        `db:"tutor_id" json:"tutor_id"`
	EnrollmentID    *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Date            time.Time     `db:"date" json:"date"`
	TimeSlot        string        `db:"time_slot" json:"time_slot"`
	Location        string        `db:"location" json:"location"`
	Status          SessionStatus `db:"status" json:"status"`
	RescheduledToID *string       `db:"rescheduled_to_id" json:"rescheduled_to_id,omitempty"`
	MakeUpForID     *string       `db:"make_up_for_id" json:"make_up_for_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	StudentID string
	TutorID   string
	Status    []SessionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
