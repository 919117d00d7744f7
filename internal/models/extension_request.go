package models

import "time"

// ExtensionRequestStatus captures workflow states for deadline
// extension requests.
type ExtensionRequestStatus string

const (
	ExtensionRequestStatusPending  ExtensionRequestStatus = "PENDING"
	ExtensionRequestStatusApproved ExtensionRequestStatus = "APPROVED"
	ExtensionRequestStatusRejected ExtensionRequestStatus = "REJECTED"
)

// ExtensionRequest asks for extra weeks on the deadline of a target
// enrollment, raised because a specific session needs to be
// rescheduled past the current deadline. TargetEnrollmentID may differ
// from EnrollmentID after a renewal; it defaults to the source when
// absent.
type ExtensionRequest struct {
	ID                 string                 `db:"id" json:"id"`
	SessionID          string                 `db:"session_id" json:"session_id"`
	EnrollmentID       string                 `db:"enrollment_id" json:"enrollment_id"`
	TargetEnrollmentID *string                `db:"target_enrollment_id" json:"target_enrollment_id,omitempty"`
	RequestedWeeks     int                    `db:"requested_weeks" json:"requested_weeks"`
	GrantedWeeks       *int                   `db:"granted_weeks" json:"granted_weeks,omitempty"`
	Status             ExtensionRequestStatus `db:"status" json:"status"`
	Reason             string                 `db:"reason" json:"reason"`
	RequestedBy        string                 `db:"requested_by" json:"requested_by"`
	ReviewedBy         *string                `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RequestedAt        time.Time              `db:"requested_at" json:"requested_at"`
	ReviewedAt         *time.Time             `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Note               *string                `db:"note" json:"note,omitempty"`
	SessionRescheduled bool                   `db:"session_rescheduled" json:"session_rescheduled"`
}

// TargetID returns the enrollment actually being extended.
func (r *ExtensionRequest) TargetID() string {
	if r.TargetEnrollmentID != nil && *r.TargetEnrollmentID != "" {
		return *r.TargetEnrollmentID
	}
	return r.EnrollmentID
}

// ExtensionRequestFilter constrains listing queries.
type ExtensionRequestFilter struct {
	SessionID    string
	EnrollmentID string
	Status       []ExtensionRequestStatus
	RequestedBy  string
	Page         int
	PageSize     int
}
