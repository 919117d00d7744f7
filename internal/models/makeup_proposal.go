package models

import "time"

// MakeupProposalType distinguishes concrete slot bundles from hand-offs
// where one tutor is asked to pick a slot themselves.
type MakeupProposalType string

const (
	ProposalTypeSpecificSlots MakeupProposalType = "SPECIFIC_SLOTS"
	ProposalTypeNeedsInput    MakeupProposalType = "NEEDS_INPUT"
)

// MakeupProposalStatus captures the proposal workflow states.
type MakeupProposalStatus string

const (
	ProposalStatusPending  MakeupProposalStatus = "PENDING"
	ProposalStatusApproved MakeupProposalStatus = "APPROVED"
	ProposalStatusRejected MakeupProposalStatus = "REJECTED"
)

// ProposalSlotStatus captures the per-slot resolution states.
type ProposalSlotStatus string

const (
	SlotStatusPending  ProposalSlotStatus = "PENDING"
	SlotStatusApproved ProposalSlotStatus = "APPROVED"
	SlotStatusRejected ProposalSlotStatus = "REJECTED"
)

// SiblingRejectedReason is recorded on pending slots auto-rejected when
// another slot of the same proposal wins.
const SiblingRejectedReason = "another slot was approved"

// MakeupProposal bundles up to three candidate replacement slots for
// one pending-make-up session, or hands slot selection off to one
// tutor (NEEDS_INPUT).
type MakeupProposal struct {
	ID                string               `db:"id" json:"id"`
	OriginalSessionID string               `db:"original_session_id" json:"original_session_id"`
	ProposedByTutorID string               `db:"proposed_by_tutor_id" json:"proposed_by_tutor_id"`
	Type              MakeupProposalType   `db:"type" json:"type"`
	NeedsInputTutorID *string              `db:"needs_input_tutor_id" json:"needs_input_tutor_id,omitempty"`
	Status            MakeupProposalStatus `db:"status" json:"status"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	ResolvedAt        *time.Time           `db:"resolved_at" json:"resolved_at,omitempty"`
}

// MakeupProposalSlot is one candidate replacement slot with its own
// target tutor.
type MakeupProposalSlot struct {
	ID              string             `db:"id" json:"id"`
	ProposalID      string             `db:"proposal_id" json:"proposal_id"`
	Date            time.Time          `db:"date" json:"date"`
	TimeSlot        string             `db:"time_slot" json:"time_slot"`
	ProposedTutorID string             `db:"proposed_tutor_id" json:"proposed_tutor_id"`
	Location        string             `db:"location" json:"location"`
	Status          ProposalSlotStatus `db:"status" json:"status"`
	RejectReason    *string            `db:"reject_reason" json:"reject_reason,omitempty"`
	ResolvedBy      *string            `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time         `db:"resolved_at" json:"resolved_at,omitempty"`
}

// MakeupProposalDetail joins a proposal with its slots.
type MakeupProposalDetail struct {
	MakeupProposal
	Slots []MakeupProposalSlot `json:"slots"`
}

// PendingSlots returns the slots still awaiting resolution.
func (d *MakeupProposalDetail) PendingSlots() []MakeupProposalSlot {
	var pending []MakeupProposalSlot
	for _, slot := range d.Slots {
		if slot.Status == SlotStatusPending {
			pending = append(pending, slot)
		}
	}
	return pending
}

// MakeupProposalFilter constrains listing queries.
type MakeupProposalFilter struct {
	OriginalSessionID string
	ProposedBy        string
	TargetTutorID     string
	Status            []MakeupProposalStatus
	Page              int
	PageSize          int
}
