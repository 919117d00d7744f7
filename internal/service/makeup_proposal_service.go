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

type makeupProposalRepository interface {
	Create(ctx context.Context, proposal *models.MakeupProposal, slots []models.MakeupProposalSlot) error
	FindDetailByID(ctx context.Context, id string) (*models.MakeupProposalDetail, error)
	FindSlotByID(ctx context.Context, slotID string) (*models.MakeupProposalSlot, error)
	ExistsPendingForSession(ctx context.Context, sessionID string) (bool, error)
	List(ctx context.Context, filter models.MakeupProposalFilter) ([]models.MakeupProposal, int, error)
	ApproveSlot(ctx context.Context, params repository.ApproveSlotParams) error
	RejectSlot(ctx context.Context, proposalID, slotID, reason, resolvedBy string) (bool, error)
	RejectProposal(ctx context.Context, proposalID string) error
	Delete(ctx context.Context, proposalID string) error
}

type extensionRescheduleMarker interface {
	MarkSessionRescheduled(ctx context.Context, sessionID string) error
}

type resolutionObserver interface {
	ObserveProposalResolution(outcome string)
}

// MakeupProposalService runs the proposal protocol: a tutor bundles
// candidate replacement slots for a vacated session, a target tutor
// approves or rejects each slot, and a single approval books the
// make-up while auto-rejecting the siblings.
type MakeupProposalService struct {
	proposals  makeupProposalRepository
	sessions   sessionRepository
	extensions extensionRescheduleMarker
	validator  *BookingValidator
	events     eventPublisher
	metrics    resolutionObserver
	maxSlots   int
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewMakeupProposalService constructs the service.
func NewMakeupProposalService(
	proposals makeupProposalRepository,
	sessions sessionRepository,
	extensions extensionRescheduleMarker,
	bookingValidator *BookingValidator,
	events eventPublisher,
	metrics resolutionObserver,
	maxSlots int,
	validate *validator.Validate,
	logger *zap.Logger,
) *MakeupProposalService {
	if maxSlots <= 0 {
		maxSlots = 3
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MakeupProposalService{
		proposals:  proposals,
		sessions:   sessions,
		extensions: extensions,
		validator:  bookingValidator,
		events:     events,
		metrics:    metrics,
		maxSlots:   maxSlots,
		validate:   validate,
		logger:     logger,
	}
}

// ProposalSlotInput is one candidate slot in a creation request.
type ProposalSlotInput struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot        string `json:"time_slot" validate:"required"`
	ProposedTutorID string `json:"proposed_tutor_id" validate:"required"`
	Location        string `json:"location" validate:"required"`
}

// CreateProposalRequest creates either a bundle of specific slots or a
// NEEDS_INPUT hand-off to one tutor.
type CreateProposalRequest struct {
	OriginalSessionID string              `json:"original_session_id" validate:"required"`
	Type              string              `json:"type" validate:"required,oneof=SPECIFIC_SLOTS NEEDS_INPUT"`
	Slots             []ProposalSlotInput `json:"slots,omitempty" validate:"dive"`
	NeedsInputTutorID *string             `json:"needs_input_tutor_id,omitempty"`
}

// Create opens a proposal for a vacated session. The session must be
// in a pending make-up status and carry no other pending proposal.
func (s *MakeupProposalService) Create(ctx context.Context, actor Actor, req CreateProposalRequest) (*models.MakeupProposalDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	proposalType := models.MakeupProposalType(req.Type)
	switch proposalType {
	case models.ProposalTypeSpecificSlots:
		if len(req.Slots) == 0 || len(req.Slots) > s.maxSlots {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a slot proposal carries between one and three candidate slots")
		}
	case models.ProposalTypeNeedsInput:
		if len(req.Slots) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a NEEDS_INPUT proposal carries no slots")
		}
		if req.NeedsInputTutorID == nil || *req.NeedsInputTutorID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a NEEDS_INPUT proposal names the tutor asked for input")
		}
	}

	session, err := s.sessions.FindByID(ctx, req.OriginalSessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "original session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original session")
	}
	if !session.Status.IsPendingMakeup() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is not awaiting a make-up")
	}

	exists, err := s.proposals.ExistsPendingForSession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending proposals")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicatePendingExists, "a pending proposal already exists for this session")
	}

	proposal := &models.MakeupProposal{
		OriginalSessionID: session.ID,
		ProposedByTutorID: actor.ID,
		Type:              proposalType,
		NeedsInputTutorID: req.NeedsInputTutorID,
		Status:            models.ProposalStatusPending,
	}

	slots := make([]models.MakeupProposalSlot, 0, len(req.Slots))
	for _, input := range req.Slots {
		date, err := parseDate(input.Date)
		if err != nil {
			return nil, err
		}
		slots = append(slots, models.MakeupProposalSlot{
			Date:            date,
			TimeSlot:        input.TimeSlot,
			ProposedTutorID: input.ProposedTutorID,
			Location:        input.Location,
			Status:          models.SlotStatusPending,
		})
	}

	if err := s.proposals.Create(ctx, proposal, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal")
	}

	s.publish(ctx, EventProposalCreated, session, proposal.ID, nil)
	s.logger.Info("make-up proposal created",
		zap.String("proposal_id", proposal.ID),
		zap.String("original_session_id", session.ID),
		zap.String("type", string(proposalType)),
		zap.Int("slots", len(slots)))

	return s.Get(ctx, proposal.ID)
}

// Get returns a proposal with its slots.
func (s *MakeupProposalService) Get(ctx context.Context, id string) (*models.MakeupProposalDetail, error) {
	detail, err := s.proposals.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	return detail, nil
}

// List returns proposals matching the filter.
func (s *MakeupProposalService) List(ctx context.Context, filter models.MakeupProposalFilter) ([]models.MakeupProposal, int, error) {
	proposals, total, err := s.proposals.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	return proposals, total, nil
}

// ApproveSlot books one candidate slot. The booking is re-validated at
// approval time against the current calendar and schedule, then
// resolved in one transaction: winning slot and proposal approved,
// sibling slots auto-rejected, make-up session created, original
// session moved to its booked variant. A concurrent resolution of the
// proposal surfaces as a resolved-conflict error.
func (s *MakeupProposalService) ApproveSlot(ctx context.Context, actor Actor, proposalID, slotID string) (*models.MakeupProposalDetail, error) {
	detail, err := s.Get(ctx, proposalID)
	if err != nil {
		s.observe("error")
		return nil, err
	}
	if detail.Status != models.ProposalStatusPending {
		s.observe(appErrors.ErrProposalResolved.Code)
		return nil, appErrors.ErrProposalResolved
	}

	slot := findSlot(detail, slotID)
	if slot == nil {
		s.observe("error")
		return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found on this proposal")
	}
	if slot.Status != models.SlotStatusPending {
		s.observe(appErrors.ErrSlotResolved.Code)
		return nil, appErrors.ErrSlotResolved
	}

	if err := s.authorizeResolution(actor, detail, slot.ProposedTutorID); err != nil {
		s.observe(appErrors.ErrForbidden.Code)
		return nil, err
	}

	original, err := s.sessions.FindByID(ctx, detail.OriginalSessionID)
	if err != nil {
		s.observe("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original session")
	}
	booked, ok := original.Status.BookedVariant()
	if !ok {
		s.observe(appErrors.ErrConflict.Code)
		return nil, appErrors.Clone(appErrors.ErrConflict, "original session is no longer awaiting a make-up")
	}

	if err := s.validator.Validate(ctx, BookingCheck{
		StudentID:          original.StudentID,
		ReplacingSessionID: original.ID,
		Date:               slot.Date,
		TimeSlot:           slot.TimeSlot,
		Location:           slot.Location,
		Privileged:         actor.Privileged(),
	}); err != nil {
		s.observe(appErrors.FromError(err).Code)
		return nil, err
	}

	makeup := &models.Session{
		StudentID:    original.StudentID,
		TutorID:      slot.ProposedTutorID,
		EnrollmentID: original.EnrollmentID,
		Date:         slot.Date,
		TimeSlot:     slot.TimeSlot,
		Location:     slot.Location,
		Status:       models.SessionStatusMakeupClass,
		MakeUpForID:  &original.ID,
	}

	err = s.proposals.ApproveSlot(ctx, repository.ApproveSlotParams{
		ProposalID:        proposalID,
		SlotID:            slotID,
		OriginalSessionID: original.ID,
		OriginalStatus:    original.Status,
		BookedStatus:      booked,
		MakeupSession:     makeup,
		ResolvedBy:        actor.ID,
	})
	if err == sql.ErrNoRows {
		s.observe(appErrors.ErrProposalResolved.Code)
		return nil, appErrors.ErrProposalResolved
	}
	if errors.Is(err, repository.ErrSlotOccupied) {
		s.observe(appErrors.ErrSlotTaken.Code)
		return nil, appErrors.Clone(appErrors.ErrSlotTaken, "slot was booked by a concurrent approval")
	}
	if err != nil {
		s.observe("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve slot")
	}

	s.observe("approved")
	s.markRescheduled(ctx, original.ID)
	s.publish(ctx, EventProposalSlotApproved, original, proposalID, map[string]interface{}{
		"slot_id":           slotID,
		"makeup_session_id": makeup.ID,
		"date":              slot.Date.Format(models.HolidayDateFormat),
	})
	s.logger.Info("make-up slot approved",
		zap.String("proposal_id", proposalID),
		zap.String("slot_id", slotID),
		zap.String("makeup_session_id", makeup.ID),
		zap.String("resolved_by", actor.ID))

	return s.Get(ctx, proposalID)
}

// RejectSlot rejects one candidate slot with a reason. When the last
// pending slot is rejected the proposal resolves as rejected.
func (s *MakeupProposalService) RejectSlot(ctx context.Context, actor Actor, proposalID, slotID, reason string) (*models.MakeupProposalDetail, error) {
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}

	detail, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.ProposalStatusPending {
		s.observe(appErrors.ErrProposalResolved.Code)
		return nil, appErrors.ErrProposalResolved
	}
	slot := findSlot(detail, slotID)
	if slot == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found on this proposal")
	}
	if slot.Status != models.SlotStatusPending {
		s.observe(appErrors.ErrSlotResolved.Code)
		return nil, appErrors.ErrSlotResolved
	}
	if err := s.authorizeResolution(actor, detail, slot.ProposedTutorID); err != nil {
		return nil, err
	}

	proposalRejected, err := s.proposals.RejectSlot(ctx, proposalID, slotID, reason, actor.ID)
	if err == sql.ErrNoRows {
		s.observe(appErrors.ErrSlotResolved.Code)
		return nil, appErrors.ErrSlotResolved
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject slot")
	}

	s.observe("slot_rejected")
	eventType := EventProposalSlotRejected
	if proposalRejected {
		s.observe("rejected")
		eventType = EventProposalRejected
	}
	s.publish(ctx, eventType, nil, proposalID, map[string]interface{}{
		"slot_id": slotID,
		"reason":  reason,
	})

	return s.Get(ctx, proposalID)
}

// Reject resolves a whole proposal as rejected. Slot proposals resolve
// through per-slot rejection; this path serves NEEDS_INPUT hand-offs.
func (s *MakeupProposalService) Reject(ctx context.Context, actor Actor, proposalID string) (*models.MakeupProposalDetail, error) {
	detail, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if detail.Type != models.ProposalTypeNeedsInput {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot proposals are resolved per slot")
	}
	target := ""
	if detail.NeedsInputTutorID != nil {
		target = *detail.NeedsInputTutorID
	}
	if err := s.authorizeResolution(actor, detail, target); err != nil {
		return nil, err
	}

	err = s.proposals.RejectProposal(ctx, proposalID)
	if err == sql.ErrNoRows {
		s.observe(appErrors.ErrProposalResolved.Code)
		return nil, appErrors.ErrProposalResolved
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject proposal")
	}

	s.observe("rejected")
	s.publish(ctx, EventProposalRejected, nil, proposalID, nil)
	return s.Get(ctx, proposalID)
}

// Cancel withdraws a pending proposal entirely. Only the proposer or a
// privileged actor may cancel; resolved proposals stay on record.
func (s *MakeupProposalService) Cancel(ctx context.Context, actor Actor, proposalID string) error {
	detail, err := s.Get(ctx, proposalID)
	if err != nil {
		return err
	}
	if detail.ProposedByTutorID != actor.ID && !actor.Privileged() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the proposer may cancel a proposal")
	}

	err = s.proposals.Delete(ctx, proposalID)
	if err == sql.ErrNoRows {
		return appErrors.ErrProposalResolved
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel proposal")
	}

	s.observe("cancelled")
	s.publish(ctx, EventProposalCancelled, nil, proposalID, nil)
	s.logger.Info("make-up proposal cancelled",
		zap.String("proposal_id", proposalID),
		zap.String("cancelled_by", actor.ID))
	return nil
}

// authorizeResolution allows the slot's target tutor, the proposer and
// privileged actors to resolve a slot.
func (s *MakeupProposalService) authorizeResolution(actor Actor, detail *models.MakeupProposalDetail, targetTutorID string) error {
	if actor.Privileged() || actor.ID == targetTutorID || actor.ID == detail.ProposedByTutorID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to resolve this slot")
}

// markRescheduled flags any approved extension request behind the
// session as consumed. Best effort: the booking stands either way.
func (s *MakeupProposalService) markRescheduled(ctx context.Context, sessionID string) {
	if s.extensions == nil {
		return
	}
	if err := s.extensions.MarkSessionRescheduled(ctx, sessionID); err != nil && err != sql.ErrNoRows {
		s.logger.Warn("failed to flag extension request as rescheduled",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

func (s *MakeupProposalService) publish(ctx context.Context, eventType string, session *models.Session, proposalID string, extra map[string]interface{}) {
	if s.events == nil {
		return
	}
	event := Event{Type: eventType, Payload: map[string]interface{}{"proposal_id": proposalID}}
	if session != nil {
		event.SessionID = session.ID
		event.StudentID = session.StudentID
		event.TutorID = session.TutorID
	}
	for k, v := range extra {
		event.Payload[k] = v
	}
	s.events.Publish(ctx, event)
}

func (s *MakeupProposalService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveProposalResolution(outcome)
	}
}

func findSlot(detail *models.MakeupProposalDetail, slotID string) *models.MakeupProposalSlot {
	for i := range detail.Slots {
		if detail.Slots[i].ID == slotID {
			return &detail.Slots[i]
		}
	}
	return nil
}
