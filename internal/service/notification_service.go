package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/pkg/jobs"
)

// Event types emitted by the scheduling workflows.
const (
	EventSessionAttendanceMarked = "session.attendance_marked"
	EventSessionMissed           = "session.missed"
	EventSessionCancelled        = "session.cancelled"
	EventProposalCreated         = "proposal.created"
	EventProposalSlotApproved    = "proposal.slot_approved"
	EventProposalSlotRejected    = "proposal.slot_rejected"
	EventProposalRejected        = "proposal.rejected"
	EventProposalCancelled       = "proposal.cancelled"
	EventExtensionRequested      = "extension.requested"
	EventExtensionApproved       = "extension.approved"
	EventExtensionRejected       = "extension.rejected"
)

// Event is a notification about a workflow state change. Delivery is
// best effort: the emitting write has already committed by the time an
// event is published.
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	StudentID string                 `json:"student_id,omitempty"`
	TutorID   string                 `json:"tutor_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

type eventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// NotificationService fans workflow events out to recipients through a
// background queue so request latency never waits on delivery.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the dispatcher and its queue. Start
// must be called before events are published.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start begins background delivery.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish enqueues an event for delivery. Failures are logged, never
// returned: a lost notification must not fail the workflow that
// produced it.
func (s *NotificationService) Publish(ctx context.Context, event Event) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    event.Type,
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		s.logger.Error("notification job carried an unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	// Delivery target is the application log until an outbound channel
	// (email, chat webhook) is configured.
	s.logger.Info("notification delivered",
		zap.String("event_type", event.Type),
		zap.String("session_id", event.SessionID),
		zap.String("student_id", event.StudentID),
		zap.String("tutor_id", event.TutorID),
		zap.Any("payload", event.Payload))
	return nil
}
