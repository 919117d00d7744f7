package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
)

const proposalColumns = `id, original_session_id, proposed_by_tutor_id, type, needs_input_tutor_id, status, created_at, resolved_at`
const proposalSlotColumns = `id, proposal_id, date, time_slot, proposed_tutor_id, location, status, reject_reason, resolved_by, resolved_at`

// MakeupProposalRepository persists proposals with their candidate
// slots and owns the transactional boundaries of slot resolution.
type MakeupProposalRepository struct {
	db *sqlx.DB
}

// NewMakeupProposalRepository constructs the repository.
func NewMakeupProposalRepository(db *sqlx.DB) *MakeupProposalRepository {
	return &MakeupProposalRepository{db: db}
}

// Create inserts a proposal and its slots in one transaction.
func (r *MakeupProposalRepository) Create(ctx context.Context, proposal *models.MakeupProposal, slots []models.MakeupProposalSlot) (err error) {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	if proposal.Status == "" {
		proposal.Status = models.ProposalStatusPending
	}
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create proposal: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const proposalInsert = `INSERT INTO makeup_proposals (id, original_session_id, proposed_by_tutor_id, type, needs_input_tutor_id, status, created_at, resolved_at)
	VALUES (:id, :original_session_id, :proposed_by_tutor_id, :type, :needs_input_tutor_id, :status, :created_at, :resolved_at)`
	if _, err = tx.NamedExecContext(ctx, proposalInsert, proposal); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}

	const slotInsert = `INSERT INTO makeup_proposal_slots (id, proposal_id, date, time_slot, proposed_tutor_id, location, status, reject_reason, resolved_by, resolved_at)
	VALUES (:id, :proposal_id, :date, :time_slot, :proposed_tutor_id, :location, :status, :reject_reason, :resolved_by, :resolved_at)`
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		slots[i].ProposalID = proposal.ID
		if slots[i].Status == "" {
			slots[i].Status = models.SlotStatusPending
		}
		if _, err = tx.NamedExecContext(ctx, slotInsert, &slots[i]); err != nil {
			return fmt.Errorf("create proposal slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create proposal: %w", err)
	}
	return nil
}

// FindDetailByID returns a proposal with its slots.
func (r *MakeupProposalRepository) FindDetailByID(ctx context.Context, id string) (*models.MakeupProposalDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM makeup_proposals WHERE id = $1", proposalColumns)
	var proposal models.MakeupProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}

	slotQuery := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE proposal_id = $1 ORDER BY date, time_slot", proposalSlotColumns)
	var slots []models.MakeupProposalSlot
	if err := r.db.SelectContext(ctx, &slots, slotQuery, id); err != nil {
		return nil, fmt.Errorf("load proposal slots: %w", err)
	}
	return &models.MakeupProposalDetail{MakeupProposal: proposal, Slots: slots}, nil
}

// FindSlotByID returns one candidate slot.
func (r *MakeupProposalRepository) FindSlotByID(ctx context.Context, slotID string) (*models.MakeupProposalSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM makeup_proposal_slots WHERE id = $1", proposalSlotColumns)
	var slot models.MakeupProposalSlot
	if err := r.db.GetContext(ctx, &slot, query, slotID); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ExistsPendingForSession reports whether a pending proposal already
// exists for the original session.
func (r *MakeupProposalRepository) ExistsPendingForSession(ctx context.Context, sessionID string) (bool, error) {
	const query = `SELECT 1 FROM makeup_proposals WHERE original_session_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, sessionID, models.ProposalStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending proposal: %w", err)
	}
	return true, nil
}

// List returns proposals matching the filter, newest first.
func (r *MakeupProposalRepository) List(ctx context.Context, filter models.MakeupProposalFilter) ([]models.MakeupProposal, int, error) {
	var conditions []string
	var args []interface{}

	if filter.OriginalSessionID != "" {
		conditions = append(conditions, fmt.Sprintf("original_session_id = $%d", len(args)+1))
		args = append(args, filter.OriginalSessionID)
	}
	if filter.ProposedBy != "" {
		conditions = append(conditions, fmt.Sprintf("proposed_by_tutor_id = $%d", len(args)+1))
		args = append(args, filter.ProposedBy)
	}
	if filter.TargetTutorID != "" {
		conditions = append(conditions, fmt.Sprintf(`(needs_input_tutor_id = $%d OR id IN (
			SELECT proposal_id FROM makeup_proposal_slots WHERE proposed_tutor_id = $%d))`, len(args)+1, len(args)+1))
		args = append(args, filter.TargetTutorID)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM makeup_proposals%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		proposalColumns, clause, size, offset)

	var proposals []models.MakeupProposal
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM makeup_proposals" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count proposals: %w", err)
	}
	return proposals, total, nil
}

// ApproveSlotParams carries everything the approval transaction writes.
type ApproveSlotParams struct {
	ProposalID        string
	SlotID            string
	OriginalSessionID string
	OriginalStatus    models.SessionStatus
	BookedStatus      models.SessionStatus
	MakeupSession     *models.Session
	ResolvedBy        string
}

// ApproveSlot resolves the whole approval as one transaction: the
// proposal and the winning slot flip from PENDING under a status
// guard, sibling pending slots are auto-rejected, the make-up session
// is created, and the original session moves to its booked variant
// with forward linkage. Any guard miss rolls everything back and
// surfaces sql.ErrNoRows, so a concurrent approval of another slot of
// the same proposal loses cleanly instead of double-booking. A make-up
// insert that collides with another active session on the same slot
// surfaces ErrSlotOccupied.
func (r *MakeupProposalRepository) ApproveSlot(ctx context.Context, params ApproveSlotParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve slot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	if err = guardedExec(ctx, tx,
		`UPDATE makeup_proposals SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
		models.ProposalStatusApproved, now, params.ProposalID, models.ProposalStatusPending); err != nil {
		return err
	}

	if err = guardedExec(ctx, tx,
		`UPDATE makeup_proposal_slots SET status = $1, resolved_by = $2, resolved_at = $3 WHERE id = $4 AND status = $5`,
		models.SlotStatusApproved, params.ResolvedBy, now, params.SlotID, models.SlotStatusPending); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE makeup_proposal_slots SET status = $1, reject_reason = $2, resolved_by = $3, resolved_at = $4 WHERE proposal_id = $5 AND status = $6`,
		models.SlotStatusRejected, models.SiblingRejectedReason, params.ResolvedBy, now, params.ProposalID, models.SlotStatusPending); err != nil {
		return fmt.Errorf("auto-reject sibling slots: %w", err)
	}

	makeup := params.MakeupSession
	prepareSessionRow(makeup)
	const sessionInsert = `INSERT INTO sessions (id, student_id, tutor_id, enrollment_id, date, time_slot, location, status, rescheduled_to_id, make_up_for_id, created_at, updated_at)
	VALUES (:id, :student_id, :tutor_id, :enrollment_id, :date, :time_slot, :location, :status, :rescheduled_to_id, :make_up_for_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, sessionInsert, makeup); err != nil {
		if isUniqueViolation(err) {
			err = ErrSlotOccupied
			return err
		}
		return fmt.Errorf("create make-up session: %w", err)
	}

	if err = guardedExec(ctx, tx,
		`UPDATE sessions SET status = $1, rescheduled_to_id = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		params.BookedStatus, makeup.ID, now, params.OriginalSessionID, params.OriginalStatus); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approve slot: %w", err)
	}
	return nil
}

// RejectSlot marks one slot rejected under a status guard and, when no
// pending slots remain, resolves the proposal as rejected in the same
// transaction.
func (r *MakeupProposalRepository) RejectSlot(ctx context.Context, proposalID, slotID, reason, resolvedBy string) (proposalRejected bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reject slot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	if err = guardedExec(ctx, tx,
		`UPDATE makeup_proposal_slots SET status = $1, reject_reason = $2, resolved_by = $3, resolved_at = $4 WHERE id = $5 AND status = $6`,
		models.SlotStatusRejected, reason, resolvedBy, now, slotID, models.SlotStatusPending); err != nil {
		return false, err
	}

	var remaining int
	if err = tx.GetContext(ctx, &remaining,
		`SELECT COUNT(*) FROM makeup_proposal_slots WHERE proposal_id = $1 AND status = $2`,
		proposalID, models.SlotStatusPending); err != nil {
		return false, fmt.Errorf("count pending slots: %w", err)
	}

	if remaining == 0 {
		if err = guardedExec(ctx, tx,
			`UPDATE makeup_proposals SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
			models.ProposalStatusRejected, now, proposalID, models.ProposalStatusPending); err != nil {
			return false, err
		}
		proposalRejected = true
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reject slot: %w", err)
	}
	return proposalRejected, nil
}

// RejectProposal resolves an entire proposal as rejected under a
// status guard; used for NEEDS_INPUT hand-offs which carry no slots.
func (r *MakeupProposalRepository) RejectProposal(ctx context.Context, proposalID string) error {
	const query = `UPDATE makeup_proposals SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.ProposalStatusRejected, time.Now().UTC(), proposalID, models.ProposalStatusPending)
	if err != nil {
		return fmt.Errorf("reject proposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reject proposal rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a pending proposal and its slots entirely. This is
// the one destructive operation in the protocol; nothing downstream
// references a cancelled proposal. Returns sql.ErrNoRows when the
// proposal is not pending anymore.
func (r *MakeupProposalRepository) Delete(ctx context.Context, proposalID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete proposal: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM makeup_proposal_slots WHERE proposal_id = $1`, proposalID); err != nil {
		return fmt.Errorf("delete proposal slots: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM makeup_proposals WHERE id = $1 AND status = $2`, proposalID, models.ProposalStatusPending)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete proposal rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete proposal: %w", err)
	}
	return nil
}

// guardedExec runs a status-guarded update inside tx and converts a
// zero affected-row count into sql.ErrNoRows.
func guardedExec(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("guarded update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check guarded update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
