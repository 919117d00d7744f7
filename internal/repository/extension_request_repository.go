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

const extensionRequestColumns = `id, session_id, enrollment_id, target_enrollment_id, requested_weeks, granted_weeks, status, reason, requested_by, reviewed_by, requested_at, reviewed_at, note, session_rescheduled`

// ExtensionRequestRepository persists deadline extension requests.
type ExtensionRequestRepository struct {
	db *sqlx.DB
}

// NewExtensionRequestRepository constructs the repository.
func NewExtensionRequestRepository(db *sqlx.DB) *ExtensionRequestRepository {
	return &ExtensionRequestRepository{db: db}
}

// Create inserts a new extension request.
func (r *ExtensionRequestRepository) Create(ctx context.Context, request *models.ExtensionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.ExtensionRequestStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO extension_requests (id, session_id, enrollment_id, target_enrollment_id, requested_weeks, granted_weeks, status, reason, requested_by, reviewed_by, requested_at, reviewed_at, note, session_rescheduled)
	VALUES (:id, :session_id, :enrollment_id, :target_enrollment_id, :requested_weeks, :granted_weeks, :status, :reason, :requested_by, :reviewed_by, :requested_at, :reviewed_at, :note, :session_rescheduled)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create extension request: %w", err)
	}
	return nil
}

// FindByID returns an extension request by identifier.
func (r *ExtensionRequestRepository) FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM extension_requests WHERE id = $1", extensionRequestColumns)
	var request models.ExtensionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ExistsPendingForSession reports whether a pending request already
// exists for the session.
func (r *ExtensionRequestRepository) ExistsPendingForSession(ctx context.Context, sessionID string) (bool, error) {
	const query = `SELECT 1 FROM extension_requests WHERE session_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, sessionID, models.ExtensionRequestStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending extension request: %w", err)
	}
	return true, nil
}

// FindApprovedForSession returns the most recent approved request for
// a session, or sql.ErrNoRows.
func (r *ExtensionRequestRepository) FindApprovedForSession(ctx context.Context, sessionID string) (*models.ExtensionRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM extension_requests
	WHERE session_id = $1 AND status = $2 ORDER BY reviewed_at DESC LIMIT 1`, extensionRequestColumns)
	var request models.ExtensionRequest
	if err := r.db.GetContext(ctx, &request, query, sessionID, models.ExtensionRequestStatusApproved); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns extension requests matching the filter, newest first.
func (r *ExtensionRequestRepository) List(ctx context.Context, filter models.ExtensionRequestFilter) ([]models.ExtensionRequest, int, error) {
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("(enrollment_id = $%d OR target_enrollment_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.RequestedBy != "" {
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)+1))
		args = append(args, filter.RequestedBy)
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

	query := fmt.Sprintf("SELECT %s FROM extension_requests%s ORDER BY requested_at DESC LIMIT %d OFFSET %d",
		extensionRequestColumns, clause, size, offset)

	var requests []models.ExtensionRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list extension requests: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM extension_requests" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count extension requests: %w", err)
	}
	return requests, total, nil
}

// ResolveExtensionParams groups the columns written on review.
type ResolveExtensionParams struct {
	ID           string
	Status       models.ExtensionRequestStatus
	GrantedWeeks *int
	ReviewedBy   string
	ReviewedAt   time.Time
	Note         *string
}

// Resolve persists the review outcome with a status guard. Returns
// sql.ErrNoRows when the request is no longer pending, so a request is
// resolved exactly once.
func (r *ExtensionRequestRepository) Resolve(ctx context.Context, params ResolveExtensionParams) error {
	query := fmt.Sprintf(`UPDATE extension_requests
	SET status = :status, granted_weeks = :granted_weeks, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, note = :note
	WHERE id = :id AND status = '%s'`, models.ExtensionRequestStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            params.ID,
		"status":        params.Status,
		"granted_weeks": params.GrantedWeeks,
		"reviewed_by":   params.ReviewedBy,
		"reviewed_at":   params.ReviewedAt,
		"note":          params.Note,
	})
	if err != nil {
		return fmt.Errorf("resolve extension request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check extension request resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApproveAndApply resolves a pending request as approved and adds the
// granted weeks to the target enrollment in one transaction, so the
// deadline never moves without a matching approved request. Returns
// sql.ErrNoRows when the request is no longer pending.
func (r *ExtensionRequestRepository) ApproveAndApply(ctx context.Context, params ResolveExtensionParams, targetEnrollmentID string, weeks int, auditLine string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve extension request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`UPDATE extension_requests
	SET status = $1, granted_weeks = $2, reviewed_by = $3, reviewed_at = $4, note = $5
	WHERE id = $6 AND status = '%s'`, models.ExtensionRequestStatusPending)
	result, err := tx.ExecContext(ctx, query,
		models.ExtensionRequestStatusApproved, params.GrantedWeeks, params.ReviewedBy, params.ReviewedAt, params.Note, params.ID)
	if err != nil {
		return fmt.Errorf("approve extension request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check extension request approve rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	const enrollmentUpdate = `UPDATE enrollments
	SET deadline_extension_weeks = deadline_extension_weeks + $2,
	    extension_notes = CASE WHEN extension_notes = '' THEN $3 ELSE extension_notes || E'\n' || $3 END,
	    updated_at = $4
	WHERE id = $1`
	if _, err = tx.ExecContext(ctx, enrollmentUpdate, targetEnrollmentID, weeks, auditLine, params.ReviewedAt); err != nil {
		return fmt.Errorf("apply extension to enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approve extension request: %w", err)
	}
	return nil
}

// MarkSessionRescheduled flags the approved request behind a session
// once its extension was actually used to book a make-up.
// Informational only. Returns sql.ErrNoRows when the session carries
// no approved request.
func (r *ExtensionRequestRepository) MarkSessionRescheduled(ctx context.Context, sessionID string) error {
	const query = `UPDATE extension_requests SET session_rescheduled = TRUE WHERE session_id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, sessionID, models.ExtensionRequestStatusApproved)
	if err != nil {
		return fmt.Errorf("mark extension request rescheduled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check extension request flag rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
