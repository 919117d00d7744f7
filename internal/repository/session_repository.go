package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
)

const sessionColumns = `id, student_id, tutor_id, enrollment_id, date, time_slot, location, status, rescheduled_to_id, make_up_for_id, created_at, updated_at`

// ErrSlotOccupied reports a session insert rejected by the
// uq_sessions_active_slot index: the student already holds an active
// session at the same (date, time slot, location). The index backstops
// the availability check, which runs outside the writing transaction.
var ErrSlotOccupied = errors.New("slot occupied by an active session")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// SessionRepository handles persistence of session records.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions filtered by the provided criteria.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s FROM sessions%s ORDER BY date %s, time_slot %s LIMIT %d OFFSET %d",
		sessionColumns, clause, order, order, size, offset)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM sessions" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// activeStatusPlaceholders appends the active statuses to args and
// returns their SQL placeholder list. Only these statuses occupy a
// slot for conflict purposes.
func activeStatusPlaceholders(args *[]interface{}) string {
	active := []models.SessionStatus{
		models.SessionStatusScheduled,
		models.SessionStatusMakeupClass,
		models.SessionStatusAttended,
		models.SessionStatusAttendedMakeup,
	}
	placeholders := make([]string, len(active))
	for i, status := range active {
		*args = append(*args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return strings.Join(placeholders, ",")
}

// FindActiveAtSlot returns the student's active session occupying the
// given (date, time slot, location) tuple, excluding excludeID. A nil
// session with nil error means the slot is free.
func (r *SessionRepository) FindActiveAtSlot(ctx context.Context, studentID string, date time.Time, timeSlot, location, excludeID string) (*models.Session, error) {
	args := []interface{}{studentID, date, timeSlot, location}
	query := fmt.Sprintf(`SELECT %s FROM sessions
	WHERE student_id = $1 AND date = $2 AND time_slot = $3 AND location = $4`, sessionColumns)
	query += fmt.Sprintf(" AND status IN (%s)", activeStatusPlaceholders(&args))
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += " LIMIT 1"

	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active session at slot: %w", err)
	}
	return &session, nil
}

// Create persists a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	prepareSessionRow(session)
	const query = `INSERT INTO sessions (id, student_id, tutor_id, enrollment_id, date, time_slot, location, status, rescheduled_to_id, make_up_for_id, created_at, updated_at)
	VALUES (:id, :student_id, :tutor_id, :enrollment_id, :date, :time_slot, :location, :status, :rescheduled_to_id, :make_up_for_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotOccupied
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// BulkCreate inserts sessions atomically; used when activating an
// enrollment generates its recurring schedule.
func (r *SessionRepository) BulkCreate(ctx context.Context, sessions []models.Session) (err error) {
	if len(sessions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create sessions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO sessions (id, student_id, tutor_id, enrollment_id, date, time_slot, location, status, rescheduled_to_id, make_up_for_id, created_at, updated_at)
	VALUES (:id, :student_id, :tutor_id, :enrollment_id, :date, :time_slot, :location, :status, :rescheduled_to_id, :make_up_for_id, :created_at, :updated_at)`
	for i := range sessions {
		prepareSessionRow(&sessions[i])
		if _, err = tx.NamedExecContext(ctx, query, &sessions[i]); err != nil {
			if isUniqueViolation(err) {
				err = ErrSlotOccupied
				return err
			}
			return fmt.Errorf("bulk create session: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create sessions: %w", err)
	}
	return nil
}

// TransitionStatus performs a status-guarded update: the row only
// changes when its current status is one of from. Returns
// sql.ErrNoRows when the guard does not match, so concurrent
// transitions on the same session cannot double-apply.
func (r *SessionRepository) TransitionStatus(ctx context.Context, id string, from []models.SessionStatus, to models.SessionStatus) error {
	args := []interface{}{to, time.Now().UTC(), id}
	placeholders := make([]string, len(from))
	for i, status := range from {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf("UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status IN (%s)",
		strings.Join(placeholders, ","))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition session status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check session transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prepareSessionRow(session *models.Session) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
}
