package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "tutor_id", "enrollment_id", "date", "time_slot", "location",
		"status", "rescheduled_to_id", "make_up_for_id", "created_at", "updated_at",
	})
}

func TestSessionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sessionRows().
		AddRow("sess-1", "stu-1", "tut-1", nil, now, "16:00", "MSA",
			models.SessionStatusScheduled, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, tutor_id, enrollment_id, date, time_slot, location, status, rescheduled_to_id, make_up_for_id, created_at, updated_at FROM sessions WHERE id = $1")).
		WithArgs("sess-1").
		WillReturnRows(rows)

	session, err := repo.FindByID(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", session.ID)
	require.Equal(t, models.SessionStatusScheduled, session.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindActiveAtSlotOccupied(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	date := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	rows := sessionRows().
		AddRow("busy", "stu-1", "tut-1", nil, date, "16:00", "MSA",
			models.SessionStatusScheduled, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND date = $2 AND time_slot = $3 AND location = $4 AND status IN ($5,$6,$7,$8) LIMIT 1")).
		WithArgs("stu-1", date, "16:00", "MSA",
			models.SessionStatusScheduled, models.SessionStatusMakeupClass,
			models.SessionStatusAttended, models.SessionStatusAttendedMakeup).
		WillReturnRows(rows)

	session, err := repo.FindActiveAtSlot(context.Background(), "stu-1", date, "16:00", "MSA", "")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "busy", session.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindActiveAtSlotFree(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	date := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $9 LIMIT 1")).
		WithArgs("stu-1", date, "16:00", "MSA",
			models.SessionStatusScheduled, models.SessionStatusMakeupClass,
			models.SessionStatusAttended, models.SessionStatusAttendedMakeup, "orig").
		WillReturnError(sql.ErrNoRows)

	session, err := repo.FindActiveAtSlot(context.Background(), "stu-1", date, "16:00", "MSA", "orig")
	require.NoError(t, err)
	require.Nil(t, session, "a free slot is nil session, nil error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status IN ($4)")).
		WithArgs(models.SessionStatusAttended, sqlmock.AnyArg(), "sess-1", models.SessionStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionStatus(context.Background(), "sess-1",
		[]models.SessionStatus{models.SessionStatusScheduled}, models.SessionStatusAttended)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryTransitionStatusGuardMiss(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status IN ($4)")).
		WithArgs(models.SessionStatusAttended, sqlmock.AnyArg(), "sess-1", models.SessionStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionStatus(context.Background(), "sess-1",
		[]models.SessionStatus{models.SessionStatusScheduled}, models.SessionStatusAttended)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &models.Session{
		StudentID: "stu-1",
		TutorID:   "tut-1",
		Date:      time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		TimeSlot:  "16:00",
		Location:  "MSA",
	}
	err := repo.Create(context.Background(), session)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID, "an id is generated when absent")
	require.Equal(t, models.SessionStatusScheduled, session.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreateSlotOccupied(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_sessions_active_slot"})

	session := &models.Session{
		StudentID: "stu-1",
		TutorID:   "tut-1",
		Date:      time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		TimeSlot:  "16:00",
		Location:  "MSA",
	}
	err := repo.Create(context.Background(), session)
	require.ErrorIs(t, err, ErrSlotOccupied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBulkCreateTransaction(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sessions := []models.Session{
		{StudentID: "stu-1", TutorID: "tut-1", Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), TimeSlot: "16:00", Location: "MSA"},
		{StudentID: "stu-1", TutorID: "tut-1", Date: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), TimeSlot: "16:00", Location: "MSA"},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), sessions))
	require.NoError(t, mock.ExpectationsWereMet())
}
