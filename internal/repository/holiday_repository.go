package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
)

// HolidayRepository handles persistence of holiday dates.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs the repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// ListAll returns every holiday ordered by date.
func (r *HolidayRepository) ListAll(ctx context.Context) ([]models.Holiday, error) {
	const query = `SELECT id, date, name, created_at FROM holidays ORDER BY date`
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// ListRange returns holidays within [from, to] inclusive.
func (r *HolidayRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	const query = `SELECT id, date, name, created_at FROM holidays WHERE date >= $1 AND date <= $2 ORDER BY date`
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, from, to); err != nil {
		return nil, fmt.Errorf("list holidays in range: %w", err)
	}
	return holidays, nil
}

// Create persists a new holiday.
func (r *HolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO holidays (id, date, name, created_at) VALUES (:id, :date, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// Delete removes a holiday by id.
func (r *HolidayRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM holidays WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return nil
}
