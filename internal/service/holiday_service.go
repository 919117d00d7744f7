package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

const holidayCacheKey = "holidays:all"

type holidayRepository interface {
	ListAll(ctx context.Context) ([]models.Holiday, error)
	ListRange(ctx context.Context, from, to time.Time) ([]models.Holiday, error)
	Create(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id string) error
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// HolidayService is the injected holiday calendar. The backing store
// is owned outside this core; holidays are read-only during scheduling
// decisions and cached in Redis. Refresh bypasses the cache so that
// user-visible deadline computations never run on a stale set.
type HolidayService struct {
	repo      holidayRepository
	cache     cacheStore
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHolidayService constructs the service.
func NewHolidayService(repo holidayRepository, cache cacheStore, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *HolidayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &HolidayService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Refresh reloads the holiday set from the store and repopulates the
// cache. Callers computing a user-visible deadline must use this
// rather than Snapshot.
func (s *HolidayService) Refresh(ctx context.Context) (models.HolidaySet, error) {
	holidays, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}

	dates := make([]string, 0, len(holidays))
	set := make(models.HolidaySet, len(holidays))
	for _, h := range holidays {
		key := h.Date.Format(models.HolidayDateFormat)
		dates = append(dates, key)
		set[key] = struct{}{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, holidayCacheKey, dates, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache holiday set", zap.Error(err))
		}
	}
	return set, nil
}

// Snapshot returns the cached holiday set, falling back to Refresh on
// a miss. Suitable for non-authoritative reads only.
func (s *HolidayService) Snapshot(ctx context.Context) (models.HolidaySet, error) {
	if s.cache != nil {
		var dates []string
		err := s.cache.Get(ctx, holidayCacheKey, &dates)
		if err == nil {
			set := make(models.HolidaySet, len(dates))
			for _, d := range dates {
				set[d] = struct{}{}
			}
			return set, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("holiday cache read failed", zap.Error(err))
		}
	}
	return s.Refresh(ctx)
}

// List returns all holidays ordered by date.
func (s *HolidayService) List(ctx context.Context) ([]models.Holiday, error) {
	holidays, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// CreateHolidayRequest describes the create payload.
type CreateHolidayRequest struct {
	Date time.Time `json:"date" validate:"required"`
	Name string    `json:"name" validate:"required"`
}

// Create registers a holiday and invalidates the cached set.
func (s *HolidayService) Create(ctx context.Context, req CreateHolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	holiday := &models.Holiday{Date: req.Date, Name: req.Name}
	if err := s.repo.Create(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.invalidate(ctx)
	return holiday, nil
}

// Delete removes a holiday and invalidates the cached set.
func (s *HolidayService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	s.invalidate(ctx)
	return nil
}

func (s *HolidayService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, holidayCacheKey); err != nil {
		s.logger.Warn("failed to invalidate holiday cache", zap.Error(err))
	}
}
