package service

import (
	"time"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   string
	Role models.UserRole
}

// Privileged reports whether the actor may use admin overrides.
func (a Actor) Privileged() bool {
	return a.Role.IsPrivileged()
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(models.HolidayDateFormat, value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}
