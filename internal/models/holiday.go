package models

import "time"

// Holiday is a single no-lesson date. Holidays are global; location
// scoping is handled upstream of this service.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HolidayDateFormat keys holiday sets by calendar day.
const HolidayDateFormat = "2006-01-02"

// HolidaySet is a point-in-time snapshot of holiday dates keyed by day.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from holiday rows.
func NewHolidaySet(holidays []Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.Date.Format(HolidayDateFormat)] = struct{}{}
	}
	return set
}

// Contains reports whether the date falls on a holiday.
func (s HolidaySet) Contains(date time.Time) bool {
	_, ok := s[date.Format(HolidayDateFormat)]
	return ok
}
