// Package week converts calendar dates to ISO-8601 week identifiers ("2024-W01")
// and back to the Monday-Sunday span they address.
//
// All arithmetic happens on UTC calendar days, so the same instant always maps to
// the same identifier regardless of the host time zone.
package week

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"meal-planner/internal/apperr"
)

// ID is an ISO-8601 week identifier of the form YYYY-Www.
type ID string

// Range is the inclusive Monday..Sunday span of a week, at midnight UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls on one of the range's calendar days.
func (r Range) Contains(t time.Time) bool {
	d := midnightUTC(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

var idPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Of returns the week identifier for the calendar date of t.
func Of(t time.Time) ID {
	year, w := midnightUTC(t).ISOWeek()
	return ID(fmt.Sprintf("%04d-W%02d", year, w))
}

// Next returns the identifier of the week after the one containing from.
func Next(from time.Time) ID {
	return Of(from.AddDate(0, 0, 7))
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	id := ID(s)
	if _, _, err := id.parts(); err != nil {
		return "", err
	}
	return id, nil
}

// Range returns the Monday..Sunday span addressed by id.
// Week 1 is anchored on January 4th, which always belongs to it.
func (id ID) Range() (Range, error) {
	year, w, err := id.parts()
	if err != nil {
		return Range{}, err
	}

	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	start := jan4.AddDate(0, 0, -(isoWeekday(jan4)-1)+(w-1)*7)

	// Week 53 only exists in long ISO years.
	if Of(start) != id {
		return Range{}, fmt.Errorf("week %s does not exist: %w", id, apperr.ErrInvalidInput)
	}

	return Range{Start: start, End: start.AddDate(0, 0, 6)}, nil
}

func (id ID) String() string { return string(id) }

func (id ID) parts() (int, int, error) {
	m := idPattern.FindStringSubmatch(string(id))
	if m == nil {
		return 0, 0, fmt.Errorf("week id %q: expected YYYY-Www: %w", string(id), apperr.ErrInvalidInput)
	}
	year, _ := strconv.Atoi(m[1])
	w, _ := strconv.Atoi(m[2])
	if w < 1 || w > 53 {
		return 0, 0, fmt.Errorf("week id %q: week out of range: %w", string(id), apperr.ErrInvalidInput)
	}
	return year, w, nil
}

// isoWeekday returns 1 for Monday through 7 for Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
