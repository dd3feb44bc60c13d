package week

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-planner/internal/apperr"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want ID
	}{
		{"monday starting the year", date(2024, time.January, 1), "2024-W01"},
		{"sunday belongs to previous iso year", date(2023, time.January, 1), "2022-W52"},
		{"december in week 1 of next year", date(2024, time.December, 30), "2025-W01"},
		{"long year week 53", date(2020, time.December, 31), "2020-W53"},
		{"january in week 53", date(2021, time.January, 3), "2020-W53"},
		{"late evening is not shifted", time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC), "2024-W10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Of(tt.in))
		})
	}
}

func TestOf_UsesUTCCalendarDay(t *testing.T) {
	t.Parallel()

	// 2024-01-01 01:00 in UTC+2 is still 2023-12-31 in UTC.
	loc := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, ID("2023-W52"), Of(time.Date(2024, time.January, 1, 1, 0, 0, 0, loc)))
}

func TestRange(t *testing.T) {
	t.Parallel()

	r, err := ID("2024-W01").Range()
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 1), r.Start)
	assert.Equal(t, date(2024, time.January, 7), r.End)

	// Week 1 of 2025 starts in December 2024.
	r, err = ID("2025-W01").Range()
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.December, 30), r.Start)
	assert.Equal(t, date(2025, time.January, 5), r.End)
}

func TestRange_Invalid(t *testing.T) {
	t.Parallel()

	for _, id := range []ID{"2024-1", "2024-W00", "2024-W54", "24-W01", "", "2023-W53"} {
		_, err := id.Range()
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "%q: %v", id, err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	d := date(2015, time.December, 1)
	end := date(2030, time.February, 1)
	for ; d.Before(end); d = d.AddDate(0, 0, 1) {
		id := Of(d)
		r, err := id.Range()
		require.NoError(t, err, "date %s id %s", d.Format(time.DateOnly), id)

		assert.Equal(t, time.Monday, r.Start.Weekday(), "start of %s", id)
		assert.Equal(t, 6*24*time.Hour, r.End.Sub(r.Start), "length of %s", id)
		if !r.Contains(d) {
			t.Fatalf("range of %s (%s..%s) does not contain %s", id, r.Start, r.End, d)
		}
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	monday := date(2024, time.January, 8)
	sunday := date(2024, time.January, 14)
	require.Equal(t, ID("2024-W02"), Of(monday))
	require.Equal(t, ID("2024-W02"), Of(sunday))

	assert.Equal(t, ID("2024-W03"), Next(monday))
	assert.Equal(t, ID("2024-W03"), Next(sunday))

	for d := date(2019, time.January, 1); d.Year() < 2027; d = d.AddDate(0, 0, 1) {
		if Next(d) != Of(d.AddDate(0, 0, 7)) {
			t.Fatalf("Next(%s) = %s, want %s", d, Next(d), Of(d.AddDate(0, 0, 7)))
		}
	}

	// Across the year boundary.
	assert.Equal(t, ID("2025-W01"), Next(date(2024, time.December, 23)))
}

func TestParse(t *testing.T) {
	t.Parallel()

	id, err := Parse("2024-W09")
	require.NoError(t, err)
	assert.Equal(t, ID("2024-W09"), id)

	_, err = Parse("2024-w09")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
