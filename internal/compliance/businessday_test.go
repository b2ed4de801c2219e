package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 2026-01-09 is a Friday; 2026-01-05 is a Monday.
func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestCalendar_IsBusinessDay(t *testing.T) {
	cal := NewCalendar([]string{"2026-01-01"})

	assert.True(t, cal.IsBusinessDay(date(2026, time.January, 5, 12, 0, 0)), "Monday")
	assert.True(t, cal.IsBusinessDay(date(2026, time.January, 9, 12, 0, 0)), "Friday")
	assert.False(t, cal.IsBusinessDay(date(2026, time.January, 10, 12, 0, 0)), "Saturday")
	assert.False(t, cal.IsBusinessDay(date(2026, time.January, 11, 12, 0, 0)), "Sunday")
	assert.False(t, cal.IsBusinessDay(date(2026, time.January, 1, 12, 0, 0)), "holiday")
}

func TestCalendar_Deadline(t *testing.T) {
	tests := []struct {
		name     string
		holidays []string
		event    time.Time
		days     int
		want     time.Time
	}{
		{
			name:  "Friday event counts Mon Tue Wed, due end of Wednesday",
			event: date(2026, time.January, 9, 17, 0, 0),
			days:  3,
			want:  date(2026, time.January, 15, 0, 0, 0),
		},
		{
			name:  "midweek event",
			event: date(2026, time.January, 5, 9, 0, 0),
			days:  3,
			want:  date(2026, time.January, 9, 0, 0, 0),
		},
		{
			name:  "weekend event starts counting Monday",
			event: date(2026, time.January, 10, 8, 0, 0),
			days:  3,
			want:  date(2026, time.January, 15, 0, 0, 0),
		},
		{
			name:     "holiday pushes the deadline out a day",
			holidays: []string{"2026-01-12"},
			event:    date(2026, time.January, 9, 17, 0, 0),
			days:     3,
			want:     date(2026, time.January, 16, 0, 0, 0),
		},
		{
			name:  "one business day",
			event: date(2026, time.January, 5, 9, 0, 0),
			days:  1,
			want:  date(2026, time.January, 7, 0, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := NewCalendar(tt.holidays)
			got := cal.Deadline(tt.event, tt.days)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCalendar_MetDeadline(t *testing.T) {
	cal := NewCalendar(nil)
	event := date(2026, time.January, 9, 17, 0, 0) // Friday

	// Deadline is Thursday 2026-01-15 00:00.
	assert.True(t, cal.MetDeadline(event, date(2026, time.January, 14, 23, 59, 59), 3),
		"end of the third business day passes")
	assert.True(t, cal.MetDeadline(event, date(2026, time.January, 15, 0, 0, 0), 3),
		"the deadline instant itself passes")
	assert.False(t, cal.MetDeadline(event, date(2026, time.January, 15, 0, 0, 1), 3),
		"one second past the deadline fails")
}
