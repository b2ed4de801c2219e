package compliance

import "time"

// Calendar answers business-day questions. Monday through Friday are business
// days unless listed as holidays; the holiday list comes from configuration.
type Calendar struct {
	holidays map[string]bool // keyed by "2006-01-02"
}

// NewCalendar creates a calendar with the given holiday dates (YYYY-MM-DD).
func NewCalendar(holidays []string) *Calendar {
	m := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		m[h] = true
	}
	return &Calendar{holidays: m}
}

// IsBusinessDay reports whether t falls on a business day.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[t.Format("2006-01-02")]
}

// Deadline computes the instant by which an action due within the given
// number of business days must complete. The count starts the calendar day
// after the triggering event; the deadline is the midnight ending the Nth
// business day, and the deadline instant itself passes.
//
// Example: event Friday 17:00, 3 business days -> Mon, Tue, Wed count;
// deadline is Thursday 00:00. Wednesday 23:59:59 passes, Thursday 00:00:01
// fails.
func (c *Calendar) Deadline(event time.Time, businessDays int) time.Time {
	day := time.Date(event.Year(), event.Month(), event.Day(), 0, 0, 0, 0, event.Location())

	counted := 0
	for counted < businessDays {
		day = day.AddDate(0, 0, 1)
		if c.IsBusinessDay(day) {
			counted++
		}
	}

	return day.AddDate(0, 0, 1)
}

// MetDeadline reports whether an action at the given instant met the deadline
// computed from the triggering event.
func (c *Calendar) MetDeadline(event, action time.Time, businessDays int) bool {
	return !action.After(c.Deadline(event, businessDays))
}
