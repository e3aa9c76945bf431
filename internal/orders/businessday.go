package orders

import "time"

// businessDayCutoff is the local hour at which one business day rolls into
// the next. An order placed at 2 AM still belongs to the previous calendar
// day's service.
const businessDayCutoff = 4

// BusinessDay returns the [start, end) window of the business day containing
// now: 04:00 local time until 04:00 of the following day.
func BusinessDay(now time.Time) (start, end time.Time) {
	loc := now.Location()
	y, m, d := now.Date()
	start = time.Date(y, m, d, businessDayCutoff, 0, 0, 0, loc)
	if now.Hour() < businessDayCutoff {
		start = start.AddDate(0, 0, -1)
	}
	end = start.AddDate(0, 0, 1)
	return start, end
}

// InBusinessDay reports whether t falls inside the business day containing now.
func InBusinessDay(t, now time.Time) bool {
	start, end := BusinessDay(now)
	return !t.Before(start) && t.Before(end)
}
