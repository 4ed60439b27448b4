package domain

import "time"

// TimeWindow is an inclusive [From, To] interval.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// StoragePrecise narrows the window to instants representable at
// StoragePrecision. For stored timestamps the result contains exactly the
// same values as w, and repositories can compare against it without rounding.
func (w TimeWindow) StoragePrecise() TimeWindow {
	from := w.From.Truncate(StoragePrecision)
	if from.Before(w.From) {
		from = from.Add(StoragePrecision)
	}
	return TimeWindow{
		From: from,
		To:   w.To.Truncate(StoragePrecision),
	}
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DayWindow returns the full calendar day containing t.
func DayWindow(t time.Time) TimeWindow {
	return TimeWindow{From: StartOfDay(t), To: EndOfDay(t)}
}

// WeekWindow returns the Sunday-start 7-day window containing t.
func WeekWindow(t time.Time) TimeWindow {
	start := StartOfDay(t).AddDate(0, 0, -int(t.Weekday()))
	return TimeWindow{
		From: start,
		To:   EndOfDay(start.AddDate(0, 0, 6)),
	}
}
