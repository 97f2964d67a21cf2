package model

import "time"

// Window is the [Start, Start+7 days) range of the displayed week.
type Window struct {
	Start time.Time
}

// WeekOf returns the window of the Monday-first week containing t, anchored at
// local midnight in t's location.
func WeekOf(t time.Time) Window {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	back := int(DayOf(t.Weekday()))
	return Window{Start: midnight.AddDate(0, 0, -back)}
}

// End is the exclusive end of the window.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, 0, DaysPerWeek)
}

// Location is the display location the window is expressed in.
func (w Window) Location() *time.Location {
	return w.Start.Location()
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End())
}

// DayStart returns local midnight of the given day column.
func (w Window) DayStart(d Day) time.Time {
	return w.Start.AddDate(0, 0, int(d))
}

// Locate returns the day column and time-of-day of t inside the window.
// ok is false when t lies outside it.
func (w Window) Locate(t time.Time) (Day, TimeOfDay, bool) {
	if !w.Contains(t) {
		return 0, 0, false
	}
	local := t.In(w.Location())
	for d := Sunday; d >= Monday; d-- {
		if !local.Before(w.DayStart(d)) {
			return d, ClockOf(local), true
		}
	}
	return 0, 0, false
}
