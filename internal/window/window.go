// Package window computes the calendar-day aggregation windows used by the
// ledger. A window is a half-open [Start, End) pair of absolute UTC instants
// whose boundaries fall on local midnight in a configured location, so a day
// spanning a daylight-saving transition lasts 23 or 25 hours.
package window

import "time"

// Window is a half-open interval of absolute instants.
type Window struct {
	Start time.Time
	End   time.Time

	// loc is the location whose midnights bound the window.
	loc *time.Location
}

// Day returns the local calendar day at offset days from the day containing
// now (0 = today, -1 = yesterday) in loc. A nil loc means UTC.
func Day(now time.Time, offset int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	start := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+offset+1, 0, 0, 0, 0, loc)
	return Window{Start: start.UTC(), End: end.UTC(), loc: loc}
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration is the absolute length of the window.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Date returns local midnight of the window's calendar day, in the location
// the window was built for.
func (w Window) Date() time.Time {
	loc := w.loc
	if loc == nil {
		loc = time.UTC
	}
	return w.Start.In(loc)
}
