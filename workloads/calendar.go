// Package workloads holds the calendar and locale benchmarks run by calbench.
package workloads

import (
	"iter"
	"time"
)

// Calendar is a Gregorian calendar bound to a location and a first weekday.
//
// Calendar is a value. The With methods return modified copies and never change
// the receiver.
type Calendar struct {
	loc          *time.Location
	firstWeekday time.Weekday
	// autoupdating calendars resolve time.Local on every use.
	autoupdating bool
}

// Gregorian returns a fixed Gregorian calendar in UTC with weeks starting on Sunday.
func Gregorian() Calendar {
	return Calendar{loc: time.UTC}
}

// CurrentCalendar returns a Gregorian calendar bound to the local time zone as it
// is now.
func CurrentCalendar() Calendar {
	return Calendar{loc: time.Local}
}

// AutoupdatingCurrentCalendar returns a calendar that follows time.Local, looking
// it up each time the calendar is used.
func AutoupdatingCurrentCalendar() Calendar {
	return Calendar{autoupdating: true}
}

// Location returns the time zone dates are computed in.
func (c Calendar) Location() *time.Location {
	if c.autoupdating || c.loc == nil {
		return time.Local
	}
	return c.loc
}

// FirstWeekday returns the weekday weeks start on.
func (c Calendar) FirstWeekday() time.Weekday {
	return c.firstWeekday
}

// WithFirstWeekday returns a copy of c whose weeks start on w.
func (c Calendar) WithFirstWeekday(w time.Weekday) Calendar {
	c.firstWeekday = w
	return c
}

// WithLocation returns a copy of c bound to loc.
func (c Calendar) WithLocation(loc *time.Location) Calendar {
	c.loc = loc
	c.autoupdating = false
	return c
}

// AddDays returns t moved by n calendar days in the calendar's location. The wall
// clock time is kept across daylight saving transitions.
func (c Calendar) AddDays(t time.Time, n int) time.Time {
	return t.In(c.Location()).AddDate(0, 0, n)
}

// DateComponents is the broken-down form of an instant.
type DateComponents struct {
	Era               int
	Year              int
	Month             time.Month
	Day               int
	Hour              int
	Minute            int
	Second            int
	Nanosecond        int
	Weekday           time.Weekday
	WeekdayOrdinal    int
	Quarter           int
	WeekOfMonth       int
	WeekOfYear        int
	YearForWeekOfYear int
	Location          *time.Location
}

// Components breaks t down in the calendar's location.
func (c Calendar) Components(t time.Time) DateComponents {
	loc := c.Location()
	t = t.In(loc)

	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	isoYear, isoWeek := t.ISOWeek()

	era := 1
	if year <= 0 {
		era = 0
	}

	return DateComponents{
		Era:               era,
		Year:              year,
		Month:             month,
		Day:               day,
		Hour:              hour,
		Minute:            minute,
		Second:            second,
		Nanosecond:        t.Nanosecond(),
		Weekday:           t.Weekday(),
		WeekdayOrdinal:    (day-1)/7 + 1,
		Quarter:           (int(month)-1)/3 + 1,
		WeekOfMonth:       c.weekOfMonth(t),
		WeekOfYear:        isoWeek,
		YearForWeekOfYear: isoYear,
		Location:          loc,
	}
}

// weekOfMonth counts weeks from the one holding the first day of the month.
func (c Calendar) weekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	offset := (int(first.Weekday()) - int(c.firstWeekday) + 7) % 7
	return (t.Day()-1+offset)/7 + 1
}

// NthWeekday matches the Nth occurrence of a weekday in a month, such as the
// fourth Thursday of November.
type NthWeekday struct {
	Month   time.Month
	Weekday time.Weekday
	N       int
}

// Thanksgiving is the fourth Thursday of November.
var Thanksgiving = NthWeekday{Month: time.November, Weekday: time.Thursday, N: 4}

// in returns midnight of the matching day of year, or false if the month has no
// such day.
func (m NthWeekday) in(year int, loc *time.Location) (time.Time, bool) {
	if m.N < 1 {
		return time.Time{}, false
	}
	first := time.Date(year, m.Month, 1, 0, 0, 0, 0, loc)
	offset := (int(m.Weekday) - int(first.Weekday()) + 7) % 7
	d := first.AddDate(0, 0, offset+7*(m.N-1))
	if d.Month() != m.Month {
		return time.Time{}, false
	}
	return d, true
}

// Dates returns the instants strictly after start matching m, in increasing order.
// The sequence is unbounded; stop ranging over it to end the enumeration.
func (c Calendar) Dates(start time.Time, m NthWeekday) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		loc := c.Location()
		if m.N < 1 || m.N > 5 || m.Month < time.January || m.Month > time.December {
			return
		}
		for year := start.In(loc).Year(); ; year++ {
			d, ok := m.in(year, loc)
			if !ok || !d.After(start) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}
