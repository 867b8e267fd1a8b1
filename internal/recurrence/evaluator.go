// Package recurrence decides whether an event definition has an occurrence
// on a given calendar day or at a given minute.
package recurrence

import (
	"time"

	"github.com/lomoval/sked/internal/event"
)

// Context is either a DayWindow or a Moment.
type Context interface {
	isContext()
}

// DayWindow asks for an occurrence overlapping the calendar day Date,
// read in the fixed zone Offset minutes east of UTC.
type DayWindow struct {
	Date   time.Time
	Offset int
}

// Moment asks for an occurrence starting at the minute of Instant.
// With AdjustForLeadTime the occurrence is expected lead time of MemberID later.
type Moment struct {
	Instant           time.Time
	Offset            int
	AdjustForLeadTime bool
	MemberID          string
}

func (DayWindow) isContext() {}
func (Moment) isContext()    {}

// Bounds returns the window in UTC as [start, end).
func (w DayWindow) Bounds() (time.Time, time.Time) {
	y, m, d := w.Date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, Zone(w.Offset))
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

type Match struct {
	OK bool
	// At is the synthesized start of the occurrence in UTC.
	At time.Time
	// Anchor is set when the match is the original StartsAt occurrence.
	Anchor bool
}

// WeekStart is the first day of a week, both for weekly frequencies and week views.
const WeekStart = time.Monday

type Evaluator struct{}

func New() *Evaluator {
	return &Evaluator{}
}

// Matches is pure: the same inputs always give the same result.
func (e *Evaluator) Matches(def *event.Definition, ctx Context) Match {
	if def == nil || def.StartsAt.IsZero() {
		return Match{}
	}
	switch c := ctx.(type) {
	case DayWindow:
		return e.matchDay(def, c)
	case Moment:
		return e.matchMoment(def, c)
	default:
		return Match{}
	}
}

func (e *Evaluator) matchDay(def *event.Definition, w DayWindow) Match {
	windowStart, windowEnd := w.Bounds()

	if def.HasEnd() && def.EndsAt.Before(windowStart) {
		return Match{}
	}

	if overlaps(def.StartsAt, def.Duration(), windowStart, windowEnd) {
		return Match{OK: true, At: def.StartsAt.UTC(), Anchor: true}
	}

	if !def.Recurring() || def.StartsAt.After(windowStart) {
		return Match{}
	}

	loc := Zone(w.Offset)
	start := def.StartsAt.In(loc)
	y, m, d := w.Date.Date()
	date := civil{year: y, month: m, day: d}
	if !e.recursOn(def, civilOf(start), date) {
		return Match{}
	}

	at := time.Date(y, m, d, start.Hour(), start.Minute(), start.Second(), 0, loc).UTC()
	if def.HasEnd() && at.After(def.EndsAt) {
		return Match{}
	}
	return Match{OK: true, At: at}
}

func (e *Evaluator) matchMoment(def *event.Definition, mo Moment) Match {
	target := mo.Instant.Truncate(time.Minute)
	if mo.AdjustForLeadTime {
		target = target.Add(time.Duration(def.LeadTimeMinutes(mo.MemberID)) * time.Minute)
	}
	start := def.StartsAt.Truncate(time.Minute)

	if target.Equal(start) {
		return Match{OK: true, At: def.StartsAt.UTC(), Anchor: true}
	}
	if !def.Recurring() || target.Before(start) {
		return Match{}
	}
	if def.HasEnd() && target.After(def.EndsAt) {
		return Match{}
	}

	loc := Zone(mo.Offset)
	tl, sl := target.In(loc), start.In(loc)
	if tl.Hour() != sl.Hour() || tl.Minute() != sl.Minute() {
		return Match{}
	}
	if !e.recursOn(def, civilOf(sl), civilOf(tl)) {
		return Match{}
	}
	return Match{OK: true, At: target.UTC()}
}

// recursOn applies the interval rules to a date on or after the start date.
func (e *Evaluator) recursOn(def *event.Definition, start, date civil) bool {
	days := date.dayNumber() - start.dayNumber()
	if days < 0 {
		return false
	}
	f := def.EffectiveFrequency()

	switch def.Interval {
	case event.IntervalDaily:
		return days%int64(f) == 0

	case event.IntervalWeekly:
		if !def.Weekdays.Has(date.weekday()) {
			return false
		}
		weeks := (weekStart(date.dayNumber(), WeekStart) - weekStart(start.dayNumber(), WeekStart)) / 7
		return weeks%int64(f) == 0

	case event.IntervalMonthly:
		months := date.monthNumber() - start.monthNumber()
		if months < 0 || months%f != 0 {
			return false
		}
		if def.Weekdays.Empty() {
			return date.day == start.day
		}
		if !def.Weekdays.Has(date.weekday()) {
			return false
		}
		// The start shifted by whole months must land on the date itself.
		return start.addMonths(months) == date

	default:
		return false
	}
}

func overlaps(start time.Time, d time.Duration, windowStart, windowEnd time.Time) bool {
	if d == 0 {
		return !start.Before(windowStart) && start.Before(windowEnd)
	}
	return start.Before(windowEnd) && start.Add(d).After(windowStart)
}
