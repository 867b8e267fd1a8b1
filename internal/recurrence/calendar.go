package recurrence

import "time"

// civil is a timezone-naive calendar date.
type civil struct {
	year  int
	month time.Month
	day   int
}

func civilOf(t time.Time) civil {
	y, m, d := t.Date()
	return civil{year: y, month: m, day: d}
}

// dayNumber returns days since 1970-01-01 in the proleptic Gregorian calendar.
// Integer arithmetic only, so DST and zone rules never leak in.
func (c civil) dayNumber() int64 {
	y := int64(c.year)
	m := int64(c.month)
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + int64(c.day) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func (c civil) weekday() time.Weekday {
	// 1970-01-01 was a Thursday.
	return time.Weekday(floorMod(c.dayNumber()+4, 7))
}

func (c civil) monthNumber() int {
	return c.year*12 + int(c.month) - 1
}

// addMonths moves c by k calendar months. Days past the end of the target
// month overflow into the next one, as time.AddDate does.
func (c civil) addMonths(k int) civil {
	return civilOf(time.Date(c.year, c.month+time.Month(k), c.day, 0, 0, 0, 0, time.UTC))
}

// WholeDaysBetween returns the number of calendar days from b to a,
// comparing the dates as they read in each value's own location.
func WholeDaysBetween(a, b time.Time) int {
	return int(civilOf(a).dayNumber() - civilOf(b).dayNumber())
}

// MonthsBetween returns the calendar month difference from b to a, ignoring days.
func MonthsBetween(a, b time.Time) int {
	return civilOf(a).monthNumber() - civilOf(b).monthNumber()
}

// weekStart returns the day number of the first day of the week containing day.
func weekStart(day int64, first time.Weekday) int64 {
	wd := floorMod(day+4, 7)
	return day - floorMod(wd-int64(first), 7)
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Zone returns the fixed zone for an offset in minutes east of UTC.
func Zone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	return time.FixedZone("", offsetMinutes*60)
}
