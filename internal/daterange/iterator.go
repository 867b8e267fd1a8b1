package daterange

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/occurrence"
	"github.com/lomoval/sked/internal/storage"
)

// MaxDates bounds every iteration, ten years of days.
const MaxDates = 365 * 10

const dateLayout = "2006-01-02"

var (
	ErrIncorrectDate = errors.New("invalid date, use format YYYY-MM-DD")
	ErrNoCurrentDate = errors.New("iterator is not positioned on a date")

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseDate parses a YYYY-MM-DD string into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrIncorrectDate)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrIncorrectDate)
	}
	return t, nil
}

// CandidateFetcher returns candidate events already filtered by expiration and visibility.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context, filter storage.Filter) ([]event.Definition, error)
}

// Iterator walks calendar dates from start to end inclusive.
// It is not safe for concurrent use.
type Iterator struct {
	start   time.Time
	end     time.Time
	bounded bool

	index   int
	current time.Time
}

// New creates an iterator; a nil end means unbounded up to MaxDates.
func New(start time.Time, end *time.Time) *Iterator {
	it := &Iterator{start: truncate(start)}
	if end != nil {
		it.end = truncate(*end)
		it.bounded = true
	}
	it.Rewind()
	return it
}

// Month iterates over every day of the calendar month.
func Month(year int, month time.Month) *Iterator {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return New(start, &end)
}

// Week iterates over the seven days of the week containing date.
func Week(date time.Time, firstDay time.Weekday) *Iterator {
	d := truncate(date)
	shift := (int(d.Weekday()) - int(firstDay) + 7) % 7
	start := d.AddDate(0, 0, -shift)
	end := start.AddDate(0, 0, 6)
	return New(start, &end)
}

// Rewind positions the iterator before the first date.
func (it *Iterator) Rewind() {
	it.index = -1
	it.current = time.Time{}
}

// Next advances to the next date and reports whether there is one.
func (it *Iterator) Next() bool {
	next := it.index + 1
	if next >= MaxDates {
		return false
	}
	d := it.start.AddDate(0, 0, next)
	if it.bounded && d.After(it.end) {
		return false
	}
	it.index = next
	it.current = d
	return true
}

func (it *Iterator) Date() time.Time {
	return it.current
}

// Index is the zero-based position of the current date.
func (it *Iterator) Index() int {
	return it.index
}

func (it *Iterator) String() string {
	return it.current.Format(dateLayout)
}

// Dates drains a copy of the iterator.
func (it *Iterator) Dates() []time.Time {
	c := *it
	c.Rewind()
	dates := make([]time.Time, 0)
	for c.Next() {
		dates = append(dates, c.Date())
	}
	return dates
}

// Occurrences resolves the current date through the fetcher and engine.
// The filter's NotExpiredAsOf is set to the start of the day window.
func (it *Iterator) Occurrences(
	ctx context.Context,
	fetcher CandidateFetcher,
	engine *occurrence.Engine,
	filter storage.Filter,
	offsetMinutes int,
) ([]occurrence.Occurrence, error) {
	if it.index < 0 {
		return nil, ErrNoCurrentDate
	}
	y, m, d := it.current.Date()
	filter.NotExpiredAsOf = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).
		Add(-time.Duration(offsetMinutes) * time.Minute)

	candidates, err := fetcher.FetchCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates for %s: %w", it, err)
	}
	return engine.QueryDay(candidates, it.current, offsetMinutes), nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
