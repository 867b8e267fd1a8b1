package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownWeekday = errors.New("unknown weekday")

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Weekdays holds one flag per day of week, indexed by time.Weekday.
type Weekdays [7]bool

func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w.Set(d)
	}
	return w
}

// ParseWeekdays accepts labels like "Mon" or "monday" in any case.
func ParseWeekdays(labels []string) (Weekdays, error) {
	var w Weekdays
	for _, l := range labels {
		d, err := ParseWeekday(l)
		if err != nil {
			return Weekdays{}, err
		}
		w.Set(d)
	}
	return w, nil
}

func ParseWeekday(label string) (time.Weekday, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	for i, short := range weekdayLabels {
		if l == strings.ToLower(short) || l == strings.ToLower(time.Weekday(i).String()) {
			return time.Weekday(i), nil
		}
	}
	return time.Sunday, fmt.Errorf("%q: %w", label, ErrUnknownWeekday)
}

func WeekdayLabel(d time.Weekday) string {
	return weekdayLabels[d%7]
}

func (w *Weekdays) Set(d time.Weekday) {
	w[d%7] = true
}

func (w Weekdays) Has(d time.Weekday) bool {
	return w[d%7]
}

func (w Weekdays) Empty() bool {
	return w == Weekdays{}
}

func (w Weekdays) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for i, on := range w {
		if on {
			days = append(days, time.Weekday(i))
		}
	}
	return days
}

func (w Weekdays) Labels() []string {
	labels := make([]string, 0, 7)
	for _, d := range w.Days() {
		labels = append(labels, weekdayLabels[d])
	}
	return labels
}

func (w Weekdays) String() string {
	return strings.Join(w.Labels(), ",")
}

func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Labels())
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	parsed, err := ParseWeekdays(labels)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

type LeadTimeUnit string

const (
	LeadTimeMinute LeadTimeUnit = "minute"
	LeadTimeHour   LeadTimeUnit = "hour"
	LeadTimeDay    LeadTimeUnit = "day"
)

func (u LeadTimeUnit) Minutes() (int, bool) {
	switch u {
	case LeadTimeMinute:
		return 1, true
	case LeadTimeHour:
		return 60, true
	case LeadTimeDay:
		return 24 * 60, true
	}
	return 0, false
}

// SplitLeadTime picks the largest unit that divides minutes exactly.
func SplitLeadTime(minutes int) (int, LeadTimeUnit) {
	switch {
	case minutes <= 0:
		return 0, ""
	case minutes%(24*60) == 0:
		return minutes / (24 * 60), LeadTimeDay
	case minutes%60 == 0:
		return minutes / 60, LeadTimeHour
	default:
		return minutes, LeadTimeMinute
	}
}
