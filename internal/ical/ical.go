// Package ical renders event definitions as an iCalendar feed. Recurring
// definitions become one VEVENT with an RRULE instead of expanded occurrences.
package ical

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/lomoval/sked/internal/event"
	"github.com/teambition/rrule-go"
)

const ProductID = "-//lomoval//sked//EN"

var ErrNotRecurring = errors.New("event does not recur")

var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

type Options struct {
	// MemberID adds a display alarm for the member lead time.
	MemberID string
	// Stamp is written as DTSTAMP, the current time when zero.
	Stamp time.Time
}

// Rule builds the recurrence rule of a recurring definition. A weekly
// definition without weekdays never recurs and gets no rule.
func Rule(def *event.Definition) (*rrule.RRule, error) {
	if !def.Recurring() || (def.Interval == event.IntervalWeekly && def.Weekdays.Empty()) {
		return nil, ErrNotRecurring
	}
	opt := rrule.ROption{
		Dtstart:  def.StartsAt.UTC(),
		Interval: def.EffectiveFrequency(),
		Wkst:     rrule.MO,
	}
	if def.HasEnd() {
		opt.Until = def.EndsAt.UTC()
	}

	switch def.Interval {
	case event.IntervalDaily:
		opt.Freq = rrule.DAILY
	case event.IntervalWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range def.Weekdays.Days() {
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	case event.IntervalMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{def.StartsAt.UTC().Day()}
		for _, d := range def.Weekdays.Days() {
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule for event %q: %w", def.ID, err)
	}
	return r, nil
}

// Feed builds a calendar with one VEVENT per definition.
func Feed(defs []event.Definition, opts Options) (*ics.Calendar, error) {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)

	for i := range defs {
		def := &defs[i]
		if def.StartsAt.IsZero() {
			continue
		}
		ev := cal.AddEvent(uid(def, i))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(def.StartsAt.UTC())
		ev.SetEndAt(def.StartsAt.Add(def.Duration()).UTC())
		ev.SetSummary(def.Label)
		if def.Description != "" {
			ev.SetDescription(def.Description)
		}
		if tags := def.SortedTags(); len(tags) > 0 {
			values := make([]string, 0, len(tags))
			for _, t := range tags {
				values = append(values, t.String())
			}
			ev.AddProperty(ics.ComponentPropertyCategories, strings.Join(values, ","))
		}

		r, err := Rule(def)
		switch {
		case errors.Is(err, ErrNotRecurring):
		case err != nil:
			return nil, err
		default:
			ev.AddProperty(ics.ComponentPropertyRrule, r.OrigOptions.RRuleString())
		}

		if opts.MemberID != "" {
			if lead := def.LeadTimeMinutes(opts.MemberID); lead > 0 {
				alarm := ev.AddAlarm()
				alarm.SetAction(ics.ActionDisplay)
				alarm.SetTrigger(fmt.Sprintf("-PT%dM", lead))
			}
		}
	}
	return cal, nil
}

// Write serializes the feed of defs to w.
func Write(w io.Writer, defs []event.Definition, opts Options) error {
	cal, err := Feed(defs, opts)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}

func uid(def *event.Definition, i int) string {
	if def.ID != "" {
		return def.ID + "@sked"
	}
	return fmt.Sprintf("unsaved-%d@sked", i)
}
