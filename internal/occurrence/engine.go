// Package occurrence resolves candidate event definitions into sorted occurrences
// for a calendar day or for a single minute.
package occurrence

import (
	"sort"
	"time"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/recurrence"
)

type Occurrence struct {
	Event  event.Definition `json:"event"`
	At     time.Time        `json:"at"`
	Anchor bool             `json:"anchor"`
	// Offset is the UTC offset in minutes the occurrence was resolved for.
	Offset int `json:"offset"`
}

func (o Occurrence) Ends() time.Time {
	return o.At.Add(o.Event.Duration())
}

// Local returns the start time in the zone the occurrence was resolved for.
func (o Occurrence) Local() time.Time {
	return o.At.In(recurrence.Zone(o.Offset))
}

// Format renders the start time, "3:04pm" by default.
func (o Occurrence) Format(layout string) string {
	if layout == "" {
		layout = "3:04pm"
	}
	return o.Local().Format(layout)
}

type Reminder struct {
	EventID         string    `json:"eventId"`
	Label           string    `json:"label"`
	MemberID        string    `json:"memberId"`
	OccursAt        time.Time `json:"occursAt"`
	LeadTimeMinutes int       `json:"leadTime"`
}

type Engine struct {
	evaluator *recurrence.Evaluator
}

func NewEngine() *Engine {
	return &Engine{evaluator: recurrence.New()}
}

// QueryDay returns occurrences overlapping the calendar day of date,
// read offsetMinutes east of UTC.
func (e *Engine) QueryDay(candidates []event.Definition, date time.Time, offsetMinutes int) []Occurrence {
	return e.query(candidates, recurrence.DayWindow{Date: date, Offset: offsetMinutes}, offsetMinutes)
}

// QueryMoment returns occurrences starting at the minute of instant, or starting
// the member's lead time later when adjustForLeadTime is set.
func (e *Engine) QueryMoment(
	candidates []event.Definition,
	instant time.Time,
	offsetMinutes int,
	adjustForLeadTime bool,
	memberID string,
) []Occurrence {
	ctx := recurrence.Moment{
		Instant:           instant,
		Offset:            offsetMinutes,
		AdjustForLeadTime: adjustForLeadTime,
		MemberID:          memberID,
	}
	return e.query(candidates, ctx, offsetMinutes)
}

// DueReminders returns a reminder for every member whose lead time ends at instant.
func (e *Engine) DueReminders(candidates []event.Definition, instant time.Time, offsetMinutes int) []Reminder {
	reminders := make([]Reminder, 0)
	for i := range candidates {
		def := &candidates[i]
		for _, memberID := range def.MemberIDs() {
			m := e.evaluator.Matches(def, recurrence.Moment{
				Instant:           instant,
				Offset:            offsetMinutes,
				AdjustForLeadTime: true,
				MemberID:          memberID,
			})
			if !m.OK {
				continue
			}
			reminders = append(reminders, Reminder{
				EventID:         def.ID,
				Label:           def.Label,
				MemberID:        memberID,
				OccursAt:        m.At,
				LeadTimeMinutes: def.LeadTimeMinutes(memberID),
			})
		}
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].OccursAt.Before(reminders[j].OccursAt)
	})
	return reminders
}

func (e *Engine) query(candidates []event.Definition, ctx recurrence.Context, offset int) []Occurrence {
	seen := make(map[string]struct{}, len(candidates))
	result := make([]Occurrence, 0)
	for i := range candidates {
		def := &candidates[i]
		if def.ID != "" {
			if _, ok := seen[def.ID]; ok {
				continue
			}
		}
		m := e.evaluator.Matches(def, ctx)
		if !m.OK {
			continue
		}
		if def.ID != "" {
			seen[def.ID] = struct{}{}
		}
		result = append(result, Occurrence{Event: *def, At: m.At, Anchor: m.Anchor, Offset: offset})
	}
	Sort(result)
	return result
}

// Sort orders occurrences by start, then by the original event start.
// Equal keys keep their input order.
func Sort(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		return a.Event.StartsAt.Before(b.Event.StartsAt)
	})
}
