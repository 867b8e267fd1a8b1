package event

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrMissingStart     = errors.New("event start time is not provided")
	ErrNegativeDuration = errors.New("event duration must not be negative")
)

type Interval string

const (
	IntervalOnce    Interval = "once"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Valid reports whether the interval is one of the known values.
// An empty interval is treated as once.
func (i Interval) Valid() bool {
	switch i {
	case "", IntervalOnce, IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

func (i Interval) Recurring() bool {
	return i == IntervalDaily || i == IntervalWeekly || i == IntervalMonthly
}

type Member struct {
	Owner           bool `json:"owner"`
	LeadTimeMinutes int  `json:"leadTime"`
}

// Definition is a one-off or recurring calendar event.
// A zero EndsAt means the event recurs without a horizon,
// a zero Frequency means it was not set.
type Definition struct {
	ID              string            `json:"id"`
	Label           string            `json:"label"`
	Description     string            `json:"description"`
	StartsAt        time.Time         `json:"startsAt"`
	DurationMinutes int               `json:"duration"`
	EndsAt          time.Time         `json:"endsAt"`
	Interval        Interval          `json:"interval"`
	Frequency       int               `json:"frequency"`
	Weekdays        Weekdays          `json:"weekdays"`
	Tags            map[string]string `json:"tags,omitempty"`
	Members         map[string]Member `json:"members,omitempty"`
}

func New(label string, startsAt time.Time, durationMinutes int) (*Definition, error) {
	if startsAt.IsZero() {
		return nil, ErrMissingStart
	}
	if durationMinutes < 0 {
		return nil, fmt.Errorf("duration %d: %w", durationMinutes, ErrNegativeDuration)
	}
	return &Definition{
		Label:           label,
		StartsAt:        startsAt.UTC(),
		DurationMinutes: durationMinutes,
		Interval:        IntervalOnce,
	}, nil
}

func (d *Definition) Duration() time.Duration {
	if d.DurationMinutes <= 0 {
		return 0
	}
	return time.Duration(d.DurationMinutes) * time.Minute
}

func (d *Definition) Recurring() bool {
	return d.Interval.Recurring()
}

func (d *Definition) HasEnd() bool {
	return !d.EndsAt.IsZero()
}

// EffectiveFrequency is the recurrence step, at least 1.
func (d *Definition) EffectiveFrequency() int {
	if d.Frequency < 1 {
		return 1
	}
	return d.Frequency
}

// OwnerID returns the first owner in member ID order, or empty string for public events.
func (d *Definition) OwnerID() string {
	ids := d.MemberIDs()
	for _, id := range ids {
		if d.Members[id].Owner {
			return id
		}
	}
	return ""
}

// Public events have no owner.
func (d *Definition) Public() bool {
	return d.OwnerID() == ""
}

func (d *Definition) MemberIDs() []string {
	ids := make([]string, 0, len(d.Members))
	for id := range d.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Definition) LeadTimeMinutes(memberID string) int {
	m, ok := d.Members[memberID]
	if !ok || m.LeadTimeMinutes < 0 {
		return 0
	}
	return m.LeadTimeMinutes
}

// LeadTime returns the display pair for the member lead time.
func (d *Definition) LeadTime(memberID string) (int, LeadTimeUnit) {
	return SplitLeadTime(d.LeadTimeMinutes(memberID))
}

// Clone returns a copy that shares no maps with d.
func (d *Definition) Clone() Definition {
	c := *d
	if d.Tags != nil {
		c.Tags = make(map[string]string, len(d.Tags))
		for k, v := range d.Tags {
			c.Tags[k] = v
		}
	}
	if d.Members != nil {
		c.Members = make(map[string]Member, len(d.Members))
		for k, v := range d.Members {
			c.Members[k] = v
		}
	}
	return c
}

type Tag struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// String renders the tag as its value.
func (t Tag) String() string {
	return t.Value
}

// SortedTags returns tags ordered by ID.
func (d *Definition) SortedTags() []Tag {
	tags := make([]Tag, 0, len(d.Tags))
	for id, v := range d.Tags {
		tags = append(tags, Tag{ID: id, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags
}
