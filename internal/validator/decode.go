package validator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/form"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Input is untrusted event data as submitted by a client.
// Numbers are accepted both as JSON numbers and as strings.
type Input struct {
	ID           string                  `json:"id"`
	Label        string                  `json:"label"`
	Description  string                  `json:"description"`
	StartsAt     string                  `json:"starts_at"`
	Duration     json.Number             `json:"duration"`
	EndsAt       string                  `json:"ends_at"`
	Interval     string                  `json:"interval"`
	Frequency    json.Number             `json:"frequency"`
	Weekdays     []string                `json:"weekdays"`
	Tags         map[string]string       `json:"tags"`
	Members      map[string]event.Member `json:"members"`
	MemberID     string                  `json:"member_id"`
	LeadTimeNum  json.Number             `json:"lead_time_num"`
	LeadTimeUnit string                  `json:"lead_time_unit"`
}

// ParseTime accepts RFC 3339 and "YYYY-MM-DD HH:MM" forms; zone-less values are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use YYYY-MM-DD HH:MM", s)
}

// Decode converts input into a definition and a lead time. Values that cannot be
// parsed are reported per field and left zero in the result.
func Decode(in Input, defs form.Table) (*event.Definition, LeadTimeInput, Errors) {
	errs := make(Errors)
	def := &event.Definition{
		ID:          strings.TrimSpace(in.ID),
		Label:       strings.TrimSpace(in.Label),
		Description: in.Description,
		Interval:    event.Interval(strings.ToLower(strings.TrimSpace(in.Interval))),
		Tags:        in.Tags,
		Members:     in.Members,
	}

	if !def.Interval.Valid() {
		def.Interval = intervalByLabel(defs, def.Interval)
	}

	if in.StartsAt != "" {
		t, err := ParseTime(in.StartsAt)
		if err != nil {
			errs.Add(form.FieldStartsAt, err.Error())
		}
		def.StartsAt = t
	}
	if in.EndsAt != "" {
		t, err := ParseTime(in.EndsAt)
		if err != nil {
			errs.Add(form.FieldEndsAt, err.Error())
		}
		def.EndsAt = t
	}

	var err error
	if def.DurationMinutes, err = number(in.Duration); err != nil {
		errs.Add(form.FieldDuration, err.Error())
	}
	if def.Frequency, err = number(in.Frequency); err != nil {
		errs.Add(form.FieldFrequency, err.Error())
	}
	if def.Weekdays, err = event.ParseWeekdays(in.Weekdays); err != nil {
		errs.Add(form.FieldWeekdays, err.Error())
	}

	lead := LeadTimeInput{
		MemberID: strings.TrimSpace(in.MemberID),
		Unit:     event.LeadTimeUnit(strings.ToLower(strings.TrimSpace(in.LeadTimeUnit))),
	}
	if lead.Num, err = number(in.LeadTimeNum); err != nil {
		errs.Add(form.FieldLeadTimeNum, err.Error())
	}
	return def, lead, errs
}

// Encode renders a stored definition back into input form for the given member.
func Encode(def *event.Definition, memberID string) Input {
	in := Input{
		ID:          def.ID,
		Label:       def.Label,
		Description: def.Description,
		StartsAt:    def.StartsAt.UTC().Format(time.RFC3339),
		Interval:    string(def.Interval),
		Weekdays:    def.Weekdays.Labels(),
		Tags:        def.Tags,
		Members:     def.Members,
		MemberID:    memberID,
	}
	if def.DurationMinutes > 0 {
		in.Duration = json.Number(strconv.Itoa(def.DurationMinutes))
	}
	if def.HasEnd() {
		in.EndsAt = def.EndsAt.UTC().Format(time.RFC3339)
	}
	if def.Frequency > 0 {
		in.Frequency = json.Number(strconv.Itoa(def.Frequency))
	}
	if n, unit := def.LeadTime(memberID); unit != "" {
		in.LeadTimeNum = json.Number(strconv.Itoa(n))
		in.LeadTimeUnit = string(unit)
	}
	return in
}

// intervalByLabel maps option labels such as "week" to interval values.
func intervalByLabel(defs form.Table, i event.Interval) event.Interval {
	f, ok := defs.Field(form.FieldInterval)
	if !ok {
		return i
	}
	for _, o := range f.Options {
		if strings.EqualFold(o.Label, string(i)) {
			return event.Interval(o.Value)
		}
	}
	return i
}

func number(n json.Number) (int, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return v, nil
}
