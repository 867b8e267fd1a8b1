package validator

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/form"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func validEvent() *event.Definition {
	return &event.Definition{
		Label:           "standup",
		StartsAt:        start,
		DurationMinutes: 30,
		Interval:        event.IntervalWeekly,
		Frequency:       2,
		Weekdays:        event.WeekdaysOf(time.Monday),
		EndsAt:          start.AddDate(0, 6, 0),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(e *event.Definition, l *LeadTimeInput)
		fields []string
	}{
		{name: "valid", modify: func(*event.Definition, *LeadTimeInput) {}},
		{
			name:   "missing label and start",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Label = " "; e.StartsAt = time.Time{} },
			fields: []string{"label", "starts_at"},
		},
		{
			name:   "label too long",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Label = strings.Repeat("ы", 256) },
			fields: []string{"label"},
		},
		{
			name:   "end without frequency",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Frequency = 0 },
			fields: []string{"frequency"},
		},
		{
			name: "end on one-off event",
			modify: func(e *event.Definition, _ *LeadTimeInput) {
				e.Interval = event.IntervalOnce
				e.Frequency = 0
				e.Weekdays = event.Weekdays{}
			},
			fields: []string{"ends_at", "frequency", "interval"},
		},
		{
			name: "frequency without interval",
			modify: func(e *event.Definition, _ *LeadTimeInput) {
				e.Interval = ""
				e.EndsAt = time.Time{}
				e.Weekdays = event.Weekdays{}
			},
			fields: []string{"frequency"},
		},
		{
			name:   "once with weekdays",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Interval = event.IntervalOnce; e.Frequency = 0; e.EndsAt = time.Time{} },
			fields: []string{"weekdays"},
		},
		{
			name:   "daily with weekdays",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Interval = event.IntervalDaily },
			fields: []string{"weekdays"},
		},
		{
			name:   "unknown interval",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Interval = "yearly" },
			fields: []string{"interval"},
		},
		{
			name:   "end before start",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.EndsAt = start.Add(-time.Hour) },
			fields: []string{"ends_at"},
		},
		{
			name:   "duration not in options",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.DurationMinutes = 20 },
			fields: []string{"duration"},
		},
		{
			name:   "negative duration",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.DurationMinutes = -15 },
			fields: []string{"duration"},
		},
		{
			name:   "frequency out of range",
			modify: func(e *event.Definition, _ *LeadTimeInput) { e.Frequency = 32 },
			fields: []string{"frequency"},
		},
		{
			name:   "lead time num without unit",
			modify: func(_ *event.Definition, l *LeadTimeInput) { l.Num = 10; l.Unit = "" },
			fields: []string{"lead_time_unit"},
		},
		{
			name:   "lead time unit without num",
			modify: func(_ *event.Definition, l *LeadTimeInput) { l.Num = 0 },
			fields: []string{"lead_time_num"},
		},
		{
			name:   "unknown lead time unit",
			modify: func(_ *event.Definition, l *LeadTimeInput) { l.Unit = "week" },
			fields: []string{"lead_time_unit"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			lead := LeadTimeInput{MemberID: "m", Num: 2, Unit: event.LeadTimeHour}
			tt.modify(e, &lead)
			before := e.Clone()

			res := Validate(e, lead, form.Default())

			fields := make([]string, 0, len(res.Errors))
			for f := range res.Errors {
				fields = append(fields, f)
			}
			require.ElementsMatch(t, tt.fields, fields, res.Errors)
			require.Equal(t, len(tt.fields) == 0, res.Valid)
			if !res.Valid {
				require.Equal(t, before, *e, "event is not changed on failure")
				require.Error(t, res.Err())
			} else {
				require.NoError(t, res.Err())
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	res := Validate(nil, LeadTimeInput{}, form.Default())
	require.False(t, res.Valid)
	require.Contains(t, res.Errors, "label")
	require.Contains(t, res.Errors, "starts_at")
}

func TestValidateAdjustsLeadTime(t *testing.T) {
	e := validEvent()
	e.Interval = ""
	e.Frequency = 0
	e.EndsAt = time.Time{}
	e.Weekdays = event.Weekdays{}
	e.Members = map[string]event.Member{"owner": {Owner: true}}

	res := Validate(e, LeadTimeInput{MemberID: "owner", Num: 1, Unit: event.LeadTimeDay}, form.Default())
	require.True(t, res.Valid, res.Errors)
	require.Equal(t, event.IntervalOnce, e.Interval)
	require.Equal(t, event.Member{Owner: true, LeadTimeMinutes: 1440}, e.Members["owner"])

	res = Validate(e, LeadTimeInput{MemberID: "owner"}, form.Default())
	require.True(t, res.Valid)
	require.Equal(t, 0, e.Members["owner"].LeadTimeMinutes, "lead time is recomputed from input")

	res = Validate(e, LeadTimeInput{MemberID: "guest", Num: 15, Unit: event.LeadTimeMinute}, form.Default())
	require.True(t, res.Valid)
	require.Equal(t, event.Member{LeadTimeMinutes: 15}, e.Members["guest"])
}

func TestValidateUsesFieldDefinitions(t *testing.T) {
	defs := form.Default().Merge(form.Table{Fields: []form.Field{
		{Name: form.FieldLabel, MaxLength: 3},
		{Name: form.FieldInterval, Options: []form.Option{{Value: "daily"}}},
	}})
	e := validEvent()
	res := Validate(e, LeadTimeInput{}, defs)
	require.Contains(t, res.Errors, "label")
	require.Contains(t, res.Errors, "interval")
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	errs.Add("b", "first")
	errs.Add("b", "second")
	errs.Merge(Errors{"a": "x", "b": "third"})
	require.Equal(t, Errors{"a": "x", "b": "first"}, errs)
	require.Equal(t, "invalid event: a: x; b: first", errs.Error())
}

func TestDecode(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{
		"label": " standup ",
		"starts_at": "2024-01-01 09:00",
		"ends_at": "2024-07-01T00:00:00+02:00",
		"duration": 30,
		"frequency": "2",
		"interval": "week",
		"weekdays": ["mon", "Thursday"],
		"member_id": "m",
		"lead_time_num": 2,
		"lead_time_unit": "Hour"
	}`), &in))

	def, lead, errs := Decode(in, form.Default())
	require.Empty(t, errs)
	require.Equal(t, "standup", def.Label)
	require.Equal(t, start, def.StartsAt)
	require.Equal(t, time.Date(2024, 6, 30, 22, 0, 0, 0, time.UTC), def.EndsAt)
	require.Equal(t, 30, def.DurationMinutes)
	require.Equal(t, 2, def.Frequency)
	require.Equal(t, event.IntervalWeekly, def.Interval)
	require.Equal(t, event.WeekdaysOf(time.Monday, time.Thursday), def.Weekdays)
	require.Equal(t, LeadTimeInput{MemberID: "m", Num: 2, Unit: event.LeadTimeHour}, lead)

	require.True(t, Validate(def, lead, form.Default()).Valid)
	require.Equal(t, 120, def.LeadTimeMinutes("m"))

	back := Encode(def, "m")
	require.Equal(t, "2", back.LeadTimeNum.String())
	require.Equal(t, "hour", back.LeadTimeUnit)
	require.Equal(t, "2024-01-01T09:00:00Z", back.StartsAt)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, _, errs := Decode(Input{
		StartsAt:    "01/02/2024",
		EndsAt:      "soon",
		Duration:    "1.5",
		Frequency:   "x",
		Weekdays:    []string{"Funday"},
		LeadTimeNum: "ten",
	}, form.Default())

	for _, f := range []string{"starts_at", "ends_at", "duration", "frequency", "weekdays", "lead_time_num"} {
		require.Contains(t, errs, f)
	}
}
