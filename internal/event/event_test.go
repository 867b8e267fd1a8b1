package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))

	e, err := New("meeting", start, 30)
	require.NoError(t, err)
	require.Equal(t, IntervalOnce, e.Interval)
	require.Equal(t, time.UTC, e.StartsAt.Location())
	require.True(t, start.Equal(e.StartsAt))
	require.Equal(t, 30*time.Minute, e.Duration())

	_, err = New("meeting", time.Time{}, 30)
	require.ErrorIs(t, err, ErrMissingStart)

	_, err = New("meeting", start, -1)
	require.ErrorIs(t, err, ErrNegativeDuration)
}

func TestInterval(t *testing.T) {
	for _, i := range []Interval{"", IntervalOnce, IntervalDaily, IntervalWeekly, IntervalMonthly} {
		require.True(t, i.Valid(), i)
	}
	require.False(t, Interval("yearly").Valid())
	require.False(t, IntervalOnce.Recurring())
	require.False(t, Interval("").Recurring())
	require.True(t, IntervalMonthly.Recurring())
}

func TestEffectiveFrequency(t *testing.T) {
	require.Equal(t, 1, (&Definition{}).EffectiveFrequency())
	require.Equal(t, 1, (&Definition{Frequency: -3}).EffectiveFrequency())
	require.Equal(t, 4, (&Definition{Frequency: 4}).EffectiveFrequency())
}

func TestMembers(t *testing.T) {
	e := &Definition{Members: map[string]Member{
		"zed":   {Owner: true, LeadTimeMinutes: 90},
		"alice": {LeadTimeMinutes: -5},
		"bob":   {Owner: true, LeadTimeMinutes: 2 * 24 * 60},
	}}

	require.Equal(t, []string{"alice", "bob", "zed"}, e.MemberIDs())
	require.Equal(t, "bob", e.OwnerID())
	require.False(t, e.Public())
	require.Equal(t, 0, e.LeadTimeMinutes("alice"))
	require.Equal(t, 0, e.LeadTimeMinutes("nobody"))

	n, unit := e.LeadTime("bob")
	require.Equal(t, 2, n)
	require.Equal(t, LeadTimeDay, unit)

	n, unit = e.LeadTime("zed")
	require.Equal(t, 90, n)
	require.Equal(t, LeadTimeMinute, unit)

	require.True(t, (&Definition{Members: map[string]Member{"a": {}}}).Public())
}

func TestClone(t *testing.T) {
	e := &Definition{
		Label:   "a",
		Tags:    map[string]string{"k": "v"},
		Members: map[string]Member{"m": {Owner: true}},
	}
	c := e.Clone()
	c.Tags["k"] = "changed"
	c.Members["other"] = Member{}

	require.Equal(t, "v", e.Tags["k"])
	require.Len(t, e.Members, 1)
	require.Nil(t, (&Definition{}).Clone().Tags)
}

func TestTags(t *testing.T) {
	e := &Definition{Tags: map[string]string{"size": "xl", "color": "red"}}
	tags := e.SortedTags()
	require.Equal(t, []Tag{{ID: "color", Value: "red"}, {ID: "size", Value: "xl"}}, tags)
	require.Equal(t, "red", tags[0].String())

	data, err := json.Marshal(tags)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"color","value":"red"},{"id":"size","value":"xl"}]`, string(data))

	var decoded []Tag
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, tags, decoded)
}

func TestWeekdays(t *testing.T) {
	w, err := ParseWeekdays([]string{"mon", "Friday", " SUN "})
	require.NoError(t, err)
	require.Equal(t, WeekdaysOf(time.Monday, time.Friday, time.Sunday), w)
	require.Equal(t, []time.Weekday{time.Sunday, time.Monday, time.Friday}, w.Days())
	require.Equal(t, "Sun,Mon,Fri", w.String())
	require.False(t, w.Empty())
	require.True(t, Weekdays{}.Empty())

	_, err = ParseWeekdays([]string{"Mon", "Funday"})
	require.ErrorIs(t, err, ErrUnknownWeekday)

	data, err := json.Marshal(w)
	require.NoError(t, err)
	require.JSONEq(t, `["Sun","Mon","Fri"]`, string(data))

	var back Weekdays
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, w, back)
	require.Error(t, json.Unmarshal([]byte(`["Xyz"]`), &back))
}

func TestSplitLeadTime(t *testing.T) {
	tests := []struct {
		minutes int
		n       int
		unit    LeadTimeUnit
	}{
		{minutes: 0, n: 0, unit: ""},
		{minutes: -10, n: 0, unit: ""},
		{minutes: 45, n: 45, unit: LeadTimeMinute},
		{minutes: 120, n: 2, unit: LeadTimeHour},
		{minutes: 1440, n: 1, unit: LeadTimeDay},
		{minutes: 1500, n: 25, unit: LeadTimeHour},
	}
	for _, tt := range tests {
		n, unit := SplitLeadTime(tt.minutes)
		require.Equal(t, tt.n, n, tt.minutes)
		require.Equal(t, tt.unit, unit, tt.minutes)

		if unit != "" {
			factor, ok := unit.Minutes()
			require.True(t, ok)
			require.Equal(t, tt.minutes, n*factor)
		}
	}
	_, ok := LeadTimeUnit("week").Minutes()
	require.False(t, ok)
}
