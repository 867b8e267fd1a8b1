package occurrence_test

import (
	"testing"
	"time"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/occurrence"
	"github.com/stretchr/testify/require"
)

func definition(id string, startsAt time.Time, interval event.Interval, days ...time.Weekday) event.Definition {
	return event.Definition{
		ID:              id,
		Label:           "event " + id,
		StartsAt:        startsAt,
		DurationMinutes: 30,
		Interval:        interval,
		Frequency:       1,
		Weekdays:        event.WeekdaysOf(days...),
	}
}

func ids(occurrences []occurrence.Occurrence) []string {
	res := make([]string, 0, len(occurrences))
	for _, o := range occurrences {
		res = append(res, o.Event.ID)
	}
	return res
}

func TestQueryDay(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	candidates := []event.Definition{
		definition("late", time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), event.IntervalDaily),
		definition("weekly", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), event.IntervalWeekly, time.Monday),
		definition("other day", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), event.IntervalWeekly, time.Tuesday),
		definition("once", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), event.IntervalOnce),
		definition("early", time.Date(2023, 6, 1, 7, 0, 0, 0, time.UTC), event.IntervalDaily),
	}

	result := occurrence.NewEngine().QueryDay(candidates, day, 0)
	require.Equal(t, []string{"early", "weekly", "once", "late"}, ids(result))
	require.Equal(t, time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC), result[0].At)
	require.True(t, result[2].Anchor)
	require.Equal(t, time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC), result[2].Ends())
}

func TestQueryDayDeduplicates(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e := definition("1", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), event.IntervalDaily)

	result := occurrence.NewEngine().QueryDay([]event.Definition{e, e, e}, day, 0)
	require.Len(t, result, 1)
}

func TestQueryDayStableOrder(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	same := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	candidates := []event.Definition{
		definition("b", same, event.IntervalDaily),
		definition("a", same, event.IntervalDaily),
		definition("older", same.AddDate(0, 0, -7), event.IntervalDaily),
		definition("c", same, event.IntervalDaily),
	}

	engine := occurrence.NewEngine()
	for i := 0; i < 20; i++ {
		result := engine.QueryDay(candidates, day, 0)
		require.Equal(t, []string{"older", "b", "a", "c"}, ids(result))
	}
}

func TestQueryDayMalformedCandidates(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	candidates := []event.Definition{
		{ID: "no start", Interval: event.IntervalDaily, Frequency: 1},
		{ID: "bad interval", StartsAt: day.AddDate(0, 0, -3), Interval: "fortnightly"},
		{ID: "weekly without days", StartsAt: day.AddDate(0, 0, -7), Interval: event.IntervalWeekly, Frequency: 1},
		definition("ok", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), event.IntervalDaily),
	}

	var result []occurrence.Occurrence
	require.NotPanics(t, func() {
		result = occurrence.NewEngine().QueryDay(candidates, day, 0)
	})
	require.Equal(t, []string{"ok"}, ids(result))
}

func TestQueryDayOffset(t *testing.T) {
	// 22:30 UTC is already the next day at UTC+3.
	e := definition("1", time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC), event.IntervalOnce)
	engine := occurrence.NewEngine()

	require.Empty(t, engine.QueryDay([]event.Definition{e}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 180))

	result := engine.QueryDay([]event.Definition{e}, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 180)
	require.Len(t, result, 1)
	require.Equal(t, "1:30am", result[0].Format(""))
	require.Equal(t, "2024-03-02 01:30", result[0].Format("2006-01-02 15:04"))
}

func TestQueryMoment(t *testing.T) {
	e := definition("1", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), event.IntervalWeekly, time.Monday)
	e.Members = map[string]event.Member{
		"owner": {Owner: true, LeadTimeMinutes: 60},
		"guest": {LeadTimeMinutes: 10},
	}
	candidates := []event.Definition{e}
	engine := occurrence.NewEngine()

	at := time.Date(2024, 1, 22, 9, 0, 30, 0, time.UTC)
	require.Len(t, engine.QueryMoment(candidates, at, 0, false, ""), 1)
	require.Empty(t, engine.QueryMoment(candidates, at, 0, true, "owner"))
	require.Len(t, engine.QueryMoment(candidates, at.Add(-time.Hour), 0, true, "owner"), 1)
	require.Len(t, engine.QueryMoment(candidates, at.Add(-10*time.Minute), 0, true, "guest"), 1)
}

func TestDueReminders(t *testing.T) {
	e := definition("1", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), event.IntervalDaily)
	e.Members = map[string]event.Member{
		"owner": {Owner: true, LeadTimeMinutes: 60},
		"guest": {LeadTimeMinutes: 60},
		"late":  {LeadTimeMinutes: 5},
	}

	reminders := occurrence.NewEngine().DueReminders(
		[]event.Definition{e}, time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), 0)

	require.Len(t, reminders, 2)
	require.Equal(t, "guest", reminders[0].MemberID)
	require.Equal(t, "owner", reminders[1].MemberID)
	require.Equal(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), reminders[0].OccursAt)
	require.Equal(t, 60, reminders[0].LeadTimeMinutes)
}
