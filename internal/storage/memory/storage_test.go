package memorystorage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/storage"
	"github.com/stretchr/testify/require"
)

func testEvent() event.Definition {
	return event.Definition{
		Label:           "test",
		Description:     "description",
		StartsAt:        time.Date(2300, 1, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Interval:        event.IntervalWeekly,
		Frequency:       1,
		Weekdays:        event.WeekdaysOf(time.Monday),
		Tags:            map[string]string{"color": "red"},
		Members:         map[string]event.Member{"owner": {Owner: true, LeadTimeMinutes: 15}},
	}
}

func TestStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("save and fetch", func(t *testing.T) {
		s := New()
		e := testEvent()

		id, err := s.Save(ctx, &e)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.Empty(t, e.ID, "caller event is not modified")

		stored, err := s.FetchByID(ctx, id)
		require.NoError(t, err)
		e.ID = id
		require.Equal(t, e, *stored)
	})

	t.Run("update", func(t *testing.T) {
		s := New()
		e := testEvent()
		id, err := s.Save(ctx, &e)
		require.NoError(t, err)

		e.ID = id
		e.Label = "updated"
		e.Tags = nil
		_, err = s.Save(ctx, &e)
		require.NoError(t, err)

		stored, err := s.FetchByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "updated", stored.Label)
		require.Empty(t, stored.Tags)
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		s := New()
		e := testEvent()
		id, err := s.Save(ctx, &e)
		require.NoError(t, err)

		e.Tags["color"] = "blue"
		stored, err := s.FetchByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "red", stored.Tags["color"])

		stored.Members["intruder"] = event.Member{}
		again, err := s.FetchByID(ctx, id)
		require.NoError(t, err)
		require.Len(t, again.Members, 1)
	})

	t.Run("remove", func(t *testing.T) {
		s := New()
		e := testEvent()
		id, err := s.Save(ctx, &e)
		require.NoError(t, err)

		require.NoError(t, s.Remove(ctx, id))
		_, err = s.FetchByID(ctx, id)
		require.ErrorIs(t, err, storage.ErrNotFoundEvent)
	})
}

func TestStorageNegativeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("update not exist event", func(t *testing.T) {
		e := testEvent()
		e.ID = "___not_exists___"
		_, err := New().Save(ctx, &e)
		require.ErrorIs(t, err, storage.ErrNotFoundEvent)
	})

	t.Run("delete not exist event", func(t *testing.T) {
		require.ErrorIs(t, New().Remove(ctx, "___not_exists___"), storage.ErrNotFoundEvent)
	})

	t.Run("missing start", func(t *testing.T) {
		e := testEvent()
		e.StartsAt = time.Time{}
		_, err := New().Save(ctx, &e)
		require.ErrorIs(t, err, storage.ErrMissingStart)
	})

	t.Run("duplicate generated id", func(t *testing.T) {
		s := New()
		s.newID = func() string { return "same" }
		e := testEvent()
		_, err := s.Save(ctx, &e)
		require.NoError(t, err)
		_, err = s.Save(ctx, &e)
		require.ErrorIs(t, err, storage.ErrDuplicateEventID)
	})
}

func TestFetchCandidates(t *testing.T) {
	ctx := context.Background()
	s := New()

	expired := testEvent()
	expired.Label = "expired"
	expired.EndsAt = time.Date(2300, 2, 1, 0, 0, 0, 0, time.UTC)

	public := testEvent()
	public.Label = "public"
	public.Members = nil

	tagged := testEvent()
	tagged.Label = "tagged"
	tagged.Tags = map[string]string{"color": "green", "size": "xl"}

	for _, e := range []event.Definition{expired, public, tagged} {
		e := e
		_, err := s.Save(ctx, &e)
		require.NoError(t, err)
	}

	labels := func(filter storage.Filter) []string {
		events, err := s.FetchCandidates(ctx, filter)
		require.NoError(t, err)
		res := make([]string, 0, len(events))
		for _, e := range events {
			res = append(res, e.Label)
		}
		return res
	}

	require.Equal(t, []string{"expired", "public", "tagged"}, labels(storage.Filter{}))
	require.Equal(t, []string{"public", "tagged"},
		labels(storage.Filter{NotExpiredAsOf: time.Date(2300, 3, 1, 0, 0, 0, 0, time.UTC)}))
	require.Equal(t, []string{"expired", "tagged"}, labels(storage.Filter{MemberID: "owner"}))
	require.Equal(t, []string{"public"}, labels(storage.Filter{PublicOnly: true}))
	require.Equal(t, []string{"tagged"}, labels(storage.Filter{Tags: map[string]string{"size": ""}}))
	require.Equal(t, []string{"expired", "public"}, labels(storage.Filter{Tags: map[string]string{"color": "red"}}))
}

func TestRemoveExpiredBefore(t *testing.T) {
	ctx := context.Background()
	s := New()

	old := testEvent()
	old.Interval = event.IntervalOnce
	old.StartsAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	ended := testEvent()
	ended.StartsAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	ended.EndsAt = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	endless := testEvent()
	endless.StartsAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, e := range []event.Definition{old, ended, endless, testEvent()} {
		e := e
		_, err := s.Save(ctx, &e)
		require.NoError(t, err)
	}

	n, err := s.RemoveExpiredBefore(ctx, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	events, err := s.FetchCandidates(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestStorageConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := testEvent()
	id, err := s.Save(ctx, &e)
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			upd := testEvent()
			upd.ID = id
			upd.Label = fmt.Sprintf("label %d", i)
			upd.Tags = map[string]string{"n": upd.Label}
			_, err := s.Save(ctx, &upd)
			require.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			events, err := s.FetchCandidates(ctx, storage.Filter{})
			require.NoError(t, err)
			for _, got := range events {
				if n, ok := got.Tags["n"]; ok {
					require.Equal(t, got.Label, n, "label and tags come from the same save")
				}
			}
		}()
	}
	wg.Wait()
}
