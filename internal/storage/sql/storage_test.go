//go:build sql
// +build sql

package sqlstorage_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/storage"
	sqlstorage "github.com/lomoval/sked/internal/storage/sql"
	"github.com/stretchr/testify/require"
)

var (
	host     = "127.0.0.1"
	port     = 5532
	database = "testing"
	username = "postgres"
	password = "pas"
)

func TestMain(m *testing.M) {
	pgHost := os.Getenv("POSTGRES_HOST")
	pgPort := os.Getenv("POSTGRES_PORT")
	if pgHost != "" {
		host = pgHost
	}
	if pgPort != "" {
		port, _ = strconv.Atoi(pgPort)
	}

	cleanupDB()
	code := m.Run()
	os.Exit(code)
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	initDate := time.Date(2300, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("save and fetch", func(t *testing.T) {
		s := createStorage(t)
		e := event.Definition{
			Label:           "test",
			Description:     "description",
			StartsAt:        initDate,
			DurationMinutes: 60,
			Interval:        event.IntervalWeekly,
			Frequency:       2,
			Weekdays:        event.WeekdaysOf(time.Monday, time.Friday),
			Tags:            map[string]string{"color": "red"},
			Members:         map[string]event.Member{"owner": {Owner: true, LeadTimeMinutes: 15}},
		}

		id, err := s.Save(ctx, &e)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		stored, err := s.FetchByID(ctx, id)
		require.NoError(t, err)
		e.ID = id
		require.Equal(t, e, *stored)
	})

	t.Run("update replaces tags and members", func(t *testing.T) {
		s := createStorage(t)
		e := event.Definition{
			Label:    "test",
			StartsAt: initDate,
			Tags:     map[string]string{"color": "red"},
			Members:  map[string]event.Member{"a": {Owner: true}},
		}
		id, err := s.Save(ctx, &e)
		require.NoError(t, err)

		e.ID = id
		e.Label = "updated"
		e.Tags = map[string]string{"size": "xl"}
		e.Members = map[string]event.Member{"b": {LeadTimeMinutes: 60}}
		_, err = s.Save(ctx, &e)
		require.NoError(t, err)

		stored, err := s.FetchByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "updated", stored.Label)
		require.Equal(t, e.Tags, stored.Tags)
		require.Equal(t, e.Members, stored.Members)
	})

	t.Run("filters", func(t *testing.T) {
		s := createStorage(t)
		public := event.Definition{Label: "public", StartsAt: initDate, Tags: map[string]string{"color": "red"}}
		private := event.Definition{
			Label:    "private",
			StartsAt: initDate.Add(time.Hour),
			Members:  map[string]event.Member{"owner": {Owner: true}},
		}
		for _, e := range []event.Definition{public, private} {
			e := e
			_, err := s.Save(ctx, &e)
			require.NoError(t, err)
		}

		events, err := s.FetchCandidates(ctx, storage.Filter{PublicOnly: true})
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "public", events[0].Label)

		events, err = s.FetchCandidates(ctx, storage.Filter{MemberID: "owner"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "private", events[0].Label)

		events, err = s.FetchCandidates(ctx, storage.Filter{Tags: map[string]string{"color": "red"}})
		require.NoError(t, err)
		require.Len(t, events, 1)
	})

	t.Run("remove", func(t *testing.T) {
		s := createStorage(t)
		e := event.Definition{Label: "test", StartsAt: initDate}
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
		s := createStorage(t)
		e := event.Definition{ID: "___not_exists___", StartsAt: time.Now()}
		_, err := s.Save(ctx, &e)
		require.ErrorIs(t, err, storage.ErrNotFoundEvent)
	})

	t.Run("delete not exist event", func(t *testing.T) {
		s := createStorage(t)
		require.ErrorIs(t, s.Remove(ctx, "___not_exists___"), storage.ErrNotFoundEvent)
	})
}

func cleanupDB() error {
	db, err := sqlx.Connect(
		"postgres",
		fmt.Sprintf("sslmode=disable host=%s port=%d dbname=%s user=%s password=%s", host, port, database, username, password),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("TRUNCATE TABLE sked_events CASCADE")
	return err
}

func createStorage(t *testing.T) *sqlstorage.Storage {
	t.Helper()
	s := sqlstorage.New(sqlstorage.Config{
		Host:     host,
		Port:     port,
		Database: database,
		Username: username,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() {
		s.Close(ctx)
		require.NoError(t, cleanupDB())
	})
	return s
}
