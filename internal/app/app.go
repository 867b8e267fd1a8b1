package app

import (
	"context"
	"fmt"
	"time"

	"github.com/lomoval/sked/internal/daterange"
	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/form"
	"github.com/lomoval/sked/internal/occurrence"
	"github.com/lomoval/sked/internal/recurrence"
	"github.com/lomoval/sked/internal/storage"
	"github.com/lomoval/sked/internal/validator"
	log "github.com/sirupsen/logrus"
)

type App struct {
	Storage storage.Storage
	fields  form.Source
	engine  *occurrence.Engine
}

// Query narrows the events shown in a calendar view.
type Query struct {
	// Offset is the viewer's UTC offset in minutes, east positive.
	Offset     int
	MemberID   string
	PublicOnly bool
	Tags       map[string]string
}

func (q Query) filter() storage.Filter {
	return storage.Filter{MemberID: q.MemberID, PublicOnly: q.PublicOnly, Tags: q.Tags}
}

type DayOccurrences struct {
	Date        time.Time               `json:"date"`
	Occurrences []occurrence.Occurrence `json:"occurrences"`
}

func New(storage storage.Storage, fields form.Source) *App {
	if fields == nil {
		fields = form.Static(form.Default())
	}
	return &App{
		Storage: storage,
		fields:  fields,
		engine:  occurrence.NewEngine(),
	}
}

func (a *App) FieldDefinitions(ctx context.Context) (form.Table, error) {
	return a.fields.FieldDefinitions(ctx)
}

// SaveEvent validates e and stores it. The ID is written to e only after the
// save succeeded. Validation problems are returned as validator.Errors.
func (a *App) SaveEvent(ctx context.Context, e *event.Definition, lead validator.LeadTimeInput) error {
	defs, err := a.fields.FieldDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get field definitions: %w", err)
	}
	return a.save(ctx, e, lead, defs, nil)
}

func (a *App) save(
	ctx context.Context,
	e *event.Definition,
	lead validator.LeadTimeInput,
	defs form.Table,
	decodeErrs validator.Errors,
) error {
	candidate := e.Clone()
	res := validator.Validate(&candidate, lead, defs)
	if len(decodeErrs) > 0 {
		decodeErrs.Merge(res.Errors)
		return decodeErrs
	}
	if !res.Valid {
		return res.Errors
	}
	id, err := a.Storage.Save(ctx, &candidate)
	if err != nil {
		return err
	}
	candidate.ID = id
	*e = candidate
	return nil
}

// CreateEvent decodes and saves a new event.
func (a *App) CreateEvent(ctx context.Context, in validator.Input) (string, error) {
	in.ID = ""
	defs, err := a.fields.FieldDefinitions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get field definitions: %w", err)
	}
	e, lead, errs := validator.Decode(in, defs)
	e.Members = withOwner(e.Members, in.MemberID)
	if err := a.save(ctx, e, lead, defs, errs); err != nil {
		return "", err
	}
	log.WithField("id", e.ID).Debug("event created")
	return e.ID, nil
}

// UpdateEvent replaces the stored event. Tags and members absent from the input
// are kept from the stored event.
func (a *App) UpdateEvent(ctx context.Context, id string, in validator.Input) error {
	stored, err := a.Storage.FetchByID(ctx, id)
	if err != nil {
		return err
	}
	defs, err := a.fields.FieldDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get field definitions: %w", err)
	}
	in.ID = id
	e, lead, errs := validator.Decode(in, defs)
	if in.Tags == nil {
		e.Tags = stored.Tags
	}
	if in.Members == nil {
		e.Members = stored.Members
	}
	return a.save(ctx, e, lead, defs, errs)
}

func (a *App) RemoveEvent(ctx context.Context, id string) error {
	return a.Storage.Remove(ctx, id)
}

func (a *App) GetEvent(ctx context.Context, id string) (*event.Definition, error) {
	return a.Storage.FetchByID(ctx, id)
}

// Definitions returns the stored definitions visible to the query.
func (a *App) Definitions(ctx context.Context, q Query, notExpiredAsOf time.Time) ([]event.Definition, error) {
	f := q.filter()
	f.NotExpiredAsOf = notExpiredAsOf
	return a.Storage.FetchCandidates(ctx, f)
}

// EventsForDay returns the occurrences on the calendar day of date as seen at q.Offset.
func (a *App) EventsForDay(ctx context.Context, date time.Time, q Query) ([]occurrence.Occurrence, error) {
	it := daterange.New(date, &date)
	it.Next()
	return it.Occurrences(ctx, a.Storage, a.engine, q.filter(), q.Offset)
}

// EventsForRange resolves every date of the iterator.
func (a *App) EventsForRange(ctx context.Context, it *daterange.Iterator, q Query) ([]DayOccurrences, error) {
	it.Rewind()
	days := make([]DayOccurrences, 0)
	for it.Next() {
		occ, err := it.Occurrences(ctx, a.Storage, a.engine, q.filter(), q.Offset)
		if err != nil {
			return nil, err
		}
		days = append(days, DayOccurrences{Date: it.Date(), Occurrences: occ})
	}
	return days, nil
}

func (a *App) EventsForWeek(ctx context.Context, date time.Time, q Query) ([]DayOccurrences, error) {
	return a.EventsForRange(ctx, daterange.Week(date, recurrence.WeekStart), q)
}

func (a *App) EventsForMonth(ctx context.Context, year int, month time.Month, q Query) ([]DayOccurrences, error) {
	return a.EventsForRange(ctx, daterange.Month(year, month), q)
}

// EventsAt returns occurrences starting at the minute of instant.
func (a *App) EventsAt(ctx context.Context, instant time.Time, q Query) ([]occurrence.Occurrence, error) {
	f := q.filter()
	f.NotExpiredAsOf = instant.Truncate(time.Minute)
	candidates, err := a.Storage.FetchCandidates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return a.engine.QueryMoment(candidates, instant, q.Offset, false, q.MemberID), nil
}

// DueReminders returns reminders whose lead time ends at the minute of instant.
func (a *App) DueReminders(ctx context.Context, instant time.Time, offset int) ([]occurrence.Reminder, error) {
	candidates, err := a.Storage.FetchCandidates(ctx, storage.Filter{NotExpiredAsOf: instant.Truncate(time.Minute)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return a.engine.DueReminders(candidates, instant, offset), nil
}

// RemoveExpired deletes events that can no longer occur after before.
func (a *App) RemoveExpired(ctx context.Context, before time.Time) (int, error) {
	return a.Storage.RemoveExpiredBefore(ctx, before)
}

// withOwner makes memberID the owner of a new event without members.
func withOwner(members map[string]event.Member, memberID string) map[string]event.Member {
	if memberID == "" || len(members) > 0 {
		return members
	}
	return map[string]event.Member{memberID: {Owner: true}}
}
