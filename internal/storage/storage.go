package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lomoval/sked/internal/event"
)

var (
	ErrDuplicateEventID = errors.New("event with same ID exists")
	ErrNotFoundEvent    = errors.New("event not found")
	ErrMissingStart     = errors.New("event start time is not provided")
)

// Filter narrows candidates before recurrence matching.
// Zero values disable the corresponding condition.
type Filter struct {
	// NotExpiredAsOf drops events whose EndsAt is before it.
	NotExpiredAsOf time.Time
	MemberID       string
	// Tags requires every tag ID to be present with the given value;
	// an empty value only requires the tag.
	Tags       map[string]string
	PublicOnly bool
}

// Keep reports whether an event passes the filter. Backends without
// a query language use it directly.
func (f Filter) Keep(e *event.Definition) bool {
	if !f.NotExpiredAsOf.IsZero() && e.HasEnd() && e.EndsAt.Before(f.NotExpiredAsOf) {
		return false
	}
	if f.MemberID != "" {
		if _, ok := e.Members[f.MemberID]; !ok {
			return false
		}
	}
	if f.PublicOnly && !e.Public() {
		return false
	}
	for id, v := range f.Tags {
		got, ok := e.Tags[id]
		if !ok || (v != "" && got != v) {
			return false
		}
	}
	return true
}

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	FetchCandidates(ctx context.Context, filter Filter) ([]event.Definition, error)
	FetchByID(ctx context.Context, id string) (*event.Definition, error)
	// Save stores the event with its tags and members atomically and returns its ID.
	// An empty ID inserts, otherwise the stored event is replaced.
	Save(ctx context.Context, e *event.Definition) (string, error)
	Remove(ctx context.Context, id string) error
	RemoveExpiredBefore(ctx context.Context, t time.Time) (int, error)
}
