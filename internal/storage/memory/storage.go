package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/storage"
)

type Storage struct {
	mu    sync.RWMutex
	data  map[string]event.Definition
	order []string
	newID func() string
}

func New() *Storage {
	return &Storage{
		data:  make(map[string]event.Definition),
		newID: func() string { return uuid.New().String() },
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Save swaps in a private copy of the event under the write lock,
// so readers see either the old or the new event with its tags and members.
func (s *Storage) Save(_ context.Context, e *event.Definition) (string, error) {
	if e.StartsAt.IsZero() {
		return "", storage.ErrMissingStart
	}
	c := e.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.newID()
		if _, ok := s.data[c.ID]; ok {
			return "", fmt.Errorf("duplicate ID %q: %w", c.ID, storage.ErrDuplicateEventID)
		}
		s.order = append(s.order, c.ID)
	} else if _, ok := s.data[c.ID]; !ok {
		return "", fmt.Errorf("failed to update event with id %q: %w", c.ID, storage.ErrNotFoundEvent)
	}
	s.data[c.ID] = c
	return c.ID, nil
}

func (s *Storage) FetchByID(_ context.Context, id string) (*event.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	c := e.Clone()
	return &c, nil
}

func (s *Storage) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	s.remove(id)
	return nil
}

// FetchCandidates returns matching events in insertion order.
func (s *Storage) FetchCandidates(_ context.Context, filter storage.Filter) ([]event.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]event.Definition, 0)
	for _, id := range s.order {
		e := s.data[id]
		if filter.Keep(&e) {
			events = append(events, e.Clone())
		}
	}
	return events, nil
}

func (s *Storage) RemoveExpiredBefore(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, e := range s.data {
		if lastPossibleStart(e).Before(t) {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		s.remove(id)
	}
	return len(expired), nil
}

func (s *Storage) remove(id string) {
	delete(s.data, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// lastPossibleStart is the horizon for recurring events and the start otherwise.
// Unbounded recurring events never expire.
func lastPossibleStart(e event.Definition) time.Time {
	if !e.Recurring() {
		return e.StartsAt
	}
	if e.HasEnd() {
		return e.EndsAt
	}
	return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
}
