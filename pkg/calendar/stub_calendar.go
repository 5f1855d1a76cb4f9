package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubCalendar is an in-memory Destination. Individual operations can be made
// to fail through FailCreate, FailUpdate and FailDelete.
type StubCalendar struct {
	mu   sync.Mutex
	data map[string]SyncedEvent
	// unmanaged holds events without a source key; they must never be listed or touched.
	unmanaged map[string]Event
	order     []string

	FailCreate map[StableKey]error
	FailUpdate map[string]error
	FailDelete map[string]error
	ListErr    error

	Calls []string
}

func NewStubCalendar() *StubCalendar {
	return &StubCalendar{
		data:       map[string]SyncedEvent{},
		unmanaged:  map[string]Event{},
		FailCreate: map[StableKey]error{},
		FailUpdate: map[string]error{},
		FailDelete: map[string]error{},
	}
}

// Seed stores a managed event as if it had been written by an earlier run.
func (c *StubCalendar) Seed(event SyncedEvent) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	c.data[event.ID] = event
	c.order = append(c.order, event.ID)
	return event.ID
}

// SeedUnmanaged stores an event that calsync did not create.
func (c *StubCalendar) SeedUnmanaged(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmanaged[event.ID] = event
}

func (c *StubCalendar) ListManagedEvents(_ context.Context, normalizedTitle string) ([]SyncedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "list")
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	events := make([]SyncedEvent, 0, len(c.data))
	for _, id := range c.order {
		event, ok := c.data[id]
		if !ok || event.SourceKey == "" || event.Title != normalizedTitle {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *StubCalendar) CreateEvent(_ context.Context, payload Payload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "create:"+payload.SourceKey.Short())
	if err := c.FailCreate[payload.SourceKey]; err != nil {
		return "", err
	}
	id := uuid.NewString()
	c.data[id] = payload.AsSynced(id)
	c.order = append(c.order, id)
	return id, nil
}

func (c *StubCalendar) UpdateEvent(_ context.Context, id string, payload Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "update:"+id)
	if err := c.FailUpdate[id]; err != nil {
		return err
	}
	if _, ok := c.data[id]; !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	c.data[id] = payload.AsSynced(id)
	return nil
}

func (c *StubCalendar) DeleteEvent(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "delete:"+id)
	if err := c.FailDelete[id]; err != nil {
		return err
	}
	if _, ok := c.data[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(c.data, id)
	return nil
}

func (c *StubCalendar) ListCalendars(_ context.Context) ([]CalendarItem, error) {
	return []CalendarItem{{ID: "stub", Name: "Stub"}}, nil
}

// Get returns the managed event stored under id.
func (c *StubCalendar) Get(id string) (SyncedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	event, ok := c.data[id]
	if !ok {
		return SyncedEvent{}, errors.New("event with given id not found")
	}
	return event, nil
}

// Events returns all managed events sorted by start.
func (c *StubCalendar) Events() []SyncedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]SyncedEvent, 0, len(c.data))
	for _, event := range c.data {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Value.Before(events[j].Start.Value)
	})
	return events
}

func (c *StubCalendar) Unmanaged() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]Event, 0, len(c.unmanaged))
	for _, event := range c.unmanaged {
		events = append(events, event)
	}
	return events
}

// StubSource is a Source returning a fixed list of events.
type StubSource struct {
	Events []Event
	Err    error
	Calls  int
}

func (s *StubSource) FetchEvents(_ context.Context, _, _ time.Time) ([]Event, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Events, nil
}
