package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrFetch marks a failure to build the source event set. It aborts a run
	// before anything is written to the destination.
	ErrFetch = errors.New("source fetch failed")
	// ErrIdentityDerivation is returned with a fallback key when an event has no usable start.
	ErrIdentityDerivation = errors.New("stable key derivation failed")
	// ErrRetentionUnresolved is returned when an event's end cannot be resolved.
	ErrRetentionUnresolved = errors.New("event end could not be resolved")
	// ErrNotFound is returned by destinations when the addressed event is already gone.
	ErrNotFound = errors.New("event not found")
	// ErrStoreWrite wraps a rejected create, update or delete.
	ErrStoreWrite = errors.New("destination write failed")
)

// Source is the read-only feed events are mirrored from.
type Source interface {
	// FetchEvents returns the events overlapping [from, to].
	FetchEvents(ctx context.Context, from time.Time, to time.Time) ([]Event, error)
}

// Destination is the calendar the mirror is written to. Only events carrying a
// source key are visible through ListManagedEvents.
type Destination interface {
	ListManagedEvents(ctx context.Context, normalizedTitle string) ([]SyncedEvent, error)
	CreateEvent(ctx context.Context, payload Payload) (string, error)
	UpdateEvent(ctx context.Context, id string, payload Payload) error
	DeleteEvent(ctx context.Context, id string) error
	ListCalendars(ctx context.Context) ([]CalendarItem, error)
}

type CalendarItem struct {
	ID   string
	Name string
}
