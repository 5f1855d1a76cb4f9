package reconcile

import (
	"time"

	"github.com/tuckerworks/calsync/pkg/calendar"
)

type ActionKind string

const (
	KindCreate   ActionKind = "create"
	KindUpdate   ActionKind = "update"
	KindSkip     ActionKind = "skip"
	KindDelete   ActionKind = "delete"
	KindPreserve ActionKind = "preserve"
)

// Action is one step of a Plan. Payload is set for creates and updates,
// DestinationID for everything that refers to an existing destination event.
type Action struct {
	Kind          ActionKind
	Key           calendar.StableKey
	DestinationID string
	Payload       calendar.Payload
	// Title is the raw source title (or the destination title for orphans), kept for logging.
	Title string
	Start calendar.Time
}

type Options struct {
	NormalizedTitle string
	// Reference is the instant orphans are checked against.
	Reference time.Time
	// Location resolves date-only and floating values. Nil means UTC.
	Location *time.Location
}

type Plan struct {
	Creates   []Action
	Updates   []Action
	Skips     []Action
	Deletes   []Action
	Preserves []Action
	// Duplicates lists keys produced by more than one source event.
	Duplicates []calendar.StableKey
	Warnings   []error
}

// Mutations is the number of actions that write to the destination.
func (p Plan) Mutations() int {
	return len(p.Creates) + len(p.Updates) + len(p.Deletes)
}

// IsNoop reports whether applying the plan would leave the destination untouched.
func (p Plan) IsNoop() bool {
	return p.Mutations() == 0
}
