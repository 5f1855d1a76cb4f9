package event_bus

import (
	"time"

	"github.com/tuckerworks/calsync/pkg/reconcile"
)

const RunCompletedType EventType = "sync.run.completed"

// RunCompleted is published once per finished sync run, fatal or not.
type RunCompleted struct {
	RunID      string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Report     reconcile.Report
}

func (r RunCompleted) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
