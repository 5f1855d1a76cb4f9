package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/tuckerworks/calsync/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Report is the outcome of a run. Failed actions do not make a run fail;
// only a fatal error (set by the caller) does.
type Report struct {
	Created       int      `json:"created" yaml:"created"`
	Updated       int      `json:"updated" yaml:"updated"`
	Skipped       int      `json:"skipped" yaml:"skipped"`
	Deleted       int      `json:"deleted" yaml:"deleted"`
	Preserved     int      `json:"preserved" yaml:"preserved"`
	FailedCreates int      `json:"failedCreates" yaml:"failedCreates"`
	FailedUpdates int      `json:"failedUpdates" yaml:"failedUpdates"`
	FailedDeletes int      `json:"failedDeletes" yaml:"failedDeletes"`
	Warnings      int      `json:"warnings" yaml:"warnings"`
	Errors        []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Fatal         string   `json:"fatal,omitempty" yaml:"fatal,omitempty"`
}

func (r Report) Status() string {
	if r.Fatal != "" {
		return StatusFailed
	}
	return StatusSuccess
}

func (r Report) Failed() int {
	return r.FailedCreates + r.FailedUpdates + r.FailedDeletes
}

// FatalReport returns the report of a run that stopped before any action was applied.
func FatalReport(err error) Report {
	return Report{Fatal: err.Error()}
}

// Apply executes the plan against dest: creates first, then updates, then
// deletes. An action that fails is logged and counted and the remaining
// actions still run. Deleting an event that is already gone counts as a
// successful delete. Once ctx is done the remaining actions are counted as
// failed without being attempted.
func Apply(ctx context.Context, plan Plan, dest calendar.Destination) Report {
	report := Report{
		Skipped:   len(plan.Skips),
		Preserved: len(plan.Preserves),
		Warnings:  len(plan.Warnings),
	}

	for _, action := range plan.Creates {
		if err := ctx.Err(); err != nil {
			report.fail(&report.FailedCreates, action, err)
			continue
		}
		id, err := dest.CreateEvent(ctx, action.Payload)
		if err != nil {
			report.fail(&report.FailedCreates, action, err)
			continue
		}
		log.Debugf("Created event %s (%s) as %s", action.Key.Short(), action.Start, id)
		report.Created++
	}

	for _, action := range plan.Updates {
		if err := ctx.Err(); err != nil {
			report.fail(&report.FailedUpdates, action, err)
			continue
		}
		if err := dest.UpdateEvent(ctx, action.DestinationID, action.Payload); err != nil {
			report.fail(&report.FailedUpdates, action, err)
			continue
		}
		log.Debugf("Updated event %s (%s)", action.DestinationID, action.Start)
		report.Updated++
	}

	for _, action := range plan.Deletes {
		if err := ctx.Err(); err != nil {
			report.fail(&report.FailedDeletes, action, err)
			continue
		}
		err := dest.DeleteEvent(ctx, action.DestinationID)
		if err != nil && !errors.Is(err, calendar.ErrNotFound) {
			report.fail(&report.FailedDeletes, action, err)
			continue
		}
		if err != nil {
			log.Infof("Event %s was already gone from the destination", action.DestinationID)
		} else {
			log.Debugf("Deleted event %s (%s)", action.DestinationID, action.Start)
		}
		report.Deleted++
	}

	return report
}

func (r *Report) fail(counter *int, action Action, cause error) {
	*counter++
	target := action.DestinationID
	if target == "" {
		target = action.Key.Short()
	}
	err := fmt.Errorf("%w: %s %s: %v", calendar.ErrStoreWrite, action.Kind, target, cause)
	log.Errorf("%v. Trying to continue", err)
	r.Errors = append(r.Errors, err.Error())
}
