package sync_run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/event_bus"
	"github.com/tuckerworks/calsync/internal/utils"
	"github.com/tuckerworks/calsync/pkg/calendar"
	"github.com/tuckerworks/calsync/pkg/reconcile"
)

var ErrRunInProgress = errors.New("a sync run is already in progress")

// DestinationProvider hands out the destination calendar of a run.
type DestinationProvider interface {
	GetCalendar(ctx context.Context) (calendar.Destination, error)
}

type Settings struct {
	NormalizedTitle string
	Days            int
	Location        *time.Location
}

// Runner executes sync runs. At most one run is active at a time.
type Runner struct {
	source   calendar.Source
	provider DestinationProvider
	settings Settings
	clock    utils.Clock
	eventBus *event_bus.EventBus
	running  sync.Mutex
}

func NewRunner(source calendar.Source, provider DestinationProvider, settings Settings, clock utils.Clock, eventBus *event_bus.EventBus) *Runner {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Runner{
		source:   source,
		provider: provider,
		settings: settings,
		clock:    clock,
		eventBus: eventBus,
	}
}

// Run mirrors the source into the destination once. Per-event failures are
// counted in the report; the returned error is set only when the run could
// not reach the destination at all, or when another run is active.
func (r *Runner) Run(ctx context.Context, trigger Trigger) (SyncRun, error) {
	if !r.running.TryLock() {
		return SyncRun{}, ErrRunInProgress
	}
	defer r.running.Unlock()

	run := SyncRun{Id: uuid.New(), Trigger: trigger, StartedAt: r.clock.Now()}
	logger := log.WithFields(log.Fields{"run": run.Id.String(), "trigger": trigger})
	logger.Info("Starting sync run")

	plan, dest, err := r.prepare(ctx, run.StartedAt)
	if err != nil {
		logger.Errorf("Sync run aborted: %v", err)
		run.Report = reconcile.FatalReport(err)
	} else {
		logPlanFindings(logger, plan)
		if plan.IsNoop() {
			logger.Info("Destination already mirrors the source")
		}
		run.Report = reconcile.Apply(ctx, plan, dest)
	}
	run.FinishedAt = r.clock.Now()

	logger.WithFields(log.Fields{
		"status":    run.Status(),
		"created":   run.Report.Created,
		"updated":   run.Report.Updated,
		"skipped":   run.Report.Skipped,
		"deleted":   run.Report.Deleted,
		"preserved": run.Report.Preserved,
		"failed":    run.Report.Failed(),
		"warnings":  run.Report.Warnings,
	}).Info("Sync run finished")

	r.publish(ctx, run)
	return run, err
}

// Plan computes what a run would do now, without changing the destination.
// It shares the run lock, so it fails with ErrRunInProgress while a run is
// applying changes.
func (r *Runner) Plan(ctx context.Context) (reconcile.Plan, error) {
	if !r.running.TryLock() {
		return reconcile.Plan{}, ErrRunInProgress
	}
	defer r.running.Unlock()

	plan, _, err := r.prepare(ctx, r.clock.Now())
	if err != nil {
		return reconcile.Plan{}, err
	}
	logPlanFindings(log.NewEntry(log.StandardLogger()), plan)
	return plan, nil
}

func (r *Runner) ListCalendars(ctx context.Context) ([]calendar.CalendarItem, error) {
	dest, err := r.provider.GetCalendar(ctx)
	if err != nil {
		return nil, err
	}
	return dest.ListCalendars(ctx)
}

func (r *Runner) prepare(ctx context.Context, now time.Time) (reconcile.Plan, calendar.Destination, error) {
	from := now
	to := now.AddDate(0, 0, r.settings.Days)

	events, err := r.source.FetchEvents(ctx, from, to)
	if err != nil {
		return reconcile.Plan{}, nil, fmt.Errorf("failed to fetch source events: %w", err)
	}

	dest, err := r.provider.GetCalendar(ctx)
	if err != nil {
		return reconcile.Plan{}, nil, err
	}
	synced, err := dest.ListManagedEvents(ctx, r.settings.NormalizedTitle)
	if err != nil {
		return reconcile.Plan{}, nil, fmt.Errorf("failed to list destination events: %w", err)
	}

	plan := reconcile.Reconcile(events, synced, reconcile.Options{
		NormalizedTitle: r.settings.NormalizedTitle,
		Reference:       now,
		Location:        r.settings.Location,
	})
	return plan, dest, nil
}

func logPlanFindings(logger *log.Entry, plan reconcile.Plan) {
	for _, key := range plan.Duplicates {
		logger.Warnf("Several source events share key %s, mirroring the last one", key.Short())
	}
	for _, warning := range plan.Warnings {
		logger.Warn(warning)
	}
	logger.Debugf("Plan: %d writes (%d to create, %d to update, %d to delete), %d unchanged, %d preserved",
		plan.Mutations(), len(plan.Creates), len(plan.Updates), len(plan.Deletes), len(plan.Skips), len(plan.Preserves))
}

func (r *Runner) publish(ctx context.Context, run SyncRun) {
	if r.eventBus == nil {
		return
	}
	// The run is over; a cancelled run context must not hide its outcome.
	event := event_bus.NewEvent(context.WithoutCancel(ctx), event_bus.RunCompletedType, event_bus.RunCompleted{
		RunID:      run.Id.String(),
		Trigger:    string(run.Trigger),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Report:     run.Report,
	})
	if err := r.eventBus.Publish(event); err != nil {
		log.Errorf("Failed to publish run %s: %v", run.Id, err)
	}
}
