package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/pkg/sync_run"
)

type runner interface {
	Run(ctx context.Context, trigger sync_run.Trigger) (sync_run.SyncRun, error)
}

// Scheduler triggers sync runs on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner runner
}

func NewScheduler(ctx context.Context, schedule string, runner runner) (*Scheduler, error) {
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{cron: c, runner: runner}
	if _, err := c.AddFunc(schedule, func() { s.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx, sync_run.TriggerSchedule); err != nil {
		if errors.Is(err, sync_run.ErrRunInProgress) {
			log.Info("Skipping scheduled run, another run is in progress")
			return
		}
		log.Errorf("Scheduled sync run failed: %v", err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
