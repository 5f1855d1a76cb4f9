package sync_run

import (
	"time"

	"github.com/google/uuid"
	"github.com/tuckerworks/calsync/pkg/reconcile"
)

type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

// SyncRun is the record of one finished run.
type SyncRun struct {
	Id         uuid.UUID
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt time.Time
	Report     reconcile.Report
}

func (r SyncRun) Status() string {
	return r.Report.Status()
}

type SyncRunDTO struct {
	Id         string           `json:"id"`
	Trigger    string           `json:"trigger"`
	StartedAt  string           `json:"startedAt"`
	FinishedAt string           `json:"finishedAt"`
	Status     string           `json:"status"`
	Report     reconcile.Report `json:"report"`
}

func toDTO(run SyncRun) SyncRunDTO {
	return SyncRunDTO{
		Id:         run.Id.String(),
		Trigger:    string(run.Trigger),
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		FinishedAt: run.FinishedAt.Format(time.RFC3339),
		Status:     run.Status(),
		Report:     run.Report,
	}
}
