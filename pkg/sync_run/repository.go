package sync_run

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/event_bus"
)

var ErrRunNotFound = errors.New("sync run not found")

type Repository interface {
	Store(ctx context.Context, run SyncRun) error
	Get(ctx context.Context, id uuid.UUID) (SyncRun, error)
	// List returns the latest runs, newest first.
	List(ctx context.Context, limit int) ([]SyncRun, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectRun = `SELECT id, trigger, started_at, finished_at, created, updated, skipped, deleted, preserved,
       failed_creates, failed_updates, failed_deletes, warnings, errors, fatal
FROM sync_run`

func (r *RepositoryImpl) Store(ctx context.Context, run SyncRun) error {
	query := `INSERT INTO sync_run (
                    id, trigger, started_at, finished_at, status,
                    created, updated, skipped, deleted, preserved,
                    failed_creates, failed_updates, failed_deletes, warnings, errors, fatal
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	errs := run.Report.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		run.Id.String(),
		string(run.Trigger),
		run.StartedAt,
		run.FinishedAt,
		run.Status(),
		run.Report.Created,
		run.Report.Updated,
		run.Report.Skipped,
		run.Report.Deleted,
		run.Report.Preserved,
		run.Report.FailedCreates,
		run.Report.FailedUpdates,
		run.Report.FailedDeletes,
		run.Report.Warnings,
		errs,
		run.Report.Fatal,
	)
	if err != nil {
		err := fmt.Errorf("could not store sync run: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id uuid.UUID) (SyncRun, error) {
	row := r.db.QueryRow(ctx, selectRun+" WHERE id = $1", id.String())
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SyncRun{}, ErrRunNotFound
		}
		err := fmt.Errorf("could not query sync run: %v", err)
		log.Error(err)
		return SyncRun{}, err
	}
	return run, nil
}

func (r *RepositoryImpl) List(ctx context.Context, limit int) ([]SyncRun, error) {
	rows, err := r.db.Query(ctx, selectRun+" ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		err := fmt.Errorf("could not query sync runs: %v", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	runs := []SyncRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			log.Errorf("could not scan sync run: %v", err)
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (SyncRun, error) {
	var run SyncRun
	var id, trigger string
	err := row.Scan(
		&id,
		&trigger,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Report.Created,
		&run.Report.Updated,
		&run.Report.Skipped,
		&run.Report.Deleted,
		&run.Report.Preserved,
		&run.Report.FailedCreates,
		&run.Report.FailedUpdates,
		&run.Report.FailedDeletes,
		&run.Report.Warnings,
		&run.Report.Errors,
		&run.Report.Fatal,
	)
	if err != nil {
		return SyncRun{}, err
	}
	if run.Id, err = uuid.Parse(id); err != nil {
		return SyncRun{}, err
	}
	run.Trigger = Trigger(trigger)
	if len(run.Report.Errors) == 0 {
		run.Report.Errors = nil
	}
	return run, nil
}

// RecordHistory stores every completed run in repo.
func RecordHistory(eventBus *event_bus.EventBus, repo Repository) (unsubscribe func()) {
	return event_bus.SubscribeTyped(eventBus, event_bus.RunCompletedType, func(e event_bus.EventT[event_bus.RunCompleted]) error {
		id, err := uuid.Parse(e.Data.RunID)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", e.Data.RunID, err)
		}
		return repo.Store(e.Context(), SyncRun{
			Id:         id,
			Trigger:    Trigger(e.Data.Trigger),
			StartedAt:  e.Data.StartedAt,
			FinishedAt: e.Data.FinishedAt,
			Report:     e.Data.Report,
		})
	})
}
