package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tuckerworks/calsync/internal/config"
	"github.com/tuckerworks/calsync/internal/event_bus"
	"github.com/tuckerworks/calsync/internal/utils"
	"github.com/tuckerworks/calsync/pkg/calendar_provider"
	"github.com/tuckerworks/calsync/pkg/ics"
	"github.com/tuckerworks/calsync/pkg/sync_run"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock      utils.Clock
	EventBus   *event_bus.EventBus
	HTTPClient *http.Client
	Registry   *prometheus.Registry

	Source           *ics.Source
	CalendarProvider *calendar_provider.CalendarProvider

	SyncRunner  *sync_run.Runner
	SyncRunRepo sync_run.Repository
	SyncMetrics *sync_run.Metrics
	SyncHandler *sync_run.Handler
}

// BuildDependencies wires the application. db may be nil, which disables run history.
func BuildDependencies(cfg config.Application, db *pgxpool.Pool) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	deps.Registry = prometheus.NewRegistry()

	loc := cfg.Sync.Location()
	deps.Source = ics.NewSource(ics.NewFetcher(deps.HTTPClient, cfg.Source.CacheDir), cfg.Source.URL, loc)
	deps.CalendarProvider = calendar_provider.NewCalendarProvider(cfg.Destination, deps.HTTPClient, deps.Clock)

	deps.SyncRunner = sync_run.NewRunner(deps.Source, deps.CalendarProvider, sync_run.Settings{
		NormalizedTitle: cfg.Sync.Title,
		Days:            cfg.Sync.Days,
		Location:        loc,
	}, deps.Clock, deps.EventBus)

	if db != nil {
		repo := sync_run.NewRepository(db)
		deps.SyncRunRepo = repo
		sync_run.RecordHistory(deps.EventBus, repo)
	}
	deps.SyncMetrics = sync_run.NewMetrics(deps.Registry)
	deps.SyncMetrics.Subscribe(deps.EventBus)

	deps.SyncHandler = sync_run.NewHandler(deps.SyncRunner, deps.SyncRunRepo)
	return deps
}
