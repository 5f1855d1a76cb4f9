package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/config"
	"github.com/tuckerworks/calsync/internal/database"
)

// Application wires configuration, database, router, scheduler and server lifecycle.
type Application struct {
	cfg       config.Application
	db        *pgxpool.Pool
	deps      *Dependencies
	scheduler *Scheduler
	srv       *http.Server
}

// NewApplication prepares everything a sync run needs. With the database
// enabled, migrations are applied and runs are recorded.
func NewApplication(ctx context.Context, cfg config.Application) (*Application, error) {
	var db *pgxpool.Pool
	if cfg.Database.Enabled {
		if err := database.Migrate(cfg.Database); err != nil {
			return nil, err
		}
		var err error
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
	}

	return &Application{cfg: cfg, db: db, deps: BuildDependencies(cfg, db)}, nil
}

func (a *Application) Dependencies() *Dependencies {
	return a.deps
}

// Serve starts the HTTP server and the scheduler and blocks until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, a.deps)

	scheduler, err := NewScheduler(ctx, a.cfg.Sync.Schedule, a.deps.SyncRunner)
	if err != nil {
		return err
	}
	a.scheduler = scheduler
	a.srv = &http.Server{
		Handler:      r,
		Addr:         a.cfg.Server.Addr,
		WriteTimeout: 5 * time.Minute,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Infof("Scheduling sync runs with %q", a.cfg.Sync.Schedule)
	a.scheduler.Start()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		a.scheduler.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.scheduler.Stop()
	return a.srv.Shutdown(shutdownCtx)
}

func (a *Application) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
