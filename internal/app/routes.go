package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Sync runs
	r.HandleFunc("/api/sync/run", deps.SyncHandler.TriggerRun).Methods("POST")
	r.HandleFunc("/api/sync/run", deps.SyncHandler.ListRuns).Methods("GET")
	r.HandleFunc("/api/sync/run/{runId}", deps.SyncHandler.GetRun).Methods("GET")
	r.HandleFunc("/api/sync/plan", deps.SyncHandler.GetPlan).Methods("GET")

	// Destination
	r.HandleFunc("/api/calendars", deps.SyncHandler.ListCalendars).Methods("GET")

	// Operations
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
}
