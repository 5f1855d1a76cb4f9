package sync_run

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/rest"
	"github.com/tuckerworks/calsync/pkg/calendar"
	"github.com/tuckerworks/calsync/pkg/reconcile"
)

const defaultListLimit = 20

type Service interface {
	Run(ctx context.Context, trigger Trigger) (SyncRun, error)
	Plan(ctx context.Context) (reconcile.Plan, error)
	ListCalendars(ctx context.Context) ([]calendar.CalendarItem, error)
}

type CalendarDTO struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type Handler struct {
	service Service
	// repo is nil when run history is disabled.
	repo Repository
}

func NewHandler(service Service, repo Repository) *Handler {
	return &Handler{service: service, repo: repo}
}

func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	// A disconnecting client must not cut a run short.
	run, err := h.service.Run(context.WithoutCancel(r.Context()), TriggerAPI)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			rest.WriteError(w, http.StatusConflict, "Sync run in progress", "try again once the current run has finished")
			return
		}
		log.Errorf("Sync run triggered over HTTP failed: %v", err)
		rest.WriteJSON(w, http.StatusBadGateway, toDTO(run))
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(run))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		rest.WriteError(w, http.StatusNotFound, "Run history is disabled", "enable the database to record runs")
		return
	}
	limit := defaultListLimit
	if limitString := r.URL.Query().Get("limit"); limitString != "" {
		parsed, err := strconv.Atoi(limitString)
		if err != nil || parsed <= 0 {
			rest.WriteError(w, http.StatusBadRequest, "Invalid limit", "'limit' must be a positive number")
			return
		}
		limit = parsed
	}

	runs, err := h.repo.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]SyncRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toDTO(run))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		rest.WriteError(w, http.StatusNotFound, "Run history is disabled", "enable the database to record runs")
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["runId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid run id", err.Error())
		return
	}
	run, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			rest.WriteError(w, http.StatusNotFound, "Run not found", "")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(run))
}

// GetPlan renders what a run would do now. format selects json (default), yaml or text.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	formatString := r.URL.Query().Get("format")
	if formatString == "" {
		formatString = string(reconcile.FormatJSON)
	}
	format, err := reconcile.ParseFormat(formatString)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid format", err.Error())
		return
	}

	plan, err := h.service.Plan(r.Context())
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			rest.WriteError(w, http.StatusConflict, "Sync run in progress", "try again once the current run has finished")
			return
		}
		rest.WriteError(w, http.StatusBadGateway, "Unable to compute plan", err.Error())
		return
	}

	switch format {
	case reconcile.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case reconcile.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if err := reconcile.Render(w, plan, format); err != nil {
		log.Errorf("failed to render plan: %v", err)
	}
}

func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.service.ListCalendars(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusBadGateway, "Unable to list calendars", err.Error())
		return
	}
	dtos := make([]CalendarDTO, 0, len(calendars))
	for _, c := range calendars {
		dtos = append(dtos, CalendarDTO{Id: c.ID, Name: c.Name})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}
