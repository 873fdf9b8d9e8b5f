// Package api exposes simulation jobs over HTTP: submit a configuration,
// poll the job, cancel it.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/stochastix-twin/twin-sim/sim"
	"github.com/stochastix-twin/twin-sim/sim/jobs"
)

// SubmitRequest is the body of POST /api/simulations.
type SubmitRequest struct {
	Config sim.SimulationConfig `json:"config"`
	// Replications defaults to 1 (single run) when omitted.
	Replications *int `json:"replications,omitempty"`
}

// NewHandler returns the router serving the job API backed by m.
func NewHandler(m *jobs.Manager, requestTimeout time.Duration) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(allowAnyOrigin)

	h := &handler{jobs: m}
	router.Get("/api/health", h.health)
	router.Route("/api/simulations", func(r chi.Router) {
		r.Post("/", h.submit)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.cancel)
	})
	return router
}

type handler struct {
	jobs *jobs.Manager
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	replications := 1
	if req.Replications != nil {
		replications = *req.Replications
	}

	snap, err := h.jobs.Submit(req.Config, replications)
	var cfgErr *sim.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		writeConfigError(w, err)
		return
	case errors.Is(err, jobs.ErrManagerClosed):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		logrus.Errorf("submitting job: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Location", "/api/simulations/"+snap.JobID)
	writeJSON(w, http.StatusAccepted, snap)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.lookupFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.jobs.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		h.lookupFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (h *handler) lookupFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
