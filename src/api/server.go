// Package api serves the cisync HTTP API: health, Prometheus metrics and
// per-build sync status and triggers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// Engine runs syncs. *pipeline.Pipeline satisfies it.
type Engine interface {
	Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error)
	CheckAndSync(ctx context.Context, build *contracts.Build) bool
}

// Server holds the API handlers.
type Server struct {
	engine Engine
	store  store.Store
	logger logger.Logger
}

// NewServer creates the API handlers.
func NewServer(engine Engine, st store.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Server{engine: engine, store: st, logger: log}
}

// Router returns the routes:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/v1/builds
//	GET  /api/v1/builds/{tenant}/{build}
//	GET  /api/v1/builds/{tenant}/{build}/runs?limit=N
//	POST /api/v1/builds/{tenant}/{build}/sync?force=true
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(PrometheusMiddleware)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/builds", s.listBuilds).Methods(http.MethodGet)
	v1.HandleFunc("/builds/{tenant}/{build}", s.getBuild).Methods(http.MethodGet)
	v1.HandleFunc("/builds/{tenant}/{build}/runs", s.listRuns).Methods(http.MethodGet)
	v1.HandleFunc("/builds/{tenant}/{build}/sync", s.triggerSync).Methods(http.MethodPost)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("[API] Failed to write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadBuild resolves the route's build, writing the error response itself.
func (s *Server) loadBuild(w http.ResponseWriter, r *http.Request) (*contracts.Build, bool) {
	vars := mux.Vars(r)
	build, err := s.store.GetBuild(r.Context(), vars["build"], vars["tenant"])
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "build not found")
		return nil, false
	case err != nil:
		s.logger.Error("[API] Failed to load build %s: %v", vars["build"], err)
		s.writeError(w, http.StatusInternalServerError, "failed to load build")
		return nil, false
	}
	return build, true
}

func (s *Server) listBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := s.store.ListBuilds(r.Context())
	if err != nil {
		s.logger.Error("[API] Failed to list builds: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list builds")
		return
	}
	if builds == nil {
		builds = []contracts.Build{}
	}
	s.writeJSON(w, http.StatusOK, builds)
}

// BuildStatus is the GET /builds/{tenant}/{build} response.
type BuildStatus struct {
	Build  *contracts.Build      `json:"build"`
	Status *contracts.SyncStatus `json:"status"`
}

func (s *Server) getBuild(w http.ResponseWriter, r *http.Request) {
	build, ok := s.loadBuild(w, r)
	if !ok {
		return
	}
	status, err := s.store.FindSyncStatus(r.Context(), build.ID, build.TenantID)
	if err != nil {
		s.logger.Error("[API] Failed to load sync status of %s: %v", build.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load sync status")
		return
	}
	s.writeJSON(w, http.StatusOK, BuildStatus{Build: build, Status: status})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	build, ok := s.loadBuild(w, r)
	if !ok {
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), build.ID, build.TenantID, limit)
	if err != nil {
		s.logger.Error("[API] Failed to list runs of %s: %v", build.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []contracts.RunRecord{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// SyncResponse is the POST /builds/{tenant}/{build}/sync response.
// Result is set for forced syncs; Synced reports whether a change-gated sync ran.
type SyncResponse struct {
	Synced bool                  `json:"synced"`
	Result *contracts.SyncResult `json:"result,omitempty"`
}

func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	build, ok := s.loadBuild(w, r)
	if !ok {
		return
	}

	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); !force {
		s.writeJSON(w, http.StatusOK, SyncResponse{Synced: s.engine.CheckAndSync(r.Context(), build)})
		return
	}

	result, err := s.engine.Sync(r.Context(), build)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, SyncResponse{Synced: true, Result: result})
}
