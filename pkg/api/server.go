package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/scheduler"
	"github.com/mimir-aip/mimir-automl/pkg/search"
	"github.com/mimir-aip/mimir-automl/pkg/trainer"
)

// Server provides HTTP API endpoints
type Server struct {
	store    metadatastore.MetadataStore
	port     string
	mux      *http.ServeMux
	server   *http.Server
	logger   *logging.FieldLogger
	trainers *TrainerHandler
	sweeps   *SweepHandler
	schedule *ScheduleHandler
}

// NewServer creates a new API server. Data sources named in requests resolve
// inside dataDir. A nil scheduler leaves the schedule routes unregistered.
func NewServer(ctx context.Context, catalog *trainer.Catalog, runner *search.Runner, store metadatastore.MetadataStore, sched *scheduler.Service, dataDir, port string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		store:    store,
		port:     port,
		mux:      http.NewServeMux(),
		logger:   logger.WithFields(logging.Component("api")),
		trainers: NewTrainerHandler(catalog),
	}
	s.sweeps = NewSweepHandler(ctx, runner, store, dataDir, s.logger)
	if sched != nil {
		s.schedule = NewScheduleHandler(sched, dataDir)
	}

	s.registerRoutes()
	return s
}

// registerRoutes sets up the HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.HandleFunc("/api/trainers", s.trainers.HandleTrainers)
	s.mux.HandleFunc("/api/trainers/", s.trainers.HandleTrainer)
	s.mux.HandleFunc("/api/sweeps", s.sweeps.HandleSweeps)
	s.mux.HandleFunc("/api/sweeps/", s.sweeps.HandleSweep)
	if s.schedule != nil {
		s.mux.HandleFunc("/api/schedules", s.schedule.HandleSchedules)
		s.mux.HandleFunc("/api/schedules/", s.schedule.HandleSchedule)
	}
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting API server", logging.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Wait blocks until sweeps started over HTTP have returned
func (s *Server) Wait() {
	s.sweeps.Wait()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the metadata store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListSchedules(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// resolveDataPath maps a client supplied data source onto a file inside dir.
// Absolute paths and paths climbing out of dir are configuration errors.
func resolveDataPath(dir, name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: data source %q must be a relative path inside the data directory", models.ErrConfiguration, name)
	}
	return filepath.Join(dir, name), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes: unknown records are 404,
// configuration errors 400, anything else 500
func writeError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, metadatastore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConfiguration):
		status = http.StatusBadRequest
	}
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), status)
}
